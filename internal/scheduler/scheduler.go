// Package scheduler implements the emulator core's central event queue: a
// min-heap of timestamped events that peripherals use to request a future
// callback instead of being polled every cycle.
package scheduler

import "container/heap"

// Kind identifies the category of a scheduled event. The numeric value
// carries a sub-index for event kinds that have more than one instance
// (e.g. which of the four timers overflowed).
type Kind uint8

const (
	// PauseEmulation bounds advance_delta; popped, it tells the driver loop
	// to stop executing instructions.
	PauseEmulation Kind = iota
	// PpuEvent covers HBlank start, DISPSTAT HBlank-flag set, and HBlank end
	// (the bus schedules it with Sub 0; the current phase is tracked by
	// the PPU's own state machine).
	PpuEvent
	// ApuEvent is reserved for sample-rate-driven mixing; the bus treats
	// it as a no-op, since FIFO draining runs off timer overflow.
	ApuEvent
	// TimerOverflow0..3 fire when the corresponding timer channel wraps.
	TimerOverflow0
	TimerOverflow1
	TimerOverflow2
	TimerOverflow3
)

// Event is a single scheduled occurrence.
type Event struct {
	When uint64 // absolute cycle count at which this event is due
	Kind Kind
	Sub  uint8 // event-kind-specific sub-phase (e.g. PPU sub-state)
	seq  uint64
}

// Due is an event popped past its deadline, with the lateness measured in
// cycles. Handlers use LateBy to compensate when the core fell behind
// schedule (e.g. scheduling the next occurrence LateBy cycles earlier).
type Due struct {
	Kind   Kind
	Sub    uint8
	LateBy uint64
}

// Scheduler owns the event heap and the emulator's notion of wall-clock time.
type Scheduler struct {
	now  uint64
	heap eventHeap
	seq  uint64
}

// New returns an empty scheduler with the clock at zero.
func New() *Scheduler {
	s := &Scheduler{}
	heap.Init(&s.heap)
	return s
}

// Now returns the current cycle count.
func (s *Scheduler) Now() uint64 { return s.now }

// Schedule inserts kind/sub to fire inCycles cycles from now.
func (s *Scheduler) Schedule(kind Kind, sub uint8, inCycles uint64) {
	heap.Push(&s.heap, &Event{
		When: s.now + inCycles,
		Kind: kind,
		Sub:  sub,
		seq:  s.nextSeq(),
	})
}

// ScheduleAt inserts kind/sub to fire at an absolute cycle count.
func (s *Scheduler) ScheduleAt(kind Kind, sub uint8, when uint64) {
	heap.Push(&s.heap, &Event{When: when, Kind: kind, Sub: sub, seq: s.nextSeq()})
}

func (s *Scheduler) nextSeq() uint64 {
	s.seq++
	return s.seq
}

// Advance moves the clock forward by n cycles. It never pops events; callers
// drain due events with PopDue after advancing.
func (s *Scheduler) Advance(n uint64) {
	s.now += n
}

// PopDue removes and returns every event whose deadline has passed, in
// non-decreasing When order with ties broken by insertion order (the heap's
// Less already encodes that ordering).
func (s *Scheduler) PopDue() []Due {
	var due []Due
	for len(s.heap) > 0 && s.heap[0].When <= s.now {
		ev := heap.Pop(&s.heap).(*Event)
		due = append(due, Due{Kind: ev.Kind, Sub: ev.Sub, LateBy: s.now - ev.When})
	}
	return due
}

// NextWhen reports the deadline of the earliest pending event and whether
// one exists at all.
func (s *Scheduler) NextWhen() (uint64, bool) {
	if len(s.heap) == 0 {
		return 0, false
	}
	return s.heap[0].When, true
}

// Cancel removes every pending instance of kind, regardless of Sub. Rescheduling
// a repeating event must call Cancel before Schedule to avoid duplicate
// deliveries; this is the scheduler's published contract.
func (s *Scheduler) Cancel(kind Kind) {
	kept := s.heap[:0]
	for _, ev := range s.heap {
		if ev.Kind == kind {
			continue
		}
		kept = append(kept, ev)
	}
	s.heap = kept
	heap.Init(&s.heap)
}

// CancelSub removes pending instances of kind matching a specific sub-index,
// leaving instances of the same kind with a different Sub in place.
func (s *Scheduler) CancelSub(kind Kind, sub uint8) {
	kept := s.heap[:0]
	for _, ev := range s.heap {
		if ev.Kind == kind && ev.Sub == sub {
			continue
		}
		kept = append(kept, ev)
	}
	s.heap = kept
	heap.Init(&s.heap)
}

// Reset clears all pending events and resets the clock to zero.
func (s *Scheduler) Reset() {
	s.now = 0
	s.seq = 0
	s.heap = s.heap[:0]
}

type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].When != h[j].When {
		return h[i].When < h[j].When
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(*Event))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return ev
}
