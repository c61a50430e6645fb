package bus

import "github.com/birchlab/gbacore/internal/scheduler"

// Interrupt bit positions within IE/IF. Mirrored from internal/cpu's own
// Int* constants without importing that package (bus<->cpu is
// deliberately one-directional, see internal/cpu/bus.go's Bus interface).
const (
	IntVBlank = iota
	IntHBlank
	IntVCounter
	IntTimer0
	IntTimer1
	IntTimer2
	IntTimer3
	IntSerial
	IntDma0
	IntDma1
	IntDma2
	IntDma3
	IntJoypad
	IntGamePak
)

// RequestInterrupt sets bit in IF. Dispatch itself happens the next time
// the CPU evaluates its IRQ gate (CheckIRQ, called at the top of every
// Step): requesting an interrupt mid-instruction becomes visible
// immediately but is only taken at the next instruction boundary, matching
// the ordering guarantee in §5.
func (b *Bus) RequestInterrupt(bit int) {
	b.ifReg |= 1 << uint(bit)
}

// IME reports whether the interrupt master enable bit is set; part of the
// narrow cpu.Bus contract the CPU's IRQ gate check reads.
func (b *Bus) IME() bool { return b.ime }

// PendingInterrupts returns IE & IF: the set of interrupts that are both
// enabled and flagged pending.
func (b *Bus) PendingInterrupts() uint16 { return b.ie & b.ifReg }

// RawIF returns IF on its own, unmasked by IE. HALT releases on any pending
// IF bit regardless of its IE mask (§4.1: "until IF becomes non-zero"),
// unlike IRQ dispatch itself which additionally requires IME and the IE
// mask; see CheckIRQ.
func (b *Bus) RawIF() uint16 { return b.ifReg }

// PumpUntilInterruptPending repeatedly pops and dispatches the earliest
// scheduled event, advancing the clock to meet it, until IF becomes
// non-zero. This is HALT: the CPU parks here instead of fetching. A
// PauseEmulation event reached while still halted stops the pump early
// (ifReg may still be zero) so the frame boundary it marks isn't silently
// absorbed; see FramePaused.
func (b *Bus) PumpUntilInterruptPending() {
	for b.ifReg == 0 {
		when, ok := b.sched.NextWhen()
		if !ok {
			// Nothing scheduled; this would hang forever on real hardware
			// too (HALT with no pending peripheral activity), so bail.
			return
		}
		if when > b.sched.Now() {
			b.sched.Advance(when - b.sched.Now())
		}
		due := b.sched.PopDue()
		sawPause := false
		for _, d := range due {
			if d.Kind == scheduler.PauseEmulation {
				b.framePaused = true
				sawPause = true
				continue
			}
			b.dispatchEvent(d)
		}
		if sawPause {
			return
		}
	}
}
