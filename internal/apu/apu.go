// Package apu is the narrow audio collaborator this core hands samples to:
// the two DMA-fed FIFO ring buffers sound playback drains from. Sample
// synthesis and mixing are an explicit Non-goal (§1); this package exists
// only so the in-scope DMA engine and timer overflow path have a real
// destination to push/drain samples into, grounded on the teacher's
// internal/apu ring-buffer idiom (bufHead/bufTail over a fixed-capacity
// slice) trimmed to FIFO-only.
package apu

// fifoCapacity is the hardware GBA sound FIFO depth: 32 bytes (8 32-bit
// DMA word-pushes), per the Sound FIFO A/B MMIO semantics in §6.
const fifoCapacity = 32

// refillThreshold is the fill level at/below which a FIFO requests a DMA
// refill burst, matching real hardware's "half empty" trigger point.
const refillThreshold = 16

// fifo is a byte ring buffer fed by 32-bit MMIO/DMA writes and drained one
// sample at a time on the timer overflow that clocks its channel.
type fifo struct {
	buf  [fifoCapacity]int8
	head int
	tail int
	len  int
}

func (f *fifo) reset() { *f = fifo{} }

// pushWord appends the four bytes of a 32-bit FIFO write, in the order the
// DMA/MMIO write presents them (least significant byte first); bytes that
// arrive while the ring is full are dropped.
func (f *fifo) pushWord(v uint32) {
	for i := 0; i < 4; i++ {
		f.pushByte(int8(byte(v >> (8 * uint(i)))))
	}
}

func (f *fifo) pushByte(v int8) {
	if f.len == fifoCapacity {
		// Full: real hardware's FIFO simply refuses further writes until
		// drained, so drop the incoming byte.
		return
	}
	f.buf[f.tail] = v
	f.tail = (f.tail + 1) % fifoCapacity
	f.len++
}

// drain pops and returns the next sample, or 0 with ok=false if empty.
func (f *fifo) drain() (sample int8, ok bool) {
	if f.len == 0 {
		return 0, false
	}
	sample = f.buf[f.head]
	f.head = (f.head + 1) % fifoCapacity
	f.len--
	return sample, true
}

func (f *fifo) needsRefill() bool { return f.len <= refillThreshold }

// APU owns FIFO channel A and B. Reset() clears both to empty, matching
// reset behavior described in §3 ("everything except ROM and save RAM is
// reinitialized").
type APU struct {
	fifoA fifo
	fifoB fifo
}

// New returns an APU with both FIFOs empty.
func New() *APU { return &APU{} }

// Reset clears both FIFOs.
func (a *APU) Reset() {
	a.fifoA.reset()
	a.fifoB.reset()
}

// PushSample writes one byte into FIFO A (chan==0) or B (chan==1), the
// path a byte-width MMIO write to 0x0400_00A0/0xA4 takes.
func (a *APU) PushSample(chanIdx int, v int8) {
	a.channel(chanIdx).pushByte(v)
}

// PushWord writes all four bytes of a 32-bit FIFO push, the path DMA1/2's
// word-mode transfers and word-width MMIO writes take.
func (a *APU) PushWord(chanIdx int, v uint32) {
	a.channel(chanIdx).pushWord(v)
}

// Drain pops one sample off the given channel's FIFO, returning whether
// the channel has dropped to its DMA-refill threshold. Called by the bus's
// timer-overflow handler for whichever timer (0 or 1) drives that channel.
func (a *APU) Drain(chanIdx int) (needsRefill bool) {
	a.channel(chanIdx).drain()
	return a.channel(chanIdx).needsRefill()
}

func (a *APU) channel(chanIdx int) *fifo {
	if chanIdx == 0 {
		return &a.fifoA
	}
	return &a.fifoB
}
