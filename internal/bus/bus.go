// Package bus implements the GBA's memory map: page-table-accelerated
// reads/writes, wait-state timing, the interrupt controller, the 4-channel
// DMA engine, the 4-channel timer block, and dispatch of the central
// scheduler's events. It is the concrete cpu.Bus the interpreter drives,
// grounded throughout on original_source/core/src/gga/memory.rs.
package bus

import (
	"github.com/birchlab/gbacore/internal/apu"
	"github.com/birchlab/gbacore/internal/cart"
	"github.com/birchlab/gbacore/internal/ppu"
	"github.com/birchlab/gbacore/internal/scheduler"
)

const (
	biosSize    = 0x4000
	ewramSize   = 0x40000
	iwramSize   = 0x8000
	paletteSize = 0x400
	vramSize    = 0x18000
	oamSize     = 0x400
)

// Bus owns every flat memory buffer the console has (including, by design,
// VRAM/OAM/palette: the PPU package that owns scanline timing never touches
// pixel storage, see internal/ppu's doc comment) plus every piece of
// register state the CPU, DMA engine, timers and interrupt controller share.
type Bus struct {
	bios    []byte
	ewram   [ewramSize]byte
	iwram   [iwramSize]byte
	palette [paletteSize]byte
	vram    [vramSize]byte
	oam     [oamSize]byte

	cart *cart.Cartridge
	apu  *apu.APU

	readPages  pageTable
	writePages pageTable

	sched *scheduler.Scheduler

	mmio [512]uint16

	ie      uint16
	ifReg   uint16
	ime     bool
	waitcnt uint16
	wait    waitTables

	prefetchLen uint32

	cachedPC        uint32
	cachedThumb     bool
	cachedBiosValue uint32

	dispstat uint16
	vcount   uint16
	ppuState ppu.State

	keyinput uint16
	keycnt   uint16

	soundcntH uint16
	fifoATimer uint8
	fifoBTimer uint8

	dma        [4]dmaChannel
	dmaSrc     [4]uint32
	dmaDst     [4]uint32
	dmaCache   uint32
	dmaRunning int
	dmaQueue   []dmaQueueEntry

	timers [4]timerChannel

	cpu haltable

	framePaused bool
}

// haltable is the narrow view of the CPU the bus needs in order to act on
// a HALTCNT write: package cpu never imports bus (see its own Bus
// interface), so this is bus's side of that same one-directional split,
// wired after construction by AttachCPU.
type haltable interface{ Halt() }

// AttachCPU lets the HALTCNT MMIO write handler park the interpreter.
// Called once by the code that constructs both halves (see internal/emu's
// two-phase construction), after both Bus and the CPU exist.
func (b *Bus) AttachCPU(c haltable) { b.cpu = c }

// New returns a Bus with no cartridge loaded; biosImage, if non-empty, is
// copied into the BIOS region (padded/truncated to its fixed 16 KiB size).
func New(biosImage []byte) *Bus {
	b := &Bus{
		bios: make([]byte, biosSize),
		apu:  apu.New(),
	}
	copy(b.bios, biosImage)
	b.Reset()
	return b
}

// NewWithCartridge returns a Bus with rom already loaded via LoadCartridge.
func NewWithCartridge(biosImage []byte, rom []byte) *Bus {
	b := New(biosImage)
	b.LoadCartridge(rom)
	return b
}

// LoadCartridge attaches rom, auto-detecting its backup memory type, and
// rebuilds the page tables to map it.
func (b *Bus) LoadCartridge(rom []byte) {
	b.cart = cart.New(rom)
	b.buildPageTables()
}

// Cartridge exposes the attached cartridge, or nil if none is loaded.
func (b *Bus) Cartridge() *cart.Cartridge { return b.cart }

// Reset reinitializes every piece of state except ROM and cartridge save
// memory, matching the reset scope described in §3.
func (b *Bus) Reset() {
	b.ewram = [ewramSize]byte{}
	b.iwram = [iwramSize]byte{}
	b.palette = [paletteSize]byte{}
	b.vram = [vramSize]byte{}
	b.oam = [oamSize]byte{}
	b.mmio = [512]uint16{}

	b.sched = scheduler.New()
	b.apu.Reset()

	b.ie, b.ifReg, b.ime = 0, 0, false
	b.waitcnt = 0
	b.prefetchLen = 0
	b.updateWaitTimes()

	// A real BIOS's reset vector handler leaves this value cached in the
	// instruction pipeline by the time control reaches the cartridge,
	// matching memory.rs's Memory::default bios_value.
	b.cachedBiosValue = 0xE129F000
	b.cachedPC = 0
	b.cachedThumb = false

	b.dispstat = 0
	b.vcount = 0
	b.ppuState = ppu.Initial
	b.keyinput = 0x03FF
	b.keycnt = 0
	b.soundcntH = 0
	b.fifoATimer = 0
	b.fifoBTimer = 0

	b.dma = [4]dmaChannel{}
	b.dmaSrc = [4]uint32{}
	b.dmaDst = [4]uint32{}
	b.dmaCache = 0
	b.dmaRunning = dmaNotRunning
	b.dmaQueue = nil

	b.timers = [4]timerChannel{}

	b.buildPageTables()
	b.scheduleNextPpuEvent(ppu.HDrawCycles)
}

// Scheduler exposes the central event queue, used by the top-level driver
// to bound how far a single Step/AdvanceDelta call runs.
func (b *Bus) Scheduler() *scheduler.Scheduler { return b.sched }

// SetKeys updates the live button state: bits clear when held, matching
// KEYINPUT's active-low convention.
func (b *Bus) SetKeys(pressedMask uint16) {
	b.keyinput = ^pressedMask & 0x03FF
	b.checkKeyIrq()
}

func (b *Bus) checkKeyIrq() {
	if b.keycnt&(1<<14) == 0 {
		return
	}
	cond := b.keycnt & 0x3FF
	pressed := ^b.keyinput & 0x3FF
	var fire bool
	if b.keycnt&(1<<15) != 0 {
		fire = pressed&cond == cond // AND: every selected key held
	} else {
		fire = pressed&cond != 0 // OR: any selected key held
	}
	if fire {
		b.RequestInterrupt(IntJoypad)
	}
}

// AddInternalCycles advances the clock by cycles that aren't attached to
// any particular memory access (multiply/shift internal cycles, DMA setup
// overhead): part of the cpu.Bus contract.
func (b *Bus) AddInternalCycles(n int) { b.sched.Advance(uint64(n)) }

// SetCPUState caches the interpreter's PC and THUMB flag so the bus's slow
// path can reproduce BIOS-read gating and open-bus composition without
// importing package cpu.
func (b *Bus) SetCPUState(pc uint32, thumb bool) {
	b.cachedPC = pc
	b.cachedThumb = thumb
}

// ReadByte/ReadHword/ReadWord perform a timed memory access: they charge
// the scheduler for the wait-state cost before returning the value, which
// is how instruction timing and DMA bus contention actually accumulate.
func (b *Bus) ReadByte(addr uint32, seq bool) byte {
	b.charge(addr, 1, seq)
	return b.GetByte(addr)
}

func (b *Bus) ReadHword(addr uint32, seq bool) uint16 {
	b.charge(addr, 2, seq)
	return b.GetHword(addr)
}

func (b *Bus) ReadWord(addr uint32, seq bool) uint32 {
	b.charge(addr, 4, seq)
	return b.GetWord(addr)
}

func (b *Bus) WriteByte(addr uint32, v byte, seq bool) {
	b.charge(addr, 1, seq)
	b.SetByte(addr, v)
}

func (b *Bus) WriteHword(addr uint32, v uint16, seq bool) {
	b.charge(addr, 2, seq)
	b.SetHword(addr, v)
}

func (b *Bus) WriteWord(addr uint32, v uint32, seq bool) {
	b.charge(addr, 4, seq)
	b.SetWord(addr, v)
}

func (b *Bus) charge(addr uint32, width uint32, seq bool) {
	fetchAtPC := addr == b.cachedPC
	cost := b.waitTime(addr, width, seq, fetchAtPC)
	b.sched.Advance(uint64(cost))
}

// GetByte/GetHword/GetWord perform an untimed access: the logical memory
// read/write with no wait-state cost attached. DMA's cache-fill step and
// the open-bus composition logic both need this, matching the get_*/set_*
// split in memory.rs (only read_*/write_* charge time; get_*/set_* don't).
func (b *Bus) GetByte(addr uint32) byte {
	if base, off, ok := b.readPages.lookup(addr); ok {
		return base[off]
	}
	switch {
	case addr < biosSize:
		if b.cachedPC < 0x0100_0000 {
			return b.bios[addr&0x3FFF]
		}
		return byte(b.cachedBiosValue)
	case addr >= 0x0400_0000 && addr <= 0x04FF_FFFF:
		if addr&1 != 0 {
			return byte(b.mmioRead16(addr-1) >> 8)
		}
		return byte(b.mmioRead16(addr))
	case addr >= 0x0600_0000 && addr < 0x0700_0000:
		return b.vram[vramOffset(addr)]
	case addr >= 0x0E00_0000 && addr <= 0x0FFF_FFFF:
		return b.cart.ReadByte(addr)
	case addr >= 0x0DFF_8000 && addr <= 0x0DFF_FFFF && b.cart != nil &&
		uint32(len(b.cart.ROM)) > addr-0x0800_0000:
		return b.cart.ROM[addr-0x0800_0000]
	default:
		return byte(b.invalidRead(addr, false))
	}
}

func (b *Bus) GetHword(addrUnaligned uint32) uint16 {
	addr := addrUnaligned &^ 1
	if base, off, ok := b.readPages.lookup(addr); ok {
		return uint16(base[off]) | uint16(base[off+1])<<8
	}
	switch {
	case addr < biosSize:
		if b.cachedPC < 0x0100_0000 {
			i := addr & 0x3FFF
			return uint16(b.bios[i]) | uint16(b.bios[i+1])<<8
		}
		return uint16(b.cachedBiosValue)
	case addr >= 0x0400_0000 && addr <= 0x04FF_FFFF:
		return b.mmioRead16(addr)
	case addr >= 0x0600_0000 && addr < 0x0700_0000:
		off := vramOffset(addr)
		return uint16(b.vram[off]) | uint16(b.vram[off+1])<<8
	case addr >= 0x0D00_0000 && addr <= 0x0DFF_FFFF && b.cartEepromAt(addr):
		return b.cart.ReadHword()
	case addr >= 0x0DFF_8000 && addr <= 0x0DFF_FFFF:
		return uint16(b.GetByte(addr)) | uint16(b.GetByte(addr+1))<<8
	case addr >= 0x0E00_0000 && addr <= 0x0FFF_FFFF:
		v := b.cart.ReadByte(addr)
		return uint16(v) | uint16(v)<<8
	default:
		return uint16(b.invalidRead(addr, false))
	}
}

func (b *Bus) GetWord(addrUnaligned uint32) uint32 {
	addr := addrUnaligned &^ 3
	if base, off, ok := b.readPages.lookup(addr); ok {
		return uint32(base[off]) | uint32(base[off+1])<<8 |
			uint32(base[off+2])<<16 | uint32(base[off+3])<<24
	}
	switch {
	case addr < biosSize:
		if b.cachedPC < 0x0100_0000 {
			i := addr & 0x3FFF
			return uint32(b.bios[i]) | uint32(b.bios[i+1])<<8 |
				uint32(b.bios[i+2])<<16 | uint32(b.bios[i+3])<<24
		}
		return b.cachedBiosValue
	case addr >= 0x0400_0000 && addr <= 0x04FF_FFFF:
		return uint32(b.mmioRead16(addr)) | uint32(b.mmioRead16(addr+2))<<16
	case addr >= 0x0DFF_8000 && addr <= 0x0DFF_FFFF:
		return uint32(b.GetHword(addr)) | uint32(b.GetHword(addr+2))<<16
	case addr >= 0x0E00_0000 && addr <= 0x0FFF_FFFF:
		v := b.cart.ReadByte(addr)
		h := uint32(v) | uint32(v)<<8
		return h | h<<16
	default:
		return b.invalidRead(addr, true)
	}
}

// SetByte/SetHword/SetWord are the untimed write counterparts, handling the
// VRAM/OAM/palette byte-write quirk (hardware silently ignores 8-bit OAM
// and OBJ-VRAM writes, and duplicates 8-bit BG-VRAM/palette writes across
// the containing halfword) and routing everything else through the fast
// path or the appropriate peripheral.
func (b *Bus) SetByte(addr uint32, v byte) {
	switch {
	case addr >= 0x0400_0000 && addr <= 0x0400_03FF:
		b.mmioWriteByte(addr, v)
		return
	case addr >= 0x0500_0000 && addr < 0x0600_0000:
		b.SetHword(addr&^1, hwordLH(v, v))
		return
	case addr >= 0x0600_0000 && addr < 0x0700_0000:
		if (addr & 0x1FFFF) < 0x10000 {
			b.SetHword(addr&^1, hwordLH(v, v))
		}
		return
	case addr >= 0x0700_0000 && addr < 0x0800_0000:
		return // OAM ignores byte writes.
	case addr >= 0x0E00_0000 && addr <= 0x0FFF_FFFF:
		b.cart.WriteByte(addr, v)
		return
	}
	if base, off, ok := b.writePages.lookup(addr); ok {
		base[off] = v
		return
	}
}

func (b *Bus) SetHword(addrUnaligned uint32, v uint16) {
	addr := addrUnaligned &^ 1
	switch {
	case addr >= 0x0400_0000 && addr <= 0x0400_0300:
		b.mmioWrite16(addr, v)
		return
	case addr >= 0x0D00_0000 && addr <= 0x0DFF_FFFF && b.cartEepromAt(addr):
		b.cart.WriteHword(v)
		return
	case addr >= 0x0E00_0000 && addr <= 0x0FFF_FFFF:
		by := byte(v)
		if addrUnaligned&1 != 0 {
			by = byte(v >> 8)
		}
		b.cart.WriteByte(addrUnaligned, by)
		return
	}
	if base, off, ok := b.writePages.lookup(addr); ok {
		base[off] = byte(v)
		base[off+1] = byte(v >> 8)
		return
	}
	if addr >= 0x0600_0000 && addr < 0x0700_0000 {
		off := vramOffset(addr)
		b.vram[off] = byte(v)
		b.vram[off+1] = byte(v >> 8)
	}
}

func (b *Bus) SetWord(addrUnaligned uint32, v uint32) {
	addr := addrUnaligned &^ 3
	switch {
	case addr >= 0x0400_0000 && addr <= 0x0400_0300:
		b.mmioWrite16(addr, uint16(v))
		b.mmioWrite16(addr+2, uint16(v>>16))
		return
	case addr >= 0x0E00_0000 && addr <= 0x0FFF_FFFF:
		shift := (addrUnaligned & 3) * 8
		b.cart.WriteByte(addrUnaligned, byte(v>>shift))
		return
	}
	if base, off, ok := b.writePages.lookup(addr); ok {
		base[off] = byte(v)
		base[off+1] = byte(v >> 8)
		base[off+2] = byte(v >> 16)
		base[off+3] = byte(v >> 24)
		return
	}
	if addr >= 0x0600_0000 && addr < 0x0700_0000 {
		off := vramOffset(addr)
		b.vram[off] = byte(v)
		b.vram[off+1] = byte(v >> 8)
		b.vram[off+2] = byte(v >> 16)
		b.vram[off+3] = byte(v >> 24)
	}
}

func hwordLH(lo, hi byte) uint16 { return uint16(lo) | uint16(hi)<<8 }

// cartEepromAt reports whether addr, within the GamePak's third mirror,
// should be routed to the EEPROM serial protocol rather than treated as a
// ROM read: small cartridges (<=16 MiB) only expose EEPROM in the last 256
// bytes of that window, while larger ones dedicate the whole window to it,
// matching how real carts wire the chip select line.
func (b *Bus) cartEepromAt(addr uint32) bool {
	if b.cart == nil || b.cart.Kind != cart.SaveEEPROM {
		return false
	}
	if len(b.cart.ROM) > 16*1024*1024 {
		return true
	}
	return addr >= 0x0DFF_FF00
}

// vramOffset folds any address in [0x0600_0000, 0x0700_0000) down to an
// offset into the 96 KiB backing buffer, reproducing the mirror quirk
// where the region repeats every 128 KiB but the upper 32 KiB of each
// period echoes OBJ VRAM (the buffer's own last 32 KiB) rather than
// continuing the linear layout.
func vramOffset(addr uint32) uint32 {
	rel := (addr - 0x0600_0000) & 0x1_FFFF
	if rel < 0x1_8000 {
		return rel
	}
	return rel - 0x8000
}

// invalidRead produces the value an out-of-bounds GamePak read or a true
// open-bus read returns, grounded on memory.rs::invalid_read.
func (b *Bus) invalidRead(addr uint32, word bool) uint32 {
	if addr >= 0x0800_0000 && addr <= 0x0DFF_FFFF {
		align := uint32(1)
		if word {
			align = 3
		}
		a := (addr &^ align) >> 1
		low := uint16(a)
		return uint32(low) | uint32(low+1)<<16
	}

	pc := b.cachedPC
	if pc > 0x0FFF_FFFF || (pc > 0x3FFF && pc < 0x0200_0000) {
		return 0
	}
	if !b.cachedThumb {
		return b.GetWord(pc)
	}
	switch {
	case pc>>24 == 0x02 || pc>>24 == 0x05 || pc>>24 == 0x06 || (pc>>24 >= 0x08 && pc>>24 <= 0x0D):
		hw := b.GetHword(pc)
		return uint32(hw) | uint32(hw)<<16
	case pc&2 != 0:
		return uint32(b.GetHword(pc-2)) | uint32(b.GetHword(pc))<<16
	case pc>>24 == 0x00 || pc>>24 == 0x07:
		return uint32(b.GetHword(pc)) | uint32(b.GetHword(pc+2))<<16
	default:
		return uint32(b.GetHword(pc)) | uint32(b.GetHword(pc-2))<<16
	}
}

// RunScheduler pops and dispatches every scheduler event currently due. A
// PauseEmulation event among them is recorded rather than dispatched (see
// FramePaused) instead of being handled here, the same way
// PumpUntilInterruptPending's own pop loop treats one.
func (b *Bus) RunScheduler() {
	for _, due := range b.sched.PopDue() {
		b.dispatchOrRecordPause(due)
	}
}

// FramePaused reports whether a scheduled PauseEmulation event has fired
// since the last call, clearing the flag. internal/emu's driver schedules
// one of those ahead of a run to bound how far a single AdvanceDelta call
// executes, then polls this after every cpu.Step; PumpUntilInterruptPending
// sets the same flag if HALT is still in effect when the bound is hit, so a
// halted CPU can't run a pause event over silently.
func (b *Bus) FramePaused() bool {
	v := b.framePaused
	b.framePaused = false
	return v
}

func (b *Bus) dispatchOrRecordPause(due scheduler.Due) {
	if due.Kind == scheduler.PauseEmulation {
		b.framePaused = true
		return
	}
	b.dispatchEvent(due)
}

// scheduleNextPpuEvent arms the scheduler for the PPU's next phase
// transition, cycles from now.
func (b *Bus) scheduleNextPpuEvent(cycles uint64) {
	b.sched.Schedule(scheduler.PpuEvent, 0, cycles)
}

// dispatchEvent runs the handler for one popped scheduler event.
// PauseEmulation carries no handler of its own: it exists purely so the
// top-level driver loop can detect, through FramePaused after
// RunScheduler, that "a frame's worth of work is done" without this
// dispatcher needing to know about frames.
func (b *Bus) dispatchEvent(due scheduler.Due) {
	switch due.Kind {
	case scheduler.PpuEvent:
		b.handlePpuEvent(due.LateBy)
	case scheduler.ApuEvent:
		// Reserved for sample-rate-driven mixing; this core only drives
		// FIFO draining off timer overflow, so nothing to do here.
	case scheduler.TimerOverflow0:
		b.handleTimerOverflow(0, due.LateBy)
	case scheduler.TimerOverflow1:
		b.handleTimerOverflow(1, due.LateBy)
	case scheduler.TimerOverflow2:
		b.handleTimerOverflow(2, due.LateBy)
	case scheduler.TimerOverflow3:
		b.handleTimerOverflow(3, due.LateBy)
	}
}

// handlePpuEvent advances the scanline state machine by one phase
// transition, updating VCOUNT/DISPSTAT, firing VBlank/HBlank/VCounter
// interrupts, and kicking the DMA engine's HBlank/VBlank triggers.
func (b *Bus) handlePpuEvent(lateBy uint64) {
	next, cyclesUntilNext, enterHBlank, enterVBlank := b.ppuState.Advance()
	b.ppuState = next
	b.vcount = next.Line

	if enterHBlank {
		b.dispstat |= 1 << 1
		if b.dispstat&(1<<4) != 0 {
			b.RequestInterrupt(IntHBlank)
		}
		b.dmaUpdateAll(dmaReasonHBlank)
	} else {
		b.dispstat &^= 1 << 1
	}

	if next.Phase == ppu.PhaseHDraw {
		if enterVBlank {
			b.dispstat |= 1 << 0
			if b.dispstat&(1<<3) != 0 {
				b.RequestInterrupt(IntVBlank)
			}
			b.dmaUpdateAll(dmaReasonVBlank)
		} else if next.Line == 0 {
			b.dispstat &^= 1 << 0
		}

		vcountSetting := uint16(b.dispstat >> 8)
		matched := next.Line == vcountSetting
		if matched {
			b.dispstat |= 1 << 2
			if b.dispstat&(1<<5) != 0 {
				b.RequestInterrupt(IntVCounter)
			}
		} else {
			b.dispstat &^= 1 << 2
		}
	}

	delay := cyclesUntilNext
	if delay > lateBy {
		delay -= lateBy
	} else {
		delay = 0
	}
	b.scheduleNextPpuEvent(delay)
}
