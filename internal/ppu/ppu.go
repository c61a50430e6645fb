// Package ppu provides the scanline timing state machine the bus drives
// VBlank/HBlank interrupts and DMA triggers from. Pixel storage (VRAM/OAM/
// palette) and the DISPCNT/DISPSTAT/VCOUNT registers themselves stay owned
// by internal/bus (see its pagetable.go, which maps those buffers directly
// onto the Bus struct); this package only turns elapsed dot position into
// the next scanline phase, so callers stay decoupled from the PPU's
// eventual pixel-rendering concerns, which are out of scope here.
//
// Timing constants are grounded on
// original_source/core/src/gga/graphics/mod.rs's scanline layout (4
// cycles/dot, 308 dots/line, 228 lines/frame, 240 visible columns, 160
// visible lines).
package ppu

const (
	CyclesPerDot  = 4
	DotsPerLine   = 308
	CyclesPerLine = CyclesPerDot * DotsPerLine // 1232
	VisibleDots   = 240
	HDrawCycles   = VisibleDots * CyclesPerDot // 960
	HBlankCycles  = CyclesPerLine - HDrawCycles
	VisibleLines  = 160
	TotalLines    = 228
)

// Phase identifies which half of a scanline the next scheduled event ends.
type Phase uint8

const (
	// PhaseHDraw is active from the start of a line through the end of its
	// visible drawing window; the event scheduled in this phase fires at
	// HBlank's start.
	PhaseHDraw Phase = iota
	// PhaseHBlank runs from HBlank's start to the next line's start.
	PhaseHBlank
)

// State is the PPU's entire timing position: which line, and which half of
// it the core is currently in.
type State struct {
	Line  uint16
	Phase Phase
}

// Initial is the timing state a fresh reset begins in: line 0, drawing.
var Initial = State{Line: 0, Phase: PhaseHDraw}

// Advance computes the state following the current one, how many cycles
// from now that transition is scheduled, and whether it marks the start of
// HBlank or VBlank (both only ever become true right as Advance returns the
// state that enters them).
func (s State) Advance() (next State, cyclesUntilNext uint64, enterHBlank, enterVBlank bool) {
	switch s.Phase {
	case PhaseHDraw:
		return State{Line: s.Line, Phase: PhaseHBlank}, HBlankCycles, true, false
	default:
		line := s.Line + 1
		if line >= TotalLines {
			line = 0
		}
		next = State{Line: line, Phase: PhaseHDraw}
		return next, HDrawCycles, false, line == VisibleLines
	}
}

// InVBlank reports whether a given line index falls within the 68-line
// VBlank period (lines 160..227).
func InVBlank(line uint16) bool { return line >= VisibleLines }
