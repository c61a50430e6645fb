package ppu

import "testing"

func TestInitialState(t *testing.T) {
	if Initial.Line != 0 || Initial.Phase != PhaseHDraw {
		t.Fatalf("Initial got %+v, want line 0 in HDraw", Initial)
	}
}

func TestAdvanceIntoHBlank(t *testing.T) {
	next, cycles, enterHBlank, enterVBlank := Initial.Advance()
	if !enterHBlank || enterVBlank {
		t.Fatalf("first Advance should enter HBlank only, got hb=%v vb=%v", enterHBlank, enterVBlank)
	}
	if next.Line != 0 || next.Phase != PhaseHBlank {
		t.Fatalf("got %+v, want line 0 in HBlank", next)
	}
	if cycles != HBlankCycles {
		t.Fatalf("cyclesUntilNext got %d, want %d", cycles, HBlankCycles)
	}
}

func TestAdvanceIntoNextLine(t *testing.T) {
	hblank := State{Line: 0, Phase: PhaseHBlank}
	next, cycles, enterHBlank, enterVBlank := hblank.Advance()
	if enterHBlank || enterVBlank {
		t.Fatalf("line 0 -> line 1 should not enter HBlank or VBlank, got hb=%v vb=%v", enterHBlank, enterVBlank)
	}
	if next.Line != 1 || next.Phase != PhaseHDraw {
		t.Fatalf("got %+v, want line 1 in HDraw", next)
	}
	if cycles != HDrawCycles {
		t.Fatalf("cyclesUntilNext got %d, want %d", cycles, HDrawCycles)
	}
}

func TestAdvanceEntersVBlank(t *testing.T) {
	lastVisible := State{Line: VisibleLines - 1, Phase: PhaseHBlank}
	next, _, _, enterVBlank := lastVisible.Advance()
	if !enterVBlank {
		t.Fatalf("line %d -> %d should enter VBlank", VisibleLines-1, VisibleLines)
	}
	if next.Line != VisibleLines {
		t.Fatalf("got line %d, want %d", next.Line, VisibleLines)
	}
}

func TestAdvanceWrapsAtTotalLines(t *testing.T) {
	lastLine := State{Line: TotalLines - 1, Phase: PhaseHBlank}
	next, _, _, enterVBlank := lastLine.Advance()
	if enterVBlank {
		t.Fatalf("wrapping back to line 0 should not re-enter VBlank")
	}
	if next.Line != 0 || next.Phase != PhaseHDraw {
		t.Fatalf("got %+v, want line 0 in HDraw", next)
	}
}

func TestInVBlank(t *testing.T) {
	if InVBlank(VisibleLines - 1) {
		t.Fatalf("line %d is still visible, should not be VBlank", VisibleLines-1)
	}
	if !InVBlank(VisibleLines) {
		t.Fatalf("line %d should be the first VBlank line", VisibleLines)
	}
	if !InVBlank(TotalLines - 1) {
		t.Fatalf("line %d is the last VBlank line", TotalLines-1)
	}
}

func TestFullFrameCycleCount(t *testing.T) {
	s := Initial
	var total uint64
	for i := 0; i < TotalLines*2; i++ {
		next, cycles, _, _ := s.Advance()
		total += cycles
		s = next
	}
	if want := uint64(CyclesPerLine) * TotalLines; total != want {
		t.Fatalf("total cycles for one full frame got %d, want %d", total, want)
	}
}
