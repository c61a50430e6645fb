package cart

import "testing"

func TestSRAM_ReadBackMatchesWrite(t *testing.T) {
	s := NewSRAM()
	s.WriteByte(0x1234, 0x42)
	if got := s.ReadByte(0x1234); got != 0x42 {
		t.Fatalf("got %#x, want 0x42", got)
	}
}

func TestSRAM_AddressWraps(t *testing.T) {
	s := NewSRAM()
	s.WriteByte(0x10, 0x7F)
	if got := s.ReadByte(sramSize + 0x10); got != 0x7F {
		t.Fatalf("expected address to wrap within the 32K window, got %#x", got)
	}
}

func TestSRAM_SaveLoadRoundTrip(t *testing.T) {
	s := NewSRAM()
	s.WriteByte(0, 0xAB)
	saved := s.SaveState()

	s2 := NewSRAM()
	s2.LoadState(saved)
	if got := s2.ReadByte(0); got != 0xAB {
		t.Fatalf("got %#x after round trip, want 0xAB", got)
	}
}
