package cart

import "testing"

func makeROM(size int) []byte {
	rom := make([]byte, size)
	for i := range rom {
		rom[i] = 0xFF
	}
	return rom
}

func TestParseHeader_TitleAndGameCode(t *testing.T) {
	rom := makeROM(0x200)
	copy(rom[titleOffset:], "POKEMON EME\x00")
	copy(rom[gameCodeOffset:], "BPEE")

	h := ParseHeader(rom)
	if h.Title != "POKEMON EME" {
		t.Fatalf("got title %q", h.Title)
	}
	if h.GameCode != "BPEE" {
		t.Fatalf("got game code %q", h.GameCode)
	}
}

func TestDetectSaveKind_Priority(t *testing.T) {
	cases := []struct {
		marker string
		want   SaveKind
	}{
		{"FLASH1M_V110", SaveFlash128},
		{"FLASH_V130", SaveFlash64},
		{"FLASH512_V130", SaveFlash64},
		{"SRAM_V113", SaveSRAM},
		{"EEPROM_V120", SaveEEPROM},
	}
	for _, c := range cases {
		rom := makeROM(0x1000)
		copy(rom[0x300:], c.marker)
		if got := DetectSaveKind(rom); got != c.want {
			t.Fatalf("marker %q: got %v, want %v", c.marker, got, c.want)
		}
	}
}

func TestDetectSaveKind_PrefersHigherPriorityMarker(t *testing.T) {
	rom := makeROM(0x1000)
	copy(rom[0x300:], "SRAM_V113")
	copy(rom[0x500:], "FLASH1M_V110")
	if got := DetectSaveKind(rom); got != SaveFlash128 {
		t.Fatalf("expected FLASH1M_V to win over SRAM_V, got %v", got)
	}
}

func TestDetectSaveKind_None(t *testing.T) {
	rom := makeROM(0x1000)
	if got := DetectSaveKind(rom); got != SaveNone {
		t.Fatalf("expected SaveNone, got %v", got)
	}
}
