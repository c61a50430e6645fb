package cart

import (
	"bytes"
	"strings"
)

// Header is the subset of the GBA cartridge header this core cares about:
// the human-readable title and the 4-character game code, both used only
// for diagnostics (the core never branches on them).
type Header struct {
	Title    string
	GameCode string
}

// titleOffset and gameCodeOffset are ROM byte offsets in the GBA cartridge
// header: a 12-byte ASCII, zero-terminated title at 0xA0, and a 4-byte
// game code immediately after it at 0xAC.
const (
	titleOffset    = 0xA0
	titleLen       = 12
	gameCodeOffset = 0xAC
	gameCodeLen    = 4
)

// ParseHeader reads the title and game code out of rom. It never fails: a
// ROM shorter than the header region simply yields empty strings, the same
// "never crash the core" posture the rest of this package takes.
func ParseHeader(rom []byte) Header {
	var h Header
	if len(rom) >= titleOffset+titleLen {
		raw := rom[titleOffset : titleOffset+titleLen]
		if i := bytes.IndexByte(raw, 0); i >= 0 {
			raw = raw[:i]
		}
		h.Title = strings.TrimRight(string(raw), "\x00")
	}
	if len(rom) >= gameCodeOffset+gameCodeLen {
		h.GameCode = string(rom[gameCodeOffset : gameCodeOffset+gameCodeLen])
	}
	return h
}

// saveMarkers lists the ASCII strings DetectSaveKind scans for, in the
// priority order the real cartridges' auto-detection follows: a ROM that
// happens to contain more than one marker takes the first match in this
// list, not the first occurrence by file offset.
var saveMarkers = []struct {
	marker string
	kind   SaveKind
}{
	{"FLASH1M_V", SaveFlash128},
	{"FLASH_V", SaveFlash64},
	{"FLASH512_V", SaveFlash64},
	{"SRAM_V", SaveSRAM},
	{"EEPROM_V", SaveEEPROM},
}

// DetectSaveKind scans the entire ROM image for the markers real GBA
// cartridges embed next to their save-memory driver code, and returns the
// highest-priority match. Absence of any marker means no backup memory.
func DetectSaveKind(rom []byte) SaveKind {
	for _, m := range saveMarkers {
		if bytes.Contains(rom, []byte(m.marker)) {
			return m.kind
		}
	}
	return SaveNone
}
