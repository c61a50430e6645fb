package cart

// sramSize is the fixed 32 KiB window real GBA SRAM chips expose.
const sramSize = 0x8000

// SRAM is a flat, battery-backed 32 KiB byte array mapped into the
// 0x0E000000 cartridge save window. It needs no state machine: every
// address in range reads back whatever was last written there.
type SRAM struct {
	ram [sramSize]byte
}

// NewSRAM returns SRAM pre-filled as erased flash-adjacent chips commonly
// ship (0xFF), matching the "fresh init" baseline the Flash state machine
// also uses.
func NewSRAM() *SRAM {
	s := &SRAM{}
	for i := range s.ram {
		s.ram[i] = 0xFF
	}
	return s
}

func (s *SRAM) ReadByte(addr uint32) byte {
	return s.ram[addr&(sramSize-1)]
}

func (s *SRAM) WriteByte(addr uint32, v byte) {
	s.ram[addr&(sramSize-1)] = v
}

// SaveState returns a copy of the backing RAM for persistence.
func (s *SRAM) SaveState() []byte {
	out := make([]byte, sramSize)
	copy(out, s.ram[:])
	return out
}

// LoadState restores previously saved RAM content; a short or empty buffer
// leaves any trailing bytes untouched.
func (s *SRAM) LoadState(data []byte) {
	copy(s.ram[:], data)
}
