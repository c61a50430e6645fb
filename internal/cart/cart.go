// Package cart implements GBA cartridge backup memory: the SRAM, Flash
//64K/128K, and serial EEPROM state machines that back save data, plus
// header parsing and save-type auto-detection.
package cart

// SaveKind tags which backup memory technology a cartridge uses. At most
// one of the backing stores below is ever live for a given cartridge.
type SaveKind uint8

const (
	SaveNone SaveKind = iota
	SaveSRAM
	SaveFlash64
	SaveFlash128
	SaveEEPROM
)

func (k SaveKind) String() string {
	switch k {
	case SaveSRAM:
		return "SRAM"
	case SaveFlash64:
		return "FLASH64"
	case SaveFlash128:
		return "FLASH128"
	case SaveEEPROM:
		return "EEPROM"
	default:
		return "NONE"
	}
}

// Cartridge owns the ROM image (read-only for the run duration) and
// whichever single backup-memory implementation its header markers
// selected.
type Cartridge struct {
	ROM    []byte
	Header Header
	Kind   SaveKind

	sram   *SRAM
	flash  *Flash
	eeprom *EEPROM
}

// New parses rom's header, auto-detects its save type, and allocates the
// matching backing store.
func New(rom []byte) *Cartridge {
	c := &Cartridge{
		ROM:    rom,
		Header: ParseHeader(rom),
		Kind:   DetectSaveKind(rom),
	}
	switch c.Kind {
	case SaveSRAM:
		c.sram = NewSRAM()
	case SaveFlash64:
		c.flash = NewFlash64()
	case SaveFlash128:
		c.flash = NewFlash128()
	case SaveEEPROM:
		c.eeprom = NewEEPROM()
	}
	return c
}

// HasBackup reports whether this cartridge has any save memory at all.
func (c *Cartridge) HasBackup() bool { return c.Kind != SaveNone }

// ReadByte/WriteByte serve the 0x0E000000 SRAM/Flash save window. Calling
// these when the cartridge has no byte-addressed backup (EEPROM-only, or
// none) is a bus-level routing error and returns/discards 0xFF rather
// than panicking, matching the bus's open-bus "never fail" semantics.
func (c *Cartridge) ReadByte(addr uint32) byte {
	switch {
	case c.sram != nil:
		return c.sram.ReadByte(addr)
	case c.flash != nil:
		return c.flash.ReadByte(addr)
	default:
		return 0xFF
	}
}

func (c *Cartridge) WriteByte(addr uint32, v byte) {
	switch {
	case c.sram != nil:
		c.sram.WriteByte(addr, v)
	case c.flash != nil:
		c.flash.WriteByte(addr, v)
	}
}

// ReadHword/WriteHword serve the serial EEPROM window, one protocol bit per
// 16-bit DMA3 transfer unit.
func (c *Cartridge) ReadHword() uint16 {
	if c.eeprom == nil {
		return 1
	}
	return c.eeprom.ReadHword()
}

func (c *Cartridge) WriteHword(v uint16) {
	if c.eeprom != nil {
		c.eeprom.WriteHword(v)
	}
}

// Dma3Started notifies an EEPROM-backed cartridge that DMA channel 3 is
// about to begin a transfer of count units into the save window, for size
// auto-detection. It is a no-op for every other save type.
func (c *Cartridge) Dma3Started(count uint32) {
	if c.eeprom != nil {
		c.eeprom.Dma3Started(count)
	}
}

// SaveState returns the current backup-memory contents for persistence, or
// nil if this cartridge has no backup memory.
func (c *Cartridge) SaveState() []byte {
	switch {
	case c.sram != nil:
		return c.sram.SaveState()
	case c.flash != nil:
		return c.flash.SaveState()
	case c.eeprom != nil:
		return c.eeprom.SaveState()
	default:
		return nil
	}
}

// LoadState restores previously saved backup-memory contents.
func (c *Cartridge) LoadState(data []byte) {
	switch {
	case c.sram != nil:
		c.sram.LoadState(data)
	case c.flash != nil:
		c.flash.LoadState(data)
	case c.eeprom != nil:
		c.eeprom.LoadState(data)
	}
}
