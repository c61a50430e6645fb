package cart

const (
	flashBankSize = 0x10000
	sectorSize    = 0x1000
)

type flashStage uint8

const (
	stageNone flashStage = iota
	stageFirstWritten
	stageSecondWritten
)

type flashMode uint8

const (
	modeRegular flashMode = iota
	modeWrite
	modeID
	modeErase
	modeBankSelect
)

// Macronix device IDs returned while in ID mode, per the real chips these
// cartridges ship with.
var (
	flash64ID  = [2]byte{0xC2, 0x1C}
	flash128ID = [2]byte{0xC2, 0x09}
)

// Flash models the 64K single-bank and 128K dual-bank Flash chips used for
// cartridge saves: a two-step unlock sequence gates every command, and a
// handful of commands switch between regular reads, a single pending byte
// write, chip/sector erase, device-ID readback, and (128K only) bank
// selection.
type Flash struct {
	ram    []byte
	banked bool // true for 128K (two 64K banks)
	bank   int
	stage  flashStage
	mode   flashMode
}

// NewFlash64 returns a single-bank 64 KiB Flash chip.
func NewFlash64() *Flash { return newFlash(flashBankSize, false) }

// NewFlash128 returns a dual-bank 128 KiB Flash chip.
func NewFlash128() *Flash { return newFlash(2*flashBankSize, true) }

func newFlash(size int, banked bool) *Flash {
	f := &Flash{ram: make([]byte, size), banked: banked}
	for i := range f.ram {
		f.ram[i] = 0xFF
	}
	return f
}

func (f *Flash) bankOffset() int {
	if f.banked {
		return f.bank * flashBankSize
	}
	return 0
}

// ReadByte returns the stored byte, or the Macronix device ID pair while in
// ID mode.
func (f *Flash) ReadByte(addr uint32) byte {
	off := addr & 0xFFFF
	if f.mode == modeID {
		id := flash64ID
		if f.banked {
			id = flash128ID
		}
		return id[off&1]
	}
	return f.ram[f.bankOffset()+int(off)]
}

// WriteByte drives the two-step unlock/command state machine common to
// Macronix-compatible flash parts.
func (f *Flash) WriteByte(addr uint32, v byte) {
	off := addr & 0xFFFF

	if f.mode == modeWrite {
		f.ram[f.bankOffset()+int(off)] = v
		f.mode = modeRegular
		f.stage = stageNone
		return
	}
	if f.mode == modeBankSelect && off == 0 {
		f.bank = int(v & 1)
		f.mode = modeRegular
		f.stage = stageNone
		return
	}
	if f.mode == modeErase && v == 0x30 && f.stage == stageSecondWritten {
		f.eraseSector(off)
		f.mode = modeRegular
		f.stage = stageNone
		return
	}

	switch f.stage {
	case stageNone:
		if off == 0x5555 && v == 0xAA {
			f.stage = stageFirstWritten
		}
	case stageFirstWritten:
		if off == 0x2AAA && v == 0x55 {
			f.stage = stageSecondWritten
		} else {
			f.stage = stageNone
		}
	case stageSecondWritten:
		if off == 0x5555 {
			f.applyCommand(v)
		}
		f.stage = stageNone
	}
}

func (f *Flash) applyCommand(cmd byte) {
	switch cmd {
	case 0x80:
		f.mode = modeErase
	case 0x10:
		if f.mode == modeErase {
			for i := range f.ram {
				f.ram[i] = 0xFF
			}
		}
		f.mode = modeRegular
	case 0xA0:
		f.mode = modeWrite
	case 0xB0:
		if f.banked {
			f.mode = modeBankSelect
		} else {
			f.mode = modeRegular
		}
	case 0x90:
		f.mode = modeID
	case 0xF0:
		f.mode = modeRegular
	default:
		// FlashUnknownCommand: ignored; WriteByte resets the stage to
		// stageNone once this returns.
		f.mode = modeRegular
	}
}

func (f *Flash) eraseSector(off uint32) {
	start := f.bankOffset() + int(off&^uint32(sectorSize-1))
	for i := 0; i < sectorSize; i++ {
		f.ram[start+i] = 0xFF
	}
}

// SaveState returns a copy of the backing RAM only; the bank selection and
// the unlock-sequence stage/mode are not included.
func (f *Flash) SaveState() []byte {
	out := make([]byte, len(f.ram))
	copy(out, f.ram)
	return out
}

// LoadState restores previously saved RAM content.
func (f *Flash) LoadState(data []byte) {
	copy(f.ram, data)
}
