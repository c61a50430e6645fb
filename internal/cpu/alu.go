package cpu

// evalCondition implements the ARM condition-code table, grounded on
// original_source/core/src/gga/cpu/inst_generic.rs::eval_condition.
func (c *CPU) evalCondition(cond uint32) bool {
	n := c.r.Flag(FlagN)
	z := c.r.Flag(FlagZ)
	cf := c.r.Flag(FlagC)
	v := c.r.Flag(FlagV)
	switch cond {
	case 0x0:
		return z
	case 0x1:
		return !z
	case 0x2:
		return cf
	case 0x3:
		return !cf
	case 0x4:
		return n
	case 0x5:
		return !n
	case 0x6:
		return v
	case 0x7:
		return !v
	case 0x8:
		return cf && !z
	case 0x9:
		return !cf || z
	case 0xA:
		return n == v
	case 0xB:
		return n != v
	case 0xC:
		return !z && (n == v)
	case 0xD:
		return z || (n != v)
	case 0xE:
		return true
	default: // 0xF reserved NV: never taken
		return false
	}
}

// addWithCarry performs a+b+carryIn and reports the NZCV flags that result,
// the shared core of ADD/ADC/CMN and (via inversion) SUB/SBC/CMP.
func addWithCarry(a, b uint32, carryIn bool) (result uint32, n, z, cy, ov bool) {
	var c64 uint64
	if carryIn {
		c64 = 1
	}
	sum := uint64(a) + uint64(b) + c64
	result = uint32(sum)
	n = result&0x8000_0000 != 0
	z = result == 0
	cy = sum > 0xFFFF_FFFF
	signA := a&0x8000_0000 != 0
	signB := b&0x8000_0000 != 0
	signR := result&0x8000_0000 != 0
	ov = signA == signB && signR != signA
	return
}

// barrelShift applies one of the four ARM shift types. For register-specified
// shift amounts of zero with LSL, the carry is passed through unchanged; the
// documented special cases for immediate shift amount 0 (LSR/ASR #32, ROR
// becomes RRX) are handled by the caller passing the already-resolved
// amount and distinguishing immediate vs register forms via immediateZero.
func barrelShift(kind uint32, value uint32, amount uint32, carryIn bool, immediateZero bool) (result uint32, carryOut bool) {
	switch kind {
	case 0: // LSL
		switch {
		case amount == 0:
			return value, carryIn
		case amount < 32:
			return value << amount, (value>>(32-amount))&1 != 0
		case amount == 32:
			return 0, value&1 != 0
		default:
			return 0, false
		}
	case 1: // LSR
		if immediateZero {
			amount = 32
		}
		switch {
		case amount == 0:
			return value, carryIn
		case amount < 32:
			return value >> amount, (value>>(amount-1))&1 != 0
		case amount == 32:
			return 0, value&0x8000_0000 != 0
		default:
			return 0, false
		}
	case 2: // ASR
		if immediateZero {
			amount = 32
		}
		sval := int32(value)
		switch {
		case amount == 0:
			return value, carryIn
		case amount < 32:
			return uint32(sval >> amount), (value>>(amount-1))&1 != 0
		default:
			if sval < 0 {
				return 0xFFFF_FFFF, true
			}
			return 0, false
		}
	default: // ROR (and RRX when immediateZero)
		if immediateZero {
			// RRX: rotate right by 1 through the carry flag.
			var c uint32
			if carryIn {
				c = 1
			}
			result = (value >> 1) | (c << 31)
			return result, value&1 != 0
		}
		if amount == 0 {
			return value, carryIn
		}
		amount &= 31
		if amount == 0 {
			return value, value&0x8000_0000 != 0
		}
		result = (value >> amount) | (value << (32 - amount))
		return result, result&0x8000_0000 != 0
	}
}

// rotateRight32 implements the hardware's unaligned-load replication rule:
// a misaligned LDR/SWP/LDRH rotates the fetched aligned value right by
// (addr&mask)*8 bits rather than masking the low bits away.
func rotateRight32(v uint32, amount uint32) uint32 {
	amount &= 31
	if amount == 0 {
		return v
	}
	return (v >> amount) | (v << (32 - amount))
}

func rotateRight16(v uint16, amount uint32) uint16 {
	amount &= 15
	if amount == 0 {
		return v
	}
	return (v >> amount) | (v << (16 - amount))
}

func signExtend8(v byte) uint32  { return uint32(int32(int8(v))) }
func signExtend16(v uint16) uint32 { return uint32(int32(int16(v))) }
