package cpu

// stepARM fetches, decodes and executes one 32-bit ARM instruction.
func (c *CPU) stepARM(b Bus) {
	word := b.ReadWord(c.r.pc, c.nextAccessSeq)
	c.nextAccessSeq = true
	c.r.pc += 4

	cond := (word >> 28) & 0xF
	if !c.evalCondition(cond) {
		return
	}
	c.executeARM(b, word)
}

func (c *CPU) executeARM(b Bus, word uint32) {
	switch {
	case word&0x0FFFFFF0 == 0x012FFF10: // BX
		c.execBX(b, word)
	case (word>>24)&0xF == 0xF: // SWI
		c.enterException(b, ExceptionSWI)
	case (word>>25)&0x7 == 0x5: // B/BL
		c.execBranch(b, word)
	case (word>>25)&0x7 == 0x4: // block data transfer (LDM/STM)
		c.execBlockTransfer(b, word)
	case (word>>26)&0x3 == 0x1: // single data transfer (LDR/STR)
		c.execSingleTransfer(b, word)
	case word&0x0FB00FF0 == 0x01000090: // SWP/SWPB
		c.execSwap(b, word)
	case word&0x0FC000F0 == 0x00000090: // MUL/MLA
		c.execMultiply(b, word)
	case (word>>25)&0x7 == 0 && word&0x90 == 0x90 && (word>>7)&1 == 1: // halfword/signed transfer
		c.execHalfwordTransfer(b, word)
	case word&0x0FBF0FFF == 0x010F0000: // MRS
		c.execMRS(b, word)
	case word&0x0DB0F000 == 0x0120F000: // MSR (register or immediate)
		c.execMSR(b, word)
	case (word>>26)&0x3 == 0: // data processing
		c.execDataProcessing(b, word)
	default:
		c.warnUnknown(word)
	}
}

// isArithmeticOpcode reports whether a data-processing opcode is one of the
// addWithCarry-based arithmetic ops (as opposed to the pure logical ops),
// which alone update the V flag.
func isArithmeticOpcode(opcode uint32) bool {
	switch opcode {
	case 0x2, 0x3, 0x4, 0x5, 0x6, 0x7, 0xA, 0xB:
		return true
	default:
		return false
	}
}

func signExtend24(v uint32) int32 {
	v &= 0xFFFFFF
	if v&0x800000 != 0 {
		v |= 0xFF000000
	}
	return int32(v)
}

func (c *CPU) execBranch(b Bus, word uint32) {
	link := word&(1<<24) != 0
	offset := signExtend24(word&0xFFFFFF) << 2
	target := uint32(int32(c.readReg(15)) + offset)
	if link {
		c.writeReg(14, c.readReg(15)-4)
	}
	c.writeReg(15, target)
}

func (c *CPU) execBX(b Bus, word uint32) {
	rn := int(word & 0xF)
	target := c.readReg(rn)
	c.setThumb(target&1 != 0)
	c.writeReg(15, target)
}

// shifterOperand resolves ARM data-processing operand 2, returning the
// value and the shifter's carry-out (used only when S=1).
func (c *CPU) shifterOperand(b Bus, word uint32) (uint32, bool) {
	if word&(1<<25) != 0 {
		imm := word & 0xFF
		rot := ((word >> 8) & 0xF) * 2
		if rot == 0 {
			return imm, c.r.Flag(FlagC)
		}
		return rotateRight32(imm, rot), rotateRight32(imm, rot)&0x8000_0000 != 0
	}

	rm := int(word & 0xF)
	shiftType := (word >> 5) & 0x3
	var amount uint32
	immediateZero := false
	if word&(1<<4) != 0 {
		rs := int((word >> 8) & 0xF)
		amount = c.readReg(rs) & 0xFF
		if amount == 0 {
			return c.readReg(rm), c.r.Flag(FlagC)
		}
	} else {
		amount = (word >> 7) & 0x1F
		if amount == 0 {
			immediateZero = true
		}
	}
	val := c.readReg(rm)
	return barrelShift(shiftType, val, amount, c.r.Flag(FlagC), immediateZero)
}

func (c *CPU) execDataProcessing(b Bus, word uint32) {
	opcode := (word >> 21) & 0xF
	s := word&(1<<20) != 0
	rn := int((word >> 16) & 0xF)
	rd := int((word >> 12) & 0xF)

	op2, shiftCarry := c.shifterOperand(b, word)
	op1 := c.readReg(rn)

	var result uint32
	var n, z, cy, ov bool
	haveResult := true
	cyIn := c.r.Flag(FlagC)

	switch opcode {
	case 0x0: // AND
		result = op1 & op2
		cy = shiftCarry
	case 0x1: // EOR
		result = op1 ^ op2
		cy = shiftCarry
	case 0x2: // SUB
		result, n, z, cy, ov = addWithCarry(op1, ^op2, true)
	case 0x3: // RSB
		result, n, z, cy, ov = addWithCarry(op2, ^op1, true)
	case 0x4: // ADD
		result, n, z, cy, ov = addWithCarry(op1, op2, false)
	case 0x5: // ADC
		result, n, z, cy, ov = addWithCarry(op1, op2, cyIn)
	case 0x6: // SBC
		result, n, z, cy, ov = addWithCarry(op1, ^op2, cyIn)
	case 0x7: // RSC
		result, n, z, cy, ov = addWithCarry(op2, ^op1, cyIn)
	case 0x8: // TST
		result = op1 & op2
		cy = shiftCarry
		haveResult = false
	case 0x9: // TEQ
		result = op1 ^ op2
		cy = shiftCarry
		haveResult = false
	case 0xA: // CMP
		result, n, z, cy, ov = addWithCarry(op1, ^op2, true)
		haveResult = false
	case 0xB: // CMN
		result, n, z, cy, ov = addWithCarry(op1, op2, false)
		haveResult = false
	case 0xC: // ORR
		result = op1 | op2
		cy = shiftCarry
	case 0xD: // MOV
		result = op2
		cy = shiftCarry
	case 0xE: // BIC
		result = op1 &^ op2
		cy = shiftCarry
	default: // MVN
		result = ^op2
		cy = shiftCarry
	}

	if s {
		if rd == 15 {
			// Restore CPSR from SPSR, used by MOVS/SUBS PC,LR,... returning
			// from an exception.
			c.r.SetCPSR(c.r.SPSR())
		} else {
			n = result&0x8000_0000 != 0
			z = result == 0
			c.r.SetFlag(FlagN, n)
			c.r.SetFlag(FlagZ, z)
			c.r.SetFlag(FlagC, cy)
			if isArithmeticOpcode(opcode) {
				c.r.SetFlag(FlagV, ov)
			}
		}
	}

	if haveResult {
		c.writeReg(rd, result)
		if rd == 15 {
			c.idleNonSeq(b)
		}
	}
}

func (c *CPU) execMultiply(b Bus, word uint32) {
	accumulate := word&(1<<21) != 0
	s := word&(1<<20) != 0
	rd := int((word >> 16) & 0xF)
	rn := int((word >> 12) & 0xF)
	rs := int((word >> 8) & 0xF)
	rm := int(word & 0xF)

	result := c.readReg(rm) * c.readReg(rs)
	if accumulate {
		result += c.readReg(rn)
	}
	c.writeReg(rd, result)
	if s {
		c.r.SetFlag(FlagN, result&0x8000_0000 != 0)
		c.r.SetFlag(FlagZ, result == 0)
	}
	c.mulWaitCycles(b, c.readReg(rs), true)
	if accumulate {
		b.AddInternalCycles(1)
	}
}

func (c *CPU) execSwap(b Bus, word uint32) {
	byteSwap := word&(1<<22) != 0
	rn := int((word >> 16) & 0xF)
	rd := int((word >> 12) & 0xF)
	rm := int(word & 0xF)

	addr := c.readReg(rn)
	if byteSwap {
		old := b.ReadByte(addr, false)
		b.WriteByte(addr, byte(c.readReg(rm)), true)
		c.writeReg(rd, uint32(old))
	} else {
		old := b.ReadWord(addr, false)
		old = rotateRight32(old, (addr&3)*8)
		b.WriteWord(addr&^3, c.readReg(rm), true)
		c.writeReg(rd, old)
	}
	c.idleNonSeq(b)
}

func (c *CPU) execHalfwordTransfer(b Bus, word uint32) {
	load := word&(1<<20) != 0
	writeback := word&(1<<21) != 0
	immediate := word&(1<<22) != 0
	up := word&(1<<23) != 0
	pre := word&(1<<24) != 0
	sh := (word >> 5) & 0x3
	rn := int((word >> 16) & 0xF)
	rd := int((word >> 12) & 0xF)

	var offset uint32
	if immediate {
		offset = ((word>>8)&0xF)<<4 | (word & 0xF)
	} else {
		rm := int(word & 0xF)
		offset = c.readReg(rm)
	}

	base := c.readReg(rn)
	addr := base
	if pre {
		if up {
			addr = base + offset
		} else {
			addr = base - offset
		}
	}

	if load {
		var val uint32
		switch sh {
		case 1: // unsigned halfword
			raw := b.ReadHword(addr, false)
			val = uint32(rotateRight16(raw, (addr&1)*8))
			if addr&1 != 0 {
				val = uint32(uint16(val))
			}
		case 2: // signed byte
			val = signExtend8(b.ReadByte(addr, false))
		default: // 3: signed halfword
			raw := b.ReadHword(addr, false)
			if addr&1 != 0 {
				val = signExtend8(byte(raw >> 8))
			} else {
				val = signExtend16(raw)
			}
		}
		c.idleNonSeq(b)
		c.writeReg(rd, val)
	} else {
		b.WriteHword(addr&^1, uint16(c.readReg(rd)), false)
	}

	if !pre {
		if up {
			addr = base + offset
		} else {
			addr = base - offset
		}
		c.writeReg(rn, addr)
	} else if writeback {
		c.writeReg(rn, addr)
	}
}

func (c *CPU) execSingleTransfer(b Bus, word uint32) {
	immediate := word&(1<<25) == 0
	pre := word&(1<<24) != 0
	up := word&(1<<23) != 0
	byteAccess := word&(1<<22) != 0
	writeback := word&(1<<21) != 0
	load := word&(1<<20) != 0
	rn := int((word >> 16) & 0xF)
	rd := int((word >> 12) & 0xF)

	var offset uint32
	if immediate {
		offset = word & 0xFFF
	} else {
		rm := int(word & 0xF)
		shiftType := (word >> 5) & 0x3
		amount := (word >> 7) & 0x1F
		offset, _ = barrelShift(shiftType, c.readReg(rm), amount, c.r.Flag(FlagC), amount == 0)
	}

	base := c.readReg(rn)
	addr := base
	if pre {
		if up {
			addr = base + offset
		} else {
			addr = base - offset
		}
	}

	if load {
		if byteAccess {
			c.writeReg(rd, uint32(b.ReadByte(addr, false)))
		} else {
			raw := b.ReadWord(addr&^3, false)
			c.writeReg(rd, rotateRight32(raw, (addr&3)*8))
		}
		c.idleNonSeq(b)
	} else {
		if byteAccess {
			b.WriteByte(addr, byte(c.readReg(rd)), false)
		} else {
			b.WriteWord(addr&^3, c.readReg(rd), false)
		}
	}

	if !pre {
		if up {
			addr = base + offset
		} else {
			addr = base - offset
		}
		c.writeReg(rn, addr)
	} else if writeback {
		c.writeReg(rn, addr)
	}
}

// execBlockTransfer implements LDM/STM, including the empty-register-list
// edge case, grounded on inst_generic.rs::on_empty_rlist.
func (c *CPU) execBlockTransfer(b Bus, word uint32) {
	pre := word&(1<<24) != 0
	up := word&(1<<23) != 0
	psrBit := word&(1<<22) != 0
	writeback := word&(1<<21) != 0
	load := word&(1<<20) != 0
	rn := int((word >> 16) & 0xF)
	rlist := word & 0xFFFF

	if rlist == 0 {
		c.onEmptyRlist(b, rn, !load, up, pre)
		return
	}

	addr := c.readReg(rn)
	count := 0
	for i := 0; i < 16; i++ {
		if rlist&(1<<uint(i)) != 0 {
			count++
		}
	}
	start := addr
	if !up {
		start = addr - uint32(count)*4
	}
	cur := start
	if (up && pre) || (!up && !pre) {
		cur += 4
	}

	seq := false
	usr := psrBit && !(load && rlist&(1<<15) != 0)
	for i := 0; i < 16; i++ {
		if rlist&(1<<uint(i)) == 0 {
			continue
		}
		if load {
			val := b.ReadWord(cur, seq)
			if usr {
				// User-bank transfer: write directly to the user-mode bank,
				// bypassing the currently banked register.
				c.writeUserReg(i, val)
			} else {
				c.writeReg(i, val)
			}
		} else {
			var val uint32
			if usr {
				val = c.readUserReg(i)
			} else {
				val = c.readReg(i)
			}
			b.WriteWord(cur, val, seq)
		}
		seq = true
		cur += 4
	}

	if psrBit && load && rlist&(1<<15) != 0 {
		c.r.SetCPSR(c.r.SPSR())
	}

	if writeback {
		if up {
			c.writeReg(rn, addr+uint32(count)*4)
		} else {
			c.writeReg(rn, addr-uint32(count)*4)
		}
	}
	if load {
		c.idleNonSeq(b)
	}
}

func (c *CPU) readUserReg(n int) uint32 {
	if n >= 8 && n <= 12 && c.r.Mode() == ModeFiq {
		return c.r.normal8_12[n-8]
	}
	if n == 13 {
		return c.r.bankedSP[bankIndex(ModeUser)]
	}
	if n == 14 {
		return c.r.bankedLR[bankIndex(ModeUser)]
	}
	return c.readReg(n)
}

func (c *CPU) writeUserReg(n int, v uint32) {
	if n >= 8 && n <= 12 && c.r.Mode() == ModeFiq {
		c.r.normal8_12[n-8] = v
		return
	}
	if n == 13 {
		c.r.bankedSP[bankIndex(ModeUser)] = v
		return
	}
	if n == 14 {
		c.r.bankedLR[bankIndex(ModeUser)] = v
		return
	}
	c.writeReg(n, v)
}

// onEmptyRlist reproduces inst_generic.rs::on_empty_rlist exactly: transfer
// R15 and adjust the base register by ±0x40 regardless of the actual
// (empty) register list.
func (c *CPU) onEmptyRlist(b Bus, rn int, store bool, up bool, pre bool) {
	addr := c.readReg(rn)
	if up {
		c.writeReg(rn, addr+0x40)
	} else {
		c.writeReg(rn, addr-0x40)
	}

	if store {
		var target uint32
		switch {
		case up && pre:
			target = addr + 4
		case up && !pre:
			target = addr
		case !up && pre:
			target = addr - 0x40
		default:
			target = addr - 0x3C
		}
		b.WriteWord(target, c.readReg(15), false)
	} else {
		val := b.ReadWord(addr, false)
		c.writeReg(15, val)
	}
}

func (c *CPU) execMRS(b Bus, word uint32) {
	useSPSR := word&(1<<22) != 0
	rd := int((word >> 12) & 0xF)
	if useSPSR {
		c.writeReg(rd, c.r.SPSR())
	} else {
		c.writeReg(rd, c.r.CPSR())
	}
}

func (c *CPU) execMSR(b Bus, word uint32) {
	useSPSR := word&(1<<22) != 0
	flagsOnly := word&(1<<16) == 0

	var value uint32
	if word&(1<<25) != 0 {
		imm := word & 0xFF
		rot := ((word >> 8) & 0xF) * 2
		value = rotateRight32(imm, rot)
	} else {
		rm := int(word & 0xF)
		value = c.readReg(rm)
	}

	const flagsMask = 0xF000_0000
	const controlMask = 0x0000_00FF

	if useSPSR {
		cur := c.r.SPSR()
		if flagsOnly {
			cur = (cur &^ flagsMask) | (value & flagsMask)
		} else {
			cur = (cur &^ (flagsMask | controlMask)) | (value & (flagsMask | controlMask))
		}
		c.r.SetSPSR(cur)
		return
	}

	cur := c.r.CPSR()
	if flagsOnly {
		cur = (cur &^ flagsMask) | (value & flagsMask)
	} else {
		cur = (cur &^ (flagsMask | controlMask)) | (value & (flagsMask | controlMask))
	}
	c.r.SetCPSR(cur)
}
