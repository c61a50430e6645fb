package cpu

// stepThumb fetches, decodes and executes one 16-bit THUMB instruction.
func (c *CPU) stepThumb(b Bus) {
	op := b.ReadHword(c.r.pc, c.nextAccessSeq)
	c.nextAccessSeq = true
	c.r.pc += 2
	c.executeThumb(b, op)
}

func (c *CPU) executeThumb(b Bus, op uint16) {
	switch {
	case op&0xF800 == 0x1800: // add/subtract
		c.thumbAddSub(b, op)
	case op&0xE000 == 0x0000: // move shifted register
		c.thumbMoveShifted(b, op)
	case op&0xE000 == 0x2000: // move/compare/add/subtract immediate
		c.thumbImmediateOp(b, op)
	case op&0xFC00 == 0x4000: // ALU operations
		c.thumbALU(b, op)
	case op&0xFC00 == 0x4400: // hi register ops / BX
		c.thumbHiRegBX(b, op)
	case op&0xF800 == 0x4800: // PC-relative load
		c.thumbPCRelativeLoad(b, op)
	case op&0xF200 == 0x5000: // load/store with register offset
		c.thumbLoadStoreRegOffset(b, op)
	case op&0xF200 == 0x5200: // load/store sign-extended byte/halfword
		c.thumbLoadStoreSignExtended(b, op)
	case op&0xE000 == 0x6000: // load/store with immediate offset (word/byte)
		c.thumbLoadStoreImmOffset(b, op)
	case op&0xF000 == 0x8000: // load/store halfword
		c.thumbLoadStoreHalfword(b, op)
	case op&0xF000 == 0x9000: // SP-relative load/store
		c.thumbSPRelative(b, op)
	case op&0xF000 == 0xA000: // load address
		c.thumbLoadAddress(b, op)
	case op&0xFF00 == 0xB000: // add offset to SP
		c.thumbAddSPOffset(b, op)
	case op&0xF600 == 0xB400: // push/pop registers
		c.thumbPushPop(b, op)
	case op&0xF000 == 0xC000: // multiple load/store
		c.thumbMultipleTransfer(b, op)
	case op&0xFF00 == 0xDF00: // SWI
		c.enterException(b, ExceptionSWI)
	case op&0xF000 == 0xD000: // conditional branch
		c.thumbCondBranch(b, op)
	case op&0xF800 == 0xE000: // unconditional branch
		c.thumbUncondBranch(b, op)
	case op&0xF000 == 0xF000: // long branch with link
		c.thumbBranchLink(b, op)
	default:
		c.warnUnknown(uint32(op))
	}
}

func (c *CPU) setNZ(v uint32) {
	c.r.SetFlag(FlagN, v&0x8000_0000 != 0)
	c.r.SetFlag(FlagZ, v == 0)
}

func (c *CPU) thumbMoveShifted(b Bus, op uint16) {
	shiftType := uint32((op >> 11) & 0x3)
	amount := uint32((op >> 6) & 0x1F)
	rs := int((op >> 3) & 0x7)
	rd := int(op & 0x7)

	val := c.readReg(rs)
	result, carry := barrelShift(shiftType, val, amount, c.r.Flag(FlagC), amount == 0)
	c.writeReg(rd, result)
	c.setNZ(result)
	c.r.SetFlag(FlagC, carry)
}

func (c *CPU) thumbAddSub(b Bus, op uint16) {
	immediate := op&(1<<10) != 0
	subtract := op&(1<<9) != 0
	rn := int((op >> 6) & 0x7)
	rs := int((op >> 3) & 0x7)
	rd := int(op & 0x7)

	var operand uint32
	if immediate {
		operand = uint32(rn)
	} else {
		operand = c.readReg(rn)
	}

	op1 := c.readReg(rs)
	var result uint32
	var n, z, cy, ov bool
	if subtract {
		result, n, z, cy, ov = addWithCarry(op1, ^operand, true)
	} else {
		result, n, z, cy, ov = addWithCarry(op1, operand, false)
	}
	c.writeReg(rd, result)
	c.r.SetFlag(FlagN, n)
	c.r.SetFlag(FlagZ, z)
	c.r.SetFlag(FlagC, cy)
	c.r.SetFlag(FlagV, ov)
}

func (c *CPU) thumbImmediateOp(b Bus, op uint16) {
	kind := (op >> 11) & 0x3
	rd := int((op >> 8) & 0x7)
	imm := uint32(op & 0xFF)

	op1 := c.readReg(rd)
	var result uint32
	var n, z, cy, ov bool
	switch kind {
	case 0: // MOV
		result = imm
		n, z = result&0x8000_0000 != 0, result == 0
		c.writeReg(rd, result)
		c.r.SetFlag(FlagN, n)
		c.r.SetFlag(FlagZ, z)
		return
	case 1: // CMP
		result, n, z, cy, ov = addWithCarry(op1, ^imm, true)
	case 2: // ADD
		result, n, z, cy, ov = addWithCarry(op1, imm, false)
		c.writeReg(rd, result)
	default: // SUB
		result, n, z, cy, ov = addWithCarry(op1, ^imm, true)
		c.writeReg(rd, result)
	}
	c.r.SetFlag(FlagN, n)
	c.r.SetFlag(FlagZ, z)
	c.r.SetFlag(FlagC, cy)
	c.r.SetFlag(FlagV, ov)
}

func (c *CPU) thumbALU(b Bus, op uint16) {
	kind := (op >> 6) & 0xF
	rs := int((op >> 3) & 0x7)
	rd := int(op & 0x7)

	op1 := c.readReg(rd)
	op2 := c.readReg(rs)
	var result uint32
	var n, z, cy, ov bool
	write := true
	flagsArith := false

	switch kind {
	case 0x0: // AND
		result = op1 & op2
	case 0x1: // EOR
		result = op1 ^ op2
	case 0x2: // LSL
		result, cy = barrelShift(0, op1, op2&0xFF, c.r.Flag(FlagC), false)
		c.r.SetFlag(FlagC, cy)
	case 0x3: // LSR
		result, cy = barrelShift(1, op1, op2&0xFF, c.r.Flag(FlagC), false)
		c.r.SetFlag(FlagC, cy)
	case 0x4: // ASR
		result, cy = barrelShift(2, op1, op2&0xFF, c.r.Flag(FlagC), false)
		c.r.SetFlag(FlagC, cy)
	case 0x5: // ADC
		result, n, z, cy, ov = addWithCarry(op1, op2, c.r.Flag(FlagC))
		flagsArith = true
	case 0x6: // SBC
		result, n, z, cy, ov = addWithCarry(op1, ^op2, c.r.Flag(FlagC))
		flagsArith = true
	case 0x7: // ROR
		result, cy = barrelShift(3, op1, op2&0xFF, c.r.Flag(FlagC), false)
		c.r.SetFlag(FlagC, cy)
	case 0x8: // TST
		result = op1 & op2
		write = false
	case 0x9: // NEG
		result, n, z, cy, ov = addWithCarry(0, ^op2, true)
		flagsArith = true
	case 0xA: // CMP
		result, n, z, cy, ov = addWithCarry(op1, ^op2, true)
		flagsArith = true
		write = false
	case 0xB: // CMN
		result, n, z, cy, ov = addWithCarry(op1, op2, false)
		flagsArith = true
		write = false
	case 0xC: // ORR
		result = op1 | op2
	case 0xD: // MUL
		result = op1 * op2
		c.mulWaitCycles(b, op2, true)
	case 0xE: // BIC
		result = op1 &^ op2
	default: // MVN
		result = ^op2
	}

	if write {
		c.writeReg(rd, result)
	}
	if !flagsArith {
		n = result&0x8000_0000 != 0
		z = result == 0
	}
	c.r.SetFlag(FlagN, n)
	c.r.SetFlag(FlagZ, z)
	if flagsArith {
		c.r.SetFlag(FlagC, cy)
		c.r.SetFlag(FlagV, ov)
	}
}

func (c *CPU) thumbHiRegBX(b Bus, op uint16) {
	kind := (op >> 8) & 0x3
	hRd := op&(1<<7) != 0
	hRs := op&(1<<6) != 0
	rs := int((op >> 3) & 0x7)
	rd := int(op & 0x7)
	if hRs {
		rs += 8
	}
	if hRd {
		rd += 8
	}

	switch kind {
	case 0: // ADD
		c.writeReg(rd, c.readReg(rd)+c.readReg(rs))
	case 1: // CMP
		result, n, z, cy, ov := addWithCarry(c.readReg(rd), ^c.readReg(rs), true)
		_ = result
		c.r.SetFlag(FlagN, n)
		c.r.SetFlag(FlagZ, z)
		c.r.SetFlag(FlagC, cy)
		c.r.SetFlag(FlagV, ov)
	case 2: // MOV
		c.writeReg(rd, c.readReg(rs))
	default: // BX (and BLX, treated identically here)
		target := c.readReg(rs)
		c.setThumb(target&1 != 0)
		c.writeReg(15, target)
	}
}

func (c *CPU) thumbPCRelativeLoad(b Bus, op uint16) {
	rd := int((op >> 8) & 0x7)
	imm := uint32(op&0xFF) << 2
	base := (c.readReg(15)) &^ 3
	val := b.ReadWord(base+imm, false)
	c.idleNonSeq(b)
	c.writeReg(rd, val)
}

func (c *CPU) thumbLoadStoreRegOffset(b Bus, op uint16) {
	load := op&(1<<11) != 0
	byteAccess := op&(1<<10) != 0
	ro := int((op >> 6) & 0x7)
	rb := int((op >> 3) & 0x7)
	rd := int(op & 0x7)
	addr := c.readReg(rb) + c.readReg(ro)

	if load {
		if byteAccess {
			c.writeReg(rd, uint32(b.ReadByte(addr, false)))
		} else {
			c.writeReg(rd, rotateRight32(b.ReadWord(addr&^3, false), (addr&3)*8))
		}
		c.idleNonSeq(b)
	} else {
		if byteAccess {
			b.WriteByte(addr, byte(c.readReg(rd)), false)
		} else {
			b.WriteWord(addr&^3, c.readReg(rd), false)
		}
	}
}

func (c *CPU) thumbLoadStoreSignExtended(b Bus, op uint16) {
	hFlag := op&(1<<11) != 0
	signFlag := op&(1<<10) != 0
	ro := int((op >> 6) & 0x7)
	rb := int((op >> 3) & 0x7)
	rd := int(op & 0x7)
	addr := c.readReg(rb) + c.readReg(ro)

	switch {
	case !signFlag && !hFlag: // STRH
		b.WriteHword(addr&^1, uint16(c.readReg(rd)), false)
		return
	case !signFlag && hFlag: // LDRH
		raw := b.ReadHword(addr, false)
		val := uint32(rotateRight16(raw, (addr&1)*8))
		c.writeReg(rd, val)
	case signFlag && !hFlag: // LDSB
		c.writeReg(rd, signExtend8(b.ReadByte(addr, false)))
	default: // LDSH
		raw := b.ReadHword(addr, false)
		var val uint32
		if addr&1 != 0 {
			val = signExtend8(byte(raw >> 8))
		} else {
			val = signExtend16(raw)
		}
		c.writeReg(rd, val)
	}
	c.idleNonSeq(b)
}

func (c *CPU) thumbLoadStoreImmOffset(b Bus, op uint16) {
	byteAccess := op&(1<<12) != 0
	load := op&(1<<11) != 0
	imm := uint32((op >> 6) & 0x1F)
	rb := int((op >> 3) & 0x7)
	rd := int(op & 0x7)

	var addr uint32
	if byteAccess {
		addr = c.readReg(rb) + imm
	} else {
		addr = c.readReg(rb) + imm*4
	}

	if load {
		if byteAccess {
			c.writeReg(rd, uint32(b.ReadByte(addr, false)))
		} else {
			c.writeReg(rd, rotateRight32(b.ReadWord(addr&^3, false), (addr&3)*8))
		}
		c.idleNonSeq(b)
	} else {
		if byteAccess {
			b.WriteByte(addr, byte(c.readReg(rd)), false)
		} else {
			b.WriteWord(addr&^3, c.readReg(rd), false)
		}
	}
}

func (c *CPU) thumbLoadStoreHalfword(b Bus, op uint16) {
	load := op&(1<<11) != 0
	imm := uint32((op>>6)&0x1F) * 2
	rb := int((op >> 3) & 0x7)
	rd := int(op & 0x7)
	addr := c.readReg(rb) + imm

	if load {
		raw := b.ReadHword(addr, false)
		c.writeReg(rd, uint32(rotateRight16(raw, (addr&1)*8)))
		c.idleNonSeq(b)
	} else {
		b.WriteHword(addr&^1, uint16(c.readReg(rd)), false)
	}
}

func (c *CPU) thumbSPRelative(b Bus, op uint16) {
	load := op&(1<<11) != 0
	rd := int((op >> 8) & 0x7)
	imm := uint32(op&0xFF) << 2
	addr := c.readReg(13) + imm

	if load {
		c.writeReg(rd, rotateRight32(b.ReadWord(addr&^3, false), (addr&3)*8))
		c.idleNonSeq(b)
	} else {
		b.WriteWord(addr&^3, c.readReg(rd), false)
	}
}

func (c *CPU) thumbLoadAddress(b Bus, op uint16) {
	usesSP := op&(1<<11) != 0
	rd := int((op >> 8) & 0x7)
	imm := uint32(op&0xFF) << 2
	var base uint32
	if usesSP {
		base = c.readReg(13)
	} else {
		base = c.readReg(15) &^ 3
	}
	c.writeReg(rd, base+imm)
}

func (c *CPU) thumbAddSPOffset(b Bus, op uint16) {
	negative := op&(1<<7) != 0
	imm := uint32(op&0x7F) << 2
	sp := c.readReg(13)
	if negative {
		c.writeReg(13, sp-imm)
	} else {
		c.writeReg(13, sp+imm)
	}
}

func (c *CPU) thumbPushPop(b Bus, op uint16) {
	load := op&(1<<11) != 0
	includePCLR := op&(1<<8) != 0
	rlist := uint16(op & 0xFF)

	if load { // POP
		sp := c.readReg(13)
		seq := false
		for i := 0; i < 8; i++ {
			if rlist&(1<<uint(i)) == 0 {
				continue
			}
			c.writeReg(i, b.ReadWord(sp, seq))
			seq = true
			sp += 4
		}
		if includePCLR {
			pcVal := b.ReadWord(sp, seq)
			sp += 4
			c.writeReg(15, pcVal&^1)
		}
		c.writeReg(13, sp)
		c.idleNonSeq(b)
	} else { // PUSH
		count := 0
		for i := 0; i < 8; i++ {
			if rlist&(1<<uint(i)) != 0 {
				count++
			}
		}
		if includePCLR {
			count++
		}
		sp := c.readReg(13) - uint32(count)*4
		cur := sp
		seq := false
		for i := 0; i < 8; i++ {
			if rlist&(1<<uint(i)) == 0 {
				continue
			}
			b.WriteWord(cur, c.readReg(i), seq)
			seq = true
			cur += 4
		}
		if includePCLR {
			b.WriteWord(cur, c.readReg(14), seq)
		}
		c.writeReg(13, sp)
	}
}

func (c *CPU) thumbMultipleTransfer(b Bus, op uint16) {
	load := op&(1<<11) != 0
	rb := int((op >> 8) & 0x7)
	rlist := uint16(op & 0xFF)

	if rlist == 0 {
		// Empty-rlist edge case also applies to THUMB LDMIA/STMIA: transfer
		// R15 and adjust the base by 0x40 (always "up", always post-indexed
		// for THUMB's single addressing mode).
		c.onEmptyRlist(b, rb, !load, true, false)
		return
	}

	addr := c.readReg(rb)
	seq := false
	for i := 0; i < 8; i++ {
		if rlist&(1<<uint(i)) == 0 {
			continue
		}
		if load {
			c.writeReg(i, b.ReadWord(addr, seq))
		} else {
			b.WriteWord(addr, c.readReg(i), seq)
		}
		seq = true
		addr += 4
	}
	c.writeReg(rb, addr)
	if load {
		c.idleNonSeq(b)
	}
}

func (c *CPU) thumbCondBranch(b Bus, op uint16) {
	cond := uint32((op >> 8) & 0xF)
	if !c.evalCondition(cond) {
		return
	}
	offset := int32(int8(op&0xFF)) << 1
	target := uint32(int32(c.readReg(15)) + offset)
	c.writeReg(15, target)
}

func (c *CPU) thumbUncondBranch(b Bus, op uint16) {
	raw := op & 0x7FF
	offset := int32(raw) << 1
	if raw&0x400 != 0 {
		offset -= 0x1000
	}
	target := uint32(int32(c.readReg(15)) + offset)
	c.writeReg(15, target)
}

// thumbBranchLink handles both halves of the two-instruction BL encoding.
// The first half (H=0) stashes PC+offset<<12 into LR; the second (H=1)
// completes the jump and sets LR to the return address with bit 0 set.
func (c *CPU) thumbBranchLink(b Bus, op uint16) {
	low := op&(1<<11) != 0
	offset := uint32(op & 0x7FF)
	if !low {
		signed := int32(offset)
		if offset&0x400 != 0 {
			signed -= 0x800
		}
		lr := uint32(int32(c.readReg(15)) + (signed << 12))
		c.writeReg(14, lr)
		return
	}

	next := c.readReg(15) - 2
	target := c.readReg(14) + (offset << 1)
	c.writeReg(14, next|1)
	c.writeReg(15, target)
}
