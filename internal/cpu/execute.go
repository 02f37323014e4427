package cpu

// execute runs one decoded instruction. addr is the effective address
// computed for op.mode (the branch target for Relative). The return
// value is the extra cycles a taken branch costs; everything else is
// already accounted for in the decode table.
func (c *CPU) execute(op opcode, addr uint16, crossed bool) uint8 {
	switch op.mn {
	case opLDA:
		c.A = c.memory.Read(addr)
		c.setZN(c.A)
	case opLDX:
		c.X = c.memory.Read(addr)
		c.setZN(c.X)
	case opLDY:
		c.Y = c.memory.Read(addr)
		c.setZN(c.Y)

	case opSTA:
		c.memory.Write(addr, c.A)
	case opSTX:
		c.memory.Write(addr, c.X)
	case opSTY:
		c.memory.Write(addr, c.Y)

	case opADC:
		c.addWithCarry(c.memory.Read(addr))
	case opSBC:
		// SBC is ADC of the operand's complement.
		c.addWithCarry(c.memory.Read(addr) ^ 0xFF)

	case opAND:
		c.A &= c.memory.Read(addr)
		c.setZN(c.A)
	case opORA:
		c.A |= c.memory.Read(addr)
		c.setZN(c.A)
	case opEOR:
		c.A ^= c.memory.Read(addr)
		c.setZN(c.A)

	case opASL:
		c.readModifyWrite(op.mode, addr, c.shiftLeft)
	case opLSR:
		c.readModifyWrite(op.mode, addr, c.shiftRight)
	case opROL:
		c.readModifyWrite(op.mode, addr, c.rotateLeft)
	case opROR:
		c.readModifyWrite(op.mode, addr, c.rotateRight)

	case opCMP:
		c.compare(c.A, c.memory.Read(addr))
	case opCPX:
		c.compare(c.X, c.memory.Read(addr))
	case opCPY:
		c.compare(c.Y, c.memory.Read(addr))

	case opINC:
		v := c.memory.Read(addr) + 1
		c.memory.Write(addr, v)
		c.setZN(v)
	case opDEC:
		v := c.memory.Read(addr) - 1
		c.memory.Write(addr, v)
		c.setZN(v)
	case opINX:
		c.X++
		c.setZN(c.X)
	case opDEX:
		c.X--
		c.setZN(c.X)
	case opINY:
		c.Y++
		c.setZN(c.Y)
	case opDEY:
		c.Y--
		c.setZN(c.Y)

	case opTAX:
		c.X = c.A
		c.setZN(c.X)
	case opTXA:
		c.A = c.X
		c.setZN(c.A)
	case opTAY:
		c.Y = c.A
		c.setZN(c.Y)
	case opTYA:
		c.A = c.Y
		c.setZN(c.A)
	case opTSX:
		c.X = c.SP
		c.setZN(c.X)
	case opTXS:
		// The only transfer that leaves the flags alone.
		c.SP = c.X

	case opPHA:
		c.push(c.A)
	case opPLA:
		c.A = c.pop()
		c.setZN(c.A)
	case opPHP:
		c.push(c.StatusByte() | flagB)
	case opPLP:
		// The pulled byte's B bit is discarded; B only exists on the
		// stack copy pushed by BRK and PHP.
		b := c.B
		c.SetStatusByte(c.pop())
		c.B = b

	case opCLC:
		c.C = false
	case opSEC:
		c.C = true
	case opCLI:
		c.I = false
	case opSEI:
		c.I = true
	case opCLV:
		c.V = false
	case opCLD:
		c.D = false
	case opSED:
		c.D = true

	case opJMP:
		c.PC = addr
	case opJSR:
		c.push16(c.PC - 1)
		c.PC = addr
	case opRTS:
		c.PC = c.pop16() + 1
	case opRTI:
		b := c.B
		c.SetStatusByte(c.pop())
		c.B = b
		c.PC = c.pop16()

	case opBCC:
		return c.branch(!c.C, addr, crossed)
	case opBCS:
		return c.branch(c.C, addr, crossed)
	case opBNE:
		return c.branch(!c.Z, addr, crossed)
	case opBEQ:
		return c.branch(c.Z, addr, crossed)
	case opBPL:
		return c.branch(!c.N, addr, crossed)
	case opBMI:
		return c.branch(c.N, addr, crossed)
	case opBVC:
		return c.branch(!c.V, addr, crossed)
	case opBVS:
		return c.branch(c.V, addr, crossed)

	case opBIT:
		v := c.memory.Read(addr)
		c.N = v&flagN != 0
		c.V = v&flagV != 0
		c.Z = c.A&v == 0

	case opBRK:
		// PC already points past the opcode; BRK skips a padding byte,
		// so the pushed return address is opcode+2.
		c.PC++
		c.push16(c.PC)
		c.push(c.StatusByte() | flagB)
		c.I = true
		c.PC = c.read16(vectorIRQ)

	case opNOP:
		// Multi-byte NOP variants still performed their operand fetch
		// via the addressing mode; nothing else happens.

	case opLAX:
		c.A = c.memory.Read(addr)
		c.X = c.A
		c.setZN(c.A)
	case opSAX:
		c.memory.Write(addr, c.A&c.X)
	case opDCP:
		v := c.memory.Read(addr) - 1
		c.memory.Write(addr, v)
		c.compare(c.A, v)
	case opISB:
		v := c.memory.Read(addr) + 1
		c.memory.Write(addr, v)
		c.addWithCarry(v ^ 0xFF)
	case opSLO:
		v := c.shiftLeft(c.memory.Read(addr))
		c.memory.Write(addr, v)
		c.A |= v
		c.setZN(c.A)
	case opRLA:
		v := c.rotateLeft(c.memory.Read(addr))
		c.memory.Write(addr, v)
		c.A &= v
		c.setZN(c.A)
	case opSRE:
		v := c.shiftRight(c.memory.Read(addr))
		c.memory.Write(addr, v)
		c.A ^= v
		c.setZN(c.A)
	case opRRA:
		v := c.rotateRight(c.memory.Read(addr))
		c.memory.Write(addr, v)
		c.addWithCarry(v)
	}
	return 0
}

// addWithCarry implements the shared ADC/SBC core: A += v + C, with
// carry out and signed overflow. Decimal mode is ignored, as on the 2A03.
func (c *CPU) addWithCarry(v uint8) {
	carry := uint16(0)
	if c.C {
		carry = 1
	}
	sum := uint16(c.A) + uint16(v) + carry

	// Overflow: the operands agree in sign and the result disagrees.
	c.V = (c.A^v)&0x80 == 0 && (c.A^uint8(sum))&0x80 != 0
	c.C = sum > 0xFF
	c.A = uint8(sum)
	c.setZN(c.A)
}

// compare computes reg-v without storing it: C if reg >= v, Z if equal,
// N from bit 7 of the difference.
func (c *CPU) compare(reg, v uint8) {
	c.C = reg >= v
	c.setZN(reg - v)
}

// readModifyWrite applies fn to the accumulator or to memory at addr,
// depending on the addressing mode.
func (c *CPU) readModifyWrite(mode AddressingMode, addr uint16, fn func(uint8) uint8) {
	if mode == Accumulator {
		c.A = fn(c.A)
		c.setZN(c.A)
		return
	}
	v := fn(c.memory.Read(addr))
	c.memory.Write(addr, v)
	c.setZN(v)
}

func (c *CPU) shiftLeft(v uint8) uint8 {
	c.C = v&0x80 != 0
	return v << 1
}

func (c *CPU) shiftRight(v uint8) uint8 {
	c.C = v&0x01 != 0
	return v >> 1
}

func (c *CPU) rotateLeft(v uint8) uint8 {
	in := uint8(0)
	if c.C {
		in = 1
	}
	c.C = v&0x80 != 0
	return v<<1 | in
}

func (c *CPU) rotateRight(v uint8) uint8 {
	in := uint8(0)
	if c.C {
		in = 0x80
	}
	c.C = v&0x01 != 0
	return v>>1 | in
}

// branch takes the branch when cond holds: one extra cycle, two when the
// target sits on a different page than the following instruction.
func (c *CPU) branch(cond bool, target uint16, crossed bool) uint8 {
	if !cond {
		return 0
	}
	c.PC = target
	if crossed {
		return 2
	}
	return 1
}
