// Package cpu emulates the Ricoh 2A03's 6502 core: registers, flags,
// the fetch/decode/execute loop, and NMI/IRQ sequencing. Decimal mode is
// absent, as on the real 2A03.
package cpu

import "log"

const (
	stackBase = 0x0100

	flagC = 0x01
	flagZ = 0x02
	flagI = 0x04
	flagD = 0x08
	flagB = 0x10
	flagR = 0x20 // reserved, reads back as 1
	flagV = 0x40
	flagN = 0x80

	vectorNMI   = 0xFFFA
	vectorReset = 0xFFFC
	vectorIRQ   = 0xFFFE
)

// MemoryInterface is the bus the CPU fetches and stores through.
type MemoryInterface interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// CPU holds the 2A03 register file and interrupt lines. The status
// register is kept as individual flag booleans; StatusByte/SetStatusByte
// convert to and from the packed NV1BDIZC byte.
type CPU struct {
	A  uint8
	X  uint8
	Y  uint8
	SP uint8
	PC uint16

	C bool // carry
	Z bool // zero
	I bool // interrupt disable
	D bool // decimal (ignored by ADC/SBC on the 2A03)
	B bool // break
	V bool // overflow
	N bool // negative

	memory MemoryInterface
	cycles uint64

	nmiPending bool
	irqPending bool

	// Opt-in instrumentation, wired from the bus's debug controls.
	trace      bool
	loopDetect bool
	lastPC     uint16
	samePCRuns int
}

// New creates a CPU attached to memory. The program counter is left at
// zero until Reset loads it from the reset vector.
func New(memory MemoryInterface) *CPU {
	return &CPU{memory: memory, SP: 0xFD}
}

// Reset drives the 6502 reset sequence: registers cleared, SP at $FD,
// status $24 (I and the reserved bit set), PC loaded from $FFFC/$FFFD.
// The full sequence costs 7 cycles on hardware.
func (c *CPU) Reset() {
	c.A = 0
	c.X = 0
	c.Y = 0
	c.SP = 0xFD

	c.C = false
	c.Z = false
	c.I = true
	c.D = false
	c.B = false
	c.V = false
	c.N = false

	// Five internal cycles of dummy bus activity precede the vector read.
	for i := 0; i < 5; i++ {
		c.memory.Read(c.PC)
	}
	c.PC = c.read16(vectorReset)
	c.cycles += 7
}

// Step services any pending interrupt, otherwise executes exactly one
// instruction, and returns the cycles consumed. Interrupts are only taken
// here, at the instruction boundary, with NMI winning over IRQ.
func (c *CPU) Step() uint64 {
	if c.nmiPending {
		c.nmiPending = false
		c.interrupt(vectorNMI)
		return 7
	}
	if c.irqPending && !c.I {
		c.irqPending = false
		c.interrupt(vectorIRQ)
		return 7
	}

	pc := c.PC
	code := c.memory.Read(pc)
	op := opcodeTable[code]

	if c.loopDetect {
		c.noteSamePC(pc, code)
	}
	if c.trace {
		log.Printf("[cpu] PC=$%04X %s ($%02X) A=$%02X X=$%02X Y=$%02X SP=$%02X P=$%02X",
			pc, mnemonicNames[op.mn], code, c.A, c.X, c.Y, c.SP, c.StatusByte())
	}

	c.PC += uint16(op.size)
	addr, crossed := c.operand(pc, op.mode)

	cycles := uint64(op.cycles)
	if crossed && op.pageCycle {
		cycles++
	}
	cycles += uint64(c.execute(op, addr, crossed))

	c.cycles += cycles
	return cycles
}

// TriggerNMI latches the non-maskable interrupt line; it is taken before
// the next instruction and cleared by the service sequence.
func (c *CPU) TriggerNMI() {
	c.nmiPending = true
}

// TriggerIRQ latches the maskable interrupt line; it is taken before the
// next instruction unless the I flag is set.
func (c *CPU) TriggerIRQ() {
	c.irqPending = true
}

// interrupt runs the hardware interrupt sequence: PC pushed high-then-low,
// status pushed with B clear, I set, PC loaded from vector.
func (c *CPU) interrupt(vector uint16) {
	c.push16(c.PC)
	c.push((c.StatusByte() &^ flagB) | flagR)
	c.I = true
	c.PC = c.read16(vector)
	c.cycles += 7
}

// operand computes the effective address for an instruction at pc with
// the given addressing mode, and whether indexing crossed a page. PC has
// already been advanced past the instruction when this runs.
func (c *CPU) operand(pc uint16, mode AddressingMode) (uint16, bool) {
	switch mode {
	case Implied, Accumulator:
		return 0, false

	case Immediate:
		return pc + 1, false

	case ZeroPage:
		return uint16(c.memory.Read(pc + 1)), false

	case ZeroPageX:
		return uint16(c.memory.Read(pc+1) + c.X), false

	case ZeroPageY:
		return uint16(c.memory.Read(pc+1) + c.Y), false

	case Absolute:
		return c.read16(pc + 1), false

	case AbsoluteX:
		base := c.read16(pc + 1)
		addr := base + uint16(c.X)
		return addr, pageCrossed(base, addr)

	case AbsoluteY:
		base := c.read16(pc + 1)
		addr := base + uint16(c.Y)
		return addr, pageCrossed(base, addr)

	case Relative:
		offset := int8(c.memory.Read(pc + 1))
		next := pc + 2
		target := uint16(int32(next) + int32(offset))
		return target, pageCrossed(next, target)

	case Indirect:
		// JMP ($xxFF) fetches its high byte from the start of the same
		// page, not the next one. The bug ships with the silicon.
		ptr := c.read16(pc + 1)
		return c.read16PageWrap(ptr), false

	case IndexedIndirect:
		zp := c.memory.Read(pc+1) + c.X
		lo := uint16(c.memory.Read(uint16(zp)))
		hi := uint16(c.memory.Read(uint16(zp + 1)))
		return hi<<8 | lo, false

	case IndirectIndexed:
		zp := c.memory.Read(pc + 1)
		lo := uint16(c.memory.Read(uint16(zp)))
		hi := uint16(c.memory.Read(uint16(zp + 1)))
		base := hi<<8 | lo
		addr := base + uint16(c.Y)
		return addr, pageCrossed(base, addr)

	default:
		return 0, false
	}
}

func pageCrossed(a, b uint16) bool {
	return a&0xFF00 != b&0xFF00
}

// read16 performs two consecutive byte reads, little-endian.
func (c *CPU) read16(addr uint16) uint16 {
	lo := uint16(c.memory.Read(addr))
	hi := uint16(c.memory.Read(addr + 1))
	return hi<<8 | lo
}

// read16PageWrap reads 16 bits with the high byte wrapping within the
// low byte's page, reproducing the indirect-JMP hardware bug.
func (c *CPU) read16PageWrap(addr uint16) uint16 {
	lo := uint16(c.memory.Read(addr))
	hi := uint16(c.memory.Read(addr&0xFF00 | (addr+1)&0x00FF))
	return hi<<8 | lo
}

// Stack helpers. The stack pointer always indexes page 1.

func (c *CPU) push(v uint8) {
	c.memory.Write(stackBase|uint16(c.SP), v)
	c.SP--
}

func (c *CPU) pop() uint8 {
	c.SP++
	return c.memory.Read(stackBase | uint16(c.SP))
}

func (c *CPU) push16(v uint16) {
	c.push(uint8(v >> 8))
	c.push(uint8(v))
}

func (c *CPU) pop16() uint16 {
	lo := uint16(c.pop())
	hi := uint16(c.pop())
	return hi<<8 | lo
}

// setZN updates the Z and N flags from a result byte.
func (c *CPU) setZN(v uint8) {
	c.Z = v == 0
	c.N = v&0x80 != 0
}

// StatusByte packs the flags into the NV1BDIZC layout. The reserved bit
// always reads back as 1.
func (c *CPU) StatusByte() uint8 {
	p := uint8(flagR)
	if c.N {
		p |= flagN
	}
	if c.V {
		p |= flagV
	}
	if c.B {
		p |= flagB
	}
	if c.D {
		p |= flagD
	}
	if c.I {
		p |= flagI
	}
	if c.Z {
		p |= flagZ
	}
	if c.C {
		p |= flagC
	}
	return p
}

// SetStatusByte unpacks a NV1BDIZC byte into the flag booleans. The
// reserved bit has no storage; it is re-imposed on the next StatusByte.
func (c *CPU) SetStatusByte(p uint8) {
	c.N = p&flagN != 0
	c.V = p&flagV != 0
	c.B = p&flagB != 0
	c.D = p&flagD != 0
	c.I = p&flagI != 0
	c.Z = p&flagZ != 0
	c.C = p&flagC != 0
}

// Cycles returns the total cycles consumed since power-on.
func (c *CPU) Cycles() uint64 {
	return c.cycles
}

// EnableDebugLogging toggles per-instruction trace output.
func (c *CPU) EnableDebugLogging(enable bool) {
	c.trace = enable
}

// EnableLoopDetection toggles logging when the PC stops advancing, which
// usually means a ROM is spinning on a flag this emulator never sets.
func (c *CPU) EnableLoopDetection(enable bool) {
	c.loopDetect = enable
}

func (c *CPU) noteSamePC(pc uint16, code uint8) {
	if pc != c.lastPC {
		c.lastPC = pc
		c.samePCRuns = 0
		return
	}
	c.samePCRuns++
	if c.samePCRuns == 100 || c.samePCRuns%1000 == 0 {
		log.Printf("[cpu] stuck at PC=$%04X opcode=$%02X for %d iterations", pc, code, c.samePCRuns)
	}
}
