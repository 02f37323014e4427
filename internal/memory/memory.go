// Package memory implements the CPU-side address decoding fabric and the
// PPU's own 14-bit address space (pattern tables, nametables, palette RAM).
package memory

// PPUInterface is the PPU's register window as seen from the CPU bus.
type PPUInterface interface {
	ReadRegister(address uint16) uint8
	WriteRegister(address uint16, value uint8)
}

// APUInterface is the APU's register window as seen from the CPU bus.
type APUInterface interface {
	WriteRegister(address uint16, value uint8)
	ReadStatus() uint8
}

// InputInterface is the controller port window at $4016/$4017.
type InputInterface interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// CartridgeInterface is the cartridge's PRG and CHR windows.
type CartridgeInterface interface {
	ReadPRG(address uint16) uint8
	WritePRG(address uint16, value uint8)
	ReadCHR(address uint16) uint8
	WriteCHR(address uint16, value uint8)
}

// Memory routes every CPU read and write to the component that owns the
// addressed region: 2KB work RAM mirrored through $1FFF, the PPU's eight
// registers mirrored through $3FFF, APU and I/O at $4000-$401F, cartridge
// SRAM at $6000-$7FFF, and PRG ROM above $8000. Reads of unmapped space
// return the last value seen on the bus (open bus).
type Memory struct {
	ram [0x800]uint8 // zeroed at power-on; the array zero value is already the reset state

	ppu   PPUInterface
	apu   APUInterface
	input InputInterface
	cart  CartridgeInterface

	// dma, when set, handles $4014 writes (the bus supplies a handler
	// that also stalls the CPU); without it the transfer is immediate.
	dma func(page uint8)

	openBus uint8
}

// New builds the decode fabric over the given components. The cartridge
// may be nil until a ROM is loaded.
func New(ppu PPUInterface, apu APUInterface, cart CartridgeInterface) *Memory {
	return &Memory{ppu: ppu, apu: apu, cart: cart}
}

// SetInputSystem attaches the controller ports at $4016/$4017.
func (m *Memory) SetInputSystem(input InputInterface) {
	m.input = input
}

// SetDMACallback routes $4014 writes to the console's DMA handler.
func (m *Memory) SetDMACallback(dma func(page uint8)) {
	m.dma = dma
}

// Read returns the byte at address per the CPU address map.
func (m *Memory) Read(address uint16) uint8 {
	var v uint8
	switch {
	case address < 0x2000:
		v = m.ram[address&0x07FF]

	case address < 0x4000:
		v = m.ppu.ReadRegister(0x2000 | address&0x0007)

	case address < 0x4020:
		switch {
		case address == 0x4015:
			v = m.apu.ReadStatus()
		case address == 0x4016 || address == 0x4017:
			if m.input != nil {
				v = m.input.Read(address)
			}
		default:
			// The remaining APU registers are write-only.
			v = m.openBus
		}

	case address < 0x6000:
		// Expansion area, unmapped on NROM boards.
		v = m.openBus

	default:
		if m.cart != nil {
			v = m.cart.ReadPRG(address)
		} else {
			v = m.openBus
		}
	}

	m.openBus = v
	return v
}

// Write stores value at address per the CPU address map. Writes to ROM
// and unmapped regions are discarded.
func (m *Memory) Write(address uint16, value uint8) {
	switch {
	case address < 0x2000:
		m.ram[address&0x07FF] = value

	case address < 0x4000:
		m.ppu.WriteRegister(0x2000|address&0x0007, value)

	case address < 0x4020:
		switch {
		case address == 0x4014:
			if m.dma != nil {
				m.dma(value)
			} else {
				m.copyOAMPage(value)
			}
		case address == 0x4016:
			if m.input != nil {
				m.input.Write(address, value)
			}
		case address <= 0x4013 || address == 0x4015 || address == 0x4017:
			m.apu.WriteRegister(address, value)
		}
		// $4018-$401F are CPU test-mode registers; ignored.

	case address < 0x6000:
		// Unmapped expansion area.

	default:
		if m.cart != nil {
			m.cart.WritePRG(address, value)
		}
	}
}

// copyOAMPage is the fallback OAM DMA path: 256 bytes from page<<8 into
// OAMDATA, without the CPU stall the bus-level handler adds.
func (m *Memory) copyOAMPage(page uint8) {
	base := uint16(page) << 8
	for i := uint16(0); i < 256; i++ {
		m.ppu.WriteRegister(0x2004, m.Read(base+i))
	}
}
