package memory

// MirrorMode selects how the four logical nametables fold onto the 2KB
// of physical VRAM.
type MirrorMode uint8

const (
	MirrorHorizontal MirrorMode = iota
	MirrorVertical
	MirrorSingleScreen0
	MirrorSingleScreen1
	MirrorFourScreen
)

// PPUMemory is the PPU's 14-bit address space: CHR from the cartridge at
// $0000-$1FFF, nametable VRAM at $2000-$2FFF (mirrored through $3EFF),
// and 32 bytes of palette RAM at $3F00 (mirrored through $3FFF).
type PPUMemory struct {
	vram    [0x1000]uint8 // room for four-screen boards; NROM uses half
	palette [32]uint8
	cart    CartridgeInterface
	mirror  MirrorMode
}

// NewPPUMemory builds the PPU address space over cart's CHR with the
// given nametable mirroring. The backdrop entries power up black ($0F).
func NewPPUMemory(cart CartridgeInterface, mirror MirrorMode) *PPUMemory {
	pm := &PPUMemory{cart: cart, mirror: mirror}
	for i := 0; i < len(pm.palette); i += 4 {
		pm.palette[i] = 0x0F
	}
	return pm
}

// Read returns the byte at address in PPU space.
func (pm *PPUMemory) Read(address uint16) uint8 {
	address &= 0x3FFF
	switch {
	case address < 0x2000:
		return pm.cart.ReadCHR(address)
	case address < 0x3F00:
		return pm.vram[pm.nametableIndex(address)]
	default:
		return pm.palette[paletteIndex(address)]
	}
}

// Write stores value at address in PPU space.
func (pm *PPUMemory) Write(address uint16, value uint8) {
	address &= 0x3FFF
	switch {
	case address < 0x2000:
		pm.cart.WriteCHR(address, value)
	case address < 0x3F00:
		pm.vram[pm.nametableIndex(address)] = value
	default:
		pm.palette[paletteIndex(address)] = value
	}
}

// nametableIndex folds a $2000-$3EFF address onto physical VRAM per the
// cartridge's mirroring. Horizontal pairs tables (0,1) and (2,3);
// vertical pairs (0,2) and (1,3).
func (pm *PPUMemory) nametableIndex(address uint16) uint16 {
	address &= 0x0FFF
	table := address >> 10
	offset := address & 0x03FF

	switch pm.mirror {
	case MirrorHorizontal:
		if table >= 2 {
			return 0x400 + offset
		}
		return offset
	case MirrorVertical:
		if table&1 != 0 {
			return 0x400 + offset
		}
		return offset
	case MirrorSingleScreen0:
		return offset
	case MirrorSingleScreen1:
		return 0x400 + offset
	case MirrorFourScreen:
		return table*0x400 + offset
	default:
		return offset
	}
}

// paletteIndex folds a $3F00-$3FFF address onto the 32 palette bytes.
// Entries $10/$14/$18/$1C are aliases of $00/$04/$08/$0C: the sprite
// palettes share their backdrop slots with the background palettes.
func paletteIndex(address uint16) uint16 {
	i := address & 0x1F
	if i >= 0x10 && i&0x03 == 0 {
		i &= 0x0F
	}
	return i
}
