package ppu

import (
	"testing"

	"gones/internal/memory"
)

// chrRAM is a writable 8KB pattern store standing in for a cartridge.
type chrRAM struct {
	data [0x2000]uint8
}

func (c *chrRAM) ReadPRG(address uint16) uint8         { return 0 }
func (c *chrRAM) WritePRG(address uint16, value uint8) {}
func (c *chrRAM) ReadCHR(address uint16) uint8         { return c.data[address&0x1FFF] }
func (c *chrRAM) WriteCHR(address uint16, value uint8) { c.data[address&0x1FFF] = value }

func newTestPPU() (*PPU, *chrRAM) {
	p := New()
	chr := &chrRAM{}
	p.SetMemory(memory.NewPPUMemory(chr, memory.MirrorHorizontal))
	p.Reset()
	return p, chr
}

// stepLine advances the PPU a full scanline.
func stepLine(p *PPU) {
	for i := 0; i < 341; i++ {
		p.Step()
	}
}

// stepToVBlank advances from the prerender line to the vblank set point.
func stepToVBlank(p *PPU) {
	for !(p.GetScanline() == 241 && p.GetCycle() == 1) {
		p.Step()
	}
}

func TestAddressLatchAndDataWrite(t *testing.T) {
	p, _ := newTestPPU()

	p.WriteRegister(0x2006, 0x21)
	p.WriteRegister(0x2006, 0x08)
	p.WriteRegister(0x2007, 0x42)

	if got := p.mem.Read(0x2108); got != 0x42 {
		t.Errorf("VRAM[$2108] = $%02X, want $42", got)
	}
	if p.v != 0x2109 {
		t.Errorf("v = $%04X, want $2109 (increment by 1)", p.v)
	}
}

func TestDataIncrementBy32(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(0x2000, ctrlIncrement32)
	p.WriteRegister(0x2006, 0x20)
	p.WriteRegister(0x2006, 0x00)
	p.WriteRegister(0x2007, 0x01)
	if p.v != 0x2020 {
		t.Errorf("v = $%04X, want $2020 (increment by 32)", p.v)
	}
}

func TestStatusReadClearsToggleAndVBlank(t *testing.T) {
	p, _ := newTestPPU()

	// Half-written address latch, then a status read resets it.
	p.WriteRegister(0x2006, 0x21)
	p.ReadRegister(0x2002)
	p.WriteRegister(0x2006, 0x21)
	p.WriteRegister(0x2006, 0x08)
	if p.v != 0x2108 {
		t.Errorf("v = $%04X, want $2108 after toggle reset", p.v)
	}

	// Vblank bit clears on read, atomically with the toggle.
	stepToVBlank(p)
	first := p.ReadRegister(0x2002)
	if first&statusVBlank == 0 {
		t.Fatal("vblank bit not set at scanline 241")
	}
	second := p.ReadRegister(0x2002)
	if second&statusVBlank != 0 {
		t.Error("vblank bit survived a status read")
	}
}

func TestScrollLatch(t *testing.T) {
	p, _ := newTestPPU()

	p.WriteRegister(0x2005, 0x7D) // X: coarse 15, fine 5
	if p.t&0x1F != 15 || p.x != 5 {
		t.Errorf("after X write: coarse=%d fine=%d, want 15/5", p.t&0x1F, p.x)
	}
	p.WriteRegister(0x2005, 0x5E) // Y: coarse 11, fine 6
	if got := p.t >> 5 & 0x1F; got != 11 {
		t.Errorf("coarse Y = %d, want 11", got)
	}
	if got := p.t >> 12 & 0x07; got != 6 {
		t.Errorf("fine Y = %d, want 6", got)
	}
	if p.w {
		t.Error("toggle not cleared after second write")
	}
}

func TestDataReadBuffering(t *testing.T) {
	p, _ := newTestPPU()
	p.mem.Write(0x2100, 0xAA)
	p.mem.Write(0x2101, 0xBB)

	p.WriteRegister(0x2006, 0x21)
	p.WriteRegister(0x2006, 0x00)

	// First read returns the stale buffer; subsequent reads trail the
	// address by one.
	p.ReadRegister(0x2007)
	if got := p.ReadRegister(0x2007); got != 0xAA {
		t.Errorf("second read = $%02X, want $AA", got)
	}
	if got := p.ReadRegister(0x2007); got != 0xBB {
		t.Errorf("third read = $%02X, want $BB", got)
	}
}

func TestPaletteReadsAreImmediate(t *testing.T) {
	p, _ := newTestPPU()
	p.mem.Write(0x3F01, 0x2C)

	p.WriteRegister(0x2006, 0x3F)
	p.WriteRegister(0x2006, 0x01)
	if got := p.ReadRegister(0x2007); got != 0x2C {
		t.Errorf("palette read = $%02X, want $2C without buffering", got)
	}
}

func TestOAMAccess(t *testing.T) {
	p, _ := newTestPPU()

	p.WriteRegister(0x2003, 0x10)
	p.WriteRegister(0x2004, 0xAB)
	p.WriteRegister(0x2004, 0xCD)

	if p.oam[0x10] != 0xAB || p.oam[0x11] != 0xCD {
		t.Errorf("OAM = $%02X $%02X, want $AB $CD (auto-increment)", p.oam[0x10], p.oam[0x11])
	}

	p.WriteRegister(0x2003, 0x10)
	if got := p.ReadRegister(0x2004); got != 0xAB {
		t.Errorf("OAMDATA read = $%02X, want $AB", got)
	}
}

func TestWriteOAMForDMA(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteOAM(0x3F, 0x77)
	if p.oam[0x3F] != 0x77 {
		t.Error("WriteOAM did not store")
	}
}

func TestOpenBusOnWriteOnlyRegisters(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(0x2000, 0x3C)
	if got := p.ReadRegister(0x2000); got != 0x3C {
		t.Errorf("write-only register read = $%02X, want open-bus $3C", got)
	}
	if got := p.ReadRegister(0x2005); got != 0x3C {
		t.Errorf("PPUSCROLL read = $%02X, want open-bus $3C", got)
	}
}

func TestVBlankNMI(t *testing.T) {
	p, _ := newTestPPU()
	fired := 0
	p.SetNMICallback(func() { fired++ })

	// NMI disabled: vblank sets, nothing fires.
	stepToVBlank(p)
	if fired != 0 {
		t.Fatal("NMI fired with PPUCTRL bit 7 clear")
	}

	// Enabling NMI during vblank fires immediately.
	p.WriteRegister(0x2000, ctrlNMIEnable)
	if fired != 1 {
		t.Errorf("late-enable NMI count = %d, want 1", fired)
	}

	// Next frame's vblank fires again.
	for !(p.GetScanline() == 241 && p.GetCycle() == 1 && p.GetFrameCount() > 0) {
		p.Step()
	}
	if fired != 2 {
		t.Errorf("NMI count = %d, want 2", fired)
	}
}

func TestVBlankClearsAtPrerender(t *testing.T) {
	p, _ := newTestPPU()
	stepToVBlank(p)
	if !p.IsVBlank() {
		t.Fatal("vblank not set")
	}
	// Run into the next frame's prerender line.
	for !(p.GetScanline() == -1 && p.GetCycle() == 1) {
		p.Step()
	}
	if p.IsVBlank() {
		t.Error("vblank bit survived prerender")
	}
}

func TestFrameCompleteCallback(t *testing.T) {
	p, _ := newTestPPU()
	frames := 0
	p.SetFrameCompleteCallback(func() { frames++ })

	for i := 0; i < 262*341+10; i++ {
		p.Step()
	}
	if frames != 1 {
		t.Errorf("frame callback count = %d, want 1", frames)
	}
	if p.GetFrameCount() != 1 {
		t.Errorf("frame count = %d, want 1", p.GetFrameCount())
	}
}

// paintTile fills the given tile's first bitplane so every pixel of the
// tile has color 1.
func paintTile(chr *chrRAM, base uint16, tile uint8) {
	for row := uint16(0); row < 8; row++ {
		chr.data[base+uint16(tile)*16+row] = 0xFF
	}
}

func TestBackgroundRendering(t *testing.T) {
	p, chr := newTestPPU()

	paintTile(chr, 0x0000, 1)
	// Top-left nametable cell shows tile 1; palette 0 entry 1 is $16.
	p.mem.Write(0x2000, 0x01)
	p.mem.Write(0x3F01, 0x16)
	p.WriteRegister(0x2001, maskShowBG|maskShowBGLeft)

	stepLine(p) // prerender
	stepLine(p) // scanline 0

	want := colorRGB(0x16)
	if got := p.GetFrameBuffer()[0]; got != want {
		t.Errorf("pixel (0,0) = $%06X, want $%06X", got, want)
	}
	// A cell with tile 0 (all-transparent) shows the backdrop.
	p.mem.Write(0x3F00, 0x21)
	for p.GetScanline() != 9 {
		stepLine(p)
	}
	stepLine(p)
	if got := p.GetFrameBuffer()[9*256+64]; got != colorRGB(0x21) {
		t.Errorf("backdrop pixel = $%06X, want $%06X", got, colorRGB(0x21))
	}
}

func TestSpriteRenderingAndPriority(t *testing.T) {
	p, chr := newTestPPU()
	paintTile(chr, 0x0000, 1)

	// Sprite 3 at (40, 19): appears on scanline 20.
	p.oam[3*4+0] = 19
	p.oam[3*4+1] = 1
	p.oam[3*4+2] = 0x00 // palette 0, front priority
	p.oam[3*4+3] = 40
	p.mem.Write(0x3F11, 0x27)
	p.WriteRegister(0x2001, maskShowSprites|maskShowSpritesLeft)

	stepLine(p) // prerender
	for p.GetScanline() != 20 {
		stepLine(p)
	}
	stepLine(p)

	if got := p.GetFrameBuffer()[20*256+40]; got != colorRGB(0x27) {
		t.Errorf("sprite pixel = $%06X, want $%06X", got, colorRGB(0x27))
	}
	// Pixels outside the sprite show the backdrop.
	if got := p.GetFrameBuffer()[20*256+60]; got != colorRGB(0x0F) {
		t.Errorf("off-sprite pixel = $%06X, want backdrop", got)
	}
}

func TestSpriteBehindBackground(t *testing.T) {
	p, chr := newTestPPU()
	paintTile(chr, 0x0000, 1)

	// Opaque background everywhere on row 0 of the nametable.
	for cell := 0; cell < 32; cell++ {
		p.mem.Write(uint16(0x2000+cell), 0x01)
	}
	p.mem.Write(0x3F01, 0x16)

	// Behind-priority sprite overlapping scanline 4.
	p.oam[1*4+0] = 3
	p.oam[1*4+1] = 1
	p.oam[1*4+2] = 0x20
	p.oam[1*4+3] = 16
	p.mem.Write(0x3F11, 0x27)

	p.WriteRegister(0x2001, maskShowBG|maskShowSprites|maskShowBGLeft|maskShowSpritesLeft)
	stepLine(p)
	for p.GetScanline() != 4 {
		stepLine(p)
	}
	stepLine(p)

	if got := p.GetFrameBuffer()[4*256+16]; got != colorRGB(0x16) {
		t.Errorf("behind-priority sprite won: $%06X, want background $%06X", got, colorRGB(0x16))
	}
}

func TestSprite0Hit(t *testing.T) {
	p, chr := newTestPPU()
	paintTile(chr, 0x0000, 1)

	for cell := 0; cell < 32*4; cell++ {
		p.mem.Write(uint16(0x2000+cell), 0x01)
	}
	p.oam[0] = 9 // sprite 0 on scanline 10
	p.oam[1] = 1
	p.oam[2] = 0
	p.oam[3] = 100

	p.WriteRegister(0x2001, maskShowBG|maskShowSprites|maskShowBGLeft|maskShowSpritesLeft)

	stepLine(p)
	for p.GetScanline() != 10 {
		stepLine(p)
	}
	if p.status&statusSprite0Hit != 0 {
		t.Fatal("sprite 0 hit set before the overlap line")
	}
	stepLine(p)
	if p.status&statusSprite0Hit == 0 {
		t.Error("sprite 0 hit not set on overlap")
	}
}

func TestSpriteOverflow(t *testing.T) {
	p, chr := newTestPPU()
	paintTile(chr, 0x0000, 1)

	// Nine sprites on the same scanline.
	for i := 0; i < 9; i++ {
		p.oam[i*4+0] = 29
		p.oam[i*4+1] = 1
		p.oam[i*4+3] = uint8(i * 16)
	}
	p.WriteRegister(0x2001, maskShowSprites)

	stepLine(p)
	for p.GetScanline() != 30 {
		stepLine(p)
	}
	stepLine(p)
	if p.status&statusOverflow == 0 {
		t.Error("sprite overflow not set with nine sprites on a line")
	}
}

func TestHorizontalFlip(t *testing.T) {
	p, chr := newTestPPU()

	// Tile 2: only the leftmost pixel of each row is opaque.
	for row := uint16(0); row < 8; row++ {
		chr.data[2*16+row] = 0x80
	}
	p.oam[0] = 49
	p.oam[1] = 2
	p.oam[2] = 0x40 // horizontal flip
	p.oam[3] = 200
	p.WriteRegister(0x2001, maskShowSprites)
	p.mem.Write(0x3F11, 0x27)

	stepLine(p)
	for p.GetScanline() != 50 {
		stepLine(p)
	}
	stepLine(p)

	fb := p.GetFrameBuffer()
	if fb[50*256+207] != colorRGB(0x27) {
		t.Error("flipped sprite's opaque pixel not at the right edge")
	}
	if fb[50*256+200] == colorRGB(0x27) {
		t.Error("flipped sprite still opaque at the left edge")
	}
}
