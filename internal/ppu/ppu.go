// Package ppu emulates the Ricoh 2C02: the eight CPU-visible registers
// with their shared write toggle, VRAM/OAM/palette access, per-scanline
// background and sprite rendering into a 256x240 frame buffer, and the
// vblank/NMI handshake with the CPU.
package ppu

import (
	"log"

	"gones/internal/memory"
)

// PPUCTRL bits.
const (
	ctrlIncrement32  = 0x04 // PPUDATA adds 32 per access instead of 1
	ctrlSpriteTable  = 0x08 // 8x8 sprite pattern table select
	ctrlBGTable      = 0x10 // background pattern table select
	ctrlSpriteSize16 = 0x20 // 8x16 sprites
	ctrlNMIEnable    = 0x80 // raise NMI at vblank
)

// PPUMASK bits.
const (
	maskShowBGLeft      = 0x02
	maskShowSpritesLeft = 0x04
	maskShowBG          = 0x08
	maskShowSprites     = 0x10
)

// PPUSTATUS bits.
const (
	statusOverflow   = 0x20
	statusSprite0Hit = 0x40
	statusVBlank     = 0x80
)

const (
	dotsPerLine   = 341
	linesPerFrame = 262 // -1 (prerender) through 260
	vblankLine    = 241
	prerenderLine = -1
	visibleLines  = 240
	visiblePixels = 256
)

// PPU holds register, memory, and rendering state for one 2C02.
type PPU struct {
	ctrl   uint8
	mask   uint8
	status uint8

	// Internal scroll/address machinery: current and temporary VRAM
	// address, fine-X, and the one-bit write toggle shared by PPUSCROLL
	// and PPUADDR.
	v uint16
	t uint16
	x uint8
	w bool

	oamAddr    uint8
	readBuffer uint8 // PPUDATA's one-byte delay for non-palette reads

	// openBus is the last byte driven onto the PPU's external data bus;
	// it answers reads of write-only registers and fills PPUSTATUS's
	// undefined low bits.
	openBus uint8

	mem *memory.PPUMemory
	oam [256]uint8

	scanline   int
	dot        int
	frameCount uint64
	dotCount   uint64

	// Per-scanline sprite evaluation results: up to 8 entries plus
	// their original OAM indices for sprite-0 tracking.
	lineSprites [8]sprite
	lineCount   int

	frame [visiblePixels * visibleLines]uint32

	onNMI   func()
	onFrame func()

	// Opt-in scroll-state logging.
	debugLog      bool
	debugInterval int
}

// sprite is one evaluated OAM entry staged for the current scanline.
type sprite struct {
	y, tile, attr, x uint8
	index            uint8 // original OAM slot, for sprite-0 hit
}

// New creates a powered-on PPU positioned at the prerender scanline.
func New() *PPU {
	return &PPU{scanline: prerenderLine}
}

// Reset returns all register, timing, and OAM state to power-on values.
func (p *PPU) Reset() {
	p.ctrl = 0
	p.mask = 0
	p.status = statusVBlank | statusOverflow
	p.oamAddr = 0
	p.readBuffer = 0
	p.openBus = 0
	p.v, p.t, p.x, p.w = 0, 0, 0, false
	p.scanline = prerenderLine
	p.dot = 0
	p.frameCount = 0
	p.dotCount = 0
	p.lineCount = 0
	p.oam = [256]uint8{}
	p.frame = [visiblePixels * visibleLines]uint32{}
}

// SetMemory attaches the PPU's address space (CHR, nametables, palette).
func (p *PPU) SetMemory(mem *memory.PPUMemory) {
	p.mem = mem
}

// SetNMICallback registers the console's NMI line.
func (p *PPU) SetNMICallback(fn func()) {
	p.onNMI = fn
}

// SetFrameCompleteCallback registers the sink notified once per frame.
func (p *PPU) SetFrameCompleteCallback(fn func()) {
	p.onFrame = fn
}

// ReadRegister handles a CPU read of $2000-$2007. Write-only registers
// return the open-bus latch.
func (p *PPU) ReadRegister(address uint16) uint8 {
	switch address {
	case 0x2002:
		// Vblank and the write toggle clear together on this read; the
		// sprite flags only clear at prerender.
		v := p.status&0xE0 | p.openBus&0x1F
		p.status &^= statusVBlank
		p.w = false
		p.openBus = v
		return v
	case 0x2004:
		p.openBus = p.oam[p.oamAddr]
		return p.openBus
	case 0x2007:
		p.openBus = p.readData()
		return p.openBus
	default:
		return p.openBus
	}
}

// WriteRegister handles a CPU write to $2000-$2007. Every write also
// refreshes the open-bus latch.
func (p *PPU) WriteRegister(address uint16, value uint8) {
	p.openBus = value
	switch address {
	case 0x2000:
		wasEnabled := p.ctrl&ctrlNMIEnable != 0
		p.ctrl = value
		p.t = p.t&0xF3FF | uint16(value&0x03)<<10
		// Enabling NMI while vblank is already set fires immediately.
		if !wasEnabled && value&ctrlNMIEnable != 0 && p.status&statusVBlank != 0 && p.onNMI != nil {
			p.onNMI()
		}
	case 0x2001:
		p.mask = value
	case 0x2003:
		p.oamAddr = value
	case 0x2004:
		p.oam[p.oamAddr] = value
		p.oamAddr++
	case 0x2005:
		p.writeScroll(value)
	case 0x2006:
		p.writeAddr(value)
	case 0x2007:
		p.writeData(value)
	}
}

// writeScroll is the PPUSCROLL contract: first write carries X scroll
// (coarse into t, fine into x), second carries Y, toggling w each time.
func (p *PPU) writeScroll(value uint8) {
	if !p.w {
		p.t = p.t&0xFFE0 | uint16(value)>>3
		p.x = value & 0x07
	} else {
		p.t = p.t&0x8FFF | uint16(value&0x07)<<12
		p.t = p.t&0xFC1F | uint16(value&0xF8)<<2
	}
	p.w = !p.w
}

// writeAddr is the PPUADDR contract: high six bits first, then the low
// byte, at which point t commits to v.
func (p *PPU) writeAddr(value uint8) {
	if !p.w {
		p.t = p.t&0x80FF | uint16(value&0x3F)<<8
	} else {
		p.t = p.t&0xFF00 | uint16(value)
		p.v = p.t
	}
	p.w = !p.w
}

// readData implements PPUDATA reads: buffered below the palettes,
// immediate within them, incrementing v either way.
func (p *PPU) readData() uint8 {
	var data uint8
	if p.mem != nil {
		if p.v&0x3FFF >= 0x3F00 {
			data = p.mem.Read(p.v)
			// The buffer still loads, from the nametable underneath.
			p.readBuffer = p.mem.Read(p.v & 0x2FFF)
		} else {
			data = p.readBuffer
			p.readBuffer = p.mem.Read(p.v)
		}
	}
	p.incrementV()
	return data
}

// writeData implements PPUDATA writes.
func (p *PPU) writeData(value uint8) {
	if p.mem != nil {
		p.mem.Write(p.v, value)
	}
	p.incrementV()
}

func (p *PPU) incrementV() {
	if p.ctrl&ctrlIncrement32 != 0 {
		p.v += 32
	} else {
		p.v++
	}
	p.v &= 0x3FFF
}

// WriteOAM stores one byte of OAM directly, bypassing OAMDATA; the
// console's DMA handler uses it.
func (p *PPU) WriteOAM(address, value uint8) {
	p.oam[address] = value
}

// Step advances the PPU by one dot. The console calls this three times
// per CPU cycle.
func (p *PPU) Step() {
	p.dotCount++
	p.dot++
	if p.dot >= dotsPerLine {
		p.dot = 0
		p.scanline++
		if p.scanline > linesPerFrame-2 {
			p.scanline = prerenderLine
			p.frameCount++
			p.logScrollState()
			if p.onFrame != nil {
				p.onFrame()
			}
		}
	}

	switch {
	case p.scanline == vblankLine && p.dot == 1:
		p.status |= statusVBlank
		if p.ctrl&ctrlNMIEnable != 0 && p.onNMI != nil {
			p.onNMI()
		}

	case p.scanline == prerenderLine && p.dot == 1:
		p.status &^= statusVBlank | statusSprite0Hit | statusOverflow

	case p.scanline == 0 && p.dot == 0 && p.renderingEnabled():
		// Scroll values written during vblank take effect here.
		p.v = p.t
	}

	if p.scanline >= 0 && p.scanline < visibleLines {
		p.renderDot()
	}
}

func (p *PPU) renderingEnabled() bool {
	return p.mask&(maskShowBG|maskShowSprites) != 0
}

// GetFrameBuffer returns a copy of the current 256x240 frame, one
// 0xRRGGBB word per pixel, top-left row-major.
func (p *PPU) GetFrameBuffer() [visiblePixels * visibleLines]uint32 {
	return p.frame
}

// GetFrameCount returns the number of completed frames.
func (p *PPU) GetFrameCount() uint64 {
	return p.frameCount
}

// SetFrameCount overwrites the frame counter, used by the console when
// resynchronizing after a reset.
func (p *PPU) SetFrameCount(n uint64) {
	p.frameCount = n
}

// GetScanline returns the current scanline (-1 through 260).
func (p *PPU) GetScanline() int {
	return p.scanline
}

// GetCycle returns the current dot within the scanline (0 through 340).
func (p *PPU) GetCycle() int {
	return p.dot
}

// GetCycleCount returns the total dots stepped since power-on.
func (p *PPU) GetCycleCount() uint64 {
	return p.dotCount
}

// IsRenderingEnabled reports whether PPUMASK has background or sprite
// rendering switched on.
func (p *PPU) IsRenderingEnabled() bool {
	return p.renderingEnabled()
}

// IsVBlank reports the PPUSTATUS vblank bit without the read side effects.
func (p *PPU) IsVBlank() bool {
	return p.status&statusVBlank != 0
}

// EnableBackgroundDebugLogging toggles periodic scroll-state logging.
func (p *PPU) EnableBackgroundDebugLogging(enable bool) {
	p.debugLog = enable
}

// SetBackgroundDebugVerbosity sets the logging interval in frames.
func (p *PPU) SetBackgroundDebugVerbosity(frames int) {
	p.debugInterval = frames
}

func (p *PPU) logScrollState() {
	if !p.debugLog {
		return
	}
	interval := p.debugInterval
	if interval <= 0 {
		interval = 1
	}
	if p.frameCount%uint64(interval) == 0 {
		log.Printf("[ppu] frame=%d v=$%04X t=$%04X x=%d nametable=%d",
			p.frameCount, p.v, p.t, p.x, (p.v>>10)&3)
	}
}
