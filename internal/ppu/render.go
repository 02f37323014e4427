package ppu

// Rendering runs per-scanline: sprites for the line are evaluated once
// at the line's first dot, then dots 2-257 each produce one pixel. The
// background is sampled from the frame's scroll registers rather than
// the cycle-by-cycle v increments of real hardware, which is sufficient
// at this emulator's scanline granularity.

// pixel is one sampled background or sprite pixel before compositing.
type pixel struct {
	color   uint8 // 2-bit pattern value; 0 means transparent
	palette uint8 // 2-bit palette select
	behind  bool  // sprite priority: render behind opaque background
	sprite0 bool
}

// renderDot advances rendering for the current visible scanline.
func (p *PPU) renderDot() {
	if p.mem == nil || !p.renderingEnabled() {
		return
	}

	if p.dot == 1 {
		p.evaluateSprites()
	}
	if p.dot < 2 || p.dot > 257 {
		return
	}

	x := p.dot - 2
	y := p.scanline

	var bg, sp pixel
	if p.mask&maskShowBG != 0 && (x >= 8 || p.mask&maskShowBGLeft != 0) {
		bg = p.backgroundPixel(x, y)
	}
	if p.mask&maskShowSprites != 0 && (x >= 8 || p.mask&maskShowSpritesLeft != 0) {
		sp = p.spritePixel(x, y)
	}

	// Sprite 0 hit: the first overlap of opaque sprite-0 and opaque
	// background pixels in a frame, excluding x=255.
	if sp.sprite0 && sp.color != 0 && bg.color != 0 && x < 255 {
		p.status |= statusSprite0Hit
	}

	p.frame[y*visiblePixels+x] = p.composite(bg, sp)
}

// composite resolves one output pixel from the background and sprite
// samples per the priority rules.
func (p *PPU) composite(bg, sp pixel) uint32 {
	switch {
	case bg.color == 0 && sp.color == 0:
		return colorRGB(p.mem.Read(0x3F00))
	case bg.color == 0:
		return colorRGB(p.mem.Read(0x3F10 + uint16(sp.palette)*4 + uint16(sp.color)))
	case sp.color == 0 || sp.behind:
		return colorRGB(p.mem.Read(0x3F00 + uint16(bg.palette)*4 + uint16(bg.color)))
	default:
		return colorRGB(p.mem.Read(0x3F10 + uint16(sp.palette)*4 + uint16(sp.color)))
	}
}

// backgroundPixel samples the background at screen position (x, y),
// applying the frame's scroll and nametable selection.
func (p *PPU) backgroundPixel(x, y int) pixel {
	table := int(p.t>>10) & 3
	worldX := x + int(p.t&0x1F)<<3 + int(p.x)
	worldY := y + int(p.t>>5&0x1F)<<3 + int(p.t>>12&0x07)

	for worldX >= visiblePixels {
		worldX -= visiblePixels
		table ^= 1
	}
	for worldY >= visibleLines {
		worldY -= visibleLines
		table ^= 2
	}

	tileX, tileY := worldX>>3, worldY>>3
	fineX, fineY := worldX&7, worldY&7

	nt := 0x2000 | uint16(table)<<10
	tile := p.mem.Read(nt | uint16(tileY)<<5 | uint16(tileX))

	// One attribute byte covers a 4x4 tile block, two bits per 2x2
	// quadrant.
	attr := p.mem.Read(nt | 0x03C0 | uint16(tileY>>2)<<3 | uint16(tileX>>2))
	quad := (tileY >> 1 & 1 << 1) | (tileX >> 1 & 1)
	palette := attr >> (uint(quad) * 2) & 0x03

	base := uint16(0)
	if p.ctrl&ctrlBGTable != 0 {
		base = 0x1000
	}
	return pixel{
		color:   p.patternBits(base, tile, fineX, fineY),
		palette: palette,
	}
}

// patternBits reads one pixel's 2-bit value from the 16-byte tile
// pattern at base: two bitplanes eight bytes apart.
func (p *PPU) patternBits(base uint16, tile uint8, fineX, fineY int) uint8 {
	addr := base + uint16(tile)*16 + uint16(fineY)
	shift := uint(7 - fineX)
	lo := p.mem.Read(addr) >> shift & 1
	hi := p.mem.Read(addr+8) >> shift & 1
	return hi<<1 | lo
}

// spriteHeight reports 8 or 16 per PPUCTRL.
func (p *PPU) spriteHeight() int {
	if p.ctrl&ctrlSpriteSize16 != 0 {
		return 16
	}
	return 8
}

// evaluateSprites scans OAM in order and stages the first eight sprites
// intersecting the current scanline. Finding a ninth sets the overflow
// flag.
func (p *PPU) evaluateSprites() {
	p.lineCount = 0
	height := p.spriteHeight()

	for i := 0; i < 64; i++ {
		y := int(p.oam[i*4])
		// Sprites appear one line below their OAM Y value.
		if p.scanline < y+1 || p.scanline >= y+1+height {
			continue
		}
		if p.lineCount == 8 {
			p.status |= statusOverflow
			break
		}
		p.lineSprites[p.lineCount] = sprite{
			y:     p.oam[i*4],
			tile:  p.oam[i*4+1],
			attr:  p.oam[i*4+2],
			x:     p.oam[i*4+3],
			index: uint8(i),
		}
		p.lineCount++
	}
}

// spritePixel samples the highest-priority staged sprite covering screen
// position (x, y). Lower OAM indices win: the first opaque pixel found
// in evaluation order is the one displayed.
func (p *PPU) spritePixel(x, y int) pixel {
	height := p.spriteHeight()

	for i := 0; i < p.lineCount; i++ {
		s := &p.lineSprites[i]
		sx := int(s.x)
		if x < sx || x >= sx+8 {
			continue
		}

		px := x - sx
		py := y - int(s.y) - 1
		if s.attr&0x40 != 0 {
			px = 7 - px
		}
		if s.attr&0x80 != 0 {
			py = height - 1 - py
		}

		tile := s.tile
		base := uint16(0)
		if height == 16 {
			// Bit 0 of the tile index selects the pattern table; the
			// pair of tiles stacks vertically.
			if tile&1 != 0 {
				base = 0x1000
			}
			tile &= 0xFE
			if py >= 8 {
				tile++
				py -= 8
			}
		} else if p.ctrl&ctrlSpriteTable != 0 {
			base = 0x1000
		}

		color := p.patternBits(base, tile, px, py)
		if color == 0 {
			continue
		}
		return pixel{
			color:   color,
			palette: s.attr & 0x03,
			behind:  s.attr&0x20 != 0,
			sprite0: s.index == 0,
		}
	}
	return pixel{}
}
