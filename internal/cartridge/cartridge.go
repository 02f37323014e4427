// Package cartridge parses iNES 1.0 images and exposes their PRG and
// CHR banks through a mapper. Only NROM (mapper 0) is supported; naming
// any other mapper is a load error.
package cartridge

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	prgBankSize = 16 * 1024
	chrBankSize = 8 * 1024
	trainerSize = 512
)

var errBadMagic = errors.New("not an iNES file")

// MirrorMode is the nametable arrangement the cartridge's solder pads
// (or mapper) select.
type MirrorMode uint8

const (
	MirrorHorizontal MirrorMode = iota
	MirrorVertical
	MirrorSingleScreen0
	MirrorSingleScreen1
	MirrorFourScreen
)

// Mapper translates cartridge-window addresses to PRG/CHR storage.
type Mapper interface {
	ReadPRG(address uint16) uint8
	WritePRG(address uint16, value uint8)
	ReadCHR(address uint16) uint8
	WriteCHR(address uint16, value uint8)
}

// Cartridge is one parsed ROM image: PRG, CHR (ROM or RAM), SRAM, and
// the mapper that decodes accesses to them.
type Cartridge struct {
	prg []uint8
	chr []uint8

	mapperID uint8
	mapper   Mapper
	mirror   MirrorMode

	hasBattery bool
	chrIsRAM   bool
	sram       [0x2000]uint8
}

// header is the 16-byte iNES 1.0 header layout.
type header struct {
	Magic    [4]uint8
	PRGBanks uint8 // x16KB
	CHRBanks uint8 // x8KB; zero means the board carries CHR RAM
	Flags6   uint8
	Flags7   uint8
	PRGRAM   uint8
	TV       uint8
	_        [6]uint8
}

// LoadFromFile parses the iNES image at path.
func LoadFromFile(path string) (*Cartridge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader parses an iNES image from r. Rejected inputs: a short
// or wrong-magic header, a zero PRG bank count, a file shorter than the
// banks the header claims, and any mapper other than NROM.
func LoadFromReader(r io.Reader) (*Cartridge, error) {
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("reading iNES header: %w", err)
	}
	if string(h.Magic[:]) != "NES\x1A" {
		return nil, errBadMagic
	}
	if h.PRGBanks == 0 {
		return nil, errors.New("iNES header declares no PRG ROM")
	}

	cart := &Cartridge{
		mapperID:   h.Flags6>>4 | h.Flags7&0xF0,
		hasBattery: h.Flags6&0x02 != 0,
		mirror:     mirrorFromFlags(h.Flags6),
	}

	if h.Flags6&0x04 != 0 {
		if _, err := io.CopyN(io.Discard, r, trainerSize); err != nil {
			return nil, fmt.Errorf("skipping trainer: %w", err)
		}
	}

	cart.prg = make([]uint8, int(h.PRGBanks)*prgBankSize)
	if _, err := io.ReadFull(r, cart.prg); err != nil {
		return nil, fmt.Errorf("reading PRG ROM: %w", err)
	}

	if h.CHRBanks > 0 {
		cart.chr = make([]uint8, int(h.CHRBanks)*chrBankSize)
		if _, err := io.ReadFull(r, cart.chr); err != nil {
			return nil, fmt.Errorf("reading CHR ROM: %w", err)
		}
	} else {
		// No CHR banks in the image: the board supplies writable CHR RAM.
		cart.chr = make([]uint8, chrBankSize)
		cart.chrIsRAM = true
	}

	switch cart.mapperID {
	case 0:
		cart.mapper = newNROM(cart)
	default:
		return nil, fmt.Errorf("unsupported mapper %d", cart.mapperID)
	}
	return cart, nil
}

func mirrorFromFlags(flags6 uint8) MirrorMode {
	switch {
	case flags6&0x08 != 0:
		return MirrorFourScreen
	case flags6&0x01 != 0:
		return MirrorVertical
	default:
		return MirrorHorizontal
	}
}

// ReadPRG reads from the cartridge's CPU window ($4020-$FFFF).
func (c *Cartridge) ReadPRG(address uint16) uint8 {
	return c.mapper.ReadPRG(address)
}

// WritePRG writes into the cartridge's CPU window.
func (c *Cartridge) WritePRG(address uint16, value uint8) {
	c.mapper.WritePRG(address, value)
}

// ReadCHR reads from the pattern-table window ($0000-$1FFF in PPU space).
func (c *Cartridge) ReadCHR(address uint16) uint8 {
	return c.mapper.ReadCHR(address)
}

// WriteCHR writes into the pattern-table window; only CHR-RAM boards
// accept it.
func (c *Cartridge) WriteCHR(address uint16, value uint8) {
	c.mapper.WriteCHR(address, value)
}

// GetMirrorMode returns the nametable mirroring the header selected.
func (c *Cartridge) GetMirrorMode() MirrorMode {
	return c.mirror
}

// MapperID returns the iNES mapper number from the header.
func (c *Cartridge) MapperID() uint8 {
	return c.mapperID
}

// HasBattery reports whether flags 6 marked the SRAM battery-backed.
func (c *Cartridge) HasBattery() bool {
	return c.hasBattery
}
