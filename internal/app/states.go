package app

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gones/internal/bus"
)

// wramSize is the NES's 2KB internal RAM, the only memory region this
// core can both read out and write back through Bus's exported surface.
const wramSize = 0x800

// StateManager persists numbered save-state slots under one directory,
// one JSON file per ROM per slot.
type StateManager struct {
	dir         string
	maxSlots    int
	initialized bool
}

// SaveState is the on-disk representation of one slot.
type SaveState struct {
	Version     string    `json:"version"`
	Timestamp   time.Time `json:"timestamp"`
	ROMPath     string    `json:"rom_path"`
	ROMChecksum string    `json:"rom_checksum"`
	Slot        int       `json:"slot"`

	CPU  CPUStateData `json:"cpu"`
	PPU  PPUStateData `json:"ppu"`
	WRAM []uint8      `json:"wram"`

	FrameCount uint64 `json:"frame_count"`
	CycleCount uint64 `json:"cycle_count"`
}

// CPUStateData is the register file restored on load.
type CPUStateData struct {
	PC     uint16 `json:"pc"`
	A      uint8  `json:"a"`
	X      uint8  `json:"x"`
	Y      uint8  `json:"y"`
	SP     uint8  `json:"sp"`
	Status uint8  `json:"status"`
}

// PPUStateData records PPU timing for inspection. The bus exposes no
// mutators for PPU internals (VRAM, OAM, scroll latches), so these
// fields are captured but not replayed on load.
type PPUStateData struct {
	Scanline    int    `json:"scanline"`
	Cycle       int    `json:"cycle"`
	FrameCount  uint64 `json:"frame_count"`
	VBlank      bool   `json:"vblank"`
	RenderingOn bool   `json:"rendering_on"`
}

// SlotInfo summarizes one slot for a picker UI.
type SlotInfo struct {
	Slot      int
	Used      bool
	Timestamp time.Time
	ROMPath   string
	FilePath  string
	FileSize  int64
}

// NewStateManager creates a manager rooted at dir with ten slots,
// creating dir immediately.
func NewStateManager(dir string) *StateManager {
	sm := &StateManager{dir: dir, maxSlots: 10}
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Printf("state directory unavailable: %v\n", err)
		return sm
	}
	sm.initialized = true
	return sm
}

func (sm *StateManager) checkSlot(slot int) error {
	if !sm.initialized {
		return fmt.Errorf("state manager not initialized")
	}
	if slot < 0 || slot >= sm.maxSlots {
		return fmt.Errorf("slot %d out of range 0-%d", slot, sm.maxSlots-1)
	}
	return nil
}

// slotPath keys slot files by ROM base name so states follow the game,
// not its location on disk.
func (sm *StateManager) slotPath(slot int, romPath string) string {
	name := filepath.Base(romPath)
	name = name[:len(name)-len(filepath.Ext(name))]
	return filepath.Join(sm.dir, fmt.Sprintf("%s_slot_%d.save", name, slot))
}

// SaveState snapshots b into slot.
func (sm *StateManager) SaveState(b *bus.Bus, slot int, romPath string) error {
	if err := sm.checkSlot(slot); err != nil {
		return err
	}
	if b == nil {
		return fmt.Errorf("nil bus")
	}

	cpu := b.GetCPUState()
	ppu := b.GetPPUState()

	wram := make([]uint8, wramSize)
	for addr := range wram {
		wram[addr] = b.Memory.Read(uint16(addr))
	}

	state := &SaveState{
		Version:     "1.0",
		Timestamp:   time.Now(),
		ROMPath:     romPath,
		ROMChecksum: checksumFile(romPath),
		Slot:        slot,
		FrameCount:  b.GetFrameCount(),
		CycleCount:  b.GetCycleCount(),
		CPU: CPUStateData{
			PC: cpu.PC, A: cpu.A, X: cpu.X, Y: cpu.Y, SP: cpu.SP,
			Status: packFlags(cpu.Flags),
		},
		PPU: PPUStateData{
			Scanline: ppu.Scanline, Cycle: ppu.Cycle, FrameCount: ppu.FrameCount,
			VBlank: ppu.VBlankFlag, RenderingOn: ppu.RenderingOn,
		},
		WRAM: wram,
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(sm.slotPath(slot, romPath), data, 0644)
}

// LoadState restores slot into b: CPU registers and WRAM are replayed;
// PPU internals cannot be (see PPUStateData) so the PPU restarts from
// reset and the game's own vblank loop re-establishes its state.
func (sm *StateManager) LoadState(b *bus.Bus, slot int, romPath string) error {
	if err := sm.checkSlot(slot); err != nil {
		return err
	}
	if b == nil {
		return fmt.Errorf("nil bus")
	}

	state, err := sm.readSlot(slot, romPath)
	if err != nil {
		return err
	}
	if state.ROMPath != romPath {
		return fmt.Errorf("state belongs to %s", state.ROMPath)
	}

	b.Reset()

	b.CPU.PC = state.CPU.PC
	b.CPU.A = state.CPU.A
	b.CPU.X = state.CPU.X
	b.CPU.Y = state.CPU.Y
	b.CPU.SP = state.CPU.SP
	b.CPU.SetStatusByte(state.CPU.Status)

	for addr, v := range state.WRAM {
		if addr >= wramSize {
			break
		}
		b.Memory.Write(uint16(addr), v)
	}
	return nil
}

func (sm *StateManager) readSlot(slot int, romPath string) (*SaveState, error) {
	data, err := os.ReadFile(sm.slotPath(slot, romPath))
	if err != nil {
		return nil, fmt.Errorf("no state in slot %d: %w", slot, err)
	}
	var state SaveState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("corrupt state in slot %d: %w", slot, err)
	}
	if state.Version == "" {
		return nil, fmt.Errorf("slot %d missing version", slot)
	}
	return &state, nil
}

// packFlags folds a bus.CPUFlags into the NV1BDIZC byte layout.
func packFlags(f bus.CPUFlags) uint8 {
	p := uint8(0x20)
	for _, bit := range []struct {
		set  bool
		mask uint8
	}{
		{f.N, 0x80}, {f.V, 0x40}, {f.B, 0x10}, {f.D, 0x08},
		{f.I, 0x04}, {f.Z, 0x02}, {f.C, 0x01},
	} {
		if bit.set {
			p |= bit.mask
		}
	}
	return p
}

// checksumFile hashes romPath with SHA-256; empty when unreadable.
func checksumFile(romPath string) string {
	f, err := os.Open(romPath)
	if err != nil {
		return ""
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}

// HasSaveState reports whether slot holds a state for romPath.
func (sm *StateManager) HasSaveState(slot int, romPath string) bool {
	if slot < 0 || slot >= sm.maxSlots {
		return false
	}
	_, err := os.Stat(sm.slotPath(slot, romPath))
	return err == nil
}

// GetSlotInfo summarizes every slot's on-disk state for romPath.
func (sm *StateManager) GetSlotInfo(romPath string) []SlotInfo {
	slots := make([]SlotInfo, sm.maxSlots)
	for i := range slots {
		slots[i] = SlotInfo{Slot: i}
		path := sm.slotPath(i, romPath)
		stat, err := os.Stat(path)
		if err != nil {
			continue
		}
		slots[i].Used = true
		slots[i].FilePath = path
		slots[i].FileSize = stat.Size()
		slots[i].Timestamp = stat.ModTime()
		if state, err := sm.readSlot(i, romPath); err == nil {
			slots[i].ROMPath = state.ROMPath
			slots[i].Timestamp = state.Timestamp
		}
	}
	return slots
}

// DeleteState removes slot's file for romPath.
func (sm *StateManager) DeleteState(slot int, romPath string) error {
	if err := sm.checkSlot(slot); err != nil {
		return err
	}
	if !sm.HasSaveState(slot, romPath) {
		return fmt.Errorf("no state in slot %d", slot)
	}
	return os.Remove(sm.slotPath(slot, romPath))
}

// GetMaxSlots returns the number of slots.
func (sm *StateManager) GetMaxSlots() int {
	return sm.maxSlots
}

// Cleanup marks the manager unusable.
func (sm *StateManager) Cleanup() error {
	sm.initialized = false
	return nil
}
