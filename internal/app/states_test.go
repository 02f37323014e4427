package app

import (
	"testing"

	"gones/internal/bus"
	"gones/internal/cartridge"
)

func newStateBus() *bus.Bus {
	b := bus.New()
	cart := cartridge.NewMockCartridge()
	prg := make([]uint8, 0x8000)
	prg[0] = 0xEA // NOPs from $8000
	prg[0x7FFD] = 0x80
	cart.LoadPRG(prg)
	b.LoadCartridge(cart)
	return b
}

func TestSaveAndLoadState(t *testing.T) {
	sm := NewStateManager(t.TempDir())
	b := newStateBus()

	// Put recognizable values in CPU registers and WRAM.
	b.CPU.A = 0x42
	b.CPU.X = 0x24
	b.CPU.PC = 0x8123
	b.Memory.Write(0x0010, 0x99)

	if err := sm.SaveState(b, 0, "game.nes"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !sm.HasSaveState(0, "game.nes") {
		t.Fatal("slot 0 reported empty after save")
	}

	// Trash the state, then restore.
	b.Reset()
	b.CPU.A = 0
	b.Memory.Write(0x0010, 0)

	if err := sm.LoadState(b, 0, "game.nes"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if b.CPU.A != 0x42 || b.CPU.X != 0x24 || b.CPU.PC != 0x8123 {
		t.Errorf("CPU not restored: A=$%02X X=$%02X PC=$%04X", b.CPU.A, b.CPU.X, b.CPU.PC)
	}
	if got := b.Memory.Read(0x0010); got != 0x99 {
		t.Errorf("WRAM not restored: $%02X", got)
	}
}

func TestLoadRejectsWrongROM(t *testing.T) {
	sm := NewStateManager(t.TempDir())
	b := newStateBus()

	if err := sm.SaveState(b, 1, "game.nes"); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Slot files are keyed by ROM name, so a different ROM simply has
	// no state in that slot.
	if err := sm.LoadState(b, 1, "other.nes"); err == nil {
		t.Error("state loaded for the wrong ROM")
	}
}

func TestInvalidSlots(t *testing.T) {
	sm := NewStateManager(t.TempDir())
	b := newStateBus()

	if err := sm.SaveState(b, -1, "game.nes"); err == nil {
		t.Error("negative slot accepted")
	}
	if err := sm.SaveState(b, sm.GetMaxSlots(), "game.nes"); err == nil {
		t.Error("out-of-range slot accepted")
	}
	if err := sm.LoadState(b, 5, "game.nes"); err == nil {
		t.Error("load from empty slot succeeded")
	}
}

func TestSlotInfo(t *testing.T) {
	sm := NewStateManager(t.TempDir())
	b := newStateBus()
	if err := sm.SaveState(b, 2, "game.nes"); err != nil {
		t.Fatal(err)
	}

	slots := sm.GetSlotInfo("game.nes")
	if len(slots) != sm.GetMaxSlots() {
		t.Fatalf("got %d slots, want %d", len(slots), sm.GetMaxSlots())
	}
	if !slots[2].Used || slots[0].Used {
		t.Error("slot usage misreported")
	}
}

func TestDeleteState(t *testing.T) {
	sm := NewStateManager(t.TempDir())
	b := newStateBus()
	if err := sm.SaveState(b, 3, "game.nes"); err != nil {
		t.Fatal(err)
	}
	if err := sm.DeleteState(3, "game.nes"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if sm.HasSaveState(3, "game.nes") {
		t.Error("slot still present after delete")
	}
}
