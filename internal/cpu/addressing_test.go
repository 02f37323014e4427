package cpu

import "testing"

func TestZeroPageIndexedWraps(t *testing.T) {
	// LDA $F0,X with X=$20 reads $10, not $110.
	c, mem := newTestCPU(0x8000, 0xB5, 0xF0)
	c.X = 0x20
	mem.data[0x0010] = 0xAB
	mem.data[0x0110] = 0xCD
	c.Step()
	if c.A != 0xAB {
		t.Errorf("A = $%02X, want $AB (zero-page wrap)", c.A)
	}
}

func TestIndexedIndirectWraps(t *testing.T) {
	// LDA ($FE,X) with X=$01: pointer bytes come from $FF and $00.
	c, mem := newTestCPU(0x8000, 0xA1, 0xFE)
	c.X = 0x01
	mem.data[0x00FF] = 0x34
	mem.data[0x0000] = 0x12
	mem.data[0x1234] = 0x99
	c.Step()
	if c.A != 0x99 {
		t.Errorf("A = $%02X, want $99 (pointer wrap)", c.A)
	}
}

func TestIndirectIndexed(t *testing.T) {
	// LDA ($40),Y
	c, mem := newTestCPU(0x8000, 0xB1, 0x40)
	mem.data[0x0040] = 0x00
	mem.data[0x0041] = 0x20
	mem.data[0x2005] = 0x77
	c.Y = 0x05
	c.Step()
	if c.A != 0x77 {
		t.Errorf("A = $%02X, want $77", c.A)
	}
}

func TestAbsoluteIndexedPageCrossCycle(t *testing.T) {
	// LDA $20F0,X: 4 cycles within the page, 5 across.
	c, _ := newTestCPU(0x8000, 0xBD, 0xF0, 0x20)
	c.X = 0x05
	if cycles := c.Step(); cycles != 4 {
		t.Errorf("no-cross read took %d cycles, want 4", cycles)
	}

	c, _ = newTestCPU(0x8000, 0xBD, 0xF0, 0x20)
	c.X = 0x20
	if cycles := c.Step(); cycles != 5 {
		t.Errorf("page-cross read took %d cycles, want 5", cycles)
	}
}

func TestStoreHasNoPageCrossPenalty(t *testing.T) {
	// STA $20F0,X is always 5 cycles, crossing or not.
	c, _ := newTestCPU(0x8000, 0x9D, 0xF0, 0x20)
	c.X = 0x20
	if cycles := c.Step(); cycles != 5 {
		t.Errorf("STA abs,X took %d cycles, want 5", cycles)
	}
}

func TestBranchCycles(t *testing.T) {
	// Not taken: 2 cycles.
	c, _ := newTestCPU(0x8000, 0xD0, 0x10) // BNE with Z set
	c.Z = true
	if cycles := c.Step(); cycles != 2 {
		t.Errorf("untaken branch took %d cycles, want 2", cycles)
	}
	if c.PC != 0x8002 {
		t.Errorf("PC = $%04X, want $8002", c.PC)
	}

	// Taken within the page: 3 cycles.
	c, _ = newTestCPU(0x8000, 0xD0, 0x10)
	c.Z = false
	if cycles := c.Step(); cycles != 3 {
		t.Errorf("taken branch took %d cycles, want 3", cycles)
	}
	if c.PC != 0x8012 {
		t.Errorf("PC = $%04X, want $8012", c.PC)
	}

	// Taken across a page: 4 cycles. Branch at $80F0 with offset $20
	// lands at $8112.
	c, _ = newTestCPU(0x80F0, 0xD0, 0x20)
	c.Z = false
	if cycles := c.Step(); cycles != 4 {
		t.Errorf("page-crossing branch took %d cycles, want 4", cycles)
	}
	if c.PC != 0x8112 {
		t.Errorf("PC = $%04X, want $8112", c.PC)
	}
}

func TestBackwardBranch(t *testing.T) {
	// BEQ -2 loops back onto itself.
	c, _ := newTestCPU(0x8000, 0xF0, 0xFE)
	c.Z = true
	c.Step()
	if c.PC != 0x8000 {
		t.Errorf("PC = $%04X, want $8000", c.PC)
	}
}

func TestAccumulatorModeTouchesNoMemory(t *testing.T) {
	c, mem := newTestCPU(0x8000, 0x0A)
	snapshot := mem.data
	c.A = 0x40
	c.Step()
	// Only the opcode fetch happened; data memory is untouched.
	if mem.data != snapshot {
		t.Error("ASL A wrote memory")
	}
	if c.A != 0x80 {
		t.Errorf("A = $%02X, want $80", c.A)
	}
}

func TestInstructionLengths(t *testing.T) {
	tests := []struct {
		name    string
		program []uint8
		wantPC  uint16
	}{
		{"implied", []uint8{0xE8}, 0x8001},
		{"immediate", []uint8{0xA9, 0x01}, 0x8002},
		{"zero page", []uint8{0xA5, 0x10}, 0x8002},
		{"absolute", []uint8{0xAD, 0x00, 0x20}, 0x8003},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCPU(0x8000, tt.program...)
			c.Step()
			if c.PC != tt.wantPC {
				t.Errorf("PC = $%04X, want $%04X", c.PC, tt.wantPC)
			}
		})
	}
}
