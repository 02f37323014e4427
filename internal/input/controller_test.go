package input

import "testing"

func strobe(c *Controller) {
	c.Write(1)
	c.Write(0)
}

func TestReadSequence(t *testing.T) {
	c := New()
	c.SetButton(ButtonA, true)
	c.SetButton(ButtonStart, true)
	strobe(c)

	// Bits shift out in A, B, Select, Start, Up, Down, Left, Right order.
	want := []uint8{1, 0, 0, 1, 0, 0, 0, 0}
	for i, w := range want {
		if got := c.Read(); got != w {
			t.Errorf("read %d = %d, want %d", i, got, w)
		}
	}
}

func TestReadsPastEightBitsReturnZero(t *testing.T) {
	c := New()
	c.SetButtons([8]bool{true, true, true, true, true, true, true, true})
	strobe(c)
	for i := 0; i < 8; i++ {
		c.Read()
	}
	for i := 0; i < 4; i++ {
		if got := c.Read(); got != 0 {
			t.Errorf("extended read %d = %d, want 0", i, got)
		}
	}
}

func TestStrobeHighRepeatsButtonA(t *testing.T) {
	c := New()
	c.SetButton(ButtonA, true)
	c.Write(1) // strobe held high

	for i := 0; i < 3; i++ {
		if got := c.Read(); got != 1 {
			t.Errorf("strobed read %d = %d, want live A state", i, got)
		}
	}
}

func TestSnapshotFrozenAtStrobeFall(t *testing.T) {
	c := New()
	c.SetButton(ButtonB, true)
	strobe(c)

	// Changing buttons after the strobe fall doesn't alter the latched
	// sequence.
	c.SetButton(ButtonB, false)
	c.SetButton(ButtonA, true)

	if got := c.Read(); got != 0 {
		t.Errorf("bit A = %d, want latched 0", got)
	}
	if got := c.Read(); got != 1 {
		t.Errorf("bit B = %d, want latched 1", got)
	}
}

func TestSetButtonsOrder(t *testing.T) {
	c := New()
	c.SetButtons([8]bool{false, false, true, false, false, true, false, false}) // Select + Down
	if !c.IsPressed(ButtonSelect) || !c.IsPressed(ButtonDown) {
		t.Error("SetButtons did not map array indices to shift-register order")
	}
	if c.IsPressed(ButtonA) || c.IsPressed(ButtonRight) {
		t.Error("SetButtons set unexpected buttons")
	}
}

func TestPortDispatch(t *testing.T) {
	is := NewInputState()
	is.SetButtons1([8]bool{true})
	is.SetButtons2([8]bool{false, true})

	is.Write(0x4016, 1)
	is.Write(0x4016, 0)

	if got := is.Read(0x4016) & 1; got != 1 {
		t.Errorf("port 1 bit A = %d, want 1", got)
	}
	// Port 2 carries bit 6 high (shared open-bus behavior at $4017).
	v := is.Read(0x4017)
	if v&1 != 0 {
		t.Errorf("port 2 bit A = %d, want 0", v&1)
	}
	if v&0x40 == 0 {
		t.Error("$4017 read missing bit 6")
	}
	if got := is.Read(0x4017) & 1; got != 1 {
		t.Errorf("port 2 bit B = %d, want 1", got)
	}
}

func TestReset(t *testing.T) {
	c := New()
	c.SetButton(ButtonA, true)
	strobe(c)
	c.Read()
	c.Reset()
	if c.IsPressed(ButtonA) || c.GetBitPosition() != 0 {
		t.Error("reset did not clear controller state")
	}
}
