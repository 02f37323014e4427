package graphics

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHeadlessBackendLifecycle(t *testing.T) {
	b := NewHeadlessBackend()
	if err := b.Initialize(Config{Headless: true}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := b.Initialize(Config{}); err == nil {
		t.Error("double initialize succeeded")
	}
	if !b.IsHeadless() {
		t.Error("headless backend reports a display")
	}

	w, err := b.CreateWindow("test", 256, 240)
	if err != nil {
		t.Fatalf("create window: %v", err)
	}
	if w.ShouldClose() {
		t.Error("fresh window already closing")
	}

	var frame [256 * 240]uint32
	for i := 0; i < 3; i++ {
		if err := w.RenderFrame(frame); err != nil {
			t.Fatalf("render: %v", err)
		}
	}
	if got := w.(*HeadlessWindow).GetFrameCount(); got != 3 {
		t.Errorf("frame count = %d, want 3", got)
	}

	if err := w.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if !w.ShouldClose() {
		t.Error("window not closing after cleanup")
	}
}

func TestHeadlessFrameDump(t *testing.T) {
	dir := t.TempDir()
	b := NewHeadlessBackend()
	if err := b.Initialize(Config{Headless: true}); err != nil {
		t.Fatal(err)
	}
	w, _ := b.CreateWindow("dump", 256, 240)
	hw := w.(*HeadlessWindow)
	hw.SetOutputPath(dir)
	hw.SetDumpInterval(2)

	var frame [256 * 240]uint32
	frame[0] = 0xFF0000
	for i := 0; i < 4; i++ {
		if err := w.RenderFrame(frame); err != nil {
			t.Fatalf("render %d: %v", i, err)
		}
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "frame_*.ppm"))
	if len(matches) != 2 {
		t.Fatalf("dumped %d frames, want 2", len(matches))
	}
	data, err := os.ReadFile(matches[0])
	if err != nil || len(data) == 0 {
		t.Fatalf("unreadable dump: %v", err)
	}
	if string(data[:2]) != "P3" {
		t.Errorf("dump is not a PPM: %q", data[:2])
	}
}

func TestCreateBackendSelection(t *testing.T) {
	if b, _ := CreateBackend(BackendHeadless); b.GetName() != "Headless" {
		t.Error("headless selection failed")
	}
	if b, _ := CreateBackend(BackendTerminal); b.GetName() != "Terminal" {
		t.Error("terminal selection failed")
	}
}

func TestVideoProcessorNeutralPassthrough(t *testing.T) {
	vp := NewVideoProcessor(1.0, 1.0, 1.0)
	in := []uint32{0x123456, 0xABCDEF}
	out := vp.ProcessFrame(in)
	if &out[0] != &in[0] {
		t.Error("neutral settings should return the input buffer unchanged")
	}
}

func TestVideoProcessorBrightness(t *testing.T) {
	vp := NewVideoProcessor(2.0, 1.0, 1.0)
	out := vp.ProcessFrame([]uint32{0x202020})
	if out[0] != 0x404040 {
		t.Errorf("doubled brightness = $%06X, want $404040", out[0])
	}

	// Channels saturate rather than wrap.
	vp = NewVideoProcessor(10.0, 1.0, 1.0)
	out = vp.ProcessFrame([]uint32{0x808080})
	if out[0] != 0xFFFFFF {
		t.Errorf("saturated pixel = $%06X, want $FFFFFF", out[0])
	}
}

func TestTerminalRampIndex(t *testing.T) {
	if got := rampIndex(0xFFFFFF); got != 0 {
		t.Errorf("white maps to ramp %d, want 0 (brightest)", got)
	}
	if got := rampIndex(0x000000); got != len(terminalRamp)-1 {
		t.Errorf("black maps to ramp %d, want %d", got, len(terminalRamp)-1)
	}
}
