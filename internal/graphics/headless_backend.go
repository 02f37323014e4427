package graphics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// HeadlessBackend runs with no window at all, for -nogui and for tests
// that need a Backend but never present a frame on screen.
type HeadlessBackend struct {
	initialized bool
	config      Config
}

// HeadlessWindow counts rendered frames and can optionally dump every
// Nth frame to a PPM file for offline inspection.
type HeadlessWindow struct {
	title      string
	width      int
	height     int
	running    bool
	frameCount int

	outputPath   string
	dumpInterval int // dump every Nth frame when > 0
}

// NewHeadlessBackend builds a HeadlessBackend.
func NewHeadlessBackend() Backend {
	return &HeadlessBackend{}
}

func (b *HeadlessBackend) Initialize(config Config) error {
	if b.initialized {
		return fmt.Errorf("headless backend already initialized")
	}
	b.config = config
	b.initialized = true
	return nil
}

func (b *HeadlessBackend) CreateWindow(title string, width, height int) (Window, error) {
	if !b.initialized {
		return nil, fmt.Errorf("backend not initialized")
	}
	return &HeadlessWindow{
		title:      title,
		width:      width,
		height:     height,
		running:    true,
		outputPath: ".",
	}, nil
}

func (b *HeadlessBackend) Cleanup() error {
	b.initialized = false
	return nil
}

func (b *HeadlessBackend) IsHeadless() bool { return true }

func (b *HeadlessBackend) GetName() string { return "Headless" }

func (w *HeadlessWindow) SetTitle(title string) { w.title = title }

func (w *HeadlessWindow) GetSize() (width, height int) { return w.width, w.height }

func (w *HeadlessWindow) ShouldClose() bool { return !w.running }

// PollEvents always returns nil: headless mode has no input source.
func (w *HeadlessWindow) PollEvents() []InputEvent { return nil }

// RenderFrame counts the frame and writes it out when the dump interval
// says so.
func (w *HeadlessWindow) RenderFrame(frameBuffer [256 * 240]uint32) error {
	w.frameCount++
	if w.dumpInterval <= 0 || w.frameCount%w.dumpInterval != 0 {
		return nil
	}
	name := filepath.Join(w.outputPath, fmt.Sprintf("frame_%06d.ppm", w.frameCount))
	return writePPM(name, frameBuffer)
}

// writePPM serializes a frame as a plain-text (P3) PPM image.
func writePPM(path string, frame [256 * 240]uint32) error {
	var sb strings.Builder
	sb.WriteString("P3\n256 240\n255\n")
	for y := 0; y < 240; y++ {
		for x := 0; x < 256; x++ {
			p := frame[y*256+x]
			fmt.Fprintf(&sb, "%d %d %d ", p>>16&0xFF, p>>8&0xFF, p&0xFF)
		}
		sb.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(sb.String()), 0644)
}

func (w *HeadlessWindow) Cleanup() error {
	w.running = false
	return nil
}

// SetOutputPath sets the directory frame dumps are written to.
func (w *HeadlessWindow) SetOutputPath(path string) {
	w.outputPath = path
}

// SetDumpInterval enables a PPM dump every n frames; 0 disables.
func (w *HeadlessWindow) SetDumpInterval(n int) {
	w.dumpInterval = n
}

// GetFrameCount reports how many frames RenderFrame has received.
func (w *HeadlessWindow) GetFrameCount() int {
	return w.frameCount
}
