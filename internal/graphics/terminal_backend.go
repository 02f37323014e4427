package graphics

import "fmt"

// terminalRamp maps the brightest to darkest characters used by
// TerminalWindow.RenderFrame, from solid block to blank.
var terminalRamp = []rune("█▓▒░ ")

// TerminalBackend renders NES frames as coarse block-character art directly to
// stdout, for running the emulator over a plain SSH session.
type TerminalBackend struct {
	initialized bool
	config      Config
}

// TerminalWindow is the Window TerminalBackend hands out.
type TerminalWindow struct {
	title   string
	width   int
	height  int
	running bool
}

// NewTerminalBackend builds a TerminalBackend.
func NewTerminalBackend() Backend {
	return &TerminalBackend{}
}

func (b *TerminalBackend) Initialize(config Config) error {
	if b.initialized {
		return fmt.Errorf("terminal backend already initialized")
	}
	b.config = config
	b.initialized = true
	return nil
}

func (b *TerminalBackend) CreateWindow(title string, width, height int) (Window, error) {
	if !b.initialized {
		return nil, fmt.Errorf("backend not initialized")
	}
	return &TerminalWindow{title: title, width: width, height: height, running: true}, nil
}

func (b *TerminalBackend) Cleanup() error {
	b.initialized = false
	return nil
}

// IsHeadless is false: this backend does draw something, just not to a
// graphical window.
func (b *TerminalBackend) IsHeadless() bool {
	return false
}

func (b *TerminalBackend) GetName() string {
	return "Terminal"
}

// SetTitle sets both the stored title and the terminal's window title
// via an OSC escape sequence.
func (w *TerminalWindow) SetTitle(title string) {
	w.title = title
	fmt.Printf("\033]0;%s\007", title)
}

func (w *TerminalWindow) GetSize() (width, height int) {
	return w.width, w.height
}

func (w *TerminalWindow) ShouldClose() bool {
	return !w.running
}

// PollEvents always returns nil: this backend doesn't read terminal input.
func (w *TerminalWindow) PollEvents() []InputEvent {
	return nil
}

// RenderFrame downsamples the 256x240 frame to a small character grid
// (every 4th column, every 8th row, matching a terminal cell's roughly
// 1:2 aspect ratio) and shades each sampled pixel by luminance using
// terminalRamp.
func (w *TerminalWindow) RenderFrame(frameBuffer [256 * 240]uint32) error {
	fmt.Print("\033[2J\033[H")

	for y := 0; y < 240; y += 8 {
		for x := 0; x < 256; x += 4 {
			fmt.Printf("%c", terminalRamp[rampIndex(frameBuffer[y*256+x])])
		}
		fmt.Println()
	}
	return nil
}

// rampIndex maps an 0xRRGGBB pixel to an index into terminalRamp by
// luma, brightest first.
func rampIndex(pixel uint32) int {
	r := (pixel >> 16) & 0xFF
	g := (pixel >> 8) & 0xFF
	b := pixel & 0xFF
	luma := (r*299 + g*587 + b*114) / 1000

	steps := len(terminalRamp) - 1
	idx := steps - int(luma)*steps/255
	if idx < 0 {
		idx = 0
	}
	if idx > steps {
		idx = steps
	}
	return idx
}

func (w *TerminalWindow) Cleanup() error {
	w.running = false
	return nil
}
