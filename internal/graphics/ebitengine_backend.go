package graphics

import (
	"fmt"
	"image"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// EbitengineBackend presents frames in an ebiten window. The emulation
// loop runs inside ebiten's Update callback via SetEmulatorUpdateFunc.
type EbitengineBackend struct {
	initialized bool
	config      Config
}

// EbitengineWindow is the Window an EbitengineBackend creates; it
// doubles as the ebiten.Game driving the render loop.
type EbitengineWindow struct {
	title  string
	width  int
	height int

	running bool
	filter  ebiten.Filter
	update  func() error

	frame  *ebiten.Image
	pixels *image.RGBA
	events []InputEvent
}

// padBinding maps one ebiten key to a controller button on a pad.
type padBinding struct {
	key    ebiten.Key
	pad    int
	button PadButton
}

// padBindings is the fixed controller layout: arrows/WASD for pad 1's
// d-pad, J/K and Z/X for A/B, Enter/Space for Start/Select, and the
// digit row for pad 2.
var padBindings = []padBinding{
	{ebiten.KeyArrowUp, 1, PadUp},
	{ebiten.KeyArrowDown, 1, PadDown},
	{ebiten.KeyArrowLeft, 1, PadLeft},
	{ebiten.KeyArrowRight, 1, PadRight},
	{ebiten.KeyW, 1, PadUp},
	{ebiten.KeyS, 1, PadDown},
	{ebiten.KeyA, 1, PadLeft},
	{ebiten.KeyD, 1, PadRight},
	{ebiten.KeyJ, 1, PadA},
	{ebiten.KeyK, 1, PadB},
	{ebiten.KeyZ, 1, PadA},
	{ebiten.KeyX, 1, PadB},
	{ebiten.KeyEnter, 1, PadStart},
	{ebiten.KeySpace, 1, PadSelect},

	{ebiten.Key1, 2, PadUp},
	{ebiten.Key2, 2, PadDown},
	{ebiten.Key3, 2, PadLeft},
	{ebiten.Key4, 2, PadRight},
	{ebiten.Key5, 2, PadA},
	{ebiten.Key6, 2, PadB},
	{ebiten.Key7, 2, PadStart},
	{ebiten.Key8, 2, PadSelect},
}

// appKeys maps the ebiten keys that cross the boundary as keys rather
// than pad buttons: quit and the save-state function keys.
var appKeys = []struct {
	key ebiten.Key
	out Key
}{
	{ebiten.KeyEscape, KeyEscape},
	{ebiten.KeyF1, KeyF1},
	{ebiten.KeyF2, KeyF2},
	{ebiten.KeyF3, KeyF3},
	{ebiten.KeyF4, KeyF4},
	{ebiten.KeyF5, KeyF5},
	{ebiten.KeyF6, KeyF6},
	{ebiten.KeyF7, KeyF7},
	{ebiten.KeyF8, KeyF8},
	{ebiten.KeyF9, KeyF9},
	{ebiten.KeyF10, KeyF10},
	{ebiten.KeyF11, KeyF11},
	{ebiten.KeyF12, KeyF12},
}

// NewEbitengineBackend builds the ebiten-backed Backend.
func NewEbitengineBackend() Backend {
	return &EbitengineBackend{}
}

func (b *EbitengineBackend) Initialize(config Config) error {
	if b.initialized {
		return fmt.Errorf("ebitengine backend already initialized")
	}
	b.config = config
	b.initialized = true
	return nil
}

func (b *EbitengineBackend) CreateWindow(title string, width, height int) (Window, error) {
	if !b.initialized {
		return nil, fmt.Errorf("backend not initialized")
	}
	if b.config.Headless {
		return nil, fmt.Errorf("cannot create a window in headless mode")
	}

	filter := ebiten.FilterNearest
	if b.config.Filter == "linear" {
		filter = ebiten.FilterLinear
	}

	w := &EbitengineWindow{
		title:   title,
		width:   width,
		height:  height,
		running: true,
		filter:  filter,
		frame:   ebiten.NewImage(256, 240),
		pixels:  image.NewRGBA(image.Rect(0, 0, 256, 240)),
	}

	ebiten.SetWindowTitle(title)
	ebiten.SetWindowSize(width, height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetVsyncEnabled(b.config.VSync)
	if b.config.Fullscreen {
		ebiten.SetFullscreen(true)
	}
	return w, nil
}

func (b *EbitengineBackend) Cleanup() error {
	b.initialized = false
	return nil
}

func (b *EbitengineBackend) IsHeadless() bool {
	return b.config.Headless
}

func (b *EbitengineBackend) GetName() string {
	return "Ebitengine"
}

func (w *EbitengineWindow) SetTitle(title string) {
	w.title = title
	ebiten.SetWindowTitle(title)
}

func (w *EbitengineWindow) GetSize() (width, height int) {
	return w.width, w.height
}

func (w *EbitengineWindow) ShouldClose() bool {
	return !w.running
}

// PollEvents hands out the input events collected during the last
// Update tick.
func (w *EbitengineWindow) PollEvents() []InputEvent {
	events := w.events
	w.events = nil
	return events
}

// RenderFrame converts the 0xRRGGBB frame to RGBA and uploads it to the
// GPU-side image drawn by Draw; ebiten presents it on its own schedule.
func (w *EbitengineWindow) RenderFrame(frameBuffer [256 * 240]uint32) error {
	pix := w.pixels.Pix
	for i, c := range frameBuffer {
		pix[i*4] = uint8(c >> 16)
		pix[i*4+1] = uint8(c >> 8)
		pix[i*4+2] = uint8(c)
		pix[i*4+3] = 0xFF
	}
	w.frame.WritePixels(pix)
	return nil
}

func (w *EbitengineWindow) Cleanup() error {
	w.running = false
	return nil
}

// SetEmulatorUpdateFunc installs the per-tick emulation callback run
// from ebiten's Update.
func (w *EbitengineWindow) SetEmulatorUpdateFunc(update func() error) {
	w.update = update
}

// Run enters ebiten's game loop; it blocks until the window closes.
func (w *EbitengineWindow) Run() error {
	return ebiten.RunGame(w)
}

// Update implements ebiten.Game: gather input edges, then advance the
// emulator one frame.
func (w *EbitengineWindow) Update() error {
	if !w.running {
		return ebiten.Termination
	}
	w.collectInput()
	if w.update != nil {
		return w.update()
	}
	return nil
}

// collectInput translates this tick's key presses and releases into
// InputEvents for PollEvents.
func (w *EbitengineWindow) collectInput() {
	for _, bind := range padBindings {
		pressed := inpututil.IsKeyJustPressed(bind.key)
		if !pressed && !inpututil.IsKeyJustReleased(bind.key) {
			continue
		}
		w.events = append(w.events, InputEvent{
			Kind:    EventButton,
			Pad:     bind.pad,
			Button:  bind.button,
			Pressed: pressed,
		})
	}

	for _, bind := range appKeys {
		if !inpututil.IsKeyJustPressed(bind.key) {
			continue
		}
		w.events = append(w.events, InputEvent{
			Kind:    EventKey,
			Key:     bind.out,
			Pressed: true,
			Shift:   ebiten.IsKeyPressed(ebiten.KeyShift),
		})
	}
}

// Draw implements ebiten.Game: scale the NES frame to the window,
// preserving aspect ratio, and center it.
func (w *EbitengineWindow) Draw(screen *ebiten.Image) {
	bounds := screen.Bounds()
	sw, sh := float64(bounds.Dx()), float64(bounds.Dy())

	scale := sw / 256
	if s := sh / 240; s < scale {
		scale = s
	}

	op := &ebiten.DrawImageOptions{Filter: w.filter}
	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate((sw-256*scale)/2, (sh-240*scale)/2)
	screen.DrawImage(w.frame, op)
}

// Layout implements ebiten.Game.
func (w *EbitengineWindow) Layout(outsideWidth, outsideHeight int) (int, int) {
	w.width = outsideWidth
	w.height = outsideHeight
	return outsideWidth, outsideHeight
}
