// Package app owns the desktop application around the console core: the
// run loop, window and audio lifecycle, persisted configuration, input
// dispatch, and save states.
package app

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"gones/internal/bus"
	"gones/internal/cartridge"
	"gones/internal/graphics"
)

// Application wires the console bus to a graphics backend, an audio
// player, and the persisted configuration.
type Application struct {
	bus *bus.Bus

	backend graphics.Backend
	window  graphics.Window
	video   *graphics.VideoProcessor

	// audio is nil in headless runs and when no device is available.
	audio *audioPlayer

	config   *Config
	emulator *Emulator
	states   *StateManager

	running     bool
	paused      bool
	initialized bool
	headless    bool

	romPath   string
	cartridge *cartridge.Cartridge

	// Controller state mirrored between input events; events only carry
	// edges, so the full state is reassembled here.
	pad1 [8]bool
	pad2 [8]bool

	// Quitting requires a second Escape within the confirmation window.
	lastEscape time.Time

	frameCount uint64
	startTime  time.Time
	fps        float64
	fpsWindow  time.Time
	fpsFrames  uint64
}

// ApplicationError wraps a failure with the component and operation that
// produced it.
type ApplicationError struct {
	Component string
	Operation string
	Err       error
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Component, e.Operation, e.Err)
}

// NewApplication builds a windowed application with config loaded from
// configPath (defaults apply if the file is missing).
func NewApplication(configPath string) (*Application, error) {
	return NewApplicationWithMode(configPath, false)
}

// NewApplicationWithMode builds the application, optionally headless
// (no window, no audio) for -nogui runs and tests.
func NewApplicationWithMode(configPath string, headless bool) (*Application, error) {
	app := &Application{
		config:    NewConfig(),
		headless:  headless,
		startTime: time.Now(),
	}

	if configPath != "" {
		if err := app.config.LoadFromFile(configPath); err != nil {
			log.Printf("config %s unusable, using defaults: %v", configPath, err)
		}
	}

	if err := app.initialize(); err != nil {
		return nil, &ApplicationError{Component: "app", Operation: "initialize", Err: err}
	}
	return app, nil
}

func (app *Application) initialize() error {
	app.bus = bus.New()

	if err := app.initializeBackend(); err != nil {
		return err
	}

	// Audio device failures (no sound card, containers) run muted
	// rather than failing startup.
	if !app.headless {
		player, err := newAudioPlayer(app.bus)
		if err != nil {
			log.Printf("audio disabled: %v", err)
		} else {
			app.audio = player
			app.audio.SetVolume(float64(app.config.Audio.Volume))
			if app.config.Audio.Enabled {
				app.audio.Start()
			}
		}
	}

	app.emulator = NewEmulator(app.bus, app.config)
	app.states = NewStateManager(app.config.Paths.SaveStates)
	app.initialized = true
	return nil
}

// initializeBackend creates and initializes the configured graphics
// backend, falling back to headless when a GUI backend can't start.
func (app *Application) initializeBackend() error {
	kind := graphics.BackendType(app.config.Video.Backend)
	if app.headless {
		kind = graphics.BackendHeadless
	}

	backend, err := graphics.CreateBackend(kind)
	if err != nil {
		return err
	}

	cfg := graphics.Config{
		Title:      "gones",
		Width:      app.config.Window.Width,
		Height:     app.config.Window.Height,
		Fullscreen: app.config.Window.Fullscreen,
		VSync:      app.config.Video.VSync,
		Filter:     app.config.Video.Filter,
		Headless:   app.headless,
		Debug:      app.config.Debug.EnableLogging,
	}

	if err := backend.Initialize(cfg); err != nil {
		if kind == graphics.BackendEbitengine {
			log.Printf("ebitengine backend failed (%v), falling back to headless", err)
			backend, err = graphics.CreateBackend(graphics.BackendHeadless)
			if err != nil {
				return err
			}
			cfg.Headless = true
			if err := backend.Initialize(cfg); err != nil {
				return err
			}
		} else {
			return err
		}
	}
	app.backend = backend

	if !app.headless && !backend.IsHeadless() {
		app.window, err = backend.CreateWindow(cfg.Title, cfg.Width, cfg.Height)
		if err != nil {
			return err
		}
	}

	app.video = graphics.NewVideoProcessor(
		app.config.Video.Brightness,
		app.config.Video.Contrast,
		app.config.Video.Saturation,
	)
	return nil
}

// LoadROM parses the iNES image at romPath and inserts it.
func (app *Application) LoadROM(romPath string) error {
	if !app.initialized {
		return errors.New("application not initialized")
	}

	cart, err := cartridge.LoadFromFile(romPath)
	if err != nil {
		return &ApplicationError{Component: "cartridge", Operation: "load", Err: err}
	}

	app.cartridge = cart
	app.romPath = romPath
	app.bus.LoadCartridge(cart)

	if app.window != nil {
		app.window.SetTitle(fmt.Sprintf("gones - %s", filepath.Base(romPath)))
	}
	app.emulator.Start()
	return nil
}

// Run enters the main loop and blocks until the window closes or Stop
// is called.
func (app *Application) Run() error {
	if !app.initialized {
		return errors.New("application not initialized")
	}
	app.running = true
	app.startTime = time.Now()
	app.fpsWindow = app.startTime

	// The ebiten backend owns the loop: the emulator advances from
	// inside its Update callback.
	if w, ok := graphics.AsEbitengineWindow(app.window); ok {
		w.SetEmulatorUpdateFunc(app.tick)
		return w.Run()
	}

	// Other backends are driven by a plain timed loop.
	for app.running {
		if err := app.tick(); err != nil {
			return err
		}
		time.Sleep(time.Second / 60)
	}
	return nil
}

// tick advances one host frame: input, one emulated frame, and a render.
func (app *Application) tick() error {
	if err := app.processInput(); err != nil {
		log.Printf("input error: %v", err)
	}

	if !app.paused && app.cartridge != nil {
		if err := app.emulator.Update(); err != nil {
			return err
		}
	}

	if err := app.render(); err != nil {
		log.Printf("render error: %v", err)
	}

	app.trackFrame()

	if app.window != nil && app.window.ShouldClose() {
		app.Stop()
	}
	return nil
}

// processInput folds this tick's events into the controller state and
// handles the application-level keys (quit, save states). Button events
// already carry their pad number and shift-register index, so the state
// arrays update directly.
func (app *Application) processInput() error {
	if app.window == nil {
		return nil
	}
	events := app.window.PollEvents()
	if len(events) == 0 {
		return nil
	}

	pad1Changed, pad2Changed := false, false
	for _, ev := range events {
		switch ev.Kind {
		case graphics.EventQuit:
			app.Stop()
			return nil

		case graphics.EventKey:
			app.handleKey(ev)

		case graphics.EventButton:
			switch ev.Pad {
			case 1:
				app.pad1[ev.Button] = ev.Pressed
				pad1Changed = true
			case 2:
				app.pad2[ev.Button] = ev.Pressed
				pad2Changed = true
			}
		}
	}

	if app.cartridge != nil {
		if pad1Changed {
			app.bus.SetControllerButtons(1, app.pad1)
		}
		if pad2Changed {
			app.bus.SetControllerButtons(2, app.pad2)
		}
	}
	return nil
}

// handleKey services the non-controller keys: Escape double-tap to
// quit, F1-F10 save states (with Shift to load).
func (app *Application) handleKey(ev graphics.InputEvent) {
	if !ev.Pressed {
		return
	}

	if ev.Key == graphics.KeyEscape {
		now := time.Now()
		if !app.lastEscape.IsZero() && now.Sub(app.lastEscape) < 3*time.Second {
			fmt.Println("shutting down")
			app.Stop()
		} else {
			fmt.Println("press Escape again within 3 seconds to quit")
			app.lastEscape = now
		}
		return
	}
	app.lastEscape = time.Time{}

	if ev.Key >= graphics.KeyF1 && ev.Key <= graphics.KeyF10 {
		slot := int(ev.Key - graphics.KeyF1)
		if ev.Shift {
			if err := app.LoadState(slot); err != nil {
				fmt.Printf("load state %d: %v\n", slot, err)
			}
		} else if err := app.SaveState(slot); err != nil {
			fmt.Printf("save state %d: %v\n", slot, err)
		}
	}
}

// render hands the current frame to the window, through the video
// processor when any adjustment is configured.
func (app *Application) render() error {
	if app.window == nil || app.cartridge == nil {
		return nil
	}

	fb := app.bus.GetFrameBuffer()
	if app.video != nil {
		fb = app.video.ProcessFrame(fb)
	}
	var frame [256 * 240]uint32
	copy(frame[:], fb)
	return app.window.RenderFrame(frame)
}

// trackFrame maintains the once-per-second FPS estimate.
func (app *Application) trackFrame() {
	app.frameCount++
	app.fpsFrames++

	now := time.Now()
	if elapsed := now.Sub(app.fpsWindow); elapsed >= time.Second {
		app.fps = float64(app.fpsFrames) / elapsed.Seconds()
		app.fpsFrames = 0
		app.fpsWindow = now
		if app.config.Debug.ShowFPS {
			log.Printf("fps=%.1f frames=%d", app.fps, app.frameCount)
		}
	}
}

// Stop ends the main loop.
func (app *Application) Stop() {
	app.running = false
	if app.window != nil {
		app.window.Cleanup()
	}
}

// Pause suspends emulation; rendering continues on the last frame.
func (app *Application) Pause() { app.paused = true }

// Resume continues emulation after Pause.
func (app *Application) Resume() { app.paused = false }

// TogglePause flips the pause state.
func (app *Application) TogglePause() { app.paused = !app.paused }

// SaveState writes the current console state to slot.
func (app *Application) SaveState(slot int) error {
	if app.cartridge == nil {
		return errors.New("no ROM loaded")
	}
	return app.states.SaveState(app.bus, slot, app.romPath)
}

// LoadState restores slot's saved state.
func (app *Application) LoadState(slot int) error {
	if app.cartridge == nil {
		return errors.New("no ROM loaded")
	}
	return app.states.LoadState(app.bus, slot, app.romPath)
}

// Reset resets the console without unloading the ROM.
func (app *Application) Reset() {
	if app.bus != nil {
		app.bus.Reset()
	}
}

// SetControllerButtons forwards a full controller state to the bus.
func (app *Application) SetControllerButtons(controller int, buttons [8]bool) {
	if app.bus != nil {
		app.bus.SetControllerButtons(controller, buttons)
	}
}

// IsRunning reports whether the main loop is active.
func (app *Application) IsRunning() bool { return app.running }

// IsPaused reports whether emulation is suspended.
func (app *Application) IsPaused() bool { return app.paused }

// GetFPS returns the last one-second FPS estimate.
func (app *Application) GetFPS() float64 { return app.fps }

// GetFrameCount returns host frames since Run started.
func (app *Application) GetFrameCount() uint64 { return app.frameCount }

// GetUptime returns time since the application started.
func (app *Application) GetUptime() time.Duration { return time.Since(app.startTime) }

// GetROMPath returns the loaded ROM's path, empty when none is loaded.
func (app *Application) GetROMPath() string { return app.romPath }

// GetConfig exposes the live configuration.
func (app *Application) GetConfig() *Config { return app.config }

// GetBus exposes the console bus for headless drivers and tests.
func (app *Application) GetBus() *bus.Bus { return app.bus }

// ApplyDebugSettings pushes the config's debug toggles into the
// components' own instrumentation hooks.
func (app *Application) ApplyDebugSettings() {
	if app.config == nil || app.bus == nil {
		return
	}
	enable := app.config.Debug.EnableLogging

	app.bus.PPU.EnableBackgroundDebugLogging(enable && app.config.Debug.PPUDebugging)
	if enable {
		app.bus.PPU.SetBackgroundDebugVerbosity(60)
	}
	app.bus.EnableInputDebug(enable)
	app.bus.EnableCPUDebug(enable && app.config.Debug.CPUTracing)
	app.bus.EnableWatchpointLogging(enable && app.config.Debug.MemoryDebugging)
}

// Cleanup tears down audio, state manager, emulator, window, and
// backend, returning the last error encountered.
func (app *Application) Cleanup() error {
	var lastErr error

	if app.audio != nil {
		if err := app.audio.Close(); err != nil {
			lastErr = err
		}
	}
	if app.states != nil {
		if err := app.states.Cleanup(); err != nil {
			lastErr = err
		}
	}
	if app.emulator != nil {
		if err := app.emulator.Cleanup(); err != nil {
			lastErr = err
		}
	}
	if app.window != nil {
		if err := app.window.Cleanup(); err != nil {
			lastErr = err
		}
	}
	if app.backend != nil {
		if err := app.backend.Cleanup(); err != nil {
			lastErr = err
		}
	}

	app.initialized = false
	return lastErr
}
