package app

import (
	"fmt"
	"time"

	"gones/internal/bus"
)

// ntscCyclesPerFrame is one NTSC frame of CPU time: 341 dots x 262
// scanlines / 3 dots per CPU cycle, rounded up.
const ntscCyclesPerFrame = 29781

// Emulator drives the bus one frame at a time and keeps the frame
// buffer and timing stats the application loop presents.
type Emulator struct {
	bus    *bus.Bus
	config *Config

	cyclesPerFrame  uint64
	targetFrameTime time.Duration

	frameBuffer []uint32

	frameCount uint64
	frameTime  time.Duration
	smoothed   time.Duration

	running   bool
	startedAt time.Time
}

// NewEmulator builds an Emulator over b with NTSC timing.
func NewEmulator(b *bus.Bus, config *Config) *Emulator {
	e := &Emulator{
		bus:             b,
		config:          config,
		cyclesPerFrame:  ntscCyclesPerFrame,
		targetFrameTime: time.Second / 60,
		frameBuffer:     make([]uint32, nesWidth*nesHeight),
	}
	e.Reset()
	return e
}

// Reset clears the frame buffer and timing counters; NewEmulator calls it
// at construction.
func (e *Emulator) Reset() {
	e.frameCount = 0
	e.frameTime = 0
	e.smoothed = 0
	e.startedAt = time.Now()
	for i := range e.frameBuffer {
		e.frameBuffer[i] = 0
	}
}

// Start enables frame advancement; Update is a no-op before this.
func (e *Emulator) Start() { e.running = true }

// Stop halts frame advancement without resetting anything.
func (e *Emulator) Stop() { e.running = false }

// IsRunning reports whether Update advances emulation.
func (e *Emulator) IsRunning() bool { return e.running }

// Update advances exactly one emulated frame; called once per host
// frame from the application loop.
func (e *Emulator) Update() error {
	if !e.running {
		return nil
	}
	start := time.Now()
	if err := e.runFrame(); err != nil {
		return fmt.Errorf("frame execution: %w", err)
	}
	e.frameTime = time.Since(start)

	// Slow EMA for display: 95% history, 5% latest.
	if e.smoothed == 0 {
		e.smoothed = e.frameTime
	} else {
		e.smoothed = time.Duration(float64(e.smoothed)*0.95 + float64(e.frameTime)*0.05)
	}
	return nil
}

// runFrame steps the bus for one frame's cycles and copies out the
// PPU's frame buffer.
func (e *Emulator) runFrame() error {
	e.bus.RunCycles(e.cyclesPerFrame)
	e.frameCount++

	if fb := e.bus.GetFrameBuffer(); len(fb) == len(e.frameBuffer) {
		copy(e.frameBuffer, fb)
	}
	return nil
}

// StepFrame runs one frame outside the Start/Update lifecycle, for
// headless and debug drivers.
func (e *Emulator) StepFrame() error {
	if e.bus == nil {
		return fmt.Errorf("bus not initialized")
	}
	return e.runFrame()
}

// GetFrameBuffer returns the most recently completed frame.
func (e *Emulator) GetFrameBuffer() []uint32 {
	return e.frameBuffer
}

// GetFrameCount returns frames emulated since the last Reset.
func (e *Emulator) GetFrameCount() uint64 {
	return e.frameCount
}

// GetFrameTime returns the wall-clock cost of the last frame.
func (e *Emulator) GetFrameTime() time.Duration {
	return e.frameTime
}

// GetEmulationSpeed returns the smoothed (moving-average) frame pace as a
// percentage of real time; 100 means the emulator kept up with 60fps.
func (e *Emulator) GetEmulationSpeed() float64 {
	if e.smoothed == 0 {
		return 0
	}
	return float64(e.targetFrameTime) / float64(e.smoothed) * 100
}

// SetCyclesPerFrame overrides the per-frame CPU cycle budget, used when
// switching between NTSC and PAL timing.
func (e *Emulator) SetCyclesPerFrame(cycles uint64) {
	e.cyclesPerFrame = cycles
}

// GetCPUState exposes the CPU snapshot for debug overlays.
func (e *Emulator) GetCPUState() bus.CPUState {
	return e.bus.GetCPUState()
}

// GetPPUState exposes the PPU snapshot for debug overlays.
func (e *Emulator) GetPPUState() bus.PPUState {
	return e.bus.GetPPUState()
}

// Cleanup stops the emulator and releases its buffer.
func (e *Emulator) Cleanup() error {
	e.Stop()
	e.frameBuffer = nil
	return nil
}
