// Package bus assembles the console: CPU, PPU, APU, memory fabric,
// cartridge, and controllers, plus the tick loop that keeps them in
// lockstep (three PPU dots and one APU cycle per CPU cycle) and the
// NMI/IRQ routing between them.
package bus

import (
	"log"

	"gones/internal/apu"
	"gones/internal/cartridge"
	"gones/internal/cpu"
	"gones/internal/input"
	"gones/internal/memory"
	"gones/internal/ppu"
)

// cpuCyclesPerFrame is one NTSC frame of CPU time: 89,342 PPU dots / 3.
const cpuCyclesPerFrame = 29781

// Bus owns every console component and drives them from Step.
type Bus struct {
	CPU    *cpu.CPU
	PPU    *ppu.PPU
	APU    *apu.APU
	Memory *memory.Memory
	Input  *input.InputState

	cpuCycles  uint64
	ppuCycles  uint64
	frameCount uint64

	// OAM DMA stalls the CPU; while dmaStall is nonzero Step burns
	// stall cycles instead of executing instructions.
	dmaStall uint64

	nmiPending bool

	// Memory watchpoints, checked periodically when enabled.
	watchpoints   map[uint16]uint8
	watchpointsOn bool
}

// New builds and wires a console with no cartridge inserted.
func New() *Bus {
	b := &Bus{
		PPU:         ppu.New(),
		APU:         apu.New(),
		Input:       input.NewInputState(),
		watchpoints: make(map[uint16]uint8),
	}

	b.Memory = memory.New(b.PPU, b.APU, nil)
	b.Memory.SetInputSystem(b.Input)
	b.CPU = cpu.New(b.Memory)

	b.wire()
	b.Reset()
	return b
}

// wire re-establishes the cross-component callbacks; called from New and
// again after LoadCartridge rebuilds the memory fabric.
func (b *Bus) wire() {
	b.PPU.SetNMICallback(func() { b.nmiPending = true })
	b.PPU.SetFrameCompleteCallback(func() { b.frameCount = b.PPU.GetFrameCount() })
	b.Memory.SetDMACallback(b.TriggerOAMDMA)
	b.APU.SetMemoryReader(b.Memory)
	b.APU.SetIRQCallback(b.CPU.TriggerIRQ)
}

// Reset returns every component and the timing state to power-on.
func (b *Bus) Reset() {
	b.CPU.Reset()
	b.PPU.Reset()
	b.APU.Reset()
	b.Input.Reset()

	b.cpuCycles = 0
	b.ppuCycles = 0
	b.frameCount = 0
	b.dmaStall = 0
	b.nmiPending = false
	b.PPU.SetFrameCount(0)
}

// LoadCartridge inserts cart: the memory fabric is rebuilt around it,
// the PPU gets an address space with the cartridge's mirroring, and the
// CPU restarts from the reset vector.
func (b *Bus) LoadCartridge(cart memory.CartridgeInterface) {
	b.Memory = memory.New(b.PPU, b.APU, cart)
	b.Memory.SetInputSystem(b.Input)
	b.CPU = cpu.New(b.Memory)

	b.PPU.SetMemory(memory.NewPPUMemory(cart, mirrorMode(cart)))
	b.wire()
	b.CPU.Reset()
}

// mirrorMode translates a cartridge's mirroring flag into the memory
// package's own MirrorMode. The enums live in separate packages (one
// parses the header, the other owns VRAM) but share ordinals.
func mirrorMode(cart memory.CartridgeInterface) memory.MirrorMode {
	type mirrored interface{ GetMirrorMode() cartridge.MirrorMode }
	if c, ok := cart.(mirrored); ok {
		return memory.MirrorMode(c.GetMirrorMode())
	}
	return memory.MirrorHorizontal
}

// Step advances the console by one CPU instruction (or one stall cycle
// during DMA), keeping the PPU at three dots and the APU at one cycle
// per CPU cycle.
func (b *Bus) Step() {
	var cycles uint64
	if b.dmaStall > 0 {
		b.dmaStall--
		cycles = 1
	} else {
		if b.nmiPending {
			b.nmiPending = false
			b.CPU.TriggerNMI()
		}
		cycles = b.CPU.Step()
	}

	for i := uint64(0); i < cycles*3; i++ {
		b.PPU.Step()
	}
	b.ppuCycles += cycles * 3

	for i := uint64(0); i < cycles; i++ {
		b.APU.Step()
	}

	b.cpuCycles += cycles

	if b.watchpointsOn && b.cpuCycles%10000 < cycles {
		b.CheckMemoryWatchpoints()
	}
}

// TriggerOAMDMA copies 256 bytes from page<<8 into OAM and stalls the
// CPU for 513 cycles, 514 when the write lands on an odd cycle.
func (b *Bus) TriggerOAMDMA(page uint8) {
	if b.dmaStall > 0 {
		return
	}
	b.dmaStall = 513
	if b.cpuCycles%2 == 1 {
		b.dmaStall = 514
	}

	base := uint16(page) << 8
	for i := 0; i < 256; i++ {
		b.PPU.WriteOAM(uint8(i), b.Memory.Read(base+uint16(i)))
	}
}

// Run steps the console until frames more frames have completed.
func (b *Bus) Run(frames int) {
	target := b.frameCount + uint64(frames)
	for b.frameCount < target {
		b.Step()
	}
}

// RunCycles steps the console for at least cycles CPU cycles.
func (b *Bus) RunCycles(cycles uint64) {
	target := b.cpuCycles + cycles
	for b.cpuCycles < target {
		b.Step()
	}
}

// Frame steps the console for one NTSC frame's worth of CPU cycles.
func (b *Bus) Frame() {
	b.RunCycles(cpuCyclesPerFrame)
}

// GetFrameBuffer returns the PPU's current 256x240 frame.
func (b *Bus) GetFrameBuffer() []uint32 {
	fb := b.PPU.GetFrameBuffer()
	return fb[:]
}

// GetAudioSamples drains the APU's pending output samples.
func (b *Bus) GetAudioSamples() []float32 {
	return b.APU.GetSamples()
}

// SetAudioSampleRate configures the APU's output resampler.
func (b *Bus) SetAudioSampleRate(rate int) {
	b.APU.SetSampleRate(rate)
}

// GetCycleCount returns total CPU cycles since reset.
func (b *Bus) GetCycleCount() uint64 {
	return b.cpuCycles
}

// GetFrameCount returns completed frames since reset.
func (b *Bus) GetFrameCount() uint64 {
	return b.frameCount
}

// IsDMAInProgress reports whether the CPU is currently stalled for DMA.
func (b *Bus) IsDMAInProgress() bool {
	return b.dmaStall > 0
}

// SetControllerButton updates one button on a controller port (0 and 1
// both address port 1; 2 addresses port 2).
func (b *Bus) SetControllerButton(controller int, button input.Button, pressed bool) {
	switch controller {
	case 0, 1:
		b.Input.Controller1.SetButton(button, pressed)
	case 2:
		b.Input.Controller2.SetButton(button, pressed)
	}
}

// SetControllerButtons replaces a controller's full button state.
func (b *Bus) SetControllerButtons(controller int, buttons [8]bool) {
	switch controller {
	case 0, 1:
		b.Input.SetButtons1(buttons)
	case 2:
		b.Input.SetButtons2(buttons)
	}
}

// GetInputState exposes the controller ports directly.
func (b *Bus) GetInputState() *input.InputState {
	return b.Input
}

// EnableInputDebug toggles controller read/write logging.
func (b *Bus) EnableInputDebug(enable bool) {
	b.Input.EnableDebug(enable)
}

// EnableCPUDebug toggles instruction tracing and stuck-PC detection.
func (b *Bus) EnableCPUDebug(enable bool) {
	b.CPU.EnableDebugLogging(enable)
	b.CPU.EnableLoopDetection(enable)
}

// AddMemoryWatchpoint starts tracking address for changes.
func (b *Bus) AddMemoryWatchpoint(address uint16) {
	b.watchpoints[address] = b.Memory.Read(address)
}

// EnableWatchpointLogging toggles the periodic watchpoint sweep.
func (b *Bus) EnableWatchpointLogging(enable bool) {
	b.watchpointsOn = enable
}

// CheckMemoryWatchpoints logs any watched address whose value changed
// since the last sweep.
func (b *Bus) CheckMemoryWatchpoints() {
	for addr, prev := range b.watchpoints {
		if v := b.Memory.Read(addr); v != prev {
			log.Printf("[bus] watchpoint $%04X: $%02X -> $%02X (frame %d)", addr, prev, v, b.frameCount)
			b.watchpoints[addr] = v
		}
	}
}

// CPUState is a register snapshot for save states and debug overlays.
type CPUState struct {
	PC      uint16
	A, X, Y uint8
	SP      uint8
	Cycles  uint64
	Flags   CPUFlags
}

// CPUFlags mirrors the 6502 status flags.
type CPUFlags struct {
	N, V, B, D, I, Z, C bool
}

// GetCPUState snapshots the CPU registers.
func (b *Bus) GetCPUState() CPUState {
	return CPUState{
		PC: b.CPU.PC, A: b.CPU.A, X: b.CPU.X, Y: b.CPU.Y,
		SP: b.CPU.SP, Cycles: b.cpuCycles,
		Flags: CPUFlags{
			N: b.CPU.N, V: b.CPU.V, B: b.CPU.B, D: b.CPU.D,
			I: b.CPU.I, Z: b.CPU.Z, C: b.CPU.C,
		},
	}
}

// PPUState is a PPU timing snapshot for save states and debug overlays.
type PPUState struct {
	Scanline    int
	Cycle       int
	FrameCount  uint64
	VBlankFlag  bool
	RenderingOn bool
}

// GetPPUState snapshots PPU timing without register-read side effects.
func (b *Bus) GetPPUState() PPUState {
	return PPUState{
		Scanline:    b.PPU.GetScanline(),
		Cycle:       b.PPU.GetCycle(),
		FrameCount:  b.frameCount,
		VBlankFlag:  b.PPU.IsVBlank(),
		RenderingOn: b.PPU.IsRenderingEnabled(),
	}
}
