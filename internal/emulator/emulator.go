// Package emulator wires the CPU, PPU, APU, and cartridge into the
// FrameDriver that a host program drives through LoadROM/Reset/RunFrame.
package emulator

import (
	"github.com/claude/gones/internal/apu"
	"github.com/claude/gones/internal/cartridge"
	"github.com/claude/gones/internal/cpu"
	"github.com/claude/gones/internal/input"
	"github.com/claude/gones/internal/memory"
	"github.com/claude/gones/internal/ppu"
)

// cpuCyclesPerFrame is the NTSC CPU cycle budget for one frame: 89342 PPU
// cycles at a 1:3 CPU:PPU ratio.
const cpuCyclesPerFrame = 29781

// Emulator is the FrameDriver: it owns every component and is the sole
// scheduler advancing them in lockstep. Nothing here runs concurrently.
type Emulator struct {
	CPU       *cpu.CPU
	PPU       *ppu.PPU
	APU       *apu.APU
	Memory    *memory.Memory
	Input     *input.InputState
	Cartridge *cartridge.Cartridge

	cpuCycles uint64

	dmaSuspendCycles uint64
	dmaInProgress    bool

	prevScanline int
}

// New creates an Emulator with no cartridge loaded. Stepping it runs CPU
// and PPU against open bus until LoadROM attaches a cartridge.
func New() *Emulator {
	e := &Emulator{
		PPU:   ppu.New(),
		APU:   apu.New(),
		Input: input.NewInputState(),
	}
	e.Memory = memory.New(e.PPU, e.APU, nil)
	e.Memory.SetInputSystem(e.Input)
	e.CPU = cpu.New(e.Memory)

	e.wireCallbacks()
	e.Reset()
	return e
}

// wireCallbacks (re-)establishes the cross-component callbacks that must be
// re-pointed at the current CPU/Memory whenever a cartridge is (re)loaded:
// the PPU's VBlank NMI and the APU's DMC sample-fetch bus access.
func (e *Emulator) wireCallbacks() {
	e.PPU.SetNMICallback(func() { e.CPU.TriggerNMI() })
	e.Memory.SetDMACallback(e.triggerOAMDMA)
	e.APU.SetMemoryReadCallback(e.Memory.Read)
}

// LoadROM loads an iNES file and attaches it as the running cartridge,
// replacing whatever was previously loaded. On error the emulator is left
// unchanged (per spec.md §7, a failed load never produces partial state).
func (e *Emulator) LoadROM(path string) error {
	cart, err := cartridge.LoadFromFile(path)
	if err != nil {
		return err
	}
	e.attachCartridge(cart)
	return nil
}

// LoadCartridge attaches an already-constructed cartridge directly, useful
// for embedding builds and tests that assemble ROM images in memory rather
// than reading them from disk.
func (e *Emulator) LoadCartridge(cart *cartridge.Cartridge) {
	e.attachCartridge(cart)
}

func (e *Emulator) attachCartridge(cart *cartridge.Cartridge) {
	e.Cartridge = cart
	e.Memory = memory.New(e.PPU, e.APU, cart)
	e.Memory.SetInputSystem(e.Input)
	e.CPU = cpu.New(e.Memory)

	e.PPU.SetMemory(memory.NewPPUMemory(cart, convertMirrorMode(cart.GetMirrorMode())))

	e.wireCallbacks()
	e.Reset()
}

func convertMirrorMode(m cartridge.MirrorMode) memory.MirrorMode {
	switch m {
	case cartridge.MirrorVertical:
		return memory.MirrorVertical
	case cartridge.MirrorSingleScreen0:
		return memory.MirrorSingleScreen0
	case cartridge.MirrorSingleScreen1:
		return memory.MirrorSingleScreen1
	case cartridge.MirrorFourScreen:
		return memory.MirrorFourScreen
	default:
		return memory.MirrorHorizontal
	}
}

// Reset reinitializes CPU, PPU, APU and input to power-up state without
// dropping the loaded cartridge. Idempotent, per spec.md §7.
func (e *Emulator) Reset() {
	e.CPU.Reset()
	e.PPU.Reset()
	e.APU.Reset()
	e.Input.Reset()

	e.cpuCycles = 0
	e.dmaSuspendCycles = 0
	e.dmaInProgress = false
	e.prevScanline = e.PPU.GetScanline()
}

// triggerOAMDMA runs a 256-byte OAM transfer and charges the CPU stall
// (513 cycles, or 514 starting on an odd CPU cycle) up front so PPU/APU
// stepping still observes those cycles passing.
func (e *Emulator) triggerOAMDMA(sourcePage uint8) {
	if e.dmaInProgress {
		return
	}

	dmaCycles := uint64(513)
	if e.cpuCycles%2 == 1 {
		dmaCycles = 514
	}
	e.dmaInProgress = true
	e.dmaSuspendCycles = dmaCycles

	sourceAddress := uint16(sourcePage) << 8
	for i := 0; i < 256; i++ {
		e.PPU.WriteOAM(uint8(i), e.Memory.Read(sourceAddress+uint16(i)))
	}
}

// RunFrame runs approximately 29,781 CPU cycles: the standard NTSC frame
// budget, per spec.md §4.7. Drift from DMA stalls or instruction boundary
// overshoot carries into the next frame rather than being corrected here.
func (e *Emulator) RunFrame() {
	target := e.cpuCycles + cpuCyclesPerFrame
	for e.cpuCycles < target {
		e.Step()
	}
}

// Step advances the system by one CPU "tick" — either a suspended DMA
// cycle or one full CPU instruction — and keeps PPU, APU, and the
// cartridge's scanline-driven IRQ counter in lockstep with it. Exposed for
// hosts that want single-instruction stepping (debuggers, frame-by-frame
// tools) rather than whole-frame batches.
func (e *Emulator) Step() {
	var cpuCycles uint64

	if e.dmaSuspendCycles > 0 {
		cpuCycles = 1
		e.dmaSuspendCycles--
		if e.dmaSuspendCycles == 0 {
			e.dmaInProgress = false
		}
	} else {
		cpuCycles = e.CPU.Step()
		if cpuCycles == 0 {
			// A step that reports no cycles still occupies one CPU cycle
			// (spec.md §4.7: treat it as one idle cycle).
			cpuCycles = 1
		}
	}

	for i := uint64(0); i < cpuCycles*3; i++ {
		e.PPU.Step()
		e.checkScanlineIRQ()
	}

	for i := uint64(0); i < cpuCycles; i++ {
		e.APU.Step()
	}

	if stall := e.APU.TakeDMCStallCycles(); stall > 0 {
		e.dmaSuspendCycles += uint64(stall)
		e.dmaInProgress = true
	}

	e.cpuCycles += cpuCycles
}

// checkScanlineIRQ notifies the cartridge once per PPU scanline boundary
// (the PPU A12 rising edge mapper 4 actually counts is approximated this
// way per spec.md §4.5) and keeps the CPU's IRQ line level-synced with the
// mapper's counter output.
func (e *Emulator) checkScanlineIRQ() {
	if e.Cartridge == nil {
		return
	}
	if scanline := e.PPU.GetScanline(); scanline != e.prevScanline {
		e.prevScanline = scanline
		if e.PPU.IsRenderingEnabled() {
			e.Cartridge.NotifyScanline()
		}
	}
	e.CPU.SetIRQ(e.Cartridge.IRQPending())
}

// FrameBuffer returns the just-rendered 256x240 RGBA framebuffer.
func (e *Emulator) FrameBuffer() []byte {
	return e.PPU.GetFrameBuffer()
}

// AudioSamples returns the mono f32 samples generated since the last call.
func (e *Emulator) AudioSamples() []float32 {
	return e.APU.GetSamples()
}

// SetController sets a controller's full button state from a bit mask
// (bit0 A, bit1 B, bit2 Select, bit3 Start, bit4 Up, bit5 Down, bit6 Left,
// bit7 Right), per spec.md §6. Controller indices 0 and 1 are supported.
func (e *Emulator) SetController(index int, buttonMask uint8) {
	var buttons [8]bool
	for i := 0; i < 8; i++ {
		buttons[i] = buttonMask&(1<<uint(i)) != 0
	}

	switch index {
	case 0:
		e.Input.SetButtons1(buttons)
	case 1:
		e.Input.SetButtons2(buttons)
	}
}

// CPUState is a CPU register/flag snapshot, used by save states and by the
// host's debug overlay.
type CPUState struct {
	PC      uint16
	A, X, Y uint8
	SP      uint8
	Cycles  uint64
	Flags   CPUFlags
}

// CPUFlags are the 6502 status flags.
type CPUFlags struct {
	N, V, B, D, I, Z, C bool
}

// GetCPUState snapshots the current CPU state.
func (e *Emulator) GetCPUState() CPUState {
	return CPUState{
		PC:     e.CPU.PC,
		A:      e.CPU.A,
		X:      e.CPU.X,
		Y:      e.CPU.Y,
		SP:     e.CPU.SP,
		Cycles: e.cpuCycles,
		Flags: CPUFlags{
			N: e.CPU.N,
			V: e.CPU.V,
			B: e.CPU.B,
			D: e.CPU.D,
			I: e.CPU.I,
			Z: e.CPU.Z,
			C: e.CPU.C,
		},
	}
}

// PPUState is a PPU timing/rendering snapshot, used by save states and by
// the host's debug overlay.
type PPUState struct {
	Scanline    int
	Dot         int
	FrameCount  uint64
	VBlankFlag  bool
	RenderingOn bool
}

// GetPPUState snapshots the current PPU state.
func (e *Emulator) GetPPUState() PPUState {
	return PPUState{
		Scanline:    e.PPU.GetScanline(),
		Dot:         e.PPU.GetDot(),
		FrameCount:  e.PPU.GetFrameCount(),
		VBlankFlag:  e.PPU.IsVBlank(),
		RenderingOn: e.PPU.IsRenderingEnabled(),
	}
}

// GetCycleCount returns the total CPU cycles executed since the last Reset.
func (e *Emulator) GetCycleCount() uint64 {
	return e.cpuCycles
}

// GetFrameCount returns the PPU's completed-frame counter.
func (e *Emulator) GetFrameCount() uint64 {
	return e.PPU.GetFrameCount()
}
