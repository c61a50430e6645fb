// Package emu wires the CPU interpreter, memory bus and cartridge into the
// single top-level type a driver program constructs, grounded on
// internal/emu/emu.go's Machine from the milestone that preceded the full
// core (bus/cpu/cart held behind one façade, fed ROM+boot bytes and stepped
// by the caller) generalized from its test-pattern placeholder to actually
// running the interpreter.
package emu

import (
	"log"

	"github.com/birchlab/gbacore/internal/bus"
	"github.com/birchlab/gbacore/internal/cpu"
	"github.com/birchlab/gbacore/internal/ppu"
	"github.com/birchlab/gbacore/internal/scheduler"
)

// CPUClockHz is the GBA's fixed system clock; AdvanceDelta converts
// wall-clock seconds to scheduler cycles against this.
const CPUClockHz = 1 << 24

// CyclesPerFrame is one full 228-line scanline pass, matching a real GBA's
// ~59.73 Hz refresh.
const CyclesPerFrame = ppu.CyclesPerLine * ppu.TotalLines

// Config contains settings that affect emulation behavior but not its
// semantics.
type Config struct {
	Trace bool // log each CPU.Step's PC before executing it
}

// Machine is the console: CPU, bus and whatever cartridge is loaded, wired
// together and ready to step. Unlike package cpu and package bus, which
// stay mutually unaware of each other's concrete type, Machine is allowed to
// hold both because it's the one place their construction order and
// cross-wiring (AttachCPU) belongs.
type Machine struct {
	cfg Config
	bus *bus.Bus
	cpu *cpu.CPU
}

// New returns a Machine with biosImage loaded and no cartridge.
func New(cfg Config, biosImage []byte) *Machine {
	m := &Machine{cfg: cfg, bus: bus.New(biosImage), cpu: cpu.New()}
	m.bus.AttachCPU(m.cpu)
	return m
}

// LoadCartridge attaches rom to the bus, auto-detecting its backup memory
// kind, and resets the machine so execution starts from the reset vector
// with the new cartridge mapped.
func (m *Machine) LoadCartridge(rom []byte) {
	m.bus.LoadCartridge(rom)
	m.Reset()
}

// Reset reinitializes the CPU and bus (RAM, MMIO, scheduler); ROM and
// cartridge save memory survive.
func (m *Machine) Reset() {
	m.bus.Reset()
	m.cpu.Reset()
}

// Bus exposes the underlying memory bus, for callers that need direct
// access (key input, save-data inspection) beyond what Machine itself
// narrows down to.
func (m *Machine) Bus() *bus.Bus { return m.bus }

// CPU exposes the interpreter, for register inspection by a headless
// driver or test harness.
func (m *Machine) CPU() *cpu.CPU { return m.cpu }

// SetKeys updates the live button state; bits in pressedMask correspond to
// KEYINPUT's bit layout (A, B, Select, Start, Right, Left, Up, Down, L, R).
func (m *Machine) SetKeys(pressedMask uint16) { m.bus.SetKeys(pressedMask) }

// AdvanceDelta runs the interpreter for approximately seconds of emulated
// time, converted to CPU cycles at CPUClockHz. It schedules a one-shot
// PauseEmulation event that far out, then alternates cpu.Step with
// draining the scheduler until that event fires, the same pump-and-drain
// shape PumpUntilInterruptPending uses for HALT.
func (m *Machine) AdvanceDelta(seconds float64) {
	cycles := uint64(seconds * CPUClockHz)
	m.runCycles(cycles)
}

// AdvanceFrame runs the interpreter for at least one scanline pass
// (CyclesPerFrame cycles): it stops at the first instruction boundary at
// or after the PauseEmulation event scheduled that far out.
func (m *Machine) AdvanceFrame() {
	m.runCycles(CyclesPerFrame)
}

func (m *Machine) runCycles(cycles uint64) {
	sched := m.bus.Scheduler()
	sched.Schedule(scheduler.PauseEmulation, 0, cycles)
	for {
		if m.cfg.Trace {
			log.Printf("pc=%08x thumb=%v", m.cpu.PC(), m.cpu.Thumb())
		}
		m.cpu.Step(m.bus)
		m.bus.RunScheduler()
		if m.bus.FramePaused() {
			return
		}
	}
}
