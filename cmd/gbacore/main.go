// Command gbacore runs this repository's core headlessly against a ROM:
// no window, no renderer, just the CPU interpreter stepping the bus for a
// fixed number of frames and a final register dump, in the spirit of
// cmd/cpurunner's flag-driven headless test-ROM harness with gbemu's
// ROM-loading and battery-save persistence folded in (minus the windowed
// UI path, which this core doesn't have a rendering backend for).
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/birchlab/gbacore/internal/emu"
)

type cliFlags struct {
	romPath  string
	biosPath string
	frames   int
	trace    bool
	save     bool
	timeout  time.Duration
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.romPath, "rom", "", "path to a GBA ROM image")
	flag.StringVar(&f.biosPath, "bios", "", "path to a GBA BIOS image")
	flag.IntVar(&f.frames, "frames", 300, "frames to run before exiting")
	flag.BoolVar(&f.trace, "trace", false, "log PC before every CPU.Step")
	flag.BoolVar(&f.save, "save", true, "persist cartridge backup memory to ROM.sav on exit and load on start")
	flag.DurationVar(&f.timeout, "timeout", 0, "optional wall-clock timeout (e.g. 30s); 0 disables")
	flag.Parse()
	return f
}

func mustRead(path string) []byte {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	return b
}

func main() {
	f := parseFlags()
	if f.romPath == "" {
		log.Fatal("-rom is required")
	}

	bios := mustRead(f.biosPath)
	rom := mustRead(f.romPath)

	m := emu.New(emu.Config{Trace: f.trace}, bios)
	m.LoadCartridge(rom)

	savPath := strings.TrimSuffix(f.romPath, ".gba") + ".sav"
	if f.save && m.Bus().Cartridge().HasBackup() {
		if data, err := os.ReadFile(savPath); err == nil {
			m.Bus().Cartridge().LoadState(data)
			log.Printf("loaded save memory: %s (%d bytes)", savPath, len(data))
		}
	}

	start := time.Now()
	var deadline time.Time
	if f.timeout > 0 {
		deadline = start.Add(f.timeout)
	}

	for i := 0; i < f.frames; i++ {
		m.AdvanceFrame()
		if f.trace {
			fmt.Printf("frame=%d pc=%08x thumb=%v cpsr=%08x\n",
				i, m.CPU().PC(), m.CPU().Thumb(), m.CPU().CPSR())
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			log.Printf("timeout after %s, stopping at frame %d", time.Since(start).Truncate(time.Millisecond), i)
			break
		}
	}

	dur := time.Since(start)
	c := m.CPU()
	fmt.Printf("done: frames=%d elapsed=%s pc=%08x thumb=%v halted=%v cpsr=%08x\n",
		f.frames, dur.Truncate(time.Millisecond), c.PC(), c.Thumb(), c.Halted(), c.CPSR())

	if f.save && m.Bus().Cartridge().HasBackup() {
		data := m.Bus().Cartridge().SaveState()
		if err := os.WriteFile(savPath, data, 0644); err != nil {
			log.Printf("write %s: %v", savPath, err)
		} else {
			log.Printf("wrote %s", savPath)
		}
	}
}
