// Package driver runs the fixed-rate timing loop that steps the CPU, bus
// and PPU together in lockstep, one M-cycle at a time, and hands finished
// frames to a host callback.
package driver

import (
	"time"

	"goboy/bus"
	"goboy/cpu"
)

// MCycle is the real-world duration of one Game Boy M-cycle at the
// hardware's 4.194304 MHz clock (4 T-cycles per M-cycle).
const MCycle = time.Second / (4194304 / 4)

// Driver owns a CPU and Bus and steps them together. FrameFunc, if set, is
// called with the finished frame's RGB24 pixels every time the PPU
// completes one.
type Driver struct {
	CPU *cpu.CPU
	Bus *bus.Bus

	FrameFunc func(rgb []byte)
	ErrFunc   func(err error)
}

// New wires a Driver around a freshly Reset CPU and the given Bus. Use this
// when a boot ROM will run first (pc is 0x0000 in that case).
func New(b *bus.Bus, pc uint16) *Driver {
	c := &cpu.CPU{}
	c.Reset(b, pc)
	return &Driver{CPU: c, Bus: b}
}

// NewPostBoot wires a Driver whose CPU starts in the documented DMG
// post-boot-ROM register state, for running a cartridge with no boot ROM.
func NewPostBoot(b *bus.Bus) *Driver {
	c := &cpu.CPU{}
	c.ResetPostBoot(b)
	return &Driver{CPU: c, Bus: b}
}

// Run drives the emulator in real time until stop is closed. It measures
// wall-clock elapsed time since the loop started and steps exactly as many
// M-cycles as have become due, rather than sleeping a fixed amount per
// cycle, so it stays caught up even under scheduler jitter.
func (d *Driver) Run(stop <-chan struct{}) {
	start := time.Now()
	var stepped int64

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			due := time.Since(start) / MCycle
			for int64(due) > stepped {
				if !d.step() {
					return
				}
				stepped++
			}
		}
	}
}

// RunCycles steps exactly n M-cycles without regard for wall-clock time,
// for tests and headless batch execution.
func (d *Driver) RunCycles(n int) {
	for i := 0; i < n; i++ {
		if !d.step() {
			return
		}
	}
}

func (d *Driver) step() bool {
	if err := d.CPU.Step(d.Bus); err != nil {
		if d.ErrFunc != nil {
			d.ErrFunc(err)
		}
		return false
	}
	if d.Bus.Tick() {
		if d.FrameFunc != nil {
			d.FrameFunc(d.Bus.PPU.RGB24())
		}
		d.Bus.PPU.FrameReady = false
	}
	return true
}
