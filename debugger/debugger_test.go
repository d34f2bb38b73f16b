package debugger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"goboy/bus"
	"goboy/cartridge"
	"goboy/cpu"
)

func newTestModel(t *testing.T, scale int) model {
	t.Helper()
	rom := make([]byte, 0x8000)
	b := bus.New(cartridge.NewROMOnly(rom))
	c := &cpu.CPU{}
	c.Reset(b, 0x0100)
	return model{cpu: c, bus: b, scale: scale}
}

func TestRenderFrameDefaultScaleIsOneCharacterPerBlock(t *testing.T) {
	m := newTestModel(t, 0) // 0 or below is clamped to 1
	frame := m.renderFrame()
	lines := strings.Split(strings.TrimRight(frame, "\n"), "\n")
	assert.Len(t, lines, 144/8)
	assert.Len(t, lines[0], 160/8)
}

func TestRenderFrameScalesBothAxes(t *testing.T) {
	m := newTestModel(t, 3)
	frame := m.renderFrame()
	lines := strings.Split(strings.TrimRight(frame, "\n"), "\n")
	assert.Len(t, lines, (144/8)*3)
	assert.Len(t, lines[0], (160/8)*3)
}

func TestStatusReportsRegistersAndStepCount(t *testing.T) {
	m := newTestModel(t, 1)
	m.steps = 7
	s := m.status()
	assert.Contains(t, s, "steps: 7")
}
