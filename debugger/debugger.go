// Package debugger is a small interactive TUI for single-stepping the
// emulator one M-cycle at a time and inspecting CPU registers and PPU
// state as they change.
package debugger

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/davecgh/go-spew/spew"

	"goboy/bus"
	"goboy/cpu"
)

type model struct {
	cpu *cpu.CPU
	bus *bus.Bus

	prevPC uint16
	steps  int
	err    error

	scale int // how many times each ASCII block character repeats, cosmetic only
}

// Init is the first function called. There is no initial command: the CPU
// is expected to already be Reset by the caller before Run.
func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case " ", "j":
			m.prevPC = m.cpu.Reg.PC
			if err := m.cpu.Step(m.bus); err != nil {
				m.err = err
				return m, tea.Quit
			}
			m.bus.Tick()
			m.steps++

		case "n": // advance one frame's worth of M-cycles (154 lines x 114)
			for i := 0; i < 154*114 && m.err == nil; i++ {
				if err := m.cpu.Step(m.bus); err != nil {
					m.err = err
					break
				}
				m.bus.Tick()
				m.steps++
			}
		}
	}
	return m, nil
}

func (m model) status() string {
	r := m.cpu.Reg
	return fmt.Sprintf(`
steps: %d
  PC: %04x (was %04x)
  SP: %04x
AF: %04x  BC: %04x
DE: %04x  HL: %04x
IME: %v  halted: %v
`,
		m.steps, r.PC, m.prevPC, r.SP,
		r.AF(), r.BC(), r.DE(), r.HL(),
		m.cpu.IME, m.cpu.Halted,
	)
}

func (m model) ppuStatus() string {
	return fmt.Sprintf(`
mode: %d
  LY: %d
`, m.bus.PPU.ModeNow(), m.bus.PPU.LY())
}

// renderFrame draws a coarse ASCII approximation of the LCD: each
// character stands for an 8x8 block, shaded by how dark its pixels are.
// scale repeats each character horizontally and vertically, purely as a
// cosmetic zoom; it changes nothing about what is sampled.
func (m model) renderFrame() string {
	const shades = " .:#"
	scale := m.scale
	if scale < 1 {
		scale = 1
	}
	var sb strings.Builder
	for by := 0; by < 144/8; by++ {
		var row strings.Builder
		for bx := 0; bx < 160/8; bx++ {
			var total int
			for y := 0; y < 8; y++ {
				for x := 0; x < 8; x++ {
					total += int(m.bus.PPU.Buffer[(by*8+y)*160+bx*8+x])
				}
			}
			avgIntensity := total / 64
			// Buffer holds grayscale intensity (0xFF white .. 0x00 black);
			// invert and bucket into the four ASCII shades, darkest last.
			darkness := (255 - avgIntensity) / 64
			if darkness > 3 {
				darkness = 3
			}
			row.WriteString(strings.Repeat(string(shades[darkness]), scale))
		}
		for i := 0; i < scale; i++ {
			sb.WriteString(row.String())
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func (m model) View() string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		lipgloss.JoinHorizontal(
			lipgloss.Top,
			m.status(),
			m.ppuStatus(),
		),
		"",
		m.renderFrame(),
		"",
		spew.Sdump(m.cpu.Reg),
	)
}

// Run starts an interactive single-step session over an already-Reset CPU
// and its Bus. Space/j steps one M-cycle; n runs a full frame; q quits.
// scale is a cosmetic zoom factor for the ASCII frame render; values below
// 1 are treated as 1.
func Run(c *cpu.CPU, b *bus.Bus, scale int) error {
	m, err := tea.NewProgram(model{cpu: c, bus: b, scale: scale}).Run()
	if err != nil {
		return err
	}
	x := m.(model)
	return x.err
}
