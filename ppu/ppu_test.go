package ppu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModeCycleThroughOamScanDrawingHBlank(t *testing.T) {
	p := New()
	p.CPUWrite(0xff40, 1<<bitLCDEnable)
	assert.Equal(t, OamScan, p.ModeNow())

	for i := 0; i < cyclesOamScan-1; i++ {
		p.Tick()
	}
	assert.Equal(t, OamScan, p.ModeNow())
	p.Tick()
	assert.Equal(t, Drawing, p.ModeNow())

	for i := 0; i < cyclesDrawing-1; i++ {
		p.Tick()
	}
	p.Tick()
	assert.Equal(t, HBlank, p.ModeNow())
}

func TestVBlankEntersAtLine144WithoutFrameReady(t *testing.T) {
	p := New()
	p.CPUWrite(0xff40, 1<<bitLCDEnable)

	sawVsync := false
	for line := 0; line < Height; line++ {
		for i := 0; i < cyclesPerLine; i++ {
			if p.Tick() {
				sawVsync = true
			}
		}
	}
	// the VBlank interrupt fires on entry, but the frame isn't ready until
	// VBlank's last line wraps back to 0.
	assert.False(t, sawVsync)
	assert.False(t, p.FrameReady)
	assert.Equal(t, VBlank, p.ModeNow())
	assert.Equal(t, byte(144), p.LY())
}

func TestLYWrapsAfterLine153(t *testing.T) {
	p := New()
	p.CPUWrite(0xff40, 1<<bitLCDEnable)

	totalCycles := Height*cyclesPerLine + (154-Height)*cyclesPerLine
	for i := 0; i < totalCycles; i++ {
		p.Tick()
	}
	assert.Equal(t, byte(0), p.LY())
	assert.Equal(t, OamScan, p.ModeNow())
}

func TestFrameReadyFiresOnVBlankWrapToLineZero(t *testing.T) {
	p := New()
	p.CPUWrite(0xff40, 1<<bitLCDEnable)

	totalCycles := Height*cyclesPerLine + (154-Height)*cyclesPerLine
	sawVsync := false
	for i := 0; i < totalCycles; i++ {
		if p.Tick() {
			sawVsync = true
		}
	}
	assert.True(t, sawVsync)
	assert.True(t, p.FrameReady)
	assert.Equal(t, byte(0), p.LY())
	assert.Equal(t, OamScan, p.ModeNow())
}

func TestLYCCoincidenceSetsSTATBit(t *testing.T) {
	p := New()
	p.CPUWrite(0xff45, 5) // LYC = 5
	p.ly = 5
	p.checkLYC()
	assert.NotEqual(t, byte(0), p.CPURead(0xff41)&0x04)
}

func TestVRAMHiddenDuringDrawing(t *testing.T) {
	p := New()
	p.CPUWrite(0xff40, 1<<bitLCDEnable)
	p.mode = Drawing
	assert.Equal(t, byte(0xff), p.CPURead(0x8000))
	p.CPUWrite(0x8000, 0x99) // ignored while drawing
	p.mode = HBlank
	assert.Equal(t, byte(0), p.CPURead(0x8000))
}

func TestCGBVRAMBankSwitchIsolatedFromBank0(t *testing.T) {
	p := New()
	p.CGBEnable = true
	p.CPUWrite(0xff4f, 1) // select VRAM bank 1
	p.CPUWrite(0x8000, 0xaa)
	p.CPUWrite(0xff4f, 0) // back to bank 0
	p.CPUWrite(0x8000, 0x55)
	assert.Equal(t, byte(0x55), p.CPURead(0x8000))
	p.CPUWrite(0xff4f, 1)
	assert.Equal(t, byte(0xaa), p.CPURead(0x8000))
}

func TestCGBDisabledIgnoresVBKAndPaletteRAM(t *testing.T) {
	p := New()
	assert.Equal(t, byte(0xff), p.CPURead(0xff4f))
	p.CPUWrite(0xff4f, 1) // ignored on DMG
	p.CPUWrite(0x8000, 0x11)
	assert.Equal(t, byte(0x11), p.CPURead(0x8000)) // still bank 0
}

func TestCGBPaletteRAMAutoIncrement(t *testing.T) {
	p := New()
	p.CGBEnable = true
	p.CPUWrite(0xff68, 0x80) // index 0, auto-increment
	p.CPUWrite(0xff69, 0x11)
	p.CPUWrite(0xff69, 0x22)
	assert.Equal(t, byte(0x82), p.bcps)
	p.CPUWrite(0xff68, 0x80)
	assert.Equal(t, byte(0x11), p.CPURead(0xff69))
}

func TestBackgroundTileRendersExpectedShade(t *testing.T) {
	p := New()
	// BG on, unsigned tile data addressing so tile 0 is the one at 0x8000
	p.lcdc = 1<<bitBGWindowEnable | 1<<bitTileAddressing
	p.bgp = 0b11_10_01_00 // shade index n maps to palette entry n for this test
	// tile 0 at VRAM 0x8000: all-1 low plane, all-0 high plane -> pixel value 1
	for row := 0; row < 8; row++ {
		p.vram[row*2] = 0xff
		p.vram[row*2+1] = 0x00
	}
	p.ly = 0
	p.scx, p.scy = 0, 0
	p.renderLine()
	// pixel value 1 -> shade index (bgp >> 2) & 3 == 1 -> intensity 0xAA
	assert.Equal(t, byte(0xaa), p.Buffer[0])
}
