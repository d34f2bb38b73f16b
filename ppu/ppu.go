// Package ppu implements the Game Boy picture processing unit: the VRAM
// and OAM memory windows, the LCDC/STAT/scroll/palette registers, the
// HBlank/VBlank/OamScan/Drawing mode state machine and background, window
// and sprite rendering into a grayscale frame buffer (expanded to RGB24 by
// RGB24).
package ppu

import (
	"sort"

	"goboy/mask"
)

const (
	Width  = 160
	Height = 144
)

// Mode is one of the four states of the PPU's per-scanline state machine.
type Mode byte

const (
	HBlank Mode = iota
	VBlank
	OamScan
	Drawing
)

// LCDC bit positions, passed to mask.Bit/mask.SetBit.
const (
	bitBGWindowEnable = 0
	bitSpriteEnable   = 1
	bitSpriteSize     = 2
	bitBGTileMap      = 3
	bitTileAddressing = 4
	bitWindowEnable   = 5
	bitWindowTileMap  = 6
	bitLCDEnable      = 7
)

// STAT bit positions, passed to mask.Bit/mask.SetBit. statLYCEqLY is also
// used as a mask directly, since CPUWrite merges it into a caller-supplied
// byte rather than testing it.
const (
	statLYCEqLY  = 1 << 2
	bitLYCEqLY   = 2
	bitHBlankInt = 3
	bitVBlankInt = 4
	bitOAMInt    = 5
	bitLYCInt    = 6
)

// Durations of each mode, in M-cycles. All three are fixed and sum to the
// per-scanline total, a simplified fixed-length model that real hardware
// matches only on average; see the design notes for why a variable-length
// Drawing mode is out of scope.
const (
	cyclesOamScan = 20
	cyclesDrawing = 43
	cyclesHBlank  = 51
	cyclesPerLine = cyclesOamScan + cyclesDrawing + cyclesHBlank // 114
)

// sprite OAM attribute bit positions, passed to mask.Bit.
const (
	bitAttrPalette  = 4
	bitAttrXFlip    = 5
	bitAttrYFlip    = 6
	bitAttrPriority = 7
)

// PPU owns VRAM, OAM and the LCD registers. RequestInterrupt is called with
// an IF bit number (0 for VBlank, 1 for STAT) whenever a condition that
// real hardware raises an interrupt for becomes true.
type PPU struct {
	mode   Mode
	cycles int // M-cycles remaining in the current mode

	lcdc, stat      byte
	scy, scx        byte
	ly, lyc         byte
	bgp, obp0, obp1 byte
	wy, wx          byte
	windowLine      byte // internal window-line counter, independent of LY

	vram [0x2000]byte
	oam  [0xa0]byte

	// CGBEnable gates the second VRAM bank (VBK) and the palette data
	// registers (0xFF69/0xFF6B) below. The palette index registers
	// BCPS/OCPS (0xFF68/0xFF6A) are read and written whether it is set or
	// not. Left false by default.
	CGBEnable bool
	vramBank1 [0x2000]byte // second VRAM bank, selected by VBK bit 0
	vbk       byte

	bgPalette, objPalette [0x40]byte // CGB BG/OBJ palette RAM, 8 palettes x 4 colors x 2 bytes
	bcps, ocps            byte       // palette index/auto-increment registers (BCPS/OCPS)

	// Buffer holds one byte per pixel, a grayscale intensity
	// (0xFF/0xAA/0x55/0x00, white through black) in row-major order,
	// Width*Height long.
	Buffer [Width * Height]byte

	// FrameReady is set true the moment a full frame lands in Buffer (VBlank's
	// last line wrapping back to line 0) and cleared by whoever consumes it;
	// Tick's return value carries the same edge for callers that prefer it.
	FrameReady bool

	RequestInterrupt func(bit int)
}

// New returns a PPU with the LCD off, in the HBlank mode disable also
// leaves it in, so VRAM and OAM are open to the CPU and to OAM DMA. Setting
// LCDC bit 7 starts it at OamScan on line 0.
func New() *PPU {
	return &PPU{mode: HBlank, cycles: cyclesOamScan}
}

// currentVRAM returns whichever VRAM bank CPU accesses are currently aimed
// at: bank 0 always on DMG, bank 0 or 1 on CGB depending on VBK bit 0.
func (p *PPU) currentVRAM() *[0x2000]byte {
	if p.CGBEnable && p.vbk&0x01 != 0 {
		return &p.vramBank1
	}
	return &p.vram
}

// writePaletteRAM applies one byte of a BCPS/OCPS-indexed write to the
// target palette RAM and auto-increments the index register if its
// top bit requests it.
func writePaletteRAM(ram *[0x40]byte, idxReg *byte, v byte) {
	ram[*idxReg&0x3f] = v
	if *idxReg&0x80 != 0 {
		*idxReg = 0x80 | ((*idxReg + 1) & 0x3f)
	}
}

// CPURead and CPUWrite implement the VRAM (0x8000-0x9FFF), OAM
// (0xFE00-0xFE9F) and LCD register (0xFF40-0xFF4B) windows the bus
// delegates to the PPU. Mode-gated access mirrors real hardware: the CPU
// cannot see VRAM during Drawing, nor OAM during OamScan or Drawing.
func (p *PPU) CPURead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9fff:
		if p.mode == Drawing {
			return 0xff
		}
		return p.currentVRAM()[addr&0x1fff]

	case addr >= 0xfe00 && addr <= 0xfe9f:
		if p.mode == Drawing || p.mode == OamScan {
			return 0xff
		}
		return p.oam[addr&0xff]

	case addr == 0xff40:
		return p.lcdc
	case addr == 0xff41:
		return 0x80 | p.stat&0x78 | p.statCoincidence() | byte(p.mode)
	case addr == 0xff42:
		return p.scy
	case addr == 0xff43:
		return p.scx
	case addr == 0xff44:
		return p.ly
	case addr == 0xff45:
		return p.lyc
	case addr == 0xff47:
		return p.bgp
	case addr == 0xff48:
		return p.obp0
	case addr == 0xff49:
		return p.obp1
	case addr == 0xff4a:
		return p.wy
	case addr == 0xff4b:
		return p.wx

	case addr == 0xff4f:
		if !p.CGBEnable {
			return 0xff
		}
		return 0xfe | p.vbk&0x01
	case addr == 0xff68:
		return p.bcps
	case addr == 0xff69:
		if !p.CGBEnable {
			return 0xff
		}
		return p.bgPalette[p.bcps&0x3f]
	case addr == 0xff6a:
		return p.ocps
	case addr == 0xff6b:
		if !p.CGBEnable {
			return 0xff
		}
		return p.objPalette[p.ocps&0x3f]
	}
	return 0xff
}

func (p *PPU) CPUWrite(addr uint16, v byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9fff:
		if p.mode != Drawing {
			p.currentVRAM()[addr&0x1fff] = v
		}

	case addr >= 0xfe00 && addr <= 0xfe9f:
		if p.mode != Drawing && p.mode != OamScan {
			p.oam[addr&0xff] = v
		}

	case addr == 0xff40:
		wasOn := mask.Bit(p.lcdc, bitLCDEnable)
		p.lcdc = v
		if wasOn && !mask.Bit(v, bitLCDEnable) {
			p.disable()
		} else if !wasOn && mask.Bit(v, bitLCDEnable) {
			p.mode = OamScan
			p.cycles = cyclesOamScan
			p.ly = 0
		}

	case addr == 0xff41:
		p.stat = (p.stat & statLYCEqLY) | (v & 0x78)
	case addr == 0xff42:
		p.scy = v
	case addr == 0xff43:
		p.scx = v
	case addr == 0xff44:
		// LY is read-only.
	case addr == 0xff45:
		p.lyc = v
		p.checkLYC()
	case addr == 0xff47:
		p.bgp = v
	case addr == 0xff48:
		p.obp0 = v
	case addr == 0xff49:
		p.obp1 = v
	case addr == 0xff4a:
		p.wy = v
	case addr == 0xff4b:
		p.wx = v

	case addr == 0xff4f:
		if p.CGBEnable {
			p.vbk = v & 0x01
		}
	case addr == 0xff68:
		p.bcps = v & 0xbf
	case addr == 0xff69:
		if p.CGBEnable {
			writePaletteRAM(&p.bgPalette, &p.bcps, v)
		}
	case addr == 0xff6a:
		p.ocps = v & 0xbf
	case addr == 0xff6b:
		if p.CGBEnable {
			writePaletteRAM(&p.objPalette, &p.ocps, v)
		}
	}
}

func (p *PPU) statCoincidence() byte {
	if p.ly == p.lyc {
		return statLYCEqLY
	}
	return 0
}

func (p *PPU) checkLYC() {
	eq := p.ly == p.lyc
	p.stat = mask.SetBit(p.stat, bitLYCEqLY, eq)
	if eq && mask.Bit(p.stat, bitLYCInt) {
		p.raiseSTAT()
	}
}

func (p *PPU) raiseSTAT() {
	if p.RequestInterrupt != nil {
		p.RequestInterrupt(1)
	}
}

func (p *PPU) disable() {
	p.mode = HBlank
	p.ly = 0
	p.windowLine = 0
	p.cycles = cyclesOamScan
	for i := range p.Buffer {
		p.Buffer[i] = 0xff // a disabled LCD shows a blank white panel
	}
}

// Tick advances the PPU state machine by one M-cycle. It returns true the
// instant a full frame is ready in Buffer, at the M-cycle VBlank's last
// line wraps back to line 0 (one full VBlank after the VBlank interrupt
// fires on entry).
func (p *PPU) Tick() bool {
	if !mask.Bit(p.lcdc, bitLCDEnable) {
		return false
	}
	p.cycles--
	if p.cycles > 0 {
		return false
	}

	vsync := false
	switch p.mode {
	case HBlank:
		p.ly++
		if p.ly < Height {
			p.mode = OamScan
			p.cycles = cyclesOamScan
			if mask.Bit(p.stat, bitOAMInt) {
				p.raiseSTAT()
			}
		} else {
			p.mode = VBlank
			p.cycles = cyclesPerLine
			p.windowLine = 0
			if p.RequestInterrupt != nil {
				p.RequestInterrupt(0)
			}
			if mask.Bit(p.stat, bitVBlankInt) {
				p.raiseSTAT()
			}
		}
		p.checkLYC()

	case VBlank:
		p.ly++
		if p.ly > 153 {
			p.ly = 0
			p.mode = OamScan
			p.cycles = cyclesOamScan
			if mask.Bit(p.stat, bitOAMInt) {
				p.raiseSTAT()
			}
			// the frame completing is pinned to this wrap, one full
			// VBlank after the interrupt fires on entry, not to VBlank's
			// start.
			vsync = true
			p.FrameReady = true
		} else {
			p.cycles = cyclesPerLine
		}
		p.checkLYC()

	case OamScan:
		p.mode = Drawing
		p.cycles = cyclesDrawing

	case Drawing:
		p.renderLine()
		p.mode = HBlank
		p.cycles = cyclesHBlank
		if mask.Bit(p.stat, bitHBlankInt) {
			p.raiseSTAT()
		}
	}
	return vsync
}

func (p *PPU) renderLine() {
	var bgShade [Width]byte
	if mask.Bit(p.lcdc, bitBGWindowEnable) {
		p.renderBackground(&bgShade)
		p.renderWindow(&bgShade)
	}
	if mask.Bit(p.lcdc, bitSpriteEnable) {
		p.renderSprites(&bgShade)
	}
}

func (p *PPU) tileIdxFromMap(windowMap bool, row, col byte) int {
	base := 0x1800
	if windowMap {
		base |= 0x400
	}
	raw := p.vram[(base+int(row)<<5+int(col))&0x1fff]
	if mask.Bit(p.lcdc, bitTileAddressing) {
		return int(raw)
	}
	return int(int8(raw)) + 0x100
}

func (p *PPU) pixelFromTile(tileIdx int, row, col byte) byte {
	r := int(row) * 2
	c := 7 - int(col)
	tileAddr := tileIdx << 4
	low := p.vram[(tileAddr|r)&0x1fff]
	high := p.vram[(tileAddr|(r+1))&0x1fff]
	return (high>>uint(c)&1)<<1 | low>>uint(c)&1
}

// shadeIndex extracts the 2-bit shade id (0-3) that pixel selects out of
// palette, one of the four 2-bit slots packed LSB-first.
func shadeIndex(palette, pixel byte) byte {
	return (palette >> (pixel << 1)) & 0x3
}

// shadeIntensity maps a palette/pixel pair straight to the grayscale
// intensity byte Buffer stores, skipping the intermediate shade id.
func shadeIntensity(palette, pixel byte) byte {
	return shadeRGB[shadeIndex(palette, pixel)][0]
}

func (p *PPU) renderBackground(shades *[Width]byte) {
	y := p.ly + p.scy
	for i := 0; i < Width; i++ {
		x := byte(i) + p.scx
		tile := p.tileIdxFromMap(mask.Bit(p.lcdc, bitBGTileMap), y>>3, x>>3)
		pixel := p.pixelFromTile(tile, y&7, x&7)
		shades[i] = pixel
		p.Buffer[int(p.ly)*Width+i] = shadeIntensity(p.bgp, pixel)
	}
}

// renderWindow overlays the window layer, which tracks its own internal
// line counter independent of LY so that toggling LCDC's window-enable bit
// mid-frame does not desynchronize it from the background.
func (p *PPU) renderWindow(shades *[Width]byte) {
	if !mask.Bit(p.lcdc, bitWindowEnable) || p.ly < p.wy {
		return
	}
	wx := int(p.wx) - 7
	if wx >= Width {
		return
	}
	drew := false
	for i := 0; i < Width; i++ {
		if i < wx {
			continue
		}
		col := byte(i - wx)
		tile := p.tileIdxFromMap(mask.Bit(p.lcdc, bitWindowTileMap), p.windowLine>>3, col>>3)
		pixel := p.pixelFromTile(tile, p.windowLine&7, col&7)
		shades[i] = pixel
		p.Buffer[int(p.ly)*Width+i] = shadeIntensity(p.bgp, pixel)
		drew = true
	}
	if drew {
		p.windowLine++
	}
}

type spriteEntry struct {
	y, x, tile, attr byte
	oamIndex         int
}

// renderSprites draws up to 10 sprites intersecting the current scanline,
// in the priority order real hardware uses: lower X wins, lower OAM index
// wins ties, and a sprite pixel only shows through if the underlying
// background pixel is color 0 or the sprite's priority bit says it sits on
// top.
func (p *PPU) renderSprites(bgShades *[Width]byte) {
	height := 8
	if mask.Bit(p.lcdc, bitSpriteSize) {
		height = 16
	}

	var visible []spriteEntry
	for i := 0; i < 40 && len(visible) < 10; i++ {
		base := i * 4
		y := int(p.oam[base]) - 16
		if int(p.ly) < y || int(p.ly) >= y+height {
			continue
		}
		visible = append(visible, spriteEntry{
			y:        p.oam[base],
			x:        p.oam[base+1],
			tile:     p.oam[base+2],
			attr:     p.oam[base+3],
			oamIndex: i,
		})
	}

	// draw lowest priority first so higher-priority sprites overwrite it
	sort.SliceStable(visible, func(a, b int) bool {
		if visible[a].x != visible[b].x {
			return visible[a].x > visible[b].x
		}
		return visible[a].oamIndex > visible[b].oamIndex
	})

	for _, s := range visible {
		screenX := int(s.x) - 8
		row := int(p.ly) - (int(s.y) - 16)
		if mask.Bit(s.attr, bitAttrYFlip) {
			row = height - 1 - row
		}
		tile := int(s.tile)
		if height == 16 {
			tile &^= 1
			if row >= 8 {
				tile |= 1
				row -= 8
			}
		}
		for col := 0; col < 8; col++ {
			x := screenX + col
			if x < 0 || x >= Width {
				continue
			}
			c := col
			if mask.Bit(s.attr, bitAttrXFlip) {
				c = 7 - col
			}
			pixel := p.pixelFromTile(tile, byte(row), byte(c))
			if pixel == 0 {
				continue
			}
			if mask.Bit(s.attr, bitAttrPriority) && bgShades[x] != 0 {
				continue
			}
			palette := p.obp0
			if mask.Bit(s.attr, bitAttrPalette) {
				palette = p.obp1
			}
			p.Buffer[int(p.ly)*Width+x] = shadeIntensity(palette, pixel)
		}
	}
}

// shadeRGB maps a 2-bit grayscale shade to an RGB24 triple using the
// classic four-tone DMG palette (white through black).
var shadeRGB = [4][3]byte{
	{0xff, 0xff, 0xff},
	{0xaa, 0xaa, 0xaa},
	{0x55, 0x55, 0x55},
	{0x00, 0x00, 0x00},
}

// RGB24 expands Buffer into a tightly packed RGB24 frame (stride
// Width*3 bytes per row). Buffer already holds grayscale intensity, so
// each pixel's three channels are all the same byte.
func (p *PPU) RGB24() []byte {
	out := make([]byte, Width*Height*3)
	for i, v := range p.Buffer {
		out[i*3] = v
		out[i*3+1] = v
		out[i*3+2] = v
	}
	return out
}

// ModeNow reports the PPU's current scanline phase, for debugging.
func (p *PPU) ModeNow() Mode { return p.mode }

// LY reports the current scanline, for debugging.
func (p *PPU) LY() byte { return p.ly }
