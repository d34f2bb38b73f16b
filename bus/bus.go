// Package bus wires the CPU-visible 16-bit address space to the
// cartridge, work RAM, high RAM, the PPU and the peripherals (joypad,
// timer, serial, audio stub), plus OAM DMA and the boot ROM overlay.
package bus

import (
	"goboy/cartridge"
	"goboy/mask"
	"goboy/peripherals"
	"goboy/ppu"
)

// Bus implements cpu.Bus.
type Bus struct {
	Cart cartridge.Cartridge
	PPU  *ppu.PPU

	wram peripherals.WRAM
	hram peripherals.HRAM

	Joypad peripherals.Joypad
	Timer  peripherals.Timer
	Serial peripherals.Serial
	Audio  peripherals.Audio

	ie byte
	iF byte

	bootROM     []byte
	bootEnabled bool

	dmaActive bool
	dmaSrc    uint16
	dmaIndex  int
	dmaReg    byte // last value written to 0xFF46, returned verbatim on read
}

// New wires a Bus around the given cartridge. The PPU and peripherals are
// constructed fresh and hooked to raise interrupts through this Bus's IF
// register.
func New(cart cartridge.Cartridge) *Bus {
	b := &Bus{Cart: cart, PPU: ppu.New()}
	b.PPU.RequestInterrupt = b.requestInterrupt
	b.Joypad.RequestInterrupt = b.requestInterrupt
	b.Timer.RequestInterrupt = b.requestInterrupt
	b.Serial.RequestInterrupt = b.requestInterrupt
	return b
}

func (b *Bus) requestInterrupt(bit int) {
	b.iF = mask.SetBit(b.iF, byte(bit), true)
}

// SetBootROM installs a 256-byte DMG boot ROM to overlay 0x0000-0x00FF
// until the game disables it by writing a nonzero value to 0xFF50.
func (b *Bus) SetBootROM(data []byte) {
	if len(data) < 0x100 {
		return
	}
	b.bootROM = append([]byte(nil), data[:0x100]...)
	b.bootEnabled = true
}

func (b *Bus) Read(addr uint16) byte {
	switch {
	case addr < 0x8000:
		if b.bootEnabled && addr < 0x0100 {
			return b.bootROM[addr]
		}
		return b.Cart.Read(addr)

	case addr <= 0x9fff:
		return b.PPU.CPURead(addr)

	case addr <= 0xbfff:
		return b.Cart.Read(addr)

	case addr <= 0xdfff:
		return b.wram.Read(addr)

	case addr <= 0xfdff: // echo RAM mirrors 0xC000-0xDDFF
		return b.wram.Read(addr - 0x2000)

	case addr <= 0xfe9f:
		if b.dmaActive {
			return 0xff
		}
		return b.PPU.CPURead(addr)

	case addr <= 0xfeff: // unusable
		return 0xff

	case addr == 0xff00:
		return b.Joypad.Read()
	case addr == 0xff01:
		return b.Serial.ReadSB()
	case addr == 0xff02:
		return b.Serial.ReadSC()
	case addr == 0xff04:
		return b.Timer.ReadDIV()
	case addr == 0xff05:
		return b.Timer.ReadTIMA()
	case addr == 0xff06:
		return b.Timer.ReadTMA()
	case addr == 0xff07:
		return b.Timer.ReadTAC()
	case addr == 0xff0f:
		return 0xe0 | b.iF&0x1f
	case addr >= 0xff10 && addr <= 0xff3f:
		return b.Audio.Read(addr)
	case addr == 0xff46:
		return b.dmaReg
	case addr >= 0xff40 && addr <= 0xff4b:
		return b.PPU.CPURead(addr)
	case addr == 0xff4f, addr >= 0xff68 && addr <= 0xff6b:
		return b.PPU.CPURead(addr)
	case addr == 0xff50:
		return 0xff

	case addr >= 0xff80 && addr <= 0xfffe:
		return b.hram.Read(addr)
	case addr == 0xffff:
		return b.ie
	}
	return 0xff
}

func (b *Bus) Write(addr uint16, v byte) {
	switch {
	case addr < 0x8000:
		b.Cart.Write(addr, v)

	case addr <= 0x9fff:
		b.PPU.CPUWrite(addr, v)

	case addr <= 0xbfff:
		b.Cart.Write(addr, v)

	case addr <= 0xdfff:
		b.wram.Write(addr, v)

	case addr <= 0xfdff:
		b.wram.Write(addr-0x2000, v)

	case addr <= 0xfe9f:
		if b.dmaActive {
			return
		}
		b.PPU.CPUWrite(addr, v)

	case addr <= 0xfeff:
		// unusable, writes ignored

	case addr == 0xff00:
		b.Joypad.Write(v)
	case addr == 0xff01:
		b.Serial.WriteSB(v)
	case addr == 0xff02:
		b.Serial.WriteSC(v)
	case addr == 0xff04:
		b.Timer.WriteDIV(v)
	case addr == 0xff05:
		b.Timer.WriteTIMA(v)
	case addr == 0xff06:
		b.Timer.WriteTMA(v)
	case addr == 0xff07:
		b.Timer.WriteTAC(v)
	case addr == 0xff0f:
		b.iF = v & 0x1f
	case addr >= 0xff10 && addr <= 0xff3f:
		b.Audio.Write(addr, v)
	case addr == 0xff46:
		b.startOAMDMA(v)
	case addr >= 0xff40 && addr <= 0xff4b:
		b.PPU.CPUWrite(addr, v)
	case addr == 0xff4f, addr >= 0xff68 && addr <= 0xff6b:
		b.PPU.CPUWrite(addr, v)
	case addr == 0xff50:
		if v != 0 {
			b.bootEnabled = false
		}

	case addr >= 0xff80 && addr <= 0xfffe:
		b.hram.Write(addr, v)
	case addr == 0xffff:
		b.ie = v
	}
}

func (b *Bus) startOAMDMA(srcHigh byte) {
	b.dmaReg = srcHigh
	b.dmaActive = true
	b.dmaSrc = uint16(srcHigh) << 8
	b.dmaIndex = 0
}

// Tick advances the timer, PPU and any in-flight OAM DMA transfer by one
// M-cycle. It returns true the instant a full frame is ready in
// b.PPU.Buffer, when VBlank's last line wraps LY back to 0.
func (b *Bus) Tick() bool {
	b.Timer.Tick()
	vsync := b.PPU.Tick()
	b.stepOAMDMA()
	return vsync
}

// stepOAMDMA copies one byte per M-cycle, the same rate real hardware
// transfers at; the CPU cannot read or write OAM while a transfer is active
// (enforced in Read/Write above). The rest of the bus stays accessible to
// the CPU during the transfer.
func (b *Bus) stepOAMDMA() {
	if !b.dmaActive {
		return
	}
	v := b.Read(b.dmaSrc + uint16(b.dmaIndex))
	b.PPU.CPUWrite(0xfe00+uint16(b.dmaIndex), v)
	b.dmaIndex++
	if b.dmaIndex >= 0xa0 {
		b.dmaActive = false
	}
}
