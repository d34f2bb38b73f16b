package cartridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func makeROM(size int, cartType byte) []byte {
	rom := make([]byte, size)
	rom[0x147] = cartType
	return rom
}

func TestNewPicksROMOnlyForType00(t *testing.T) {
	rom := makeROM(0x8000, 0x00)
	c, err := New(rom)
	assert.NoError(t, err)
	_, ok := c.(*ROMOnly)
	assert.True(t, ok)
}

func TestNewPicksMBC1ForType01(t *testing.T) {
	rom := makeROM(0x20000, 0x01)
	c, err := New(rom)
	assert.NoError(t, err)
	_, ok := c.(*MBC1)
	assert.True(t, ok)
}

func TestNewRejectsTooSmallROM(t *testing.T) {
	_, err := New(make([]byte, 0x10))
	assert.Error(t, err)
}

func TestROMOnlyReadsDirectlyAndIgnoresWrites(t *testing.T) {
	rom := makeROM(0x8000, 0x00)
	rom[0x4000] = 0x42
	c := NewROMOnly(rom)
	assert.Equal(t, byte(0x42), c.Read(0x4000))
	c.Write(0x4000, 0x99)
	assert.Equal(t, byte(0x42), c.Read(0x4000))
}

func TestROMOnlyReadsPastEndAsFF(t *testing.T) {
	rom := makeROM(0x4000, 0x00)
	c := NewROMOnly(rom)
	assert.Equal(t, byte(0xff), c.Read(0x7fff))
}

func TestMBC1Bank0WrittenAsZeroIsTreatedAsOne(t *testing.T) {
	rom := makeROM(0x40000, 0x01) // 16 banks of 16 KiB
	rom[0x4000] = 0xaa            // bank 1, offset 0
	c := NewMBC1(rom)
	c.Write(0x2000, 0x00) // select bank 0 -> treated as bank 1
	assert.Equal(t, byte(0xaa), c.Read(0x4000))
}

func TestMBC1SwitchesROMBank(t *testing.T) {
	rom := makeROM(0x40000, 0x01)
	rom[0x4000*3] = 0x77 // bank 3, offset 0
	c := NewMBC1(rom)
	c.Write(0x2000, 0x03)
	assert.Equal(t, byte(0x77), c.Read(0x4000))
}

func TestMBC1RAMGatedByEnableLatch(t *testing.T) {
	rom := makeROM(0x8000, 0x03)
	c := NewMBC1(rom)
	assert.Equal(t, byte(0xff), c.Read(0xa000)) // RAM disabled by default
	c.Write(0x0000, 0x0a)                       // enable RAM
	c.Write(0xa000, 0x55)
	assert.Equal(t, byte(0x55), c.Read(0xa000))
	c.Write(0x0000, 0x00) // disable RAM
	assert.Equal(t, byte(0xff), c.Read(0xa000))
}

func TestMBC1RAMBankingInMode1(t *testing.T) {
	rom := makeROM(0x8000, 0x03)
	c := NewMBC1(rom)
	c.Write(0x0000, 0x0a) // enable RAM
	c.Write(0x6000, 0x01) // mode 1: bank2 selects RAM bank
	c.Write(0x4000, 0x02) // RAM bank 2
	c.Write(0xa000, 0x11)
	c.Write(0x4000, 0x00) // RAM bank 0
	c.Write(0xa000, 0x22)
	c.Write(0x4000, 0x02)
	assert.Equal(t, byte(0x11), c.Read(0xa000))
}
