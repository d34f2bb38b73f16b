// Package cartridge implements the ROM/RAM address space a Game Boy
// cartridge exposes at 0x0000-0x7FFF (ROM, possibly banked) and
// 0xA000-0xBFFF (external RAM, if present).
package cartridge

import "fmt"

// Cartridge is anything the bus can plug into the ROM and external-RAM
// windows. Both methods take the full 16-bit CPU address; implementations
// are responsible for translating into their own ROM/RAM offsets.
type Cartridge interface {
	Read(addr uint16) byte
	Write(addr uint16, val byte)
}

// headerTitle extracts the cartridge title from the 0x0134-0x0143 header
// field, for diagnostics only.
func headerTitle(rom []byte) string {
	if len(rom) < 0x144 {
		return ""
	}
	end := 0x134
	for end < 0x144 && rom[end] != 0 {
		end++
	}
	return string(rom[0x134:end])
}

// New picks a Cartridge implementation from the cartridge-type byte at ROM
// header offset 0x0147, defaulting to ROMOnly for unrecognized values.
func New(rom []byte) (Cartridge, error) {
	if len(rom) < 0x150 {
		return nil, fmt.Errorf("cartridge: ROM too small (%d bytes) to contain a header", len(rom))
	}
	switch rom[0x147] {
	case 0x00:
		return NewROMOnly(rom), nil
	case 0x01, 0x02, 0x03:
		return NewMBC1(rom), nil
	default:
		return NewROMOnly(rom), nil
	}
}

// ROMOnly is the simplest cartridge: up to 32 KiB of ROM mapped directly at
// 0x0000-0x7FFF, with no banking and no external RAM.
type ROMOnly struct {
	rom   []byte
	title string
}

func NewROMOnly(rom []byte) *ROMOnly {
	return &ROMOnly{rom: rom, title: headerTitle(rom)}
}

func (c *ROMOnly) Read(addr uint16) byte {
	if int(addr) < len(c.rom) {
		return c.rom[addr]
	}
	return 0xff
}

// Write is a no-op: ROM-only cartridges have no registers and no RAM.
func (c *ROMOnly) Write(addr uint16, val byte) {}

func (c *ROMOnly) String() string { return fmt.Sprintf("ROMOnly(%q, %d KiB)", c.title, len(c.rom)/1024) }

// MBC1 implements the MBC1 memory bank controller: a switchable 16 KiB ROM
// bank at 0x4000-0x7FFF, up to 32 KiB of switchable external RAM at
// 0xA000-0xBFFF gated by a RAM-enable latch, and a mode select that
// repurposes the upper two bits of the bank register between extending the
// ROM bank number and selecting a RAM bank.
type MBC1 struct {
	rom []byte
	ram [0x8000]byte // 4 banks of 8 KiB, the MBC1 maximum

	ramEnabled bool
	bank1      byte // 5-bit ROM bank select, 0 is treated as 1
	bank2      byte // 2-bit secondary bank / RAM bank select
	mode       byte // 0: bank2 extends the ROM bank; 1: bank2 selects RAM bank
}

func NewMBC1(rom []byte) *MBC1 {
	return &MBC1{rom: rom, bank1: 1}
}

func (c *MBC1) romBanks() int {
	n := len(c.rom) / 0x4000
	if n == 0 {
		return 1
	}
	return n
}

func (c *MBC1) romBankHi() int {
	bank := c.bank1
	if bank == 0 {
		bank = 1
	}
	return int(c.bank2)<<5 | int(bank)
}

func (c *MBC1) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		offset := 0
		if c.mode == 1 {
			offset = (int(c.bank2) << 5 % c.romBanks()) * 0x4000
		}
		idx := offset + int(addr)
		if idx < len(c.rom) {
			return c.rom[idx]
		}
		return 0xff

	case addr < 0x8000:
		idx := (c.romBankHi()%c.romBanks())*0x4000 + int(addr-0x4000)
		if idx < len(c.rom) {
			return c.rom[idx]
		}
		return 0xff

	case addr >= 0xa000 && addr < 0xc000:
		if !c.ramEnabled {
			return 0xff
		}
		bank := 0
		if c.mode == 1 {
			bank = int(c.bank2)
		}
		return c.ram[bank*0x2000+int(addr-0xa000)]
	}
	return 0xff
}

func (c *MBC1) Write(addr uint16, val byte) {
	switch {
	case addr < 0x2000:
		c.ramEnabled = val&0x0f == 0x0a

	case addr < 0x4000:
		v := val & 0x1f
		if v == 0 {
			v = 1
		}
		c.bank1 = v

	case addr < 0x6000:
		c.bank2 = val & 0x03

	case addr < 0x8000:
		c.mode = val & 0x01

	case addr >= 0xa000 && addr < 0xc000:
		if !c.ramEnabled {
			return
		}
		bank := 0
		if c.mode == 1 {
			bank = int(c.bank2)
		}
		c.ram[bank*0x2000+int(addr-0xa000)] = val
	}
}
