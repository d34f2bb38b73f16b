package cpu

import "goboy/mask"

// This file builds the per-opcode microOp plans from a small set of
// reusable shapes. Each shape mirrors one row of the official instruction
// timing table: the number of M-cycles a plan occupies always equals
// (bus-accessing steps) + (internal idle steps) + 1 for the trailing opcode
// fetch, except for the
// handful of purely register-to-register instructions where the fetch
// folds into the same cycle as the (otherwise free) compute step.

// identity8 returns v unchanged; used for LD, where "compute" is a no-op.
func identity8(c *CPU, v byte) byte { return v }

// buildRW8 builds a plan that reads src, runs compute over the value
// (which may also set flags on c), and writes the result to dst.
func buildRW8(src, dst operand8, compute func(c *CPU, v byte) byte) []microOp {
	srcCost := src.cost()
	dstCost := dst.cost()

	readSrc := func(c *CPU) byte {
		if srcCost == 0 {
			return src.peek(c)
		}
		return c.scratch8
	}

	if srcCost == 0 && dstCost == 0 {
		return []microOp{func(c *CPU, bus Bus) {
			r := compute(c, src.peek(c))
			dst.poke(c, r)
			c.fetch(bus)
		}}
	}

	var ops []microOp
	for i := 0; i < srcCost; i++ {
		i, last := i, i == srcCost-1
		ops = append(ops, func(c *CPU, bus Bus) {
			v := src.readStep(c, bus, i)
			if last {
				c.scratch8 = v
			}
		})
	}

	if dstCost == 0 {
		ops = append(ops, func(c *CPU, bus Bus) {
			r := compute(c, readSrc(c))
			dst.poke(c, r)
			c.fetch(bus)
		})
		return ops
	}

	for i := 0; i < dstCost; i++ {
		i := i
		ops = append(ops, func(c *CPU, bus Bus) {
			if i == 0 {
				c.scratch8 = compute(c, readSrc(c))
			}
			dst.writeStep(c, bus, i, c.scratch8)
		})
	}
	return append(ops, fetchOnly)
}

// buildRead8 builds a plan that reads src and passes the value to use
// (for flag-only instructions: CP, BIT) without writing anything back.
func buildRead8(src operand8, use func(c *CPU, v byte)) []microOp {
	srcCost := src.cost()
	if srcCost == 0 {
		return []microOp{func(c *CPU, bus Bus) {
			use(c, src.peek(c))
			c.fetch(bus)
		}}
	}
	var ops []microOp
	for i := 0; i < srcCost; i++ {
		i, last := i, i == srcCost-1
		ops = append(ops, func(c *CPU, bus Bus) {
			v := src.readStep(c, bus, i)
			if last {
				use(c, v)
			}
		})
	}
	return append(ops, fetchOnly)
}

// --- 8-bit ALU -------------------------------------------------------------

func add8(c *CPU, a, b byte) byte {
	r := a + b
	c.Reg.SetFlags(r == 0, false, (a&0xf)+(b&0xf) > 0xf, uint16(a)+uint16(b) > 0xff)
	return r
}

func adc8(c *CPU, a, b byte) byte {
	cy := byte(0)
	if c.Reg.Carry() {
		cy = 1
	}
	r := a + b + cy
	h := (a&0xf)+(b&0xf)+cy > 0xf
	cf := uint16(a)+uint16(b)+uint16(cy) > 0xff
	c.Reg.SetFlags(r == 0, false, h, cf)
	return r
}

func sub8(c *CPU, a, b byte) byte {
	r := a - b
	c.Reg.SetFlags(r == 0, true, a&0xf < b&0xf, a < b)
	return r
}

func sbc8(c *CPU, a, b byte) byte {
	cy := byte(0)
	if c.Reg.Carry() {
		cy = 1
	}
	r := a - b - cy
	h := int(a&0xf)-int(b&0xf)-int(cy) < 0
	cf := int(a)-int(b)-int(cy) < 0
	c.Reg.SetFlags(r == 0, true, h, cf)
	return r
}

func and8(c *CPU, a, b byte) byte {
	r := a & b
	c.Reg.SetFlags(r == 0, false, true, false)
	return r
}

func or8(c *CPU, a, b byte) byte {
	r := a | b
	c.Reg.SetFlags(r == 0, false, false, false)
	return r
}

func xor8(c *CPU, a, b byte) byte {
	r := a ^ b
	c.Reg.SetFlags(r == 0, false, false, false)
	return r
}

func inc8(c *CPU, v byte) byte {
	r := v + 1
	c.Reg.SetZero(r == 0)
	c.Reg.SetSubtract(false)
	c.Reg.SetHalfCarry(v&0xf == 0xf)
	return r
}

func dec8(c *CPU, v byte) byte {
	r := v - 1
	c.Reg.SetZero(r == 0)
	c.Reg.SetSubtract(true)
	c.Reg.SetHalfCarry(v&0xf == 0)
	return r
}

// --- rotates, shifts, swap ---------------------------------------------

func rlc(c *CPU, v byte) byte {
	carry := v&0x80 != 0
	r := v<<1 | v>>7
	c.Reg.SetFlags(r == 0, false, false, carry)
	return r
}

func rrc(c *CPU, v byte) byte {
	carry := v&0x01 != 0
	r := v>>1 | v<<7
	c.Reg.SetFlags(r == 0, false, false, carry)
	return r
}

func rl(c *CPU, v byte) byte {
	var cin byte
	if c.Reg.Carry() {
		cin = 1
	}
	carry := v&0x80 != 0
	r := v<<1 | cin
	c.Reg.SetFlags(r == 0, false, false, carry)
	return r
}

func rr(c *CPU, v byte) byte {
	var cin byte
	if c.Reg.Carry() {
		cin = 0x80
	}
	carry := v&0x01 != 0
	r := v>>1 | cin
	c.Reg.SetFlags(r == 0, false, false, carry)
	return r
}

func sla(c *CPU, v byte) byte {
	carry := v&0x80 != 0
	r := v << 1
	c.Reg.SetFlags(r == 0, false, false, carry)
	return r
}

func sra(c *CPU, v byte) byte {
	carry := v&0x01 != 0
	r := v>>1 | v&0x80
	c.Reg.SetFlags(r == 0, false, false, carry)
	return r
}

func srl(c *CPU, v byte) byte {
	carry := v&0x01 != 0
	r := v >> 1
	c.Reg.SetFlags(r == 0, false, false, carry)
	return r
}

func swap(c *CPU, v byte) byte {
	r := v<<4 | v>>4
	c.Reg.SetFlags(r == 0, false, false, false)
	return r
}

// bitTest, setBit and resBit are parameterized by the CB opcode's middle
// three bits at table-construction time (see opcodes.go).
func bitTest(n byte) func(c *CPU, v byte) {
	m := byte(1) << n
	return func(c *CPU, v byte) {
		c.Reg.SetZero(v&m == 0)
		c.Reg.SetSubtract(false)
		c.Reg.SetHalfCarry(true)
	}
}

func setBit(n byte) func(c *CPU, v byte) byte {
	m := byte(1) << n
	return func(c *CPU, v byte) byte { return v | m }
}

func resBit(n byte) func(c *CPU, v byte) byte {
	m := byte(1) << n
	return func(c *CPU, v byte) byte { return v &^ m }
}

// --- misc single-byte / flag instructions --------------------------------

func daa(c *CPU) {
	a := c.Reg.A
	var adjust byte
	carry := c.Reg.Carry()
	if c.Reg.Subtract() {
		if c.Reg.HalfCarry() {
			adjust += 0x06
		}
		if carry {
			adjust += 0x60
		}
		a -= adjust
	} else {
		if c.Reg.HalfCarry() || a&0xf > 0x9 {
			adjust += 0x06
		}
		if carry || a > 0x99 {
			adjust += 0x60
			carry = true
		}
		a += adjust
	}
	c.Reg.A = a
	c.Reg.SetZero(a == 0)
	c.Reg.SetHalfCarry(false)
	c.Reg.SetCarry(carry)
}

func cpl(c *CPU) {
	c.Reg.A = ^c.Reg.A
	c.Reg.SetSubtract(true)
	c.Reg.SetHalfCarry(true)
}

func scf(c *CPU) {
	c.Reg.SetSubtract(false)
	c.Reg.SetHalfCarry(false)
	c.Reg.SetCarry(true)
}

func ccf(c *CPU) {
	c.Reg.SetSubtract(false)
	c.Reg.SetHalfCarry(false)
	c.Reg.SetCarry(!c.Reg.Carry())
}

// --- plans for register-only single-cycle instructions -------------------

func buildSimple(fn func(c *CPU)) []microOp {
	return []microOp{func(c *CPU, bus Bus) {
		fn(c)
		c.fetch(bus)
	}}
}

// --- 16-bit loads ----------------------------------------------------------

func buildLD16Imm(dst Reg16) []microOp {
	return []microOp{
		func(c *CPU, bus Bus) {
			lo := bus.Read(c.Reg.PC)
			c.Reg.PC++
			c.scratch16 = uint16(lo)
		},
		func(c *CPU, bus Bus) {
			hi := bus.Read(c.Reg.PC)
			c.Reg.PC++
			c.scratch16 = mask.Word(hi, mask.Lo(c.scratch16))
		},
		func(c *CPU, bus Bus) {
			setReg16(c, dst, c.scratch16)
			c.fetch(bus)
		},
	}
}

// buildLDSPHL implements "LD SP,HL": register-only, but hardware still
// spends an extra internal M-cycle on it.
func buildLDSPHL() []microOp {
	return []microOp{
		func(c *CPU, bus Bus) { c.Reg.SP = c.Reg.HL() },
		fetchOnly,
	}
}

// buildLDDirect16SP implements "LD (nn),SP": a 16-bit address followed by
// a two-byte write of SP, low byte first.
func buildLDDirect16SP() []microOp {
	return []microOp{
		func(c *CPU, bus Bus) {
			lo := bus.Read(c.Reg.PC)
			c.Reg.PC++
			c.scratch16 = uint16(lo)
		},
		func(c *CPU, bus Bus) {
			hi := bus.Read(c.Reg.PC)
			c.Reg.PC++
			c.scratch16 = mask.Word(hi, mask.Lo(c.scratch16))
		},
		func(c *CPU, bus Bus) { bus.Write(c.scratch16, mask.Lo(c.Reg.SP)) },
		func(c *CPU, bus Bus) { bus.Write(c.scratch16+1, mask.Hi(c.Reg.SP)) },
		fetchOnly,
	}
}

// addSPSigned computes base plus the signed 8-bit offset e, setting the
// carry/half-carry flags defined for ADD SP,e / LD HL,SP+e.
func addSPSigned(c *CPU, base uint16, e byte) uint16 {
	se := int16(int8(e))
	r := uint16(int32(base) + int32(se))
	c.Reg.SetZero(false)
	c.Reg.SetSubtract(false)
	c.Reg.SetHalfCarry((base&0xf)+uint16(e&0xf) > 0xf)
	c.Reg.SetCarry((base&0xff)+uint16(e) > 0xff)
	return r
}

func buildLDHLSPOffset() []microOp {
	return []microOp{
		func(c *CPU, bus Bus) {
			e := bus.Read(c.Reg.PC)
			c.Reg.PC++
			c.scratch8 = e
		},
		func(c *CPU, bus Bus) {
			c.Reg.SetHL(addSPSigned(c, c.Reg.SP, c.scratch8))
		},
		fetchOnly,
	}
}

func buildAddSPOffset() []microOp {
	return []microOp{
		func(c *CPU, bus Bus) {
			e := bus.Read(c.Reg.PC)
			c.Reg.PC++
			c.scratch8 = e
		},
		func(c *CPU, bus Bus) { c.Reg.SP = addSPSigned(c, c.Reg.SP, c.scratch8) },
		func(c *CPU, bus Bus) {},
		fetchOnly,
	}
}

// --- 16-bit INC/DEC and ADD HL,rr ------------------------------------------

func buildIncDec16(reg Reg16, delta int) []microOp {
	return []microOp{
		func(c *CPU, bus Bus) { setReg16(c, reg, getReg16(c, reg)+uint16(delta)) },
		fetchOnly,
	}
}

func addHL16(c *CPU, hl, v uint16) uint16 {
	r := uint32(hl) + uint32(v)
	c.Reg.SetSubtract(false)
	c.Reg.SetHalfCarry((hl&0xfff)+(v&0xfff) > 0xfff)
	c.Reg.SetCarry(r > 0xffff)
	return uint16(r)
}

func buildAddHL16(src Reg16) []microOp {
	return []microOp{
		func(c *CPU, bus Bus) { c.Reg.SetHL(addHL16(c, c.Reg.HL(), getReg16(c, src))) },
		fetchOnly,
	}
}

// --- stack: PUSH / POP ------------------------------------------------------

func buildPush(src Reg16) []microOp {
	return []microOp{
		func(c *CPU, bus Bus) {},
		func(c *CPU, bus Bus) {
			c.Reg.SP--
			bus.Write(c.Reg.SP, mask.Hi(getReg16(c, src)))
		},
		func(c *CPU, bus Bus) {
			c.Reg.SP--
			bus.Write(c.Reg.SP, mask.Lo(getReg16(c, src)))
		},
		fetchOnly,
	}
}

func buildPop(dst Reg16) []microOp {
	return []microOp{
		func(c *CPU, bus Bus) {
			lo := bus.Read(c.Reg.SP)
			c.Reg.SP++
			c.scratch16 = uint16(lo)
		},
		func(c *CPU, bus Bus) {
			hi := bus.Read(c.Reg.SP)
			c.Reg.SP++
			c.scratch16 = mask.Word(hi, mask.Lo(c.scratch16))
			setReg16(c, dst, c.scratch16)
		},
		fetchOnly,
	}
}

// --- control flow ------------------------------------------------------------

func buildJR(cond Cond) []microOp {
	return []microOp{
		func(c *CPU, bus Bus) {
			e := bus.Read(c.Reg.PC)
			c.Reg.PC++
			c.scratch8 = e
		},
		func(c *CPU, bus Bus) {
			if !evalCond(c, cond) {
				c.fetch(bus)
				return
			}
			c.Reg.PC = uint16(int32(c.Reg.PC) + int32(int8(c.scratch8)))
			c.plan = append(c.plan, fetchOnly)
		},
	}
}

func buildJP(cond Cond) []microOp {
	return []microOp{
		func(c *CPU, bus Bus) {
			lo := bus.Read(c.Reg.PC)
			c.Reg.PC++
			c.scratch16 = uint16(lo)
		},
		func(c *CPU, bus Bus) {
			hi := bus.Read(c.Reg.PC)
			c.Reg.PC++
			c.scratch16 = mask.Word(hi, mask.Lo(c.scratch16))
		},
		func(c *CPU, bus Bus) {
			if !evalCond(c, cond) {
				c.fetch(bus)
				return
			}
			c.Reg.PC = c.scratch16
			c.plan = append(c.plan, fetchOnly)
		},
	}
}

func buildJPHL() []microOp {
	return []microOp{func(c *CPU, bus Bus) {
		c.Reg.PC = c.Reg.HL()
		c.fetch(bus)
	}}
}

func buildCall(cond Cond) []microOp {
	return []microOp{
		func(c *CPU, bus Bus) {
			lo := bus.Read(c.Reg.PC)
			c.Reg.PC++
			c.scratch16 = uint16(lo)
		},
		func(c *CPU, bus Bus) {
			hi := bus.Read(c.Reg.PC)
			c.Reg.PC++
			c.scratch16 = mask.Word(hi, mask.Lo(c.scratch16))
		},
		func(c *CPU, bus Bus) {
			if !evalCond(c, cond) {
				c.fetch(bus)
				return
			}
			c.plan = append(c.plan,
				func(c *CPU, bus Bus) {
					c.Reg.SP--
					bus.Write(c.Reg.SP, mask.Hi(c.Reg.PC))
				},
				func(c *CPU, bus Bus) {
					c.Reg.SP--
					bus.Write(c.Reg.SP, mask.Lo(c.Reg.PC))
					c.Reg.PC = c.scratch16
				},
				fetchOnly,
			)
		},
	}
}

func buildRet(cond Cond) []microOp {
	if cond == CondAlways {
		return []microOp{
			func(c *CPU, bus Bus) {
				lo := bus.Read(c.Reg.SP)
				c.Reg.SP++
				c.scratch16 = uint16(lo)
			},
			func(c *CPU, bus Bus) {
				hi := bus.Read(c.Reg.SP)
				c.Reg.SP++
				c.scratch16 = mask.Word(hi, mask.Lo(c.scratch16))
			},
			func(c *CPU, bus Bus) { c.Reg.PC = c.scratch16 },
			fetchOnly,
		}
	}
	return []microOp{
		func(c *CPU, bus Bus) {
			if !evalCond(c, cond) {
				c.plan = append(c.plan, fetchOnly)
				return
			}
			c.plan = append(c.plan,
				func(c *CPU, bus Bus) {
					lo := bus.Read(c.Reg.SP)
					c.Reg.SP++
					c.scratch16 = uint16(lo)
				},
				func(c *CPU, bus Bus) {
					hi := bus.Read(c.Reg.SP)
					c.Reg.SP++
					c.scratch16 = mask.Word(hi, mask.Lo(c.scratch16))
				},
				func(c *CPU, bus Bus) { c.Reg.PC = c.scratch16 },
				fetchOnly,
			)
		},
	}
}

func buildReti() []microOp {
	ops := buildRet(CondAlways)
	ops[len(ops)-1] = func(c *CPU, bus Bus) {
		c.IME = true
		c.fetch(bus)
	}
	return ops
}

func buildRst(vector uint16) []microOp {
	return []microOp{
		func(c *CPU, bus Bus) {},
		func(c *CPU, bus Bus) {
			c.Reg.SP--
			bus.Write(c.Reg.SP, mask.Hi(c.Reg.PC))
		},
		func(c *CPU, bus Bus) {
			c.Reg.SP--
			bus.Write(c.Reg.SP, mask.Lo(c.Reg.PC))
			c.Reg.PC = vector
		},
		fetchOnly,
	}
}

// --- interrupt / halt control -----------------------------------------------

func buildDI() []microOp {
	return buildSimple(func(c *CPU) { c.IME = false; c.imeDelay = 0 })
}

func buildEI() []microOp {
	return buildSimple(func(c *CPU) { c.imeDelay = 2 })
}

func buildHalt() []microOp {
	return []microOp{func(c *CPU, bus Bus) {
		c.Halted = true
		c.fetch(bus)
	}}
}

func buildStop() []microOp {
	return []microOp{func(c *CPU, bus Bus) {
		c.Stopped = true
		// STOP's second byte (always 0x00) is still consumed.
		bus.Read(c.Reg.PC)
		c.Reg.PC++
		c.fetch(bus)
	}}
}
