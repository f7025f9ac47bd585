package insts

// Field extraction for the 32-bit base encoding.
//
//	 31      25 24  20 19  15 14  12 11       7 6      0
//	| funct7   | rs2  | rs1  |funct3| rd       | opcode |

// Opcode returns bits [6:0].
func Opcode(word uint32) uint32 { return word & 0x7f }

// Rd returns bits [11:7].
func Rd(word uint32) uint8 { return uint8((word >> 7) & 0x1f) }

// Rs1 returns bits [19:15].
func Rs1(word uint32) uint8 { return uint8((word >> 15) & 0x1f) }

// Rs2 returns bits [24:20].
func Rs2(word uint32) uint8 { return uint8((word >> 20) & 0x1f) }

// Funct3 returns bits [14:12].
func Funct3(word uint32) uint32 { return (word >> 12) & 0x7 }

// Funct7 returns bits [31:25].
func Funct7(word uint32) uint32 { return word >> 25 }

// ImmI returns the 12-bit I-type immediate, inst[31:20].
func ImmI(word uint32) uint32 { return word >> 20 }

// ImmS returns the 12-bit S-type immediate, {inst[31:25], inst[11:7]}.
func ImmS(word uint32) uint32 {
	return (word>>20)&0xfe0 | (word>>7)&0x1f
}

// ImmB returns the 13-bit B-type immediate,
// {inst[31], inst[7], inst[30:25], inst[11:8], 0}.
func ImmB(word uint32) uint32 {
	return (word>>19)&0x1000 | (word<<4)&0x800 | (word>>20)&0x7e0 | (word>>7)&0x1e
}

// ImmU returns the U-type immediate in place, inst[31:12] << 12.
func ImmU(word uint32) uint32 { return word & 0xfffff000 }

// ImmJ returns the 21-bit J-type immediate,
// {inst[31], inst[19:12], inst[20], inst[30:21], 0}.
func ImmJ(word uint32) uint32 {
	return (word>>11)&0x100000 | word&0xff000 | (word>>9)&0x800 | (word>>20)&0x7fe
}

// SignExtend treats the low width bits of v as a two's-complement number and
// widens it to 32 bits. Bits above width are ignored.
func SignExtend(v uint32, width uint) uint32 {
	if width == 0 || width >= 32 {
		return v
	}
	mask := uint32(1)<<width - 1
	v &= mask
	if v>>(width-1)&1 == 1 {
		return v | ^mask
	}
	return v
}
