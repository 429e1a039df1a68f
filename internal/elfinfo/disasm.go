package elfinfo

import "fmt"

// Instruction is one decoded instruction, long enough to render a
// disassembly preview line.
type Instruction struct {
	PC        uint32
	Raw       uint32
	Length    int // 2 (compressed) or 4
	Mnemonic  string
	Operands  string
}

func (in Instruction) String() string {
	if in.Operands == "" {
		return in.Mnemonic
	}

	return in.Mnemonic + " " + in.Operands
}

// Decode decodes exactly one instruction starting at the front of b,
// following the RISC-V encoding rule directly (design note in spec.md §9):
// the low two bits of the first byte determine width, not a try-both
// heuristic. Returns an error if the width cannot be determined (b too
// short) or the opcode bits are unrecognized.
func Decode(pc uint32, b []byte) (Instruction, error) {
	if len(b) == 0 {
		return Instruction{}, fmt.Errorf("elfinfo: no bytes to decode at pc=%#x", pc)
	}

	if b[0]&0x3 == 0x3 {
		if len(b) < 4 {
			return Instruction{}, fmt.Errorf("elfinfo: truncated 32-bit instruction at pc=%#x", pc)
		}

		raw := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24

		return decode32(pc, raw)
	}

	if len(b) < 2 {
		return Instruction{}, fmt.Errorf("elfinfo: truncated compressed instruction at pc=%#x", pc)
	}

	raw := uint16(b[0]) | uint16(b[1])<<8

	return decode16(pc, raw)
}

// DecodeStream decodes up to n instructions from b, stopping early (without
// error) when b is used up: failure at offset 0 fails the whole call,
// failure at a later offset returns what was already decoded.
func DecodeStream(pc uint32, b []byte, n int) ([]Instruction, error) {
	out := make([]Instruction, 0, n)

	off := 0

	for len(out) < n && off < len(b) {
		in, err := Decode(pc+uint32(off), b[off:])
		if err != nil {
			if off == 0 {
				return nil, err
			}

			break
		}

		out = append(out, in)
		off += in.Length
	}

	return out, nil
}

var rvRegNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

func reg(n uint32) string { return rvRegNames[n&0x1f] }

func signExtend(v uint32, bits int) int32 {
	shift := uint(32 - bits)

	return int32(v<<shift) >> shift
}

// --- RV32I field decoders, standard encodings. ---

func decodeR(instr uint32) (rd, rs1, rs2 uint32) {
	rd = (instr >> 7) & 0x1f
	rs1 = (instr >> 15) & 0x1f
	rs2 = (instr >> 20) & 0x1f

	return
}

func decodeI(instr uint32) (rd, rs1 uint32, imm int32) {
	rd = (instr >> 7) & 0x1f
	rs1 = (instr >> 15) & 0x1f
	imm = signExtend(instr>>20, 12)

	return
}

func decodeS(instr uint32) (rs1, rs2 uint32, imm int32) {
	rs1 = (instr >> 15) & 0x1f
	rs2 = (instr >> 20) & 0x1f
	raw := ((instr >> 25) << 5) | ((instr >> 7) & 0x1f)
	imm = signExtend(raw, 12)

	return
}

func decodeB(instr uint32) (rs1, rs2 uint32, imm int32) {
	rs1 = (instr >> 15) & 0x1f
	rs2 = (instr >> 20) & 0x1f
	raw := (((instr >> 31) & 0x1) << 12) |
		(((instr >> 7) & 0x1) << 11) |
		(((instr >> 25) & 0x3f) << 5) |
		(((instr >> 8) & 0xf) << 1)
	imm = signExtend(raw, 13)

	return
}

func decodeU(instr uint32) (rd uint32, imm uint32) {
	rd = (instr >> 7) & 0x1f
	imm = instr & 0xfffff000

	return
}

func decodeJ(instr uint32) (rd uint32, imm int32) {
	rd = (instr >> 7) & 0x1f
	raw := (((instr >> 31) & 0x1) << 20) |
		(((instr >> 12) & 0xff) << 12) |
		(((instr >> 20) & 0x1) << 11) |
		(((instr >> 21) & 0x3ff) << 1)
	imm = signExtend(raw, 21)

	return
}

func decode32(pc uint32, instr uint32) (Instruction, error) {
	opcode := instr & 0x7f
	funct3 := (instr >> 12) & 0x7
	funct7 := (instr >> 25) & 0x7f

	in := Instruction{PC: pc, Raw: instr, Length: 4}

	switch opcode {
	case 0x37: // LUI
		rd, imm := decodeU(instr)
		in.Mnemonic = "lui"
		in.Operands = fmt.Sprintf("%s, %#x", reg(rd), imm>>12)

	case 0x17: // AUIPC
		rd, imm := decodeU(instr)
		in.Mnemonic = "auipc"
		in.Operands = fmt.Sprintf("%s, %#x", reg(rd), imm>>12)

	case 0x6f: // JAL
		rd, imm := decodeJ(instr)
		in.Mnemonic = "jal"
		in.Operands = fmt.Sprintf("%s, %#x", reg(rd), pc+uint32(imm))

	case 0x67: // JALR
		if funct3 != 0 {
			return Instruction{}, fmt.Errorf("elfinfo: invalid jalr funct3=%d at pc=%#x", funct3, pc)
		}

		rd, rs1, imm := decodeI(instr)
		in.Mnemonic = "jalr"
		in.Operands = fmt.Sprintf("%s, %d(%s)", reg(rd), imm, reg(rs1))

	case 0x63: // BRANCH
		rs1, rs2, imm := decodeB(instr)

		names := map[uint32]string{0: "beq", 1: "bne", 4: "blt", 5: "bge", 6: "bltu", 7: "bgeu"}

		m, ok := names[funct3]
		if !ok {
			return Instruction{}, fmt.Errorf("elfinfo: invalid branch funct3=%d at pc=%#x", funct3, pc)
		}

		in.Mnemonic = m
		in.Operands = fmt.Sprintf("%s, %s, %#x", reg(rs1), reg(rs2), pc+uint32(imm))

	case 0x03: // LOAD
		rd, rs1, imm := decodeI(instr)

		names := map[uint32]string{0: "lb", 1: "lh", 2: "lw", 4: "lbu", 5: "lhu"}

		m, ok := names[funct3]
		if !ok {
			return Instruction{}, fmt.Errorf("elfinfo: invalid load funct3=%d at pc=%#x", funct3, pc)
		}

		in.Mnemonic = m
		in.Operands = fmt.Sprintf("%s, %d(%s)", reg(rd), imm, reg(rs1))

	case 0x23: // STORE
		rs1, rs2, imm := decodeS(instr)

		names := map[uint32]string{0: "sb", 1: "sh", 2: "sw"}

		m, ok := names[funct3]
		if !ok {
			return Instruction{}, fmt.Errorf("elfinfo: invalid store funct3=%d at pc=%#x", funct3, pc)
		}

		in.Mnemonic = m
		in.Operands = fmt.Sprintf("%s, %d(%s)", reg(rs2), imm, reg(rs1))

	case 0x13: // OP-IMM
		rd, rs1, imm := decodeI(instr)
		shamt := uint32(imm) & 0x1f

		switch funct3 {
		case 0:
			in.Mnemonic, in.Operands = "addi", fmt.Sprintf("%s, %s, %d", reg(rd), reg(rs1), imm)
		case 2:
			in.Mnemonic, in.Operands = "slti", fmt.Sprintf("%s, %s, %d", reg(rd), reg(rs1), imm)
		case 3:
			in.Mnemonic, in.Operands = "sltiu", fmt.Sprintf("%s, %s, %d", reg(rd), reg(rs1), imm)
		case 4:
			in.Mnemonic, in.Operands = "xori", fmt.Sprintf("%s, %s, %d", reg(rd), reg(rs1), imm)
		case 6:
			in.Mnemonic, in.Operands = "ori", fmt.Sprintf("%s, %s, %d", reg(rd), reg(rs1), imm)
		case 7:
			in.Mnemonic, in.Operands = "andi", fmt.Sprintf("%s, %s, %d", reg(rd), reg(rs1), imm)
		case 1:
			in.Mnemonic, in.Operands = "slli", fmt.Sprintf("%s, %s, %d", reg(rd), reg(rs1), shamt)
		case 5:
			if funct7&0x20 != 0 {
				in.Mnemonic = "srai"
			} else {
				in.Mnemonic = "srli"
			}

			in.Operands = fmt.Sprintf("%s, %s, %d", reg(rd), reg(rs1), shamt)
		}

	case 0x33: // OP (register-register, plus M extension)
		rd, rs1, rs2 := decodeR(instr)

		if funct7 == 0x01 { // M extension
			names := map[uint32]string{0: "mul", 1: "mulh", 2: "mulhsu", 3: "mulhu", 4: "div", 5: "divu", 6: "rem", 7: "remu"}
			if m, ok := names[funct3]; ok {
				in.Mnemonic = m
				in.Operands = fmt.Sprintf("%s, %s, %s", reg(rd), reg(rs1), reg(rs2))

				break
			}
		}

		switch funct3 {
		case 0:
			if funct7&0x20 != 0 {
				in.Mnemonic = "sub"
			} else {
				in.Mnemonic = "add"
			}
		case 1:
			in.Mnemonic = "sll"
		case 2:
			in.Mnemonic = "slt"
		case 3:
			in.Mnemonic = "sltu"
		case 4:
			in.Mnemonic = "xor"
		case 5:
			if funct7&0x20 != 0 {
				in.Mnemonic = "sra"
			} else {
				in.Mnemonic = "srl"
			}
		case 6:
			in.Mnemonic = "or"
		case 7:
			in.Mnemonic = "and"
		}

		in.Operands = fmt.Sprintf("%s, %s, %s", reg(rd), reg(rs1), reg(rs2))

	case 0x0f: // MISC-MEM
		in.Mnemonic = "fence"

	case 0x73: // SYSTEM
		imm := instr >> 20

		switch {
		case funct3 == 0 && imm == 0:
			in.Mnemonic = "ecall"
		case funct3 == 0 && imm == 1:
			in.Mnemonic = "ebreak"
		default:
			return Instruction{}, fmt.Errorf("elfinfo: unrecognized system instruction at pc=%#x", pc)
		}

	default:
		return Instruction{}, fmt.Errorf("elfinfo: unrecognized opcode %#x at pc=%#x", opcode, pc)
	}

	return in, nil
}

// decode16 decodes the RVC (compressed) subset commonly emitted by RV32GC
// toolchains: quadrants 0/1/2 covering stack-relative loads/stores, simple
// immediate arithmetic, control flow, and register moves.
func decode16(pc uint32, instr uint16) (Instruction, error) {
	quadrant := instr & 0x3
	funct3 := (instr >> 13) & 0x7

	in := Instruction{PC: pc, Raw: uint32(instr), Length: 2}

	rs2Prime := func(v uint16) string { return reg(uint32((v>>2)&0x7) + 8) }

	switch quadrant {
	case 0:
		switch funct3 {
		case 0: // C.ADDI4SPN
			nzuimm := ((instr>>7)&0xf)<<6 | ((instr>>11)&0x3)<<4 | ((instr>>5)&0x1)<<3 | ((instr>>6)&0x1)<<2
			if nzuimm == 0 {
				return Instruction{}, fmt.Errorf("elfinfo: reserved c.addi4spn at pc=%#x", pc)
			}

			in.Mnemonic = "c.addi4spn"
			in.Operands = fmt.Sprintf("%s, sp, %d", reg(uint32((instr>>2)&0x7)+8), nzuimm)
		case 2: // C.LW
			uimm := ((instr>>5)&0x1)<<6 | ((instr>>10)&0x7)<<3 | ((instr>>6)&0x1)<<2
			in.Mnemonic = "c.lw"
			in.Operands = fmt.Sprintf("%s, %d(%s)", reg(uint32((instr>>2)&0x7)+8), uimm, reg(uint32((instr>>7)&0x7)+8))
		case 6: // C.SW
			uimm := ((instr>>5)&0x1)<<6 | ((instr>>10)&0x7)<<3 | ((instr>>6)&0x1)<<2
			in.Mnemonic = "c.sw"
			in.Operands = fmt.Sprintf("%s, %d(%s)", rs2Prime(instr), uimm, reg(uint32((instr>>7)&0x7)+8))
		default:
			return Instruction{}, fmt.Errorf("elfinfo: unrecognized quadrant0 funct3=%d at pc=%#x", funct3, pc)
		}

	case 1:
		rd := uint32((instr >> 7) & 0x1f)

		switch funct3 {
		case 0: // C.NOP / C.ADDI
			imm := signExtend(uint32(((instr>>12)&0x1)<<5|((instr>>2)&0x1f)), 6)
			in.Mnemonic = "c.addi"
			in.Operands = fmt.Sprintf("%s, %d", reg(rd), imm)
		case 1: // C.JAL (RV32 only)
			raw := uint32(((instr>>12)&0x1)<<11 | ((instr>>8)&0x1)<<10 | ((instr>>9)&0x3)<<8 |
				((instr>>6)&0x1)<<7 | ((instr>>7)&0x1)<<6 | ((instr>>2)&0x1)<<5 |
				((instr>>11)&0x1)<<4 | ((instr>>3)&0x7)<<1)
			imm := signExtend(raw, 12)
			in.Mnemonic = "c.jal"
			in.Operands = fmt.Sprintf("%#x", pc+uint32(imm))
		case 2: // C.LI
			imm := signExtend(uint32(((instr>>12)&0x1)<<5|((instr>>2)&0x1f)), 6)
			in.Mnemonic = "c.li"
			in.Operands = fmt.Sprintf("%s, %d", reg(rd), imm)
		case 3:
			if rd == 2 { // C.ADDI16SP
				raw := uint32(((instr>>12)&0x1)<<9 | ((instr>>3)&0x3)<<7 | ((instr>>5)&0x1)<<6 |
					((instr>>2)&0x1)<<5 | ((instr>>6)&0x1)<<4)
				imm := signExtend(raw, 10)
				in.Mnemonic = "c.addi16sp"
				in.Operands = fmt.Sprintf("sp, %d", imm)
			} else { // C.LUI
				raw := uint32(((instr>>12)&0x1)<<17 | ((instr>>2)&0x1f)<<12)
				imm := signExtend(raw, 18)
				in.Mnemonic = "c.lui"
				in.Operands = fmt.Sprintf("%s, %#x", reg(rd), uint32(imm)>>12)
			}
		case 4: // arithmetic quadrant
			rdp := reg(uint32((instr>>7)&0x7) + 8)
			sub := (instr >> 10) & 0x3

			switch sub {
			case 0, 1: // C.SRLI / C.SRAI
				shamt := ((instr >> 12) & 0x1 << 5) | (instr>>2)&0x1f
				if sub == 0 {
					in.Mnemonic = "c.srli"
				} else {
					in.Mnemonic = "c.srai"
				}

				in.Operands = fmt.Sprintf("%s, %d", rdp, shamt)
			case 2: // C.ANDI
				imm := signExtend(uint32(((instr>>12)&0x1)<<5|((instr>>2)&0x1f)), 6)
				in.Mnemonic = "c.andi"
				in.Operands = fmt.Sprintf("%s, %d", rdp, imm)
			case 3:
				rs2 := reg(uint32((instr>>2)&0x7) + 8)
				funct2 := (instr >> 5) & 0x3
				names := [4]string{"c.sub", "c.xor", "c.or", "c.and"}
				in.Mnemonic = names[funct2]
				in.Operands = fmt.Sprintf("%s, %s", rdp, rs2)
			}
		case 5: // C.J
			raw := uint32(((instr>>12)&0x1)<<11 | ((instr>>8)&0x1)<<10 | ((instr>>9)&0x3)<<8 |
				((instr>>6)&0x1)<<7 | ((instr>>7)&0x1)<<6 | ((instr>>2)&0x1)<<5 |
				((instr>>11)&0x1)<<4 | ((instr>>3)&0x7)<<1)
			imm := signExtend(raw, 12)
			in.Mnemonic = "c.j"
			in.Operands = fmt.Sprintf("%#x", pc+uint32(imm))
		case 6, 7: // C.BEQZ / C.BNEZ
			raw := uint32(((instr>>12)&0x1)<<8 | ((instr>>5)&0x3)<<6 | ((instr>>2)&0x1)<<5 |
				((instr>>10)&0x3)<<3 | ((instr>>3)&0x3)<<1)
			imm := signExtend(raw, 9)

			if funct3 == 6 {
				in.Mnemonic = "c.beqz"
			} else {
				in.Mnemonic = "c.bnez"
			}

			in.Operands = fmt.Sprintf("%s, %#x", reg(uint32((instr>>7)&0x7)+8), pc+uint32(imm))
		}

	case 2:
		rd := uint32((instr >> 7) & 0x1f)

		switch funct3 {
		case 0: // C.SLLI
			shamt := ((instr>>12)&0x1)<<5 | (instr>>2)&0x1f
			in.Mnemonic = "c.slli"
			in.Operands = fmt.Sprintf("%s, %d", reg(rd), shamt)
		case 2: // C.LWSP
			uimm := ((instr>>4)&0x7)<<2 | ((instr>>12)&0x1)<<5 | ((instr>>2)&0x3)<<6
			in.Mnemonic = "c.lwsp"
			in.Operands = fmt.Sprintf("%s, %d(sp)", reg(rd), uimm)
		case 4:
			rs2 := uint32((instr >> 2) & 0x1f)
			bit12 := (instr >> 12) & 0x1

			switch {
			case bit12 == 0 && rs2 == 0: // C.JR
				in.Mnemonic = "c.jr"
				in.Operands = reg(rd)
			case bit12 == 0: // C.MV
				in.Mnemonic = "c.mv"
				in.Operands = fmt.Sprintf("%s, %s", reg(rd), reg(rs2))
			case bit12 == 1 && rd == 0 && rs2 == 0: // C.EBREAK
				in.Mnemonic = "c.ebreak"
			case bit12 == 1 && rs2 == 0: // C.JALR
				in.Mnemonic = "c.jalr"
				in.Operands = reg(rd)
			default: // C.ADD
				in.Mnemonic = "c.add"
				in.Operands = fmt.Sprintf("%s, %s", reg(rd), reg(rs2))
			}
		case 6: // C.SWSP
			uimm := ((instr>>9)&0xf)<<2 | ((instr>>7)&0x3)<<6
			in.Mnemonic = "c.swsp"
			in.Operands = fmt.Sprintf("%s, %d(sp)", reg(uint32((instr>>2)&0x1f)), uimm)
		default:
			return Instruction{}, fmt.Errorf("elfinfo: unrecognized quadrant2 funct3=%d at pc=%#x", funct3, pc)
		}

	default: // quadrant 3 handled by decode32, never reached here
		return Instruction{}, fmt.Errorf("elfinfo: quadrant3 seen in compressed decode at pc=%#x", pc)
	}

	return in, nil
}
