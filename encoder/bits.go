package encoder

import "github.com/sn-x/snx-sim/ir"

// encodeR packs the three-register format: [OP:4|Src1:2|Src2:2|Dest:2|0:6].
func encodeR(op ir.Opcode, dest, src1, src2 int) uint16 {
	return (op.Hex() << 12) | (uint16(src1) << 10) | (uint16(src2) << 8) | (uint16(dest) << 6)
}

// encodeR1 packs the two-register format: [OP:4|Src:2|0:2|Dest:2|0:6].
func encodeR1(op ir.Opcode, dest, src int) uint16 {
	return (op.Hex() << 12) | (uint16(src) << 10) | (uint16(dest) << 6)
}

// encodeR0 packs the no-operand format: [OP:4|0:12].
func encodeR0(op ir.Opcode) uint16 {
	return op.Hex() << 12
}

// encodeI packs the register+address format: [OP:4|Dest:2|Base:2|Imm:8].
func encodeI(op ir.Opcode, dest, base, imm8 int) uint16 {
	return (op.Hex() << 12) | (uint16(dest) << 10) | (uint16(base) << 8) | (uint16(imm8) & 0xFF)
}

// encodeBranchLabel packs the legacy branch-exception format. It computes
// (OP<<12) + (Reg<<10) + targetPC and masks to 16 bits afterward: the
// add-then-mask order is deliberate, so a targetPC >= 1024 overflows into
// the opcode/register fields instead of being clipped first.
func encodeBranchLabel(op ir.Opcode, reg, targetPC int) uint16 {
	word := (uint32(op.Hex()) << 12) + (uint32(reg) << 10) + uint32(targetPC)
	return uint16(word & 0xFFFF)
}

// sext8 sign-extends the low 8 bits of v to a full int.
func sext8(v int) int {
	v &= 0xFF
	if v&0x80 != 0 {
		return v - 0x100
	}
	return v
}

// DecodedFields is the field layout recovered from one encoded word,
// independent of which format it turns out to hold; callers read only
// the fields relevant to the returned format.
type DecodedFields struct {
	Format         ir.Format
	Dest, Src1, Src2, Base int
	Imm8           int
}

// Decode unpacks word by its opcode's format. It is the inverse of
// encodeR/encodeR1/encodeR0/encodeI for every word actually produced by
// Lower, except a branch word whose label-form target PC was >= 1024:
// that word's opcode/register fields were themselves overwritten by the
// overflow, so decoding it does not recover the original operands.
func Decode(word uint16) (ir.Opcode, DecodedFields, bool) {
	hex := (word >> 12) & 0xF
	info, ok := ir.FromHex(hex)
	if !ok {
		return 0, DecodedFields{}, false
	}

	switch info.Format {
	case ir.FormatR:
		return info.Opcode, DecodedFields{
			Format: ir.FormatR,
			Src1:   int((word >> 10) & 0x3),
			Src2:   int((word >> 8) & 0x3),
			Dest:   int((word >> 6) & 0x3),
		}, true

	case ir.FormatR1:
		return info.Opcode, DecodedFields{
			Format: ir.FormatR1,
			Src1:   int((word >> 10) & 0x3),
			Dest:   int((word >> 6) & 0x3),
		}, true

	case ir.FormatR0:
		return info.Opcode, DecodedFields{Format: ir.FormatR0}, true

	case ir.FormatI:
		return info.Opcode, DecodedFields{
			Format: ir.FormatI,
			Dest:   int((word >> 10) & 0x3),
			Base:   int((word >> 8) & 0x3),
			Imm8:   int(word & 0xFF),
		}, true
	}

	return 0, DecodedFields{}, false
}
