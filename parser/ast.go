// Package parser builds an AST (Program) from SN/X assembly source.
package parser

import "github.com/sn-x/snx-sim/token"

// OperandKind tags the variant held by an Operand.
type OperandKind int

const (
	OperandReg OperandKind = iota
	OperandAddress
	OperandLabel
)

// Operand is a tagged union: Reg(index), Address(imm, base), LabelRef(name).
type Operand struct {
	Kind  OperandKind
	Reg   int    // register index: the operand itself (OperandReg) or the base (OperandAddress)
	Imm   int    // logical signed immediate, pre-truncation (OperandAddress)
	Label string // OperandLabel
	Pos   token.Position
}

// Instruction is a normalized mnemonic plus its ordered operands.
type Instruction struct {
	Mnemonic string
	Operands []Operand
	Pos      token.Position
	RawLine  string
}

// Line is one source line: an optional label, an optional instruction.
type Line struct {
	Label string
	Inst  *Instruction
	Pos   token.Position
}

// Program is the ordered sequence of parsed lines.
type Program struct {
	Lines []*Line
}
