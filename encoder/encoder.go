// Package encoder lowers a parsed SN/X program into IR plus its bit-exact
// 16-bit machine-code image (spec §4.3, the C3 "Lowerer/Encoder").
package encoder

import (
	"github.com/sn-x/snx-sim/diag"
	"github.com/sn-x/snx-sim/ir"
	"github.com/sn-x/snx-sim/parser"
	"github.com/sn-x/snx-sim/token"
)

// Lowerer performs the two-pass symbol-collection-then-encode lowering.
type Lowerer struct {
	regCount int
	memSize  int
	diags    *diag.Diagnostics
}

// New creates a Lowerer for the given register count and memory size.
func New(regCount, memSize int) *Lowerer {
	return &Lowerer{regCount: regCount, memSize: memSize, diags: &diag.Diagnostics{}}
}

// Lower runs both passes over program and returns the resulting IR. The IR
// may be partial when diagnostics contains errors; callers must check
// Diagnostics().HasErrors() before trusting it.
func (low *Lowerer) Lower(program *parser.Program) *ir.Program {
	symbols := ir.NewSymbolTable()

	// Pass 1: symbol collection.
	pc := 0
	for _, line := range program.Lines {
		if line.Label != "" {
			if !symbols.Define(line.Label, pc) {
				low.diags.Addf(diag.Error, diag.CodeDuplicateLabel, line.Pos,
					"duplicate label: %s", line.Label)
			}
		}
		if line.Inst != nil {
			pc++
		}
	}

	// Pass 2: validate shape, resolve labels, encode.
	out := &ir.Program{Symbols: symbols}
	pc = 0
	for _, line := range program.Lines {
		if line.Inst == nil {
			continue
		}
		inst, word := low.lowerOne(line.Inst, pc, symbols)
		out.Instructions = append(out.Instructions, inst)
		out.Words = append(out.Words, word)
		pc++
	}

	return out
}

// Diagnostics returns diagnostics accumulated while lowering.
func (low *Lowerer) Diagnostics() *diag.Diagnostics {
	return low.diags
}

func (low *Lowerer) lowerOne(src *parser.Instruction, pc int, symbols *ir.SymbolTable) (*ir.Instruction, uint16) {
	info, ok := ir.Lookup(src.Mnemonic)
	if !ok {
		low.diags.Addf(diag.Error, diag.CodeUnknownMnemonic, src.Pos, "unknown mnemonic: %s", src.Mnemonic)
		return low.placeholder(src), 0
	}

	switch info.Format {
	case ir.FormatR:
		return low.lowerR(info.Opcode, src)
	case ir.FormatR1:
		return low.lowerR1(info.Opcode, src)
	case ir.FormatR0:
		return low.lowerR0(info.Opcode, src)
	case ir.FormatI:
		return low.lowerI(info.Opcode, src, pc, symbols)
	}
	return low.placeholder(src), 0
}

func (low *Lowerer) placeholder(src *parser.Instruction) *ir.Instruction {
	return &ir.Instruction{Opcode: ir.HLT, Target: -1, Pos: src.Pos, RawLine: src.RawLine}
}

func (low *Lowerer) checkReg(operand parser.Operand) (int, bool) {
	if operand.Kind != parser.OperandReg {
		low.diags.Addf(diag.Error, diag.CodeBadOperand, operand.Pos, "expected register operand")
		return 0, false
	}
	if operand.Reg < 0 || operand.Reg >= low.regCount {
		low.diags.Addf(diag.Error, diag.CodeBadRegister, operand.Pos,
			"register $%d out of range [0,%d)", operand.Reg, low.regCount)
		return 0, false
	}
	return operand.Reg, true
}

func (low *Lowerer) lowerR(op ir.Opcode, src *parser.Instruction) (*ir.Instruction, uint16) {
	if len(src.Operands) != 3 {
		low.diags.Addf(diag.Error, diag.CodeBadOperand, src.Pos,
			"%s requires 3 register operands, got %d", src.Mnemonic, len(src.Operands))
		return low.placeholder(src), 0
	}
	dest, ok1 := low.checkReg(src.Operands[0])
	s1, ok2 := low.checkReg(src.Operands[1])
	s2, ok3 := low.checkReg(src.Operands[2])
	if !ok1 || !ok2 || !ok3 {
		return low.placeholder(src), 0
	}
	word := encodeR(op, dest, s1, s2)
	return &ir.Instruction{Opcode: op, Dest: dest, Src1: s1, Src2: s2, Target: -1, Pos: src.Pos, RawLine: src.RawLine}, word
}

func (low *Lowerer) lowerR1(op ir.Opcode, src *parser.Instruction) (*ir.Instruction, uint16) {
	if len(src.Operands) != 2 {
		low.diags.Addf(diag.Error, diag.CodeBadOperand, src.Pos,
			"%s requires 2 register operands, got %d", src.Mnemonic, len(src.Operands))
		return low.placeholder(src), 0
	}
	dest, ok1 := low.checkReg(src.Operands[0])
	s, ok2 := low.checkReg(src.Operands[1])
	if !ok1 || !ok2 {
		return low.placeholder(src), 0
	}
	word := encodeR1(op, dest, s)
	return &ir.Instruction{Opcode: op, Dest: dest, Src1: s, Target: -1, Pos: src.Pos, RawLine: src.RawLine}, word
}

func (low *Lowerer) lowerR0(op ir.Opcode, src *parser.Instruction) (*ir.Instruction, uint16) {
	if len(src.Operands) != 0 {
		low.diags.Addf(diag.Error, diag.CodeBadOperand, src.Pos,
			"%s takes no operands, got %d", src.Mnemonic, len(src.Operands))
		return low.placeholder(src), 0
	}
	return &ir.Instruction{Opcode: op, Target: -1, Pos: src.Pos, RawLine: src.RawLine}, encodeR0(op)
}

// lowerI lowers the I-type instructions: LD, ST, LDA, IN, OUT, BZ, BAL.
// BZ/BAL take a register plus either a label target (legacy bit-exact
// branch encoding) or an address operand (e.g. a return via the link
// register); the rest take a register plus an address operand, except
// IN/OUT which take only a register.
func (low *Lowerer) lowerI(op ir.Opcode, src *parser.Instruction, pc int, symbols *ir.SymbolTable) (*ir.Instruction, uint16) {
	switch op {
	case ir.IN, ir.OUT:
		if len(src.Operands) != 1 {
			low.diags.Addf(diag.Error, diag.CodeBadOperand, src.Pos,
				"%s requires 1 register operand, got %d", src.Mnemonic, len(src.Operands))
			return low.placeholder(src), 0
		}
		dest, ok := low.checkReg(src.Operands[0])
		if !ok {
			return low.placeholder(src), 0
		}
		word := encodeI(op, dest, 0, 0)
		return &ir.Instruction{Opcode: op, Dest: dest, Target: -1, Pos: src.Pos, RawLine: src.RawLine}, word

	case ir.BZ, ir.BAL:
		if len(src.Operands) != 2 {
			low.diags.Addf(diag.Error, diag.CodeBadOperand, src.Pos,
				"%s requires register and target operands, got %d", src.Mnemonic, len(src.Operands))
			return low.placeholder(src), 0
		}
		dest, ok := low.checkReg(src.Operands[0])
		if !ok {
			return low.placeholder(src), 0
		}
		return low.lowerBranchTarget(op, dest, src, pc, symbols)

	default: // LD, ST, LDA
		if len(src.Operands) != 2 {
			low.diags.Addf(diag.Error, diag.CodeBadOperand, src.Pos,
				"%s requires register and address operands, got %d", src.Mnemonic, len(src.Operands))
			return low.placeholder(src), 0
		}
		dest, ok := low.checkReg(src.Operands[0])
		if !ok {
			return low.placeholder(src), 0
		}
		addr := src.Operands[1]
		if addr.Kind != parser.OperandAddress {
			low.diags.Addf(diag.Error, diag.CodeBadOperand, addr.Pos, "expected address operand")
			return low.placeholder(src), 0
		}
		if addr.Reg < 0 || addr.Reg >= low.regCount {
			low.diags.Addf(diag.Error, diag.CodeBadRegister, addr.Pos,
				"register $%d out of range [0,%d)", addr.Reg, low.regCount)
			return low.placeholder(src), 0
		}
		imm8 := low.truncateImmediate(addr.Imm, addr.Pos)
		if (op == ir.LD || op == ir.ST) && addr.Reg == 0 {
			low.checkAbsoluteBounds(imm8, addr.Pos)
		}
		word := encodeI(op, dest, addr.Reg, imm8)
		return &ir.Instruction{Opcode: op, Dest: dest, Src1: addr.Reg, Imm: addr.Imm, Target: -1, Pos: src.Pos, RawLine: src.RawLine}, word
	}
}

func (low *Lowerer) lowerBranchTarget(op ir.Opcode, dest int, src *parser.Instruction, pc int, symbols *ir.SymbolTable) (*ir.Instruction, uint16) {
	target := src.Operands[1]

	switch target.Kind {
	case parser.OperandLabel:
		targetPC, ok := symbols.Lookup(target.Label)
		if !ok {
			low.diags.Addf(diag.Error, diag.CodeUndefinedLabel, target.Pos, "undefined label: %s", target.Label)
			return low.placeholder(src), 0
		}
		if targetPC >= 1024 {
			low.diags.Addf(diag.Warning, diag.CodeBranchOverflow, src.Pos,
				"branch target PC %d >= 1024 overflows into opcode/register fields", targetPC)
		}
		word := encodeBranchLabel(op, dest, targetPC)
		return &ir.Instruction{Opcode: op, Dest: dest, Target: targetPC, Pos: src.Pos, RawLine: src.RawLine}, word

	case parser.OperandAddress:
		if target.Reg < 0 || target.Reg >= low.regCount {
			low.diags.Addf(diag.Error, diag.CodeBadRegister, target.Pos,
				"register $%d out of range [0,%d)", target.Reg, low.regCount)
			return low.placeholder(src), 0
		}
		imm8 := low.truncateImmediate(target.Imm, target.Pos)
		word := encodeI(op, dest, target.Reg, imm8)
		return &ir.Instruction{Opcode: op, Dest: dest, Src1: target.Reg, Imm: target.Imm, Target: -1, Pos: src.Pos, RawLine: src.RawLine}, word

	default:
		low.diags.Addf(diag.Error, diag.CodeBadOperand, target.Pos, "expected label or address operand for %s target", src.Mnemonic)
		return low.placeholder(src), 0
	}
}

// truncateImmediate returns the 8-bit truncated immediate (imm & 0xFF),
// warning I001 when the original signed value does not fit in [-128,127].
func (low *Lowerer) truncateImmediate(imm int, pos token.Position) int {
	if imm < -128 || imm > 127 {
		low.diags.Addf(diag.Warning, diag.CodeImmTruncated, pos,
			"immediate %d truncated to 8 bits (%d)", imm, sext8(imm))
	}
	return imm & 0xFF
}

// checkAbsoluteBounds reports error M001 when a compile-time-known LD/ST absolute
// address (base register $0) falls outside [0, mem_size).
func (low *Lowerer) checkAbsoluteBounds(imm8 int, pos token.Position) {
	addr := sext8(imm8)
	if addr < 0 || addr >= low.memSize {
		low.diags.Addf(diag.Error, diag.CodeAbsAddrOOB, pos,
			"absolute address %d out of bounds [0,%d)", addr, low.memSize)
	}
}
