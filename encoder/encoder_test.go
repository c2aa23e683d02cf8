package encoder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sn-x/snx-sim/diag"
	"github.com/sn-x/snx-sim/parser"
)

func lower(t *testing.T, source string, regCount, memSize int) (*Lowerer, []*diag.Diagnostic) {
	t.Helper()
	p := parser.New(source)
	program, parseDiags := p.Parse()
	require.False(t, parseDiags.HasErrors(), "source must parse cleanly: %s", parseDiags.Format())

	low := New(regCount, memSize)
	low.Lower(program)
	return low, low.Diagnostics().All()
}

func hasCode(items []*diag.Diagnostic, code string) bool {
	for _, it := range items {
		if it.Code == code {
			return true
		}
	}
	return false
}

func TestEncodeThreeRegisterInstruction(t *testing.T) {
	p := parser.New("ADD $3, $1, $2\n")
	program, _ := p.Parse()
	low := New(4, 256)
	out := low.Lower(program)
	require.False(t, low.Diagnostics().HasErrors())
	require.Len(t, out.Words, 1)

	inst := out.Instructions[0]
	require.Equal(t, 3, inst.Dest)
	require.Equal(t, 1, inst.Src1)
	require.Equal(t, 2, inst.Src2)
	require.Equal(t, -1, inst.Target)
}

func TestImmediateInRangeNoWarning(t *testing.T) {
	_, diags := lower(t, "LD $1, 127($0)\n", 4, 256)
	require.False(t, hasCode(diags, "I001"))

	_, diags = lower(t, "LD $1, -128($0)\n", 4, 256)
	require.False(t, hasCode(diags, "I001"))
}

func TestImmediateOutOfRangeWarns(t *testing.T) {
	_, diags := lower(t, "LD $1, 128($2)\n", 4, 256)
	require.True(t, hasCode(diags, "I001"))

	_, diags = lower(t, "LD $1, -129($2)\n", 4, 256)
	require.True(t, hasCode(diags, "I001"))
}

func TestAbsoluteAddressInBoundsNoError(t *testing.T) {
	_, diags := lower(t, "LD $1, 0($0)\n", 4, 1)
	require.False(t, hasCode(diags, "M001"))
}

func TestAbsoluteAddressOutOfBoundsErrors(t *testing.T) {
	_, diags := lower(t, "LD $1, 1($0)\n", 4, 1)
	require.True(t, hasCode(diags, "M001"))
}

func TestAbsoluteBoundsOnlyAppliesToConstantZeroBase(t *testing.T) {
	// Base is a register, not the $0-literal form, so M001 does not apply
	// even though the value happens to exceed mem_size at compile time.
	_, diags := lower(t, "LD $1, 200($2)\n", 4, 4)
	require.False(t, hasCode(diags, "M001"))
}

func TestAbsoluteBoundsDoesNotApplyToLDA(t *testing.T) {
	_, diags := lower(t, "LDA $1, 5($0)\n", 4, 1)
	require.False(t, hasCode(diags, "M001"))
}

func TestBranchTargetBelowOverflowThresholdNoWarning(t *testing.T) {
	var source string
	source = "BZ $1, far\n"
	for i := 0; i < 1022; i++ {
		source += "HLT\n"
	}
	source += "far: HLT\n"

	_, diags := lower(t, source, 4, 2048)
	require.False(t, hasCode(diags, "B001"))
}

func TestBranchTargetAtOverflowThresholdWarns(t *testing.T) {
	var source string
	source = "BAL $1, far\n"
	for i := 0; i < 1023; i++ {
		source += "HLT\n"
	}
	source += "far: HLT\n"

	_, diags := lower(t, source, 4, 2048)
	require.True(t, hasCode(diags, "B001"))
}

func TestUndefinedLabelIsError(t *testing.T) {
	p := parser.New("BZ $1, nope\n")
	program, _ := p.Parse()
	low := New(4, 256)
	low.Lower(program)
	require.True(t, low.Diagnostics().HasErrors())
}

func TestDuplicateLabelIsError(t *testing.T) {
	p := parser.New("a: HLT\na: HLT\n")
	program, _ := p.Parse()
	low := New(4, 256)
	low.Lower(program)
	require.True(t, low.Diagnostics().HasErrors())
}

func TestBranchReturnFormHasNoResolvedTarget(t *testing.T) {
	p := parser.New("BAL $1, 0($2)\n")
	program, _ := p.Parse()
	low := New(4, 256)
	out := low.Lower(program)
	require.False(t, low.Diagnostics().HasErrors())
	require.Equal(t, -1, out.Instructions[0].Target)
	require.Equal(t, 2, out.Instructions[0].Src1)
}

func TestWrongRegisterOperandCountIsError(t *testing.T) {
	p := parser.New("ADD $1, $2\n")
	program, _ := p.Parse()
	low := New(4, 256)
	low.Lower(program)
	require.True(t, low.Diagnostics().HasErrors())
}

func TestRegisterOutOfRangeIsError(t *testing.T) {
	p := parser.New("ADD $1, $2, $9\n")
	program, _ := p.Parse()
	low := New(4, 256)
	low.Lower(program)
	require.True(t, low.Diagnostics().HasErrors())
}

func TestDecodeRoundTripsThreeRegisterFormat(t *testing.T) {
	p := parser.New("ADD $3, $1, $2\n")
	program, _ := p.Parse()
	low := New(4, 256)
	out := low.Lower(program)

	op, fields, ok := Decode(out.Words[0])
	require.True(t, ok)
	require.Equal(t, out.Instructions[0].Opcode, op)
	require.Equal(t, out.Instructions[0].Dest, fields.Dest)
	require.Equal(t, out.Instructions[0].Src1, fields.Src1)
	require.Equal(t, out.Instructions[0].Src2, fields.Src2)
}

func TestDecodeRoundTripsAddressFormat(t *testing.T) {
	p := parser.New("LD $2, -5($1)\n")
	program, _ := p.Parse()
	low := New(4, 256)
	out := low.Lower(program)

	op, fields, ok := Decode(out.Words[0])
	require.True(t, ok)
	require.Equal(t, out.Instructions[0].Opcode, op)
	require.Equal(t, out.Instructions[0].Dest, fields.Dest)
	require.Equal(t, out.Instructions[0].Src1, fields.Base)
	require.Equal(t, out.Instructions[0].Imm&0xFF, fields.Imm8)
}

func TestDecodeRoundTripsNoOperandFormat(t *testing.T) {
	p := parser.New("HLT\n")
	program, _ := p.Parse()
	low := New(4, 256)
	out := low.Lower(program)

	op, _, ok := Decode(out.Words[0])
	require.True(t, ok)
	require.Equal(t, out.Instructions[0].Opcode, op)
}

func TestDecodeFailsOnUnusedOpcode(t *testing.T) {
	_, _, ok := Decode(0x5000)
	require.False(t, ok)
}

func TestDecodeDoesNotRoundTripOverflowedBranchTarget(t *testing.T) {
	// far's PC is exactly 2048 (bit 11), which lands in the register
	// field via the branch encoding's addition, corrupting the
	// decoded register without touching the opcode nibble.
	var source string
	source = "BZ $0, far\n"
	for i := 0; i < 2047; i++ {
		source += "HLT\n"
	}
	source += "far: HLT\n"

	p := parser.New(source)
	program, _ := p.Parse()
	low := New(4, 256)
	out := low.Lower(program)
	require.True(t, hasCode(low.Diagnostics().All(), "B001"))

	op, fields, ok := Decode(out.Words[0])
	require.True(t, ok)
	require.Equal(t, out.Instructions[0].Opcode, op, "this corruption happens to leave the opcode nibble intact")
	require.NotEqual(t, out.Instructions[0].Dest, fields.Dest, "the overflowed target PC clobbers the decoded register field")
}
