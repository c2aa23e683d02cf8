package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sn-x/snx-sim/token"
)

func TestNextTokenBasic(t *testing.T) {
	l := New("ADD $1, $2, $3\n")
	toks := l.TokenizeAll()
	require.Empty(t, l.Errors())

	types := make([]token.Type, len(toks))
	for i, tok := range toks {
		types[i] = tok.Type
	}
	require.Equal(t, []token.Type{
		token.IDENT, token.REGISTER, token.COMMA, token.REGISTER, token.COMMA, token.REGISTER, token.EOL, token.EOF,
	}, types)
}

func TestNextTokenSignedNumber(t *testing.T) {
	l := New("-128")
	toks := l.TokenizeAll()
	require.Empty(t, l.Errors())
	require.Equal(t, token.NUMBER, toks[0].Type)
	require.Equal(t, "-128", toks[0].Literal)
}

func TestNextTokenComment(t *testing.T) {
	l := New("ADD $1, $2, $3 ; a comment\nHLT")
	toks := l.TokenizeAll()
	require.Empty(t, l.Errors())
	require.Equal(t, token.IDENT, toks[0].Type)

	var mnemonics []string
	for _, tok := range toks {
		if tok.Type == token.IDENT {
			mnemonics = append(mnemonics, tok.Literal)
		}
	}
	require.Equal(t, []string{"ADD", "HLT"}, mnemonics)
}

func TestNextTokenLabel(t *testing.T) {
	l := New("loop: BZ $1, loop")
	toks := l.TokenizeAll()
	require.Empty(t, l.Errors())
	require.Equal(t, token.IDENT, toks[0].Type)
	require.Equal(t, token.COLON, toks[1].Type)
}

func TestNextTokenBadRegister(t *testing.T) {
	l := New("$")
	l.TokenizeAll()
	require.NotEmpty(t, l.Errors())
}

func TestNextTokenUnrecognizedChar(t *testing.T) {
	l := New("@")
	l.TokenizeAll()
	require.NotEmpty(t, l.Errors())
}

func TestPositionTracking(t *testing.T) {
	l := New("ADD\nHLT")
	toks := l.TokenizeAll()
	require.Equal(t, 1, toks[0].Pos.Line)
	// HLT is on line 2
	var hltPos token.Position
	for _, tok := range toks {
		if tok.Literal == "HLT" {
			hltPos = tok.Pos
		}
	}
	require.Equal(t, 2, hltPos.Line)
}
