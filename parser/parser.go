package parser

import (
	"strconv"
	"strings"

	"github.com/sn-x/snx-sim/diag"
	"github.com/sn-x/snx-sim/lexer"
	"github.com/sn-x/snx-sim/token"
)

// Parser is a top-down, one-token-lookahead parser for SN/X assembly.
type Parser struct {
	lexer        *lexer.Lexer
	tokens       []token.Token
	pos          int
	currentToken token.Token
	peekToken    token.Token
	diags        *diag.Diagnostics
	inputLines   []string
}

// New creates a parser over the given source text.
func New(input string) *Parser {
	l := lexer.New(input)
	p := &Parser{
		lexer:      l,
		diags:      &diag.Diagnostics{},
		inputLines: strings.Split(input, "\n"),
	}
	p.tokens = l.TokenizeAll()
	for _, err := range l.Errors() {
		p.diags.Add(diag.Error, diag.CodeSyntax, err.Pos, err.Message)
	}
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.currentToken = p.peekToken
	if p.pos < len(p.tokens) {
		p.peekToken = p.tokens[p.pos]
		p.pos++
	} else {
		p.peekToken = token.Token{Type: token.EOF, Pos: p.currentToken.Pos}
	}
}

func (p *Parser) rawLine(line int) string {
	if line < 1 || line > len(p.inputLines) {
		return ""
	}
	return p.inputLines[line-1]
}

// Parse parses the entire program. Per-line errors do not abort the whole
// file: a malformed line is recovered by skipping to the next EOL.
func (p *Parser) Parse() (*Program, *diag.Diagnostics) {
	program := &Program{}

	for p.currentToken.Type != token.EOF {
		line := &Line{Pos: p.currentToken.Pos}

		if p.currentToken.Type == token.IDENT && p.peekToken.Type == token.COLON {
			line.Label = strings.ToUpper(p.currentToken.Literal)
			p.nextToken() // consume identifier
			p.nextToken() // consume colon
		}

		switch p.currentToken.Type {
		case token.EOL, token.EOF:
			// label-only or blank line
		case token.IDENT:
			line.Inst = p.parseInstruction()
			if line.Inst != nil {
				line.Inst.RawLine = p.rawLine(line.Inst.Pos.Line)
			}
		default:
			p.diags.Addf(diag.Error, diag.CodeSyntax, p.currentToken.Pos,
				"unexpected token: %s", p.currentToken.Type)
			p.skipToEOL()
		}

		program.Lines = append(program.Lines, line)

		if p.currentToken.Type == token.EOL {
			p.nextToken()
		}
	}

	return program, p.diags
}

// skipToEOL discards tokens until the next EOL or EOF, recovering from a
// syntax error on the current line without aborting the rest of the file.
func (p *Parser) skipToEOL() {
	for p.currentToken.Type != token.EOL && p.currentToken.Type != token.EOF {
		p.nextToken()
	}
}

func (p *Parser) parseInstruction() *Instruction {
	inst := &Instruction{
		Mnemonic: strings.ToUpper(p.currentToken.Literal),
		Pos:      p.currentToken.Pos,
	}
	p.nextToken() // consume mnemonic

	for p.currentToken.Type != token.EOL && p.currentToken.Type != token.EOF {
		operand, ok := p.parseOperand()
		if !ok {
			p.skipToEOL()
			return inst
		}
		inst.Operands = append(inst.Operands, operand)

		if p.currentToken.Type == token.COMMA {
			p.nextToken()
			continue
		}
		break
	}

	if p.currentToken.Type != token.EOL && p.currentToken.Type != token.EOF {
		p.diags.Addf(diag.Error, diag.CodeSyntax, p.currentToken.Pos,
			"unexpected token after operand: %s", p.currentToken.Type)
		p.skipToEOL()
	}

	return inst
}

// parseOperand parses Reg, Address, or LabelRef forms. A leading NUMBER
// without a following '(' is an address relative to $0 (spec §6.1).
func (p *Parser) parseOperand() (Operand, bool) {
	pos := p.currentToken.Pos

	switch p.currentToken.Type {
	case token.REGISTER:
		idx, err := parseRegisterLiteral(p.currentToken.Literal)
		if err != nil {
			p.diags.Add(diag.Error, diag.CodeBadRegister, pos, err.Error())
			return Operand{}, false
		}
		p.nextToken()
		return Operand{Kind: OperandReg, Reg: idx, Pos: pos}, true

	case token.NUMBER:
		imm, err := strconv.Atoi(p.currentToken.Literal)
		if err != nil {
			p.diags.Addf(diag.Error, diag.CodeSyntax, pos, "invalid number: %s", p.currentToken.Literal)
			return Operand{}, false
		}
		p.nextToken()
		if p.currentToken.Type == token.LPAREN {
			return p.parseAddressTail(pos, imm)
		}
		// bare NUMBER == NUMBER($0)
		return Operand{Kind: OperandAddress, Imm: imm, Reg: 0, Pos: pos}, true

	case token.LPAREN:
		// "(regN)" with implicit immediate 0
		return p.parseAddressTail(pos, 0)

	case token.IDENT:
		name := strings.ToUpper(p.currentToken.Literal)
		p.nextToken()
		return Operand{Kind: OperandLabel, Label: name, Pos: pos}, true

	default:
		p.diags.Addf(diag.Error, diag.CodeBadOperand, pos, "unexpected token in operand: %s", p.currentToken.Type)
		return Operand{}, false
	}
}

func (p *Parser) parseAddressTail(pos token.Position, imm int) (Operand, bool) {
	// currentToken is '('
	p.nextToken()
	if p.currentToken.Type != token.REGISTER {
		p.diags.Addf(diag.Error, diag.CodeBadOperand, p.currentToken.Pos,
			"expected register inside parentheses, got %s", p.currentToken.Type)
		return Operand{}, false
	}
	base, err := parseRegisterLiteral(p.currentToken.Literal)
	if err != nil {
		p.diags.Add(diag.Error, diag.CodeBadRegister, p.currentToken.Pos, err.Error())
		return Operand{}, false
	}
	p.nextToken()
	if p.currentToken.Type != token.RPAREN {
		p.diags.Addf(diag.Error, diag.CodeBadOperand, p.currentToken.Pos,
			"expected ')', got %s", p.currentToken.Type)
		return Operand{}, false
	}
	p.nextToken()
	return Operand{Kind: OperandAddress, Imm: imm, Reg: base, Pos: pos}, true
}

func parseRegisterLiteral(lit string) (int, error) {
	return strconv.Atoi(strings.TrimPrefix(lit, "$"))
}

// Diagnostics returns the diagnostics accumulated while parsing.
func (p *Parser) Diagnostics() *diag.Diagnostics {
	return p.diags
}
