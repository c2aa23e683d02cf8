// Package diag collects and renders compile- and analysis-time diagnostics.
package diag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sn-x/snx-sim/token"
)

// Severity classifies a diagnostic.
type Severity int

const (
	Error Severity = iota
	Warning
	Info
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	default:
		return "unknown"
	}
}

// Well-known diagnostic codes named by the spec; all others are internal
// syntax/semantic codes assigned ad hoc by the emitting pass.
const (
	CodeAbsAddrOOB     = "M001" // absolute LD/ST address >= mem_size
	CodeImmTruncated   = "I001" // immediate outside [-128,127]
	CodeBranchOverflow = "B001" // branch target PC >= 1024

	CodeSyntax           = "SYN"
	CodeUnknownMnemonic  = "UNKNOWN_MNEMONIC"
	CodeBadOperand       = "BAD_OPERAND"
	CodeBadRegister      = "BAD_REGISTER"
	CodeDuplicateLabel   = "DUP_LABEL"
	CodeUndefinedLabel   = "UNDEF_LABEL"
	CodeUnreachable      = "UNREACHABLE"
	CodeInfiniteLoop     = "INFINITE_LOOP"
	CodeUninitRead       = "UNINIT_READ"
	CodeInvalidReturn    = "INVALID_RETURN"
)

// Diagnostic is a single typed, positioned message.
type Diagnostic struct {
	Severity Severity
	Code     string
	Pos      token.Position
	Message  string
}

func (d *Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s [%s]", d.Pos, d.Severity, d.Message, d.Code)
}

// Diagnostics accumulates diagnostics in emission order and answers the
// error/warning queries the facade needs.
type Diagnostics struct {
	items []*Diagnostic
}

// Add appends a diagnostic.
func (d *Diagnostics) Add(sev Severity, code string, pos token.Position, message string) {
	d.items = append(d.items, &Diagnostic{Severity: sev, Code: code, Pos: pos, Message: message})
}

// Addf appends a diagnostic with a formatted message.
func (d *Diagnostics) Addf(sev Severity, code string, pos token.Position, format string, args ...any) {
	d.Add(sev, code, pos, fmt.Sprintf(format, args...))
}

// All returns every diagnostic in emission order.
func (d *Diagnostics) All() []*Diagnostic {
	return d.items
}

// HasErrors reports whether any Error-severity diagnostic was recorded.
func (d *Diagnostics) HasErrors() bool {
	for _, it := range d.items {
		if it.Severity == Error {
			return true
		}
	}
	return false
}

// HasWarnings reports whether any Warning-severity diagnostic was recorded.
func (d *Diagnostics) HasWarnings() bool {
	for _, it := range d.items {
		if it.Severity == Warning {
			return true
		}
	}
	return false
}

// SortStable orders diagnostics by source position while preserving the
// relative order of diagnostics that share a position (e.g. several
// analysis findings on the same line).
func (d *Diagnostics) SortStable() {
	sort.SliceStable(d.items, func(i, j int) bool {
		a, b := d.items[i].Pos, d.items[j].Pos
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
}

// Format renders all diagnostics as line-anchored text, one per line.
func (d *Diagnostics) Format() string {
	if len(d.items) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, it := range d.items {
		sb.WriteString(it.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
