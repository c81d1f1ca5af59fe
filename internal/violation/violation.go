// Package violation defines the violation taxonomy and the bounded aggregator
// that collects rule failures during a validation run.
package violation

import "fmt"

// Kind tags a violation with the rule family that produced it.
type Kind string

const (
	KindSchema     Kind = "SchemaError"
	KindType       Kind = "TypeError"
	KindNull       Kind = "NullError"
	KindEnum       Kind = "EnumError"
	KindRange      Kind = "RangeError"
	KindDuplicate  Kind = "DuplicateError"
	KindCorruption Kind = "CorruptionError"
)

// Severity distinguishes exit-code-relevant errors from advisory warnings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Violation is a single recorded rule failure. Immutable once created.
type Violation struct {
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	Column   string   `json:"column,omitempty"`
	RowIndex *int64   `json:"row_index,omitempty"`
	Message  string   `json:"message"`
}

// New creates an error-severity violation without a row index (whole-file or
// whole-column findings).
func New(kind Kind, column, message string) Violation {
	return Violation{Kind: kind, Severity: SeverityError, Column: column, Message: message}
}

// NewAt creates an error-severity violation tagged with a 1-based data row
// index (header rows are not counted).
func NewAt(kind Kind, column string, row int64, message string) Violation {
	return Violation{Kind: kind, Severity: SeverityError, Column: column, RowIndex: &row, Message: message}
}

// NewWarning creates a warning-severity violation. Warnings are reported but
// never influence the exit code.
func NewWarning(kind Kind, column, message string) Violation {
	return Violation{Kind: kind, Severity: SeverityWarning, Column: column, Message: message}
}

func (v Violation) String() string {
	if v.RowIndex != nil {
		return fmt.Sprintf("%s(%s@%d): %s", v.Kind, v.Column, *v.RowIndex, v.Message)
	}
	if v.Column != "" {
		return fmt.Sprintf("%s(%s): %s", v.Kind, v.Column, v.Message)
	}
	return fmt.Sprintf("%s: %s", v.Kind, v.Message)
}
