package ir

import "fmt"

// Diagnostic severity levels. Only Error blocks compilation.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Diagnostic is a compiler- or parser-produced message with an optional
// source position. A manifest author should be able to locate and fix the
// problem from Message, Line and Column alone.
type Diagnostic struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
}

// String formats the diagnostic as file-less "line:col: severity: message".
func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%d:%d: %s: %s", d.Line, d.Column, d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Severity, d.Message)
}

// Errorf builds an error-severity diagnostic at the given position.
func Errorf(line, column int, format string, args ...any) Diagnostic {
	return Diagnostic{
		Severity: SeverityError,
		Message:  fmt.Sprintf(format, args...),
		Line:     line,
		Column:   column,
	}
}

// Warnf builds a warning-severity diagnostic at the given position.
func Warnf(line, column int, format string, args ...any) Diagnostic {
	return Diagnostic{
		Severity: SeverityWarning,
		Message:  fmt.Sprintf(format, args...),
		Line:     line,
		Column:   column,
	}
}

// HasErrors reports whether any diagnostic in the list is error-severity.
// The compiler returns a nil IR exactly when this is true.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
