package summary

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnreadable    = errors.New("workbook unreadable")
	ErrSheetNotFound = errors.New("sheet not found")
	ErrMissingColumn = errors.New("required column missing")
	ErrWeekScheme    = errors.New("week identifier scheme mismatch")
	ErrInvalidValue  = errors.New("invalid cell value")
)

// SchemaError reports a spreadsheet whose shape or content does not match the
// expected schedule layout. Err is one of the sentinel errors above.
type SchemaError struct {
	File   string
	Sheet  string
	Line   int    // 1-based sheet row, 0 when not row specific
	Column string // header name, empty when not cell specific
	Value  string
	Detail string
	Err    error
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("schema error")
	if e.File != "" {
		fmt.Fprintf(&b, " in %s", e.File)
	}
	if e.Sheet != "" {
		fmt.Fprintf(&b, " sheet %q", e.Sheet)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " line %d", e.Line)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " column %s", e.Column)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if e.Value != "" {
		fmt.Fprintf(&b, " %q", e.Value)
	}
	if e.Detail != "" {
		b.WriteString(" (")
		b.WriteString(e.Detail)
		b.WriteString(")")
	}
	return b.String()
}

func (e *SchemaError) Unwrap() error { return e.Err }

// IsSchemaError reports whether err is or wraps a *SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}
