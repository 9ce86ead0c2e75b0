package output

import (
	"fmt"
	"io"

	"github.com/vegasq/pqcat/reader"
	"github.com/vegasq/pqcat/record"
)

// FormatError reports a value the active formatter has no rendering
// rule for.
type FormatError struct {
	Msg string
}

func (e *FormatError) Error() string {
	return "format: " + e.Msg
}

// Formatter renders materialized rows into one output text format.
//
// Callers invoke FormatHeader once, FormatRow once per row, and
// FormatFooter once, in that order. Formatters write directly to their
// sink so rows are never retained after their call returns.
type Formatter interface {
	FormatHeader(schema *reader.Node) error
	FormatRow(schema *reader.Node, row record.Value) error
	FormatFooter(schema *reader.Node) error
}

// New returns the formatter for the given format name writing to w.
// Supported names: "csv" and "json".
func New(format string, w io.Writer) (Formatter, error) {
	switch format {
	case "csv":
		return NewCSVFormatter(w), nil
	case "json":
		return NewJSONFormatter(w), nil
	default:
		return nil, fmt.Errorf("unsupported format %q (supported: csv, json)", format)
	}
}
