package output

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/vegasq/pqcat/reader"
	"github.com/vegasq/pqcat/record"
)

// CSVFormatter renders rows as flat-tabular CSV: one header line of
// top-level field names in schema order, then one line per row.
// encoding/csv applies the standard escaping convention (fields holding
// a separator, quote, or line break are quoted with internal quotes
// doubled). Null renders as an empty field; nested list, map, and
// struct values render as the JSON encoding of just the sub-value, so
// the column count stays fixed per schema.
type CSVFormatter struct {
	w *csv.Writer
}

// NewCSVFormatter creates a CSV formatter writing to w.
func NewCSVFormatter(w io.Writer) *CSVFormatter {
	return &CSVFormatter{w: csv.NewWriter(w)}
}

// FormatHeader writes the header line of top-level field names.
func (c *CSVFormatter) FormatHeader(schema *reader.Node) error {
	names := make([]string, len(schema.Children))
	for i, f := range schema.Children {
		names[i] = f.Name
	}
	if err := c.w.Write(names); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	c.w.Flush()
	return c.w.Error()
}

// FormatRow writes one row. The row is flushed before returning so a
// broken sink surfaces at the failing row, not at the footer.
func (c *CSVFormatter) FormatRow(schema *reader.Node, row record.Value) error {
	if row.Kind != record.KindStruct {
		return &FormatError{Msg: fmt.Sprintf("row is not a struct value (kind %d)", row.Kind)}
	}
	fields := make([]string, len(row.Fields))
	for i, f := range row.Fields {
		s, err := f.Value.Text()
		if err != nil {
			return &FormatError{Msg: fmt.Sprintf("field %q: %v", f.Name, err)}
		}
		fields[i] = s
	}
	if err := c.w.Write(fields); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	c.w.Flush()
	return c.w.Error()
}

// FormatFooter flushes any buffered output.
func (c *CSVFormatter) FormatFooter(schema *reader.Node) error {
	c.w.Flush()
	return c.w.Error()
}
