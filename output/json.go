package output

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/vegasq/pqcat/reader"
	"github.com/vegasq/pqcat/record"
)

// JSONFormatter renders rows as JSON Lines: one self-describing JSON
// object per row, each line independently parseable. Null renders as
// the JSON null literal, nested values as native arrays and objects,
// and decimals as strings carrying their exact digits. There is no
// header and the footer is empty.
type JSONFormatter struct {
	enc *json.Encoder
}

// NewJSONFormatter creates a JSON Lines formatter writing to w.
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{enc: json.NewEncoder(w)}
}

// FormatHeader is a no-op; each row describes itself.
func (j *JSONFormatter) FormatHeader(schema *reader.Node) error {
	return nil
}

// FormatRow writes one row as a JSON object followed by a newline.
func (j *JSONFormatter) FormatRow(schema *reader.Node, row record.Value) error {
	if row.Kind != record.KindStruct {
		return &FormatError{Msg: "row is not a struct value"}
	}
	if err := j.enc.Encode(row); err != nil {
		var merr *json.MarshalerError
		if errors.As(err, &merr) {
			return &FormatError{Msg: merr.Error()}
		}
		return err
	}
	return nil
}

// FormatFooter is a no-op.
func (j *JSONFormatter) FormatFooter(schema *reader.Node) error {
	return nil
}
