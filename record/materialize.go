package record

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"github.com/vegasq/pqcat/reader"
)

// MaterializationError reports a row that could not be assembled from
// the column streams: a column ran short or long relative to the rest
// of the row, or a decoded physical value is incompatible with its
// declared logical type.
type MaterializationError struct {
	Row int64
	Msg string
}

func (e *MaterializationError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Msg)
}

// RowSource is the decoded-value stream contract of the underlying
// columnar reader. Each physical row is a flat sequence of leaf values
// carrying column index, definition level, and repetition level.
// *parquet.Reader and parquet.Rows both satisfy it.
type RowSource interface {
	ReadRows([]parquet.Row) (int, error)
}

// Materializer reconstructs logical rows from a RowSource, guided by
// the schema tree. The sequence is lazy, forward-only, and
// non-restartable: each row is produced exactly once, and no rows are
// buffered beyond the one in flight.
type Materializer struct {
	src      RowSource
	schema   *reader.Node
	limit    int64 // negative: unlimited
	produced int64
	numCols  int
	buf      []parquet.Row
	done     bool
}

// NewMaterializer wraps src. At most limit rows are produced when limit
// is non-negative; the source is never read past the limit, so a head
// operation does not drain the file.
func NewMaterializer(src RowSource, schema *reader.Node, limit int64) *Materializer {
	return &Materializer{
		src:     src,
		schema:  schema,
		limit:   limit,
		numCols: countLeaves(schema),
		buf:     make([]parquet.Row, 1),
	}
}

// Produced returns the number of rows produced so far.
func (m *Materializer) Produced() int64 {
	return m.produced
}

// Next returns the next logical row as a struct value shaped like the
// schema root, or io.EOF when the sequence ends. Any other error is
// terminal: the sequence cannot continue past it.
func (m *Materializer) Next() (Value, error) {
	if m.done || (m.limit >= 0 && m.produced >= m.limit) {
		m.done = true
		return Value{}, io.EOF
	}

	m.buf[0] = m.buf[0][:0]
	n, err := m.src.ReadRows(m.buf)
	eof := errors.Is(err, io.EOF)
	if err != nil && !eof {
		m.done = true
		return Value{}, fmt.Errorf("row %d: %w", m.produced+1, err)
	}
	if n == 0 {
		m.done = true
		return Value{}, io.EOF
	}
	if eof {
		m.done = true
	}

	row, err := m.assemble(m.buf[0])
	if err != nil {
		m.done = true
		return Value{}, err
	}
	m.produced++
	return row, nil
}

// assemble reconstructs one logical row from its flat leaf values.
func (m *Materializer) assemble(row parquet.Row) (Value, error) {
	cols := make([][]parquet.Value, m.numCols)
	for _, v := range row {
		c := v.Column()
		if c < 0 || c >= m.numCols {
			return Value{}, m.errf("value for unknown column %d", c)
		}
		cols[c] = append(cols[c], v)
	}

	cur := &cursor{cols: cols, pos: make([]int, m.numCols)}
	val, err := m.assembleNode(m.schema, cur)
	if err != nil {
		return Value{}, err
	}
	for i := range cols {
		if cur.pos[i] != len(cols[i]) {
			return Value{}, m.errf("column %d: %d of %d values consumed (column length mismatch)",
				i, cur.pos[i], len(cols[i]))
		}
	}
	return val, nil
}

func (m *Materializer) errf(format string, args ...any) error {
	return &MaterializationError{Row: m.produced + 1, Msg: fmt.Sprintf(format, args...)}
}

// cursor tracks per-leaf-column read positions within one physical row.
type cursor struct {
	cols [][]parquet.Value
	pos  []int
}

func (c *cursor) peek(col int) (parquet.Value, bool) {
	if c.pos[col] >= len(c.cols[col]) {
		return parquet.Value{}, false
	}
	return c.cols[col][c.pos[col]], true
}

func (c *cursor) next(col int) (parquet.Value, bool) {
	v, ok := c.peek(col)
	if ok {
		c.pos[col]++
	}
	return v, ok
}

func (m *Materializer) assembleNode(n *reader.Node, cur *cursor) (Value, error) {
	switch n.Type.Kind {
	case reader.Struct:
		return m.assembleStruct(n, cur)
	case reader.List, reader.Map:
		return m.assembleRepeated(n, cur)
	default:
		return m.assembleLeaf(n, cur)
	}
}

// assembleStruct builds a struct value. Presence is decided before any
// child is visited: a definition level below the node's own level means
// the struct is null at this depth, so descendant columns only give up
// their single padding value and are never decoded into fields.
func (m *Materializer) assembleStruct(n *reader.Node, cur *cursor) (Value, error) {
	if n.Nullable {
		v, ok := cur.peek(firstLeaf(n).Column)
		if !ok {
			return Value{}, m.errf("column stream ended inside struct %q", n.Name)
		}
		if v.DefinitionLevel() < n.DefLevel {
			if err := m.skipOne(n, cur); err != nil {
				return Value{}, err
			}
			return Value{Kind: KindNull}, nil
		}
	}

	fields := make([]StructField, 0, len(n.Children))
	for _, c := range n.Children {
		fv, err := m.assembleNode(c, cur)
		if err != nil {
			return Value{}, err
		}
		fields = append(fields, StructField{Name: c.Name, Value: fv})
	}
	return Value{Kind: KindStruct, Fields: fields}, nil
}

// assembleRepeated builds a list or map value. The element repetition
// level is one above the node's own; elements continue while the lead
// leaf's next value repeats at exactly that level.
func (m *Materializer) assembleRepeated(n *reader.Node, cur *cursor) (Value, error) {
	lead := firstLeaf(n)
	v, ok := cur.peek(lead.Column)
	if !ok {
		return Value{}, m.errf("column stream ended inside %q", n.Name)
	}

	def := v.DefinitionLevel()
	if def < n.DefLevel {
		if !n.Nullable {
			return Value{}, m.errf("%q: definition level %d below required level %d", n.Name, def, n.DefLevel)
		}
		if err := m.skipOne(n, cur); err != nil {
			return Value{}, err
		}
		return Value{Kind: KindNull}, nil
	}
	if def == n.DefLevel {
		// Defined but empty.
		if err := m.skipOne(n, cur); err != nil {
			return Value{}, err
		}
		if n.Type.Kind == reader.Map {
			return Value{Kind: KindMap, Entries: []MapEntry{}}, nil
		}
		return Value{Kind: KindList, Elems: []Value{}}, nil
	}

	elemRep := n.RepLevel + 1
	isMap := n.Type.Kind == reader.Map

	var elems []Value
	var entries []MapEntry
	for {
		if isMap {
			key, err := m.assembleNode(n.Children[0], cur)
			if err != nil {
				return Value{}, err
			}
			val, err := m.assembleNode(n.Children[1], cur)
			if err != nil {
				return Value{}, err
			}
			entries = append(entries, MapEntry{Key: key, Value: val})
		} else {
			e, err := m.assembleNode(n.Children[0], cur)
			if err != nil {
				return Value{}, err
			}
			elems = append(elems, e)
		}

		nv, ok := cur.peek(lead.Column)
		if !ok || nv.RepetitionLevel() < elemRep {
			break
		}
		if nv.RepetitionLevel() > elemRep {
			return Value{}, m.errf("%q: unexpected repetition level %d", n.Name, nv.RepetitionLevel())
		}
	}

	if isMap {
		return Value{Kind: KindMap, Entries: entries}, nil
	}
	return Value{Kind: KindList, Elems: elems}, nil
}

func (m *Materializer) assembleLeaf(n *reader.Node, cur *cursor) (Value, error) {
	v, ok := cur.next(n.Column)
	if !ok {
		return Value{}, m.errf("column stream for %q ended before the row was complete", n.Name)
	}
	if v.IsNull() || v.DefinitionLevel() < n.DefLevel {
		return Value{Kind: KindNull}, nil
	}
	val, err := convertLeaf(n, v)
	if err != nil {
		return Value{}, m.errf("%s", err)
	}
	return val, nil
}

// skipOne consumes the single padding value each leaf column under n
// carries for a null or empty composite.
func (m *Materializer) skipOne(n *reader.Node, cur *cursor) error {
	if n.Leaf() {
		if _, ok := cur.next(n.Column); !ok {
			return m.errf("column stream for %q ended before the row was complete", n.Name)
		}
		return nil
	}
	for _, c := range n.Children {
		if err := m.skipOne(c, cur); err != nil {
			return err
		}
	}
	return nil
}

func firstLeaf(n *reader.Node) *reader.Node {
	for !n.Leaf() {
		n = n.Children[0]
	}
	return n
}

func countLeaves(n *reader.Node) int {
	if n.Leaf() {
		return 1
	}
	total := 0
	for _, c := range n.Children {
		total += countLeaves(c)
	}
	return total
}

var epochDate = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// convertLeaf turns one decoded physical value into its logical Value.
// The physical kind must agree with the declared logical type.
func convertLeaf(n *reader.Node, v parquet.Value) (Value, error) {
	t := n.Type
	switch t.Kind {
	case reader.Bool:
		if v.Kind() != parquet.Boolean {
			return Value{}, typeMismatch(n, v)
		}
		return Value{Kind: KindBool, Bool: v.Boolean()}, nil

	case reader.Int:
		switch v.Kind() {
		case parquet.Int32:
			if t.Signed {
				return Value{Kind: KindInt, Int: int64(v.Int32())}, nil
			}
			return Value{Kind: KindInt, Int: int64(uint32(v.Int32()))}, nil
		case parquet.Int64:
			return Value{Kind: KindInt, Int: v.Int64(), Unsigned: !t.Signed && t.Bits == 64}, nil
		default:
			return Value{}, typeMismatch(n, v)
		}

	case reader.Float:
		switch v.Kind() {
		case parquet.Float:
			return Value{Kind: KindFloat, Float: float64(v.Float())}, nil
		case parquet.Double:
			return Value{Kind: KindFloat, Float: v.Double()}, nil
		default:
			return Value{}, typeMismatch(n, v)
		}

	case reader.Decimal:
		scale := int32(t.Scale)
		switch v.Kind() {
		case parquet.Int32:
			return Value{Kind: KindDecimal, Dec: decimal.New(int64(v.Int32()), -scale)}, nil
		case parquet.Int64:
			return Value{Kind: KindDecimal, Dec: decimal.New(v.Int64(), -scale)}, nil
		case parquet.ByteArray, parquet.FixedLenByteArray:
			unscaled := twosComplement(v.ByteArray())
			return Value{Kind: KindDecimal, Dec: decimal.NewFromBigInt(unscaled, -scale)}, nil
		default:
			return Value{}, typeMismatch(n, v)
		}

	case reader.String:
		if t.IsUUID {
			u, err := uuid.FromBytes(v.ByteArray())
			if err != nil {
				return Value{}, fmt.Errorf("column %q: %v", n.Name, err)
			}
			return Value{Kind: KindString, Str: u.String()}, nil
		}
		switch v.Kind() {
		case parquet.ByteArray, parquet.FixedLenByteArray:
			return Value{Kind: KindString, Str: string(v.ByteArray())}, nil
		case parquet.Int96:
			return Value{Kind: KindString, Str: v.String()}, nil
		default:
			return Value{}, typeMismatch(n, v)
		}

	case reader.Binary:
		switch v.Kind() {
		case parquet.ByteArray, parquet.FixedLenByteArray:
			return Value{Kind: KindBytes, Bytes: append([]byte(nil), v.ByteArray()...)}, nil
		default:
			return Value{}, typeMismatch(n, v)
		}

	case reader.Date:
		if v.Kind() != parquet.Int32 {
			return Value{}, typeMismatch(n, v)
		}
		return Value{Kind: KindDate, TS: epochDate.AddDate(0, 0, int(v.Int32()))}, nil

	case reader.Time:
		switch t.Unit {
		case reader.Millis:
			if v.Kind() != parquet.Int32 {
				return Value{}, typeMismatch(n, v)
			}
			return Value{Kind: KindTime, Nanos: int64(v.Int32()) * int64(time.Millisecond)}, nil
		case reader.Micros:
			if v.Kind() != parquet.Int64 {
				return Value{}, typeMismatch(n, v)
			}
			return Value{Kind: KindTime, Nanos: v.Int64() * int64(time.Microsecond)}, nil
		default:
			if v.Kind() != parquet.Int64 {
				return Value{}, typeMismatch(n, v)
			}
			return Value{Kind: KindTime, Nanos: v.Int64()}, nil
		}

	case reader.Timestamp:
		if v.Kind() != parquet.Int64 {
			return Value{}, typeMismatch(n, v)
		}
		var ts time.Time
		switch t.Unit {
		case reader.Millis:
			ts = time.UnixMilli(v.Int64()).UTC()
		case reader.Micros:
			ts = time.UnixMicro(v.Int64()).UTC()
		default:
			ts = time.Unix(0, v.Int64()).UTC()
		}
		return Value{Kind: KindTimestamp, TS: ts, UTC: t.UTC}, nil

	default:
		return Value{}, fmt.Errorf("column %q: no conversion for logical type %s", n.Name, t)
	}
}

func typeMismatch(n *reader.Node, v parquet.Value) error {
	return fmt.Errorf("column %q: physical type %v incompatible with logical type %s", n.Name, v.Kind(), n.Type)
}

// twosComplement decodes a big-endian two's-complement integer, the wire
// form of byte-array decimals.
func twosComplement(b []byte) *big.Int {
	i := new(big.Int).SetBytes(b)
	if len(b) > 0 && b[0]&0x80 != 0 {
		i.Sub(i, new(big.Int).Lsh(big.NewInt(1), uint(len(b)*8)))
	}
	return i
}
