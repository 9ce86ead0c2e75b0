package record

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"github.com/vegasq/pqcat/reader"
)

type basicRow struct {
	ID     int64   `parquet:"id"`
	Name   string  `parquet:"name"`
	Score  float64 `parquet:"score"`
	Active bool    `parquet:"active"`
}

type metaGroup struct {
	K string `parquet:"k"`
	V int64  `parquet:"v"`
}

type nestedRow struct {
	ID   int64      `parquet:"id"`
	Tags []string   `parquet:"tags,list"`
	Meta *metaGroup `parquet:"meta,optional"`
}

func writeParquet[T any](t *testing.T, rows []T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.parquet")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	defer func() { _ = f.Close() }()

	writer := parquet.NewGenericWriter[T](f)
	if _, err := writer.Write(rows); err != nil {
		t.Fatalf("failed to write test data: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	return path
}

// openMaterializer opens path and returns a materializer over it. The
// cleanup closes the underlying readers.
func openMaterializer(t *testing.T, path string, limit int64) *Materializer {
	t.Helper()

	r, err := reader.NewReader(path)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })

	root, err := reader.BuildSchema(r.Schema())
	if err != nil {
		t.Fatalf("BuildSchema() error = %v", err)
	}

	rows := r.Rows()
	t.Cleanup(func() { _ = rows.Close() })

	return NewMaterializer(rows, root, limit)
}

func collectRows(t *testing.T, m *Materializer) []Value {
	t.Helper()
	var out []Value
	for {
		row, err := m.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		out = append(out, row)
	}
}

func fieldByName(t *testing.T, row Value, name string) Value {
	t.Helper()
	if row.Kind != KindStruct {
		t.Fatalf("row kind = %v, want struct", row.Kind)
	}
	for _, f := range row.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	t.Fatalf("field %q not found", name)
	return Value{}
}

func TestMaterializer_Scalars(t *testing.T) {
	path := writeParquet(t, []basicRow{
		{ID: 1, Name: "alice", Score: 95.5, Active: true},
		{ID: 2, Name: "bob", Score: 80, Active: false},
		{ID: 3, Name: "carol", Score: 61.25, Active: true},
	})

	m := openMaterializer(t, path, -1)
	rows := collectRows(t, m)

	if len(rows) != 3 {
		t.Fatalf("materialized %d rows, want 3", len(rows))
	}

	first := rows[0]
	if got := fieldByName(t, first, "id"); got.Kind != KindInt || got.Int != 1 {
		t.Errorf("id = %+v, want Int 1", got)
	}
	if got := fieldByName(t, first, "name"); got.Kind != KindString || got.Str != "alice" {
		t.Errorf("name = %+v, want String alice", got)
	}
	if got := fieldByName(t, first, "score"); got.Kind != KindFloat || got.Float != 95.5 {
		t.Errorf("score = %+v, want Float 95.5", got)
	}
	if got := fieldByName(t, rows[1], "active"); got.Kind != KindBool || got.Bool {
		t.Errorf("active = %+v, want Bool false", got)
	}

	// The sequence is exhausted and stays exhausted.
	if _, err := m.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() after end = %v, want io.EOF", err)
	}
	if _, err := m.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("repeated Next() after end = %v, want io.EOF", err)
	}
}

func TestMaterializer_Limit(t *testing.T) {
	rows := []basicRow{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}}
	path := writeParquet(t, rows)

	tests := []struct {
		name  string
		limit int64
		want  int
	}{
		{"zero", 0, 0},
		{"below total", 2, 2},
		{"exact total", 5, 5},
		{"above total", 100, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := openMaterializer(t, path, tt.limit)
			got := collectRows(t, m)
			if len(got) != tt.want {
				t.Errorf("materialized %d rows, want %d", len(got), tt.want)
			}
			for i, row := range got {
				if id := fieldByName(t, row, "id"); id.Int != int64(i+1) {
					t.Errorf("row %d id = %d, want %d", i, id.Int, i+1)
				}
			}
		})
	}
}

func TestMaterializer_OptionalScalarNull(t *testing.T) {
	type row struct {
		ID   int64   `parquet:"id"`
		Note *string `parquet:"note,optional"`
	}
	note := "hi"
	path := writeParquet(t, []row{
		{ID: 1, Note: &note},
		{ID: 2, Note: nil},
	})

	m := openMaterializer(t, path, -1)
	rows := collectRows(t, m)
	if len(rows) != 2 {
		t.Fatalf("materialized %d rows, want 2", len(rows))
	}

	if got := fieldByName(t, rows[0], "note"); got.Kind != KindString || got.Str != "hi" {
		t.Errorf("row 1 note = %+v, want String hi", got)
	}
	if got := fieldByName(t, rows[1], "note"); got.Kind != KindNull {
		t.Errorf("row 2 note kind = %v, want Null", got.Kind)
	}
}

func TestMaterializer_NullStructShortCircuits(t *testing.T) {
	path := writeParquet(t, []nestedRow{
		{ID: 1, Tags: []string{"a", "b"}, Meta: &metaGroup{K: "k1", V: 10}},
		{ID: 2, Tags: []string{"c"}, Meta: nil},
		{ID: 3, Tags: []string{}, Meta: &metaGroup{K: "k3", V: 30}},
	})

	m := openMaterializer(t, path, -1)
	rows := collectRows(t, m)
	if len(rows) != 3 {
		t.Fatalf("materialized %d rows, want 3", len(rows))
	}

	meta1 := fieldByName(t, rows[0], "meta")
	if meta1.Kind != KindStruct || len(meta1.Fields) != 2 {
		t.Fatalf("row 1 meta = %+v, want struct with 2 fields", meta1)
	}
	if k := fieldByName(t, meta1, "k"); k.Str != "k1" {
		t.Errorf("row 1 meta.k = %q, want k1", k.Str)
	}

	// A null struct is a single Null, not a struct of nulls.
	meta2 := fieldByName(t, rows[1], "meta")
	if meta2.Kind != KindNull {
		t.Errorf("row 2 meta kind = %v, want Null", meta2.Kind)
	}
	if len(meta2.Fields) != 0 {
		t.Errorf("row 2 meta has %d fields, want none", len(meta2.Fields))
	}

	meta3 := fieldByName(t, rows[2], "meta")
	if meta3.Kind != KindStruct {
		t.Errorf("row 3 meta kind = %v, want Struct", meta3.Kind)
	}
}

func TestMaterializer_Lists(t *testing.T) {
	path := writeParquet(t, []nestedRow{
		{ID: 1, Tags: []string{"a", "b", "c"}, Meta: &metaGroup{}},
		{ID: 2, Tags: []string{}, Meta: &metaGroup{}},
		{ID: 3, Tags: []string{"solo"}, Meta: &metaGroup{}},
	})

	m := openMaterializer(t, path, -1)
	rows := collectRows(t, m)
	if len(rows) != 3 {
		t.Fatalf("materialized %d rows, want 3", len(rows))
	}

	tags1 := fieldByName(t, rows[0], "tags")
	if tags1.Kind != KindList || len(tags1.Elems) != 3 {
		t.Fatalf("row 1 tags = %+v, want list of 3", tags1)
	}
	for i, want := range []string{"a", "b", "c"} {
		if got := tags1.Elems[i]; got.Kind != KindString || got.Str != want {
			t.Errorf("row 1 tags[%d] = %+v, want %q", i, got, want)
		}
	}

	tags2 := fieldByName(t, rows[1], "tags")
	if tags2.Kind != KindList {
		t.Fatalf("row 2 tags kind = %v, want List", tags2.Kind)
	}
	if len(tags2.Elems) != 0 {
		t.Errorf("row 2 tags has %d elements, want 0", len(tags2.Elems))
	}

	tags3 := fieldByName(t, rows[2], "tags")
	if len(tags3.Elems) != 1 || tags3.Elems[0].Str != "solo" {
		t.Errorf("row 3 tags = %+v, want [solo]", tags3)
	}
}

func TestMaterializer_Map(t *testing.T) {
	type row struct {
		ID    int64            `parquet:"id"`
		Attrs map[string]int64 `parquet:"attrs"`
	}
	path := writeParquet(t, []row{
		{ID: 1, Attrs: map[string]int64{"x": 10, "y": 20}},
	})

	m := openMaterializer(t, path, -1)
	rows := collectRows(t, m)
	if len(rows) != 1 {
		t.Fatalf("materialized %d rows, want 1", len(rows))
	}

	attrs := fieldByName(t, rows[0], "attrs")
	if attrs.Kind != KindMap {
		t.Fatalf("attrs kind = %v, want Map", attrs.Kind)
	}
	if len(attrs.Entries) != 2 {
		t.Fatalf("attrs has %d entries, want 2", len(attrs.Entries))
	}

	got := map[string]int64{}
	for _, e := range attrs.Entries {
		if e.Key.Kind != KindString || e.Value.Kind != KindInt {
			t.Fatalf("entry kinds = (%v, %v), want (String, Int)", e.Key.Kind, e.Value.Kind)
		}
		got[e.Key.Str] = e.Value.Int
	}
	if got["x"] != 10 || got["y"] != 20 {
		t.Errorf("attrs = %v, want map[x:10 y:20]", got)
	}
}

func TestMaterializer_ListOfStructs(t *testing.T) {
	type point struct {
		X int64 `parquet:"x"`
		Y int64 `parquet:"y"`
	}
	type row struct {
		ID     int64   `parquet:"id"`
		Points []point `parquet:"points,list"`
	}
	path := writeParquet(t, []row{
		{ID: 1, Points: []point{{X: 1, Y: 2}, {X: 3, Y: 4}}},
		{ID: 2, Points: []point{}},
	})

	m := openMaterializer(t, path, -1)
	rows := collectRows(t, m)
	if len(rows) != 2 {
		t.Fatalf("materialized %d rows, want 2", len(rows))
	}

	points := fieldByName(t, rows[0], "points")
	if points.Kind != KindList || len(points.Elems) != 2 {
		t.Fatalf("points = %+v, want list of 2", points)
	}
	second := points.Elems[1]
	if second.Kind != KindStruct {
		t.Fatalf("points[1] kind = %v, want Struct", second.Kind)
	}
	if x := fieldByName(t, second, "x"); x.Int != 3 {
		t.Errorf("points[1].x = %d, want 3", x.Int)
	}
	if y := fieldByName(t, second, "y"); y.Int != 4 {
		t.Errorf("points[1].y = %d, want 4", y.Int)
	}

	empty := fieldByName(t, rows[1], "points")
	if empty.Kind != KindList || len(empty.Elems) != 0 {
		t.Errorf("row 2 points = %+v, want empty list", empty)
	}
}

// stubSource feeds pre-built physical rows, for corrupt-stream shapes a
// real file cannot produce.
type stubSource struct {
	rows []parquet.Row
}

func (s *stubSource) ReadRows(rows []parquet.Row) (int, error) {
	if len(s.rows) == 0 {
		return 0, io.EOF
	}
	rows[0] = s.rows[0]
	s.rows = s.rows[1:]
	return 1, nil
}

func twoColumnSchema() *reader.Node {
	return &reader.Node{
		Name:   "root",
		Type:   reader.LogicalType{Kind: reader.Struct},
		Column: -1,
		Children: []*reader.Node{
			{Name: "a", Type: reader.LogicalType{Kind: reader.Int, Bits: 64, Signed: true}, Column: 0},
			{Name: "b", Type: reader.LogicalType{Kind: reader.Int, Bits: 64, Signed: true}, Column: 1},
		},
	}
}

func TestMaterializer_ColumnLengthMismatch(t *testing.T) {
	tests := []struct {
		name string
		row  parquet.Row
	}{
		{
			"leftover values",
			parquet.Row{
				parquet.ValueOf(int64(1)).Level(0, 0, 0),
				parquet.ValueOf(int64(2)).Level(0, 0, 1),
				parquet.ValueOf(int64(3)).Level(0, 0, 1),
			},
		},
		{
			"column ends early",
			parquet.Row{
				parquet.ValueOf(int64(1)).Level(0, 0, 0),
			},
		},
		{
			"value for unknown column",
			parquet.Row{
				parquet.ValueOf(int64(1)).Level(0, 0, 0),
				parquet.ValueOf(int64(2)).Level(0, 0, 5),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &stubSource{rows: []parquet.Row{tt.row}}
			m := NewMaterializer(src, twoColumnSchema(), -1)

			_, err := m.Next()
			var merr *MaterializationError
			if !errors.As(err, &merr) {
				t.Fatalf("Next() error = %v, want *MaterializationError", err)
			}
			if merr.Row != 1 {
				t.Errorf("error row = %d, want 1", merr.Row)
			}
		})
	}
}

func leafNode(t reader.LogicalType) *reader.Node {
	return &reader.Node{Name: "col", Type: t, DefLevel: 0, RepLevel: 0}
}

func TestConvertLeaf_Decimal(t *testing.T) {
	tests := []struct {
		name string
		v    parquet.Value
		lt   reader.LogicalType
		want decimal.Decimal
	}{
		{
			"int32 backed",
			parquet.ValueOf(int32(1230)),
			reader.LogicalType{Kind: reader.Decimal, Precision: 9, Scale: 2},
			decimal.New(1230, -2),
		},
		{
			"int64 backed",
			parquet.ValueOf(int64(-99999)),
			reader.LogicalType{Kind: reader.Decimal, Precision: 18, Scale: 4},
			decimal.New(-99999, -4),
		},
		{
			"byte array positive",
			parquet.ValueOf([]byte{0x04, 0xd2}),
			reader.LogicalType{Kind: reader.Decimal, Precision: 10, Scale: 1},
			decimal.New(1234, -1),
		},
		{
			"byte array negative two's complement",
			parquet.ValueOf([]byte{0xfb, 0x2e}),
			reader.LogicalType{Kind: reader.Decimal, Precision: 10, Scale: 1},
			decimal.New(-1234, -1),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convertLeaf(leafNode(tt.lt), tt.v)
			if err != nil {
				t.Fatalf("convertLeaf() error = %v", err)
			}
			if got.Kind != KindDecimal {
				t.Fatalf("kind = %v, want Decimal", got.Kind)
			}
			if !got.Dec.Equal(tt.want) {
				t.Errorf("decimal = %s, want %s", got.Dec, tt.want)
			}
		})
	}
}

func TestConvertLeaf_Temporal(t *testing.T) {
	date, err := convertLeaf(leafNode(reader.LogicalType{Kind: reader.Date}), parquet.ValueOf(int32(19800)))
	if err != nil {
		t.Fatalf("convertLeaf(date) error = %v", err)
	}
	if want := time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC); !date.TS.Equal(want) {
		t.Errorf("date = %v, want %v", date.TS, want)
	}

	ts, err := convertLeaf(
		leafNode(reader.LogicalType{Kind: reader.Timestamp, Unit: reader.Micros, UTC: true}),
		parquet.ValueOf(int64(1710766800000000)),
	)
	if err != nil {
		t.Fatalf("convertLeaf(timestamp) error = %v", err)
	}
	if want := time.Date(2024, 3, 18, 13, 0, 0, 0, time.UTC); !ts.TS.Equal(want) {
		t.Errorf("timestamp = %v, want %v", ts.TS, want)
	}

	tod, err := convertLeaf(
		leafNode(reader.LogicalType{Kind: reader.Time, Unit: reader.Millis}),
		parquet.ValueOf(int32(1500)),
	)
	if err != nil {
		t.Fatalf("convertLeaf(time) error = %v", err)
	}
	if tod.Nanos != int64(1500*time.Millisecond) {
		t.Errorf("time nanos = %d, want %d", tod.Nanos, int64(1500*time.Millisecond))
	}
}

func TestConvertLeaf_UUID(t *testing.T) {
	raw := []byte{
		0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0,
		0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0,
	}
	got, err := convertLeaf(leafNode(reader.LogicalType{Kind: reader.String, IsUUID: true}), parquet.ValueOf(raw))
	if err != nil {
		t.Fatalf("convertLeaf(uuid) error = %v", err)
	}
	if want := "12345678-9abc-def0-1234-56789abcdef0"; got.Str != want {
		t.Errorf("uuid = %q, want %q", got.Str, want)
	}
}

func TestConvertLeaf_Unsigned(t *testing.T) {
	got, err := convertLeaf(
		leafNode(reader.LogicalType{Kind: reader.Int, Bits: 32, Signed: false}),
		parquet.ValueOf(int32(-1)),
	)
	if err != nil {
		t.Fatalf("convertLeaf() error = %v", err)
	}
	if got.Int != int64(^uint32(0)) {
		t.Errorf("uint32 value = %d, want %d", got.Int, int64(^uint32(0)))
	}

	got64, err := convertLeaf(
		leafNode(reader.LogicalType{Kind: reader.Int, Bits: 64, Signed: false}),
		parquet.ValueOf(int64(-1)),
	)
	if err != nil {
		t.Fatalf("convertLeaf() error = %v", err)
	}
	if !got64.Unsigned {
		t.Error("uint64 value should carry the Unsigned flag")
	}
	if text, _ := got64.Text(); text != "18446744073709551615" {
		t.Errorf("uint64 text = %q, want max uint64", text)
	}
}

func TestConvertLeaf_TypeMismatch(t *testing.T) {
	_, err := convertLeaf(leafNode(reader.LogicalType{Kind: reader.Bool}), parquet.ValueOf(int64(1)))
	if err == nil {
		t.Error("convertLeaf() should reject an int value for a boolean column")
	}
}
