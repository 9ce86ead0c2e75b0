package reader

import (
	"fmt"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"
)

// MaxDepth bounds schema nesting. Files declaring deeper trees are
// rejected as malformed rather than risking unbounded recursion.
const MaxDepth = 64

// SchemaError reports malformed or unsupported schema metadata.
type SchemaError struct {
	Path string
	Msg  string
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return "schema: " + e.Msg
	}
	return fmt.Sprintf("schema: %s: %s", e.Path, e.Msg)
}

// Kind enumerates the logical type families pqcat understands.
type Kind int

const (
	Bool Kind = iota
	Int
	Float
	Decimal
	String
	Binary
	Date
	Time
	Timestamp
	List
	Map
	Struct
)

// TimeUnit is the precision of a Time or Timestamp column.
type TimeUnit int

const (
	Millis TimeUnit = iota
	Micros
	Nanos
)

func (u TimeUnit) String() string {
	switch u {
	case Millis:
		return "MILLIS"
	case Micros:
		return "MICROS"
	default:
		return "NANOS"
	}
}

// LogicalType describes the logical type of one schema node. The Kind
// selects the variant; the remaining fields qualify it.
type LogicalType struct {
	Kind      Kind
	Bits      int      // Int, Float: bit width
	Signed    bool     // Int
	Precision int      // Decimal
	Scale     int      // Decimal
	Unit      TimeUnit // Time, Timestamp
	UTC       bool     // Timestamp: values are adjusted to UTC
	IsUUID    bool     // String backed by a 16-byte UUID column
}

func (t LogicalType) String() string {
	switch t.Kind {
	case Bool:
		return "BOOLEAN"
	case Int:
		if t.Signed {
			return fmt.Sprintf("INT%d", t.Bits)
		}
		return fmt.Sprintf("UINT%d", t.Bits)
	case Float:
		if t.Bits == 32 {
			return "FLOAT"
		}
		return "DOUBLE"
	case Decimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", t.Precision, t.Scale)
	case String:
		if t.IsUUID {
			return "UUID"
		}
		return "STRING"
	case Binary:
		return "BINARY"
	case Date:
		return "DATE"
	case Time:
		return fmt.Sprintf("TIME(%s)", t.Unit)
	case Timestamp:
		if t.UTC {
			return fmt.Sprintf("TIMESTAMP(%s,UTC)", t.Unit)
		}
		return fmt.Sprintf("TIMESTAMP(%s)", t.Unit)
	case List:
		return "LIST"
	case Map:
		return "MAP"
	case Struct:
		return "STRUCT"
	default:
		return "UNKNOWN"
	}
}

// Node is one node of the logical schema tree. The tree is built once
// per file, immutable afterwards, and shared read-only by the
// materializer and the formatters.
//
// Composite nodes (List, Map, Struct) carry children: the element for a
// List, key then value for a Map, fields in declaration order for a
// Struct. Leaves carry the physical binding used during row assembly.
type Node struct {
	Name     string
	Type     LogicalType
	Nullable bool
	Children []*Node

	// Physical binding. Column is the leaf column index (-1 for
	// composites). DefLevel is the definition level at which the node
	// is present; RepLevel the repetition level of its values.
	Column   int
	DefLevel int
	RepLevel int
}

// Leaf reports whether n holds scalar values directly.
func (n *Node) Leaf() bool {
	switch n.Type.Kind {
	case List, Map, Struct:
		return false
	}
	return true
}

// BuildSchema converts the file's declared schema into a logical Node
// tree. It is pure and deterministic: no I/O beyond the metadata already
// held by the schema. Fails with SchemaError on unrecognized or
// malformed logical types and on nesting deeper than MaxDepth.
func BuildSchema(s *parquet.Schema) (*Node, error) {
	root := &Node{
		Name:   s.Name(),
		Type:   LogicalType{Kind: Struct},
		Column: -1,
	}
	for _, f := range s.Fields() {
		child, err := buildNode(s, f, nil, 0, 0, 1)
		if err != nil {
			return nil, err
		}
		root.Children = append(root.Children, child)
	}
	return root, nil
}

// buildNode builds the node for field f. def and rep are the parent's
// definition and repetition levels; the field's own optional/repeated
// wrappers are resolved here.
func buildNode(s *parquet.Schema, f parquet.Field, path []string, def, rep, depth int) (*Node, error) {
	if depth > MaxDepth {
		return nil, &SchemaError{Path: joinPath(path, f.Name()), Msg: fmt.Sprintf("nesting exceeds %d levels", MaxDepth)}
	}
	path = appendPath(path, f.Name())

	if f.Repeated() {
		// Bare repeated field with no LIST wrapper: a list whose
		// element is the field's own content, one definition and one
		// repetition level deeper.
		elem, err := buildContent(s, f, path, false, def+1, rep+1, depth+1)
		if err != nil {
			return nil, err
		}
		return &Node{
			Name:     f.Name(),
			Type:     LogicalType{Kind: List},
			Children: []*Node{elem},
			Column:   -1,
			DefLevel: def,
			RepLevel: rep,
		}, nil
	}

	nullable := f.Optional()
	if nullable {
		def++
	}
	return buildContent(s, f, path, nullable, def, rep, depth)
}

// buildContent builds the node for f's content, with repetition and
// optionality already resolved into def/rep by the caller.
func buildContent(s *parquet.Schema, f parquet.Field, path []string, nullable bool, def, rep, depth int) (*Node, error) {
	if f.Leaf() {
		return buildLeaf(s, f, path, nullable, def, rep)
	}

	if lt := groupLogicalType(f); lt != nil {
		switch {
		case lt.List != nil:
			return buildList(s, f, path, nullable, def, rep, depth)
		case lt.Map != nil:
			return buildMap(s, f, path, nullable, def, rep, depth)
		}
	}

	node := &Node{
		Name:     f.Name(),
		Type:     LogicalType{Kind: Struct},
		Nullable: nullable,
		Column:   -1,
		DefLevel: def,
		RepLevel: rep,
	}
	for _, c := range f.Fields() {
		child, err := buildNode(s, c, path, def, rep, depth+1)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	if len(node.Children) == 0 {
		return nil, &SchemaError{Path: joinPath(path), Msg: "group declares no fields"}
	}
	return node, nil
}

// buildList handles LIST-annotated groups, both the standard 3-level
// shape (group > repeated "list" group > element) and legacy 2-level
// shapes where the repeated node is the element itself.
func buildList(s *parquet.Schema, f parquet.Field, path []string, nullable bool, def, rep, depth int) (*Node, error) {
	kids := f.Fields()
	if len(kids) != 1 || !kids[0].Repeated() {
		return nil, &SchemaError{Path: joinPath(path), Msg: "malformed LIST group"}
	}
	repeated := kids[0]
	repPath := appendPath(path, repeated.Name())

	var elem *Node
	var err error
	if !repeated.Leaf() && len(repeated.Fields()) == 1 && repeated.Name() == "list" {
		elem, err = buildNode(s, repeated.Fields()[0], repPath, def+1, rep+1, depth+2)
	} else {
		elem, err = buildContent(s, repeated, repPath, false, def+1, rep+1, depth+1)
	}
	if err != nil {
		return nil, err
	}

	return &Node{
		Name:     f.Name(),
		Type:     LogicalType{Kind: List},
		Nullable: nullable,
		Children: []*Node{elem},
		Column:   -1,
		DefLevel: def,
		RepLevel: rep,
	}, nil
}

// buildMap handles MAP-annotated groups: group > repeated key_value
// group > (key, value).
func buildMap(s *parquet.Schema, f parquet.Field, path []string, nullable bool, def, rep, depth int) (*Node, error) {
	kids := f.Fields()
	if len(kids) != 1 || !kids[0].Repeated() || kids[0].Leaf() {
		return nil, &SchemaError{Path: joinPath(path), Msg: "malformed MAP group"}
	}
	kv := kids[0]
	kvPath := appendPath(path, kv.Name())

	var keyField, valField parquet.Field
	for _, c := range kv.Fields() {
		switch c.Name() {
		case "key":
			keyField = c
		case "value":
			valField = c
		}
	}
	if keyField == nil || valField == nil {
		return nil, &SchemaError{Path: joinPath(kvPath), Msg: "MAP key_value group lacks key or value field"}
	}

	key, err := buildNode(s, keyField, kvPath, def+1, rep+1, depth+2)
	if err != nil {
		return nil, err
	}
	val, err := buildNode(s, valField, kvPath, def+1, rep+1, depth+2)
	if err != nil {
		return nil, err
	}

	return &Node{
		Name:     f.Name(),
		Type:     LogicalType{Kind: Map},
		Nullable: nullable,
		Children: []*Node{key, val},
		Column:   -1,
		DefLevel: def,
		RepLevel: rep,
	}, nil
}

// buildLeaf resolves a leaf field's logical type and physical binding.
// The computed levels are cross-checked against the file's declared max
// levels; a mismatch means corrupt metadata.
func buildLeaf(s *parquet.Schema, f parquet.Field, path []string, nullable bool, def, rep int) (*Node, error) {
	t, err := leafType(f, path)
	if err != nil {
		return nil, err
	}

	lc, ok := s.Lookup(path...)
	if !ok {
		return nil, &SchemaError{Path: joinPath(path), Msg: "leaf column not found in file metadata"}
	}
	if lc.MaxDefinitionLevel != def || lc.MaxRepetitionLevel != rep {
		return nil, &SchemaError{
			Path: joinPath(path),
			Msg: fmt.Sprintf("declared levels (def=%d, rep=%d) disagree with structure (def=%d, rep=%d)",
				lc.MaxDefinitionLevel, lc.MaxRepetitionLevel, def, rep),
		}
	}

	return &Node{
		Name:     f.Name(),
		Type:     t,
		Nullable: nullable,
		Column:   lc.ColumnIndex,
		DefLevel: def,
		RepLevel: rep,
	}, nil
}

// leafType maps a leaf field's physical and logical parquet type onto a
// LogicalType. The logical annotation wins when present; otherwise the
// physical type decides.
func leafType(f parquet.Field, path []string) (LogicalType, error) {
	t := f.Type()
	if t == nil {
		return LogicalType{}, &SchemaError{Path: joinPath(path), Msg: "leaf field has no type"}
	}

	if lt := t.LogicalType(); lt != nil {
		switch {
		case lt.UTF8 != nil, lt.Enum != nil, lt.Json != nil:
			return LogicalType{Kind: String}, nil
		case lt.UUID != nil:
			return LogicalType{Kind: String, IsUUID: true}, nil
		case lt.Bson != nil:
			return LogicalType{Kind: Binary}, nil
		case lt.Decimal != nil:
			return LogicalType{
				Kind:      Decimal,
				Precision: int(lt.Decimal.Precision),
				Scale:     int(lt.Decimal.Scale),
			}, nil
		case lt.Date != nil:
			return LogicalType{Kind: Date}, nil
		case lt.Time != nil:
			return LogicalType{Kind: Time, Unit: timeUnit(lt.Time.Unit)}, nil
		case lt.Timestamp != nil:
			return LogicalType{
				Kind: Timestamp,
				Unit: timeUnit(lt.Timestamp.Unit),
				UTC:  lt.Timestamp.IsAdjustedToUTC,
			}, nil
		case lt.Integer != nil:
			return LogicalType{
				Kind:   Int,
				Bits:   int(lt.Integer.BitWidth),
				Signed: lt.Integer.IsSigned,
			}, nil
		case lt.Float16 != nil:
			return LogicalType{Kind: Binary}, nil
		case lt.List != nil, lt.Map != nil:
			return LogicalType{}, &SchemaError{Path: joinPath(path), Msg: "list or map annotation on a leaf column"}
		}
	}

	switch t.Kind() {
	case parquet.Boolean:
		return LogicalType{Kind: Bool}, nil
	case parquet.Int32:
		return LogicalType{Kind: Int, Bits: 32, Signed: true}, nil
	case parquet.Int64:
		return LogicalType{Kind: Int, Bits: 64, Signed: true}, nil
	case parquet.Int96:
		// Legacy physical type with no logical annotation. Rendered
		// through its textual form.
		return LogicalType{Kind: String}, nil
	case parquet.Float:
		return LogicalType{Kind: Float, Bits: 32}, nil
	case parquet.Double:
		return LogicalType{Kind: Float, Bits: 64}, nil
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return LogicalType{Kind: Binary}, nil
	default:
		return LogicalType{}, &SchemaError{Path: joinPath(path), Msg: fmt.Sprintf("unrecognized physical type %v", t.Kind())}
	}
}

// groupLogicalType returns the logical annotation of a group field, if
// any. Some parquet-go group nodes report a nil Type.
func groupLogicalType(f parquet.Field) *format.LogicalType {
	t := f.Type()
	if t == nil {
		return nil
	}
	return t.LogicalType()
}

func timeUnit(u format.TimeUnit) TimeUnit {
	switch {
	case u.Millis != nil:
		return Millis
	case u.Micros != nil:
		return Micros
	default:
		return Nanos
	}
}

func appendPath(path []string, name string) []string {
	return append(path[:len(path):len(path)], name)
}

func joinPath(path []string, extra ...string) string {
	return strings.Join(append(append([]string{}, path...), extra...), ".")
}
