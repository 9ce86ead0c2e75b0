package record

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindDecimal
	KindString
	KindBytes
	KindDate
	KindTime
	KindTimestamp
	KindList
	KindMap
	KindStruct
)

// Value is a tagged variant holding one materialized datum. Kind selects
// the variant; only that variant's fields are meaningful. A Value's kind
// is always consistent with the schema node it was produced against;
// KindNull appears only where the node is nullable.
type Value struct {
	Kind Kind

	Bool     bool
	Int      int64
	Unsigned bool // Int holds the bit pattern of a uint64
	Float    float64
	Dec      decimal.Decimal
	Str      string
	Bytes    []byte
	TS       time.Time // Date, Timestamp
	UTC      bool      // Timestamp: render with a UTC zone designator
	Nanos    int64     // Time: nanoseconds since midnight

	Elems   []Value       // List, in element order
	Entries []MapEntry    // Map, insertion order preserved
	Fields  []StructField // Struct, aligned to schema field order
}

// MapEntry is one key/value pair of a map value.
type MapEntry struct {
	Key   Value
	Value Value
}

// StructField is one named field of a struct value.
type StructField struct {
	Name  string
	Value Value
}

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02T15:04:05.999999999"
)

// Text renders v as flat-tabular cell text. Null renders empty, decimals
// as exact fixed-point digits, temporal values in ISO layouts, byte
// strings as base64, and nested values as the JSON encoding of just the
// sub-value so the column count stays fixed.
func (v Value) Text() (string, error) {
	switch v.Kind {
	case KindNull:
		return "", nil
	case KindBool:
		return strconv.FormatBool(v.Bool), nil
	case KindInt:
		if v.Unsigned {
			return strconv.FormatUint(uint64(v.Int), 10), nil
		}
		return strconv.FormatInt(v.Int, 10), nil
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64), nil
	case KindDecimal:
		// String trims trailing zeros; the declared scale must survive,
		// and the exponent is always -scale here.
		if e := v.Dec.Exponent(); e < 0 {
			return v.Dec.StringFixed(-e), nil
		}
		return v.Dec.String(), nil
	case KindString:
		return v.Str, nil
	case KindBytes:
		return base64.StdEncoding.EncodeToString(v.Bytes), nil
	case KindDate:
		return v.TS.Format(dateLayout), nil
	case KindTime:
		return formatTimeOfDay(v.Nanos), nil
	case KindTimestamp:
		if v.UTC {
			return v.TS.UTC().Format(time.RFC3339Nano), nil
		}
		return v.TS.Format(timestampLayout), nil
	case KindList, KindMap, KindStruct:
		b, err := v.appendJSON(nil)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("no text rendering for value kind %d", v.Kind)
	}
}

// MarshalJSON implements json.Marshaler. Unlike Go map marshaling, map
// entries and struct fields keep their insertion order. Decimals render
// as strings carrying their exact digits, byte strings as base64.
func (v Value) MarshalJSON() ([]byte, error) {
	return v.appendJSON(nil)
}

func (v Value) appendJSON(dst []byte) ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return append(dst, "null"...), nil
	case KindBool:
		return strconv.AppendBool(dst, v.Bool), nil
	case KindInt:
		if v.Unsigned {
			return strconv.AppendUint(dst, uint64(v.Int), 10), nil
		}
		return strconv.AppendInt(dst, v.Int, 10), nil
	case KindFloat:
		if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
			// Not representable as a JSON number.
			return appendQuoted(dst, strconv.FormatFloat(v.Float, 'g', -1, 64))
		}
		return strconv.AppendFloat(dst, v.Float, 'g', -1, 64), nil
	case KindDecimal, KindBytes, KindDate, KindTime, KindTimestamp:
		s, err := v.Text()
		if err != nil {
			return nil, err
		}
		return appendQuoted(dst, s)
	case KindString:
		return appendQuoted(dst, v.Str)
	case KindList:
		dst = append(dst, '[')
		for i, e := range v.Elems {
			if i > 0 {
				dst = append(dst, ',')
			}
			var err error
			dst, err = e.appendJSON(dst)
			if err != nil {
				return nil, err
			}
		}
		return append(dst, ']'), nil
	case KindMap:
		dst = append(dst, '{')
		for i, e := range v.Entries {
			if i > 0 {
				dst = append(dst, ',')
			}
			key, err := e.Key.Text()
			if err != nil {
				return nil, err
			}
			dst, err = appendQuoted(dst, key)
			if err != nil {
				return nil, err
			}
			dst = append(dst, ':')
			dst, err = e.Value.appendJSON(dst)
			if err != nil {
				return nil, err
			}
		}
		return append(dst, '}'), nil
	case KindStruct:
		dst = append(dst, '{')
		for i, f := range v.Fields {
			if i > 0 {
				dst = append(dst, ',')
			}
			var err error
			dst, err = appendQuoted(dst, f.Name)
			if err != nil {
				return nil, err
			}
			dst = append(dst, ':')
			dst, err = f.Value.appendJSON(dst)
			if err != nil {
				return nil, err
			}
		}
		return append(dst, '}'), nil
	default:
		return nil, fmt.Errorf("no JSON rendering for value kind %d", v.Kind)
	}
}

// appendQuoted appends s as a JSON string literal, going through
// encoding/json for correct escaping.
func appendQuoted(dst []byte, s string) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return append(dst, b...), nil
}

func formatTimeOfDay(nanos int64) string {
	base := time.Date(0, time.January, 1, 0, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(nanos)).Format("15:04:05.999999999")
}
