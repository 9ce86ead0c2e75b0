// Package output provides formatters that render materialized rows into
// text interchange formats.
//
// Two formats are supported:
//
//   - CSV: flat-tabular, one header line of top-level field names, one
//     line per row. Nested values render as the JSON encoding of just
//     the sub-value inside their single column.
//   - JSON: JSON Lines, one self-describing object per row.
//
// Both implement the Formatter interface; the driver invokes
// FormatHeader once, FormatRow per row, FormatFooter once. Adding a new
// output format means adding one new implementation, not touching the
// materializer.
//
// # Rendering conventions
//
//   - Null: empty CSV field, JSON null literal.
//   - Decimal: exact fixed-point digits; a plain CSV field, a JSON
//     string (never a float literal, to avoid precision loss).
//   - Byte strings: base64.
//   - Date: 2006-01-02. Time: 15:04:05 with fractional digits as
//     needed. Timestamp: RFC 3339 with a Z designator when the file
//     marks values UTC-adjusted, zone-less otherwise.
//   - Map entries and struct fields keep their insertion order.
package output
