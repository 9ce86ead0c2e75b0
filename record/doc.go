// Package record reconstructs logical rows from the flat leaf-value
// streams of a columnar parquet file.
//
// A Materializer pulls one physical row at a time from a RowSource and
// assembles it into a Value tree shaped like the schema: definition
// levels decide where nulls sit in the nesting (a null struct yields a
// single Null, never a struct of nulls), repetition levels delimit list
// and map elements. The sequence is lazy and forward-only, which is what
// lets a head operation stop after N rows without touching the rest of
// the file.
package record
