// Package reader opens Apache Parquet files and models their declared
// schema as a logical type tree.
//
// The low-level columnar byte layout (page headers, compression codecs,
// dictionary and run-length decoding) is handled by the parquet-go
// library; this package builds on its file metadata and decoded value
// streams.
//
// # Opening a file
//
//	r, err := reader.NewReader("data.parquet")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
// # Schema model
//
// BuildSchema converts the file metadata into a tree of Node values, the
// root always being a Struct. Each leaf carries the physical binding
// (column index, definition level, repetition level) that row assembly
// needs. PrintSchema renders the tree as an indented listing;
// WriteSchemaTable renders a flat per-column detail table.
package reader
