// Package run composes the reader, materializer, and formatters into
// the three operations exposed to the CLI: Cat, Head, and Schema.
//
// Each operation is a single-threaded pull pipeline: a row is
// materialized, formatted, and written before the next row is pulled,
// so memory use is bounded by one row regardless of file size. Any
// failure aborts the operation immediately; output already flushed for
// prior rows remains on the sink.
package run

import (
	"errors"
	"fmt"
	"io"

	"github.com/vegasq/pqcat/output"
	"github.com/vegasq/pqcat/reader"
	"github.com/vegasq/pqcat/record"
)

// Schema prints the file's schema as an indented type listing. No rows
// are decoded.
func Schema(path string, w io.Writer) error {
	r, err := reader.NewReader(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer func() { _ = r.Close() }()

	root, err := reader.BuildSchema(r.Schema())
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, reader.PrintSchema(root)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// SchemaDetail prints a per-leaf-column table of the file's schema,
// followed by the total row count from the file metadata. No rows are
// decoded.
func SchemaDetail(path string, w io.Writer) error {
	r, err := reader.NewReader(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer func() { _ = r.Close() }()

	root, err := reader.BuildSchema(r.Schema())
	if err != nil {
		return err
	}
	reader.WriteSchemaTable(root, w)
	if _, err := fmt.Fprintf(w, "Rows: %d\n", r.NumRows()); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Cat streams every row of the file to w in the given format.
func Cat(path, format string, w io.Writer) error {
	return stream(path, format, w, -1)
}

// Head streams the first n rows of the file to w in the given format.
// Fewer rows are written when the file is shorter; the remainder of the
// file is not materialized.
func Head(path string, n int64, format string, w io.Writer) error {
	if n < 0 {
		return fmt.Errorf("head: row count must be non-negative, got %d", n)
	}
	return stream(path, format, w, n)
}

func stream(path, format string, w io.Writer, limit int64) error {
	r, err := reader.NewReader(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer func() { _ = r.Close() }()

	root, err := reader.BuildSchema(r.Schema())
	if err != nil {
		return err
	}

	f, err := output.New(format, w)
	if err != nil {
		return err
	}

	rows := r.Rows()
	defer func() { _ = rows.Close() }()

	m := record.NewMaterializer(rows, root, limit)

	if err := f.FormatHeader(root); err != nil {
		return fmt.Errorf("format header: %w", err)
	}
	for {
		row, err := m.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if err := f.FormatRow(root, row); err != nil {
			return fmt.Errorf("row %d: %w", m.Produced(), err)
		}
	}
	if err := f.FormatFooter(root); err != nil {
		return fmt.Errorf("format footer: %w", err)
	}
	return nil
}
