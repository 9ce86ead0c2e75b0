// pqcat is a utility for reading Apache Parquet files.
//
// Usage:
//
//	pqcat cat [-f csv|json] <file.parquet>
//	pqcat head [-f csv|json] [-n rows] <file.parquet>
//	pqcat schema [-detail] <file.parquet>
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/vegasq/pqcat/run"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "cat":
		err = catCmd(os.Args[2:])
	case "head":
		err = headCmd(os.Args[2:])
	case "schema":
		err = schemaCmd(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Error: file not found\n")
			fmt.Fprintf(os.Stderr, "Please check the file path and try again.\n")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options] <file.parquet>\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "A utility tool for reading parquet files.\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  cat     Display the contents of a file\n")
	fmt.Fprintf(os.Stderr, "  head    Display the first n rows of a file\n")
	fmt.Fprintf(os.Stderr, "  schema  Display the schema of a file\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s cat data.parquet\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s cat -f json data.parquet\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s head -n 5 data.parquet\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s schema -detail data.parquet\n", os.Args[0])
}

func catCmd(args []string) error {
	fs := flag.NewFlagSet("cat", flag.ContinueOnError)
	format := fs.String("f", "csv", "Output format: csv or json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := fileArg(fs)
	if err != nil {
		return err
	}
	return run.Cat(path, *format, os.Stdout)
}

func headCmd(args []string) error {
	fs := flag.NewFlagSet("head", flag.ContinueOnError)
	format := fs.String("f", "csv", "Output format: csv or json")
	n := fs.Int64("n", 10, "Number of rows to display")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := fileArg(fs)
	if err != nil {
		return err
	}
	return run.Head(path, *n, *format, os.Stdout)
}

func schemaCmd(args []string) error {
	fs := flag.NewFlagSet("schema", flag.ContinueOnError)
	detail := fs.Bool("detail", false, "Show a per-column detail table")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := fileArg(fs)
	if err != nil {
		return err
	}
	if *detail {
		return run.SchemaDetail(path, os.Stdout)
	}
	return run.Schema(path, os.Stdout)
}

func fileArg(fs *flag.FlagSet) (string, error) {
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%s: expected exactly one parquet file argument", fs.Name())
	}
	return fs.Arg(0), nil
}
