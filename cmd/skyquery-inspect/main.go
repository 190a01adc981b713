// Package main implements skyquery-inspect, a small CLI that decodes a
// container file from local disk and prints its header and rows — useful
// for manually eyeballing what skyquery-serve wrote without going through
// the query engine.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/arkilian/skyquery/internal/columnar"
	"github.com/arkilian/skyquery/internal/rowcodec"
	"github.com/arkilian/skyquery/internal/skyprint"
	"github.com/arkilian/skyquery/internal/transform"
)

func main() {
	var (
		path       string
		format     string
		maxRows    int
		colwise    bool
		noHeader   bool
		convertTo  string
		convertOut string
	)

	flag.StringVar(&path, "file", "", "Path to a container file")
	flag.StringVar(&format, "format", "row", "Container format: row, columnar")
	flag.IntVar(&maxRows, "max-rows", 0, "Maximum rows to print (0 = all)")
	flag.BoolVar(&colwise, "colwise", false, "Print columnar containers column-by-column instead of CSV")
	flag.BoolVar(&noHeader, "no-header", false, "Suppress the header line")
	flag.StringVar(&convertTo, "convert-to", "", "Convert the container to the given format (row, columnar) instead of printing it")
	flag.StringVar(&convertOut, "convert-out", "", "Output path for -convert-to (required when -convert-to is set)")
	flag.Parse()

	if path == "" {
		fmt.Fprintln(os.Stderr, "skyquery-inspect: -file is required")
		flag.Usage()
		os.Exit(2)
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "skyquery-inspect: failed to read %s: %v\n", path, err)
		os.Exit(1)
	}

	if convertTo != "" {
		if convertOut == "" {
			fmt.Fprintln(os.Stderr, "skyquery-inspect: -convert-out is required with -convert-to")
			os.Exit(2)
		}
		if err := convert(buf, format, convertTo, convertOut); err != nil {
			fmt.Fprintf(os.Stderr, "skyquery-inspect: %v\n", err)
			os.Exit(1)
		}
		return
	}

	switch format {
	case "row":
		root, err := rowcodec.Decode(buf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skyquery-inspect: failed to decode row container: %v\n", err)
			os.Exit(1)
		}
		if !noHeader {
			skyprint.WriteRootHeader(os.Stdout, root)
		}
		if _, err := skyprint.PrintRowsAsCSV(os.Stdout, root, true, maxRows); err != nil {
			fmt.Fprintf(os.Stderr, "skyquery-inspect: %v\n", err)
			os.Exit(1)
		}
	case "columnar":
		table, err := columnar.Decode(buf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skyquery-inspect: failed to decode columnar container: %v\n", err)
			os.Exit(1)
		}
		if !noHeader {
			skyprint.WriteColumnarHeader(os.Stdout, table)
		}
		if colwise {
			err = skyprint.PrintColumnarColwise(os.Stdout, table)
		} else {
			err = skyprint.PrintColumnarAsCSV(os.Stdout, table, true)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "skyquery-inspect: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "skyquery-inspect: unknown format %q (want row or columnar)\n", format)
		os.Exit(2)
	}
}

// convert decodes buf as srcFormat, runs it through internal/transform, and
// writes the result in dstFormat to outPath. row->columnar and
// columnar->row are the only supported directions.
func convert(buf []byte, srcFormat, dstFormat, outPath string) error {
	switch {
	case srcFormat == "row" && dstFormat == "columnar":
		root, err := rowcodec.Decode(buf)
		if err != nil {
			return fmt.Errorf("failed to decode row container: %w", err)
		}
		table, err := transform.RowToColumnar(root)
		if err != nil {
			return fmt.Errorf("failed to transform row to columnar: %w", err)
		}
		out, err := columnar.Encode(table)
		if err != nil {
			return fmt.Errorf("failed to encode columnar container: %w", err)
		}
		return os.WriteFile(outPath, out, 0644)

	case srcFormat == "columnar" && dstFormat == "row":
		table, err := columnar.Decode(buf)
		if err != nil {
			return fmt.Errorf("failed to decode columnar container: %w", err)
		}
		root, err := transform.ColumnarToRow(table)
		if err != nil {
			return fmt.Errorf("failed to transform columnar to row: %w", err)
		}
		out, err := rowcodec.Encode(root)
		if err != nil {
			return fmt.Errorf("failed to encode row container: %w", err)
		}
		return os.WriteFile(outPath, out, 0644)

	case srcFormat == dstFormat:
		return fmt.Errorf("source and destination formats are both %q, nothing to convert", srcFormat)

	default:
		return fmt.Errorf("unsupported conversion %s -> %s", srcFormat, dstFormat)
	}
}
