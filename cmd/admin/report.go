package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"patchwork.studio/internal/catalogs"
	"patchwork.studio/internal/persistence/savefile"
	"patchwork.studio/internal/report"
)

func reportCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("patterns", "./configs/patterns", "block pattern directory")
	format := fs.String("format", "text", "output format: text, xlsx or html")
	outPath := fs.String("out", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: admin report [-format text|xlsx|html] [-out file] <save file>")
		return 2
	}

	q, err := savefile.Load(fs.Arg(0), catalogs.Load(*dir, nil))
	if err != nil {
		fmt.Fprintln(stderr, "load:", err)
		return 1
	}

	w := stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintln(stderr, "create:", err)
			return 1
		}
		defer f.Close()
		bw := bufio.NewWriter(f)
		defer bw.Flush()
		w = bw
	}

	switch *format {
	case "text":
		_, err = io.WriteString(w, report.Summarize(q).Text())
	case "xlsx":
		err = report.WriteXLSX(w, q)
	case "html":
		err = report.WriteChart(w, report.Summarize(q))
	default:
		fmt.Fprintf(stderr, "unknown format %q\n", *format)
		return 2
	}
	if err != nil {
		fmt.Fprintln(stderr, "report:", err)
		return 1
	}
	return 0
}
