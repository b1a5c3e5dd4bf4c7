package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"patchwork.studio/internal/catalogs"
	"patchwork.studio/internal/patterns"
	"patchwork.studio/internal/report"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	cmds := map[string]func([]string, io.Writer, io.Writer) int{
		"patterns": patternsCmd,
		"blocks":   blocksCmd,
		"report":   reportCmd,
		"saves":    savesCmd,
		"journal":  journalCmd,
		"health":   healthCmd,
	}
	cmd, ok := cmds[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}
	return cmd(args[1:], stdout, stderr)
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: admin <patterns|blocks|report|saves|journal|health> [flags]")
}

func patternsCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("patterns", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("out", "./configs/patterns", "directory to write the built-in pattern files into")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	paths, err := patterns.WriteFiles(*dir)
	if err != nil {
		fmt.Fprintln(stderr, "write patterns:", err)
		return 1
	}
	for _, p := range paths {
		fmt.Fprintln(stdout, p)
	}
	return 0
}

func blocksCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("blocks", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("patterns", "./configs/patterns", "block pattern directory")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cat := catalogs.Load(*dir, nil)
	status := 0
	for _, name := range cat.Names() {
		digest, err := cat.Digest(name)
		if err != nil {
			fmt.Fprintf(stdout, "%-20s %-24s ERROR %v\n", report.DisplayName(name), catalogs.FileName(name), err)
			status = 1
			continue
		}
		fmt.Fprintf(stdout, "%-20s %-24s %s\n", report.DisplayName(name), catalogs.FileName(name), digest[:12])
	}
	if cat.Len() == 0 {
		fmt.Fprintf(stderr, "no blocks in %s\n", strings.TrimSpace(*dir))
		return 1
	}
	return status
}
