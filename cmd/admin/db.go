package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"patchwork.studio/internal/persistence/indexdb"
	"patchwork.studio/internal/persistence/journal"
)

func savesCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("saves", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "./data/index.db", "sqlite index path")
	limit := fs.Int("limit", 20, "result limit")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if _, err := os.Stat(*dbPath); err != nil {
		fmt.Fprintln(stderr, "open:", err)
		return 1
	}
	idx, err := indexdb.OpenSQLite(*dbPath)
	if err != nil {
		fmt.Fprintln(stderr, "open:", err)
		return 1
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	saves, err := idx.ListSaves(ctx, *limit)
	if err != nil {
		fmt.Fprintln(stderr, "query:", err)
		return 1
	}
	enc := json.NewEncoder(stdout)
	for _, s := range saves {
		if err := enc.Encode(s); err != nil {
			return 1
		}
	}
	return 0
}

func journalCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("journal", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("dir", "./data/journal", "journal directory")
	session := fs.String("session", "", "only entries for this session id")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	files, err := journal.Files(*dir, "edits")
	if err != nil {
		fmt.Fprintln(stderr, "list:", err)
		return 1
	}
	enc := json.NewEncoder(stdout)
	for _, f := range files {
		entries, err := journal.ReadFile(f)
		if err != nil {
			fmt.Fprintf(stderr, "read %s: %v\n", f, err)
			return 1
		}
		for _, e := range entries {
			if *session != "" && e.Session != *session {
				continue
			}
			if err := enc.Encode(e); err != nil {
				return 1
			}
		}
	}
	return 0
}
