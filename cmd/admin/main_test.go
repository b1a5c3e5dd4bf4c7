package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"patchwork.studio/internal/catalogs"
	"patchwork.studio/internal/patterns"
	"patchwork.studio/internal/persistence/indexdb"
	"patchwork.studio/internal/persistence/journal"
	"patchwork.studio/internal/persistence/savefile"
	"patchwork.studio/internal/quilt"
)

func runCmd(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func writeSave(t *testing.T, pdir, path string) *quilt.Quilt {
	t.Helper()
	q, err := quilt.New(catalogs.Load(pdir, nil), 2, 1, 6)
	if err != nil {
		t.Fatal(err)
	}
	if err := q.AddBlock(patterns.CheckerboardName, 0); err != nil {
		t.Fatal(err)
	}
	if err := q.AddBlock(patterns.GreekSquareName, 1); err != nil {
		t.Fatal(err)
	}
	if err := savefile.Save(q, path); err != nil {
		t.Fatal(err)
	}
	return q
}

func TestRun_Usage(t *testing.T) {
	if code, _, _ := runCmd(t); code != 2 {
		t.Fatalf("no args: %d", code)
	}
	if code, _, errOut := runCmd(t, "frobnicate"); code != 2 || !strings.Contains(errOut, "unknown command") {
		t.Fatalf("unknown: %d %q", code, errOut)
	}
}

func TestPatternsAndBlocks(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "patterns")
	code, out, errOut := runCmd(t, "patterns", "-out", dir)
	if code != 0 {
		t.Fatalf("patterns: %d %s", code, errOut)
	}
	if strings.Count(out, "\n") != 3 || !strings.Contains(out, "friendship-star.json") {
		t.Fatalf("patterns output %q", out)
	}

	code, out, errOut = runCmd(t, "blocks", "-patterns", dir)
	if code != 0 {
		t.Fatalf("blocks: %d %s", code, errOut)
	}
	for _, want := range []string{"Checkerboard", "Friendship Star", "greek-square.json"} {
		if !strings.Contains(out, want) {
			t.Fatalf("blocks output missing %q:\n%s", want, out)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if code, out, _ := runCmd(t, "blocks", "-patterns", dir); code != 1 || !strings.Contains(out, "ERROR") {
		t.Fatalf("broken file: %d %s", code, out)
	}
	if code, _, _ := runCmd(t, "blocks", "-patterns", filepath.Join(dir, "none")); code != 1 {
		t.Fatalf("empty catalog: %d", code)
	}
}

func TestReport(t *testing.T) {
	root := t.TempDir()
	pdir := filepath.Join(root, "patterns")
	if _, err := patterns.WriteFiles(pdir); err != nil {
		t.Fatal(err)
	}
	save := filepath.Join(root, "q.json.zst")
	writeSave(t, pdir, save)

	code, out, errOut := runCmd(t, "report", "-patterns", pdir, save)
	if code != 0 {
		t.Fatalf("report: %d %s", code, errOut)
	}
	if !strings.Contains(out, "You need 71 square inches of fabric A") {
		t.Fatalf("text report:\n%s", out)
	}

	xlsx := filepath.Join(root, "q.xlsx")
	if code, _, errOut := runCmd(t, "report", "-patterns", pdir, "-format", "xlsx", "-out", xlsx, save); code != 0 {
		t.Fatalf("xlsx: %d %s", code, errOut)
	}
	b, err := os.ReadFile(xlsx)
	if err != nil || !bytes.HasPrefix(b, []byte("PK")) {
		t.Fatalf("xlsx file: %v", err)
	}

	if code, out, _ := runCmd(t, "report", "-patterns", pdir, "-format", "html", save); code != 0 || !strings.Contains(out, "<html") {
		t.Fatalf("html: %d", code)
	}
	if code, _, _ := runCmd(t, "report", "-format", "pdf", save); code != 2 {
		t.Fatalf("bad format: %d", code)
	}
	if code, _, errOut := runCmd(t, "report", filepath.Join(root, "missing.json")); code != 1 || !strings.Contains(errOut, "no saved quilt") {
		t.Fatalf("missing save: %d %q", code, errOut)
	}
	if code, _, _ := runCmd(t, "report"); code != 2 {
		t.Fatalf("no args: %d", code)
	}
}

func TestSaves(t *testing.T) {
	root := t.TempDir()
	pdir := filepath.Join(root, "patterns")
	if _, err := patterns.WriteFiles(pdir); err != nil {
		t.Fatal(err)
	}
	q := writeSave(t, pdir, filepath.Join(root, "q.json"))

	dbPath := filepath.Join(root, "index.db")
	idx, err := indexdb.OpenSQLite(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := idx.RecordSave(context.Background(), filepath.Join(root, "q.json"), q)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	code, out, errOut := runCmd(t, "saves", "-db", dbPath)
	if code != 0 {
		t.Fatalf("saves: %d %s", code, errOut)
	}
	var got indexdb.SaveRecord
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.ID != rec.ID || got.FabricA != 71 {
		t.Fatalf("save %+v", got)
	}

	if code, _, _ := runCmd(t, "saves", "-db", filepath.Join(root, "none.db")); code != 1 {
		t.Fatalf("missing db: %d", code)
	}
}

func TestJournal(t *testing.T) {
	dir := t.TempDir()
	w := journal.NewWriter(dir, "edits")
	for _, s := range []string{"a", "b", "a"} {
		if err := w.Write(journal.Entry{Session: s, Op: journal.OpNew}); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	code, out, errOut := runCmd(t, "journal", "-dir", dir, "-session", "a")
	if code != 0 {
		t.Fatalf("journal: %d %s", code, errOut)
	}
	if n := strings.Count(out, "\n"); n != 2 {
		t.Fatalf("got %d lines:\n%s", n, out)
	}
}

func TestHealth(t *testing.T) {
	hs := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			http.NotFound(rw, r)
			return
		}
		_, _ = rw.Write([]byte(`{"ok":true}`))
	}))
	defer hs.Close()
	code, out, _ := runCmd(t, "health", "-url", hs.URL+"/")
	if code != 0 || out != "{\"ok\":true}\n" {
		t.Fatalf("health: %d %q", code, out)
	}
}
