package ws

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"patchwork.studio/internal/catalogs"
	"patchwork.studio/internal/patterns"
	"patchwork.studio/internal/persistence/archive"
	"patchwork.studio/internal/persistence/indexdb"
	"patchwork.studio/internal/persistence/journal"
	"patchwork.studio/internal/protocol"
	"patchwork.studio/internal/quilt"
	"patchwork.studio/internal/tuning"
)

type fixture struct {
	srv      *Server
	savesDir string
	jdir     string
	index    *indexdb.SQLiteIndex
	journal  *journal.Writer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	pdir := filepath.Join(root, "patterns")
	if _, err := patterns.WriteFiles(pdir); err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}
	idx, err := indexdb.OpenSQLite(filepath.Join(root, "index.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	jdir := filepath.Join(root, "journal")
	jw := journal.NewWriter(jdir, "edits")
	t.Cleanup(func() { _ = jw.Close() })

	f := &fixture{
		savesDir: filepath.Join(root, "saves"),
		jdir:     jdir,
		index:    idx,
		journal:  jw,
	}
	f.srv = NewServer(Options{
		Catalog:  catalogs.Load(pdir, nil),
		Index:    idx,
		Journal:  jw,
		SavesDir: f.savesDir,
		Defaults: tuning.QuiltDefaults{BlocksAcross: 4, BlocksDown: 5, BlockSize: 6, FabricA: "0xffffffff"},
	})
	return f
}

func send(t *testing.T, ss *Session, msg string) any {
	t.Helper()
	return ss.Handle(context.Background(), []byte(msg))
}

func wantQuilt(t *testing.T, reply any) protocol.QuiltMsg {
	t.Helper()
	m, ok := reply.(protocol.QuiltMsg)
	if !ok {
		t.Fatalf("expected QUILT, got %#v", reply)
	}
	return m
}

func wantError(t *testing.T, reply any, code string) {
	t.Helper()
	m, ok := reply.(protocol.ErrorMsg)
	if !ok {
		t.Fatalf("expected ERROR %s, got %#v", code, reply)
	}
	if m.Code != code {
		t.Fatalf("code=%s want %s (%s)", m.Code, code, m.Message)
	}
}

func TestSession_DesignFlow(t *testing.T) {
	f := newFixture(t)
	ss := f.srv.NewSession()

	wantError(t, send(t, ss, `{"type":"ADD_BLOCK","slot":0,"block_type":"checkerboard"}`), protocol.ErrNoQuilt)
	wantError(t, send(t, ss, `{"type":"CALCULATE"}`), protocol.ErrNoQuilt)

	m := wantQuilt(t, send(t, ss, `{"type":"NEW_QUILT"}`))
	if m.Quilt.BlocksAcross() != 4 || m.Quilt.BlocksDown() != 5 || m.Quilt.BlockSize() != 6 {
		t.Fatalf("defaults not applied")
	}
	if c := m.Quilt.FabricColours(); c[0] == nil || *c[0] != "0xffffffff" || c[1] != nil {
		t.Fatalf("default colours not applied")
	}

	m = wantQuilt(t, send(t, ss, `{"type":"ADD_BLOCK","slot":2,"block_type":"friendship star"}`))
	if !strings.Contains(m.Listing, "Slot 3 (row 1, col 3): friendship star") {
		t.Fatalf("listing:\n%s", m.Listing)
	}
	wantError(t, send(t, ss, `{"type":"ADD_BLOCK","slot":20,"block_type":"checkerboard"}`), protocol.ErrSlotOutOfBounds)
	wantError(t, send(t, ss, `{"type":"ADD_BLOCK","slot":1,"block_type":"log cabin"}`), protocol.ErrBlockUnavailable)
	wantError(t, send(t, ss, `{"type":"ADD_BLOCK","block_type":"checkerboard"}`), protocol.ErrBadRequest)
	wantError(t, send(t, ss, `{"type":"REMOVE_BLOCK","slot":-1}`), protocol.ErrSlotOutOfBounds)

	wantQuilt(t, send(t, ss, `{"type":"SET_COLOURS","fabric_a":"0x000000ff","fabric_b":null}`))

	r, ok := send(t, ss, `{"type":"CALCULATE"}`).(protocol.ReportMsg)
	if !ok {
		t.Fatalf("expected REPORT")
	}
	if r.Summary.FilledSlots != 1 || r.Summary.Backing != 891 || !strings.Contains(r.Text, "FABRIC NEEDED") {
		t.Fatalf("report %+v", r.Summary)
	}

	m = wantQuilt(t, send(t, ss, `{"type":"REMOVE_BLOCK","slot":2}`))
	if b, _ := m.Quilt.BlockAt(2); b != nil {
		t.Fatalf("slot 2 still filled")
	}
	wantQuilt(t, send(t, ss, `{"type":"REMOVE_BLOCK","slot":2}`))

	wantError(t, send(t, ss, `{"type":"NEW_QUILT","blocks_across":-1}`), protocol.ErrIllegalQuiltSize)
	wantError(t, send(t, ss, `{"type":"NEW_QUILT","blocks_across":4294967296,"blocks_down":4294967296}`), protocol.ErrIllegalQuiltSize)
	if ss.Quilt() == nil || ss.Quilt().BlocksAcross() != 4 {
		t.Fatalf("failed NEW_QUILT replaced the quilt")
	}
}

func TestSession_SaveLoad(t *testing.T) {
	f := newFixture(t)
	ss := f.srv.NewSession()

	wantQuilt(t, send(t, ss, `{"type":"NEW_QUILT","blocks_across":2,"blocks_down":2,"block_size":9}`))
	wantQuilt(t, send(t, ss, `{"type":"ADD_BLOCK","slot":3,"block_type":"greek square"}`))

	saved := wantQuilt(t, send(t, ss, `{"type":"SAVE","name":"mine"}`))
	if saved.Path != filepath.Join(f.savesDir, "mine.json") || saved.SaveID == "" {
		t.Fatalf("save reply path=%q id=%q", saved.Path, saved.SaveID)
	}
	if _, err := os.Stat(saved.Path); err != nil {
		t.Fatalf("save file: %v", err)
	}
	rec, err := f.index.LatestSave(context.Background(), saved.Path)
	if err != nil || rec.ID != saved.SaveID || rec.FilledSlots != 1 {
		t.Fatalf("index row %+v err=%v", rec, err)
	}

	other := f.srv.NewSession()
	wantError(t, send(t, other, `{"type":"LOAD","name":"nothing"}`), protocol.ErrNoSavedQuilt)
	wantError(t, send(t, other, `{"type":"LOAD","name":"../escape.json"}`), protocol.ErrBadRequest)

	loaded := wantQuilt(t, send(t, other, `{"type":"LOAD","name":"mine.json"}`))
	b, err := loaded.Quilt.BlockAt(3)
	if err != nil || b == nil || b.BlockType() != "greek square" || b.FinishedSize() != 9 {
		t.Fatalf("loaded slot 3: %v %v", b, err)
	}
	// Loaded quilts can keep being edited against the catalog.
	wantQuilt(t, send(t, other, `{"type":"ADD_BLOCK","slot":0,"block_type":"checkerboard"}`))

	if err := os.WriteFile(filepath.Join(f.savesDir, "bad.json"), []byte(`{"numBlocksAcross":0}`), 0o644); err != nil {
		t.Fatal(err)
	}
	wantError(t, send(t, other, `{"type":"LOAD","name":"bad.json"}`), protocol.ErrDecode)
	if b, _ := other.Quilt().BlockAt(0); b == nil {
		t.Fatalf("failed LOAD replaced the quilt")
	}
}

func TestSession_Compressed(t *testing.T) {
	f := newFixture(t)
	f.srv.compress = true
	ss := f.srv.NewSession()
	wantQuilt(t, send(t, ss, `{"type":"NEW_QUILT"}`))
	m := wantQuilt(t, send(t, ss, `{"type":"SAVE"}`))
	if filepath.Base(m.Path) != "quilt.json.zst" {
		t.Fatalf("path=%s", m.Path)
	}
	wantQuilt(t, send(t, ss, `{"type":"LOAD"}`))
}

func TestSession_Journal(t *testing.T) {
	f := newFixture(t)
	ss := f.srv.NewSession()
	send(t, ss, `{"type":"NEW_QUILT"}`)
	send(t, ss, `{"type":"ADD_BLOCK","slot":0,"block_type":"checkerboard"}`)
	send(t, ss, `{"type":"ADD_BLOCK","slot":99,"block_type":"checkerboard"}`)
	if err := f.journal.Close(); err != nil {
		t.Fatal(err)
	}

	files, err := journal.Files(f.jdir, "edits")
	if err != nil || len(files) != 1 {
		t.Fatalf("files=%v err=%v", files, err)
	}
	entries, err := journal.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries=%d", len(entries))
	}
	for _, e := range entries {
		if e.Session != ss.ID() {
			t.Fatalf("session=%q", e.Session)
		}
	}
	if entries[1].Op != journal.OpAdd || *entries[1].Slot != 0 || entries[1].Error != "" {
		t.Fatalf("entry 1 %+v", entries[1])
	}
	if entries[2].Error == "" {
		t.Fatalf("failed add not journalled as error")
	}
}

func TestSession_BadMessages(t *testing.T) {
	f := newFixture(t)
	ss := f.srv.NewSession()
	wantError(t, send(t, ss, `nope`), protocol.ErrBadRequest)
	wantError(t, send(t, ss, `{"type":"DANCE"}`), protocol.ErrBadRequest)
	wantError(t, send(t, ss, `{"type":"NEW_QUILT","blocks_across":"x"}`), protocol.ErrBadRequest)

	blocks, ok := send(t, ss, `{"type":"LIST_BLOCKS"}`).(protocol.BlocksMsg)
	if !ok || len(blocks.Blocks) != 3 || blocks.Blocks[0].Display != "Checkerboard" {
		t.Fatalf("blocks %#v", blocks)
	}
}

func TestSession_QuiltReplyEncodes(t *testing.T) {
	f := newFixture(t)
	ss := f.srv.NewSession()
	reply := send(t, ss, `{"type":"NEW_QUILT","blocks_across":1,"blocks_down":1,"block_size":3}`)
	b, err := json.Marshal(reply)
	if err != nil {
		t.Fatal(err)
	}
	var back struct {
		Type  string          `json:"type"`
		Quilt json.RawMessage `json:"quilt"`
	}
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	var q quilt.Quilt
	if back.Type != protocol.TypeQuilt || json.Unmarshal(back.Quilt, &q) != nil || q.TotalBlocks() != 1 {
		t.Fatalf("reply did not carry a decodable quilt: %s", b)
	}
}

func TestSession_SaveArchivesPreviousVersion(t *testing.T) {
	f := newFixture(t)
	f.srv.keep = 2
	ss := f.srv.NewSession()
	wantQuilt(t, send(t, ss, `{"type":"NEW_QUILT"}`))
	for i := 0; i < 3; i++ {
		wantQuilt(t, send(t, ss, `{"type":"SAVE","name":"q.json"}`))
	}
	copies, err := archive.List(filepath.Join(f.savesDir, "q.json"))
	if err != nil {
		t.Fatal(err)
	}
	if len(copies) != 2 {
		t.Fatalf("archived copies = %v", copies)
	}
}
