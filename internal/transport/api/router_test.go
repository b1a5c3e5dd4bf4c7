package api

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

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"patchwork.studio/internal/catalogs"
	"patchwork.studio/internal/patterns"
	"patchwork.studio/internal/persistence/indexdb"
	"patchwork.studio/internal/persistence/savefile"
	"patchwork.studio/internal/protocol"
	"patchwork.studio/internal/quilt"
	"patchwork.studio/internal/transport/ws"
)

func init() { gin.SetMode(gin.TestMode) }

type env struct {
	router http.Handler
	cat    *catalogs.Catalog
	index  *indexdb.SQLiteIndex
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	pdir := filepath.Join(dir, "patterns")
	if _, err := patterns.WriteFiles(pdir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(pdir, "broken.json"), []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}
	idx, err := indexdb.OpenSQLite(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	cat := catalogs.Load(pdir, nil)
	return &env{router: NewRouter(Options{Catalog: cat, Index: idx}), cat: cat, index: idx}
}

func (e *env) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) sampleSave(t *testing.T) []byte {
	t.Helper()
	q, err := quilt.New(e.cat, 2, 1, 6)
	if err != nil {
		t.Fatal(err)
	}
	if err := q.AddBlock(patterns.CheckerboardName, 0); err != nil {
		t.Fatal(err)
	}
	if err := q.AddBlock(patterns.GreekSquareName, 1); err != nil {
		t.Fatal(err)
	}
	b, err := savefile.Encode(q)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"blocks":4`) {
		t.Fatalf("%d %s", rec.Code, rec.Body.String())
	}
}

func TestBlocks(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/v1/blocks", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var list struct {
		Blocks []blockJSON `json:"blocks"`
	}
	decode(t, rec, &list)
	if len(list.Blocks) != 4 || list.Blocks[2].Display != "Friendship Star" || list.Blocks[2].File != "friendship-star.json" {
		t.Fatalf("blocks %+v", list.Blocks)
	}

	rec = e.do(t, http.MethodGet, "/v1/blocks/friendship%20star", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var one blockJSON
	decode(t, rec, &one)
	if len(one.Patches) != quilt.PatchesPerBlock || len(one.Digest) != 64 {
		t.Fatalf("block %+v", one)
	}

	rec = e.do(t, http.MethodGet, "/v1/blocks/log%20cabin", nil)
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), protocol.ErrBlockUnavailable) {
		t.Fatalf("missing block: %d %s", rec.Code, rec.Body.String())
	}
	rec = e.do(t, http.MethodGet, "/v1/blocks/broken", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("broken block: %d %s", rec.Code, rec.Body.String())
	}
}

func TestReport(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/v1/report", e.sampleSave(t))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Summary struct {
			FabricA float64 `json:"fabric_a"`
			FabricB float64 `json:"fabric_b"`
			Binding float64 `json:"binding"`
		} `json:"summary"`
		Text string `json:"text"`
	}
	decode(t, rec, &out)
	if out.Summary.FabricA != 71 || out.Summary.FabricB != 71 || out.Summary.Binding != 115 {
		t.Fatalf("summary %+v", out.Summary)
	}
	if !strings.Contains(out.Text, "FABRIC NEEDED") {
		t.Fatalf("text %q", out.Text)
	}

	rec = e.do(t, http.MethodPost, "/v1/report", []byte(`{"numBlocksAcross":2}`))
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), protocol.ErrDecode) {
		t.Fatalf("bad quilt: %d %s", rec.Code, rec.Body.String())
	}
}

func TestReportFormats(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/v1/report.xlsx", e.sampleSave(t))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != xlsxType {
		t.Fatalf("xlsx: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Fatalf("xlsx body is not a zip")
	}

	rec = e.do(t, http.MethodPost, "/v1/report.html", e.sampleSave(t))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Fabric needed") {
		t.Fatalf("html: %d", rec.Code)
	}
}

func TestSaves(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/v1/saves", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"saves":[]`) {
		t.Fatalf("empty: %d %s", rec.Code, rec.Body.String())
	}

	q, err := quilt.New(e.cat, 1, 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"a.json", "b.json"} {
		if _, err := e.index.RecordSave(context.Background(), p, q); err != nil {
			t.Fatal(err)
		}
	}
	rec = e.do(t, http.MethodGet, "/v1/saves?limit=1", nil)
	var out struct {
		Saves []indexdb.SaveRecord `json:"saves"`
	}
	decode(t, rec, &out)
	if len(out.Saves) != 1 || out.Saves[0].Path != "b.json" {
		t.Fatalf("saves %+v", out.Saves)
	}

	rec = e.do(t, http.MethodGet, "/v1/saves?limit=x", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: %d", rec.Code)
	}

	noIndex := NewRouter(Options{Catalog: e.cat})
	r := httptest.NewRecorder()
	noIndex.ServeHTTP(r, httptest.NewRequest(http.MethodGet, "/v1/saves", nil))
	if r.Code != http.StatusServiceUnavailable {
		t.Fatalf("no index: %d", r.Code)
	}
}

func TestWebSocketMounted(t *testing.T) {
	e := newEnv(t)
	router := NewRouter(Options{Catalog: e.cat, WS: ws.NewServer(ws.Options{Catalog: e.cat, SavesDir: t.TempDir()})})
	hs := httptest.NewServer(router)
	defer hs.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(hs.URL, "http")+"/v1/ws", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	if welcome.Type != protocol.TypeWelcome || welcome.ProtocolVersion != protocol.Version {
		t.Fatalf("welcome %+v", welcome)
	}
}
