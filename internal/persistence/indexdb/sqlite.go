// Package indexdb keeps a sqlite index of saved quilts and of the pattern
// files they were built from. Save files remain the source of truth; the
// index only answers "what was saved, where, and how much fabric".
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"patchwork.studio/internal/catalogs"
	"patchwork.studio/internal/persistence/savefile"
	"patchwork.studio/internal/quilt"
)

var ErrClosed = errors.New("index closed")

const schemaVersion = "1"

// Fixed width so saved_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteIndex struct {
	db *sql.DB

	once   sync.Once
	closed atomic.Bool
}

// SaveRecord is one row of the saves table.
type SaveRecord struct {
	ID           string    `json:"id"`
	Path         string    `json:"path"`
	SavedAt      time.Time `json:"saved_at"`
	BlocksAcross int       `json:"blocks_across"`
	BlocksDown   int       `json:"blocks_down"`
	BlockSize    float64   `json:"block_size"`
	FilledSlots  int       `json:"filled_slots"`
	FabricA      float64   `json:"fabric_a"`
	FabricB      float64   `json:"fabric_b"`
	Backing      float64   `json:"backing"`
	Binding      float64   `json:"binding"`
	Digest       string    `json:"digest"`
}

// CatalogRecord is one row of the catalogs table.
type CatalogRecord struct {
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	Path      string `json:"path"`
	UpdatedAt string `json:"updated_at"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteIndex{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			path TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS saves (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			saved_at TEXT NOT NULL,
			blocks_across INTEGER NOT NULL,
			blocks_down INTEGER NOT NULL,
			block_size REAL NOT NULL,
			filled_slots INTEGER NOT NULL,
			fabric_a REAL NOT NULL,
			fabric_b REAL NOT NULL,
			backing REAL NOT NULL,
			binding REAL NOT NULL,
			digest TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS saves_by_path ON saves(path, saved_at);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','` + schemaVersion + `');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	if s == nil {
		return nil
	}
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		err = s.db.Close()
	})
	return err
}

// NewSaveRecord summarises q as saved at path. The digest covers the
// uncompressed save document.
func NewSaveRecord(path string, q *quilt.Quilt) (SaveRecord, error) {
	body, err := savefile.Encode(q)
	if err != nil {
		return SaveRecord{}, err
	}
	sum := sha256.Sum256(body)
	filled := 0
	for _, b := range q.Blocks() {
		if b != nil {
			filled++
		}
	}
	return SaveRecord{
		ID:           uuid.NewString(),
		Path:         path,
		SavedAt:      time.Now().UTC(),
		BlocksAcross: q.BlocksAcross(),
		BlocksDown:   q.BlocksDown(),
		BlockSize:    q.BlockSize(),
		FilledSlots:  filled,
		FabricA:      q.CalculateFabric(quilt.FabricA),
		FabricB:      q.CalculateFabric(quilt.FabricB),
		Backing:      q.CalculateTotalBacking(),
		Binding:      q.CalculateTotalBinding(),
		Digest:       hex.EncodeToString(sum[:]),
	}, nil
}

// RecordSave indexes a save of q at path and returns the stored row.
func (s *SQLiteIndex) RecordSave(ctx context.Context, path string, q *quilt.Quilt) (SaveRecord, error) {
	if s == nil || s.closed.Load() {
		return SaveRecord{}, ErrClosed
	}
	r, err := NewSaveRecord(path, q)
	if err != nil {
		return SaveRecord{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO saves(id,path,saved_at,blocks_across,blocks_down,block_size,filled_slots,fabric_a,fabric_b,backing,binding,digest)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.ID, r.Path, r.SavedAt.Format(timeLayout),
		r.BlocksAcross, r.BlocksDown, r.BlockSize, r.FilledSlots,
		r.FabricA, r.FabricB, r.Backing, r.Binding, r.Digest)
	if err != nil {
		return SaveRecord{}, fmt.Errorf("record save %s: %w", path, err)
	}
	return r, nil
}

// ListSaves returns saves newest first. limit <= 0 means no limit.
func (s *SQLiteIndex) ListSaves(ctx context.Context, limit int) ([]SaveRecord, error) {
	if s == nil || s.closed.Load() {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,path,saved_at,blocks_across,blocks_down,block_size,filled_slots,fabric_a,fabric_b,backing,binding,digest
		FROM saves ORDER BY saved_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SaveRecord
	for rows.Next() {
		var (
			r       SaveRecord
			savedAt string
		)
		if err := rows.Scan(&r.ID, &r.Path, &savedAt, &r.BlocksAcross, &r.BlocksDown, &r.BlockSize,
			&r.FilledSlots, &r.FabricA, &r.FabricB, &r.Backing, &r.Binding, &r.Digest); err != nil {
			return nil, err
		}
		if r.SavedAt, err = time.Parse(timeLayout, savedAt); err != nil {
			return nil, fmt.Errorf("save %s: saved_at: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestSave returns the newest save recorded for path, or sql.ErrNoRows.
func (s *SQLiteIndex) LatestSave(ctx context.Context, path string) (SaveRecord, error) {
	all, err := s.ListSaves(ctx, 0)
	if err != nil {
		return SaveRecord{}, err
	}
	for _, r := range all {
		if r.Path == path {
			return r, nil
		}
	}
	return SaveRecord{}, sql.ErrNoRows
}

// UpsertCatalog stores the digest of every readable pattern file in cat.
// Unreadable patterns are skipped; their errors are returned joined after
// the readable ones are committed.
func (s *SQLiteIndex) UpsertCatalog(ctx context.Context, cat *catalogs.Catalog) error {
	if s == nil || s.closed.Load() {
		return ErrClosed
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO catalogs(name,digest,path,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	var errs []error
	for _, name := range cat.Names() {
		digest, err := cat.Digest(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		path := filepath.Join(cat.Dir(), catalogs.FileName(name))
		if _, err := stmt.ExecContext(ctx, name, digest, path, now); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

// Catalog lists the indexed pattern files by name.
func (s *SQLiteIndex) Catalog(ctx context.Context) ([]CatalogRecord, error) {
	if s == nil || s.closed.Load() {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `SELECT name,digest,path,updated_at FROM catalogs ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CatalogRecord
	for rows.Next() {
		var r CatalogRecord
		if err := rows.Scan(&r.Name, &r.Digest, &r.Path, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
