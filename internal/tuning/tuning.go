// Package tuning loads the server configuration from configs/patchwork.yaml.
package tuning

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"patchwork.studio/internal/quilt"
)

type Tuning struct {
	ListenAddr  string `yaml:"listen_addr"`
	PatternsDir string `yaml:"patterns_dir"`
	SavesDir    string `yaml:"saves_dir"`
	IndexDB     string `yaml:"index_db"`
	JournalDir  string `yaml:"journal_dir"`

	// CompressSaves stores new saves as .json.zst.
	CompressSaves bool `yaml:"compress_saves"`
	// KeepVersions is how many overwritten versions of each save are
	// archived. Zero disables archiving.
	KeepVersions  int  `yaml:"keep_versions"`

	DefaultQuilt QuiltDefaults `yaml:"default_quilt"`
	WebSocket    WebSocket     `yaml:"websocket"`
}

type QuiltDefaults struct {
	BlocksAcross int     `yaml:"blocks_across"`
	BlocksDown   int     `yaml:"blocks_down"`
	BlockSize    float64 `yaml:"block_size"`
	FabricA      string  `yaml:"fabric_a"`
	FabricB      string  `yaml:"fabric_b"`
}

type WebSocket struct {
	MaxMessageBytes int64 `yaml:"max_message_bytes"`
	WriteTimeoutMs  int   `yaml:"write_timeout_ms"`
	SendQueue       int   `yaml:"send_queue"`
}

func (w WebSocket) WriteTimeout() time.Duration {
	return time.Duration(w.WriteTimeoutMs) * time.Millisecond
}

// Load reads path over the defaults. An empty path gives the defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		t.Normalize()
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return t, nil
}

func Defaults() Tuning {
	return Tuning{
		ListenAddr:  ":8080",
		PatternsDir: "configs/patterns",
		SavesDir:    "data/saves",
		IndexDB:     "data/index.db",
		JournalDir:  "data/journal",

		KeepVersions: 5,
		DefaultQuilt: QuiltDefaults{
			BlocksAcross: 4,
			BlocksDown:   5,
			BlockSize:    6,
		},
		WebSocket: WebSocket{
			MaxMessageBytes: 1 << 20,
			WriteTimeoutMs:  10000,
			SendQueue:       64,
		},
	}
}

func (t *Tuning) Normalize() {
	if t == nil {
		return
	}
	t.ListenAddr = strings.TrimSpace(t.ListenAddr)
	t.PatternsDir = strings.TrimSpace(t.PatternsDir)
	t.SavesDir = strings.TrimSpace(t.SavesDir)
	t.IndexDB = strings.TrimSpace(t.IndexDB)
	t.JournalDir = strings.TrimSpace(t.JournalDir)
	t.DefaultQuilt.FabricA = strings.TrimSpace(t.DefaultQuilt.FabricA)
	t.DefaultQuilt.FabricB = strings.TrimSpace(t.DefaultQuilt.FabricB)

	if t.KeepVersions < 0 {
		t.KeepVersions = 0
	}
	d := Defaults()
	if t.WebSocket.MaxMessageBytes <= 0 {
		t.WebSocket.MaxMessageBytes = d.WebSocket.MaxMessageBytes
	}
	if t.WebSocket.WriteTimeoutMs <= 0 {
		t.WebSocket.WriteTimeoutMs = d.WebSocket.WriteTimeoutMs
	}
	if t.WebSocket.SendQueue <= 0 {
		t.WebSocket.SendQueue = d.WebSocket.SendQueue
	}
}

func (t Tuning) Validate() error {
	t.Normalize()
	if t.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if t.PatternsDir == "" {
		return fmt.Errorf("patterns_dir must not be empty")
	}
	if t.SavesDir == "" {
		return fmt.Errorf("saves_dir must not be empty")
	}
	q := t.DefaultQuilt
	if q.BlocksAcross <= 0 || q.BlocksDown <= 0 {
		return fmt.Errorf("default_quilt blocks_across and blocks_down must be > 0")
	}
	if q.BlocksAcross > quilt.MaxSlots/q.BlocksDown {
		return fmt.Errorf("default_quilt must have at most %d slots", quilt.MaxSlots)
	}
	if q.BlockSize <= 0 {
		return fmt.Errorf("default_quilt block_size must be > 0")
	}
	return nil
}

// Colours returns the default fabric colours, nil where unset.
func (q QuiltDefaults) Colours() (a, b *string) {
	if q.FabricA != "" {
		s := q.FabricA
		a = &s
	}
	if q.FabricB != "" {
		s := q.FabricB
		b = &s
	}
	return a, b
}
