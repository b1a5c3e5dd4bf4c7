// Package catalogs holds the block pattern registry. A Catalog is built once
// from a directory of pattern files and is read-only afterwards; it is safe
// for concurrent use.
package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/exp/maps"

	"patchwork.studio/internal/quilt"
	"patchwork.studio/schemas"
)

const patternExt = ".json"

type Catalog struct {
	dir     string
	entries map[string]*entry
	log     *log.Logger
}

type entry struct {
	name string
	path string

	once    sync.Once
	pattern []quilt.Patch
	digest  string
	err     error
}

// Load scans dir for pattern files. A missing or unreadable directory gives
// an empty catalog and a logged warning rather than an error, so the rest of
// the program can still open saved quilts.
func Load(dir string, logger *log.Logger) *Catalog {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	c := &Catalog{dir: dir, entries: map[string]*entry{}, log: logger}

	info, err := os.Stat(dir)
	if err != nil {
		logger.Printf("catalog: %v; no blocks available", err)
		return c
	}
	if !info.IsDir() {
		logger.Printf("catalog: %s is not a directory; no blocks available", dir)
		return c
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		logger.Printf("catalog: read %s: %v; no blocks available", dir, err)
		return c
	}
	for _, f := range files {
		if !f.Type().IsRegular() || !strings.EqualFold(filepath.Ext(f.Name()), patternExt) {
			continue
		}
		name := BlockName(f.Name())
		if name == "" {
			continue
		}
		if prev, dup := c.entries[name]; dup {
			logger.Printf("catalog: %s and %s both name %q; keeping the first", filepath.Base(prev.path), f.Name(), name)
			continue
		}
		c.entries[name] = &entry{name: name, path: filepath.Join(dir, f.Name())}
	}
	return c
}

// BlockName maps a pattern file name to its block name:
// "friendship-star.json" is "friendship star".
func BlockName(fileName string) string {
	base := filepath.Base(fileName)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(base, "-", " ")
}

// FileName is the inverse of BlockName.
func FileName(blockName string) string {
	return strings.ReplaceAll(blockName, " ", "-") + patternExt
}

func (c *Catalog) Dir() string { return c.dir }
func (c *Catalog) Len() int { return len(c.entries) }

func (c *Catalog) IsAvailable(name string) bool {
	_, ok := c.entries[name]
	return ok
}

// Names lists the block names in sorted order.
func (c *Catalog) Names() []string {
	names := maps.Keys(c.entries)
	sort.Strings(names)
	return names
}

// Pattern returns a copy of the unscaled pattern for name. The file is read
// and checked the first time it is asked for; the outcome is cached.
func (c *Catalog) Pattern(name string) ([]quilt.Patch, error) {
	e, err := c.load(name)
	if err != nil {
		return nil, err
	}
	out := make([]quilt.Patch, len(e.pattern))
	copy(out, e.pattern)
	return out, nil
}

// Digest is the sha256 of the pattern file as it was read.
func (c *Catalog) Digest(name string) (string, error) {
	e, err := c.load(name)
	if err != nil {
		return "", err
	}
	return e.digest, nil
}

// Preload reads every pattern file and reports every failure.
func (c *Catalog) Preload() error {
	var errs []error
	for _, name := range c.Names() {
		if _, err := c.load(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Catalog) load(name string) (*entry, error) {
	e, ok := c.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q not in catalog", quilt.ErrBlockUnavailable, name)
	}
	e.once.Do(func() {
		e.pattern, e.digest, e.err = readPattern(e.path)
		if e.err != nil {
			c.log.Printf("catalog: %q: %v", name, e.err)
		}
	})
	if e.err != nil {
		return nil, fmt.Errorf("%w: %q: %v", quilt.ErrBlockUnavailable, name, e.err)
	}
	return e, nil
}

func readPattern(path string) ([]quilt.Patch, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	if err := schemas.ValidatePattern(raw); err != nil {
		return nil, "", fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	patches, err := quilt.DecodePattern(raw)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return patches, sha256Hex(raw), nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
