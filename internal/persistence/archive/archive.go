// Package archive keeps earlier versions of a save file. Before a save is
// overwritten its current contents are copied to
// <saves>/archive/<name>/<timestamp>-<file>, with a meta.json describing the
// newest copy.
package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	DirName  = "archive"
	metaName = "meta.json"
	stampFmt = "20060102T150405.000000000Z"
)

type Meta struct {
	Source     string `json:"source"`
	Archived   string `json:"archived"`
	Digest     string `json:"digest"`
	ArchivedAt string `json:"archived_at"`
}

// Dir is where earlier versions of the save at path are kept.
func Dir(path string) string {
	base := filepath.Base(path)
	return filepath.Join(filepath.Dir(path), DirName, strings.TrimSuffix(base, fullExt(base)))
}

func fullExt(name string) string {
	if i := strings.Index(name, "."); i > 0 {
		return name[i:]
	}
	return ""
}

// ArchiveSave copies the file at path aside if it exists. It returns the
// archived path and true when a copy was made, and prunes all but the keep
// newest copies when keep > 0.
func ArchiveSave(path string, keep int, now time.Time) (archivedPath string, archived bool, err error) {
	in, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	defer in.Close()

	dir := Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, err
	}
	dst := filepath.Join(dir, fmt.Sprintf("%s-%s", now.UTC().Format(stampFmt), filepath.Base(path)))
	digest, err := copyTo(dst, in)
	if err != nil {
		return "", false, err
	}

	meta := Meta{
		Source:     path,
		Archived:   filepath.Base(dst),
		Digest:     digest,
		ArchivedAt: now.UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(dir, metaName), b, 0o644)
	}

	if keep > 0 {
		if err := prune(dir, keep); err != nil {
			return dst, true, err
		}
	}
	return dst, true, nil
}

// List returns the archived copies of the save at path, oldest first.
func List(path string) ([]string, error) {
	dir := Dir(path)
	ents, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		if e.IsDir() || e.Name() == metaName {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func prune(dir string, keep int) error {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var copies []string
	for _, e := range ents {
		if !e.IsDir() && e.Name() != metaName {
			copies = append(copies, e.Name())
		}
	}
	sort.Strings(copies)
	var errs []error
	for len(copies) > keep {
		errs = append(errs, os.Remove(filepath.Join(dir, copies[0])))
		copies = copies[1:]
	}
	return errors.Join(errs...)
}

func copyTo(dst string, in io.Reader) (string, error) {
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer func() { _ = out.Close() }()

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(out, h), in); err != nil {
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
