// Package savefile reads and writes whole quilts. Files are pretty-printed
// JSON with explicit nulls; a ".zst" suffix selects zstd compression.
package savefile

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"patchwork.studio/internal/quilt"
	"patchwork.studio/schemas"
)

// ErrNoSavedQuilt is returned by Load when path does not exist.
var ErrNoSavedQuilt = errors.New("no saved quilt")

const CompressedExt = ".zst"

func compressed(path string) bool {
	return strings.EqualFold(filepath.Ext(path), CompressedExt)
}

// Encode renders q the way Save writes it, before compression.
func Encode(q *quilt.Quilt) ([]byte, error) {
	b, err := json.MarshalIndent(q, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Decode validates and rebuilds a quilt and binds it to src.
func Decode(raw []byte, src quilt.PatternSource) (*quilt.Quilt, error) {
	if err := schemas.ValidateSave(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", quilt.ErrDecode, err)
	}
	var q quilt.Quilt
	if err := json.Unmarshal(raw, &q); err != nil {
		if errors.Is(err, quilt.ErrDecode) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", quilt.ErrDecode, err)
	}
	q.AttachPatterns(src)
	return &q, nil
}

// Save writes q to path. The data goes to a temporary file first, so an
// interrupted save leaves any previous file intact.
func Save(q *quilt.Quilt, path string) error {
	b, err := Encode(q)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := writeBody(tmp, b, compressed(path)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func writeBody(f *os.File, b []byte, zst bool) error {
	if !zst {
		_, err := f.Write(b)
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)
	if _, err := bw.Write(b); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// Load reads the quilt at path and binds it to src. A missing file gives
// ErrNoSavedQuilt; a file that does not describe a valid quilt gives
// quilt.ErrDecode and no quilt.
func Load(path string, src quilt.PatternSource) (*quilt.Quilt, error) {
	raw, err := ReadRaw(path)
	if err != nil {
		return nil, err
	}
	q, err := Decode(raw, src)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return q, nil
}

// ReadRaw returns the uncompressed JSON body stored at path.
func ReadRaw(path string) ([]byte, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoSavedQuilt, path, err)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !compressed(path) {
		return io.ReadAll(f)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, bufio.NewReaderSize(dec, 64*1024)); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", quilt.ErrDecode, path, err)
	}
	return buf.Bytes(), nil
}
