// Package patterns builds the patch layouts of the blocks that ship with
// Patchwork and writes them out as catalog pattern files.
package patterns

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/exp/maps"

	"patchwork.studio/internal/catalogs"
	"patchwork.studio/internal/quilt"
)

const (
	GreekSquareName    = "greek square"
	CheckerboardName   = "checkerboard"
	FriendshipStarName = "friendship star"
)

// builder collects patches and keeps the first construction error.
type builder struct {
	patches []quilt.Patch
	err     error
}

func (b *builder) add(p quilt.Patch, err error) *builder {
	if b.err == nil && err != nil {
		b.err = err
	}
	b.patches = append(b.patches, p)
	return b
}

func (b *builder) square(f quilt.Fabric) *builder { return b.add(quilt.NewSquare(f)) }
func (b *builder) half(r quilt.Rotation) *builder { return b.add(quilt.NewHalfSquare(r)) }
func (b *builder) triangle(r quilt.Rotation) *builder {
	return b.add(quilt.NewHalfSquareTriangle(r))
}

func (b *builder) done() []quilt.Patch {
	if b.err != nil {
		// Layouts below are fixed; a failure is a programming error.
		panic(fmt.Sprintf("patterns: %v", b.err))
	}
	return b.patches
}

// GreekSquare: triangle corners, half-square edges, fabric B centre.
func GreekSquare() []quilt.Patch {
	b := &builder{}
	b.triangle(0).half(270).triangle(90)
	b.half(180).square(quilt.FabricB).half(0)
	b.triangle(270).half(270).triangle(180)
	return b.done()
}

// Checkerboard alternates A and B squares starting with A.
func Checkerboard() []quilt.Patch {
	b := &builder{}
	for i := 0; i < quilt.PatchesPerBlock; i++ {
		if i%2 == 0 {
			b.square(quilt.FabricA)
		} else {
			b.square(quilt.FabricB)
		}
	}
	return b.done()
}

// FriendshipStar: fabric A corners, fabric B centre, triangle points.
func FriendshipStar() []quilt.Patch {
	b := &builder{}
	b.square(quilt.FabricA).triangle(270).square(quilt.FabricA)
	b.triangle(180).square(quilt.FabricB).triangle(0)
	b.square(quilt.FabricA).triangle(90).square(quilt.FabricA)
	return b.done()
}

// Builtin maps each shipped block name to its layout.
func Builtin() map[string][]quilt.Patch {
	return map[string][]quilt.Patch{
		GreekSquareName:    GreekSquare(),
		CheckerboardName:   Checkerboard(),
		FriendshipStarName: FriendshipStar(),
	}
}

// WriteFiles writes one pattern file per built-in block into dir and
// returns the paths written.
func WriteFiles(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	builtin := Builtin()
	names := maps.Keys(builtin)
	sort.Strings(names)
	var paths []string
	for _, name := range names {
		patches := builtin[name]
		b, err := quilt.EncodePattern(patches)
		if err != nil {
			return paths, fmt.Errorf("%s: %w", name, err)
		}
		p := filepath.Join(dir, catalogs.FileName(name))
		if err := os.WriteFile(p, append(b, '\n'), 0o644); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}
