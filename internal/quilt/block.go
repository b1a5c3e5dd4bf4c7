package quilt

import (
	"errors"
	"fmt"
)

const (
	// PatchesPerSide is the edge length of a block's patch grid.
	PatchesPerSide  = 3
	PatchesPerBlock = PatchesPerSide * PatchesPerSide
)

// PatternSource resolves a block name to its unscaled patch layout. The
// returned slice is owned by the caller.
type PatternSource interface {
	Pattern(blockType string) ([]Patch, error)
}

// Block is a named 3x3 arrangement of patches. Patches are stored row-major:
// index i sits at row i/3, column i%3.
type Block struct {
	blockType    string
	finishedSize float64
	patches      [PatchesPerBlock]Patch
}

// NewBlock builds blockType from src at the given finished size.
func NewBlock(src PatternSource, blockType string, finishedSize float64) (*Block, error) {
	if finishedSize <= 0 {
		return nil, fmt.Errorf("%w: block size %v", ErrIllegalQuiltSize, finishedSize)
	}
	if src == nil {
		return nil, fmt.Errorf("%w: %q: no pattern source", ErrBlockUnavailable, blockType)
	}
	pattern, err := src.Pattern(blockType)
	if errors.Is(err, ErrBlockUnavailable) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrBlockUnavailable, blockType, err)
	}
	if len(pattern) != PatchesPerBlock {
		return nil, fmt.Errorf("%w: %q has %d patches", ErrBlockUnavailable, blockType, len(pattern))
	}
	b := &Block{blockType: blockType, finishedSize: finishedSize}
	for i, p := range pattern {
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("%w: %q patch %d: %v", ErrBlockUnavailable, blockType, i, err)
		}
		b.patches[i] = p
	}
	return b, nil
}

func (b *Block) BlockType() string { return b.blockType }
func (b *Block) FinishedSize() float64 { return b.finishedSize }
func (b *Block) FinishedPatchSize() float64 {
	return b.finishedSize / PatchesPerSide
}

// Patches returns the patches in row-major order.
func (b *Block) Patches() []Patch {
	out := make([]Patch, PatchesPerBlock)
	copy(out, b.patches[:])
	return out
}

func (b *Block) PatchAt(row, col int) (Patch, bool) {
	if row < 0 || row >= PatchesPerSide || col < 0 || col >= PatchesPerSide {
		return Patch{}, false
	}
	return b.patches[row*PatchesPerSide+col], true
}

// Resize rescales the block; its composition is unchanged.
func (b *Block) Resize(finishedSize float64) error {
	if finishedSize <= 0 {
		return fmt.Errorf("%w: block size %v", ErrIllegalQuiltSize, finishedSize)
	}
	b.finishedSize = finishedSize
	return nil
}

func (b *Block) CountPatches(k Kind) int {
	n := 0
	for _, p := range b.patches {
		if p.kind == k {
			n++
		}
	}
	return n
}

func (b *Block) CalculateFabric(f Fabric) float64 {
	s := b.FinishedPatchSize()
	total := 0.0
	for _, p := range b.patches {
		total += p.CalculateFabric(f, s)
	}
	return total
}

func (b *Block) clone() *Block {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

// Equal reports whether two blocks have the same type, size and patches.
func (b *Block) Equal(o *Block) bool {
	if b == nil || o == nil {
		return b == o
	}
	if b.blockType != o.blockType || b.finishedSize != o.finishedSize {
		return false
	}
	for i := range b.patches {
		if !b.patches[i].Equal(o.patches[i]) {
			return false
		}
	}
	return true
}
