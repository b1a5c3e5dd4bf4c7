package quilt

import (
	"fmt"
	"math"
)

const (
	BindingWidth = 2.5
	// BackingOverage is added to each backing dimension (1.5" per side).
	BackingOverage = 3
	// BindingSlack covers corners and the join.
	BindingSlack = 10
	// MaxSlots bounds blocksAcross*blocksDown.
	MaxSlots = 10000
)

// Quilt is a fixed grid of block slots. Slot i maps to row i/across,
// column i%across. The slot count never changes after New.
//
// A Quilt is not safe for concurrent mutation.
type Quilt struct {
	across    int
	down      int
	blockSize float64
	blocks    []*Block
	colours   [2]*string

	patterns PatternSource
}

// New returns an empty across x down quilt of blockSize-inch blocks.
func New(src PatternSource, across, down int, blockSize float64) (*Quilt, error) {
	if !gridFits(across, down) || blockSize <= 0 {
		return nil, fmt.Errorf("%w: %dx%d blocks of %v", ErrIllegalQuiltSize, across, down, blockSize)
	}
	return &Quilt{
		across:    across,
		down:      down,
		blockSize: blockSize,
		blocks:    make([]*Block, across*down),
		patterns:  src,
	}, nil
}

// gridFits reports whether an across x down grid is positive and holds at
// most MaxSlots slots. The product is never formed before the bound check.
func gridFits(across, down int) bool {
	return across > 0 && down > 0 && across <= MaxSlots/down
}

// AttachPatterns sets the pattern source used by AddBlock. Decoded quilts
// start without one.
func (q *Quilt) AttachPatterns(src PatternSource) { q.patterns = src }

func (q *Quilt) BlocksAcross() int { return q.across }
func (q *Quilt) BlocksDown() int { return q.down }
func (q *Quilt) TotalBlocks() int { return q.across * q.down }
func (q *Quilt) BlockSize() float64 { return q.blockSize }
func (q *Quilt) Width() float64 { return float64(q.across) * q.blockSize }
func (q *Quilt) Length() float64 { return float64(q.down) * q.blockSize }

// Blocks returns a copy of the slots; empty slots are nil.
func (q *Quilt) Blocks() []*Block {
	out := make([]*Block, len(q.blocks))
	for i, b := range q.blocks {
		out[i] = b.clone()
	}
	return out
}

func (q *Quilt) BlockAt(slot int) (*Block, error) {
	if err := q.checkSlot(slot); err != nil {
		return nil, err
	}
	return q.blocks[slot].clone(), nil
}

func (q *Quilt) SlotPosition(slot int) (row, col int, err error) {
	if err := q.checkSlot(slot); err != nil {
		return 0, 0, err
	}
	return slot / q.across, slot % q.across, nil
}

func (q *Quilt) FabricColours() [2]*string {
	var out [2]*string
	for i, c := range q.colours {
		if c != nil {
			v := *c
			out[i] = &v
		}
	}
	return out
}

func (q *Quilt) SetFabricColours(a, b *string) {
	q.colours = [2]*string{copyString(a), copyString(b)}
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func (q *Quilt) checkSlot(slot int) error {
	if slot < 0 || slot >= len(q.blocks) {
		return fmt.Errorf("%w: slot %d not in [0, %d)", ErrSlotOutOfBounds, slot, len(q.blocks))
	}
	return nil
}

// AddBlock builds blockType at the quilt's block size and puts it in slot,
// replacing whatever was there.
func (q *Quilt) AddBlock(blockType string, slot int) error {
	if err := q.checkSlot(slot); err != nil {
		return err
	}
	b, err := NewBlock(q.patterns, blockType, q.blockSize)
	if err != nil {
		return err
	}
	q.blocks[slot] = b
	return nil
}

// RemoveBlock empties slot. Emptying an empty slot is not an error.
func (q *Quilt) RemoveBlock(slot int) error {
	if err := q.checkSlot(slot); err != nil {
		return err
	}
	q.blocks[slot] = nil
	return nil
}

// Resize rescales every block to blockSize without changing the grid.
func (q *Quilt) Resize(blockSize float64) error {
	if blockSize <= 0 {
		return fmt.Errorf("%w: block size %v", ErrIllegalQuiltSize, blockSize)
	}
	q.blockSize = blockSize
	for _, b := range q.blocks {
		if b != nil {
			b.finishedSize = blockSize
		}
	}
	return nil
}

func (q *Quilt) CountPatches(k Kind) int {
	n := 0
	for _, b := range q.blocks {
		if b != nil {
			n += b.CountPatches(k)
		}
	}
	return n
}

// CalculateFabric is the cut area of fabric f over all blocks, rounded up
// to the next square inch.
func (q *Quilt) CalculateFabric(f Fabric) float64 {
	total := 0.0
	for _, b := range q.blocks {
		if b != nil {
			total += b.CalculateFabric(f)
		}
	}
	return math.Ceil(total)
}

func (q *Quilt) CalculateTotalBacking() float64 {
	return math.Ceil((q.Length() + BackingOverage) * (q.Width() + BackingOverage))
}

func (q *Quilt) CalculateBindingLength() float64 {
	return math.Ceil(2*q.Length() + 2*q.Width() + BindingSlack)
}

func (q *Quilt) CalculateTotalBinding() float64 {
	return math.Ceil(q.CalculateBindingLength() * BindingWidth)
}
