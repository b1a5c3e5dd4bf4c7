package quilt

import (
	"fmt"
	"strings"
)

// Listing renders one line per slot, numbered from 1, e.g.
//
//	Slot 3 (row 2, col 1): friendship star
func (q *Quilt) Listing() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Quilt %d x %d, %v\" blocks\n", q.across, q.down, q.blockSize)
	for i, blk := range q.blocks {
		name := "empty"
		if blk != nil {
			name = blk.blockType
		}
		fmt.Fprintf(&b, "Slot %d (row %d, col %d): %s\n", i+1, i/q.across+1, i%q.across+1, name)
	}
	return b.String()
}
