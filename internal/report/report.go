// Package report turns a quilt into fabric requirements: a plain summary,
// an xlsx cut sheet and an html bar chart.
package report

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"patchwork.studio/internal/quilt"
)

// BindingBorder is how far the bound edge extends past the pieced top on
// each side.
const BindingBorder = quilt.BindingWidth - 0.5

type PatchCount struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

type BlockCount struct {
	Name    string `json:"name"`
	Display string `json:"display"`
	Count   int    `json:"count"`
}

type Summary struct {
	BlocksAcross int     `json:"blocks_across"`
	BlocksDown   int     `json:"blocks_down"`
	BlockSize    float64 `json:"block_size"`
	Width        float64 `json:"width"`
	Length       float64 `json:"length"`
	// Finished dimensions include the binding border.
	FinishedWidth  float64 `json:"finished_width"`
	FinishedLength float64 `json:"finished_length"`

	FilledSlots int `json:"filled_slots"`
	EmptySlots  int `json:"empty_slots"`

	FabricA       float64 `json:"fabric_a"`
	FabricB       float64 `json:"fabric_b"`
	Backing       float64 `json:"backing"`
	BindingLength float64 `json:"binding_length"`
	Binding       float64 `json:"binding"`

	Colours [2]*string   `json:"fabric_colours"`
	Patches []PatchCount `json:"patches"`
	Blocks  []BlockCount `json:"blocks"`
}

// DisplayName title-cases a block name for people: "friendship star" is
// "Friendship Star".
func DisplayName(blockType string) string {
	return cases.Title(language.English).String(blockType)
}

func Summarize(q *quilt.Quilt) Summary {
	s := Summary{
		BlocksAcross:   q.BlocksAcross(),
		BlocksDown:     q.BlocksDown(),
		BlockSize:      q.BlockSize(),
		Width:          q.Width(),
		Length:         q.Length(),
		FinishedWidth:  q.Width() + 2*BindingBorder,
		FinishedLength: q.Length() + 2*BindingBorder,
		FabricA:        q.CalculateFabric(quilt.FabricA),
		FabricB:        q.CalculateFabric(quilt.FabricB),
		Backing:        q.CalculateTotalBacking(),
		BindingLength:  q.CalculateBindingLength(),
		Binding:        q.CalculateTotalBinding(),
		Colours:        q.FabricColours(),
	}
	for _, k := range quilt.Kinds() {
		s.Patches = append(s.Patches, PatchCount{Kind: k.String(), Count: q.CountPatches(k)})
	}
	counts := map[string]int{}
	for _, b := range q.Blocks() {
		if b == nil {
			s.EmptySlots++
			continue
		}
		s.FilledSlots++
		counts[b.BlockType()]++
	}
	for name, n := range counts {
		s.Blocks = append(s.Blocks, BlockCount{Name: name, Display: DisplayName(name), Count: n})
	}
	sort.Slice(s.Blocks, func(i, j int) bool { return s.Blocks[i].Name < s.Blocks[j].Name })
	return s
}

func (s Summary) patches(k quilt.Kind) int {
	for _, p := range s.Patches {
		if p.Kind == k.String() {
			return p.Count
		}
	}
	return 0
}

// Text renders the summary the way the design tool shows it.
func (s Summary) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "QUILT: %d x %d blocks of %v\", %v\" x %v\" finished\n",
		s.BlocksAcross, s.BlocksDown, s.BlockSize, s.FinishedWidth, s.FinishedLength)
	fmt.Fprintf(&b, "\nFABRIC NEEDED:\n")
	fmt.Fprintf(&b, "You need %v square inches of fabric A,\nand %v square inches of fabric B.\n", s.FabricA, s.FabricB)
	fmt.Fprintf(&b, "You need %v square inches of backing fabric,\nand %v square inches of binding fabric (%v\" of binding).\n",
		s.Backing, s.Binding, s.BindingLength)
	fmt.Fprintf(&b, "\nPATCHES NEEDED:\n")
	fmt.Fprintf(&b, "You need %d square patches, %d half-square patches, and %d half-square triangle patches.\n",
		s.patches(quilt.KindSquare), s.patches(quilt.KindHalfSquare), s.patches(quilt.KindHalfSquareTriangle))
	if len(s.Blocks) > 0 {
		fmt.Fprintf(&b, "\nBLOCKS:\n")
		for _, bc := range s.Blocks {
			fmt.Fprintf(&b, "%s: %d\n", bc.Display, bc.Count)
		}
	}
	if s.EmptySlots > 0 {
		fmt.Fprintf(&b, "%d of %d slots are empty.\n", s.EmptySlots, s.EmptySlots+s.FilledSlots)
	}
	return b.String()
}
