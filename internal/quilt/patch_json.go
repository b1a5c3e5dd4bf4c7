package quilt

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Discriminator tags stored in the "gsonType" field. The field name and
// tags are kept stable so existing save files keep loading.
const (
	tagSquare             = "a"
	tagHalfSquare         = "b"
	tagHalfSquareTriangle = "c"
)

var kindTags = map[Kind]string{
	KindSquare:             tagSquare,
	KindHalfSquare:         tagHalfSquare,
	KindHalfSquareTriangle: tagHalfSquareTriangle,
}

type patchWire struct {
	Type     *string   `json:"gsonType"`
	Rotation *int      `json:"rotation"`
	Fabrics  []*string `json:"fabrics"`
}

var patchDecoders = map[string]func(patchWire) (Patch, error){
	tagSquare:             func(w patchWire) (Patch, error) { return decodePatch(KindSquare, w) },
	tagHalfSquare:         func(w patchWire) (Patch, error) { return decodePatch(KindHalfSquare, w) },
	tagHalfSquareTriangle: func(w patchWire) (Patch, error) { return decodePatch(KindHalfSquareTriangle, w) },
}

func decodePatch(k Kind, w patchWire) (Patch, error) {
	if w.Rotation == nil {
		return Patch{}, fmt.Errorf("%w: %s patch missing rotation", ErrDecode, k)
	}
	if len(w.Fabrics) != 2 {
		return Patch{}, fmt.Errorf("%w: %s patch needs 2 fabric slots, got %d", ErrDecode, k, len(w.Fabrics))
	}
	p := Patch{kind: k, rotation: Rotation(*w.Rotation)}
	for i, f := range w.Fabrics {
		if f != nil {
			v := Fabric(*f)
			p.fabrics[i] = &v
		}
	}
	if err := p.validate(); err != nil {
		return Patch{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return p, nil
}

func (p Patch) MarshalJSON() ([]byte, error) {
	tag, ok := kindTags[p.kind]
	if !ok {
		return nil, fmt.Errorf("%w: kind %d", ErrInvalidPatch, int(p.kind))
	}
	rot := int(p.rotation)
	w := patchWire{Type: &tag, Rotation: &rot, Fabrics: make([]*string, 2)}
	for i, f := range p.fabrics {
		if f != nil {
			s := string(*f)
			w.Fabrics[i] = &s
		}
	}
	return json.Marshal(w)
}

func (p *Patch) UnmarshalJSON(b []byte) error {
	var w patchWire
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("%w: patch: %v", ErrDecode, err)
	}
	if w.Type == nil {
		return fmt.Errorf("%w: patch missing gsonType", ErrDecode)
	}
	dec, ok := patchDecoders[*w.Type]
	if !ok {
		return fmt.Errorf("%w: unknown patch gsonType %q", ErrDecode, *w.Type)
	}
	np, err := dec(w)
	if err != nil {
		return err
	}
	*p = np
	return nil
}

// EncodePattern renders an unscaled pattern the way pattern files store it.
func EncodePattern(patches []Patch) ([]byte, error) {
	if len(patches) != PatchesPerBlock {
		return nil, fmt.Errorf("%w: pattern has %d patches", ErrInvalidPatch, len(patches))
	}
	return json.MarshalIndent(patches, "", "  ")
}

// DecodePattern parses a pattern file body: exactly nine patches.
func DecodePattern(b []byte) ([]Patch, error) {
	var patches []Patch
	if err := json.Unmarshal(b, &patches); err != nil {
		return nil, asDecodeErr("pattern", err)
	}
	if len(patches) != PatchesPerBlock {
		return nil, fmt.Errorf("%w: pattern has %d patches, want %d", ErrDecode, len(patches), PatchesPerBlock)
	}
	return patches, nil
}

type blockWire struct {
	BlockType    string  `json:"blockType"`
	FinishedSize float64 `json:"finishedSize"`
	Patches      []Patch `json:"patches"`
}

func (b *Block) MarshalJSON() ([]byte, error) {
	return json.Marshal(blockWire{
		BlockType:    b.blockType,
		FinishedSize: b.finishedSize,
		Patches:      b.patches[:],
	})
}

func (b *Block) UnmarshalJSON(data []byte) error {
	var w blockWire
	if err := json.Unmarshal(data, &w); err != nil {
		return asDecodeErr("block", err)
	}
	if w.BlockType == "" {
		return fmt.Errorf("%w: block missing blockType", ErrDecode)
	}
	if w.FinishedSize <= 0 {
		return fmt.Errorf("%w: block %q finishedSize %v", ErrDecode, w.BlockType, w.FinishedSize)
	}
	if len(w.Patches) != PatchesPerBlock {
		return fmt.Errorf("%w: block %q has %d patches", ErrDecode, w.BlockType, len(w.Patches))
	}
	nb := Block{blockType: w.BlockType, finishedSize: w.FinishedSize}
	copy(nb.patches[:], w.Patches)
	*b = nb
	return nil
}

type quiltWire struct {
	NumBlocksAcross int       `json:"numBlocksAcross"`
	NumBlocksDown   int       `json:"numBlocksDown"`
	BlockSize       float64   `json:"blockSize"`
	FabricColours   []*string `json:"fabricColours"`
	Blocks          []*Block  `json:"blocks"`
}

func (q *Quilt) MarshalJSON() ([]byte, error) {
	w := quiltWire{
		NumBlocksAcross: q.across,
		NumBlocksDown:   q.down,
		BlockSize:       q.blockSize,
		FabricColours:   []*string{q.colours[0], q.colours[1]},
		Blocks:          q.blocks,
	}
	return json.Marshal(w)
}

// UnmarshalJSON rebuilds a quilt without a pattern source; call
// AttachPatterns before adding blocks to it.
func (q *Quilt) UnmarshalJSON(data []byte) error {
	var w quiltWire
	if err := json.Unmarshal(data, &w); err != nil {
		return asDecodeErr("quilt", err)
	}
	if !gridFits(w.NumBlocksAcross, w.NumBlocksDown) || w.BlockSize <= 0 {
		return fmt.Errorf("%w: quilt size %dx%d @ %v", ErrDecode, w.NumBlocksAcross, w.NumBlocksDown, w.BlockSize)
	}
	total := w.NumBlocksAcross * w.NumBlocksDown
	if len(w.Blocks) != total {
		return fmt.Errorf("%w: quilt has %d slots, want %d", ErrDecode, len(w.Blocks), total)
	}
	if len(w.FabricColours) != 2 {
		return fmt.Errorf("%w: quilt needs 2 fabric colours, got %d", ErrDecode, len(w.FabricColours))
	}
	for i, b := range w.Blocks {
		if b != nil && b.finishedSize != w.BlockSize {
			return fmt.Errorf("%w: slot %d block size %v, quilt block size %v", ErrDecode, i, b.finishedSize, w.BlockSize)
		}
	}
	*q = Quilt{
		across:    w.NumBlocksAcross,
		down:      w.NumBlocksDown,
		blockSize: w.BlockSize,
		blocks:    w.Blocks,
		colours:   [2]*string{w.FabricColours[0], w.FabricColours[1]},
		patterns:  q.patterns,
	}
	return nil
}

func asDecodeErr(what string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrDecode) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrDecode, what, err)
}
