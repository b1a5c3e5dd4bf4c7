package quilt

import "fmt"

// SeamAllowance is added to every raw edge of a cut piece (inches).
const SeamAllowance = 0.25

// Kind is the closed set of patch shapes.
type Kind int

const (
	KindSquare Kind = iota + 1
	KindHalfSquare
	KindHalfSquareTriangle
)

var kindNames = map[Kind]string{
	KindSquare:             "Square",
	KindHalfSquare:         "HalfSquare",
	KindHalfSquareTriangle: "HalfSquareTriangle",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// Kinds lists every patch kind in declaration order.
func Kinds() []Kind {
	return []Kind{KindSquare, KindHalfSquare, KindHalfSquareTriangle}
}

// ParseKind maps a kind name back to its Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidPatch, s)
}

// Rotation is a quarter-turn in degrees.
type Rotation int

func (r Rotation) Valid() bool {
	switch r {
	case 0, 90, 180, 270:
		return true
	}
	return false
}

type Fabric string

const (
	FabricA Fabric = "A"
	FabricB Fabric = "B"
)

func (f Fabric) Valid() bool { return f == FabricA || f == FabricB }

// Patch is one cell of a block. It carries no size; callers pass the
// finished side length when asking for areas.
//
// Square patches hold exactly one fabric, in slot 0 for A or slot 1 for B.
// Half squares and half-square triangles always hold A then B.
type Patch struct {
	kind     Kind
	rotation Rotation
	fabrics  [2]*Fabric
}

// NewSquare returns a single-fabric square of fabric f.
func NewSquare(f Fabric) (Patch, error) {
	if !f.Valid() {
		return Patch{}, fmt.Errorf("%w: square fabric %q", ErrInvalidPatch, f)
	}
	p := Patch{kind: KindSquare}
	v := f
	if f == FabricA {
		p.fabrics[0] = &v
	} else {
		p.fabrics[1] = &v
	}
	return p, nil
}

// NewHalfSquare returns a square split into two rectangles, A then B.
func NewHalfSquare(r Rotation) (Patch, error) {
	return newTwoFabric(KindHalfSquare, r)
}

// NewHalfSquareTriangle returns a square split on the diagonal, A then B.
func NewHalfSquareTriangle(r Rotation) (Patch, error) {
	return newTwoFabric(KindHalfSquareTriangle, r)
}

func newTwoFabric(k Kind, r Rotation) (Patch, error) {
	if !r.Valid() {
		return Patch{}, fmt.Errorf("%w: %s rotation %d", ErrInvalidPatch, k, r)
	}
	a, b := FabricA, FabricB
	return Patch{kind: k, rotation: r, fabrics: [2]*Fabric{&a, &b}}, nil
}

func (p Patch) Kind() Kind { return p.kind }
func (p Patch) Rotation() Rotation { return p.rotation }

// Fabrics returns a copy of both fabric slots; an empty slot is nil.
func (p Patch) Fabrics() [2]*Fabric {
	var out [2]*Fabric
	for i, f := range p.fabrics {
		if f != nil {
			v := *f
			out[i] = &v
		}
	}
	return out
}

func (p Patch) ContainsFabric(f Fabric) bool {
	for _, slot := range p.fabrics {
		if slot != nil && *slot == f {
			return true
		}
	}
	return false
}

// UnfinishedArea is the cut area in square inches of one piece of the
// patch at finished side length s: the whole square, one of the two
// rectangles, or one of the two triangles.
func (p Patch) UnfinishedArea(s float64) float64 {
	if s <= 0 {
		return 0
	}
	switch p.kind {
	case KindSquare:
		u := s + 2*SeamAllowance
		return u * u
	case KindHalfSquare:
		return (s + 2*SeamAllowance) * (s/2 + 2*SeamAllowance)
	case KindHalfSquareTriangle:
		// Diagonal cuts need an extra inch on the starting square.
		sq := s + 2*SeamAllowance + 1
		return sq * sq / 2
	}
	return 0
}

func (p Patch) CalculateFabric(f Fabric, s float64) float64 {
	if !p.ContainsFabric(f) {
		return 0
	}
	return p.UnfinishedArea(s)
}

// validate checks the slot layout for the patch kind.
func (p Patch) validate() error {
	switch p.kind {
	case KindSquare:
		if p.rotation != 0 {
			return fmt.Errorf("%w: square rotation %d", ErrInvalidPatch, p.rotation)
		}
		a, b := p.fabrics[0], p.fabrics[1]
		switch {
		case a != nil && b == nil:
			if *a != FabricA {
				return fmt.Errorf("%w: square slot 0 holds %q", ErrInvalidPatch, *a)
			}
		case a == nil && b != nil:
			if *b != FabricB {
				return fmt.Errorf("%w: square slot 1 holds %q", ErrInvalidPatch, *b)
			}
		default:
			return fmt.Errorf("%w: square needs exactly one fabric", ErrInvalidPatch)
		}
	case KindHalfSquare, KindHalfSquareTriangle:
		if !p.rotation.Valid() {
			return fmt.Errorf("%w: %s rotation %d", ErrInvalidPatch, p.kind, p.rotation)
		}
		a, b := p.fabrics[0], p.fabrics[1]
		if a == nil || b == nil || *a != FabricA || *b != FabricB {
			return fmt.Errorf("%w: %s fabrics must be [A, B]", ErrInvalidPatch, p.kind)
		}
	default:
		return fmt.Errorf("%w: kind %d", ErrInvalidPatch, int(p.kind))
	}
	return nil
}

// Equal compares kind, rotation and slot contents.
func (p Patch) Equal(o Patch) bool {
	if p.kind != o.kind || p.rotation != o.rotation {
		return false
	}
	for i := range p.fabrics {
		a, b := p.fabrics[i], o.fabrics[i]
		if (a == nil) != (b == nil) {
			return false
		}
		if a != nil && *a != *b {
			return false
		}
	}
	return true
}
