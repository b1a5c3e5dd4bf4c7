package quilt

import "errors"

var (
	ErrIllegalQuiltSize = errors.New("illegal quilt size")
	ErrSlotOutOfBounds  = errors.New("slot out of bounds")
	ErrBlockUnavailable = errors.New("block unavailable")
	ErrInvalidPatch     = errors.New("invalid patch")
	// ErrDecode marks a document that parsed as JSON but does not describe
	// a valid quilt, block or patch.
	ErrDecode = errors.New("decode")
)
