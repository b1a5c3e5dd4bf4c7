package protocol

import (
	"errors"

	"patchwork.studio/internal/persistence/savefile"
	"patchwork.studio/internal/quilt"
)

const (
	// Transport validation.
	ErrBadRequest = "E_BAD_REQUEST"

	// Quilt model.
	ErrIllegalQuiltSize = "E_ILLEGAL_QUILT_SIZE"
	ErrSlotOutOfBounds  = "E_SLOT_OUT_OF_BOUNDS"
	ErrBlockUnavailable = "E_BLOCK_UNAVAILABLE"
	ErrNoQuilt          = "E_NO_QUILT"

	// Persistence.
	ErrNoSavedQuilt = "E_NO_SAVED_QUILT"
	ErrDecode       = "E_DECODE"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:       {},
	ErrIllegalQuiltSize: {},
	ErrSlotOutOfBounds:  {},
	ErrBlockUnavailable: {},
	ErrNoQuilt:          {},
	ErrNoSavedQuilt:     {},
	ErrDecode:           {},
	ErrInternal:         {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// CodeFor maps an error from the quilt or persistence layers to its code.
func CodeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, quilt.ErrIllegalQuiltSize):
		return ErrIllegalQuiltSize
	case errors.Is(err, quilt.ErrSlotOutOfBounds):
		return ErrSlotOutOfBounds
	case errors.Is(err, quilt.ErrBlockUnavailable):
		return ErrBlockUnavailable
	case errors.Is(err, savefile.ErrNoSavedQuilt):
		return ErrNoSavedQuilt
	case errors.Is(err, quilt.ErrDecode), errors.Is(err, quilt.ErrInvalidPatch):
		return ErrDecode
	}
	return ErrInternal
}

func NewError(err error) ErrorMsg {
	return ErrorMsg{Type: TypeError, Code: CodeFor(err), Message: err.Error()}
}
