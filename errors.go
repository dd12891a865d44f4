package markupcheck

import (
	"fmt"
	"sync/atomic"
)

// Mode identifies which of the two output surfaces an exchange acquired.
type Mode uint8

const (
	// ModeNone means no output surface has been acquired yet.
	ModeNone Mode = iota
	// ModeStream is the byte-oriented surface.
	ModeStream
	// ModeWriter is the character-oriented surface.
	ModeWriter
)

func (m Mode) String() string {
	switch m {
	case ModeStream:
		return "output stream"
	case ModeWriter:
		return "text writer"
	default:
		return "none"
	}
}

// callSeq hands out process-wide ids for acquisition and close sites, so a
// contract violation can name the call it conflicts with without capturing
// stack traces.
var callSeq atomic.Uint64

func nextCallID() uint64 { return callSeq.Add(1) }

// ModeConflictError reports a request for one output surface after the
// other one was already acquired for the same exchange. It is a programming
// error in the handler and is never swallowed.
type ModeConflictError struct {
	Requested Mode
	Acquired  Mode
	// AcquiredAt is the call id of the acquisition the request conflicts
	// with.
	AcquiredAt uint64
}

func (e *ModeConflictError) Error() string {
	return fmt.Sprintf("%s requested, but %s was already acquired by call #%d",
		e.Requested, e.Acquired, e.AcquiredAt)
}

// WriteAfterCloseError reports a write through an output surface whose
// exchange was already closed.
type WriteAfterCloseError struct {
	Mode Mode
	// ClosedAt is the call id of the Close that ended the exchange.
	ClosedAt uint64
}

func (e *WriteAfterCloseError) Error() string {
	return fmt.Sprintf("write on %s after close (closed by call #%d)", e.Mode, e.ClosedAt)
}

// CacheMissError reports a validation-result lookup for an id that was
// never allocated or has already been overwritten.
type CacheMissError struct {
	ID     int
	Oldest int
	Newest int
}

func (e *CacheMissError) Error() string {
	if e.Newest == 0 {
		return fmt.Sprintf("validation result %d is not cached (no results yet)", e.ID)
	}
	return fmt.Sprintf("validation result %d is no longer cached (retained: %d..%d)",
		e.ID, e.Oldest, e.Newest)
}
