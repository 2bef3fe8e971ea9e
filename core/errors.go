package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDemand = errors.New("invalid demand")
	ErrOutOfRange    = errors.New("time step out of range")
	ErrInvalidTrack  = errors.New("invalid trajectory")
	ErrDuplicateID   = errors.New("duplicate identifier")
	ErrLimitExceeded = errors.New("configured limit exceeded")
	ErrEmptyID       = errors.New("empty identifier")
)

// LedgerInconsistencyError is the panic value raised when allocate and
// deallocate calls are not paired in LIFO order. It signals a bug in the
// caller, never bad input.
type LedgerInconsistencyError struct {
	SatelliteID   string
	ApplicationID string
	Reason        string
}

func (e *LedgerInconsistencyError) Error() string {
	return fmt.Sprintf("ledger inconsistency on satellite %q (application %q): %s", e.SatelliteID, e.ApplicationID, e.Reason)
}
