package domain

import (
	"errors"
	"fmt"
)

// EngineError is the unified error type for the engine.
// Each error has a numeric code and human-readable message.
type EngineError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error %d: %s", e.Code, e.Message)
}

// Is reports whether target is an EngineError with the same code, so that
// errors built with NewEngineError still match their sentinel.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewEngineError creates a new EngineError.
func NewEngineError(code int, msg string) *EngineError {
	return &EngineError{Code: code, Message: msg}
}

// WrapEngineError creates an EngineError that includes a cause.
func WrapEngineError(code int, msg string, cause error) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf("%s: %v", msg, cause)}
}

// ---- Config errors (-32010 to -32039) ----
// Unknown ids and bad catalog data. Never recovered.

var (
	ErrZoneNotFound   = &EngineError{Code: -32010, Message: "orbital zone not found"}
	ErrSystemNotFound = &EngineError{Code: -32011, Message: "star system not found"}
	ErrCatalogInvalid = &EngineError{Code: -32012, Message: "invalid catalog data"}
	ErrConfigInvalid  = &EngineError{Code: -32013, Message: "invalid configuration"}
)

// ---- Capacity / order errors (-32040 to -32069) ----

var (
	ErrCapacityExceeded      = &EngineError{Code: -32040, Message: "required delta-v exceeds available capacity"}
	ErrNoLauncher            = &EngineError{Code: -32041, Message: "bulk material transfer requires a launcher at the origin"}
	ErrInsufficientResources = &EngineError{Code: -32042, Message: "origin does not hold the requested quantity"}
	ErrInvalidOrder          = &EngineError{Code: -32043, Message: "invalid transfer order"}
)

// ---- State errors (-32070 to -32099) ----
// Reported as warnings; the command is a no-op.

var (
	ErrTransferNotFound   = &EngineError{Code: -32070, Message: "transfer not found"}
	ErrTransferTerminal   = &EngineError{Code: -32071, Message: "transfer already in terminal state"}
	ErrInvalidTransition  = &EngineError{Code: -32072, Message: "invalid transfer status transition"}
	ErrSystemNotColonized = &EngineError{Code: -32073, Message: "star system is not colonized"}
	ErrNonMonotonicTime   = &EngineError{Code: -32074, Message: "simulated time moved backwards"}
)

// ---- Generation errors (-32100 to -32129) ----
// Generation falls back to defaults instead of failing.

var (
	ErrUnknownSpectralClass = &EngineError{Code: -32100, Message: "unknown spectral class, using default zone count"}
)

// ---- Store / snapshot errors (-32130 to -32159) ----

var (
	ErrStoreInit        = &EngineError{Code: -32130, Message: "failed to initialize store"}
	ErrStoreQuery       = &EngineError{Code: -32131, Message: "store query failed"}
	ErrStoreWrite       = &EngineError{Code: -32132, Message: "store write failed"}
	ErrSnapshotCorrupt  = &EngineError{Code: -32134, Message: "snapshot checksum mismatch"}
	ErrSnapshotVersion  = &EngineError{Code: -32135, Message: "unsupported snapshot version"}
	ErrSnapshotNotFound = &EngineError{Code: -32136, Message: "no snapshot saved"}
)

// ---- API errors (-32160 to -32189) ----

var (
	ErrRateLimitExceeded = &EngineError{Code: -32160, Message: "rate limit exceeded"}
)

func codeIn(err error, lo, hi int) bool {
	var engErr *EngineError
	if !errors.As(err, &engErr) {
		return false
	}
	return engErr.Code <= lo && engErr.Code >= hi
}

// IsConfigError reports whether err belongs to the config error range.
func IsConfigError(err error) bool { return codeIn(err, -32010, -32039) }

// IsCapacityError reports whether err belongs to the capacity/order range.
func IsCapacityError(err error) bool { return codeIn(err, -32040, -32069) }

// IsStateError reports whether err belongs to the state error range.
func IsStateError(err error) bool { return codeIn(err, -32070, -32099) }

// CapacityError reports a delta-v shortfall for a rejected transfer order.
// All figures are km/s.
type CapacityError struct {
	RequiredKmS     float64
	AvailableKmS    float64
	EscapeKmS       float64
	HohmannKmS      float64
	ProbeKmS        float64
	MassDriverKmS   float64
	MissingLauncher bool
}

// Error implements the error interface.
func (e *CapacityError) Error() string {
	if e.MissingLauncher {
		return fmt.Sprintf("engine error %d: %s", ErrNoLauncher.Code, ErrNoLauncher.Message)
	}
	return fmt.Sprintf("engine error %d: %s (required %.2f km/s, available %.2f km/s, shortfall %.2f km/s)",
		ErrCapacityExceeded.Code, ErrCapacityExceeded.Message, e.RequiredKmS, e.AvailableKmS, e.ShortfallKmS())
}

// Unwrap exposes the sentinel so errors.Is works against the capacity codes.
func (e *CapacityError) Unwrap() error {
	if e.MissingLauncher {
		return ErrNoLauncher
	}
	return ErrCapacityExceeded
}

// ShortfallKmS is required minus available, never negative.
func (e *CapacityError) ShortfallKmS() float64 {
	if d := e.RequiredKmS - e.AvailableKmS; d > 0 {
		return d
	}
	return 0
}
