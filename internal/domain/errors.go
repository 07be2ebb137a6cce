package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy. Validation failures are rejected before any state mutation;
// not-found aborts only the local operation; defer and freeze are explicit
// outcomes, not failures.

// ValidationError reports malformed input such as unnormalized weights or a
// missing required feature.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an unknown archetype or variant id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ErrLowConfidenceDefer marks an explicit "no decision" outcome.
var ErrLowConfidenceDefer = errors.New("low confidence: decision deferred")

// ErrAnomalyFreeze marks an update suppressed by an active anomaly flag.
// Callers must still write an audit record for the suppressed attempt.
var ErrAnomalyFreeze = errors.New("update suppressed: anomaly flag active")

// ErrDriftCapExceeded marks an update suppressed because the attempted delta
// would exceed the per-cycle drift cap.
var ErrDriftCapExceeded = errors.New("update suppressed: drift cap exceeded")

// IsArmNotFound reports whether err is a NotFoundError for an archetype.
func IsArmNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf) && nf.Kind == "archetype"
}
