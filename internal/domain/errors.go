package domain

import "errors"

var (
	// ErrRateLimitExceeded is returned when admission control rejects a batch.
	ErrRateLimitExceeded = errors.New("log ingestion rate limit exceeded, please retry later")

	// ErrInvalidRecord is matched by every record validation failure.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrNotFound is returned by the read path for unknown record ids.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidArgument is returned for malformed query arguments.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ValidationError describes a single rejected record field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

// Is makes errors.Is(err, ErrInvalidRecord) true for any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRecord
}
