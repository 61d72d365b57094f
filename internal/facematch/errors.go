package facematch

import "errors"

var (
	// ErrInvalidVector is returned for descriptors of the wrong length or with non-finite values.
	ErrInvalidVector = errors.New("invalid descriptor")

	// ErrNoEnrollments is returned when the store holds no descriptors at all.
	ErrNoEnrollments = errors.New("no descriptors enrolled")

	// ErrNoMatch is returned when no stored descriptor is close enough to the query.
	ErrNoMatch = errors.New("no matching face")

	// ErrStoreUnavailable wraps failures of the descriptor store.
	ErrStoreUnavailable = errors.New("descriptor store unavailable")

	// ErrDimensionMismatch is returned when comparing vectors of different lengths.
	ErrDimensionMismatch = errors.New("descriptor dimension mismatch")

	// ErrNotEnrolled is returned when a user has no stored descriptor.
	ErrNotEnrolled = errors.New("user not enrolled")
)
