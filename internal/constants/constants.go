// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Face matching constants
const (
	// DescriptorDim is the fixed length of a face descriptor produced by the capture pipeline
	DescriptorDim = 128

	// MatchThreshold is the Euclidean distance below which two descriptors belong to the same person.
	// The comparison is strict: a distance of exactly MatchThreshold is not a match.
	MatchThreshold = 0.5
)

// Collision report constants
const (
	// DefaultCollisionLimit is the default number of neighbours returned by a collision report
	DefaultCollisionLimit = 10

	// MaxCollisionLimit caps the neighbours a single collision report may request
	MaxCollisionLimit = 100
)

// Import constants
const (
	// ImportLineBuffer is the maximum size of a single JSON line in a bulk import file
	ImportLineBuffer = 1 << 20
)
