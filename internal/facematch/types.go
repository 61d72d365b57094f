// Package facematch identifies users from face descriptors and manages their enrollment.
// It is independent of the storage technology: descriptors are read and written
// through the database.DescriptorWriter port.
package facematch

import (
	"time"

	"github.com/kozaktomas/face-login/internal/constants"
)

// Descriptor is a face feature vector produced by the external capture pipeline.
type Descriptor []float32

// Match is an accepted identification.
type Match struct {
	UserID   int64
	Label    string
	Distance float64
	// Confidence is 1 - Distance. It is a display heuristic, not a probability.
	Confidence float64
}

// Enrollment describes a stored descriptor without exposing the vector.
type Enrollment struct {
	UserID    int64
	Label     string
	CreatedAt time.Time
}

// Collision is another user whose descriptor lies under the match threshold.
type Collision struct {
	UserID   int64
	Label    string
	Distance float64
}

// confidence converts an accepted distance into the displayed score.
func confidence(distance float64) float64 {
	return 1 - distance
}

// isAccepted applies the fixed, exclusive match threshold.
func isAccepted(distance float64) bool {
	return distance < constants.MatchThreshold
}
