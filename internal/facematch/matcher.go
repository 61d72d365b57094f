package facematch

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-login/internal/database"
)

// Matcher identifies an unknown face against every enrolled descriptor.
// It holds no state between calls: each Identify reads the full descriptor set.
type Matcher struct {
	store database.DescriptorReader
}

// NewMatcher creates a matcher reading from the given store.
func NewMatcher(store database.DescriptorReader) *Matcher {
	return &Matcher{store: store}
}

// Identify finds the enrolled user closest to query.
//
// Returns ErrInvalidVector for a malformed query, ErrNoEnrollments when the
// store is empty, ErrNoMatch when the closest descriptor is not strictly under
// the threshold, and an error wrapping ErrStoreUnavailable when the store fails.
func (m *Matcher) Identify(ctx context.Context, query Descriptor) (*Match, error) {
	if err := Validate(query); err != nil {
		return nil, err
	}

	stored, err := m.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	best, ok := nearest(query, stored)
	if !ok {
		return nil, ErrNoEnrollments
	}
	if !isAccepted(best.Distance) {
		return nil, ErrNoMatch
	}

	return &Match{
		UserID:     best.Descriptor.UserID,
		Label:      best.Descriptor.Label,
		Distance:   best.Distance,
		Confidence: confidence(best.Distance),
	}, nil
}

// nearest performs the linear scan. Ties keep the first descriptor encountered.
// Rows with a different length than the query are skipped.
func nearest(query Descriptor, stored []database.StoredDescriptor) (database.Neighbor, bool) {
	var best database.Neighbor
	found := false

	for i := range stored {
		d, err := Distance(query, stored[i].Vector)
		if err != nil {
			continue
		}
		if !found || d < best.Distance {
			best = database.Neighbor{Descriptor: stored[i], Distance: d}
			found = true
		}
	}
	return best, found
}
