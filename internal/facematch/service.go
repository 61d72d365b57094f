package facematch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kozaktomas/face-login/internal/constants"
	"github.com/kozaktomas/face-login/internal/database"
)

// Service bundles enrollment management with identification.
type Service struct {
	*Matcher
	store database.DescriptorWriter
}

// NewService creates a face login service on top of a descriptor store.
func NewService(store database.DescriptorWriter) *Service {
	return &Service{
		Matcher: NewMatcher(store),
		store:   store,
	}
}

// Register validates a descriptor and stores it for an already authenticated user,
// replacing the previous one.
func (s *Service) Register(ctx context.Context, userID int64, d Descriptor, label string) error {
	if err := Validate(d); err != nil {
		return err
	}

	vector := make([]float32, len(d))
	copy(vector, d)

	err := s.store.Put(ctx, database.StoredDescriptor{
		UserID: userID,
		Vector: vector,
		Label:  strings.TrimSpace(label),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Remove deletes the descriptor of a user.
func (s *Service) Remove(ctx context.Context, userID int64) error {
	deleted, err := s.store.Delete(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if !deleted {
		return ErrNotEnrolled
	}
	return nil
}

// Status returns the enrollment of a user.
func (s *Service) Status(ctx context.Context, userID int64) (*Enrollment, error) {
	d, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if d == nil {
		return nil, ErrNotEnrolled
	}
	return &Enrollment{UserID: d.UserID, Label: d.Label, CreatedAt: d.CreatedAt}, nil
}

// List returns every enrollment ordered by user ID.
func (s *Service) List(ctx context.Context) ([]Enrollment, error) {
	stored, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	out := make([]Enrollment, 0, len(stored))
	for i := range stored {
		out = append(out, Enrollment{
			UserID:    stored[i].UserID,
			Label:     stored[i].Label,
			CreatedAt: stored[i].CreatedAt,
		})
	}
	return out, nil
}

// Collisions lists other users whose descriptors are under the match threshold
// relative to the descriptor of userID, closest first. Identification is not affected.
func (s *Service) Collisions(ctx context.Context, userID int64, limit int) ([]Collision, error) {
	if limit <= 0 {
		limit = constants.DefaultCollisionLimit
	}
	limit = min(limit, constants.MaxCollisionLimit)

	own, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if own == nil {
		return nil, ErrNotEnrolled
	}

	neighbors, err := s.neighbors(ctx, own.Vector, limit+1)
	if err != nil {
		return nil, err
	}

	out := make([]Collision, 0, limit)
	for _, n := range neighbors {
		if n.Descriptor.UserID == userID {
			continue
		}
		out = append(out, Collision{
			UserID:   n.Descriptor.UserID,
			Label:    n.Descriptor.Label,
			Distance: n.Distance,
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// neighbors uses the store's index when available and falls back to an exact scan.
func (s *Service) neighbors(ctx context.Context, vector []float32, limit int) ([]database.Neighbor, error) {
	if finder, ok := s.store.(database.NeighborFinder); ok {
		found, err := finder.FindNeighbors(ctx, vector, limit, constants.MatchThreshold)
		if err == nil {
			return found, nil
		}
		if !errors.Is(err, database.ErrIndexNotInitialized) {
			return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
	}

	stored, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return scanNeighbors(vector, stored, limit), nil
}

// scanNeighbors is the exact fallback for stores without a neighbour index.
func scanNeighbors(vector []float32, stored []database.StoredDescriptor, limit int) []database.Neighbor {
	var out []database.Neighbor
	for i := range stored {
		d, err := Distance(vector, stored[i].Vector)
		if err != nil || !isAccepted(d) {
			continue
		}
		out = append(out, database.Neighbor{Descriptor: stored[i], Distance: d})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
