package database

import (
	"context"
)

// DescriptorReader provides read-only access to enrolled face descriptors
type DescriptorReader interface {
	// Get retrieves the descriptor owned by a user, returns nil if the user is not enrolled
	Get(ctx context.Context, userID int64) (*StoredDescriptor, error)
	// GetAll returns every enrolled descriptor in a stable order (ascending user ID)
	GetAll(ctx context.Context) ([]StoredDescriptor, error)
	// Count returns the number of enrolled users
	Count(ctx context.Context) (int, error)
}

// DescriptorWriter provides write access to enrolled face descriptors
type DescriptorWriter interface {
	DescriptorReader

	// Put stores the descriptor for d.UserID, replacing any previous one.
	// The delete and insert happen atomically so a user never has zero descriptors in between.
	Put(ctx context.Context, d StoredDescriptor) error

	// Delete removes the descriptor owned by a user.
	// Returns false if the user had no descriptor.
	Delete(ctx context.Context, userID int64) (bool, error)
}

// DescriptorStore is the full storage port used by the face matching service.
type DescriptorStore interface {
	DescriptorWriter

	// Close releases the underlying connections.
	Close() error
}

// NeighborFinder is implemented by stores that can answer nearest-neighbour
// queries faster than a full scan. Results are sorted by ascending distance
// and only include descriptors strictly closer than maxDistance.
type NeighborFinder interface {
	FindNeighbors(ctx context.Context, vector []float32, limit int, maxDistance float64) ([]Neighbor, error)
}

// IndexMaintainer is implemented by stores that keep an in-memory neighbour index.
type IndexMaintainer interface {
	// EnableHNSW loads the index from path when it is fresh, otherwise builds it from the store.
	EnableHNSW(ctx context.Context, path string) error
	RebuildHNSW(ctx context.Context) error
	SaveHNSWIndex(ctx context.Context) error
	HNSWCount() int
	// HNSWStale returns the number of graph nodes no longer backing any user.
	HNSWStale() int
}
