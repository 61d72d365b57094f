// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/face-login/internal/database"
)

// MockDescriptorStore is an in-memory implementation of database.DescriptorStore
type MockDescriptorStore struct {
	mu          sync.RWMutex
	descriptors map[int64]database.StoredDescriptor
	now         func() time.Time

	// Error injection
	GetError    error
	GetAllError error
	CountError  error
	PutError    error
	DeleteError error

	// Call counters
	GetAllCalls int
	PutCalls    int
}

// NewMockDescriptorStore creates a new mock descriptor store
func NewMockDescriptorStore() *MockDescriptorStore {
	return &MockDescriptorStore{
		descriptors: make(map[int64]database.StoredDescriptor),
		now:         time.Now,
	}
}

// AddDescriptor adds a descriptor to the mock store, bypassing error injection
func (m *MockDescriptorStore) AddDescriptor(d database.StoredDescriptor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = m.now()
	}
	m.descriptors[d.UserID] = d
}

// Get retrieves the descriptor of a user
func (m *MockDescriptorStore) Get(ctx context.Context, userID int64) (*database.StoredDescriptor, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.descriptors[userID]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

// GetAll returns all descriptors ordered by user ID
func (m *MockDescriptorStore) GetAll(ctx context.Context) ([]database.StoredDescriptor, error) {
	m.mu.Lock()
	m.GetAllCalls++
	m.mu.Unlock()

	if m.GetAllError != nil {
		return nil, m.GetAllError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]database.StoredDescriptor, 0, len(m.descriptors))
	for _, d := range m.descriptors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// Count returns the number of enrolled users
func (m *MockDescriptorStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.descriptors), nil
}

// Put replaces the descriptor of d.UserID
func (m *MockDescriptorStore) Put(ctx context.Context, d database.StoredDescriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutCalls++
	if m.PutError != nil {
		return m.PutError
	}
	d.CreatedAt = m.now()
	m.descriptors[d.UserID] = d
	return nil
}

// Delete removes the descriptor of a user
func (m *MockDescriptorStore) Delete(ctx context.Context, userID int64) (bool, error) {
	if m.DeleteError != nil {
		return false, m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.descriptors[userID]
	delete(m.descriptors, userID)
	return ok, nil
}

// Close is a no-op
func (m *MockDescriptorStore) Close() error {
	return nil
}

// SetClock overrides the time source used for CreatedAt
func (m *MockDescriptorStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// MockNeighborStore is a MockDescriptorStore that also implements database.NeighborFinder
type MockNeighborStore struct {
	*MockDescriptorStore

	Neighbors      []database.Neighbor
	NeighborsError error
	NeighborCalls  int
}

// NewMockNeighborStore creates a mock store with a canned neighbour answer
func NewMockNeighborStore() *MockNeighborStore {
	return &MockNeighborStore{MockDescriptorStore: NewMockDescriptorStore()}
}

// FindNeighbors returns the canned neighbours
func (m *MockNeighborStore) FindNeighbors(ctx context.Context, vector []float32, limit int, maxDistance float64) ([]database.Neighbor, error) {
	m.NeighborCalls++
	if m.NeighborsError != nil {
		return nil, m.NeighborsError
	}
	var out []database.Neighbor
	for _, n := range m.Neighbors {
		if n.Distance < maxDistance {
			out = append(out, n)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
