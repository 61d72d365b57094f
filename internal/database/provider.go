package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Opener creates the process-wide descriptor store.
type Opener func(ctx context.Context) (DescriptorStore, error)

// storeSingleton holds the process-wide descriptor store.
//
// Lifecycle: the opener is installed once at startup with UseDescriptorStore,
// the store is opened by the first GetDescriptorStore call that succeeds and is
// then shared by every request until the process exits. A failed open is not
// remembered: the next caller tries again.
type storeSingleton struct {
	mu     sync.Mutex // guards opener and store
	openMu sync.Mutex // serializes open attempts
	opener Opener
	store  DescriptorStore
}

var descriptorStore = &storeSingleton{}

// ErrNoBackend is returned when no opener has been installed.
var ErrNoBackend = errors.New("descriptor store backend not configured")

// UseDescriptorStore installs the constructor for the process-wide descriptor store.
// This is called by cmd before any request is served to avoid import cycles
// between the backends and their users.
func UseDescriptorStore(open Opener) {
	descriptorStore.mu.Lock()
	defer descriptorStore.mu.Unlock()
	descriptorStore.opener = open
}

func (s *storeSingleton) current() (Opener, DescriptorStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opener, s.store
}

// GetDescriptorStore returns the process-wide descriptor store, opening it on first use.
//
// The open runs detached from ctx, bounded by StoreOpenTimeout, so a caller that
// goes away mid-open does not fail the attempt for everyone waiting on it.
func GetDescriptorStore(ctx context.Context) (DescriptorStore, error) {
	s := descriptorStore

	open, store := s.current()
	if store != nil {
		return store, nil
	}
	if open == nil {
		return nil, ErrNoBackend
	}

	s.openMu.Lock()
	defer s.openMu.Unlock()

	// Another caller may have opened the store while we waited.
	if _, store := s.current(); store != nil {
		return store, nil
	}

	openCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), StoreOpenTimeout)
	defer cancel()

	store, err := open(openCtx)
	if err != nil {
		return nil, fmt.Errorf("opening descriptor store: %w", err)
	}

	s.mu.Lock()
	s.store = store
	s.mu.Unlock()
	return store, nil
}

// IsInitialized returns whether the descriptor store has been opened successfully.
func IsInitialized() bool {
	_, store := descriptorStore.current()
	return store != nil
}

// resetDescriptorStore forgets the singleton. Tests only.
func resetDescriptorStore() {
	descriptorStore.mu.Lock()
	defer descriptorStore.mu.Unlock()
	descriptorStore.opener = nil
	descriptorStore.store = nil
}
