package database

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

type stubStore struct {
	DescriptorStore
}

func (stubStore) Close() error { return nil }

func TestGetDescriptorStore_NoBackend(t *testing.T) {
	resetDescriptorStore()
	t.Cleanup(resetDescriptorStore)

	_, err := GetDescriptorStore(context.Background())
	if !errors.Is(err, ErrNoBackend) {
		t.Errorf("expected ErrNoBackend, got %v", err)
	}
}

func TestGetDescriptorStore_OpensOnce(t *testing.T) {
	resetDescriptorStore()
	t.Cleanup(resetDescriptorStore)

	var opens atomic.Int32
	UseDescriptorStore(func(ctx context.Context) (DescriptorStore, error) {
		opens.Add(1)
		return &stubStore{}, nil
	})

	if IsInitialized() {
		t.Fatal("store initialized before first use")
	}

	var wg sync.WaitGroup
	stores := make([]DescriptorStore, 16)
	for i := range stores {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := GetDescriptorStore(context.Background())
			if err != nil {
				t.Errorf("GetDescriptorStore() error = %v", err)
			}
			stores[i] = s
		}()
	}
	wg.Wait()

	if got := opens.Load(); got != 1 {
		t.Errorf("opener called %d times, want 1", got)
	}
	for i := 1; i < len(stores); i++ {
		if stores[i] != stores[0] {
			t.Fatal("callers received different store instances")
		}
	}
	if !IsInitialized() {
		t.Error("IsInitialized() = false after successful open")
	}
}

func TestGetDescriptorStore_RetriesAfterFailure(t *testing.T) {
	resetDescriptorStore()
	t.Cleanup(resetDescriptorStore)

	boom := errors.New("dial tcp: connection refused")
	var opens atomic.Int32
	UseDescriptorStore(func(ctx context.Context) (DescriptorStore, error) {
		if opens.Add(1) <= 2 {
			return nil, boom
		}
		return &stubStore{}, nil
	})

	for range 2 {
		if _, err := GetDescriptorStore(context.Background()); !errors.Is(err, boom) {
			t.Errorf("expected wrapped open error, got %v", err)
		}
		if IsInitialized() {
			t.Error("IsInitialized() = true after failed open")
		}
	}

	first, err := GetDescriptorStore(context.Background())
	if err != nil {
		t.Fatalf("GetDescriptorStore() after recovery error = %v", err)
	}
	second, err := GetDescriptorStore(context.Background())
	if err != nil {
		t.Fatalf("GetDescriptorStore() error = %v", err)
	}
	if first != second {
		t.Error("store reopened after a successful open")
	}
	if got := opens.Load(); got != 3 {
		t.Errorf("opener called %d times, want 3", got)
	}
}

func TestGetDescriptorStore_IgnoresCallerCancellation(t *testing.T) {
	resetDescriptorStore()
	t.Cleanup(resetDescriptorStore)

	UseDescriptorStore(func(ctx context.Context) (DescriptorStore, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, ok := ctx.Deadline(); !ok {
			return nil, errors.New("open without deadline")
		}
		return &stubStore{}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := GetDescriptorStore(ctx); err != nil {
		t.Fatalf("GetDescriptorStore() with cancelled caller error = %v", err)
	}
	if !IsInitialized() {
		t.Error("IsInitialized() = false after open")
	}
}
