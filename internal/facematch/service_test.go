package facematch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/kozaktomas/face-login/internal/database"
	"github.com/kozaktomas/face-login/internal/database/mock"
)

func TestRegister_ReplacesPreviousDescriptor(t *testing.T) {
	store := mock.NewMockDescriptorStore()
	svc := NewService(store)
	ctx := context.Background()

	old := unitVector(0)
	fresh := unitVector(1)

	if err := svc.Register(ctx, 5, old, "Alice"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := svc.Register(ctx, 5, fresh, "Alice"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	count, _ := store.Count(ctx)
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}

	if _, err := svc.Identify(ctx, old); !errors.Is(err, ErrNoMatch) {
		t.Errorf("old vector: expected ErrNoMatch, got %v", err)
	}
	got, err := svc.Identify(ctx, fresh)
	if err != nil {
		t.Fatalf("new vector: Identify() error = %v", err)
	}
	if got.UserID != 5 {
		t.Errorf("UserID = %d, want 5", got.UserID)
	}
}

func TestRegister_RejectsWrongShape(t *testing.T) {
	for _, n := range []int{127, 129} {
		store := mock.NewMockDescriptorStore()
		svc := NewService(store)

		err := svc.Register(context.Background(), 1, make(Descriptor, n), "")
		if !errors.Is(err, ErrInvalidVector) {
			t.Errorf("length %d: expected ErrInvalidVector, got %v", n, err)
		}
		if store.PutCalls != 0 {
			t.Errorf("length %d: store was written", n)
		}
	}
}

func TestRegister_CopiesVectorAndTrimsLabel(t *testing.T) {
	store := mock.NewMockDescriptorStore()
	svc := NewService(store)
	ctx := context.Background()

	v := unitVector(0)
	if err := svc.Register(ctx, 1, v, "  Alice  "); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	v[0] = 0

	stored, _ := store.Get(ctx, 1)
	if stored.Vector[0] != 1 {
		t.Error("stored vector changed after the caller mutated its slice")
	}
	if stored.Label != "Alice" {
		t.Errorf("Label = %q, want %q", stored.Label, "Alice")
	}
}

func TestRegister_StoreError(t *testing.T) {
	store := mock.NewMockDescriptorStore()
	store.PutError = errors.New("tx aborted")
	svc := NewService(store)

	err := svc.Register(context.Background(), 1, unitVector(0), "")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	store := storeWith(database.StoredDescriptor{UserID: 1, Vector: unitVector(0)})
	svc := NewService(store)
	ctx := context.Background()

	if err := svc.Remove(ctx, 1); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := svc.Remove(ctx, 1); !errors.Is(err, ErrNotEnrolled) {
		t.Errorf("second Remove(): expected ErrNotEnrolled, got %v", err)
	}
	if _, err := svc.Identify(ctx, unitVector(0)); !errors.Is(err, ErrNoEnrollments) {
		t.Errorf("expected ErrNoEnrollments after removal, got %v", err)
	}
}

func TestRemove_StoreError(t *testing.T) {
	store := mock.NewMockDescriptorStore()
	store.DeleteError = errors.New("down")
	svc := NewService(store)

	if err := svc.Remove(context.Background(), 1); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestStatusAndList(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := storeWith(
		database.StoredDescriptor{UserID: 2, Vector: unitVector(1), Label: "Bob", CreatedAt: created},
		database.StoredDescriptor{UserID: 1, Vector: unitVector(0), Label: "Alice", CreatedAt: created},
	)
	svc := NewService(store)
	ctx := context.Background()

	status, err := svc.Status(ctx, 2)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if diff := cmp.Diff(&Enrollment{UserID: 2, Label: "Bob", CreatedAt: created}, status); diff != "" {
		t.Errorf("Status() mismatch (-want +got):\n%s", diff)
	}

	if _, err := svc.Status(ctx, 99); !errors.Is(err, ErrNotEnrolled) {
		t.Errorf("expected ErrNotEnrolled, got %v", err)
	}

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []Enrollment{
		{UserID: 1, Label: "Alice", CreatedAt: created},
		{UserID: 2, Label: "Bob", CreatedAt: created},
	}
	if diff := cmp.Diff(want, list); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestCollisions_ScanFallback(t *testing.T) {
	store := storeWith(
		database.StoredDescriptor{UserID: 1, Vector: descriptorOf(0), Label: "self"},
		database.StoredDescriptor{UserID: 2, Vector: descriptorOf(0.3), Label: "far-ish"},
		database.StoredDescriptor{UserID: 3, Vector: descriptorOf(0.1), Label: "near"},
		database.StoredDescriptor{UserID: 4, Vector: descriptorOf(0.9), Label: "outside"},
	)
	svc := NewService(store)

	got, err := svc.Collisions(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("Collisions() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(Collisions()) = %d, want 2: %+v", len(got), got)
	}
	if got[0].UserID != 3 || got[1].UserID != 2 {
		t.Errorf("Collisions() order = %d, %d, want 3, 2", got[0].UserID, got[1].UserID)
	}

	limited, err := svc.Collisions(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("Collisions() error = %v", err)
	}
	if len(limited) != 1 || limited[0].UserID != 3 {
		t.Errorf("Collisions(limit=1) = %+v", limited)
	}
}

func TestCollisions_UsesNeighborFinder(t *testing.T) {
	store := mock.NewMockNeighborStore()
	self := database.StoredDescriptor{UserID: 1, Vector: descriptorOf(0)}
	other := database.StoredDescriptor{UserID: 8, Vector: descriptorOf(0.2), Label: "Eve"}
	store.AddDescriptor(self)
	store.AddDescriptor(other)
	store.Neighbors = []database.Neighbor{
		{Descriptor: self, Distance: 0},
		{Descriptor: other, Distance: 0.2},
	}
	svc := NewService(store)

	got, err := svc.Collisions(context.Background(), 1, 5)
	if err != nil {
		t.Fatalf("Collisions() error = %v", err)
	}
	want := []Collision{{UserID: 8, Label: "Eve", Distance: 0.2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Collisions() mismatch (-want +got):\n%s", diff)
	}
	if store.NeighborCalls != 1 || store.GetAllCalls != 0 {
		t.Errorf("NeighborCalls = %d, GetAllCalls = %d, want 1, 0", store.NeighborCalls, store.GetAllCalls)
	}
}

func TestCollisions_IndexNotReadyFallsBack(t *testing.T) {
	store := mock.NewMockNeighborStore()
	store.NeighborsError = database.ErrIndexNotInitialized
	store.AddDescriptor(database.StoredDescriptor{UserID: 1, Vector: descriptorOf(0)})
	store.AddDescriptor(database.StoredDescriptor{UserID: 2, Vector: descriptorOf(0.1)})
	svc := NewService(store)

	got, err := svc.Collisions(context.Background(), 1, 5)
	if err != nil {
		t.Fatalf("Collisions() error = %v", err)
	}
	if len(got) != 1 || got[0].UserID != 2 {
		t.Errorf("Collisions() = %+v", got)
	}
	if store.GetAllCalls != 1 {
		t.Errorf("GetAllCalls = %d, want 1", store.GetAllCalls)
	}
}

func TestCollisions_NotEnrolled(t *testing.T) {
	svc := NewService(mock.NewMockDescriptorStore())

	if _, err := svc.Collisions(context.Background(), 1, 5); !errors.Is(err, ErrNotEnrolled) {
		t.Errorf("expected ErrNotEnrolled, got %v", err)
	}
}
