//go:build integration

package postgres

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/kozaktomas/face-login/internal/config"
	"github.com/kozaktomas/face-login/internal/database"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(ctx, cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if _, err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func axis(i int, scale float32) []float32 {
	v := make([]float32, 128)
	v[i] = scale
	return v
}

func TestDescriptorRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewDescriptorRepository(pool, nil)

	t.Run("PutAndGet", func(t *testing.T) {
		if err := repo.Put(ctx, database.StoredDescriptor{UserID: 42, Vector: axis(0, 1), Label: "Alice"}); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		got, err := repo.Get(ctx, 42)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got == nil {
			t.Fatal("Expected descriptor, got nil")
		}
		if got.Label != "Alice" || len(got.Vector) != 128 || got.Vector[0] != 1 {
			t.Errorf("Get() = %+v", got)
		}
		if got.CreatedAt.IsZero() {
			t.Error("CreatedAt not set")
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		got, err := repo.Get(ctx, 999)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got != nil {
			t.Errorf("Expected nil, got %+v", got)
		}
	})

	t.Run("PutReplaces", func(t *testing.T) {
		if err := repo.Put(ctx, database.StoredDescriptor{UserID: 42, Vector: axis(1, 1), Label: "Alice v2"}); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		count, err := repo.Count(ctx)
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		if count != 1 {
			t.Errorf("Count() = %d, want 1", count)
		}
		got, _ := repo.Get(ctx, 42)
		if got.Vector[0] != 0 || got.Vector[1] != 1 {
			t.Error("descriptor was not replaced")
		}
	})

	t.Run("GetAllOrdered", func(t *testing.T) {
		if err := repo.Put(ctx, database.StoredDescriptor{UserID: 7, Vector: axis(1, 1.1)}); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		all, err := repo.GetAll(ctx)
		if err != nil {
			t.Fatalf("GetAll() error = %v", err)
		}
		if len(all) != 2 || all[0].UserID != 7 || all[1].UserID != 42 {
			t.Errorf("GetAll() order = %+v", all)
		}
	})

	t.Run("FindNeighborsPostgres", func(t *testing.T) {
		found, err := repo.FindNeighbors(ctx, axis(1, 1), 10, 0.5)
		if err != nil {
			t.Fatalf("FindNeighbors() error = %v", err)
		}
		if len(found) != 2 || found[0].Descriptor.UserID != 42 {
			t.Fatalf("FindNeighbors() = %+v", found)
		}
		if math.Abs(found[1].Distance-0.1) > 1e-6 {
			t.Errorf("distance = %v, want 0.1", found[1].Distance)
		}
	})

	t.Run("FindNeighborsHNSW", func(t *testing.T) {
		indexPath := filepath.Join(t.TempDir(), "descriptors.hnsw")
		if err := repo.EnableHNSW(ctx, indexPath); err != nil {
			t.Fatalf("EnableHNSW() error = %v", err)
		}
		defer repo.DisableHNSW()

		if repo.HNSWCount() != 2 {
			t.Errorf("HNSWCount() = %d, want 2", repo.HNSWCount())
		}
		found, err := repo.FindNeighbors(ctx, axis(1, 1), 10, 0.5)
		if err != nil {
			t.Fatalf("FindNeighbors() error = %v", err)
		}
		if len(found) != 2 || found[0].Descriptor.UserID != 42 {
			t.Errorf("FindNeighbors() = %+v", found)
		}

		meta, err := database.LoadHNSWMetadata(indexPath)
		if err != nil {
			t.Fatalf("LoadHNSWMetadata() error = %v", err)
		}
		if meta.DescriptorCount != 2 {
			t.Errorf("DescriptorCount = %d, want 2", meta.DescriptorCount)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		deleted, err := repo.Delete(ctx, 7)
		if err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if !deleted {
			t.Error("Delete() = false, want true")
		}
		deleted, err = repo.Delete(ctx, 7)
		if err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if deleted {
			t.Error("second Delete() = true, want false")
		}
	})
}

func TestDescriptorRepository_WritesWithHNSWEnabled(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewDescriptorRepository(pool, nil)

	for i, id := range []int64{42, 7, 9} {
		if err := repo.Put(ctx, database.StoredDescriptor{UserID: id, Vector: axis(i, 1)}); err != nil {
			t.Fatalf("Put(%d) error = %v", id, err)
		}
	}
	if err := repo.EnableHNSW(ctx, ""); err != nil {
		t.Fatalf("EnableHNSW() error = %v", err)
	}
	defer repo.DisableHNSW()

	// Re-enroll 42 next to where 7 was, twice, then remove 7.
	for _, label := range []string{"moved", "moved again"} {
		if err := repo.Put(ctx, database.StoredDescriptor{UserID: 42, Vector: axis(1, 1), Label: label}); err != nil {
			t.Fatalf("re-enroll Put() error = %v", err)
		}
	}
	if _, err := repo.Delete(ctx, 7); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if repo.HNSWCount() != 2 {
		t.Errorf("HNSWCount() = %d, want 2", repo.HNSWCount())
	}
	if repo.HNSWStale() != 3 {
		t.Errorf("HNSWStale() = %d, want 3", repo.HNSWStale())
	}

	found, err := repo.FindNeighbors(ctx, axis(1, 1), 10, 0.5)
	if err != nil {
		t.Fatalf("FindNeighbors() error = %v", err)
	}
	if len(found) != 1 || found[0].Descriptor.UserID != 42 || found[0].Descriptor.Label != "moved again" {
		t.Fatalf("FindNeighbors() = %+v, want only the latest descriptor of user 42", found)
	}

	// Writes keep working once the index has seen replacements.
	if err := repo.Put(ctx, database.StoredDescriptor{UserID: 7, Vector: axis(3, 1)}); err != nil {
		t.Fatalf("Put() after re-enrollments error = %v", err)
	}
	if repo.HNSWCount() != 3 {
		t.Errorf("HNSWCount() = %d, want 3", repo.HNSWCount())
	}
}

func TestMigrations(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()

	applied, err := pool.MigrationsApplied(ctx)
	if err != nil {
		t.Fatalf("Failed to get applied migrations: %v", err)
	}

	expectedMigrations := []string{
		"001_create_face_descriptors.sql",
		"002_create_face_descriptors_hnsw.sql",
	}

	if len(applied) != len(expectedMigrations) {
		t.Errorf("Expected %d migrations, got %d", len(expectedMigrations), len(applied))
	}

	for i, expected := range expectedMigrations {
		if i < len(applied) && applied[i] != expected {
			t.Errorf("Migration %d: expected '%s', got '%s'", i, expected, applied[i])
		}
	}

	again, err := pool.Migrate(ctx)
	if err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second Migrate() applied %v", again)
	}
}
