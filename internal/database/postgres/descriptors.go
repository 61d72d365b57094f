package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/face-login/internal/database"
	"github.com/kozaktomas/face-login/internal/vecmath"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

// DescriptorRepository provides PostgreSQL-backed descriptor storage with an
// optional in-memory HNSW index for neighbour queries.
type DescriptorRepository struct {
	pool   *Pool
	logger *zap.Logger

	hnswIndex     *database.HNSWIndex
	hnswEnabled   bool
	hnswIndexPath string // Path to persist HNSW index (optional)
	hnswMu        sync.RWMutex
}

// NewDescriptorRepository creates a new descriptor repository.
func NewDescriptorRepository(pool *Pool, logger *zap.Logger) *DescriptorRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DescriptorRepository{pool: pool, logger: logger}
}

const selectColumns = `SELECT user_id, vector, label, created_at FROM face_descriptors`

// Get retrieves the descriptor of a user, nil if the user is not enrolled.
func (r *DescriptorRepository) Get(ctx context.Context, userID int64) (*database.StoredDescriptor, error) {
	row := r.pool.QueryRow(ctx, selectColumns+" WHERE user_id = $1", userID)
	d, err := scanDescriptor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetAll returns every descriptor ordered by user ID.
func (r *DescriptorRepository) GetAll(ctx context.Context) ([]database.StoredDescriptor, error) {
	rows, err := r.pool.Query(ctx, selectColumns+" ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("query descriptors: %w", err)
	}
	defer rows.Close()

	var out []database.StoredDescriptor
	for rows.Next() {
		d, err := scanDescriptor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate descriptors: %w", err)
	}
	return out, nil
}

// Count returns the number of enrolled users.
func (r *DescriptorRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM face_descriptors").Scan(&count); err != nil {
		return 0, fmt.Errorf("count descriptors: %w", err)
	}
	return count, nil
}

// Put replaces the descriptor of d.UserID. The delete and the insert share one transaction.
func (r *DescriptorRepository) Put(ctx context.Context, d database.StoredDescriptor) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM face_descriptors WHERE user_id = $1", d.UserID); err != nil {
		return fmt.Errorf("delete existing descriptor: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO face_descriptors (user_id, vector, label)
		VALUES ($1, $2::vector, $3)
		RETURNING created_at
	`, d.UserID, pgvector.NewVector(d.Vector), d.Label).Scan(&d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert descriptor for user %d: %w", d.UserID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	r.updateIndex(func(idx *database.HNSWIndex) { idx.Add(d) })
	return nil
}

// Delete removes the descriptor of a user.
func (r *DescriptorRepository) Delete(ctx context.Context, userID int64) (bool, error) {
	result, err := r.pool.Exec(ctx, "DELETE FROM face_descriptors WHERE user_id = $1", userID)
	if err != nil {
		return false, fmt.Errorf("delete descriptor: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	r.updateIndex(func(idx *database.HNSWIndex) { idx.Delete(userID) })
	return n > 0, nil
}

// updateIndex applies a committed write to the HNSW index when it is enabled.
func (r *DescriptorRepository) updateIndex(apply func(idx *database.HNSWIndex)) {
	r.hnswMu.Lock()
	defer r.hnswMu.Unlock()
	if r.hnswEnabled && r.hnswIndex != nil {
		apply(r.hnswIndex)
	}
}

// Close closes the connection pool.
func (r *DescriptorRepository) Close() error {
	return r.pool.Close()
}

// FindNeighbors returns descriptors strictly closer than maxDistance, nearest first.
// Uses the in-memory HNSW index if enabled, otherwise falls back to PostgreSQL.
func (r *DescriptorRepository) FindNeighbors(
	ctx context.Context, vector []float32, limit int, maxDistance float64,
) ([]database.Neighbor, error) {
	r.hnswMu.RLock()
	enabled := r.hnswEnabled && r.hnswIndex != nil
	r.hnswMu.RUnlock()

	if enabled {
		return r.findNeighborsHNSW(vector, limit, maxDistance)
	}
	return r.findNeighborsPostgres(ctx, vector, limit, maxDistance)
}

func (r *DescriptorRepository) findNeighborsHNSW(vector []float32, limit int, maxDistance float64) ([]database.Neighbor, error) {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()

	if r.hnswIndex == nil {
		return nil, database.ErrIndexNotInitialized
	}

	// Request more candidates since some will be filtered by distance.
	searchK := max(limit*database.HNSWSearchMultiplier, database.HNSWMinSearch)
	found, err := r.hnswIndex.Search(vector, searchK)
	if err != nil {
		return nil, fmt.Errorf("HNSW search: %w", err)
	}

	out := make([]database.Neighbor, 0, limit)
	for _, n := range found {
		if n.Distance >= maxDistance {
			break
		}
		out = append(out, n)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// findNeighborsPostgres uses the pgvector L2 operator with ef_search raised to match the in-memory graph.
func (r *DescriptorRepository) findNeighborsPostgres(
	ctx context.Context, vector []float32, limit int, maxDistance float64,
) ([]database.Neighbor, error) {
	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", database.HNSWEfSearch)); err != nil {
		return nil, fmt.Errorf("set ef_search: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT user_id, vector, label, created_at, vector <-> $1::vector AS distance
		FROM face_descriptors
		WHERE vector <-> $1::vector < $2
		ORDER BY distance
		LIMIT $3
	`, pgvector.NewVector(vector), maxDistance, limit)
	if err != nil {
		return nil, fmt.Errorf("query neighbours: %w", err)
	}
	defer rows.Close()

	var out []database.Neighbor
	for rows.Next() {
		var dist float64
		d, err := scanDescriptor(rows, &dist)
		if err != nil {
			return nil, err
		}
		// pgvector computes in float32; recompute so results agree with the matcher.
		dist = vecmath.Euclidean(vector, d.Vector)
		if dist >= maxDistance {
			continue
		}
		out = append(out, database.Neighbor{Descriptor: d, Distance: dist})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate neighbours: %w", err)
	}
	return out, nil
}

// scanDescriptor scans one row of selectColumns plus optional extra destinations.
func scanDescriptor(scanner interface{ Scan(...any) error }, extraDest ...any) (database.StoredDescriptor, error) {
	var d database.StoredDescriptor
	var vec pgvector.Vector

	dest := append([]any{&d.UserID, &vec, &d.Label, &d.CreatedAt}, extraDest...)
	if err := scanner.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return d, err
		}
		return d, fmt.Errorf("scan descriptor: %w", err)
	}
	d.Vector = vec.Slice()
	return d, nil
}

// stats returns the values stored in the index metadata to detect stale index files.
func (r *DescriptorRepository) stats(ctx context.Context) (int64, time.Time, error) {
	var count int64
	var latest sql.NullTime
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*), MAX(created_at) FROM face_descriptors").Scan(&count, &latest)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to get descriptor stats: %w", err)
	}
	return count, latest.Time, nil
}

// tryLoadIndex loads the index file when its metadata still matches the table.
func (r *DescriptorRepository) tryLoadIndex(indexPath string, count int64, latest time.Time) bool {
	metadata, err := database.LoadHNSWMetadata(indexPath)
	if err != nil {
		return false
	}
	if metadata.IsStale(count, latest) {
		r.logger.Info("HNSW index on disk is stale, rebuilding",
			zap.String("path", indexPath),
			zap.Int64("indexed", metadata.DescriptorCount),
			zap.Int64("stored", count))
		return false
	}

	idx := database.NewHNSWIndex()
	if err := idx.Load(indexPath); err != nil {
		r.logger.Warn("failed to load HNSW index", zap.String("path", indexPath), zap.Error(err))
		return false
	}
	r.hnswIndex = idx
	return true
}

// EnableHNSW loads or builds the in-memory HNSW index used by FindNeighbors.
// If indexPath is set, the index is loaded from disk when fresh and saved after a rebuild.
func (r *DescriptorRepository) EnableHNSW(ctx context.Context, indexPath string) error {
	r.hnswMu.Lock()
	defer r.hnswMu.Unlock()

	r.hnswIndexPath = indexPath

	count, latest, err := r.stats(ctx)
	if err != nil {
		return err
	}

	if indexPath != "" && r.tryLoadIndex(indexPath, count, latest) {
		r.hnswEnabled = true
		return nil
	}

	descriptors, err := r.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load descriptors: %w", err)
	}

	idx := database.NewHNSWIndex()
	if err := idx.BuildFromDescriptors(descriptors); err != nil {
		return fmt.Errorf("failed to build HNSW index: %w", err)
	}
	r.hnswIndex = idx

	if indexPath != "" && len(descriptors) > 0 {
		metadata := database.HNSWIndexMetadata{DescriptorCount: count, LatestCreatedAt: latest}
		if err := idx.Save(indexPath, metadata); err != nil {
			r.logger.Warn("failed to save HNSW index to disk", zap.String("path", indexPath), zap.Error(err))
		}
	}

	r.hnswEnabled = true
	return nil
}

// DisableHNSW disables the in-memory HNSW index, falling back to PostgreSQL queries.
func (r *DescriptorRepository) DisableHNSW() {
	r.hnswMu.Lock()
	defer r.hnswMu.Unlock()
	r.hnswEnabled = false
	r.hnswIndex = nil
}

// IsHNSWEnabled returns whether the in-memory HNSW index is enabled.
func (r *DescriptorRepository) IsHNSWEnabled() bool {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	return r.hnswEnabled && r.hnswIndex != nil
}

// HNSWCount returns the number of descriptors in the HNSW index.
func (r *DescriptorRepository) HNSWCount() int {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if r.hnswIndex == nil {
		return 0
	}
	return r.hnswIndex.Count()
}

// HNSWStale returns the number of graph nodes left behind by re-enrolled or removed users.
func (r *DescriptorRepository) HNSWStale() int {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if r.hnswIndex == nil {
		return 0
	}
	return r.hnswIndex.Stale()
}

// RebuildHNSW rebuilds the HNSW index from PostgreSQL data, ignoring any file on disk.
func (r *DescriptorRepository) RebuildHNSW(ctx context.Context) error {
	r.hnswMu.RLock()
	indexPath := r.hnswIndexPath
	r.hnswMu.RUnlock()

	if indexPath != "" {
		database.RemoveHNSWFiles(indexPath)
	}
	return r.EnableHNSW(ctx, indexPath)
}

// SaveHNSWIndex saves the current HNSW index to disk (if path configured).
func (r *DescriptorRepository) SaveHNSWIndex(ctx context.Context) error {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()

	if r.hnswIndexPath == "" || r.hnswIndex == nil {
		return nil
	}

	count, latest, err := r.stats(ctx)
	if err != nil {
		return err
	}

	metadata := database.HNSWIndexMetadata{DescriptorCount: count, LatestCreatedAt: latest}
	if err := r.hnswIndex.Save(r.hnswIndexPath, metadata); err != nil {
		return fmt.Errorf("saving HNSW descriptor index: %w", err)
	}

	r.logger.Debug("HNSW index saved",
		zap.String("path", r.hnswIndexPath),
		zap.Int64("count", count))
	return nil
}
