// Package sqlite stores face descriptors in a single SQLite file using the pure Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/face-login/internal/database"
)

const schema = `
CREATE TABLE IF NOT EXISTS face_descriptors (
	user_id    INTEGER PRIMARY KEY,
	vector     BLOB NOT NULL,
	label      TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_face_descriptors_created_at ON face_descriptors (created_at);
`

// Store is a SQLite implementation of database.DescriptorStore and database.NeighborFinder.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the SQLite database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("SQLite database path is required")
	}

	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}
	// One writer at a time; serialising through a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply SQLite schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Get retrieves the descriptor of a user, nil if the user is not enrolled.
func (s *Store) Get(ctx context.Context, userID int64) (*database.StoredDescriptor, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT user_id, vector, label, created_at FROM face_descriptors WHERE user_id = ?", userID)
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
func (s *Store) GetAll(ctx context.Context) ([]database.StoredDescriptor, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, vector, label, created_at FROM face_descriptors ORDER BY user_id")
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
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM face_descriptors").Scan(&n); err != nil {
		return 0, fmt.Errorf("count descriptors: %w", err)
	}
	return n, nil
}

// Put replaces the descriptor of d.UserID inside one transaction.
func (s *Store) Put(ctx context.Context, d database.StoredDescriptor) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM face_descriptors WHERE user_id = ?", d.UserID); err != nil {
		return fmt.Errorf("delete existing descriptor: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO face_descriptors (user_id, vector, label, created_at) VALUES (?, ?, ?, ?)",
		d.UserID, encodeVector(d.Vector), d.Label, s.now().UTC().UnixMicro(),
	); err != nil {
		return fmt.Errorf("insert descriptor for user %d: %w", d.UserID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Delete removes the descriptor of a user.
func (s *Store) Delete(ctx context.Context, userID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM face_descriptors WHERE user_id = ?", userID)
	if err != nil {
		return false, fmt.Errorf("delete descriptor: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// FindNeighbors returns descriptors strictly closer than maxDistance, nearest first,
// computing distances inside SQLite with a registered scalar function.
func (s *Store) FindNeighbors(
	ctx context.Context, vector []float32, limit int, maxDistance float64,
) ([]database.Neighbor, error) {
	query := fmt.Sprintf(`
		SELECT user_id, vector, label, created_at, %[1]s(vector, ?1) AS distance
		FROM face_descriptors
		WHERE %[1]s(vector, ?1) < ?2
		ORDER BY distance, user_id
		LIMIT ?3
	`, l2DistanceFunc)

	rows, err := s.db.QueryContext(ctx, query, encodeVector(vector), maxDistance, limit)
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
		out = append(out, database.Neighbor{Descriptor: d, Distance: dist})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate neighbours: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database connection: %w", err)
	}
	return nil
}

func scanDescriptor(scanner interface{ Scan(...any) error }, extraDest ...any) (database.StoredDescriptor, error) {
	var d database.StoredDescriptor
	var blob []byte
	var createdMicros int64

	dest := append([]any{&d.UserID, &blob, &d.Label, &createdMicros}, extraDest...)
	if err := scanner.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return d, err
		}
		return d, fmt.Errorf("scan descriptor: %w", err)
	}

	vector, err := decodeVector(blob)
	if err != nil {
		return d, fmt.Errorf("decode descriptor of user %d: %w", d.UserID, err)
	}
	d.Vector = vector
	d.CreatedAt = time.UnixMicro(createdMicros).UTC()
	return d, nil
}
