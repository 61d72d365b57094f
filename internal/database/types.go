package database

import (
	"time"
)

// StoredDescriptor represents a face descriptor stored in the database.
// Each user owns at most one descriptor.
type StoredDescriptor struct {
	UserID    int64
	Vector    []float32
	Label     string
	CreatedAt time.Time
}

// Neighbor is a stored descriptor together with its distance to a query vector.
type Neighbor struct {
	Descriptor StoredDescriptor
	Distance   float64
}
