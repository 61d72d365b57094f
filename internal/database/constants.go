package database

import "time"

// StoreOpenTimeout bounds one attempt to open the descriptor store.
const StoreOpenTimeout = 30 * time.Second

// HNSW index parameters for 128-dim face descriptors
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	// Higher values improve recall but slow down search.
	HNSWEfSearch = 100

	// HNSWSearchMultiplier is the factor to request more candidates from HNSW
	// to ensure we have enough after distance filtering.
	HNSWSearchMultiplier = 3

	// HNSWMinSearch is the minimum number of candidates requested from the graph.
	HNSWMinSearch = 50

	// HNSWRebuildStaleRatio is the share of stale graph nodes, relative to live
	// ones, above which the serve command rebuilds the index.
	HNSWRebuildStaleRatio = 0.25
)
