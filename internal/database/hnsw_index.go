package database

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/face-login/internal/vecmath"
)

// HNSWIndexMetadata stores metadata for validating cached HNSW indexes.
type HNSWIndexMetadata struct {
	DescriptorCount int64     `json:"descriptor_count"`
	LatestCreatedAt time.Time `json:"latest_created_at"`
	BuildTime       time.Time `json:"build_time"`
	Version         int       `json:"version"`
}

const hnswMetadataVersion = 2

// ErrIndexNotInitialized is returned when searching an index that has no graph.
var ErrIndexNotInitialized = errors.New("index not initialized")

// HNSWIndex wraps the HNSW graph for descriptor neighbour search.
//
// Graph nodes are keyed by an insert sequence, never by user ID: re-enrolling
// or removing a user only detaches the old node, which stays in the graph as a
// stale node until the next rebuild.
type HNSWIndex struct {
	graph      *hnsw.Graph[int64]
	savedGraph *hnsw.SavedGraph[int64]
	nodes      map[int64]*StoredDescriptor // live node key -> descriptor
	byUser     map[int64]int64             // user ID -> live node key
	nextKey    int64
	mu         sync.RWMutex
}

// indexedDescriptor is the on-disk form of a live node.
type indexedDescriptor struct {
	Node       int64
	Descriptor StoredDescriptor
}

// indexFile is the content of path.descriptors. NextKey is above every key in
// the graph file, stale nodes included.
type indexFile struct {
	NextKey int64
	Nodes   []indexedDescriptor
}

// NewHNSWIndex creates a new empty HNSW index.
func NewHNSWIndex() *HNSWIndex {
	return &HNSWIndex{
		nodes:  make(map[int64]*StoredDescriptor),
		byUser: make(map[int64]int64),
	}
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance
	return g
}

// BuildFromDescriptors builds the index from a slice of descriptors.
func (h *HNSWIndex) BuildFromDescriptors(descriptors []StoredDescriptor) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.savedGraph = nil
	h.graph = nil
	h.nodes = make(map[int64]*StoredDescriptor, len(descriptors))
	h.byUser = make(map[int64]int64, len(descriptors))
	h.nextKey = 0

	for i := range descriptors {
		h.add(descriptors[i])
	}
	return nil
}

// Search finds up to k nearest descriptors to the query.
// Distances are recomputed exactly in float64 and results are sorted ascending.
func (h *HNSWIndex) Search(query []float32, k int) ([]Neighbor, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil && h.savedGraph == nil {
		return nil, ErrIndexNotInitialized
	}

	// Stale nodes can take up to stale() of the returned slots.
	fetch := k + h.stale()

	var nodes []hnsw.Node[int64]
	if h.savedGraph != nil {
		nodes = h.savedGraph.Search(query, fetch)
	} else {
		nodes = h.graph.Search(query, fetch)
	}

	out := make([]Neighbor, 0, len(nodes))
	for _, n := range nodes {
		d, ok := h.nodes[n.Key]
		if !ok {
			continue
		}
		out = append(out, Neighbor{
			Descriptor: *d,
			Distance:   vecmath.Euclidean(query, d.Vector),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Get returns the indexed descriptor of a user.
func (h *HNSWIndex) Get(userID int64) *StoredDescriptor {
	h.mu.RLock()
	defer h.mu.RUnlock()
	key, ok := h.byUser[userID]
	if !ok {
		return nil
	}
	return h.nodes[key]
}

// Add inserts the descriptor of d.UserID, replacing the user's previous one.
func (h *HNSWIndex) Add(d StoredDescriptor) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.add(d)
}

// add must be called with h.mu held.
func (h *HNSWIndex) add(d StoredDescriptor) {
	if len(d.Vector) == 0 {
		return
	}

	if h.graph == nil {
		if h.savedGraph != nil {
			h.graph = h.savedGraph.Graph
			h.savedGraph = nil
		} else {
			h.graph = newGraph()
		}
	}

	h.detach(d.UserID)
	key := h.nextKey
	h.nextKey++
	h.graph.Add(hnsw.MakeNode(key, d.Vector))
	h.nodes[key] = &d
	h.byUser[d.UserID] = key
}

// detach must be called with h.mu held.
func (h *HNSWIndex) detach(userID int64) {
	if key, ok := h.byUser[userID]; ok {
		delete(h.nodes, key)
		delete(h.byUser, userID)
	}
}

// Delete removes a user from search results.
func (h *HNSWIndex) Delete(userID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detach(userID)
}

// Count returns the number of indexed descriptors.
func (h *HNSWIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser)
}

// Stale returns the number of graph nodes left behind by re-enrolled or removed users.
func (h *HNSWIndex) Stale() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stale()
}

func (h *HNSWIndex) stale() int {
	var size int
	switch {
	case h.graph != nil:
		size = h.graph.Len()
	case h.savedGraph != nil:
		size = h.savedGraph.Len()
	}
	return max(size-len(h.nodes), 0)
}

// IsEmpty returns true if the index has no graph data loaded.
func (h *HNSWIndex) IsEmpty() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph == nil && h.savedGraph == nil
}

// Save persists the graph, its metadata (path.meta) and the descriptors (path.descriptors).
// An empty index removes any existing files.
func (h *HNSWIndex) Save(path string, metadata HNSWIndexMetadata) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil && h.savedGraph == nil {
		RemoveHNSWFiles(path)
		return nil
	}

	if err := h.exportGraph(path); err != nil {
		return err
	}

	metadata.Version = hnswMetadataVersion
	if metadata.BuildTime.IsZero() {
		metadata.BuildTime = time.Now()
	}
	metaData, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	file := indexFile{NextKey: h.nextKey, Nodes: make([]indexedDescriptor, 0, len(h.nodes))}
	for key, d := range h.nodes {
		file.Nodes = append(file.Nodes, indexedDescriptor{Node: key, Descriptor: *d})
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(file); err != nil {
		return fmt.Errorf("failed to encode descriptors: %w", err)
	}
	if err := os.WriteFile(path+".descriptors", buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write descriptors file: %w", err)
	}

	return nil
}

func (h *HNSWIndex) exportGraph(path string) error {
	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	defer f.Close()

	g := h.graph
	if g == nil {
		g = h.savedGraph.Graph
	}
	if err := g.Export(f); err != nil {
		return fmt.Errorf("failed to export HNSW graph: %w", err)
	}
	return nil
}

// RemoveHNSWFiles deletes the graph, metadata and descriptor files written by Save.
func RemoveHNSWFiles(path string) {
	_ = os.Remove(path)
	_ = os.Remove(path + ".meta")
	_ = os.Remove(path + ".descriptors")
}

// LoadHNSWMetadata loads metadata from a separate .meta file.
func LoadHNSWMetadata(path string) (HNSWIndexMetadata, error) {
	var metadata HNSWIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}

	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return metadata, nil
}

// Load reads a graph and its descriptors written by Save.
func (h *HNSWIndex) Load(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("HNSW index file not found: %s", path)
	}

	saved, err := hnsw.LoadSavedGraph[int64](path)
	if err != nil {
		return fmt.Errorf("failed to load HNSW index: %w", err)
	}

	data, err := os.ReadFile(path + ".descriptors") //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to read descriptors file: %w", err)
	}
	var file indexFile
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&file); err != nil {
		return fmt.Errorf("failed to decode descriptors: %w", err)
	}

	saved.Distance = hnsw.EuclideanDistance
	h.graph = nil
	h.savedGraph = saved
	h.nodes = make(map[int64]*StoredDescriptor, len(file.Nodes))
	h.byUser = make(map[int64]int64, len(file.Nodes))
	h.nextKey = file.NextKey
	for i := range file.Nodes {
		entry := &file.Nodes[i]
		h.nodes[entry.Node] = &entry.Descriptor
		h.byUser[entry.Descriptor.UserID] = entry.Node
		h.nextKey = max(h.nextKey, entry.Node+1)
	}
	return nil
}

// IsStale reports whether saved metadata no longer describes the database contents.
func (m HNSWIndexMetadata) IsStale(count int64, latest time.Time) bool {
	return m.Version != hnswMetadataVersion ||
		m.DescriptorCount != count ||
		!m.LatestCreatedAt.Equal(latest)
}
