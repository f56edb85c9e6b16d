package memory

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// #region in-memory-store

// InMemoryStore keeps experience records in a plain slice. The default
// store when no persistence is configured.
type InMemoryStore struct {
	records []Record
	seq     int64
}

// NewInMemoryStore creates an empty in-memory experience store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Add appends a record, assigning its ID and sequence number.
func (s *InMemoryStore) Add(rec Record) error {
	s.seq++
	rec.Seq = s.seq
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.Context = append([]float64(nil), rec.Context...)
	s.records = append(s.records, rec)
	return nil
}

// All returns the records in insertion order.
func (s *InMemoryStore) All() ([]Record, error) {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

// Clear discards all records and resets the sequence counter.
func (s *InMemoryStore) Clear() error {
	s.records = nil
	s.seq = 0
	return nil
}

// Nearest returns the k stored records most similar to the query context
// by cosine similarity.
func (s *InMemoryStore) Nearest(query []float64, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, fmt.Errorf("nearest: k must be positive, got %d", k)
	}

	neighbors := make([]Neighbor, 0, len(s.records))
	for _, rec := range s.records {
		neighbors = append(neighbors, Neighbor{
			Record:     rec,
			Similarity: cosineSim(query, rec.Context),
		})
	}
	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Similarity > neighbors[j].Similarity
	})
	if k < len(neighbors) {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// #endregion in-memory-store

// #region cosine

// cosineSim computes cosine similarity, 0 when either vector has zero
// norm or lengths differ.
func cosineSim(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// #endregion cosine
