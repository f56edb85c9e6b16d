// Package memory stores the experience log: one record per resolved
// feedback event, append-only.
package memory

import "time"

// #region record

// Record is one resolved decision: the context it was made in, the arm
// that was chosen, and the reward that came back.
type Record struct {
	ID        string            // store-assigned unique ID
	Seq       int64             // insertion sequence, 1-based
	Context   []float64         // context vector at decision time
	Arm       int               // chosen option index
	Reward    float64           // resolved reward
	Metadata  map[string]string // optional caller metadata
	CreatedAt time.Time
}

// #endregion record

// #region store-interface

// Store is the experience log consumed by the decision lifecycle. Add must
// complete before the feedback call that produced the record returns.
type Store interface {
	Add(rec Record) error
	All() ([]Record, error)
	Clear() error
}

// Neighbor is a stored record paired with its similarity to a query
// context.
type Neighbor struct {
	Record     Record
	Similarity float64
}

// NearestQuerier is implemented by stores that can answer similarity
// queries over past decision contexts.
type NearestQuerier interface {
	Nearest(query []float64, k int) ([]Neighbor, error)
}

// #endregion store-interface
