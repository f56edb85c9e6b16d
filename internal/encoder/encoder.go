// Package encoder turns arbitrary routing state into fixed-dimension
// context vectors for the bandit policy.
package encoder

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
)

// #region types

// EmbedFunc produces an embedding for a piece of text. The result is
// truncated or zero-padded to the encoder's dimension.
type EmbedFunc func(text string) ([]float64, error)

// StateEncoder encodes state values into vectors of a fixed dimension.
//
// Numeric vectors pass through (truncated or zero-padded). Strings go
// through the embedding function when one is configured. Everything else
// falls back to a deterministic hash projection: the value's string form
// seeds a Gaussian draw per dimension, so identical inputs always encode
// to identical vectors without any model dependency.
type StateEncoder struct {
	dim       int
	embed     EmbedFunc
	normalize bool
}

// #endregion types

// #region constructor

// NewStateEncoder creates an encoder with the given output dimension.
// embed may be nil (strings then use the hash projection).
func NewStateEncoder(dim int, embed EmbedFunc, normalize bool) (*StateEncoder, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("encoder dimension must be positive, got %d", dim)
	}
	return &StateEncoder{dim: dim, embed: embed, normalize: normalize}, nil
}

// Dim returns the output dimension.
func (e *StateEncoder) Dim() int {
	return e.dim
}

// #endregion constructor

// #region encode

// Encode maps a state value to a vector of the configured dimension.
// Deterministic for identical input.
func (e *StateEncoder) Encode(state any) ([]float64, error) {
	switch v := state.(type) {
	case []float64:
		return e.fit(v), nil
	case []float32:
		out := make([]float64, len(v))
		for i, f := range v {
			out[i] = float64(f)
		}
		return e.fit(out), nil
	case string:
		if e.embed != nil {
			vec, err := e.embed(v)
			if err != nil {
				return nil, fmt.Errorf("embed: %w", err)
			}
			out := e.fit(vec)
			if e.normalize {
				normalizeInPlace(out)
			}
			return out, nil
		}
		return e.hashProject(v), nil
	default:
		return e.hashProject(fmt.Sprintf("%v", state)), nil
	}
}

// #endregion encode

// #region helpers

// fit copies a vector into the output dimension, truncating or
// zero-padding as needed.
func (e *StateEncoder) fit(v []float64) []float64 {
	out := make([]float64, e.dim)
	copy(out, v)
	return out
}

// hashProject draws a unit vector from a Gaussian seeded by the SHA-256
// of the input string.
func (e *StateEncoder) hashProject(s string) []float64 {
	sum := sha256.Sum256([]byte(s))
	seed := int64(binary.LittleEndian.Uint64(sum[:8]))
	rng := rand.New(rand.NewSource(seed))

	out := make([]float64, e.dim)
	for i := range out {
		out[i] = rng.NormFloat64()
	}
	if e.normalize {
		normalizeInPlace(out)
	}
	return out
}

func normalizeInPlace(v []float64) {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	norm := math.Sqrt(sum)
	if norm > 0 {
		for i := range v {
			v[i] /= norm
		}
	}
}

// #endregion helpers
