package policy

import (
	"errors"
	"fmt"
)

// #region policy-interface

// Policy is the contract every bandit policy implements: score-and-pick an
// arm for a context, fold an observed reward back in, and expose its full
// state for persistence.
type Policy interface {
	Select(context []float64) (int, error)
	Update(context []float64, arm int, reward float64) error
	Export() Snapshot
	Import(snap Snapshot) error
}

// #endregion policy-interface

// #region config

// Config holds the construction parameters for a LinUCB policy.
type Config struct {
	NumArms     int     // number of routing options
	Dim         int     // context vector dimension
	Alpha       float64 // exploration coefficient, >= 0
	RidgeLambda float64 // ridge regularization, > 0
}

// DefaultConfig returns the standard parameters for a policy with the
// given arm count.
func DefaultConfig(numArms int) Config {
	return Config{
		NumArms:     numArms,
		Dim:         32,
		Alpha:       1.0,
		RidgeLambda: 1.0,
	}
}

// Validate checks construction parameters. Violations are fatal to the
// construction call.
func (c Config) Validate() error {
	if c.NumArms <= 0 {
		return fmt.Errorf("%w: num arms must be positive, got %d", ErrConfig, c.NumArms)
	}
	if c.Dim <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrConfig, c.Dim)
	}
	if c.Alpha < 0 {
		return fmt.Errorf("%w: alpha must be non-negative, got %g", ErrConfig, c.Alpha)
	}
	if c.RidgeLambda <= 0 {
		return fmt.Errorf("%w: ridge lambda must be positive, got %g", ErrConfig, c.RidgeLambda)
	}
	return nil
}

// #endregion config

// #region snapshot

// ArmState is the persisted regressor for one arm: A row-major (dim*dim)
// and b (dim).
type ArmState struct {
	A []float64 `json:"a"`
	B []float64 `json:"b"`
}

// Snapshot is the full exported state of a policy.
type Snapshot struct {
	FormatVersion int        `json:"format_version"`
	NumArms       int        `json:"num_arms"`
	Dim           int        `json:"dim"`
	Alpha         float64    `json:"alpha"`
	RidgeLambda   float64    `json:"ridge_lambda"`
	Arms          []ArmState `json:"arms"`
}

// SnapshotFormatVersion is the current snapshot blob version.
const SnapshotFormatVersion = 1

// #endregion snapshot

// #region errors

// ErrConfig marks invalid construction parameters.
var ErrConfig = errors.New("policy config")

// ErrNonFiniteReward is returned when a reward is NaN or infinite.
var ErrNonFiniteReward = errors.New("reward must be finite")

// ErrNonFiniteContext is returned when a context vector contains NaN or
// infinite elements.
var ErrNonFiniteContext = errors.New("context vector must be finite")

// DimensionError reports a shape mismatch between a call argument and the
// policy's configuration.
type DimensionError struct {
	Field string
	Want  int
	Got   int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch: %s want %d, got %d", e.Field, e.Want, e.Got)
}

// #endregion errors
