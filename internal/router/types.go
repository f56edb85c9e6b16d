package router

import (
	"errors"
	"fmt"

	"github.com/danielpatrickdp/adaptive-router/internal/logging"
	"github.com/danielpatrickdp/adaptive-router/internal/memory"
	"github.com/danielpatrickdp/adaptive-router/internal/rewards"
)

// #region recognized-keys

// Recognized keys in mapping-shaped decision state. An event ID routes the
// decision onto the async track, a trace ID onto the trajectory track; the
// event ID wins when both are present.
const (
	EventIDKey = "event_id"
	TraceIDKey = "trace_id"
)

// #endregion recognized-keys

// #region config

// Config holds the construction parameters for a Router.
type Config struct {
	Options     []string // routing targets; index order is insertion order
	Dim         int      // context vector dimension
	Alpha       float64  // exploration coefficient, >= 0
	RidgeLambda float64  // ridge regularization, > 0
	ValueKey    string   // optional key extracted from mapping state before encoding
	Normalize   bool     // L2-normalize derived encodings (hash projection, embeddings)
}

// DefaultConfig returns the standard parameters for the given options.
func DefaultConfig(options []string) Config {
	return Config{
		Options:     options,
		Dim:         32,
		Alpha:       1.0,
		RidgeLambda: 1.0,
		Normalize:   true,
	}
}

// Validate checks the option set. Policy parameters are validated by the
// policy constructor.
func (c Config) Validate() error {
	if len(c.Options) == 0 {
		return fmt.Errorf("%w: options must be non-empty", ErrConfig)
	}
	seen := make(map[string]bool, len(c.Options))
	for _, opt := range c.Options {
		if opt == "" {
			return fmt.Errorf("%w: option names must be non-empty", ErrConfig)
		}
		if seen[opt] {
			return fmt.Errorf("%w: option names must be unique, %q repeats", ErrConfig, opt)
		}
		seen[opt] = true
	}
	return nil
}

// #endregion config

// #region deps

// Encoder turns a state value into a context vector.
type Encoder interface {
	Encode(state any) ([]float64, error)
}

// Deps bundles the router's collaborators. Nil fields fall back to
// defaults: a hash-projection encoder, an in-memory experience store, no
// scorer, no decision log.
type Deps struct {
	Encoder Encoder
	Store   memory.Store
	Scorer  rewards.Scorer
	Log     *logging.DecisionLog
}

// #endregion deps

// #region feedback

// Feedback carries the outcome of a previously made decision. Reward, when
// set, takes precedence over scoring Result. An empty EventID resolves the
// sync slot; otherwise the async entry under that ID.
type Feedback struct {
	Result   any
	Reward   *float64
	EventID  string
	Metadata map[string]string
}

// #endregion feedback

// #region errors

// ErrConfig marks an invalid router configuration.
var ErrConfig = errors.New("router config")

// ErrNoPendingDecision is returned by sync feedback when no decision is
// awaiting a reward.
var ErrNoPendingDecision = errors.New("no pending decision")

// ErrUnknownDecision is returned by async feedback when the event ID has
// no pending entry.
var ErrUnknownDecision = errors.New("unknown decision")

// ErrUnknownTrace is returned when a trace ID has no active steps.
var ErrUnknownTrace = errors.New("unknown trace")

// ErrMissingReward is returned when feedback carries neither an explicit
// reward nor an outcome a configured scorer could score.
var ErrMissingReward = errors.New("missing reward: pass one explicitly or configure a scorer")

// ErrInvalidDecay is returned when a trajectory decay factor is negative
// or non-finite.
var ErrInvalidDecay = errors.New("decay must be finite and non-negative")

// #endregion errors
