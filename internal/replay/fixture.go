package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/adaptive-router/internal/router"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: a router
// configuration plus an ordered list of lifecycle steps to drive through it.
type Fixture struct {
	Description string        `json:"description"`
	Config      FixtureConfig `json:"config"`
	Steps       []FixtureStep `json:"steps"`
}

// FixtureConfig mirrors router.Config with JSON tags.
type FixtureConfig struct {
	Options     []string `json:"options"`
	Dim         int      `json:"dim"`
	Alpha       float64  `json:"alpha"`
	RidgeLambda float64  `json:"ridge_lambda"`
	ValueKey    string   `json:"value_key"`
	Normalize   bool     `json:"normalize"`
}

// Step kinds accepted in a fixture.
const (
	StepDecide        = "decide"
	StepFeedback      = "feedback"
	StepCompleteTrace = "complete_trace"
)

// FixtureStep is one recorded lifecycle call. Which fields apply depends on
// Kind: decide uses Value plus optional EventID/TraceID and Expect; feedback
// uses Reward plus optional EventID; complete_trace uses TraceID,
// FinalReward, and Decay.
type FixtureStep struct {
	Kind        string   `json:"kind"`
	Value       string   `json:"value,omitempty"`
	EventID     string   `json:"event_id,omitempty"`
	TraceID     string   `json:"trace_id,omitempty"`
	Reward      *float64 `json:"reward,omitempty"`
	FinalReward float64  `json:"final_reward,omitempty"`
	Decay       float64  `json:"decay,omitempty"`
	Expect      string   `json:"expect,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return &f, nil
}

func (f *Fixture) validate() error {
	for i, s := range f.Steps {
		switch s.Kind {
		case StepDecide, StepFeedback, StepCompleteTrace:
		default:
			return fmt.Errorf("step %d: unknown kind %q", i, s.Kind)
		}
	}
	return nil
}

// ToRouterConfig converts a FixtureConfig to a domain router.Config. Zero
// numeric fields fall back to the defaults.
func (fc *FixtureConfig) ToRouterConfig() router.Config {
	cfg := router.DefaultConfig(fc.Options)
	if fc.Dim > 0 {
		cfg.Dim = fc.Dim
	}
	if fc.Alpha > 0 {
		cfg.Alpha = fc.Alpha
	}
	if fc.RidgeLambda > 0 {
		cfg.RidgeLambda = fc.RidgeLambda
	}
	cfg.ValueKey = fc.ValueKey
	cfg.Normalize = fc.Normalize
	return cfg
}

// #endregion fixture-loader
