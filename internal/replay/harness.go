package replay

import (
	"fmt"

	"github.com/danielpatrickdp/adaptive-router/internal/policy"
	"github.com/danielpatrickdp/adaptive-router/internal/router"
)

// #region types

// StepResult captures the outcome of replaying one fixture step.
type StepResult struct {
	Index  int
	Kind   string
	Option string // chosen option, decide steps only
	Expect string // expected option from the fixture, if any
	Match  bool   // Expect == Option; true when no expectation was recorded
	Err    string // lifecycle error, empty on success
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	TotalSteps       int
	Decisions        int
	Feedbacks        int
	TraceCompletions int
	Mismatches       int
	Errors           int
}

// #endregion types

// #region replay

// Replay drives the fixture's steps through a fresh router and returns the
// per-step results alongside the final policy snapshot. The router uses the
// default deterministic hash encoder, so a fixture replays identically on
// every run.
//
// Lifecycle errors (unknown event, missing reward, ...) are recorded on the
// step result rather than aborting the run; only a broken fixture or router
// construction fails outright.
func Replay(f *Fixture) ([]StepResult, policy.Snapshot, error) {
	cfg := f.Config.ToRouterConfig()
	r, err := router.New(cfg, router.Deps{})
	if err != nil {
		return nil, policy.Snapshot{}, fmt.Errorf("build router: %w", err)
	}

	results := make([]StepResult, 0, len(f.Steps))
	for i, step := range f.Steps {
		res := StepResult{Index: i, Kind: step.Kind, Expect: step.Expect, Match: true}

		switch step.Kind {
		case StepDecide:
			option, err := r.Decide(decideState(cfg, step))
			if err != nil {
				res.Err = err.Error()
				res.Match = step.Expect == ""
				break
			}
			res.Option = option
			if step.Expect != "" {
				res.Match = option == step.Expect
			}

		case StepFeedback:
			if err := r.Feedback(router.Feedback{Reward: step.Reward, EventID: step.EventID}); err != nil {
				res.Err = err.Error()
			}

		case StepCompleteTrace:
			if err := r.CompleteTrace(step.TraceID, step.FinalReward, step.Decay); err != nil {
				res.Err = err.Error()
			}
		}

		results = append(results, res)
	}
	return results, r.Snapshot(), nil
}

// decideState rebuilds the state argument for a decide step. A bare value
// passes through as a string; identifiers force the mapping shape, with the
// value placed under the configured key.
func decideState(cfg router.Config, step FixtureStep) any {
	if step.EventID == "" && step.TraceID == "" {
		return step.Value
	}
	key := cfg.ValueKey
	if key == "" {
		key = "value"
	}
	state := map[string]any{key: step.Value}
	if step.EventID != "" {
		state[router.EventIDKey] = step.EventID
	}
	if step.TraceID != "" {
		state[router.TraceIDKey] = step.TraceID
	}
	return state
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []StepResult) Summary {
	s := Summary{TotalSteps: len(results)}
	for _, r := range results {
		switch r.Kind {
		case StepDecide:
			s.Decisions++
		case StepFeedback:
			s.Feedbacks++
		case StepCompleteTrace:
			s.TraceCompletions++
		}
		if !r.Match {
			s.Mismatches++
		}
		if r.Err != "" {
			s.Errors++
		}
	}
	return s
}

// #endregion replay
