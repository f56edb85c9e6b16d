package replay

import (
	"testing"
)

// helper: two-option fixture with the given steps.
func twoOptionFixture(steps []FixtureStep) *Fixture {
	return &Fixture{
		Config: FixtureConfig{
			Options:   []string{"fast_path", "careful_path"},
			Dim:       8,
			ValueKey:  "value",
			Normalize: true,
		},
		Steps: steps,
	}
}

func rewardOf(v float64) *float64 { return &v }

// 1. A fresh policy ties across arms, so the first decision is the lowest
// index. That expectation always holds regardless of the encoded context.
func TestReplay_FirstDecisionTieBreak(t *testing.T) {
	f := twoOptionFixture([]FixtureStep{
		{Kind: StepDecide, Value: "anything at all", Expect: "fast_path"},
	})

	results, _, err := Replay(f)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if !results[0].Match {
		t.Errorf("expected fast_path, got %q", results[0].Option)
	}
}

// 2. Lifecycle errors land on the step result instead of aborting the run.
func TestReplay_ErrorsAreRecorded(t *testing.T) {
	f := twoOptionFixture([]FixtureStep{
		{Kind: StepFeedback, Reward: rewardOf(1.0)},                            // no pending sync decision
		{Kind: StepCompleteTrace, TraceID: "t", FinalReward: 1.0, Decay: 0.5}, // unknown trace
		{Kind: StepDecide, Value: "still works"},
	})

	results, _, err := Replay(f)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if results[0].Err == "" || results[1].Err == "" {
		t.Errorf("expected lifecycle errors on the first two steps: %+v", results[:2])
	}
	if results[2].Err != "" {
		t.Errorf("expected the run to continue past errors, got %q", results[2].Err)
	}
}

// 3. Bad config fails construction outright.
func TestReplay_BadConfig(t *testing.T) {
	f := &Fixture{Config: FixtureConfig{Options: nil}}
	if _, _, err := Replay(f); err == nil {
		t.Fatal("expected error for empty option set")
	}
}

// 4. Deterministic: the hash encoder pins every context, so two runs of the
// same fixture produce identical decisions and snapshots.
func TestReplay_Deterministic(t *testing.T) {
	steps := []FixtureStep{
		{Kind: StepDecide, Value: "alpha"},
		{Kind: StepFeedback, Reward: rewardOf(1.0)},
		{Kind: StepDecide, Value: "beta"},
		{Kind: StepFeedback, Reward: rewardOf(0.0)},
		{Kind: StepDecide, Value: "alpha"},
		{Kind: StepFeedback, Reward: rewardOf(1.0)},
		{Kind: StepDecide, Value: "beta"},
	}
	f := twoOptionFixture(steps)

	results1, snap1, err := Replay(f)
	if err != nil {
		t.Fatalf("Replay 1: %v", err)
	}
	results2, snap2, err := Replay(f)
	if err != nil {
		t.Fatalf("Replay 2: %v", err)
	}

	for i := range results1 {
		if results1[i].Option != results2[i].Option {
			t.Errorf("step %d: decisions differ: %q vs %q", i, results1[i].Option, results2[i].Option)
		}
	}
	for a := range snap1.Arms {
		for j := range snap1.Arms[a].B {
			if snap1.Arms[a].B[j] != snap2.Arms[a].B[j] {
				t.Fatalf("arm %d: snapshots differ at b[%d]", a, j)
			}
		}
	}
}

// 5. Summarize: counts match step kinds and recorded outcomes.
func TestReplay_Summarize(t *testing.T) {
	results := []StepResult{
		{Kind: StepDecide, Match: true},
		{Kind: StepDecide, Match: false, Expect: "careful_path", Option: "fast_path"},
		{Kind: StepFeedback, Match: true},
		{Kind: StepFeedback, Match: true, Err: "unknown decision"},
		{Kind: StepCompleteTrace, Match: true},
	}

	s := Summarize(results)
	if s.TotalSteps != 5 {
		t.Errorf("expected TotalSteps=5, got %d", s.TotalSteps)
	}
	if s.Decisions != 2 || s.Feedbacks != 2 || s.TraceCompletions != 1 {
		t.Errorf("unexpected kind counts: %+v", s)
	}
	if s.Mismatches != 1 {
		t.Errorf("expected Mismatches=1, got %d", s.Mismatches)
	}
	if s.Errors != 1 {
		t.Errorf("expected Errors=1, got %d", s.Errors)
	}
}
