// Package router implements the learnable decision lifecycle: encode a
// state, let the bandit policy pick an option, track the pending decision,
// and fold the eventual reward back into the policy.
package router

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/danielpatrickdp/adaptive-router/internal/codec"
	"github.com/danielpatrickdp/adaptive-router/internal/encoder"
	"github.com/danielpatrickdp/adaptive-router/internal/logging"
	"github.com/danielpatrickdp/adaptive-router/internal/memory"
	"github.com/danielpatrickdp/adaptive-router/internal/policy"
	"github.com/danielpatrickdp/adaptive-router/internal/rewards"
)

// #region router

// pending is one in-flight decision awaiting its reward.
type pending struct {
	context []float64
	arm     int
}

// Router owns the full decision lifecycle. Three bookkeeping tracks never
// touch each other: a single sync slot (overwritten by every plain
// decision), an async table keyed by event ID, and a trace table holding
// ordered step lists. Every entry is consumed exactly once by its matching
// feedback, so no decision can be rewarded twice.
//
// A Router is not safe for concurrent use; serialize calls behind a single
// lock or give each logical session its own instance.
type Router struct {
	cfg     Config
	options []string
	enc     Encoder
	pol     policy.Policy
	store   memory.Store
	scorer  rewards.Scorer
	log     *logging.DecisionLog

	sync   *pending
	async  map[string]pending
	traces map[string][]pending
}

// New constructs a Router. Missing deps fall back to defaults, see Deps.
func New(cfg Config, deps Deps) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pol, err := policy.NewLinUCB(policy.Config{
		NumArms:     len(cfg.Options),
		Dim:         cfg.Dim,
		Alpha:       cfg.Alpha,
		RidgeLambda: cfg.RidgeLambda,
	})
	if err != nil {
		return nil, err
	}

	enc := deps.Encoder
	if enc == nil {
		enc, err = encoder.NewStateEncoder(cfg.Dim, nil, cfg.Normalize)
		if err != nil {
			return nil, err
		}
	}
	store := deps.Store
	if store == nil {
		store = memory.NewInMemoryStore()
	}

	return &Router{
		cfg:     cfg,
		options: append([]string(nil), cfg.Options...),
		enc:     enc,
		pol:     pol,
		store:   store,
		scorer:  deps.Scorer,
		log:     deps.Log,
		async:   make(map[string]pending),
		traces:  make(map[string][]pending),
	}, nil
}

// Options returns the option names in index order.
func (r *Router) Options() []string {
	return append([]string(nil), r.options...)
}

// Store returns the experience store backing this router.
func (r *Router) Store() memory.Store {
	return r.store
}

// Snapshot exports the current policy state.
func (r *Router) Snapshot() policy.Snapshot {
	return r.pol.Export()
}

// #endregion router

// #region decide

// Decide encodes the state, selects an option, records the pending
// decision, and returns the option's name.
//
// Mapping-shaped state is inspected for the recognized event_id and
// trace_id keys; either redirects the decision off the sync track. A
// second decision reusing a pending event ID overwrites the earlier entry
// (last decision wins, matching the sync slot's semantics); the overwritten
// decision can no longer be rewarded.
func (r *Router) Decide(state any) (string, error) {
	value, eventID, traceID := r.extract(state)

	ctx, err := r.enc.Encode(value)
	if err != nil {
		return "", fmt.Errorf("encode state: %w", err)
	}
	arm, err := r.pol.Select(ctx)
	if err != nil {
		return "", err
	}

	p := pending{context: ctx, arm: arm}
	track, id := "sync", ""
	switch {
	case eventID != "":
		r.async[eventID] = p
		track, id = "async", eventID
	case traceID != "":
		r.traces[traceID] = append(r.traces[traceID], p)
		track, id = "trace", traceID
	default:
		r.sync = &p
	}

	name := r.options[arm]
	if r.log != nil {
		// Best effort: a state value that won't marshal logs without one.
		stateJSON, _ := json.Marshal(value)
		err := r.log.Log(logging.Entry{
			EventType:  logging.EventDecide,
			Track:      track,
			Identifier: id,
			Option:     name,
			Arm:        arm,
			StateJSON:  string(stateJSON),
		})
		if err != nil {
			return "", err
		}
	}
	return name, nil
}

// extract splits mapping-shaped state into the value to encode and any
// recognized identifiers. Non-mapping state encodes as-is on the sync
// track.
func (r *Router) extract(state any) (value any, eventID, traceID string) {
	m, ok := state.(map[string]any)
	if !ok {
		return state, "", ""
	}
	eventID, _ = m[EventIDKey].(string)
	traceID, _ = m[TraceIDKey].(string)

	value = any(m)
	if r.cfg.ValueKey != "" {
		if v, ok := m[r.cfg.ValueKey]; ok {
			value = v
		}
	}
	return value, eventID, traceID
}

// #endregion decide

// #region feedback

// Feedback resolves one pending decision, updates the policy with its
// reward, and appends an experience record. The resolved entry is
// discarded, so a second feedback for the same decision fails.
func (r *Router) Feedback(fb Feedback) error {
	var p pending
	track := "sync"
	if fb.EventID != "" {
		track = "async"
		var ok bool
		if p, ok = r.async[fb.EventID]; !ok {
			return fmt.Errorf("%w: event %q", ErrUnknownDecision, fb.EventID)
		}
	} else {
		if r.sync == nil {
			return ErrNoPendingDecision
		}
		p = *r.sync
	}

	reward, err := r.resolveReward(fb)
	if err != nil {
		return err
	}

	// Reward validated: consume the entry before mutating the model.
	if fb.EventID != "" {
		delete(r.async, fb.EventID)
	} else {
		r.sync = nil
	}

	if err := r.pol.Update(p.context, p.arm, reward); err != nil {
		return err
	}
	if err := r.store.Add(memory.Record{
		Context:  p.context,
		Arm:      p.arm,
		Reward:   reward,
		Metadata: fb.Metadata,
	}); err != nil {
		return fmt.Errorf("store experience: %w", err)
	}

	if r.log != nil {
		err := r.log.Log(logging.Entry{
			EventType:  logging.EventFeedback,
			Track:      track,
			Identifier: fb.EventID,
			Option:     r.options[p.arm],
			Arm:        p.arm,
			Reward:     &reward,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// resolveReward picks the explicit reward or scores the outcome, and
// rejects non-finite values.
func (r *Router) resolveReward(fb Feedback) (float64, error) {
	var reward float64
	switch {
	case fb.Reward != nil:
		reward = *fb.Reward
	case r.scorer != nil:
		var err error
		reward, err = r.scorer.Score(fb.Result)
		if err != nil {
			return 0, fmt.Errorf("score outcome: %w", err)
		}
	default:
		return 0, ErrMissingReward
	}
	if math.IsNaN(reward) || math.IsInf(reward, 0) {
		return 0, policy.ErrNonFiniteReward
	}
	return reward, nil
}

// #endregion feedback

// #region complete-trace

// CompleteTrace resolves every step recorded under traceID, crediting the
// final reward backward with exponential decay: the most recent step
// receives finalReward, the step before it finalReward*decay, and so on.
// Steps are processed newest first. The trace is removed; completing the
// same ID again fails with ErrUnknownTrace.
func (r *Router) CompleteTrace(traceID string, finalReward, decay float64) error {
	steps, ok := r.traces[traceID]
	if !ok || len(steps) == 0 {
		return fmt.Errorf("%w: %q", ErrUnknownTrace, traceID)
	}
	if math.IsNaN(finalReward) || math.IsInf(finalReward, 0) {
		return policy.ErrNonFiniteReward
	}
	if math.IsNaN(decay) || math.IsInf(decay, 0) || decay < 0 {
		return ErrInvalidDecay
	}

	// Compute every step's credit up front so an overflow (decay > 1 over
	// a long trace) is caught before any state mutates.
	k := len(steps)
	credits := make([]float64, k)
	for i := range steps {
		credits[i] = finalReward * math.Pow(decay, float64(k-1-i))
		if math.IsNaN(credits[i]) || math.IsInf(credits[i], 0) {
			return fmt.Errorf("%w: step %d credit overflows", policy.ErrNonFiniteReward, i)
		}
	}

	delete(r.traces, traceID)

	for i := k - 1; i >= 0; i-- {
		step := steps[i]
		if err := r.pol.Update(step.context, step.arm, credits[i]); err != nil {
			return err
		}
		err := r.store.Add(memory.Record{
			Context: step.context,
			Arm:     step.arm,
			Reward:  credits[i],
			Metadata: map[string]string{
				"trace_id": traceID,
				"step":     strconv.Itoa(i),
			},
		})
		if err != nil {
			return fmt.Errorf("store experience: %w", err)
		}
		if r.log != nil {
			credit := credits[i]
			err := r.log.Log(logging.Entry{
				EventType:  logging.EventTraceComplete,
				Track:      "trace",
				Identifier: traceID,
				Option:     r.options[step.arm],
				Arm:        step.arm,
				Reward:     &credit,
				Reason:     fmt.Sprintf("step %d of %d", i, k),
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// #endregion complete-trace

// #region persistence

// SavePolicy writes the policy snapshot to path.
func (r *Router) SavePolicy(path string) error {
	return codec.Save(path, r.pol.Export())
}

// LoadPolicy replaces the policy state with the snapshot at path. The
// snapshot must match this router's option count and dimension.
func (r *Router) LoadPolicy(path string) error {
	snap, err := codec.Load(path, len(r.options), r.cfg.Dim)
	if err != nil {
		return err
	}
	return r.pol.Import(snap)
}

// #endregion persistence
