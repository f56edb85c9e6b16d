package policy

import (
	"fmt"
	"math"
)

// #region linucb

// LinUCB implements the disjoint-linear-models LinUCB policy: each arm owns
// an independent ridge regressor (A, b), and selection maximizes the upper
// confidence bound of the estimated reward.
//
// Matrices are recomputed per Select via a Cholesky solve rather than kept
// inverted incrementally; with dimensions in the tens to low hundreds the
// O(d^3) solve stays cheap and numerically stable.
type LinUCB struct {
	cfg Config

	// Per-arm regressor state. a[i] is row-major dim*dim, b[i] is dim.
	a [][]float64
	b [][]float64
}

// NewLinUCB constructs a LinUCB policy with A = ridgeLambda * I and b = 0
// for every arm.
func NewLinUCB(cfg Config) (*LinUCB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &LinUCB{
		cfg: cfg,
		a:   make([][]float64, cfg.NumArms),
		b:   make([][]float64, cfg.NumArms),
	}
	for arm := 0; arm < cfg.NumArms; arm++ {
		p.a[arm] = identityScaled(cfg.Dim, cfg.RidgeLambda)
		p.b[arm] = make([]float64, cfg.Dim)
	}
	return p, nil
}

// Config returns the construction parameters.
func (p *LinUCB) Config() Config {
	return p.cfg
}

// #endregion linucb

// #region select

// Select scores every arm as theta_a . x + alpha * sqrt(x^T A_a^-1 x) with
// theta_a = A_a^-1 b_a, and returns the argmax. Exact score ties resolve to
// the lowest arm index so selection is reproducible.
func (p *LinUCB) Select(context []float64) (int, error) {
	if err := p.checkContext(context); err != nil {
		return -1, err
	}
	d := p.cfg.Dim

	best := 0
	bestScore := math.Inf(-1)
	for arm := 0; arm < p.cfg.NumArms; arm++ {
		score := math.Inf(-1)

		chol, ok := cholesky(p.a[arm], d)
		if ok {
			theta := cholSolve(chol, d, p.b[arm])
			aInvX := cholSolve(chol, d, context)
			score = dot(theta, context) + p.cfg.Alpha*math.Sqrt(dot(context, aInvX))
		}

		if score > bestScore {
			best = arm
			bestScore = score
		}
	}
	return best, nil
}

// #endregion select

// #region update

// Update folds one observation into the chosen arm's regressor:
// A_a += x x^T, b_a += r x. Updates are additive, so batch and sequential
// application of the same observations yield identical state.
func (p *LinUCB) Update(context []float64, arm int, reward float64) error {
	if err := p.checkContext(context); err != nil {
		return err
	}
	if arm < 0 || arm >= p.cfg.NumArms {
		return &DimensionError{Field: "arm index", Want: p.cfg.NumArms - 1, Got: arm}
	}
	if math.IsNaN(reward) || math.IsInf(reward, 0) {
		return ErrNonFiniteReward
	}

	d := p.cfg.Dim
	a := p.a[arm]
	for i := 0; i < d; i++ {
		xi := context[i]
		for j := 0; j < d; j++ {
			a[i*d+j] += xi * context[j]
		}
		p.b[arm][i] += reward * context[i]
	}
	return nil
}

// Theta returns the arm's current ridge estimate A_a^-1 b_a. Inspection
// tooling reads this; selection recomputes it per call.
func (p *LinUCB) Theta(arm int) ([]float64, error) {
	if arm < 0 || arm >= p.cfg.NumArms {
		return nil, &DimensionError{Field: "arm index", Want: p.cfg.NumArms - 1, Got: arm}
	}
	chol, ok := cholesky(p.a[arm], p.cfg.Dim)
	if !ok {
		return nil, fmt.Errorf("arm %d: matrix is not positive definite", arm)
	}
	return cholSolve(chol, p.cfg.Dim, p.b[arm]), nil
}

// #endregion update

// #region export-import

// Export deep-copies the full policy state into a snapshot.
func (p *LinUCB) Export() Snapshot {
	arms := make([]ArmState, p.cfg.NumArms)
	for i := range arms {
		arms[i] = ArmState{
			A: append([]float64(nil), p.a[i]...),
			B: append([]float64(nil), p.b[i]...),
		}
	}
	return Snapshot{
		FormatVersion: SnapshotFormatVersion,
		NumArms:       p.cfg.NumArms,
		Dim:           p.cfg.Dim,
		Alpha:         p.cfg.Alpha,
		RidgeLambda:   p.cfg.RidgeLambda,
		Arms:          arms,
	}
}

// Import replaces the policy state with the snapshot's. The snapshot must
// match the policy's arm count and dimension; alpha and ridge lambda are
// adopted from the snapshot.
func (p *LinUCB) Import(snap Snapshot) error {
	if snap.NumArms != p.cfg.NumArms {
		return &DimensionError{Field: "num arms", Want: p.cfg.NumArms, Got: snap.NumArms}
	}
	if snap.Dim != p.cfg.Dim {
		return &DimensionError{Field: "dim", Want: p.cfg.Dim, Got: snap.Dim}
	}
	if len(snap.Arms) != p.cfg.NumArms {
		return &DimensionError{Field: "arm states", Want: p.cfg.NumArms, Got: len(snap.Arms)}
	}
	d := p.cfg.Dim
	for i, arm := range snap.Arms {
		if len(arm.A) != d*d {
			return &DimensionError{Field: fmt.Sprintf("arm %d matrix", i), Want: d * d, Got: len(arm.A)}
		}
		if len(arm.B) != d {
			return &DimensionError{Field: fmt.Sprintf("arm %d vector", i), Want: d, Got: len(arm.B)}
		}
	}

	for i, arm := range snap.Arms {
		p.a[i] = append([]float64(nil), arm.A...)
		p.b[i] = append([]float64(nil), arm.B...)
	}
	p.cfg.Alpha = snap.Alpha
	p.cfg.RidgeLambda = snap.RidgeLambda
	return nil
}

// #endregion export-import

// #region helpers

func (p *LinUCB) checkContext(context []float64) error {
	if len(context) != p.cfg.Dim {
		return &DimensionError{Field: "context", Want: p.cfg.Dim, Got: len(context)}
	}
	for _, v := range context {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrNonFiniteContext
		}
	}
	return nil
}

func identityScaled(d int, scale float64) []float64 {
	m := make([]float64, d*d)
	for i := 0; i < d; i++ {
		m[i*d+i] = scale
	}
	return m
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// #endregion helpers
