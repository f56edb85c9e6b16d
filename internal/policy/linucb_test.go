package policy

import (
	"errors"
	"math"
	"testing"
)

func newTestPolicy(t *testing.T, cfg Config) *LinUCB {
	t.Helper()
	p, err := NewLinUCB(cfg)
	if err != nil {
		t.Fatalf("NewLinUCB: %v", err)
	}
	return p
}

func TestNewLinUCB_FreshArmState(t *testing.T) {
	cfg := Config{NumArms: 3, Dim: 4, Alpha: 1.0, RidgeLambda: 2.5}
	p := newTestPolicy(t, cfg)

	snap := p.Export()
	for arm, st := range snap.Arms {
		for i := 0; i < cfg.Dim; i++ {
			for j := 0; j < cfg.Dim; j++ {
				want := 0.0
				if i == j {
					want = cfg.RidgeLambda
				}
				if got := st.A[i*cfg.Dim+j]; got != want {
					t.Fatalf("arm %d A[%d][%d] = %g, want %g", arm, i, j, got, want)
				}
			}
			if st.B[i] != 0 {
				t.Fatalf("arm %d b[%d] = %g, want 0", arm, i, st.B[i])
			}
		}
	}
}

func TestConfigValidation(t *testing.T) {
	cases := []Config{
		{NumArms: 0, Dim: 4, Alpha: 1, RidgeLambda: 1},
		{NumArms: 2, Dim: 0, Alpha: 1, RidgeLambda: 1},
		{NumArms: 2, Dim: -3, Alpha: 1, RidgeLambda: 1},
		{NumArms: 2, Dim: 4, Alpha: -0.5, RidgeLambda: 1},
		{NumArms: 2, Dim: 4, Alpha: 1, RidgeLambda: 0},
	}
	for i, cfg := range cases {
		if _, err := NewLinUCB(cfg); !errors.Is(err, ErrConfig) {
			t.Errorf("case %d: expected ErrConfig, got %v", i, err)
		}
	}
}

func TestUpdate_Additive(t *testing.T) {
	cfg := Config{NumArms: 2, Dim: 2, Alpha: 1, RidgeLambda: 1}
	p := newTestPolicy(t, cfg)

	x := []float64{1, 2}
	if err := p.Update(x, 0, 0.5); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := p.Update(x, 0, 1.5); err != nil {
		t.Fatalf("Update: %v", err)
	}

	snap := p.Export()
	// A = I + 2 * x x^T
	wantA := []float64{1 + 2*1, 2 * 2, 2 * 2, 1 + 2*4}
	for i, want := range wantA {
		if got := snap.Arms[0].A[i]; math.Abs(got-want) > 1e-12 {
			t.Fatalf("A[%d] = %g, want %g", i, got, want)
		}
	}
	// b = (0.5 + 1.5) * x
	wantB := []float64{2, 4}
	for i, want := range wantB {
		if got := snap.Arms[0].B[i]; math.Abs(got-want) > 1e-12 {
			t.Fatalf("b[%d] = %g, want %g", i, got, want)
		}
	}

	// Arm 1 untouched
	if snap.Arms[1].B[0] != 0 || snap.Arms[1].A[1] != 0 {
		t.Fatal("arm 1 state mutated by arm 0 update")
	}
}

func TestUpdate_Validation(t *testing.T) {
	p := newTestPolicy(t, Config{NumArms: 2, Dim: 2, Alpha: 1, RidgeLambda: 1})

	var dimErr *DimensionError
	if err := p.Update([]float64{1}, 0, 1.0); !errors.As(err, &dimErr) {
		t.Errorf("short context: expected DimensionError, got %v", err)
	}
	if err := p.Update([]float64{1, 2}, 5, 1.0); !errors.As(err, &dimErr) {
		t.Errorf("bad arm: expected DimensionError, got %v", err)
	}
	if err := p.Update([]float64{1, 2}, -1, 1.0); !errors.As(err, &dimErr) {
		t.Errorf("negative arm: expected DimensionError, got %v", err)
	}
	if err := p.Update([]float64{1, 2}, 0, math.NaN()); !errors.Is(err, ErrNonFiniteReward) {
		t.Errorf("NaN reward: expected ErrNonFiniteReward, got %v", err)
	}
	if err := p.Update([]float64{1, 2}, 0, math.Inf(1)); !errors.Is(err, ErrNonFiniteReward) {
		t.Errorf("Inf reward: expected ErrNonFiniteReward, got %v", err)
	}
	if err := p.Update([]float64{math.NaN(), 2}, 0, 1.0); !errors.Is(err, ErrNonFiniteContext) {
		t.Errorf("NaN context: expected ErrNonFiniteContext, got %v", err)
	}
}

func TestSelect_Validation(t *testing.T) {
	p := newTestPolicy(t, Config{NumArms: 2, Dim: 3, Alpha: 1, RidgeLambda: 1})

	var dimErr *DimensionError
	if _, err := p.Select([]float64{1, 2}); !errors.As(err, &dimErr) {
		t.Errorf("expected DimensionError, got %v", err)
	}
	if _, err := p.Select([]float64{1, math.Inf(1), 0}); !errors.Is(err, ErrNonFiniteContext) {
		t.Errorf("expected ErrNonFiniteContext, got %v", err)
	}
}

func TestSelect_TieBreakLowestIndex(t *testing.T) {
	// Fresh policy: every arm scores identically, so the lowest index wins.
	p := newTestPolicy(t, Config{NumArms: 4, Dim: 3, Alpha: 1, RidgeLambda: 1})

	for i := 0; i < 5; i++ {
		arm, err := p.Select([]float64{0.3, -0.7, 0.1})
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if arm != 0 {
			t.Fatalf("expected arm 0 on tie, got %d", arm)
		}
	}
}

func TestSelect_KnownScore(t *testing.T) {
	// d=1 is small enough to verify the UCB score by hand:
	// after Update(x=1, r=1): A = 2, b = 1, theta = 0.5,
	// score(x=1) = 0.5 + alpha * sqrt(1/2).
	alpha := 0.7
	p := newTestPolicy(t, Config{NumArms: 2, Dim: 1, Alpha: alpha, RidgeLambda: 1})
	if err := p.Update([]float64{1}, 0, 1.0); err != nil {
		t.Fatalf("Update: %v", err)
	}

	arm, err := p.Select([]float64{1})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	wantArm0 := 0.5 + alpha*math.Sqrt(0.5)
	wantArm1 := 0.0 + alpha*1.0
	wantArm := 0
	if wantArm1 > wantArm0 {
		wantArm = 1
	}
	if arm != wantArm {
		t.Fatalf("expected arm %d (scores %.4f vs %.4f), got %d", wantArm, wantArm0, wantArm1, arm)
	}
}

func TestSelect_Convergence(t *testing.T) {
	// Two arms, two orthogonal contexts. Arm 0 is correct for the first
	// context, arm 1 for the second. After 50+ reward cycles the policy
	// should pick the correct arm in at least 19 of the final 20 trials
	// per context.
	p := newTestPolicy(t, Config{NumArms: 2, Dim: 4, Alpha: 1, RidgeLambda: 1})

	ctxA := []float64{1, 0, 0, 0}
	ctxB := []float64{0, 1, 0, 0}
	correct := map[int]int{0: 0, 1: 1} // context index -> rewarded arm

	run := func(rounds int) (hitsA, hitsB int) {
		for i := 0; i < rounds; i++ {
			for ci, x := range [][]float64{ctxA, ctxB} {
				arm, err := p.Select(x)
				if err != nil {
					t.Fatalf("Select: %v", err)
				}
				reward := 0.0
				if arm == correct[ci] {
					reward = 1.0
					if ci == 0 {
						hitsA++
					} else {
						hitsB++
					}
				}
				if err := p.Update(x, arm, reward); err != nil {
					t.Fatalf("Update: %v", err)
				}
			}
		}
		return hitsA, hitsB
	}

	run(50) // warmup
	hitsA, hitsB := run(20)
	if hitsA < 19 {
		t.Errorf("context A: expected >= 19/20 correct, got %d", hitsA)
	}
	if hitsB < 19 {
		t.Errorf("context B: expected >= 19/20 correct, got %d", hitsB)
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	cfg := Config{NumArms: 3, Dim: 5, Alpha: 0.8, RidgeLambda: 1.2}
	p1 := newTestPolicy(t, cfg)

	contexts := [][]float64{
		{0.1, 0.2, 0.3, 0.4, 0.5},
		{1, 0, -1, 0.5, 0.25},
		{-0.3, 0.9, 0.2, -0.8, 0.1},
	}
	for i, x := range contexts {
		for r := 0; r < 4; r++ {
			if err := p1.Update(x, (i+r)%cfg.NumArms, float64(r)*0.25); err != nil {
				t.Fatalf("Update: %v", err)
			}
		}
	}

	p2 := newTestPolicy(t, cfg)
	if err := p2.Import(p1.Export()); err != nil {
		t.Fatalf("Import: %v", err)
	}

	for _, x := range contexts {
		a1, err := p1.Select(x)
		if err != nil {
			t.Fatalf("Select p1: %v", err)
		}
		a2, err := p2.Select(x)
		if err != nil {
			t.Fatalf("Select p2: %v", err)
		}
		if a1 != a2 {
			t.Fatalf("selection diverged after import: %d vs %d", a1, a2)
		}
	}
}

func TestTheta_RidgeEstimate(t *testing.T) {
	p := newTestPolicy(t, Config{NumArms: 2, Dim: 1, Alpha: 1, RidgeLambda: 1})
	// Two observations of x=[1], r=1: A = 1 + 2 = 3, b = 2, theta = 2/3.
	for i := 0; i < 2; i++ {
		if err := p.Update([]float64{1}, 0, 1); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	theta, err := p.Theta(0)
	if err != nil {
		t.Fatalf("Theta: %v", err)
	}
	if math.Abs(theta[0]-2.0/3.0) > 1e-12 {
		t.Errorf("theta = %v, want 2/3", theta[0])
	}

	if _, err := p.Theta(5); err == nil {
		t.Error("expected error for out-of-range arm")
	}
}

func TestImport_ShapeMismatch(t *testing.T) {
	p := newTestPolicy(t, Config{NumArms: 2, Dim: 4, Alpha: 1, RidgeLambda: 1})
	donor := newTestPolicy(t, Config{NumArms: 3, Dim: 4, Alpha: 1, RidgeLambda: 1})

	var dimErr *DimensionError
	if err := p.Import(donor.Export()); !errors.As(err, &dimErr) {
		t.Errorf("arm mismatch: expected DimensionError, got %v", err)
	}

	donor2 := newTestPolicy(t, Config{NumArms: 2, Dim: 8, Alpha: 1, RidgeLambda: 1})
	if err := p.Import(donor2.Export()); !errors.As(err, &dimErr) {
		t.Errorf("dim mismatch: expected DimensionError, got %v", err)
	}
}
