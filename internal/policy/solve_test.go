package policy

import (
	"math"
	"testing"
)

func TestCholSolve_KnownSystem(t *testing.T) {
	// A = [[4, 2], [2, 3]], rhs = [6, 5] -> y = [1, 1]
	a := []float64{4, 2, 2, 3}
	l, ok := cholesky(a, 2)
	if !ok {
		t.Fatal("cholesky failed on SPD matrix")
	}
	y := cholSolve(l, 2, []float64{6, 5})
	for i, want := range []float64{1, 1} {
		if math.Abs(y[i]-want) > 1e-12 {
			t.Fatalf("y[%d] = %g, want %g", i, y[i], want)
		}
	}
}

func TestCholesky_RejectsNonSPD(t *testing.T) {
	// Negative diagonal is not positive-definite.
	a := []float64{-1, 0, 0, 1}
	if _, ok := cholesky(a, 2); ok {
		t.Fatal("expected cholesky to reject non-SPD matrix")
	}
}
