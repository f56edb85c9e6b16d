package policy

import "math"

// #region cholesky

// cholesky computes the lower-triangular factor L of a symmetric
// positive-definite matrix (row-major, d*d) with A = L L^T. Returns
// ok=false if a pivot is not positive, which only happens if the matrix
// lost positive-definiteness to rounding.
func cholesky(a []float64, d int) ([]float64, bool) {
	l := make([]float64, d*d)
	for i := 0; i < d; i++ {
		for j := 0; j <= i; j++ {
			sum := a[i*d+j]
			for k := 0; k < j; k++ {
				sum -= l[i*d+k] * l[j*d+k]
			}
			if i == j {
				if sum <= 0 {
					return nil, false
				}
				l[i*d+i] = math.Sqrt(sum)
			} else {
				l[i*d+j] = sum / l[j*d+j]
			}
		}
	}
	return l, true
}

// cholSolve solves A y = rhs given the Cholesky factor L of A, via a
// forward substitution (L z = rhs) followed by a back substitution
// (L^T y = z).
func cholSolve(l []float64, d int, rhs []float64) []float64 {
	z := make([]float64, d)
	for i := 0; i < d; i++ {
		sum := rhs[i]
		for k := 0; k < i; k++ {
			sum -= l[i*d+k] * z[k]
		}
		z[i] = sum / l[i*d+i]
	}

	y := make([]float64, d)
	for i := d - 1; i >= 0; i-- {
		sum := z[i]
		for k := i + 1; k < d; k++ {
			sum -= l[k*d+i] * y[k]
		}
		y[i] = sum / l[i*d+i]
	}
	return y
}

// #endregion cholesky
