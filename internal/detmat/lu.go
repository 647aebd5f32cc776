package detmat

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"vmc/internal/bignum"
)

const machineEpsilon = 2.220446049250313e-16

// fullPivLU is an LU decomposition with complete pivoting, P*A*Q = L*U.
// Complete pivoting is required both for rank detection on the
// near-singular matrices this engine must survive, and because the sign
// of the permutation is needed to reconstruct the determinant's phase.
type fullPivLU struct {
	n      int
	lu     []complex128 // row-major; unit-lower L below, U on and above the diagonal
	rowPiv []int        // row swapped with k at step k
	colPiv []int        // column swapped with k at step k
	detPQ  int          // sign of the combined permutation
	rank   int
}

func decompose(m *mat.CDense) *fullPivLU {
	r, c := m.Dims()
	if r != c {
		panic("detmat: matrix must be square")
	}
	n := r
	d := &fullPivLU{
		n:      n,
		lu:     make([]complex128, n*n),
		rowPiv: make([]int, n),
		colPiv: make([]int, n),
		detPQ:  1,
		rank:   0,
	}
	raw := m.RawCMatrix()
	for i := 0; i < n; i++ {
		copy(d.lu[i*n:(i+1)*n], raw.Data[i*raw.Stride:i*raw.Stride+n])
	}

	pivots := make([]float64, n)
	maxPivot := 0.0
	for k := 0; k < n; k++ {
		bi, bj, biggest := k, k, 0.0
		for i := k; i < n; i++ {
			for j := k; j < n; j++ {
				if a := cmplx.Abs(d.lu[i*n+j]); a > biggest {
					biggest, bi, bj = a, i, j
				}
			}
		}
		if biggest == 0 {
			// the remaining corner is exactly zero
			for j := k; j < n; j++ {
				d.rowPiv[j], d.colPiv[j] = j, j
			}
			break
		}
		d.rowPiv[k], d.colPiv[k] = bi, bj
		if bi != k {
			swapRows(d.lu, n, k, bi)
			d.detPQ = -d.detPQ
		}
		if bj != k {
			swapCols(d.lu, n, k, bj)
			d.detPQ = -d.detPQ
		}
		pivots[k] = biggest
		if biggest > maxPivot {
			maxPivot = biggest
		}
		piv := d.lu[k*n+k]
		for i := k + 1; i < n; i++ {
			d.lu[i*n+k] /= piv
			f := d.lu[i*n+k]
			if f == 0 {
				continue
			}
			for j := k + 1; j < n; j++ {
				d.lu[i*n+j] -= f * d.lu[k*n+j]
			}
		}
	}

	// A pivot is treated as nonzero relative to the largest pivot seen.
	// The tolerance is widened tenfold over n*eps so that nearly
	// dependent orbital columns register as singular rather than as a
	// wildly inaccurate inverse.
	thresh := 10 * float64(n) * machineEpsilon * maxPivot
	for k := 0; k < n; k++ {
		if pivots[k] > thresh {
			d.rank++
		}
	}
	return d
}

func swapRows(a []complex128, n, i, j int) {
	ri, rj := a[i*n:(i+1)*n], a[j*n:(j+1)*n]
	for k := range ri {
		ri[k], rj[k] = rj[k], ri[k]
	}
}

func swapCols(a []complex128, n, i, j int) {
	for r := 0; r < n; r++ {
		a[r*n+i], a[r*n+j] = a[r*n+j], a[r*n+i]
	}
}

func (d *fullPivLU) isInvertible() bool {
	return d.rank == d.n
}

// determinant reconstructs the determinant from the U diagonal and the
// permutation sign, in the split phase/log-magnitude representation.
func (d *fullPivLU) determinant() bignum.Big {
	if !d.isInvertible() {
		return bignum.Zero()
	}
	phase := complex(float64(d.detPQ), 0)
	logs := make([]float64, d.n)
	for k := 0; k < d.n; k++ {
		diag := d.lu[k*d.n+k]
		a := cmplx.Abs(diag)
		phase *= diag / complex(a, 0)
		logs[k] = math.Log(a)
	}
	return bignum.FromLogDecomposition(phase, floats.Sum(logs))
}

// inverse solves A*X = I column by column. Only valid when invertible.
func (d *fullPivLU) inverse() *mat.CDense {
	if !d.isInvertible() {
		panic("detmat: inverse of a singular decomposition")
	}
	n := d.n
	inv := mat.NewCDense(n, n, nil)
	b := make([]complex128, n)
	for col := 0; col < n; col++ {
		for i := range b {
			b[i] = 0
		}
		b[col] = 1
		// apply the row permutation in the order the swaps happened
		for k := 0; k < n; k++ {
			if p := d.rowPiv[k]; p != k {
				b[k], b[p] = b[p], b[k]
			}
		}
		// forward substitution against unit-lower L
		for i := 0; i < n; i++ {
			s := b[i]
			for j := 0; j < i; j++ {
				s -= d.lu[i*n+j] * b[j]
			}
			b[i] = s
		}
		// back substitution against U
		for i := n - 1; i >= 0; i-- {
			s := b[i]
			for j := i + 1; j < n; j++ {
				s -= d.lu[i*n+j] * b[j]
			}
			b[i] = s / d.lu[i*n+i]
		}
		// undo the column permutation, newest swap first
		for k := n - 1; k >= 0; k-- {
			if p := d.colPiv[k]; p != k {
				b[k], b[p] = b[p], b[k]
			}
		}
		for i := 0; i < n; i++ {
			inv.Set(i, col, b[i])
		}
	}
	return inv
}
