// Package detmat maintains the determinant and inverse of a dense square
// complex matrix across updates that replace a few rows and/or columns
// at a time, using the Sherman-Morrison-Woodbury identity. The engine is
// a finite state machine: every update must be paired with exactly one
// finish or cancel before any further operation.
package detmat

import (
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"vmc/internal/bignum"
	"vmc/internal/util"
)

// State is the engine's position in its update cycle.
type State int

// Engine states. Ready is the only state in which the matrix may be
// inspected by outside code.
const (
	Uninitialized State = iota
	Ready
	RowUpdate
	SingleColumnUpdate
	ColumnsUpdate
	RowColumnUpdate
)

// Options tunes the numerical policy of the engine.
type Options struct {
	// ExtraCareful recomputes the inverse during an update whenever the
	// determinant base falls below SafeLowerCutoff. Set this whenever a
	// negative exponent will be applied to the determinant: a tiny
	// determinant then produces a huge weight, unless the matrix is in
	// fact singular, which only a fresh decomposition can tell.
	ExtraCareful bool
	// Careful asserts the inverse and determinant errors after every
	// commit, logging a warning when they are out of bounds.
	Careful bool

	LowerCutoff     float64
	UpperCutoff     float64
	SafeLowerCutoff float64
}

// DefaultOptions returns the standard cutoffs.
func DefaultOptions() Options {
	return Options{
		LowerCutoff:     1e-50,
		UpperCutoff:     1e50,
		SafeLowerCutoff: 1e-6,
	}
}

func (o Options) withDefaults() Options {
	if o.LowerCutoff == 0 {
		o.LowerCutoff = 1e-50
	}
	if o.UpperCutoff == 0 {
		o.UpperCutoff = 1e50
	}
	if o.SafeLowerCutoff == 0 {
		o.SafeLowerCutoff = 1e-6
	}
	return o
}

// ColumnUpdate names one column replacement: column Matrix of the engine
// is replaced by column Source of the source matrix.
type ColumnUpdate struct {
	Matrix int
	Source int
}

// Engine tracks a square matrix, its inverse, and its determinant as a
// big scalar, updating all three incrementally.
type Engine struct {
	state State
	opts  Options
	n     int

	m   *mat.CDense
	inv *mat.CDense // valid only when nullity == 0

	det    bignum.Big
	oldDet bignum.Big

	// nullity is a lower bound on the null-space dimension; it is zero
	// exactly when the matrix is known to be invertible
	nullity    int
	newNullity int

	detRatio complex128
	ratioInv []complex128 // K^{-1}, flat (nc+nr)^2; nil when the ratio matrix is singular

	pendingRows []int
	pendingCols []int
	oldRows     [][]complex128
	oldCols     [][]complex128
	rowOffsets  [][]complex128
	colOffsets  [][]complex128

	newInv          *mat.CDense
	invRecalculated bool
}

// New constructs an engine from an initial square matrix, performing a
// full-pivot decomposition up front. The matrix is copied.
func New(initial *mat.CDense, opts Options) *Engine {
	r, c := initial.Dims()
	if r != c {
		panic("detmat: matrix must be square")
	}
	e := &Engine{state: Ready, opts: opts.withDefaults(), n: r}
	e.m = mat.NewCDense(r, r, nil)
	copyCDense(e.m, initial)
	e.calculateInverse(false)
	return e
}

func copyCDense(dst, src *mat.CDense) {
	d, s := dst.RawCMatrix(), src.RawCMatrix()
	for i := 0; i < s.Rows; i++ {
		copy(d.Data[i*d.Stride:i*d.Stride+s.Cols], s.Data[i*s.Stride:i*s.Stride+s.Cols])
	}
}

// Clone deep-copies the engine. Only a Ready engine may be cloned.
func (e *Engine) Clone() *Engine {
	if e.state != Ready {
		panic("detmat: clone with update in progress")
	}
	c := &Engine{
		state:   Ready,
		opts:    e.opts,
		n:       e.n,
		det:     e.det,
		nullity: e.nullity,
	}
	c.m = mat.NewCDense(e.n, e.n, nil)
	copyCDense(c.m, e.m)
	if e.inv != nil {
		c.inv = mat.NewCDense(e.n, e.n, nil)
		copyCDense(c.inv, e.inv)
	}
	return c
}

// State returns the engine's current state.
func (e *Engine) State() State {
	return e.state
}

// Size returns the matrix dimension.
func (e *Engine) Size() int {
	e.assertInitialized()
	return e.n
}

// Matrix returns the tracked matrix. Callers must not modify it.
func (e *Engine) Matrix() *mat.CDense {
	e.assertInitialized()
	return e.m
}

// Inverse returns the tracked inverse. It is only available in the Ready
// state on a non-singular matrix. Callers must not modify it.
func (e *Engine) Inverse() *mat.CDense {
	if e.state != Ready {
		panic("detmat: inverse queried with update in progress")
	}
	if e.nullity != 0 {
		panic("detmat: inverse queried on a singular matrix")
	}
	return e.inv
}

// Determinant returns the current determinant. During an update it is
// the tentative post-update value.
func (e *Engine) Determinant() bignum.Big {
	e.assertInitialized()
	return e.det
}

// IsSingular reports whether the matrix is currently singular.
func (e *Engine) IsSingular() bool {
	e.assertInitialized()
	return e.det.IsZero()
}

func (e *Engine) assertInitialized() {
	if e.state == Uninitialized {
		panic("detmat: engine not initialized")
	}
}

func (e *Engine) assertReadyForUpdate() {
	if e.state != Ready {
		panic("detmat: previous update not finished or cancelled")
	}
	if e.invRecalculated {
		panic("detmat: stale recalculated inverse")
	}
}

// SwapRows exchanges two rows. The determinant flips sign; no state
// transition occurs.
func (e *Engine) SwapRows(r1, r2 int) {
	if e.state != Ready {
		panic("detmat: swap with update in progress")
	}
	if r1 == r2 {
		panic("detmat: swapping a row with itself")
	}
	a, b := rowOf(e.m, r1), rowOf(e.m, r2)
	for k := range a {
		a[k], b[k] = b[k], a[k]
	}
	if e.nullity == 0 {
		for i := 0; i < e.n; i++ {
			x, y := e.inv.At(i, r1), e.inv.At(i, r2)
			e.inv.Set(i, r1, y)
			e.inv.Set(i, r2, x)
		}
	}
	e.det = e.det.Mul(-1)
}

// SwapColumns exchanges two columns. The determinant flips sign; no
// state transition occurs.
func (e *Engine) SwapColumns(c1, c2 int) {
	if e.state != Ready {
		panic("detmat: swap with update in progress")
	}
	if c1 == c2 {
		panic("detmat: swapping a column with itself")
	}
	for i := 0; i < e.n; i++ {
		x, y := e.m.At(i, c1), e.m.At(i, c2)
		e.m.Set(i, c1, y)
		e.m.Set(i, c2, x)
	}
	if e.nullity == 0 {
		a, b := rowOf(e.inv, c1), rowOf(e.inv, c2)
		for k := range a {
			a[k], b[k] = b[k], a[k]
		}
	}
	e.det = e.det.Mul(-1)
}

// UpdateRow replaces a single row. O(n) when the matrix is non-singular.
// Pair with FinishRowUpdate or CancelRowUpdate.
func (e *Engine) UpdateRow(r int, row []complex128) {
	e.assertReadyForUpdate()
	if len(row) != e.n {
		panic("detmat: row length mismatch")
	}
	e.stageRows([]int{r}, func(int) []complex128 { return row })
	e.computeUpdate(1)
	e.state = RowUpdate
}

// UpdateColumn replaces a single column. O(n) when the matrix is
// non-singular. Pair with FinishColumnUpdate or CancelColumnUpdate.
func (e *Engine) UpdateColumn(c int, col []complex128) {
	e.assertReadyForUpdate()
	if len(col) != e.n {
		panic("detmat: column length mismatch")
	}
	e.stageCols([]int{c}, func(int) []complex128 { return col })
	e.computeUpdate(1)
	e.state = SingleColumnUpdate
}

// UpdateColumns replaces one or more columns with columns of src in a
// single move. O(k^2*n) plus a k x k decomposition. Pair with
// FinishColumnsUpdate or CancelColumnsUpdate.
func (e *Engine) UpdateColumns(cols []ColumnUpdate, src *mat.CDense) {
	e.assertReadyForUpdate()
	if len(cols) == 0 || len(cols) > e.n {
		panic("detmat: bad column update count")
	}
	targets := make([]int, len(cols))
	for i, cu := range cols {
		for j := 0; j < i; j++ {
			if cols[j].Matrix == cu.Matrix {
				panic("detmat: duplicate column in update")
			}
		}
		targets[i] = cu.Matrix
	}
	e.stageCols(targets, func(k int) []complex128 {
		return colOf(src, cols[k].Source)
	})
	e.computeUpdate(len(cols))
	e.state = ColumnsUpdate
}

// UpdateRowsAndColumns simultaneously replaces rows and columns with the
// corresponding rows and columns of src; entries of src outside those
// rows and columns are ignored. O(n^2) when both rows and columns are
// present. Pair with FinishRowsAndColumnsUpdate or
// CancelRowsAndColumnsUpdate.
func (e *Engine) UpdateRowsAndColumns(rows, cols []int, src *mat.CDense) {
	e.assertReadyForUpdate()
	if len(rows) == 0 && len(cols) == 0 {
		panic("detmat: empty update")
	}
	assertDistinct(rows)
	assertDistinct(cols)
	// rows are staged first; the column snapshots then include the new
	// row entries, so the intersection cells cancel out of the offsets
	e.stageRows(rows, func(k int) []complex128 {
		return rowOf(src, rows[k])
	})
	e.stageCols(cols, func(k int) []complex128 {
		return colOf(src, cols[k])
	})
	e.computeUpdate(len(rows) + len(cols))
	e.state = RowColumnUpdate
}

func assertDistinct(idx []int) {
	for i := range idx {
		for j := 0; j < i; j++ {
			if idx[i] == idx[j] {
				panic("detmat: duplicate index in update")
			}
		}
	}
}

func rowOf(m *mat.CDense, i int) []complex128 {
	raw := m.RawCMatrix()
	return raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols]
}

func colOf(m *mat.CDense, j int) []complex128 {
	r, _ := m.Dims()
	col := make([]complex128, r)
	for i := 0; i < r; i++ {
		col[i] = m.At(i, j)
	}
	return col
}

func (e *Engine) stageRows(rows []int, newRow func(k int) []complex128) {
	e.pendingRows = append([]int(nil), rows...)
	e.oldRows = make([][]complex128, len(rows))
	e.rowOffsets = make([][]complex128, len(rows))
	for k, ri := range rows {
		cur := rowOf(e.m, ri)
		e.oldRows[k] = append([]complex128(nil), cur...)
		repl := newRow(k)
		off := make([]complex128, e.n)
		// everything downstream is based on the offsets for stability, so
		// the matrix is updated by adding them rather than by assignment
		for j := range off {
			off[j] = repl[j] - cur[j]
			cur[j] += off[j]
		}
		e.rowOffsets[k] = off
	}
}

func (e *Engine) stageCols(cols []int, newCol func(k int) []complex128) {
	e.pendingCols = append([]int(nil), cols...)
	e.oldCols = make([][]complex128, len(cols))
	e.colOffsets = make([][]complex128, len(cols))
	for k, ci := range cols {
		old := make([]complex128, e.n)
		off := make([]complex128, e.n)
		repl := newCol(k)
		for i := 0; i < e.n; i++ {
			old[i] = e.m.At(i, ci)
			off[i] = repl[i] - old[i]
			e.m.Set(i, ci, old[i]+off[i])
		}
		e.oldCols[k] = old
		e.colOffsets[k] = off
	}
}

// computeUpdate evaluates the determinant ratio of the staged update and
// multiplies it into the determinant. updateRank bounds how much the
// nullity can have dropped when the matrix was already singular.
func (e *Engine) computeUpdate(updateRank int) {
	e.oldDet = e.det
	e.newNullity = e.nullity
	e.ratioInv = nil
	e.detRatio = 0

	if e.nullity != 0 {
		e.performSingularUpdate(updateRank)
		return
	}

	k := len(e.pendingCols) + len(e.pendingRows)
	ratio := e.buildRatioMatrix()
	if k == 1 {
		e.detRatio = ratio[0]
		if e.detRatio != 0 {
			e.ratioInv = []complex128{1 / e.detRatio}
		}
	} else {
		lu := decompose(mat.NewCDense(k, k, ratio))
		if lu.isInvertible() {
			e.detRatio = lu.determinant().Value()
			kinv := lu.inverse()
			e.ratioInv = make([]complex128, k*k)
			for i := 0; i < k; i++ {
				for j := 0; j < k; j++ {
					e.ratioInv[i*k+j] = kinv.At(i, j)
				}
			}
		} else {
			// the decomposition's determinant is not guaranteed to come
			// out as exactly zero here, so force it
			e.detRatio = 0
		}
	}

	e.det = e.det.Mul(e.detRatio)
	if e.det.IsZero() {
		e.newNullity = 1
		return
	}
	if e.opts.ExtraCareful && cmplx.Abs(e.det.Base()) < e.opts.SafeLowerCutoff {
		e.calculateInverse(true)
	}
}

// buildRatioMatrix assembles the (nc+nr) x (nc+nr) matrix K whose
// determinant is the determinant ratio of the staged update. Column
// deltas occupy the leading block, row deltas the trailing one; the
// row-by-column block costs O(n^2) and dominates a mixed update.
func (e *Engine) buildRatioMatrix() []complex128 {
	nc, nr := len(e.pendingCols), len(e.pendingRows)
	s := nc + nr
	k := make([]complex128, s*s)

	// inv * colOffset, needed for the O(n^2) mixed block
	var invColOff [][]complex128
	if nr > 0 && nc > 0 {
		invColOff = make([][]complex128, nc)
		for j := range e.pendingCols {
			v := make([]complex128, e.n)
			for i := 0; i < e.n; i++ {
				row := rowOf(e.inv, i)
				v[i] = cdot(row, e.colOffsets[j])
			}
			invColOff[j] = v
		}
	}

	for i, ci := range e.pendingCols {
		invRow := rowOf(e.inv, ci)
		for j := range e.pendingCols {
			k[i*s+j] = cdot(invRow, e.colOffsets[j])
		}
		for j, rj := range e.pendingRows {
			k[i*s+nc+j] = e.inv.At(ci, rj)
		}
		k[i*s+i] += 1
	}
	for i := range e.pendingRows {
		for j := range e.pendingCols {
			k[(nc+i)*s+j] = cdot(e.rowOffsets[i], invColOff[j])
		}
		for j, rj := range e.pendingRows {
			k[(nc+i)*s+nc+j] = cdot(e.rowOffsets[i], colOf(e.inv, rj))
		}
		k[(nc+i)*s+(nc+i)] += 1
	}
	return k
}

func cdot(a, b []complex128) complex128 {
	var s complex128
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func (e *Engine) performSingularUpdate(updateRank int) {
	if !e.det.IsZero() || e.newNullity != e.nullity || e.newNullity <= 0 {
		panic("detmat: singular update bookkeeping out of sync")
	}
	// replacing updateRank rows/columns can lower the nullity by at most
	// that much; when the bound hits zero only a fresh decomposition can
	// tell whether the matrix became invertible
	e.newNullity -= updateRank
	if e.newNullity <= 0 {
		e.calculateInverse(true)
	}
}

// FinishRowUpdate commits a pending UpdateRow. O(n^2).
func (e *Engine) FinishRowUpdate() {
	e.finishUpdate(RowUpdate)
}

// FinishColumnUpdate commits a pending UpdateColumn. O(n^2).
func (e *Engine) FinishColumnUpdate() {
	e.finishUpdate(SingleColumnUpdate)
}

// FinishColumnsUpdate commits a pending UpdateColumns.
func (e *Engine) FinishColumnsUpdate() {
	e.finishUpdate(ColumnsUpdate)
}

// FinishRowsAndColumnsUpdate commits a pending UpdateRowsAndColumns.
func (e *Engine) FinishRowsAndColumnsUpdate() {
	e.finishUpdate(RowColumnUpdate)
}

func (e *Engine) finishUpdate(expect State) {
	if e.state != expect {
		panic("detmat: finish does not match the pending update")
	}
	if e.newNullity == 0 && !e.invRecalculated {
		base := cmplx.Abs(e.det.Base())
		if (!e.opts.ExtraCareful && base < e.opts.LowerCutoff) || base > e.opts.UpperCutoff {
			// the accumulated ratio has drifted out of the safe window;
			// re-anchor with a fresh decomposition
			e.calculateInverse(true)
		} else {
			e.applyWoodbury()
		}
	}
	e.nullity = e.newNullity
	if e.invRecalculated {
		e.inv = e.newInv
	}
	e.newInv = nil
	e.invRecalculated = false
	e.clearPending()
	e.state = Ready
	if e.opts.Careful {
		e.beCareful()
	}
}

// CancelRowUpdate rolls back a pending UpdateRow.
func (e *Engine) CancelRowUpdate() {
	e.cancelUpdate(RowUpdate)
}

// CancelColumnUpdate rolls back a pending UpdateColumn.
func (e *Engine) CancelColumnUpdate() {
	e.cancelUpdate(SingleColumnUpdate)
}

// CancelColumnsUpdate rolls back a pending UpdateColumns.
func (e *Engine) CancelColumnsUpdate() {
	e.cancelUpdate(ColumnsUpdate)
}

// CancelRowsAndColumnsUpdate rolls back a pending UpdateRowsAndColumns.
func (e *Engine) CancelRowsAndColumnsUpdate() {
	e.cancelUpdate(RowColumnUpdate)
}

func (e *Engine) cancelUpdate(expect State) {
	if e.state != expect {
		panic("detmat: cancel does not match the pending update")
	}
	// columns must be restored before rows: their snapshots were taken
	// after the rows had already been updated
	for k, ci := range e.pendingCols {
		for i := 0; i < e.n; i++ {
			e.m.Set(i, ci, e.oldCols[k][i])
		}
	}
	for k, ri := range e.pendingRows {
		copy(rowOf(e.m, ri), e.oldRows[k])
	}
	e.det = e.oldDet
	e.newInv = nil
	e.invRecalculated = false
	e.clearPending()
	e.state = Ready
}

func (e *Engine) clearPending() {
	e.pendingRows, e.pendingCols = nil, nil
	e.oldRows, e.oldCols = nil, nil
	e.rowOffsets, e.colOffsets = nil, nil
	e.ratioInv = nil
}

// applyWoodbury folds the staged rank-k change into the inverse using
// the Sherman-Morrison-Woodbury identity. Row-only, column-only, and
// mixed updates all flow through this one routine.
func (e *Engine) applyWoodbury() {
	n := e.n
	nc, nr := len(e.pendingCols), len(e.pendingRows)
	s := nc + nr
	if e.ratioInv == nil {
		panic("detmat: ratio matrix inverse missing")
	}

	invRaw := e.inv.RawCMatrix()
	offset := make([]complex128, n*n)

	// cm = inv * colOffsets (one n-vector per pending column)
	cm := make([][]complex128, nc)
	for j := range e.pendingCols {
		v := make([]complex128, n)
		for i := 0; i < n; i++ {
			v[i] = cdot(invRaw.Data[i*invRaw.Stride:i*invRaw.Stride+n], e.colOffsets[j])
		}
		cm[j] = v
	}
	// rm = rowOffsets * inv (one n-vector per pending row)
	rm := make([][]complex128, nr)
	for j := range e.pendingRows {
		v := make([]complex128, n)
		for t := 0; t < n; t++ {
			f := e.rowOffsets[j][t]
			if f == 0 {
				continue
			}
			row := invRaw.Data[t*invRaw.Stride : t*invRaw.Stride+n]
			for k := 0; k < n; k++ {
				v[k] += f * row[k]
			}
		}
		rm[j] = v
	}
	invCols := make([][]complex128, nr)
	for j, rj := range e.pendingRows {
		invCols[j] = colOf(e.inv, rj)
	}

	u := make([]complex128, n)
	for i, ci := range e.pendingCols {
		invRowCi := invRaw.Data[ci*invRaw.Stride : ci*invRaw.Stride+n]
		for t := range u {
			u[t] = 0
		}
		for j := 0; j < nc; j++ {
			f := e.ratioInv[j*s+i]
			if f == 0 {
				continue
			}
			for t := 0; t < n; t++ {
				u[t] += f * cm[j][t]
			}
		}
		for j := 0; j < nr; j++ {
			f := e.ratioInv[(nc+j)*s+i]
			if f == 0 {
				continue
			}
			for t := 0; t < n; t++ {
				u[t] += f * invCols[j][t]
			}
		}
		subOuter(offset, n, u, invRowCi)
	}
	for j := 0; j < nr; j++ {
		// w = K^{-1}[nc+j, nc:] * rm
		w := make([]complex128, n)
		for t := 0; t < nr; t++ {
			f := e.ratioInv[(nc+j)*s+nc+t]
			if f == 0 {
				continue
			}
			for k := 0; k < n; k++ {
				w[k] += f * rm[t][k]
			}
		}
		subOuter(offset, n, invCols[j], w)
	}
	if nc > 0 && nr > 0 {
		// cm * K^{-1}[0:nc, nc:] * rm
		for j2 := 0; j2 < nr; j2++ {
			for t := range u {
				u[t] = 0
			}
			for i := 0; i < nc; i++ {
				f := e.ratioInv[i*s+nc+j2]
				if f == 0 {
					continue
				}
				for t := 0; t < n; t++ {
					u[t] += f * cm[i][t]
				}
			}
			subOuter(offset, n, u, rm[j2])
		}
	}

	for i := 0; i < n; i++ {
		dst := invRaw.Data[i*invRaw.Stride : i*invRaw.Stride+n]
		src := offset[i*n : (i+1)*n]
		for k := range dst {
			dst[k] += src[k]
		}
	}
}

func subOuter(dst []complex128, n int, u, v []complex128) {
	for i := 0; i < n; i++ {
		ui := u[i]
		if ui == 0 {
			continue
		}
		row := dst[i*n : (i+1)*n]
		for k := 0; k < n; k++ {
			row[k] -= ui * v[k]
		}
	}
}

// RefreshState recomputes the decomposition, inverse, and determinant
// from scratch. Callers use it to fight accumulated floating-point
// error.
func (e *Engine) RefreshState() {
	if e.state != Ready {
		panic("detmat: refresh with update in progress")
	}
	e.calculateInverse(false)
}

func (e *Engine) calculateInverse(updateInProgress bool) {
	lu := decompose(e.m)
	nullity := e.n - lu.rank
	if updateInProgress {
		e.newNullity = nullity
	} else {
		e.nullity = nullity
	}
	if !lu.isInvertible() {
		e.det = bignum.Zero()
		if !updateInProgress {
			e.inv = nil
		}
	} else {
		e.det = lu.determinant()
		target := lu.inverse()
		if updateInProgress {
			e.newInv = target
		} else {
			e.inv = target
		}
		// significant inverse error here usually means the orbitals are
		// not linearly independent
		if errSum := e.ComputeInverseMatrixError(target); errSum > 1e-4 {
			util.Warnf("inverse matrix error of %v", errSum)
		}
	}
	e.invRecalculated = updateInProgress
}

// ComputeInverseMatrixError multiplies the matrix by a candidate inverse
// and sums the absolute deviation from the identity.
func (e *Engine) ComputeInverseMatrixError(target *mat.CDense) float64 {
	n := e.n
	sum := 0.0
	for i := 0; i < n; i++ {
		row := rowOf(e.m, i)
		for j := 0; j < n; j++ {
			var acc complex128
			for k := 0; k < n; k++ {
				acc += row[k] * target.At(k, j)
			}
			if i == j {
				acc -= 1
			}
			sum += cmplx.Abs(acc)
		}
	}
	return sum
}

// ComputeRelativeDeterminantError decomposes the matrix from scratch and
// returns |d_fresh - d_tracked| / |d_fresh|, or the magnitude of the
// tracked determinant when the fresh decomposition says singular.
func (e *Engine) ComputeRelativeDeterminantError() float64 {
	if e.state != Ready {
		panic("detmat: determinant error queried with update in progress")
	}
	lu := decompose(e.m)
	if !lu.isInvertible() {
		return cmplx.Abs(e.det.Value())
	}
	fresh := lu.determinant()
	return cmplx.Abs(e.det.Ratio(fresh) - 1)
}

func (e *Engine) beCareful() {
	if e.det.IsNonzero() {
		if errSum := e.ComputeInverseMatrixError(e.inv); errSum > 1 {
			util.Warnf("large inverse matrix error of %v", errSum)
		}
	}
	if rel := e.ComputeRelativeDeterminantError(); !(rel < 0.03) {
		util.Warnf("large determinant error of %v", rel)
	}
}
