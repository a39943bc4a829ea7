package modeller

import (
	"math"

	errorsmod "cosmossdk.io/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/isoflux/isoflux/internal/types"
)

const (
	// Entries below pivotTolerance are treated as rank noise during the
	// reduction.
	pivotTolerance = 1e-9
	// nullspaceTolerance bounds the Frobenius norm of S·N for an accepted
	// basis.
	nullspaceTolerance = 1e-9
)

// ComputeNullspace reduces the stoichiometry matrix to row echelon form and
// assembles a kernel basis from its free columns. The rows of the basis
// matching the free columns form an identity, so each free coordinate is
// literally the flux of one reaction; FreeReactionIDs names those
// reactions.
func ComputeNullspace(s *mat.Dense, columnReactions []int) (types.Nullspace, error) {
	rows, cols := s.Dims()

	r := mat.DenseCopyOf(s)
	pivotColumns := make([]int, 0, rows)

	pivotRow := 0
	for col := 0; col < cols && pivotRow < rows; col++ {
		// partial pivoting
		best := pivotRow
		for row := pivotRow + 1; row < rows; row++ {
			if math.Abs(r.At(row, col)) > math.Abs(r.At(best, col)) {
				best = row
			}
		}
		if math.Abs(r.At(best, col)) < pivotTolerance {
			continue
		}

		swapRows(r, pivotRow, best)
		scale := r.At(pivotRow, col)
		for j := col; j < cols; j++ {
			r.Set(pivotRow, j, r.At(pivotRow, j)/scale)
		}
		for row := 0; row < rows; row++ {
			if row == pivotRow {
				continue
			}
			factor := r.At(row, col)
			if factor == 0 {
				continue
			}
			for j := col; j < cols; j++ {
				r.Set(row, j, r.At(row, j)-factor*r.At(pivotRow, j))
			}
		}

		pivotColumns = append(pivotColumns, col)
		pivotRow++
	}

	isPivot := make(map[int]bool, len(pivotColumns))
	for _, col := range pivotColumns {
		isPivot[col] = true
	}

	var freeColumns []int
	for col := 0; col < cols; col++ {
		if !isPivot[col] {
			freeColumns = append(freeColumns, col)
		}
	}

	nullity := len(freeColumns)
	if nullity == 0 {
		return types.Nullspace{}, errorsmod.Wrap(types.ErrInvalidModel,
			"stoichiometry matrix has full column rank, no free fluxes remain")
	}

	basis := mat.NewDense(cols, nullity, nil)
	for j, freeCol := range freeColumns {
		basis.Set(freeCol, j, 1.0)
		for row, pivotCol := range pivotColumns {
			basis.Set(pivotCol, j, -r.At(row, freeCol))
		}
	}

	var product mat.Dense
	product.Mul(s, basis)
	if norm := mat.Norm(&product, 2); norm > nullspaceTolerance {
		return types.Nullspace{}, errorsmod.Wrapf(types.ErrNumericalFailure,
			"nullspace verification: |S*N| = %.3e", norm)
	}

	freeIDs := make([]int, nullity)
	for j, freeCol := range freeColumns {
		freeIDs[j] = columnReactions[freeCol]
	}

	return types.Nullspace{
		Basis:           basis,
		ColumnReactions: columnReactions,
		FreeReactionIDs: freeIDs,
	}, nil
}

func swapRows(m *mat.Dense, a, b int) {
	if a == b {
		return
	}
	_, cols := m.Dims()
	for j := 0; j < cols; j++ {
		va, vb := m.At(a, j), m.At(b, j)
		m.Set(a, j, vb)
		m.Set(b, j, va)
	}
}
