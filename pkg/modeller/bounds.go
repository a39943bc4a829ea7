package modeller

import (
	"errors"
	"log"
	"math"

	errorsmod "cosmossdk.io/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/isoflux/isoflux/internal/types"
)

const simplexTolerance = 1e-10

// effectiveBounds resolves a reaction's box constraint. A set basis pins
// the flux to [basis-deviation, basis+deviation]; an unset (NaN) deviation
// or a zero one collapses the box to a point. A NaN basis falls back to the
// plain physical bounds.
func effectiveBounds(reaction types.Reaction) (float64, float64) {
	if math.IsNaN(reaction.Basis) {
		return reaction.LowerBound, reaction.UpperBound
	}
	shift := 0.0
	if !math.IsNaN(reaction.Deviation) {
		shift = reaction.Deviation
	}
	return reaction.Basis - shift, reaction.Basis + shift
}

// CalculateFluxBounds runs flux-variability analysis: for every
// mass-balance reaction it minimizes and maximizes that flux subject to
// S·v = 0 and the per-reaction boxes, and records the pair as the
// reaction's computed bounds. The free-flux box used by the solver is read
// from these values.
func CalculateFluxBounds(reactions []types.Reaction, s *mat.Dense, columnReactions []int) error {
	n := len(columnReactions)

	indexOfID := make(map[int]int, len(reactions))
	for i, reaction := range reactions {
		indexOfID[reaction.ID] = i
	}

	// Box constraints as inequality rows; infinite bounds contribute none.
	var gRows [][]float64
	var h []float64
	for col, id := range columnReactions {
		lower, upper := effectiveBounds(reactions[indexOfID[id]])
		if lower > upper {
			return errorsmod.Wrapf(types.ErrInfeasibleModel,
				"reaction %q: lower bound %g above upper bound %g",
				reactions[indexOfID[id]].Name, lower, upper)
		}
		if !math.IsInf(upper, 1) {
			row := make([]float64, n)
			row[col] = 1.0
			gRows = append(gRows, row)
			h = append(h, upper)
		}
		if !math.IsInf(lower, -1) {
			row := make([]float64, n)
			row[col] = -1.0
			gRows = append(gRows, row)
			h = append(h, -lower)
		}
	}
	if len(gRows) == 0 {
		// keep the inequality block well-formed for lp.Convert
		gRows = append(gRows, make([]float64, n))
		h = append(h, 0)
	}

	g := mat.NewDense(len(gRows), n, nil)
	for i, row := range gRows {
		g.SetRow(i, row)
	}

	rows, _ := s.Dims()
	b := make([]float64, rows)

	for col, id := range columnReactions {
		reaction := &reactions[indexOfID[id]]

		lower, err := extremeFlux(col, n, g, h, s, b, false)
		if err != nil {
			return wrapLPError(err, reaction.Name)
		}
		upper, err := extremeFlux(col, n, g, h, s, b, true)
		if err != nil {
			return wrapLPError(err, reaction.Name)
		}

		reaction.ComputedLowerBound = lower
		reaction.ComputedUpperBound = upper
	}

	log.Printf("Flux variability analysis finished for %d reactions", n)
	return nil
}

// extremeFlux solves one LP: optimize flux col under the shared steady
// state and box constraints.
func extremeFlux(col, n int, g *mat.Dense, h []float64, s *mat.Dense, b []float64, maximize bool) (float64, error) {
	c := make([]float64, n)
	if maximize {
		c[col] = -1.0
	} else {
		c[col] = 1.0
	}

	cNew, aNew, bNew := lp.Convert(c, g, h, s, b)
	optF, _, err := lp.Simplex(cNew, aNew, bNew, simplexTolerance, nil)
	if err != nil {
		return 0, err
	}
	if maximize {
		return -optF, nil
	}
	return optF, nil
}

func wrapLPError(err error, reaction string) error {
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return errorsmod.Wrapf(types.ErrInfeasibleModel, "no steady state admits reaction %q", reaction)
	case errors.Is(err, lp.ErrUnbounded):
		return errorsmod.Wrapf(types.ErrUnboundedFlux, "reaction %q", reaction)
	default:
		return errorsmod.Wrapf(types.ErrNumericalFailure, "flux variability LP for %q: %v", reaction, err)
	}
}
