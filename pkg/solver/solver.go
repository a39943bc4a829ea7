// Package solver fits the free fluxes of a compiled Problem to the measured
// mass-isotopomer distributions by bounded multi-start Levenberg-Marquardt.
package solver

import (
	"log"
	"math"
	"math/rand"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/maorshutman/lm"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/isoflux/isoflux/internal/types"
	"github.com/isoflux/isoflux/pkg/simulator"
)

const (
	// jacobianStep is the forward-difference step of the numerical Jacobian.
	jacobianStep = 1e-4
	// stepTolerance stops the optimizer once the parameter update stalls.
	stepTolerance = 1e-11
	// defaultSampleRange replaces an infinite flux-variability bound when
	// drawing initial points.
	defaultSampleRange = 1e3
)

// Settings controls one fitting run.
type Settings struct {
	Restarts      int
	MaxIterations int
	ObjectiveTol  float64
	// Seed of the initial-point generator; 0 draws a time seed.
	Seed int64
}

// DefaultSettings returns the standard multi-start configuration.
func DefaultSettings() Settings {
	return Settings{
		Restarts:      10,
		MaxIterations: 200,
		ObjectiveTol:  1e-16,
	}
}

// Solution is the outcome of one restart. Fluxes is the full flux vector
// indexed by reaction ID; SSR is +Inf for a failed restart.
type Solution struct {
	FreeFluxes []float64
	Fluxes     []float64
	SSR        float64
}

// Solver fits one Problem. The Problem is read-only; all scratch state is
// local to a Solve call, so a Solver can be reused across runs.
type Solver struct {
	problem  types.Problem
	settings Settings

	lower []float64
	upper []float64
	rng   *rand.Rand
}

// NewSolver derives the free-flux box from the flux-variability bounds of
// the free reactions and prepares the initial-point generator.
func NewSolver(problem types.Problem, settings Settings) (*Solver, error) {
	byID := make(map[int]types.Reaction, len(problem.Reactions))
	for _, reaction := range problem.Reactions {
		byID[reaction.ID] = reaction
	}

	k := problem.Nullspace.Nullity()
	lower := make([]float64, k)
	upper := make([]float64, k)
	for i, id := range problem.Nullspace.FreeReactionIDs {
		reaction, ok := byID[id]
		if !ok {
			return nil, errorsmod.Wrapf(types.ErrInvalidModel, "free flux refers to unknown reaction %d", id)
		}
		lower[i] = reaction.ComputedLowerBound
		upper[i] = reaction.ComputedUpperBound
	}

	seed := settings.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Solver{
		problem:  problem,
		settings: settings,
		lower:    lower,
		upper:    upper,
		rng:      rand.New(rand.NewSource(seed)),
	}, nil
}

// AssembleFluxes expands free fluxes into the full flux vector indexed by
// reaction ID: the nullspace basis fills the mass-balance slots and
// isotopomer pseudo reactions run at unit flux.
func AssembleFluxes(problem types.Problem, free []float64) []float64 {
	fluxes := make([]float64, len(problem.Reactions))
	for _, reaction := range problem.Reactions {
		if reaction.Type == types.IsotopomerBalance {
			fluxes[reaction.ID] = 1.0
		}
	}

	f := mat.NewVecDense(len(free), free)
	var v mat.VecDense
	v.MulVec(problem.Nullspace.Basis, f)
	for row, id := range problem.Nullspace.ColumnReactions {
		fluxes[id] = v.AtVec(row)
	}

	return fluxes
}

// Residual evaluates the weighted difference between simulated and measured
// distributions at the given free fluxes. dst must have length
// MeasurementsCount.
func (s *Solver) Residual(dst, free []float64) error {
	fluxes := AssembleFluxes(s.problem, s.project(free))
	simulated, err := simulator.CalculateMids(fluxes, s.problem.Networks, s.problem.InputMids, s.problem.MeasuredIsotopes)
	if err != nil {
		return err
	}

	byKey := make(map[string]types.Mid, len(simulated))
	for _, pair := range simulated {
		byKey[pair.Emu.Key()] = pair.Mid
	}

	ofs := 0
	for _, measurement := range s.problem.Measurements {
		simMid, ok := byKey[measurement.Emu.Key()]
		if !ok {
			return errorsmod.Wrapf(types.ErrMeasuredIsotopeNotReached, "%s", measurement.Emu)
		}
		for j := range measurement.Mid {
			dst[ofs] = (simMid[j] - measurement.Mid[j]) / (1.0 + measurement.Errors[j])
			ofs++
		}
	}

	return nil
}

// Solve runs the configured number of restarts and returns every solution,
// failed ones included with SSR = +Inf. It fails only when no restart
// produced a finite objective.
func (s *Solver) Solve() ([]Solution, error) {
	k := len(s.lower)
	solutions := make([]Solution, 0, s.settings.Restarts)

	for restart := 0; restart < s.settings.Restarts; restart++ {
		initial := s.sampleInitialPoint()

		free, ssr, err := s.fitOnce(initial)
		if err != nil {
			log.Printf("Restart %d/%d failed: %v", restart+1, s.settings.Restarts, err)
			solutions = append(solutions, Solution{
				FreeFluxes: initial,
				SSR:        math.Inf(1),
			})
			continue
		}

		log.Printf("Restart %d/%d: SSR = %.6e", restart+1, s.settings.Restarts, ssr)
		solutions = append(solutions, Solution{
			FreeFluxes: free,
			Fluxes:     AssembleFluxes(s.problem, free),
			SSR:        ssr,
		})
	}

	finite := make([]float64, 0, len(solutions))
	for _, solution := range solutions {
		if !math.IsInf(solution.SSR, 1) {
			finite = append(finite, solution.SSR)
		}
	}
	if len(finite) == 0 {
		return nil, errorsmod.Wrapf(types.ErrNumericalFailure, "all %d restarts failed", s.settings.Restarts)
	}
	if len(finite) > 1 {
		log.Printf("Fitted %d free fluxes over %d restarts: SSR %.6e ± %.2e",
			k, len(finite), stat.Mean(finite, nil), stat.StdDev(finite, nil))
	}

	return solutions, nil
}

// Best returns the solution with the smallest objective.
func Best(solutions []Solution) Solution {
	best := solutions[0]
	for _, solution := range solutions[1:] {
		if solution.SSR < best.SSR {
			best = solution
		}
	}
	return best
}

// fitOnce runs one bounded Levenberg-Marquardt descent from the given
// initial point. The optimizer itself is unconstrained; the box is enforced
// by projecting the parameters inside the residual and clamping the
// optimum.
func (s *Solver) fitOnce(initial []float64) ([]float64, float64, error) {
	var evalErr error
	residualFunc := func(dst, x []float64) {
		if err := s.Residual(dst, x); err != nil {
			evalErr = err
			for i := range dst {
				dst[i] = math.MaxFloat32
			}
		}
	}

	problem := lm.LMProblem{
		Dim:        len(initial),
		Size:       s.problem.MeasurementsCount,
		Func:       residualFunc,
		Jac:        forwardJacobian(residualFunc, s.problem.MeasurementsCount),
		InitParams: initial,
		Tau:        1e-3,
		Eps1:       1e-12,
		Eps2:       stepTolerance,
	}

	results, err := lm.LM(problem, &lm.Settings{
		Iterations:   s.settings.MaxIterations,
		ObjectiveTol: s.settings.ObjectiveTol,
	})
	if err != nil {
		return nil, 0, errorsmod.Wrapf(types.ErrNumericalFailure, "optimizer: %v", err)
	}
	if evalErr != nil {
		return nil, 0, evalErr
	}

	free := s.project(results.X)
	residuals := make([]float64, s.problem.MeasurementsCount)
	if err := s.Residual(residuals, free); err != nil {
		return nil, 0, err
	}

	ssr := 0.0
	for _, r := range residuals {
		ssr += r * r
	}
	return free, ssr, nil
}

// forwardJacobian differentiates the residual by forward differences.
func forwardJacobian(residualFunc func(dst, x []float64), size int) func(dst *mat.Dense, x []float64) {
	return func(dst *mat.Dense, x []float64) {
		base := make([]float64, size)
		residualFunc(base, x)

		shifted := make([]float64, size)
		point := make([]float64, len(x))
		for j := range x {
			copy(point, x)
			point[j] += jacobianStep
			residualFunc(shifted, point)
			for i := 0; i < size; i++ {
				dst.Set(i, j, (shifted[i]-base[i])/jacobianStep)
			}
		}
	}
}

// project clamps free fluxes onto the flux-variability box.
func (s *Solver) project(free []float64) []float64 {
	out := make([]float64, len(free))
	for i, v := range free {
		out[i] = math.Min(math.Max(v, s.lower[i]), s.upper[i])
	}
	return out
}

// sampleInitialPoint draws each coordinate uniformly from its bounds;
// an infinite bound falls back to a wide default box.
func (s *Solver) sampleInitialPoint() []float64 {
	point := make([]float64, len(s.lower))
	for i := range point {
		lower, upper := s.lower[i], s.upper[i]
		if math.IsInf(lower, -1) {
			lower = -defaultSampleRange
		}
		if math.IsInf(upper, 1) {
			upper = defaultSampleRange
		}
		point[i] = lower + s.rng.Float64()*(upper-lower)
	}
	return point
}
