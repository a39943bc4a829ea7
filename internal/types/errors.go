package types

import errorsmod "cosmossdk.io/errors"

const codespace = "isoflux"

var (
	// ErrInvalidModel covers bad atom mappings, malformed measurements and
	// references to unknown metabolites.
	ErrInvalidModel = errorsmod.Register(codespace, 2, "invalid model")
	// ErrInfeasibleModel is returned when a flux-variability LP has no
	// feasible point.
	ErrInfeasibleModel = errorsmod.Register(codespace, 3, "infeasible model")
	// ErrUnboundedFlux is returned when a flux-variability LP is unbounded.
	ErrUnboundedFlux = errorsmod.Register(codespace, 4, "unbounded flux")
	// ErrRankDeficientNetwork marks a singular EMU balance matrix.
	ErrRankDeficientNetwork = errorsmod.Register(codespace, 5, "rank-deficient EMU network")
	// ErrMeasuredIsotopeNotReached means a measured EMU is never produced
	// by any compiled network.
	ErrMeasuredIsotopeNotReached = errorsmod.Register(codespace, 6, "measured isotope not reached")
	// ErrNumericalFailure marks solves that exceed residual tolerances or
	// optimizer divergence.
	ErrNumericalFailure = errorsmod.Register(codespace, 7, "numerical failure")
)
