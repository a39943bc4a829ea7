// Package simulator evaluates the EMU cascade: given a full flux vector it
// solves each size-stratified network's linear balance A·X = B·Y and
// returns the simulated mass-isotopomer distributions of the measured
// isotopes. See Antoniewicz et al. 2007 for the balance construction.
package simulator

import (
	"strings"

	errorsmod "cosmossdk.io/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/isoflux/isoflux/internal/types"
)

// qrResidualTolerance bounds |A·X - B·Y| relative to |B·Y| for an accepted
// network solve.
const qrResidualTolerance = 1e-10

// CalculateMids simulates all networks in ascending size order, seeding the
// known-MID table with the input-substrate distributions, and returns the
// distributions of the measured isotopes. The table is scratch state local
// to this call; fluxes are indexed by reaction ID.
func CalculateMids(fluxes []float64, networks []types.EmuNetwork, inputMids []types.EmuAndMid, measuredIsotopes []types.Emu) ([]types.EmuAndMid, error) {
	known := make(map[string]types.Mid, len(inputMids))
	for _, input := range inputMids {
		known[input.Emu.Key()] = input.Mid
	}

	for _, network := range networks {
		if err := solveOneNetwork(fluxes, network, known); err != nil {
			return nil, err
		}
	}

	measured := make([]types.EmuAndMid, 0, len(measuredIsotopes))
	for _, isotope := range measuredIsotopes {
		mid, ok := known[isotope.Key()]
		if !ok {
			return nil, errorsmod.Wrapf(types.ErrMeasuredIsotopeNotReached, "%s", isotope)
		}
		measured = append(measured, types.EmuAndMid{Emu: isotope, Mid: mid})
	}

	return measured, nil
}

// solveOneNetwork assembles and solves the balance of a single network,
// then appends the freshly solved distributions to the known table.
func solveOneNetwork(fluxes []float64, network types.EmuNetwork, known map[string]types.Mid) error {
	size := network.Size()

	unknowns, knowns, err := fillEmuLists(network, known)
	if err != nil {
		return err
	}
	if len(unknowns) == 0 {
		return nil
	}

	unknownIndex := make(map[string]int, len(unknowns))
	for i, emu := range unknowns {
		unknownIndex[emu.Key()] = i
	}
	knownIndex := make(map[string]int, len(knowns))
	for i, pair := range knowns {
		knownIndex[pair.Emu.Key()] = i
	}

	a := mat.NewDense(len(unknowns), len(unknowns), nil)
	b := mat.NewDense(len(unknowns), len(knowns), nil)
	y := formYMatrix(knowns, size)

	if err := formABMatrices(a, b, network, unknownIndex, knownIndex, fluxes, known); err != nil {
		return err
	}

	var by mat.Dense
	by.Mul(b, y)

	var qr mat.QR
	qr.Factorize(a)
	var x mat.Dense
	if err := qr.SolveTo(&x, false, &by); err != nil {
		return errorsmod.Wrapf(types.ErrRankDeficientNetwork, "size %d: %v", size, err)
	}

	var residual mat.Dense
	residual.Mul(a, &x)
	residual.Sub(&residual, &by)
	if norm := mat.Norm(&residual, 2); norm > qrResidualTolerance*(1+mat.Norm(&by, 2)) {
		return errorsmod.Wrapf(types.ErrNumericalFailure,
			"network of size %d: solve residual %.3e", size, norm)
	}

	appendNewMids(&x, unknowns, known, size)
	return nil
}

// fillEmuLists splits the network's EMUs into the unknown products (the X
// rows) and the known substrates (the Y rows). A condensation left side
// collapses into one synthetic known EMU whose MID is the convolution of
// its parts.
func fillEmuLists(network types.EmuNetwork, known map[string]types.Mid) ([]types.Emu, []types.EmuAndMid, error) {
	var unknowns []types.Emu
	var knowns []types.EmuAndMid
	seenUnknown := make(map[string]bool)
	seenKnown := make(map[string]bool)

	addKnown := func(pair types.EmuAndMid) {
		if !seenKnown[pair.Emu.Key()] {
			seenKnown[pair.Emu.Key()] = true
			knowns = append(knowns, pair)
		}
	}
	addUnknown := func(emu types.Emu) {
		if !seenUnknown[emu.Key()] {
			seenUnknown[emu.Key()] = true
			unknowns = append(unknowns, emu)
		}
	}

	for _, reaction := range network {
		if len(reaction.Left) == 1 {
			substrate := reaction.Left[0]
			if mid, ok := known[substrate.Emu.Key()]; ok {
				addKnown(types.EmuAndMid{Emu: substrate.Emu, Mid: mid})
			} else {
				addUnknown(substrate.Emu)
			}
		} else {
			convolution, err := ConvolveEmu(reaction.Left, known)
			if err != nil {
				return nil, nil, err
			}
			addKnown(convolution)
		}

		if _, ok := known[reaction.Right.Emu.Key()]; !ok {
			addUnknown(reaction.Right.Emu)
		}
	}

	return unknowns, knowns, nil
}

func formYMatrix(knowns []types.EmuAndMid, size int) *mat.Dense {
	y := mat.NewDense(len(knowns), size+1, nil)
	for i, pair := range knowns {
		for shift := 0; shift <= size; shift++ {
			y.Set(i, shift, pair.Mid[shift])
		}
	}
	return y
}

// formABMatrices accumulates flux contributions. Each reaction drains its
// product (diagonal of A) and feeds it from its substrate: column entries
// carry the substrate coefficient on both the unknown (A) and known (B)
// branches, matching the EMU balance of Antoniewicz 2007.
func formABMatrices(a, b *mat.Dense, network types.EmuNetwork, unknownIndex, knownIndex map[string]int, fluxes []float64, known map[string]types.Mid) error {
	for _, reaction := range network {
		p, ok := unknownIndex[reaction.Right.Emu.Key()]
		if !ok {
			// product distribution already fixed, nothing to balance
			continue
		}
		flux := fluxes[reaction.ID]

		substrate := reaction.Left[0]
		if len(reaction.Left) > 1 {
			convolution, err := ConvolveEmu(reaction.Left, known)
			if err != nil {
				return err
			}
			substrate = types.EmuSubstrate{Emu: convolution.Emu, Coefficient: 1.0}
		}

		a.Set(p, p, a.At(p, p)-reaction.Right.Coefficient*flux)

		if q, ok := unknownIndex[substrate.Emu.Key()]; ok {
			a.Set(p, q, a.At(p, q)+substrate.Coefficient*flux)
		} else {
			q := knownIndex[substrate.Emu.Key()]
			b.Set(p, q, b.At(p, q)-substrate.Coefficient*flux)
		}
	}
	return nil
}

func appendNewMids(x *mat.Dense, unknowns []types.Emu, known map[string]types.Mid, size int) {
	for i, emu := range unknowns {
		mid := make(types.Mid, size+1)
		for shift := 0; shift <= size; shift++ {
			v := x.At(i, shift)
			if v < 0 && v > -1e-12 {
				v = 0
			}
			mid[shift] = v
		}
		known[emu.Key()] = mid
	}
}

// ConvolveEmu folds a condensation left side into a single synthetic EMU
// whose distribution is the convolution of the parts' distributions. The
// synthetic identity concatenates the parts in reaction order and only
// lives within the current network solve.
func ConvolveEmu(left []types.EmuSubstrate, known map[string]types.Mid) (types.EmuAndMid, error) {
	var name strings.Builder
	var states []bool
	mid := types.Mid{1.0}

	for _, part := range left {
		partMid, ok := known[part.Emu.Key()]
		if !ok {
			return types.EmuAndMid{}, errorsmod.Wrapf(types.ErrRankDeficientNetwork,
				"convolution part %s has no known distribution", part.Emu)
		}
		name.WriteString(part.Emu.Metabolite)
		states = append(states, part.Emu.AtomStates...)
		mid = ConvolveMids(mid, partMid)
	}

	return types.EmuAndMid{
		Emu: types.Emu{Metabolite: name.String(), AtomStates: states},
		Mid: mid,
	}, nil
}

// ConvolveMids is the discrete convolution of two distributions: the MID of
// the disjoint union of two EMUs.
func ConvolveMids(a, b types.Mid) types.Mid {
	out := make(types.Mid, len(a)+len(b)-1)
	for i, va := range a {
		for j, vb := range b {
			out[i+j] += va * vb
		}
	}
	return out
}
