package modeller

import (
	"math"

	errorsmod "cosmossdk.io/errors"

	"github.com/isoflux/isoflux/internal/types"
)

// massSumTolerance is how far a measured MID may drift from unit mass.
const massSumTolerance = 1e-3

// CheckMeasurements validates every measured MID: the vector must have one
// entry per mass shift of the measured EMU, entries must be fractions, and
// total abundance must be unit within tolerance. Error vectors must align
// with the MID.
func CheckMeasurements(measurements []types.Measurement) error {
	for _, measurement := range measurements {
		want := measurement.Emu.Size() + 1
		if len(measurement.Mid) != want {
			return errorsmod.Wrapf(types.ErrInvalidModel,
				"measurement %s: MID has %d entries, EMU needs %d",
				measurement.Emu, len(measurement.Mid), want)
		}
		if len(measurement.Errors) != want {
			return errorsmod.Wrapf(types.ErrInvalidModel,
				"measurement %s: %d error entries, EMU needs %d",
				measurement.Emu, len(measurement.Errors), want)
		}
		for i, v := range measurement.Mid {
			if v < 0 || v > 1 {
				return errorsmod.Wrapf(types.ErrInvalidModel,
					"measurement %s: abundance %g at mass shift %d outside [0, 1]",
					measurement.Emu, v, i)
			}
		}
		if diff := math.Abs(measurement.Mid.Sum() - 1.0); diff > massSumTolerance {
			return errorsmod.Wrapf(types.ErrInvalidModel,
				"measurement %s: abundances sum to %g", measurement.Emu, measurement.Mid.Sum())
		}
	}
	return nil
}

// CheckAtomMappings verifies that, in every mapped reaction, the substrate
// and product mappings use the same letters exactly once per side, i.e.
// that atoms are conserved and each mapping letter identifies one atom.
func CheckAtomMappings(reactions []types.Reaction) error {
	for _, reaction := range reactions {
		left, err := sideLetters(reaction.ChemicalEquation.Substrates, reaction.Name)
		if err != nil {
			return err
		}
		right, err := sideLetters(reaction.ChemicalEquation.Products, reaction.Name)
		if err != nil {
			return err
		}
		if len(left) == 0 && len(right) == 0 {
			continue
		}
		if len(left) != len(right) {
			return errorsmod.Wrapf(types.ErrInvalidModel,
				"reaction %q: %d substrate atoms map to %d product atoms",
				reaction.Name, len(left), len(right))
		}
		for letter := range left {
			if !right[letter] {
				return errorsmod.Wrapf(types.ErrInvalidModel,
					"reaction %q: atom %q vanishes between sides", reaction.Name, string(letter))
			}
		}
	}
	return nil
}

func sideLetters(terms []types.ChemicalTerm, reactionName string) (map[byte]bool, error) {
	letters := make(map[byte]bool)
	for _, term := range terms {
		for i := 0; i < len(term.AtomMapping); i++ {
			letter := term.AtomMapping[i]
			if letters[letter] {
				return nil, errorsmod.Wrapf(types.ErrInvalidModel,
					"reaction %q: atom %q mapped twice on one side", reactionName, string(letter))
			}
			letters[letter] = true
		}
	}
	return letters, nil
}

// CheckReferences verifies that measured isotopes and input substrates name
// metabolites that actually occur in the reaction list.
func CheckReferences(reactions []types.Reaction, measuredIsotopes []types.Emu, inputSubstrates []types.InputSubstrate) error {
	known := make(map[string]bool)
	for _, name := range FullMetaboliteList(reactions) {
		known[name] = true
	}

	for _, emu := range measuredIsotopes {
		if !known[emu.Metabolite] {
			return errorsmod.Wrapf(types.ErrInvalidModel,
				"measured isotope %s references unknown metabolite %q", emu, emu.Metabolite)
		}
	}
	for _, substrate := range inputSubstrates {
		if !known[substrate.Name] {
			return errorsmod.Wrapf(types.ErrInvalidModel,
				"input substrate %q does not occur in any reaction", substrate.Name)
		}
		total := 0.0
		for _, labeling := range substrate.Labelings {
			total += labeling.Fraction
		}
		if math.Abs(total-1.0) > 1e-6 {
			return errorsmod.Wrapf(types.ErrInvalidModel,
				"input substrate %q: labeling fractions sum to %g", substrate.Name, total)
		}
	}
	return nil
}
