package modeller

import (
	errorsmod "cosmossdk.io/errors"

	"github.com/isoflux/isoflux/internal/types"
)

// CreateAllEmuReactions expands atom-mapped reactions into EMU reactions,
// restricted to the closure actually reachable from the measured isotopes.
// Starting at each measured EMU, every producing reaction is traced
// backwards through its atom mapping: the product atoms select a set of
// mapping letters, and each substrate contributes the EMU of its atoms
// carrying those letters. Substrate EMUs discovered this way are expanded
// in turn until the set is closed.
func CreateAllEmuReactions(reactions []types.Reaction, measuredIsotopes []types.Emu) ([]types.EmuReaction, error) {
	var emuReactions []types.EmuReaction

	seen := make(map[string]bool)
	queue := make([]types.Emu, 0, len(measuredIsotopes))
	for _, emu := range measuredIsotopes {
		if !seen[emu.Key()] {
			seen[emu.Key()] = true
			queue = append(queue, emu)
		}
	}

	for len(queue) > 0 {
		emu := queue[0]
		queue = queue[1:]

		for _, reaction := range reactions {
			for _, product := range reaction.ChemicalEquation.Products {
				if product.Metabolite != emu.Metabolite || product.AtomMapping == "" {
					continue
				}
				if len(product.AtomMapping) != len(emu.AtomStates) {
					return nil, errorsmod.Wrapf(types.ErrInvalidModel,
						"reaction %q: product %s has %d mapped atoms, EMU wants %d",
						reaction.Name, product.Metabolite, len(product.AtomMapping), len(emu.AtomStates))
				}

				emuReaction, err := traceProduct(reaction, product, emu)
				if err != nil {
					return nil, err
				}
				emuReactions = append(emuReactions, emuReaction)

				for _, substrate := range emuReaction.Left {
					if !seen[substrate.Emu.Key()] {
						seen[substrate.Emu.Key()] = true
						queue = append(queue, substrate.Emu)
					}
				}
			}
		}
	}

	return emuReactions, nil
}

// traceProduct maps one product EMU back through a reaction's atom mapping
// and returns the EMU reaction producing it. Substrates carrying none of
// the selected atoms are dropped; more than one surviving substrate makes
// the reaction a condensation.
func traceProduct(reaction types.Reaction, product types.ChemicalTerm, emu types.Emu) (types.EmuReaction, error) {
	letters := make(map[byte]bool)
	for i, included := range emu.AtomStates {
		if included {
			letters[product.AtomMapping[i]] = true
		}
	}

	var left []types.EmuSubstrate
	for _, substrate := range reaction.ChemicalEquation.Substrates {
		if substrate.AtomMapping == "" {
			continue
		}
		states := make([]bool, len(substrate.AtomMapping))
		any := false
		for i := 0; i < len(substrate.AtomMapping); i++ {
			if letters[substrate.AtomMapping[i]] {
				states[i] = true
				any = true
			}
		}
		if any {
			left = append(left, types.EmuSubstrate{
				Emu:         types.Emu{Metabolite: substrate.Metabolite, AtomStates: states},
				Coefficient: substrate.Stoichiometry,
			})
		}
	}

	if len(left) == 0 {
		return types.EmuReaction{}, errorsmod.Wrapf(types.ErrInvalidModel,
			"reaction %q: atoms of product %s do not originate from any substrate",
			reaction.Name, emu)
	}

	return types.EmuReaction{
		ID:   reaction.ID,
		Left: left,
		Right: types.EmuSubstrate{
			Emu:         emu,
			Coefficient: product.Stoichiometry,
		},
	}, nil
}
