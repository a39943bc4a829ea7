package modeller

import (
	errorsmod "cosmossdk.io/errors"

	"github.com/isoflux/isoflux/internal/types"
)

// CreateInputEmuList collects every EMU appearing in the compiled reactions
// whose metabolite is a fed substrate. Their distributions are fixed by the
// substrate labeling and seed the simulation.
func CreateInputEmuList(emuReactions []types.EmuReaction, inputSubstrates []types.InputSubstrate) []types.Emu {
	isInput := make(map[string]bool, len(inputSubstrates))
	for _, substrate := range inputSubstrates {
		isInput[substrate.Name] = true
	}

	seen := make(map[string]bool)
	var list []types.Emu

	add := func(emu types.Emu) {
		if isInput[emu.Metabolite] && !seen[emu.Key()] {
			seen[emu.Key()] = true
			list = append(list, emu)
		}
	}

	for _, reaction := range emuReactions {
		for _, substrate := range reaction.Left {
			add(substrate.Emu)
		}
		add(reaction.Right.Emu)
	}

	return list
}

// CalculateInputMid derives the distribution of every input EMU from the
// substrate's discrete labeling states: the weight of mass shift i is the
// total fraction of labelings placing exactly i heavy atoms inside the EMU.
func CalculateInputMid(inputSubstrates []types.InputSubstrate, inputEmus []types.Emu) ([]types.EmuAndMid, error) {
	byName := make(map[string]types.InputSubstrate, len(inputSubstrates))
	for _, substrate := range inputSubstrates {
		byName[substrate.Name] = substrate
	}

	mids := make([]types.EmuAndMid, 0, len(inputEmus))
	for _, emu := range inputEmus {
		substrate, ok := byName[emu.Metabolite]
		if !ok {
			return nil, errorsmod.Wrapf(types.ErrInvalidModel, "no input substrate for EMU %s", emu)
		}

		mid := make(types.Mid, emu.Size()+1)
		for _, labeling := range substrate.Labelings {
			if len(labeling.Pattern) != len(emu.AtomStates) {
				return nil, errorsmod.Wrapf(types.ErrInvalidModel,
					"input substrate %s: labeling has %d atoms, EMU %s has %d",
					substrate.Name, len(labeling.Pattern), emu, len(emu.AtomStates))
			}
			heavy := 0
			for i, included := range emu.AtomStates {
				if included && labeling.Pattern[i] {
					heavy++
				}
			}
			mid[heavy] += labeling.Fraction
		}

		mids = append(mids, types.EmuAndMid{Emu: emu, Mid: mid})
	}

	return mids, nil
}
