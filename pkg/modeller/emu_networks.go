package modeller

import (
	"sort"

	"github.com/isoflux/isoflux/internal/types"
)

// CreateEmuNetworks partitions EMU reactions into networks by the size of
// their product EMU, ordered by ascending size. Reactions producing an
// input-substrate EMU are left out: those distributions are given, not
// solved. Solving the networks in the returned order guarantees that every
// substrate EMU smaller than its product (an input, or a part of a
// convolution) is known by the time its network is reached; substrate EMUs
// of the product's own size are solved together with it in the same
// network.
func CreateEmuNetworks(emuReactions []types.EmuReaction, inputEmus []types.Emu, measuredIsotopes []types.Emu) []types.EmuNetwork {
	input := make(map[string]bool, len(inputEmus))
	for _, emu := range inputEmus {
		input[emu.Key()] = true
	}

	bySize := make(map[int]types.EmuNetwork)
	for _, reaction := range emuReactions {
		if input[reaction.Right.Emu.Key()] {
			continue
		}
		size := reaction.Right.Emu.Size()
		bySize[size] = append(bySize[size], reaction)
	}

	sizes := make([]int, 0, len(bySize))
	for size := range bySize {
		sizes = append(sizes, size)
	}
	sort.Ints(sizes)

	networks := make([]types.EmuNetwork, 0, len(sizes))
	for _, size := range sizes {
		networks = append(networks, bySize[size])
	}

	return networks
}
