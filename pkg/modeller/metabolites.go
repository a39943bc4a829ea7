package modeller

import (
	"github.com/isoflux/isoflux/internal/types"
)

// FullMetaboliteList returns every metabolite name appearing in any
// reaction, in encounter order and without duplicates.
func FullMetaboliteList(reactions []types.Reaction) []string {
	seen := make(map[string]bool)
	var list []string

	add := func(terms []types.ChemicalTerm) {
		for _, term := range terms {
			if !seen[term.Metabolite] {
				seen[term.Metabolite] = true
				list = append(list, term.Metabolite)
			}
		}
	}

	for _, reaction := range reactions {
		add(reaction.ChemicalEquation.Substrates)
		add(reaction.ChemicalEquation.Products)
	}

	return list
}

// IncludedMetaboliteList removes excluded metabolites (cofactors and the
// like) from the full list, preserving order. Removed metabolites keep no
// balance row, so their net production is unconstrained.
func IncludedMetaboliteList(full []string, excluded []string) []string {
	skip := make(map[string]bool, len(excluded))
	for _, name := range excluded {
		skip[name] = true
	}

	var list []string
	for _, name := range full {
		if !skip[name] {
			list = append(list, name)
		}
	}

	return list
}
