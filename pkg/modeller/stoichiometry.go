package modeller

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/isoflux/isoflux/internal/types"
)

// MassBalanceColumns returns the IDs of the mass-balance reactions in ID
// order. These are the columns of the stoichiometry matrix; isotopomer
// pseudo reactions carry no mass and get no column.
func MassBalanceColumns(reactions []types.Reaction) []int {
	var ids []int
	for _, reaction := range reactions {
		if reaction.Type == types.MassBalance {
			ids = append(ids, reaction.ID)
		}
	}
	sort.Ints(ids)
	return ids
}

// CreateStoichiometryMatrix builds the dense stoichiometry matrix: one row
// per included metabolite, one column per mass-balance reaction in ID
// order. An entry is the net coefficient of the metabolite in the reaction,
// so a metabolite consumed and produced by the same reaction contributes
// its balance only.
func CreateStoichiometryMatrix(reactions []types.Reaction, metabolites []string) (*mat.Dense, []int) {
	columns := MassBalanceColumns(reactions)

	rowOf := make(map[string]int, len(metabolites))
	for i, name := range metabolites {
		rowOf[name] = i
	}

	byID := make(map[int]types.Reaction, len(reactions))
	for _, reaction := range reactions {
		byID[reaction.ID] = reaction
	}

	s := mat.NewDense(len(metabolites), len(columns), nil)
	for col, id := range columns {
		reaction := byID[id]
		for _, term := range reaction.ChemicalEquation.Substrates {
			if row, ok := rowOf[term.Metabolite]; ok {
				s.Set(row, col, s.At(row, col)-term.Stoichiometry)
			}
		}
		for _, term := range reaction.ChemicalEquation.Products {
			if row, ok := rowOf[term.Metabolite]; ok {
				s.Set(row, col, s.At(row, col)+term.Stoichiometry)
			}
		}
	}

	return s, columns
}
