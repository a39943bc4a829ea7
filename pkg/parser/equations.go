package parser

import (
	"strconv"
	"strings"

	errorsmod "cosmossdk.io/errors"

	"github.com/isoflux/isoflux/internal/types"
)

// parseEquation reads a textual chemical equation of the form
// "A (ab) + 2 B (c) -> C (abc)". Terms are joined by '+', sides separated
// by '->'; each term is an optional coefficient, a metabolite name and an
// optional parenthesized atom mapping.
func parseEquation(equation, reactionName string) (types.ChemicalEquation, error) {
	sides := strings.Split(equation, "->")
	if len(sides) != 2 {
		return types.ChemicalEquation{}, errorsmod.Wrapf(types.ErrInvalidModel,
			"reaction %q: equation %q needs exactly one '->'", reactionName, equation)
	}

	substrates, err := parseSide(sides[0], reactionName)
	if err != nil {
		return types.ChemicalEquation{}, err
	}
	products, err := parseSide(sides[1], reactionName)
	if err != nil {
		return types.ChemicalEquation{}, err
	}

	return types.ChemicalEquation{Substrates: substrates, Products: products}, nil
}

func parseSide(side, reactionName string) ([]types.ChemicalTerm, error) {
	var terms []types.ChemicalTerm
	for _, raw := range strings.Split(side, "+") {
		term, err := parseTerm(raw, reactionName)
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	return terms, nil
}

func parseTerm(raw, reactionName string) (types.ChemicalTerm, error) {
	term := types.ChemicalTerm{Stoichiometry: 1.0}

	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return types.ChemicalTerm{}, errorsmod.Wrapf(types.ErrInvalidModel,
			"reaction %q: empty equation term", reactionName)
	}

	if coefficient, err := strconv.ParseFloat(fields[0], 64); err == nil {
		term.Stoichiometry = coefficient
		fields = fields[1:]
		if len(fields) == 0 {
			return types.ChemicalTerm{}, errorsmod.Wrapf(types.ErrInvalidModel,
				"reaction %q: coefficient without metabolite", reactionName)
		}
	}

	term.Metabolite = fields[0]
	fields = fields[1:]

	if len(fields) > 0 {
		mapping := strings.Join(fields, "")
		if !strings.HasPrefix(mapping, "(") || !strings.HasSuffix(mapping, ")") {
			return types.ChemicalTerm{}, errorsmod.Wrapf(types.ErrInvalidModel,
				"reaction %q: malformed atom mapping %q for %s", reactionName, mapping, term.Metabolite)
		}
		term.AtomMapping = mapping[1 : len(mapping)-1]
	}

	return term, nil
}
