package parser

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/isoflux/isoflux/internal/types"
)

const sampleModel = `
reactions:
  - name: v1
    equation: "Gluc (abcdef) -> G6P (abcdef)"
    lower_bound: 0
    upper_bound: 20
    basis: 10.2
    deviation: 0.3
  - name: v2
    equation: "G6P (abcdef) -> F6P (abcdef)"
    reversible: true
  - name: v3
    equation: "F6P (abcdef) -> DHAP (cba) + GAP (def)"
  - name: v4
    equation: "DHAP (abc) + GAP (abc) -> FBP (abcabc)"
    pseudo: true
excluded_metabolites: [CO2ex]
input_substrates:
  - name: Gluc
    labelings:
      - pattern: "100000"
        fraction: 0.5
      - pattern: "000000"
        fraction: 0.5
measurements:
  - metabolite: GAP
    atoms: "111"
    mid: [0.4, 0.3, 0.2, 0.1]
    errors: [0.01, 0.01, 0.01, 0.01]
`

func TestParseSampleModel(t *testing.T) {
	results, err := Parse([]byte(sampleModel))
	require.NoError(t, err)

	require.Len(t, results.Reactions, 4)
	require.Equal(t, []string{"CO2ex"}, results.ExcludedMetabolites)

	v1 := results.Reactions[0]
	require.Equal(t, 0, v1.ID)
	require.Equal(t, "v1", v1.Name)
	require.Equal(t, types.MassBalance, v1.Type)
	require.Equal(t, 0.0, v1.LowerBound)
	require.Equal(t, 20.0, v1.UpperBound)
	require.Equal(t, 10.2, v1.Basis)
	require.Equal(t, 0.3, v1.Deviation)
	require.Equal(t, "Gluc", v1.ChemicalEquation.Substrates[0].Metabolite)
	require.Equal(t, "abcdef", v1.ChemicalEquation.Substrates[0].AtomMapping)

	v2 := results.Reactions[1]
	require.True(t, v2.Reversible)
	require.True(t, math.IsInf(v2.LowerBound, -1))
	require.True(t, math.IsInf(v2.UpperBound, 1))
	require.True(t, math.IsNaN(v2.Basis))

	v3 := results.Reactions[2]
	require.Len(t, v3.ChemicalEquation.Products, 2)
	require.Equal(t, "cba", v3.ChemicalEquation.Products[0].AtomMapping)

	require.Equal(t, types.IsotopomerBalance, results.Reactions[3].Type)

	require.Len(t, results.InputSubstrates, 1)
	require.Equal(t, []bool{true, false, false, false, false, false},
		results.InputSubstrates[0].Labelings[0].Pattern)

	require.Len(t, results.Measurements, 1)
	require.Len(t, results.MeasuredIsotopes, 1)
	require.Equal(t, "GAP#111", results.MeasuredIsotopes[0].Key())
	require.Equal(t, types.Mid{0.4, 0.3, 0.2, 0.1}, results.Measurements[0].Mid)
}

func TestParseCoefficientTerm(t *testing.T) {
	equation, err := parseEquation("2 AcCoA (ab) -> C4 (abab)", "condense")
	require.NoError(t, err)
	require.Equal(t, 2.0, equation.Substrates[0].Stoichiometry)
	require.Equal(t, "AcCoA", equation.Substrates[0].Metabolite)
	require.Equal(t, "ab", equation.Substrates[0].AtomMapping)
}

func TestParseTermWithoutMapping(t *testing.T) {
	equation, err := parseEquation("Pyr (abc) -> Ala (abc) + NADH", "transaminate")
	require.NoError(t, err)
	require.Equal(t, "NADH", equation.Products[1].Metabolite)
	require.Empty(t, equation.Products[1].AtomMapping)
}

func TestParseRejectsMissingArrow(t *testing.T) {
	_, err := parseEquation("A (a) + B (b)", "broken")
	require.ErrorIs(t, err, types.ErrInvalidModel)
}

func TestParseRejectsBadPattern(t *testing.T) {
	_, err := Parse([]byte(`
reactions:
  - name: v1
    equation: "A (a) -> B (a)"
input_substrates:
  - name: A
    labelings:
      - pattern: "x"
        fraction: 1
`))
	require.ErrorIs(t, err, types.ErrInvalidModel)
}

func TestParseRejectsFractionsNotSummingToOne(t *testing.T) {
	_, err := Parse([]byte(`
reactions:
  - name: v1
    equation: "A (a) -> B (a)"
input_substrates:
  - name: A
    labelings:
      - pattern: "1"
        fraction: 0.4
`))
	require.ErrorIs(t, err, types.ErrInvalidModel)
}

func TestParseRejectsUnnamedReaction(t *testing.T) {
	_, err := Parse([]byte(`
reactions:
  - equation: "A (a) -> B (a)"
`))
	require.ErrorIs(t, err, types.ErrInvalidModel)
}
