package modeller

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/isoflux/isoflux/internal/types"
)

// mixingModel is a two-input mixing node: labeled X and unlabeled Y feed M,
// M drains into P at a pinned unit flux. The fitted label ratio of M
// determines the split between the two feeds.
func mixingModel() types.ParserResults {
	vx := types.NewReaction(0, "vx")
	vx.LowerBound, vx.UpperBound = 0, 1
	vx.ChemicalEquation = types.ChemicalEquation{
		Substrates: []types.ChemicalTerm{{Metabolite: "X", Stoichiometry: 1, AtomMapping: "a"}},
		Products:   []types.ChemicalTerm{{Metabolite: "M", Stoichiometry: 1, AtomMapping: "a"}},
	}

	vy := types.NewReaction(1, "vy")
	vy.LowerBound, vy.UpperBound = 0, 1
	vy.ChemicalEquation = types.ChemicalEquation{
		Substrates: []types.ChemicalTerm{{Metabolite: "Y", Stoichiometry: 1, AtomMapping: "a"}},
		Products:   []types.ChemicalTerm{{Metabolite: "M", Stoichiometry: 1, AtomMapping: "a"}},
	}

	vout := types.NewReaction(2, "vout")
	vout.LowerBound, vout.UpperBound = 0, 2
	vout.Basis, vout.Deviation = 1, 0
	vout.ChemicalEquation = types.ChemicalEquation{
		Substrates: []types.ChemicalTerm{{Metabolite: "M", Stoichiometry: 1, AtomMapping: "a"}},
		Products:   []types.ChemicalTerm{{Metabolite: "P", Stoichiometry: 1, AtomMapping: "a"}},
	}

	measured := types.Emu{Metabolite: "M", AtomStates: []bool{true}}

	return types.ParserResults{
		Reactions:           []types.Reaction{vx, vy, vout},
		MeasuredIsotopes:    []types.Emu{measured},
		Measurements: []types.Measurement{{
			Emu:    measured,
			Mid:    types.Mid{0.3, 0.7},
			Errors: []float64{0.01, 0.01},
		}},
		ExcludedMetabolites: []string{"X", "Y", "P"},
		InputSubstrates: []types.InputSubstrate{
			{Name: "X", Labelings: []types.Labeling{{Pattern: []bool{true}, Fraction: 1}}},
			{Name: "Y", Labelings: []types.Labeling{{Pattern: []bool{false}, Fraction: 1}}},
		},
	}
}

// chainModel is uptake -> A -> B -> sink with the boundary metabolites
// excluded. Excluding B on top widens the kernel by one dimension.
func chainModel(excludeB bool) types.ParserResults {
	equations := []struct {
		name      string
		substrate string
		product   string
	}{
		{"uptake", "Aext", "A"},
		{"conv", "A", "B"},
		{"sink", "B", "Bext"},
	}

	reactions := make([]types.Reaction, 0, len(equations))
	for id, eq := range equations {
		reaction := types.NewReaction(id, eq.name)
		reaction.LowerBound, reaction.UpperBound = 0, 10
		reaction.ChemicalEquation = types.ChemicalEquation{
			Substrates: []types.ChemicalTerm{{Metabolite: eq.substrate, Stoichiometry: 1, AtomMapping: "a"}},
			Products:   []types.ChemicalTerm{{Metabolite: eq.product, Stoichiometry: 1, AtomMapping: "a"}},
		}
		reactions = append(reactions, reaction)
	}

	excluded := []string{"Aext", "Bext"}
	if excludeB {
		excluded = append(excluded, "B")
	}

	measured := types.Emu{Metabolite: "B", AtomStates: []bool{true}}

	return types.ParserResults{
		Reactions:        reactions,
		MeasuredIsotopes: []types.Emu{measured},
		Measurements: []types.Measurement{{
			Emu:    measured,
			Mid:    types.Mid{0.5, 0.5},
			Errors: []float64{0.01, 0.01},
		}},
		ExcludedMetabolites: excluded,
		InputSubstrates: []types.InputSubstrate{
			{Name: "Aext", Labelings: []types.Labeling{
				{Pattern: []bool{true}, Fraction: 0.5},
				{Pattern: []bool{false}, Fraction: 0.5},
			}},
		},
	}
}

func TestNullspaceOrthogonalToStoichiometry(t *testing.T) {
	m := NewModeller(mixingModel())
	_, err := m.BuildProblem()
	require.NoError(t, err)

	var product mat.Dense
	product.Mul(m.stoichiometry, m.nullspace.Basis)
	require.Less(t, mat.Norm(&product, 2), 1e-9)
}

func TestFreeRowsOfBasisFormIdentity(t *testing.T) {
	m := NewModeller(mixingModel())
	_, err := m.BuildProblem()
	require.NoError(t, err)

	basis := m.nullspace.Basis
	rowOfReaction := make(map[int]int)
	for row, id := range m.nullspace.ColumnReactions {
		rowOfReaction[id] = row
	}

	for j, id := range m.nullspace.FreeReactionIDs {
		for jj := range m.nullspace.FreeReactionIDs {
			want := 0.0
			if j == jj {
				want = 1.0
			}
			require.InDelta(t, want, basis.At(rowOfReaction[id], jj), 1e-12)
		}
	}
}

func TestFluxesFromKernelStayWithinComputedBounds(t *testing.T) {
	m := NewModeller(mixingModel())
	problem, err := m.BuildProblem()
	require.NoError(t, err)

	byID := make(map[int]types.Reaction)
	for _, reaction := range problem.Reactions {
		byID[reaction.ID] = reaction
	}

	k := problem.Nullspace.Nullity()
	require.Equal(t, 2, k)

	// corners and midpoint of the free-flux box
	samples := [][]float64{}
	var lower, upper []float64
	for _, id := range problem.Nullspace.FreeReactionIDs {
		lower = append(lower, byID[id].ComputedLowerBound)
		upper = append(upper, byID[id].ComputedUpperBound)
	}
	mid := make([]float64, k)
	for i := range mid {
		mid[i] = (lower[i] + upper[i]) / 2
	}
	samples = append(samples, lower, upper, mid)

	for _, f := range samples {
		var v mat.VecDense
		v.MulVec(problem.Nullspace.Basis, mat.NewVecDense(k, f))
		for row, id := range problem.Nullspace.ColumnReactions {
			reaction := byID[id]
			require.GreaterOrEqual(t, v.AtVec(row), reaction.ComputedLowerBound-1e-9, reaction.Name)
			require.LessOrEqual(t, v.AtVec(row), reaction.ComputedUpperBound+1e-9, reaction.Name)
		}
	}
}

func TestPinnedReactionGetsPointBounds(t *testing.T) {
	m := NewModeller(mixingModel())
	problem, err := m.BuildProblem()
	require.NoError(t, err)

	for _, reaction := range problem.Reactions {
		if reaction.Name == "vout" {
			require.InDelta(t, 1.0, reaction.ComputedLowerBound, 1e-8)
			require.InDelta(t, 1.0, reaction.ComputedUpperBound, 1e-8)
		}
	}
}

func TestExcludingMetaboliteGrowsNullity(t *testing.T) {
	full := NewModeller(chainModel(false))
	_, err := full.BuildProblem()
	require.NoError(t, err)

	reduced := NewModeller(chainModel(true))
	_, err = reduced.BuildProblem()
	require.NoError(t, err)

	fullRows, _ := full.stoichiometry.Dims()
	reducedRows, _ := reduced.stoichiometry.Dims()
	require.Equal(t, fullRows-1, reducedRows)
	require.Equal(t, full.nullspace.Nullity()+1, reduced.nullspace.Nullity())
}

func TestContradictoryBoundsAreInfeasible(t *testing.T) {
	results := chainModel(false)
	results.Reactions[1].LowerBound = 5
	results.Reactions[1].UpperBound = 3

	_, err := NewModeller(results).BuildProblem()
	require.ErrorIs(t, err, types.ErrInfeasibleModel)
}

func TestEmuExpansionReachesInputs(t *testing.T) {
	results := chainModel(false)
	emuReactions, err := CreateAllEmuReactions(results.Reactions, results.MeasuredIsotopes)
	require.NoError(t, err)

	// B <- A <- Aext
	require.Len(t, emuReactions, 2)
	inputEmus := CreateInputEmuList(emuReactions, results.InputSubstrates)
	require.Len(t, inputEmus, 1)
	require.Equal(t, "Aext", inputEmus[0].Metabolite)
}

func TestInputMidCountsHeavyAtoms(t *testing.T) {
	substrates := []types.InputSubstrate{{
		Name: "Gluc",
		Labelings: []types.Labeling{
			{Pattern: []bool{true, false}, Fraction: 0.25},
			{Pattern: []bool{true, true}, Fraction: 0.25},
			{Pattern: []bool{false, false}, Fraction: 0.5},
		},
	}}
	emus := []types.Emu{
		{Metabolite: "Gluc", AtomStates: []bool{true, true}},
		{Metabolite: "Gluc", AtomStates: []bool{false, true}},
	}

	mids, err := CalculateInputMid(substrates, emus)
	require.NoError(t, err)
	require.Equal(t, types.Mid{0.5, 0.25, 0.25}, mids[0].Mid)
	require.Equal(t, types.Mid{0.75, 0.25}, mids[1].Mid)
}

func TestMeasurementLengthMismatchRejected(t *testing.T) {
	results := mixingModel()
	results.Measurements[0].Mid = types.Mid{0.3, 0.6, 0.1}
	results.Measurements[0].Errors = []float64{0.01, 0.01, 0.01}

	_, err := NewModeller(results).BuildProblem()
	require.ErrorIs(t, err, types.ErrInvalidModel)
}

func TestMeasurementMassSumChecked(t *testing.T) {
	results := mixingModel()
	results.Measurements[0].Mid = types.Mid{0.3, 0.3}

	_, err := NewModeller(results).BuildProblem()
	require.ErrorIs(t, err, types.ErrInvalidModel)
}

func TestVanishingAtomRejected(t *testing.T) {
	results := mixingModel()
	results.Reactions[0].ChemicalEquation.Products[0].AtomMapping = "b"

	_, err := NewModeller(results).BuildProblem()
	require.ErrorIs(t, err, types.ErrInvalidModel)
}

func TestUnknownMeasuredMetaboliteRejected(t *testing.T) {
	results := mixingModel()
	results.MeasuredIsotopes[0].Metabolite = "Q"
	results.Measurements[0].Emu.Metabolite = "Q"

	_, err := NewModeller(results).BuildProblem()
	require.ErrorIs(t, err, types.ErrInvalidModel)
}

func TestStoichiometryNetsBothSides(t *testing.T) {
	// A appears on both sides; only its net balance enters the matrix.
	reaction := types.NewReaction(0, "net")
	reaction.ChemicalEquation = types.ChemicalEquation{
		Substrates: []types.ChemicalTerm{{Metabolite: "A", Stoichiometry: 2}},
		Products:   []types.ChemicalTerm{{Metabolite: "A", Stoichiometry: 1}, {Metabolite: "B", Stoichiometry: 1}},
	}

	s, columns := CreateStoichiometryMatrix([]types.Reaction{reaction}, []string{"A", "B"})
	require.Equal(t, []int{0}, columns)
	require.Equal(t, -1.0, s.At(0, 0))
	require.Equal(t, 1.0, s.At(1, 0))
}

func TestPseudoReactionsGetNoColumn(t *testing.T) {
	results := mixingModel()
	pseudo := types.NewReaction(3, "scramble")
	pseudo.Type = types.IsotopomerBalance
	pseudo.ChemicalEquation = types.ChemicalEquation{
		Substrates: []types.ChemicalTerm{{Metabolite: "M", Stoichiometry: 1, AtomMapping: "a"}},
		Products:   []types.ChemicalTerm{{Metabolite: "M", Stoichiometry: 1, AtomMapping: "a"}},
	}
	results.Reactions = append(results.Reactions, pseudo)

	m := NewModeller(results)
	_, err := m.BuildProblem()
	require.NoError(t, err)

	_, cols := m.stoichiometry.Dims()
	require.Equal(t, 3, cols)
	require.NotContains(t, m.columnReactions, 3)
}

func TestEffectiveBoundsResolveBasis(t *testing.T) {
	reaction := types.NewReaction(0, "r")
	reaction.LowerBound, reaction.UpperBound = -5, 5

	lower, upper := effectiveBounds(reaction)
	require.Equal(t, -5.0, lower)
	require.Equal(t, 5.0, upper)

	reaction.Basis = 2
	lower, upper = effectiveBounds(reaction)
	require.Equal(t, 2.0, lower)
	require.Equal(t, 2.0, upper)

	reaction.Deviation = 0.5
	lower, upper = effectiveBounds(reaction)
	require.Equal(t, 1.5, lower)
	require.Equal(t, 2.5, upper)

	reaction.Basis = math.NaN()
	lower, upper = effectiveBounds(reaction)
	require.Equal(t, -5.0, lower)
	require.Equal(t, 5.0, upper)
}
