package modeller

import (
	"log"

	"gonum.org/v1/gonum/mat"

	"github.com/isoflux/isoflux/internal/types"
)

// Modeller compiles parser output into the immutable Problem consumed by
// the solver. The stages have a fixed order; BuildProblem runs them all.
type Modeller struct {
	reactions           []types.Reaction
	measuredIsotopes    []types.Emu
	measurements        []types.Measurement
	excludedMetabolites []string
	inputSubstrates     []types.InputSubstrate

	allEmuReactions []types.EmuReaction
	inputEmus       []types.Emu
	inputMids       []types.EmuAndMid
	networks        []types.EmuNetwork

	stoichiometry   *mat.Dense
	columnReactions []int
	nullspace       types.Nullspace

	measurementsCount int
}

// NewModeller takes ownership of the parser results.
func NewModeller(results types.ParserResults) *Modeller {
	return &Modeller{
		reactions:           results.Reactions,
		measuredIsotopes:    results.MeasuredIsotopes,
		measurements:        results.Measurements,
		excludedMetabolites: results.ExcludedMetabolites,
		inputSubstrates:     results.InputSubstrates,
	}
}

// CheckModelForErrors validates measurements, atom mappings and name
// references before any compilation work starts.
func (m *Modeller) CheckModelForErrors() error {
	if err := CheckMeasurements(m.measurements); err != nil {
		return err
	}
	if err := CheckAtomMappings(m.reactions); err != nil {
		return err
	}
	return CheckReferences(m.reactions, m.measuredIsotopes, m.inputSubstrates)
}

// CalculateMeasurementsCount totals the residual vector length over all
// measured mass shifts.
func (m *Modeller) CalculateMeasurementsCount() {
	m.measurementsCount = 0
	for _, measurement := range m.measurements {
		m.measurementsCount += len(measurement.Mid)
	}
}

// CalculateInputSubstrateMids expands the EMU reactions reachable from the
// measured isotopes and computes the fixed distributions of the input EMUs.
func (m *Modeller) CalculateInputSubstrateMids() error {
	var err error
	m.allEmuReactions, err = CreateAllEmuReactions(m.reactions, m.measuredIsotopes)
	if err != nil {
		return err
	}
	m.inputEmus = CreateInputEmuList(m.allEmuReactions, m.inputSubstrates)
	m.inputMids, err = CalculateInputMid(m.inputSubstrates, m.inputEmus)
	if err != nil {
		return err
	}
	log.Printf("Compiled %d EMU reactions, %d input EMUs", len(m.allEmuReactions), len(m.inputEmus))
	return nil
}

// CreateNullspaceMatrix builds the stoichiometry matrix over the included
// metabolites and the kernel basis parameterizing its steady states.
func (m *Modeller) CreateNullspaceMatrix() error {
	full := FullMetaboliteList(m.reactions)
	included := IncludedMetaboliteList(full, m.excludedMetabolites)

	m.stoichiometry, m.columnReactions = CreateStoichiometryMatrix(m.reactions, included)

	var err error
	m.nullspace, err = ComputeNullspace(m.stoichiometry, m.columnReactions)
	if err != nil {
		return err
	}

	rows, cols := m.stoichiometry.Dims()
	log.Printf("Stoichiometry %dx%d, nullity %d", rows, cols, m.nullspace.Nullity())
	return nil
}

// CalculateFluxBounds runs FVA over the mass-balance reactions.
func (m *Modeller) CalculateFluxBounds() error {
	return CalculateFluxBounds(m.reactions, m.stoichiometry, m.columnReactions)
}

// CreateEmuNetworks stratifies the compiled EMU reactions into networks by
// product size.
func (m *Modeller) CreateEmuNetworks() {
	m.networks = CreateEmuNetworks(m.allEmuReactions, m.inputEmus, m.measuredIsotopes)
	log.Printf("Stratified into %d EMU networks", len(m.networks))
}

// Problem packages the compiled model. The returned value is treated as
// read-only by the solver.
func (m *Modeller) Problem() types.Problem {
	return types.Problem{
		Reactions:         m.reactions,
		MeasuredIsotopes:  m.measuredIsotopes,
		Nullspace:         m.nullspace,
		Networks:          m.networks,
		InputMids:         m.inputMids,
		Measurements:      m.measurements,
		MeasurementsCount: m.measurementsCount,
	}
}

// BuildProblem runs the full modelling pipeline in its fixed order.
func (m *Modeller) BuildProblem() (types.Problem, error) {
	if err := m.CheckModelForErrors(); err != nil {
		return types.Problem{}, err
	}
	m.CalculateMeasurementsCount()
	if err := m.CalculateInputSubstrateMids(); err != nil {
		return types.Problem{}, err
	}
	if err := m.CreateNullspaceMatrix(); err != nil {
		return types.Problem{}, err
	}
	if err := m.CalculateFluxBounds(); err != nil {
		return types.Problem{}, err
	}
	m.CreateEmuNetworks()
	return m.Problem(), nil
}
