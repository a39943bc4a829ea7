package types

import "math"

// ReactionType discriminates real mass-balance reactions from the pseudo
// reactions that only carry isotopomer bookkeeping.
type ReactionType int

const (
	// MassBalance reactions contribute a column to the stoichiometry matrix.
	MassBalance ReactionType = iota
	// IsotopomerBalance reactions are skipped by stoichiometry and FVA and
	// simulate with a fixed unit flux.
	IsotopomerBalance
)

// String returns a human-readable reaction type name.
func (t ReactionType) String() string {
	if t == IsotopomerBalance {
		return "isotopomer_balance"
	}
	return "mass_balance"
}

// ChemicalTerm is one participant of a chemical equation. AtomMapping has
// one letter per carbon; the same letter on both sides of the equation
// identifies the same atom.
type ChemicalTerm struct {
	Metabolite    string
	Stoichiometry float64
	AtomMapping   string
}

// ChemicalEquation lists the substrates and products of a reaction in the
// order they were written in the model file.
type ChemicalEquation struct {
	Substrates []ChemicalTerm
	Products   []ChemicalTerm
}

// Reaction is a single model reaction. Basis and Deviation are NaN when the
// model file does not pin the flux. ComputedLowerBound and
// ComputedUpperBound are filled by flux-variability analysis.
type Reaction struct {
	ID         int
	Name       string
	Type       ReactionType
	Reversible bool

	LowerBound float64
	UpperBound float64
	Basis      float64
	Deviation  float64

	ChemicalEquation ChemicalEquation

	ComputedLowerBound float64
	ComputedUpperBound float64
}

// NewReaction returns a reaction with unbounded physical limits and unset
// basis, the defaults for fields the model file may omit.
func NewReaction(id int, name string) Reaction {
	return Reaction{
		ID:         id,
		Name:       name,
		LowerBound: math.Inf(-1),
		UpperBound: math.Inf(1),
		Basis:      math.NaN(),
		Deviation:  math.NaN(),
	}
}

// Labeling is one discrete labeling state of an input substrate. Pattern
// has one entry per atom, true for a heavy isotope.
type Labeling struct {
	Pattern  []bool
	Fraction float64
}

// InputSubstrate describes the labeling of a fed substrate; fractions over
// all labelings sum to one.
type InputSubstrate struct {
	Name      string
	Labelings []Labeling
}

// Measurement is a measured mass-isotopomer distribution of one EMU,
// together with per-channel measurement errors.
type Measurement struct {
	Emu    Emu
	Mid    Mid
	Errors []float64
}

// ParserResults is the handoff from the model-file parser to the modeller.
// Reaction IDs are dense in file order.
type ParserResults struct {
	Reactions           []Reaction
	MeasuredIsotopes    []Emu
	Measurements        []Measurement
	ExcludedMetabolites []string
	InputSubstrates     []InputSubstrate
}
