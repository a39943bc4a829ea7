package types

import "gonum.org/v1/gonum/mat"

// Nullspace parameterizes the steady-state flux space: any valid flux
// assignment over the mass-balance reactions is Basis·f for a free-flux
// vector f. FreeReactionIDs maps each free coordinate to the reaction whose
// flux it literally is; the corresponding rows of Basis form an identity.
type Nullspace struct {
	Basis           *mat.Dense
	ColumnReactions []int
	FreeReactionIDs []int
}

// Nullity returns the number of free fluxes.
func (n Nullspace) Nullity() int {
	if n.Basis == nil {
		return 0
	}
	_, k := n.Basis.Dims()
	return k
}

// Problem is the immutable bundle handed from the modeller to the solver.
type Problem struct {
	Reactions         []Reaction
	MeasuredIsotopes  []Emu
	Nullspace         Nullspace
	Networks          []EmuNetwork
	InputMids         []EmuAndMid
	Measurements      []Measurement
	MeasurementsCount int
}
