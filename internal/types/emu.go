package types

import "strings"

// Emu is an elementary metabolite unit: a metabolite name plus the subset
// of its carbon atoms that the unit tracks.
type Emu struct {
	Metabolite string
	AtomStates []bool
}

// Size returns the number of atoms included in the EMU.
func (e Emu) Size() int {
	n := 0
	for _, s := range e.AtomStates {
		if s {
			n++
		}
	}
	return n
}

// Key returns a stable identity string, usable as a map key.
func (e Emu) Key() string {
	var b strings.Builder
	b.WriteString(e.Metabolite)
	b.WriteByte('#')
	for _, s := range e.AtomStates {
		if s {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// Equal reports whether two EMUs denote the same atoms of the same
// metabolite.
func (e Emu) Equal(other Emu) bool {
	if e.Metabolite != other.Metabolite || len(e.AtomStates) != len(other.AtomStates) {
		return false
	}
	for i := range e.AtomStates {
		if e.AtomStates[i] != other.AtomStates[i] {
			return false
		}
	}
	return true
}

// Less orders EMUs lexicographically on (metabolite, atom states).
func (e Emu) Less(other Emu) bool {
	return e.Key() < other.Key()
}

// String implements fmt.Stringer.
func (e Emu) String() string {
	return e.Key()
}

// Mid is a mass-isotopomer distribution: element i is the abundance of the
// isotopologue carrying i heavy atoms.
type Mid []float64

// Sum returns the total abundance, which is one up to numerical error for
// a well-formed distribution.
func (m Mid) Sum() float64 {
	total := 0.0
	for _, v := range m {
		total += v
	}
	return total
}

// Clone returns an independent copy.
func (m Mid) Clone() Mid {
	out := make(Mid, len(m))
	copy(out, m)
	return out
}

// EmuSubstrate is an EMU participating in an EMU reaction with its
// reaction-side stoichiometric coefficient.
type EmuSubstrate struct {
	Emu         Emu
	Coefficient float64
}

// EmuReaction is an atom-resolved reaction between EMUs. ID matches the
// source reaction. Left holds more than one substrate for condensations.
type EmuReaction struct {
	ID    int
	Left  []EmuSubstrate
	Right EmuSubstrate
}

// EmuNetwork is the set of EMU reactions whose products share one size.
type EmuNetwork []EmuReaction

// Size returns the product-EMU size common to the network.
func (n EmuNetwork) Size() int {
	if len(n) == 0 {
		return 0
	}
	return n[0].Right.Emu.Size()
}

// EmuAndMid pairs an EMU with its (known or simulated) distribution.
type EmuAndMid struct {
	Emu Emu
	Mid Mid
}
