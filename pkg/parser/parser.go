// Package parser reads a YAML model file into the ParserResults handed to
// the modeller: reactions with textual chemical equations, input-substrate
// labelings, excluded metabolites and the measured distributions.
package parser

import (
	"fmt"
	"math"
	"os"

	errorsmod "cosmossdk.io/errors"
	"gopkg.in/yaml.v3"

	"github.com/isoflux/isoflux/internal/types"
)

type modelFile struct {
	Reactions           []reactionEntry       `yaml:"reactions"`
	ExcludedMetabolites []string              `yaml:"excluded_metabolites"`
	InputSubstrates     []inputSubstrateEntry `yaml:"input_substrates"`
	Measurements        []measurementEntry    `yaml:"measurements"`
}

type reactionEntry struct {
	Name       string   `yaml:"name"`
	Equation   string   `yaml:"equation"`
	LowerBound *float64 `yaml:"lower_bound"`
	UpperBound *float64 `yaml:"upper_bound"`
	Basis      *float64 `yaml:"basis"`
	Deviation  *float64 `yaml:"deviation"`
	Reversible bool     `yaml:"reversible"`
	Pseudo     bool     `yaml:"pseudo"`
}

type inputSubstrateEntry struct {
	Name      string          `yaml:"name"`
	Labelings []labelingEntry `yaml:"labelings"`
}

type labelingEntry struct {
	Pattern  string  `yaml:"pattern"`
	Fraction float64 `yaml:"fraction"`
}

type measurementEntry struct {
	Metabolite string    `yaml:"metabolite"`
	Atoms      string    `yaml:"atoms"`
	Mid        []float64 `yaml:"mid"`
	Errors     []float64 `yaml:"errors"`
}

// ParseFile reads and parses a model file from disk.
func ParseFile(path string) (types.ParserResults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.ParserResults{}, fmt.Errorf("failed to read model file: %w", err)
	}
	return Parse(data)
}

// Parse builds ParserResults from a YAML model document. Reaction IDs are
// assigned densely in file order.
func Parse(data []byte) (types.ParserResults, error) {
	var file modelFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return types.ParserResults{}, fmt.Errorf("failed to parse model file: %w", err)
	}

	results := types.ParserResults{
		ExcludedMetabolites: file.ExcludedMetabolites,
	}

	for id, entry := range file.Reactions {
		reaction, err := buildReaction(id, entry)
		if err != nil {
			return types.ParserResults{}, err
		}
		results.Reactions = append(results.Reactions, reaction)
	}

	for _, entry := range file.InputSubstrates {
		substrate, err := buildInputSubstrate(entry)
		if err != nil {
			return types.ParserResults{}, err
		}
		results.InputSubstrates = append(results.InputSubstrates, substrate)
	}

	seen := make(map[string]bool)
	for _, entry := range file.Measurements {
		measurement, err := buildMeasurement(entry)
		if err != nil {
			return types.ParserResults{}, err
		}
		results.Measurements = append(results.Measurements, measurement)
		if !seen[measurement.Emu.Key()] {
			seen[measurement.Emu.Key()] = true
			results.MeasuredIsotopes = append(results.MeasuredIsotopes, measurement.Emu)
		}
	}

	return results, nil
}

func buildReaction(id int, entry reactionEntry) (types.Reaction, error) {
	if entry.Name == "" {
		return types.Reaction{}, errorsmod.Wrapf(types.ErrInvalidModel, "reaction %d has no name", id)
	}

	reaction := types.NewReaction(id, entry.Name)
	reaction.Reversible = entry.Reversible
	if entry.Pseudo {
		reaction.Type = types.IsotopomerBalance
	}
	if entry.LowerBound != nil {
		reaction.LowerBound = *entry.LowerBound
	}
	if entry.UpperBound != nil {
		reaction.UpperBound = *entry.UpperBound
	}
	if entry.Basis != nil {
		reaction.Basis = *entry.Basis
	}
	if entry.Deviation != nil {
		reaction.Deviation = *entry.Deviation
	}

	equation, err := parseEquation(entry.Equation, entry.Name)
	if err != nil {
		return types.Reaction{}, err
	}
	reaction.ChemicalEquation = equation

	return reaction, nil
}

func buildInputSubstrate(entry inputSubstrateEntry) (types.InputSubstrate, error) {
	substrate := types.InputSubstrate{Name: entry.Name}

	total := 0.0
	for _, labeling := range entry.Labelings {
		pattern, err := parseBits(labeling.Pattern)
		if err != nil {
			return types.InputSubstrate{}, errorsmod.Wrapf(types.ErrInvalidModel,
				"input substrate %q: %v", entry.Name, err)
		}
		substrate.Labelings = append(substrate.Labelings, types.Labeling{
			Pattern:  pattern,
			Fraction: labeling.Fraction,
		})
		total += labeling.Fraction
	}

	if math.Abs(total-1.0) > 1e-6 {
		return types.InputSubstrate{}, errorsmod.Wrapf(types.ErrInvalidModel,
			"input substrate %q: labeling fractions sum to %g", entry.Name, total)
	}

	return substrate, nil
}

func buildMeasurement(entry measurementEntry) (types.Measurement, error) {
	atoms, err := parseBits(entry.Atoms)
	if err != nil {
		return types.Measurement{}, errorsmod.Wrapf(types.ErrInvalidModel,
			"measurement of %q: %v", entry.Metabolite, err)
	}

	return types.Measurement{
		Emu:    types.Emu{Metabolite: entry.Metabolite, AtomStates: atoms},
		Mid:    types.Mid(entry.Mid),
		Errors: entry.Errors,
	}, nil
}

// parseBits reads a '0'/'1' string with one character per atom.
func parseBits(pattern string) ([]bool, error) {
	if pattern == "" {
		return nil, fmt.Errorf("empty atom pattern")
	}
	bits := make([]bool, len(pattern))
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '1':
			bits[i] = true
		case '0':
		default:
			return nil, fmt.Errorf("atom pattern %q: character %q is not 0 or 1", pattern, string(pattern[i]))
		}
	}
	return bits, nil
}
