/*
Copyright © 2026 the aqeq authors.
This file is part of aqeq.

aqeq is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

aqeq is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with aqeq.  If not, see <http://www.gnu.org/licenses/>.
*/

package aqeq

import (
	"math"
	"sort"
)

// HydrogenIon is the name of the species used to calculate pH.
const HydrogenIon SpeciesName = "H+"

// PhaseStability classifies a solution relative to a solid phase.
type PhaseStability int

// Phase stability classes.
const (
	Undersaturated PhaseStability = iota
	AtEquilibrium
	Supersaturated
)

func (p PhaseStability) String() string {
	switch p {
	case Undersaturated:
		return "undersaturated"
	case AtEquilibrium:
		return "at equilibrium"
	case Supersaturated:
		return "supersaturated"
	}
	return "unknown"
}

// PhaseResult holds the saturation state of one solid phase.
type PhaseResult struct {
	Solid string
	SI    float64 // saturation index
	State PhaseStability
}

// IdealActivities returns the concentrations in sol as activities,
// assuming ideal behavior (γ = 1).
func IdealActivities(sol *Solution) map[SpeciesName]float64 {
	return copyConc(sol.Concentrations)
}

// Activities returns concentration × γ for every species in sol, using the
// activity coefficients stored in species. Entries of sol that are not in
// species are treated as ideal.
func Activities(species []AqueousSpecies, sol *Solution) map[SpeciesName]float64 {
	gamma := make(map[SpeciesName]float64, len(species))
	for _, sp := range species {
		gamma[sp.Name] = sp.ActivityCoefficient
	}
	o := make(map[SpeciesName]float64, len(sol.Concentrations))
	for name, c := range sol.Concentrations {
		g, ok := gamma[name]
		if !ok {
			g = 1
		}
		o[name] = c * g
	}
	return o
}

// PH returns −log10 of the hydrogen ion activity, and false if there is no
// hydrogen ion in sol.
func PH(species []AqueousSpecies, sol *Solution) (float64, bool) {
	a, ok := Activities(species, sol)[HydrogenIon]
	if !ok || a <= 0 {
		return 0, false
	}
	return -math.Log10(a), true
}

// SaturationIndex returns SI = log10(Q) − logKsp, where Q is the ion
// activity product of solid. If any ion is missing from activities or has a
// non-positive activity, Q is zero and SI is −∞.
func SaturationIndex(solid SolidPhase, activities map[SpeciesName]float64) float64 {
	var logQ float64
	for ion, coeff := range solid.Stoichiometry {
		a, ok := activities[ion]
		if !ok || !(a > 0) {
			return math.Inf(-1)
		}
		logQ += float64(coeff) * math.Log10(a)
	}
	return logQ - solid.LogKsp
}

// Classify returns the phase stability for saturation index si.
func Classify(si float64) PhaseStability {
	switch {
	case si > 0:
		return Supersaturated
	case si == 0:
		return AtEquilibrium
	default:
		return Undersaturated
	}
}

// EvaluatePhases calculates the saturation index of each solid, keyed by
// solid name.
func EvaluatePhases(solids []SolidPhase, activities map[SpeciesName]float64) map[string]PhaseResult {
	o := make(map[string]PhaseResult, len(solids))
	for _, r := range EvaluatePhaseList(solids, activities) {
		o[r.Solid] = r
	}
	return o
}

// EvaluatePhaseList calculates the saturation index of each solid, in the
// order of solids.
func EvaluatePhaseList(solids []SolidPhase, activities map[SpeciesName]float64) []PhaseResult {
	o := make([]PhaseResult, len(solids))
	for i, s := range solids {
		si := SaturationIndex(s, activities)
		o[i] = PhaseResult{Solid: s.Name, SI: si, State: Classify(si)}
	}
	return o
}

// SupersaturatedSolids returns the names of the solids in results that may
// precipitate, sorted.
func SupersaturatedSolids(results []PhaseResult) []string {
	var o []string
	for _, r := range results {
		if r.State == Supersaturated {
			o = append(o, r.Solid)
		}
	}
	sort.Strings(o)
	return o
}
