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

import "math"

// Fallback values used when data are missing or iterates leave the
// physical domain.
const (
	// AbsentActivity stands in for the activity of a component that is
	// not present, so that it is effectively absent.
	AbsentActivity = 1e-12

	// ConcentrationFloor replaces negative concentrations produced by a
	// Newton step.
	ConcentrationFloor = 1e-12

	// InitialGuess is the starting concentration [mol/L] of primary
	// species that have not been given one.
	InitialGuess = 1e-10
)

// PrimaryActivities returns the activity (concentration × γ) of every
// primary species. Primary species missing from conc are given the
// AbsentActivity concentration.
func PrimaryActivities(species []AqueousSpecies, conc map[SpeciesName]float64) map[SpeciesName]float64 {
	o := make(map[SpeciesName]float64)
	for _, sp := range species {
		if !sp.Primary {
			continue
		}
		c, ok := conc[sp.Name]
		if !ok {
			c = AbsentActivity
		}
		o[sp.Name] = c * sp.ActivityCoefficient
	}
	return o
}

// LogConcentration evaluates the mass-action law of a derived species:
// log10(c) = logK + Σ νᵢ log10(aᵢ), where the activities are those of the
// primary species. A missing component contributes log10(AbsentActivity).
func LogConcentration(sp AqueousSpecies, activities map[SpeciesName]float64) float64 {
	logC := sp.LogK
	for comp, coeff := range sp.Stoichiometry {
		a, ok := activities[SpeciesName(comp)]
		if !ok {
			a = AbsentActivity
		}
		logC += float64(coeff) * math.Log10(a)
	}
	return logC
}

// MassAction returns a new concentration map in which the primary species
// hold their values from conc and every derived species is calculated
// from the primary-species activities. conc is not modified.
func MassAction(species []AqueousSpecies, conc map[SpeciesName]float64) map[SpeciesName]float64 {
	act := PrimaryActivities(species, conc)
	o := copyConc(conc)
	for _, sp := range species {
		if sp.Primary {
			if _, ok := o[sp.Name]; !ok {
				o[sp.Name] = sp.Concentration
			}
			continue
		}
		o[sp.Name] = math.Pow(10, LogConcentration(sp, act))
	}
	return o
}

// EvaluateMassAction recalculates the derived-species concentrations
// from the primary species in sol and writes the concentration of every
// species into both sol and species, keeping them in sync.
func EvaluateMassAction(species []AqueousSpecies, sol *Solution) {
	sol.Concentrations = MassAction(species, sol.Concentrations)
	for i := range species {
		species[i].Concentration = sol.Concentrations[species[i].Name]
	}
}
