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

// Package aqeq computes the equilibrium speciation of aqueous solutions.
//
// Given total concentrations of conserved components, aqeq finds the free
// concentrations of all primary (basis) and derived (complex) species that
// jointly satisfy the mass-action laws, mass balance and electroneutrality,
// and then evaluates the saturation state of solid phases.
//
// Activity coefficients are calculated with a Debye-Hückel term plus binary
// (Pitzer-type) interaction corrections, using constants valid at 25 °C only.
package aqeq

import "sort"

// Version gives the version number.
const Version = "1.0.0"

// SpeciesName identifies an aqueous species or a solid-phase ion.
type SpeciesName string

// ElementLabel identifies a conserved component in the mass balance.
type ElementLabel string

// Component is a raw stoichiometry key as it appears in a database. It can
// name a primary species or a conserved element; BuildIndex resolves which.
type Component string

// AqueousSpecies is a dissolved ion or complex (e.g., UO2++, F-, UO2F+).
type AqueousSpecies struct {
	Name   SpeciesName
	Charge float64

	// LogK is the log10 equilibrium (formation) constant.
	LogK float64

	// Stoichiometry maps components to coefficients. For derived
	// species the components are primary species names; for primary
	// species they give the elemental composition.
	Stoichiometry map[Component]int

	ActivityCoefficient float64
	Concentration       float64 // [mol/L]

	// Primary marks the species as a basis species whose concentration
	// is one of the solver unknowns.
	Primary bool
}

// NewAqueousSpecies returns a species with a unit activity coefficient.
func NewAqueousSpecies(name SpeciesName, charge, logK float64, stoichiometry map[Component]int) AqueousSpecies {
	if stoichiometry == nil {
		stoichiometry = make(map[Component]int)
	}
	return AqueousSpecies{
		Name:                name,
		Charge:              charge,
		LogK:                logK,
		Stoichiometry:       stoichiometry,
		ActivityCoefficient: 1,
	}
}

// CopySpecies returns a deep copy of species.
func CopySpecies(species []AqueousSpecies) []AqueousSpecies {
	o := make([]AqueousSpecies, len(species))
	for i, sp := range species {
		o[i] = sp
		o[i].Stoichiometry = make(map[Component]int, len(sp.Stoichiometry))
		for k, v := range sp.Stoichiometry {
			o[i].Stoichiometry[k] = v
		}
	}
	return o
}

// PrimaryNames returns the names of the primary species in database order.
func PrimaryNames(species []AqueousSpecies) []SpeciesName {
	var o []SpeciesName
	for _, sp := range species {
		if sp.Primary {
			o = append(o, sp.Name)
		}
	}
	return o
}

// charges returns a map of species charges.
func charges(species []AqueousSpecies) map[SpeciesName]float64 {
	o := make(map[SpeciesName]float64, len(species))
	for _, sp := range species {
		o[sp.Name] = sp.Charge
	}
	return o
}

// SolidPhase is a mineral with a solubility product.
type SolidPhase struct {
	Name string

	// LogKsp is the log10 solubility product.
	LogKsp float64

	// Stoichiometry maps dissolved ions to coefficients.
	Stoichiometry map[SpeciesName]int
}

// Solution holds the composition and state variables of the system.
type Solution struct {
	// Concentrations holds free species concentrations [mol/L].
	Concentrations map[SpeciesName]float64

	IonicStrength float64 // [mol/L]
	Temperature   float64 // [K]; carried but not used in the equilibrium math.
	PH            float64
}

// StandardTemperature is 25 °C in Kelvin.
const StandardTemperature = 298.15

// NewSolution returns an empty solution at 25 °C.
func NewSolution() *Solution {
	return &Solution{
		Concentrations: make(map[SpeciesName]float64),
		Temperature:    StandardTemperature,
	}
}

// Copy returns a deep copy of s.
func (s *Solution) Copy() *Solution {
	o := *s
	o.Concentrations = copyConc(s.Concentrations)
	return &o
}

// Names returns the species present in s, sorted.
func (s *Solution) Names() []SpeciesName {
	o := make([]SpeciesName, 0, len(s.Concentrations))
	for n := range s.Concentrations {
		o = append(o, n)
	}
	sort.Slice(o, func(i, j int) bool { return o[i] < o[j] })
	return o
}

func copyConc(c map[SpeciesName]float64) map[SpeciesName]float64 {
	o := make(map[SpeciesName]float64, len(c))
	for k, v := range c {
		o[k] = v
	}
	return o
}

// TotalInput holds total analytical concentrations of conserved
// components [mol/L].
type TotalInput map[ElementLabel]float64

// Total returns the total for e, or 0 if e is not constrained.
func (t TotalInput) Total(e ElementLabel) float64 {
	return t[e]
}

// PitzerPair holds binary interaction parameters for an unordered pair of
// ions.
type PitzerPair struct {
	Ion1, Ion2 SpeciesName
	Beta0      float64
	Beta1      float64
	Cphi       float64
}

// Partner returns the other ion in the pair and whether name is a member.
func (p PitzerPair) Partner(name SpeciesName) (SpeciesName, bool) {
	switch name {
	case p.Ion1:
		return p.Ion2, true
	case p.Ion2:
		return p.Ion1, true
	}
	return "", false
}
