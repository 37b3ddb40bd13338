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

import "testing"

func TestMassActionUnitComplex(t *testing.T) {
	// A derived species with logK = 0 and a single unit coefficient has
	// the same concentration as the activity of its primary species.
	a := NewAqueousSpecies("A", 1, 0, nil)
	a.Primary = true
	a.ActivityCoefficient = 0.8
	b := NewAqueousSpecies("B", 1, 0, map[Component]int{"A": 1})
	conc := map[SpeciesName]float64{"A": 1e-3}

	have := MassAction([]AqueousSpecies{a, b}, conc)
	if different(have["B"], 8e-4, 1e-12) {
		t.Errorf("want 8e-4, have %g", have["B"])
	}
	if have["A"] != 1e-3 {
		t.Errorf("primary changed: %g", have["A"])
	}
	if _, ok := conc["B"]; ok {
		t.Error("input map was modified")
	}
}

func TestMassActionAbsentComponent(t *testing.T) {
	d := NewAqueousSpecies("D", 0, 2, map[Component]int{"Missing": 1})
	have := MassAction([]AqueousSpecies{d}, map[SpeciesName]float64{})
	if different(have["D"], 1e-10, 1e-9) {
		t.Errorf("want 1e-10, have %g", have["D"])
	}
}

func TestMassActionPrimaryDefault(t *testing.T) {
	a := NewAqueousSpecies("A", 0, 0, nil)
	a.Primary = true
	a.Concentration = 2e-5
	have := MassAction([]AqueousSpecies{a}, map[SpeciesName]float64{})
	if have["A"] != 2e-5 {
		t.Errorf("want 2e-5, have %g", have["A"])
	}
}

func TestLogConcentration(t *testing.T) {
	species, _, _ := uranylFluoride()
	act := map[SpeciesName]float64{"UO2++": 1e-4, "F-": 1e-3}
	const want = 5 - 4 - 3
	if have := LogConcentration(species[2], act); different(have, want, 1e-12) {
		t.Errorf("want %g, have %g", float64(want), have)
	}
}

func TestEvaluateMassAction(t *testing.T) {
	species, sol, _ := uranylFluoride()
	EvaluateMassAction(species, sol)
	const want = 1e5 * 5e-4 * 1e-3
	if different(sol.Concentrations["UO2F+"], want, 1e-12) {
		t.Errorf("solution: want %g, have %g", want, sol.Concentrations["UO2F+"])
	}
	for _, sp := range species {
		if sp.Concentration != sol.Concentrations[sp.Name] {
			t.Errorf("%s: species %g != solution %g", sp.Name, sp.Concentration, sol.Concentrations[sp.Name])
		}
	}
}
