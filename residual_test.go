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

func TestChargeBalanceOneToOne(t *testing.T) {
	species := []AqueousSpecies{
		NewAqueousSpecies("Na+", 1, 0, nil),
		NewAqueousSpecies("Cl-", -1, 0, nil),
	}
	conc := map[SpeciesName]float64{"Na+": 0.0123, "Cl-": 0.0123}
	if have := ChargeBalance(species, conc); have != 0 {
		t.Errorf("want 0, have %g", have)
	}
}

func TestMassBalanceResiduals(t *testing.T) {
	species, sol, totals := uranylFluoride()
	EvaluateMassAction(species, sol)
	idx := BuildIndex(species)
	elements := append(idx.Elements(), "Zz") // not present anywhere

	have := MassBalanceResiduals(idx, elements, sol.Concentrations, totals)
	c := sol.Concentrations["UO2F+"]
	want := []float64{1e-3 + c - 2e-3, 5e-4 + c - 1e-3, 0}
	for i := range want {
		if different(have[i], want[i], 1e-12) {
			t.Errorf("%s: want %g, have %g", elements[i], want[i], have[i])
		}
	}
	if have[2] != 0 {
		t.Errorf("absent element with zero total: have %g", have[2])
	}
}

func TestResiduals(t *testing.T) {
	species, sol, totals := uranylFluoride()
	EvaluateMassAction(species, sol)
	idx := BuildIndex(species)
	elements := idx.Elements()
	have := Residuals(species, idx, elements, sol.Concentrations, totals)
	if len(have) != len(elements)+1 {
		t.Fatalf("length: want %d, have %d", len(elements)+1, len(have))
	}
	want := ChargeBalance(species, sol.Concentrations)
	if have[len(have)-1] != want {
		t.Errorf("charge row: want %g, have %g", want, have[len(have)-1])
	}
}
