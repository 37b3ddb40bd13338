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

package aqequtil

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spatialmodel/aqeq"
	"github.com/spatialmodel/aqeq/thermodb"
)

func different(a, b, tolerance float64) bool {
	if a == b {
		return false
	}
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func uranylProblem(t *testing.T) *Problem {
	db, err := thermodb.Load("testdata/uranyl.txt")
	if err != nil {
		t.Fatal(err)
	}
	return &Problem{
		DB:           db,
		Primary:      []aqeq.SpeciesName{"UO2++", "F-"},
		Totals:       aqeq.TotalInput{"U": 1e-3, "F": 2e-3},
		InitialGuess: map[aqeq.SpeciesName]float64{"UO2++": 5e-4, "F-": 1e-3},
	}
}

func TestNewSystemIsolation(t *testing.T) {
	p := uranylProblem(t)
	a, err := p.NewSystem(aqeq.NewSolver())
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.NewSystem(aqeq.NewSolver())
	if err != nil {
		t.Fatal(err)
	}
	if err := aqeq.Speciate(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	if b.Solution.Concentrations["UO2++"] != 5e-4 || b.Species[0].Concentration != 0 {
		t.Error("solving one system modified another")
	}
	if p.DB.Species[0].Primary {
		t.Error("the database was modified")
	}
	if _, err := (&Problem{DB: p.DB, Primary: []aqeq.SpeciesName{"Ca++"}}).NewSystem(aqeq.NewSolver()); err == nil {
		t.Error("expected an error for an unknown primary species")
	}
}

func TestReadScenarios(t *testing.T) {
	sc, err := LoadScenarios("testdata/scenarios.toml")
	if err != nil {
		t.Fatal(err)
	}
	if len(sc) != 4 {
		t.Fatalf("want 4 scenarios, have %d", len(sc))
	}
	if sc[2].Totals["F"] != 2e-4 || sc[2].InitialGuess["UO2++"] != 5e-5 {
		t.Errorf("dilute: %+v", sc[2])
	}
	if sc[3].Ideal == nil || !*sc[3].Ideal || sc[0].Ideal != nil {
		t.Errorf("ideal: %v, %v", sc[3].Ideal, sc[0].Ideal)
	}
	if _, err := ReadScenarios(strings.NewReader("")); err == nil {
		t.Error("expected an error for an empty file")
	}
}

func TestBatch(t *testing.T) {
	p := uranylProblem(t)
	sc, err := LoadScenarios("testdata/scenarios.toml")
	if err != nil {
		t.Fatal(err)
	}
	if sc[0].key(p) != sc[1].key(p) || sc[0].key(p) == sc[2].key(p) {
		t.Error("scenario keys do not depend on the problem only")
	}

	r := Batch(context.Background(), p, aqeq.NewSolver(), sc, 2)
	if len(r) != 4 {
		t.Fatalf("want 4 results, have %d", len(r))
	}
	for _, res := range r {
		if res.Err != nil {
			t.Fatalf("%s: %v", res.Label, res.Err)
		}
		if !res.System.Result.Converged {
			t.Errorf("%s did not converge", res.Label)
		}
	}
	ref := r[0].System.Solution.Concentrations
	for n, c := range r[1].System.Solution.Concentrations {
		if c != ref[n] {
			t.Errorf("%s: duplicate scenarios differ: %g != %g", n, ref[n], c)
		}
	}
	dilute := r[2].System.Solution.Concentrations
	if different(dilute["UO2++"]+dilute["UO2F+"], 1e-4, 1e-4) {
		t.Errorf("dilute U balance: %g", dilute["UO2++"]+dilute["UO2F+"])
	}
	if !r[3].System.Ideal || r[0].System.Ideal {
		t.Error("Ideal was not applied per scenario")
	}
	if len(r[3].System.Phases) != 0 {
		t.Errorf("no solids: %v", r[3].System.Phases)
	}
}

func TestRunBatchOutputs(t *testing.T) {
	p := uranylProblem(t)
	sc := []Scenario{{Label: "a"}, {Label: "b", Totals: map[string]float64{"U": 2e-3, "F": 4e-3}}}
	dir := t.TempDir()
	var b strings.Builder
	err := RunBatch(context.Background(), &b, p, aqeq.NewSolver(), sc, 1,
		map[string]string{"ratio": "[UO2F+] / [UO2++]"},
		filepath.Join(dir, "batch.xlsx"), filepath.Join(dir, "batch.db"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(b.String(), "ratio") != 2 {
		t.Errorf("output:\n%s", b.String())
	}
}
