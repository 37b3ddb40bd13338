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
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
)

func init() {
	logrus.SetLevel(logrus.WarnLevel)
}

func TestSolveUranylFluoride(t *testing.T) {
	species, sol, totals := uranylFluoride()
	ComputeActivities(species, sol, nil)

	r, err := SolveEquilibrium(species, sol, totals)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Converged || r.Reason != Converged {
		t.Fatalf("did not converge: %+v", r)
	}
	if r.Iterations > 50 {
		t.Errorf("iterations: %d", r.Iterations)
	}
	if r.ResidualNorm >= 1e-8 {
		t.Errorf("residual norm %g", r.ResidualNorm)
	}
	for name, c := range sol.Concentrations {
		if c < 0 {
			t.Errorf("%s: negative concentration %g", name, c)
		}
	}

	c := sol.Concentrations
	if different(c["UO2++"]+c["UO2F+"], 1e-3, 1e-4) {
		t.Errorf("U mass balance: %g", c["UO2++"]+c["UO2F+"])
	}
	if different(c["F-"]+c["UO2F+"], 2e-3, 1e-4) {
		t.Errorf("F mass balance: %g", c["F-"]+c["UO2F+"])
	}
	// Most of the uranyl is complexed at this logK.
	if c["UO2F+"] < 10*c["UO2++"] {
		t.Errorf("UO2F+ = %g, UO2++ = %g", c["UO2F+"], c["UO2++"])
	}
	for _, sp := range species {
		if sp.Concentration != c[sp.Name] {
			t.Errorf("%s: species and solution out of sync", sp.Name)
		}
	}
	if len(r.Residuals) != len(r.Elements)+1 {
		t.Errorf("residuals: %v, elements: %v", r.Residuals, r.Elements)
	}
}

func TestSolveIdempotent(t *testing.T) {
	species, sol, totals := uranylFluoride()
	ComputeActivities(species, sol, nil)
	if _, err := SolveEquilibrium(species, sol, totals); err != nil {
		t.Fatal(err)
	}
	want := sol.Copy()

	r, err := SolveEquilibrium(species, sol, totals)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Converged || r.Iterations > 1 {
		t.Errorf("second solve: converged %v after %d iterations", r.Converged, r.Iterations)
	}
	for name, c := range want.Concentrations {
		if different(sol.Concentrations[name], c, 1e-6) {
			t.Errorf("%s: want %g, have %g", name, c, sol.Concentrations[name])
		}
	}
}

func TestSolveMaxIterations(t *testing.T) {
	species, sol, totals := uranylFluoride()
	s := NewSolver()
	s.MaxIterations = 1
	r, err := s.Solve(context.Background(), species, sol, totals)
	if err != nil {
		t.Fatal(err)
	}
	if r.Converged || r.Reason != MaxIterations {
		t.Errorf("converged %v, reason %v", r.Converged, r.Reason)
	}
	if r.Iterations != 1 {
		t.Errorf("iterations: want 1, have %d", r.Iterations)
	}
	if r.Solution != sol || len(sol.Concentrations) != 3 {
		t.Errorf("solution not updated: %v", sol.Concentrations)
	}
	if r.Reason.String() != "maximum iterations reached" {
		t.Errorf("reason: %s", r.Reason)
	}
}

func TestSolveSingular(t *testing.T) {
	// Two primaries that carry the same element and no charge leave the
	// Jacobian without full rank.
	x := NewAqueousSpecies("X", 0, 0, map[Component]int{"Z": 1})
	x.Primary = true
	y := NewAqueousSpecies("Y", 0, 0, map[Component]int{"Z": 1})
	y.Primary = true
	sol := NewSolution()
	r, err := SolveEquilibrium([]AqueousSpecies{x, y}, sol, TotalInput{"Z": 1e-3})
	if !errors.Is(err, ErrSolverBreakdown) {
		t.Fatalf("want ErrSolverBreakdown, have %v", err)
	}
	if r == nil || r.Converged {
		t.Fatalf("result: %+v", r)
	}
	if r.Reason != Breakdown || r.Reason.String() != "solver breakdown" {
		t.Errorf("reason: %v", r.Reason)
	}
}

func TestSolveUnsetSettings(t *testing.T) {
	species, sol, totals := uranylFluoride()
	s := &Solver{MaxIterations: 50, Tolerance: 1e-8}
	r, err := s.Solve(context.Background(), species, sol, totals)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Converged {
		t.Errorf("did not converge: %+v", r)
	}
	if s.PerturbationFraction != 0 || s.MinPerturbation != 0 {
		t.Error("the solver settings were modified")
	}
}

// Primaries without a stoichiometry are their own components, and the
// totals are keyed by the primary names.
func TestSolveBarePrimaries(t *testing.T) {
	uo2 := NewAqueousSpecies("UO2++", 2, 0, nil)
	uo2.Primary = true
	f := NewAqueousSpecies("F-", -1, 0, nil)
	f.Primary = true
	uo2f := NewAqueousSpecies("UO2F+", 1, 5, map[Component]int{"UO2++": 1, "F-": 1})
	species := []AqueousSpecies{uo2, f, uo2f}

	sol := NewSolution()
	sol.Concentrations["UO2++"] = 5e-4
	sol.Concentrations["F-"] = 1e-3
	r, err := SolveEquilibrium(species, sol, TotalInput{"UO2++": 1e-3, "F-": 2e-3})
	if err != nil {
		t.Fatal(err)
	}
	if !r.Converged || r.Iterations > 50 || r.ResidualNorm >= 1e-8 {
		t.Fatalf("did not converge: %+v", r)
	}
	want := []ElementLabel{"F-", "UO2++"}
	if len(r.Elements) != 2 || r.Elements[0] != want[0] || r.Elements[1] != want[1] {
		t.Errorf("elements: want %v, have %v", want, r.Elements)
	}
	c := sol.Concentrations
	for name, v := range c {
		if v < 0 {
			t.Errorf("%s: negative concentration %g", name, v)
		}
	}
	if different(c["UO2++"]+c["UO2F+"], 1e-3, 1e-4) {
		t.Errorf("UO2++ mass balance: %g", c["UO2++"]+c["UO2F+"])
	}
	if different(c["F-"]+c["UO2F+"], 2e-3, 1e-4) {
		t.Errorf("F- mass balance: %g", c["F-"]+c["UO2F+"])
	}
}

func TestSolveNoPrimary(t *testing.T) {
	species := []AqueousSpecies{NewAqueousSpecies("A", 0, 0, nil)}
	_, err := SolveEquilibrium(species, NewSolution(), TotalInput{})
	if err != ErrNoPrimarySpecies {
		t.Errorf("want ErrNoPrimarySpecies, have %v", err)
	}
}

func TestSolveDuplicate(t *testing.T) {
	species, sol, totals := uranylFluoride()
	species = append(species, species[1])
	_, err := SolveEquilibrium(species, sol, totals)
	if !errors.Is(err, ErrDuplicateSpecies) {
		t.Errorf("want ErrDuplicateSpecies, have %v", err)
	}
}

func TestSolveInitialGuess(t *testing.T) {
	species, _, totals := uranylFluoride()
	sol := NewSolution()
	r, err := SolveEquilibrium(species, sol, totals)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Converged {
		t.Errorf("did not converge from the default initial guess: %+v", r)
	}
}

func TestSolveConcurrent(t *testing.T) {
	species, sol, totals := uranylFluoride()
	if _, err := SolveEquilibrium(species, sol, totals); err != nil {
		t.Fatal(err)
	}

	species2, sol2, _ := uranylFluoride()
	s := NewSolver()
	s.Concurrency = 4
	if _, err := s.Solve(context.Background(), species2, sol2, totals); err != nil {
		t.Fatal(err)
	}
	for name, c := range sol.Concentrations {
		if different(sol2.Concentrations[name], c, 1e-12) {
			t.Errorf("%s: sequential %g, concurrent %g", name, c, sol2.Concentrations[name])
		}
	}
}

func TestSolveRefreshActivities(t *testing.T) {
	species, sol, totals := uranylFluoride()
	s := NewSolver()
	s.RefreshActivities = true
	r, err := s.Solve(context.Background(), species, sol, totals)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Converged {
		t.Fatalf("did not converge: %+v", r)
	}
	// The final activity coefficients are consistent with the final
	// ionic strength.
	want := IonicStrength(sol.Concentrations, charges(species))
	if different(sol.IonicStrength, want, 1e-3) {
		t.Errorf("ionic strength: want %g, have %g", want, sol.IonicStrength)
	}
	for _, sp := range species {
		if sp.Charge != 0 && sp.ActivityCoefficient >= 1 {
			t.Errorf("%s: γ = %g", sp.Name, sp.ActivityCoefficient)
		}
	}
}

func TestSolveCanceled(t *testing.T) {
	species, sol, totals := uranylFluoride()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSolver().Solve(ctx, species, sol, totals)
	if err != context.Canceled {
		t.Errorf("want context.Canceled, have %v", err)
	}
}

func TestStopReasonString(t *testing.T) {
	if Converged.String() != "converged" {
		t.Error(Converged.String())
	}
	if StopReason(9).String() != "unknown" {
		t.Error(StopReason(9).String())
	}
}
