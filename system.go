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
	"fmt"
)

// System holds the state of one speciation run. A System is owned by a
// single caller; it must not be shared between concurrent runs.
type System struct {
	Species []AqueousSpecies
	Solids  []SolidPhase
	Params  []PitzerPair
	Totals  TotalInput

	// Solution holds the initial guess before the run and the
	// equilibrium composition after it.
	Solution *Solution

	Solver *Solver

	// Ideal specifies whether saturation indices are calculated from
	// concentrations (γ = 1) rather than from activities.
	Ideal bool

	// Result and Phases are filled in by the Equilibrate and
	// CheckPhases stages.
	Result *Result
	Phases []PhaseResult
}

// Stage is a step in a speciation run.
type Stage func(*System) error

// Run runs stages in order, stopping at the first error.
func (s *System) Run(stages ...Stage) error {
	if s.Solution == nil {
		s.Solution = NewSolution()
	}
	if s.Solver == nil {
		s.Solver = NewSolver()
	}
	for _, f := range stages {
		if err := f(s); err != nil {
			return err
		}
	}
	return nil
}

// UpdateActivities returns a stage that calculates the ionic strength and
// activity coefficients from the current composition.
func UpdateActivities() Stage {
	return func(s *System) error {
		ComputeActivities(s.Species, s.Solution, s.Params)
		return nil
	}
}

// Equilibrate returns a stage that solves for the equilibrium composition.
func Equilibrate(ctx context.Context) Stage {
	return func(s *System) error {
		if s.Solver.RefreshActivities && s.Solver.Params == nil {
			s.Solver.Params = s.Params
		}
		r, err := s.Solver.Solve(ctx, s.Species, s.Solution, s.Totals)
		s.Result = r
		if err != nil {
			return fmt.Errorf("aqeq: solving equilibrium: %w", err)
		}
		return nil
	}
}

// CheckPhases returns a stage that calculates the saturation index of
// each solid from the current composition.
func CheckPhases() Stage {
	return func(s *System) error {
		var act map[SpeciesName]float64
		if s.Ideal {
			act = IdealActivities(s.Solution)
		} else {
			act = Activities(s.Species, s.Solution)
		}
		s.Phases = EvaluatePhaseList(s.Solids, act)
		return nil
	}
}

// Speciate calculates activity coefficients from the initial guess,
// solves for equilibrium and evaluates the solid phases. Saturation
// indices are calculated even if the solver does not converge; if the
// solver breaks down they are calculated from the last iterate and the
// error is returned.
func Speciate(ctx context.Context, s *System) error {
	err := s.Run(UpdateActivities(), Equilibrate(ctx))
	if perr := s.Run(CheckPhases()); perr != nil {
		return perr
	}
	return err
}
