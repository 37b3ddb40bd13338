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
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Errors returned by the equilibrium solver.
var (
	// ErrNoPrimarySpecies indicates that no species is marked as primary,
	// so there are no unknowns to solve for.
	ErrNoPrimarySpecies = errors.New("aqeq: no primary species")

	// ErrDuplicateSpecies indicates that two species share a name.
	ErrDuplicateSpecies = errors.New("aqeq: duplicate species name")

	// ErrSolverBreakdown indicates that the Newton step could not be
	// calculated, for example because the Jacobian is singular.
	ErrSolverBreakdown = errors.New("aqeq: solver breakdown")
)

// StopReason describes why the Newton iteration stopped.
type StopReason int

// Reasons for stopping.
const (
	// Converged means the residual norm fell below the tolerance.
	Converged StopReason = iota
	// MaxIterations means the iteration cap was reached first.
	MaxIterations
	// Breakdown means the Newton step could not be calculated.
	Breakdown
)

func (r StopReason) String() string {
	switch r {
	case Converged:
		return "converged"
	case MaxIterations:
		return "maximum iterations reached"
	case Breakdown:
		return "solver breakdown"
	}
	return "unknown"
}

// Result holds the outcome of an equilibrium calculation. Callers must
// check Converged before trusting the composition in Solution.
type Result struct {
	Solution     *Solution
	Converged    bool
	Reason       StopReason
	Iterations   int
	ResidualNorm float64

	// Elements gives the mass-balance row order of Residuals; the last
	// residual is the charge balance.
	Elements  []ElementLabel
	Residuals []float64
}

// Solver holds the settings of the Newton-Raphson equilibrium solver.
// Zero or negative MaxIterations, Tolerance, PerturbationFraction and
// MinPerturbation are replaced by the NewSolver defaults when solving.
type Solver struct {
	// MaxIterations is the maximum number of Newton steps.
	MaxIterations int

	// Tolerance is the residual 2-norm [mol/L] below which the solution
	// is considered converged.
	Tolerance float64

	// The finite-difference step for unknown j is
	// max(PerturbationFraction·xⱼ, MinPerturbation).
	PerturbationFraction float64
	MinPerturbation      float64

	// RefreshActivities specifies whether the ionic strength and activity
	// coefficients are recalculated from the current composition at the
	// beginning of every iteration. If false, the coefficients already
	// stored in the species are used throughout.
	RefreshActivities bool

	// Params are the interaction parameters used when RefreshActivities
	// is true.
	Params []PitzerPair

	// Concurrency is the number of Jacobian columns calculated in
	// parallel. Values < 2 calculate them sequentially.
	Concurrency int

	Log logrus.FieldLogger
}

// NewSolver returns a solver with the default settings.
func NewSolver() *Solver {
	return &Solver{
		MaxIterations:        50,
		Tolerance:            1e-8,
		PerturbationFraction: 0.01,
		MinPerturbation:      1e-6,
		Concurrency:          1,
		Log:                  logrus.StandardLogger(),
	}
}

// withDefaults returns a copy of s with unset numerical settings replaced
// by their defaults.
func (s *Solver) withDefaults() *Solver {
	d := NewSolver()
	o := *s
	if !(o.MaxIterations > 0) {
		o.MaxIterations = d.MaxIterations
	}
	if !(o.Tolerance > 0) {
		o.Tolerance = d.Tolerance
	}
	if !(o.PerturbationFraction > 0) {
		o.PerturbationFraction = d.PerturbationFraction
	}
	if !(o.MinPerturbation > 0) {
		o.MinPerturbation = d.MinPerturbation
	}
	return &o
}

// SolveEquilibrium solves for the equilibrium composition using the
// default solver settings.
func SolveEquilibrium(species []AqueousSpecies, sol *Solution, totals TotalInput) (*Result, error) {
	return NewSolver().Solve(context.Background(), species, sol, totals)
}

// system is the fixed part of the nonlinear problem: everything except
// the primary-species concentrations.
type system struct {
	species   []AqueousSpecies
	idx       StoichIndex
	elements  []ElementLabel
	primaries []SpeciesName
	totals    TotalInput
	base      map[SpeciesName]float64
}

// evaluate returns the full composition and the residual vector for the
// primary-species concentrations x. It does not modify s.
func (s *system) evaluate(x []float64) (map[SpeciesName]float64, []float64) {
	conc := copyConc(s.base)
	for j, name := range s.primaries {
		conc[name] = x[j]
	}
	conc = MassAction(s.species, conc)
	return conc, Residuals(s.species, s.idx, s.elements, conc, s.totals)
}

// Solve adjusts the primary-species concentrations in sol until the mass
// balance of every element and the charge balance are satisfied, using
// Newton-Raphson iteration with a finite-difference Jacobian. Primary
// species without a concentration in sol start at InitialGuess.
//
// sol and the concentrations in species are updated with the final
// iterate whether or not the iteration converged. Non-convergence is not
// an error; it is reported in the Result.
func (s *Solver) Solve(ctx context.Context, species []AqueousSpecies, sol *Solution, totals TotalInput) (*Result, error) {
	if err := checkSpecies(species); err != nil {
		return nil, err
	}
	primaries := PrimaryNames(species)
	if len(primaries) == 0 {
		return nil, ErrNoPrimarySpecies
	}
	log := s.logger()
	s = s.withDefaults()

	x := make([]float64, len(primaries))
	for j, name := range primaries {
		c, ok := sol.Concentrations[name]
		if !ok {
			c = InitialGuess
			sol.Concentrations[name] = c
		}
		x[j] = c
	}

	idx := BuildIndex(species)
	sys := &system{
		species:   species,
		idx:       idx,
		elements:  idx.Elements(),
		primaries: primaries,
		totals:    totals,
		base:      sol.Concentrations,
	}
	r := &Result{Solution: sol, Elements: sys.elements}

	finish := func(conc map[SpeciesName]float64, f []float64, iter int) {
		sol.Concentrations = conc
		for i := range species {
			species[i].Concentration = conc[species[i].Name]
		}
		if ph, ok := PH(species, sol); ok {
			sol.PH = ph
		}
		r.Iterations = iter
		r.Residuals = f
		r.ResidualNorm = floats.Norm(f, 2)
		r.Converged = r.ResidualNorm < s.Tolerance
		if r.Converged {
			r.Reason = Converged
		} else {
			r.Reason = MaxIterations
		}
	}

	for iter := 0; iter < s.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		conc, f := sys.evaluate(x)
		if s.RefreshActivities {
			sol.Concentrations = conc
			ComputeActivities(species, sol, s.Params)
			conc, f = sys.evaluate(x)
		}
		norm := floats.Norm(f, 2)
		log.WithFields(logrus.Fields{
			"iteration": iter,
			"residual":  norm,
		}).Debug("aqeq: newton iteration")

		if norm < s.Tolerance {
			finish(conc, f, iter)
			log.WithFields(logrus.Fields{
				"iterations": iter,
				"residual":   norm,
			}).Info("aqeq: converged")
			return r, nil
		}

		dx, err := newtonStep(s.jacobian(sys, x, f), f)
		if err != nil {
			finish(conc, f, iter)
			r.Reason = Breakdown
			log.WithFields(logrus.Fields{
				"iteration": iter,
				"residual":  norm,
			}).WithError(err).Error("aqeq: solver breakdown")
			return r, fmt.Errorf("%w: iteration %d: %v", ErrSolverBreakdown, iter, err)
		}
		for j := range x {
			x[j] += dx[j]
			if x[j] < 0 {
				x[j] = ConcentrationFloor
			}
		}
	}

	conc, f := sys.evaluate(x)
	finish(conc, f, s.MaxIterations)
	if r.Converged {
		log.WithField("iterations", r.Iterations).Info("aqeq: converged")
	} else {
		log.WithFields(logrus.Fields{
			"iterations": r.Iterations,
			"residual":   r.ResidualNorm,
		}).Warn("aqeq: Newton-Raphson did not converge")
	}
	return r, nil
}

// jacobian estimates ∂fᵢ/∂xⱼ by forward differences. Each column is
// evaluated on its own copy of x, so columns can be calculated
// concurrently.
func (s *Solver) jacobian(sys *system, x, f []float64) *mat.Dense {
	J := mat.NewDense(len(f), len(x), nil)
	column := func(j int) {
		xp := make([]float64, len(x))
		copy(xp, x)
		delta := math.Max(s.PerturbationFraction*x[j], s.MinPerturbation)
		xp[j] += delta
		_, fp := sys.evaluate(xp)
		for i := range f {
			J.Set(i, j, (fp[i]-f[i])/delta)
		}
	}

	nprocs := s.Concurrency
	if nprocs < 2 {
		for j := range x {
			column(j)
		}
		return J
	}
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			for j := pp; j < len(x); j += nprocs {
				column(j)
			}
			wg.Done()
		}(pp)
	}
	wg.Wait()
	return J
}

// newtonStep solves J·Δx = −f. Square systems are solved by LU
// decomposition, over-determined ones in the least-squares sense by QR and
// under-determined ones by LQ.
func newtonStep(J *mat.Dense, f []float64) ([]float64, error) {
	rhs := make([]float64, len(f))
	for i, v := range f {
		rhs[i] = -v
	}
	var dx mat.VecDense
	if err := dx.SolveVec(J, mat.NewVecDense(len(rhs), rhs)); err != nil {
		return nil, err
	}
	o := make([]float64, dx.Len())
	for j := range o {
		o[j] = dx.AtVec(j)
		if math.IsNaN(o[j]) || math.IsInf(o[j], 0) {
			return nil, fmt.Errorf("non-finite step for unknown %d", j)
		}
	}
	return o, nil
}

func checkSpecies(species []AqueousSpecies) error {
	seen := make(map[SpeciesName]struct{}, len(species))
	for _, sp := range species {
		if _, ok := seen[sp.Name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateSpecies, sp.Name)
		}
		seen[sp.Name] = struct{}{}
	}
	return nil
}

func (s *Solver) logger() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}
