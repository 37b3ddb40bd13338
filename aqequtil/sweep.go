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
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/aqeq"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// SweepPoint is the result at one total concentration in a sweep.
// Err is set if the solver broke down at this point; System then holds
// the last iterate and its saturation indices.
type SweepPoint struct {
	Total  float64
	System *aqeq.System
	Err    error
}

// Sweep solves p at n total concentrations of component e spaced evenly
// on a log scale between min and max. Each solve starts from the
// composition calculated in the previous one. Points that do not converge
// or where the solver breaks down are kept and logged; the point after a
// breakdown starts from the initial guess.
func Sweep(ctx context.Context, p *Problem, solver *aqeq.Solver, e aqeq.ElementLabel, min, max float64, n int) ([]SweepPoint, error) {
	if !(min > 0) || !(max > min) {
		return nil, fmt.Errorf("aqeq: sweep range must satisfy 0 < min < max, but is [%g, %g]", min, max)
	}
	if n < 2 {
		return nil, fmt.Errorf("aqeq: sweep needs at least 2 steps, but has %d", n)
	}
	totals := floats.LogSpan(make([]float64, n), min, max)

	var prev *aqeq.Solution
	o := make([]SweepPoint, n)
	for i, t := range totals {
		s, err := p.NewSystem(solver)
		if err != nil {
			return nil, err
		}
		s.Totals[e] = t
		if prev != nil {
			s.Solution = prev.Copy()
		}
		err = aqeq.Speciate(ctx, s)
		switch {
		case errors.Is(err, aqeq.ErrSolverBreakdown):
			logrus.WithFields(logrus.Fields{
				"component": e,
				"total":     t,
			}).WithError(err).Error("aqeq: sweep point failed")
			o[i] = SweepPoint{Total: t, System: s, Err: err}
			prev = nil
			continue
		case err != nil:
			return nil, fmt.Errorf("aqeq: sweep at %s = %g: %w", e, t, err)
		}
		if !s.Result.Converged {
			logrus.WithFields(logrus.Fields{
				"component": e,
				"total":     t,
			}).Warn("aqeq: sweep point did not converge")
		}
		prev = s.Solution
		o[i] = SweepPoint{Total: t, System: s}
	}
	return o, nil
}

// sweepSpecies returns the sorted names of all species in points.
func sweepSpecies(points []SweepPoint) []aqeq.SpeciesName {
	names := make(map[aqeq.SpeciesName]struct{})
	for _, pt := range points {
		for _, sp := range pt.System.Species {
			names[sp.Name] = struct{}{}
		}
	}
	o := make([]aqeq.SpeciesName, 0, len(names))
	for n := range names {
		o = append(o, n)
	}
	sort.Slice(o, func(i, j int) bool { return o[i] < o[j] })
	return o
}

// WriteSweepTable writes the species concentrations at each point of a
// sweep of component e.
func WriteSweepTable(w io.Writer, e aqeq.ElementLabel, points []SweepPoint) error {
	names := sweepSpecies(points)
	tw := newTabWriter(w)
	fmt.Fprintf(tw, "Total %s [mol/L]", e)
	for _, n := range names {
		fmt.Fprintf(tw, "\t%s", n)
	}
	fmt.Fprintln(tw, "\tConverged")
	for _, pt := range points {
		fmt.Fprintf(tw, "%.4e", pt.Total)
		for _, n := range names {
			fmt.Fprintf(tw, "\t%.4e", pt.System.Solution.Concentrations[n])
		}
		fmt.Fprintf(tw, "\t%v\n", pt.System.Result.Converged)
	}
	return tw.Flush()
}

// PlotSweep saves a speciation diagram of the sweep of component e to
// path, showing log10 of each species concentration against log10 of the
// total.
func PlotSweep(path string, e aqeq.ElementLabel, points []SweepPoint) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Speciation as a function of total %s", e)
	p.X.Label.Text = fmt.Sprintf("log10 total %s [mol/L]", e)
	p.Y.Label.Text = "log10 concentration [mol/L]"

	var lines []interface{}
	for _, n := range sweepSpecies(points) {
		xy := make(plotter.XYs, 0, len(points))
		for _, pt := range points {
			c := pt.System.Solution.Concentrations[n]
			if !(c > 0) {
				continue
			}
			xy = append(xy, plotter.XY{X: math.Log10(pt.Total), Y: math.Log10(c)})
		}
		if len(xy) > 0 {
			lines = append(lines, string(n), xy)
		}
	}
	if err := plotutil.AddLines(p, lines...); err != nil {
		return fmt.Errorf("aqeq: plotting sweep: %v", err)
	}
	p.Legend.Top = true
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("aqeq: saving sweep plot: %v", err)
	}
	return nil
}

// RunSweep runs a sweep and writes a table of the results to w.
// PlotFile and OutputFile are the paths to an optional diagram and
// spreadsheet.
func RunSweep(ctx context.Context, w io.Writer, p *Problem, solver *aqeq.Solver, e aqeq.ElementLabel, min, max float64, n int,
	PlotFile, OutputFile string) error {

	points, err := Sweep(ctx, p, solver, e, min, max, n)
	if err != nil {
		return err
	}
	if err := WriteSweepTable(w, e, points); err != nil {
		return err
	}
	var failed int
	for _, pt := range points {
		if pt.Err != nil {
			failed++
			fmt.Fprintf(w, "\n=== %s = %.4e\nerror: %v\n", e, pt.Total, pt.Err)
			if err := WritePhases(w, pt.System.Phases); err != nil {
				return err
			}
		}
	}
	if PlotFile != "" {
		if err := PlotSweep(PlotFile, e, points); err != nil {
			return err
		}
	}
	if OutputFile != "" {
		labels := make([]string, len(points))
		systems := make([]*aqeq.System, len(points))
		for i, pt := range points {
			labels[i] = fmt.Sprintf("%s=%.3g", e, pt.Total)
			systems[i] = pt.System
		}
		if err := WriteXLSX(OutputFile, labels, systems, nil); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("aqeq: the solver broke down at %d of %d sweep points", failed, len(points))
	}
	return nil
}
