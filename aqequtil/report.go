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
	"fmt"
	"io"
	"math"
	"sort"
	"text/tabwriter"

	"github.com/spatialmodel/aqeq"
	"github.com/spatialmodel/aqeq/internal/store"
	"github.com/tealeg/xlsx"
)

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
}

// WriteReport writes a text report of the results of a speciation run.
func WriteReport(w io.Writer, s *aqeq.System, outputs map[string]float64) error {
	tw := newTabWriter(w)
	if r := s.Result; r != nil {
		fmt.Fprintf(tw, "Converged:\t%v (%s after %d iterations; residual norm %.3g)\n",
			r.Converged, r.Reason, r.Iterations, r.ResidualNorm)
	}
	fmt.Fprintf(tw, "Ionic strength:\t%.4g mol/L\n", s.Solution.IonicStrength)
	if _, ok := s.Solution.Concentrations[aqeq.HydrogenIon]; ok {
		fmt.Fprintf(tw, "pH:\t%.3f\n", s.Solution.PH)
	}

	fmt.Fprintln(tw, "\nSpecies\tType\tConcentration [mol/L]\tγ\tActivity")
	act := aqeq.Activities(s.Species, s.Solution)
	for _, sp := range s.Species {
		typ := "derived"
		if sp.Primary {
			typ = "primary"
		}
		fmt.Fprintf(tw, "%s\t%s\t%.6e\t%.4f\t%.6e\n", sp.Name, typ,
			s.Solution.Concentrations[sp.Name], sp.ActivityCoefficient, act[sp.Name])
	}

	if r := s.Result; r != nil && len(r.Residuals) > 0 {
		fmt.Fprintln(tw, "\nBalance\tTotal [mol/L]\tResidual")
		for i, e := range r.Elements {
			fmt.Fprintf(tw, "%s\t%.6e\t%.3e\n", e, s.Totals.Total(e), r.Residuals[i])
		}
		fmt.Fprintf(tw, "charge\t\t%.3e\n", r.Residuals[len(r.Residuals)-1])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(s.Phases) > 0 {
		fmt.Fprintln(w)
		if err := WritePhases(w, s.Phases); err != nil {
			return err
		}
	}

	if len(outputs) > 0 {
		tw = newTabWriter(w)
		fmt.Fprintln(tw, "\nOutput\tValue")
		for _, k := range sortedKeys(outputs) {
			fmt.Fprintf(tw, "%s\t%.6g\n", k, outputs[k])
		}
		return tw.Flush()
	}
	return nil
}

// WritePhases writes the saturation state of solid phases.
func WritePhases(w io.Writer, phases []aqeq.PhaseResult) error {
	tw := newTabWriter(w)
	fmt.Fprintln(tw, "Solid\tSI\tState")
	for _, p := range phases {
		fmt.Fprintf(tw, "%s\t%.4f\t%s\n", p.Solid, p.SI, p.State)
	}
	return tw.Flush()
}

// WriteRuns writes a list of archived runs.
func WriteRuns(w io.Writer, runs []*store.Run) error {
	tw := newTabWriter(w)
	fmt.Fprintln(tw, "Key\tLabel\tConverged\tIterations\tIonic strength [mol/L]\tCreated")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%v\t%d\t%.4g\t%s\n", r.Key, r.Label, r.Converged,
			r.Iterations, r.IonicStrength, r.Created.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func sortedKeys(m map[string]float64) []string {
	o := make([]string, 0, len(m))
	for k := range m {
		o = append(o, k)
	}
	sort.Strings(o)
	return o
}

// setFloat writes v to c as a number, or as text if it is not finite.
func setFloat(c *xlsx.Cell, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		c.SetString(fmt.Sprint(v))
		return
	}
	c.SetFloat(v)
}

func addRow(sh *xlsx.Sheet, label string, values ...float64) {
	row := sh.AddRow()
	row.AddCell().SetString(label)
	for _, v := range values {
		setFloat(row.AddCell(), v)
	}
}

func addHeader(sh *xlsx.Sheet, first string, labels []string) {
	row := sh.AddRow()
	row.AddCell().SetString(first)
	for _, l := range labels {
		row.AddCell().SetString(l)
	}
}

// WriteXLSX writes the results of one or more speciation runs to a
// spreadsheet at path, with one column per run. outputs may be nil.
func WriteXLSX(path string, labels []string, systems []*aqeq.System, outputs []map[string]float64) error {
	cols := make([]string, len(systems))
	for i := range systems {
		if i < len(labels) && labels[i] != "" {
			cols[i] = labels[i]
		} else {
			cols[i] = fmt.Sprintf("run %d", i+1)
		}
	}
	f := xlsx.NewFile()

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return fmt.Errorf("aqeq: writing spreadsheet: %v", err)
	}
	addHeader(summary, "", cols)
	converged := summary.AddRow()
	converged.AddCell().SetString("Converged")
	for _, s := range systems {
		converged.AddCell().SetBool(s.Result != nil && s.Result.Converged)
	}
	iter := make([]float64, len(systems))
	norm := make([]float64, len(systems))
	I := make([]float64, len(systems))
	for i, s := range systems {
		if s.Result != nil {
			iter[i] = float64(s.Result.Iterations)
			norm[i] = s.Result.ResidualNorm
		}
		I[i] = s.Solution.IonicStrength
	}
	addRow(summary, "Iterations", iter...)
	addRow(summary, "Residual norm", norm...)
	addRow(summary, "Ionic strength [mol/L]", I...)

	species, err := f.AddSheet("Concentrations")
	if err != nil {
		return fmt.Errorf("aqeq: writing spreadsheet: %v", err)
	}
	addHeader(species, "Species [mol/L]", cols)
	names := make(map[aqeq.SpeciesName]struct{})
	for _, s := range systems {
		for _, n := range s.Solution.Names() {
			names[n] = struct{}{}
		}
	}
	sortedNames := make([]string, 0, len(names))
	for n := range names {
		sortedNames = append(sortedNames, string(n))
	}
	sort.Strings(sortedNames)
	for _, n := range sortedNames {
		v := make([]float64, len(systems))
		for i, s := range systems {
			v[i] = s.Solution.Concentrations[aqeq.SpeciesName(n)]
		}
		addRow(species, n, v...)
	}

	if len(systems) > 0 && len(systems[0].Phases) > 0 {
		phases, err := f.AddSheet("Saturation indices")
		if err != nil {
			return fmt.Errorf("aqeq: writing spreadsheet: %v", err)
		}
		addHeader(phases, "Solid", cols)
		for j, p := range systems[0].Phases {
			v := make([]float64, len(systems))
			for i, s := range systems {
				v[i] = s.Phases[j].SI
			}
			addRow(phases, p.Solid, v...)
		}
	}

	if len(outputs) > 0 && len(outputs[0]) > 0 {
		out, err := f.AddSheet("Outputs")
		if err != nil {
			return fmt.Errorf("aqeq: writing spreadsheet: %v", err)
		}
		addHeader(out, "Output", cols)
		for _, k := range sortedKeys(outputs[0]) {
			v := make([]float64, len(outputs))
			for i, o := range outputs {
				v[i] = o[k]
			}
			addRow(out, k, v...)
		}
	}

	if err := f.Save(path); err != nil {
		return fmt.Errorf("aqeq: writing spreadsheet: %v", err)
	}
	return nil
}
