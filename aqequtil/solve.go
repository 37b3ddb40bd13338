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

// Package aqequtil contains the aqeq command-line interface and functions
// for running speciation calculations from configuration files.
package aqequtil

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/aqeq"
	"github.com/spatialmodel/aqeq/internal/store"
	"github.com/spatialmodel/aqeq/thermodb"
)

// Problem defines a speciation calculation.
type Problem struct {
	DB *thermodb.Database

	// Primary lists the primary species. If it is empty, the primary
	// flags in DB are used.
	Primary []aqeq.SpeciesName

	Totals       aqeq.TotalInput
	InitialGuess map[aqeq.SpeciesName]float64

	// Ideal specifies whether saturation indices are calculated from
	// concentrations rather than activities.
	Ideal bool
}

// NewSystem returns a System for p that holds its own copies of the
// species, the totals, the initial solution and solver, so that systems
// created from the same problem can be solved concurrently.
func (p *Problem) NewSystem(solver *aqeq.Solver) (*aqeq.System, error) {
	db := &thermodb.Database{
		Species: aqeq.CopySpecies(p.DB.Species),
		Solids:  p.DB.Solids,
		Pitzer:  p.DB.Pitzer,
	}
	if len(p.Primary) > 0 {
		if err := db.MarkPrimary(p.Primary...); err != nil {
			return nil, err
		}
	}
	sol := aqeq.NewSolution()
	for n, c := range p.InitialGuess {
		sol.Concentrations[n] = c
	}
	totals := make(aqeq.TotalInput, len(p.Totals))
	for e, v := range p.Totals {
		totals[e] = v
	}
	sv := *solver
	return &aqeq.System{
		Species:  db.Species,
		Solids:   db.Solids,
		Params:   db.Pitzer,
		Totals:   totals,
		Solution: sol,
		Solver:   &sv,
		Ideal:    p.Ideal,
	}, nil
}

// Solve solves problem p and writes a report to w.
//
// OutputVariables specifies derived quantities to calculate from the
// results; see aqeq.NewOutputter for the syntax.
//
// OutputFile is the path to an optional spreadsheet to write the results
// to. If it is empty, no spreadsheet is written.
//
// ArchiveFile is the path to an optional SQLite run archive, where the
// results are stored under label.
//
// Failure to converge is reported but is not an error. If the solver
// breaks down, the report for the last iterate is written before the
// error is returned.
func Solve(ctx context.Context, w io.Writer, p *Problem, solver *aqeq.Solver, OutputVariables map[string]string,
	OutputFile, ArchiveFile, label string) error {

	s, err := p.NewSystem(solver)
	if err != nil {
		return err
	}
	o, err := aqeq.NewOutputter(OutputVariables, nil)
	if err != nil {
		return err
	}
	if err := aqeq.Speciate(ctx, s); err != nil {
		if s.Result == nil {
			return err
		}
		// The last iterate and its saturation indices are still reported.
		if werr := WriteReport(w, s, nil); werr != nil {
			return werr
		}
		return err
	}
	outputs, err := o.Evaluate(s)
	if err != nil {
		return err
	}
	if err := WriteReport(w, s, outputs); err != nil {
		return err
	}
	if OutputFile != "" {
		if err := WriteXLSX(OutputFile, []string{label}, []*aqeq.System{s}, []map[string]float64{outputs}); err != nil {
			return err
		}
	}
	if ArchiveFile != "" {
		if err := archive(ctx, ArchiveFile, []string{label}, []*aqeq.System{s}, []map[string]float64{outputs}); err != nil {
			return err
		}
	}
	return nil
}

// archive stores the results of systems in the run archive at path.
func archive(ctx context.Context, path string, labels []string, systems []*aqeq.System, outputs []map[string]float64) error {
	a, err := store.Open(path)
	if err != nil {
		return err
	}
	defer a.Close()
	for i, s := range systems {
		r := store.NewRun(labels[i], s, outputs[i])
		if err := a.SaveRun(ctx, r); err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"key":   r.Key,
			"label": r.Label,
		}).Info("aqeq: archived run")
	}
	return nil
}

// Phases writes the saturation state of the solids in db for the free
// concentrations conc to w and, if OutputFile is not empty, to a
// spreadsheet.
func Phases(w io.Writer, db *thermodb.Database, conc map[string]float64, ideal bool, OutputFile string) error {
	if len(db.Solids) == 0 {
		return fmt.Errorf("aqeq: there are no solids in the database")
	}
	sol := aqeq.NewSolution()
	for n, c := range conc {
		sol.Concentrations[aqeq.SpeciesName(n)] = c
	}
	s := &aqeq.System{
		Species:  aqeq.CopySpecies(db.Species),
		Solids:   db.Solids,
		Params:   db.Pitzer,
		Solution: sol,
		Ideal:    ideal,
	}
	stages := []aqeq.Stage{aqeq.CheckPhases()}
	if !ideal {
		stages = append([]aqeq.Stage{aqeq.UpdateActivities()}, stages...)
	}
	if err := s.Run(stages...); err != nil {
		return err
	}
	if err := WritePhases(w, s.Phases); err != nil {
		return err
	}
	if OutputFile != "" {
		return WriteXLSX(OutputFile, []string{"phases"}, []*aqeq.System{s}, nil)
	}
	return nil
}
