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
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/requestcache"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/aqeq"
	"github.com/spatialmodel/aqeq/internal/hash"
)

// Scenario is one problem in a batch. Nil fields are taken from the
// base problem.
type Scenario struct {
	Label        string
	Totals       map[string]float64
	InitialGuess map[string]float64
	Ideal        *bool
}

type scenarioFile struct {
	Scenario []Scenario
}

// ReadScenarios reads scenarios in TOML format, e.g.:
//
//	[[Scenario]]
//	Label = "low fluoride"
//	Totals = { U = 1e-3, F = 1e-4 }
//	InitialGuess = { "UO2++" = 5e-4, "F-" = 1e-4 }
func ReadScenarios(r io.Reader) ([]Scenario, error) {
	var f scenarioFile
	if _, err := toml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("aqeq: reading scenarios: %v", err)
	}
	if len(f.Scenario) == 0 {
		return nil, fmt.Errorf("aqeq: no scenarios found")
	}
	return f.Scenario, nil
}

// LoadScenarios reads scenarios from a TOML file.
func LoadScenarios(path string) ([]Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("aqeq: %v", err)
	}
	defer f.Close()
	return ReadScenarios(f)
}

// apply returns a copy of base modified by sc.
func (sc Scenario) apply(base *Problem) *Problem {
	p := *base
	if sc.Totals != nil {
		p.Totals = totalsMap(sc.Totals)
	}
	if sc.InitialGuess != nil {
		p.InitialGuess = speciesMap(sc.InitialGuess)
	}
	if sc.Ideal != nil {
		p.Ideal = *sc.Ideal
	}
	return &p
}

// key identifies the problem that sc defines, independent of its label.
func (sc Scenario) key(base *Problem) string {
	p := sc.apply(base)
	return hash.Hash(struct {
		Totals       aqeq.TotalInput
		InitialGuess map[aqeq.SpeciesName]float64
		Ideal        bool
	}{p.Totals, p.InitialGuess, p.Ideal})
}

// BatchResult holds the outcome of one scenario. If the solver broke
// down, both Err and System are set, and System holds the last iterate
// and its saturation indices.
type BatchResult struct {
	Label  string
	System *aqeq.System
	Err    error
}

type outcome struct {
	system *aqeq.System
	err    error
}

// Batch solves each scenario, with up to nprocs scenarios solved in
// parallel. Each scenario is solved on its own copy of the species and
// solution. Scenarios that define the same problem are solved once and
// share the resulting System, which must not be modified.
// The results are in the same order as scenarios.
func Batch(ctx context.Context, base *Problem, solver *aqeq.Solver, scenarios []Scenario, nprocs int) []BatchResult {
	if nprocs < 1 {
		nprocs = 1
	}
	// Failures are carried in the result rather than returned to the
	// cache, so that duplicate requests waiting on a failed one are
	// released too.
	cache := requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
		s, err := request.(*Problem).NewSystem(solver)
		if err != nil {
			return &outcome{err: err}, nil
		}
		err = aqeq.Speciate(ctx, s)
		return &outcome{system: s, err: err}, nil
	}, nprocs, requestcache.Deduplicate(), requestcache.Memory(len(scenarios)))

	results := make([]BatchResult, len(scenarios))
	var wg sync.WaitGroup
	wg.Add(len(scenarios))
	for i, sc := range scenarios {
		go func(i int, sc Scenario) {
			defer wg.Done()
			label := sc.Label
			if label == "" {
				label = fmt.Sprintf("scenario %d", i+1)
			}
			req := cache.NewRequest(ctx, sc.apply(base), sc.key(base))
			results[i] = BatchResult{Label: label}
			res, err := req.Result()
			if err != nil {
				results[i].Err = err
			} else {
				o := res.(*outcome)
				results[i].System, results[i].Err = o.system, o.err
			}
			logger := logrus.WithField("scenario", label)
			switch {
			case results[i].Err != nil:
				logger.WithError(results[i].Err).Error("aqeq: scenario failed")
			case !results[i].System.Result.Converged:
				logger.Warn("aqeq: scenario did not converge")
			default:
				logger.Debug("aqeq: scenario finished")
			}
		}(i, sc)
	}
	wg.Wait()
	return results
}

// RunBatch solves scenarios and writes a report for each to w. It
// returns an error if any scenario failed.
//
// OutputVariables, OutputFile and ArchiveFile are as for Solve; the
// spreadsheet has one column per scenario.
func RunBatch(ctx context.Context, w io.Writer, base *Problem, solver *aqeq.Solver, scenarios []Scenario, nprocs int,
	OutputVariables map[string]string, OutputFile, ArchiveFile string) error {

	o, err := aqeq.NewOutputter(OutputVariables, nil)
	if err != nil {
		return err
	}
	results := Batch(ctx, base, solver, scenarios, nprocs)

	var (
		labels  []string
		systems []*aqeq.System
		outputs []map[string]float64
		failed  int
	)
	for _, r := range results {
		fmt.Fprintf(w, "=== %s\n", r.Label)
		if r.Err != nil {
			fmt.Fprintf(w, "error: %v\n", r.Err)
			failed++
			if r.System != nil && r.System.Result != nil {
				if err := WriteReport(w, r.System, nil); err != nil {
					return err
				}
			}
			fmt.Fprintln(w)
			continue
		}
		out, err := o.Evaluate(r.System)
		if err != nil {
			return err
		}
		if err := WriteReport(w, r.System, out); err != nil {
			return err
		}
		fmt.Fprintln(w)
		labels = append(labels, r.Label)
		systems = append(systems, r.System)
		outputs = append(outputs, out)
	}

	if OutputFile != "" && len(systems) > 0 {
		if err := WriteXLSX(OutputFile, labels, systems, outputs); err != nil {
			return err
		}
	}
	if ArchiveFile != "" && len(systems) > 0 {
		if err := archive(ctx, ArchiveFile, labels, systems, outputs); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("aqeq: %d of %d scenarios failed", failed, len(scenarios))
	}
	return nil
}
