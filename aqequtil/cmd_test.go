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
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spatialmodel/aqeq"
	"github.com/spatialmodel/aqeq/internal/store"
	"github.com/spatialmodel/aqeq/thermodb"
)

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) string {
	t.Helper()
	var b bytes.Buffer
	Root.SetOut(&b)
	Root.SetArgs(args)
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	return b.String()
}

func TestVersion(t *testing.T) {
	out := execute(t, "version")
	if want := "aqeq v" + aqeq.Version + "\n"; out != want {
		t.Errorf("want %q, have %q", want, out)
	}
}

func TestSolveCommand(t *testing.T) {
	dir := t.TempDir()
	Cfg.Set("config", "testdata/config.toml")
	Cfg.Set("OutputFile", filepath.Join(dir, "out.xlsx"))
	Cfg.Set("ArchiveFile", filepath.Join(dir, "runs.db"))
	Cfg.Set("Label", "reference")
	defer func() {
		Cfg.Set("OutputFile", "")
		Cfg.Set("ArchiveFile", "")
	}()

	out := execute(t, "solve")
	for _, s := range []string{"Converged:", "true", "UO2F+", "Fluorite", "-Inf", "undersaturated", "complexed"} {
		if !strings.Contains(out, s) {
			t.Errorf("output does not contain %q:\n%s", s, out)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "out.xlsx")); err != nil {
		t.Error(err)
	}

	a, err := store.Open(filepath.Join(dir, "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	runs, err := a.ListRuns(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Label != "reference" || !runs[0].Converged {
		t.Fatalf("runs: %+v", runs)
	}
	if _, ok := runs[0].Outputs["complexed"]; !ok {
		t.Errorf("outputs: %v", runs[0].Outputs)
	}

	out = execute(t, "runs")
	if !strings.Contains(out, runs[0].Key) {
		t.Errorf("runs output does not contain the run key:\n%s", out)
	}
}

// restoreProblemConfig resets the problem settings to those in
// testdata/config.toml.
func restoreProblemConfig() {
	Cfg.Set("SpeciesDatabase", "testdata/uranyl.txt")
	Cfg.Set("SolidsDatabase", "../thermodb/testdata/solids.txt")
	Cfg.Set("PitzerParameters", "../thermodb/testdata/pitzer_params.txt")
	Cfg.Set("PrimarySpecies", []string{"UO2++", "F-"})
	Cfg.Set("Totals", []string{"U=1e-3", "F=2e-3"})
	Cfg.Set("InitialGuess", []string{"UO2++=5e-4", "F-=1e-3"})
}

func TestSolveCommandBreakdown(t *testing.T) {
	Cfg.Set("config", "testdata/config.toml")
	Cfg.Set("SpeciesDatabase", "testdata/singular.txt")
	Cfg.Set("SolidsDatabase", "testdata/singular_solids.txt")
	Cfg.Set("PitzerParameters", "")
	Cfg.Set("PrimarySpecies", []string{"X", "Y"})
	Cfg.Set("Totals", []string{"Z=1e-3"})
	Cfg.Set("InitialGuess", []string{})
	Cfg.Set("OutputVariables", map[string]string{})
	defer func() {
		restoreProblemConfig()
		Cfg.Set("OutputVariables", map[string]string{
			"pF":        "-log10([{F-}])",
			"complexed": "[UO2F+] / ([UO2++] + [UO2F+])",
		})
	}()

	var b bytes.Buffer
	Root.SetOut(&b)
	Root.SetErr(&bytes.Buffer{})
	Root.SetArgs([]string{"solve"})
	err := Root.Execute()
	if !errors.Is(err, aqeq.ErrSolverBreakdown) {
		t.Errorf("want ErrSolverBreakdown, have %v", err)
	}
	out := b.String()
	for _, s := range []string{"solver breakdown", "Solid", "XY(s)", "undersaturated"} {
		if !strings.Contains(out, s) {
			t.Errorf("output does not contain %q:\n%s", s, out)
		}
	}
}

func TestRunBatchBreakdown(t *testing.T) {
	db, err := thermodb.Load("testdata/singular.txt")
	if err != nil {
		t.Fatal(err)
	}
	db.Solids, err = thermodb.LoadSolids("testdata/singular_solids.txt")
	if err != nil {
		t.Fatal(err)
	}
	p := &Problem{
		DB:      db,
		Primary: []aqeq.SpeciesName{"X", "Y"},
		Totals:  aqeq.TotalInput{"Z": 1e-3},
	}
	sc := []Scenario{{Label: "first"}, {Label: "second"}}

	r := Batch(context.Background(), p, aqeq.NewSolver(), sc, 2)
	for _, res := range r {
		if !errors.Is(res.Err, aqeq.ErrSolverBreakdown) {
			t.Errorf("%s: want ErrSolverBreakdown, have %v", res.Label, res.Err)
		}
		if res.System == nil || len(res.System.Phases) != 1 {
			t.Errorf("%s: saturation indices missing", res.Label)
		}
	}

	var b bytes.Buffer
	err = RunBatch(context.Background(), &b, p, aqeq.NewSolver(), sc, 2, nil, "", "")
	if err == nil {
		t.Error("expected an error")
	}
	if n := strings.Count(b.String(), "XY(s)"); n != 2 {
		t.Errorf("want 2 phase tables, have %d:\n%s", n, b.String())
	}
}

func TestBatchCommand(t *testing.T) {
	Cfg.Set("config", "testdata/config.toml")
	out := execute(t, "batch")
	for _, s := range []string{"=== reference\n", "=== reference again\n", "=== dilute\n", "=== ideal\n"} {
		if !strings.Contains(out, s) {
			t.Errorf("output does not contain %q", s)
		}
	}
	if strings.Contains(out, "error:") {
		t.Errorf("batch reported an error:\n%s", out)
	}
}

func TestPhasesCommand(t *testing.T) {
	Cfg.Set("config", "testdata/config.toml")
	Cfg.Set("Concentrations", []string{"UO2++=1e-2", "F-=1e-1", "Ca++=1e-3"})
	out := execute(t, "phases")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("want 3 lines, have:\n%s", out)
	}
	// log10(1e-2 · (1e-1)²) - (-4) = 0 before activity corrections.
	if !strings.Contains(lines[1], "UO2F2(s)") || !strings.Contains(lines[1], "undersaturated") {
		t.Errorf("UO2F2(s): %s", lines[1])
	}
	if !strings.Contains(lines[2], "Fluorite") || !strings.Contains(lines[2], "supersaturated") {
		t.Errorf("Fluorite: %s", lines[2])
	}
}

func TestConvertCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.yaml")
	Cfg.Set("config", "testdata/config.toml")
	Cfg.Set("Convert.OutputFile", path)
	execute(t, "convert")

	db, err := thermodb.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(db.Species) != 3 || len(db.Solids) != 2 || len(db.Pitzer) != 2 {
		t.Errorf("database: %+v", db)
	}
	p := aqeq.PrimaryNames(db.Species)
	if len(p) != 2 || p[0] != "UO2++" || p[1] != "F-" {
		t.Errorf("primary species: %v", p)
	}
}
