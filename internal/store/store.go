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

// Package store archives the results of speciation runs in a SQLite
// database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/spatialmodel/aqeq"
	"github.com/spatialmodel/aqeq/internal/hash"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run is not in the archive.
var ErrNotFound = errors.New("store: run not found")

// Run is the archived result of one speciation run.
type Run struct {
	// Key identifies the problem that was solved.
	Key   string
	Label string

	Converged     bool
	Iterations    int
	ResidualNorm  float64
	IonicStrength float64
	PH            float64

	Concentrations map[aqeq.SpeciesName]float64
	Phases         []aqeq.PhaseResult

	// Outputs holds user-defined output variables.
	Outputs map[string]float64

	Created time.Time
}

// NewRun creates an archive record from a completed speciation run.
// The key is calculated from the species, solids, parameters and totals
// of s.
func NewRun(label string, s *aqeq.System, outputs map[string]float64) Run {
	r := Run{
		Key:     ProblemKey(s),
		Label:   label,
		Phases:  s.Phases,
		Outputs: outputs,
		Created: time.Now(),
	}
	if s.Result != nil {
		r.Converged = s.Result.Converged
		r.Iterations = s.Result.Iterations
		r.ResidualNorm = s.Result.ResidualNorm
	}
	if s.Solution != nil {
		r.Concentrations = s.Solution.Concentrations
		r.IonicStrength = s.Solution.IonicStrength
		r.PH = s.Solution.PH
	}
	return r
}

// ProblemKey returns a key that identifies the problem definition of s,
// independent of its solution.
func ProblemKey(s *aqeq.System) string {
	type problem struct {
		Species []aqeq.AqueousSpecies
		Solids  []aqeq.SolidPhase
		Params  []aqeq.PitzerPair
		Totals  aqeq.TotalInput
		Ideal   bool
	}
	species := aqeq.CopySpecies(s.Species)
	for i := range species {
		species[i].Concentration = 0
		species[i].ActivityCoefficient = 1
	}
	return hash.Hash(problem{
		Species: species,
		Solids:  s.Solids,
		Params:  s.Params,
		Totals:  s.Totals,
		Ideal:   s.Ideal,
	})
}

// Store is a run archive backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the archive at path. Use ":memory:" for a
// temporary archive.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Each connection to an in-memory database is a new database.
		db.SetMaxOpenConns(1)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		key TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		converged INTEGER NOT NULL,
		data JSON NOT NULL,
		created INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// number is a float64 that survives JSON encoding when it is not finite.
type number float64

func (n number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	switch {
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	case math.IsInf(f, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Inf"`), nil
	}
	return []byte(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

func (n *number) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*n = number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = number(f)
	return nil
}

type phaseData struct {
	Solid string
	SI    number
	State aqeq.PhaseStability
}

type runData struct {
	Iterations     int
	ResidualNorm   number
	IonicStrength  number
	PH             number
	Concentrations map[aqeq.SpeciesName]number
	Phases         []phaseData
	Outputs        map[string]number
}

func encode(r Run) ([]byte, error) {
	d := runData{
		Iterations:     r.Iterations,
		ResidualNorm:   number(r.ResidualNorm),
		IonicStrength:  number(r.IonicStrength),
		PH:             number(r.PH),
		Concentrations: make(map[aqeq.SpeciesName]number, len(r.Concentrations)),
		Outputs:        make(map[string]number, len(r.Outputs)),
	}
	for k, v := range r.Concentrations {
		d.Concentrations[k] = number(v)
	}
	for k, v := range r.Outputs {
		d.Outputs[k] = number(v)
	}
	for _, p := range r.Phases {
		d.Phases = append(d.Phases, phaseData{Solid: p.Solid, SI: number(p.SI), State: p.State})
	}
	return json.Marshal(d)
}

func decode(b []byte, r *Run) error {
	var d runData
	if err := json.Unmarshal(b, &d); err != nil {
		return err
	}
	r.Iterations = d.Iterations
	r.ResidualNorm = float64(d.ResidualNorm)
	r.IonicStrength = float64(d.IonicStrength)
	r.PH = float64(d.PH)
	r.Concentrations = make(map[aqeq.SpeciesName]float64, len(d.Concentrations))
	for k, v := range d.Concentrations {
		r.Concentrations[k] = float64(v)
	}
	r.Outputs = make(map[string]float64, len(d.Outputs))
	for k, v := range d.Outputs {
		r.Outputs[k] = float64(v)
	}
	r.Phases = nil
	for _, p := range d.Phases {
		r.Phases = append(r.Phases, aqeq.PhaseResult{Solid: p.Solid, SI: float64(p.SI), State: p.State})
	}
	return nil
}

// SaveRun stores r, replacing any run with the same key.
func (s *Store) SaveRun(ctx context.Context, r Run) error {
	data, err := encode(r)
	if err != nil {
		return fmt.Errorf("store: failed to marshal run: %w", err)
	}
	if r.Created.IsZero() {
		r.Created = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (key, label, converged, data, created)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			label = excluded.label,
			converged = excluded.converged,
			data = excluded.data,
			created = excluded.created
	`, r.Key, r.Label, r.Converged, data, r.Created.UnixNano())
	if err != nil {
		return fmt.Errorf("store: failed to save run %s: %w", r.Key, err)
	}
	return nil
}

// GetRun retrieves the run with the given key.
func (s *Store) GetRun(ctx context.Context, key string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, label, converged, data, created
		FROM runs WHERE key = ?
	`, key)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("store: failed to query run: %w", err)
	}
	return r, nil
}

// ListRuns returns all archived runs, oldest first.
func (s *Store) ListRuns(ctx context.Context) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, label, converged, data, created
		FROM runs ORDER BY created, key
	`)
	if err != nil {
		return nil, fmt.Errorf("store: failed to query runs: %w", err)
	}
	defer rows.Close()

	var o []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("store: failed to scan run: %w", err)
		}
		o = append(o, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: error iterating runs: %w", err)
	}
	return o, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r       Run
		data    []byte
		created int64
	)
	if err := row.Scan(&r.Key, &r.Label, &r.Converged, &data, &created); err != nil {
		return nil, err
	}
	if err := decode(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run data: %w", err)
	}
	r.Created = time.Unix(0, created)
	return &r, nil
}
