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

// Package thermodb reads and writes thermodynamic databases of aqueous
// species, solid phases and binary interaction parameters.
//
// Text tables hold one record per line with whitespace-separated fields.
// Lines that are empty or start with '#' are skipped.
//
//	species:  name charge logK n component₁ coeff₁ ... componentₙ coeffₙ
//	solids:   name logKsp n ion₁ coeff₁ ... ionₙ coeffₙ
//	pitzer:   ion₁ ion₂ β0 β1 Cφ
//
// A complete database can also be stored as a single YAML file.
package thermodb

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spatialmodel/aqeq"
)

// Database holds thermodynamic reference data.
type Database struct {
	Species []aqeq.AqueousSpecies
	Solids  []aqeq.SolidPhase
	Pitzer  []aqeq.PitzerPair
}

// MarkPrimary flags the named species as primary and all others as
// derived. It returns an error if a name is not in the database.
func (db *Database) MarkPrimary(names ...aqeq.SpeciesName) error {
	want := make(map[aqeq.SpeciesName]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	for i := range db.Species {
		sp := &db.Species[i]
		sp.Primary = want[sp.Name]
		delete(want, sp.Name)
	}
	for _, n := range names {
		if want[n] {
			return fmt.Errorf("thermodb: primary species %s is not in the database", n)
		}
	}
	return nil
}

// Load reads a database file. Files with a .yaml or .yml extension hold a
// complete database; any other file is read as a species table.
func Load(path string) (*Database, error) {
	f, err := os.Open(os.ExpandEnv(path))
	if err != nil {
		return nil, fmt.Errorf("thermodb: %v", err)
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		db, err := ReadYAML(f)
		if err != nil {
			return nil, fmt.Errorf("%v (file %s)", err, path)
		}
		return db, nil
	default:
		s, err := ReadSpecies(f)
		if err != nil {
			return nil, fmt.Errorf("%v (file %s)", err, path)
		}
		return &Database{Species: s}, nil
	}
}

// LoadSolids reads a solid-phase table from path.
func LoadSolids(path string) ([]aqeq.SolidPhase, error) {
	f, err := os.Open(os.ExpandEnv(path))
	if err != nil {
		return nil, fmt.Errorf("thermodb: %v", err)
	}
	defer f.Close()
	s, err := ReadSolids(f)
	if err != nil {
		return nil, fmt.Errorf("%v (file %s)", err, path)
	}
	return s, nil
}

// LoadPitzer reads an interaction parameter table from path.
func LoadPitzer(path string) ([]aqeq.PitzerPair, error) {
	f, err := os.Open(os.ExpandEnv(path))
	if err != nil {
		return nil, fmt.Errorf("thermodb: %v", err)
	}
	defer f.Close()
	p, err := ReadPitzer(f)
	if err != nil {
		return nil, fmt.Errorf("%v (file %s)", err, path)
	}
	return p, nil
}

// scanRecords calls f with the fields of every record line in r.
func scanRecords(r io.Reader, f func(fields []string) error) error {
	s := bufio.NewScanner(r)
	line := 0
	for s.Scan() {
		line++
		text := s.Text()
		if strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		if err := f(fields); err != nil {
			return fmt.Errorf("thermodb: line %d: %v", line, err)
		}
	}
	if err := s.Err(); err != nil {
		return fmt.Errorf("thermodb: line %d: %v", line+1, err)
	}
	return nil
}

// components parses the "n name coeff ..." tail of a record.
func components(fields []string) ([]string, []int, error) {
	if len(fields) == 0 {
		return nil, nil, fmt.Errorf("missing component count")
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 0 {
		return nil, nil, fmt.Errorf("invalid component count %q", fields[0])
	}
	if len(fields) != 1+2*n {
		return nil, nil, fmt.Errorf("%d components need %d fields, have %d", n, 2*n, len(fields)-1)
	}
	names := make([]string, n)
	coeffs := make([]int, n)
	for i := 0; i < n; i++ {
		names[i] = fields[1+2*i]
		coeffs[i], err = strconv.Atoi(fields[2+2*i])
		if err != nil {
			return nil, nil, fmt.Errorf("invalid coefficient %q for %s", fields[2+2*i], names[i])
		}
	}
	return names, coeffs, nil
}

func parseFloats(fields []string, names ...string) ([]float64, error) {
	o := make([]float64, len(names))
	for i, n := range names {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", n, fields[i])
		}
		o[i] = v
	}
	return o, nil
}

// ReadSpecies reads a species table. Repeated components within a record
// have their coefficients summed. All species are read as derived; use
// MarkPrimary to select the primary species.
func ReadSpecies(r io.Reader) ([]aqeq.AqueousSpecies, error) {
	var o []aqeq.AqueousSpecies
	err := scanRecords(r, func(f []string) error {
		if len(f) < 4 {
			return fmt.Errorf("species record needs at least 4 fields, have %d", len(f))
		}
		v, err := parseFloats(f[1:3], "charge", "logK")
		if err != nil {
			return err
		}
		names, coeffs, err := components(f[3:])
		if err != nil {
			return fmt.Errorf("species %s: %v", f[0], err)
		}
		stoich := make(map[aqeq.Component]int, len(names))
		for i, n := range names {
			stoich[aqeq.Component(n)] += coeffs[i]
		}
		o = append(o, aqeq.NewAqueousSpecies(aqeq.SpeciesName(f[0]), v[0], v[1], stoich))
		return nil
	})
	return o, err
}

// ReadSolids reads a solid-phase table.
func ReadSolids(r io.Reader) ([]aqeq.SolidPhase, error) {
	var o []aqeq.SolidPhase
	err := scanRecords(r, func(f []string) error {
		if len(f) < 3 {
			return fmt.Errorf("solid record needs at least 3 fields, have %d", len(f))
		}
		v, err := parseFloats(f[1:2], "logKsp")
		if err != nil {
			return err
		}
		names, coeffs, err := components(f[2:])
		if err != nil {
			return fmt.Errorf("solid %s: %v", f[0], err)
		}
		s := aqeq.SolidPhase{
			Name:          f[0],
			LogKsp:        v[0],
			Stoichiometry: make(map[aqeq.SpeciesName]int, len(names)),
		}
		for i, n := range names {
			s.Stoichiometry[aqeq.SpeciesName(n)] += coeffs[i]
		}
		o = append(o, s)
		return nil
	})
	return o, err
}

// ReadPitzer reads an interaction parameter table.
func ReadPitzer(r io.Reader) ([]aqeq.PitzerPair, error) {
	var o []aqeq.PitzerPair
	err := scanRecords(r, func(f []string) error {
		if len(f) != 5 {
			return fmt.Errorf("interaction record needs 5 fields, have %d", len(f))
		}
		v, err := parseFloats(f[2:], "beta0", "beta1", "Cphi")
		if err != nil {
			return err
		}
		o = append(o, aqeq.PitzerPair{
			Ion1:  aqeq.SpeciesName(f[0]),
			Ion2:  aqeq.SpeciesName(f[1]),
			Beta0: v[0],
			Beta1: v[1],
			Cphi:  v[2],
		})
		return nil
	})
	return o, err
}
