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

package thermodb

import (
	"fmt"
	"io"
	"sort"

	"github.com/spatialmodel/aqeq"
	"gopkg.in/yaml.v3"
)

// databaseYAML is the YAML file structure.
type databaseYAML struct {
	Species []speciesYAML `yaml:"species"`
	Solids  []solidYAML   `yaml:"solids,omitempty"`
	Pitzer  []pitzerYAML  `yaml:"pitzer,omitempty"`
}

type speciesYAML struct {
	Name          string         `yaml:"name"`
	Charge        float64        `yaml:"charge"`
	LogK          float64        `yaml:"logK"`
	Stoichiometry map[string]int `yaml:"stoichiometry,omitempty"`
	Primary       bool           `yaml:"primary,omitempty"`
}

type solidYAML struct {
	Name          string         `yaml:"name"`
	LogKsp        float64        `yaml:"logKsp"`
	Stoichiometry map[string]int `yaml:"stoichiometry"`
}

type pitzerYAML struct {
	Ion1  string  `yaml:"ion1"`
	Ion2  string  `yaml:"ion2"`
	Beta0 float64 `yaml:"beta0"`
	Beta1 float64 `yaml:"beta1"`
	Cphi  float64 `yaml:"cphi"`
}

// ReadYAML reads a complete database in YAML format. Unknown fields are
// an error.
func ReadYAML(r io.Reader) (*Database, error) {
	var y databaseYAML
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&y); err != nil && err != io.EOF {
		return nil, fmt.Errorf("thermodb: parsing YAML: %w", err)
	}

	db := new(Database)
	for i, s := range y.Species {
		if s.Name == "" {
			return nil, fmt.Errorf("thermodb: species %d has no name", i+1)
		}
		stoich := make(map[aqeq.Component]int, len(s.Stoichiometry))
		for c, v := range s.Stoichiometry {
			stoich[aqeq.Component(c)] = v
		}
		sp := aqeq.NewAqueousSpecies(aqeq.SpeciesName(s.Name), s.Charge, s.LogK, stoich)
		sp.Primary = s.Primary
		db.Species = append(db.Species, sp)
	}
	for i, s := range y.Solids {
		if s.Name == "" {
			return nil, fmt.Errorf("thermodb: solid %d has no name", i+1)
		}
		solid := aqeq.SolidPhase{
			Name:          s.Name,
			LogKsp:        s.LogKsp,
			Stoichiometry: make(map[aqeq.SpeciesName]int, len(s.Stoichiometry)),
		}
		for ion, v := range s.Stoichiometry {
			solid.Stoichiometry[aqeq.SpeciesName(ion)] = v
		}
		db.Solids = append(db.Solids, solid)
	}
	for i, p := range y.Pitzer {
		if p.Ion1 == "" || p.Ion2 == "" {
			return nil, fmt.Errorf("thermodb: interaction parameter set %d needs two ions", i+1)
		}
		db.Pitzer = append(db.Pitzer, aqeq.PitzerPair{
			Ion1:  aqeq.SpeciesName(p.Ion1),
			Ion2:  aqeq.SpeciesName(p.Ion2),
			Beta0: p.Beta0,
			Beta1: p.Beta1,
			Cphi:  p.Cphi,
		})
	}
	return db, nil
}

// WriteYAML writes db to w in the format read by ReadYAML.
func WriteYAML(w io.Writer, db *Database) error {
	var y databaseYAML
	for _, sp := range db.Species {
		s := speciesYAML{
			Name:    string(sp.Name),
			Charge:  sp.Charge,
			LogK:    sp.LogK,
			Primary: sp.Primary,
		}
		if len(sp.Stoichiometry) > 0 {
			s.Stoichiometry = make(map[string]int, len(sp.Stoichiometry))
			for c, v := range sp.Stoichiometry {
				s.Stoichiometry[string(c)] = v
			}
		}
		y.Species = append(y.Species, s)
	}
	for _, solid := range db.Solids {
		s := solidYAML{
			Name:          solid.Name,
			LogKsp:        solid.LogKsp,
			Stoichiometry: make(map[string]int, len(solid.Stoichiometry)),
		}
		for ion, v := range solid.Stoichiometry {
			s.Stoichiometry[string(ion)] = v
		}
		y.Solids = append(y.Solids, s)
	}
	for _, p := range db.Pitzer {
		y.Pitzer = append(y.Pitzer, pitzerYAML{
			Ion1:  string(p.Ion1),
			Ion2:  string(p.Ion2),
			Beta0: p.Beta0,
			Beta1: p.Beta1,
			Cphi:  p.Cphi,
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&y); err != nil {
		return fmt.Errorf("thermodb: writing YAML: %w", err)
	}
	return enc.Close()
}

// Names returns the species names in db, sorted.
func (db *Database) Names() []aqeq.SpeciesName {
	o := make([]aqeq.SpeciesName, len(db.Species))
	for i, sp := range db.Species {
		o[i] = sp.Name
	}
	sort.Slice(o, func(i, j int) bool { return o[i] < o[j] })
	return o
}
