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
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/aqeq"
	"github.com/spatialmodel/aqeq/thermodb"
	"github.com/spf13/cast"
)

// checkOutputVars removes end lines and expands environment
// variables in the output variables.
func checkOutputVars(vars map[string]string) (map[string]string, error) {
	o := make(map[string]string, len(vars))
	for k, v := range vars {
		v = strings.Replace(v, "\r\n", " ", -1)
		v = strings.Replace(v, "\n", " ", -1)
		v = strings.TrimSpace(os.ExpandEnv(v))
		if v == "" {
			return nil, fmt.Errorf("aqeq: output variable %s has no expression", k)
		}
		o[os.ExpandEnv(k)] = v
	}
	return o, nil
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) map[string]string {
	i := cfg.Get(varName)
	switch i.(type) {
	case nil:
		return make(map[string]string)
	case map[string]string:
		return i.(map[string]string)
	case map[string]interface{}:
		return cast.ToStringMapString(i)
	case string:
		if strings.TrimSpace(i.(string)) == "" {
			return make(map[string]string)
		}
		b := bytes.NewBuffer(([]byte)(i.(string)))
		d := json.NewDecoder(b)
		o := make(map[string]string)
		if err := d.Decode(&o); err != nil {
			panic(err)
		}
		return o
	default:
		panic(fmt.Errorf("invalid type for getStringMapString variable %s: %#v", varName, i))
	}
}

// parsePairs parses values in the format "name=value".
func parsePairs(s []string) (map[string]float64, error) {
	o := make(map[string]float64, len(s))
	for _, p := range s {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		i := strings.LastIndex(p, "=")
		if i <= 0 {
			return nil, fmt.Errorf("invalid entry %q; the format is name=value", p)
		}
		name := strings.TrimSpace(p[:i])
		v, err := cast.ToFloat64E(strings.TrimSpace(p[i+1:]))
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %v", name, err)
		}
		if _, ok := o[name]; ok {
			return nil, fmt.Errorf("%s is specified more than once", name)
		}
		o[name] = v
	}
	return o, nil
}

func speciesNames(s []string) []aqeq.SpeciesName {
	o := make([]aqeq.SpeciesName, len(s))
	for i, n := range s {
		o[i] = aqeq.SpeciesName(strings.TrimSpace(n))
	}
	return o
}

func speciesMap(m map[string]float64) map[aqeq.SpeciesName]float64 {
	o := make(map[aqeq.SpeciesName]float64, len(m))
	for k, v := range m {
		o[aqeq.SpeciesName(k)] = v
	}
	return o
}

func totalsMap(m map[string]float64) aqeq.TotalInput {
	o := make(aqeq.TotalInput, len(m))
	for k, v := range m {
		o[aqeq.ElementLabel(k)] = v
	}
	return o
}

// loadDatabase reads the databases specified in cfg.
func loadDatabase(cfg *viper.Viper) (*thermodb.Database, error) {
	path := cfg.GetString("SpeciesDatabase")
	if path == "" {
		return nil, fmt.Errorf("aqeq: SpeciesDatabase must be specified")
	}
	db, err := thermodb.Load(path)
	if err != nil {
		return nil, err
	}
	if path := cfg.GetString("SolidsDatabase"); path != "" {
		s, err := thermodb.LoadSolids(path)
		if err != nil {
			return nil, err
		}
		db.Solids = append(db.Solids, s...)
	}
	if path := cfg.GetString("PitzerParameters"); path != "" {
		p, err := thermodb.LoadPitzer(path)
		if err != nil {
			return nil, err
		}
		db.Pitzer = append(db.Pitzer, p...)
	}
	return db, nil
}

// problemFromConfig creates a problem from the information in cfg.
func problemFromConfig(cfg *viper.Viper) (*Problem, error) {
	db, err := loadDatabase(cfg)
	if err != nil {
		return nil, err
	}
	totals, err := parsePairs(cfg.GetStringSlice("Totals"))
	if err != nil {
		return nil, fmt.Errorf("aqeq: reading Totals: %v", err)
	}
	guess, err := parsePairs(cfg.GetStringSlice("InitialGuess"))
	if err != nil {
		return nil, fmt.Errorf("aqeq: reading InitialGuess: %v", err)
	}
	p := &Problem{
		DB:           db,
		Totals:       totalsMap(totals),
		InitialGuess: speciesMap(guess),
		Ideal:        cfg.GetBool("Ideal"),
	}
	if primary := cfg.GetStringSlice("PrimarySpecies"); len(primary) > 0 {
		p.Primary = speciesNames(primary)
	}
	if _, err := p.NewSystem(aqeq.NewSolver()); err != nil {
		return nil, err
	}
	return p, nil
}

// solverFromConfig creates a solver with the settings in cfg.
func solverFromConfig(cfg *viper.Viper) *aqeq.Solver {
	s := aqeq.NewSolver()
	s.MaxIterations = cfg.GetInt("MaxIterations")
	s.Tolerance = cfg.GetFloat64("Tolerance")
	s.RefreshActivities = cfg.GetBool("RefreshActivities")
	s.Concurrency = cfg.GetInt("Concurrency")
	return s
}
