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
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/Knetic/govaluate"
)

func TestOutputter(t *testing.T) {
	s := uranylSystem()
	if err := Speciate(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	o, err := NewOutputter(map[string]string{
		"pF":       "-log10([{F-}])",
		"ratio":    "[UO2F+] / [UO2++]",
		"fraction": "ratio / (ratio + 1)",
		"totalU":   "sum([UO2++], [UO2F+])",
		"mmolI":    "I * 1000",
		"siU":      "[SI_UO2F2(s)]",
		"twice":    "double(mmolI)",
	}, map[string]govaluate.ExpressionFunction{
		"double": func(arg ...interface{}) (interface{}, error) {
			return 2 * arg[0].(float64), nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"fraction", "mmolI", "pF", "ratio", "siU", "totalU", "twice"}
	if v := o.Variables(); !reflect.DeepEqual(v, want) {
		t.Errorf("variables: want %v, have %v", want, v)
	}
	if e := o.Expression("ratio"); e != "[UO2F+] / [UO2++]" {
		t.Errorf("expression: %s", e)
	}

	r, err := o.Evaluate(s)
	if err != nil {
		t.Fatal(err)
	}
	c := s.Solution.Concentrations
	act := Activities(s.Species, s.Solution)
	ratio := c["UO2F+"] / c["UO2++"]
	check := map[string]float64{
		"pF":       -math.Log10(act["F-"]),
		"ratio":    ratio,
		"fraction": ratio / (ratio + 1),
		"totalU":   c["UO2++"] + c["UO2F+"],
		"mmolI":    s.Solution.IonicStrength * 1000,
		"siU":      s.Phases[0].SI,
		"twice":    s.Solution.IonicStrength * 2000,
	}
	for k, v := range check {
		if different(r[k], v, 1e-10) {
			t.Errorf("%s: want %g, have %g", k, v, r[k])
		}
	}
}

func TestOutputterErrors(t *testing.T) {
	s := uranylSystem()
	if err := Speciate(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	tests := []map[string]string{
		{"a": "b + 1", "b": "a * 2"},
		{"a": "notDefined + 1"},
		{"a": "log10(1, 2)"},
	}
	for i, vars := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			o, err := NewOutputter(vars, nil)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := o.Evaluate(s); err == nil {
				t.Error("expected an error")
			}
		})
	}
	if _, err := NewOutputter(map[string]string{"a": "(1 + "}, nil); err == nil {
		t.Error("expected a parse error")
	}
}
