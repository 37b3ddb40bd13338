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
	"fmt"
	"math"
	"sort"

	"github.com/Knetic/govaluate"
	"gonum.org/v1/gonum/floats"
)

// Outputter calculates user-defined output variables from the results of a
// speciation run. Output variables are govaluate expressions in which the
// following model variables are available:
//
//	[name]    concentration of species name [mol/L], e.g. [UO2F+]
//	[{name}]  activity of species name, e.g. -log10([{H+}])
//	I         ionic strength [mol/L]
//	T         temperature [K]
//	[SI_name] saturation index of solid name
//
// Square brackets are needed around names that contain operator characters.
// Output variables can refer to other output variables by name.
type Outputter struct {
	outputVariables map[string]string
	expressions     map[string]*govaluate.EvaluableExpression
	outputFunctions map[string]govaluate.ExpressionFunction
}

// NewOutputter compiles outputVariables, which maps output names to
// expressions. In addition to any functions in outputFunctions, the
// following are available:
//
// 'log10(x)', 'ln(x)' and 'exp(x)', the usual elementary functions, and
//
// 'sum(x, ...)' which adds its arguments.
func NewOutputter(outputVariables map[string]string, outputFunctions map[string]govaluate.ExpressionFunction) (*Outputter, error) {
	unary := func(name string, f func(float64) float64) govaluate.ExpressionFunction {
		return func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("aqeq: got %d arguments for function '%s', but needs 1", len(arg), name)
			}
			v, ok := arg[0].(float64)
			if !ok {
				return nil, fmt.Errorf("aqeq: invalid argument %v for function '%s'", arg[0], name)
			}
			return f(v), nil
		}
	}
	funcs := map[string]govaluate.ExpressionFunction{
		"log10": unary("log10", math.Log10),
		"ln":    unary("ln", math.Log),
		"exp":   unary("exp", math.Exp),
		"sum": func(arg ...interface{}) (interface{}, error) {
			v := make([]float64, len(arg))
			for i, a := range arg {
				f, ok := a.(float64)
				if !ok {
					return nil, fmt.Errorf("aqeq: invalid argument %v for function 'sum'", a)
				}
				v[i] = f
			}
			return floats.Sum(v), nil
		},
	}
	for k, f := range outputFunctions {
		funcs[k] = f
	}

	o := &Outputter{
		outputVariables: make(map[string]string, len(outputVariables)),
		expressions:     make(map[string]*govaluate.EvaluableExpression, len(outputVariables)),
		outputFunctions: funcs,
	}
	for name, expr := range outputVariables {
		e, err := govaluate.NewEvaluableExpressionWithFunctions(expr, funcs)
		if err != nil {
			return nil, fmt.Errorf("aqeq: output variable %s: %v", name, err)
		}
		o.outputVariables[name] = expr
		o.expressions[name] = e
	}
	return o, nil
}

// Variables returns the names of the output variables, sorted.
func (o *Outputter) Variables() []string {
	names := make([]string, 0, len(o.expressions))
	for n := range o.expressions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Expression returns the expression that defines output variable name.
func (o *Outputter) Expression(name string) string {
	return o.outputVariables[name]
}

// ModelVariables returns the values of the model variables that output
// expressions can refer to.
func ModelVariables(s *System) map[string]interface{} {
	p := make(map[string]interface{})
	if s.Solution != nil {
		for name, c := range s.Solution.Concentrations {
			p[string(name)] = c
		}
		for name, a := range Activities(s.Species, s.Solution) {
			p["{"+string(name)+"}"] = a
		}
		p["I"] = s.Solution.IonicStrength
		p["T"] = s.Solution.Temperature
	}
	for _, r := range s.Phases {
		p["SI_"+r.Solid] = r.SI
	}
	return p
}

// Evaluate calculates every output variable for s.
func (o *Outputter) Evaluate(s *System) (map[string]float64, error) {
	params := ModelVariables(s)
	out := make(map[string]float64, len(o.expressions))
	visiting := make(map[string]bool)
	var eval func(name string) (float64, error)
	eval = func(name string) (float64, error) {
		if v, ok := out[name]; ok {
			return v, nil
		}
		if visiting[name] {
			return math.NaN(), fmt.Errorf("aqeq: output variable %s is defined in terms of itself", name)
		}
		visiting[name] = true
		defer delete(visiting, name)

		e := o.expressions[name]
		for _, v := range e.Vars() {
			if _, isModel := params[v]; isModel {
				continue
			}
			if _, isOutput := o.expressions[v]; !isOutput {
				return math.NaN(), fmt.Errorf("aqeq: output variable %s: undefined variable name '%s'", name, v)
			}
			dep, err := eval(v)
			if err != nil {
				return math.NaN(), err
			}
			params[v] = dep
		}
		r, err := e.Evaluate(params)
		if err != nil {
			return math.NaN(), fmt.Errorf("aqeq: output variable %s: %v", name, err)
		}
		v, ok := r.(float64)
		if !ok {
			return math.NaN(), fmt.Errorf("aqeq: output variable %s has non-numeric value %v", name, r)
		}
		out[name] = v
		return v, nil
	}
	for _, name := range o.Variables() {
		if _, err := eval(name); err != nil {
			return nil, err
		}
	}
	return out, nil
}
