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
	"sort"
	"strings"
	"unicode"
)

// StoichIndex relates conserved components to the species that contain
// them, in the format map[element][species]coefficient.
type StoichIndex map[ElementLabel]map[SpeciesName]int

// BuildIndex creates the element-species index for species. Coefficients
// of the same element within one species are summed.
//
// A stoichiometry key that names a primary species is replaced by that
// primary species' own composition, so that a complex such as UO2F+
// (UO2++ + F-) is counted in the mass balance of the elements of UO2++ and
// F-. A primary species without a stoichiometry is its own component. All
// other keys are element labels.
func BuildIndex(species []AqueousSpecies) StoichIndex {
	primaries := make(map[SpeciesName]AqueousSpecies)
	for _, sp := range species {
		if sp.Primary {
			primaries[sp.Name] = sp
		}
	}
	idx := make(StoichIndex)
	for _, sp := range species {
		for e, c := range composition(sp, primaries, make(map[SpeciesName]bool)) {
			if idx[e] == nil {
				idx[e] = make(map[SpeciesName]int)
			}
			idx[e][sp.Name] += c
		}
	}
	return idx
}

// composition resolves the elemental composition of sp. visiting guards
// against cyclic primary-species definitions.
func composition(sp AqueousSpecies, primaries map[SpeciesName]AqueousSpecies, visiting map[SpeciesName]bool) map[ElementLabel]int {
	o := make(map[ElementLabel]int)
	if sp.Primary && len(sp.Stoichiometry) == 0 {
		o[ElementLabel(sp.Name)] = 1
		return o
	}
	visiting[sp.Name] = true
	defer delete(visiting, sp.Name)
	for comp, coeff := range sp.Stoichiometry {
		name := SpeciesName(comp)
		if p, ok := primaries[name]; ok && !visiting[name] {
			for e, c := range composition(p, primaries, visiting) {
				o[e] += coeff * c
			}
			continue
		}
		o[ElementLabel(comp)] += coeff
	}
	return o
}

// Elements returns the element labels in idx in sorted order. The order
// defines the rows of the residual vector and the Jacobian.
func (idx StoichIndex) Elements() []ElementLabel {
	o := make([]ElementLabel, 0, len(idx))
	for e := range idx {
		o = append(o, e)
	}
	sort.Slice(o, func(i, j int) bool { return o[i] < o[j] })
	return o
}

// Coefficient returns the coefficient of element e in species name.
func (idx StoichIndex) Coefficient(e ElementLabel, name SpeciesName) int {
	return idx[e][name]
}

// DetectElements returns the stoichiometry labels in species that look
// like element symbols: labels without digits and without any of the
// characters "+-()". It is intended for reporting.
func DetectElements(species []AqueousSpecies) []ElementLabel {
	found := make(map[ElementLabel]struct{})
	for _, sp := range species {
		for comp := range sp.Stoichiometry {
			if isElement(string(comp)) {
				found[ElementLabel(comp)] = struct{}{}
			}
		}
	}
	o := make([]ElementLabel, 0, len(found))
	for e := range found {
		o = append(o, e)
	}
	sort.Slice(o, func(i, j int) bool { return o[i] < o[j] })
	return o
}

func isElement(label string) bool {
	for _, r := range label {
		if unicode.IsDigit(r) || strings.ContainsRune("+-()", r) {
			return false
		}
	}
	return true
}
