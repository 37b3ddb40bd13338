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

// MassBalanceResiduals returns Σ ν(e,s)·c(s) − total(e) for each element
// in elements, in the same order. Elements missing from totals have a
// total of zero.
func MassBalanceResiduals(idx StoichIndex, elements []ElementLabel, conc map[SpeciesName]float64, totals TotalInput) []float64 {
	o := make([]float64, len(elements))
	for i, e := range elements {
		var sum float64
		for name, coeff := range idx[e] {
			sum += float64(coeff) * conc[name]
		}
		o[i] = sum - totals.Total(e)
	}
	return o
}

// ChargeBalance returns Σ zᵢcᵢ over all species, which is zero for an
// electrically neutral solution.
func ChargeBalance(species []AqueousSpecies, conc map[SpeciesName]float64) float64 {
	var sum float64
	for _, sp := range species {
		sum += sp.Charge * conc[sp.Name]
	}
	return sum
}

// Residuals returns the mass-balance residuals in elements order followed
// by the charge-balance residual.
func Residuals(species []AqueousSpecies, idx StoichIndex, elements []ElementLabel, conc map[SpeciesName]float64, totals TotalInput) []float64 {
	return append(MassBalanceResiduals(idx, elements, conc, totals), ChargeBalance(species, conc))
}
