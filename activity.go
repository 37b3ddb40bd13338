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

import "math"

// Debye-Hückel parameters at 25 °C.
const (
	aPhi = 0.392 // Debye-Hückel limiting slope for the osmotic coefficient
	bDH  = 1.2   // [(kg/mol)^½]
)

// IonicStrength calculates I = ½ Σ cᵢzᵢ² over the species in conc
// that have a known charge. Species without a charge are skipped.
func IonicStrength(conc map[SpeciesName]float64, charges map[SpeciesName]float64) float64 {
	var I float64
	for name, c := range conc {
		z, ok := charges[name]
		if !ok {
			continue
		}
		I += c * z * z
	}
	return 0.5 * I
}

// DebyeHuckel returns the long-range contribution to ln(γ) for an ion
// with charge z at ionic strength I.
func DebyeHuckel(z, I float64) float64 {
	sqrtI := math.Sqrt(I)
	return -aPhi * z * z * sqrtI / (1 + bDH*sqrtI)
}

// ComputeActivities calculates the ionic strength of sol and the activity
// coefficient of each species from the current composition of sol and the
// binary interaction parameters in params. Species without interaction
// parameters get the Debye-Hückel value; missing data never causes an error.
func ComputeActivities(species []AqueousSpecies, sol *Solution, params []PitzerPair) {
	z := charges(species)
	I := IonicStrength(sol.Concentrations, z)
	sol.IonicStrength = I
	sqrtI := math.Sqrt(I)
	for i := range species {
		sp := &species[i]
		lnGamma := DebyeHuckel(sp.Charge, I)
		for _, p := range params {
			other, ok := p.Partner(sp.Name)
			if !ok {
				continue
			}
			m, ok := sol.Concentrations[other]
			if !ok {
				continue
			}
			// An unknown partner charge disables the Cφ term.
			lnGamma += m * (p.Beta0 + p.Beta1*math.Exp(-2*sqrtI) + sp.Charge*z[other]*p.Cphi*I)
		}
		sp.ActivityCoefficient = math.Exp(lnGamma)
	}
}
