/*
Copyright © 2024 the SUSI authors.
This file is part of SUSI.

SUSI is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

SUSI is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with SUSI.  If not, see <http://www.gnu.org/licenses/>.
*/

package canopy

import (
	"github.com/ctessum/sparse"
	"github.com/spatialmodel/susi/science"
	"gonum.org/v1/gonum/floats"
)

var (
	rewDepths = []float64{-150, -1.2, -0.7, -0.15, 0}
	rewValues = []float64{0, 0.5, 1, 1, 0.5}
)

// RewDryLimit returns the relative extractable water for each water
// table depth [m, negative below ground]. Roots are stressed both by a
// deep water table and by waterlogging near the surface.
func RewDryLimit(dwt []float64) []float64 {
	out := make([]float64, len(dwt))
	for i, d := range dwt {
		out[i] = science.Interp1(d, rewDepths, rewValues)
	}
	return out
}

// OutArrays buffers the daily canopy fluxes of every scenario. Each
// array has shape rounds × length × n.
type OutArrays struct {
	length, n int

	Intercs, Evaps, ETs, Transpis, Efloors, SWEs *sparse.DenseArray
}

// NewOutArrays allocates buffers for rounds scenarios of length days
// on n nodes.
func NewOutArrays(rounds, length, n int) *OutArrays {
	return &OutArrays{
		length:   length,
		n:        n,
		Intercs:  sparse.ZerosDense(rounds, length, n),
		Evaps:    sparse.ZerosDense(rounds, length, n),
		ETs:      sparse.ZerosDense(rounds, length, n),
		Transpis: sparse.ZerosDense(rounds, length, n),
		Efloors:  sparse.ZerosDense(rounds, length, n),
		SWEs:     sparse.ZerosDense(rounds, length, n),
	}
}

// Update stores the fluxes of scenario r, day d. efloor is the floor
// evaporation after the moss layer.
func (o *OutArrays) Update(r, d int, f Fluxes, efloor []float64) {
	i := (r*o.length + d) * o.n
	copy(o.Intercs.Elements[i:i+o.n], f.Interc)
	copy(o.Evaps.Elements[i:i+o.n], f.Evap)
	copy(o.ETs.Elements[i:i+o.n], f.ET)
	copy(o.Transpis.Elements[i:i+o.n], f.Transpi)
	copy(o.Efloors.Elements[i:i+o.n], efloor)
	copy(o.SWEs.Elements[i:i+o.n], f.SWE)
}

// YearSum returns the per-node sum of a, one of the arrays of o, over
// days [start, start+days) of scenario r.
func (o *OutArrays) YearSum(a *sparse.DenseArray, r, start, days int) []float64 {
	sum := make([]float64, o.n)
	for d := start; d < start+days; d++ {
		i := (r*o.length + d) * o.n
		floats.Add(sum, a.Elements[i:i+o.n])
	}
	return sum
}
