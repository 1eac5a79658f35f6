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

package strip

import (
	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// OutArrays buffers the daily strip state of every scenario.
type OutArrays struct {
	rounds, length, n int

	// Dwts, Afps and Deltas have shape rounds × length × n.
	Dwts, Afps, Deltas *sparse.DenseArray

	// Runoff is the surface runoff per node [m], rounds × length × n.
	Runoff *sparse.DenseArray

	// West, East, Surface and Absorbed have shape rounds × length
	// [m3 per m of ditch length].
	West, East, Surface, Absorbed *sparse.DenseArray
}

// NewOutArrays allocates buffers for rounds scenarios of length days
// on n nodes.
func NewOutArrays(rounds, length, n int) *OutArrays {
	return &OutArrays{
		rounds:   rounds,
		length:   length,
		n:        n,
		Dwts:     sparse.ZerosDense(rounds, length, n),
		Afps:     sparse.ZerosDense(rounds, length, n),
		Deltas:   sparse.ZerosDense(rounds, length, n),
		Runoff:   sparse.ZerosDense(rounds, length, n),
		West:     sparse.ZerosDense(rounds, length),
		East:     sparse.ZerosDense(rounds, length),
		Surface:  sparse.ZerosDense(rounds, length),
		Absorbed: sparse.ZerosDense(rounds, length),
	}
}

func (o *OutArrays) row(r, d int) int { return (r*o.length + d) * o.n }

// Update copies the current state of s into scenario r, day d.
func (o *OutArrays) Update(r, d int, s *Hydrology) {
	i := o.row(r, d)
	copy(o.Dwts.Elements[i:i+o.n], s.h)
	copy(o.Afps.Elements[i:i+o.n], s.afp)
	copy(o.Deltas.Elements[i:i+o.n], s.deltas)
	copy(o.Runoff.Elements[i:i+o.n], s.runoff)
	o.West.Set(s.flux.West, r, d)
	o.East.Set(s.flux.East, r, d)
	o.Surface.Set(s.flux.Surface, r, d)
	o.Absorbed.Set(s.flux.Absorbed, r, d)
}

// days returns copies of the per-node rows of a for scenario r from
// day start for the given number of days.
func (o *OutArrays) days(a *sparse.DenseArray, r, start, days int) [][]float64 {
	out := make([][]float64, days)
	for d := range out {
		i := o.row(r, start+d)
		out[d] = append([]float64(nil), a.Elements[i:i+o.n]...)
	}
	return out
}

// WaterTables returns the daily water tables (days × nodes) of
// scenario r starting at day start.
func (o *OutArrays) WaterTables(r, start, days int) [][]float64 {
	return o.days(o.Dwts, r, start, days)
}

// AirFilledPorosities returns the daily root zone air-filled porosity
// (days × nodes) of scenario r starting at day start.
func (o *OutArrays) AirFilledPorosities(r, start, days int) [][]float64 {
	return o.days(o.Afps, r, start, days)
}

// YearDischarge sums the discharge of scenario r over the given days.
func (o *OutArrays) YearDischarge(r, start, days int) YearDischarge {
	i := r*o.length + start
	return YearDischarge{
		West:    floats.Sum(o.West.Elements[i : i+days]),
		East:    floats.Sum(o.East.Elements[i : i+days]),
		Surface: floats.Sum(o.Surface.Elements[i : i+days]),
	}
}

// YearDischarge holds the water leaving the strip during one year
// [m3 per m of ditch length].
type YearDischarge struct {
	West, East, Surface float64
}

// AnnualDischarge returns the discharge to the west and east ditches.
// Surface runoff is split evenly between them.
func (y YearDischarge) AnnualDischarge() (west, east float64) {
	return y.West + y.Surface/2, y.East + y.Surface/2
}
