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

// Package temperature simulates one-dimensional vertical heat
// diffusion in a peat column with an implicit finite difference scheme.
package temperature

import (
	"fmt"
	"math"

	"github.com/spatialmodel/susi/science"
)

// Physical constants
const (
	// BufferLayers is the number of layers added below the hydrologically
	// active column to move the lower boundary into the far field.
	BufferLayers = 30

	volumetricHeatCapacity = 3860000.0 // J m-3 K-1
	heatOfVaporization     = 2467700.0 // J kg-1
	diffusivity            = 1e-7      // m2 s-1, de Vries 1975
	secondsPerDay          = 86400.0

	// Nt is the number of implicit sub-steps per day.
	Nt = 24

	// SnowThreshold is the snow water equivalent [m] above which the
	// surface is insulated from the air.
	SnowThreshold = 0.01

	// SnowFloor is the coldest surface temperature [°C] under snow.
	SnowFloor = -5.0
)

// PeatTemperature holds the temperature profile of a peat column.
type PeatTemperature struct {
	nHydro int
	dz     float64
	meanTa float64

	// heatCapacity is the heat capacity of one layer [J m-2 K-1].
	heatCapacity float64
	f            float64

	z []float64 // layer centre depths [m]
	t []float64 // temperatures [°C], len(z)+1 nodes
	b []float64

	solver Solver
}

// New creates a peat column with nLyrsHydro hydrologically active
// layers of thickness dz [m] plus BufferLayers deep layers. meanTa is
// the long-run mean air temperature [°C] that is used as the lower
// boundary condition and the initial state. mode selects the solver.
func New(nLyrsHydro int, dz, meanTa float64, mode Mode) (*PeatTemperature, error) {
	if nLyrsHydro < 1 {
		return nil, fmt.Errorf("temperature: number of layers must be positive, got %d", nLyrsHydro)
	}
	if dz <= 0 {
		return nil, fmt.Errorf("temperature: layer thickness must be positive, got %g", dz)
	}
	nLyrs := nLyrsHydro + BufferLayers
	p := &PeatTemperature{
		nHydro:       nLyrsHydro,
		dz:           dz,
		meanTa:       meanTa,
		heatCapacity: volumetricHeatCapacity * dz,
		z:            make([]float64, nLyrs),
		t:            make([]float64, nLyrs+1),
		b:            make([]float64, nLyrs+1),
	}
	for i := range p.z {
		p.z[i] = float64(i+1)*dz - dz/2
	}
	dt := secondsPerDay / Nt
	p.f = diffusivity * dt / (dz * dz)
	var err error
	p.solver, err = NewSolver(mode, nLyrs+1, p.f)
	if err != nil {
		return nil, err
	}
	p.Reset()
	return p, nil
}

// Reset sets the whole column to the mean air temperature.
func (p *PeatTemperature) Reset() {
	science.Fill(p.t, p.meanTa)
}

// TopBoundary returns the effective surface temperature [°C] given air
// temperature ta [°C], snow water equivalent swe [m], floor evaporation
// efloor [m] and layer heat capacity [J m-2 K-1]. Under snow the
// surface cannot be colder than SnowFloor; otherwise evaporation cools it.
func TopBoundary(ta, swe, efloor, heatCapacity float64) float64 {
	if swe > SnowThreshold {
		return math.Max(SnowFloor, ta)
	}
	eConsumed := efloor * 1000 * heatOfVaporization / Nt
	return ta - eConsumed/heatCapacity
}

// RunTimestep advances the column by one day. ta is the air
// temperature [°C], swe the snow water equivalent [m] and efloor the
// floor evaporation [m]. It returns the layer depths and temperatures
// of the hydrologically active layers; the returned slices are copies.
func (p *PeatTemperature) RunTimestep(ta, swe, efloor float64) (z, t []float64, err error) {
	top := TopBoundary(ta, swe, efloor, p.heatCapacity)
	bottom := p.meanTa
	last := len(p.t) - 1
	for n := 0; n < Nt; n++ {
		copy(p.b, p.t)
		p.b[0] = top
		p.b[last] = bottom
		// Dirichlet values eliminated from the neighbouring rows.
		p.b[1] += p.f * top
		p.b[last-1] += p.f * bottom
		if err := p.solver.Solve(p.t, p.b); err != nil {
			return nil, nil, err
		}
	}
	if err := science.CheckFinite("temperature: peat temperature", p.t); err != nil {
		return nil, nil, err
	}
	return p.Z(), p.Temperature(), nil
}

// Z returns the centre depths [m] of the hydrologically active layers.
func (p *PeatTemperature) Z() []float64 {
	z := make([]float64, p.nHydro)
	copy(z, p.z)
	return z
}

// Temperature returns the current temperatures [°C] of the
// hydrologically active part of the column.
func (p *PeatTemperature) Temperature() []float64 {
	t := make([]float64, p.nHydro)
	copy(t, p.t)
	return t
}

// HeatCapacity returns the heat capacity of one layer [J m-2 K-1].
func (p *PeatTemperature) HeatCapacity() float64 { return p.heatCapacity }

// MeanTa returns the lower boundary temperature.
func (p *PeatTemperature) MeanTa() float64 { return p.meanTa }

// Layers returns the number of hydrologically active layers.
func (p *PeatTemperature) Layers() int { return p.nHydro }
