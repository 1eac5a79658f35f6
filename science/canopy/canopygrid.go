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

// Package canopy simulates the above-ground water balance of a forest
// stand: rain and snow interception, snow pack, transpiration and
// floor evaporation. It also holds the moss layer that sits between
// the canopy and the peat.
package canopy

import (
	"fmt"
	"math"

	"github.com/spatialmodel/susi/science"
)

const (
	latentHeat = 2.45e6 // J kg-1
	psychro    = 0.066  // kPa K-1
	netRadFrac = 0.7    // net to global radiation ratio
	extinction = 0.5    // canopy light extinction coefficient
)

// CanopyConfig holds the physiological and snow parameters of the canopy.
type CanopyConfig struct {
	// WMaxRain and WMaxSnow are the interception capacities [mm per unit LAI].
	WMaxRain, WMaxSnow float64

	// TMin and TMax bound the air temperature range [°C] over which
	// precipitation changes from all snow to all rain.
	TMin, TMax float64

	// KMelt and KFreeze are degree-day factors [mm °C-1 d-1].
	KMelt, KFreeze float64

	// RetentionFrac is the liquid water the snow pack can hold per unit ice.
	RetentionFrac float64

	// Alpha is the Priestley-Taylor coefficient.
	Alpha float64

	// Amax is the reference light saturated photosynthesis rate
	// [umol m-2 s-1] for a stand without nutrient limitation.
	Amax float64

	// AmaxRange bounds the nutrient status multiplier of Amax.
	AmaxRange [2]float64

	// VPDSensitivity is the stomatal closure coefficient [kPa-1].
	VPDSensitivity float64

	// InitialSWE is the snow water equivalent [mm] at the start of a scenario.
	InitialSWE float64
}

// DefaultCanopyConfig returns parameters for a boreal conifer stand.
func DefaultCanopyConfig() CanopyConfig {
	return CanopyConfig{
		WMaxRain:       0.5,
		WMaxSnow:       4.5,
		TMin:           -4.0,
		TMax:           2.5,
		KMelt:          2.9,
		KFreeze:        0.5,
		RetentionFrac:  0.05,
		Alpha:          1.26,
		Amax:           10.0,
		AmaxRange:      [2]float64{0.5, 1.0},
		VPDSensitivity: 0.25,
	}
}

// Validate checks c for values that would make the water balance
// undefined.
func (c CanopyConfig) Validate() error {
	switch {
	case c.WMaxRain < 0 || c.WMaxSnow < 0:
		return fmt.Errorf("canopy: negative interception capacity (rain %g, snow %g)", c.WMaxRain, c.WMaxSnow)
	case c.TMax <= c.TMin:
		return fmt.Errorf("canopy: rain temperature %g must be above snow temperature %g", c.TMax, c.TMin)
	case c.KMelt < 0 || c.KFreeze < 0:
		return fmt.Errorf("canopy: negative degree-day factor (melt %g, freeze %g)", c.KMelt, c.KFreeze)
	case c.RetentionFrac < 0 || c.RetentionFrac > 1:
		return fmt.Errorf("canopy: snow retention fraction %g outside [0, 1]", c.RetentionFrac)
	case c.Alpha <= 0:
		return fmt.Errorf("canopy: Priestley-Taylor coefficient must be positive, got %g", c.Alpha)
	case c.Amax <= 0:
		return fmt.Errorf("canopy: photosynthetic capacity must be positive, got %g", c.Amax)
	case c.AmaxRange[0] <= 0 || c.AmaxRange[1] < c.AmaxRange[0]:
		return fmt.Errorf("canopy: invalid photosynthetic capacity range %v", c.AmaxRange)
	case c.VPDSensitivity < 0:
		return fmt.Errorf("canopy: negative vapour pressure deficit sensitivity %g", c.VPDSensitivity)
	case c.InitialSWE < 0:
		return fmt.Errorf("canopy: negative initial snow water equivalent %g", c.InitialSWE)
	}
	return nil
}

// Forcing holds the inputs of one canopy time step. Hc, LAI, Rew and
// Beta are per node.
type Forcing struct {
	Doy  int
	Dt   float64 // s
	Ta   float64 // °C
	Prec float64 // mm s-1
	Rg   float64 // W m-2
	Par  float64 // W m-2
	Vpd  float64 // kPa

	Hc   []float64 // canopy height [m]
	LAI  []float64 // leaf area index [m2 m-2]
	Rew  []float64 // relative extractable water [-]
	Beta []float64 // floor evaporation efficiency [-]
}

// Fluxes holds the per-node results of one time step [mm per step],
// except SWE which is a storage [mm].
type Fluxes struct {
	PotInf, Trfall, Interc, Evap, ET, Transpi, Efloor, MBE, SWE []float64
}

// CanopyGrid holds the canopy water storage of every node.
type CanopyGrid struct {
	c CanopyConfig
	n int

	w    []float64 // intercepted water [mm]
	ice  []float64 // snow pack ice [mm]
	liq  []float64 // snow pack liquid water [mm]
	amax []float64
}

// NewCanopyGrid creates a canopy of n nodes.
func NewCanopyGrid(c CanopyConfig, n int) *CanopyGrid {
	g := &CanopyGrid{
		c:    c,
		n:    n,
		w:    make([]float64, n),
		ice:  make([]float64, n),
		liq:  make([]float64, n),
		amax: make([]float64, n),
	}
	g.Reset()
	return g
}

// Reset restores the initial storages and photosynthetic capacity.
func (g *CanopyGrid) Reset() {
	science.Fill(g.w, 0)
	science.Fill(g.ice, g.c.InitialSWE)
	science.Fill(g.liq, 0)
	science.Fill(g.amax, g.c.Amax)
}

// UpdateAmax sets the photosynthetic capacity of each node from the
// stand nutrient status of the previous year.
func (g *CanopyGrid) UpdateAmax(nutStat []float64) error {
	if err := science.CheckLen("canopy: nutrient status", g.n, nutStat); err != nil {
		return err
	}
	for i, s := range nutStat {
		f := math.Min(math.Max(s, g.c.AmaxRange[0]), g.c.AmaxRange[1])
		g.amax[i] = g.c.Amax * f
	}
	return nil
}

// Amax returns a copy of the photosynthetic capacity of each node.
func (g *CanopyGrid) Amax() []float64 {
	return append([]float64(nil), g.amax...)
}

// SWE returns the current snow water equivalent [mm] of each node.
func (g *CanopyGrid) SWE() []float64 {
	out := make([]float64, g.n)
	for i := range out {
		out[i] = g.ice[i] + g.liq[i]
	}
	return out
}

// PotentialEvaporation returns the Priestley-Taylor equilibrium
// evaporation [mm] over dt seconds.
func PotentialEvaporation(alpha, ta, rg, dt float64) float64 {
	es := 0.6108 * math.Exp(17.27*ta/(ta+237.3))
	delta := 4098 * es / ((ta + 237.3) * (ta + 237.3))
	rn := netRadFrac * rg
	e := alpha * delta / (delta + psychro) * rn / latentHeat * dt
	return math.Max(e, 0)
}

// RunTimestep computes the canopy water balance for one time step.
func (g *CanopyGrid) RunTimestep(in Forcing) (Fluxes, error) {
	for i, v := range [][]float64{in.Hc, in.LAI, in.Rew, in.Beta} {
		name := [...]string{"Hc", "LAI", "Rew", "Beta"}[i]
		if err := science.CheckLen("canopy: "+name, g.n, v); err != nil {
			return Fluxes{}, err
		}
	}
	if in.Dt <= 0 {
		return Fluxes{}, fmt.Errorf("canopy: time step must be positive, got %g", in.Dt)
	}
	f := Fluxes{
		PotInf:  make([]float64, g.n),
		Trfall:  make([]float64, g.n),
		Interc:  make([]float64, g.n),
		Evap:    make([]float64, g.n),
		ET:      make([]float64, g.n),
		Transpi: make([]float64, g.n),
		Efloor:  make([]float64, g.n),
		MBE:     make([]float64, g.n),
		SWE:     make([]float64, g.n),
	}
	prec := math.Max(in.Prec*in.Dt, 0)
	days := in.Dt / 86400

	// Fraction of precipitation falling as rain.
	fRain := (in.Ta - g.c.TMin) / (g.c.TMax - g.c.TMin)
	fRain = math.Min(math.Max(fRain, 0), 1)

	epot := PotentialEvaporation(g.c.Alpha, in.Ta, in.Rg, in.Dt)
	fVPD := math.Exp(-g.c.VPDSensitivity * math.Max(in.Vpd, 0))

	for i := 0; i < g.n; i++ {
		lai := math.Max(in.LAI[i], 0)
		w0 := g.w[i]
		swe0 := g.ice[i] + g.liq[i]

		wmax := lai * (fRain*g.c.WMaxRain + (1-fRain)*g.c.WMaxSnow)
		evap := math.Min(g.w[i], epot)
		if lai == 0 {
			evap = 0
		}
		g.w[i] -= evap
		interc := math.Min(prec, math.Max(wmax-g.w[i], 0))
		g.w[i] += interc
		// Storage above the capacity drips off when the canopy shrinks.
		drip := math.Max(g.w[i]-wmax, 0)
		g.w[i] -= drip
		trfall := prec - interc + drip

		melt := math.Min(g.ice[i], g.c.KMelt*math.Max(in.Ta, 0)*days)
		freeze := math.Min(g.liq[i], g.c.KFreeze*math.Max(-in.Ta, 0)*days)
		g.ice[i] += (1-fRain)*trfall + freeze - melt
		g.liq[i] += fRain*trfall + melt - freeze
		potinf := math.Max(g.liq[i]-g.c.RetentionFrac*g.ice[i], 0)
		g.liq[i] -= potinf
		swe := g.ice[i] + g.liq[i]

		var transpi float64
		if in.Ta > 0 && lai > 0 {
			fAmax := math.Min(g.amax[i]/g.c.Amax, 1)
			transpi = math.Max(epot-evap, 0) * (1 - math.Exp(-extinction*lai)) *
				fVPD * in.Rew[i] * fAmax
		}
		var efloor float64
		if swe <= 0 {
			efloor = in.Beta[i] * epot * math.Exp(-extinction*lai)
		}

		f.PotInf[i] = potinf
		f.Trfall[i] = trfall
		f.Interc[i] = interc
		f.Evap[i] = evap
		f.Transpi[i] = transpi
		f.Efloor[i] = efloor
		f.ET[i] = evap + transpi + efloor
		f.SWE[i] = swe
		f.MBE[i] = (g.w[i] - w0) + (swe - swe0) - (prec - evap - potinf)
	}
	for _, v := range [][]float64{f.PotInf, f.Transpi, f.Efloor, f.SWE} {
		if err := science.CheckFinite("canopy: fluxes", v); err != nil {
			return Fluxes{}, err
		}
	}
	return f, nil
}
