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

// Package esom simulates the decomposition of litter, humus and peat
// and the release of carbon and nutrients from them. One Esom is run
// for each tracked substance.
package esom

import (
	"fmt"
	"math"

	"github.com/spatialmodel/susi/science"
	"github.com/spatialmodel/susi/science/strip"
	"gonum.org/v1/gonum/floats"
)

// Substance identifies the quantity an Esom tracks.
type Substance string

// The substances tracked by the model.
const (
	Mass Substance = "Mass"
	N    Substance = "N"
	P    Substance = "P"
	K    Substance = "K"
)

// Substances lists every substance in the order they are run.
var Substances = []Substance{Mass, N, P, K}

// Compartment indexes the organic matter storages.
type Compartment int

// The storage compartments, from fresh litter down to deep peat.
const (
	L0L Compartment = iota // fresh non-woody litter
	L0W                    // fresh woody litter
	LL                     // non-woody litter
	LW                     // woody litter
	F                      // fermentation layer
	H                      // humus layer
	P1                     // peat, top section
	P2                     // peat, middle section
	P3                     // peat, bottom section
	NCompartments
)

var compartmentNames = [NCompartments]string{"L0L", "L0W", "LL", "LW", "F", "H", "P1", "P2", "P3"}

func (c Compartment) String() string {
	if c < 0 || c >= NCompartments {
		return fmt.Sprintf("Compartment(%d)", int(c))
	}
	return compartmentNames[c]
}

// next gives the compartment receiving the humified fraction of each
// compartment; -1 means the material is only mineralized.
var next = [NCompartments]Compartment{LL, LW, F, F, H, P1, -1, -1, -1}

const (
	kgPerM2ToKgPerHa = 1e4
	carbonFraction   = 0.5
	co2PerC          = 44.0 / 12.0
	docFraction      = 0.05
	hmwFraction      = 0.7

	// Section boundaries of the peat compartments [m].
	peatSection1 = 0.3
	peatSection2 = 0.6
)

// Config holds the decomposition parameters shared by all substances.
type Config struct {
	// VonP is the von Post degree of every peat layer and Dz their thickness [m].
	VonP []float64
	Dz   float64

	// Decay is the first-order decay rate [yr-1] of each compartment at 10 °C.
	Decay [NCompartments]float64

	// Humified is the fraction of decayed material passed on to the next compartment.
	Humified [NCompartments]float64

	// InitialLitter is the initial dry mass [kg m-2] of the litter,
	// fermentation and humus compartments.
	InitialLitter [P1]float64

	Q10 float64

	// Anaerobic is the relative decay rate below the water table.
	Anaerobic float64

	// PHSensitivity is the relative change in decay rate per unit pH increase.
	PHSensitivity float64

	// LitterConc and PeatConc are the mass fractions of each nutrient
	// in organic litter and in peat.
	LitterConc, PeatConc map[Substance]float64
}

// DefaultConfig returns decomposition parameters for a drained boreal
// peatland with the given peat profile.
func DefaultConfig(vonP []float64, dz float64) Config {
	return Config{
		VonP:          vonP,
		Dz:            dz,
		Decay:         [NCompartments]float64{0.45, 0.08, 0.25, 0.05, 0.1, 0.02, 0.004, 0.0015, 0.0008},
		Humified:      [NCompartments]float64{0.3, 0.5, 0.4, 0.4, 0.5, 0.3, 0, 0, 0},
		InitialLitter: [P1]float64{0.1, 0.3, 0.2, 0.5, 1.0, 2.0},
		Q10:           2,
		Anaerobic:     0.1,
		PHSensitivity: 0.2,
		LitterConc:    map[Substance]float64{Mass: 1, N: 0.012, P: 0.001, K: 0.002},
		PeatConc:      map[Substance]float64{Mass: 1, N: 0.018, P: 0.0006, K: 0.0005},
	}
}

// YearInput holds the forcing of one year of decomposition.
type YearInput struct {
	// AirT is the daily air temperature [°C].
	AirT []float64

	// PeatT is the daily peat temperature profile [°C] at depths Z [m].
	PeatT [][]float64
	Z     []float64

	// WT is the daily water table [m, negative below ground] of each node.
	WT [][]float64

	// NonWoody and Woody are the annual litter inputs [kg m-2] of each node.
	NonWoody, Woody []float64
}

// Dissolved holds dissolved organic carbon [kg C ha-1 yr-1] and its
// high and low molecular weight parts.
type Dissolved struct {
	DOC, HMW, LMW float64
}

// Export holds the dissolved carbon leaving the strip to each ditch.
type Export struct {
	West, East Dissolved
}

// Drainage reports the water discharged to each ditch during a year.
type Drainage interface {
	AnnualDischarge() (west, east float64)
}

// Esom holds the organic matter storages of one substance.
type Esom struct {
	c         Config
	substance Substance
	n         int

	initial [NCompartments]float64 // kg m-2
	section [NCompartments][2]float64
	storage [NCompartments][]float64
	dPH     float64

	// Accumulators of the most recent year, per node.
	mineralized  [NCompartments][]float64 // kg m-2
	yearStart    []float64
	outRoot      []float64
	outBelowRoot []float64
	co2          []float64
	doc          []float64
	export       Export
}

// New creates the storages of substance on n nodes.
func New(c Config, substance Substance, n int) (*Esom, error) {
	if n < 1 {
		return nil, fmt.Errorf("esom: number of nodes must be positive, got %d", n)
	}
	if len(c.VonP) == 0 || c.Dz <= 0 {
		return nil, fmt.Errorf("esom: invalid peat profile: %d layers of %g m", len(c.VonP), c.Dz)
	}
	litterConc, ok := c.LitterConc[substance]
	if !ok {
		return nil, fmt.Errorf("esom: no litter concentration for substance %q", substance)
	}
	peatConc, ok := c.PeatConc[substance]
	if !ok {
		return nil, fmt.Errorf("esom: no peat concentration for substance %q", substance)
	}
	e := &Esom{c: c, substance: substance, n: n}

	depth := float64(len(c.VonP)) * c.Dz
	bounds := []float64{0, math.Min(peatSection1, depth), math.Min(peatSection2, depth), depth}
	for j := P1; j <= P3; j++ {
		k := int(j - P1)
		e.section[j] = [2]float64{bounds[k], bounds[k+1]}
	}
	for i, vp := range c.VonP {
		prop, err := strip.Properties(vp, 1)
		if err != nil {
			return nil, fmt.Errorf("esom: layer %d: %w", i, err)
		}
		top := float64(i) * c.Dz
		mid := top + c.Dz/2
		for j := P1; j <= P3; j++ {
			if mid >= e.section[j][0] && mid < e.section[j][1] {
				e.initial[j] += prop.BulkDensity * c.Dz * peatConc
			}
		}
	}
	for j := L0L; j < P1; j++ {
		e.initial[j] = c.InitialLitter[j] * litterConc
	}
	for j := range e.storage {
		e.storage[j] = make([]float64, n)
		e.mineralized[j] = make([]float64, n)
	}
	e.yearStart = make([]float64, n)
	e.outRoot = make([]float64, n)
	e.outBelowRoot = make([]float64, n)
	e.co2 = make([]float64, n)
	e.doc = make([]float64, n)
	e.Reset()
	return e, nil
}

// Reset restores the initial storages and zeroes every accumulator.
func (e *Esom) Reset() {
	for j := range e.storage {
		science.Fill(e.storage[j], e.initial[j])
		science.Fill(e.mineralized[j], 0)
	}
	copy(e.yearStart, e.Total())
	science.Fill(e.outRoot, 0)
	science.Fill(e.outBelowRoot, 0)
	science.Fill(e.co2, 0)
	science.Fill(e.doc, 0)
	e.export = Export{}
	e.dPH = 0
}

// Substance returns the substance tracked by e.
func (e *Esom) Substance() Substance { return e.substance }

// UpdateSoilPH sets the pH increase relative to the unfertilized soil.
func (e *Esom) UpdateSoilPH(increment float64) {
	e.dPH = increment
}

func (e *Esom) phModifier() float64 {
	return math.Max(0, 1+e.c.PHSensitivity*e.dPH)
}

// aeration returns the decay modifier of compartment j for a water
// table at wt [m, negative below ground].
func (e *Esom) aeration(j Compartment, wt float64) float64 {
	wd := -wt
	if j < P1 {
		if wd > 0 {
			return 1
		}
		return e.c.Anaerobic
	}
	top, bot := e.section[j][0], e.section[j][1]
	if bot <= top {
		return e.c.Anaerobic
	}
	drained := math.Min(math.Max((wd-top)/(bot-top), 0), 1)
	return drained + (1-drained)*e.c.Anaerobic
}

// temperature returns the temperature of compartment j on day d.
func (e *Esom) temperature(j Compartment, in *YearInput, d int) float64 {
	switch {
	case j < H:
		return in.AirT[d]
	case j == H:
		return in.PeatT[d][0]
	default:
		mid := (e.section[j][0] + e.section[j][1]) / 2
		return science.Interp1(mid, in.Z, in.PeatT[d])
	}
}

func (e *Esom) check(in *YearInput) error {
	days := len(in.AirT)
	if days == 0 {
		return fmt.Errorf("esom: empty year")
	}
	if len(in.PeatT) != days || len(in.WT) != days {
		return fmt.Errorf("esom: %d days of air temperature, %d of peat temperature and %d of water table: %w",
			days, len(in.PeatT), len(in.WT), science.ErrDimension)
	}
	for d := 0; d < days; d++ {
		if err := science.CheckLen(fmt.Sprintf("esom: peat temperature of day %d", d), len(in.Z), in.PeatT[d]); err != nil {
			return err
		}
		if err := science.CheckLen(fmt.Sprintf("esom: water table of day %d", d), e.n, in.WT[d]); err != nil {
			return err
		}
	}
	if err := science.CheckLen("esom: non-woody litter", e.n, in.NonWoody); err != nil {
		return err
	}
	return science.CheckLen("esom: woody litter", e.n, in.Woody)
}

// RunYr decomposes one year of organic matter.
func (e *Esom) RunYr(in YearInput) error {
	if err := e.check(&in); err != nil {
		return err
	}
	copy(e.yearStart, e.Total())
	for j := range e.mineralized {
		science.Fill(e.mineralized[j], 0)
	}
	floats.Add(e.storage[L0L], in.NonWoody)
	floats.Add(e.storage[L0W], in.Woody)

	var rate [NCompartments]float64
	ph := e.phModifier()
	for d := range in.AirT {
		for j := L0L; j < NCompartments; j++ {
			t := e.temperature(j, &in, d)
			rate[j] = e.c.Decay[j] / 365 * math.Pow(e.c.Q10, (t-10)/10) * ph
		}
		for i := 0; i < e.n; i++ {
			wt := in.WT[d][i]
			for j := L0L; j < NCompartments; j++ {
				s := e.storage[j][i]
				if s <= 0 {
					continue
				}
				loss := s * (1 - math.Exp(-rate[j]*e.aeration(j, wt)))
				e.storage[j][i] -= loss
				hum := e.c.Humified[j] * loss
				if nj := next[j]; nj >= 0 {
					e.storage[nj][i] += hum
				}
				e.mineralized[j][i] += loss - hum
			}
		}
	}

	for i := 0; i < e.n; i++ {
		var root, below float64
		for j := L0L; j <= P1; j++ {
			root += e.mineralized[j][i]
		}
		below = e.mineralized[P2][i] + e.mineralized[P3][i]
		e.outRoot[i] = root * kgPerM2ToKgPerHa
		e.outBelowRoot[i] = below * kgPerM2ToKgPerHa
		if e.substance == Mass {
			c := (root + below) * kgPerM2ToKgPerHa * carbonFraction
			e.doc[i] = c * docFraction
			e.co2[i] = c * (1 - docFraction) * co2PerC
		}
	}
	for j := range e.storage {
		if err := science.CheckFinite("esom: "+string(e.substance)+" "+Compartment(j).String(), e.storage[j]); err != nil {
			return err
		}
	}
	return nil
}

// ComposeExport divides the dissolved carbon produced during the most
// recent year between the ditches in proportion to their discharge.
// Only the Mass substance produces dissolved carbon.
func (e *Esom) ComposeExport(h Drainage) error {
	if e.substance != Mass {
		return fmt.Errorf("esom: export is only defined for %s, not %s", Mass, e.substance)
	}
	e.export = Export{}
	west, east := h.AnnualDischarge()
	west, east = math.Max(west, 0), math.Max(east, 0)
	if west+east <= 0 {
		return nil
	}
	doc := floats.Sum(e.doc) / float64(e.n)
	split := func(share float64) Dissolved {
		d := doc * share
		return Dissolved{DOC: d, HMW: d * hmwFraction, LMW: d * (1 - hmwFraction)}
	}
	e.export.West = split(west / (west + east))
	e.export.East = split(east / (west + east))
	return nil
}

// Export returns the dissolved carbon export of the most recent year.
func (e *Esom) Export() Export { return e.export }

// OutRootLyr returns the substance released [kg ha-1 yr-1] in the root
// layer during the most recent year.
func (e *Esom) OutRootLyr() []float64 { return append([]float64(nil), e.outRoot...) }

// OutBelowRootLyr returns the substance released [kg ha-1 yr-1] below
// the root layer during the most recent year.
func (e *Esom) OutBelowRootLyr() []float64 { return append([]float64(nil), e.outBelowRoot...) }

// CO2 returns the carbon dioxide [kg ha-1 yr-1] released by
// decomposition during the most recent year. It is zero for nutrients.
func (e *Esom) CO2() []float64 { return append([]float64(nil), e.co2...) }

// Dissolved returns the dissolved organic carbon production of each
// node [kg C ha-1 yr-1] during the most recent year.
func (e *Esom) Dissolved() []Dissolved {
	out := make([]Dissolved, e.n)
	for i, d := range e.doc {
		out[i] = Dissolved{DOC: d, HMW: d * hmwFraction, LMW: d * (1 - hmwFraction)}
	}
	return out
}

// Storage returns a copy of compartment j [kg m-2].
func (e *Esom) Storage(j Compartment) []float64 {
	return append([]float64(nil), e.storage[j]...)
}

// Total returns the sum of all compartments [kg m-2] at each node.
func (e *Esom) Total() []float64 {
	t := make([]float64, e.n)
	for j := range e.storage {
		floats.Add(t, e.storage[j])
	}
	return t
}

// StorageChange returns the change in total storage [kg ha-1] during
// the most recent year.
func (e *Esom) StorageChange() []float64 {
	t := e.Total()
	floats.Sub(t, e.yearStart)
	floats.Scale(kgPerM2ToKgPerHa, t)
	return t
}
