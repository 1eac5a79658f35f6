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

// Package strip simulates the water table of a peat strip between two
// parallel ditches with the one-dimensional Boussinesq equation.
package strip

import (
	"fmt"
	"math"

	"github.com/spatialmodel/susi/science"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	maxIterations = 60
	maxSubsteps   = 256
	convergence   = 1e-10 // m
	dt            = 1.0   // d
)

// Config holds the static description of a strip.
type Config struct {
	// N is the number of computation nodes, including the two ditch nodes.
	N int

	// L is the ditch spacing [m].
	L float64

	// NLyrs is the number of peat layers and DzLyr their thickness [m].
	NLyrs int
	DzLyr float64

	// VonPTop holds the von Post degree of the topmost layers; all
	// deeper layers take VonPBottom.
	VonPTop    []float64
	VonPBottom float64

	// Anisotropy is the ratio of horizontal to vertical conductivity.
	Anisotropy float64

	// InitialH is the initial water table depth [m], negative below ground.
	InitialH float64

	// Slope is the ground surface slope [%] rising from west to east.
	Slope float64

	// RootDepth is the depth [m] over which air-filled porosity is reported.
	RootDepth float64
}

// Ponding receives water that rises above the ground surface. Absorb
// is given the surplus [m] at each node and returns the amount taken up.
type Ponding interface {
	Absorb(surplus []float64) []float64
}

// Flux holds one day of lateral and surface water losses from the
// strip [m3 per m of ditch length].
type Flux struct {
	West, East, Surface, Absorbed float64
}

// Hydrology holds the water table state of a strip.
type Hydrology struct {
	c    Config
	p    *profile
	dx   float64
	elev []float64 // ground surface elevation [m]

	h    []float64 // water table depth [m], negative below ground
	hOld []float64
	hIt  []float64
	sOld []float64

	tr              []float64 // interface transmissivities
	dl, d, du, b, x []float64
	xv              *mat.VecDense

	afp      []float64
	deltas   []float64
	runoff   []float64
	absorbed []float64
	flux     Flux

	residence []float64
}

// New creates a strip from c.
func New(c Config) (*Hydrology, error) {
	if c.N < 3 {
		return nil, fmt.Errorf("strip: need at least 3 nodes, have %d", c.N)
	}
	if c.L <= 0 {
		return nil, fmt.Errorf("strip: ditch spacing must be positive, got %g", c.L)
	}
	if c.NLyrs < 1 || c.DzLyr <= 0 {
		return nil, fmt.Errorf("strip: invalid layering: %d layers of %g m", c.NLyrs, c.DzLyr)
	}
	p, err := newProfile(c.NLyrs, c.DzLyr, c.VonPTop, c.VonPBottom, c.Anisotropy)
	if err != nil {
		return nil, fmt.Errorf("strip: %w", err)
	}
	if c.InitialH > 0 || c.InitialH < p.bottom {
		return nil, fmt.Errorf("strip: initial water table %g outside the peat column [%g, 0]", c.InitialH, p.bottom)
	}
	n := c.N
	s := &Hydrology{
		c:         c,
		p:         p,
		dx:        c.L / float64(n-1),
		elev:      make([]float64, n),
		h:         make([]float64, n),
		hOld:      make([]float64, n),
		hIt:       make([]float64, n),
		sOld:      make([]float64, n),
		tr:        make([]float64, n-1),
		dl:        make([]float64, n-1),
		d:         make([]float64, n),
		du:        make([]float64, n-1),
		b:         make([]float64, n),
		x:         make([]float64, n),
		xv:        mat.NewVecDense(n, nil),
		afp:       make([]float64, n),
		deltas:    make([]float64, n),
		runoff:    make([]float64, n),
		absorbed:  make([]float64, n),
		residence: make([]float64, n),
	}
	for i := range s.elev {
		s.elev[i] = c.Slope / 100 * float64(i) * s.dx
	}
	s.Reset()
	return s, nil
}

// Reset returns the water table to the initial depth and zeroes all
// fluxes and accumulators.
func (s *Hydrology) Reset() {
	science.Fill(s.h, s.c.InitialH)
	science.Fill(s.deltas, 0)
	science.Fill(s.runoff, 0)
	science.Fill(s.absorbed, 0)
	science.Fill(s.residence, 0)
	s.flux = Flux{}
	s.updateAFP()
}

// N returns the number of nodes.
func (s *Hydrology) N() int { return s.c.N }

// Dx returns the node spacing [m].
func (s *Hydrology) Dx() float64 { return s.dx }

// RunTimestep advances the water table by one day. hWest and hEast
// are the ditch water depths [m, negative below ground] and deltas is
// the net water input [m d-1] at each node. Water rising above the
// ground is offered to m, which may be nil. When the iteration does
// not converge the day is repeated with twice as many sub-steps.
func (s *Hydrology) RunTimestep(d int, hWest, hEast float64, deltas []float64, m Ponding) error {
	n := s.c.N
	if err := science.CheckLen("strip: deltas", n, deltas); err != nil {
		return err
	}
	if err := science.CheckFinite("strip: deltas", deltas); err != nil {
		return err
	}
	copy(s.deltas, deltas)
	copy(s.hOld, s.h)
	for sub := 1; sub <= maxSubsteps; sub *= 2 {
		copy(s.hIt, s.hOld)
		s.hIt[0], s.hIt[n-1] = hWest, hEast
		s.flux = Flux{}
		ok, err := s.advance(sub)
		if err != nil {
			return fmt.Errorf("strip: day %d: %w", d, err)
		}
		if ok {
			copy(s.h, s.hIt)
			s.pond(m)
			s.updateAFP()
			return nil
		}
	}
	return fmt.Errorf("strip: day %d: water table did not converge with %d sub-steps: %w",
		d, maxSubsteps, science.ErrNumerical)
}

// advance integrates one day in sub equal steps starting from hIt,
// accumulating the ditch discharge. It reports whether every step
// converged.
func (s *Hydrology) advance(sub int) (bool, error) {
	n := s.c.N
	step := dt / float64(sub)
	a := step / (s.dx * s.dx)
	for k := 0; k < sub; k++ {
		for i, h := range s.hIt {
			s.sOld[i] = s.p.storage(h)
		}
		converged := false
		for it := 0; it < maxIterations; it++ {
			s.transmissivities(s.hIt)
			for i := 1; i < n-1; i++ {
				hl := s.elev[i-1] + s.hIt[i-1]
				hc := s.elev[i] + s.hIt[i]
				hr := s.elev[i+1] + s.hIt[i+1]
				tw, te := s.tr[i-1], s.tr[i]
				s.d[i] = s.p.capacity(s.hIt[i]) + a*(tw+te)
				s.dl[i-1] = -a * tw
				s.du[i] = -a * te
				s.b[i] = s.sOld[i] - s.p.storage(s.hIt[i]) + step*s.deltas[i] +
					a*(te*(hr-hc)-tw*(hc-hl))
			}
			// Ditch nodes are fixed.
			s.d[0], s.du[0], s.b[0] = 1, 0, 0
			s.d[n-1], s.dl[n-2], s.b[n-1] = 1, 0, 0

			t := mat.NewTridiag(n, s.dl, s.d, s.du)
			if err := t.SolveVecTo(s.xv, false, mat.NewVecDense(n, s.b)); err != nil {
				return false, err
			}
			copy(s.x, s.xv.RawVector().Data)
			floats.Add(s.hIt, s.x)
			if err := science.CheckFinite("water table", s.hIt); err != nil {
				return false, err
			}
			if floats.Norm(s.x, math.Inf(1)) < convergence {
				converged = true
				break
			}
		}
		if !converged {
			return false, nil
		}
		// Lateral flow to the ditches with the transmissivities of the
		// final iteration.
		s.flux.West += step / s.dx * s.tr[0] * ((s.elev[1] + s.hIt[1]) - (s.elev[0] + s.hIt[0]))
		s.flux.East += step / s.dx * s.tr[n-2] * ((s.elev[n-2] + s.hIt[n-2]) - (s.elev[n-1] + s.hIt[n-1]))
	}
	return true, nil
}

// transmissivities sets the interface transmissivities from the
// arithmetic mean of the neighbouring nodes.
func (s *Hydrology) transmissivities(h []float64) {
	for i := range s.tr {
		s.tr[i] = 0.5 * (s.p.transmissivity(h[i]) + s.p.transmissivity(h[i+1]))
	}
}

// pond removes water above the ground surface from the interior nodes.
func (s *Hydrology) pond(m Ponding) {
	n := s.c.N
	science.Fill(s.runoff, 0)
	science.Fill(s.absorbed, 0)
	surplus := make([]float64, n)
	ponded := false
	for i := 1; i < n-1; i++ {
		if s.h[i] > 0 {
			surplus[i] = s.h[i]
			s.h[i] = 0
			ponded = true
		}
	}
	if !ponded {
		return
	}
	if m != nil {
		taken := m.Absorb(surplus)
		for i := range taken {
			s.absorbed[i] = math.Min(math.Max(taken[i], 0), surplus[i])
		}
	}
	for i := range surplus {
		s.runoff[i] = surplus[i] - s.absorbed[i]
	}
	s.flux.Surface = floats.Sum(s.runoff[1:n-1]) * s.dx
	s.flux.Absorbed = floats.Sum(s.absorbed[1:n-1]) * s.dx
}

func (s *Hydrology) updateAFP() {
	for i, h := range s.h {
		s.afp[i] = s.p.airFilledPorosity(h, s.c.RootDepth)
	}
}

// WaterTable returns a copy of the water table depths [m].
func (s *Hydrology) WaterTable() []float64 {
	return append([]float64(nil), s.h...)
}

// AirFilledPorosity returns a copy of the root zone air-filled porosity.
func (s *Hydrology) AirFilledPorosity() []float64 {
	return append([]float64(nil), s.afp...)
}

// Runoff returns a copy of the surface runoff [m] at each node for
// the most recent day.
func (s *Hydrology) Runoff() []float64 {
	return append([]float64(nil), s.runoff...)
}

// Discharge returns the losses of the most recent day.
func (s *Hydrology) Discharge() Flux { return s.flux }

// Storage returns the water stored [m3 per m of ditch length] in the
// interior nodes relative to a column drained to its base.
func (s *Hydrology) Storage() float64 {
	var total float64
	for i := 1; i < s.c.N-1; i++ {
		total += s.p.storage(s.h[i])
	}
	return total * s.dx
}

// ResidenceTime computes the time [d] water resides in the strip at
// each node, given a year of daily water tables wts (days × nodes). It
// is the distance to the nearest ditch divided by the mean pore water
// velocity, capped at ten years. The result is stored and a copy returned.
func (s *Hydrology) ResidenceTime(wts [][]float64) ([]float64, error) {
	const maxResidence = 3650.0
	n := s.c.N
	if len(wts) == 0 {
		return nil, fmt.Errorf("strip: residence time needs at least one day of water tables")
	}
	meanH := make([]float64, n)
	gradient := make([]float64, n)
	for d, wt := range wts {
		if err := science.CheckLen(fmt.Sprintf("strip: water table of day %d", d), n, wt); err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			meanH[i] += wt[i]
			if i == 0 || i == n-1 {
				continue
			}
			hl := s.elev[i-1] + wt[i-1]
			hr := s.elev[i+1] + wt[i+1]
			gradient[i] += math.Abs(hr-hl) / (2 * s.dx)
		}
	}
	days := float64(len(wts))
	floats.Scale(1/days, meanH)
	floats.Scale(1/days, gradient)

	for i := 0; i < n; i++ {
		if i == 0 || i == n-1 {
			s.residence[i] = 0
			continue
		}
		dist := math.Min(float64(i), float64(n-1-i)) * s.dx
		thickness := meanH[i] - s.p.bottom
		v := 0.0
		if thickness > 0 {
			k := s.p.transmissivity(meanH[i]) / thickness
			v = k * gradient[i] / s.p.capacity(math.Min(meanH[i], 0))
		}
		if v <= 0 {
			s.residence[i] = maxResidence
			continue
		}
		s.residence[i] = math.Min(dist/v, maxResidence)
	}
	return append([]float64(nil), s.residence...), nil
}

// DrainDepthDevelopment returns the ditch water depth for each of
// length days. The depth changes linearly from h0 to h20y over the
// first 20 years and is constant afterwards.
func DrainDepthDevelopment(length int, h0, h20y float64) []float64 {
	const transition = 20 * 365
	out := make([]float64, length)
	for i := range out {
		if i >= transition {
			out[i] = h20y
			continue
		}
		out[i] = h0 + (h20y-h0)*float64(i)/transition
	}
	return out
}
