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
	"fmt"
	"math"

	"github.com/spatialmodel/susi/science"
)

// MossConfig holds the water holding properties of the moss layer [mm].
type MossConfig struct {
	// FieldCapacity is the storage above which water drains freely.
	FieldCapacity float64

	// MaxStorage is the largest storage, reached only by absorbing
	// ponded water from below.
	MaxStorage float64

	// InitialStorage is the storage at the start of a scenario.
	InitialStorage float64
}

// DefaultMossConfig returns parameters for a feather moss carpet.
func DefaultMossConfig() MossConfig {
	return MossConfig{
		FieldCapacity:  10,
		MaxStorage:     25,
		InitialStorage: 10,
	}
}

// Validate checks that the storages are ordered.
func (c MossConfig) Validate() error {
	if c.FieldCapacity <= 0 || c.MaxStorage < c.FieldCapacity {
		return fmt.Errorf("moss: field capacity %g and maximum storage %g are inconsistent", c.FieldCapacity, c.MaxStorage)
	}
	if c.InitialStorage < 0 || c.InitialStorage > c.MaxStorage {
		return fmt.Errorf("moss: initial storage %g outside [0, %g]", c.InitialStorage, c.MaxStorage)
	}
	return nil
}

// MossLayer holds the water storage of the ground moss at every node.
type MossLayer struct {
	c MossConfig
	n int
	w []float64 // mm
}

// NewMossLayer creates a moss layer of n nodes.
func NewMossLayer(c MossConfig, n int) *MossLayer {
	m := &MossLayer{c: c, n: n, w: make([]float64, n)}
	m.Reset()
	return m
}

// Reset restores the initial storage.
func (m *MossLayer) Reset() {
	science.Fill(m.w, m.c.InitialStorage)
}

// Storage returns a copy of the moss water storage [mm].
func (m *MossLayer) Storage() []float64 {
	return append([]float64(nil), m.w...)
}

// Ree returns the relative evaporation efficiency of each node, the
// storage as a fraction of field capacity.
func (m *MossLayer) Ree() []float64 {
	out := make([]float64, m.n)
	for i, w := range m.w {
		out[i] = math.Min(1, w/m.c.FieldCapacity)
	}
	return out
}

// Interception routes the canopy infiltration potinf [mm] through the
// moss, evaporating up to efloor [mm] from the storage. It returns the
// water passed on to the peat, the actual floor evaporation and the
// mass balance error, all in mm.
func (m *MossLayer) Interception(potinf, efloor []float64) (outPotinf, outEfloor, mbe []float64, err error) {
	if err := science.CheckLen("moss: potinf", m.n, potinf); err != nil {
		return nil, nil, nil, err
	}
	if err := science.CheckLen("moss: efloor", m.n, efloor); err != nil {
		return nil, nil, nil, err
	}
	outPotinf = make([]float64, m.n)
	outEfloor = make([]float64, m.n)
	mbe = make([]float64, m.n)
	for i := range m.w {
		w0 := m.w[i]
		m.w[i] += potinf[i]
		e := math.Min(m.w[i], math.Max(efloor[i], 0))
		m.w[i] -= e
		drain := math.Max(m.w[i]-m.c.FieldCapacity, 0)
		m.w[i] -= drain
		outPotinf[i] = drain
		outEfloor[i] = e
		mbe[i] = (m.w[i] - w0) - (potinf[i] - e - drain)
	}
	return outPotinf, outEfloor, mbe, nil
}

// Absorb takes up water ponding on the peat surface. surplus and the
// returned amounts are in m.
func (m *MossLayer) Absorb(surplus []float64) []float64 {
	out := make([]float64, len(surplus))
	for i := range surplus {
		if i >= m.n || surplus[i] <= 0 {
			continue
		}
		room := math.Max(m.c.MaxStorage-m.w[i], 0)
		take := math.Min(surplus[i]*1000, room)
		m.w[i] += take
		out[i] = take / 1000
	}
	return out
}
