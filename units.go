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

package susi

import (
	"fmt"

	"github.com/ctessum/unit"
)

var (
	kilogramPerMeter2 = unit.Dimensions{unit.MassDim: 1, unit.LengthDim: -2}
	meterPerSecond    = unit.MeterPerSecond
)

// Conversion factors used in the simulation loop. They are checked
// once at start up.
var (
	// kgHaToKgM2 converts litter inputs from kg ha-1 to kg m-2.
	kgHaToKgM2 = mustFactor(unit.Div(unit.New(1, unit.Kilogram), unit.New(1e4, unit.Meter2)), kilogramPerMeter2)

	// mmToM converts water fluxes from mm to m.
	mmToM = mustFactor(unit.New(1e-3, unit.Meter), unit.Meter)

	// mmDayToMMs converts precipitation from mm d-1 to mm s-1.
	mmDayToMMs = mustFactor(unit.Div(unit.New(1e-3, unit.Meter), unit.New(86400, unit.Second)), meterPerSecond) * 1e3
)

// mustFactor returns the SI value of u after checking that it has
// dimensions d.
func mustFactor(u *unit.Unit, d unit.Dimensions) float64 {
	if err := u.Check(d); err != nil {
		panic(fmt.Errorf("susi: unit conversion: %v", err))
	}
	return u.Value()
}
