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

// Package science holds the checks shared by the SUSI sub-models.
// The sub-models themselves live in the packages below this one.
package science

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNumerical indicates NaN or Inf in a model state vector.
	ErrNumerical = errors.New("non-finite value in model state")

	// ErrDimension indicates a per-node or per-layer vector of the wrong length.
	ErrDimension = errors.New("vector length mismatch")
)

// CheckFinite returns an error wrapping ErrNumerical if any value in
// v is NaN or infinite. name identifies the vector in the message.
func CheckFinite(name string, v []float64) error {
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%s[%d] = %g: %w", name, i, x, ErrNumerical)
		}
	}
	return nil
}

// CheckLen returns an error wrapping ErrDimension if len(v) != n.
func CheckLen(name string, n int, v []float64) error {
	if len(v) != n {
		return fmt.Errorf("%s has length %d, want %d: %w", name, len(v), n, ErrDimension)
	}
	return nil
}

// Interp1 linearly interpolates the piecewise-linear function defined
// by the increasing knots xp and values fp at x. Values outside the
// knot range are clamped to the end values.
func Interp1(x float64, xp, fp []float64) float64 {
	if x <= xp[0] {
		return fp[0]
	}
	last := len(xp) - 1
	if x >= xp[last] {
		return fp[last]
	}
	for i := 1; i <= last; i++ {
		if x <= xp[i] {
			w := (x - xp[i-1]) / (xp[i] - xp[i-1])
			return fp[i-1] + w*(fp[i]-fp[i-1])
		}
	}
	return fp[last]
}

// Fill sets every element of v to x.
func Fill(v []float64, x float64) {
	for i := range v {
		v[i] = x
	}
}
