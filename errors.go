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
	"errors"
	"fmt"

	"github.com/spatialmodel/susi/science"
)

var (
	// ErrConfig indicates malformed or inconsistent parameters. It is
	// always returned before any simulation work is done.
	ErrConfig = errors.New("invalid configuration")

	// ErrNumerical indicates NaN or Inf in a sub-model state.
	ErrNumerical = science.ErrNumerical

	// ErrDimension indicates a per-node vector of the wrong length.
	ErrDimension = science.ErrDimension
)

// SimulationError records where in the simulation a sub-model failed.
// Day is -1 for failures in the annual calculations.
type SimulationError struct {
	Scenario string
	Year     int
	Day      int
	Err      error
}

func (e *SimulationError) Error() string {
	if e.Day < 0 {
		return fmt.Sprintf("susi: scenario %q, year %d: %v", e.Scenario, e.Year, e.Err)
	}
	return fmt.Sprintf("susi: scenario %q, year %d, day %d: %v", e.Scenario, e.Year, e.Day, e.Err)
}

func (e *SimulationError) Unwrap() error { return e.Err }

// configError wraps a list of problems with ErrConfig.
func configError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("susi: %w: %w", ErrConfig, errors.Join(errs...))
}
