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

package temperature

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Mode selects the matrix representation used for the implicit
// diffusion solve. All modes produce the same temperatures to within
// floating point tolerance.
type Mode string

// Available solution modes.
const (
	Sparse      Mode = "sparse"
	Dense       Mode = "dense"
	DenseBanded Mode = "dense_banded"
)

// Solver solves the fixed implicit diffusion system A·x = b.
// The matrix is assembled once when the Solver is created.
type Solver interface {
	// Solve writes the solution for right hand side b into dst.
	Solve(dst, b []float64) error
}

// NewSolver returns a Solver of the given mode for a column of n
// nodes with Fourier number f. The first and last nodes are
// Dirichlet boundaries: their rows hold a single 1 on the diagonal
// and their coupling to the neighbouring interior node is moved to
// the right hand side by the caller, which keeps A symmetric.
func NewSolver(mode Mode, n int, f float64) (Solver, error) {
	if n < 3 {
		return nil, fmt.Errorf("temperature: need at least 3 nodes, have %d", n)
	}
	diag, off := coefficients(n, f)
	switch mode {
	case Sparse:
		return newTridiagSolver(diag, off), nil
	case Dense:
		return newDenseSolver(diag, off)
	case DenseBanded:
		return newBandSolver(diag, off)
	default:
		return nil, fmt.Errorf("temperature: invalid solution mode %q; "+
			"valid options are %q, %q and %q", mode, Sparse, Dense, DenseBanded)
	}
}

// coefficients returns the main diagonal and the (symmetric)
// off-diagonal of the system matrix.
func coefficients(n int, f float64) (diag, off []float64) {
	diag = make([]float64, n)
	off = make([]float64, n-1)
	for i := range diag {
		diag[i] = 1 + 2*f
	}
	diag[0], diag[n-1] = 1, 1
	for i := 1; i < n-2; i++ {
		off[i] = -f
	}
	// off[0] and off[n-2] couple the boundaries and stay zero.
	return diag, off
}

type tridiagSolver struct {
	a   *mat.Tridiag
	dst *mat.VecDense
}

func newTridiagSolver(diag, off []float64) *tridiagSolver {
	n := len(diag)
	dl := make([]float64, n-1)
	du := make([]float64, n-1)
	copy(dl, off)
	copy(du, off)
	d := make([]float64, n)
	copy(d, diag)
	return &tridiagSolver{
		a:   mat.NewTridiag(n, dl, d, du),
		dst: mat.NewVecDense(n, nil),
	}
}

func (s *tridiagSolver) Solve(dst, b []float64) error {
	if err := s.a.SolveVecTo(s.dst, false, mat.NewVecDense(len(b), b)); err != nil {
		return fmt.Errorf("temperature: tridiagonal solve: %w", err)
	}
	copy(dst, s.dst.RawVector().Data)
	return nil
}

type denseSolver struct {
	lu  mat.LU
	dst *mat.VecDense
}

func newDenseSolver(diag, off []float64) (*denseSolver, error) {
	n := len(diag)
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		a.Set(i, i, diag[i])
		if i < n-1 {
			a.Set(i, i+1, off[i])
			a.Set(i+1, i, off[i])
		}
	}
	s := &denseSolver{dst: mat.NewVecDense(n, nil)}
	s.lu.Factorize(a)
	if s.lu.Det() == 0 {
		return nil, fmt.Errorf("temperature: dense system matrix is singular")
	}
	return s, nil
}

func (s *denseSolver) Solve(dst, b []float64) error {
	if err := s.lu.SolveVecTo(s.dst, false, mat.NewVecDense(len(b), b)); err != nil {
		return fmt.Errorf("temperature: dense solve: %w", err)
	}
	copy(dst, s.dst.RawVector().Data)
	return nil
}

type bandSolver struct {
	chol mat.BandCholesky
	dst  *mat.VecDense
}

func newBandSolver(diag, off []float64) (*bandSolver, error) {
	n := len(diag)
	a := mat.NewSymBandDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a.SetSymBand(i, i, diag[i])
		if i < n-1 {
			a.SetSymBand(i, i+1, off[i])
		}
	}
	s := &bandSolver{dst: mat.NewVecDense(n, nil)}
	if ok := s.chol.Factorize(a); !ok {
		return nil, fmt.Errorf("temperature: banded system matrix is not positive definite")
	}
	return s, nil
}

func (s *bandSolver) Solve(dst, b []float64) error {
	if err := s.chol.SolveVecTo(s.dst, mat.NewVecDense(len(b), b)); err != nil {
		return fmt.Errorf("temperature: banded solve: %w", err)
	}
	copy(dst, s.dst.RawVector().Data)
	return nil
}
