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
	"math"

	"github.com/Knetic/govaluate"
	"gonum.org/v1/gonum/floats"
)

// derivedFunctions returns the functions available in derived output
// expressions:
//
// 'exp(x)' which applies the exponential function e^x.
//
// 'log(x)' which returns the natural logarithm of x.
//
// 'sqrt(x)' which returns the square root of x.
//
// 'abs(x)' which returns the absolute value of x.
//
// 'min(x, y)' and 'max(x, y)' which return the smaller or larger argument.
func derivedFunctions() map[string]govaluate.ExpressionFunction {
	unary := func(name string, f func(float64) float64) govaluate.ExpressionFunction {
		return func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("susi: got %d arguments for function '%s', but needs 1", len(arg), name)
			}
			x, err := number(name, arg[0])
			if err != nil {
				return nil, err
			}
			return f(x), nil
		}
	}
	binary := func(name string, f func(float64, float64) float64) govaluate.ExpressionFunction {
		return func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 2 {
				return nil, fmt.Errorf("susi: got %d arguments for function '%s', but needs 2", len(arg), name)
			}
			x, err := number(name, arg[0])
			if err != nil {
				return nil, err
			}
			y, err := number(name, arg[1])
			if err != nil {
				return nil, err
			}
			return f(x, y), nil
		}
	}
	return map[string]govaluate.ExpressionFunction{
		"exp":  unary("exp", math.Exp),
		"log":  unary("log", math.Log),
		"sqrt": unary("sqrt", math.Sqrt),
		"abs":  unary("abs", math.Abs),
		"min":  binary("min", math.Min),
		"max":  binary("max", math.Max),
	}
}

func number(function string, arg interface{}) (float64, error) {
	x, ok := arg.(float64)
	if !ok {
		return 0, fmt.Errorf("susi: function '%s' needs a number, got %T", function, arg)
	}
	return x, nil
}

// annualMean returns the strip mean of annual variable name for
// scenario r, year index y.
func (o *Outputs) annualMean(name string, r, y int) float64 {
	a := o.data[name]
	switch o.vars[name].Shape {
	case AnnualNode:
		i := a.Index1d(r, y, 0)
		return floats.Sum(a.Elements[i:i+o.d.Nodes]) / float64(o.d.Nodes)
	case Annual:
		return a.Get(r, y)
	}
	panic(fmt.Errorf("susi: %s is not an annual variable", name))
}

// evalDerived computes the derived variables of scenario r, year index y.
func (o *Outputs) evalDerived(r, y int) error {
	for _, key := range o.derivedKeys {
		e := o.derived[key]
		params := make(map[string]interface{})
		for _, v := range e.Vars() {
			params[v] = o.annualMean(v, r, y)
		}
		result, err := e.Evaluate(params)
		if err != nil {
			return fmt.Errorf("susi: evaluating %s: %w", key, err)
		}
		val, ok := result.(float64)
		if !ok {
			return fmt.Errorf("susi: %s evaluates to %T, not a number", key, result)
		}
		o.data[key].Set(val, r, y)
	}
	return nil
}
