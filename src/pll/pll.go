/*
 * Copyright 2025 Ted Dunning
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package pll computes register fields for the PLLs found in the VIA VT8500,
WM8505 and WonderMedia WM8650 clock trees.

Each solver takes a requested output rate and the rate of the parent
oscillator (both in Hz) and searches for integer multiplier and divider
values that reproduce the requested rate through the PLL's transfer
function. Solvers are stateless values and safe for concurrent use.

A failed search still returns a Result. Its Status tells the caller whether
the parameters are a usable approximation or nothing at all.
*/
package pll

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ParentRate is the oscillator feeding the PLLs on all supported boards.
const ParentRate = 25_000_000

// maxParent is the largest parent rate for which parent times any
// multiplier still fits in a uint64.
const maxParent = math.MaxUint64 / WM8650MaxMultiplier

var (
	// ErrNoValidConfiguration means no parameter combination in the solver's
	// search space reproduces the requested rate within the hardware limits.
	ErrNoValidConfiguration = errors.New("no valid PLL configuration")

	// ErrMultiplierRange is returned when the best candidate needs a
	// multiplier the hardware can't hold.
	ErrMultiplierRange = fmt.Errorf("multiplier out of range: %w", ErrNoValidConfiguration)

	// ErrUnknownSolver is returned by Lookup for unregistered names.
	ErrUnknownSolver = errors.New("unknown solver")
)

// Status grades a Result.
type Status int

const (
	// None means nothing usable was found.
	None Status = iota
	// Approximate means the parameters are valid but miss the requested rate.
	Approximate
	// Exact means the parameters reproduce the requested rate.
	Exact
)

func (s Status) String() string {
	switch s {
	case Exact:
		return "exact"
	case Approximate:
		return "approximate"
	default:
		return "none"
	}
}

func (s Status) MarshalYAML() (any, error) {
	return s.String(), nil
}

// Params holds the PLL register fields. VT8500 style PLLs use Multiplier and
// Prediv, WM8650 style PLLs use Multiplier, Divisor1 and Divisor2 where the
// post divider is 2^Divisor2.
type Params struct {
	Multiplier uint32 `yaml:"multiplier"`
	Prediv     uint32 `yaml:"prediv,omitempty"`
	Divisor1   uint32 `yaml:"divisor1,omitempty"`
	Divisor2   uint32 `yaml:"divisor2,omitempty"`
}

func (p Params) String() string {
	if p.Prediv != 0 {
		return fmt.Sprintf("mul=%d prediv=%d", p.Multiplier, p.Prediv)
	}
	return fmt.Sprintf("mul=%d div1=%d div2=%d", p.Multiplier, p.Divisor1, p.Divisor2)
}

// Result is the outcome of a single search. Rate is the output rate the
// parameters actually produce (0 if nothing was found).
type Result struct {
	Status Status `yaml:"status"`
	Params Params `yaml:"params"`
	Rate   uint64 `yaml:"rate"`
}

// Ok reports whether the requested rate was hit exactly.
func (r Result) Ok() bool {
	return r.Status == Exact
}

// Solver is implemented by every PLL parameter search strategy.
type Solver interface {
	Name() string
	Solve(rate, parent uint64) (Result, error)
}

var solvers = map[string]Solver{
	VT8500{}.Name():     VT8500{},
	WM8650{}.Name():     WM8650{},
	WM8650Fast{}.Name(): WM8650Fast{},
}

// Lookup returns the solver registered under name.
func Lookup(name string) (Solver, error) {
	s, ok := solvers[name]
	if !ok {
		return nil, fmt.Errorf("pll: %q: %w", name, ErrUnknownSolver)
	}
	return s, nil
}

// Names lists the registered solvers in sorted order.
func Names() []string {
	r := make([]string, 0, len(solvers))
	for name := range solvers {
		r = append(r, name)
	}
	sort.Strings(r)
	return r
}

// wmRate is the WM8650 transfer function.
func wmRate(parent uint64, mul, div1, div2 uint32) uint64 {
	return parent * uint64(mul) / (uint64(div1) << div2)
}
