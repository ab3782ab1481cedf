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

package pll

import "fmt"

// VT8500 multiplier limits.
const (
	VT8500MinMultiplier = 4
	VT8500MaxMultiplier = 62
)

/*
VT8500 finds PLL bits for the VT8500 and WM8505 where

	f = (parent / prediv) * mul

and prediv is 1 or 2. Only exact matches are accepted. There is no useful
approximation for this PLL, so a failed search always returns mul=0,
prediv=1.
*/
type VT8500 struct{}

func (VT8500) Name() string { return "vt8500" }

// Solve returns the exact mul/prediv pair for rate or fails.
func (VT8500) Solve(rate, parent uint64) (Result, error) {
	fail := Result{Params: Params{Multiplier: 0, Prediv: 1}}

	if parent > maxParent {
		return fail, fmt.Errorf("vt8500: parent rate %d Hz too large: %w", parent, ErrNoValidConfiguration)
	}

	if rate < parent*VT8500MinMultiplier || rate > parent*VT8500MaxMultiplier {
		return fail, fmt.Errorf("vt8500: %d Hz out of range: %w", rate, ErrNoValidConfiguration)
	}

	// below the midpoint the prediv doubles the resolution
	prediv := uint32(1)
	if rate <= parent*VT8500MaxMultiplier/2 {
		prediv = 2
	}
	step := parent / uint64(prediv)
	if step == 0 {
		return fail, fmt.Errorf("vt8500: parent rate %d Hz too small: %w", parent, ErrNoValidConfiguration)
	}

	mul := rate / step
	if step*mul != rate {
		return fail, fmt.Errorf("vt8500: %d Hz is not a multiple of %d Hz: %w", rate, step, ErrNoValidConfiguration)
	}
	return Result{
		Status: Exact,
		Params: Params{Multiplier: uint32(mul), Prediv: prediv},
		Rate:   rate,
	}, nil
}
