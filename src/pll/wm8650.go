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

import (
	"fmt"
	"math"
)

// WM8650 register field limits.
const (
	WM8650MinMultiplier = 3
	WM8650MaxMultiplier = 1023
	WM8650MinDivisor1   = 3
	WM8650MaxDivisor1   = 5
	WM8650MaxDivisor2   = 3

	// VCO is the output of the multiplier after divisor1
	VCOMin = 300_000_000
	VCOMax = 600_000_000
)

/*
WM8650 finds PLL bits for the WM8650 by brute force where

	f = parent * mul / (div1 * 2^div2)

subject to 300MHz <= parent * mul / div1 <= 600MHz. The result never
exceeds the requested rate.

The search order is div1 from 5 down to 3, then div2 from 3 down to 0, then
mul from 3 up to 1023. The first exact match wins. If there is none, the
closest match below the requested rate is returned with an error; on ties
the first one found is kept.
*/
type WM8650 struct{}

func (WM8650) Name() string { return "wm8650" }

// Solve runs the full search described on WM8650.
func (WM8650) Solve(rate, parent uint64) (Result, error) {
	var best Result
	if parent > maxParent {
		return best, fmt.Errorf("wm8650: parent rate %d Hz too large: %w", parent, ErrNoValidConfiguration)
	}
	bestErr := uint64(math.MaxUint64)

	for div1 := uint32(WM8650MaxDivisor1); div1 >= WM8650MinDivisor1; div1-- {
		for div2 := int(WM8650MaxDivisor2); div2 >= 0; div2-- {
			for mul := uint32(WM8650MinMultiplier); mul <= WM8650MaxMultiplier; mul++ {
				vco := parent * uint64(mul) / uint64(div1)
				if vco < VCOMin || vco > VCOMax {
					continue
				}
				tclk := wmRate(parent, mul, div1, uint32(div2))
				if tclk > rate {
					continue
				}
				p := Params{Multiplier: mul, Divisor1: div1, Divisor2: uint32(div2)}
				if tclk == rate {
					return Result{Status: Exact, Params: p, Rate: tclk}, nil
				}
				if rate-tclk < bestErr {
					bestErr = rate - tclk
					best = Result{Status: Approximate, Params: p, Rate: tclk}
				}
			}
		}
	}

	if best.Status == None {
		return best, fmt.Errorf("wm8650: %d Hz: %w", rate, ErrNoValidConfiguration)
	}
	return best, fmt.Errorf("wm8650: %d Hz, closest is %d Hz: %w", rate, best.Rate, ErrNoValidConfiguration)
}
