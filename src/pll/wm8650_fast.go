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

const (
	WM8650FastMinRate = 37_500_000
	WM8650FastMaxRate = 600_000_000

	// O1 is parent * mul, before any division
	O1Min = 900_000_000
	O1Max = 3_000_000_000
)

/*
WM8650Fast finds WM8650 PLL bits without a full search. The PLL is

	parent * M [O1] => / P [O2] => / D [O3]

with O1 in 900MHz..3GHz, O2 in 300..600MHz and D one of 1, 2, 4 or 8. Each D
covers one octave of O3:

	D = 8: 37.5MHz...75MHz
	D = 4: 75MHz...150MHz
	D = 2: 150MHz...300MHz
	D = 1: 300MHz...600MHz

so div2 = log2(D) follows from the requested rate alone. P (div1) can't be
computed directly, so each of 5, 4, 3 is tried and the one leaving the
smallest remainder of O1 / parent wins.

The multiplier is checked against the O1 window afterwards, which gives
36..120 for a 25MHz parent.
*/
type WM8650Fast struct{}

func (WM8650Fast) Name() string { return "wm8650-fast" }

// Divisor2 returns the post divider exponent for rate.
func Divisor2(rate uint64) uint32 {
	switch {
	case rate <= 75_000_000:
		return 3
	case rate <= 150_000_000:
		return 2
	case rate <= 300_000_000:
		return 1
	default:
		return 0
	}
}

// MultiplierRange returns the multipliers that keep O1 inside its window.
func MultiplierRange(parent uint64) (lo, hi uint32) {
	if parent == 0 {
		return 0, 0
	}
	return uint32((O1Min + parent - 1) / parent), uint32(O1Max / parent)
}

// Solve picks div2 from rate and the div1 leaving the smallest remainder.
func (WM8650Fast) Solve(rate, parent uint64) (Result, error) {
	if parent == 0 || rate < WM8650FastMinRate || rate > WM8650FastMaxRate {
		return Result{}, fmt.Errorf("wm8650-fast: %d Hz from %d Hz out of range: %w", rate, parent, ErrNoValidConfiguration)
	}

	div2 := Divisor2(rate)
	best := Result{Status: Approximate}
	minErr := uint64(math.MaxUint64)
	var mul uint64
	for div1 := uint32(WM8650MaxDivisor1); div1 >= WM8650MinDivisor1; div1-- {
		o1 := rate * uint64(div1) << div2
		rem := o1 % parent
		if rem >= minErr {
			continue
		}
		minErr = rem
		mul = o1 / parent
		best.Params = Params{Multiplier: uint32(mul), Divisor1: div1, Divisor2: div2}
		if rem == 0 {
			best.Status = Exact
			break
		}
	}
	best.Rate = parent * mul / (uint64(best.Params.Divisor1) << div2)

	lo, hi := MultiplierRange(parent)
	if mul < uint64(lo) || mul > uint64(hi) {
		best.Status = None
		return best, fmt.Errorf("wm8650-fast: %d Hz needs mul=%d, want %d..%d: %w", rate, mul, lo, hi, ErrMultiplierRange)
	}
	if best.Status != Exact {
		return best, fmt.Errorf("wm8650-fast: %d Hz, closest is %d Hz: %w", rate, best.Rate, ErrNoValidConfiguration)
	}
	return best, nil
}
