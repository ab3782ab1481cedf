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

package support

import "wmtclk/src/pll"

/*
NearestFraction finds the best approximation c/d ≈ a/b such that d <= maxDenominator.

Returns c, d and the error a/b - c/d as floating point.

The terms of a continued fraction for a/b are generated until the denominator
of the rational value would be too big. If maxDenominator >= b the result is
a/b in lowest terms.
*/
func NearestFraction(a, b, maxDenominator uint64) (c, d uint64, eps float64) {
	c, d = continuedFraction(a, b, 0, 1, maxDenominator)
	eps = float64(a)/float64(b) - float64(c)/float64(d)
	return c, d, eps
}

/*
Ratio returns the overall multiplication of the PLL described by p as a
reduced fraction, i.e. the output rate is parent * n / d.

For a VT8500 style PLL the ratio is mul / prediv, for a WM8650 style PLL it
is mul / (div1 * 2^div2). A zero multiplier gives 0/1.
*/
func Ratio(p pll.Params) (n, d uint64) {
	den := uint64(p.Prediv)
	if den == 0 {
		den = uint64(p.Divisor1) << p.Divisor2
	}
	if p.Multiplier == 0 || den == 0 {
		return 0, 1
	}
	n, d, _ = NearestFraction(uint64(p.Multiplier), den, den)
	return n, d
}

/*
Finds a continued fraction approximation for a/b. Returns the rational value
of the continued fraction expressed as two integers.

Any rational a/b can be written as

	cf(a, b) = floor(a/b) + rem(a/b) / b

and the second term inverted gives

	cf(a, b) = floor(a/b) + 1 / cf(b, rem(a/b))

The convergents are the best rational approximations for their denominator.
Recursion stops when the denominator would exceed the limit. To know that,
two extra numbers e, f are carried down; they start at 0 and 1.
*/
func continuedFraction(a, b, e, f, maxDenominator uint64) (c, d uint64) {
	term := a / b
	denom := f + term*e
	if denom > maxDenominator {
		return 1, 0
	}
	ax := a - term*b
	if ax == 0 {
		return term, 1
	}
	// a / b = term + ax/b = term + 1 / cf(b, ax),
	// cx/dx = cf(b, ax)
	// a / b = term + dx / cx = (term*cx + dx) / cx
	cx, dx := continuedFraction(b, ax, denom, e, maxDenominator)
	return term*cx + dx, cx
}
