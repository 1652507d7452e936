package dedup

/**
* MIT License
*
* Copyright (c) 2017 Broad Institute
*
* Permission is hereby granted, free of charge, to any person obtaining a copy
* of this software and associated documentation files (the "Software"), to deal
* in the Software without restriction, including without limitation the rights
* to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
* copies of the Software, and to permit persons to whom the Software is
* furnished to do so, subject to the following conditions:
*
* The above copyright notice and this permission notice shall be included in all
* copies or substantial portions of the Software.
*
* THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
* IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
* FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
* AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
* LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
* OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
* SOFTWARE.
 */

import (
	"errors"
	"fmt"
	"math"
)

// estimateLibrarySize estimates the number of distinct molecules in the
// library from the number of observations and the number of distinct
// molecules seen, by solving the Lander-Waterman equation
//
//   C/X = 1 - exp(-N/X)
//
// for X, where N is observations and C is unique.
func estimateLibrarySize(observations, unique uint64) (uint64, error) {
	f := func(x, c, n float64) float64 {
		return c/x + math.Expm1(-n/x)
	}
	if unique == 0 || unique >= observations {
		return 0, errors.New("no duplicates")
	}
	n := float64(observations)
	c := float64(unique)
	lo, hi := 1.0, 100.0
	if f(lo*c, c, n) < 0 {
		return 0, fmt.Errorf("invalid observations and unique molecules: %v, %v", observations, unique)
	}
	for f(hi*c, c, n) >= 0 {
		hi *= 10
		if math.IsInf(hi, 1) {
			return 0, fmt.Errorf("no upper bound for library size with (%v, %v)", observations, unique)
		}
	}
	// Bisect; 40 rounds narrow the bracket far below one molecule.
	for i := 0; i < 40; i++ {
		mid := (lo + hi) / 2
		switch u := f(mid*c, c, n); {
		case u == 0:
			lo, hi = mid, mid
		case u > 0:
			lo = mid
		default:
			hi = mid
		}
		if lo == hi {
			break
		}
	}
	return uint64(c * (lo + hi) / 2), nil
}
