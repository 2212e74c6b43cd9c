package engine

import "math"

// ============================================================================
// TICKS — Human-friendly tick steps for linear domains
// ============================================================================
// Steps are 1, 2 or 5 times a power of ten. For fractional steps the
// increment is carried as a negative reciprocal so that tick values are
// computed by division and stay exact (0.3, not 0.30000000000000004).
// ============================================================================

var (
	e10 = math.Sqrt(50)
	e5  = math.Sqrt(10)
	e2  = math.Sqrt(2)
)

func tickSpec(start, stop float64, count float64) (i1, i2, inc float64) {
	step := (stop - start) / math.Max(0, count)
	power := math.Floor(math.Log10(step))
	errv := step / math.Pow(10, power)
	factor := 1.0
	switch {
	case errv >= e10:
		factor = 10
	case errv >= e5:
		factor = 5
	case errv >= e2:
		factor = 2
	}
	if power < 0 {
		inc = math.Pow(10, -power) / factor
		i1 = math.Round(start * inc)
		i2 = math.Round(stop * inc)
		if i1/inc < start {
			i1++
		}
		if i2/inc > stop {
			i2--
		}
		inc = -inc
	} else {
		inc = math.Pow(10, power) * factor
		i1 = math.Round(start / inc)
		i2 = math.Round(stop / inc)
		if i1*inc < start {
			i1++
		}
		if i2*inc > stop {
			i2--
		}
	}
	if i2 < i1 && 0.5 <= count && count < 2 {
		return tickSpec(start, stop, count*2)
	}
	return i1, i2, inc
}

// linearTicks returns roughly count nicely rounded values in [start, stop].
func linearTicks(start, stop float64, count int) []float64 {
	if count <= 0 || !finite(start) || !finite(stop) {
		return nil
	}
	if start == stop {
		return []float64{start}
	}
	reverse := stop < start
	if reverse {
		start, stop = stop, start
	}
	i1, i2, inc := tickSpec(start, stop, float64(count))
	if !(i2 >= i1) {
		return nil
	}
	n := int(i2 - i1 + 1)
	ticks := make([]float64, n)
	for i := 0; i < n; i++ {
		if inc < 0 {
			ticks[i] = (i1 + float64(i)) / -inc
		} else {
			ticks[i] = (i1 + float64(i)) * inc
		}
	}
	if reverse {
		for l, r := 0, n-1; l < r; l, r = l+1, r-1 {
			ticks[l], ticks[r] = ticks[r], ticks[l]
		}
	}
	return ticks
}

func tickIncrement(start, stop float64, count int) float64 {
	_, _, inc := tickSpec(start, stop, float64(count))
	return inc
}

// tickStep returns the signed distance between adjacent ticks.
func tickStep(start, stop float64, count int) float64 {
	reverse := stop < start
	var inc float64
	if reverse {
		inc = tickIncrement(stop, start, count)
	} else {
		inc = tickIncrement(start, stop, count)
	}
	if inc < 0 {
		inc = 1 / -inc
	}
	if reverse {
		return -inc
	}
	return inc
}

// niceLinear extends [d0, d1] outward to tick step boundaries.
func niceLinear(d0, d1 float64, count int) (float64, float64) {
	if d0 == d1 || count <= 0 {
		return d0, d1
	}
	reverse := d1 < d0
	start, stop := d0, d1
	if reverse {
		start, stop = stop, start
	}
	var prestep float64
	for iter := 0; iter < 10; iter++ {
		step := tickIncrement(start, stop, count)
		if step == prestep {
			if reverse {
				return stop, start
			}
			return start, stop
		}
		switch {
		case step > 0:
			start = math.Floor(start/step) * step
			stop = math.Ceil(stop/step) * step
		case step < 0:
			start = math.Ceil(start*step) / step
			stop = math.Floor(stop*step) / step
		default:
			return d0, d1
		}
		prestep = step
	}
	// no convergence: leave the domain as it was
	return d0, d1
}

// precisionFixed is the number of fraction digits needed to tell apart
// values step apart.
func precisionFixed(step float64) int {
	step = math.Abs(step)
	if step == 0 || !finite(step) {
		return 0
	}
	p := -int(math.Floor(math.Log10(step) + 1e-9))
	if p < 0 {
		return 0
	}
	return p
}
