package engine

import (
	"math"
	"sort"
	"time"
)

// ============================================================================
// TIME INTERVALS — Calendar-aware ticks for date axes
// ============================================================================
// Date values live on the axis as Unix milliseconds, always in UTC. Tick
// placement picks the calendar interval whose length is closest to the
// span divided by the tick count, then floors/ceils to that interval.
// ============================================================================

type timeUnit int

const (
	unitMillisecond timeUnit = iota
	unitSecond
	unitMinute
	unitHour
	unitDay
	unitWeek
	unitMonth
	unitYear
)

const (
	msSecond = 1e3
	msMinute = 60 * msSecond
	msHour   = 60 * msMinute
	msDay    = 24 * msHour
	msWeek   = 7 * msDay
	msMonth  = 30 * msDay
	msYear   = 365 * msDay
)

// timeInterval is a calendar unit taken every step units.
type timeInterval struct {
	unit timeUnit
	step int
}

var tickIntervals = []struct {
	interval timeInterval
	duration float64
}{
	{timeInterval{unitSecond, 1}, msSecond},
	{timeInterval{unitSecond, 5}, 5 * msSecond},
	{timeInterval{unitSecond, 15}, 15 * msSecond},
	{timeInterval{unitSecond, 30}, 30 * msSecond},
	{timeInterval{unitMinute, 1}, msMinute},
	{timeInterval{unitMinute, 5}, 5 * msMinute},
	{timeInterval{unitMinute, 15}, 15 * msMinute},
	{timeInterval{unitMinute, 30}, 30 * msMinute},
	{timeInterval{unitHour, 1}, msHour},
	{timeInterval{unitHour, 3}, 3 * msHour},
	{timeInterval{unitHour, 6}, 6 * msHour},
	{timeInterval{unitHour, 12}, 12 * msHour},
	{timeInterval{unitDay, 1}, msDay},
	{timeInterval{unitDay, 2}, 2 * msDay},
	{timeInterval{unitWeek, 1}, msWeek},
	{timeInterval{unitMonth, 1}, msMonth},
	{timeInterval{unitMonth, 3}, 3 * msMonth},
	{timeInterval{unitYear, 1}, msYear},
}

// chooseInterval picks the interval for count ticks across [start, stop] ms.
func chooseInterval(start, stop float64, count int) timeInterval {
	target := math.Abs(stop-start) / float64(count)
	i := sort.Search(len(tickIntervals), func(i int) bool {
		return tickIntervals[i].duration > target
	})
	switch {
	case i == len(tickIntervals):
		step := tickStep(start/msYear, stop/msYear, count)
		return timeInterval{unitYear, max(1, int(math.Round(math.Abs(step))))}
	case i == 0:
		step := tickStep(start, stop, count)
		return timeInterval{unitMillisecond, max(1, int(math.Round(math.Abs(step))))}
	}
	if target/tickIntervals[i-1].duration < tickIntervals[i].duration/target {
		return tickIntervals[i-1].interval
	}
	return tickIntervals[i].interval
}

func fromMillis(ms float64) time.Time {
	return time.UnixMilli(int64(math.Round(ms))).UTC()
}

func toMillis(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// unitFloor truncates t to the start of its unit.
func (iv timeInterval) unitFloor(t time.Time) time.Time {
	switch iv.unit {
	case unitSecond:
		return t.Truncate(time.Second)
	case unitMinute:
		return t.Truncate(time.Minute)
	case unitHour:
		return t.Truncate(time.Hour)
	case unitDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case unitWeek:
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return d.AddDate(0, 0, -int(d.Weekday()))
	case unitMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case unitYear:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	step := time.Duration(iv.step) * time.Millisecond
	return t.Truncate(step)
}

// unitOffset moves t by n units.
func (iv timeInterval) unitOffset(t time.Time, n int) time.Time {
	switch iv.unit {
	case unitSecond:
		return t.Add(time.Duration(n) * time.Second)
	case unitMinute:
		return t.Add(time.Duration(n) * time.Minute)
	case unitHour:
		return t.Add(time.Duration(n) * time.Hour)
	case unitDay:
		return t.AddDate(0, 0, n)
	case unitWeek:
		return t.AddDate(0, 0, 7*n)
	case unitMonth:
		return t.AddDate(0, n, 0)
	case unitYear:
		return t.AddDate(n, 0, 0)
	}
	return t.Add(time.Duration(n*iv.step) * time.Millisecond)
}

// aligned reports whether a unit boundary is also a step boundary.
func (iv timeInterval) aligned(t time.Time) bool {
	if iv.step <= 1 {
		return true
	}
	switch iv.unit {
	case unitSecond:
		return t.Second()%iv.step == 0
	case unitMinute:
		return t.Minute()%iv.step == 0
	case unitHour:
		return t.Hour()%iv.step == 0
	case unitDay:
		return (t.Day()-1)%iv.step == 0
	case unitMonth:
		return (int(t.Month())-1)%iv.step == 0
	case unitYear:
		return t.Year()%iv.step == 0
	}
	return true
}

func (iv timeInterval) floor(t time.Time) time.Time {
	f := iv.unitFloor(t)
	for !iv.aligned(f) {
		f = iv.unitOffset(f, -1)
	}
	return f
}

func (iv timeInterval) next(t time.Time) time.Time {
	t = iv.unitOffset(t, 1)
	for !iv.aligned(t) {
		t = iv.unitOffset(t, 1)
	}
	return t
}

func (iv timeInterval) ceil(t time.Time) time.Time {
	f := iv.floor(t)
	if f.Equal(t) {
		return f
	}
	return iv.next(f)
}

// rangeMillis returns every interval boundary in [start, stop] ms.
func (iv timeInterval) rangeMillis(start, stop float64) []float64 {
	var out []float64
	end := fromMillis(stop)
	for t := iv.ceil(fromMillis(start)); !t.After(end); t = iv.next(t) {
		out = append(out, toMillis(t))
	}
	return out
}

// timeTicks returns calendar-aligned ticks across [start, stop] ms.
func timeTicks(start, stop float64, count int) []float64 {
	if count <= 0 {
		return nil
	}
	if start == stop {
		return []float64{start}
	}
	reverse := stop < start
	if reverse {
		start, stop = stop, start
	}
	ticks := chooseInterval(start, stop, count).rangeMillis(start, stop)
	if reverse {
		for l, r := 0, len(ticks)-1; l < r; l, r = l+1, r-1 {
			ticks[l], ticks[r] = ticks[r], ticks[l]
		}
	}
	return ticks
}

// niceTime widens [d0, d1] ms to interval boundaries.
func niceTime(d0, d1 float64, count int) (float64, float64) {
	if d0 == d1 || count <= 0 {
		return d0, d1
	}
	reverse := d1 < d0
	if reverse {
		d0, d1 = d1, d0
	}
	iv := chooseInterval(d0, d1, count)
	lo := toMillis(iv.floor(fromMillis(d0)))
	hi := toMillis(iv.ceil(fromMillis(d1)))
	if reverse {
		return hi, lo
	}
	return lo, hi
}

// formatTime labels a tick with the coarsest unit it is aligned to.
func formatTime(ms float64) string {
	t := fromMillis(ms)
	switch {
	case !t.Equal(t.Truncate(time.Second)):
		return t.Format(".000")
	case !t.Equal(t.Truncate(time.Minute)):
		return t.Format(":05")
	case !t.Equal(t.Truncate(time.Hour)):
		return t.Format("15:04")
	case t.Hour() != 0:
		return t.Format("03 PM")
	case t.Day() != 1:
		return t.Format("Jan 02")
	case t.Month() != time.January:
		return t.Format("January")
	}
	return t.Format("2006")
}
