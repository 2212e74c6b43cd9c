package engine

import (
	"math"

	"github.com/spektr-org/obsviz/schema"
)

// ============================================================================
// AGGREGATORS — Grouping and group means via RecordView
// ============================================================================
// Grouping produces SubViews (index lists into the parent view), in
// first-seen order of the group key. Records missing the key are not
// grouped.
// ============================================================================

// Group is the records sharing one value of a categorical field.
type Group struct {
	Key   string
	View  RecordView
	Count int
	// Value is the mean of the measured field; Defined is false when no
	// record in the group carries it.
	Value   float64
	Defined bool
}

// GroupByCategory groups view by field, keeping first-seen key order.
func GroupByCategory(view RecordView, field schema.Field) []Group {
	grouped := make(map[string][]int)
	order := make([]string, 0)

	for i := 0; i < view.Len(); i++ {
		key, ok := view.At(i).Category(field)
		if !ok {
			continue
		}
		if _, exists := grouped[key]; !exists {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], i)
	}

	groups := make([]Group, 0, len(order))
	for _, key := range order {
		groups = append(groups, Group{
			Key:   key,
			View:  newSubView(view, grouped[key]),
			Count: len(grouped[key]),
		})
	}
	return groups
}

// GroupMeans groups view by x and sets each group's mean of y.
func GroupMeans(view RecordView, x, y schema.Field) []Group {
	groups := GroupByCategory(view, x)
	for i := range groups {
		groups[i].Value, groups[i].Defined = MeanOf(groups[i].View, y)
	}
	return groups
}

// MeanOf averages the non-missing values of field. It reports false when
// every value is missing.
func MeanOf(view RecordView, field schema.Field) (float64, bool) {
	var sum float64
	n := 0
	for i := 0; i < view.Len(); i++ {
		v, ok := view.At(i).Scalar(field)
		if !ok {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// ExtentOf returns the [min, max] of the non-missing values of field.
func ExtentOf(view RecordView, field schema.Field) ([2]float64, bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := 0; i < view.Len(); i++ {
		v, ok := view.At(i).Scalar(field)
		if !ok {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo > hi {
		return [2]float64{}, false
	}
	return [2]float64{lo, hi}, true
}

// ============================================================================
// AGGREGATED RECORDS
// ============================================================================

// AggregatedDomains returns the first-seen distinct x and group values of
// aggregated records that carry a mean of y.
func AggregatedDomains(records []AggregatedObservation, x, y, group schema.Field) (xs, groups []string) {
	seenX := make(map[string]bool)
	seenG := make(map[string]bool)
	for _, r := range records {
		xv, okX := r.Category(x)
		gv, okG := r.Category(group)
		if _, okM := r.Mean(y); !okX || !okG || !okM {
			continue
		}
		if !seenX[xv] {
			seenX[xv] = true
			xs = append(xs, xv)
		}
		if !seenG[gv] {
			seenG[gv] = true
			groups = append(groups, gv)
		}
	}
	return xs, groups
}

// Aggregate computes one AggregatedObservation per (x, group) pair present
// in view, carrying the mean of y. Pairs are emitted in first-seen order of
// x, then group. Pairs where no record has y are emitted without a mean.
func Aggregate(view RecordView, x, y, group schema.Field) []AggregatedObservation {
	var out []AggregatedObservation
	for _, gx := range GroupByCategory(view, x) {
		for _, gg := range GroupMeans(gx.View, group, y) {
			means := map[schema.Field]float64{}
			if gg.Defined {
				means[y] = gg.Value
			}
			out = append(out, NewAggregatedObservation(
				map[schema.Field]any{x: gx.Key, group: gg.Key},
				means,
			))
		}
	}
	return out
}

// RoundTo2 rounds to 2 decimal places.
func RoundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
