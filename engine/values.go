package engine

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/spektr-org/obsviz/schema"
)

// ============================================================================
// MISSING-VALUE POLICY
// ============================================================================
// A field value is missing when it is absent, nil, an empty string, or fails
// number/date parsing. Every consumer reads values through these accessors,
// so absence, null and invalid input are treated the same everywhere. A nil
// date is never coerced to the epoch.
// ============================================================================

// dateLayouts are tried before cast's generic parser. The first is the
// format the observation API serialises dates in.
var dateLayouts = []string{
	"January, 02 2006 15:04:05",
	"January, 2 2006 15:04:05",
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// Number returns a numeric field value.
func (o Observation) Number(f schema.Field) (float64, bool) {
	return toNumber(o.values[f])
}

// Time returns a date field value.
func (o Observation) Time(f schema.Field) (time.Time, bool) {
	return toTime(o.values[f])
}

// Category returns a categorical field value, trimmed.
func (o Observation) Category(f schema.Field) (string, bool) {
	return toText(o.values[f])
}

// Text returns a free-text field value, trimmed.
func (o Observation) Text(f schema.Field) (string, bool) {
	return toText(o.values[f])
}

// Scalar returns the value of a continuous field on a float axis: numbers
// as-is, dates as Unix milliseconds. Categorical and text fields are
// always missing.
func (o Observation) Scalar(f schema.Field) (float64, bool) {
	meta, ok := schema.Lookup(f)
	if !ok {
		return 0, false
	}
	switch meta.Kind {
	case schema.KindNumeric:
		return o.Number(f)
	case schema.KindDate:
		t, ok := o.Time(f)
		if !ok {
			return 0, false
		}
		return float64(t.UnixMilli()), true
	}
	return 0, false
}

func toNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case nil, bool:
		return 0, false
	case string:
		x = strings.TrimSpace(x)
		if x == "" {
			return 0, false
		}
		v = x
	case json.Number:
		if x == "" {
			return 0, false
		}
	case time.Time:
		return 0, false
	}
	n, err := cast.ToFloat64E(v)
	if err != nil || !finite(n) {
		return 0, false
	}
	return n, true
}

func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case nil, bool, json.Number, int, int32, int64, uint, uint32, uint64, float32, float64:
		// bare numbers are never dates
		return time.Time{}, false
	case time.Time:
		if x.IsZero() {
			return time.Time{}, false
		}
		return x.UTC(), true
	case *time.Time:
		if x == nil || x.IsZero() {
			return time.Time{}, false
		}
		return x.UTC(), true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		v = s
	}
	t, err := cast.ToTimeE(v)
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func toText(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
