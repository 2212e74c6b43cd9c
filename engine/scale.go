package engine

import (
	"math"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/spektr-org/obsviz/schema"
)

// ============================================================================
// SCALES — Domain → layout coordinate mappings
// ============================================================================
// Continuous scales (linear, time) map a float domain onto a pixel range.
// Dates are carried as Unix milliseconds. Categorical scales (band, point)
// map distinct values, in first-seen order, onto evenly spaced positions.
// ============================================================================

// ScaleKind identifies the family of a scale.
type ScaleKind string

const (
	ScaleLinear ScaleKind = "linear"
	ScaleTime   ScaleKind = "time"
	ScaleBand   ScaleKind = "band"
	ScalePoint  ScaleKind = "point"
)

// ============================================================================
// CONTINUOUS
// ============================================================================

// ContinuousScale is a linear or time scale.
type ContinuousScale struct {
	kind   ScaleKind
	field  schema.Field
	year   bool
	extent [2]float64
	domain [2]float64
	rng    [2]float64
}

// NewContinuousScale builds a scale over [lo, hi]. kind must be
// ScaleLinear or ScaleTime.
func NewContinuousScale(kind ScaleKind, lo, hi float64, rng [2]float64) *ContinuousScale {
	if kind != ScaleTime {
		kind = ScaleLinear
	}
	return &ContinuousScale{
		kind:   kind,
		extent: [2]float64{lo, hi},
		domain: [2]float64{lo, hi},
		rng:    rng,
	}
}

// Kind returns ScaleLinear or ScaleTime.
func (s *ContinuousScale) Kind() ScaleKind { return s.kind }

// Field is the record field the scale was built from, if any.
func (s *ContinuousScale) Field() schema.Field { return s.field }

// Extent is the raw [min, max] of the values the scale was built from.
func (s *ContinuousScale) Extent() [2]float64 { return s.extent }

// Domain is the (possibly nice) input interval.
func (s *ContinuousScale) Domain() [2]float64 { return s.domain }

// Range is the output interval.
func (s *ContinuousScale) Range() [2]float64 { return s.rng }

// Map projects v onto the range. A degenerate domain maps every value to
// the middle of the range.
func (s *ContinuousScale) Map(v float64) float64 {
	d0, d1 := s.domain[0], s.domain[1]
	r0, r1 := s.rng[0], s.rng[1]
	if d0 == d1 {
		return (r0 + r1) / 2
	}
	return r0 + (v-d0)/(d1-d0)*(r1-r0)
}

// Nice returns a copy whose domain is widened to round tick boundaries.
func (s *ContinuousScale) Nice(count int) *ContinuousScale {
	out := *s
	if s.kind == ScaleTime {
		out.domain[0], out.domain[1] = niceTime(s.domain[0], s.domain[1], count)
	} else {
		out.domain[0], out.domain[1] = niceLinear(s.domain[0], s.domain[1], count)
	}
	return &out
}

// Ticks returns about count tick values inside the domain.
func (s *ContinuousScale) Ticks(count int) []float64 {
	if s.kind == ScaleTime {
		return timeTicks(s.domain[0], s.domain[1], count)
	}
	return linearTicks(s.domain[0], s.domain[1], count)
}

// TickFormat returns a labeller suited to Ticks(count).
func (s *ContinuousScale) TickFormat(count int) func(float64) string {
	if s.kind == ScaleTime {
		return formatTime
	}
	digits := precisionFixed(tickStep(s.domain[0], s.domain[1], count))
	if s.year {
		return func(v float64) string {
			return strconv.FormatFloat(v, 'f', digits, 64)
		}
	}
	return func(v float64) string {
		p := math.Pow(10, float64(digits))
		return humanize.CommafWithDigits(math.Round(v*p)/p, digits)
	}
}

// ============================================================================
// BAND / POINT
// ============================================================================

// BandPadding configures the gaps of a band scale as fractions of a step.
type BandPadding struct {
	Inner float64
	Outer float64
	// Align positions the outer padding: 0 left, 0.5 centred, 1 right.
	Align float64
}

// DefaultBandPadding is used by bar charts.
var DefaultBandPadding = BandPadding{Inner: 0.1, Outer: 0.1, Align: 0.5}

// BandScale is a categorical scale. A point scale is a band scale with
// zero bandwidth.
type BandScale struct {
	kind      ScaleKind
	field     schema.Field
	domain    []string
	index     map[string]int
	rng       [2]float64
	padding   BandPadding
	step      float64
	bandwidth float64
	positions []float64
}

// NewBandScale lays out domain (deduplicated, order kept) across rng.
func NewBandScale(domain []string, rng [2]float64, padding BandPadding) *BandScale {
	padding.Inner = math.Min(1, math.Max(0, padding.Inner))
	padding.Outer = math.Max(0, padding.Outer)
	padding.Align = math.Min(1, math.Max(0, padding.Align))
	s := &BandScale{kind: ScaleBand, rng: rng, padding: padding}
	s.setDomain(domain)
	s.rescale()
	return s
}

// NewPointScale lays out domain as points with outer padding.
func NewPointScale(domain []string, rng [2]float64, padding float64) *BandScale {
	s := NewBandScale(domain, rng, BandPadding{Inner: 1, Outer: padding, Align: 0.5})
	s.kind = ScalePoint
	return s
}

func (s *BandScale) setDomain(domain []string) {
	s.index = make(map[string]int, len(domain))
	s.domain = make([]string, 0, len(domain))
	for _, v := range domain {
		if _, dup := s.index[v]; dup {
			continue
		}
		s.index[v] = len(s.domain)
		s.domain = append(s.domain, v)
	}
}

func (s *BandScale) rescale() {
	n := float64(len(s.domain))
	r0, r1 := s.rng[0], s.rng[1]
	reverse := r1 < r0
	start, stop := r0, r1
	if reverse {
		start, stop = r1, r0
	}
	s.step = (stop - start) / math.Max(1, n-s.padding.Inner+s.padding.Outer*2)
	start += (stop - start - s.step*(n-s.padding.Inner)) * s.padding.Align
	s.bandwidth = s.step * (1 - s.padding.Inner)
	s.positions = make([]float64, len(s.domain))
	for i := range s.positions {
		s.positions[i] = start + s.step*float64(i)
	}
	if reverse {
		for l, r := 0, len(s.positions)-1; l < r; l, r = l+1, r-1 {
			s.positions[l], s.positions[r] = s.positions[r], s.positions[l]
		}
	}
}

// Kind returns ScaleBand or ScalePoint.
func (s *BandScale) Kind() ScaleKind { return s.kind }

// Field is the record field the scale was built from, if any.
func (s *BandScale) Field() schema.Field { return s.field }

// Domain returns the distinct values in layout order.
func (s *BandScale) Domain() []string { return append([]string(nil), s.domain...) }

// Range is the output interval.
func (s *BandScale) Range() [2]float64 { return s.rng }

// Map returns the start of v's band. Unknown values report false.
func (s *BandScale) Map(v string) (float64, bool) {
	i, ok := s.index[v]
	if !ok {
		return 0, false
	}
	return s.positions[i], true
}

// Bandwidth is the width of each band (0 for point scales).
func (s *BandScale) Bandwidth() float64 { return s.bandwidth }

// Step is the distance between the starts of adjacent bands.
func (s *BandScale) Step() float64 { return s.step }

// ============================================================================
// SCALE BUILDER — scales from records and a runtime field selection
// ============================================================================

// ScaleBuilder derives scales from a visible record set. Values are read
// through the missing-value policy, so absent or unparsable values never
// reach a domain.
type ScaleBuilder struct {
	// TickCount is the tick granularity Nice rounds to.
	TickCount int
	// Nice widens continuous domains to tick boundaries.
	Nice bool
}

// NewScaleBuilder returns a builder that nices to tickCount ticks.
func NewScaleBuilder(tickCount int) ScaleBuilder {
	if tickCount <= 0 {
		tickCount = DefaultLayout().TickCount
	}
	return ScaleBuilder{TickCount: tickCount, Nice: true}
}

// ContinuousKind is the continuous scale family for a field.
func ContinuousKind(field schema.Field) ScaleKind {
	if meta, ok := schema.Lookup(field); ok && meta.Kind == schema.KindDate {
		return ScaleTime
	}
	return ScaleLinear
}

// Continuous builds a linear or time scale from the non-missing values of
// field in view. It reports false when no value is present, in which case
// the domain is undefined and the caller must short-circuit.
func (b ScaleBuilder) Continuous(view RecordView, field schema.Field, rng [2]float64) (*ContinuousScale, bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := 0; i < view.Len(); i++ {
		v, ok := view.At(i).Scalar(field)
		if !ok {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return b.fromExtent(field, lo, hi, rng)
}

// ContinuousValues builds a scale for field from already extracted values,
// such as aggregated means. Non-finite values are skipped.
func (b ScaleBuilder) ContinuousValues(field schema.Field, values []float64, rng [2]float64) (*ContinuousScale, bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if !finite(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return b.fromExtent(field, lo, hi, rng)
}

func (b ScaleBuilder) fromExtent(field schema.Field, lo, hi float64, rng [2]float64) (*ContinuousScale, bool) {
	if lo > hi {
		return nil, false
	}
	s := NewContinuousScale(ContinuousKind(field), lo, hi, rng)
	s.field = field
	s.year = schema.IsYear(field)
	if b.Nice {
		s = s.Nice(b.TickCount)
	}
	return s, true
}

// Band builds a band scale over the distinct values of field in view,
// in first-seen order.
func (b ScaleBuilder) Band(view RecordView, field schema.Field, rng [2]float64, padding BandPadding) *BandScale {
	s := NewBandScale(LocalDomain(view, field), rng, padding)
	s.field = field
	return s
}

// Point builds a point scale over the distinct values of field in view.
func (b ScaleBuilder) Point(view RecordView, field schema.Field, rng [2]float64, padding float64) *BandScale {
	s := NewPointScale(LocalDomain(view, field), rng, padding)
	s.field = field
	return s
}
