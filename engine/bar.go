package engine

import (
	"math"

	"github.com/spektr-org/obsviz/schema"
)

// ============================================================================
// BARS — grouped means (simple) and pre-aggregated means (stacked)
// ============================================================================

// Band paddings of the bar strategies.
var (
	simpleBarPadding = BandPadding{Inner: 0.1, Outer: 0.1, Align: 0.5}
	stackedXPadding  = BandPadding{Inner: 0.1, Outer: 0, Align: 0.5}
	stackedInPadding = BandPadding{Inner: 0.05, Outer: 0.05, Align: 0.5}
)

// barValueScale builds the Y scale of a bar chart from the bar values.
// Linear axes always include zero so heights compare. Date axes start one
// tick step below the earliest mean, so every defined group gets a bar of
// non-zero height.
func barValueScale(b ScaleBuilder, field schema.Field, values []float64, l Layout) (*ContinuousScale, bool) {
	if len(values) == 0 {
		return nil, false
	}
	if ContinuousKind(field) == ScaleLinear {
		return b.ContinuousValues(field, append(values, 0), l.YRange())
	}

	ys, ok := b.ContinuousValues(field, values, l.YRange())
	if !ok {
		return nil, false
	}
	d := ys.Domain()
	step := d[1] - d[0]
	if ticks := ys.Ticks(b.TickCount); len(ticks) >= 2 {
		step = ticks[1] - ticks[0]
	}
	if step <= 0 {
		step = msDay
	}
	return b.ContinuousValues(field, append(values, d[0]-step), l.YRange())
}

// barRect spans from the bottom of the plot area up to value.
func barRect(ys *ContinuousScale, x, width, value float64) Rect {
	base := ys.Range()[0]
	top := ys.Map(value)
	return Rect{
		X:      x,
		Y:      math.Min(top, base),
		Width:  width,
		Height: math.Abs(base - top),
		Value:  RoundTo2(value),
	}
}

// ============================================================================
// BAR — SIMPLE
// ============================================================================

// BarSimpleBuilder groups the visible records by X and draws the mean of Y
// per group. Groups without any Y value keep their band but get no bar.
type BarSimpleBuilder struct{}

func (BarSimpleBuilder) Build(in Input) (Geometry, error) {
	in.Plot = schema.PlotBarSimple
	in, err := in.prepare(schema.AxisX, schema.AxisY)
	if err != nil {
		return Geometry{}, err
	}

	groups := GroupMeans(in.View, in.X, in.Y)
	values := make([]float64, 0, len(groups))
	for _, grp := range groups {
		if grp.Defined {
			values = append(values, grp.Value)
		}
	}
	ys, ok := barValueScale(in.Scales, in.Y, values, in.Layout)
	if !ok {
		return emptyGeometry(in.Plot, in.Layout, false), nil
	}

	xb := in.XBand
	if xb == nil {
		xb = in.Scales.Band(in.View, in.X, in.Layout.XRange(), simpleBarPadding)
	}
	cm := in.Colors.Assign(xb.Domain())

	rects := make([]Rect, 0, len(values))
	for _, grp := range groups {
		if !grp.Defined {
			continue
		}
		x, ok := xb.Map(grp.Key)
		if !ok {
			continue
		}
		r := barRect(ys, x, xb.Bandwidth(), grp.Value)
		r.Key = grp.Key
		r.Color = cm.Color(grp.Key)
		rects = append(rects, r)
	}

	g := Geometry{
		Plot:    in.Plot,
		ViewBox: in.Layout.viewBox(false),
		XAxis:   bandAxis(xb, OrientBottom, in.Layout),
		YAxis:   continuousAxis(ys, OrientLeft, in.Layout),
		Rects:   rects,
		Domain:  cm.Domain(),
	}
	g.Grid = gridLines(g.YAxis, in.Layout)
	return g, nil
}

// ============================================================================
// BAR — STACKED
// ============================================================================

// BarStackedBuilder draws pre-aggregated records: one bar per (X, group)
// pair, groups side by side inside each X band, colored by group.
type BarStackedBuilder struct{}

func (BarStackedBuilder) Build(in Input) (Geometry, error) {
	in.Plot = schema.PlotBarStacked
	in, err := in.prepare(schema.AxisX, schema.AxisY, schema.AxisGroup)
	if err != nil {
		return Geometry{}, err
	}

	xDomain, groupDomain := AggregatedDomains(in.Aggregated, in.X, in.Y, in.Group)
	if len(xDomain) == 0 {
		return emptyGeometry(in.Plot, in.Layout, true), nil
	}

	values := make([]float64, 0, len(in.Aggregated))
	for _, r := range in.Aggregated {
		if m, ok := r.Mean(in.Y); ok {
			values = append(values, m)
		}
	}
	ys, ok := barValueScale(in.Scales, in.Y, values, in.Layout)
	if !ok {
		return emptyGeometry(in.Plot, in.Layout, true), nil
	}

	xb := NewBandScale(xDomain, in.Layout.XRange(), stackedXPadding)
	xb.field = in.X
	inner := NewBandScale(groupDomain, [2]float64{0, xb.Bandwidth()}, stackedInPadding)
	inner.field = in.Group
	cm := in.Colors.Assign(groupDomain)

	type pair struct{ x, g string }
	drawn := make(map[pair]bool)
	rects := make([]Rect, 0, len(in.Aggregated))
	for _, r := range in.Aggregated {
		xv, okX := r.Category(in.X)
		gv, okG := r.Category(in.Group)
		m, okM := r.Mean(in.Y)
		if !okX || !okG || !okM || drawn[pair{xv, gv}] {
			continue
		}
		drawn[pair{xv, gv}] = true
		x0, _ := xb.Map(xv)
		dx, _ := inner.Map(gv)
		rect := barRect(ys, x0+dx, inner.Bandwidth(), m)
		rect.Key = xv
		rect.Group = gv
		rect.Color = cm.Color(gv)
		rects = append(rects, rect)
	}

	g := Geometry{
		Plot:    in.Plot,
		ViewBox: in.Layout.viewBox(true),
		XAxis:   bandAxis(xb, OrientBottom, in.Layout),
		YAxis:   continuousAxis(ys, OrientLeft, in.Layout),
		Rects:   rects,
		Domain:  cm.Domain(),
		Legend:  LayoutLegend(legendTitle(in.Group), cm, in.Layout),
	}
	g.Grid = gridLines(g.YAxis, in.Layout)
	return g, nil
}
