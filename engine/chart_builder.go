package engine

import (
	"fmt"

	"github.com/spektr-org/obsviz/schema"
)

// ============================================================================
// CHART BUILDER — Strategy dispatch from Input to Geometry
// ============================================================================
// Every strategy takes the same Input and returns a render-ready Geometry.
// Scales already valid for the current field selection may be passed in
// and are used as-is; missing ones are built from the visible records.
// ============================================================================

// Input is the shared contract of the geometry strategies.
type Input struct {
	Plot schema.Plot
	// View holds the visible records. For line charts it should already be
	// ordered by X; set Sorted so the builder does not sort again.
	View   RecordView
	Sorted bool
	// Aggregated feeds the stacked bar strategy.
	Aggregated []AggregatedObservation

	X     schema.Field
	Y     schema.Field
	Color schema.Field
	Group schema.Field

	XScale *ContinuousScale
	YScale *ContinuousScale
	XBand  *BandScale

	Colors *ColorAssigner
	Scales ScaleBuilder
	Layout Layout
}

// Builder is one geometry strategy.
type Builder interface {
	Build(in Input) (Geometry, error)
}

var builders = map[schema.Plot]Builder{
	schema.PlotLine:       LineBuilder{},
	schema.PlotScatter:    ScatterBuilder{},
	schema.PlotBarSimple:  BarSimpleBuilder{},
	schema.PlotBarStacked: BarStackedBuilder{},
}

// BuilderFor returns the strategy for plot.
func BuilderFor(plot schema.Plot) (Builder, error) {
	b, ok := builders[plot]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownPlot, plot)
	}
	return b, nil
}

// BuildChart dispatches in to the strategy selected by in.Plot.
func BuildChart(in Input) (Geometry, error) {
	b, err := BuilderFor(in.Plot)
	if err != nil {
		return Geometry{}, err
	}
	return b.Build(in)
}

// prepare fills defaults and validates the field selection for in.Plot.
func (in Input) prepare(axes ...schema.Axis) (Input, error) {
	in.Layout = in.Layout.normalize()
	if in.Scales.TickCount <= 0 {
		in.Scales = NewScaleBuilder(in.Layout.TickCount)
	}
	if in.Colors == nil {
		in.Colors = NewColorAssigner(ColorRamp, nil, FallbackColor)
	}
	if in.View == nil {
		in.View = emptyView
	}
	for _, axis := range axes {
		if err := schema.ValidateSelection(in.Plot, axis, in.field(axis)); err != nil {
			return in, err
		}
	}
	return in, nil
}

func (in Input) field(axis schema.Axis) schema.Field {
	switch axis {
	case schema.AxisX:
		return in.X
	case schema.AxisY:
		return in.Y
	case schema.AxisColor:
		return in.Color
	case schema.AxisGroup:
		return in.Group
	}
	return ""
}

// emptyGeometry is the well-defined result for inputs with nothing to draw.
func emptyGeometry(plot schema.Plot, l Layout, withLegend bool) Geometry {
	return Geometry{Plot: plot, Empty: true, ViewBox: l.viewBox(withLegend)}
}

// continuousScales returns in's X and Y scales, building the missing ones.
func (in Input) continuousScales() (x, y *ContinuousScale, ok bool) {
	x, y = in.XScale, in.YScale
	if x == nil {
		if x, ok = in.Scales.Continuous(in.View, in.X, in.Layout.XRange()); !ok {
			return nil, nil, false
		}
	}
	if y == nil {
		if y, ok = in.Scales.Continuous(in.View, in.Y, in.Layout.YRange()); !ok {
			return nil, nil, false
		}
	}
	return x, y, true
}

func legendTitle(field schema.Field) string {
	return "Color Scale: " + schema.DisplayName(field)
}
