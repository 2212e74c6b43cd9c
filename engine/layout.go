package engine

import "math"

// ============================================================================
// LAYOUT — Drawing surface dimensions shared by every strategy
// ============================================================================
// The surface is a legend band of LegendHeight on top of a plot area of
// PlotHeight. Plot coordinates run top-down like SVG.
// ============================================================================

// Margins around the plot area.
type Margins struct {
	Top    float64 `json:"top" yaml:"top" env:"TOP"`
	Right  float64 `json:"right" yaml:"right" env:"RIGHT"`
	Bottom float64 `json:"bottom" yaml:"bottom" env:"BOTTOM"`
	Left   float64 `json:"left" yaml:"left" env:"LEFT"`
}

// Layout describes the target drawing surface.
type Layout struct {
	Width        float64 `json:"width" yaml:"width" env:"WIDTH"`
	PlotHeight   float64 `json:"plotHeight" yaml:"plot_height" env:"PLOT_HEIGHT"`
	LegendHeight float64 `json:"legendHeight" yaml:"legend_height" env:"LEGEND_HEIGHT"`
	Margin       Margins `json:"margin" yaml:"margin" envPrefix:"MARGIN_"`

	SwatchWidth   float64 `json:"swatchWidth" yaml:"swatch_width" env:"SWATCH_WIDTH"`
	SwatchHeight  float64 `json:"swatchHeight" yaml:"swatch_height" env:"SWATCH_HEIGHT"`
	SwatchPadding float64 `json:"swatchPadding" yaml:"swatch_padding" env:"SWATCH_PADDING"`
	// CharWidth estimates the advance of one legend label character.
	CharWidth float64 `json:"charWidth" yaml:"char_width" env:"CHAR_WIDTH"`

	TickCount  int     `json:"tickCount" yaml:"tick_count" env:"TICK_COUNT"`
	MarkRadius float64 `json:"markRadius" yaml:"mark_radius" env:"MARK_RADIUS"`
}

// DefaultLayout returns the dashboard's surface: 900 wide, 500 of plot
// under a 100 legend band.
func DefaultLayout() Layout {
	return Layout{
		Width:         900,
		PlotHeight:    500,
		LegendHeight:  100,
		Margin:        Margins{Top: 25, Right: 40, Bottom: 35, Left: 40},
		SwatchWidth:   50,
		SwatchHeight:  15,
		SwatchPadding: 50,
		CharWidth:     7,
		TickCount:     10,
		MarkRadius:    5,
	}
}

// TotalHeight is the legend band plus the plot area.
func (l Layout) TotalHeight() float64 { return l.LegendHeight + l.PlotHeight }

// XRange is the horizontal pixel span of the plot area.
func (l Layout) XRange() [2]float64 {
	return [2]float64{l.Margin.Left, l.Width - l.Margin.Right}
}

// YRange maps low values to the bottom of the plot area.
func (l Layout) YRange() [2]float64 {
	return [2]float64{l.TotalHeight() - l.Margin.Bottom, l.LegendHeight + l.Margin.Top}
}

// viewBox returns the visible surface. Line charts carry no legend and
// crop the legend band away.
func (l Layout) viewBox(withLegend bool) ViewBox {
	if withLegend {
		return ViewBox{X: 0, Y: 0, Width: l.Width, Height: l.TotalHeight()}
	}
	return ViewBox{X: 0, Y: l.LegendHeight, Width: l.Width, Height: l.PlotHeight}
}

// normalize fills zero values from DefaultLayout.
func (l Layout) normalize() Layout {
	d := DefaultLayout()
	if l.Width <= 0 {
		l.Width = d.Width
	}
	if l.PlotHeight <= 0 {
		l.PlotHeight = d.PlotHeight
	}
	if l.LegendHeight <= 0 {
		l.LegendHeight = d.LegendHeight
	}
	if l.Margin == (Margins{}) {
		l.Margin = d.Margin
	}
	if l.SwatchWidth <= 0 {
		l.SwatchWidth = d.SwatchWidth
	}
	if l.SwatchHeight <= 0 {
		l.SwatchHeight = d.SwatchHeight
	}
	if l.SwatchPadding <= 0 {
		l.SwatchPadding = d.SwatchPadding
	}
	if l.CharWidth <= 0 {
		l.CharWidth = d.CharWidth
	}
	if l.TickCount <= 0 {
		l.TickCount = d.TickCount
	}
	if l.MarkRadius <= 0 {
		l.MarkRadius = d.MarkRadius
	}
	l.Width = math.Max(l.Width, l.Margin.Left+l.Margin.Right+1)
	return l
}
