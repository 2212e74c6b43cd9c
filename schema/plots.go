package schema

import (
	"errors"
	"fmt"
	"slices"
)

// ErrNotEligible is returned when a field cannot drive the requested axis.
var ErrNotEligible = errors.New("field not eligible")

// ErrUnknownPlot is returned for unrecognised plot names.
var ErrUnknownPlot = errors.New("unknown plot type")

// ============================================================================
// PLOTS — Which fields may drive which axis
// ============================================================================

// Plot selects one of the four geometry strategies.
type Plot string

const (
	PlotLine       Plot = "line"
	PlotScatter    Plot = "scatter"
	PlotBarSimple  Plot = "bar"
	PlotBarStacked Plot = "stacked_bar"
)

// Plots lists every supported plot type.
func Plots() []Plot {
	return []Plot{PlotLine, PlotScatter, PlotBarSimple, PlotBarStacked}
}

// ParsePlot accepts the plot names used on the command line and in config.
func ParsePlot(s string) (Plot, error) {
	switch s {
	case "line", "":
		return PlotLine, nil
	case "scatter", "dots":
		return PlotScatter, nil
	case "bar", "bar_simple", "simple":
		return PlotBarSimple, nil
	case "stacked_bar", "stacked", "bar_stacked":
		return PlotBarStacked, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownPlot, s)
}

// Axis names a field slot of a plot.
type Axis string

const (
	AxisX     Axis = "x"
	AxisY     Axis = "y"
	AxisColor Axis = "color"
	AxisGroup Axis = "group"
)

// Eligible returns the fields allowed on an axis of a plot, in display order.
func Eligible(plot Plot, axis Axis) []Field {
	switch plot {
	case PlotLine, PlotScatter:
		switch axis {
		case AxisX:
			return []Field{Published, Added, EndYear, StartYear}
		case AxisY:
			return []Field{Intensity, Impact, Relevance, Likelihood}
		case AxisColor:
			if plot == PlotScatter {
				return CategoricalFields()
			}
		}
	case PlotBarSimple, PlotBarStacked:
		switch axis {
		case AxisX:
			return CategoricalFields()
		case AxisY:
			return []Field{Intensity, Impact, Relevance, Likelihood, EndYear, StartYear, Added, Published}
		case AxisGroup:
			if plot == PlotBarStacked {
				return CategoricalFields()
			}
		}
	}
	return nil
}

// ValidateSelection checks that field may drive axis of plot.
func ValidateSelection(plot Plot, axis Axis, field Field) error {
	if _, ok := byKey[field]; !ok {
		return fmt.Errorf("%w %q", ErrUnknownField, field)
	}
	allowed := Eligible(plot, axis)
	if !slices.Contains(allowed, field) {
		return fmt.Errorf("%w: %q cannot drive the %s axis of a %s plot", ErrNotEligible, field, axis, plot)
	}
	return nil
}

// Defaults returns the initial field selections the dashboard opens with.
func Defaults(plot Plot) (x, y Field) {
	switch plot {
	case PlotBarSimple, PlotBarStacked:
		return Pestle, Intensity
	default:
		return Published, Intensity
	}
}
