package engine

import (
	"github.com/spektr-org/obsviz/schema"
)

// ============================================================================
// AXES — Tick lists, titles and grid lines
// ============================================================================

// axisTitle labels an axis with the raw field key and a direction arrow.
func axisTitle(field schema.Field, orient Orientation) string {
	if orient == OrientLeft {
		return "↑ " + string(field)
	}
	if meta, ok := schema.Lookup(field); ok && meta.Kind == schema.KindDate {
		return string(field) + " date →"
	}
	return string(field) + " →"
}

// continuousAxis lays out ticks of s along an axis.
func continuousAxis(s *ContinuousScale, orient Orientation, l Layout) Axis {
	ax := newAxis(s.Field(), orient, l)
	format := s.TickFormat(l.TickCount)
	for _, v := range s.Ticks(l.TickCount) {
		ax.Ticks = append(ax.Ticks, Tick{Value: v, Label: format(v), Pos: s.Map(v)})
	}
	return ax
}

// bandAxis places one tick at the centre of every band.
func bandAxis(s *BandScale, orient Orientation, l Layout) Axis {
	ax := newAxis(s.Field(), orient, l)
	half := s.Bandwidth() / 2
	for i, v := range s.Domain() {
		pos, _ := s.Map(v)
		ax.Ticks = append(ax.Ticks, Tick{Value: float64(i), Label: v, Pos: pos + half})
	}
	return ax
}

func newAxis(field schema.Field, orient Orientation, l Layout) Axis {
	ax := Axis{Orient: orient, Title: axisTitle(field, orient)}
	if orient == OrientLeft {
		r := l.YRange()
		ax.Offset = l.Margin.Left
		ax.From, ax.To = r[0], r[1]
	} else {
		r := l.XRange()
		ax.Offset = l.TotalHeight() - l.Margin.Bottom
		ax.From, ax.To = r[0], r[1]
	}
	return ax
}

// gridLines draws a guide across the plot area at every tick of ax.
func gridLines(ax Axis, l Layout) []GridLine {
	xr, yr := l.XRange(), l.YRange()
	out := make([]GridLine, 0, len(ax.Ticks))
	for _, t := range ax.Ticks {
		if ax.Orient == OrientLeft {
			out = append(out, GridLine{X1: xr[0], Y1: t.Pos, X2: xr[1], Y2: t.Pos})
		} else {
			out = append(out, GridLine{X1: t.Pos, Y1: yr[1], X2: t.Pos, Y2: yr[0]})
		}
	}
	return out
}
