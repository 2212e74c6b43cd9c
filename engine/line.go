package engine

import (
	"math"
	"strconv"
	"strings"

	"github.com/spektr-org/obsviz/schema"
)

// LineStroke is the stroke color of line charts.
const LineStroke = "#00cfe8"

// LineGeometry is an ordered point list split into segments. Breaks holds
// the indices into Points where a new segment starts after one or more
// undefined records; the first segment always starts at 0 and is not listed.
type LineGeometry struct {
	Points []Point `json:"points"`
	Breaks []int   `json:"breaks,omitempty"`
	Stroke string  `json:"stroke"`
}

// Segments splits Points at Breaks.
func (g LineGeometry) Segments() [][]Point {
	if len(g.Points) == 0 {
		return nil
	}
	out := make([][]Point, 0, len(g.Breaks)+1)
	start := 0
	for _, b := range g.Breaks {
		out = append(out, g.Points[start:b])
		start = b
	}
	return append(out, g.Points[start:])
}

// Path renders the segments as an SVG path: one M per segment, L between
// points of a segment.
func (g LineGeometry) Path() string {
	var sb strings.Builder
	for _, seg := range g.Segments() {
		for i, p := range seg {
			if i == 0 {
				sb.WriteByte('M')
			} else {
				sb.WriteByte('L')
			}
			sb.WriteString(formatCoord(p.X))
			sb.WriteByte(',')
			sb.WriteString(formatCoord(p.Y))
		}
	}
	return sb.String()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
}

// ============================================================================
// LINE
// ============================================================================

// LineBuilder draws a time-series line. A record is defined when both X and
// Y are present; the line breaks at undefined records instead of bridging
// them.
type LineBuilder struct{}

func (LineBuilder) Build(in Input) (Geometry, error) {
	in.Plot = schema.PlotLine
	in, err := in.prepare(schema.AxisX, schema.AxisY)
	if err != nil {
		return Geometry{}, err
	}
	xs, ys, ok := in.continuousScales()
	if !ok {
		return emptyGeometry(in.Plot, in.Layout, false), nil
	}

	view := in.View
	if !in.Sorted {
		view = SortByField(view, in.X)
	}

	line := &LineGeometry{Stroke: LineStroke}
	gap := false
	for i := 0; i < view.Len(); i++ {
		rec := view.At(i)
		xv, okX := rec.Scalar(in.X)
		yv, okY := rec.Scalar(in.Y)
		if !okX || !okY {
			gap = true
			continue
		}
		if gap && len(line.Points) > 0 {
			line.Breaks = append(line.Breaks, len(line.Points))
		}
		gap = false
		line.Points = append(line.Points, Point{X: xs.Map(xv), Y: ys.Map(yv)})
	}
	if len(line.Points) == 0 {
		return emptyGeometry(in.Plot, in.Layout, false), nil
	}

	g := Geometry{
		Plot:    in.Plot,
		ViewBox: in.Layout.viewBox(false),
		XAxis:   continuousAxis(xs, OrientBottom, in.Layout),
		YAxis:   continuousAxis(ys, OrientLeft, in.Layout),
		Line:    line,
	}
	g.Grid = append(gridLines(g.XAxis, in.Layout), gridLines(g.YAxis, in.Layout)...)
	return g, nil
}
