package engine

import (
	"github.com/spektr-org/obsviz/schema"
)

// ============================================================================
// SCATTER
// ============================================================================

// DefaultColorField colors scatter marks when no field is selected.
const DefaultColorField = schema.Pestle

// ScatterBuilder draws one mark per record with both X and Y present.
// Marks are colored by a categorical field independent of X and Y; records
// missing it get the fallback color.
type ScatterBuilder struct{}

func (ScatterBuilder) Build(in Input) (Geometry, error) {
	in.Plot = schema.PlotScatter
	if in.Color == "" {
		in.Color = DefaultColorField
	}
	in, err := in.prepare(schema.AxisX, schema.AxisY, schema.AxisColor)
	if err != nil {
		return Geometry{}, err
	}
	xs, ys, ok := in.continuousScales()
	if !ok {
		return emptyGeometry(in.Plot, in.Layout, true), nil
	}

	type survivor struct {
		x, y     float64
		category string
	}
	var kept []survivor
	var domain []string
	seen := make(map[string]bool)
	for i := 0; i < in.View.Len(); i++ {
		rec := in.View.At(i)
		xv, okX := rec.Scalar(in.X)
		yv, okY := rec.Scalar(in.Y)
		if !okX || !okY {
			continue
		}
		c, _ := rec.Category(in.Color)
		if c != "" && !seen[c] {
			seen[c] = true
			domain = append(domain, c)
		}
		kept = append(kept, survivor{x: xv, y: yv, category: c})
	}
	if len(kept) == 0 {
		return emptyGeometry(in.Plot, in.Layout, true), nil
	}

	cm := in.Colors.Assign(domain)
	marks := make([]Mark, 0, len(kept))
	for _, s := range kept {
		marks = append(marks, Mark{
			Point:    Point{X: xs.Map(s.x), Y: ys.Map(s.y)},
			Radius:   in.Layout.MarkRadius,
			Color:    cm.Color(s.category),
			Category: s.category,
		})
	}

	g := Geometry{
		Plot:    in.Plot,
		ViewBox: in.Layout.viewBox(true),
		XAxis:   continuousAxis(xs, OrientBottom, in.Layout),
		YAxis:   continuousAxis(ys, OrientLeft, in.Layout),
		Marks:   marks,
		Domain:  cm.Domain(),
		Legend:  LayoutLegend(legendTitle(in.Color), cm, in.Layout),
	}
	g.Grid = append(gridLines(g.XAxis, in.Layout), gridLines(g.YAxis, in.Layout)...)
	return g, nil
}
