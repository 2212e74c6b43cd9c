// Package render draws engine geometry onto a go-chart renderer. It owns
// the drawing surface only; every position comes from the geometry.
package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/spektr-org/obsviz/engine"
)

// ============================================================================
// RENDER — Geometry → SVG / PNG
// ============================================================================
// Draw order: background, grid, bars/marks/line, axes, legend. The canvas
// is the geometry's viewbox; layout coordinates are shifted by its origin.
// ============================================================================

// ErrNoSurface is returned for geometry without a viewbox.
var ErrNoSurface = errors.New("geometry has no drawing surface")

const (
	tickLength  = 6
	tickPadding = 3
	fontSize    = 9
	strokeWidth = 1.5
)

var (
	axisColor = drawing.ColorFromHex("333333")
	gridColor = drawing.ColorFromHex("e5e5e5")
	textColor = drawing.ColorFromHex("333333")
)

// SVG writes g as an SVG document.
func SVG(w io.Writer, g engine.Geometry) error {
	return Draw(w, g, chart.SVG)
}

// PNG writes g as a PNG image.
func PNG(w io.Writer, g engine.Geometry) error {
	return Draw(w, g, chart.PNG)
}

// Draw renders g with the given go-chart renderer provider.
func Draw(w io.Writer, g engine.Geometry, provider chart.RendererProvider) error {
	vb := g.ViewBox
	if vb.Width <= 0 || vb.Height <= 0 {
		return ErrNoSurface
	}
	r, err := provider(int(math.Ceil(vb.Width)), int(math.Ceil(vb.Height)))
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	c := canvas{r: r, vb: vb}
	if font, err := chart.GetDefaultFont(); err == nil {
		r.SetFont(font)
		c.text = true
	}

	c.rect(vb.X, vb.Y, vb.Width, vb.Height, drawing.ColorWhite)
	if !g.Empty {
		c.grid(g.Grid)
		for _, b := range g.Rects {
			c.rect(b.X, b.Y, b.Width, b.Height, color(b.Color))
		}
		for _, m := range g.Marks {
			c.circle(m.X, m.Y, m.Radius, color(m.Color))
		}
		if g.Line != nil {
			c.line(*g.Line)
		}
		c.axis(g.XAxis)
		c.axis(g.YAxis)
	}
	if g.Legend != nil {
		c.legend(*g.Legend)
	}

	if err := r.Save(w); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}

// color parses "#rgb" or "#rrggbb". Unparseable codes draw as the engine's
// fallback color.
func color(code string) drawing.Color {
	hex := strings.TrimPrefix(strings.TrimSpace(code), "#")
	if len(hex) != 3 && len(hex) != 6 {
		hex = strings.TrimPrefix(engine.FallbackColor, "#")
	}
	return drawing.ColorFromHex(hex)
}

// ============================================================================
// CANVAS
// ============================================================================

type canvas struct {
	r    chart.Renderer
	vb   engine.ViewBox
	text bool
}

func (c canvas) x(v float64) int { return int(math.Round(v - c.vb.X)) }
func (c canvas) y(v float64) int { return int(math.Round(v - c.vb.Y)) }

func (c canvas) rect(x, y, w, h float64, fill drawing.Color) {
	c.r.ResetStyle()
	c.r.SetFillColor(fill)
	c.r.SetStrokeColor(drawing.ColorTransparent)
	c.r.SetStrokeWidth(0)
	c.r.MoveTo(c.x(x), c.y(y))
	c.r.LineTo(c.x(x+w), c.y(y))
	c.r.LineTo(c.x(x+w), c.y(y+h))
	c.r.LineTo(c.x(x), c.y(y+h))
	c.r.Close()
	c.r.Fill()
}

func (c canvas) circle(x, y, radius float64, fill drawing.Color) {
	c.r.ResetStyle()
	c.r.SetFillColor(fill)
	c.r.SetStrokeColor(fill)
	c.r.SetStrokeWidth(1)
	c.r.Circle(radius, c.x(x), c.y(y))
	c.r.FillStroke()
}

func (c canvas) segment(x1, y1, x2, y2 float64, stroke drawing.Color, width float64) {
	c.r.ResetStyle()
	c.r.SetStrokeColor(stroke)
	c.r.SetStrokeWidth(width)
	c.r.MoveTo(c.x(x1), c.y(y1))
	c.r.LineTo(c.x(x2), c.y(y2))
	c.r.Stroke()
}

func (c canvas) label(s string, x, y float64) {
	if !c.text || s == "" {
		return
	}
	c.r.ResetStyle()
	c.r.SetFontColor(textColor)
	c.r.SetFontSize(fontSize)
	c.r.Text(s, c.x(x), c.y(y))
}

func (c canvas) grid(lines []engine.GridLine) {
	for _, l := range lines {
		c.segment(l.X1, l.Y1, l.X2, l.Y2, gridColor, 1)
	}
}

// line strokes each defined run separately, so gaps stay open.
func (c canvas) line(l engine.LineGeometry) {
	stroke := color(l.Stroke)
	for _, seg := range l.Segments() {
		if len(seg) == 1 {
			c.circle(seg[0].X, seg[0].Y, strokeWidth, stroke)
			continue
		}
		c.r.ResetStyle()
		c.r.SetStrokeColor(stroke)
		c.r.SetStrokeWidth(strokeWidth)
		c.r.MoveTo(c.x(seg[0].X), c.y(seg[0].Y))
		for _, p := range seg[1:] {
			c.r.LineTo(c.x(p.X), c.y(p.Y))
		}
		c.r.Stroke()
	}
}

func (c canvas) axis(a engine.Axis) {
	switch a.Orient {
	case engine.OrientBottom:
		c.segment(a.From, a.Offset, a.To, a.Offset, axisColor, 1)
		for _, t := range a.Ticks {
			c.segment(t.Pos, a.Offset, t.Pos, a.Offset+tickLength, axisColor, 1)
			c.label(t.Label, t.Pos-float64(len(t.Label))*fontSize/4, a.Offset+tickLength+tickPadding+fontSize)
		}
		c.label(a.Title, a.To-float64(len(a.Title))*fontSize/2, a.Offset-tickPadding)
	case engine.OrientLeft:
		c.segment(a.Offset, a.From, a.Offset, a.To, axisColor, 1)
		for _, t := range a.Ticks {
			c.segment(a.Offset-tickLength, t.Pos, a.Offset, t.Pos, axisColor, 1)
			c.label(t.Label, a.Offset-tickLength-tickPadding-float64(len(t.Label))*fontSize/2, t.Pos+fontSize/3)
		}
		c.label(a.Title, a.Offset+tickPadding, math.Min(a.From, a.To)-tickPadding)
	}
}

func (c canvas) legend(lg engine.Legend) {
	if len(lg.Swatches) == 0 {
		return
	}
	first := lg.Swatches[0]
	c.label(lg.Title, first.X, first.Y-fontSize)
	for _, s := range lg.Swatches {
		c.rect(s.X, s.Y, s.Width, s.Height, color(s.Color))
		c.label(s.Label, s.X, s.Y+s.Height+fontSize+tickPadding)
	}
}
