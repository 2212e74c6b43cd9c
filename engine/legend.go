package engine

import (
	"math"
	"unicode/utf8"
)

// ============================================================================
// LEGEND — Horizontal swatch rows that wrap at the surface width
// ============================================================================

const (
	legendOriginX = 20
	legendOriginY = 30
	// legendTitleGap separates the title baseline from the first row.
	legendTitleGap = 15
	// legendLabelGap is the room under a swatch for its label.
	legendLabelGap = 20
)

// LayoutLegend places one swatch per value of cm, in domain order. An
// entry is as wide as its swatch or its label, whichever is wider; a row
// wraps when the next entry would cross the right edge.
func LayoutLegend(title string, cm ColorMap, l Layout) *Legend {
	l = l.normalize()
	lg := &Legend{Title: title}
	domain := cm.Domain()
	if len(domain) == 0 {
		return lg
	}

	right := l.Width - legendOriginX
	rowHeight := l.SwatchHeight + legendLabelGap
	x, row := float64(legendOriginX), 0
	for _, v := range domain {
		w := entryWidth(v, l)
		if x > legendOriginX && x+w > right {
			row++
			x = legendOriginX
		}
		lg.Swatches = append(lg.Swatches, Swatch{
			Label:  v,
			Color:  cm.Color(v),
			X:      x,
			Y:      legendOriginY + legendTitleGap + float64(row)*rowHeight,
			Width:  l.SwatchWidth,
			Height: l.SwatchHeight,
			Row:    row,
		})
		x += w + l.SwatchPadding
	}
	lg.Rows = row + 1
	lg.Height = legendOriginY + legendTitleGap + float64(lg.Rows)*rowHeight
	return lg
}

func entryWidth(label string, l Layout) float64 {
	return math.Max(l.SwatchWidth, float64(utf8.RuneCountInString(label))*l.CharWidth)
}
