package engine

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// ============================================================================
// COLOR ASSIGNER — Categorical domain → colors
// ============================================================================
// Domains up to the size of the base palette get one base color each, in
// domain order. Larger domains use the assigner's strategy for every value:
//
//   ColorRamp    — sample a continuous Spectral ramp at rank/(n-1)
//   ColorPalette — take the first n entries of an extended palette
//
// One strategy applies to a whole domain; the two are never mixed.
// ============================================================================

// ColorStrategy selects how domains larger than the base palette are colored.
type ColorStrategy string

const (
	ColorRamp    ColorStrategy = "ramp"
	ColorPalette ColorStrategy = "palette"
)

// ParseColorStrategy accepts "ramp" and "palette".
func ParseColorStrategy(s string) (ColorStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ramp", "interpolate":
		return ColorRamp, nil
	case "palette", "ordinal":
		return ColorPalette, nil
	}
	return "", fmt.Errorf("unknown color strategy %q", s)
}

// FallbackColor is used for values outside the assigned domain.
const FallbackColor = "#ccc"

// defaultColors is the fixed base palette.
var defaultColors = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
	"#14B8A6",
}

// spectral is the diverging ramp sampled for large domains.
var spectral = []string{
	"#9e0142", "#d53e4f", "#f46d43", "#fdae61", "#fee08b", "#ffffbf",
	"#e6f598", "#abdda4", "#66c2a5", "#3288bd", "#5e4fa2",
}

var spectralRGB = func() [][3]float64 {
	out := make([][3]float64, len(spectral))
	for i, hex := range spectral {
		out[i] = mustRGB(hex)
	}
	return out
}()

// ColorMap maps each value of a domain to a color.
type ColorMap struct {
	domain   []string
	colors   map[string]string
	fallback string
	strategy ColorStrategy
	complete bool
}

// Color returns the color of v, or the fallback for unknown values.
func (m ColorMap) Color(v string) string {
	if c, ok := m.colors[v]; ok {
		return c
	}
	if m.fallback == "" {
		return FallbackColor
	}
	return m.fallback
}

// Domain returns the values in assignment order.
func (m ColorMap) Domain() []string { return append([]string(nil), m.domain...) }

// Colors returns the color of each domain value, in domain order.
func (m ColorMap) Colors() []string {
	out := make([]string, len(m.domain))
	for i, v := range m.domain {
		out[i] = m.Color(v)
	}
	return out
}

// Len is the size of the domain.
func (m ColorMap) Len() int { return len(m.domain) }

// Strategy is the strategy that produced the map. Domains that fit the
// base palette report the assigner's strategy all the same.
func (m ColorMap) Strategy() ColorStrategy { return m.strategy }

// Complete is false when an extended palette ran out and some values got
// the fallback color.
func (m ColorMap) Complete() bool { return m.complete }

// ColorAssigner builds ColorMaps. It is immutable; WithPalette returns a copy.
type ColorAssigner struct {
	strategy ColorStrategy
	base     []string
	palette  []string
	fallback string
	logger   *slog.Logger
}

// NewColorAssigner builds an assigner. palette is the extended palette
// used by ColorPalette; it may be nil until loaded.
func NewColorAssigner(strategy ColorStrategy, palette []string, fallback string) *ColorAssigner {
	if strategy == "" {
		strategy = ColorRamp
	}
	if fallback == "" {
		fallback = FallbackColor
	}
	return &ColorAssigner{
		strategy: strategy,
		base:     defaultColors,
		palette:  append([]string(nil), palette...),
		fallback: fallback,
		logger:   slog.Default(),
	}
}

// WithPalette returns a copy using palette as the extended palette.
func (a *ColorAssigner) WithPalette(palette []string) *ColorAssigner {
	out := *a
	out.palette = append([]string(nil), palette...)
	return &out
}

// WithLogger returns a copy logging through l.
func (a *ColorAssigner) WithLogger(l *slog.Logger) *ColorAssigner {
	out := *a
	if l != nil {
		out.logger = l
	}
	return &out
}

// Strategy returns the configured strategy.
func (a *ColorAssigner) Strategy() ColorStrategy { return a.strategy }

// PaletteSize is the length of the extended palette.
func (a *ColorAssigner) PaletteSize() int { return len(a.palette) }

// Assign colors domain. Duplicates keep their first position. The result
// depends only on the domain and its order.
func (a *ColorAssigner) Assign(domain []string) ColorMap {
	m := ColorMap{
		colors:   make(map[string]string, len(domain)),
		fallback: a.fallback,
		strategy: a.strategy,
		complete: true,
	}
	for _, v := range domain {
		if _, dup := m.colors[v]; dup {
			continue
		}
		m.colors[v] = ""
		m.domain = append(m.domain, v)
	}

	n := len(m.domain)
	for i, v := range m.domain {
		switch {
		case n <= len(a.base):
			m.colors[v] = a.base[i]
		case a.strategy == ColorPalette:
			if i < len(a.palette) {
				m.colors[v] = a.palette[i]
			} else {
				m.colors[v] = a.fallback
				m.complete = false
			}
		default:
			m.colors[v] = rampColor(float64(i) / float64(n-1))
		}
	}
	if !m.complete {
		a.logger.Warn("palette shorter than domain",
			"domain", n, "palette", len(a.palette), "fallback", a.fallback)
	}
	return m
}

// rampColor samples the Spectral ramp at t in [0, 1] by linear
// interpolation between adjacent stops.
func rampColor(t float64) string {
	t = math.Min(1, math.Max(0, t))
	segments := float64(len(spectralRGB) - 1)
	pos := t * segments
	i := int(math.Floor(pos))
	if i >= len(spectralRGB)-1 {
		i = len(spectralRGB) - 2
	}
	f := pos - float64(i)
	a, b := spectralRGB[i], spectralRGB[i+1]
	var rgb [3]int
	for c := 0; c < 3; c++ {
		rgb[c] = int(math.Round(a[c] + (b[c]-a[c])*f))
	}
	return fmt.Sprintf("#%02x%02x%02x", rgb[0], rgb[1], rgb[2])
}

func mustRGB(hex string) [3]float64 {
	v, err := strconv.ParseUint(strings.TrimPrefix(hex, "#"), 16, 32)
	if err != nil {
		panic(err)
	}
	return [3]float64{float64(v >> 16 & 0xff), float64(v >> 8 & 0xff), float64(v & 0xff)}
}
