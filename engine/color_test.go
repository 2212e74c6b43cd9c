package engine

import (
	"fmt"
	"testing"
)

// ============================================================================
// COLOR TESTS
// ============================================================================

func domainOf(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("value-%02d", i)
	}
	return out
}

func TestAssignSmallDomainUsesBase(t *testing.T) {
	a := NewColorAssigner(ColorRamp, nil, "")
	m := a.Assign([]string{"Economic", "Political", "Social"})
	for i, v := range m.Domain() {
		if m.Color(v) != defaultColors[i] {
			t.Errorf("%s = %s, want base color %s", v, m.Color(v), defaultColors[i])
		}
	}
}

func TestAssignFortyDistinctRamp(t *testing.T) {
	a := NewColorAssigner(ColorRamp, nil, "")
	domain := domainOf(40)
	first := a.Assign(domain)
	second := a.Assign(domain)

	seen := make(map[string]string)
	for _, v := range domain {
		c := first.Color(v)
		if prev, dup := seen[c]; dup {
			t.Errorf("%s and %s share color %s", prev, v, c)
		}
		seen[c] = v
		if second.Color(v) != c {
			t.Errorf("%s: %s then %s across calls", v, c, second.Color(v))
		}
	}
	if first.Strategy() != ColorRamp || !first.Complete() {
		t.Errorf("strategy = %s complete = %v", first.Strategy(), first.Complete())
	}
}

func TestRampEndpoints(t *testing.T) {
	if got := rampColor(0); got != "#9e0142" {
		t.Errorf("ramp(0) = %s", got)
	}
	if got := rampColor(1); got != "#5e4fa2" {
		t.Errorf("ramp(1) = %s", got)
	}
}

func TestAssignPaletteStrategy(t *testing.T) {
	palette := make([]string, 50)
	for i := range palette {
		palette[i] = fmt.Sprintf("#%06x", i*1000)
	}
	m := NewColorAssigner(ColorPalette, palette, "").Assign(domainOf(40))
	for i, v := range m.Domain() {
		if m.Color(v) != palette[i] {
			t.Fatalf("%s = %s, want palette[%d] %s", v, m.Color(v), i, palette[i])
		}
	}
	if !m.Complete() {
		t.Error("palette covers the domain, map should be complete")
	}
}

func TestAssignShortPaletteFallsBack(t *testing.T) {
	a := NewColorAssigner(ColorPalette, []string{"#000001", "#000002"}, "#ccc").WithLogger(quietLogger())
	m := a.Assign(domainOf(12))
	if m.Complete() {
		t.Error("short palette should leave the map incomplete")
	}
	if got := m.Color("value-11"); got != "#ccc" {
		t.Errorf("overflow color = %s, want fallback", got)
	}
	if got := m.Color("value-01"); got != "#000002" {
		t.Errorf("second color = %s", got)
	}
}

func TestUnknownValueFallback(t *testing.T) {
	m := NewColorAssigner(ColorRamp, nil, "").Assign([]string{"a"})
	if got := m.Color("never seen"); got != FallbackColor {
		t.Errorf("unknown = %s, want %s", got, FallbackColor)
	}
}

func TestAssignDedupes(t *testing.T) {
	m := NewColorAssigner(ColorRamp, nil, "").Assign([]string{"b", "a", "b"})
	if m.Len() != 2 || m.Domain()[0] != "b" {
		t.Errorf("domain = %v, want [b a]", m.Domain())
	}
}

func TestParseColorStrategy(t *testing.T) {
	if s, err := ParseColorStrategy("Palette"); err != nil || s != ColorPalette {
		t.Errorf("ParseColorStrategy(Palette) = %s, %v", s, err)
	}
	if _, err := ParseColorStrategy("rainbow"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}
