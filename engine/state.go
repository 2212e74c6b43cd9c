package engine

import (
	"fmt"
	"strings"

	"github.com/spektr-org/obsviz/schema"
)

// ============================================================================
// STATE — Explicit selection transitions
// ============================================================================
// A State is a value. Every Set* method validates and returns a new State
// and leaves the receiver untouched, so callers decide when to rebuild.
// Diff tells a rebuild which cached pieces the transition invalidated.
// ============================================================================

// State is the complete user selection driving a rebuild.
type State struct {
	Plot   schema.Plot  `json:"plot" yaml:"plot"`
	X      schema.Field `json:"x" yaml:"x"`
	Y      schema.Field `json:"y" yaml:"y"`
	Color  schema.Field `json:"color" yaml:"color"`
	Group  schema.Field `json:"group" yaml:"group"`
	Filter FilterState  `json:"filter" yaml:"filter"`
	Page   PageState    `json:"page" yaml:"page"`

	// defaultPageSize is restored whenever the filter changes.
	defaultPageSize int
}

// DefaultState opens on a line chart of published against intensity.
func DefaultState() State {
	return NewState(schema.PlotLine, DefaultPageSize)
}

// NewState returns the default selection for plot with pages of pageSize.
func NewState(plot schema.Plot, pageSize int) State {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	x, y := schema.Defaults(plot)
	return State{
		Plot:            plot,
		X:               x,
		Y:               y,
		Color:           DefaultColorField,
		Group:           schema.Sector,
		Filter:          NoFilter(),
		Page:            PageState{Size: pageSize, Index: 0},
		defaultPageSize: pageSize,
	}
}

// DefaultPageSize returns the size the page resets to on filter changes.
func (s State) DefaultPageSize() int {
	if s.defaultPageSize <= 0 {
		return DefaultPageSize
	}
	return s.defaultPageSize
}

// WithDefaultPageSize returns s with a different reset size.
func (s State) WithDefaultPageSize(size int) State {
	if size > 0 {
		s.defaultPageSize = size
	}
	return s
}

// Validate checks every selection against the field catalog.
func (s State) Validate() error {
	if p, err := schema.ParsePlot(string(s.Plot)); err != nil || p != s.Plot {
		return fmt.Errorf("%w %q", ErrUnknownPlot, s.Plot)
	}
	if err := schema.ValidateSelection(s.Plot, schema.AxisX, s.X); err != nil {
		return err
	}
	if err := schema.ValidateSelection(s.Plot, schema.AxisY, s.Y); err != nil {
		return err
	}
	if err := validateCategorical(s.Color); err != nil {
		return err
	}
	if err := validateCategorical(s.Group); err != nil {
		return err
	}
	if err := s.Filter.Validate(); err != nil {
		return err
	}
	return s.Page.Validate()
}

func validateCategorical(f schema.Field) error {
	meta, ok := schema.Lookup(f)
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownField, f)
	}
	if meta.Kind != schema.KindCategorical {
		return fmt.Errorf("%w: %q is %s, not categorical", ErrFieldKind, f, meta.Kind)
	}
	return nil
}

// SetXField selects the X field. It must be eligible for the current plot.
func (s State) SetXField(f schema.Field) (State, error) {
	if err := schema.ValidateSelection(s.Plot, schema.AxisX, f); err != nil {
		return s, err
	}
	s.X = f
	return s, nil
}

// SetYField selects the Y field. It must be eligible for the current plot.
func (s State) SetYField(f schema.Field) (State, error) {
	if err := schema.ValidateSelection(s.Plot, schema.AxisY, f); err != nil {
		return s, err
	}
	s.Y = f
	return s, nil
}

// SetColorField selects the categorical field scatter marks are colored by.
func (s State) SetColorField(f schema.Field) (State, error) {
	if err := validateCategorical(f); err != nil {
		return s, err
	}
	s.Color = f
	return s, nil
}

// SetGroupField selects the categorical field stacked bars are split by.
func (s State) SetGroupField(f schema.Field) (State, error) {
	if err := validateCategorical(f); err != nil {
		return s, err
	}
	s.Group = f
	return s, nil
}

// SetPlot switches strategy. Field selections the new plot accepts are
// kept; the rest fall back to the plot's defaults.
func (s State) SetPlot(p schema.Plot) (State, error) {
	parsed, err := schema.ParsePlot(string(p))
	if err != nil {
		return s, err
	}
	dx, dy := schema.Defaults(parsed)
	s.Plot = parsed
	if schema.ValidateSelection(parsed, schema.AxisX, s.X) != nil {
		s.X = dx
	}
	if schema.ValidateSelection(parsed, schema.AxisY, s.Y) != nil {
		s.Y = dy
	}
	return s, nil
}

// SetFilter selects records by category value. Any change to the filter
// returns to page 0 at the default page size.
func (s State) SetFilter(category schema.Field, value string) (State, error) {
	if category == "" {
		category = schema.None
	}
	f := FilterState{Category: category, Value: strings.TrimSpace(value)}
	if category == schema.None {
		f.Value = ""
	}
	if err := f.Validate(); err != nil {
		return s, err
	}
	if f != s.Filter {
		s.Filter = f
		s.Page = PageState{Size: s.DefaultPageSize(), Index: 0}
	}
	return s, nil
}

// SetPage selects a page index. Indices past the end clamp on rebuild.
func (s State) SetPage(index int) (State, error) {
	p := PageState{Size: s.Page.Size, Index: index}
	if err := p.Validate(); err != nil {
		return s, err
	}
	s.Page = p
	return s, nil
}

// SetPageSize changes the page size keeping the index, so the new offset
// is Index × size.
func (s State) SetPageSize(size int) (State, error) {
	p := Resize(s.Page, size)
	if err := p.Validate(); err != nil {
		return s, err
	}
	s.Page = p
	return s, nil
}

// ============================================================================
// INVALIDATION
// ============================================================================

// Invalidation lists what a transition made stale.
type Invalidation struct {
	// Visible: the filtered and paged record subset must be reselected.
	// Everything downstream of it is stale too.
	Visible bool
	XScale  bool
	YScale  bool
	// Sort: the line X ordering must be recomputed.
	Sort bool
	// Strategy: a different geometry builder runs.
	Strategy bool
	// Aggregated: the pre-aggregated records must be fetched again.
	Aggregated bool
	Colors     bool
}

// Any reports whether anything was invalidated.
func (i Invalidation) Any() bool {
	return i != Invalidation{}
}

// Everything is the invalidation of a new data snapshot.
func Everything() Invalidation {
	return Invalidation{
		Visible: true, XScale: true, YScale: true, Sort: true,
		Strategy: true, Aggregated: true, Colors: true,
	}
}

// plotFamily groups plots that share scales: line and scatter both map
// continuous X and Y across the visible records.
func plotFamily(p schema.Plot) string {
	switch p {
	case schema.PlotLine, schema.PlotScatter:
		return "xy"
	}
	return string(p)
}

// Diff returns what moving from prev to next invalidates.
func Diff(prev, next State) Invalidation {
	var inv Invalidation
	if prev.Filter != next.Filter || prev.Page != next.Page {
		inv.Visible = true
	}
	familyChanged := plotFamily(prev.Plot) != plotFamily(next.Plot)
	inv.Strategy = prev.Plot != next.Plot

	inv.XScale = inv.Visible || familyChanged || prev.X != next.X
	inv.YScale = inv.Visible || familyChanged || prev.Y != next.Y
	inv.Sort = inv.Visible || prev.X != next.X
	inv.Colors = inv.Visible || inv.Strategy || prev.Color != next.Color || prev.Group != next.Group ||
		(next.Plot == schema.PlotBarSimple && prev.X != next.X)

	if next.Plot == schema.PlotBarStacked {
		inv.Aggregated = prev.Plot != next.Plot || prev.X != next.X || prev.Y != next.Y || prev.Group != next.Group
	}
	return inv
}
