package engine

import (
	"encoding/json"
	"maps"

	"github.com/spektr-org/obsviz/schema"
)

// ============================================================================
// OBSERVATION ENGINE TYPES
// ============================================================================
// Observation (raw record), AggregatedObservation (pre-computed group mean),
// and the geometry descriptors the chart builders emit.
// ============================================================================

// ============================================================================
// OBSERVATION — one record as delivered by the data source
// ============================================================================

// Observation holds the raw decoded value of each field (number, string,
// time.Time, json.Number or nil). Values are read through the missing-value
// policy in values.go; an Observation is never mutated after construction.
type Observation struct {
	values map[schema.Field]any
}

// NewObservation copies values into a new Observation.
func NewObservation(values map[schema.Field]any) Observation {
	return Observation{values: maps.Clone(values)}
}

// Raw returns the undecoded value of a field and whether it was present.
func (o Observation) Raw(f schema.Field) (any, bool) {
	v, ok := o.values[f]
	return v, ok
}

// Fields returns the number of fields carried by the record.
func (o Observation) Fields() int { return len(o.values) }

// MarshalJSON writes the raw field values keyed by wire name.
func (o Observation) MarshalJSON() ([]byte, error) {
	if o.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(o.values)
}

// AggregatedObservation is a partial observation plus pre-computed means,
// one per (grouping field, stacking field) pair. Means are keyed by the
// source field: Means[intensity] is the wire field "mean_intensity".
type AggregatedObservation struct {
	Observation
	means map[schema.Field]float64
}

// NewAggregatedObservation builds an aggregated record.
func NewAggregatedObservation(values map[schema.Field]any, means map[schema.Field]float64) AggregatedObservation {
	return AggregatedObservation{
		Observation: NewObservation(values),
		means:       maps.Clone(means),
	}
}

// Mean returns mean_<f>. NaN and infinite means are reported missing.
func (a AggregatedObservation) Mean(f schema.Field) (float64, bool) {
	v, ok := a.means[f]
	if !ok || !finite(v) {
		return 0, false
	}
	return v, true
}

// MarshalJSON writes the record values plus one mean_<field> key per mean.
func (a AggregatedObservation) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a.values)+len(a.means))
	for k, v := range a.values {
		out[string(k)] = v
	}
	for f, v := range a.means {
		if finite(v) {
			out[schema.MeanKey(f)] = v
		}
	}
	return json.Marshal(out)
}

// ============================================================================
// GEOMETRY — render-ready output
// ============================================================================

// Point is a position in layout coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Mark is a scatter marker.
type Mark struct {
	Point
	Radius   float64 `json:"r"`
	Color    string  `json:"color"`
	Category string  `json:"category,omitempty"`
}

// Rect is a bar.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Color  string  `json:"color"`
	Key    string  `json:"key"`             // X category
	Group  string  `json:"group,omitempty"` // stacking category
	Value  float64 `json:"value"`           // mean the height encodes
}

// Tick is one axis tick.
type Tick struct {
	Value float64 `json:"value"`
	Label string  `json:"label"`
	Pos   float64 `json:"pos"`
}

// Orientation of an axis.
type Orientation string

const (
	OrientBottom Orientation = "bottom"
	OrientLeft   Orientation = "left"
)

// Axis describes an axis line, its ticks and title.
type Axis struct {
	Orient Orientation `json:"orient"`
	Title  string      `json:"title"`
	// Offset is the translate of the axis: y for bottom axes, x for left axes.
	Offset float64 `json:"offset"`
	From   float64 `json:"from"`
	To     float64 `json:"to"`
	Ticks  []Tick  `json:"ticks"`
}

// GridLine is a background guide at a tick position.
type GridLine struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// ViewBox is the visible portion of the drawing surface.
type ViewBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Geometry is the output of a chart strategy. Exactly one of Line, Marks
// or Rects is populated for a non-empty result.
type Geometry struct {
	Plot    schema.Plot `json:"plot"`
	Empty   bool        `json:"empty"`
	ViewBox ViewBox     `json:"viewBox"`
	XAxis   Axis        `json:"xAxis"`
	YAxis   Axis        `json:"yAxis"`
	Grid    []GridLine  `json:"grid,omitempty"`

	Line  *LineGeometry `json:"line,omitempty"`
	Marks []Mark        `json:"marks,omitempty"`
	Rects []Rect        `json:"rects,omitempty"`

	// Domain is the categorical domain the colors were assigned from.
	Domain []string `json:"domain,omitempty"`
	Legend *Legend  `json:"legend,omitempty"`
}

// ============================================================================
// LEGEND
// ============================================================================

// Swatch is one legend entry.
type Swatch struct {
	Label  string  `json:"label"`
	Color  string  `json:"color"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Row    int     `json:"row"`
}

// Legend lays out one swatch per domain value, wrapped into rows.
type Legend struct {
	Title    string   `json:"title"`
	Swatches []Swatch `json:"swatches"`
	Rows     int      `json:"rows"`
	Height   float64  `json:"height"`
}
