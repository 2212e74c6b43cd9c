package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownField is returned for names outside the field catalog.
var ErrUnknownField = errors.New("unknown field")

// ============================================================================
// SCHEMA — Describes the shape of an observation record
// ============================================================================
// Every field an observation may carry, its kind, and which axes of which
// plot it may drive. The engine resolves field selections through this
// catalog; decoders use it to map headers and JSON keys onto fields.
// ============================================================================

// Field names an observation field ("intensity", "published", "sector", ...).
type Field string

// Kind classifies how a field's values are read.
type Kind int

const (
	KindNumeric Kind = iota
	KindDate
	KindCategorical
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindDate:
		return "date"
	case KindCategorical:
		return "categorical"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Continuous reports whether values of this kind map onto a linear or time scale.
func (k Kind) Continuous() bool {
	return k == KindNumeric || k == KindDate
}

// Observation fields.
const (
	Intensity  Field = "intensity"
	Impact     Field = "impact"
	Relevance  Field = "relevance"
	Likelihood Field = "likelihood"
	StartYear  Field = "start_year"
	EndYear    Field = "end_year"
	Added      Field = "added"
	Published  Field = "published"
	Sector     Field = "sector"
	Topic      Field = "topic"
	Region     Field = "region"
	Pestle     Field = "pestle"
	Source     Field = "source"
	Country    Field = "country"
	Insight    Field = "insight"
	Title      Field = "title"
	URL        Field = "url"

	// None is the filter category meaning "no filter".
	None Field = "none"
)

// FieldMeta describes a single observation field.
type FieldMeta struct {
	Key         Field  `json:"key" yaml:"key"`
	DisplayName string `json:"displayName" yaml:"display_name"`
	Kind        Kind   `json:"kind" yaml:"kind"`
	// Year marks numeric fields holding calendar years; they are labelled
	// without digit grouping.
	Year bool `json:"year,omitempty" yaml:"year,omitempty"`
}

var fields = []FieldMeta{
	{Key: Intensity, DisplayName: "Intensity", Kind: KindNumeric},
	{Key: Impact, DisplayName: "Impact", Kind: KindNumeric},
	{Key: Relevance, DisplayName: "Relevance", Kind: KindNumeric},
	{Key: Likelihood, DisplayName: "Likelihood", Kind: KindNumeric},
	{Key: StartYear, DisplayName: "Start Year", Kind: KindNumeric, Year: true},
	{Key: EndYear, DisplayName: "End Year", Kind: KindNumeric, Year: true},
	{Key: Added, DisplayName: "Added", Kind: KindDate},
	{Key: Published, DisplayName: "Published", Kind: KindDate},
	{Key: Sector, DisplayName: "Sector", Kind: KindCategorical},
	{Key: Topic, DisplayName: "Topic", Kind: KindCategorical},
	{Key: Region, DisplayName: "Region", Kind: KindCategorical},
	{Key: Pestle, DisplayName: "Pestle", Kind: KindCategorical},
	{Key: Source, DisplayName: "Source", Kind: KindCategorical},
	{Key: Country, DisplayName: "Country", Kind: KindCategorical},
	{Key: Insight, DisplayName: "Insight", Kind: KindText},
	{Key: Title, DisplayName: "Title", Kind: KindText},
	{Key: URL, DisplayName: "URL", Kind: KindText},
}

var byKey = func() map[Field]FieldMeta {
	m := make(map[Field]FieldMeta, len(fields))
	for _, f := range fields {
		m[f.Key] = f
	}
	return m
}()

// Fields returns every known field in declaration order.
func Fields() []FieldMeta {
	out := make([]FieldMeta, len(fields))
	copy(out, fields)
	return out
}

// Lookup returns the metadata for a field.
func Lookup(f Field) (FieldMeta, bool) {
	m, ok := byKey[f]
	return m, ok
}

// Parse resolves a user-supplied field name ("Start Year", "start-year") to a Field.
func Parse(name string) (Field, error) {
	key := Field(toSnakeCase(strings.TrimSpace(name)))
	if key == None {
		return None, nil
	}
	if _, ok := byKey[key]; !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownField, name)
	}
	return key, nil
}

// FieldsOfKind returns the keys of all fields with the given kind.
func FieldsOfKind(kind Kind) []Field {
	var out []Field
	for _, f := range fields {
		if f.Kind == kind {
			out = append(out, f.Key)
		}
	}
	return out
}

// CategoricalFields lists the fields a filter may select on.
func CategoricalFields() []Field {
	return FieldsOfKind(KindCategorical)
}

// DisplayName returns a human label, falling back to the raw key.
func DisplayName(f Field) string {
	if m, ok := byKey[f]; ok {
		return m.DisplayName
	}
	return toDisplayName(string(f))
}

// IsYear reports whether f is a calendar-year numeric field.
func IsYear(f Field) bool {
	return byKey[f].Year
}

// MeanKey names the synthetic field carried by aggregated observations.
func MeanKey(f Field) string {
	return "mean_" + string(f)
}
