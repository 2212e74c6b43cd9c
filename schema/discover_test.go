package schema

import (
	"errors"
	"testing"
)

// ============================================================================
// HEADER DISCOVERY TESTS
// ============================================================================

var observationHeaders = []string{
	"End Year", "Intensity", "Sector", "Topic", "Insight", "URL", "Region",
	"startYear", "Impact", "Added", "Published", "Country", "Relevance",
	"Pestle", "Source", "Title", "Likelihood", "Row ID",
}

func TestMapHeadersObservationExport(t *testing.T) {
	hm, err := MapHeaders(observationHeaders)
	if err != nil {
		t.Fatalf("MapHeaders failed: %v", err)
	}

	if got := hm.Index(EndYear); got != 0 {
		t.Errorf("end_year index = %d, want 0", got)
	}
	if got := hm.Index(StartYear); got != 7 {
		t.Errorf("start_year index = %d, want 7", got)
	}
	if got := hm.Index(Published); got != 10 {
		t.Errorf("published index = %d, want 10", got)
	}

	skipped := make([]string, len(hm.Skipped))
	for i, s := range hm.Skipped {
		skipped[i] = s.Column
	}
	assertContains(t, skipped, "Row ID", "Row ID should be skipped")
	if len(hm.Skipped) != 1 {
		t.Errorf("expected exactly one skipped column, got %v", hm.Skipped)
	}
}

func TestMapHeadersMeanColumns(t *testing.T) {
	hm, err := MapHeaders([]string{"pestle", "region", "mean_intensity", "mean_sector"})
	if err != nil {
		t.Fatalf("MapHeaders failed: %v", err)
	}
	if f, ok := hm.Means[2]; !ok || f != Intensity {
		t.Errorf("column 2 should be mean of intensity, got %q (ok=%v)", f, ok)
	}
	if _, ok := hm.Means[3]; ok {
		t.Error("mean of a categorical field must not be accepted")
	}
	if hm.Index(Pestle) != 0 || hm.Index(Region) != 1 {
		t.Errorf("unexpected categorical mapping: %v", hm.Columns)
	}
}

func TestMapHeadersDuplicatesAndEmpty(t *testing.T) {
	hm, err := MapHeaders([]string{"sector", "Sector", ""})
	if err != nil {
		t.Fatalf("MapHeaders failed: %v", err)
	}
	if hm.Index(Sector) != 0 {
		t.Errorf("first occurrence should win, got index %d", hm.Index(Sector))
	}
	if len(hm.Skipped) != 2 {
		t.Errorf("expected duplicate and empty headers skipped, got %v", hm.Skipped)
	}

	if _, err := MapHeaders(nil); err == nil {
		t.Error("expected error for no columns")
	}
}

func TestSnakeCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Start Year", "start_year"},
		{"endYear", "end_year"},
		{"EndYear", "end_year"},
		{"mean-intensity", "mean_intensity"},
		{"URL", "url"},
		{"published", "published"},
	}

	for _, tt := range tests {
		got := toSnakeCase(tt.input)
		if got != tt.expected {
			t.Errorf("toSnakeCase(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"start_year", "Start Year"},
		{"Pestle", "Pestle"},
		{"Mean Intensity", "Mean Intensity"},
		{"mean_likelihood", "Mean Likelihood"},
	}

	for _, tt := range tests {
		got := toDisplayName(tt.input)
		if got != tt.expected {
			t.Errorf("toDisplayName(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

// ============================================================================
// CATALOG TESTS
// ============================================================================

func TestParseField(t *testing.T) {
	tests := []struct {
		input string
		want  Field
	}{
		{"Start Year", StartYear},
		{"published", Published},
		{"none", None},
		{" pestle ", Pestle},
	}
	for _, tt := range tests {
		got, err := Parse(tt.input)
		if err != nil {
			t.Errorf("Parse(%q) error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}

	if _, err := Parse("colour"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("Parse(colour) error = %v, want ErrUnknownField", err)
	}
}

func TestCategoricalFields(t *testing.T) {
	got := CategoricalFields()
	want := []Field{Sector, Topic, Region, Pestle, Source, Country}
	if len(got) != len(want) {
		t.Fatalf("CategoricalFields() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("CategoricalFields()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestKinds(t *testing.T) {
	m, ok := Lookup(Published)
	if !ok || m.Kind != KindDate || !m.Kind.Continuous() {
		t.Errorf("published should be a continuous date field, got %+v", m)
	}
	if !IsYear(StartYear) || IsYear(Intensity) {
		t.Error("year flag mismatch")
	}
	if KindCategorical.Continuous() {
		t.Error("categorical must not be continuous")
	}
	if MeanKey(Intensity) != "mean_intensity" {
		t.Errorf("MeanKey = %q", MeanKey(Intensity))
	}
}

// ============================================================================
// HELPERS
// ============================================================================

func assertContains(t *testing.T, slice []string, item string, msg string) {
	t.Helper()
	for _, s := range slice {
		if s == item {
			return
		}
	}
	t.Errorf("%s: %q not found in %v", msg, item, slice)
}
