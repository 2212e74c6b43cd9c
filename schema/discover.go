package schema

import (
	"fmt"
	"strings"
	"unicode"
)

// ============================================================================
// HEADER DISCOVERY — Map external column names onto catalog fields
// ============================================================================
// Exports arrive with headers like "Start Year", "startYear" or
// "mean_intensity". Each header is normalised to snake_case and matched
// against the catalog; unknown columns are reported, never fatal.
// ============================================================================

// SkippedColumn records why a column was not mapped onto a field.
type SkippedColumn struct {
	Column string `json:"column"`
	Reason string `json:"reason"`
}

// HeaderMap maps column positions onto catalog fields.
type HeaderMap struct {
	// Columns holds the field for each column position, "" when skipped.
	Columns []Field
	// Means holds columns carrying a pre-aggregated "mean_<field>" value.
	Means map[int]Field
	// Skipped lists columns that matched nothing.
	Skipped []SkippedColumn
}

// Index returns the column position of a field, or -1.
func (h HeaderMap) Index(f Field) int {
	for i, c := range h.Columns {
		if c == f {
			return i
		}
	}
	return -1
}

// MapHeaders classifies each header. Duplicate headers keep the first
// occurrence and skip the rest.
func MapHeaders(headers []string) (HeaderMap, error) {
	if len(headers) == 0 {
		return HeaderMap{}, fmt.Errorf("no columns")
	}

	hm := HeaderMap{
		Columns: make([]Field, len(headers)),
		Means:   make(map[int]Field),
	}
	seen := make(map[string]bool)

	for i, raw := range headers {
		key := toSnakeCase(strings.TrimSpace(raw))
		if key == "" {
			hm.Skipped = append(hm.Skipped, SkippedColumn{Column: raw, Reason: "empty header"})
			continue
		}
		if seen[key] {
			hm.Skipped = append(hm.Skipped, SkippedColumn{Column: raw, Reason: "duplicate header"})
			continue
		}
		seen[key] = true

		if base, ok := strings.CutPrefix(key, "mean_"); ok {
			if m, known := byKey[Field(base)]; known && m.Kind.Continuous() {
				hm.Means[i] = m.Key
				continue
			}
		}
		if _, ok := byKey[Field(key)]; ok {
			hm.Columns[i] = Field(key)
			continue
		}
		hm.Skipped = append(hm.Skipped, SkippedColumn{Column: raw, Reason: "not an observation field"})
	}

	return hm, nil
}

// ============================================================================
// STRING UTILITIES
// ============================================================================

// toSnakeCase converts "Column Name" or "columnName" → "column_name".
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) && i > 0 {
			prev := rune(s[i-1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) {
				result.WriteRune('_')
			}
		}
		result.WriteRune(r)
	}

	s = result.String()
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "__", "_")
	s = strings.Trim(s, "_")
	return s
}

// toDisplayName cleans a key for human display.
// "start_year" → "Start Year", "pestle" → "Pestle"
func toDisplayName(s string) string {
	if strings.Contains(s, " ") {
		return strings.TrimSpace(s)
	}

	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")

	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
		}
	}
	return strings.Join(words, " ")
}
