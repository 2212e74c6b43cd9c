package helpers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cast"

	"github.com/spektr-org/obsviz/engine"
	"github.com/spektr-org/obsviz/schema"
)

// ============================================================================
// CSV HELPER — Parses observation exports into engine records
// ============================================================================
// Consumer reads the CSV from wherever it lives (file, HTTP, object store).
// Headers are matched against the field catalog; unknown columns are
// skipped and reported. Cell values stay raw strings so the engine's
// missing-value policy decides what counts as a number or a date.
// ============================================================================

// ParseCSV parses an observation export. Each row becomes one Observation.
func ParseCSV(data []byte) ([]engine.Observation, []schema.SkippedColumn, error) {
	reader, hm, err := openCSV(data)
	if err != nil {
		return nil, nil, err
	}

	var records []engine.Observation
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			continue // skip malformed rows
		}

		values := make(map[schema.Field]any, len(row))
		for i, cell := range row {
			if i >= len(hm.Columns) {
				break
			}
			if f := hm.Columns[i]; f != "" {
				values[f] = strings.TrimSpace(cell)
			}
		}
		records = append(records, engine.NewObservation(values))
	}

	return records, hm.Skipped, nil
}

// ParseAggregatedCSV parses pre-aggregated rows: grouping columns plus one
// or more mean_<field> columns. Cells that are not numbers leave that mean
// missing.
func ParseAggregatedCSV(data []byte) ([]engine.AggregatedObservation, error) {
	reader, hm, err := openCSV(data)
	if err != nil {
		return nil, err
	}
	if len(hm.Means) == 0 {
		return nil, fmt.Errorf("no mean_ columns in aggregated export")
	}

	var records []engine.AggregatedObservation
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			continue
		}

		values := make(map[schema.Field]any)
		means := make(map[schema.Field]float64, len(hm.Means))
		for i, cell := range row {
			cell = strings.TrimSpace(cell)
			if f, ok := hm.Means[i]; ok {
				if v, err := cast.ToFloat64E(cell); err == nil && cell != "" {
					means[f] = v
				}
				continue
			}
			if i < len(hm.Columns) && hm.Columns[i] != "" {
				values[hm.Columns[i]] = cell
			}
		}
		records = append(records, engine.NewAggregatedObservation(values, means))
	}

	return records, nil
}

func openCSV(data []byte) (*csv.Reader, schema.HeaderMap, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, schema.HeaderMap{}, fmt.Errorf("failed to read CSV headers: %w", err)
	}
	hm, err := schema.MapHeaders(headers)
	if err != nil {
		return nil, schema.HeaderMap{}, fmt.Errorf("map CSV headers: %w", err)
	}
	return reader, hm, nil
}
