package source

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spektr-org/obsviz/engine"
	"github.com/spektr-org/obsviz/helpers"
	"github.com/spektr-org/obsviz/schema"
)

// ============================================================================
// STATIC SOURCE — In-memory records
// ============================================================================
// Serves a fixed record set. Domains and group means are computed locally
// from the records, so a static source answers the same questions the
// observation API does.
// ============================================================================

// Static is an engine.Source over a fixed record set.
type Static struct {
	records []engine.Observation
	palette []string
}

var _ engine.Source = (*Static)(nil)

// NewStatic copies records and palette into a new Static source.
func NewStatic(records []engine.Observation, palette []string) *Static {
	return &Static{
		records: slices.Clone(records),
		palette: slices.Clone(palette),
	}
}

// LoadFile reads a JSON array or CSV export, chosen by file extension, and
// an optional palette file.
func LoadFile(path, palettePath string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data file: %w", err)
	}

	var records []engine.Observation
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		records, _, err = helpers.ParseCSV(data)
	case ".json", "":
		records, err = helpers.DecodeObservations(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unsupported data file %q", filepath.Base(path))
	}
	if err != nil {
		return nil, err
	}

	var palette []string
	if palettePath != "" {
		f, err := os.Open(palettePath)
		if err != nil {
			return nil, fmt.Errorf("open palette: %w", err)
		}
		defer f.Close()
		if palette, err = helpers.ParsePalette(f); err != nil {
			return nil, err
		}
	}
	return &Static{records: records, palette: palette}, nil
}

// Observations returns a copy of the record set.
func (s *Static) Observations(ctx context.Context) ([]engine.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(s.records), nil
}

// CategoryDomain returns the distinct values of category in first-seen order.
func (s *Static) CategoryDomain(ctx context.Context, category schema.Field) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkCategory(category); err != nil {
		return nil, err
	}
	return engine.LocalDomain(engine.NewSliceView(s.records), category), nil
}

// Aggregated returns the mean of y for every (x, group) pair.
func (s *Static) Aggregated(ctx context.Context, x, y, group schema.Field) ([]engine.AggregatedObservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkAggregate(x, y, group); err != nil {
		return nil, err
	}
	return engine.Aggregate(engine.NewSliceView(s.records), x, y, group), nil
}

// Palette returns the configured palette, or ErrNoPalette.
func (s *Static) Palette(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.palette) == 0 {
		return nil, ErrNoPalette
	}
	return slices.Clone(s.palette), nil
}
