package engine

import (
	"context"

	"github.com/spektr-org/obsviz/schema"
)

// ============================================================================
// SOURCES — External collaborators the engine consumes
// ============================================================================
// Implementations live in the source package (HTTP, SQLite, static).
// Each call completes once; failures are returned to the caller and never
// modify engine state.
// ============================================================================

// ObservationSource delivers the current full record set.
type ObservationSource interface {
	Observations(ctx context.Context) ([]Observation, error)
}

// DomainSource returns the authoritative distinct values of a category.
type DomainSource interface {
	CategoryDomain(ctx context.Context, category schema.Field) ([]string, error)
}

// AggregateSource returns one record per (x, group) pair with mean_<y> set.
type AggregateSource interface {
	Aggregated(ctx context.Context, x, y, group schema.Field) ([]AggregatedObservation, error)
}

// PaletteSource returns an ordered list of color codes.
type PaletteSource interface {
	Palette(ctx context.Context) ([]string, error)
}

// Source bundles every collaborator.
type Source interface {
	ObservationSource
	DomainSource
	AggregateSource
	PaletteSource
}
