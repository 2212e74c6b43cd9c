package engine

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"
)

// ============================================================================
// ENGINE OPTIONS — Functional options for NewSession / NewFilterEngine
// ============================================================================

// Option configures engine behavior via functional options pattern.
type Option func(*config)

type config struct {
	layout        Layout
	pageSize      PageSizeConfig
	colorStrategy ColorStrategy
	palette       []string
	fallback      string

	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer

	records    ObservationSource
	domains    DomainSource
	aggregates AggregateSource
	palettes   PaletteSource

	domainCacheSize int
	collation       language.Tag
}

// WithLayout sets the drawing surface. Zero fields take the defaults.
func WithLayout(l Layout) Option {
	return func(c *config) {
		c.layout = l.normalize()
	}
}

// WithPageSize sets the default and maximum page size.
func WithPageSize(cfg PageSizeConfig) Option {
	return func(c *config) {
		c.pageSize = cfg
	}
}

// WithColorStrategy selects how domains larger than the base palette are
// colored, and the color for unknown values.
func WithColorStrategy(strategy ColorStrategy, fallback string) Option {
	return func(c *config) {
		c.colorStrategy = strategy
		if fallback != "" {
			c.fallback = fallback
		}
	}
}

// WithPalette sets the extended palette up front instead of loading it.
func WithPalette(palette []string) Option {
	return func(c *config) {
		c.palette = append([]string(nil), palette...)
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the collectors rebuilds are counted on.
func WithMetrics(m *Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithTracer sets the tracer rebuild spans are started on.
func WithTracer(t trace.Tracer) Option {
	return func(c *config) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithSource wires every external collaborator to src.
func WithSource(src Source) Option {
	return func(c *config) {
		c.records = src
		c.domains = src
		c.aggregates = src
		c.palettes = src
	}
}

// WithDomainSource wires only the category-domain lookup.
func WithDomainSource(src DomainSource) Option {
	return func(c *config) {
		c.domains = src
	}
}

// WithAggregateSource wires only the aggregated-observation fetch.
func WithAggregateSource(src AggregateSource) Option {
	return func(c *config) {
		c.aggregates = src
	}
}

// WithPaletteSource wires only the palette fetch.
func WithPaletteSource(src PaletteSource) Option {
	return func(c *config) {
		c.palettes = src
	}
}

// WithDomainCacheSize bounds the number of cached category domains.
func WithDomainCacheSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.domainCacheSize = n
		}
	}
}

// WithCollation sets the language domains are sorted for.
func WithCollation(tag language.Tag) Option {
	return func(c *config) {
		c.collation = tag
	}
}

// applyOptions creates a config from functional options.
func applyOptions(opts []Option) *config {
	cfg := &config{
		layout:          DefaultLayout(),
		pageSize:        PageSizeConfig{Default: DefaultPageSize, Max: 100},
		colorStrategy:   ColorRamp,
		fallback:        FallbackColor,
		logger:          slog.Default(),
		tracer:          otel.Tracer("github.com/spektr-org/obsviz/engine"),
		domainCacheSize: 16,
		collation:       language.English,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.metrics == nil {
		cfg.metrics = NewMetrics(prometheus.NewRegistry())
	}
	cfg.pageSize.Default = ClampPageSize(cfg.pageSize.Default, cfg.pageSize)
	return cfg
}
