package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/spektr-org/obsviz/schema"
)

// ============================================================================
// FILTERS — Category/value selection via RecordView
// ============================================================================
// Single-pass filter over a view. Returns a SubView (index list into the
// parent), so the store snapshot is never copied.
// ============================================================================

// FilterState selects records whose Category field equals Value.
// Category None (or an empty Value) selects everything.
type FilterState struct {
	Category schema.Field `json:"category" yaml:"category"`
	Value    string       `json:"value,omitempty" yaml:"value,omitempty"`
}

// NoFilter is the unfiltered state.
func NoFilter() FilterState {
	return FilterState{Category: schema.None}
}

// Active reports whether the filter restricts anything.
func (f FilterState) Active() bool {
	return f.Category != schema.None && f.Category != "" && strings.TrimSpace(f.Value) != ""
}

// Validate checks the category against the catalog. None must carry no value.
func (f FilterState) Validate() error {
	if f.Category == schema.None || f.Category == "" {
		if strings.TrimSpace(f.Value) != "" {
			return fmt.Errorf("%w: category none with value %q", ErrInvalidFilter, f.Value)
		}
		return nil
	}
	meta, ok := schema.Lookup(f.Category)
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownField, f.Category)
	}
	if meta.Kind != schema.KindCategorical {
		return fmt.Errorf("%w: %q is %s, filters need a categorical field", ErrFieldKind, f.Category, meta.Kind)
	}
	return nil
}

// ApplyFilter returns the records of view whose category field equals
// value (both trimmed). The view itself is returned when category is None
// or value is empty.
func ApplyFilter(view RecordView, category schema.Field, value string) RecordView {
	value = strings.TrimSpace(value)
	if category == schema.None || category == "" || value == "" {
		return view
	}

	n := view.Len()
	indices := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if v, ok := view.At(i).Category(category); ok && v == value {
			indices = append(indices, i)
		}
	}
	return newSubView(view, indices)
}

// LocalDomain returns the distinct non-missing values of category in view,
// in first-seen order.
func LocalDomain(view RecordView, category schema.Field) []string {
	seen := make(map[string]bool)
	var out []string
	for i := 0; i < view.Len(); i++ {
		v, ok := view.At(i).Category(category)
		if ok && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// ============================================================================
// FILTER ENGINE — filtering plus per-category domain lookup
// ============================================================================

// FilterEngine filters views and answers "which values can this category
// take". Domains come from the configured DomainSource when one is set,
// otherwise from the current snapshot; both are cached until Reset.
type FilterEngine struct {
	mu      sync.Mutex
	source  DomainSource
	cache   *lru.Cache[schema.Field, []string]
	lang    language.Tag
	full    RecordView
	version uint64
}

// NewFilterEngine builds a FilterEngine. Only WithSource/WithDomainSource,
// WithDomainCacheSize and WithCollation apply.
func NewFilterEngine(opts ...Option) *FilterEngine {
	return newFilterEngine(applyOptions(opts))
}

func newFilterEngine(cfg *config) *FilterEngine {
	cache, err := lru.New[schema.Field, []string](cfg.domainCacheSize)
	if err != nil {
		// only fails for a non-positive size, which applyOptions prevents
		panic(err)
	}
	return &FilterEngine{
		source: cfg.domains,
		cache:  cache,
		lang:   cfg.collation,
		full:   emptyView,
	}
}

// Reset points the engine at a new snapshot and drops cached domains.
func (e *FilterEngine) Reset(snap Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.full = snap.View()
	e.version = snap.Version()
	e.cache.Purge()
}

// Apply filters view by f.
func (e *FilterEngine) Apply(view RecordView, f FilterState) RecordView {
	return ApplyFilter(view, f.Category, f.Value)
}

// DomainOf returns the sorted distinct values of category across the full
// record set. None and unknown-but-empty domains yield an empty slice.
func (e *FilterEngine) DomainOf(ctx context.Context, category schema.Field) ([]string, error) {
	if category == schema.None || category == "" {
		return []string{}, nil
	}
	if err := (FilterState{Category: category}).Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if cached, ok := e.cache.Get(category); ok {
		e.mu.Unlock()
		return slices.Clone(cached), nil
	}
	version, full, src := e.version, e.full, e.source
	e.mu.Unlock()

	var values []string
	if src != nil {
		fetched, err := src.CategoryDomain(ctx, category)
		if err != nil {
			return nil, fmt.Errorf("fetch %s domain: %w", category, err)
		}
		values = normalizeDomain(fetched)
	} else {
		values = LocalDomain(full, category)
	}
	e.sort(values)

	e.mu.Lock()
	if e.version == version {
		e.cache.Add(category, values)
	}
	e.mu.Unlock()
	return slices.Clone(values), nil
}

func (e *FilterEngine) sort(values []string) {
	c := collate.New(e.lang)
	c.SortStrings(values)
}

// normalizeDomain trims, drops empties and dedupes, keeping first occurrences.
func normalizeDomain(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
