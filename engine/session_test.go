package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/spektr-org/obsviz/schema"
)

// ============================================================================
// SESSION TESTS
// ============================================================================

// sessionFixture is n dated records; every third one is in Energy.
func sessionFixture(n int) []Observation {
	out := make([]Observation, n)
	for i := range out {
		sector := "Retail"
		if i%3 == 0 {
			sector = "Energy"
		}
		day := time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, (n-i)*11)
		out[i] = obs(
			schema.Sector, sector,
			schema.Pestle, []string{"Economic", "Political", "Social"}[i%3],
			schema.Country, fmt.Sprintf("country-%02d", i),
			schema.Published, day.Format("January, 02 2006 15:04:05"),
			schema.Added, day.AddDate(0, 0, i%5).Format("2006-01-02"),
			schema.Intensity, i%7,
			schema.Impact, i%4,
		)
	}
	return out
}

func newTestSession(t *testing.T, records []Observation, opts ...Option) (*Session, *Metrics) {
	t.Helper()
	store := NewRecordStore()
	store.Replace(records)
	m := NewMetrics(prometheus.NewRegistry())
	base := []Option{WithMetrics(m), WithLogger(quietLogger())}
	s := NewSession(store, append(base, opts...)...)
	t.Cleanup(s.Close)
	return s, m
}

func mustApply(t *testing.T, s *Session, fn func(State) (State, error)) {
	t.Helper()
	if err := s.Update(context.Background(), fn); err != nil {
		t.Fatalf("update: %v", err)
	}
}

func TestSessionSortsOnlyOnXChange(t *testing.T) {
	s, m := newTestSession(t, sessionFixture(20))

	if got := testutil.ToFloat64(m.Sorts); got != 1 {
		t.Fatalf("sorts after first build = %v, want 1", got)
	}

	mustApply(t, s, func(st State) (State, error) { return st.SetYField(schema.Impact) })
	mustApply(t, s, func(st State) (State, error) { return st.SetPlot(schema.PlotScatter) })
	mustApply(t, s, func(st State) (State, error) { return st.SetPlot(schema.PlotLine) })
	if got := testutil.ToFloat64(m.Sorts); got != 1 {
		t.Errorf("sorts after y/plot changes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ScaleBuilds.WithLabelValues("x")); got != 1 {
		t.Errorf("x scale builds = %v, want 1 (reused across line/scatter)", got)
	}
	if got := testutil.ToFloat64(m.ScaleBuilds.WithLabelValues("y")); got != 2 {
		t.Errorf("y scale builds = %v, want 2", got)
	}

	mustApply(t, s, func(st State) (State, error) { return st.SetXField(schema.Added) })
	if got := testutil.ToFloat64(m.Sorts); got != 2 {
		t.Errorf("sorts after x change = %v, want 2", got)
	}

	g := s.Geometry()
	if g.Line == nil || len(g.Line.Points) == 0 {
		t.Fatal("expected line geometry")
	}
	for i := 1; i < len(g.Line.Points); i++ {
		if g.Line.Points[i].X < g.Line.Points[i-1].X {
			t.Fatalf("points not ordered by x at %d", i)
		}
	}
	if got := testutil.ToFloat64(m.Rebuilds.WithLabelValues("line")); got != 4 {
		t.Errorf("line rebuilds = %v, want 4", got)
	}
}

func TestSessionFilterEnergy(t *testing.T) {
	s, _ := newTestSession(t, sectorFixture())
	mustApply(t, s, func(st State) (State, error) { return st.SetFilter(schema.Sector, "Energy") })

	page := s.Page()
	if len(page.Records) != 3 || page.Info.Total != 3 || page.Info.Index != 0 {
		t.Fatalf("page = %d records, info %+v", len(page.Records), page.Info)
	}
	for _, r := range page.Records {
		if v, _ := r.Category(schema.Sector); v != "Energy" {
			t.Errorf("record sector %q", v)
		}
	}
}

func TestSessionFilterResetsPage(t *testing.T) {
	s, _ := newTestSession(t, sessionFixture(30))
	mustApply(t, s, func(st State) (State, error) { return st.SetPage(2) })
	if s.State().Page.Index != 2 {
		t.Fatalf("page index = %d", s.State().Page.Index)
	}
	mustApply(t, s, func(st State) (State, error) { return st.SetFilter(schema.Pestle, "Social") })
	if got := s.State().Page; got.Index != 0 || got.Size != DefaultPageSize {
		t.Errorf("page after filter = %+v", got)
	}
}

func TestSessionApplyFilterChangeResetsPage(t *testing.T) {
	s, _ := newTestSession(t, sessionFixture(30))
	mustApply(t, s, func(st State) (State, error) { return st.SetPage(2) })

	next := s.State()
	next.Filter = FilterState{Category: schema.Pestle, Value: "Economic"}
	next.Page.Size = 3
	if err := s.Apply(context.Background(), next); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := s.State().Page; got != (PageState{Size: DefaultPageSize, Index: 0}) {
		t.Errorf("page after filter = %+v, want index 0 at the default size", got)
	}
	if got := s.Page().Info.Total; got != 10 {
		t.Errorf("total = %d, want 10 Economic records", got)
	}

	// the page is the caller's again once the filter is unchanged
	next = s.State()
	next.Page = PageState{Size: 3, Index: 1}
	if err := s.Apply(context.Background(), next); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := s.State().Page; got != (PageState{Size: 3, Index: 1}) {
		t.Errorf("page = %+v, want {3 1}", got)
	}
}

func TestSessionPageResizeClamps(t *testing.T) {
	s, _ := newTestSession(t, numbered(30))
	mustApply(t, s, func(st State) (State, error) { return st.SetPage(2) })
	mustApply(t, s, func(st State) (State, error) { return st.SetPageSize(18) })

	page := s.Page()
	if page.Info.Index != 1 || s.State().Page.Index != 1 {
		t.Fatalf("page index = %d, want clamped to 1", page.Info.Index)
	}
	got := intensities(t, NewSliceView(page.Records))
	if len(got) != 12 || got[0] != 18 {
		t.Errorf("page = %v, want records 18..29", got)
	}
	if !s.Geometry().Empty {
		t.Error("records without dates should give empty line geometry")
	}
}

func TestSessionInvalidStateUntouched(t *testing.T) {
	s, _ := newTestSession(t, sessionFixture(5))
	before := s.State()
	bad := before
	bad.X = schema.Sector
	if err := s.Apply(context.Background(), bad); !errors.Is(err, ErrFieldKind) {
		t.Fatalf("err = %v", err)
	}
	if s.State() != before {
		t.Error("invalid state was applied")
	}
}

func TestSessionEvents(t *testing.T) {
	s, _ := newTestSession(t, sessionFixture(30))

	var mu sync.Mutex
	var kinds []EventKind
	var last uint64
	remove := s.OnChange(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		if e.Seq <= last {
			t.Errorf("seq %d after %d", e.Seq, last)
		}
		last = e.Seq
		kinds = append(kinds, e.Kind)
	})

	mustApply(t, s, func(st State) (State, error) { return st.SetFilter(schema.Sector, "Energy") })
	want := []EventKind{EventVisibleChanged, EventPageChanged, EventGeometryChanged}
	mu.Lock()
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, kinds[i], want[i])
		}
	}
	mu.Unlock()

	remove()
	mustApply(t, s, func(st State) (State, error) { return st.SetYField(schema.Impact) })
	mu.Lock()
	if len(kinds) != len(want) {
		t.Errorf("listener still called after removal")
	}
	mu.Unlock()
}

func TestSessionRebuildsOnSnapshot(t *testing.T) {
	store := NewRecordStore()
	s := NewSession(store, WithLogger(quietLogger()))
	defer s.Close()

	if !s.Geometry().Empty {
		t.Fatal("empty store should give empty geometry")
	}
	store.Replace(sessionFixture(12))
	if g := s.Geometry(); g.Empty || g.Line == nil {
		t.Error("new snapshot did not rebuild")
	}
	if s.Page().Info.Total != 12 {
		t.Errorf("total = %d", s.Page().Info.Total)
	}
}

// ============================================================================
// ASYNC / STALENESS
// ============================================================================

type gatedSource struct {
	gates      map[schema.Field]chan struct{}
	domains    map[schema.Field][]string
	aggregates map[schema.Field][]AggregatedObservation
	palette    []string
	records    []Observation
}

func (g *gatedSource) wait(ctx context.Context, f schema.Field) error {
	gate, ok := g.gates[f]
	if !ok {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *gatedSource) Observations(context.Context) ([]Observation, error) {
	return g.records, nil
}

func (g *gatedSource) CategoryDomain(ctx context.Context, f schema.Field) ([]string, error) {
	if err := g.wait(ctx, f); err != nil {
		return nil, err
	}
	return g.domains[f], nil
}

func (g *gatedSource) Aggregated(ctx context.Context, _, _, group schema.Field) ([]AggregatedObservation, error) {
	if err := g.wait(ctx, group); err != nil {
		return nil, err
	}
	return g.aggregates[group], nil
}

func (g *gatedSource) Palette(context.Context) ([]string, error) {
	return g.palette, nil
}

func TestSessionDiscardsStaleDomain(t *testing.T) {
	src := &gatedSource{
		gates: map[schema.Field]chan struct{}{
			schema.Sector: make(chan struct{}),
			schema.Region: make(chan struct{}),
		},
		domains: map[schema.Field][]string{
			schema.Sector: {"Energy", "Retail"},
			schema.Region: {"Asia", "Europe", "Oceania"},
		},
	}
	s, m := newTestSession(t, sessionFixture(6), WithSource(src))

	domainEvents := 0
	var mu sync.Mutex
	s.OnChange(func(e Event) {
		if e.Kind == EventDomainChanged {
			mu.Lock()
			domainEvents++
			mu.Unlock()
		}
	})

	ctx := context.Background()
	if err := s.RequestDomain(ctx, schema.Sector); err != nil {
		t.Fatal(err)
	}
	if err := s.RequestDomain(ctx, schema.Region); err != nil {
		t.Fatal(err)
	}
	close(src.gates[schema.Region])
	close(src.gates[schema.Sector])
	s.Wait()

	category, values := s.Domain()
	if category != schema.Region || len(values) != 3 {
		t.Errorf("domain = %s %v, want the region lookup", category, values)
	}
	if got := testutil.ToFloat64(m.StaleResults.WithLabelValues("domain")); got != 1 {
		t.Errorf("stale domain results = %v, want 1", got)
	}
	mu.Lock()
	if domainEvents != 1 {
		t.Errorf("domain events = %d, want 1", domainEvents)
	}
	mu.Unlock()
}

func TestSessionDiscardsStaleAggregated(t *testing.T) {
	src := &gatedSource{
		gates: map[schema.Field]chan struct{}{
			schema.Sector: make(chan struct{}),
			schema.Region: make(chan struct{}),
		},
		aggregates: map[schema.Field][]AggregatedObservation{
			schema.Sector: {NewAggregatedObservation(
				map[schema.Field]any{schema.Pestle: "Economic", schema.Sector: "Energy"},
				map[schema.Field]float64{schema.Intensity: 3},
			)},
			schema.Region: {
				aggregated("Economic", "Asia", 4),
				aggregated("Economic", "Europe", 6),
			},
		},
	}
	s, m := newTestSession(t, sessionFixture(6), WithSource(src))

	mustApply(t, s, func(st State) (State, error) { return st.SetPlot(schema.PlotBarStacked) })
	if !s.Geometry().Empty {
		t.Error("stacked bars should be empty until aggregates arrive")
	}
	mustApply(t, s, func(st State) (State, error) { return st.SetGroupField(schema.Region) })

	close(src.gates[schema.Sector])
	close(src.gates[schema.Region])
	s.Wait()

	g := s.Geometry()
	if len(g.Rects) != 2 || g.Rects[0].Group != "Asia" {
		t.Fatalf("rects = %+v, want the region aggregates", g.Rects)
	}
	if got := testutil.ToFloat64(m.StaleResults.WithLabelValues("aggregated")); got != 1 {
		t.Errorf("stale aggregated results = %v, want 1", got)
	}
}

// countryScatter switches s to a scatter colored by country. sessionFixture
// gives every record its own country.
func countryScatter(t *testing.T, s *Session) {
	t.Helper()
	mustApply(t, s, func(st State) (State, error) {
		st, err := st.SetPlot(schema.PlotScatter)
		if err != nil {
			return st, err
		}
		return st.SetColorField(schema.Country)
	})
}

func hexPalette(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%02x", prefix, i)
	}
	return out
}

func TestSessionLoadPalette(t *testing.T) {
	palette := hexPalette("#0000", 20)
	src := &gatedSource{palette: palette}
	s, _ := newTestSession(t, sessionFixture(20),
		WithSource(src),
		WithColorStrategy(ColorPalette, ""),
		WithPageSize(PageSizeConfig{Default: 20, Max: 100}),
	)
	countryScatter(t, s)

	g := s.Geometry()
	if len(g.Domain) != 20 {
		t.Fatalf("domain = %d values, want 20", len(g.Domain))
	}
	for _, mk := range g.Marks {
		if mk.Color != FallbackColor {
			t.Fatalf("before palette: %s colored %s, want fallback", mk.Category, mk.Color)
		}
	}

	if err := s.LoadPalette(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.Wait()

	g = s.Geometry()
	for i, v := range g.Domain {
		if c := colorOf(g, v); c != palette[i] {
			t.Errorf("%s colored %s, want %s", v, c, palette[i])
		}
	}
}

func colorOf(g Geometry, category string) string {
	for _, mk := range g.Marks {
		if mk.Category == category {
			return mk.Color
		}
	}
	return ""
}

// slowPalette blocks its first call until gate closes; later calls return
// at once.
type slowPalette struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	gate    chan struct{}
	first   []string
	rest    []string
}

func (p *slowPalette) Palette(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	p.calls++
	n := p.calls
	p.mu.Unlock()
	if n > 1 {
		return p.rest, nil
	}
	close(p.entered)
	select {
	case <-p.gate:
		return p.first, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestSessionDiscardsStalePalette(t *testing.T) {
	src := &slowPalette{
		entered: make(chan struct{}),
		gate:    make(chan struct{}),
		first:   hexPalette("#aa00", 20),
		rest:    hexPalette("#0000", 20),
	}
	s, m := newTestSession(t, sessionFixture(20),
		WithPaletteSource(src),
		WithColorStrategy(ColorPalette, ""),
		WithPageSize(PageSizeConfig{Default: 20, Max: 100}),
	)
	countryScatter(t, s)

	ctx := context.Background()
	if err := s.LoadPalette(ctx); err != nil {
		t.Fatal(err)
	}
	<-src.entered
	if err := s.LoadPalette(ctx); err != nil {
		t.Fatal(err)
	}
	close(src.gate)
	s.Wait()

	g := s.Geometry()
	for i, v := range g.Domain {
		if c := colorOf(g, v); c != src.rest[i] {
			t.Errorf("%s colored %s, want %s from the latest palette", v, c, src.rest[i])
		}
	}
	if got := testutil.ToFloat64(m.StaleResults.WithLabelValues("palette")); got != 1 {
		t.Errorf("stale palette results = %v, want 1", got)
	}
}

func TestSessionReload(t *testing.T) {
	src := &gatedSource{records: sessionFixture(7)}
	s, _ := newTestSession(t, nil, WithSource(src))
	if err := s.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Page().Info.Total != 7 {
		t.Errorf("total = %d, want 7", s.Page().Info.Total)
	}
}

func TestSessionCloseCancelsFetches(t *testing.T) {
	src := &gatedSource{gates: map[schema.Field]chan struct{}{schema.Topic: make(chan struct{})}}
	store := NewRecordStore()
	s := NewSession(store, WithSource(src), WithLogger(quietLogger()))
	if err := s.RequestDomain(context.Background(), schema.Topic); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return with a fetch in flight")
	}
	if err := s.Apply(context.Background(), DefaultState()); !errors.Is(err, ErrClosed) {
		t.Errorf("apply after close: %v", err)
	}
}
