package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/spektr-org/obsviz/schema"
)

// ============================================================================
// SESSION — Orchestrates rebuilds against one shared record store
// ============================================================================
// Pipeline: snapshot → filter → page → (sort) → scales → colors → strategy.
//
// Rebuilds run one at a time under the session lock. A transition only
// drops the cached pieces Diff marks stale, so a Y change keeps the line
// ordering and a line/scatter swap keeps both scales.
//
// Domain, aggregated and palette fetches run in the background. Each kind
// has a generation counter; a result whose generation is no longer current
// when it arrives is discarded.
// ============================================================================

// EventKind identifies a state-change notification.
type EventKind int

const (
	EventVisibleChanged EventKind = iota + 1
	EventPageChanged
	EventDomainChanged
	EventGeometryChanged
)

func (k EventKind) String() string {
	switch k {
	case EventVisibleChanged:
		return "visible_changed"
	case EventPageChanged:
		return "page_changed"
	case EventDomainChanged:
		return "domain_changed"
	case EventGeometryChanged:
		return "geometry_changed"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is delivered to OnChange listeners. Seq increases with every event
// a session produces; listeners on several goroutines can use it to drop
// late deliveries.
type Event struct {
	Kind     EventKind
	Seq      uint64
	Visible  int
	Page     PageInfo
	Category schema.Field
	Domain   []string
}

// PageResult is the current page of visible records.
type PageResult struct {
	Records []Observation `json:"records"`
	Info    PageInfo      `json:"info"`
}

type aggregateKey struct {
	x, y, group schema.Field
}

type listener struct {
	id uuid.UUID
	fn func(Event)
}

// Session holds one dashboard's selection and its derived geometry.
type Session struct {
	cfg     *config
	log     *slog.Logger
	metrics *Metrics
	store   *RecordStore
	sub     Subscription
	filters *FilterEngine
	scales  ScaleBuilder

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	seq      uint64
	state    State
	snap     Snapshot
	colors   *ColorAssigner
	visible  RecordView
	pageInfo PageInfo
	sorted   RecordView
	xScale   *ContinuousScale
	yScale   *ContinuousScale
	xBand    *BandScale
	geometry Geometry

	aggregated []AggregatedObservation
	aggKey     aggregateKey

	domainCategory schema.Field
	domainValues   []string

	gen struct {
		domain, aggregated, palette uint64
	}

	lmu       sync.Mutex
	listeners []listener
}

// NewSession subscribes a session to store and builds the initial geometry
// from the store's current snapshot.
func NewSession(store *RecordStore, opts ...Option) *Session {
	cfg := applyOptions(opts)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:     cfg,
		log:     cfg.logger,
		metrics: cfg.metrics,
		store:   store,
		filters: newFilterEngine(cfg),
		scales:  NewScaleBuilder(cfg.layout.TickCount),
		ctx:     ctx,
		cancel:  cancel,
		state:   NewState(schema.PlotLine, cfg.pageSize.Default),
		colors:  NewColorAssigner(cfg.colorStrategy, cfg.palette, cfg.fallback).WithLogger(cfg.logger),
		visible: emptyView,
	}
	s.sub = store.Subscribe(s.onSnapshot)
	return s
}

// ============================================================================
// TRANSITIONS
// ============================================================================

// State returns the current selection, with the page clamped to the data.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Apply moves the session to next and rebuilds whatever the move made
// stale. An invalid next leaves the session untouched.
func (s *Session) Apply(ctx context.Context, next State) error {
	if next.defaultPageSize <= 0 {
		next = next.WithDefaultPageSize(s.cfg.pageSize.Default)
	}
	if next.Filter.Category == "" {
		next.Filter = NoFilter()
	}
	if err := next.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if next.Filter != s.state.Filter {
		next.Page = PageState{Size: next.DefaultPageSize(), Index: 0}
	}
	next.Page.Size = ClampPageSize(next.Page.Size, s.cfg.pageSize)
	inv := Diff(s.state, next)
	s.state = next
	events := s.rebuildLocked(ctx, inv)
	s.mu.Unlock()

	s.emit(events)
	return nil
}

// Update applies fn to the current state and applies the result.
func (s *Session) Update(ctx context.Context, fn func(State) (State, error)) error {
	next, err := fn(s.State())
	if err != nil {
		return err
	}
	return s.Apply(ctx, next)
}

func (s *Session) onSnapshot(snap Snapshot) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.snap = snap
	s.filters.Reset(snap)
	s.log.Debug("snapshot received", "version", snap.Version(), "records", snap.Len())
	events := s.rebuildLocked(s.ctx, Everything())
	s.mu.Unlock()

	s.emit(events)
}

// ============================================================================
// REBUILD
// ============================================================================

func (s *Session) rebuildLocked(ctx context.Context, inv Invalidation) []Event {
	if !inv.Any() {
		return nil
	}
	start := time.Now()
	st := s.state
	ctx, span := s.cfg.tracer.Start(ctx, "obsviz.rebuild",
		trace.WithAttributes(
			attribute.String("plot", string(st.Plot)),
			attribute.String("x_field", string(st.X)),
			attribute.String("y_field", string(st.Y)),
		))
	defer span.End()

	var events []Event
	if inv.Visible {
		filtered := s.filters.Apply(s.snap.View(), st.Filter)
		visible, page := Paginate(filtered, st.Page)
		s.state.Page = page
		s.visible = visible
		info := Info(page, filtered.Len())
		s.metrics.VisibleRecords.Set(float64(visible.Len()))
		events = append(events, s.event(Event{Kind: EventVisibleChanged, Visible: visible.Len(), Page: info}))
		if info != s.pageInfo {
			events = append(events, s.event(Event{Kind: EventPageChanged, Page: info}))
		}
		s.pageInfo = info
	}
	if inv.Sort {
		s.sorted = nil
	}
	if inv.XScale {
		s.xScale = nil
		s.xBand = nil
	}
	if inv.YScale {
		s.yScale = nil
	}
	if inv.Aggregated && st.Plot == schema.PlotBarStacked {
		s.startAggregatedLocked()
	}

	s.buildGeometryLocked(ctx)

	elapsed := time.Since(start)
	span.SetAttributes(attribute.Int("visible", s.visible.Len()))
	s.metrics.Rebuilds.WithLabelValues(string(st.Plot)).Inc()
	s.metrics.RebuildDuration.WithLabelValues(string(st.Plot)).Observe(elapsed.Seconds())
	s.log.Debug("rebuild",
		"plot", st.Plot, "x_field", st.X, "y_field", st.Y,
		"visible", s.visible.Len(), "empty", s.geometry.Empty, "duration", elapsed)
	return append(events, s.event(Event{Kind: EventGeometryChanged, Visible: s.visible.Len(), Page: s.pageInfo}))
}

func (s *Session) buildGeometryLocked(ctx context.Context) {
	st := s.state
	in := Input{
		Plot:   st.Plot,
		View:   s.visible,
		X:      st.X,
		Y:      st.Y,
		Color:  st.Color,
		Group:  st.Group,
		Colors: s.colors,
		Scales: s.scales,
		Layout: s.cfg.layout,
	}

	switch st.Plot {
	case schema.PlotLine, schema.PlotScatter:
		s.ensureScalesLocked()
		in.XScale, in.YScale = s.xScale, s.yScale
		if st.Plot == schema.PlotLine {
			in.View = s.sortedLocked()
			in.Sorted = true
		}
	case schema.PlotBarSimple:
		if s.xBand == nil {
			s.xBand = s.scales.Band(s.visible, st.X, s.cfg.layout.XRange(), simpleBarPadding)
			s.metrics.ScaleBuilds.WithLabelValues(string(schema.AxisX)).Inc()
		}
		in.XBand = s.xBand
	case schema.PlotBarStacked:
		if s.aggKey == (aggregateKey{st.X, st.Y, st.Group}) {
			in.Aggregated = s.aggregated
		}
	}

	g, err := BuildChart(in)
	if err != nil {
		s.log.Warn("geometry build failed", "plot", st.Plot, "error", err)
		trace.SpanFromContext(ctx).RecordError(err)
		g = emptyGeometry(st.Plot, s.cfg.layout, st.Plot != schema.PlotLine)
	}
	s.geometry = g
}

func (s *Session) ensureScalesLocked() {
	if s.xScale == nil {
		if x, ok := s.scales.Continuous(s.visible, s.state.X, s.cfg.layout.XRange()); ok {
			s.xScale = x
			s.metrics.ScaleBuilds.WithLabelValues(string(schema.AxisX)).Inc()
		}
	}
	if s.yScale == nil {
		if y, ok := s.scales.Continuous(s.visible, s.state.Y, s.cfg.layout.YRange()); ok {
			s.yScale = y
			s.metrics.ScaleBuilds.WithLabelValues(string(schema.AxisY)).Inc()
		}
	}
}

// sortedLocked returns the visible records ordered by X, sorting only when
// the cached ordering was invalidated.
func (s *Session) sortedLocked() RecordView {
	if s.sorted == nil {
		s.sorted = SortByField(s.visible, s.state.X)
		s.metrics.Sorts.Inc()
	}
	return s.sorted
}

// ============================================================================
// ASYNC FETCHES
// ============================================================================

// fetchContext detaches a fetch from the caller's cancellation but ends it
// when the session closes.
func (s *Session) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(s.ctx, cancel)
	return fctx, func() {
		stop()
		cancel()
	}
}

func (s *Session) stale(kind string, gen uint64) {
	s.metrics.StaleResults.WithLabelValues(kind).Inc()
	s.log.Debug("discarding stale result", "kind", kind, "generation", gen)
}

func (s *Session) startAggregatedLocked() {
	src := s.cfg.aggregates
	if src == nil {
		s.log.Warn("stacked bars need an aggregate source", "x_field", s.state.X, "group", s.state.Group)
		return
	}
	s.gen.aggregated++
	gen := s.gen.aggregated
	key := aggregateKey{s.state.X, s.state.Y, s.state.Group}
	ctx, done := s.fetchContext(s.ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer done()
		records, err := src.Aggregated(ctx, key.x, key.y, key.group)

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		current := aggregateKey{s.state.X, s.state.Y, s.state.Group}
		if gen != s.gen.aggregated || s.state.Plot != schema.PlotBarStacked || key != current {
			s.stale("aggregated", gen)
			s.mu.Unlock()
			return
		}
		if err != nil {
			s.log.Warn("aggregated fetch failed", "x_field", key.x, "y_field", key.y, "group", key.group, "error", err)
			s.mu.Unlock()
			return
		}
		s.aggregated = records
		s.aggKey = key
		events := s.rebuildLocked(s.ctx, Invalidation{Colors: true})
		s.mu.Unlock()

		s.emit(events)
	}()
}

// RequestAggregated refetches the pre-aggregated records for the current
// selection. It is a no-op unless the current plot is stacked bars.
func (s *Session) RequestAggregated(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.cfg.aggregates == nil {
		return fmt.Errorf("aggregated observations: %w", ErrNoSource)
	}
	if s.state.Plot == schema.PlotBarStacked {
		s.startAggregatedLocked()
	}
	return nil
}

// RequestDomain looks up the values category can take. The result arrives
// as an EventDomainChanged unless a newer request superseded it.
func (s *Session) RequestDomain(ctx context.Context, category schema.Field) error {
	if err := (FilterState{Category: category}).Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.gen.domain++
	gen := s.gen.domain
	fctx, done := s.fetchContext(ctx)
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer done()
		values, err := s.filters.DomainOf(fctx, category)

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		if gen != s.gen.domain {
			s.stale("domain", gen)
			s.mu.Unlock()
			return
		}
		if err != nil {
			s.log.Warn("domain fetch failed", "category", category, "error", err)
			s.mu.Unlock()
			return
		}
		s.domainCategory = category
		s.domainValues = values
		ev := s.event(Event{Kind: EventDomainChanged, Category: category, Domain: slices.Clone(values)})
		s.mu.Unlock()

		s.emit([]Event{ev})
	}()
	return nil
}

// LoadPalette fetches the extended palette and recolors with it.
func (s *Session) LoadPalette(ctx context.Context) error {
	src := s.cfg.palettes
	if src == nil {
		return fmt.Errorf("palette: %w", ErrNoSource)
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.gen.palette++
	gen := s.gen.palette
	fctx, done := s.fetchContext(ctx)
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer done()
		palette, err := src.Palette(fctx)

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		if gen != s.gen.palette {
			s.stale("palette", gen)
			s.mu.Unlock()
			return
		}
		if err != nil {
			s.log.Warn("palette fetch failed", "error", err)
			s.mu.Unlock()
			return
		}
		s.colors = s.colors.WithPalette(palette)
		s.log.Debug("palette loaded", "colors", s.colors.PaletteSize(), "generation", gen)
		events := s.rebuildLocked(s.ctx, Invalidation{Colors: true})
		s.mu.Unlock()

		s.emit(events)
	}()
	return nil
}

// Reload fetches a fresh record set into the store. The session rebuilds
// through its store subscription; on error nothing changes.
func (s *Session) Reload(ctx context.Context) error {
	if s.cfg.records == nil {
		return fmt.Errorf("observations: %w", ErrNoSource)
	}
	_, err := s.store.Load(ctx, s.cfg.records)
	if err != nil {
		s.log.Warn("observation fetch failed", "error", err)
	}
	return err
}

// Wait blocks until every background fetch has resolved.
func (s *Session) Wait() {
	s.wg.Wait()
}

// ============================================================================
// OUTPUTS
// ============================================================================

// Geometry returns the geometry of the last rebuild.
func (s *Session) Geometry() Geometry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.geometry
}

// Page returns the visible records of the current page.
func (s *Session) Page() PageResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return PageResult{Records: Collect(s.visible), Info: s.pageInfo}
}

// Domain returns the last domain delivered by RequestDomain.
func (s *Session) Domain() (schema.Field, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.domainCategory, slices.Clone(s.domainValues)
}

// Filters exposes the session's filter engine.
func (s *Session) Filters() *FilterEngine { return s.filters }

// OnChange registers fn for every event. Listeners run on the goroutine
// that caused the change, after the session lock is released. The
// returned func removes the listener.
func (s *Session) OnChange(fn func(Event)) func() {
	id := uuid.New()
	s.lmu.Lock()
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	s.lmu.Unlock()
	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		s.listeners = slices.DeleteFunc(s.listeners, func(l listener) bool { return l.id == id })
	}
}

func (s *Session) event(e Event) Event {
	s.seq++
	e.Seq = s.seq
	return e
}

func (s *Session) emit(events []Event) {
	if len(events) == 0 {
		return
	}
	s.lmu.Lock()
	ls := slices.Clone(s.listeners)
	s.lmu.Unlock()
	for _, e := range events {
		for _, l := range ls {
			l.fn(e)
		}
	}
}

// Close unsubscribes from the store, cancels background fetches and waits
// for them to return.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.store.Unsubscribe(s.sub)
	s.cancel()
	s.wg.Wait()
}
