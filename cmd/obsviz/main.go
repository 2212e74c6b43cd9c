package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/spektr-org/obsviz/config"
	"github.com/spektr-org/obsviz/engine"
	"github.com/spektr-org/obsviz/render"
	"github.com/spektr-org/obsviz/schema"
	"github.com/spektr-org/obsviz/source"
	"github.com/spektr-org/obsviz/telemetry"
)

// ============================================================================
// OBSVIZ CLI — Chart geometry for observation data
// ============================================================================

const version = "0.1.0"

type options struct {
	configPath string
	dataFile   string
	baseURL    string
	dbPath     string
	importFile string
	plot       string
	x, y       string
	color      string
	group      string
	filter     string
	page       int
	pageSize   int
	format     string
	outFile    string
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "Path to YAML config file")
	flag.StringVar(&o.dataFile, "file", "", "Observation data file (.json or .csv)")
	flag.StringVar(&o.baseURL, "url", "", "Observation API base URL")
	flag.StringVar(&o.dbPath, "db", "", "SQLite observation database")
	flag.StringVar(&o.importFile, "import", "", "Import a data file into --db and exit")
	flag.StringVar(&o.plot, "plot", "", "Plot type: line, scatter, bar, stacked_bar")
	flag.StringVar(&o.x, "x", "", "X field")
	flag.StringVar(&o.y, "y", "", "Y field")
	flag.StringVar(&o.color, "color", "", "Scatter color field")
	flag.StringVar(&o.group, "group", "", "Stacked bar group field")
	flag.StringVar(&o.filter, "filter", "", "Filter as category=value, e.g. sector=Energy")
	flag.IntVar(&o.page, "page", 0, "Page index")
	flag.IntVar(&o.pageSize, "page-size", 0, "Records per page")
	flag.StringVar(&o.format, "format", "json", "Output format: json, pretty, records, svg, png")
	flag.StringVar(&o.outFile, "out", "", "Write output to file instead of stdout")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `obsviz — chart geometry for observation data

Usage:
  obsviz --file data.json --plot scatter --format svg --out scatter.svg
  obsviz --url http://localhost:8080/api/ --plot stacked --group region
  obsviz --file data.json --filter sector=Energy --format records
  obsviz --db obs.db --import data.csv

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Environment:
  OBSVIZ_*    Overrides any config value, e.g. OBSVIZ_SOURCE_BASE_URL,
              OBSVIZ_PAGE_DEFAULT, OBSVIZ_OTEL_ENDPOINT
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("obsviz %s\n", version)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, o, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, stderr io.Writer) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	log := newLogger(cfg.LogLevel, stderr)
	slog.SetDefault(log)

	shutdown, err := telemetry.Setup(ctx, "obsviz", cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(context.Background()) }()

	if o.importFile != "" {
		return importFile(ctx, cfg, o.importFile, log)
	}

	src, closeSrc, err := openSource(cfg, log)
	if err != nil {
		return err
	}
	defer closeSrc()

	state, err := selection(cfg, o)
	if err != nil {
		return err
	}

	// ── Boot: records and palette in parallel ────────────────────────────
	var records []engine.Observation
	var palette []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = src.Observations(gctx)
		return err
	})
	g.Go(func() error {
		p, err := src.Palette(gctx)
		if errors.Is(err, source.ErrNoPalette) {
			return nil
		}
		palette = p
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load data: %w", err)
	}
	log.Info("loaded observations", "records", len(records), "palette", len(palette), "source", cfg.Source.Kind)

	store := engine.NewRecordStore()
	store.Replace(records)

	session := engine.NewSession(store,
		engine.WithSource(src),
		engine.WithLayout(cfg.Layout),
		engine.WithPageSize(cfg.Page),
		engine.WithColorStrategy(cfg.ColorStrategy(), cfg.Color.Fallback),
		engine.WithPalette(palette),
		engine.WithLogger(log),
		engine.WithMetrics(engine.NewMetrics(telemetry.NewRegistry())),
	)
	defer session.Close()

	if state.Filter.Active() {
		if err := session.RequestDomain(ctx, state.Filter.Category); err != nil {
			return err
		}
	}
	if err := session.Apply(ctx, state); err != nil {
		return err
	}
	session.Wait()

	if cat, domain := session.Domain(); cat != "" {
		log.Debug("filter domain", "category", cat, "values", len(domain))
		if !slices.Contains(domain, state.Filter.Value) {
			log.Warn("filter value not in category domain", "category", cat, "value", state.Filter.Value)
		}
	}

	state = session.State()
	geometry := session.Geometry()
	page := session.Page()
	log.Info("built geometry",
		"plot", geometry.Plot, "empty", geometry.Empty,
		"visible", len(page.Records), "page", page.Info.Index, "pages", page.Info.Pages)

	// ── Output ────────────────────────────────────────────────────────────
	writer := io.Writer(os.Stdout)
	if o.outFile != "" {
		f, err := os.Create(o.outFile)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		writer = f
	}

	switch o.format {
	case "svg":
		err = render.SVG(writer, geometry)
	case "png":
		err = render.PNG(writer, geometry)
	case "records":
		err = writeJSON(writer, page, true)
	case "pretty":
		err = writeJSON(writer, cliOutput{State: state, Geometry: geometry, Page: page.Info}, true)
	case "json", "":
		err = writeJSON(writer, cliOutput{State: state, Geometry: geometry, Page: page.Info}, false)
	default:
		return fmt.Errorf("unknown format %q", o.format)
	}
	if err != nil {
		return err
	}
	if o.outFile != "" {
		log.Info("output written", "path", o.outFile, "format", o.format)
	}
	return nil
}

// ============================================================================
// SETUP
// ============================================================================

// loadConfig reads the config file and lets flags override it.
func loadConfig(o options) (config.Config, error) {
	cfg, err := config.Read(o.configPath)
	if err != nil {
		return config.Config{}, err
	}

	switch {
	case o.dataFile != "":
		cfg.Source.Kind, cfg.Source.DataFile = config.SourceFile, o.dataFile
	case o.baseURL != "":
		cfg.Source.Kind, cfg.Source.BaseURL = config.SourceHTTP, o.baseURL
	case o.dbPath != "":
		cfg.Source.Kind, cfg.Source.DBPath = config.SourceSQLite, o.dbPath
	}
	if o.importFile != "" {
		if cfg.Source.DBPath == "" {
			return config.Config{}, fmt.Errorf("--import needs --db")
		}
		cfg.Source.Kind = config.SourceSQLite
	}
	if o.pageSize > 0 {
		cfg.Page.Default = o.pageSize
	}
	if o.plot != "" {
		cfg.Plot = config.PlotConfig{Type: o.plot}
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func openSource(cfg config.Config, log *slog.Logger) (engine.Source, func(), error) {
	noop := func() {}
	switch cfg.Source.Kind {
	case config.SourceHTTP:
		h, err := source.NewHTTP(source.HTTPConfig{
			BaseURL:    cfg.Source.BaseURL,
			PaletteURL: cfg.Source.PaletteURL,
			Timeout:    cfg.Source.Timeout,
		}, log)
		return h, noop, err
	case config.SourceSQLite:
		db, err := source.OpenSQLite(cfg.Source.DBPath)
		if err != nil {
			return nil, noop, err
		}
		return db, func() { _ = db.Close() }, nil
	default:
		s, err := source.LoadFile(cfg.Source.DataFile, cfg.Source.PaletteFile)
		return s, noop, err
	}
}

func importFile(ctx context.Context, cfg config.Config, path string, log *slog.Logger) error {
	file, err := source.LoadFile(path, cfg.Source.PaletteFile)
	if err != nil {
		return err
	}
	records, err := file.Observations(ctx)
	if err != nil {
		return err
	}
	db, err := source.OpenSQLite(cfg.Source.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Import(ctx, records); err != nil {
		return err
	}
	if palette, err := file.Palette(ctx); err == nil {
		if err := db.SetPalette(ctx, palette); err != nil {
			return err
		}
	}
	log.Info("imported observations", "records", len(records), "db", cfg.Source.DBPath)
	return nil
}

// selection applies the field, filter and page flags over the configured
// initial state.
func selection(cfg config.Config, o options) (engine.State, error) {
	st, err := cfg.State()
	if err != nil {
		return st, err
	}

	fields := []struct {
		value string
		set   func(engine.State, schema.Field) (engine.State, error)
	}{
		{o.x, engine.State.SetXField},
		{o.y, engine.State.SetYField},
		{o.color, engine.State.SetColorField},
		{o.group, engine.State.SetGroupField},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		field, err := schema.Parse(f.value)
		if err != nil {
			return st, err
		}
		if st, err = f.set(st, field); err != nil {
			return st, err
		}
	}

	if o.filter != "" {
		cat, value, ok := strings.Cut(o.filter, "=")
		if !ok {
			return st, fmt.Errorf("filter %q: want category=value", o.filter)
		}
		field, err := schema.Parse(strings.TrimSpace(cat))
		if err != nil {
			return st, err
		}
		if st, err = st.SetFilter(field, value); err != nil {
			return st, err
		}
	}
	if o.page > 0 {
		return st.SetPage(o.page)
	}
	return st, nil
}

// ============================================================================
// OUTPUT
// ============================================================================

type cliOutput struct {
	State    engine.State    `json:"state"`
	Geometry engine.Geometry `json:"geometry"`
	Page     engine.PageInfo `json:"page"`
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	return nil
}
