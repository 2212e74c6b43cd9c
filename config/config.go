// Package config loads obsviz settings from a YAML file and environment
// variables prefixed with OBSVIZ_. Environment values win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/spektr-org/obsviz/engine"
	"github.com/spektr-org/obsviz/schema"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "OBSVIZ_"

// Source kinds.
const (
	SourceFile   = "file"
	SourceHTTP   = "http"
	SourceSQLite = "sqlite"
)

// Config is the complete obsviz configuration.
type Config struct {
	Source    SourceConfig          `yaml:"source" envPrefix:"SOURCE_"`
	Layout    engine.Layout         `yaml:"layout" envPrefix:"LAYOUT_"`
	Page      engine.PageSizeConfig `yaml:"page" envPrefix:"PAGE_"`
	Color     ColorConfig           `yaml:"color" envPrefix:"COLOR_"`
	Plot      PlotConfig            `yaml:"plot" envPrefix:"PLOT_"`
	Telemetry TelemetryConfig       `yaml:"telemetry" envPrefix:"OTEL_"`
	LogLevel  string                `yaml:"log_level" env:"LOG_LEVEL"`
}

// SourceConfig selects where observations come from.
type SourceConfig struct {
	Kind        string        `yaml:"kind" env:"KIND"`
	BaseURL     string        `yaml:"base_url" env:"BASE_URL"`
	PaletteURL  string        `yaml:"palette_url" env:"PALETTE_URL"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
	DBPath      string        `yaml:"db_path" env:"DB_PATH"`
	DataFile    string        `yaml:"data_file" env:"DATA_FILE"`
	PaletteFile string        `yaml:"palette_file" env:"PALETTE_FILE"`
}

// ColorConfig selects the color strategy.
type ColorConfig struct {
	Strategy string `yaml:"strategy" env:"STRATEGY"`
	Fallback string `yaml:"fallback" env:"FALLBACK"`
}

// PlotConfig is the initial selection.
type PlotConfig struct {
	Type  string `yaml:"type" env:"TYPE"`
	X     string `yaml:"x" env:"X"`
	Y     string `yaml:"y" env:"Y"`
	Color string `yaml:"color" env:"COLOR"`
	Group string `yaml:"group" env:"GROUP"`
}

// TelemetryConfig controls trace export.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Source:   SourceConfig{Kind: SourceFile, Timeout: 30 * time.Second},
		Layout:   engine.DefaultLayout(),
		Page:     engine.PageSizeConfig{Default: engine.DefaultPageSize, Max: 100},
		Color:    ColorConfig{Strategy: string(engine.ColorRamp), Fallback: engine.FallbackColor},
		Plot:     PlotConfig{Type: string(schema.PlotLine)},
		LogLevel: "info",
	}
}

// Load reads path (optional) over the defaults, then applies environment
// overrides, then validates.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read is Load without validation, for callers that override values
// before validating.
func Read(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv applies OBSVIZ_ environment variables to target.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks the source kind, color strategy and plot selection.
func (c Config) Validate() error {
	var errs []error
	switch c.Source.Kind {
	case SourceFile:
		if c.Source.DataFile == "" {
			errs = append(errs, fmt.Errorf("source.data_file is required for kind %q", c.Source.Kind))
		}
	case SourceHTTP:
		if c.Source.BaseURL == "" {
			errs = append(errs, fmt.Errorf("source.base_url is required for kind %q", c.Source.Kind))
		}
	case SourceSQLite:
		if c.Source.DBPath == "" {
			errs = append(errs, fmt.Errorf("source.db_path is required for kind %q", c.Source.Kind))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source kind %q", c.Source.Kind))
	}
	if _, err := engine.ParseColorStrategy(c.Color.Strategy); err != nil {
		errs = append(errs, err)
	}
	if c.Page.Default <= 0 || (c.Page.Max > 0 && c.Page.Default > c.Page.Max) {
		errs = append(errs, fmt.Errorf("page.default %d outside 1..%d", c.Page.Default, c.Page.Max))
	}
	if _, err := c.State(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// State builds the initial engine state from the plot section. Empty
// fields keep the plot's defaults.
func (c Config) State() (engine.State, error) {
	plot, err := schema.ParsePlot(strings.TrimSpace(c.Plot.Type))
	if err != nil {
		return engine.State{}, err
	}
	st := engine.NewState(plot, c.Page.Default)

	steps := []struct {
		value string
		set   func(engine.State, schema.Field) (engine.State, error)
	}{
		{c.Plot.X, engine.State.SetXField},
		{c.Plot.Y, engine.State.SetYField},
		{c.Plot.Color, engine.State.SetColorField},
		{c.Plot.Group, engine.State.SetGroupField},
	}
	for _, s := range steps {
		if strings.TrimSpace(s.value) == "" {
			continue
		}
		f, err := schema.Parse(s.value)
		if err != nil {
			return engine.State{}, err
		}
		if st, err = s.set(st, f); err != nil {
			return engine.State{}, err
		}
	}
	return st, nil
}

// ColorStrategy returns the parsed color strategy.
func (c Config) ColorStrategy() engine.ColorStrategy {
	s, err := engine.ParseColorStrategy(c.Color.Strategy)
	if err != nil {
		return engine.ColorRamp
	}
	return s
}
