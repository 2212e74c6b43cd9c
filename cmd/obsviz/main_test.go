package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spektr-org/obsviz/config"
	"github.com/spektr-org/obsviz/engine"
	"github.com/spektr-org/obsviz/schema"
)

func TestLoadConfigFlagsOverride(t *testing.T) {
	cfg, err := loadConfig(options{dataFile: "data.json", plot: "scatter", pageSize: 12})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Source.Kind != config.SourceFile || cfg.Source.DataFile != "data.json" {
		t.Errorf("source = %+v, want file data.json", cfg.Source)
	}
	if cfg.Plot.Type != "scatter" {
		t.Errorf("plot = %q, want scatter", cfg.Plot.Type)
	}
	if cfg.Page.Default != 12 {
		t.Errorf("page default = %d, want 12", cfg.Page.Default)
	}
}

func TestLoadConfigRequiresSource(t *testing.T) {
	if _, err := loadConfig(options{}); err == nil {
		t.Error("expected error without a data source")
	}
	if _, err := loadConfig(options{importFile: "data.csv"}); err == nil {
		t.Error("expected error for --import without --db")
	}
}

func TestLoadConfigImportSelectsSQLite(t *testing.T) {
	cfg, err := loadConfig(options{dbPath: "obs.db", importFile: "data.csv"})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Source.Kind != config.SourceSQLite {
		t.Errorf("kind = %q, want sqlite", cfg.Source.Kind)
	}
}

func TestSelection(t *testing.T) {
	cfg, err := loadConfig(options{dataFile: "data.json", plot: "scatter"})
	if err != nil {
		t.Fatal(err)
	}

	st, err := selection(cfg, options{x: "added", y: "likelihood", filter: "sector=Energy", page: 2})
	if err != nil {
		t.Fatalf("selection: %v", err)
	}
	if st.X != schema.Added || st.Y != schema.Likelihood {
		t.Errorf("axes = %s/%s, want added/likelihood", st.X, st.Y)
	}
	if st.Filter != (engine.FilterState{Category: schema.Sector, Value: "Energy"}) {
		t.Errorf("filter = %+v", st.Filter)
	}
	if st.Page.Index != 2 {
		t.Errorf("page index = %d, want 2", st.Page.Index)
	}

	for _, o := range []options{
		{filter: "sector"},
		{x: "not_a_field"},
		{filter: "intensity=3"},
	} {
		if _, err := selection(cfg, o); err == nil {
			t.Errorf("selection(%+v): expected error", o)
		}
	}
}

func writeFixture(t *testing.T) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "data.json")
	body := `[
		{"published": "January, 09 2017 00:00:00", "intensity": 6, "pestle": "Economic", "sector": "Energy"},
		{"published": "January, 10 2017 00:00:00", "intensity": 2, "pestle": "Social", "sector": "Retail"},
		{"published": "January, 11 2017 00:00:00", "intensity": 4, "pestle": "Economic", "sector": "Energy"}
	]`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir, path
}

func TestRunWritesGeometry(t *testing.T) {
	dir, data := writeFixture(t)
	out := filepath.Join(dir, "chart.svg")
	err := run(t.Context(), options{dataFile: data, plot: "scatter", format: "svg", outFile: out}, io.Discard)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Error("empty svg output")
	}
}

func TestRunWritesClampedState(t *testing.T) {
	dir, data := writeFixture(t)
	out := filepath.Join(dir, "chart.json")
	err := run(t.Context(), options{dataFile: data, page: 99, format: "json", outFile: out}, io.Discard)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		State struct {
			Page engine.PageState `json:"page"`
		} `json:"state"`
		Page engine.PageInfo `json:"page"`
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if got.State.Page.Index != 0 || got.Page.Index != 0 {
		t.Errorf("state page = %d, info page = %d, want both clamped to 0", got.State.Page.Index, got.Page.Index)
	}
}

func TestRunWarnsOnFilterCase(t *testing.T) {
	dir, data := writeFixture(t)
	out := filepath.Join(dir, "records.json")

	var logs bytes.Buffer
	err := run(t.Context(), options{dataFile: data, filter: "sector=energy", format: "records", outFile: out}, &logs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(logs.String(), "filter value not in category domain") {
		t.Errorf("no warning for a filter value that matches nothing:\n%s", logs.String())
	}

	logs.Reset()
	if err := run(t.Context(), options{dataFile: data, filter: "sector=Energy", format: "records", outFile: out}, &logs); err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Contains(logs.String(), "filter value not in category domain") {
		t.Errorf("unexpected warning for a matching filter value:\n%s", logs.String())
	}
}
