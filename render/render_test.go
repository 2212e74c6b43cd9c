package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/spektr-org/obsviz/engine"
	"github.com/spektr-org/obsviz/schema"
)

func scatterGeometry(t *testing.T) engine.Geometry {
	t.Helper()
	records := []engine.Observation{
		engine.NewObservation(map[schema.Field]any{schema.Published: "2020-01-01", schema.Intensity: 3, schema.Pestle: "Economic"}),
		engine.NewObservation(map[schema.Field]any{schema.Published: "2020-06-01", schema.Intensity: 7, schema.Pestle: "Social"}),
		engine.NewObservation(map[schema.Field]any{schema.Published: "2021-01-01", schema.Intensity: 5}),
	}
	g, err := engine.BuildChart(engine.Input{
		Plot: schema.PlotScatter,
		View: engine.NewSliceView(records),
		X:    schema.Published,
		Y:    schema.Intensity,
	})
	if err != nil {
		t.Fatalf("BuildChart: %v", err)
	}
	return g
}

func TestSVGScatter(t *testing.T) {
	g := scatterGeometry(t)
	var buf bytes.Buffer
	if err := SVG(&buf, g); err != nil {
		t.Fatalf("SVG: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "<svg") {
		t.Fatalf("not an svg document: %.80s", out)
	}
	if n := strings.Count(out, "<circle"); n < len(g.Marks) {
		t.Errorf("circles = %d, want at least %d", n, len(g.Marks))
	}
	if !strings.Contains(out, "Economic") {
		t.Error("legend label missing")
	}
}

func TestPNGLine(t *testing.T) {
	records := []engine.Observation{
		engine.NewObservation(map[schema.Field]any{schema.Published: "2020-01-01", schema.Intensity: 3}),
		engine.NewObservation(map[schema.Field]any{schema.Published: "2020-02-01", schema.Intensity: nil}),
		engine.NewObservation(map[schema.Field]any{schema.Published: "2020-03-01", schema.Intensity: 4}),
		engine.NewObservation(map[schema.Field]any{schema.Published: "2020-04-01", schema.Intensity: 6}),
	}
	g, err := engine.BuildChart(engine.Input{
		Plot: schema.PlotLine,
		View: engine.NewSliceView(records),
		X:    schema.Published,
		Y:    schema.Intensity,
	})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := PNG(&buf, g); err != nil {
		t.Fatalf("PNG: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Error("output is not a PNG")
	}
}

func TestDrawEmptyGeometry(t *testing.T) {
	var buf bytes.Buffer
	if err := SVG(&buf, engine.Geometry{}); !errors.Is(err, ErrNoSurface) {
		t.Errorf("err = %v, want ErrNoSurface", err)
	}

	g := engine.Geometry{Empty: true, ViewBox: engine.ViewBox{Width: 900, Height: 500}}
	if err := SVG(&buf, g); err != nil {
		t.Errorf("empty geometry with a surface should still render: %v", err)
	}
}

func TestColor(t *testing.T) {
	if c := color("#ff0000"); c.R != 255 || c.G != 0 {
		t.Errorf("#ff0000 = %+v", c)
	}
	if c, want := color("not a color"), color(engine.FallbackColor); c != want {
		t.Errorf("invalid code = %+v, want fallback %+v", c, want)
	}
}
