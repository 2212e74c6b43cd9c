package engine

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/spektr-org/obsviz/schema"
)

// ============================================================================
// TEST FIXTURES
// ============================================================================

// obs builds an observation from alternating field/value pairs.
func obs(kv ...any) Observation {
	m := make(map[schema.Field]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i].(schema.Field)] = kv[i+1]
	}
	return NewObservation(m)
}

// sectorFixture is 10 records, 3 of them in Energy.
func sectorFixture() []Observation {
	sectors := []string{"Energy", "Retail", "Energy", "Financial services", "Government",
		"Energy", "Healthcare", "Transport", "Manufacturing", "Aerospace"}
	out := make([]Observation, len(sectors))
	for i, s := range sectors {
		out[i] = obs(
			schema.Sector, s,
			schema.Intensity, i+1,
			schema.Published, time.Date(2020, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
			schema.Pestle, []string{"Economic", "Political", "Social"}[i%3],
		)
	}
	return out
}

// numbered returns n records whose intensity is their index.
func numbered(n int) []Observation {
	out := make([]Observation, n)
	for i := range out {
		out[i] = obs(schema.Intensity, i, schema.Sector, "Energy")
	}
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ms(y int, m time.Month, d int) float64 {
	return float64(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).UnixMilli())
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func intensities(t *testing.T, view RecordView) []float64 {
	t.Helper()
	out := make([]float64, 0, view.Len())
	for i := 0; i < view.Len(); i++ {
		v, ok := view.At(i).Number(schema.Intensity)
		if !ok {
			t.Fatalf("record %d has no intensity", i)
		}
		out = append(out, v)
	}
	return out
}
