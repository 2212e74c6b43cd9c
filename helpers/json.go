package helpers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cast"

	"github.com/spektr-org/obsviz/engine"
	"github.com/spektr-org/obsviz/schema"
)

// ============================================================================
// JSON HELPERS — Decode observation API payloads
// ============================================================================
// The observation API returns:
//   observation/observations        → [{"intensity": 6, "sector": "Energy", ...}]
//   observation/{category}/domain   → ["Asia", "Europe", ...]
//   aggregated records              → [{"pestle": "Economic", "region": "Asia", "mean_intensity": 30}]
// Numbers are kept as json.Number; unknown keys are ignored.
// ============================================================================

// keyCache maps wire keys onto catalog fields. Payloads repeat the same
// few keys on every object.
var keyCache sync.Map // string → wireKey

type wireKey struct {
	field schema.Field
	mean  bool
}

func lookupKey(key string) (wireKey, bool) {
	if k, ok := keyCache.Load(key); ok {
		wk := k.(wireKey)
		return wk, wk.field != ""
	}
	var wk wireKey
	if hm, err := schema.MapHeaders([]string{key}); err == nil {
		if f, ok := hm.Means[0]; ok {
			wk = wireKey{field: f, mean: true}
		} else {
			wk = wireKey{field: hm.Columns[0]}
		}
	}
	keyCache.Store(key, wk)
	return wk, wk.field != ""
}

// DecodeObservations reads a JSON array of observation objects.
func DecodeObservations(r io.Reader) ([]engine.Observation, error) {
	var raw []map[string]any
	if err := decode(r, &raw); err != nil {
		return nil, fmt.Errorf("decode observations: %w", err)
	}

	records := make([]engine.Observation, 0, len(raw))
	for _, obj := range raw {
		values := make(map[schema.Field]any, len(obj))
		for k, v := range obj {
			if wk, ok := lookupKey(k); ok && !wk.mean {
				values[wk.field] = v
			}
		}
		records = append(records, engine.NewObservation(values))
	}
	return records, nil
}

// DecodeAggregated reads a JSON array of aggregated records. Mean values
// may arrive as numbers or numeric strings.
func DecodeAggregated(r io.Reader) ([]engine.AggregatedObservation, error) {
	var raw []map[string]any
	if err := decode(r, &raw); err != nil {
		return nil, fmt.Errorf("decode aggregated observations: %w", err)
	}

	records := make([]engine.AggregatedObservation, 0, len(raw))
	for _, obj := range raw {
		values := make(map[schema.Field]any, len(obj))
		means := make(map[schema.Field]float64, 1)
		for k, v := range obj {
			wk, ok := lookupKey(k)
			if !ok {
				continue
			}
			if !wk.mean {
				values[wk.field] = v
				continue
			}
			if v == nil {
				continue
			}
			if f, err := cast.ToFloat64E(v); err == nil {
				means[wk.field] = f
			}
		}
		records = append(records, engine.NewAggregatedObservation(values, means))
	}
	return records, nil
}

// DecodeDomain reads a JSON array of category values. Null entries are
// dropped; other scalars are stringified.
func DecodeDomain(r io.Reader) ([]string, error) {
	var raw []any
	if err := decode(r, &raw); err != nil {
		return nil, fmt.Errorf("decode domain: %w", err)
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if v == nil {
			continue
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// ParsePalette reads one color code per line. Blank lines are skipped.
func ParsePalette(r io.Reader) ([]string, error) {
	var colors []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		colors = append(colors, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read palette: %w", err)
	}
	return colors, nil
}

func decode(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return dec.Decode(v)
}
