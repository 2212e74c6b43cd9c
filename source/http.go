package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/spektr-org/obsviz/engine"
	"github.com/spektr-org/obsviz/helpers"
	"github.com/spektr-org/obsviz/schema"
)

// ============================================================================
// HTTP SOURCE — Calls the observation API
// ============================================================================
// Endpoints, relative to the base URL:
//   GET observation/observations
//   GET observation/{category}/domain
//   GET observation/aggregated?x_field=&y_field=&group_field=
// The palette is a plain-text resource at its own URL.
//
// Concurrent identical requests share one round trip. The shared request
// is detached from any single caller's cancellation; each caller still
// stops waiting when its own context ends.
// ============================================================================

// HTTPConfig holds HTTP source configuration.
type HTTPConfig struct {
	BaseURL    string        // observation API root, e.g. "http://localhost:8080/api/"
	PaletteURL string        // text resource, one color per line (empty = none)
	Timeout    time.Duration // per request (0 = 30s)
}

// HTTP is an engine.Source backed by the observation API.
type HTTP struct {
	base       *url.URL
	paletteURL string
	client     *http.Client
	log        *slog.Logger
	group      singleflight.Group
}

var _ engine.Source = (*HTTP)(nil)

// NewHTTP creates an HTTP source. A nil logger uses slog.Default().
func NewHTTP(cfg HTTPConfig, logger *slog.Logger) (*HTTP, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTP{
		base:       base,
		paletteURL: cfg.PaletteURL,
		client:     &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}, nil
}

// Observations fetches the full record set.
func (h *HTTP) Observations(ctx context.Context) ([]engine.Observation, error) {
	body, err := h.fetch(ctx, h.endpoint("observation/observations", nil))
	if err != nil {
		return nil, err
	}
	return helpers.DecodeObservations(bytes.NewReader(body))
}

// CategoryDomain fetches the authoritative distinct values of category.
func (h *HTTP) CategoryDomain(ctx context.Context, category schema.Field) ([]string, error) {
	if err := checkCategory(category); err != nil {
		return nil, err
	}
	path := "observation/" + url.PathEscape(string(category)) + "/domain"
	body, err := h.fetch(ctx, h.endpoint(path, nil))
	if err != nil {
		return nil, err
	}
	return helpers.DecodeDomain(bytes.NewReader(body))
}

// Aggregated fetches the mean of y per (x, group) pair.
func (h *HTTP) Aggregated(ctx context.Context, x, y, group schema.Field) ([]engine.AggregatedObservation, error) {
	if err := checkAggregate(x, y, group); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("x_field", string(x))
	q.Set("y_field", string(y))
	q.Set("group_field", string(group))
	body, err := h.fetch(ctx, h.endpoint("observation/aggregated", q))
	if err != nil {
		return nil, err
	}
	return helpers.DecodeAggregated(bytes.NewReader(body))
}

// Palette fetches the palette text resource.
func (h *HTTP) Palette(ctx context.Context) ([]string, error) {
	if h.paletteURL == "" {
		return nil, ErrNoPalette
	}
	body, err := h.fetch(ctx, h.paletteURL)
	if err != nil {
		return nil, err
	}
	return helpers.ParsePalette(bytes.NewReader(body))
}

// ============================================================================
// TRANSPORT
// ============================================================================

func (h *HTTP) endpoint(path string, q url.Values) string {
	u := h.base.ResolveReference(&url.URL{Path: path})
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// fetch GETs target, sharing the round trip with concurrent callers.
func (h *HTTP) fetch(ctx context.Context, target string) ([]byte, error) {
	ch := h.group.DoChan(target, func() (any, error) {
		return h.get(context.WithoutCancel(ctx), target)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *HTTP) get(ctx context.Context, target string) ([]byte, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	h.log.Debug("source fetch", "url", target, "status", resp.StatusCode, "bytes", len(body), "duration", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s returned %d: %s", target, resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
