// Package forecast wraps the external ML forecasting service. The
// model itself is a black box; this package only moves already-shaped
// JSON across the wire with a bounded timeout.
package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var upstreamDuration *prometheus.HistogramVec

// InitMetrics registers the upstream latency histogram. Call once at
// process start.
func InitMetrics() {
	upstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aqgateway",
			Name:      "forecast_upstream_seconds",
			Help:      "Latency of calls to the forecasting service.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"endpoint"},
	)
	prometheus.MustRegister(upstreamDuration)
}

var (
	// ErrUpstreamTimeout means the forecasting service did not answer
	// within the configured deadline. Mapped to 504 by the gateway.
	ErrUpstreamTimeout = errors.New("forecast service timed out")
	// ErrUpstreamFailure covers every other upstream problem. Mapped
	// to 502 by the gateway.
	ErrUpstreamFailure = errors.New("forecast service failed")
)

// Service is the forecasting collaborator as the handlers see it.
type Service interface {
	Sites(ctx context.Context) (json.RawMessage, error)
	Predict(ctx context.Context, siteID string, data []map[string]any) (json.RawMessage, error)
	Timeseries(ctx context.Context, siteID string, data []map[string]any, historicalPoints int) (json.RawMessage, error)
}

// Client talks to the ML service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Sites(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/sites/", nil)
}

func (c *Client) Predict(ctx context.Context, siteID string, data []map[string]any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/predict/", map[string]any{
		"site_id": siteID,
		"data":    data,
	})
}

func (c *Client) Timeseries(ctx context.Context, siteID string, data []map[string]any, historicalPoints int) (json.RawMessage, error) {
	if historicalPoints <= 0 {
		historicalPoints = 72
	}
	return c.do(ctx, http.MethodPost, "/forecast/timeseries/", map[string]any{
		"site_id":           siteID,
		"data":              data,
		"historical_points": historicalPoints,
	})
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: encode request: %v", ErrUpstreamFailure, err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if upstreamDuration != nil {
		upstreamDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if isTimeout(err) {
			return nil, ErrUpstreamTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamFailure, resp.StatusCode)
	}

	var out json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUpstreamFailure, err)
	}
	return out, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
