// Package atmos provides a client for the Atmos device-data API, which
// serves per-station pollutant time series as CSV.
package atmos

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultBaseURL is the base URL for the Atmos series endpoint.
	DefaultBaseURL = "https://atmos.urbansciences.in/adp/v4/getDeviceDataParamClone"

	// DefaultMaxAttempts bounds the per-fetch retry loop.
	DefaultMaxAttempts = 4

	// DefaultRetryDelay is the fixed interval between attempts. The
	// source is flaky rather than overloaded, so there is no backoff
	// growth and no circuit breaking.
	DefaultRetryDelay = 1 * time.Second
)

// Aggregation is the time-bucket width of the requested series.
type Aggregation string

// Supported aggregation granularities.
const (
	Aggregation15Min   Aggregation = "15min"
	AggregationHourly  Aggregation = "hourly"
	AggregationDaily   Aggregation = "daily"
	AggregationMonthly Aggregation = "monthly"
	AggregationYearly  Aggregation = "yearly"
)

// ParseAggregation validates an aggregation token from a request.
func ParseAggregation(s string) (Aggregation, error) {
	switch Aggregation(s) {
	case Aggregation15Min, AggregationHourly, AggregationDaily, AggregationMonthly, AggregationYearly:
		return Aggregation(s), nil
	default:
		return "", fmt.Errorf("unsupported aggregation %q", s)
	}
}

// timeRef maps an aggregation onto the source's time-reference token and
// averaging window. 15min data is only available at minute resolution
// with a 15-unit window; the other granularities are aggregated by the
// source itself.
func timeRef(agg Aggregation) (string, int) {
	switch agg {
	case Aggregation15Min:
		return "mm", 15
	case AggregationDaily:
		return "dd", 1
	case AggregationMonthly:
		return "MM", 1
	case AggregationYearly:
		return "YY", 1
	default:
		return "hh", 1
	}
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Atmos client.
type ClientConfig struct {
	// BaseURL is the series endpoint (defaults to DefaultBaseURL).
	BaseURL string

	// APIKey is the static credential embedded in each request path.
	APIKey string

	// HTTPClient is the HTTP client to use. If nil, a default client
	// with Timeout is created.
	HTTPClient HTTPDoer

	// Timeout for individual requests (default: 30s).
	Timeout time.Duration

	// MaxAttempts bounds the retry loop (default: DefaultMaxAttempts).
	MaxAttempts uint64

	// RetryDelay is the fixed inter-attempt delay (default: DefaultRetryDelay).
	RetryDelay time.Duration
}

// Client fetches station time series from the Atmos API.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  HTTPDoer
	maxAttempts uint64
	retryDelay  time.Duration
}

// NewClient creates a new Atmos client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxAttempts
	}

	retryDelay := cfg.RetryDelay
	if retryDelay == 0 {
		retryDelay = DefaultRetryDelay
	}

	return &Client{
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		httpClient:  httpClient,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
	}
}

// SeriesRequest identifies one (station, pollutant) time-series fetch.
type SeriesRequest struct {
	// StationID is the device identifier from the station directory.
	StationID string

	// Pollutant is the source parameter code (e.g. "pm2.5cnc").
	Pollutant string

	// Start and End bound the window, formatted YYYY-MM-DDTHH:mm.
	Start string
	End   string

	// Aggregation selects the time-bucket width.
	Aggregation Aggregation

	// Gaps is the gap-tolerance count passed through to the source.
	Gaps int

	// GapValue is the fill token the source writes for missing points.
	GapValue string
}

// Series is the raw tabular response for one fetch. Rows carry a
// timestamp column plus one column per requested pollutant; column
// names are source-controlled.
type Series struct {
	Columns []string
	Records [][]string
}

// Empty reports whether the series carries no data rows.
func (s Series) Empty() bool {
	return len(s.Records) == 0
}

// FetchSeries retrieves the series for req, retrying transport and parse
// failures at a fixed interval up to the attempt bound. After exhaustion
// the last error is returned; callers treat that as an empty series.
func (c *Client) FetchSeries(ctx context.Context, req SeriesRequest) (Series, error) {
	var series Series

	operation := func() error {
		s, err := c.fetchOnce(ctx, req)
		if err != nil {
			return err
		}
		series = s
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryDelay), c.maxAttempts-1),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return Series{}, fmt.Errorf("fetch series for station %s: %w", req.StationID, err)
	}

	return series, nil
}

func (c *Client) fetchOnce(ctx context.Context, req SeriesRequest) (Series, error) {
	ref, window := timeRef(req.Aggregation)

	endpoint := fmt.Sprintf("%s/imei/%s/params/%s/startdate/%s/enddate/%s/ts/%s/avg/%d/api/%s?gaps=%d&gap_value=%s",
		c.baseURL,
		req.StationID,
		req.Pollutant,
		req.Start,
		req.End,
		ref,
		window,
		c.apiKey,
		req.Gaps,
		url.QueryEscape(req.GapValue),
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return Series{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Series{}, fmt.Errorf("fetch series: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Series{}, fmt.Errorf("unexpected status %d from series endpoint", resp.StatusCode)
	}

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = -1 // source rows are ragged around gaps
	rows, err := reader.ReadAll()
	if err != nil {
		return Series{}, fmt.Errorf("decode series response: %w", err)
	}
	if len(rows) == 0 {
		return Series{}, nil
	}

	return Series{Columns: rows[0], Records: rows[1:]}, nil
}
