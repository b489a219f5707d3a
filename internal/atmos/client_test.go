package atmos_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityair/cityair-export/internal/atmos"
)

const sampleCSV = "dt_time,pm2.5cnc\n2024-01-01 00:00:00,81.2\n2024-01-02 00:00:00,77.5\n"

func TestClient_FetchSeries(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(sampleCSV))
	}))
	defer server.Close()

	client := atmos.NewClient(atmos.ClientConfig{
		BaseURL: server.URL,
		APIKey:  "testkey",
	})

	series, err := client.FetchSeries(context.Background(), atmos.SeriesRequest{
		StationID:   "site_104",
		Pollutant:   "pm2.5cnc",
		Start:       "2024-01-01T00:00",
		End:         "2024-01-03T00:00",
		Aggregation: atmos.AggregationDaily,
		Gaps:        1,
		GapValue:    "NULL",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"dt_time", "pm2.5cnc"}, series.Columns)
	require.Len(t, series.Records, 2)
	assert.Equal(t, []string{"2024-01-01 00:00:00", "81.2"}, series.Records[0])
	assert.False(t, series.Empty())

	// The request parameters are path segments, daily maps to dd/1.
	assert.Contains(t, gotPath, "/imei/site_104/")
	assert.Contains(t, gotPath, "/params/pm2.5cnc/")
	assert.Contains(t, gotPath, "/startdate/2024-01-01T00:00/")
	assert.Contains(t, gotPath, "/enddate/2024-01-03T00:00/")
	assert.Contains(t, gotPath, "/ts/dd/avg/1/")
	assert.Contains(t, gotPath, "/api/testkey")
	assert.Equal(t, "gaps=1&gap_value=NULL", gotQuery)
}

func TestClient_FetchSeries_FifteenMinuteWindow(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(sampleCSV))
	}))
	defer server.Close()

	client := atmos.NewClient(atmos.ClientConfig{BaseURL: server.URL, APIKey: "k"})

	_, err := client.FetchSeries(context.Background(), atmos.SeriesRequest{
		StationID:   "site_104",
		Pollutant:   "pm2.5cnc",
		Start:       "2024-01-01T00:00",
		End:         "2024-01-02T00:00",
		Aggregation: atmos.Aggregation15Min,
	})
	require.NoError(t, err)

	// 15min data comes from minute resolution with a 15-unit window.
	assert.Contains(t, gotPath, "/ts/mm/avg/15/")
}

func TestClient_FetchSeries_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(sampleCSV))
	}))
	defer server.Close()

	client := atmos.NewClient(atmos.ClientConfig{
		BaseURL:    server.URL,
		APIKey:     "k",
		RetryDelay: time.Millisecond,
	})

	series, err := client.FetchSeries(context.Background(), atmos.SeriesRequest{
		StationID:   "site_104",
		Pollutant:   "pm2.5cnc",
		Aggregation: atmos.AggregationHourly,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, series.Records, 2)
}

func TestClient_FetchSeries_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := atmos.NewClient(atmos.ClientConfig{
		BaseURL:    server.URL,
		APIKey:     "k",
		RetryDelay: time.Millisecond,
	})

	_, err := client.FetchSeries(context.Background(), atmos.SeriesRequest{
		StationID:   "site_104",
		Pollutant:   "pm2.5cnc",
		Aggregation: atmos.AggregationHourly,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "site_104")
	assert.Equal(t, int32(atmos.DefaultMaxAttempts), calls.Load())
}

func TestClient_FetchSeries_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := atmos.NewClient(atmos.ClientConfig{BaseURL: server.URL, APIKey: "k"})

	series, err := client.FetchSeries(context.Background(), atmos.SeriesRequest{
		StationID:   "site_104",
		Pollutant:   "pm2.5cnc",
		Aggregation: atmos.AggregationDaily,
	})
	require.NoError(t, err)
	assert.True(t, series.Empty())
}

func TestClient_FetchSeries_RaggedRows(t *testing.T) {
	// Gap rows can carry fewer fields than the header.
	ragged := "dt_time,pm2.5cnc\n2024-01-01 00:00:00,81.2\n2024-01-02 00:00:00\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(ragged))
	}))
	defer server.Close()

	client := atmos.NewClient(atmos.ClientConfig{BaseURL: server.URL, APIKey: "k"})

	series, err := client.FetchSeries(context.Background(), atmos.SeriesRequest{
		StationID:   "site_104",
		Pollutant:   "pm2.5cnc",
		Aggregation: atmos.AggregationDaily,
	})
	require.NoError(t, err)
	require.Len(t, series.Records, 2)
	assert.Len(t, series.Records[1], 1)
}

func TestParseAggregation(t *testing.T) {
	for _, valid := range []string{"15min", "hourly", "daily", "monthly", "yearly"} {
		agg, err := atmos.ParseAggregation(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, string(agg))
	}

	_, err := atmos.ParseAggregation("weekly")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "weekly"))
}

func TestClient_FetchSeries_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := atmos.NewClient(atmos.ClientConfig{
		BaseURL:    server.URL,
		APIKey:     "k",
		RetryDelay: time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchSeries(ctx, atmos.SeriesRequest{
		StationID:   "site_104",
		Pollutant:   "pm2.5cnc",
		Aggregation: atmos.AggregationDaily,
	})
	assert.Error(t, err)
}
