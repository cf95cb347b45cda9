package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

const payload = `{
	"hourly": {
		"time": ["2026-01-15T00:00", "2026-01-15T01:00", "2026-01-15T02:00", "2026-01-15T03:00"],
		"temperature_2m": [-6.2, null, -4.8, -4.1],
		"snowfall": [0.5, 1.2, null, 0.0],
		"snow_depth": [1.45, 1.46, 1.47, null]
	},
	"current": {
		"time": "2026-01-15T02:00",
		"temperature_2m": -4.8,
		"snow_depth": 1.47,
		"relative_humidity_2m": 82.0,
		"wind_speed_10m": 14.5
	}
}`

func newServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(ClientConfig{
		Endpoint: srv.URL,
		Backoff: BackoffConfig{
			MaxRetries:      2,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
	}, zap.NewNop().Sugar())
	return srv, client
}

func TestFetchParsesHourlySeries(t *testing.T) {
	_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("latitude") == "" {
			t.Error("latitude missing from request")
		}
		w.Write([]byte(payload))
	})

	tel, err := client.Fetch(context.Background(), 46.55, 7.98, 2100, nil)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	// Hours at or before the current reading are history; the one after it
	// is the forecast tail.
	if len(tel.Hourly) != 3 {
		t.Fatalf("hourly count = %d, want 3", len(tel.Hourly))
	}
	if len(tel.Forecast) != 1 {
		t.Fatalf("forecast count = %d, want 1", len(tel.Forecast))
	}

	if tel.Hourly[0].TemperatureC == nil || *tel.Hourly[0].TemperatureC != -6.2 {
		t.Errorf("first temperature = %v, want -6.2", tel.Hourly[0].TemperatureC)
	}
	if tel.Hourly[1].TemperatureC != nil {
		t.Error("null temperature should decode to nil")
	}
	if tel.Hourly[0].SnowDepthCM == nil || *tel.Hourly[0].SnowDepthCM != 145 {
		t.Errorf("depth = %v cm, want 145 (converted from meters)", tel.Hourly[0].SnowDepthCM)
	}

	if tel.Current.TemperatureC == nil || *tel.Current.TemperatureC != -4.8 {
		t.Errorf("current temperature = %v, want -4.8", tel.Current.TemperatureC)
	}
	want := time.Date(2026, 1, 15, 2, 0, 0, 0, time.UTC)
	if !tel.Current.Timestamp.Equal(want) {
		t.Errorf("current timestamp = %v, want %v", tel.Current.Timestamp, want)
	}
}

func TestFetchSendsFreezeHint(t *testing.T) {
	var gotHint string
	_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotHint = r.URL.Query().Get("freeze_hint")
		w.Write([]byte(payload))
	})

	hint := time.Date(2026, 1, 10, 6, 0, 0, 0, time.UTC)
	if _, err := client.Fetch(context.Background(), 46.55, 7.98, 2100, &hint); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if gotHint != "2026-01-10T06:00:00Z" {
		t.Errorf("freeze_hint = %q, want RFC3339 hint", gotHint)
	}
}

func TestFetchRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(payload))
	})

	if _, err := client.Fetch(context.Background(), 46.55, 7.98, 2100, nil); err != nil {
		t.Fatalf("Fetch failed after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("call count = %d, want 3 (two retries)", calls.Load())
	}
}

func TestFetchEmptySeriesFails(t *testing.T) {
	_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hourly": {"time": []}, "current": {"time": ""}}`))
	})
	if _, err := client.Fetch(context.Background(), 46.55, 7.98, 2100, nil); err == nil {
		t.Fatal("expected error for empty hourly series")
	}
}

func TestFetchRespectsContextCancellation(t *testing.T) {
	_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Fetch(ctx, 46.55, 7.98, 2100, nil); err == nil {
		t.Fatal("expected context cancellation error")
	}
}
