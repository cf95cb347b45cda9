// Package telemetry fetches hourly weather histories from the upstream
// weather source. The source exposes a bounded lookback window; anything
// older has to come from the durable summary records.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/powdertrack/snowengine/internal/constants"
	"github.com/powdertrack/snowengine/internal/types"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// DefaultEndpoint is the weather API base URL used when none is configured.
const DefaultEndpoint = "https://api.open-meteo.com/v1/forecast"

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
	errCircuitOpen = errors.New("circuit breaker open")
)

// BackoffConfig controls retry behaviour on transient upstream failures.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// ClientConfig configures the telemetry client.
type ClientConfig struct {
	Endpoint      string
	LookbackHours int
	ForecastHours int
	Timeout       time.Duration
	Backoff       BackoffConfig
}

// Client fetches hourly telemetry for a coordinate. A circuit breaker guards
// the upstream so a failing source sheds load instead of being hammered.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.SugaredLogger
}

// NewClient creates a telemetry client.
func NewClient(cfg ClientConfig, logger *zap.SugaredLogger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.LookbackHours <= 0 {
		cfg.LookbackHours = constants.VisibleHorizonHours
	}
	if cfg.ForecastHours < 0 {
		cfg.ForecastHours = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Backoff.MaxRetries == 0 {
		cfg.Backoff = BackoffConfig{
			MaxRetries:      2,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		}
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "weather-telemetry",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf("telemetry breaker %s: %s -> %s", name, from, to)
		},
	})

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		logger:  logger,
	}
}

// hourlyResponse mirrors the source's column-oriented hourly payload. Nulls
// in the value arrays decode to nil pointers.
type hourlyResponse struct {
	Hourly struct {
		Time        []string   `json:"time"`
		Temperature []*float64 `json:"temperature_2m"`
		Snowfall    []*float64 `json:"snowfall"`
		SnowDepth   []*float64 `json:"snow_depth"`
	} `json:"hourly"`
	Current struct {
		Time        string   `json:"time"`
		Temperature *float64 `json:"temperature_2m"`
		SnowDepth   *float64 `json:"snow_depth"`
		Humidity    *float64 `json:"relative_humidity_2m"`
		WindSpeed   *float64 `json:"wind_speed_10m"`
	} `json:"current"`
}

// Fetch retrieves the hourly history, current reading, and forecast tail for
// one site coordinate. The optional freeze-date hint lets the source pre-seed
// its own accumulation-since-freeze figure.
func (c *Client) Fetch(ctx context.Context, lat, lon, elevation float64, freezeHint *time.Time) (*types.SiteTelemetry, error) {
	v := url.Values{}
	v.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	v.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	v.Set("elevation", strconv.FormatFloat(elevation, 'f', 0, 64))
	v.Set("hourly", "temperature_2m,snowfall,snow_depth")
	v.Set("current", "temperature_2m,snow_depth,relative_humidity_2m,wind_speed_10m")
	v.Set("past_hours", strconv.Itoa(c.cfg.LookbackHours))
	v.Set("forecast_hours", strconv.Itoa(c.cfg.ForecastHours))
	v.Set("timeformat", "iso8601")
	v.Set("timezone", "UTC")
	if freezeHint != nil {
		v.Set("freeze_hint", freezeHint.UTC().Format(time.RFC3339))
	}

	reqURL := c.cfg.Endpoint + "?" + v.Encode()
	c.logger.Debugf("fetching telemetry: %s", reqURL)

	body, err := c.doWithRetry(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp hourlyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unable to decode telemetry response: %w", err)
	}
	return c.assemble(&resp)
}

// doWithRetry wraps the request in the breaker with bounded exponential
// backoff on transient failures.
func (c *Client) doWithRetry(ctx context.Context, reqURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return nil, err
			}
			resp, err := c.http.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusTooManyRequests {
				return nil, errRateLimited
			}
			if resp.StatusCode >= 500 {
				return nil, errServerError
			}
			if resp.StatusCode != http.StatusOK {
				return nil, fmt.Errorf("unexpected status %s", resp.Status)
			}
			return io.ReadAll(resp.Body)
		})
		if err == nil {
			return result.([]byte), nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		lastErr = err
		if attempt >= c.cfg.Backoff.MaxRetries {
			return nil, lastErr
		}

		delay := c.cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if c.cfg.Backoff.MaxInterval > 0 && delay > c.cfg.Backoff.MaxInterval {
			delay = c.cfg.Backoff.MaxInterval
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// assemble converts the column-oriented payload into ordered hourly samples,
// splitting history from the forecast tail at the current hour. Snow depth
// arrives in meters and is converted to centimeters.
func (c *Client) assemble(resp *hourlyResponse) (*types.SiteTelemetry, error) {
	n := len(resp.Hourly.Time)
	if n == 0 {
		return nil, fmt.Errorf("telemetry response contained no hourly data")
	}

	samples := make([]types.HourlySample, 0, n)
	for i, ts := range resp.Hourly.Time {
		when, err := parseHour(ts)
		if err != nil {
			c.logger.Debugf("skipping unparseable hourly timestamp %q: %v", ts, err)
			continue
		}
		sample := types.HourlySample{Timestamp: when}
		if i < len(resp.Hourly.Temperature) {
			sample.TemperatureC = resp.Hourly.Temperature[i]
		}
		if i < len(resp.Hourly.Snowfall) {
			sample.SnowfallCM = resp.Hourly.Snowfall[i]
		}
		if i < len(resp.Hourly.SnowDepth) {
			sample.SnowDepthCM = metersToCM(resp.Hourly.SnowDepth[i])
		}
		samples = append(samples, sample)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("telemetry response contained no usable hourly data")
	}

	out := &types.SiteTelemetry{FetchedAt: time.Now().UTC()}

	currentTime, err := parseHour(resp.Current.Time)
	if err != nil {
		// Degrade to the newest hourly sample rather than failing the fetch.
		currentTime = samples[len(samples)-1].Timestamp
	}
	out.Current = types.CurrentReading{
		Timestamp:    currentTime,
		TemperatureC: resp.Current.Temperature,
		SnowDepthCM:  metersToCM(resp.Current.SnowDepth),
		HumidityPct:  resp.Current.Humidity,
		WindSpeedKMH: resp.Current.WindSpeed,
	}

	for _, sample := range samples {
		if sample.Timestamp.After(currentTime) {
			out.Forecast = append(out.Forecast, sample)
		} else {
			out.Hourly = append(out.Hourly, sample)
		}
	}
	return out, nil
}

func parseHour(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	when, err := time.Parse("2006-01-02T15:04", s)
	if err != nil {
		return time.Time{}, err
	}
	return when.UTC().Truncate(time.Hour), nil
}

func metersToCM(m *float64) *float64 {
	if m == nil {
		return nil
	}
	cm := *m * 100
	return &cm
}
