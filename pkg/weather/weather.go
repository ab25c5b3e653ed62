// Package weather is the client for the local weather service.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/griddash/griddash/pkg/common"
	"github.com/griddash/griddash/pkg/types"
	"github.com/levenlabs/go-lflag"
)

// TempHistory is observed temperatures plus the latest readings.
type TempHistory struct {
	Series    types.Series[float64] `json:"series"`
	Current   float64               `json:"current"`
	Perceived float64               `json:"perceived"`
}

// Forecast is the predicted temperature and weather symbols for a window.
type Forecast struct {
	Temp    types.Series[float64] `json:"temp"`
	Symbols types.Series[string]  `json:"symbols"`
}

// Client talks to the household's weather service.
type Client struct {
	client *http.Client
	host   string
}

// Configured sets up flags for the weather service and returns the client.
func Configured() *Client {
	c := &Client{
		client: common.HTTPClient(30 * time.Second),
	}
	host := lflag.String("weather-host", "localhost:8520", "host:port of the local weather service")

	lflag.Do(func() {
		c.host = *host
		if err := c.Validate(); err != nil {
			panic(fmt.Sprintf("weather validation failed: %v", err))
		}
	})

	return c
}

// Validate ensures the configuration is valid.
func (c *Client) Validate() error {
	if c.host == "" {
		return fmt.Errorf("weather-host is required")
	}
	return nil
}

// GetTempHistory returns the temperature history within [from, to]. The
// returned series always has a point at to, and at from when ensureFrom is
// set, duplicating the nearest reading when the service has no sample exactly
// on the boundary. Charts rely on the boundaries being present.
func (c *Client) GetTempHistory(ctx context.Context, from, to time.Time, ensureFrom bool) (TempHistory, error) {
	var h TempHistory
	if err := c.get(ctx, "/temperature", url.Values{
		"from": []string{from.Format(time.RFC3339)},
		"to":   []string{to.Format(time.RFC3339)},
	}, &h); err != nil {
		return TempHistory{}, err
	}
	if len(h.Series) == 0 {
		return h, nil
	}

	if ensureFrom && !h.Series[0].TS.Equal(from) {
		first := types.Point[float64]{TS: from, V: h.Series[0].V}
		h.Series = append(types.Series[float64]{first}, h.Series...)
	}
	if last := h.Series[len(h.Series)-1]; !last.TS.Equal(to) {
		h.Series = append(h.Series, types.Point[float64]{TS: to, V: last.V})
	}
	return h, nil
}

// GetForecast returns the forecast within [from, to).
func (c *Client) GetForecast(ctx context.Context, from, to time.Time) (Forecast, error) {
	var f Forecast
	if err := c.get(ctx, "/forecast", url.Values{
		"from": []string{from.Format(time.RFC3339)},
		"to":   []string{to.Format(time.RFC3339)},
	}, &f); err != nil {
		return Forecast{}, err
	}
	return f, nil
}

// GetMinMax returns the lowest and highest observed temperature in [from, to].
func (c *Client) GetMinMax(ctx context.Context, from, to time.Time) (float64, float64, error) {
	var res struct {
		Min float64 `json:"min"`
		Max float64 `json:"max"`
	}
	if err := c.get(ctx, "/temperature/minmax", url.Values{
		"from": []string{from.Format(time.RFC3339)},
		"to":   []string{to.Format(time.RFC3339)},
	}, &res); err != nil {
		return 0, 0, err
	}
	return res.Min, res.Max, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := url.URL{Scheme: "http", Host: c.host, Path: path, RawQuery: query.Encode()}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create weather request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weather returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read weather response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse weather response: %w", err)
	}
	return nil
}
