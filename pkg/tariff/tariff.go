// Package tariff retrieves day-ahead electricity prices and applies the
// household's grid and trade fees to arrive at the effective buy price.
package tariff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/griddash/griddash/pkg/common"
	"github.com/griddash/griddash/pkg/timeutil"
	"github.com/griddash/griddash/pkg/types"
	"github.com/levenlabs/go-lflag"
)

// ErrNoData means the day-ahead prices for the requested day have not been
// published yet. Not a failure; the caller retries next tick.
var ErrNoData = errors.New("day-ahead prices not published yet")

// the shortest valid day is the 23-hour spring-forward day at 92 quarter-hour
// entries; any shorter response is truncated and unusable
const minDayEntries = 92

// Fees are the contract constants added on top of the spot price. All in
// öre/kWh except SpotFeePercentage (a percentage of the day average).
type Fees struct {
	VariableFee           float64 `json:"variableFee"`
	EnergyTax             float64 `json:"energyTax"`
	SpotFeePercentage     float64 `json:"spotFeePercentage"`
	SwedishPowerGrid      float64 `json:"swedishPowerGrid"`
	BalanceResponsibility float64 `json:"balanceResponsibility"`
	ElectricCertificate   float64 `json:"electricCertificate"`
	GuaranteesOfOrigin    float64 `json:"guaranteesOfOrigin"`
	Fixed                 float64 `json:"fixed"`
}

// Client fetches day-ahead prices from the Nord Pool data portal.
type Client struct {
	client       *http.Client
	apiURL       string
	deliveryArea string
	currency     string
	fees         Fees

	mu         sync.Mutex
	cachedDay  timeutil.Date
	cachedBuy  types.Series[float64]
	haveCached bool
}

// Configured sets up flags for the price service and returns the client.
func Configured() *Client {
	c := &Client{
		client: common.HTTPClient(30 * time.Second),
	}
	apiURL := lflag.String("tariff-api-url", "https://dataportal-api.nordpoolgroup.com/api/DayAheadPrices", "URL for the day-ahead price API")
	area := lflag.String("tariff-delivery-area", "SE4", "Nord Pool delivery area")
	currency := lflag.String("tariff-currency", "SEK", "Price currency")
	var fees Fees
	lflag.JSON(&fees, "tariff-fees", fees, "JSON object of fee components in öre/kWh (spotFeePercentage is a percent of the day average)")

	lflag.Do(func() {
		c.apiURL = *apiURL
		c.deliveryArea = *area
		c.currency = *currency
		fees.SpotFeePercentage /= 100.0
		c.fees = fees
		if err := c.Validate(); err != nil {
			panic(fmt.Sprintf("tariff validation failed: %v", err))
		}
	})

	return c
}

// Validate ensures the configuration is valid.
func (c *Client) Validate() error {
	if c.apiURL == "" {
		return fmt.Errorf("tariff-api-url is required")
	}
	if _, err := url.Parse(c.apiURL); err != nil {
		return fmt.Errorf("failed to parse tariff url (%s): %w", c.apiURL, err)
	}
	if c.deliveryArea == "" {
		return fmt.Errorf("tariff-delivery-area is required")
	}
	return nil
}

// SetFees overrides the configured fees. This is primarily used for testing.
func (c *Client) SetFees(f Fees) {
	f.SpotFeePercentage /= 100.0
	c.fees = f
}

type dayAheadResponse struct {
	MultiAreaEntries []struct {
		DeliveryStart time.Time          `json:"deliveryStart"`
		EntryPerArea  map[string]float64 `json:"entryPerArea"`
	} `json:"multiAreaEntries"`
}

// GetDayTariffs returns the effective quarter-hour buy prices for the local
// day [dayStart, dayEnd). Returns ErrNoData while the day is unpublished.
// Successful responses are cached per day since published prices never change.
func (c *Client) GetDayTariffs(ctx context.Context, dayStart, dayEnd time.Time, day timeutil.Date) (types.Series[float64], error) {
	c.mu.Lock()
	if c.haveCached && c.cachedDay == day {
		buy := c.cachedBuy
		c.mu.Unlock()
		return buy, nil
	}
	c.mu.Unlock()

	res, err := c.fetchDay(ctx, day)
	if err != nil {
		return nil, err
	}

	buy, err := c.toSeries(res, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cachedDay = day
	c.cachedBuy = buy
	c.haveCached = true
	c.mu.Unlock()

	return buy, nil
}

func (c *Client) fetchDay(ctx context.Context, day timeutil.Date) (dayAheadResponse, error) {
	query := url.Values{
		"date":         []string{day.String()},
		"market":       []string{"DayAhead"},
		"deliveryArea": []string{c.deliveryArea},
		"currency":     []string{c.currency},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+query.Encode(), nil)
	if err != nil {
		return dayAheadResponse{}, fmt.Errorf("failed to create tariff request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return dayAheadResponse{}, fmt.Errorf("tariff request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return dayAheadResponse{}, ErrNoData
	}
	if resp.StatusCode != http.StatusOK {
		return dayAheadResponse{}, fmt.Errorf("tariff service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return dayAheadResponse{}, fmt.Errorf("failed to read tariff response: %w", err)
	}

	var res dayAheadResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return dayAheadResponse{}, fmt.Errorf("failed to parse tariff response: %w", err)
	}
	return res, nil
}

func (c *Client) toSeries(res dayAheadResponse, dayStart, dayEnd time.Time) (types.Series[float64], error) {
	if len(res.MultiAreaEntries) < minDayEntries {
		return nil, fmt.Errorf("tariff response truncated: %d entries", len(res.MultiAreaEntries))
	}

	var sum float64
	for _, e := range res.MultiAreaEntries {
		sum += e.EntryPerArea[c.deliveryArea]
	}
	// SEK/MWh to SEK/kWh
	dayAvg := sum / float64(len(res.MultiAreaEntries)) / 1000.0

	var buy types.Series[float64]
	for _, e := range res.MultiAreaEntries {
		if e.DeliveryStart.Before(dayStart) || !e.DeliveryStart.Before(dayEnd) {
			continue
		}
		buy = append(buy, types.Point[float64]{
			TS: e.DeliveryStart.UTC(),
			V:  c.effectiveBuyPrice(dayAvg, e.EntryPerArea[c.deliveryArea]),
		})
	}
	return buy, nil
}

// effectiveBuyPrice adds grid fees, trade fees and VAT to a raw SEK/MWh spot
// price.
func (c *Client) effectiveBuyPrice(dayAvg, spot float64) float64 {
	price := spot / 1000.0
	gridFees := (c.fees.VariableFee+c.fees.EnergyTax)/100.0 + c.fees.SpotFeePercentage*dayAvg
	tradeFees := (c.fees.SwedishPowerGrid+c.fees.BalanceResponsibility+c.fees.ElectricCertificate+
		c.fees.GuaranteesOfOrigin+c.fees.Fixed)/100.0 + price

	// 0.8 backs out to a 25% VAT markup
	buy := (gridFees + tradeFees) / 0.8
	return math.Round(buy*100) / 100
}
