package types

import (
	"encoding/json"
	"time"

	"github.com/griddash/griddash/pkg/timeutil"
)

// Point is one sample of a signal. The JSON shape ({x, y} with x in
// milliseconds of local wall-clock time) is what the dashboard charts consume.
type Point[V any] struct {
	TS time.Time
	V  V
}

// Timestamp returns the instant of the point.
func (p Point[V]) Timestamp() time.Time {
	return p.TS
}

// WithTimestamp returns a copy of the point carrying the given instant.
func (p Point[V]) WithTimestamp(ts time.Time) Point[V] {
	return Point[V]{TS: ts, V: p.V}
}

// MarshalJSON encodes the point as {"x": millis, "y": value}. The millis are
// the local wall-clock time re-read as UTC so the charts render household time
// regardless of the browser's timezone.
func (p Point[V]) MarshalJSON() ([]byte, error) {
	local := p.TS.In(timeutil.Location())
	naive := time.Date(local.Year(), local.Month(), local.Day(),
		local.Hour(), local.Minute(), local.Second(), 0, time.UTC)
	return json.Marshal(struct {
		X int64 `json:"x"`
		Y V     `json:"y"`
	}{X: naive.UnixMilli(), Y: p.V})
}

// UnmarshalJSON decodes {"x": RFC3339 or millis, "y": value}. Plan files and
// the weather service send RFC 3339 strings; the dashboard format is millis.
func (p *Point[V]) UnmarshalJSON(b []byte) error {
	var raw struct {
		X json.RawMessage `json:"x"`
		Y V               `json:"y"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	ts, err := parseInstant(raw.X)
	if err != nil {
		return err
	}
	p.TS = ts
	p.V = raw.Y
	return nil
}

func parseInstant(raw json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return time.Parse(time.RFC3339, s)
	}
	var millis int64
	if err := json.Unmarshal(raw, &millis); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(millis).UTC(), nil
}

// Series is an ordered sequence of points with ascending, unique timestamps
// covering (nominally) one local calendar day.
type Series[V any] []Point[V]

// HistoryWindow accumulates inverter telemetry since local midnight.
// LastEndTime is the watermark up to which history has been fetched and always
// falls within the current local day.
type HistoryWindow struct {
	SOC         Series[int]
	Production  Series[float64]
	Load        Series[float64]
	LastEndTime time.Time
}

// BaseDaySnapshot holds the externally produced forecasts and tariffs for
// "today", each series clipped to the local day window.
type BaseDaySnapshot struct {
	LoadedAt      time.Time
	ForecastTemp  Series[float64]
	ForecastCloud Series[float64]
	Production    Series[float64]
	Consumption   Series[float64]
	TariffsBuy    Series[float64]
	TariffsSell   Series[float64]
}
