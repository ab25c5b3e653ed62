package inverter

import (
	"context"
	"time"
)

// RealTimeValues is one real-time telemetry sample from the inverter.
type RealTimeValues struct {
	SOC         int
	SOH         int
	ProductionW float64
	LoadW       float64
}

// HistoryValues is column-oriented telemetry between two instants, ordered by
// time ascending. All slices have the same length as Times.
type HistoryValues struct {
	Times      []time.Time
	SOC        []int
	Production []float64
	Load       []float64
}

// LastSampleTime returns the timestamp of the newest sample, or false when the
// history is empty. The dispatcher uses it as the history watermark.
func (h HistoryValues) LastSampleTime() (time.Time, bool) {
	if len(h.Times) == 0 {
		return time.Time{}, false
	}
	return h.Times[len(h.Times)-1], true
}

// Provider defines the interface for the solar-inverter cloud API.
type Provider interface {
	// CurrentSOC returns the battery state of charge.
	CurrentSOC(ctx context.Context) (int, error)

	// RealTime returns the latest telemetry sample.
	RealTime(ctx context.Context) (RealTimeValues, error)

	// History returns telemetry between start and end.
	History(ctx context.Context, start, end time.Time) (HistoryValues, error)
}
