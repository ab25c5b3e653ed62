// Package planfile reads the schedule and base-day data the external
// optimizer drops as timestamped JSON files on local disk.
package planfile

import (
	"context"
	"errors"
	"time"

	"github.com/griddash/griddash/pkg/types"
)

var (
	// ErrNoFile means no file with a name timestamp at or before the
	// requested instant exists yet.
	ErrNoFile = errors.New("no plan file available")
)

// BaseData is the optimizer's day snapshot: weather forecast, estimated
// production/consumption and buy/sell tariffs, all starting at the hour the
// snapshot was generated.
type BaseData struct {
	GeneratedAt   time.Time
	ForecastTemp  types.Series[float64]
	ForecastCloud types.Series[float64]
	Production    types.Series[float64]
	Consumption   types.Series[float64]
	TariffsBuy    types.Series[float64]
	TariffsSell   types.Series[float64]
}

// Source defines the interface for reading optimizer output.
type Source interface {
	// Schedule returns the newest schedule generated at or before the instant.
	Schedule(ctx context.Context, at time.Time) ([]types.ScheduleBlock, error)

	// BaseData returns the newest base-day snapshot generated at or before
	// the instant.
	BaseData(ctx context.Context, at time.Time) (BaseData, error)
}
