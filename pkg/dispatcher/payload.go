package dispatcher

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/griddash/griddash/pkg/log"
	"github.com/griddash/griddash/pkg/types"
)

type tempStats struct {
	Current   float64 `json:"current"`
	Perceived float64 `json:"perceived"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
}

// smallPayload is the compact document for the wall display.
type smallPayload struct {
	Advisory   types.Advisory `json:"advisory"`
	SOC        int            `json:"soc"`
	Production float64        `json:"production"`
	Load       float64        `json:"load"`
	Temp       tempStats      `json:"temp"`
}

// fullPayload adds every chart series to the compact document.
type fullPayload struct {
	smallPayload
	SOH               int                   `json:"soh"`
	SOCHistory        types.Series[int]     `json:"soc_history"`
	ProductionHistory types.Series[float64] `json:"production_history"`
	LoadHistory       types.Series[float64] `json:"load_history"`
	TempHistory       types.Series[float64] `json:"temp_history"`
	EstProduction     types.Series[float64] `json:"est_production"`
	EstConsumption    types.Series[float64] `json:"est_consumption"`
	ForecastTemp      types.Series[float64] `json:"forecast_temp"`
	ForecastCloud     types.Series[float64] `json:"forecast_cloud"`
	TariffsBuy        types.Series[float64] `json:"tariffs_buy"`
	TariffsSell       types.Series[float64] `json:"tariffs_sell"`
	Schedule          []types.ScheduleBlock `json:"schedule"`
}

// execute builds the response document for one command. Marshal failures are
// logged and answered with an empty document rather than stalling the caller.
func (d *Dispatcher) execute(ctx context.Context, cmd Command) string {
	start := time.Now()
	defer func() {
		d.rec.ObserveCommand(cmd.String(), time.Since(start).Seconds())
	}()

	var doc any
	switch cmd {
	case CmdFullDashData:
		doc = d.fullPayload()
	default:
		doc = d.smallPayload()
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to marshal payload",
			slog.String("command", cmd.String()), slog.Any("error", err))
		return "{}"
	}
	return string(raw)
}

func (d *Dispatcher) smallPayload() smallPayload {
	return smallPayload{
		Advisory:   d.advisory,
		SOC:        d.realTime.soc,
		Production: d.realTime.prod,
		Load:       d.realTime.load,
		Temp: tempStats{
			Current:   d.weatherData.current,
			Perceived: d.weatherData.perceived,
			Min:       d.weatherData.min,
			Max:       d.weatherData.max,
		},
	}
}

func (d *Dispatcher) fullPayload() fullPayload {
	return fullPayload{
		smallPayload:      d.smallPayload(),
		SOH:               d.realTime.soh,
		SOCHistory:        d.history.SOC,
		ProductionHistory: d.history.Production,
		LoadHistory:       d.history.Load,
		TempHistory:       d.weatherData.history,
		EstProduction:     d.baseDay.Production,
		EstConsumption:    d.baseDay.Consumption,
		ForecastTemp:      d.baseDay.ForecastTemp,
		ForecastCloud:     d.baseDay.ForecastCloud,
		TariffsBuy:        d.baseDay.TariffsBuy,
		TariffsSell:       d.baseDay.TariffsSell,
		Schedule:          d.schedule,
	}
}
