// Package dispatcher owns all dashboard state: it polls the inverter cloud,
// the weather service, the day-ahead tariffs and the optimizer's plan files,
// reconciles everything into day series, evaluates the usage advisory and
// answers dashboard commands with JSON payloads.
//
// All state lives in a single actor: one goroutine runs the dispatch loop and
// processes one event (command or tick) to completion before the next, so no
// locks guard the caches. The web layer talks to it only through the
// command/response channel pair.
package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/griddash/griddash/pkg/inverter"
	"github.com/griddash/griddash/pkg/log"
	"github.com/griddash/griddash/pkg/metrics"
	"github.com/griddash/griddash/pkg/planfile"
	"github.com/griddash/griddash/pkg/policy"
	"github.com/griddash/griddash/pkg/series"
	"github.com/griddash/griddash/pkg/tariff"
	"github.com/griddash/griddash/pkg/timeutil"
	"github.com/griddash/griddash/pkg/types"
	"github.com/griddash/griddash/pkg/weather"
)

const (
	// tickInterval is the period of the background refresh.
	tickInterval = 180 * time.Second
	// sessionActiveWindow is how long after the last dashboard request the
	// expensive telemetry/weather polling keeps running.
	sessionActiveWindow = 30 * time.Minute

	realTimeFreshFor  = 180 * time.Second
	realTimeResetGap  = 600 * time.Second
	historyFreshFor   = 10 * time.Minute
	historyMinFetch   = 10 * time.Minute
	weatherFreshFor   = 5 * time.Minute
	padStep           = time.Hour
	historyResumeSkip = time.Second
)

// WeatherService is the slice of the weather client the dispatcher needs.
type WeatherService interface {
	GetTempHistory(ctx context.Context, from, to time.Time, ensureFrom bool) (weather.TempHistory, error)
	GetMinMax(ctx context.Context, from, to time.Time) (float64, float64, error)
}

// TariffService is the slice of the day-ahead price client the dispatcher needs.
type TariffService interface {
	GetDayTariffs(ctx context.Context, dayStart, dayEnd time.Time, day timeutil.Date) (types.Series[float64], error)
}

type realTimeState struct {
	soc       int
	soh       int
	prod      float64
	load      float64
	prodRing  series.WMARing
	loadRing  series.WMARing
	fetchedAt time.Time
}

type weatherState struct {
	history   types.Series[float64]
	current   float64
	perceived float64
	min       float64
	max       float64
	fetchedAt time.Time
}

// Dispatcher holds every cache the dashboard is served from. It must only be
// touched from the goroutine running Run.
type Dispatcher struct {
	inv     inverter.Provider
	weather WeatherService
	tariffs TariffService
	plans   planfile.Source
	rec     *metrics.Recorder

	loc *time.Location
	now func() time.Time

	schedule    []types.ScheduleBlock
	baseDay     types.BaseDaySnapshot
	tariffTable types.TariffTable
	history     types.HistoryWindow
	realTime    realTimeState
	weatherData weatherState
	advisory    types.Advisory
	lastRequest time.Time
}

// New creates a Dispatcher. Call after flags are configured so the household
// location is resolved.
func New(inv inverter.Provider, w WeatherService, t TariffService, plans planfile.Source, rec *metrics.Recorder) *Dispatcher {
	return &Dispatcher{
		inv:     inv,
		weather: w,
		tariffs: t,
		plans:   plans,
		rec:     rec,
		loc:     timeutil.Location(),
		now:     time.Now,
	}
}

// Run executes the dispatch loop until the context is canceled or the command
// channel closes. The response channel is closed on return so the web layer
// can tell the loop is gone. A closed command channel is reported as an error;
// the owning process restarts the dispatcher with fresh channels.
func (d *Dispatcher) Run(ctx context.Context, commands <-chan Command, responses chan<- string) error {
	defer close(responses)

	// initial plan load; failures retry on the next tick
	d.refreshPlanData(ctx)
	d.evaluatePolicy()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Ctx(ctx).InfoContext(ctx, "dispatch loop stopping")
			return nil
		case cmd, ok := <-commands:
			if !ok {
				return errors.New("command channel closed unexpectedly")
			}
			d.checkUpdates(ctx, true)
			payload := d.execute(ctx, cmd)
			select {
			case responses <- payload:
			case <-ctx.Done():
				return nil
			}
		case <-ticker.C:
			d.checkUpdates(ctx, false)
			d.refreshPlanData(ctx)
			d.evaluatePolicy()
		}
	}
}

// checkUpdates runs the telemetry, history and weather refreshes, but only
// while a dashboard client has been active recently. Each source fails
// independently: an error leaves that source's watermark alone so the same
// window is retried next time, while the cached data keeps being served.
func (d *Dispatcher) checkUpdates(ctx context.Context, resetLastRequest bool) {
	if resetLastRequest {
		d.lastRequest = d.now()
	}
	if d.now().Sub(d.lastRequest) > sessionActiveWindow {
		return
	}

	d.refreshSource(ctx, "realtime", d.refreshRealTime)
	d.refreshSource(ctx, "history", d.refreshHistory)
	d.refreshSource(ctx, "weather", d.refreshWeather)
	d.evaluatePolicy()
}

// refreshSource counts and logs a refresh, swallowing errors per source.
func (d *Dispatcher) refreshSource(ctx context.Context, source string, fn func(context.Context) error) {
	d.rec.RefreshAttempt(source)
	if err := fn(ctx); err != nil {
		d.rec.RefreshFailure(source)
		log.Ctx(ctx).ErrorContext(ctx, "refresh failed",
			slog.String("source", source), slog.Any("error", err))
	}
}

func (d *Dispatcher) evaluatePolicy() {
	d.advisory = policy.Evaluate(d.now(), d.realTime.soc, d.schedule, d.tariffTable)
	d.rec.SetAdvisory(d.advisory.String())
}

// refreshRealTime updates the real-time telemetry and the weighted moving
// averages. Fresh within 180s; a gap over 10 minutes clears the rings so
// pre-outage values are not blended into the averages.
func (d *Dispatcher) refreshRealTime(ctx context.Context) error {
	now := d.now()
	gap := now.Sub(d.realTime.fetchedAt)
	if timeutil.SameLocalDay(d.realTime.fetchedAt, now, d.loc) && gap < realTimeFreshFor {
		return nil
	}

	if gap > realTimeResetGap {
		d.realTime.prodRing.Reset()
		d.realTime.loadRing.Reset()
	}

	vals, err := d.inv.RealTime(ctx)
	if err != nil {
		return err
	}

	d.realTime.soc = vals.SOC
	d.realTime.soh = vals.SOH
	d.realTime.prodRing.Push(vals.ProductionW)
	d.realTime.loadRing.Push(vals.LoadW)
	d.realTime.prod = d.realTime.prodRing.Average()
	d.realTime.load = d.realTime.loadRing.Average()
	d.realTime.fetchedAt = now
	return nil
}

// refreshHistory extends the since-midnight telemetry series. Within the same
// local day only the delta past the watermark is fetched; a day rollover
// resets the window before refilling from local midnight.
func (d *Dispatcher) refreshHistory(ctx context.Context) error {
	now := d.now()
	sameDay := timeutil.SameLocalDay(d.history.LastEndTime, now, d.loc)
	if sameDay && now.Sub(d.history.LastEndTime) <= historyFreshFor {
		return nil
	}

	dayStart, _, _ := timeutil.DayWindow(now, 0, d.loc)

	start := dayStart
	window := types.HistoryWindow{LastEndTime: now}
	if sameDay {
		start = d.history.LastEndTime.Add(historyResumeSkip)
		window.SOC = d.history.SOC
		window.Production = d.history.Production
		window.Load = d.history.Load
		window.LastEndTime = d.history.LastEndTime
	}

	if now.Sub(start) >= historyMinFetch {
		h, err := d.inv.History(ctx, start, now)
		if err != nil {
			return err
		}
		for i, ts := range h.Times {
			if i < len(h.SOC) {
				window.SOC = append(window.SOC, types.Point[int]{TS: ts, V: h.SOC[i]})
			}
			if i < len(h.Production) {
				window.Production = append(window.Production, types.Point[float64]{TS: ts, V: h.Production[i]})
			}
			if i < len(h.Load) {
				window.Load = append(window.Load, types.Point[float64]{TS: ts, V: h.Load[i]})
			}
		}
		if last, ok := h.LastSampleTime(); ok {
			window.LastEndTime = last
		} else {
			window.LastEndTime = now
		}
	}

	d.history = window
	return nil
}

// refreshWeather updates the observed temperatures and today's min/max.
// Fresh within 5 minutes on the same local day.
func (d *Dispatcher) refreshWeather(ctx context.Context) error {
	now := d.now()
	if timeutil.SameLocalDay(d.weatherData.fetchedAt, now, d.loc) &&
		now.Sub(d.weatherData.fetchedAt) <= weatherFreshFor {
		return nil
	}

	dayStart, _, _ := timeutil.DayWindow(now, 0, d.loc)

	h, err := d.weather.GetTempHistory(ctx, dayStart, now, true)
	if err != nil {
		return err
	}
	min, max, err := d.weather.GetMinMax(ctx, dayStart, now)
	if err != nil {
		return err
	}

	d.weatherData = weatherState{
		history:   h.Series,
		current:   h.Current,
		perceived: h.Perceived,
		min:       min,
		max:       max,
		fetchedAt: now,
	}
	return nil
}

// refreshPlanData reloads the schedule, merges the freshest base-day snapshot
// and keeps the day-ahead tariff table current. Always runs on the tick so
// the advisory is right the moment a client reconnects after a quiet period.
func (d *Dispatcher) refreshPlanData(ctx context.Context) {
	d.refreshSource(ctx, "schedule", d.refreshSchedule)
	d.refreshSource(ctx, "basedata", d.refreshBaseData)
	d.refreshSource(ctx, "tariffs", d.refreshTariffs)
}

func (d *Dispatcher) refreshSchedule(ctx context.Context) error {
	blocks, err := d.plans.Schedule(ctx, d.now())
	if err != nil {
		return err
	}
	d.schedule = blocks
	return nil
}

// refreshBaseData merges the freshest optimizer snapshot into the rolling day
// snapshot. A snapshot only covers its generation hour onward, so hours
// already observed are kept from the previous snapshot and every series is
// left-padded back to local midnight.
func (d *Dispatcher) refreshBaseData(ctx context.Context) error {
	now := d.now()
	fresh, err := d.plans.BaseData(ctx, now)
	if err != nil {
		return err
	}

	dayStart, dayEnd, _ := timeutil.DayWindow(now, 0, d.loc)
	loadStart := timeutil.TruncHour(fresh.GeneratedAt, d.loc)
	prevDay := timeutil.DayOf(d.baseDay.LoadedAt, d.loc)
	freshDay := timeutil.DayOf(fresh.GeneratedAt, d.loc)

	merge := func(prev, load types.Series[float64]) types.Series[float64] {
		merged := series.Merge(prev, prevDay, load, freshDay, loadStart, dayStart, dayEnd)
		return series.PadStart(merged, dayStart, padStep)
	}

	d.baseDay = types.BaseDaySnapshot{
		LoadedAt:      fresh.GeneratedAt,
		ForecastTemp:  merge(d.baseDay.ForecastTemp, fresh.ForecastTemp),
		ForecastCloud: merge(d.baseDay.ForecastCloud, fresh.ForecastCloud),
		Production:    merge(d.baseDay.Production, fresh.Production),
		Consumption:   merge(d.baseDay.Consumption, fresh.Consumption),
		TariffsBuy:    merge(d.baseDay.TariffsBuy, fresh.TariffsBuy),
		TariffsSell:   merge(d.baseDay.TariffsSell, fresh.TariffsSell),
	}
	return nil
}

// refreshTariffs rebuilds the policy's price table once per local day: the
// cached table is usable only while its first entry is the current day start.
// An unpublished day is not an error, just retried next tick; lookups against
// the old table miss harmlessly because keys are absolute instants.
func (d *Dispatcher) refreshTariffs(ctx context.Context) error {
	now := d.now()
	dayStart, dayEnd, today := timeutil.DayWindow(now, 0, d.loc)
	if d.tariffTable.FirstStart().Equal(dayStart) {
		return nil
	}

	buy, err := d.tariffs.GetDayTariffs(ctx, dayStart, dayEnd, today)
	if errors.Is(err, tariff.ErrNoData) {
		log.Ctx(ctx).InfoContext(ctx, "day-ahead prices not published yet",
			slog.String("day", today.String()))
		return nil
	}
	if err != nil {
		return err
	}

	d.tariffTable = types.NewTariffTable(buy)
	return nil
}
