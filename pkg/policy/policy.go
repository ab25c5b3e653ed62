// Package policy evaluates the usage advisory shown to the household: whether
// consuming electricity right now is cheap, normal or expensive given the spot
// tariffs and what the battery is doing.
package policy

import (
	"time"

	"github.com/griddash/griddash/pkg/types"
)

// Business constants carried over from the household's tariff contract. Not
// derived, only tuned.
const (
	// DischargeMarginSOC keeps the advisory from flapping right at a block
	// boundary: the battery counts as discharging only while the SoC is this
	// many points above the block's scheduled exit SoC.
	DischargeMarginSOC = 15

	// Tier boundaries in SEK/kWh, both exclusive.
	ExpensiveOver = 4.0
	ModerateOver  = 2.0
)

const quarter = 15 * time.Minute

// Evaluate returns the advisory for the given instant. Pure function of its
// inputs, called once per refresh tick.
//
// The base signal is the average buy price over the next four quarter hours.
// While the battery is discharging (with margin), the relevant cost is what
// was paid to charge it, so the advisory becomes the tier of the last charge
// block's average price instead; if that price is unknown the current tier is
// softened one step.
func Evaluate(now time.Time, soc int, schedule []types.ScheduleBlock, tariffs types.TariffTable) types.Advisory {
	now = now.Truncate(quarter)

	discharging := dischargingWithMargin(now, soc, schedule)
	chargePrice, haveChargePrice := lastChargePrice(now, schedule, tariffs)
	nowColor := colorAt(now, tariffs)

	if !discharging {
		return nowColor
	}
	if haveChargePrice {
		return costToColor(chargePrice)
	}
	// discharge discount
	switch nowColor {
	case types.AdvisoryRed:
		return types.AdvisoryYellow
	case types.AdvisoryYellow:
		return types.AdvisoryGreen
	}
	return nowColor
}

// dischargingWithMargin reports whether the active schedule block still has
// the battery meaningfully above its scheduled exit SoC.
func dischargingWithMargin(now time.Time, soc int, schedule []types.ScheduleBlock) bool {
	for i := len(schedule) - 1; i >= 0; i-- {
		if schedule[i].Contains(now) {
			return soc > schedule[i].SocOut+DischargeMarginSOC
		}
	}
	return false
}

// lastChargePrice averages the buy price over the quarters of the most recent
// completed charge block. Quarters without a price are ignored; the second
// return is false when no completed charge block or no priced quarter exists.
func lastChargePrice(now time.Time, schedule []types.ScheduleBlock, tariffs types.TariffTable) (float64, bool) {
	var start, end time.Time
	found := false
	for _, b := range schedule {
		if b.Type == types.BlockCharge && now.After(b.End) {
			start, end = b.Start, b.End
			found = true
		}
	}
	if !found {
		return 0, false
	}

	var total float64
	var priced int
	for t := start; t.Before(end); t = t.Add(quarter) {
		if cost, ok := tariffs.At(t); ok {
			total += cost
			priced++
		}
	}
	if priced == 0 {
		return 0, false
	}
	return total / float64(priced), true
}

// colorAt classifies the average buy price of the next four quarters. Quarters
// missing from the table are excluded from both sum and count; when none are
// present the advisory defaults to green.
func colorAt(now time.Time, tariffs types.TariffTable) types.Advisory {
	var sum float64
	var count int
	for i := 0; i < 4; i++ {
		if cost, ok := tariffs.At(now.Add(time.Duration(i) * quarter)); ok {
			sum += cost
			count++
		}
	}
	if count == 0 {
		return types.AdvisoryGreen
	}
	return costToColor(sum / float64(count))
}

func costToColor(cost float64) types.Advisory {
	switch {
	case cost > ExpensiveOver:
		return types.AdvisoryRed
	case cost > ModerateOver:
		return types.AdvisoryYellow
	default:
		return types.AdvisoryGreen
	}
}
