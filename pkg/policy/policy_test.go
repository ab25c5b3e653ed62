package policy

import (
	"testing"
	"time"

	"github.com/griddash/griddash/pkg/types"
	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2025, 7, 15, 10, 0, 0, 0, time.UTC)

const quarterStep = 15 * time.Minute

// quarterPrices populates tab with one price per quarter starting at start.
func quarterPrices(tab types.TariffTable, start time.Time, prices ...float64) types.TariffTable {
	if tab == nil {
		tab = types.TariffTable{}
	}
	for i, p := range prices {
		tab[start.Add(time.Duration(i)*quarterStep).Unix()] = p
	}
	return tab
}

func TestEvaluateTiers(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   types.Advisory
	}{
		{"cheap", []float64{1.0, 1.0, 1.0, 1.0}, types.AdvisoryGreen},
		{"exactly at moderate boundary", []float64{2.0, 2.0, 2.0, 2.0}, types.AdvisoryGreen},
		{"just over moderate", []float64{2.01, 2.01, 2.01, 2.01}, types.AdvisoryYellow},
		{"exactly at expensive boundary", []float64{4.0, 4.0, 4.0, 4.0}, types.AdvisoryYellow},
		{"just over expensive", []float64{4.01, 4.01, 4.01, 4.01}, types.AdvisoryRed},
		{"averaged over four quarters", []float64{1.0, 1.0, 5.0, 5.0}, types.AdvisoryYellow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tab := quarterPrices(nil, t0, tt.prices...)
			assert.Equal(t, tt.want, Evaluate(t0, 50, nil, tab))
		})
	}
}

func TestEvaluateMissingQuarters(t *testing.T) {
	t.Run("missing quarters excluded from the average", func(t *testing.T) {
		// only the first of the four quarters is priced
		tab := quarterPrices(nil, t0, 6.0)
		assert.Equal(t, types.AdvisoryRed, Evaluate(t0, 50, nil, tab))
	})

	t.Run("no prices at all defaults to green", func(t *testing.T) {
		assert.Equal(t, types.AdvisoryGreen, Evaluate(t0, 50, nil, types.TariffTable{}))
	})
}

func TestEvaluateQuarterAlignment(t *testing.T) {
	tab := quarterPrices(nil, t0, 5.0, 5.0, 5.0, 5.0)
	// :07 falls in the :00 quarter; without truncation every lookup would miss
	assert.Equal(t, types.AdvisoryRed, Evaluate(t0.Add(7*time.Minute), 50, nil, tab))
}

func TestEvaluateDischarging(t *testing.T) {
	chargeStart := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)
	schedule := []types.ScheduleBlock{
		{Type: types.BlockCharge, Start: chargeStart, End: chargeStart.Add(2 * time.Hour), SocIn: 20, SocOut: 80},
		{Type: types.BlockUse, Start: t0, End: t0.Add(2 * time.Hour), SocIn: 80, SocOut: 25},
	}

	t.Run("known charge price wins over current tier", func(t *testing.T) {
		tab := quarterPrices(nil, chargeStart, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0)
		tab = quarterPrices(tab, t0, 5.0, 5.0, 5.0, 5.0)

		// soc 45 is above socOut 25 plus the 15 point margin
		assert.Equal(t, types.AdvisoryGreen, Evaluate(t0.Add(5*time.Minute), 45, schedule, tab))
	})

	t.Run("expensive charge price keeps the advisory red", func(t *testing.T) {
		tab := quarterPrices(nil, chargeStart, 4.5, 4.5, 4.5, 4.5, 4.5, 4.5, 4.5, 4.5)
		tab = quarterPrices(tab, t0, 1.0, 1.0, 1.0, 1.0)

		assert.Equal(t, types.AdvisoryRed, Evaluate(t0, 45, schedule, tab))
	})

	t.Run("at the margin the battery does not count as discharging", func(t *testing.T) {
		tab := quarterPrices(nil, chargeStart, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0)
		tab = quarterPrices(tab, t0, 5.0, 5.0, 5.0, 5.0)

		// 25 + 15 exactly; the cheap charge price must not apply
		assert.Equal(t, types.AdvisoryRed, Evaluate(t0, 40, schedule, tab))
	})

	t.Run("charge block quarters without prices are ignored", func(t *testing.T) {
		// half the charge block priced at 3.0, the rest missing; the average
		// must be 3.0, not 1.5 diluted by the unpriced quarters
		tab := quarterPrices(nil, chargeStart, 3.0, 3.0, 3.0, 3.0)
		tab = quarterPrices(tab, t0, 5.0, 5.0, 5.0, 5.0)

		assert.Equal(t, types.AdvisoryYellow, Evaluate(t0, 45, schedule, tab))
	})
}

func TestEvaluateDischargeSoftening(t *testing.T) {
	// an active use block but no completed charge block anywhere
	schedule := []types.ScheduleBlock{
		{Type: types.BlockUse, Start: t0, End: t0.Add(2 * time.Hour), SocIn: 80, SocOut: 25},
	}

	tests := []struct {
		name   string
		prices []float64
		want   types.Advisory
	}{
		{"red softens to yellow", []float64{5.0, 5.0, 5.0, 5.0}, types.AdvisoryYellow},
		{"yellow softens to green", []float64{3.0, 3.0, 3.0, 3.0}, types.AdvisoryGreen},
		{"green stays green", []float64{1.0, 1.0, 1.0, 1.0}, types.AdvisoryGreen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tab := quarterPrices(nil, t0, tt.prices...)
			assert.Equal(t, tt.want, Evaluate(t0, 45, schedule, tab))
		})
	}
}

func TestEvaluateDayScenario(t *testing.T) {
	// charge 08:00-10:00 at an average of 1.8, then a long use block; by noon
	// the battery has drained to exactly exit-soc plus margin, so the cheap
	// charge price no longer applies and the current spot average decides
	chargeStart := time.Date(2025, 7, 15, 8, 0, 0, 0, time.UTC)
	noon := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)
	schedule := []types.ScheduleBlock{
		{Type: types.BlockCharge, Start: chargeStart, End: chargeStart.Add(2 * time.Hour), SocIn: 20, SocOut: 80},
		{Type: types.BlockUse, Start: chargeStart.Add(2 * time.Hour), End: chargeStart.Add(10 * time.Hour), SocIn: 80, SocOut: 25},
	}
	tab := quarterPrices(nil, chargeStart, 1.8, 1.8, 1.8, 1.8, 1.8, 1.8, 1.8, 1.8)
	tab = quarterPrices(tab, noon, 3.0, 3.0, 3.0, 3.0)

	assert.Equal(t, types.AdvisoryYellow, Evaluate(noon, 40, schedule, tab))

	// one point higher and the stored-energy price applies instead
	assert.Equal(t, types.AdvisoryGreen, Evaluate(noon, 41, schedule, tab))
}

func TestEvaluateIncompleteChargeBlockIgnored(t *testing.T) {
	// the charge block is still running, so its price must not be used
	schedule := []types.ScheduleBlock{
		{Type: types.BlockCharge, Start: t0.Add(-time.Hour), End: t0.Add(time.Hour), SocIn: 20, SocOut: 25},
	}
	tab := quarterPrices(nil, t0.Add(-time.Hour), 1.0, 1.0, 1.0, 1.0)
	tab = quarterPrices(tab, t0, 5.0, 5.0, 5.0, 5.0)

	// soc 45 > 25+15, so the block counts as discharging with an unknown
	// charge price: red softens to yellow
	assert.Equal(t, types.AdvisoryYellow, Evaluate(t0, 45, schedule, tab))
}
