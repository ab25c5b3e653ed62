package types

import "time"

// TariffTable maps aligned UTC instants (quarter-hour grid) to buy prices for
// O(1) point lookups by the policy evaluator. It is rebuilt whenever a new
// day's tariff series is fetched. Lookups must be aligned to the same grid the
// table was populated on or they will miss.
type TariffTable map[int64]float64

// NewTariffTable builds a table from a buy-price series. Hourly points are
// expanded to all four quarters of their hour so quarter-aligned lookups
// always hit.
func NewTariffTable(buy Series[float64]) TariffTable {
	t := make(TariffTable, len(buy)*4)
	for i, p := range buy {
		t[p.TS.Unix()] = p.V

		// expand hour-grid points to the quarter grid
		step := 15 * time.Minute
		end := p.TS.Add(time.Hour)
		if i+1 < len(buy) && buy[i+1].TS.Before(end) {
			end = buy[i+1].TS
		}
		for q := p.TS.Add(step); q.Before(end); q = q.Add(step) {
			t[q.Unix()] = p.V
		}
	}
	return t
}

// At returns the price at the given aligned instant.
func (t TariffTable) At(ts time.Time) (float64, bool) {
	v, ok := t[ts.Unix()]
	return v, ok
}

// FirstStart returns the earliest instant in the table, or the zero time when
// the table is empty. Used to decide whether the cached tariffs still belong
// to the expected day.
func (t TariffTable) FirstStart() time.Time {
	var first time.Time
	for ts := range t {
		when := time.Unix(ts, 0).UTC()
		if first.IsZero() || when.Before(first) {
			first = when
		}
	}
	return first
}
