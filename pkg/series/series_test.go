package series

import (
	"testing"
	"time"

	"github.com/griddash/griddash/pkg/timeutil"
	"github.com/griddash/griddash/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utc(t *testing.T, s string) time.Time {
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

// hourly builds n hourly points starting at from, all with value v.
func hourly(from time.Time, n int, v float64) types.Series[float64] {
	s := make(types.Series[float64], 0, n)
	for i := 0; i < n; i++ {
		s = append(s, types.Point[float64]{TS: from.Add(time.Duration(i) * time.Hour), V: v})
	}
	return s
}

func TestKeep(t *testing.T) {
	from := utc(t, "2025-07-14T22:00:00Z")
	s := hourly(from, 5, 1)

	kept := Keep(s, from.Add(time.Hour), from.Add(3*time.Hour))
	require.Len(t, kept, 2)
	assert.Equal(t, from.Add(time.Hour), kept[0].TS)
	assert.Equal(t, from.Add(2*time.Hour), kept[1].TS)

	assert.Empty(t, Keep(s, from.Add(10*time.Hour), from.Add(12*time.Hour)))
}

func TestMerge(t *testing.T) {
	loc := timeutil.Location()
	now := utc(t, "2025-07-15T10:30:00Z")
	dayStart, dayEnd, today := timeutil.DayWindow(now, 0, loc)
	yesterday := timeutil.Date{Year: 2025, Month: time.July, Day: 14}

	t.Run("same day keeps elapsed hours and takes fresh tail", func(t *testing.T) {
		prev := hourly(dayStart, 24, 1)
		loadStart := dayStart.Add(10 * time.Hour)
		fresh := hourly(loadStart, 14, 2)

		merged := Merge(prev, today, fresh, today, loadStart, dayStart, dayEnd)
		require.Len(t, merged, 24)
		for i, p := range merged {
			assert.Equal(t, dayStart.Add(time.Duration(i)*time.Hour), p.TS, "point %d", i)
			if i < 10 {
				assert.Equal(t, 1.0, p.V, "point %d should come from the previous snapshot", i)
			} else {
				assert.Equal(t, 2.0, p.V, "point %d should come from the fresh load", i)
			}
		}
	})

	t.Run("new day discards previous snapshot", func(t *testing.T) {
		prev := hourly(dayStart.Add(-24*time.Hour), 24, 1)
		fresh := hourly(dayStart, 24, 2)

		merged := Merge(prev, yesterday, fresh, today, dayStart, dayStart, dayEnd)
		require.Len(t, merged, 24)
		for _, p := range merged {
			assert.Equal(t, 2.0, p.V)
		}
	})

	t.Run("fresh load clipped to the day window", func(t *testing.T) {
		loadStart := dayStart.Add(20 * time.Hour)
		// fresh runs past midnight into tomorrow
		fresh := hourly(loadStart, 10, 2)

		merged := Merge(nil, today, fresh, today, loadStart, dayStart, dayEnd)
		require.Len(t, merged, 4)
		assert.Equal(t, dayEnd.Add(-time.Hour), merged[len(merged)-1].TS)
	})
}

func TestPadStart(t *testing.T) {
	dayStart := utc(t, "2025-07-14T22:00:00Z")

	t.Run("pads back to midnight", func(t *testing.T) {
		s := hourly(dayStart.Add(5*time.Hour), 3, 7)
		padded := PadStart(s, dayStart, time.Hour)
		require.Len(t, padded, 8)
		for i := 0; i < 5; i++ {
			assert.Equal(t, dayStart.Add(time.Duration(i)*time.Hour), padded[i].TS)
			assert.Equal(t, 0.0, padded[i].V)
		}
		assert.Equal(t, 7.0, padded[5].V)
	})

	t.Run("already at midnight unchanged", func(t *testing.T) {
		s := hourly(dayStart, 3, 7)
		assert.Equal(t, s, PadStart(s, dayStart, time.Hour))
	})

	t.Run("empty unchanged", func(t *testing.T) {
		assert.Empty(t, PadStart(types.Series[float64]{}, dayStart, time.Hour))
	})
}
