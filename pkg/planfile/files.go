package planfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/griddash/griddash/pkg/timeutil"
	"github.com/griddash/griddash/pkg/types"
	"github.com/levenlabs/go-lflag"
)

const (
	schedulePrefix = "schedule_"
	baseDataPrefix = "base_data_"
	nameTimeLayout = "20060102_1504"
)

// Files implements Source against a directory of optimizer output. File names
// embed their generation time (schedule_20060102_1504.json); the newest file
// at or before the requested instant wins.
type Files struct {
	dir string
}

// configuredFiles sets up flags for the file source and returns the instance.
func configuredFiles() *Files {
	f := &Files{}
	dir := lflag.String("plan-dir", "/var/lib/mygrid", "Directory the optimizer writes schedule and base-data files to")

	lflag.Do(func() {
		f.dir = *dir
	})

	return f
}

// Validate ensures the configuration is valid.
func (f *Files) Validate() error {
	if f.dir == "" {
		return fmt.Errorf("plan-dir is required")
	}
	info, err := os.Stat(f.dir)
	if err != nil {
		return fmt.Errorf("failed to stat plan-dir (%s): %w", f.dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("plan-dir (%s) is not a directory", f.dir)
	}
	return nil
}

// Schedule returns the newest schedule generated at or before the instant.
func (f *Files) Schedule(ctx context.Context, at time.Time) ([]types.ScheduleBlock, error) {
	raw, err := f.readLatest(schedulePrefix, at)
	if err != nil {
		return nil, err
	}

	var blocks []types.ScheduleBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, fmt.Errorf("failed to parse schedule: %w", err)
	}
	return blocks, nil
}

// fileBaseData is the on-disk shape of a base-day snapshot.
type fileBaseData struct {
	DateTime time.Time `json:"date_time"`
	Forecast []struct {
		ValidTime   time.Time `json:"valid_time"`
		Temp        float64   `json:"temp"`
		CloudFactor float64   `json:"cloud_factor"`
	} `json:"forecast"`
	Production []struct {
		ValidTime time.Time `json:"valid_time"`
		Power     float64   `json:"power"`
	} `json:"production"`
	Consumption []struct {
		ValidTime time.Time `json:"valid_time"`
		Power     float64   `json:"power"`
	} `json:"consumption"`
	Tariffs []struct {
		ValidTime time.Time `json:"valid_time"`
		Buy       float64   `json:"buy"`
		Sell      float64   `json:"sell"`
	} `json:"tariffs"`
}

// BaseData returns the newest base-day snapshot generated at or before the
// instant.
func (f *Files) BaseData(ctx context.Context, at time.Time) (BaseData, error) {
	raw, err := f.readLatest(baseDataPrefix, at)
	if err != nil {
		return BaseData{}, err
	}

	var file fileBaseData
	if err := json.Unmarshal(raw, &file); err != nil {
		return BaseData{}, fmt.Errorf("failed to parse base data: %w", err)
	}

	bd := BaseData{GeneratedAt: file.DateTime.UTC()}
	for _, v := range file.Forecast {
		bd.ForecastTemp = append(bd.ForecastTemp, types.Point[float64]{TS: v.ValidTime.UTC(), V: v.Temp})
		bd.ForecastCloud = append(bd.ForecastCloud, types.Point[float64]{TS: v.ValidTime.UTC(), V: v.CloudFactor})
	}
	for _, v := range file.Production {
		bd.Production = append(bd.Production, types.Point[float64]{TS: v.ValidTime.UTC(), V: v.Power})
	}
	for _, v := range file.Consumption {
		bd.Consumption = append(bd.Consumption, types.Point[float64]{TS: v.ValidTime.UTC(), V: v.Power})
	}
	for _, v := range file.Tariffs {
		bd.TariffsBuy = append(bd.TariffsBuy, types.Point[float64]{TS: v.ValidTime.UTC(), V: v.Buy})
		bd.TariffsSell = append(bd.TariffsSell, types.Point[float64]{TS: v.ValidTime.UTC(), V: v.Sell})
	}
	return bd, nil
}

// readLatest finds and reads the newest file with the prefix whose
// name-embedded generation time is at or before the instant.
func (f *Files) readLatest(prefix string, at time.Time) ([]byte, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan-dir: %w", err)
	}

	var best string
	var bestTime time.Time
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json")
		ts, err := time.ParseInLocation(nameTimeLayout, stamp, timeutil.Location())
		if err != nil {
			continue
		}
		if ts.After(at) {
			continue
		}
		if best == "" || ts.After(bestTime) {
			best = name
			bestTime = ts
		}
	}
	if best == "" {
		return nil, fmt.Errorf("%w: %s*.json at or before %s", ErrNoFile, prefix, at.Format(time.RFC3339))
	}

	raw, err := os.ReadFile(filepath.Join(f.dir, best))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", best, err)
	}
	return raw, nil
}
