package planfile

import (
	"context"
	"time"

	"github.com/griddash/griddash/pkg/types"
)

// Mock implements Source for tests. Unset func fields return ErrNoFile.
type Mock struct {
	ScheduleFunc func(ctx context.Context, at time.Time) ([]types.ScheduleBlock, error)
	BaseDataFunc func(ctx context.Context, at time.Time) (BaseData, error)
}

// Schedule implements Source.
func (m *Mock) Schedule(ctx context.Context, at time.Time) ([]types.ScheduleBlock, error) {
	if m.ScheduleFunc != nil {
		return m.ScheduleFunc(ctx, at)
	}
	return nil, ErrNoFile
}

// BaseData implements Source.
func (m *Mock) BaseData(ctx context.Context, at time.Time) (BaseData, error) {
	if m.BaseDataFunc != nil {
		return m.BaseDataFunc(ctx, at)
	}
	return BaseData{}, ErrNoFile
}
