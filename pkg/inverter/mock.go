package inverter

import (
	"context"
	"sync"
	"time"
)

// Mock implements Provider for tests and for running without cloud
// credentials. Zero-value methods return empty data; override the func fields
// to script behavior.
type Mock struct {
	mu sync.Mutex

	CurrentSOCFunc func(ctx context.Context) (int, error)
	RealTimeFunc   func(ctx context.Context) (RealTimeValues, error)
	HistoryFunc    func(ctx context.Context, start, end time.Time) (HistoryValues, error)

	// Calls counts invocations by method name.
	Calls map[string]int
}

func (m *Mock) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Calls == nil {
		m.Calls = make(map[string]int)
	}
	m.Calls[method]++
}

// CurrentSOC implements Provider.
func (m *Mock) CurrentSOC(ctx context.Context) (int, error) {
	m.record("CurrentSOC")
	if m.CurrentSOCFunc != nil {
		return m.CurrentSOCFunc(ctx)
	}
	return 0, nil
}

// RealTime implements Provider.
func (m *Mock) RealTime(ctx context.Context) (RealTimeValues, error) {
	m.record("RealTime")
	if m.RealTimeFunc != nil {
		return m.RealTimeFunc(ctx)
	}
	return RealTimeValues{}, nil
}

// History implements Provider.
func (m *Mock) History(ctx context.Context, start, end time.Time) (HistoryValues, error) {
	m.record("History")
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, start, end)
	}
	return HistoryValues{}, nil
}
