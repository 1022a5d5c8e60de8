package device

import (
	"context"
	"sync"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/sensors"
)

// Reading is one hardware sample. Negative values mean the sensor is unavailable.
type Reading struct {
	TempC   float64
	UtilPct float64
}

// Monitor queries hardware sensors. The sensor APIs are not safe for concurrent use, so every query runs under
// the monitor's own lock.
type Monitor struct {
	mu      sync.Mutex
	last    Reading
	temps   func(ctx context.Context) ([]sensors.TemperatureStat, error)
	percent func(ctx context.Context) ([]float64, error)
}

// NewMonitor returns a monitor backed by gopsutil.
func NewMonitor() *Monitor {
	return &Monitor{
		last:  Reading{TempC: -1, UtilPct: -1},
		temps: sensors.TemperaturesWithContext,
		percent: func(ctx context.Context) ([]float64, error) {
			return cpu.PercentWithContext(ctx, 0, false)
		},
	}
}

// Sample refreshes and returns the latest reading. Failing sensors keep their previous value.
func (m *Monitor) Sample(ctx context.Context) Reading {
	m.mu.Lock()
	defer m.mu.Unlock()

	if temps, err := m.temps(ctx); err == nil {
		hottest := -1.0
		for _, t := range temps {
			if t.Temperature > hottest {
				hottest = t.Temperature
			}
		}

		if hottest >= 0 {
			m.last.TempC = hottest
		}
	}

	if pct, err := m.percent(ctx); err == nil && len(pct) > 0 {
		m.last.UtilPct = pct[0]
	}

	return m.last
}

// Last returns the most recent reading without querying sensors.
func (m *Monitor) Last() Reading {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.last
}
