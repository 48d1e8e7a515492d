package syshealth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubbed returns a monitor on 4 cores with fixed probe answers.
func stubbed(loadAvg, memPct float64, times cpu.TimesStat) *monitor {
	m := newMonitor(DefaultConfig(), quietLogger())
	m.getCPUCores = func() int { return 4 }
	m.getLoadAvg = func(context.Context) (*load.AvgStat, error) { return &load.AvgStat{Load1: loadAvg}, nil }
	m.getMemStats = func(context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{UsedPercent: memPct}, nil
	}
	m.getCPUTimes = func(context.Context, bool) ([]cpu.TimesStat, error) { return []cpu.TimesStat{times}, nil }
	m.lastCPUTimes = &cpu.TimesStat{}
	return m
}

func TestMonitor_Score(t *testing.T) {
	idle := cpu.TimesStat{User: 100, System: 50, Idle: 850}
	ioWarn := cpu.TimesStat{User: 50, System: 15, Iowait: 35}
	ioCrit := cpu.TimesStat{User: 50, System: 5, Iowait: 45}

	tests := []struct {
		name      string
		load, mem float64
		times     cpu.TimesStat
		wantScore int
		wantZone  HealthZone
	}{
		{"all safe", 1.0, 50, idle, 100, HealthZoneSafe},
		{"io warning", 1.0, 50, ioWarn, 78, HealthZoneSafe},
		{"io critical", 1.0, 50, ioCrit, 55, HealthZoneWarning},
		{"io critical and cpu warning", 9.0, 50, ioCrit, 38, HealthZoneWarning},
		{"io and cpu critical", 13.0, 50, ioCrit, 20, HealthZoneCritical},
		{"everything critical", 13.0, 99, ioCrit, 0, HealthZoneCritical},
		{"memory warning only", 1.0, 90, idle, 90, HealthZoneSafe},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := stubbed(tt.load, tt.mem, tt.times)
			m.collect()

			got := m.GetHealth()
			assert.Equal(t, tt.wantScore, got.Score)
			assert.Equal(t, tt.wantZone, got.Zone)
			assert.False(t, got.Stale)
			assert.Equal(t, 0, m.consecFailures)
		})
	}
}

func TestMonitor_FirstSampleHasNoIOWait(t *testing.T) {
	m := stubbed(1.0, 50, cpu.TimesStat{User: 10, Iowait: 90})
	m.lastCPUTimes = nil

	m.collect()
	assert.Equal(t, 0.0, m.GetHealth().IOWaitPercent)
	assert.Equal(t, 0, m.consecFailures)
}

func TestMonitor_FailedProbesKeepPreviousValues(t *testing.T) {
	m := stubbed(1.0, 40, cpu.TimesStat{User: 95, Iowait: 5})
	m.collect()
	before := m.GetHealth()

	failed := errors.New("failed")
	m.getLoadAvg = func(context.Context) (*load.AvgStat, error) { return nil, failed }
	m.getMemStats = func(context.Context) (*mem.VirtualMemoryStat, error) { return nil, failed }
	m.getCPUTimes = func(context.Context, bool) ([]cpu.TimesStat, error) { return nil, failed }

	m.collect()
	after := m.GetHealth()
	assert.Equal(t, before.CPULoadAvg, after.CPULoadAvg)
	assert.Equal(t, before.IOWaitPercent, after.IOWaitPercent)
	assert.Equal(t, before.MemoryPercent, after.MemoryPercent)
	assert.Equal(t, 1, m.consecFailures)

	m.collect()
	m.collect()
	assert.Equal(t, 3, m.consecFailures)
}

func TestMonitor_Staleness(t *testing.T) {
	m := stubbed(1.0, 50, cpu.TimesStat{})
	assert.True(t, m.GetHealth().Stale, "never collected")

	m.cfg.StalenessThreshold = 50 * time.Millisecond
	m.collect()
	assert.False(t, m.GetHealth().Stale)

	time.Sleep(80 * time.Millisecond)
	assert.True(t, m.GetHealth().Stale)
}

func TestMonitor_Lifecycle(t *testing.T) {
	m := stubbed(0, 0, cpu.TimesStat{})
	m.cfg.CollectionInterval = 10 * time.Millisecond

	require.NoError(t, m.Start())
	require.NoError(t, m.Start(), "second Start is a no-op")

	require.Eventually(t, func() bool { return !m.GetHealth().Timestamp.IsZero() }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Stop())
	require.NoError(t, m.Stop(), "second Stop is a no-op")
	assert.False(t, m.running)
}
