package syshealth

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/emergent-company/emergent.graphcore/pkg/logger"
)

// Penalty weights per component; they sum to 1.
const (
	ioWeight  = 0.45
	cpuWeight = 0.35
	memWeight = 0.20
)

type monitor struct {
	cfg     *Config
	log     *slog.Logger
	metrics HealthMetrics
	mu      sync.RWMutex

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool

	lastCPUTimes   *cpu.TimesStat
	consecFailures int

	getLoadAvg  func(context.Context) (*load.AvgStat, error)
	getCPUTimes func(context.Context, bool) ([]cpu.TimesStat, error)
	getMemStats func(context.Context) (*mem.VirtualMemoryStat, error)
	getCPUCores func() int
}

// NewMonitor creates a host pressure monitor. A nil cfg uses DefaultConfig.
func NewMonitor(cfg *Config, log *slog.Logger) Monitor {
	return newMonitor(cfg, log)
}

func newMonitor(cfg *Config, log *slog.Logger) *monitor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &monitor{
		cfg:         cfg,
		log:         log.With(logger.Scope("syshealth")),
		metrics:     HealthMetrics{Score: 100, Zone: HealthZoneSafe},
		getLoadAvg:  load.AvgWithContext,
		getCPUTimes: cpu.TimesWithContext,
		getMemStats: mem.VirtualMemoryWithContext,
		getCPUCores: runtime.NumCPU,
	}
}

func (m *monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})

	go m.loop(m.stopCh, m.doneCh)
	m.log.Info("host health monitor started", slog.Duration("interval", m.cfg.CollectionInterval))
	return nil
}

func (m *monitor) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.cfg.CollectionInterval)
	defer ticker.Stop()

	m.collect()
	for {
		select {
		case <-ticker.C:
			m.collect()
		case <-stop:
			return
		}
	}
}

func (m *monitor) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	close(m.stopCh)
	done := m.doneCh
	m.mu.Unlock()

	<-done
	m.log.Info("host health monitor stopped")
	return nil
}

func (m *monitor) GetHealth() *HealthMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := m.metrics
	if out.Timestamp.IsZero() || time.Since(out.Timestamp) > m.cfg.StalenessThreshold {
		out.Stale = true
	}
	return &out
}

// sample holds one round of probes; a nil field failed.
type sample struct {
	load   *float64
	ioWait *float64
	mem    *float64
}

func (m *monitor) probe(ctx context.Context) sample {
	var s sample

	if l, err := m.getLoadAvg(ctx); err == nil {
		s.load = &l.Load1
	} else {
		m.log.Warn("load average unavailable", logger.Error(err))
	}

	if times, err := m.getCPUTimes(ctx, false); err == nil && len(times) > 0 {
		t := times[0]
		if m.lastCPUTimes != nil {
			var pct float64
			if deltaTotal := t.Total() - m.lastCPUTimes.Total(); deltaTotal > 0 {
				pct = (t.Iowait - m.lastCPUTimes.Iowait) / deltaTotal * 100.0
			}
			s.ioWait = &pct
		} else {
			zero := 0.0
			s.ioWait = &zero
		}
		m.lastCPUTimes = &t
	} else if err != nil {
		m.log.Warn("cpu times unavailable", logger.Error(err))
	} else {
		m.log.Warn("cpu times unavailable: no data returned")
	}

	if v, err := m.getMemStats(ctx); err == nil {
		s.mem = &v.UsedPercent
	} else {
		m.log.Warn("memory stats unavailable", logger.Error(err))
	}
	return s
}

func (m *monitor) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.CollectionTimeout)
	defer cancel()
	s := m.probe(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	// Failed probes keep their previous value.
	loadAvg, ioWait, memPercent := m.metrics.CPULoadAvg, m.metrics.IOWaitPercent, m.metrics.MemoryPercent
	if s.load != nil {
		loadAvg = *s.load
	}
	if s.ioWait != nil {
		ioWait = *s.ioWait
	}
	if s.mem != nil {
		memPercent = *s.mem
	}
	if s.load == nil || s.ioWait == nil || s.mem == nil {
		m.consecFailures++
		collectionFailures.Inc()
		if m.consecFailures >= 3 {
			m.log.Error("persistent host metric collection failures", slog.Int("failures", m.consecFailures))
		}
	} else {
		m.consecFailures = 0
	}

	cores := float64(m.getCPUCores())
	if cores == 0 {
		cores = 1
	}
	penalty := componentPenalty(ioWait, m.cfg.IOWaitWarningPercent, m.cfg.IOWaitCriticalPercent)*ioWeight +
		componentPenalty(loadAvg/cores*100.0, m.cfg.CPULoadWarningFactor*100.0, m.cfg.CPULoadCriticalFactor*100.0)*cpuWeight +
		componentPenalty(memPercent, m.cfg.MemoryWarningPercent, m.cfg.MemoryCriticalPercent)*memWeight
	score := 100 - int(penalty)
	if score < 0 {
		score = 0
	}
	zone := zoneFor(score)

	if zone != m.metrics.Zone {
		m.log.Warn("host health zone transition",
			slog.String("old_zone", string(m.metrics.Zone)),
			slog.String("new_zone", string(zone)),
			slog.Int("score", score))
	}

	m.metrics = HealthMetrics{
		Score:         score,
		Zone:          zone,
		CPULoadAvg:    loadAvg,
		IOWaitPercent: ioWait,
		MemoryPercent: memPercent,
		Timestamp:     time.Now(),
	}

	healthScore.Set(float64(score))
	ioWaitPercent.Set(ioWait)
	cpuLoadAvg.WithLabelValues("1m").Set(loadAvg)
	memoryUtilization.Set(memPercent)

	m.log.Debug("host health metrics collected",
		slog.Int("score", score),
		slog.String("zone", string(zone)),
		slog.Float64("io_wait", ioWait),
		slog.Float64("cpu_load", loadAvg),
		slog.Float64("mem", memPercent))
}

// componentPenalty is 0 below warning, 50 from warning, 100 from critical.
func componentPenalty(value, warning, critical float64) float64 {
	if value >= critical {
		return 100.0
	}
	if value >= warning {
		return 50.0
	}
	return 0.0
}
