package graphdb

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/emergent-company/emergent.graphcore/pkg/logger"
)

// Pinger is what the keepalive probes; Manager implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Keepalive pings the shared session on a fixed interval so the engine does
// not expire it between bursts of traffic. An expired session is reopened by
// the ping itself (see Manager.Transaction).
type Keepalive struct {
	target   Pinger
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger

	mu       sync.Mutex
	cron     *cron.Cron
	failures int
}

// NewKeepalive creates a keepalive. A zero interval disables it.
func NewKeepalive(target Pinger, interval, timeout time.Duration, log *slog.Logger) *Keepalive {
	return &Keepalive{
		target:   target,
		interval: interval,
		timeout:  timeout,
		log:      log.With(logger.Scope("graphdb.keepalive")),
	}
}

// Start schedules the ping. Calling Start on a running or disabled
// keepalive does nothing.
func (k *Keepalive) Start() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.interval <= 0 || k.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc("@every "+k.interval.String(), func() { k.Tick(context.Background()) }); err != nil {
		return fmt.Errorf("schedule keepalive: %w", err)
	}
	c.Start()
	k.cron = c
	k.log.Info("session keepalive started", slog.Duration("interval", k.interval))
	return nil
}

// Stop waits for a running ping to finish or ctx to expire.
func (k *Keepalive) Stop(ctx context.Context) error {
	k.mu.Lock()
	c := k.cron
	k.cron = nil
	k.mu.Unlock()
	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		k.log.Warn("keepalive stop timed out")
	}
	return nil
}

// Tick runs one ping and returns its error.
func (k *Keepalive) Tick(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	err := k.target.Ping(ctx)

	k.mu.Lock()
	defer k.mu.Unlock()
	if err != nil {
		k.failures++
		k.log.Warn("session keepalive failed",
			slog.Int("consecutive_failures", k.failures),
			logger.Error(err))
		return err
	}
	if k.failures > 0 {
		k.log.Info("session keepalive recovered", slog.Int("after_failures", k.failures))
	}
	k.failures = 0
	return nil
}

// Failures returns the number of consecutive failed pings.
func (k *Keepalive) Failures() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.failures
}
