// Package pacer implements count-based request pacing for the hosted
// backend. The backend enforces an assumed rate limit, so multi-request
// operations pause for a fixed window after every run of N requests.
// The policy lives here so call sites do not count requests themselves.
package pacer

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for pacing.
var (
	pausesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_pacer_pauses_total",
		Help: "Total pacing pauses taken by pacer name",
	}, []string{"pacer"})

	pauseSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_pacer_pause_seconds",
		Help:    "Pause duration in seconds by pacer name",
		Buckets: []float64{0.5, 1, 2, 4, 8},
	}, []string{"pacer"})
)

// Config holds a pacing policy: pause for Pause after every Every
// operations counted.
type Config struct {
	Every int
	Pause time.Duration
}

// Pacer counts operations and suspends after every Every-th one.
// Not safe for concurrent use; each sequential operation owns its pacer
// or resets it before a run.
type Pacer struct {
	name   string
	config Config
	count  int
	sleep  func(ctx context.Context, d time.Duration) error
	logger zerolog.Logger
}

// New creates a pacer with the given name (used in logs and metrics).
func New(name string, cfg Config) (*Pacer, error) {
	if cfg.Every <= 0 {
		return nil, fmt.Errorf("pacer %s: every must be > 0 (got %d)", name, cfg.Every)
	}
	if cfg.Pause <= 0 {
		return nil, fmt.Errorf("pacer %s: pause must be > 0 (got %s)", name, cfg.Pause)
	}

	return &Pacer{
		name:   name,
		config: cfg,
		sleep:  sleepWithContext,
		logger: log.With().Str("component", "pacer").Str("pacer", name).Logger(),
	}, nil
}

// Tick records one completed operation and pauses when the count reaches a
// multiple of Every. Returns early with the context error if the context is
// cancelled during a pause.
func (p *Pacer) Tick(ctx context.Context) error {
	p.count++
	if p.count%p.config.Every != 0 {
		return nil
	}

	p.logger.Debug().
		Int("count", p.count).
		Dur("pause", p.config.Pause).
		Msg("Pacing pause")

	pausesTotal.WithLabelValues(p.name).Inc()
	pauseSeconds.WithLabelValues(p.name).Observe(p.config.Pause.Seconds())

	return p.sleep(ctx, p.config.Pause)
}

// Count returns the number of operations recorded since the last reset.
func (p *Pacer) Count() int {
	return p.count
}

// Reset clears the operation count for a new run.
func (p *Pacer) Reset() {
	p.count = 0
}

// SetSleepFunc replaces the pause implementation (for testing).
func (p *Pacer) SetSleepFunc(fn func(ctx context.Context, d time.Duration) error) {
	p.sleep = fn
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
