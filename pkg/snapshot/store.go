// Package snapshot persists the full dispatch sequence fetched for a date
// to Redis, keyed by the queried date. Writes are best-effort: a missing or
// failed snapshot must never break a flow, the data can always be refetched.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mucollegedb/dispatch-admin/pkg/dispatch"
)

// ErrNoSnapshot indicates no snapshot exists for the requested date.
var ErrNoSnapshot = errors.New("no snapshot for date")

// Prometheus metrics for snapshot operations.
var (
	snapshotWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_snapshot_writes_total",
		Help: "Total dispatch snapshots written",
	})

	snapshotHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_snapshot_hits_total",
		Help: "Total snapshot reads that found a snapshot",
	})

	snapshotMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_snapshot_misses_total",
		Help: "Total snapshot reads that found nothing",
	})

	snapshotErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_snapshot_errors_total",
		Help: "Total snapshot operation errors",
	}, []string{"operation"})
)

// Key returns the storage key for a normalized date string.
// The format is kept compatible with the browser cache it replaces.
func Key(dateKey string) string {
	return "dispatchData-" + dateKey
}

// Store handles snapshot persistence with a Redis backend.
type Store struct {
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewStore creates a snapshot store. TTL zero means snapshots never expire.
func NewStore(redisClient *redis.Client, ttl time.Duration) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Store{
		redis:  redisClient,
		ttl:    ttl,
		logger: log.With().Str("component", "snapshot").Logger(),
	}
}

// Put stores the full dispatch sequence for a date, replacing any previous
// snapshot for that date.
func (s *Store) Put(ctx context.Context, dateKey string, records []dispatch.Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		snapshotErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := s.redis.Set(ctx, Key(dateKey), data, s.ttl).Err(); err != nil {
		snapshotErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	snapshotWrites.Inc()
	s.logger.Debug().
		Str("date", dateKey).
		Int("records", len(records)).
		Msg("Snapshot written")

	return nil
}

// Get retrieves the snapshot for a date.
// Returns ErrNoSnapshot when none exists.
func (s *Store) Get(ctx context.Context, dateKey string) ([]dispatch.Record, error) {
	data, err := s.redis.Get(ctx, Key(dateKey)).Bytes()
	if err != nil {
		if err == redis.Nil {
			snapshotMisses.Inc()
			return nil, ErrNoSnapshot
		}
		snapshotErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var records []dispatch.Record
	if err := json.Unmarshal(data, &records); err != nil {
		snapshotErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	snapshotHits.Inc()
	return records, nil
}

// Delete removes the snapshot for a date. Used when the active date filter
// changes and the stored sequence is about to be refetched.
func (s *Store) Delete(ctx context.Context, dateKey string) error {
	if err := s.redis.Del(ctx, Key(dateKey)).Err(); err != nil {
		snapshotErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
