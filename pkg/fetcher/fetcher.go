// Package fetcher retrieves every dispatch record for a date across all
// result pages. Pagination is strictly sequential; the backend's assumed
// rate limit is respected by pausing after every fixed-size run of pages.
package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mucollegedb/dispatch-admin/pkg/dispatch"
	"github.com/mucollegedb/dispatch-admin/pkg/pacer"
	"github.com/mucollegedb/dispatch-admin/pkg/pocketbase"
)

// Prometheus metrics for full-date fetches.
var (
	pagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_fetch_pages_total",
		Help: "Total dispatch pages fetched",
	})

	fetchesAborted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_fetch_aborted_total",
		Help: "Total full-date fetches aborted by a request error",
	})
)

// DispatchLister is the single-page query the fetcher is built on.
type DispatchLister interface {
	ListDispatch(ctx context.Context, filter string, page, perPage int) (*pocketbase.DispatchPage, error)
}

// SnapshotWriter persists a fetched sequence for reuse across restarts.
type SnapshotWriter interface {
	Put(ctx context.Context, dateKey string, records []dispatch.Record) error
}

// Config holds the pagination and pacing policy.
type Config struct {
	// PerPage is the page size requested from the backend.
	PerPage int

	// PagesPerBatch is how many pages are fetched before pausing.
	PagesPerBatch int

	// BatchPause is the pause between page batches.
	BatchPause time.Duration
}

// DefaultConfig returns the policy the backend is known to tolerate:
// 30 records per page, 4 s pause after every 10 pages.
func DefaultConfig() Config {
	return Config{
		PerPage:       30,
		PagesPerBatch: 10,
		BatchPause:    4 * time.Second,
	}
}

// Fetcher retrieves complete per-date dispatch sequences.
type Fetcher struct {
	client    DispatchLister
	snapshots SnapshotWriter
	pace      *pacer.Pacer
	config    Config
	logger    zerolog.Logger
}

// New creates a fetcher. snapshots may be nil to disable snapshot writes.
func New(client DispatchLister, snapshots SnapshotWriter, cfg Config) (*Fetcher, error) {
	if client == nil {
		return nil, fmt.Errorf("dispatch lister is required")
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = 30
	}
	if cfg.PagesPerBatch <= 0 {
		cfg.PagesPerBatch = 10
	}
	if cfg.BatchPause <= 0 {
		cfg.BatchPause = 4 * time.Second
	}

	pace, err := pacer.New("fetch-pages", pacer.Config{
		Every: cfg.PagesPerBatch,
		Pause: cfg.BatchPause,
	})
	if err != nil {
		return nil, err
	}

	return &Fetcher{
		client:    client,
		snapshots: snapshots,
		pace:      pace,
		config:    cfg,
		logger:    log.With().Str("component", "fetcher").Logger(),
	}, nil
}

// Pacer exposes the page pacer (for testing).
func (f *Fetcher) Pacer() *pacer.Pacer {
	return f.pace
}

// FetchAll retrieves every dispatch record whose exam date matches the given
// day, in backend-returned order. On a request error the remaining pages are
// abandoned and the records accumulated so far are returned alongside the
// error; callers must treat such a result as incomplete.
func (f *Fetcher) FetchAll(ctx context.Context, date time.Time) ([]dispatch.Record, error) {
	start := time.Now()
	dateKey := dispatch.DateKey(date)
	filter := pocketbase.ExamDateFilter(dateKey)

	f.pace.Reset()

	var records []dispatch.Record
	page := 1
	for {
		result, err := f.client.ListDispatch(ctx, filter, page, f.config.PerPage)
		if err != nil {
			fetchesAborted.Inc()
			f.logger.Error().
				Err(err).
				Str("date", dateKey).
				Int("page", page).
				Int("accumulated", len(records)).
				Msg("Dispatch fetch aborted")
			return records, fmt.Errorf("fetch page %d (partial data: %d records): %w", page, len(records), err)
		}

		pagesFetched.Inc()
		records = append(records, result.Items...)

		f.logger.Debug().
			Str("date", dateKey).
			Int("page", page).
			Int("total_pages", result.TotalPages).
			Int("accumulated", len(records)).
			Msg("Dispatch page fetched")

		morePages := result.TotalPages > page
		if err := f.pace.Tick(ctx); err != nil {
			return records, fmt.Errorf("fetch interrupted after page %d: %w", page, err)
		}
		if !morePages {
			break
		}
		page++
	}

	f.logger.Info().
		Str("date", dateKey).
		Int("pages", page).
		Int("records", len(records)).
		Dur("duration", time.Since(start)).
		Msg("Dispatch fetch complete")

	f.writeSnapshot(ctx, dateKey, records)

	return records, nil
}

// writeSnapshot persists the sequence best-effort; failures are logged only.
func (f *Fetcher) writeSnapshot(ctx context.Context, dateKey string, records []dispatch.Record) {
	if f.snapshots == nil {
		return
	}
	if err := f.snapshots.Put(ctx, dateKey, records); err != nil {
		f.logger.Warn().
			Err(err).
			Str("date", dateKey).
			Msg("Failed to write dispatch snapshot")
	}
}
