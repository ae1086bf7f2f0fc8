// Package resolver maps college ids referenced by dispatch records to full
// college records. Lookups are memoized in a session-scoped cache so a date's
// worth of dispatches costs each college at most one network call; uncached
// ids are fetched in small concurrent groups with a pause between groups.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mucollegedb/dispatch-admin/pkg/dispatch"
	"github.com/mucollegedb/dispatch-admin/pkg/pacer"
	"github.com/mucollegedb/dispatch-admin/pkg/pocketbase"
)

// ErrCollegeNotFound indicates a natural-key lookup matched no college.
var ErrCollegeNotFound = errors.New("no matching college")

// Prometheus metrics for college resolution.
var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_resolver_cache_hits_total",
		Help: "Total college lookups served from the session cache",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_resolver_cache_misses_total",
		Help: "Total college lookups that required a backend fetch",
	})

	lookupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_resolver_lookup_failures_total",
		Help: "Total college lookups that failed",
	})
)

// CollegeClient is the backend surface the resolver needs.
type CollegeClient interface {
	GetCollege(ctx context.Context, id string) (*dispatch.College, error)
	ListColleges(ctx context.Context, filter string) ([]dispatch.College, error)
}

// Config holds the grouping and pacing policy.
type Config struct {
	// GroupSize is how many uncached ids are fetched concurrently.
	GroupSize int

	// GroupPause is the pause between groups (skipped after the last).
	GroupPause time.Duration
}

// DefaultConfig returns the policy the backend is known to tolerate:
// groups of 5, 2 s pause between groups.
func DefaultConfig() Config {
	return Config{
		GroupSize:  5,
		GroupPause: 2 * time.Second,
	}
}

// Resolver resolves college references with a session-scoped cache.
type Resolver struct {
	client CollegeClient
	cache  *gocache.Cache
	pace   *pacer.Pacer
	config Config
	logger zerolog.Logger
}

// New creates a resolver with an empty session cache.
func New(client CollegeClient, cfg Config) (*Resolver, error) {
	if client == nil {
		return nil, fmt.Errorf("college client is required")
	}
	if cfg.GroupSize <= 0 {
		cfg.GroupSize = 5
	}
	if cfg.GroupPause <= 0 {
		cfg.GroupPause = 2 * time.Second
	}

	pace, err := pacer.New("resolve-groups", pacer.Config{
		Every: 1,
		Pause: cfg.GroupPause,
	})
	if err != nil {
		return nil, err
	}

	return &Resolver{
		client: client,
		cache:  gocache.New(gocache.NoExpiration, 0),
		pace:   pace,
		config: cfg,
		logger: log.With().Str("component", "resolver").Logger(),
	}, nil
}

// Pacer exposes the group pacer (for testing).
func (r *Resolver) Pacer() *pacer.Pacer {
	return r.pace
}

// Reset clears the session cache. Called when the active date filter
// changes and a new query session begins.
func (r *Resolver) Reset() {
	r.cache.Flush()
	r.logger.Debug().Msg("Session cache reset")
}

// ResolveRecords resolves the colleges referenced by a dispatch sequence.
func (r *Resolver) ResolveRecords(ctx context.Context, records []dispatch.Record) (map[string]dispatch.College, error) {
	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.College)
	}
	return r.ResolveIDs(ctx, ids)
}

// ResolveIDs resolves a set of college ids to their records. Ids are
// deduplicated; uncached ones are fetched in groups of GroupSize issued
// concurrently and awaited together, with a pause between groups. A failed
// lookup is logged and skipped; its id is simply absent from the result.
func (r *Resolver) ResolveIDs(ctx context.Context, ids []string) (map[string]dispatch.College, error) {
	unique := dedupe(ids)
	resolved := make(map[string]dispatch.College, len(unique))

	for start := 0; start < len(unique); start += r.config.GroupSize {
		end := start + r.config.GroupSize
		if end > len(unique) {
			end = len(unique)
		}
		group := unique[start:end]

		if err := r.resolveGroup(ctx, group, resolved); err != nil {
			return resolved, err
		}

		if end < len(unique) {
			if err := r.pace.Tick(ctx); err != nil {
				return resolved, fmt.Errorf("resolution interrupted: %w", err)
			}
		}
	}

	return resolved, nil
}

// resolveGroup fills resolved with the group's colleges, cache first.
// Cache hits are served before any goroutine is spawned so only the fetch
// goroutines touch the map concurrently, always under the mutex.
// Group N+1 never starts before this returns.
func (r *Resolver) resolveGroup(ctx context.Context, group []string, resolved map[string]dispatch.College) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var misses []string
	for _, id := range group {
		if cached, ok := r.cache.Get(id); ok {
			cacheHits.Inc()
			resolved[id] = cached.(dispatch.College)
			continue
		}
		cacheMisses.Inc()
		misses = append(misses, id)
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for _, id := range misses {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()

			college, err := r.client.GetCollege(ctx, id)
			if err != nil {
				lookupFailures.Inc()
				r.logger.Warn().
					Err(err).
					Str("college", id).
					Msg("College lookup failed")
				return
			}

			mu.Lock()
			resolved[id] = *college
			mu.Unlock()
			r.cache.Set(id, *college, gocache.NoExpiration)
		}(id)
	}

	wg.Wait()
	return nil
}

// CollegeIDByCode resolves a college's natural code (COLL_NO) to its record
// id via a filtered list query. When the backend returns several matches the
// first one in backend order wins; the backend does not guarantee uniqueness
// of the code. Returns ErrCollegeNotFound on zero matches.
func (r *Resolver) CollegeIDByCode(ctx context.Context, code string) (string, error) {
	colleges, err := r.client.ListColleges(ctx, pocketbase.CollegeCodeFilter(code))
	if err != nil {
		return "", fmt.Errorf("lookup college code %q: %w", code, err)
	}
	if len(colleges) == 0 {
		lookupFailures.Inc()
		return "", fmt.Errorf("college code %q: %w", code, ErrCollegeNotFound)
	}
	return colleges[0].ID, nil
}

// dedupe removes duplicates preserving first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}
