// Package metrics provides the central Prometheus registry reference for the
// dispatch admin service. All metrics are defined in their owning packages
// (pocketbase, pacer, fetcher, resolver, importer, snapshot) to maintain
// modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the service.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Backend Metrics (pkg/pocketbase):
//   - dispatch_backend_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - dispatch_backend_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - dispatch_backend_errors_total{class} (Counter): Errors by class (client, server, network)
//   - dispatch_backend_retries_total{error_class} (Counter): Retry attempts by error class
//   - dispatch_backend_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Pacing Metrics (pkg/pacer):
//   - dispatch_pacer_pauses_total{pacer} (Counter): Pauses taken by each pacer
//   - dispatch_pacer_pause_seconds{pacer} (Histogram): Pause durations
//
// Fetch Metrics (pkg/fetcher):
//   - dispatch_fetch_pages_total (Counter): Dispatch pages fetched
//   - dispatch_fetch_aborted_total (Counter): Full-date fetches aborted by a request error
//
// Resolver Metrics (pkg/resolver):
//   - dispatch_resolver_cache_hits_total (Counter): Lookups served from the session cache
//   - dispatch_resolver_cache_misses_total (Counter): Lookups requiring a backend fetch
//   - dispatch_resolver_lookup_failures_total (Counter): Failed college lookups
//
// Import Metrics (pkg/importer):
//   - dispatch_import_rows_created_total (Counter): Records created by bulk imports
//   - dispatch_import_rows_failed_total (Counter): Import rows that failed
//
// Snapshot Metrics (pkg/snapshot):
//   - dispatch_snapshot_writes_total (Counter): Snapshot writes
//   - dispatch_snapshot_hits_total (Counter): Snapshot reads that found data
//   - dispatch_snapshot_misses_total (Counter): Snapshot reads that found nothing
//   - dispatch_snapshot_errors_total{operation} (Counter): Snapshot operation errors
//
// Example Prometheus Queries:
//
//   # Resolver Cache Hit Rate
//   sum(rate(dispatch_resolver_cache_hits_total[5m])) /
//   (sum(rate(dispatch_resolver_cache_hits_total[5m])) + sum(rate(dispatch_resolver_cache_misses_total[5m])))
//
//   # Backend Error Rate
//   rate(dispatch_backend_errors_total[5m])
//
//   # P95 Backend Latency
//   histogram_quantile(0.95, rate(dispatch_backend_request_duration_seconds_bucket[5m]))
//
//   # Import Failure Ratio
//   rate(dispatch_import_rows_failed_total[5m]) /
//   (rate(dispatch_import_rows_created_total[5m]) + rate(dispatch_import_rows_failed_total[5m]))
