package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	ginlogger "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mucollegedb/dispatch-admin/pkg/dispatch"
	"github.com/mucollegedb/dispatch-admin/pkg/importer"
	"github.com/mucollegedb/dispatch-admin/pkg/logging"
	"github.com/mucollegedb/dispatch-admin/pkg/notify"
	"github.com/mucollegedb/dispatch-admin/pkg/report"
	"github.com/mucollegedb/dispatch-admin/pkg/snapshot"
)

// dispatchFetcher retrieves the full dispatch sequence for a date.
type dispatchFetcher interface {
	FetchAll(ctx context.Context, date time.Time) ([]dispatch.Record, error)
}

// collegeResolver resolves the colleges referenced by a sequence and is
// reset when the active date changes.
type collegeResolver interface {
	ResolveRecords(ctx context.Context, records []dispatch.Record) (map[string]dispatch.College, error)
	Reset()
}

// statusUpdater marks a dispatch picked up.
type statusUpdater interface {
	UpdateDispatchStatus(ctx context.Context, id, handlerName string) (*dispatch.Record, error)
}

// snapshotStore is the per-date durable cache of fetched sequences.
type snapshotStore interface {
	Get(ctx context.Context, dateKey string) ([]dispatch.Record, error)
	Delete(ctx context.Context, dateKey string) error
}

// importRunner executes a bulk import.
type importRunner interface {
	Run(ctx context.Context, rows []importer.Row) (*importer.RunReport, error)
}

// Server exposes the dispatch workflow over HTTP.
type Server struct {
	fetcher   dispatchFetcher
	resolver  collegeResolver
	updater   statusUpdater
	snapshots snapshotStore
	importer  importRunner
	notifier  notify.Notifier
	logger    zerolog.Logger

	mu            sync.Mutex
	activeDateKey string

	// runMu serializes paced backend runs. The fetcher, resolver, and
	// import pipeline each own a single pacer that is not safe for
	// concurrent use, and the backend's rate limit is global anyway, so
	// two runs must never interleave their pacing windows.
	runMu sync.Mutex
}

// NewServer wires the workflow components into an HTTP server.
// snapshots may be nil when no snapshot store is configured.
func NewServer(f dispatchFetcher, r collegeResolver, u statusUpdater, s snapshotStore, imp importRunner, n notify.Notifier) *Server {
	if n == nil {
		n = notify.NewLogNotifier()
	}
	return &Server{
		fetcher:   f,
		resolver:  r,
		updater:   u,
		snapshots: s,
		importer:  imp,
		notifier:  n,
		logger:    logging.NewLogger("server"),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginlogger.SetLogger())

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/dispatch", s.handleDispatchView)
		api.GET("/pickup", s.handlePickupView)
		api.PATCH("/dispatch/:id/pickup", s.handlePickup)
		api.POST("/import", s.handleImport)
	}

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseDate reads the required date query parameter.
func parseDate(c *gin.Context) (time.Time, bool) {
	raw := c.Query("date")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date is required"})
		return time.Time{}, false
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid date %q, want YYYY-MM-DD", raw)})
		return time.Time{}, false
	}
	return date, true
}

// switchDate tracks the active date, resetting the resolver session and
// dropping the previous date's snapshot when it changes.
func (s *Server) switchDate(ctx context.Context, dateKey string) {
	s.mu.Lock()
	previous := s.activeDateKey
	s.activeDateKey = dateKey
	s.mu.Unlock()

	if previous == "" || previous == dateKey {
		return
	}

	s.resolver.Reset()
	if s.snapshots != nil {
		if err := s.snapshots.Delete(ctx, previous); err != nil {
			s.logger.Warn().Err(err).Str("date", previous).Msg("Failed to drop stale snapshot")
		}
	}
	s.logger.Debug().Str("from", previous).Str("to", dateKey).Msg("Active date changed")
}

// loadRecords returns the date's dispatch sequence, serving the snapshot
// when one exists unless refresh=true forces a backend fetch.
func (s *Server) loadRecords(c *gin.Context, date time.Time) ([]dispatch.Record, error) {
	ctx := c.Request.Context()
	dateKey := dispatch.DateKey(date)

	if s.snapshots != nil && c.Query("refresh") != "true" {
		records, err := s.snapshots.Get(ctx, dateKey)
		if err == nil {
			return records, nil
		}
		if !errors.Is(err, snapshot.ErrNoSnapshot) {
			s.logger.Warn().Err(err).Str("date", dateKey).Msg("Snapshot read failed")
		}
	}

	return s.fetcher.FetchAll(ctx, date)
}

// dispatchView is the grouped response for the dispatch and pickup pages.
type dispatchView struct {
	Date           string            `json:"date"`
	Groups         []report.Group    `json:"groups"`
	RouteOptions   []string          `json:"routeOptions"`
	CollegeOptions []string          `json:"collegeOptions"`
	DateColors     map[string]string `json:"dateColors"`
	Total          int               `json:"total"`
	Dropped        int               `json:"dropped"`
}

func (s *Server) buildView(c *gin.Context, date time.Time, filters report.Filters) (*dispatchView, bool) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	ctx := c.Request.Context()
	dateKey := dispatch.DateKey(date)
	s.switchDate(ctx, dateKey)

	records, err := s.loadRecords(c, date)
	if err != nil {
		s.notifier.Notify(notify.Notification{
			Severity: notify.SeverityError,
			Message:  "Failed to load dispatch data",
		})
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return nil, false
	}

	colleges, err := s.resolver.ResolveRecords(ctx, records)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return nil, false
	}

	groups := report.Build(records, colleges, filters)

	shown := 0
	for _, g := range groups {
		shown += len(g.Exams)
	}

	return &dispatchView{
		Date:           dateKey,
		Groups:         groups,
		RouteOptions:   report.RouteCodeOptions(records, colleges),
		CollegeOptions: report.CollegeCodeOptions(records, colleges),
		DateColors:     report.DateColors(records),
		Total:          len(records),
		Dropped:        len(records) - countResolvable(records, colleges),
	}, true
}

func countResolvable(records []dispatch.Record, colleges map[string]dispatch.College) int {
	n := 0
	for _, r := range records {
		if _, ok := colleges[r.College]; ok {
			n++
		}
	}
	return n
}

// handleDispatchView serves the filtered, grouped dispatch table.
func (s *Server) handleDispatchView(c *gin.Context) {
	date, ok := parseDate(c)
	if !ok {
		return
	}

	view, ok := s.buildView(c, date, report.Filters{
		RouteCode:   c.Query("route"),
		CollegeCode: c.Query("college"),
		Status:      c.Query("status"),
	})
	if !ok {
		return
	}

	c.JSON(http.StatusOK, view)
}

// handlePickupView serves the route-scoped pickup worklist. Unlike the
// dispatch view, the route is mandatory: the page is meaningless without
// one, so the request is rejected before any backend traffic.
func (s *Server) handlePickupView(c *gin.Context) {
	route := c.Query("route")
	if route == "" || route == report.FilterAll {
		c.JSON(http.StatusBadRequest, gin.H{"error": "route is required"})
		return
	}
	date, ok := parseDate(c)
	if !ok {
		return
	}

	view, ok := s.buildView(c, date, report.Filters{
		RouteCode: route,
		Status:    string(dispatch.StatusPending),
	})
	if !ok {
		return
	}

	c.JSON(http.StatusOK, view)
}

// handlePickup marks one dispatch record picked up.
func (s *Server) handlePickup(c *gin.Context) {
	var payload struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil || payload.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	record, err := s.updater.UpdateDispatchStatus(c.Request.Context(), c.Param("id"), payload.Name)
	if err != nil {
		s.notifier.Notify(notify.Notification{
			Severity: notify.SeverityError,
			Message:  "Failed to update dispatch status",
		})
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	s.notifier.Notify(notify.Notification{
		Severity: notify.SeveritySuccess,
		Message:  "Dispatch marked as picked up",
	})
	c.JSON(http.StatusOK, record)
}

// handleImport parses an uploaded schedule and, when confirm=true, creates
// the records. Without confirmation only the parsed preview is returned.
func (s *Server) handleImport(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	rows, err := importer.ParseFile(header.Filename, file)
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, importer.ErrMissingHeaders) && !errors.Is(err, importer.ErrUnsupportedFormat) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	if c.Query("confirm") != "true" {
		c.JSON(http.StatusOK, gin.H{"rows": rows, "total": len(rows)})
		return
	}

	s.runMu.Lock()
	reportResult, err := s.importer.Run(c.Request.Context(), rows)
	s.runMu.Unlock()
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "report": reportResult})
		return
	}

	severity := notify.SeveritySuccess
	if len(reportResult.Failures) > 0 {
		severity = notify.SeverityInfo
	}
	s.notifier.Notify(notify.Notification{
		Severity: severity,
		Message:  fmt.Sprintf("Import finished: %d created, %d failed", reportResult.Created, len(reportResult.Failures)),
	})

	c.JSON(http.StatusOK, reportResult)
}
