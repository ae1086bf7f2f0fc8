package importer

import (
	"context"
	"encoding/json"
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

// Prometheus metrics for bulk imports.
var (
	rowsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_import_rows_created_total",
		Help: "Total dispatch records created by bulk imports",
	})

	rowsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_import_rows_failed_total",
		Help: "Total import rows that failed",
	})
)

// CollegeIDLookup resolves a college's natural code to its record id.
type CollegeIDLookup interface {
	CollegeIDByCode(ctx context.Context, code string) (string, error)
}

// DispatchCreator creates one dispatch record.
type DispatchCreator interface {
	CreateDispatch(ctx context.Context, req pocketbase.CreateDispatchRequest) (*dispatch.Record, error)
}

// Config holds the row pacing policy.
type Config struct {
	// RowsPerBatch is how many rows are written before pausing.
	RowsPerBatch int

	// BatchPause is the pause between row batches.
	BatchPause time.Duration
}

// DefaultConfig returns the policy the backend is known to tolerate:
// 2 s pause after every 10 rows.
func DefaultConfig() Config {
	return Config{
		RowsPerBatch: 10,
		BatchPause:   2 * time.Second,
	}
}

// RowResult records the outcome of one import row.
type RowResult struct {
	Row      Row    `json:"row"`
	RecordID string `json:"recordId,omitempty"`
	Err      error  `json:"-"`
}

// MarshalJSON renders the error as its message so run reports survive the
// trip through the API.
func (r RowResult) MarshalJSON() ([]byte, error) {
	type alias RowResult
	out := struct {
		alias
		Error string `json:"error,omitempty"`
	}{alias: alias(r)}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// RunReport summarizes a pipeline run. Created+len(Failures) == Total.
type RunReport struct {
	Total    int         `json:"total"`
	Created  int         `json:"created"`
	Failures []RowResult `json:"failures,omitempty"`
}

// Pipeline turns parsed schedule rows into backend dispatch records.
type Pipeline struct {
	colleges CollegeIDLookup
	creator  DispatchCreator
	pace     *pacer.Pacer
	logger   zerolog.Logger
}

// NewPipeline creates an import pipeline.
func NewPipeline(colleges CollegeIDLookup, creator DispatchCreator, cfg Config) (*Pipeline, error) {
	if colleges == nil {
		return nil, fmt.Errorf("college lookup is required")
	}
	if creator == nil {
		return nil, fmt.Errorf("dispatch creator is required")
	}
	if cfg.RowsPerBatch <= 0 {
		cfg.RowsPerBatch = 10
	}
	if cfg.BatchPause <= 0 {
		cfg.BatchPause = 2 * time.Second
	}

	pace, err := pacer.New("import-rows", pacer.Config{
		Every: cfg.RowsPerBatch,
		Pause: cfg.BatchPause,
	})
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		colleges: colleges,
		creator:  creator,
		pace:     pace,
		logger:   log.With().Str("component", "importer").Logger(),
	}, nil
}

// Pacer exposes the row pacer (for testing).
func (p *Pipeline) Pacer() *pacer.Pacer {
	return p.pace
}

// Run processes rows sequentially. Each row is isolated: a failure is
// recorded in the report and processing continues with the next row. Rows
// that succeed produce a dispatch record in Pending state with the default
// remark. Only a cancelled context stops the run early; the report then
// covers the rows processed so far.
func (p *Pipeline) Run(ctx context.Context, rows []Row) (*RunReport, error) {
	start := time.Now()
	report := &RunReport{Total: len(rows)}

	p.pace.Reset()

	for _, row := range rows {
		result := p.processRow(ctx, row)
		if result.Err != nil {
			rowsFailed.Inc()
			report.Failures = append(report.Failures, result)
			p.logger.Warn().
				Err(result.Err).
				Int("line", row.Line).
				Str("coll_no", row.CollNo).
				Msg("Import row failed")
		} else {
			rowsCreated.Inc()
			report.Created++
		}

		if err := p.pace.Tick(ctx); err != nil {
			return report, fmt.Errorf("import interrupted after %d rows: %w", report.Created+len(report.Failures), err)
		}
	}

	p.logger.Info().
		Int("total", report.Total).
		Int("created", report.Created).
		Int("failed", len(report.Failures)).
		Dur("duration", time.Since(start)).
		Msg("Bulk import complete")

	return report, nil
}

// processRow resolves the row's college, then normalizes its exam date, and
// creates the dispatch record. The college lookup comes first: an unknown
// COLL_NO is the failure reported even when the date is also bad.
func (p *Pipeline) processRow(ctx context.Context, row Row) RowResult {
	result := RowResult{Row: row}

	if row.CollNo == "" {
		result.Err = fmt.Errorf("line %d: empty COLL_NO", row.Line)
		return result
	}

	collegeID, err := p.colleges.CollegeIDByCode(ctx, row.CollNo)
	if err != nil {
		result.Err = fmt.Errorf("line %d: %w", row.Line, err)
		return result
	}

	examDate, err := dispatch.ParseExamDate(row.Exam)
	if err != nil {
		result.Err = fmt.Errorf("line %d: %w", row.Line, err)
		return result
	}

	record, err := p.creator.CreateDispatch(ctx, pocketbase.CreateDispatchRequest{
		College:  collegeID,
		ExamDate: dispatch.DateKey(examDate),
		Status:   dispatch.StatusPending,
		Remark:   dispatch.DefaultRemark,
	})
	if err != nil {
		result.Err = fmt.Errorf("line %d: %w", row.Line, err)
		return result
	}

	result.RecordID = record.ID
	return result
}
