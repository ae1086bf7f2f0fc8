package importer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mucollegedb/dispatch-admin/pkg/dispatch"
	"github.com/mucollegedb/dispatch-admin/pkg/pocketbase"
	"github.com/mucollegedb/dispatch-admin/pkg/resolver"
)

// fakeLookup maps college codes to ids.
type fakeLookup struct {
	ids     map[string]string
	lookups int
}

func (f *fakeLookup) CollegeIDByCode(ctx context.Context, code string) (string, error) {
	f.lookups++
	id, ok := f.ids[code]
	if !ok {
		return "", fmt.Errorf("college code %q: %w", code, resolver.ErrCollegeNotFound)
	}
	return id, nil
}

// fakeCreator records create requests.
type fakeCreator struct {
	requests []pocketbase.CreateDispatchRequest
	attempts int
	failOn   int // fail the nth create attempt (1-based, 0 = never)
}

func (f *fakeCreator) CreateDispatch(ctx context.Context, req pocketbase.CreateDispatchRequest) (*dispatch.Record, error) {
	f.attempts++
	if f.failOn != 0 && f.attempts == f.failOn {
		return nil, errors.New("backend unavailable")
	}
	f.requests = append(f.requests, req)
	return &dispatch.Record{
		ID:       fmt.Sprintf("rec%d", len(f.requests)),
		College:  req.College,
		ExamDate: req.ExamDate,
		Status:   req.Status,
		Remark:   req.Remark,
	}, nil
}

func newTestPipeline(t *testing.T, lookup CollegeIDLookup, creator DispatchCreator) (*Pipeline, *int) {
	t.Helper()

	p, err := NewPipeline(lookup, creator, DefaultConfig())
	if err != nil {
		t.Fatalf("NewPipeline() failed: %v", err)
	}

	pauses := 0
	p.Pacer().SetSleepFunc(func(ctx context.Context, d time.Duration) error {
		pauses++
		return nil
	})
	return p, &pauses
}

func makeRows(n int) []Row {
	var rows []Row
	for i := 0; i < n; i++ {
		rows = append(rows, Row{
			CollNo:   fmt.Sprintf("MU%d", 100+i),
			CollName: fmt.Sprintf("College %d", i),
			Exam:     "3/15/2024",
			Line:     i + 2,
		})
	}
	return rows
}

func makeLookup(n int) *fakeLookup {
	ids := make(map[string]string)
	for i := 0; i < n; i++ {
		ids[fmt.Sprintf("MU%d", 100+i)] = fmt.Sprintf("clg%d", i)
	}
	return &fakeLookup{ids: ids}
}

func TestRun_CreatesPendingRecords(t *testing.T) {
	creator := &fakeCreator{}
	p, _ := newTestPipeline(t, makeLookup(3), creator)

	report, err := p.Run(context.Background(), makeRows(3))
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if report.Total != 3 || report.Created != 3 || len(report.Failures) != 0 {
		t.Errorf("Report = %+v, want 3 total, 3 created, 0 failures", report)
	}
	for i, req := range creator.requests {
		if req.College != fmt.Sprintf("clg%d", i) {
			t.Errorf("Request %d college = %q, want clg%d", i, req.College, i)
		}
		if req.ExamDate != "2024-03-15T00:00:00.000Z" {
			t.Errorf("Request %d exam date = %q, want normalized date", i, req.ExamDate)
		}
		if req.Status != dispatch.StatusPending {
			t.Errorf("Request %d status = %q, want Pending", i, req.Status)
		}
		if req.Remark != dispatch.DefaultRemark {
			t.Errorf("Request %d remark = %q, want %q", i, req.Remark, dispatch.DefaultRemark)
		}
	}
}

func TestRun_RowFailuresAreIsolated(t *testing.T) {
	// 12 rows; row 5 references an unknown college.
	rows := makeRows(12)
	lookup := makeLookup(12)
	delete(lookup.ids, rows[4].CollNo)
	creator := &fakeCreator{}
	p, pauses := newTestPipeline(t, lookup, creator)

	report, err := p.Run(context.Background(), rows)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if report.Created != 11 {
		t.Errorf("Created = %d, want 11", report.Created)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("Failures = %d, want 1", len(report.Failures))
	}
	if report.Failures[0].Row.Line != rows[4].Line {
		t.Errorf("Failed line = %d, want %d", report.Failures[0].Row.Line, rows[4].Line)
	}
	if !errors.Is(report.Failures[0].Err, resolver.ErrCollegeNotFound) {
		t.Errorf("Failure error = %v, want ErrCollegeNotFound", report.Failures[0].Err)
	}
	// Failed rows still count toward pacing: one pause after the 10th row.
	if *pauses != 1 {
		t.Errorf("Pauses = %d, want 1", *pauses)
	}
}

func TestRun_CreateFailureDoesNotStopRun(t *testing.T) {
	creator := &fakeCreator{failOn: 2}
	p, _ := newTestPipeline(t, makeLookup(4), creator)

	report, err := p.Run(context.Background(), makeRows(4))
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if report.Created != 3 || len(report.Failures) != 1 {
		t.Errorf("Report = %+v, want 3 created, 1 failure", report)
	}
	// Rows after the failed one must still reach the backend.
	if creator.attempts != 4 || len(creator.requests) != 3 {
		t.Errorf("Creator attempts/successes = %d/%d, want 4/3", creator.attempts, len(creator.requests))
	}
}

func TestRun_UnparseableDateFailsRowOnly(t *testing.T) {
	rows := makeRows(2)
	rows[1].Exam = "next tuesday"
	lookup := makeLookup(2)
	creator := &fakeCreator{}
	p, _ := newTestPipeline(t, lookup, creator)

	report, err := p.Run(context.Background(), rows)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if report.Created != 1 || len(report.Failures) != 1 {
		t.Errorf("Report = %+v, want 1 created, 1 failure", report)
	}
	// The college resolves before the date is parsed, so both rows are
	// looked up but only the good row reaches the backend.
	if lookup.lookups != 2 {
		t.Errorf("College lookups = %d, want 2", lookup.lookups)
	}
	if creator.attempts != 1 {
		t.Errorf("Create attempts = %d, want 1", creator.attempts)
	}
}

func TestRun_UnknownCollegeReportedOverBadDate(t *testing.T) {
	// Both fields broken: the lookup failure is the reported reason and no
	// further work happens for the row.
	rows := makeRows(1)
	rows[0].CollNo = "MU999"
	rows[0].Exam = "next tuesday"
	creator := &fakeCreator{}
	p, _ := newTestPipeline(t, makeLookup(1), creator)

	report, err := p.Run(context.Background(), rows)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if len(report.Failures) != 1 {
		t.Fatalf("Failures = %d, want 1", len(report.Failures))
	}
	if !errors.Is(report.Failures[0].Err, resolver.ErrCollegeNotFound) {
		t.Errorf("Failure error = %v, want ErrCollegeNotFound", report.Failures[0].Err)
	}
	if creator.attempts != 0 {
		t.Errorf("Create attempts = %d, want 0", creator.attempts)
	}
}

func TestRun_ContextCancelStopsEarly(t *testing.T) {
	creator := &fakeCreator{}
	p, err := NewPipeline(makeLookup(15), creator, DefaultConfig())
	if err != nil {
		t.Fatalf("NewPipeline() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.Pacer().SetSleepFunc(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	})

	report, err := p.Run(ctx, makeRows(15))
	if err == nil {
		t.Fatal("Expected error after cancellation, got nil")
	}
	// The pause after row 10 cancelled the run.
	if report.Created != 10 {
		t.Errorf("Created = %d, want 10 (rows before the cancelled pause)", report.Created)
	}
	if len(creator.requests) != 10 {
		t.Errorf("Create requests = %d, want 10", len(creator.requests))
	}
}
