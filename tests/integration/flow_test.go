package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mucollegedb/dispatch-admin/internal/testutil"
	"github.com/mucollegedb/dispatch-admin/pkg/dispatch"
	"github.com/mucollegedb/dispatch-admin/pkg/fetcher"
	"github.com/mucollegedb/dispatch-admin/pkg/importer"
	"github.com/mucollegedb/dispatch-admin/pkg/pocketbase"
	"github.com/mucollegedb/dispatch-admin/pkg/report"
	"github.com/mucollegedb/dispatch-admin/pkg/resolver"
	"github.com/mucollegedb/dispatch-admin/pkg/snapshot"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func newBackendClient(t *testing.T, mock *testutil.MockPocketBase) *pocketbase.Client {
	t.Helper()

	client, err := pocketbase.New(pocketbase.Config{
		BaseURL: mock.URL(),
		Token:   "test-token",
		Timeout: 5 * time.Second,
		Retry:   pocketbase.DefaultRetryConfig(),
	})
	if err != nil {
		t.Fatalf("Failed to create backend client: %v", err)
	}
	return client
}

func disablePauses(t *testing.T, pacers ...interface {
	SetSleepFunc(fn func(ctx context.Context, d time.Duration) error)
}) {
	t.Helper()
	for _, p := range pacers {
		p.SetSleepFunc(func(ctx context.Context, d time.Duration) error { return nil })
	}
}

// TestFullDispatchFlow exercises fetch, snapshot, resolution, and grouping
// end to end against a mock backend and a real Redis.
func TestFullDispatchFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockPocketBase()
	defer mock.Close()

	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	dateKey := dispatch.DateKey(date)

	mock.SeedColleges(
		dispatch.College{ID: "clg1", Code: "MU101", Name: "Arts College", RouteCode: 1},
		dispatch.College{ID: "clg2", Code: "MU102", Name: "Science College", RouteCode: 2},
	)
	// 45 records across both colleges: two backend pages at 30 per page.
	for i := 0; i < 45; i++ {
		college := "clg1"
		if i%2 == 1 {
			college = "clg2"
		}
		mock.SeedDispatches(dispatch.Record{
			ID:       fmt.Sprintf("d%03d", i),
			College:  college,
			ExamDate: dateKey,
			Status:   dispatch.StatusPending,
			Remark:   dispatch.DefaultRemark,
		})
	}

	client := newBackendClient(t, mock)
	snapshots := snapshot.NewStore(redisClient, time.Hour)

	fetch, err := fetcher.New(client, snapshots, fetcher.DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create fetcher: %v", err)
	}
	resolve, err := resolver.New(client, resolver.DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create resolver: %v", err)
	}
	disablePauses(t, fetch.Pacer(), resolve.Pacer())

	ctx := context.Background()
	records, err := fetch.FetchAll(ctx, date)
	if err != nil {
		t.Fatalf("FetchAll() failed: %v", err)
	}
	if len(records) != 45 {
		t.Errorf("Records = %d, want 45", len(records))
	}

	// The snapshot landed in Redis under the date-scoped key.
	stored, err := snapshots.Get(ctx, dateKey)
	if err != nil {
		t.Fatalf("Snapshot Get() failed: %v", err)
	}
	if len(stored) != 45 {
		t.Errorf("Snapshot records = %d, want 45", len(stored))
	}
	if exists := redisClient.Exists(ctx, "dispatchData-"+dateKey).Val(); exists != 1 {
		t.Error("Expected snapshot under the dispatchData-<date> key")
	}

	colleges, err := resolve.ResolveRecords(ctx, records)
	if err != nil {
		t.Fatalf("ResolveRecords() failed: %v", err)
	}
	if len(colleges) != 2 {
		t.Errorf("Resolved colleges = %d, want 2", len(colleges))
	}

	groups := report.Build(records, colleges, report.Filters{Status: "Pending"})
	if len(groups) != 2 {
		t.Errorf("Groups = %d, want 2", len(groups))
	}
	total := 0
	for _, g := range groups {
		total += len(g.Exams)
	}
	if total != 45 {
		t.Errorf("Grouped records = %d, want 45", total)
	}
}

// TestImportThenPickupFlow imports a schedule and completes a pickup against
// the mock backend.
func TestImportThenPickupFlow(t *testing.T) {
	mock := testutil.NewMockPocketBase()
	defer mock.Close()

	mock.SeedColleges(
		dispatch.College{ID: "clg1", Code: "MU101", Name: "Arts College", RouteCode: 1},
		dispatch.College{ID: "clg2", Code: "MU102", Name: "Science College", RouteCode: 2},
	)

	client := newBackendClient(t, mock)
	resolve, err := resolver.New(client, resolver.DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create resolver: %v", err)
	}
	pipeline, err := importer.NewPipeline(resolve, client, importer.DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}
	disablePauses(t, resolve.Pacer(), pipeline.Pacer())

	ctx := context.Background()
	rows := []importer.Row{
		{CollNo: "MU101", CollName: "Arts College", Exam: "3/15/2024", Line: 2},
		{CollNo: "MU102", CollName: "Science College", Exam: "3/15/2024", Line: 3},
		{CollNo: "MU999", CollName: "Ghost College", Exam: "3/15/2024", Line: 4},
	}

	runReport, err := pipeline.Run(ctx, rows)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if runReport.Created != 2 || len(runReport.Failures) != 1 {
		t.Fatalf("Report = %+v, want 2 created, 1 failure", runReport)
	}
	if mock.CreateCount != 2 {
		t.Errorf("Backend creates = %d, want 2", mock.CreateCount)
	}

	created := mock.Dispatches()
	for _, record := range created {
		if record.Status != dispatch.StatusPending {
			t.Errorf("Record %s status = %q, want Pending", record.ID, record.Status)
		}
		if record.Remark != dispatch.DefaultRemark {
			t.Errorf("Record %s remark = %q, want %q", record.ID, record.Remark, dispatch.DefaultRemark)
		}
	}

	// Pick one up.
	updated, err := client.UpdateDispatchStatus(ctx, created[0].ID, "Prof. Desai")
	if err != nil {
		t.Fatalf("UpdateDispatchStatus() failed: %v", err)
	}
	if updated.Status != dispatch.StatusComplete || updated.Name != "Prof. Desai" {
		t.Errorf("Updated record = %+v, want complete with handler name", updated)
	}
}
