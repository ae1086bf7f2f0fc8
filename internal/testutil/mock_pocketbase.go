// Package testutil provides testing utilities for the dispatch admin service.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/mucollegedb/dispatch-admin/pkg/dispatch"
)

const (
	dispatchPath = "/api/collections/dispatch/records"
	collegesPath = "/api/collections/colleges/records"
)

// MockPocketBase is a configurable in-memory stand-in for the hosted backend.
// It serves the dispatch and colleges collections from seeded data and honors
// the same filter, page, and perPage query parameters the real backend does.
type MockPocketBase struct {
	server *httptest.Server

	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	dispatches []dispatch.Record
	colleges   []dispatch.College
	nextID     int

	// Tracking
	RequestCount int
	ListCount    int
	CreateCount  int
	UpdateCount  int
	LastAuth     string
}

// NewMockPocketBase creates a mock backend with no seeded data.
func NewMockPocketBase() *MockPocketBase {
	mock := &MockPocketBase{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
		nextID:   1,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastAuth = r.Header.Get("Authorization")
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockPocketBase) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockPocketBase) Close() {
	m.server.Close()
}

// SetHandler sets a custom handler for a specific path, overriding the
// seeded-data behavior.
func (m *MockPocketBase) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SeedColleges adds colleges to the backing data.
func (m *MockPocketBase) SeedColleges(colleges ...dispatch.College) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.colleges = append(m.colleges, colleges...)
}

// SeedDispatches adds dispatch records to the backing data.
func (m *MockPocketBase) SeedDispatches(records ...dispatch.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatches = append(m.dispatches, records...)
}

// Dispatches returns a copy of the current dispatch records.
func (m *MockPocketBase) Dispatches() []dispatch.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]dispatch.Record(nil), m.dispatches...)
}

func (m *MockPocketBase) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.URL.Path == dispatchPath && r.Method == http.MethodGet:
		m.listDispatches(w, r)
	case r.URL.Path == dispatchPath && r.Method == http.MethodPost:
		m.createDispatch(w, r)
	case strings.HasPrefix(r.URL.Path, dispatchPath+"/") && r.Method == http.MethodPatch:
		m.updateDispatch(w, r)
	case r.URL.Path == collegesPath && r.Method == http.MethodGet:
		m.listColleges(w, r)
	case strings.HasPrefix(r.URL.Path, collegesPath+"/") && r.Method == http.MethodGet:
		m.getCollege(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"code":404,"message":"The requested resource wasn't found."}`)
	}
}

// listDispatches serves the paginated dispatch list, matching the backend's
// contains-style exam_date filter.
func (m *MockPocketBase) listDispatches(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.ListCount++
	m.mu.Unlock()

	filter := r.URL.Query().Get("filter")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("perPage"))
	if perPage < 1 {
		perPage = 30
	}

	var dateKey string
	if strings.HasPrefix(filter, "exam_date=%") && strings.HasSuffix(filter, "%") {
		dateKey = strings.TrimSuffix(strings.TrimPrefix(filter, "exam_date=%"), "%")
	}

	m.mu.RLock()
	var matched []dispatch.Record
	for _, record := range m.dispatches {
		if dateKey == "" || strings.Contains(record.ExamDate, dateKey) {
			matched = append(matched, record)
		}
	}
	m.mu.RUnlock()

	totalPages := (len(matched) + perPage - 1) / perPage
	if totalPages == 0 {
		totalPages = 1
	}

	start := (page - 1) * perPage
	end := start + perPage
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}

	items := matched[start:end]
	if items == nil {
		items = []dispatch.Record{}
	}

	json.NewEncoder(w).Encode(map[string]any{
		"page":       page,
		"perPage":    perPage,
		"totalItems": len(matched),
		"totalPages": totalPages,
		"items":      items,
	})
}

func (m *MockPocketBase) createDispatch(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		College  string `json:"college"`
		ExamDate string `json:"exam_date"`
		Status   string `json:"status"`
		Remark   string `json:"remark"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":400,"message":"Failed to load the submitted data."}`)
		return
	}

	m.mu.Lock()
	record := dispatch.Record{
		ID:       fmt.Sprintf("mock%d", m.nextID),
		College:  payload.College,
		ExamDate: payload.ExamDate,
		Status:   dispatch.Status(payload.Status),
		Remark:   payload.Remark,
	}
	m.nextID++
	m.dispatches = append(m.dispatches, record)
	m.CreateCount++
	m.mu.Unlock()

	json.NewEncoder(w).Encode(record)
}

func (m *MockPocketBase) updateDispatch(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, dispatchPath+"/")

	var payload struct {
		Status string `json:"status"`
		Name   string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":400,"message":"Failed to load the submitted data."}`)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.dispatches {
		if m.dispatches[i].ID == id {
			m.dispatches[i].Status = dispatch.Status(payload.Status)
			m.dispatches[i].Name = payload.Name
			m.UpdateCount++
			json.NewEncoder(w).Encode(m.dispatches[i])
			return
		}
	}

	w.WriteHeader(http.StatusNotFound)
	fmt.Fprint(w, `{"code":404,"message":"The requested resource wasn't found."}`)
}

// listColleges serves the natural-key college lookup.
func (m *MockPocketBase) listColleges(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("filter")

	var code string
	if strings.HasPrefix(filter, `(college_id="`) && strings.HasSuffix(filter, `")`) {
		code = strings.TrimSuffix(strings.TrimPrefix(filter, `(college_id="`), `")`)
	}

	m.mu.RLock()
	items := []dispatch.College{}
	for _, college := range m.colleges {
		if code == "" || college.Code == code {
			items = append(items, college)
		}
	}
	m.mu.RUnlock()

	json.NewEncoder(w).Encode(map[string]any{"items": items})
}

func (m *MockPocketBase) getCollege(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, collegesPath+"/")

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, college := range m.colleges {
		if college.ID == id {
			json.NewEncoder(w).Encode(college)
			return
		}
	}

	w.WriteHeader(http.StatusNotFound)
	fmt.Fprint(w, `{"code":404,"message":"The requested resource wasn't found."}`)
}
