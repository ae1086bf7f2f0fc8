package pocketbase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mucollegedb/dispatch-admin/pkg/dispatch"
)

// Collection endpoints.
const (
	dispatchRecordsPath = "/api/collections/dispatch/records"
	collegeRecordsPath  = "/api/collections/colleges/records"
)

// DefaultPerPage is the page size the backend is queried with.
const DefaultPerPage = 30

// ExamDateFilter builds the backend filter expression matching dispatch
// records whose exam_date contains the given normalized date string.
// The operator and quoting must match the backend's query language exactly.
func ExamDateFilter(dateKey string) string {
	return "exam_date=%" + dateKey + "%"
}

// CollegeCodeFilter builds the backend filter expression matching colleges
// by their natural code.
func CollegeCodeFilter(code string) string {
	return `(college_id="` + code + `")`
}

// DispatchPage is one page of a dispatch list query.
type DispatchPage struct {
	Page       int               `json:"page"`
	PerPage    int               `json:"perPage"`
	TotalItems int               `json:"totalItems"`
	TotalPages int               `json:"totalPages"`
	Items      []dispatch.Record `json:"items"`
}

// collegeList is the backend's list envelope for colleges.
type collegeList struct {
	Items []dispatch.College `json:"items"`
}

// CreateDispatchRequest is the payload for creating a dispatch record.
type CreateDispatchRequest struct {
	College  string          `json:"college"`
	ExamDate string          `json:"exam_date"`
	Status   dispatch.Status `json:"status"`
	Remark   string          `json:"remark"`
}

// updateStatusRequest is the payload for the pickup status update.
type updateStatusRequest struct {
	Status dispatch.Status `json:"status"`
	Name   string          `json:"name"`
}

// ListDispatch fetches one page of dispatch records matching filter.
func (c *Client) ListDispatch(ctx context.Context, filter string, page, perPage int) (*DispatchPage, error) {
	query := url.Values{}
	query.Set("filter", filter)
	query.Set("page", strconv.Itoa(page))
	query.Set("perPage", strconv.Itoa(perPage))

	var result DispatchPage
	if err := c.do(ctx, http.MethodGet, dispatchRecordsPath, query, nil, &result); err != nil {
		return nil, fmt.Errorf("list dispatch records: %w", err)
	}
	return &result, nil
}

// GetCollege fetches a single college by its record id.
func (c *Client) GetCollege(ctx context.Context, id string) (*dispatch.College, error) {
	var result dispatch.College
	if err := c.do(ctx, http.MethodGet, collegeRecordsPath+"/"+id, nil, nil, &result); err != nil {
		return nil, fmt.Errorf("get college %s: %w", id, err)
	}
	return &result, nil
}

// ListColleges fetches colleges matching filter, in backend-returned order.
func (c *Client) ListColleges(ctx context.Context, filter string) ([]dispatch.College, error) {
	query := url.Values{}
	query.Set("filter", filter)

	var result collegeList
	if err := c.do(ctx, http.MethodGet, collegeRecordsPath, query, nil, &result); err != nil {
		return nil, fmt.Errorf("list colleges: %w", err)
	}
	return result.Items, nil
}

// CreateDispatch creates a new dispatch record. Not retried on failure.
func (c *Client) CreateDispatch(ctx context.Context, req CreateDispatchRequest) (*dispatch.Record, error) {
	var result dispatch.Record
	if err := c.do(ctx, http.MethodPost, dispatchRecordsPath, nil, req, &result); err != nil {
		return nil, fmt.Errorf("create dispatch record: %w", err)
	}
	return &result, nil
}

// UpdateDispatchStatus marks a dispatch record complete and attaches the
// name of the person who picked it up.
func (c *Client) UpdateDispatchStatus(ctx context.Context, id, handlerName string) (*dispatch.Record, error) {
	body := updateStatusRequest{
		Status: dispatch.StatusComplete,
		Name:   handlerName,
	}

	var result dispatch.Record
	if err := c.do(ctx, http.MethodPatch, dispatchRecordsPath+"/"+id, nil, body, &result); err != nil {
		return nil, fmt.Errorf("update dispatch %s: %w", id, err)
	}
	return &result, nil
}
