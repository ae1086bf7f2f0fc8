// Package dispatch defines the core record types of the exam dispatch
// workflow as stored in the PocketBase backend.
package dispatch

// Status is the lifecycle status of a dispatch record.
// The backend stores the two values with exactly this casing.
type Status string

const (
	// StatusPending marks a dispatch that has not been picked up yet.
	StatusPending Status = "Pending"

	// StatusComplete marks a dispatch that has been picked up.
	StatusComplete Status = "complete"
)

// DefaultRemark is the remark every imported dispatch starts with.
const DefaultRemark = "No Remarks"

// Record is one exam-date delivery to one college.
// Records are created by the import pipeline (or externally) and are only
// ever mutated through the pickup status update; they are never deleted.
type Record struct {
	// ID is the backend-assigned record id.
	ID string `json:"id"`

	// College is the id of the related College record (relation field).
	College string `json:"college"`

	// ExamDate is the exam date as stored by the backend,
	// normalized to midnight UTC.
	ExamDate string `json:"exam_date"`

	// Status is either StatusPending or StatusComplete.
	Status Status `json:"status"`

	// Remark is free text. Imports always set "No Remarks".
	Remark string `json:"remark"`

	// Name is the handler who picked the dispatch up, set on completion.
	Name string `json:"name,omitempty"`

	// Created is the backend creation timestamp.
	Created string `json:"created,omitempty"`
}

// College is the read-only reference entity a dispatch is delivered to.
type College struct {
	// ID is the backend-assigned record id (relation target).
	ID string `json:"id"`

	// Code is the human-facing college code, stored under the backend
	// field name college_id. Uniqueness is not enforced by the backend.
	Code string `json:"college_id"`

	// Name is the display name.
	Name string `json:"college_name"`

	// RouteCode groups colleges for logistics. Zero means unassigned.
	RouteCode int `json:"route_code"`

	// RouteName is the display name of the route.
	RouteName string `json:"route_name"`
}
