// Package report turns a fetched dispatch sequence and its resolved
// colleges into the grouped per-college view. Everything here is pure and
// deterministic: no network, no clock, no state.
package report

import (
	"fmt"
	"hash/fnv"
	"strconv"

	"github.com/mucollegedb/dispatch-admin/pkg/dispatch"
)

// FilterAll is the wildcard value for any filter selection.
const FilterAll = "All"

// Filters are the three independent, AND-combined predicate selections.
// Each is FilterAll or an exact value; route and college codes match fields
// looked up through the college join, never fields on the record itself.
type Filters struct {
	// RouteCode is FilterAll or the decimal route code.
	RouteCode string

	// CollegeCode is FilterAll or an exact college code.
	CollegeCode string

	// Status is FilterAll, "Pending", or "complete".
	Status string
}

// Group is one college together with its matching exam dispatches,
// in original record order.
type Group struct {
	College dispatch.College  `json:"college"`
	Exams   []dispatch.Record `json:"exams"`
}

// Build applies the filters and groups the surviving records by college.
// A record whose college reference is not in the mapping is dropped.
// Colleges appear in first-seen order of their records.
func Build(records []dispatch.Record, colleges map[string]dispatch.College, f Filters) []Group {
	routeCode, routeFilterValid := 0, true
	if f.RouteCode != "" && f.RouteCode != FilterAll {
		var err error
		routeCode, err = strconv.Atoi(f.RouteCode)
		routeFilterValid = err == nil
	}

	var groups []Group
	index := make(map[string]int)

	for _, record := range records {
		college, ok := colleges[record.College]
		if !ok {
			continue
		}

		if f.RouteCode != "" && f.RouteCode != FilterAll {
			if !routeFilterValid || college.RouteCode != routeCode {
				continue
			}
		}
		if f.CollegeCode != "" && f.CollegeCode != FilterAll && college.Code != f.CollegeCode {
			continue
		}
		if f.Status != "" && f.Status != FilterAll && string(record.Status) != f.Status {
			continue
		}

		i, ok := index[college.ID]
		if !ok {
			i = len(groups)
			index[college.ID] = i
			groups = append(groups, Group{College: college})
		}
		groups[i].Exams = append(groups[i].Exams, record)
	}

	return groups
}

// RouteCodeOptions derives the route code choices offered for the currently
// loaded data: FilterAll plus every distinct route code reachable through
// the join, in first-seen order. Unassigned routes (code zero) are skipped.
func RouteCodeOptions(records []dispatch.Record, colleges map[string]dispatch.College) []string {
	options := []string{FilterAll}
	seen := make(map[int]struct{})

	for _, record := range records {
		college, ok := colleges[record.College]
		if !ok || college.RouteCode == 0 {
			continue
		}
		if _, ok := seen[college.RouteCode]; ok {
			continue
		}
		seen[college.RouteCode] = struct{}{}
		options = append(options, strconv.Itoa(college.RouteCode))
	}

	return options
}

// DateColors assigns a display color to every distinct exam date in the
// sequence. Colors are derived from the date string so the same date keeps
// the same color across reloads; they carry no meaning beyond telling dates
// apart visually.
func DateColors(records []dispatch.Record) map[string]string {
	colors := make(map[string]string)
	for _, record := range records {
		if record.ExamDate == "" {
			continue
		}
		if _, ok := colors[record.ExamDate]; ok {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(record.ExamDate))
		// Mask into a mid-brightness range so text stays readable.
		rgb := h.Sum32() & 0x7f7f7f
		colors[record.ExamDate] = fmt.Sprintf("#%06x", rgb|0x404040)
	}
	return colors
}

// CollegeCodeOptions derives the college code choices for the currently
// loaded data, FilterAll first, in first-seen order.
func CollegeCodeOptions(records []dispatch.Record, colleges map[string]dispatch.College) []string {
	options := []string{FilterAll}
	seen := make(map[string]struct{})

	for _, record := range records {
		college, ok := colleges[record.College]
		if !ok || college.Code == "" {
			continue
		}
		if _, ok := seen[college.Code]; ok {
			continue
		}
		seen[college.Code] = struct{}{}
		options = append(options, college.Code)
	}

	return options
}
