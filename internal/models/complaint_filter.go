package models

import (
	"errors"
	"fmt"
)

// BoundingBox is an inclusive latitude/longitude rectangle. Boxes crossing the antimeridian are not supported.
type BoundingBox struct {
	LatMin float64 `json:"latMin"`
	LatMax float64 `json:"latMax"`
	LonMin float64 `json:"lonMin"`
	LonMax float64 `json:"lonMax"`
}

// Validate checks ordering and coordinate ranges.
func (b BoundingBox) Validate() error {
	if b.LatMin > b.LatMax {
		return errors.New("bounding box latMin must not exceed latMax")
	}
	if b.LonMin > b.LonMax {
		return errors.New("bounding box lonMin must not exceed lonMax")
	}
	if !ValidLatitude(b.LatMin) || !ValidLatitude(b.LatMax) {
		return fmt.Errorf("bounding box latitude must be within [-90, 90]")
	}
	if !ValidLongitude(b.LonMin) || !ValidLongitude(b.LonMax) {
		return fmt.Errorf("bounding box longitude must be within [-180, 180]")
	}
	return nil
}

// Contains reports whether the coordinate lies inside the box, edges included.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.LatMin && lat <= b.LatMax && lon >= b.LonMin && lon <= b.LonMax
}

func (b BoundingBox) intersect(o BoundingBox) (BoundingBox, bool) {
	out := BoundingBox{
		LatMin: maxFloat(b.LatMin, o.LatMin),
		LatMax: minFloat(b.LatMax, o.LatMax),
		LonMin: maxFloat(b.LonMin, o.LonMin),
		LonMax: minFloat(b.LonMax, o.LonMax),
	}
	return out, out.LatMin <= out.LatMax && out.LonMin <= out.LonMax
}

// ComplaintFilter is a conjunction of predicates over complaints. The zero value matches everything.
//
// A nil Statuses/Priorities slice leaves that dimension unconstrained; a non-nil empty slice matches nothing.
type ComplaintFilter struct {
	CitizenID  *string
	Statuses   []ComplaintStatus
	Priorities []ComplaintPriority
	Box        *BoundingBox
	Limit      int
	Offset     int

	none bool
}

// ByOwner restricts to complaints filed by citizenID.
func ByOwner(citizenID string) ComplaintFilter {
	return ComplaintFilter{CitizenID: &citizenID}
}

// ByStatusSet restricts to the given statuses.
func ByStatusSet(statuses ...ComplaintStatus) ComplaintFilter {
	set := make([]ComplaintStatus, 0, len(statuses))
	for _, status := range statuses {
		if !containsStatus(set, status) {
			set = append(set, status)
		}
	}
	return ComplaintFilter{Statuses: set}
}

// ActiveOnly excludes RESOLVED, CLOSED and REJECTED complaints.
func ActiveOnly() ComplaintFilter {
	return ByStatusSet(StatusSubmitted, StatusAssigned, StatusInProgress, StatusEscalated)
}

// ResolvedOnly keeps RESOLVED and CLOSED complaints.
func ResolvedOnly() ComplaintFilter {
	return ByStatusSet(StatusResolved, StatusClosed)
}

// ByPriority restricts to the given priorities.
func ByPriority(priorities ...ComplaintPriority) ComplaintFilter {
	set := make([]ComplaintPriority, 0, len(priorities))
	for _, priority := range priorities {
		if !containsPriority(set, priority) {
			set = append(set, priority)
		}
	}
	return ComplaintFilter{Priorities: set}
}

// ByBoundingBox restricts to complaints located inside the rectangle.
func ByBoundingBox(latMin, latMax, lonMin, lonMax float64) ComplaintFilter {
	return ComplaintFilter{Box: &BoundingBox{LatMin: latMin, LatMax: latMax, LonMin: lonMin, LonMax: lonMax}}
}

// NewComplaintFilter combines predicates with logical AND.
func NewComplaintFilter(filters ...ComplaintFilter) ComplaintFilter {
	var out ComplaintFilter
	for _, f := range filters {
		out = out.And(f)
	}
	return out
}

// And returns the conjunction of f and other. Paging of other wins when set.
func (f ComplaintFilter) And(other ComplaintFilter) ComplaintFilter {
	out := ComplaintFilter{
		none:   f.none || other.none,
		Limit:  f.Limit,
		Offset: f.Offset,
	}
	if other.Limit != 0 {
		out.Limit = other.Limit
	}
	if other.Offset != 0 {
		out.Offset = other.Offset
	}

	switch {
	case f.CitizenID != nil && other.CitizenID != nil:
		owner := *f.CitizenID
		out.CitizenID = &owner
		if *f.CitizenID != *other.CitizenID {
			out.none = true
		}
	case f.CitizenID != nil:
		owner := *f.CitizenID
		out.CitizenID = &owner
	case other.CitizenID != nil:
		owner := *other.CitizenID
		out.CitizenID = &owner
	}

	out.Statuses = intersectStatuses(f.Statuses, other.Statuses)
	out.Priorities = intersectPriorities(f.Priorities, other.Priorities)

	switch {
	case f.Box != nil && other.Box != nil:
		box, ok := f.Box.intersect(*other.Box)
		out.Box = &box
		if !ok {
			out.none = true
		}
	case f.Box != nil:
		box := *f.Box
		out.Box = &box
	case other.Box != nil:
		box := *other.Box
		out.Box = &box
	}

	return out
}

// WithPage sets paging bounds.
func (f ComplaintFilter) WithPage(limit, offset int) ComplaintFilter {
	f.Limit = limit
	f.Offset = offset
	return f
}

// MatchesNothing reports whether the predicates are contradictory.
func (f ComplaintFilter) MatchesNothing() bool {
	if f.none {
		return true
	}
	if f.Statuses != nil && len(f.Statuses) == 0 {
		return true
	}
	return f.Priorities != nil && len(f.Priorities) == 0
}

// Validate checks the bounding box, if any.
func (f ComplaintFilter) Validate() error {
	if f.Box != nil && !f.none {
		return f.Box.Validate()
	}
	return nil
}

// Matches evaluates the filter against a single complaint.
func (f ComplaintFilter) Matches(c *Complaint) bool {
	if c == nil || f.MatchesNothing() {
		return false
	}
	if f.CitizenID != nil && c.CitizenID != *f.CitizenID {
		return false
	}
	if f.Statuses != nil && !containsStatus(f.Statuses, c.Status) {
		return false
	}
	if f.Priorities != nil && !containsPriority(f.Priorities, c.Priority) {
		return false
	}
	if f.Box != nil && !f.Box.Contains(c.Latitude, c.Longitude) {
		return false
	}
	return true
}

func intersectStatuses(a, b []ComplaintStatus) []ComplaintStatus {
	if a == nil || b == nil {
		src := a
		if src == nil {
			src = b
		}
		if src == nil {
			return nil
		}
		return append(make([]ComplaintStatus, 0, len(src)), src...)
	}
	out := make([]ComplaintStatus, 0, len(a))
	for _, status := range a {
		if containsStatus(b, status) {
			out = append(out, status)
		}
	}
	return out
}

func intersectPriorities(a, b []ComplaintPriority) []ComplaintPriority {
	if a == nil || b == nil {
		src := a
		if src == nil {
			src = b
		}
		if src == nil {
			return nil
		}
		return append(make([]ComplaintPriority, 0, len(src)), src...)
	}
	out := make([]ComplaintPriority, 0, len(a))
	for _, priority := range a {
		if containsPriority(b, priority) {
			out = append(out, priority)
		}
	}
	return out
}

func containsStatus(set []ComplaintStatus, status ComplaintStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

func containsPriority(set []ComplaintPriority, priority ComplaintPriority) bool {
	for _, p := range set {
		if p == priority {
			return true
		}
	}
	return false
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
