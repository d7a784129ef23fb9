package dto

import (
	"strings"

	"github.com/noah-isme/sns-grievance-api/internal/models"
)

// CreateComplaintRequest is the citizen intake payload. When UseResolvedLocation is set the
// coordinate and address come from the caller's confirmed location session instead of the body.
type CreateComplaintRequest struct {
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	CategoryName        string   `json:"categoryName"`
	Priority            string   `json:"priority"`
	Latitude            *float64 `json:"latitude"`
	Longitude           *float64 `json:"longitude"`
	Address             string   `json:"address"`
	UseResolvedLocation bool     `json:"useResolvedLocation"`
	EvidenceRef         *string  `json:"evidenceRef"`
}

// ToDraft converts the payload, leaving location fields zero when absent.
func (r CreateComplaintRequest) ToDraft() models.ComplaintDraft {
	draft := models.ComplaintDraft{
		Title:        strings.TrimSpace(r.Title),
		Description:  strings.TrimSpace(r.Description),
		CategoryName: models.ComplaintCategory(strings.TrimSpace(r.CategoryName)),
		Priority:     models.ComplaintPriority(strings.ToUpper(strings.TrimSpace(r.Priority))),
		Address:      strings.TrimSpace(r.Address),
		EvidenceRef:  r.EvidenceRef,
	}
	if r.Latitude != nil {
		draft.Latitude = *r.Latitude
	}
	if r.Longitude != nil {
		draft.Longitude = *r.Longitude
	}
	return draft
}

// HasCoordinates reports whether both coordinate fields were supplied.
func (r CreateComplaintRequest) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// TransitionComplaintRequest asks for a status change.
type TransitionComplaintRequest struct {
	Status          string  `json:"status"`
	Note            string  `json:"note"`
	AssigneeID      *string `json:"assigneeId"`
	ProofRef        *string `json:"proofRef"`
	ExpectedVersion *int64  `json:"expectedVersion"`
}

// ConfirmClosureRequest is sent by the citizen to close a resolved complaint.
type ConfirmClosureRequest struct {
	Note            string `json:"note"`
	ExpectedVersion *int64 `json:"expectedVersion"`
}

// UpdatePriorityRequest changes triage priority.
type UpdatePriorityRequest struct {
	Priority        string `json:"priority"`
	ExpectedVersion *int64 `json:"expectedVersion"`
}

// ComplaintQuery mirrors supported listing filters.
type ComplaintQuery struct {
	Scope     string `form:"scope"`
	Status    string `form:"status"`
	Priority  string `form:"priority"`
	BBox      string `form:"bbox"`
	CitizenID string `form:"citizenId"`
	Limit     int    `form:"limit"`
	Offset    int    `form:"offset"`
}

// ExportQuery selects the export format alongside the listing filters.
type ExportQuery struct {
	ComplaintQuery
	Format string `form:"format"`
}
