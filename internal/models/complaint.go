package models

import "time"

// ComplaintCategory enumerates the grievance categories offered at intake.
type ComplaintCategory string

const (
	CategoryRoadMaintenance   ComplaintCategory = "Road Maintenance"
	CategoryGarbageCollection ComplaintCategory = "Garbage Collection"
	CategoryWaterSupply       ComplaintCategory = "Water Supply"
	CategoryElectricityIssues ComplaintCategory = "Electricity Issues"
	CategoryTrafficViolations ComplaintCategory = "Traffic Violations"
)

// ComplaintCategories lists categories in intake form order.
var ComplaintCategories = []ComplaintCategory{
	CategoryRoadMaintenance,
	CategoryGarbageCollection,
	CategoryWaterSupply,
	CategoryElectricityIssues,
	CategoryTrafficViolations,
}

// Valid reports whether the category is one of the known intake categories.
func (c ComplaintCategory) Valid() bool {
	for _, known := range ComplaintCategories {
		if c == known {
			return true
		}
	}
	return false
}

// ComplaintPriority captures triage urgency.
type ComplaintPriority string

const (
	PriorityLow    ComplaintPriority = "LOW"
	PriorityMedium ComplaintPriority = "MEDIUM"
	PriorityHigh   ComplaintPriority = "HIGH"
	PriorityUrgent ComplaintPriority = "URGENT"
)

// Valid reports whether the priority is known.
func (p ComplaintPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Complaint is a citizen-submitted civic grievance.
type Complaint struct {
	ID                 string            `db:"id" json:"id"`
	ComplaintNumber    string            `db:"complaint_number" json:"complaintNumber"`
	Title              string            `db:"title" json:"title"`
	Description        string            `db:"description" json:"description"`
	CategoryName       ComplaintCategory `db:"category_name" json:"categoryName"`
	Latitude           float64           `db:"latitude" json:"latitude"`
	Longitude          float64           `db:"longitude" json:"longitude"`
	Address            string            `db:"address" json:"address"`
	Status             ComplaintStatus   `db:"status" json:"status"`
	Priority           ComplaintPriority `db:"priority" json:"priority"`
	SubmittedAt        time.Time         `db:"submitted_at" json:"submittedAt"`
	SLADeadline        *time.Time        `db:"sla_deadline" json:"slaDeadline,omitempty"`
	CitizenID          string            `db:"citizen_id" json:"citizenId"`
	CitizenName        string            `db:"citizen_name" json:"citizenName"`
	EvidenceRef        *string           `db:"evidence_ref" json:"evidenceRef,omitempty"`
	AssignedTo         *string           `db:"assigned_to" json:"assignedTo,omitempty"`
	AssignedAt         *time.Time        `db:"assigned_at" json:"assignedAt,omitempty"`
	FirstResponseAt    *time.Time        `db:"first_response_at" json:"firstResponseAt,omitempty"`
	EscalatedAt        *time.Time        `db:"escalated_at" json:"escalatedAt,omitempty"`
	ResolvedAt         *time.Time        `db:"resolved_at" json:"resolvedAt,omitempty"`
	ResolutionNotes    *string           `db:"resolution_notes" json:"resolutionNotes,omitempty"`
	ResolutionProofRef *string           `db:"resolution_proof_ref" json:"resolutionProofRef,omitempty"`
	ClosedAt           *time.Time        `db:"closed_at" json:"closedAt,omitempty"`
	ClosedByCitizen    bool              `db:"closed_by_citizen" json:"closedByCitizen"`
	Version            int64             `db:"version" json:"version"`
	UpdatedAt          time.Time         `db:"updated_at" json:"updatedAt"`
}

// Clone returns a deep copy so callers can derive a new state without aliasing pointer fields.
func (c Complaint) Clone() Complaint {
	out := c
	out.SLADeadline = cloneTime(c.SLADeadline)
	out.EvidenceRef = cloneString(c.EvidenceRef)
	out.AssignedTo = cloneString(c.AssignedTo)
	out.AssignedAt = cloneTime(c.AssignedAt)
	out.FirstResponseAt = cloneTime(c.FirstResponseAt)
	out.EscalatedAt = cloneTime(c.EscalatedAt)
	out.ResolvedAt = cloneTime(c.ResolvedAt)
	out.ResolutionNotes = cloneString(c.ResolutionNotes)
	out.ResolutionProofRef = cloneString(c.ResolutionProofRef)
	out.ClosedAt = cloneTime(c.ClosedAt)
	return out
}

// ComplaintHistoryEntry is one immutable row of the status audit trail.
type ComplaintHistoryEntry struct {
	ID          string          `db:"id" json:"id"`
	ComplaintID string          `db:"complaint_id" json:"complaintId"`
	FromStatus  ComplaintStatus `db:"from_status" json:"fromStatus,omitempty"`
	ToStatus    ComplaintStatus `db:"to_status" json:"toStatus"`
	ActorID     string          `db:"actor_id" json:"actorId"`
	ActorRole   UserRole        `db:"actor_role" json:"actorRole"`
	Note        string          `db:"note" json:"note,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
}

// ComplaintDetail bundles a complaint with its ascending history.
type ComplaintDetail struct {
	Complaint Complaint               `json:"complaint"`
	History   []ComplaintHistoryEntry `json:"history"`
}

// ComplaintDraft holds citizen-supplied intake fields prior to numbering.
type ComplaintDraft struct {
	Title        string            `validate:"required,max=200"`
	Description  string            `validate:"required,max=4000"`
	CategoryName ComplaintCategory `validate:"required,complaint_category"`
	Priority     ComplaintPriority `validate:"omitempty,complaint_priority"`
	Latitude     float64           `validate:"gte=-90,lte=90"`
	Longitude    float64           `validate:"gte=-180,lte=180"`
	Address      string            `validate:"required,max=500"`
	EvidenceRef  *string           `validate:"omitempty,max=255"`
}

// TransitionCommand requests a status change on a complaint.
type TransitionCommand struct {
	Target          ComplaintStatus
	Note            string
	AssigneeID      *string
	ProofRef        *string
	ExpectedVersion *int64
	Actor           Actor
}

// ComplaintStatusCount is a per-status aggregate row.
type ComplaintStatusCount struct {
	Status ComplaintStatus `db:"status" json:"status"`
	Total  int             `db:"total" json:"total"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
