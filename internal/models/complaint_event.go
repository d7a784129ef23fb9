package models

import "time"

// ComplaintEventType enumerates notification events.
type ComplaintEventType string

const (
	ComplaintEventSubmitted     ComplaintEventType = "complaint.submitted"
	ComplaintEventStatusChanged ComplaintEventType = "complaint.status_changed"
	ComplaintEventPriority      ComplaintEventType = "complaint.priority_changed"
)

// ComplaintEvent is published after a complaint is created or changes state.
type ComplaintEvent struct {
	Type            ComplaintEventType `json:"type"`
	ComplaintID     string             `json:"complaintId"`
	ComplaintNumber string             `json:"complaintNumber"`
	Title           string             `json:"title"`
	CitizenID       string             `json:"citizenId"`
	FromStatus      ComplaintStatus    `json:"fromStatus,omitempty"`
	ToStatus        ComplaintStatus    `json:"toStatus"`
	Priority        ComplaintPriority  `json:"priority"`
	ActorID         string             `json:"actorId"`
	ActorRole       UserRole           `json:"actorRole"`
	Note            string             `json:"note,omitempty"`
	OccurredAt      time.Time          `json:"occurredAt"`
}
