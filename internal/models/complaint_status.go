package models

// ComplaintStatus is the closed set of lifecycle states.
type ComplaintStatus string

const (
	StatusSubmitted  ComplaintStatus = "SUBMITTED"
	StatusAssigned   ComplaintStatus = "ASSIGNED"
	StatusInProgress ComplaintStatus = "IN_PROGRESS"
	StatusEscalated  ComplaintStatus = "ESCALATED"
	StatusResolved   ComplaintStatus = "RESOLVED"
	StatusClosed     ComplaintStatus = "CLOSED"
	StatusRejected   ComplaintStatus = "REJECTED"
)

// ComplaintStatuses lists every state in lifecycle order.
var ComplaintStatuses = []ComplaintStatus{
	StatusSubmitted,
	StatusAssigned,
	StatusInProgress,
	StatusEscalated,
	StatusResolved,
	StatusClosed,
	StatusRejected,
}

// statusTransitions is the single source of truth for legal edges.
var statusTransitions = map[ComplaintStatus][]ComplaintStatus{
	StatusSubmitted:  {StatusAssigned, StatusRejected},
	StatusAssigned:   {StatusInProgress, StatusEscalated},
	StatusInProgress: {StatusResolved, StatusEscalated},
	StatusEscalated:  {StatusInProgress},
	StatusResolved:   {StatusClosed},
	StatusClosed:     {},
	StatusRejected:   {},
}

// Valid reports whether the status is a member of the lifecycle.
func (s ComplaintStatus) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// IsTerminal reports whether no outgoing edge exists.
func (s ComplaintStatus) IsTerminal() bool {
	next, ok := statusTransitions[s]
	return ok && len(next) == 0
}

// IsActive reports whether the complaint still awaits resolution.
func (s ComplaintStatus) IsActive() bool {
	switch s {
	case StatusResolved, StatusClosed, StatusRejected:
		return false
	}
	return s.Valid()
}

// CanTransitionTo reports whether (s, target) is a legal edge.
func (s ComplaintStatus) CanTransitionTo(target ComplaintStatus) bool {
	for _, next := range statusTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// AllowedTransitions returns a copy of the outgoing edges of s.
func (s ComplaintStatus) AllowedTransitions() []ComplaintStatus {
	next := statusTransitions[s]
	out := make([]ComplaintStatus, len(next))
	copy(out, next)
	return out
}
