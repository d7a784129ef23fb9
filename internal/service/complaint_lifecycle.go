package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/sns-grievance-api/internal/models"
	appErrors "github.com/noah-isme/sns-grievance-api/pkg/errors"
)

// ComplaintLifecycle applies status transitions to complaints without touching storage.
type ComplaintLifecycle struct{}

// NewComplaintLifecycle constructs the lifecycle engine.
func NewComplaintLifecycle() *ComplaintLifecycle {
	return &ComplaintLifecycle{}
}

// Apply validates cmd against current and returns the next complaint state plus the history
// entry recording the move. current is never modified.
func (l *ComplaintLifecycle) Apply(current models.Complaint, cmd models.TransitionCommand, now time.Time) (*models.Complaint, *models.ComplaintHistoryEntry, error) {
	if !cmd.Target.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown complaint status %q", cmd.Target))
	}
	if err := authorizeTransition(current, cmd); err != nil {
		return nil, nil, err
	}
	if cmd.ExpectedVersion != nil && *cmd.ExpectedVersion != current.Version {
		return nil, nil, appErrors.Clone(appErrors.ErrConcurrentModification, "complaint was modified since it was read")
	}
	if !current.Status.CanTransitionTo(cmd.Target) {
		return nil, nil, appErrors.IllegalTransition(string(current.Status), string(cmd.Target))
	}

	now = now.UTC()
	note := strings.TrimSpace(cmd.Note)
	next := current.Clone()
	next.Status = cmd.Target

	switch cmd.Target {
	case models.StatusAssigned:
		assignee := cmd.Actor.ID
		if cmd.AssigneeID != nil && strings.TrimSpace(*cmd.AssigneeID) != "" {
			assignee = strings.TrimSpace(*cmd.AssigneeID)
		}
		next.AssignedTo = &assignee
		next.AssignedAt = &now
		if next.FirstResponseAt == nil {
			first := now
			next.FirstResponseAt = &first
		}
	case models.StatusEscalated:
		next.EscalatedAt = &now
	case models.StatusResolved:
		next.ResolvedAt = &now
		if note != "" {
			next.ResolutionNotes = &note
		}
		if cmd.ProofRef != nil && strings.TrimSpace(*cmd.ProofRef) != "" {
			proof := strings.TrimSpace(*cmd.ProofRef)
			next.ResolutionProofRef = &proof
		}
	case models.StatusRejected:
		if note != "" {
			next.ResolutionNotes = &note
		}
	case models.StatusClosed:
		next.ClosedAt = &now
		next.ClosedByCitizen = cmd.Actor.Role == models.RoleCitizen
	}

	next.Version = current.Version + 1
	next.UpdatedAt = now

	entry := &models.ComplaintHistoryEntry{
		ID:          uuid.NewString(),
		ComplaintID: current.ID,
		FromStatus:  current.Status,
		ToStatus:    cmd.Target,
		ActorID:     cmd.Actor.ID,
		ActorRole:   cmd.Actor.Role,
		Note:        note,
		CreatedAt:   now,
	}
	return &next, entry, nil
}

// authorizeTransition lets staff drive any edge; citizens may only confirm closure of their own complaint.
func authorizeTransition(current models.Complaint, cmd models.TransitionCommand) error {
	if cmd.Actor.ID == "" {
		return appErrors.ErrUnauthorized
	}
	if cmd.Actor.IsStaff() {
		return nil
	}
	if cmd.Actor.Role == models.RoleCitizen && cmd.Target == models.StatusClosed && current.CitizenID == cmd.Actor.ID {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "not allowed to change the status of this complaint")
}
