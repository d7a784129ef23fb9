package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sns-grievance-api/internal/models"
)

const complaintColumns = `id, complaint_number, title, description, category_name, latitude, longitude, address,
       status, priority, submitted_at, sla_deadline, citizen_id, citizen_name, evidence_ref, assigned_to, assigned_at,
       first_response_at, escalated_at, resolved_at, resolution_notes, resolution_proof_ref, closed_at,
       closed_by_citizen, version, updated_at`

const (
	defaultComplaintLimit = 50
	maxComplaintLimit     = 200
)

// ComplaintRepository persists complaints and their append-only status history.
type ComplaintRepository struct {
	db *sqlx.DB
}

// NewComplaintRepository constructs the repository.
func NewComplaintRepository(db *sqlx.DB) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

// CreateWithHistory inserts a complaint together with its creation history entry.
func (r *ComplaintRepository) CreateWithHistory(ctx context.Context, complaint *models.Complaint, entry *models.ComplaintHistoryEntry) (err error) {
	if complaint.ID == "" {
		complaint.ID = uuid.NewString()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin complaint transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertQuery = `INSERT INTO complaints
	(id, complaint_number, title, description, category_name, latitude, longitude, address, status, priority,
	 submitted_at, sla_deadline, citizen_id, citizen_name, evidence_ref, version, updated_at)
	VALUES (:id, :complaint_number, :title, :description, :category_name, :latitude, :longitude, :address, :status, :priority,
	 :submitted_at, :sla_deadline, :citizen_id, :citizen_name, :evidence_ref, :version, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, complaint); err != nil {
		return fmt.Errorf("insert complaint: %w", err)
	}

	if entry != nil {
		entry.ComplaintID = complaint.ID
		if err = insertHistory(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit complaint: %w", err)
	}
	return nil
}

// GetByID fetches a complaint by identifier.
func (r *ComplaintRepository) GetByID(ctx context.Context, id string) (*models.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE id = $1`
	var complaint models.Complaint
	if err := r.db.GetContext(ctx, &complaint, query, id); err != nil {
		return nil, err
	}
	return &complaint, nil
}

// ListHistory returns the status trail of a complaint in chronological order.
func (r *ComplaintRepository) ListHistory(ctx context.Context, complaintID string) ([]models.ComplaintHistoryEntry, error) {
	const query = `SELECT id, complaint_id, from_status, to_status, actor_id, actor_role, note, created_at
	FROM complaint_status_history WHERE complaint_id = $1 ORDER BY created_at ASC, id ASC`
	var entries []models.ComplaintHistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, complaintID); err != nil {
		return nil, fmt.Errorf("list complaint history: %w", err)
	}
	return entries, nil
}

// List returns complaints matching the filter, newest submission first.
func (r *ComplaintRepository) List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, error) {
	if filter.MatchesNothing() {
		return []models.Complaint{}, nil
	}

	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + complaintColumns + ` FROM complaints`)
	where, args := complaintConditions(filter)
	builder.WriteString(where)
	builder.WriteString(" ORDER BY submitted_at DESC, id DESC")

	limit := filter.Limit
	if limit <= 0 || limit > maxComplaintLimit {
		limit = defaultComplaintLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var complaints []models.Complaint
	if err := r.db.SelectContext(ctx, &complaints, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	return complaints, nil
}

// CountByStatus aggregates complaints matching the filter per status.
func (r *ComplaintRepository) CountByStatus(ctx context.Context, filter models.ComplaintFilter) ([]models.ComplaintStatusCount, error) {
	if filter.MatchesNothing() {
		return []models.ComplaintStatusCount{}, nil
	}
	where, args := complaintConditions(filter)
	query := `SELECT status, COUNT(*) AS total FROM complaints` + where + ` GROUP BY status`

	var counts []models.ComplaintStatusCount
	if err := r.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("count complaints: %w", err)
	}
	return counts, nil
}

// UpdateWithHistory writes the mutable columns of complaint if its stored version still equals
// expectedVersion, appending entry in the same transaction. A stale version yields sql.ErrNoRows.
func (r *ComplaintRepository) UpdateWithHistory(ctx context.Context, complaint *models.Complaint, expectedVersion int64, entry *models.ComplaintHistoryEntry) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin complaint transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const updateQuery = `UPDATE complaints SET status = $1, priority = $2, sla_deadline = $3, assigned_to = $4, assigned_at = $5,
	first_response_at = $6, escalated_at = $7, resolved_at = $8, resolution_notes = $9, resolution_proof_ref = $10,
	closed_at = $11, closed_by_citizen = $12, version = $13, updated_at = $14
	WHERE id = $15 AND version = $16`
	result, err := tx.ExecContext(ctx, updateQuery,
		complaint.Status,
		complaint.Priority,
		complaint.SLADeadline,
		complaint.AssignedTo,
		complaint.AssignedAt,
		complaint.FirstResponseAt,
		complaint.EscalatedAt,
		complaint.ResolvedAt,
		complaint.ResolutionNotes,
		complaint.ResolutionProofRef,
		complaint.ClosedAt,
		complaint.ClosedByCitizen,
		complaint.Version,
		complaint.UpdatedAt,
		complaint.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update complaint: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check complaint update rows: %w", err)
	}
	if rows == 0 {
		err = sql.ErrNoRows
		return err
	}

	if entry != nil {
		if err = insertHistory(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit complaint update: %w", err)
	}
	return nil
}

func insertHistory(ctx context.Context, tx *sqlx.Tx, entry *models.ComplaintHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	const query = `INSERT INTO complaint_status_history (id, complaint_id, from_status, to_status, actor_id, actor_role, note, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := tx.ExecContext(ctx, query,
		entry.ID,
		entry.ComplaintID,
		entry.FromStatus,
		entry.ToStatus,
		entry.ActorID,
		entry.ActorRole,
		entry.Note,
		entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert complaint history: %w", err)
	}
	return nil
}

func complaintConditions(filter models.ComplaintFilter) (string, []interface{}) {
	args := make([]interface{}, 0, 8)
	conditions := make([]string, 0, 4)

	if filter.CitizenID != nil {
		args = append(args, *filter.CitizenID)
		conditions = append(conditions, fmt.Sprintf("citizen_id = $%d", len(args)))
	}
	if filter.Statuses != nil {
		values := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			values[i] = string(status)
		}
		args = append(args, pq.Array(values))
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.Priorities != nil {
		values := make([]string, len(filter.Priorities))
		for i, priority := range filter.Priorities {
			values[i] = string(priority)
		}
		args = append(args, pq.Array(values))
		conditions = append(conditions, fmt.Sprintf("priority = ANY($%d)", len(args)))
	}
	if filter.Box != nil {
		args = append(args, filter.Box.LatMin, filter.Box.LatMax)
		conditions = append(conditions, fmt.Sprintf("latitude BETWEEN $%d AND $%d", len(args)-1, len(args)))
		args = append(args, filter.Box.LonMin, filter.Box.LonMax)
		conditions = append(conditions, fmt.Sprintf("longitude BETWEEN $%d AND $%d", len(args)-1, len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
