package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ComplaintCounterRepository hands out per-day complaint sequences from a PostgreSQL row.
// Each call commits its increment immediately, so a failed intake leaves a gap rather than a reuse.
type ComplaintCounterRepository struct {
	db *sqlx.DB
}

// NewComplaintCounterRepository constructs the repository.
func NewComplaintCounterRepository(db *sqlx.DB) *ComplaintCounterRepository {
	return &ComplaintCounterRepository{db: db}
}

// Next atomically increments and returns the sequence for day (YYYYMMDD).
func (r *ComplaintCounterRepository) Next(ctx context.Context, day string) (int64, error) {
	const query = `INSERT INTO complaint_counters (day, last_sequence, updated_at)
VALUES ($1, 1, NOW())
ON CONFLICT (day) DO UPDATE SET last_sequence = complaint_counters.last_sequence + 1, updated_at = NOW()
RETURNING last_sequence`
	var sequence int64
	if err := r.db.GetContext(ctx, &sequence, query, day); err != nil {
		return 0, fmt.Errorf("increment complaint counter %s: %w", day, err)
	}
	return sequence, nil
}
