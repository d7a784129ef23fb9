package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sns-grievance-api/pkg/errors"
)

const (
	complaintNumberPrefix = "SNS"
	maxDailySequence      = 9999
	complaintDayLayout    = "20060102"
)

// ComplaintCounter hands out durable, strictly increasing sequences per calendar day.
type ComplaintCounter interface {
	Next(ctx context.Context, day string) (int64, error)
}

// FormatComplaintNumber renders SNS-YYYYMMDD-NNNN for the sequence following existingCountForToday.
// The calendar day is taken from day as given; callers choose the timezone.
func FormatComplaintNumber(day time.Time, existingCountForToday int64) (string, error) {
	if existingCountForToday < 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "existing complaint count must not be negative")
	}
	sequence := existingCountForToday + 1
	if sequence > maxDailySequence {
		return "", appErrors.Clone(appErrors.ErrCapacityExceeded, fmt.Sprintf("daily complaint numbers exhausted for %s", day.Format(complaintDayLayout)))
	}
	return fmt.Sprintf("%s-%s-%04d", complaintNumberPrefix, day.Format(complaintDayLayout), sequence), nil
}

// ComplaintNumberAllocator assigns complaint numbers from an atomic per-day counter.
type ComplaintNumberAllocator struct {
	counter  ComplaintCounter
	location *time.Location
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewComplaintNumberAllocator builds an allocator that numbers days in loc (UTC when nil).
func NewComplaintNumberAllocator(counter ComplaintCounter, loc *time.Location, metrics *MetricsService, logger *zap.Logger) *ComplaintNumberAllocator {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComplaintNumberAllocator{counter: counter, location: loc, metrics: metrics, logger: logger}
}

// Allocate reserves the next number for the day containing at. A reserved sequence is never
// handed out again, even when the caller later fails.
func (a *ComplaintNumberAllocator) Allocate(ctx context.Context, at time.Time) (string, error) {
	day := at.In(a.location)
	key := day.Format(complaintDayLayout)

	sequence, err := a.counter.Next(ctx, key)
	if err != nil {
		a.metrics.RecordNumberAllocation("error")
		a.logger.Error("complaint counter unavailable", zap.String("day", key), zap.Error(err))
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate complaint number")
	}

	number, err := FormatComplaintNumber(day, sequence-1)
	if err != nil {
		a.metrics.RecordNumberAllocation("capacity_exceeded")
		a.logger.Error("daily complaint capacity exhausted", zap.String("day", key), zap.Int64("sequence", sequence))
		return "", err
	}
	a.metrics.RecordNumberAllocation("ok")
	return number, nil
}
