package ports

import (
	"context"

	"github.com/bankstream/auth-core/internal/core/domain"
)

// AuditTrail persists authentication events for later review.
type AuditTrail interface {
	// Record appends one event to the trail.
	Record(ctx context.Context, event *domain.AuthEvent) error
	// ListByUser returns the most recent events for an identity, newest
	// first, capped at limit.
	ListByUser(ctx context.Context, userID string, limit int64) ([]domain.AuthEvent, error)
}
