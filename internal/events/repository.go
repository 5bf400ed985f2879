// Package events persists the registration audit trail.
package events

import (
	"context"
	"time"

	"github.com/invitebot/backend/pkg/database"
)

// Repository handles registration-event persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates an events repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// Insert records one completed registration. invitorID is empty for admins.
func (r *Repository) Insert(ctx context.Context, participantID, role, invitorID string, occurredAt time.Time) error {
	const q = `INSERT INTO registration_events (participant_id, role, invitor_id, occurred_at)
		VALUES ($1, $2, NULLIF($3, ''), $4)`
	_, err := r.db.Exec(ctx, q, participantID, role, invitorID, occurredAt)
	return err
}
