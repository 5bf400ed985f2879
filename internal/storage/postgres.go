// Package storage implements the redemption engine's transactional store on
// PostgreSQL. It is the only place transactions are opened.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/invitebot/backend/internal/codes"
	"github.com/invitebot/backend/internal/models"
	"github.com/invitebot/backend/internal/participants"
	"github.com/invitebot/backend/internal/redemption"
)

// Postgres composes the participant and code repositories into the atomic
// units the redemption engine needs.
type Postgres struct {
	pool         *pgxpool.Pool
	participants *participants.Repository
}

// NewPostgres creates the redemption store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, participants: participants.NewRepository(pool)}
}

// ParticipantExists implements redemption.Store.
func (s *Postgres) ParticipantExists(ctx context.Context, id string) (bool, error) {
	return s.participants.Exists(ctx, id)
}

// GetParticipant implements redemption.Store.
func (s *Postgres) GetParticipant(ctx context.Context, id string) (*models.Participant, error) {
	return s.participants.GetByID(ctx, id)
}

// CreateAdminWithCodes creates the admin row and its first batch in one
// transaction.
func (s *Postgres) CreateAdminWithCodes(ctx context.Context, id string, batch []string) error {
	return s.inTx(ctx, func(reg *participants.Repository, cod *codes.Repository) error {
		if _, err := reg.Create(ctx, id, models.RoleAdmin, nil); err != nil {
			return err
		}
		return cod.InsertBatch(ctx, id, batch)
	})
}

// RedeemCode runs the correctness-critical section: conditional consume,
// participant creation, batch issuance, all or nothing. A rollback releases
// the code back to unconsumed.
func (s *Postgres) RedeemCode(ctx context.Context, participantID, code string, batch []string) (string, error) {
	var invitorID string
	err := s.inTx(ctx, func(reg *participants.Repository, cod *codes.Repository) error {
		row, ok, err := cod.Consume(ctx, code)
		if err != nil {
			return err
		}
		if !ok {
			return redemption.ErrCodeUnavailable
		}
		// The code's stored owner is authoritative for invitor credit.
		owner := row.OwnerID
		if _, err := reg.Create(ctx, participantID, models.RoleRegular, &owner); err != nil {
			return err
		}
		if err := cod.InsertBatch(ctx, participantID, batch); err != nil {
			return err
		}
		invitorID = owner
		return nil
	})
	if err != nil {
		return "", err
	}
	return invitorID, nil
}

// GrantCodes persists an extra batch for an existing participant and
// refreshes its update timestamp.
func (s *Postgres) GrantCodes(ctx context.Context, ownerID string, batch []string) error {
	return s.inTx(ctx, func(reg *participants.Repository, cod *codes.Repository) error {
		if err := cod.InsertBatch(ctx, ownerID, batch); err != nil {
			return err
		}
		return reg.Touch(ctx, ownerID)
	})
}

// inTx runs fn with tx-bound repositories, committing on success. Conflict
// and timeout failures are wrapped as redemption.ErrTransient so the engine
// retries the whole unit.
func (s *Postgres) inTx(ctx context.Context, fn func(*participants.Repository, *codes.Repository) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", redemption.ErrTransient, err)
	}
	defer tx.Rollback(ctx)

	if err := fn(participants.NewRepository(tx), codes.NewRepository(tx)); err != nil {
		if isSerializationFailure(err) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", redemption.ErrTransient, err)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", redemption.ErrTransient, err)
	}
	return nil
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// 40001 serialization_failure, 40P01 deadlock_detected.
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
