package codes

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/invitebot/backend/internal/models"
	"github.com/invitebot/backend/pkg/database"
)

// ErrCodeCollision is returned when a freshly generated code already exists.
// The caller regenerates the batch and retries; the stored code is never
// overwritten.
var ErrCodeCollision = errors.New("generated code already exists")

const pgUniqueViolation = "23505"

// Repository handles invitation-code persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a codes repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// InsertBatch persists a batch of fresh codes owned by ownerID. The owner
// row must already exist (or be created earlier in the same transaction).
func (r *Repository) InsertBatch(ctx context.Context, ownerID string, batch []string) error {
	const q = `INSERT INTO invitation_codes (code, owner_id) VALUES ($1, $2)`
	for _, code := range batch {
		if _, err := r.db.Exec(ctx, q, code, ownerID); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				return ErrCodeCollision
			}
			return err
		}
	}
	return nil
}

// Consume atomically flips an unconsumed code to consumed and returns the
// redeemed row. The WHERE NOT consumed guard makes this a compare-and-set:
// of N concurrent racers on the same code, exactly one sees a row; the rest
// get ok=false and must treat the code as invalid.
func (r *Repository) Consume(ctx context.Context, code string) (*models.InvitationCode, bool, error) {
	const q = `UPDATE invitation_codes
		SET consumed = TRUE, redeemed_at = NOW()
		WHERE code = $1 AND NOT consumed
		RETURNING id, code, owner_id, consumed, redeemed_at, created_at`
	var c models.InvitationCode
	err := r.db.QueryRow(ctx, q, code).
		Scan(&c.ID, &c.Code, &c.OwnerID, &c.Consumed, &c.RedeemedAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &c, true, nil
}
