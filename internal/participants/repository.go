package participants

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/invitebot/backend/internal/models"
	"github.com/invitebot/backend/pkg/database"
)

var (
	// ErrAlreadyRegistered is returned when the participant ID is taken.
	ErrAlreadyRegistered = errors.New("participant already registered")
	// ErrUnknownInvitor is returned when a regular participant references
	// an invitor that does not exist.
	ErrUnknownInvitor = errors.New("invitor does not exist")
	// ErrInvalidAdminInvitor is returned when an admin is created with an
	// invitor; admins sit at the root of the referral tree.
	ErrInvalidAdminInvitor = errors.New("admin participants have no invitor")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Repository handles participant persistence. It accepts any DBTX so the
// same queries run on the pool or inside the redemption transaction.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a participants repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// Exists reports whether a participant row exists for the identifier.
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM participants WHERE id = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, q, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// GetByID returns a participant, or nil if unknown.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Participant, error) {
	const q = `SELECT id, role, invitor_id, created_at, updated_at FROM participants WHERE id = $1`
	var p models.Participant
	err := r.db.QueryRow(ctx, q, id).Scan(&p.ID, &p.Role, &p.InvitorID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Create inserts a new participant. Regular participants must reference an
// existing invitor; admins must not reference one.
func (r *Repository) Create(ctx context.Context, id string, role models.Role, invitorID *string) (*models.Participant, error) {
	if role == models.RoleAdmin && invitorID != nil {
		return nil, ErrInvalidAdminInvitor
	}
	if role == models.RoleRegular && invitorID == nil {
		return nil, ErrUnknownInvitor
	}

	const q = `INSERT INTO participants (id, role, invitor_id)
		VALUES ($1, $2, $3)
		RETURNING id, role, invitor_id, created_at, updated_at`
	var p models.Participant
	err := r.db.QueryRow(ctx, q, id, string(role), invitorID).
		Scan(&p.ID, &p.Role, &p.InvitorID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				return nil, ErrAlreadyRegistered
			case pgForeignKeyViolation:
				return nil, ErrUnknownInvitor
			}
		}
		return nil, err
	}
	return &p, nil
}

// CountInvitees returns how many participants name id as their invitor.
// Unknown participants count zero.
func (r *Repository) CountInvitees(ctx context.Context, id string) (int, error) {
	const q = `SELECT COUNT(*) FROM participants WHERE invitor_id = $1`
	var n int
	if err := r.db.QueryRow(ctx, q, id).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// UnconsumedCodes returns the participant's unredeemed codes in creation
// order. Unknown participants get an empty slice, not an error.
func (r *Repository) UnconsumedCodes(ctx context.Context, id string) ([]string, error) {
	const q = `SELECT code FROM invitation_codes
		WHERE owner_id = $1 AND NOT consumed
		ORDER BY created_at, id`
	rows, err := r.db.Query(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

// Touch refreshes the participant's update timestamp.
func (r *Repository) Touch(ctx context.Context, id string) error {
	const q = `UPDATE participants SET updated_at = NOW() WHERE id = $1`
	_, err := r.db.Exec(ctx, q, id)
	return err
}
