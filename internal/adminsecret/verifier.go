// Package adminsecret verifies the bootstrap admin passphrase against a
// stored bcrypt hash. No plaintext secret is ever persisted.
package adminsecret

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/invitebot/backend/pkg/database"
	"github.com/invitebot/backend/pkg/utils"
)

// Verifier checks presented passphrases against the stored admin hash.
type Verifier struct {
	db     database.DBTX
	logger *zap.Logger

	warnOnce sync.Once
}

// NewVerifier creates a verifier backed by the admin_secret table.
func NewVerifier(db database.DBTX, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{db: db, logger: logger}
}

// Verify reports whether presented matches the stored admin secret. A
// missing admin_secret row means admin bootstrap is unavailable; that is an
// operational warning (logged once), never an error, and all other flows
// continue. Lookup failures are logged and treated as no match.
func (v *Verifier) Verify(ctx context.Context, presented string) bool {
	const q = `SELECT secret_hash FROM admin_secret WHERE id = 1`
	var hash string
	err := v.db.QueryRow(ctx, q).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			v.warnOnce.Do(func() {
				v.logger.Warn("no admin secret configured; admin bootstrap is disabled (see cmd/secretctl)")
			})
			return false
		}
		v.logger.Error("admin secret lookup failed", zap.Error(err))
		return false
	}
	return utils.CheckSecret(presented, hash)
}
