// Package redemption implements the invitation-code redemption engine: the
// state machine that decides whether a presented code (or the admin secret)
// registers a participant, consumes the code, and issues a fresh batch.
package redemption

import (
	"context"
	"errors"
	"regexp"

	"go.uber.org/zap"

	"github.com/invitebot/backend/internal/codes"
	"github.com/invitebot/backend/internal/models"
	"github.com/invitebot/backend/internal/participants"
)

// Status is the terminal state of a registration attempt. Every outcome the
// caller must render differently has its own value; errors never cross the
// engine boundary as control flow.
type Status int

const (
	// StatusAlreadyRegistered: the participant exists; nothing was mutated.
	StatusAlreadyRegistered Status = iota
	// StatusMalformedInput: the text did not match the Code: <token> shape.
	StatusMalformedInput
	// StatusAdminCreated: admin bootstrap succeeded.
	StatusAdminCreated
	// StatusRegistered: an ordinary redemption succeeded.
	StatusRegistered
	// StatusInvalidCode: the token matched no unconsumed code. Unknown and
	// already-consumed codes are deliberately indistinguishable.
	StatusInvalidCode
	// StatusFailed: a storage failure persisted through retries.
	StatusFailed
)

// Result is the outcome of a registration attempt. Codes is the freshly
// issued batch on success; InvitorID is set only for StatusRegistered.
type Result struct {
	Status    Status
	Codes     []string
	InvitorID string
}

var (
	// ErrCodeUnavailable is returned by Store.RedeemCode when the token
	// matches no unconsumed code row.
	ErrCodeUnavailable = errors.New("code not found or already consumed")
	// ErrTransient marks a storage failure (serialization conflict,
	// transaction timeout) that is safe to retry whole; the transaction
	// rolled back and no code was left half-consumed.
	ErrTransient = errors.New("transient storage failure")
)

// maxAttempts bounds retries on code collisions and transient tx failures.
const maxAttempts = 3

// codePattern is the anchored registration format. The token class is wider
// than the code alphabet because the admin passphrase travels the same way.
var codePattern = regexp.MustCompile(`^\s*Code:\s*([A-Za-z0-9_-]+)\s*$`)

// ParseCode extracts the candidate token from free text.
func ParseCode(text string) (string, bool) {
	m := codePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Store is the transactional persistence the engine runs against. The
// mutating methods are each a single atomic unit: on any failure inside,
// no partial state survives.
type Store interface {
	ParticipantExists(ctx context.Context, id string) (bool, error)
	GetParticipant(ctx context.Context, id string) (*models.Participant, error)
	// CreateAdminWithCodes creates an admin participant (no invitor) and
	// persists its first code batch in one transaction.
	CreateAdminWithCodes(ctx context.Context, id string, batch []string) error
	// RedeemCode, in one transaction: consumes the code if still
	// unconsumed, creates the regular participant with the code's owner as
	// invitor, and persists the new batch. Returns ErrCodeUnavailable when
	// the code matched nothing.
	RedeemCode(ctx context.Context, participantID, code string, batch []string) (invitorID string, err error)
	// GrantCodes persists an extra batch for an existing participant.
	GrantCodes(ctx context.Context, ownerID string, batch []string) error
}

// SecretVerifier checks a presented token against the stored admin secret.
type SecretVerifier interface {
	Verify(ctx context.Context, presented string) bool
}

// Engine drives registration attempts to a terminal Result.
type Engine struct {
	store    Store
	secrets  SecretVerifier
	logger   *zap.Logger
	newBatch func() []string
}

// NewEngine creates a redemption engine.
func NewEngine(store Store, secrets SecretVerifier, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, secrets: secrets, logger: logger, newBatch: codes.NewBatch}
}

// Register runs the full state machine for one attempt: already-member
// check, code parsing, admin bootstrap, ordinary redemption.
func (e *Engine) Register(ctx context.Context, participantID, text string) Result {
	exists, err := e.store.ParticipantExists(ctx, participantID)
	if err != nil {
		e.logger.Error("exists check failed", zap.String("participant_id", participantID), zap.Error(err))
		return Result{Status: StatusFailed}
	}
	if exists {
		return Result{Status: StatusAlreadyRegistered}
	}

	token, ok := ParseCode(text)
	if !ok {
		return Result{Status: StatusMalformedInput}
	}

	if e.secrets.Verify(ctx, token) {
		return e.bootstrapAdmin(ctx, participantID)
	}
	return e.redeem(ctx, participantID, token)
}

// bootstrapAdmin creates an admin with its first batch. The admin secret is
// never stored as an invitation code, so no code lookup happens here.
func (e *Engine) bootstrapAdmin(ctx context.Context, participantID string) Result {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		batch := e.newBatch()
		err := e.store.CreateAdminWithCodes(ctx, participantID, batch)
		switch {
		case err == nil:
			e.logger.Info("admin registered", zap.String("participant_id", participantID))
			return Result{Status: StatusAdminCreated, Codes: batch}
		case errors.Is(err, participants.ErrAlreadyRegistered):
			return Result{Status: StatusAlreadyRegistered}
		case errors.Is(err, codes.ErrCodeCollision), errors.Is(err, ErrTransient):
			e.logger.Warn("admin bootstrap retry", zap.Int("attempt", attempt), zap.Error(err))
			continue
		default:
			e.logger.Error("admin bootstrap failed", zap.String("participant_id", participantID), zap.Error(err))
			return Result{Status: StatusFailed}
		}
	}
	return Result{Status: StatusFailed}
}

// redeem performs the ordinary single-use redemption. Exactly one of N
// concurrent racers on the same code can succeed; the rest observe
// ErrCodeUnavailable and report an invalid code.
func (e *Engine) redeem(ctx context.Context, participantID, token string) Result {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		batch := e.newBatch()
		invitorID, err := e.store.RedeemCode(ctx, participantID, token, batch)
		switch {
		case err == nil:
			e.logger.Info("participant registered",
				zap.String("participant_id", participantID),
				zap.String("invitor_id", invitorID))
			return Result{Status: StatusRegistered, Codes: batch, InvitorID: invitorID}
		case errors.Is(err, ErrCodeUnavailable):
			return Result{Status: StatusInvalidCode}
		case errors.Is(err, participants.ErrAlreadyRegistered):
			return Result{Status: StatusAlreadyRegistered}
		case errors.Is(err, participants.ErrUnknownInvitor), errors.Is(err, participants.ErrInvalidAdminInvitor):
			// Registry integrity violations cannot happen through this
			// path; surface as a generic failure.
			e.logger.Error("registry invariant violated", zap.String("participant_id", participantID), zap.Error(err))
			return Result{Status: StatusFailed}
		case errors.Is(err, codes.ErrCodeCollision), errors.Is(err, ErrTransient):
			e.logger.Warn("redemption retry", zap.Int("attempt", attempt), zap.Error(err))
			continue
		default:
			e.logger.Error("redemption failed", zap.String("participant_id", participantID), zap.Error(err))
			return Result{Status: StatusFailed}
		}
	}
	return Result{Status: StatusFailed}
}

// GrantCodes issues an extra batch to an existing admin. Non-admins and
// unknown participants get nil, nil: the caller stays silent.
func (e *Engine) GrantCodes(ctx context.Context, participantID string) ([]string, error) {
	p, err := e.store.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if p == nil || !p.IsAdmin() {
		return nil, nil
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		batch := e.newBatch()
		err := e.store.GrantCodes(ctx, participantID, batch)
		switch {
		case err == nil:
			return batch, nil
		case errors.Is(err, codes.ErrCodeCollision), errors.Is(err, ErrTransient):
			continue
		default:
			return nil, err
		}
	}
	return nil, ErrTransient
}

// Participant exposes the registry row for menu rendering.
func (e *Engine) Participant(ctx context.Context, participantID string) (*models.Participant, error) {
	return e.store.GetParticipant(ctx, participantID)
}
