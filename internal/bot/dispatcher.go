// Package bot turns chat-transport updates into replies. The transport
// adapter delivers an opaque participant ID plus free text; everything
// else (polling, message formatting quirks) stays outside this repo.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/invitebot/backend/internal/models"
	"github.com/invitebot/backend/internal/redemption"
	"github.com/invitebot/backend/pkg/queue"
)

const (
	replyMenu = "Pyramid bot\n\nCommands:\n" +
		"/register — how to register\n" +
		"/codes — your unredeemed invitation codes\n" +
		"/score — how many participants you invited"
	replyMenuAdminExtra = "\n/addcodes — generate another code batch (admin only)"

	replyAlreadyRegistered = "You are already registered."
	replyRegisterFormat    = "Enter your invitation code in the format:\nCode: <10-character code>"
	replyMalformedCode     = "Enter the code in the correct format:\nCode: <10-character code>"
	replyInvalidCode       = "Make sure you entered a valid invitation code."
	replyRegisterFirst     = "Register first.\n\n/register"
	replyInternalError     = "Something went wrong. Please try again later."
	replyHelpPrompt        = "Enter the code in the correct format if you want to register\n\nMore: /register"
)

// Engine is the slice of the redemption engine the dispatcher needs.
type Engine interface {
	Register(ctx context.Context, participantID, text string) redemption.Result
	GrantCodes(ctx context.Context, participantID string) ([]string, error)
	Participant(ctx context.Context, participantID string) (*models.Participant, error)
}

// Queries answers the read-only referral questions.
type Queries interface {
	Score(ctx context.Context, id string) (int, error)
	ListCodes(ctx context.Context, id string) ([]string, error)
	InvalidateScore(ctx context.Context, id string)
}

// Auditor records completed registrations; enqueueing is best-effort.
type Auditor interface {
	EnqueueRegistration(ctx context.Context, payload queue.RegistrationPayload) error
}

// Dispatcher routes one update to a reply string. An empty reply means the
// transport should send nothing.
type Dispatcher struct {
	engine  Engine
	queries Queries
	auditor Auditor // nil disables the audit trail
	logger  *zap.Logger
}

// NewDispatcher creates a dispatcher. auditor may be nil.
func NewDispatcher(engine Engine, queries Queries, auditor Auditor, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{engine: engine, queries: queries, auditor: auditor, logger: logger}
}

// Dispatch handles a single (participant, text) update.
func (d *Dispatcher) Dispatch(ctx context.Context, participantID, text string) string {
	d.logger.Info("update", zap.String("participant_id", participantID))

	switch cmd := strings.TrimSpace(text); {
	case cmd == "/start" || cmd == "/help":
		return d.menu(ctx, participantID)
	case cmd == "/register":
		return d.registerInfo(ctx, participantID)
	case cmd == "/score":
		return d.score(ctx, participantID)
	case cmd == "/codes":
		return d.listCodes(ctx, participantID)
	case cmd == "/addcodes":
		return d.addCodes(ctx, participantID)
	case strings.HasPrefix(cmd, "Code:"):
		return d.register(ctx, participantID, cmd)
	default:
		return replyHelpPrompt
	}
}

func (d *Dispatcher) menu(ctx context.Context, participantID string) string {
	p, err := d.engine.Participant(ctx, participantID)
	if err != nil {
		d.logger.Error("participant lookup failed", zap.Error(err))
		return replyMenu
	}
	if p != nil && p.IsAdmin() {
		return replyMenu + replyMenuAdminExtra
	}
	return replyMenu
}

func (d *Dispatcher) registerInfo(ctx context.Context, participantID string) string {
	p, err := d.engine.Participant(ctx, participantID)
	if err != nil {
		d.logger.Error("participant lookup failed", zap.Error(err))
		return replyInternalError
	}
	if p != nil {
		return replyAlreadyRegistered
	}
	return replyRegisterFormat
}

func (d *Dispatcher) register(ctx context.Context, participantID, text string) string {
	res := d.engine.Register(ctx, participantID, text)
	switch res.Status {
	case redemption.StatusAlreadyRegistered:
		return replyAlreadyRegistered
	case redemption.StatusMalformedInput:
		return replyMalformedCode
	case redemption.StatusInvalidCode:
		return replyInvalidCode
	case redemption.StatusAdminCreated:
		d.audit(ctx, participantID, models.RoleAdmin, "")
		return "You are registered as an administrator!\n\nYour invitation codes:\n" + renderCodes(res.Codes)
	case redemption.StatusRegistered:
		d.queries.InvalidateScore(ctx, res.InvitorID)
		d.audit(ctx, participantID, models.RoleRegular, res.InvitorID)
		return "You are registered!\n\nYour invitation codes:\n" + renderCodes(res.Codes)
	default:
		return replyInternalError
	}
}

func (d *Dispatcher) score(ctx context.Context, participantID string) string {
	n, err := d.queries.Score(ctx, participantID)
	if err != nil {
		d.logger.Error("score query failed", zap.Error(err))
		return replyInternalError
	}
	return fmt.Sprintf("You invited %d participant(s).", n)
}

func (d *Dispatcher) listCodes(ctx context.Context, participantID string) string {
	list, err := d.queries.ListCodes(ctx, participantID)
	if err != nil {
		d.logger.Error("codes query failed", zap.Error(err))
		return replyInternalError
	}
	if len(list) == 0 {
		return replyRegisterFirst
	}
	return renderCodes(list)
}

// addCodes issues an extra batch to admins. For everyone else the reply is
// empty and the transport stays silent.
func (d *Dispatcher) addCodes(ctx context.Context, participantID string) string {
	batch, err := d.engine.GrantCodes(ctx, participantID)
	if err != nil {
		d.logger.Error("grant codes failed", zap.Error(err))
		return replyInternalError
	}
	if batch == nil {
		return ""
	}
	return renderCodes(batch)
}

func (d *Dispatcher) audit(ctx context.Context, participantID string, role models.Role, invitorID string) {
	if d.auditor == nil {
		return
	}
	payload := queue.RegistrationPayload{
		ParticipantID: participantID,
		Role:          string(role),
		InvitorID:     invitorID,
		OccurredAt:    time.Now().UTC(),
	}
	if err := d.auditor.EnqueueRegistration(ctx, payload); err != nil {
		d.logger.Warn("audit enqueue failed", zap.Error(err))
	}
}

func renderCodes(list []string) string {
	return strings.Join(list, "\n")
}
