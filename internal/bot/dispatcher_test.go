package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/invitebot/backend/internal/models"
	"github.com/invitebot/backend/internal/redemption"
	"github.com/invitebot/backend/pkg/queue"
)

type fakeEngine struct {
	result       redemption.Result
	participants map[string]*models.Participant
	grant        []string
	grantCalls   int
}

func (f *fakeEngine) Register(_ context.Context, _, _ string) redemption.Result {
	return f.result
}

func (f *fakeEngine) GrantCodes(_ context.Context, id string) ([]string, error) {
	f.grantCalls++
	p := f.participants[id]
	if p == nil || !p.IsAdmin() {
		return nil, nil
	}
	return f.grant, nil
}

func (f *fakeEngine) Participant(_ context.Context, id string) (*models.Participant, error) {
	return f.participants[id], nil
}

type fakeQueries struct {
	score       int
	codes       []string
	invalidated []string
}

func (f *fakeQueries) Score(_ context.Context, _ string) (int, error) {
	return f.score, nil
}

func (f *fakeQueries) ListCodes(_ context.Context, _ string) ([]string, error) {
	return f.codes, nil
}

func (f *fakeQueries) InvalidateScore(_ context.Context, id string) {
	f.invalidated = append(f.invalidated, id)
}

type fakeAuditor struct {
	payloads []queue.RegistrationPayload
}

func (f *fakeAuditor) EnqueueRegistration(_ context.Context, p queue.RegistrationPayload) error {
	f.payloads = append(f.payloads, p)
	return nil
}

func newTestDispatcher(e *fakeEngine, q *fakeQueries, a *fakeAuditor) *Dispatcher {
	if e.participants == nil {
		e.participants = make(map[string]*models.Participant)
	}
	var auditor Auditor
	if a != nil {
		auditor = a
	}
	return NewDispatcher(e, q, auditor, zap.NewNop())
}

func TestDispatchMenu(t *testing.T) {
	e := &fakeEngine{participants: map[string]*models.Participant{
		"admin": {ID: "admin", Role: models.RoleAdmin},
		"bob":   {ID: "bob", Role: models.RoleRegular},
	}}
	d := newTestDispatcher(e, &fakeQueries{}, nil)
	ctx := context.Background()

	admin := d.Dispatch(ctx, "admin", "/start")
	assert.Contains(t, admin, "/addcodes")

	regular := d.Dispatch(ctx, "bob", "/help")
	assert.NotContains(t, regular, "/addcodes")
	assert.Contains(t, regular, "/register")

	stranger := d.Dispatch(ctx, "nobody", "/start")
	assert.NotContains(t, stranger, "/addcodes")
}

func TestDispatchRegisterInfo(t *testing.T) {
	e := &fakeEngine{participants: map[string]*models.Participant{
		"bob": {ID: "bob", Role: models.RoleRegular},
	}}
	d := newTestDispatcher(e, &fakeQueries{}, nil)
	ctx := context.Background()

	assert.Equal(t, replyAlreadyRegistered, d.Dispatch(ctx, "bob", "/register"))
	assert.Equal(t, replyRegisterFormat, d.Dispatch(ctx, "nobody", "/register"))
}

func TestDispatchRegisterOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		result redemption.Result
		want   string
	}{
		{"already registered", redemption.Result{Status: redemption.StatusAlreadyRegistered}, replyAlreadyRegistered},
		{"malformed", redemption.Result{Status: redemption.StatusMalformedInput}, replyMalformedCode},
		{"invalid code", redemption.Result{Status: redemption.StatusInvalidCode}, replyInvalidCode},
		{"failed", redemption.Result{Status: redemption.StatusFailed}, replyInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &fakeEngine{result: tt.result}
			d := newTestDispatcher(e, &fakeQueries{}, nil)
			got := d.Dispatch(context.Background(), "bob", "Code: AAAA111122")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDispatchRegisterSuccess(t *testing.T) {
	e := &fakeEngine{result: redemption.Result{
		Status:    redemption.StatusRegistered,
		Codes:     []string{"AAAA111122", "BBBB111122"},
		InvitorID: "alice",
	}}
	q := &fakeQueries{}
	a := &fakeAuditor{}
	d := newTestDispatcher(e, q, a)

	reply := d.Dispatch(context.Background(), "bob", "Code: CCCC111122")
	assert.Contains(t, reply, "You are registered!")
	assert.Contains(t, reply, "AAAA111122\nBBBB111122")

	// inviter's cached score is stale now
	assert.Equal(t, []string{"alice"}, q.invalidated)

	require.Len(t, a.payloads, 1)
	assert.Equal(t, "bob", a.payloads[0].ParticipantID)
	assert.Equal(t, "regular", a.payloads[0].Role)
	assert.Equal(t, "alice", a.payloads[0].InvitorID)
}

func TestDispatchAdminBootstrap(t *testing.T) {
	e := &fakeEngine{result: redemption.Result{
		Status: redemption.StatusAdminCreated,
		Codes:  []string{"AAAA111122"},
	}}
	a := &fakeAuditor{}
	d := newTestDispatcher(e, &fakeQueries{}, a)

	reply := d.Dispatch(context.Background(), "alice", "Code: correct-admin-pass")
	assert.Contains(t, reply, "administrator")
	assert.Contains(t, reply, "AAAA111122")

	require.Len(t, a.payloads, 1)
	assert.Equal(t, "admin", a.payloads[0].Role)
	assert.Empty(t, a.payloads[0].InvitorID)
}

func TestDispatchScoreAndCodes(t *testing.T) {
	q := &fakeQueries{score: 2, codes: []string{"AAAA111122", "BBBB111122"}}
	d := newTestDispatcher(&fakeEngine{}, q, nil)
	ctx := context.Background()

	assert.Equal(t, "You invited 2 participant(s).", d.Dispatch(ctx, "alice", "/score"))
	assert.Equal(t, "AAAA111122\nBBBB111122", d.Dispatch(ctx, "alice", "/codes"))

	empty := newTestDispatcher(&fakeEngine{}, &fakeQueries{}, nil)
	assert.Equal(t, replyRegisterFirst, empty.Dispatch(ctx, "nobody", "/codes"))
}

func TestDispatchAddCodes(t *testing.T) {
	e := &fakeEngine{
		participants: map[string]*models.Participant{
			"admin": {ID: "admin", Role: models.RoleAdmin},
			"bob":   {ID: "bob", Role: models.RoleRegular},
		},
		grant: []string{"AAAA111122"},
	}
	d := newTestDispatcher(e, &fakeQueries{}, nil)
	ctx := context.Background()

	assert.Equal(t, "AAAA111122", d.Dispatch(ctx, "admin", "/addcodes"))
	// non-admins get no visible effect
	assert.Equal(t, "", d.Dispatch(ctx, "bob", "/addcodes"))
	assert.Equal(t, "", d.Dispatch(ctx, "nobody", "/addcodes"))
}

func TestDispatchFallthrough(t *testing.T) {
	d := newTestDispatcher(&fakeEngine{}, &fakeQueries{}, nil)
	assert.Equal(t, replyHelpPrompt, d.Dispatch(context.Background(), "bob", "hello there"))
}
