package models

import (
	"time"
)

// Role represents a participant's role in the referral tree.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleRegular Role = "regular"
)

// Participant is a registered member of the referral tree. The ID is the
// opaque identifier asserted by the chat transport and never changes.
// Admins have no invitor; every regular participant has exactly one.
type Participant struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	InvitorID *string   `json:"invitor_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsAdmin reports whether the participant may mint extra code batches.
func (p *Participant) IsAdmin() bool {
	return p.Role == RoleAdmin
}
