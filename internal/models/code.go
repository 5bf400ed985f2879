package models

import (
	"time"
)

// InvitationCode is a single-use registration token. Consumed is monotonic:
// once set it never reverses, and RedeemedAt is written exactly once.
type InvitationCode struct {
	ID         int64      `json:"id"`
	Code       string     `json:"code"`
	OwnerID    string     `json:"owner_id"`
	Consumed   bool       `json:"consumed"`
	RedeemedAt *time.Time `json:"redeemed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
