package codes

import (
	"strings"

	"github.com/google/uuid"
)

const (
	// BatchSize is how many codes a participant receives per grant.
	BatchSize = 10
	// Length is the fixed code length. Codes are uppercase hex, so every
	// character is unambiguous to type.
	Length = 10
)

// NewCode returns a single fresh code: the first Length characters of a
// random UUID's hex digits, uppercased.
func NewCode() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return strings.ToUpper(hex[:Length])
}

// NewBatch returns BatchSize codes, unique within the batch. Cross-batch
// uniqueness is enforced by the database; callers retry on collision.
func NewBatch() []string {
	seen := make(map[string]struct{}, BatchSize)
	batch := make([]string, 0, BatchSize)
	for len(batch) < BatchSize {
		c := NewCode()
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		batch = append(batch, c)
	}
	return batch
}
