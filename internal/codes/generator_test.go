package codes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCodeShape(t *testing.T) {
	for i := 0; i < 100; i++ {
		c := NewCode()
		require.Len(t, c, Length)
		for _, r := range c {
			assert.Contains(t, "0123456789ABCDEF", string(r))
		}
	}
}

func TestNewBatchUnique(t *testing.T) {
	batch := NewBatch()
	require.Len(t, batch, BatchSize)

	seen := make(map[string]struct{})
	for _, c := range batch {
		_, dup := seen[c]
		assert.False(t, dup, "duplicate code %s in batch", c)
		seen[c] = struct{}{}
		assert.Len(t, c, Length)
	}
}
