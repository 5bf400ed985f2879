package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckSecret(t *testing.T) {
	hash, err := HashSecret("correct-admin-pass")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "correct-admin-pass", hash)

	assert.True(t, CheckSecret("correct-admin-pass", hash))
	assert.False(t, CheckSecret("wrong-pass", hash))
	assert.False(t, CheckSecret("", hash))
	assert.False(t, CheckSecret("correct-admin-pass", "not-a-bcrypt-hash"))
}
