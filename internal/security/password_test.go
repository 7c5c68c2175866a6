package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	hash, err := HashPassword("Secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "Secret123", hash)

	assert.NoError(t, ComparePassword(hash, "Secret123"))
	assert.ErrorIs(t, ComparePassword(hash, "secret123"), ErrPasswordMismatch)
	assert.ErrorIs(t, ComparePassword("", "Secret123"), ErrPasswordMismatch)
}
