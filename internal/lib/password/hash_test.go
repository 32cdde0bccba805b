package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	hash, err := GetHash("s3cret")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	assert.True(t, CompareHash("s3cret", hash))
	assert.False(t, CompareHash("wrong", hash))
}
