package pkg

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestGenerateMatchID(t *testing.T) {
	t.Run("Shape", func(t *testing.T) {
		for range 100 {
			// When: a match id is generated
			id, err := GenerateMatchID()

			// Then: it is 8 base62 characters
			require.NoError(t, err)
			assert.Len(t, id, MatchIDLength)
			assert.True(t, IsValidMatchID(id), id)
		}
	})

	t.Run("Deterministic for a fixed source", func(t *testing.T) {
		// Given: two identical byte sources
		seed := bytes.Repeat([]byte{7, 42, 199, 3}, 64)

		// When: ids are generated from each
		first, err := GenerateMatchIDFrom(bytes.NewReader(seed))
		require.NoError(t, err)
		second, err := GenerateMatchIDFrom(bytes.NewReader(seed))
		require.NoError(t, err)

		// Then: the ids are equal
		assert.Equal(t, first, second)
	})

	t.Run("Broken source", func(t *testing.T) {
		// When: the randomness source fails
		_, err := GenerateMatchIDFrom(failingReader{})

		// Then: the error is returned
		require.Error(t, err)
	})
}

func TestIDPatterns(t *testing.T) {
	t.Run("Public ids", func(t *testing.T) {
		assert.True(t, IsValidMatchID("AbCd1234"))
		assert.False(t, IsValidMatchID("AbCd123"))
		assert.False(t, IsValidMatchID("AbCd12345"))
		assert.False(t, IsValidMatchID("AbCd-234"))
		assert.False(t, IsValidMatchID(""))
	})

	t.Run("Internal ids", func(t *testing.T) {
		id := NewInternalID()

		assert.True(t, IsLikelyUUID(id))
		assert.True(t, IsLikelyUUID(strings.ToUpper(id)))
		assert.False(t, IsLikelyUUID("AbCd1234"))
		assert.False(t, IsLikelyUUID("00000000-0000-0000-0000-000000000000"))
	})
}
