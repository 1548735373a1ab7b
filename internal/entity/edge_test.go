package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdge_UnmarshalJSON(t *testing.T) {
	t.Run("Short orientation key", func(t *testing.T) {
		// Given: an edge payload using the "o" key
		payload := []byte(`{"o":"H","row":1,"col":2}`)

		// When: the payload is decoded
		var edge Edge
		err := json.Unmarshal(payload, &edge)

		// Then: all fields are populated
		require.NoError(t, err)
		assert.Equal(t, Edge{O: OrientationH, Row: 1, Col: 2}, edge)
		assert.True(t, edge.HasValidOrientation())
	})

	t.Run("Long orientation key", func(t *testing.T) {
		// Given: an edge payload using the "orientation" key
		payload := []byte(`{"orientation":"V","row":0,"col":3}`)

		// When: the payload is decoded
		var edge Edge
		err := json.Unmarshal(payload, &edge)

		// Then: the orientation is taken from the long key
		require.NoError(t, err)
		assert.Equal(t, Edge{O: OrientationV, Row: 0, Col: 3}, edge)
	})

	t.Run("Missing coordinate invalidates the edge", func(t *testing.T) {
		// Given: an edge payload without a column
		payload := []byte(`{"o":"H","row":1}`)

		// When: the payload is decoded
		var edge Edge
		err := json.Unmarshal(payload, &edge)

		// Then: the edge carries no valid orientation
		require.NoError(t, err)
		assert.False(t, edge.HasValidOrientation())
	})

	t.Run("Non integer coordinate is an error", func(t *testing.T) {
		// Given: an edge payload with a fractional row
		payload := []byte(`{"o":"H","row":1.5,"col":0}`)

		// When: the payload is decoded
		var edge Edge
		err := json.Unmarshal(payload, &edge)

		// Then: decoding fails
		require.Error(t, err)
	})

	t.Run("Unknown orientation", func(t *testing.T) {
		// Given: an edge with a diagonal orientation
		payload := []byte(`{"o":"D","row":0,"col":0}`)

		// When: the payload is decoded
		var edge Edge
		require.NoError(t, json.Unmarshal(payload, &edge))

		// Then: the orientation is reported as invalid
		assert.False(t, edge.HasValidOrientation())
	})
}
