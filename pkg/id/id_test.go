package id

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsSortableAndParseable(t *testing.T) {
	prev := ""
	for i := 0; i < 100; i++ {
		s := New()
		_, err := ulid.Parse(s)
		require.NoError(t, err)
		assert.Greater(t, s, prev)
		prev = s
	}
}
