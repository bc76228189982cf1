package objects

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompositeOpenCloseTracksCount(t *testing.T) {
	c := NewComposite()
	require.True(t, c.IsEmpty())

	h1 := c.Open()
	h2 := c.Open()
	require.EqualValues(t, 2, c.OpenCount())

	require.True(t, c.Close(h1))
	require.EqualValues(t, 1, c.OpenCount())

	require.False(t, c.Close(h1)) // already closed
	require.True(t, c.Close(h2))
	require.True(t, c.IsEmpty())
}

func TestCompositeHandleStaleAfterSlotReuse(t *testing.T) {
	c := NewComposite()
	h1 := c.Open()
	c.Close(h1)

	h2 := c.Open() // reuses h1's slot with a bumped generation
	require.False(t, c.Close(h1))
	require.True(t, c.Close(h2))
}
