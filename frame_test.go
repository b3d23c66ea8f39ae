package sacn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameEqual(t *testing.T) {
	a := &Frame{Universe: 1, SyncUniverse: 2, Values: []byte{0, 1, 2}}
	b := &Frame{Universe: 1, SyncUniverse: 2, Values: []byte{0, 1, 2}, Priority: 200, Preview: true, ReceivedAt: time.Now()}

	// Priority, preview and timestamp are informational.
	assert.True(t, a.Equal(b))

	c := &Frame{Universe: 1, SyncUniverse: 3, Values: []byte{0, 1, 2}}
	assert.False(t, a.Equal(c))

	d := &Frame{Universe: 1, SyncUniverse: 2, Values: []byte{0, 1, 3}}
	assert.False(t, a.Equal(d))
}

func TestMergeKeepHigherPriority(t *testing.T) {
	existing := &Frame{Universe: 1, Priority: 150, Values: []byte{0, 1}}
	incoming := &Frame{Universe: 1, Priority: 100, Values: []byte{0, 2}}

	merged, err := MergeKeepHigherPriority(existing, incoming)
	require.NoError(t, err)
	assert.Same(t, existing, merged)

	merged, err = MergeKeepHigherPriority(incoming, existing)
	require.NoError(t, err)
	assert.Same(t, existing, merged)

	// Equal priority: the incoming (newer) frame wins.
	tie := &Frame{Universe: 1, Priority: 150, Values: []byte{0, 3}}
	merged, err = MergeKeepHigherPriority(existing, tie)
	require.NoError(t, err)
	assert.Same(t, tie, merged)
}

func TestMergeHTP(t *testing.T) {
	existing := &Frame{Universe: 1, SyncUniverse: 2, Priority: 100, Values: []byte{0, 10, 200, 30}}
	incoming := &Frame{Universe: 1, SyncUniverse: 2, Priority: 100, Values: []byte{0, 20, 100, 30, 40}}

	merged, err := MergeHTP(existing, incoming)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 20, 200, 30, 40}, merged.Values)
}

func TestMergeHTPPreviewOr(t *testing.T) {
	existing := &Frame{Universe: 1, SyncUniverse: 2, Priority: 100, Preview: true, Values: []byte{0, 1}}
	incoming := &Frame{Universe: 1, SyncUniverse: 2, Priority: 100, Values: []byte{0, 2}}

	merged, err := MergeHTP(existing, incoming)
	require.NoError(t, err)
	assert.True(t, merged.Preview)
}

func TestMergeHTPPriorityFallback(t *testing.T) {
	existing := &Frame{Universe: 1, SyncUniverse: 2, Priority: 150, Values: []byte{0, 1}}
	incoming := &Frame{Universe: 1, SyncUniverse: 2, Priority: 100, Values: []byte{0, 2}}

	merged, err := MergeHTP(existing, incoming)
	require.NoError(t, err)
	assert.Same(t, existing, merged)
}

func TestMergeHTPErrors(t *testing.T) {
	base := &Frame{Universe: 1, SyncUniverse: 2, Priority: 100, Values: []byte{0, 1}}

	t.Run("start code mismatch", func(t *testing.T) {
		other := &Frame{Universe: 1, SyncUniverse: 2, Priority: 100, Values: []byte{0xdd, 1}}
		_, err := MergeHTP(base, other)
		assert.ErrorIs(t, err, ErrDmxMerge)
	})

	t.Run("universe mismatch", func(t *testing.T) {
		other := &Frame{Universe: 9, SyncUniverse: 2, Priority: 100, Values: []byte{0, 1}}
		_, err := MergeHTP(base, other)
		assert.ErrorIs(t, err, ErrDmxMerge)
	})

	t.Run("sync universe mismatch", func(t *testing.T) {
		other := &Frame{Universe: 1, SyncUniverse: 9, Priority: 100, Values: []byte{0, 1}}
		_, err := MergeHTP(base, other)
		assert.ErrorIs(t, err, ErrDmxMerge)
	})

	t.Run("empty values", func(t *testing.T) {
		other := &Frame{Universe: 1, SyncUniverse: 2, Priority: 100}
		_, err := MergeHTP(base, other)
		assert.ErrorIs(t, err, ErrDmxMerge)
	})
}
