package sacn

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	cidA = uuid.UUID{0xaa, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	cidB = uuid.UUID{0xbb, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
)

func TestSequenceBaseline(t *testing.T) {
	tr := newSequenceTracker(0)
	now := time.Now()

	// First packet from an unknown (CID, universe) is always accepted.
	assert.NoError(t, tr.check(packetKindData, cidA, 1, 200, now))
	assert.Equal(t, 1, tr.sourceCount())
}

func TestSequenceWindow(t *testing.T) {
	tests := []struct {
		last   uint8
		next   uint8
		reject bool
	}{
		{0, 1, false},
		{1, 0, true},    // diff -1
		{1, 1, true},    // diff 0
		{100, 81, true},  // diff -19, inside the window
		{100, 80, false}, // diff -20, outside the window
		{100, 99, true},
		{255, 0, false}, // wraparound, diff 1
		{0, 255, true},  // diff -1 across the wrap
		{250, 10, false},
		{10, 250, true}, // diff -16
	}

	for _, tt := range tests {
		tr := newSequenceTracker(0)
		now := time.Now()
		require.NoError(t, tr.check(packetKindData, cidA, 1, tt.last, now))

		err := tr.check(packetKindData, cidA, 1, tt.next, now)
		if tt.reject {
			var oos *OutOfSequenceError
			require.ErrorAs(t, err, &oos, "last %d next %d", tt.last, tt.next)
			assert.Equal(t, tt.next, oos.Got)
			assert.Equal(t, tt.last, oos.Expected)

			// Rejection leaves the record unchanged: the packet after the
			// last accepted one still passes.
			assert.NoError(t, tr.check(packetKindData, cidA, 1, tt.last+1, now))
		} else {
			assert.NoError(t, err, "last %d next %d", tt.last, tt.next)
		}
	}
}

func TestSequenceRejectionDiff(t *testing.T) {
	tr := newSequenceTracker(0)
	now := time.Now()

	require.NoError(t, tr.check(packetKindData, cidA, 1, 0, now))
	require.NoError(t, tr.check(packetKindData, cidA, 1, 1, now))

	err := tr.check(packetKindData, cidA, 1, 0, now)
	var oos *OutOfSequenceError
	require.ErrorAs(t, err, &oos)
	assert.Equal(t, uint8(0), oos.Got)
	assert.Equal(t, uint8(1), oos.Expected)
	assert.Equal(t, int8(-1), oos.Diff)
}

func TestSequenceIndependence(t *testing.T) {
	tr := newSequenceTracker(0)
	now := time.Now()

	require.NoError(t, tr.check(packetKindData, cidA, 1, 10, now))

	// Same CID and universe, sync namespace: independent baseline.
	assert.NoError(t, tr.check(packetKindSync, cidA, 1, 10, now))

	// Same CID, different universe: independent.
	assert.NoError(t, tr.check(packetKindData, cidA, 2, 10, now))

	// Different CID, same universe: independent.
	assert.NoError(t, tr.check(packetKindData, cidB, 1, 10, now))

	// A stale data sequence does not disturb sync acceptance.
	assert.Error(t, tr.check(packetKindData, cidA, 1, 10, now))
	assert.NoError(t, tr.check(packetKindSync, cidA, 1, 11, now))
}

func TestSequenceSourceCap(t *testing.T) {
	tr := newSequenceTracker(1)
	now := time.Now()

	require.NoError(t, tr.check(packetKindData, cidA, 1, 0, now))

	err := tr.check(packetKindData, cidB, 1, 0, now)
	assert.ErrorIs(t, err, ErrSourcesExceeded)

	// The rejected source must not be tracked.
	assert.Equal(t, 1, tr.sourceCount())

	// The established source keeps working.
	assert.NoError(t, tr.check(packetKindData, cidA, 1, 1, now))
}

func TestSequenceSweep(t *testing.T) {
	tr := newSequenceTracker(0)
	start := time.Now()

	require.NoError(t, tr.check(packetKindData, cidA, 1, 0, start))
	require.NoError(t, tr.check(packetKindData, cidA, 2, 0, start.Add(time.Second)))

	expired := tr.sweep(start.Add(2500*time.Millisecond), 2500*time.Millisecond)
	require.Len(t, expired, 1)
	assert.Equal(t, cidA, expired[0].cid)
	assert.Equal(t, uint16(1), expired[0].universe)
	assert.Equal(t, packetKindData, expired[0].kind)
	assert.Equal(t, 1, tr.sourceCount())

	expired = tr.sweep(start.Add(4*time.Second), 2500*time.Millisecond)
	require.Len(t, expired, 1)
	assert.Equal(t, 0, tr.sourceCount())

	// After eviction the source re-baselines at any sequence.
	assert.NoError(t, tr.check(packetKindData, cidA, 1, 77, start.Add(4*time.Second)))
}

func TestSequenceForget(t *testing.T) {
	tr := newSequenceTracker(0)
	now := time.Now()

	require.NoError(t, tr.check(packetKindData, cidA, 1, 0, now))
	require.NoError(t, tr.check(packetKindSync, cidA, 1, 0, now))

	assert.True(t, tr.forget(cidA, 1))
	assert.Equal(t, 0, tr.sourceCount())
	assert.False(t, tr.forget(cidA, 1))
}
