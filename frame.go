package sacn

import (
	"bytes"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Frame is one universe's worth of received DMX data, as delivered by
// Receiver.Recv.
type Frame struct {
	Universe uint16

	// Values holds the START code followed by up to 512 slots.
	Values []byte

	// SyncUniverse is the synchronization address the frame was held for;
	// zero for unsynchronized frames.
	SyncUniverse uint16

	Priority uint8

	// CID identifies the source; the zero UUID when the source is unknown.
	CID uuid.UUID

	Preview bool

	ReceivedAt time.Time
}

// StartCode returns the DMX START code, or zero for an empty frame.
func (f *Frame) StartCode() byte {
	if len(f.Values) == 0 {
		return 0
	}
	return f.Values[0]
}

// Equal reports whether two frames carry the same universe, synchronization
// universe and values. Priority, source, preview flag and timestamp are
// informational and not compared.
func (f *Frame) Equal(o *Frame) bool {
	return f.Universe == o.Universe &&
		f.SyncUniverse == o.SyncUniverse &&
		bytes.Equal(f.Values, o.Values)
}

// MergeFunc folds a newly arrived frame into one already pending for the
// same universe. The returned frame replaces the pending entry.
type MergeFunc func(existing, incoming *Frame) (*Frame, error)

// MergeKeepHigherPriority is the default merge: the higher-priority frame
// wins; on equal priority the newer frame wins.
func MergeKeepHigherPriority(existing, incoming *Frame) (*Frame, error) {
	if incoming.Priority >= existing.Priority {
		return incoming, nil
	}
	return existing, nil
}

// MergeHTP merges equal-priority frames slot-by-slot, highest takes
// precedence. Frames with differing priorities fall back to the
// higher-priority frame. The frames must agree on universe, synchronization
// universe and START code.
func MergeHTP(existing, incoming *Frame) (*Frame, error) {
	if existing.Universe != incoming.Universe {
		return nil, fmt.Errorf("universe %d vs %d: %w", existing.Universe, incoming.Universe, ErrDmxMerge)
	}
	if existing.SyncUniverse != incoming.SyncUniverse {
		return nil, fmt.Errorf("synchronization universe %d vs %d: %w", existing.SyncUniverse, incoming.SyncUniverse, ErrDmxMerge)
	}
	if len(existing.Values) == 0 || len(incoming.Values) == 0 {
		return nil, fmt.Errorf("empty frame values: %w", ErrDmxMerge)
	}
	if existing.StartCode() != incoming.StartCode() {
		return nil, fmt.Errorf("start code 0x%02x vs 0x%02x: %w", existing.StartCode(), incoming.StartCode(), ErrDmxMerge)
	}

	if existing.Priority != incoming.Priority {
		return MergeKeepHigherPriority(existing, incoming)
	}

	values := make([]byte, max(len(existing.Values), len(incoming.Values)))
	values[0] = existing.StartCode()
	for i := 1; i < len(values); i++ {
		var a, b byte
		if i < len(existing.Values) {
			a = existing.Values[i]
		}
		if i < len(incoming.Values) {
			b = incoming.Values[i]
		}
		values[i] = max(a, b)
	}

	merged := *incoming
	merged.Values = values
	merged.Preview = existing.Preview || incoming.Preview
	return &merged, nil
}
