package sacn

import (
	"time"

	"github.com/google/uuid"
)

// sequenceDiscardWindow is the rejection window for sequence numbers as per
// ANSI E1.31-2018 Section 6.7.2: a packet is discarded when the signed
// difference to the last accepted sequence is in (-20, 0].
const sequenceDiscardWindow = -20

type packetKind int

const (
	packetKindData packetKind = iota
	packetKindSync
	packetKindCount
)

type sequenceRecord struct {
	last uint8
	seen time.Time
}

// sourceRecords holds one sequence namespace per packet kind for a single
// source CID.
type sourceRecords struct {
	universes [packetKindCount]map[uint16]*sequenceRecord
}

func (s *sourceRecords) empty() bool {
	for _, m := range s.universes {
		if len(m) > 0 {
			return false
		}
	}
	return true
}

// sequenceTracker tracks the last accepted sequence number and receive time
// per (source CID, universe, packet kind). cap limits the number of distinct
// CIDs; zero means unlimited.
type sequenceTracker struct {
	cap     int
	sources map[uuid.UUID]*sourceRecords
}

func newSequenceTracker(cap int) *sequenceTracker {
	return &sequenceTracker{
		cap:     cap,
		sources: map[uuid.UUID]*sourceRecords{},
	}
}

// check applies the sequence window to a new packet, updating the record on
// acceptance. A previously unseen (CID, universe) pair is accepted as the
// baseline. The record is left untouched on rejection.
func (t *sequenceTracker) check(kind packetKind, cid uuid.UUID, universe uint16, seq uint8, now time.Time) error {
	src, ok := t.sources[cid]
	if !ok {
		if t.cap > 0 && len(t.sources) >= t.cap {
			return ErrSourcesExceeded
		}
		src = &sourceRecords{}
		for i := range src.universes {
			src.universes[i] = map[uint16]*sequenceRecord{}
		}
		t.sources[cid] = src
	}

	rec, ok := src.universes[kind][universe]
	if !ok {
		src.universes[kind][universe] = &sequenceRecord{last: seq, seen: now}
		return nil
	}

	// Wrapping subtraction reinterpreted as signed 8-bit.
	diff := int8(seq - rec.last)
	if diff <= 0 && diff > sequenceDiscardWindow {
		return &OutOfSequenceError{
			CID:      cid,
			Universe: universe,
			Got:      seq,
			Expected: rec.last,
			Diff:     diff,
		}
	}

	rec.last = seq
	rec.seen = now
	return nil
}

// expiredRecord identifies a (CID, universe) pair evicted by sweep.
type expiredRecord struct {
	cid      uuid.UUID
	universe uint16
	kind     packetKind
}

// sweep evicts every record whose last receive is older than timeout and
// returns the evictions. Sources left with no records are dropped.
func (t *sequenceTracker) sweep(now time.Time, timeout time.Duration) []expiredRecord {
	var expired []expiredRecord
	for cid, src := range t.sources {
		for kind, universes := range src.universes {
			for universe, rec := range universes {
				if now.Sub(rec.seen) >= timeout {
					delete(universes, universe)
					expired = append(expired, expiredRecord{
						cid:      cid,
						universe: universe,
						kind:     packetKind(kind),
					})
				}
			}
		}
		if src.empty() {
			delete(t.sources, cid)
		}
	}
	return expired
}

// forget drops all sequence state for a (CID, universe) pair across both
// packet kinds, reporting whether any state existed.
func (t *sequenceTracker) forget(cid uuid.UUID, universe uint16) bool {
	src, ok := t.sources[cid]
	if !ok {
		return false
	}

	existed := false
	for _, universes := range src.universes {
		if _, ok := universes[universe]; ok {
			delete(universes, universe)
			existed = true
		}
	}
	if src.empty() {
		delete(t.sources, cid)
	}
	return existed
}

func (t *sequenceTracker) reset() {
	t.sources = map[uuid.UUID]*sourceRecords{}
}

func (t *sequenceTracker) sourceCount() int {
	return len(t.sources)
}
