package sacn

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/gopatchy/sacn/transport"
)

var (
	// ErrSourcesExceeded is returned when a packet from a new source would
	// push the tracked-source count past the configured cap.
	ErrSourcesExceeded = errors.New("tracked source limit reached")

	// ErrUniverseNotFound is returned when muting a universe that was never
	// registered for listening.
	ErrUniverseNotFound = errors.New("universe not registered for listening")

	// ErrSourceNotFound is returned when an operation names a source CID
	// that is not currently tracked.
	ErrSourceNotFound = errors.New("source not found")

	// ErrUniverseNotRegistered is returned when sending on a universe the
	// sender has not registered.
	ErrUniverseNotRegistered = errors.New("universe not registered")

	// ErrInvalidPriority is returned when sending with a priority above
	// MaxPriority.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrExceedUniverseCapacity is returned when payload data does not fit
	// the universes it is addressed to.
	ErrExceedUniverseCapacity = errors.New("universe capacity exceeded")

	// ErrMalformedSourceName is returned for source names that cannot be
	// packed into the 64-byte field.
	ErrMalformedSourceName = errors.New("malformed source name")

	// ErrSenderClosed is returned by operations on a sender after Close has
	// terminated its streams.
	ErrSenderClosed = errors.New("sender already terminated")

	// ErrSourceCorrupt marks a sender whose guarded state was poisoned by a
	// panic. The sender is unusable from then on.
	ErrSourceCorrupt = errors.New("sender state corrupt")

	// ErrDmxMerge is returned when a merge function cannot combine two
	// frames.
	ErrDmxMerge = errors.New("dmx merge failed")

	// ErrNoDataUniverses is returned by a blocking Recv that could never
	// produce a result because only the discovery universe is registered
	// and discovery announcements are off.
	ErrNoDataUniverses = errors.New("no data universes registered")
)

// ErrTimeout is returned by Recv when the caller's timeout elapses without a
// deliverable result.
var ErrTimeout = transport.ErrTimeout

// OutOfSequenceError reports a packet rejected by the sequence window. The
// stored sequence state is left unchanged.
type OutOfSequenceError struct {
	CID      uuid.UUID
	Universe uint16
	Got      uint8
	Expected uint8
	Diff     int8
}

func (e *OutOfSequenceError) Error() string {
	return fmt.Sprintf("out of sequence: universe %d source %s got %d after %d (diff %d)",
		e.Universe, e.CID, e.Got, e.Expected, e.Diff)
}

// UniverseTerminatedError reports that a source terminated its stream on a
// universe. Returned from Recv only when termination announcements are on.
type UniverseTerminatedError struct {
	CID      uuid.UUID
	Universe uint16
}

func (e *UniverseTerminatedError) Error() string {
	return fmt.Sprintf("universe %d terminated by source %s", e.Universe, e.CID)
}

// UniverseTimeoutError reports that a source went silent on a universe for
// the network data loss timeout. Returned from Recv only when timeout
// announcements are on.
type UniverseTimeoutError struct {
	CID      uuid.UUID
	Universe uint16
}

func (e *UniverseTimeoutError) Error() string {
	return fmt.Sprintf("universe %d timed out for source %s", e.Universe, e.CID)
}

// SourceDiscoveredError reports that a source's universe discovery pages
// completed. Returned from Recv only when discovery announcements are on.
type SourceDiscoveredError struct {
	Name string
}

func (e *SourceDiscoveredError) Error() string {
	return fmt.Sprintf("source discovered: %s", e.Name)
}
