package sacn

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gopatchy/sacn/metrics"
	"github.com/gopatchy/sacn/packet"
	"github.com/gopatchy/sacn/transport"
)

// maxDatagramSize covers the largest legal sACN packet: a full discovery
// page (120 header bytes + 512 universes).
const maxDatagramSize = 1144

// Receiver ingests sACN packets from a transport and delivers DMX frames,
// applying sequence arbitration, synchronization hold-and-release, source
// timeout tracking and universe discovery reassembly.
//
// A Receiver is single-threaded: Recv blocks its caller and all state is
// owned by it. Use one Receiver per goroutine.
type Receiver struct {
	t   transport.PacketTransport
	log *slog.Logger
	met *ReceiverMetrics

	universes map[uint16]bool
	seq       *sequenceTracker
	buf       *syncBuffer
	merge     MergeFunc

	partial    map[uuid.UUID]*DiscoveredSource
	discovered map[uuid.UUID]*DiscoveredSource

	processPreview      bool
	announceDiscovery   bool
	announceTermination bool
	announceTimeout     bool
	multicastEnabled    bool

	sourceCap   int
	dataTimeout time.Duration
	srcTimeout  time.Duration

	events  []error
	readBuf []byte
	now     func() time.Time
}

// ReceiverMetrics aliases the metrics bundle to keep the option signature
// local to this package.
type ReceiverMetrics = metrics.Receiver

// ReceiverOption configures a Receiver at construction.
type ReceiverOption func(*Receiver) error

// WithSourceCap limits the number of distinct source CIDs tracked. A cap of
// zero is invalid; an unset cap means unlimited.
func WithSourceCap(n int) ReceiverOption {
	return func(r *Receiver) error {
		if n <= 0 {
			return fmt.Errorf("source cap %d: must be positive", n)
		}
		r.sourceCap = n
		return nil
	}
}

// WithMergeFunc sets the merge applied when a second frame arrives for a
// universe that already has one pending synchronization.
func WithMergeFunc(f MergeFunc) ReceiverOption {
	return func(r *Receiver) error {
		r.merge = f
		return nil
	}
}

// WithLogger sets the structured logger; defaults to slog.Default().
func WithLogger(log *slog.Logger) ReceiverOption {
	return func(r *Receiver) error {
		r.log = log
		return nil
	}
}

// WithReceiverMetrics attaches Prometheus collectors to the receive path.
func WithReceiverMetrics(m *ReceiverMetrics) ReceiverOption {
	return func(r *Receiver) error {
		r.met = m
		return nil
	}
}

// NewReceiver creates a receiver on an existing transport and registers the
// discovery universe.
func NewReceiver(t transport.PacketTransport, opts ...ReceiverOption) (*Receiver, error) {
	r := &Receiver{
		t:                t,
		log:              slog.Default(),
		universes:        map[uint16]bool{},
		buf:              newSyncBuffer(),
		merge:            MergeKeepHigherPriority,
		partial:          map[uuid.UUID]*DiscoveredSource{},
		discovered:       map[uuid.UUID]*DiscoveredSource{},
		multicastEnabled: t.MulticastEnabled(),
		dataTimeout:      packet.NetworkDataLossTimeout,
		srcTimeout:       packet.NetworkDataLossTimeout,
		readBuf:          make([]byte, maxDatagramSize),
		now:              time.Now,
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.seq = newSequenceTracker(r.sourceCap)

	if err := r.registerUniverse(packet.DiscoveryUniverse); err != nil {
		return nil, err
	}
	return r, nil
}

// NewReceiverIP creates a receiver bound to addr on a fresh UDP transport.
// iface, if non-nil, selects the interface for multicast group membership.
func NewReceiverIP(addr *net.UDPAddr, iface *net.Interface, opts ...ReceiverOption) (*Receiver, error) {
	t, err := transport.NewUDP(addr, iface)
	if err != nil {
		return nil, err
	}
	r, err := NewReceiver(t, opts...)
	if err != nil {
		t.Close()
		return nil, err
	}
	return r, nil
}

// groupAddr picks the multicast group for a universe matching the
// transport's IP version.
func (r *Receiver) groupAddr(universe uint16) *net.UDPAddr {
	if la, ok := r.t.(interface{ LocalAddr() *net.UDPAddr }); ok {
		if ip := la.LocalAddr().IP; ip != nil && ip.To4() == nil {
			return packet.MulticastAddrIPv6(universe)
		}
	}
	return packet.MulticastAddr(universe)
}

// registerUniverse records a universe for listening and joins its multicast
// group when multicast is available.
func (r *Receiver) registerUniverse(universe uint16) error {
	if r.universes[universe] {
		return nil
	}
	if r.multicastEnabled {
		if err := r.t.JoinMulticast(r.groupAddr(universe)); err != nil {
			return fmt.Errorf("join universe %d: %w", universe, err)
		}
	}
	r.universes[universe] = true
	return nil
}

// ListenUniverses registers each universe for listening, joining the
// corresponding multicast groups. Every universe is validated before any is
// registered.
func (r *Receiver) ListenUniverses(universes ...uint16) error {
	for _, u := range universes {
		if u != packet.DiscoveryUniverse {
			if err := packet.ValidateUniverse(u); err != nil {
				return err
			}
		}
	}
	for _, u := range universes {
		if err := r.registerUniverse(u); err != nil {
			return err
		}
	}
	return nil
}

// MuteUniverse stops listening to a universe, leaving its multicast group.
func (r *Receiver) MuteUniverse(universe uint16) error {
	if !r.universes[universe] {
		return fmt.Errorf("universe %d: %w", universe, ErrUniverseNotFound)
	}
	delete(r.universes, universe)
	if r.multicastEnabled {
		if err := r.t.LeaveMulticast(r.groupAddr(universe)); err != nil {
			return fmt.Errorf("leave universe %d: %w", universe, err)
		}
	}
	return nil
}

// Universes returns the universes currently registered for listening, in
// ascending order.
func (r *Receiver) Universes() []uint16 {
	out := make([]uint16, 0, len(r.universes))
	for u := range r.universes {
		out = append(out, u)
	}
	slices.Sort(out)
	return out
}

// SetProcessPreviewData controls whether preview-flagged data is delivered;
// off by default.
func (r *Receiver) SetProcessPreviewData(on bool) { r.processPreview = on }

// SetAnnounceSourceDiscovery controls whether Recv surfaces
// SourceDiscoveredError events; off by default.
func (r *Receiver) SetAnnounceSourceDiscovery(on bool) { r.announceDiscovery = on }

// SetAnnounceStreamTermination controls whether Recv surfaces
// UniverseTerminatedError events; off by default.
func (r *Receiver) SetAnnounceStreamTermination(on bool) { r.announceTermination = on }

// SetAnnounceTimeout controls whether Recv surfaces UniverseTimeoutError
// events; off by default.
func (r *Receiver) SetAnnounceTimeout(on bool) { r.announceTimeout = on }

// SetMergeFunc replaces the pending-frame merge policy.
func (r *Receiver) SetMergeFunc(f MergeFunc) { r.merge = f }

// SetIPv6Only restricts an IPv6 socket to IPv6 traffic only.
func (r *Receiver) SetIPv6Only(on bool) error { return r.t.SetIPv6Only(on) }

// MulticastEnabled reports whether multicast group membership is in use.
func (r *Receiver) MulticastEnabled() bool { return r.multicastEnabled }

// SetMulticastEnabled toggles multicast group membership. Enabling it on a
// transport without multicast support fails; registered universes are not
// retroactively joined.
func (r *Receiver) SetMulticastEnabled(on bool) error {
	if on && !r.t.MulticastEnabled() {
		return transport.ErrOsOperationUnsupported
	}
	r.multicastEnabled = on
	return nil
}

// ResetSources wipes all sequence arbitration and discovery state.
func (r *Receiver) ResetSources() {
	r.seq.reset()
	r.partial = map[uuid.UUID]*DiscoveredSource{}
	r.discovered = map[uuid.UUID]*DiscoveredSource{}
}

// ClearWaitingData discards the frame pending synchronization for a single
// universe, reporting whether one existed.
func (r *Receiver) ClearWaitingData(universe uint16) bool {
	if _, ok := r.buf.pending[universe]; !ok {
		return false
	}
	r.buf.remove(universe)
	return true
}

// ClearAllWaitingData discards every frame pending synchronization.
func (r *Receiver) ClearAllWaitingData() {
	r.buf.clear()
}

// DiscoveredSources returns the completed discovery registry, after
// expiring entries not refreshed within the source timeout.
func (r *Receiver) DiscoveredSources() []DiscoveredSource {
	r.expireSources(r.now())

	out := make([]DiscoveredSource, 0, len(r.discovered))
	for _, s := range r.discovered {
		out = append(out, s.clone())
	}
	slices.SortFunc(out, func(a, b DiscoveredSource) int {
		return slices.Compare(a.CID[:], b.CID[:])
	})
	return out
}

// Close releases the underlying transport.
func (r *Receiver) Close() error {
	return r.t.Close()
}

// onlyDiscoveryRegistered reports the degenerate listening state in which a
// blocking Recv could never return.
func (r *Receiver) onlyDiscoveryRegistered() bool {
	return len(r.universes) == 1 && r.universes[packet.DiscoveryUniverse]
}

// Recv blocks up to timeout and returns the next batch of released frames
// or a protocol event as an error. A negative timeout blocks until a result
// is available; a zero timeout runs the timer sweeps and returns ErrTimeout
// without touching the socket.
func (r *Receiver) Recv(timeout time.Duration) ([]Frame, error) {
	blockForever := timeout < 0
	if blockForever && r.onlyDiscoveryRegistered() && !r.announceDiscovery {
		return nil, ErrNoDataUniverses
	}

	deadline := time.Now().Add(timeout)
	for {
		r.sweep(r.now())

		if len(r.events) > 0 {
			ev := r.events[0]
			r.events = r.events[1:]
			return nil, ev
		}

		// Cap the socket timeout at the data loss timeout so timer sweeps
		// keep running under long caller timeouts.
		readTimeout := r.dataTimeout
		if !blockForever {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return nil, fmt.Errorf("recv: %w", ErrTimeout)
			}
			readTimeout = min(readTimeout, remaining)
		}

		n, peer, err := r.t.RecvFrom(r.readBuf, readTimeout)
		if err != nil {
			if transport.IsTimeout(err) {
				continue
			}
			return nil, fmt.Errorf("recv: %w", err)
		}

		pkt, err := packet.Parse(r.readBuf[:n])
		if err != nil {
			// A malformed datagram is non-fatal; drop it and read on.
			r.log.Debug("dropping unparseable datagram", "peer", peer, "len", n, "err", err)
			if r.met != nil {
				r.met.ParseErrors.Inc()
			}
			continue
		}

		frames, err := r.dispatch(pkt, r.now())
		if err != nil {
			return nil, err
		}
		if len(frames) > 0 {
			if r.met != nil {
				r.met.FramesDelivered.Add(float64(len(frames)))
			}
			return frames, nil
		}
	}
}

// sweep runs the periodic timer work: sequence record eviction, pending
// frame expiry and discovery source expiry.
func (r *Receiver) sweep(now time.Time) {
	for _, e := range r.seq.sweep(now, r.dataTimeout) {
		if e.kind != packetKindData {
			continue
		}
		r.log.Debug("universe timed out", "universe", e.universe, "source", e.cid)
		if r.announceTimeout {
			r.events = append(r.events, &UniverseTimeoutError{CID: e.cid, Universe: e.universe})
		}
	}
	r.buf.sweep(now, r.dataTimeout)
	r.expireSources(now)

	if r.met != nil {
		r.met.PendingFrames.Set(float64(r.buf.len()))
		r.met.TrackedSources.Set(float64(r.seq.sourceCount()))
	}
}

// expireSources drops partial and completed discovery entries not refreshed
// within the source timeout.
func (r *Receiver) expireSources(now time.Time) {
	for cid, s := range r.partial {
		if now.Sub(s.LastUpdated) >= r.srcTimeout {
			delete(r.partial, cid)
		}
	}
	for cid, s := range r.discovered {
		if now.Sub(s.LastUpdated) >= r.srcTimeout {
			delete(r.discovered, cid)
		}
	}
}

func (r *Receiver) dispatch(pkt packet.Packet, now time.Time) ([]Frame, error) {
	switch p := pkt.(type) {
	case *packet.DataPacket:
		if r.met != nil {
			r.met.PacketsReceived.WithLabelValues("data").Inc()
		}
		return r.handleData(p, now)
	case *packet.SyncPacket:
		if r.met != nil {
			r.met.PacketsReceived.WithLabelValues("sync").Inc()
		}
		return r.handleSync(p, now)
	case *packet.DiscoveryPacket:
		if r.met != nil {
			r.met.PacketsReceived.WithLabelValues("discovery").Inc()
		}
		return nil, r.handleDiscovery(p, now)
	default:
		return nil, nil
	}
}

func (r *Receiver) handleData(p *packet.DataPacket, now time.Time) ([]Frame, error) {
	// Preview data is dropped before any sequence arbitration as per ANSI
	// E1.31-2018 Section 6.2.6.
	if p.Preview && !r.processPreview {
		return nil, nil
	}

	if p.Terminated {
		existed := r.seq.forget(p.CID, p.Universe)
		for _, s := range r.partial {
			if s.CID == p.CID {
				s.removeUniverse(p.Universe)
			}
		}
		for _, s := range r.discovered {
			if s.CID == p.CID {
				s.removeUniverse(p.Universe)
			}
		}
		if existed {
			r.log.Debug("stream terminated", "universe", p.Universe, "source", p.CID)
			if r.announceTermination {
				return nil, &UniverseTerminatedError{CID: p.CID, Universe: p.Universe}
			}
		}
		return nil, nil
	}

	if !r.universes[p.Universe] {
		return nil, nil
	}

	if err := r.seq.check(packetKindData, p.CID, p.Universe, p.Sequence, now); err != nil {
		var oos *OutOfSequenceError
		if r.met != nil && errors.As(err, &oos) {
			r.met.OutOfSequence.Inc()
		}
		return nil, err
	}

	frame := Frame{
		Universe:     p.Universe,
		Values:       p.Data,
		SyncUniverse: p.SyncAddr,
		Priority:     p.Priority,
		CID:          p.CID,
		Preview:      p.Preview,
		ReceivedAt:   now,
	}

	if p.SyncAddr == 0 {
		// Unsynchronized data acts immediately and invalidates anything
		// still holding for this universe.
		r.buf.remove(p.Universe)
		return []Frame{frame}, nil
	}

	if err := r.registerUniverse(p.SyncAddr); err != nil {
		return nil, err
	}
	if err := r.buf.insert(&frame, r.merge); err != nil {
		return nil, err
	}
	return nil, nil
}

func (r *Receiver) handleSync(p *packet.SyncPacket, now time.Time) ([]Frame, error) {
	if !r.universes[p.SyncAddr] {
		return nil, nil
	}

	// Synchronization packets sequence-number in their own namespace.
	if err := r.seq.check(packetKindSync, p.CID, p.SyncAddr, p.Sequence, now); err != nil {
		return nil, err
	}

	return r.buf.drain(p.SyncAddr, now, r.dataTimeout), nil
}

func (r *Receiver) handleDiscovery(p *packet.DiscoveryPacket, now time.Time) error {
	s, ok := r.partial[p.CID]
	if !ok {
		s = newDiscoveredSource(p, now)
		r.partial[p.CID] = s
	} else {
		s.applyPage(p, now)
	}

	if !s.complete() {
		return nil
	}

	delete(r.partial, p.CID)
	r.discovered[p.CID] = s
	r.log.Debug("source discovery complete", "source", p.CID, "name", s.Name, "universes", len(s.Universes()))
	if r.announceDiscovery {
		return &SourceDiscoveredError{Name: s.Name}
	}
	return nil
}
