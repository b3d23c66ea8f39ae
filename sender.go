package sacn

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gopatchy/sacn/metrics"
	"github.com/gopatchy/sacn/packet"
	"github.com/gopatchy/sacn/transport"
)

// Sender transmits sACN data, synchronization and universe discovery
// packets. All methods are safe for concurrent use; the background
// discovery task shares the same state guard.
type Sender struct {
	t   transport.PacketTransport
	log *slog.Logger
	met *SenderMetrics

	name string
	cid  uuid.UUID

	mu               sync.Mutex
	sequences        map[uint16]uint8
	syncSequences    map[uint16]uint8
	universes        map[uint16]bool
	preview          bool
	sendingDiscovery bool
	closed           bool
	corrupt          bool

	done              chan struct{}
	discoveryInterval time.Duration
}

// SenderMetrics aliases the metrics bundle to keep the option signature
// local to this package.
type SenderMetrics = metrics.Sender

// SenderOption configures a Sender at construction.
type SenderOption func(*Sender) error

// WithCID fixes the sender's CID instead of generating a random one.
func WithCID(cid uuid.UUID) SenderOption {
	return func(s *Sender) error {
		s.cid = cid
		return nil
	}
}

// WithSenderLogger sets the structured logger; defaults to slog.Default().
func WithSenderLogger(log *slog.Logger) SenderOption {
	return func(s *Sender) error {
		s.log = log
		return nil
	}
}

// WithSenderMetrics attaches Prometheus collectors to the send path.
func WithSenderMetrics(m *SenderMetrics) SenderOption {
	return func(s *Sender) error {
		s.met = m
		return nil
	}
}

// NewSender creates a sender on an existing transport and starts its
// background discovery task. Discovery packets are only transmitted once
// SetIsSendingDiscovery(true) is called.
func NewSender(t transport.PacketTransport, name string, opts ...SenderOption) (*Sender, error) {
	if len(name) > packet.SourceNameLen-1 {
		return nil, fmt.Errorf("source name %d bytes, max %d: %w", len(name), packet.SourceNameLen-1, ErrMalformedSourceName)
	}

	s := &Sender{
		t:                 t,
		log:               slog.Default(),
		name:              name,
		cid:               uuid.New(),
		sequences:         map[uint16]uint8{},
		syncSequences:     map[uint16]uint8{},
		universes:         map[uint16]bool{},
		done:              make(chan struct{}),
		discoveryInterval: packet.DiscoveryInterval,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	go s.discoveryLoop()
	return s, nil
}

// NewSenderIP creates a sender bound to addr on a fresh UDP transport.
func NewSenderIP(addr *net.UDPAddr, name string, opts ...SenderOption) (*Sender, error) {
	t, err := transport.NewUDP(addr, nil)
	if err != nil {
		return nil, err
	}
	s, err := NewSender(t, name, opts...)
	if err != nil {
		t.Close()
		return nil, err
	}
	return s, nil
}

// CID returns the sender's component identifier.
func (s *Sender) CID() uuid.UUID { return s.cid }

// locked runs f under the state guard. A panic inside f poisons the sender:
// every later operation fails with ErrSourceCorrupt.
func (s *Sender) locked(f func() error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.corrupt {
		return ErrSourceCorrupt
	}

	defer func() {
		if r := recover(); r != nil {
			s.corrupt = true
			err = fmt.Errorf("%v: %w", r, ErrSourceCorrupt)
		}
	}()
	return f()
}

// multicastAddr picks the multicast group for a universe matching the
// transport's IP version.
func (s *Sender) multicastAddr(universe uint16) *net.UDPAddr {
	if la, ok := s.t.(interface{ LocalAddr() *net.UDPAddr }); ok {
		if ip := la.LocalAddr().IP; ip != nil && ip.To4() == nil {
			return packet.MulticastAddrIPv6(universe)
		}
	}
	return packet.MulticastAddr(universe)
}

// RegisterUniverse reserves a sequence counter for a universe and includes
// it in discovery advertisements.
func (s *Sender) RegisterUniverse(universe uint16) error {
	return s.RegisterUniverses([]uint16{universe})
}

// RegisterUniverses registers several universes; every universe is
// validated before any is registered.
func (s *Sender) RegisterUniverses(universes []uint16) error {
	for _, u := range universes {
		if err := packet.ValidateUniverse(u); err != nil {
			return err
		}
	}
	return s.locked(func() error {
		if s.closed {
			return ErrSenderClosed
		}
		for _, u := range universes {
			if !s.universes[u] {
				s.universes[u] = true
				s.sequences[u] = 0
			}
		}
		return nil
	})
}

// Universes returns the registered universes in ascending order.
func (s *Sender) Universes() []uint16 {
	var out []uint16
	s.locked(func() error {
		out = s.registeredUniverses()
		return nil
	})
	return out
}

// registeredUniverses must be called with the state guard held.
func (s *Sender) registeredUniverses() []uint16 {
	out := make([]uint16, 0, len(s.universes))
	for u := range s.universes {
		out = append(out, u)
	}
	slices.Sort(out)
	return out
}

// SendOptions adjusts a Send call. The zero value sends at the default
// priority, unsynchronized, to each universe's multicast group.
type SendOptions struct {
	// Priority for every emitted packet; zero means DefaultPriority.
	Priority uint8

	// Dst overrides the destination address; nil means the per-universe
	// multicast group.
	Dst *net.UDPAddr

	// SyncUniverse, when nonzero, is embedded in every packet so receivers
	// hold the data until a synchronization packet for it arrives.
	SyncUniverse uint16
}

// Send fragments data left-to-right into 513-byte chunks, one per universe,
// and transmits each chunk as a data packet carrying that universe's next
// sequence number.
func (s *Sender) Send(universes []uint16, data []byte, opts *SendOptions) error {
	if opts == nil {
		opts = &SendOptions{}
	}

	priority := opts.Priority
	if priority == 0 {
		priority = packet.DefaultPriority
	}
	if priority > packet.MaxPriority {
		return fmt.Errorf("priority %d, max %d: %w", priority, packet.MaxPriority, ErrInvalidPriority)
	}
	if opts.SyncUniverse != 0 {
		if err := packet.ValidateUniverse(opts.SyncUniverse); err != nil {
			return err
		}
	}
	for _, u := range universes {
		if err := packet.ValidateUniverse(u); err != nil {
			return err
		}
	}
	if len(data) > len(universes)*packet.UniverseChannelCapacity {
		return fmt.Errorf("%d bytes across %d universes: %w", len(data), len(universes), ErrExceedUniverseCapacity)
	}

	return s.locked(func() error {
		if s.closed {
			return ErrSenderClosed
		}
		for _, u := range universes {
			if !s.universes[u] {
				return fmt.Errorf("universe %d: %w", u, ErrUniverseNotRegistered)
			}
		}

		for i, u := range universes {
			start := i * packet.UniverseChannelCapacity
			if start >= len(data) {
				break
			}
			chunk := data[start:min(start+packet.UniverseChannelCapacity, len(data))]

			if err := s.sendChunk(u, chunk, priority, opts); err != nil {
				return err
			}
		}
		return nil
	})
}

// sendChunk must be called with the state guard held.
func (s *Sender) sendChunk(universe uint16, chunk []byte, priority uint8, opts *SendOptions) error {
	seq := s.sequences[universe]
	s.sequences[universe] = seq + 1

	p := &packet.DataPacket{
		CID:        s.cid,
		SourceName: s.name,
		Priority:   priority,
		SyncAddr:   opts.SyncUniverse,
		Sequence:   seq,
		Preview:    s.preview,
		Universe:   universe,
		Data:       chunk,
	}
	buf, err := p.Pack()
	if err != nil {
		return err
	}

	dst := opts.Dst
	if dst == nil {
		dst = s.multicastAddr(universe)
	}
	if err := s.t.SendTo(buf, dst); err != nil {
		return fmt.Errorf("send universe %d: %w", universe, err)
	}
	if s.met != nil {
		s.met.PacketsSent.WithLabelValues("data").Inc()
	}
	return nil
}

// SendSyncPacket transmits one synchronization packet for syncUniverse,
// releasing any data held for it at the receivers. dst nil means the sync
// universe's multicast group.
func (s *Sender) SendSyncPacket(syncUniverse uint16, dst *net.UDPAddr) error {
	if err := packet.ValidateUniverse(syncUniverse); err != nil {
		return err
	}

	return s.locked(func() error {
		if s.closed {
			return ErrSenderClosed
		}

		seq := s.syncSequences[syncUniverse]
		s.syncSequences[syncUniverse] = seq + 1

		p := &packet.SyncPacket{
			CID:      s.cid,
			Sequence: seq,
			SyncAddr: syncUniverse,
		}
		buf, err := p.Pack()
		if err != nil {
			return err
		}

		if dst == nil {
			dst = s.multicastAddr(syncUniverse)
		}
		if err := s.t.SendTo(buf, dst); err != nil {
			return fmt.Errorf("send sync %d: %w", syncUniverse, err)
		}
		if s.met != nil {
			s.met.PacketsSent.WithLabelValues("sync").Inc()
		}
		return nil
	})
}

// TerminateStream transmits three stream-terminated data packets for a
// universe as per ANSI E1.31-2018 Section 6.2.6, then deregisters it.
func (s *Sender) TerminateStream(universe uint16, startCode byte) error {
	if err := packet.ValidateUniverse(universe); err != nil {
		return err
	}

	return s.locked(func() error {
		if s.closed {
			return ErrSenderClosed
		}
		if !s.universes[universe] {
			return fmt.Errorf("universe %d: %w", universe, ErrUniverseNotRegistered)
		}
		return s.terminateUniverse(universe, startCode)
	})
}

// terminateUniverse must be called with the state guard held.
func (s *Sender) terminateUniverse(universe uint16, startCode byte) error {
	for range 3 {
		seq := s.sequences[universe]
		s.sequences[universe] = seq + 1

		p := &packet.DataPacket{
			CID:        s.cid,
			SourceName: s.name,
			Priority:   packet.DefaultPriority,
			Sequence:   seq,
			Preview:    s.preview,
			Terminated: true,
			Universe:   universe,
			Data:       []byte{startCode},
		}
		buf, err := p.Pack()
		if err != nil {
			return err
		}
		if err := s.t.SendTo(buf, s.multicastAddr(universe)); err != nil {
			return fmt.Errorf("terminate universe %d: %w", universe, err)
		}
		if s.met != nil {
			s.met.PacketsSent.WithLabelValues("data").Inc()
		}
	}

	delete(s.universes, universe)
	delete(s.sequences, universe)
	return nil
}

// SetPreviewMode flags all subsequently sent data as preview-only.
func (s *Sender) SetPreviewMode(on bool) error {
	return s.locked(func() error {
		if s.closed {
			return ErrSenderClosed
		}
		s.preview = on
		return nil
	})
}

// SetIsSendingDiscovery controls the periodic universe discovery
// advertisement; off by default.
func (s *Sender) SetIsSendingDiscovery(on bool) error {
	return s.locked(func() error {
		if s.closed {
			return ErrSenderClosed
		}
		s.sendingDiscovery = on
		return nil
	})
}

// SetMulticastLoop controls whether this host receives its own multicast
// transmissions.
func (s *Sender) SetMulticastLoop(on bool) error {
	return s.t.SetMulticastLoop(on)
}

func (s *Sender) discoveryLoop() {
	ticker := time.NewTicker(s.discoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.SendDiscovery(); err != nil && !errors.Is(err, ErrSenderClosed) {
				s.log.Debug("discovery send failed", "err", err)
			}
		}
	}
}

// SendDiscovery transmits one round of universe discovery pages covering
// the registered universe set, 512 universes per page. It is a no-op while
// discovery sending is off.
func (s *Sender) SendDiscovery() error {
	return s.locked(func() error {
		if s.closed {
			return ErrSenderClosed
		}
		if !s.sendingDiscovery {
			return nil
		}

		universes := s.registeredUniverses()
		lastPage := 0
		if len(universes) > 0 {
			lastPage = (len(universes) - 1) / packet.DiscoveryUniversesPerPage
		}

		dst := s.multicastAddr(packet.DiscoveryUniverse)
		for page := 0; page <= lastPage; page++ {
			start := page * packet.DiscoveryUniversesPerPage
			end := min(start+packet.DiscoveryUniversesPerPage, len(universes))

			p := &packet.DiscoveryPacket{
				CID:        s.cid,
				SourceName: s.name,
				Page:       uint8(page),
				LastPage:   uint8(lastPage),
				Universes:  universes[start:end],
			}
			buf, err := p.Pack()
			if err != nil {
				return err
			}
			if err := s.t.SendTo(buf, dst); err != nil {
				return fmt.Errorf("send discovery page %d: %w", page, err)
			}
			if s.met != nil {
				s.met.PacketsSent.WithLabelValues("discovery").Inc()
			}
		}
		return nil
	})
}

// Close terminates the stream on every registered universe with three
// stream-terminated packets each, stops the discovery task and releases the
// transport. Close is idempotent.
func (s *Sender) Close() error {
	already := false
	err := s.locked(func() error {
		if s.closed {
			already = true
			return nil
		}
		s.closed = true
		close(s.done)

		for _, u := range s.registeredUniverses() {
			if terr := s.terminateUniverse(u, 0); terr != nil {
				s.log.Debug("termination failed", "universe", u, "err", terr)
			}
		}
		return nil
	})
	if already {
		return err
	}
	if cerr := s.t.Close(); err == nil {
		err = cerr
	}
	return err
}
