package transport

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// PipeNetwork is an in-memory datagram fabric. Every Pipe bound to it can
// send to any other by address, and multicast groups deliver to every
// member. Used by tests in place of real sockets.
type PipeNetwork struct {
	mu    sync.Mutex
	pipes map[string]*Pipe
}

// NewPipeNetwork creates an empty fabric.
func NewPipeNetwork() *PipeNetwork {
	return &PipeNetwork{pipes: map[string]*Pipe{}}
}

type pipeDatagram struct {
	payload []byte
	from    *net.UDPAddr
}

// Pipe is one endpoint on a PipeNetwork.
type Pipe struct {
	net    *PipeNetwork
	addr   *net.UDPAddr
	queue  chan pipeDatagram
	mu     sync.Mutex
	groups map[string]bool
	closed chan struct{}
	once   sync.Once
}

// Bind attaches a new endpoint at addr. Binding the same address twice
// replaces the earlier endpoint.
func (n *PipeNetwork) Bind(addr *net.UDPAddr) *Pipe {
	p := &Pipe{
		net:    n,
		addr:   addr,
		queue:  make(chan pipeDatagram, 256),
		groups: map[string]bool{},
		closed: make(chan struct{}),
	}
	n.mu.Lock()
	n.pipes[addr.String()] = p
	n.mu.Unlock()
	return p
}

// LocalAddr returns the bound address.
func (p *Pipe) LocalAddr() *net.UDPAddr {
	return p.addr
}

func (p *Pipe) deliver(d pipeDatagram) {
	select {
	case p.queue <- d:
	default:
		// queue full: drop, like a real socket buffer
	}
}

func (p *Pipe) SendTo(b []byte, addr *net.UDPAddr) error {
	select {
	case <-p.closed:
		return ErrClosed
	default:
	}

	payload := make([]byte, len(b))
	copy(payload, b)
	d := pipeDatagram{payload: payload, from: p.addr}

	p.net.mu.Lock()
	defer p.net.mu.Unlock()

	if addr.IP.IsMulticast() {
		key := addr.IP.String()
		for _, member := range p.net.pipes {
			member.mu.Lock()
			joined := member.groups[key]
			member.mu.Unlock()
			if joined {
				member.deliver(d)
			}
		}
		return nil
	}

	if target, ok := p.net.pipes[addr.String()]; ok {
		target.deliver(d)
	}
	return nil
}

func (p *Pipe) RecvFrom(buf []byte, timeout time.Duration) (int, *net.UDPAddr, error) {
	var timer <-chan time.Time
	if timeout >= 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case d := <-p.queue:
		n := copy(buf, d.payload)
		return n, d.from, nil
	case <-timer:
		return 0, nil, ErrTimeout
	case <-p.closed:
		return 0, nil, ErrClosed
	}
}

func (p *Pipe) JoinMulticast(group *net.UDPAddr) error {
	if !group.IP.IsMulticast() {
		return fmt.Errorf("join %s: not a multicast group", group.IP)
	}
	p.mu.Lock()
	p.groups[group.IP.String()] = true
	p.mu.Unlock()
	return nil
}

func (p *Pipe) LeaveMulticast(group *net.UDPAddr) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.groups[group.IP.String()] {
		return fmt.Errorf("leave %s: not joined", group.IP)
	}
	delete(p.groups, group.IP.String())
	return nil
}

func (p *Pipe) SetMulticastLoop(on bool) error { return nil }

func (p *Pipe) SetIPv6Only(on bool) error { return nil }

func (p *Pipe) MulticastEnabled() bool { return true }

func (p *Pipe) Close() error {
	p.once.Do(func() {
		close(p.closed)
		p.net.mu.Lock()
		if p.net.pipes[p.addr.String()] == p {
			delete(p.net.pipes, p.addr.String())
		}
		p.net.mu.Unlock()
	})
	return nil
}
