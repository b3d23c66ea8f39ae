// Package transport abstracts the datagram socket underneath the sACN
// receiver and sender. The UDP implementation owns a real socket; Pipe is an
// in-memory substitute for tests and Capture observes traffic via pcap
// without binding the sACN port.
package transport

import (
	"errors"
	"net"
	"time"
)

// Errors surfaced by transports. ErrTimeout covers both would-block and
// deadline-exceeded socket conditions; use IsTimeout to match either it or a
// net.Error timeout.
var (
	ErrTimeout                = errors.New("receive timed out")
	ErrClosed                 = errors.New("transport closed")
	ErrOsOperationUnsupported = errors.New("operation unsupported on this platform")
	ErrIpVersion              = errors.New("address ip version mismatch")
	ErrUnsupportedIpVersion   = errors.New("unsupported ip version")
)

// PacketTransport is the socket contract consumed by the receiver and
// sender cores.
//
// RecvFrom blocks for at most timeout; a negative timeout blocks until a
// datagram arrives or the transport is closed. All other operations are
// non-blocking.
type PacketTransport interface {
	SendTo(b []byte, addr *net.UDPAddr) error
	RecvFrom(buf []byte, timeout time.Duration) (int, *net.UDPAddr, error)

	JoinMulticast(group *net.UDPAddr) error
	LeaveMulticast(group *net.UDPAddr) error

	SetMulticastLoop(on bool) error
	SetIPv6Only(on bool) error

	// MulticastEnabled reports whether multicast group membership is
	// available on this transport and platform.
	MulticastEnabled() bool

	Close() error
}

// IsTimeout reports whether err is a transport or socket timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
