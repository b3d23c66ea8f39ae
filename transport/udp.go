package transport

import (
	"context"
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
	"golang.org/x/sys/unix"
)

// UDP is the standard PacketTransport over a UDP socket. The socket is
// opened with address reuse so several receivers on one host can share the
// sACN port.
type UDP struct {
	conn  *net.UDPConn
	p4    *ipv4.PacketConn
	p6    *ipv6.PacketConn
	iface *net.Interface
}

// NewUDP binds a UDP socket at addr. The IP version of addr selects an IPv4
// or IPv6 socket. iface, if non-nil, is used for multicast group membership
// and outgoing multicast.
func NewUDP(addr *net.UDPAddr, iface *net.Interface) (*UDP, error) {
	network := "udp4"
	if addr.IP != nil && addr.IP.To4() == nil {
		network = "udp6"
	}

	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var serr error
			err := c.Control(func(fd uintptr) {
				serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
				if serr != nil {
					return
				}
				serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return serr
		},
	}

	pc, err := lc.ListenPacket(context.Background(), network, addr.String())
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	conn := pc.(*net.UDPConn)

	u := &UDP{conn: conn, iface: iface}
	if network == "udp4" {
		u.p4 = ipv4.NewPacketConn(conn)
		if iface != nil {
			if err := u.p4.SetMulticastInterface(iface); err != nil {
				conn.Close()
				return nil, fmt.Errorf("multicast interface: %w", err)
			}
		}
	} else {
		u.p6 = ipv6.NewPacketConn(conn)
		if iface != nil {
			if err := u.p6.SetMulticastInterface(iface); err != nil {
				conn.Close()
				return nil, fmt.Errorf("multicast interface: %w", err)
			}
		}
	}
	return u, nil
}

// LocalAddr returns the bound socket address.
func (u *UDP) LocalAddr() *net.UDPAddr {
	return u.conn.LocalAddr().(*net.UDPAddr)
}

func (u *UDP) SendTo(b []byte, addr *net.UDPAddr) error {
	_, err := u.conn.WriteToUDP(b, addr)
	return err
}

func (u *UDP) RecvFrom(buf []byte, timeout time.Duration) (int, *net.UDPAddr, error) {
	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := u.conn.SetReadDeadline(deadline); err != nil {
		return 0, nil, err
	}

	n, peer, err := u.conn.ReadFromUDP(buf)
	if err != nil {
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			return 0, nil, fmt.Errorf("%s: %w", err, ErrTimeout)
		}
		return 0, nil, err
	}
	return n, peer, nil
}

func (u *UDP) JoinMulticast(group *net.UDPAddr) error {
	if u.p4 != nil {
		if group.IP.To4() == nil {
			return fmt.Errorf("join %s on ipv4 socket: %w", group.IP, ErrIpVersion)
		}
		return u.p4.JoinGroup(u.iface, &net.UDPAddr{IP: group.IP})
	}
	if group.IP.To4() != nil {
		return fmt.Errorf("join %s on ipv6 socket: %w", group.IP, ErrIpVersion)
	}
	return u.p6.JoinGroup(u.iface, &net.UDPAddr{IP: group.IP})
}

func (u *UDP) LeaveMulticast(group *net.UDPAddr) error {
	if u.p4 != nil {
		if group.IP.To4() == nil {
			return fmt.Errorf("leave %s on ipv4 socket: %w", group.IP, ErrIpVersion)
		}
		return u.p4.LeaveGroup(u.iface, &net.UDPAddr{IP: group.IP})
	}
	if group.IP.To4() != nil {
		return fmt.Errorf("leave %s on ipv6 socket: %w", group.IP, ErrIpVersion)
	}
	return u.p6.LeaveGroup(u.iface, &net.UDPAddr{IP: group.IP})
}

func (u *UDP) SetMulticastLoop(on bool) error {
	if u.p4 != nil {
		return u.p4.SetMulticastLoopback(on)
	}
	return u.p6.SetMulticastLoopback(on)
}

// SetMulticastTTL sets the hop limit for outgoing multicast datagrams.
func (u *UDP) SetMulticastTTL(ttl int) error {
	if u.p4 != nil {
		return u.p4.SetMulticastTTL(ttl)
	}
	return u.p6.SetMulticastHopLimit(ttl)
}

func (u *UDP) SetIPv6Only(on bool) error {
	if u.p6 == nil {
		return fmt.Errorf("ipv6-only on ipv4 socket: %w", ErrOsOperationUnsupported)
	}
	raw, err := u.conn.SyscallConn()
	if err != nil {
		return err
	}
	val := 0
	if on {
		val = 1
	}
	var serr error
	if err := raw.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, val)
	}); err != nil {
		return err
	}
	if serr != nil {
		return fmt.Errorf("ipv6-only: %w", ErrOsOperationUnsupported)
	}
	return nil
}

func (u *UDP) MulticastEnabled() bool {
	return true
}

func (u *UDP) Close() error {
	return u.conn.Close()
}
