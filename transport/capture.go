package transport

import (
	"fmt"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// Capture is a receive-only PacketTransport that observes sACN traffic via
// packet capture instead of binding the sACN port. This requires root/admin
// privileges but avoids port conflicts with other sACN software on the same
// host.
type Capture struct {
	handle  *pcap.Handle
	packets chan gopacket.Packet
	closed  chan struct{}
}

// NewCapture opens iface for capture, filtered to UDP port 5568.
func NewCapture(iface string) (*Capture, error) {
	handle, err := pcap.OpenLive(iface, 1600, true, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("pcap open: %w", err)
	}

	if err := handle.SetBPFFilter("udp port 5568"); err != nil {
		handle.Close()
		return nil, fmt.Errorf("pcap filter: %w", err)
	}

	source := gopacket.NewPacketSource(handle, handle.LinkType())
	return &Capture{
		handle:  handle,
		packets: source.Packets(),
		closed:  make(chan struct{}),
	}, nil
}

func (c *Capture) SendTo(b []byte, addr *net.UDPAddr) error {
	return fmt.Errorf("send on capture transport: %w", ErrOsOperationUnsupported)
}

func (c *Capture) RecvFrom(buf []byte, timeout time.Duration) (int, *net.UDPAddr, error) {
	var timer <-chan time.Time
	if timeout >= 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	for {
		select {
		case pkt, ok := <-c.packets:
			if !ok {
				return 0, nil, ErrClosed
			}
			n, peer, ok := capturePayload(pkt, buf)
			if !ok {
				continue
			}
			return n, peer, nil
		case <-timer:
			return 0, nil, ErrTimeout
		case <-c.closed:
			return 0, nil, ErrClosed
		}
	}
}

// capturePayload extracts the UDP payload and source address from a captured
// packet.
func capturePayload(pkt gopacket.Packet, buf []byte) (int, *net.UDPAddr, bool) {
	udpLayer := pkt.Layer(layers.LayerTypeUDP)
	if udpLayer == nil {
		return 0, nil, false
	}
	udp, _ := udpLayer.(*layers.UDP)
	if udp == nil {
		return 0, nil, false
	}

	peer := &net.UDPAddr{Port: int(udp.SrcPort)}
	if ip4 := pkt.Layer(layers.LayerTypeIPv4); ip4 != nil {
		peer.IP = ip4.(*layers.IPv4).SrcIP
	} else if ip6 := pkt.Layer(layers.LayerTypeIPv6); ip6 != nil {
		peer.IP = ip6.(*layers.IPv6).SrcIP
	}

	n := copy(buf, udp.Payload)
	return n, peer, true
}

// JoinMulticast is a no-op: capture sees all traffic on the interface.
func (c *Capture) JoinMulticast(group *net.UDPAddr) error { return nil }

func (c *Capture) LeaveMulticast(group *net.UDPAddr) error { return nil }

func (c *Capture) SetMulticastLoop(on bool) error {
	return fmt.Errorf("multicast loop on capture transport: %w", ErrOsOperationUnsupported)
}

func (c *Capture) SetIPv6Only(on bool) error {
	return fmt.Errorf("ipv6-only on capture transport: %w", ErrOsOperationUnsupported)
}

func (c *Capture) MulticastEnabled() bool { return false }

func (c *Capture) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
		c.handle.Close()
	}
	return nil
}

// ListInterfaces returns network interfaces available for capture.
func ListInterfaces() ([]string, error) {
	devices, err := pcap.FindAllDevs()
	if err != nil {
		return nil, err
	}

	var names []string
	for _, dev := range devices {
		names = append(names, dev.Name)
	}
	return names, nil
}
