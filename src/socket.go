/*
Multikast
Multicast group listen/talk tool.
Multicast socket setup.
*/
package main

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// Types
type GroupConn struct {
	/* A UDP socket bound to '(group, port)' with SO_REUSEADDR set
	and joined to the multicast group. Exactly one of p4/p6 is set,
	matching the address family of the group. */
	conn  net.PacketConn
	p4    *ipv4.PacketConn
	p6    *ipv6.PacketConn
	group *net.UDPAddr
}

// Core functions
func NewGroupConn(group net.IP, port uint16, iface IfaceSelector) (*GroupConn, error) {
	/* Build the bound, group-joined multicast socket. */
	if group == nil {
		return nil, fmt.Errorf("no multicast group address given")
	}
	if !group.IsMulticast() {
		return nil, fmt.Errorf("group address %v is not multicast", group)
	}

	gaddr := &net.UDPAddr{IP: group, Port: int(port)}

	if group.To4() != nil {
		return newGroupConn4(gaddr, iface)
	}
	return newGroupConn6(gaddr, iface)
}

func newGroupConn4(gaddr *net.UDPAddr, iface IfaceSelector) (*GroupConn, error) {
	/* IPv4 groups join via one of the interface's IPv4 addresses.
	Index 0 is the flag default and means "let the kernel pick". */
	var ifi *net.Interface

	switch {
	case iface.IsIndex && iface.Index == 0:
		// default interface

	case iface.IsIndex:
		return nil, fmt.Errorf("IPv4 group %v must be joined via an interface IPv4 address, got index %d", gaddr.IP, iface.Index)

	default:
		var err error
		ifi, err = interfaceByIPv4(iface.Addr)
		if err != nil {
			return nil, err
		}
	}

	conn, err := listenReuse("udp4", gaddr)
	if err != nil {
		return nil, err
	}

	pc := ipv4.NewPacketConn(conn)
	if err := pc.JoinGroup(ifi, gaddr); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cannot join multicast group %v on interface %v: %w", gaddr.IP, iface, err)
	}

	// Destination in control messages is best effort, only debug
	// output depends on it.
	_ = pc.SetControlMessage(ipv4.FlagDst, true)

	return &GroupConn{conn: conn, p4: pc, group: gaddr}, nil
}

func newGroupConn6(gaddr *net.UDPAddr, iface IfaceSelector) (*GroupConn, error) {
	/* IPv6 groups join via the interface's numeric index. */
	if !iface.IsIndex {
		return nil, fmt.Errorf("IPv6 group %v must be joined via an interface index, got address %v", gaddr.IP, iface.Addr)
	}

	var ifi *net.Interface
	if iface.Index != 0 {
		var err error
		ifi, err = net.InterfaceByIndex(int(iface.Index))
		if err != nil {
			return nil, fmt.Errorf("cannot find the interface with index %d: %w", iface.Index, err)
		}
	}

	conn, err := listenReuse("udp6", gaddr)
	if err != nil {
		return nil, err
	}

	pc := ipv6.NewPacketConn(conn)
	if err := pc.JoinGroup(ifi, gaddr); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cannot join multicast group %v on interface %v: %w", gaddr.IP, iface, err)
	}

	_ = pc.SetControlMessage(ipv6.FlagDst, true)

	return &GroupConn{conn: conn, p6: pc, group: gaddr}, nil
}

func listenReuse(network string, gaddr *net.UDPAddr) (net.PacketConn, error) {
	/* Bind to the group address and port with SO_REUSEADDR, so that
	several processes can subscribe to the same group. The kernel
	rewrites a multicast bind address to the wildcard, so other
	traffic to the same port can reach this socket; the receive
	loops filter on the destination from the control message. */
	lc := net.ListenConfig{Control: reuseAddr}
	conn, err := lc.ListenPacket(context.Background(), network, gaddr.String())
	if err != nil {
		return nil, fmt.Errorf("cannot listen to %v: %w", gaddr, err)
	}
	return conn, nil
}

// Receivers
func (gc *GroupConn) ReadFrom(b []byte) (int, net.IP, net.Addr, error) {
	/* Receive one datagram. The returned IP is the destination
	address from the control message, nil when unavailable. */
	if gc.p4 != nil {
		n, cm, src, err := gc.p4.ReadFrom(b)
		var dst net.IP
		if cm != nil {
			dst = cm.Dst
		}
		return n, dst, src, err
	}

	n, cm, src, err := gc.p6.ReadFrom(b)
	var dst net.IP
	if cm != nil {
		dst = cm.Dst
	}
	return n, dst, src, err
}

func (gc *GroupConn) AcceptsDst(dst net.IP) bool {
	/* Whether a received datagram was addressed to the joined
	group. The wildcard-bound socket can see datagrams for other
	destinations on the same port; those are dropped. A nil
	destination means control messages are unavailable, then
	everything is let through. */
	return dst == nil || dst.Equal(gc.group.IP)
}

func (gc *GroupConn) WriteTo(b []byte) (int, error) {
	/* Send one datagram to the group. */
	return gc.conn.WriteTo(b, gc.group)
}

func (gc *GroupConn) LocalAddr() net.Addr {
	return gc.conn.LocalAddr()
}

func (gc *GroupConn) Close() error {
	return gc.conn.Close()
}
