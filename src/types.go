/*
Multikast
Multicast group listen/talk tool.
Shared data types.
*/
package main

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
)

// Modes
const (
	ModeListen = "listen"
	ModeTalk   = "talk"
)

// Types
type CliArg struct {
	/* CLI configuration for multikast.
	Shared - used both in Listener and Talker. */

	Iface       IfaceSelector `short:"i" default:"0" help:"Interface for the multicast join, given as OS index or as one of its IPv4 addresses."`
	Group       net.IP        `short:"a" default:"0.0.0.0" help:"Multicast group address, IPv4 or IPv6."`
	Port        uint16        `short:"p" help:"UDP port of the multicast group."`
	Mode        string        `short:"m" required:"" enum:"listen,talk" help:"Run as listener or talker."`
	ConfigFile  string        `name:"config" help:"YAML file with multicast subscriptions. Listen mode only, replaces -i/-a/-p."`
	MetricsPort uint16        `name:"metrics-port" help:"Expose Prometheus counters on this port. Listen mode only."`
	IsDebug     bool          `short:"d" help:"Enable debug mode"`
}
type IfaceSelector struct {
	/* Identifies the local interface used for the group join:
	either by OS-assigned numeric index or by one of its IPv4
	addresses. Exactly one variant is set. */
	IsIndex bool
	Index   uint32
	Addr    net.IP
}
type MulticastGroup struct {
	/* One subscription entry of the listener configuration file. */
	Name       string `yaml:"name"`
	Iface      string `yaml:"interface"`
	GrpAddress string `yaml:"group_address"`
	Port       uint16 `yaml:"port"`
}
type MulticastGroups []MulticastGroup
type McastListenConfig struct {
	/* Listener only. */
	MulticastGroups `yaml:"multicast_channels"`
}
type Subscription struct {
	/* Listener only. A resolved MulticastGroup. */
	Name       string
	Iface      IfaceSelector
	GrpAddress net.IP
	Port       uint16
}
type ReceivedDatagram struct {
	/* Listener only. One datagram reported over the fan-in channel. */
	GroupName  string
	SrcAddress net.Addr
	GrpAddress net.IP
	Port       uint16
	Bytes      int
}
type PrometheusMetrics struct {
	/* Listener only. */
	multicastPacketsReceived *prometheus.CounterVec
	multicastBytesReceived   *prometheus.CounterVec
}

// Constructors for the two selector variants
func IfaceIndex(index uint32) IfaceSelector {
	return IfaceSelector{IsIndex: true, Index: index}
}

func IfaceAddr(addr net.IP) IfaceSelector {
	return IfaceSelector{Addr: addr}
}

func parseIfaceSelector(s string) (IfaceSelector, error) {
	/* Parser for the two selector syntaxes: an unsigned 32-bit
	integer is an interface index, anything else must be an IPv4
	address of the interface. */
	if index, err := strconv.ParseUint(s, 10, 32); err == nil {
		return IfaceIndex(uint32(index)), nil
	}

	// Plain IPv4 only, mapped IPv6 spellings do not name an interface
	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is4() {
		return IfaceSelector{}, fmt.Errorf("'%v' is neither an interface index nor an IPv4 interface address", s)
	}

	return IfaceAddr(net.IP(addr.AsSlice())), nil
}

func (is IfaceSelector) String() string {
	if is.IsIndex {
		return strconv.FormatUint(uint64(is.Index), 10)
	}
	return is.Addr.String()
}

// Receivers for parsing
func (is *IfaceSelector) Decode(ctx *kong.DecodeContext) error {
	/* Custom parser for Kong for the interface selector */
	var v string
	if err := ctx.Scan.PopValueInto("interface", &v); err != nil {
		return err
	}

	sel, err := parseIfaceSelector(v)
	if err != nil {
		return err
	}

	*is = sel

	// Return error
	return nil
}

func (mg MulticastGroup) Resolve() (Subscription, error) {
	/* Validate one configuration entry and parse its interface
	selector and group address. */
	sel := IfaceIndex(0)
	if mg.Iface != "" {
		var err error
		sel, err = parseIfaceSelector(mg.Iface)
		if err != nil {
			return Subscription{}, err
		}
	}

	ip := net.ParseIP(mg.GrpAddress)
	if ip == nil {
		return Subscription{}, fmt.Errorf("'%v' is not a valid IP address", mg.GrpAddress)
	}

	if mg.Port == 0 {
		return Subscription{}, fmt.Errorf("no UDP port given for group %v", mg.GrpAddress)
	}

	return Subscription{Name: mg.Name, Iface: sel, GrpAddress: ip, Port: mg.Port}, nil
}
