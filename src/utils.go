/*
Multikast
Multicast group listen/talk tool.
Shared functions
*/
package main

// Import
import (
	"fmt"
	"net"
)

// Functions
func interfaceByIPv4(ip net.IP) (*net.Interface, error) {
	/* Helper function to find the local interface owning the given
	IPv4 address. */
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, ifi := range ifaces {
		addrs, err := ifi.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			var aip net.IP
			switch v := a.(type) {
			case *net.IPNet:
				aip = v.IP
			case *net.IPAddr:
				aip = v.IP
			}
			if aip != nil && aip.Equal(ip) {
				found := ifi
				return &found, nil
			}
		}
	}

	return nil, fmt.Errorf("no interface has the address %v", ip)
}

func srcHost(addr net.Addr) string {
	/* Helper function to strip the port from a sender address. */
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
