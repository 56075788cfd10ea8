// Package netinfo finds the LAN address phones should connect to.
package netinfo

import (
	"context"
	"net"
	"slices"

	psnet "github.com/shirou/gopsutil/v3/net"
)

const fallbackIP = "127.0.0.1"

// LocalIPv4 returns the first IPv4 address of an up, non-loopback interface,
// or 127.0.0.1 when none is found.
func LocalIPv4(ctx context.Context) string {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return fallbackIP
	}
	return pickIPv4(ifaces)
}

func pickIPv4(ifaces psnet.InterfaceStatList) string {
	for _, iface := range ifaces {
		if !slices.Contains(iface.Flags, "up") || slices.Contains(iface.Flags, "loopback") {
			continue
		}
		for _, addr := range iface.Addrs {
			ip, _, err := net.ParseCIDR(addr.Addr)
			if err != nil {
				ip = net.ParseIP(addr.Addr)
			}
			if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
				continue
			}
			if v4 := ip.To4(); v4 != nil {
				return v4.String()
			}
		}
	}
	return fallbackIP
}
