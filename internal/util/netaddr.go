package util

import "net"

// LocalIPv4 returns the first IPv4 address found on an interface that is up
// and not a loopback address. It returns nil when no such address exists.
func LocalIPv4() net.IP {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip4 := ip.To4(); ip4 != nil && !ip4.IsLoopback() {
				return ip4
			}
		}
	}
	return nil
}

// AdvertiseIP picks the address put into an outbound offer: the explicit
// override when it parses, otherwise LocalIPv4, otherwise loopback.
func AdvertiseIP(override string) net.IP {
	if override != "" {
		if ip := net.ParseIP(override); ip != nil {
			return ip
		}
		LogWarning("ignoring invalid advertise address %q", override)
	}
	if ip := LocalIPv4(); ip != nil {
		return ip
	}
	return net.IPv4(127, 0, 0, 1)
}
