package hmr

import (
	"net"
	"strconv"
)

const loopbackHost = "localhost"

// SanitizeHost replaces wildcard and empty listen hosts with the loopback
// hostname so clients get an address they can actually fetch from.
func SanitizeHost(host string) string {
	switch host {
	case "", "::", "0.0.0.0", "[::]":
		return loopbackHost
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		return loopbackHost
	}
	return host
}

// PackagerHost returns the host and port clients should use for follow-up
// asset fetches, derived from the listening address.
func PackagerHost(addr net.Addr) (string, int) {
	if addr == nil {
		return loopbackHost, 0
	}
	if tcp, ok := addr.(*net.TCPAddr); ok {
		host := ""
		if tcp.IP != nil {
			host = tcp.IP.String()
		}
		return SanitizeHost(host), tcp.Port
	}
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return loopbackHost, 0
	}
	port, _ := strconv.Atoi(portStr)
	return SanitizeHost(host), port
}
