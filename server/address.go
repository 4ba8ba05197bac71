package server

import "strings"

// ParseAddress splits "tcp://host:port" or "unix:///path" into a
// network and an address. A bare address is TCP.
func ParseAddress(addr string) (network, address string) {
	if proto, rest, ok := strings.Cut(addr, "://"); ok {
		return proto, rest
	}
	return "tcp", addr
}
