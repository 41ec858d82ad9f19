package transport

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ValidatePort rejects ports outside 1..65535.
func ValidatePort(port int) error {
	if port <= 0 || port > 0xFFFF {
		return fmt.Errorf("%w: port %d", ErrInvalidAddress, port)
	}
	return nil
}

// JoinHostPort formats host and port for net.ResolveUDPAddr, stripping the
// brackets of an IPv6 literal if the caller already added them.
func JoinHostPort(host string, port int) string {
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// ResolveUDPAddr resolves host and port into a UDP destination.
func ResolveUDPAddr(host string, port int) (*net.UDPAddr, error) {
	if host == "" {
		return nil, fmt.Errorf("%w: empty host", ErrInvalidAddress)
	}
	if err := ValidatePort(port); err != nil {
		return nil, err
	}
	addr, err := net.ResolveUDPAddr("udp", JoinHostPort(host, port))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return addr, nil
}
