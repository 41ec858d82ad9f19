package transport

import (
	"net"
)

// Factory opens sockets and resolves destinations for an exchange.
// Each call to CreateUDPConn yields a socket owned by the caller.
type Factory interface {
	// CreateUDPConn binds a datagram socket. Port 0 picks an ephemeral port.
	CreateUDPConn(port int) (net.PacketConn, error)

	// ResolveUDPAddr turns a host and port into a destination for WriteTo.
	ResolveUDPAddr(host string, port int) (net.Addr, error)
}

// UDPFactory opens real UDP sockets.
type UDPFactory struct {
	// ListenHost restricts the bind address (e.g. "127.0.0.1").
	// Empty binds all interfaces.
	ListenHost string
}

// CreateUDPConn binds a UDP socket on ListenHost:port.
func (f UDPFactory) CreateUDPConn(port int) (net.PacketConn, error) {
	if port < 0 || port > 0xFFFF {
		return nil, ValidatePort(port)
	}
	return net.ListenPacket("udp", JoinHostPort(f.ListenHost, port))
}

// ResolveUDPAddr resolves host through the system resolver.
func (f UDPFactory) ResolveUDPAddr(host string, port int) (net.Addr, error) {
	addr, err := ResolveUDPAddr(host, port)
	if err != nil {
		return nil, err
	}
	return addr, nil
}

var _ Factory = UDPFactory{}
