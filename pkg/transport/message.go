package transport

import "net"

// ReceivedMessage is one datagram read from the socket.
// Data is an owned copy; handlers may keep it.
type ReceivedMessage struct {
	Data []byte
	Addr net.Addr
}

// MessageHandler receives datagrams on the read loop goroutine.
// It should hand the datagram off quickly; the next read waits for it.
type MessageHandler func(msg *ReceivedMessage)
