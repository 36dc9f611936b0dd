package replica_transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/5jayarama/raftkv/src/logging"
	"github.com/5jayarama/raftkv/src/wire_messages"
)

const maxDatagramSize = 65535

// UdpTransport speaks one-JSON-object-per-datagram to the local control
// plane socket. The local socket is bound to an ephemeral port; all sends
// target localhost:<port> and the control plane routes by the dst field.
type UdpTransport struct {
	conn   *net.UDPConn
	target *net.UDPAddr
	buffer []byte
	logger *logging.Logger
}

func CreateUdpTransport(port int, logger *logging.Logger) (*UdpTransport, error) {
	local := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
	conn, err := net.ListenUDP("udp4", local)
	if err != nil {
		return nil, fmt.Errorf("binding datagram socket: %w", err)
	}

	return &UdpTransport{
		conn:   conn,
		target: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port},
		buffer: make([]byte, maxDatagramSize),
		logger: logger,
	}, nil
}

func (transport *UdpTransport) Close() error {
	return transport.conn.Close()
}

func (transport *UdpTransport) Send(msg wire_messages.Message) error {
	data, err := wire_messages.Encode(msg)
	if err != nil {
		return fmt.Errorf("encoding %s message: %w", msg.MessageType(), err)
	}

	if _, err := transport.conn.WriteToUDP(data, transport.target); err != nil {
		return fmt.Errorf("sending %s message to %s: %w", msg.MessageType(), msg.Envelope().Dst, err)
	}
	return nil
}

func (transport *UdpTransport) Receive(wait time.Duration) (wire_messages.Message, bool) {
	if wait < 0 {
		wait = 0
	}
	if err := transport.conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		transport.logger.Logf("failed to set read deadline: %v", err)
		return nil, false
	}

	length, _, err := transport.conn.ReadFromUDP(transport.buffer)
	if err != nil {
		if !errors.Is(err, os.ErrDeadlineExceeded) {
			transport.logger.Logf("receive error: %v", err)
		}
		return nil, false
	}

	msg, err := wire_messages.Decode(transport.buffer[:length])
	if err != nil {
		// Dropped like any lost datagram; the sender's retries cover it.
		transport.logger.Logf("dropping datagram: %v", err)
		return nil, false
	}
	return msg, true
}
