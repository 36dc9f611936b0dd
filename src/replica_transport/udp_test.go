package replica_transport

import (
	"net"
	"testing"
	"time"

	"github.com/5jayarama/raftkv/src/logging"
	"github.com/5jayarama/raftkv/src/wire_messages"
)

// fakeControlPlane binds the socket replicas send to and lets tests observe
// and answer datagrams.
type fakeControlPlane struct {
	conn *net.UDPConn
}

func startFakeControlPlane(t *testing.T) *fakeControlPlane {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("binding control plane socket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &fakeControlPlane{conn: conn}
}

func (plane *fakeControlPlane) port() int {
	return plane.conn.LocalAddr().(*net.UDPAddr).Port
}

func (plane *fakeControlPlane) read(t *testing.T) ([]byte, *net.UDPAddr) {
	t.Helper()
	plane.conn.SetReadDeadline(time.Now().Add(time.Second))
	buffer := make([]byte, 65535)
	length, sender, err := plane.conn.ReadFromUDP(buffer)
	if err != nil {
		t.Fatalf("reading datagram: %v", err)
	}
	return buffer[:length], sender
}

func createTestLogger() *logging.Logger {
	logs := make(chan logging.LoggerEntry, 1000)
	go func() {
		for range logs {
		}
	}()
	return logging.CreateLogger("[TEST]", logs)
}

func TestUdpTransport(t *testing.T) {
	t.Run("sends a single JSON datagram per message", func(t *testing.T) {
		plane := startFakeControlPlane(t)
		transport, err := CreateUdpTransport(plane.port(), createTestLogger())
		if err != nil {
			t.Fatalf("creating transport: %v", err)
		}
		defer transport.Close()

		err = transport.Send(&wire_messages.Hello{
			Header: wire_messages.Header{Src: "0001", Dst: "FFFF", Leader: "FFFF"},
		})
		if err != nil {
			t.Fatalf("send failed: %v", err)
		}

		data, _ := plane.read(t)
		msg, err := wire_messages.Decode(data)
		if err != nil {
			t.Fatalf("decoding sent datagram: %v", err)
		}
		hello, ok := msg.(*wire_messages.Hello)
		if !ok {
			t.Fatalf("expected a hello, got %T", msg)
		}
		if hello.Src != "0001" || hello.Dst != "FFFF" {
			t.Errorf("expected envelope 0001->FFFF, got %s->%s", hello.Src, hello.Dst)
		}
	})

	t.Run("receives a datagram within the bounded wait", func(t *testing.T) {
		plane := startFakeControlPlane(t)
		transport, err := CreateUdpTransport(plane.port(), createTestLogger())
		if err != nil {
			t.Fatalf("creating transport: %v", err)
		}
		defer transport.Close()

		// learn the transport's address through a send
		if err := transport.Send(&wire_messages.Hello{
			Header: wire_messages.Header{Src: "0001", Dst: "FFFF", Leader: "FFFF"},
		}); err != nil {
			t.Fatalf("send failed: %v", err)
		}
		_, sender := plane.read(t)

		payload, err := wire_messages.Encode(&wire_messages.Update{
			Header: wire_messages.Header{Src: "0002", Dst: "0001", Leader: "0002"},
			Term:   1,
		})
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		if _, err := plane.conn.WriteToUDP(payload, sender); err != nil {
			t.Fatalf("writing datagram: %v", err)
		}

		msg, ok := transport.Receive(time.Second)
		if !ok {
			t.Fatal("expected a message within the wait")
		}
		update, isUpdate := msg.(*wire_messages.Update)
		if !isUpdate {
			t.Fatalf("expected an update, got %T", msg)
		}
		if update.Term != 1 || update.Leader != "0002" {
			t.Error("expected update fields to survive the round trip")
		}
	})

	t.Run("returns false when the wait elapses", func(t *testing.T) {
		plane := startFakeControlPlane(t)
		transport, err := CreateUdpTransport(plane.port(), createTestLogger())
		if err != nil {
			t.Fatalf("creating transport: %v", err)
		}
		defer transport.Close()

		started := time.Now()
		msg, ok := transport.Receive(50 * time.Millisecond)
		if ok {
			t.Fatalf("expected no message, got %T", msg)
		}
		if elapsed := time.Since(started); elapsed < 50*time.Millisecond {
			t.Errorf("expected the wait to be honored, returned after %s", elapsed)
		}
	})

	t.Run("drops a malformed datagram", func(t *testing.T) {
		plane := startFakeControlPlane(t)
		transport, err := CreateUdpTransport(plane.port(), createTestLogger())
		if err != nil {
			t.Fatalf("creating transport: %v", err)
		}
		defer transport.Close()

		if err := transport.Send(&wire_messages.Hello{
			Header: wire_messages.Header{Src: "0001", Dst: "FFFF", Leader: "FFFF"},
		}); err != nil {
			t.Fatalf("send failed: %v", err)
		}
		_, sender := plane.read(t)

		if _, err := plane.conn.WriteToUDP([]byte("not json"), sender); err != nil {
			t.Fatalf("writing datagram: %v", err)
		}

		if _, ok := transport.Receive(100 * time.Millisecond); ok {
			t.Fatal("expected the malformed datagram to be dropped")
		}
	})
}
