package relay_test

import (
	"bytes"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"go.klb.dev/vmc/internal/relay"
)

// echoListener starts a TCP echo server and returns its port.
func echoListener(t *testing.T) (port uint16, closeFn func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				io.Copy(c, c)
			}(c)
		}
	}()
	addr := ln.Addr().(*net.TCPAddr)
	return uint16(addr.Port), func() { ln.Close() }
}

// requestResponseListener starts a TCP server that reads each connection to
// EOF, then writes trailer back and closes it. It lets tests exercise a
// client half-close while the backend still has a reply in flight.
// received returns the first non-empty request; the empty connection that
// waitForListener's probe produces through the relay is skipped.
func requestResponseListener(t *testing.T, trailer []byte) (port uint16, received func() []byte, closeFn func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	requests := make(chan []byte, 8)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				data, _ := io.ReadAll(c)
				c.Write(trailer)
				requests <- data
			}(c)
		}
	}()
	addr := ln.Addr().(*net.TCPAddr)
	var got []byte
	received = func() []byte {
		for got == nil {
			if data := <-requests; len(data) > 0 {
				got = data
			}
		}
		return got
	}
	return uint16(addr.Port), received, func() { ln.Close() }
}

func freeHostPort(t *testing.T) uint16 {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return uint16(ln.Addr().(*net.TCPAddr).Port)
}

func TestRelayTransparency(t *testing.T) {
	guestPort, closeGuest := echoListener(t)
	defer closeGuest()

	c := relay.NewController()
	go c.Run()
	defer c.Stop()

	hostPort := freeHostPort(t)
	c.UpdateRoutingRule(hostPort, relay.Rule{GuestIP: "127.0.0.1", GuestPort: guestPort})

	// Give the controller's accept loop time to start listening.
	waitForListener(t, hostPort)

	for _, n := range []int{1, 64, 1024 * 1024} {
		conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", itoa(hostPort)))
		if err != nil {
			t.Fatalf("dial front: %v", err)
		}

		payload := bytes.Repeat([]byte{0xAB}, n)
		go func() {
			conn.Write(payload)
		}()

		got := make([]byte, n)
		if _, err := io.ReadFull(conn, got); err != nil {
			t.Fatalf("n=%d: read: %v", n, err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("n=%d: echoed bytes mismatch", n)
		}
		conn.Close()
	}
}

// TestRelayHalfCloseLetsBackendRespondAfterClientDone exercises the
// asymmetric-timing case spec.md §4.7 describes: a client finishes sending
// and half-closes, but the backend still has a reply in flight and the
// relay must deliver it intact rather than tearing the whole splice down
// the instant one direction sees its own EOF.
func TestRelayHalfCloseLetsBackendRespondAfterClientDone(t *testing.T) {
	trailer := bytes.Repeat([]byte{0xCD}, 4096)
	guestPort, received, closeGuest := requestResponseListener(t, trailer)
	defer closeGuest()

	c := relay.NewController()
	go c.Run()
	defer c.Stop()

	hostPort := freeHostPort(t)
	c.UpdateRoutingRule(hostPort, relay.Rule{GuestIP: "127.0.0.1", GuestPort: guestPort})
	waitForListener(t, hostPort)

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", itoa(hostPort)))
	if err != nil {
		t.Fatalf("dial front: %v", err)
	}
	defer conn.Close()

	request := []byte("request body")
	if _, err := conn.Write(request); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.(*net.TCPConn).CloseWrite(); err != nil {
		t.Fatalf("CloseWrite: %v", err)
	}

	got, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read trailer: %v", err)
	}
	if !bytes.Equal(got, trailer) {
		t.Fatalf("trailer mismatch: got %d bytes, want %d bytes", len(got), len(trailer))
	}
	if !bytes.Equal(received(), request) {
		t.Fatalf("backend received %q, want %q", received(), request)
	}
}

func TestForwardTableReplacement(t *testing.T) {
	guestAPort, closeA := echoListener(t)
	defer closeA()
	guestBPort, closeB := echoListener(t)
	defer closeB()

	c := relay.NewController()
	go c.Run()
	defer c.Stop()

	hostPort := freeHostPort(t)
	c.UpdateRoutingRule(hostPort, relay.Rule{GuestIP: "127.0.0.1", GuestPort: guestAPort})
	waitForListener(t, hostPort)

	conn1, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", itoa(hostPort)))
	if err != nil {
		t.Fatalf("dial front 1: %v", err)
	}
	defer conn1.Close()
	// Exchange one byte to ensure the splice is fully established.
	if _, err := conn1.Write([]byte{1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 1)
	if _, err := io.ReadFull(conn1, buf); err != nil {
		t.Fatalf("read: %v", err)
	}

	c.UpdateRoutingRule(hostPort, relay.Rule{GuestIP: "127.0.0.1", GuestPort: guestBPort})

	// conn1's back-stream is forcibly closed by the controller. That breaks
	// the reverse loop's read of back, which in turn half-closes front's
	// write side — conn1 observes EOF on its next read.
	conn1.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn1.Read(buf); err == nil {
		t.Fatalf("expected conn1 to be closed after routing rule replacement")
	}

	// A fresh connection now reaches guest B.
	conn2, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", itoa(hostPort)))
	if err != nil {
		t.Fatalf("dial front 2: %v", err)
	}
	defer conn2.Close()
	if _, err := conn2.Write([]byte{2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := io.ReadFull(conn2, buf); err != nil {
		t.Fatalf("read from B: %v", err)
	}
	if buf[0] != 2 {
		t.Fatalf("got %d, want echo of 2", buf[0])
	}
}

func waitForListener(t *testing.T, port uint16) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", itoa(port)))
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("listener on port %d never came up", port)
}

func itoa(p uint16) string {
	return strconv.Itoa(int(p))
}
