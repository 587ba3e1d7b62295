package main

import (
	"fmt"
	"net"

	"go.klb.dev/vmc/internal/protocol"
	"go.klb.dev/vmc/internal/wire"
)

// defaultAddr is the server address one-shot clients dial when none is
// given explicitly.
const defaultAddr = "localhost:12345"

// dialOneShot opens one TCP session to addr, runs the Negotiation
// handshake, and returns the wrapped connection. A digest mismatch or dial
// failure is a caller-visible error, matching the query/guest command
// clients' "surfaced as a non-zero exit" contract.
func dialOneShot(addr string) (*wire.Conn, error) {
	c, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	conn := wire.New(c)

	if err := conn.WriteRequest(protocol.NegotiationRequest(protocol.Digest())); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send negotiation: %w", err)
	}
	resp, err := conn.ReadResponse()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read negotiation result: %w", err)
	}
	if resp.NegotiationResult == nil || !*resp.NegotiationResult {
		conn.Close()
		return nil, fmt.Errorf("protocol mismatch with %s", addr)
	}
	return conn, nil
}
