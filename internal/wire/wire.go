// Package wire handles reading and writing length-prefixed MessagePack
// frames over a net.Conn.
//
// Wire format:
//
//	<8-byte little-endian length N><N bytes of msgpack>
//
// The length field is fixed at 8 bytes regardless of host word size so
// that guest and server builds never disagree on framing.
package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.klb.dev/vmc/internal/protocol"
)

const (
	// MaxFrameSize bounds how large a single frame payload may be.
	// WriteFrame, ReadFrame (and so every Conn read/write) and Decode
	// reject larger payloads; Encode does not check it.
	MaxFrameSize = 16 * 1024 * 1024

	writeDeadline = 5 * time.Second

	lenHeaderSize = 8
)

// ErrEncode marks a WriteFrame failure that happened before anything touched
// the network: a msgpack marshal error, or a payload over MaxFrameSize.
// Redialing can never fix either, so callers must not retry on it.
var ErrEncode = errors.New("wire: encode error")

// Conn wraps a net.Conn with buffered length-prefixed msgpack framing.
type Conn struct {
	conn net.Conn
	br   *bufio.Reader
}

// New wraps conn for frame-oriented reads and writes.
func New(conn net.Conn) *Conn {
	return &Conn{
		conn: conn,
		br:   bufio.NewReaderSize(conn, 64*1024),
	}
}

// Underlying returns the wrapped net.Conn.
func (c *Conn) Underlying() net.Conn { return c.conn }

// SetReadDeadline sets or clears the read deadline.
func (c *Conn) SetReadDeadline(d time.Duration) {
	if d == 0 {
		_ = c.conn.SetReadDeadline(time.Time{})
	} else {
		_ = c.conn.SetReadDeadline(time.Now().Add(d))
	}
}

// SetWriteDeadline sets or clears the write deadline.
func (c *Conn) SetWriteDeadline(d time.Duration) {
	if d == 0 {
		_ = c.conn.SetWriteDeadline(time.Time{})
	} else {
		_ = c.conn.SetWriteDeadline(time.Now().Add(d))
	}
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.conn.Close() }

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// WriteFrame msgpack-encodes v and writes it as one length-prefixed frame.
func (c *Conn) WriteFrame(v any) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: frame too large (%d bytes)", ErrEncode, len(payload))
	}

	var hdr [lenHeaderSize]byte
	binary.LittleEndian.PutUint64(hdr[:], uint64(len(payload)))

	c.SetWriteDeadline(writeDeadline)
	defer c.SetWriteDeadline(0)

	if _, err := c.conn.Write(hdr[:]); err != nil {
		return fmt.Errorf("wire: write header: %w", err)
	}
	if _, err := c.conn.Write(payload); err != nil {
		return fmt.Errorf("wire: write payload: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame and msgpack-decodes it into v.
func (c *Conn) ReadFrame(v any) error {
	payload, err := c.readFramePayload()
	if err != nil {
		return err
	}
	if err := msgpack.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("wire: decode: %w", err)
	}
	return nil
}

func (c *Conn) readFramePayload() ([]byte, error) {
	var hdr [lenHeaderSize]byte
	if _, err := io.ReadFull(c.br, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint64(hdr[:])
	if n > MaxFrameSize {
		return nil, fmt.Errorf("wire: frame too large (%d bytes)", n)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(c.br, payload); err != nil {
		return nil, fmt.Errorf("wire: short read: %w", err)
	}
	return payload, nil
}

// WriteRequest writes req as one frame.
func (c *Conn) WriteRequest(req *protocol.Request) error { return c.WriteFrame(req) }

// ReadRequest reads one frame and decodes it as a Request.
func (c *Conn) ReadRequest() (*protocol.Request, error) {
	var req protocol.Request
	if err := c.ReadFrame(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// WriteResponse writes resp as one frame.
func (c *Conn) WriteResponse(resp *protocol.Response) error { return c.WriteFrame(resp) }

// ReadResponse reads one frame and decodes it as a Response.
func (c *Conn) ReadResponse() (*protocol.Response, error) {
	var resp protocol.Response
	if err := c.ReadFrame(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Encode msgpack-encodes v and prefixes it with its 8-byte little-endian
// length, without requiring a Conn. Used by tests and by callers that only
// need the framing primitive over an arbitrary io.Writer.
func Encode(v any) ([]byte, error) {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: encode: %w", err)
	}
	out := make([]byte, lenHeaderSize+len(payload))
	binary.LittleEndian.PutUint64(out[:lenHeaderSize], uint64(len(payload)))
	copy(out[lenHeaderSize:], payload)
	return out, nil
}

// Decode reads one length-prefixed frame from r and msgpack-decodes it
// into v.
func Decode(r io.Reader, v any) error {
	var hdr [lenHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return err
	}
	n := binary.LittleEndian.Uint64(hdr[:])
	if n > MaxFrameSize {
		return fmt.Errorf("wire: frame too large (%d bytes)", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("wire: short read: %w", err)
	}
	if err := msgpack.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("wire: decode: %w", err)
	}
	return nil
}
