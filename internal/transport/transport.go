// Package transport implements the auto-reconnecting client transport: a
// blocking TCP session that silently redials and replays a caller-supplied
// handshake whenever a write fails.
//
// The reconnect loop is a direct simplification of the shape used by the
// suffuse upstream federation link: one state-carrying type, one retry loop
// between dial attempts, one hook invoked after every successful dial. Unlike
// that link, the retry interval here is fixed — the protocol calls for no
// backoff, no jitter, and no maximum attempt count.
package transport

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"go.klb.dev/vmc/internal/wire"
)

// OnReconnect is invoked with the freshly dialed connection every time the
// transport establishes (or re-establishes) a session, before any caller
// Send proceeds. It typically re-runs the protocol handshake.
type OnReconnect func(conn *wire.Conn) error

// Transport is a blocking, auto-reconnecting client session to one address.
type Transport struct {
	addr          string
	retryInterval time.Duration
	onReconnect   OnReconnect

	mu   sync.Mutex
	conn *wire.Conn
}

// Dial blocks, retrying at retryInterval, until it establishes a session to
// addr and onReconnect succeeds on it. onReconnect may be nil.
func Dial(addr string, retryInterval time.Duration, onReconnect OnReconnect) *Transport {
	t := &Transport{
		addr:          addr,
		retryInterval: retryInterval,
		onReconnect:   onReconnect,
	}
	t.conn = t.dialUntilSuccess()
	return t
}

// dialUntilSuccess blocks forever, retrying at t.retryInterval, until it has
// a connection that also passed onReconnect.
func (t *Transport) dialUntilSuccess() *wire.Conn {
	for {
		c, err := net.Dial("tcp", t.addr)
		if err != nil {
			slog.Warn("transport dial failed, retrying", "addr", t.addr, "err", err, "retry_in", t.retryInterval)
			time.Sleep(t.retryInterval)
			continue
		}
		conn := wire.New(c)
		if t.onReconnect != nil {
			if err := t.onReconnect(conn); err != nil {
				slog.Warn("transport reconnect hook failed, retrying", "addr", t.addr, "err", err, "retry_in", t.retryInterval)
				conn.Close()
				time.Sleep(t.retryInterval)
				continue
			}
		}
		slog.Info("transport connected", "addr", t.addr)
		return conn
	}
}

// Conn returns the current underlying connection, for callers that need to
// read responses. The returned value is only valid until the next Send call
// that triggers a reconnect; callers reading concurrently with Send must
// tolerate a stale handle becoming unusable.
func (t *Transport) Conn() *wire.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

// Send writes v as one frame, transparently redialing and replaying the
// reconnect hook on any write failure, until the write succeeds. It never
// returns a retry-able error — only a caller-visible encode error (v failed
// to marshal, or exceeds wire.MaxFrameSize) can make it return non-nil, and
// that error never triggers a redial since a fresh connection can't fix it.
func (t *Transport) Send(v any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		err := t.conn.WriteFrame(v)
		if err == nil {
			return nil
		}
		if errors.Is(err, wire.ErrEncode) {
			return err
		}
		slog.Warn("transport send failed, reconnecting", "addr", t.addr, "err", err)
		t.conn.Close()
		t.conn = t.dialUntilSuccess()
	}
}

// Close closes the current underlying connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}
