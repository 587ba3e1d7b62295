// Package dispatcher implements the per-connection session loop (C4):
// handshake, then decode → dispatch → optionally reply, until the peer
// closes. The shape — one worker per accepted connection, a Serve method
// that owns the connection's lifetime — follows the teacher's tcppeer.Peer,
// trimmed of auth, ping/pong keepalive, and hub registration (this protocol
// is request/response, not pub-sub).
package dispatcher

import (
	"errors"
	"log/slog"
	"net"

	"go.klb.dev/vmc/internal/actions"
	"go.klb.dev/vmc/internal/protocol"
	"go.klb.dev/vmc/internal/registry"
	"go.klb.dev/vmc/internal/relay"
	"go.klb.dev/vmc/internal/wire"
)

// Adapters bundles the action-adapter capabilities the dispatcher calls
// into on ClipBoard/Execute/Notification arms.
type Adapters struct {
	Clipboard actions.Clipboard
	Exec      actions.Exec
	Notify    actions.Notify
	Env       actions.Env
}

// Session serves one accepted connection against a shared Registry and
// Controller.
type Session struct {
	Registry   *registry.Registry
	Controller *relay.Controller
	Adapters   Adapters
}

// Serve runs the handshake then the main loop for conn until the peer
// closes or a framing/decode error occurs. It always closes conn before
// returning.
func (s *Session) Serve(conn net.Conn) {
	defer conn.Close()
	c := wire.New(conn)
	log := slog.With("session", conn.RemoteAddr().String())

	if !s.handshake(c, log) {
		return
	}

	for {
		req, err := c.ReadRequest()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Info("session ended", "err", err)
			}
			return
		}
		if err := s.dispatch(c, req, log); err != nil {
			log.Warn("dispatch error, closing session", "err", err)
			return
		}
	}
}

// handshake reads the first frame, verifies it is Negotiation, and replies
// with the comparison result. It returns false if the session should close
// (bad first frame, or a digest mismatch).
func (s *Session) handshake(c *wire.Conn, log *slog.Logger) bool {
	req, err := c.ReadRequest()
	if err != nil {
		log.Info("handshake read failed", "err", err)
		return false
	}
	if req.Kind != protocol.ReqNegotiation {
		log.Warn("first frame was not a negotiation request", "kind", req.Kind)
		c.Close()
		return false
	}

	local := protocol.Digest()
	ok := string(req.Negotiation) == string(local[:])
	if err := c.WriteResponse(protocol.NegotiationResultResponse(ok)); err != nil {
		log.Warn("handshake reply failed", "err", err)
		return false
	}
	if !ok {
		log.Warn("negotiation digest mismatch, closing")
		return false
	}
	return true
}

// dispatch handles one Request already past handshake. A non-nil error
// means the session should be torn down; action-adapter failures are
// logged and swallowed per the spec's error taxonomy, never propagated here.
func (s *Session) dispatch(c *wire.Conn, req *protocol.Request, log *slog.Logger) error {
	switch req.Kind {
	case protocol.ReqNegotiation:
		// Tolerated idempotent re-handshake: always reply true.
		return c.WriteResponse(protocol.NegotiationResultResponse(true))

	case protocol.ReqNameService:
		return s.dispatchNameService(c, req.NameService, log)

	case protocol.ReqClipBoard:
		return s.dispatchClipBoard(c, req.ClipBoard, log)

	case protocol.ReqExecute:
		return s.dispatchExecute(c, req.Execute, log)

	case protocol.ReqNotification:
		s.dispatchNotification(req.Notification, log)
		return nil

	default:
		log.Warn("unknown request kind", "kind", req.Kind)
		return nil
	}
}

func (s *Session) dispatchNameService(c *wire.Conn, req *protocol.NSRequest, log *slog.Logger) error {
	if req == nil {
		return nil
	}
	switch req.Kind {
	case protocol.NSHeartbeat:
		if req.Heartbeat == nil {
			return nil
		}
		mi := req.Heartbeat.Machine
		s.Registry.Upsert(mi)
		added := s.Registry.DiffForwards(mi.Hostname, req.Heartbeat.Forwards)
		for _, fw := range added {
			log.Info("new forward rule", "hostname", mi.Hostname, "host_port", fw.HostPort, "guest_port", fw.GuestPort)
			s.Controller.UpdateRoutingRule(fw.HostPort, relay.Rule{GuestIP: mi.IPv4Addr, GuestPort: fw.GuestPort})
		}
		return nil

	case protocol.NSQueryIP:
		mi, ok := s.Registry.Get(req.Hostname)
		resp := &protocol.NSResponse{Kind: protocol.NSRIP}
		if ok {
			resp.IP = &mi
		}
		return c.WriteResponse(&protocol.Response{Kind: protocol.RespNameService, NameService: resp})

	case protocol.NSGetMachineList:
		list := s.Registry.Snapshot()
		resp := &protocol.NSResponse{Kind: protocol.NSRMachineList, MachineList: list}
		return c.WriteResponse(&protocol.Response{Kind: protocol.RespNameService, NameService: resp})

	default:
		log.Warn("unknown name_service request kind", "kind", req.Kind)
		return nil
	}
}

func (s *Session) dispatchClipBoard(c *wire.Conn, req *protocol.CBRequest, log *slog.Logger) error {
	if req == nil {
		return nil
	}
	switch req.Kind {
	case protocol.CBSetClipboard:
		if err := s.Adapters.Clipboard.Set(req.Value); err != nil {
			log.Warn("clipboard set failed", "err", err)
		}
		return nil

	case protocol.CBGetClipboard:
		val, err := s.Adapters.Clipboard.Get()
		if err != nil {
			log.Warn("clipboard get failed", "err", err)
			val = ""
		}
		resp := &protocol.CBResponse{Value: val}
		return c.WriteResponse(&protocol.Response{Kind: protocol.RespClipBoard, ClipBoard: resp})

	default:
		log.Warn("unknown clip_board request kind", "kind", req.Kind)
		return nil
	}
}

func (s *Session) dispatchExecute(c *wire.Conn, req *protocol.ExecRequest, log *slog.Logger) error {
	if req == nil {
		return nil
	}
	switch req.Kind {
	case protocol.ExecRun:
		if err := s.Adapters.Exec.Run(req.Argv); err != nil {
			log.Warn("exec run failed", "argv", req.Argv, "err", err)
		}
		return nil

	case protocol.ExecOpen:
		if err := s.Adapters.Exec.Open(req.Path); err != nil {
			log.Warn("exec open failed", "path", req.Path, "err", err)
		}
		return nil

	case protocol.ExecGetEnvVar:
		var resp protocol.ExecResponse
		if v, ok := s.Adapters.Env.Get(req.Key); ok {
			resp.Value = &v
		}
		return c.WriteResponse(&protocol.Response{Kind: protocol.RespExecute, Execute: &resp})

	default:
		log.Warn("unknown execute request kind", "kind", req.Kind)
		return nil
	}
}

func (s *Session) dispatchNotification(req *protocol.NTFRequest, log *slog.Logger) {
	if req == nil {
		return
	}
	if err := s.Adapters.Notify.Show(req.TitleOrDefault(), req.Body); err != nil {
		log.Warn("notify failed", "err", err)
	}
}
