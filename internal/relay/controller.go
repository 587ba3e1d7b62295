package relay

import (
	"log/slog"
	"net"
	"strconv"
)

// Rule is a host-port → guest-endpoint routing rule.
type Rule struct {
	GuestIP   string
	GuestPort uint16
}

// updateRoutingRuleEvent requests installing or replacing the rule for
// HostPort.
type updateRoutingRuleEvent struct {
	HostPort uint16
	Rule     Rule
}

// newLocalClientEvent announces a freshly accepted front-side connection on
// HostPort, to be spliced per the current rule.
type newLocalClientEvent struct {
	HostPort uint16
	Front    net.Conn
}

// Controller owns the routing table, the set of open back-side streams per
// host-port, and the set of currently-listened host-ports. All three are
// touched only from the controller's own goroutine, reached exclusively
// through its event channel — the same single-consumer pattern the suffuse
// federation upstream uses to serialize stream-set mutation without locks.
type Controller struct {
	events chan any

	routingTable map[uint16]Rule
	backStreams  map[uint16][]net.Conn
	listening    map[uint16]bool
}

// NewController returns a Controller with its event loop not yet started;
// call Run in a goroutine to start processing events.
func NewController() *Controller {
	return &Controller{
		events:       make(chan any, 64),
		routingTable: make(map[uint16]Rule),
		backStreams:  make(map[uint16][]net.Conn),
		listening:    make(map[uint16]bool),
	}
}

// Run drains the event channel until it is closed. Call in its own
// goroutine; this is the controller's single consumer.
func (c *Controller) Run() {
	for ev := range c.events {
		switch e := ev.(type) {
		case updateRoutingRuleEvent:
			c.handleUpdateRoutingRule(e)
		case newLocalClientEvent:
			c.handleNewLocalClient(e)
		}
	}
}

// Stop closes the event channel, causing Run to return once drained.
func (c *Controller) Stop() { close(c.events) }

// UpdateRoutingRule installs or replaces the rule for hostPort. If this
// replaces a different destination, every open back-side stream for
// hostPort is forcibly closed. In either case a new accept loop is started
// if one isn't already running for hostPort.
func (c *Controller) UpdateRoutingRule(hostPort uint16, rule Rule) {
	c.events <- updateRoutingRuleEvent{HostPort: hostPort, Rule: rule}
}

func (c *Controller) handleUpdateRoutingRule(e updateRoutingRuleEvent) {
	prev, had := c.routingTable[e.HostPort]
	c.routingTable[e.HostPort] = e.Rule

	if had && prev != e.Rule {
		for _, s := range c.backStreams[e.HostPort] {
			s.Close()
		}
		delete(c.backStreams, e.HostPort)
		slog.Info("relay routing rule replaced", "host_port", e.HostPort,
			"old_guest", prev.GuestIP, "new_guest", e.Rule.GuestIP)
	} else if !had {
		slog.Info("relay routing rule installed", "host_port", e.HostPort, "guest_ip", e.Rule.GuestIP, "guest_port", e.Rule.GuestPort)
	}

	if !c.listening[e.HostPort] {
		c.listening[e.HostPort] = true
		go c.acceptLoop(e.HostPort)
	}
}

func (c *Controller) handleNewLocalClient(e newLocalClientEvent) {
	rule, ok := c.routingTable[e.HostPort]
	if !ok {
		slog.Warn("relay accepted connection with no routing rule, closing", "host_port", e.HostPort)
		e.Front.Close()
		return
	}
	back := Splice(e.Front, rule.GuestIP, rule.GuestPort)
	if back == nil {
		return
	}
	c.backStreams[e.HostPort] = append(c.backStreams[e.HostPort], back)
}

// acceptLoop listens on hostPort and forwards every accepted connection to
// the controller as a newLocalClientEvent. One goroutine per listening
// host-port, started exactly once by handleUpdateRoutingRule.
func (c *Controller) acceptLoop(hostPort uint16) {
	addr := net.JoinHostPort("0.0.0.0", strconv.Itoa(int(hostPort)))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		slog.Error("relay listen failed", "host_port", hostPort, "err", err)
		return
	}
	slog.Info("relay listening", "host_port", hostPort)

	for {
		conn, err := ln.Accept()
		if err != nil {
			slog.Warn("relay accept failed", "host_port", hostPort, "err", err)
			return
		}
		c.events <- newLocalClientEvent{HostPort: hostPort, Front: conn}
	}
}
