// Package protocol defines the vmc wire protocol: the tagged-union
// Request/Response envelopes exchanged between server and guest, and the
// stable digest used to detect schema drift at session handshake.
//
// Every message is one Go struct with a Kind discriminator and one populated
// optional field per arm — the same flat-envelope shape as the clipboard
// message envelope this package replaces, just split into the arms this
// protocol actually needs and carried over msgpack instead of JSON.
package protocol

import "crypto/sha256"

// RequestKind identifies which arm of Request is populated.
type RequestKind string

const (
	ReqNegotiation  RequestKind = "negotiation"
	ReqNameService  RequestKind = "name_service"
	ReqClipBoard    RequestKind = "clip_board"
	ReqExecute      RequestKind = "execute"
	ReqNotification RequestKind = "notification"
)

// ResponseKind identifies which arm of Response is populated.
type ResponseKind string

const (
	RespNegotiationResult ResponseKind = "negotiation_result"
	RespNameService       ResponseKind = "name_service"
	RespClipBoard         ResponseKind = "clip_board"
	RespExecute           ResponseKind = "execute"
)

// NSRequestKind identifies which arm of NSRequest is populated.
type NSRequestKind string

const (
	NSHeartbeat        NSRequestKind = "heartbeat"
	NSQueryIP          NSRequestKind = "query_ip"
	NSGetMachineList   NSRequestKind = "get_machine_list"
)

// NSResponseKind identifies which arm of NSResponse is populated.
type NSResponseKind string

const (
	NSRIP           NSResponseKind = "ip"
	NSRMachineList  NSResponseKind = "machine_list"
)

// CBRequestKind identifies which arm of CBRequest is populated.
type CBRequestKind string

const (
	CBSetClipboard CBRequestKind = "set_clipboard"
	CBGetClipboard CBRequestKind = "get_clipboard"
)

// ExecRequestKind identifies which arm of ExecRequest is populated.
type ExecRequestKind string

const (
	ExecRun       ExecRequestKind = "execute"
	ExecOpen      ExecRequestKind = "open"
	ExecGetEnvVar ExecRequestKind = "get_env_var"
)

// MachineInfo is the hostname + address pair announced by a guest's Heartbeat.
type MachineInfo struct {
	Hostname string  `msgpack:"hostname"`
	IPv4Addr string  `msgpack:"ipv4_addr"`
	IPv6Addr *string `msgpack:"ipv6_addr,omitempty"`
}

// Equal reports whether two MachineInfo values carry the same fields.
func (m MachineInfo) Equal(o MachineInfo) bool {
	if m.Hostname != o.Hostname || m.IPv4Addr != o.IPv4Addr {
		return false
	}
	switch {
	case m.IPv6Addr == nil && o.IPv6Addr == nil:
		return true
	case m.IPv6Addr == nil || o.IPv6Addr == nil:
		return false
	default:
		return *m.IPv6Addr == *o.IPv6Addr
	}
}

// PortforwardSpec is one guest-advertised forwarding rule.
type PortforwardSpec struct {
	HostPort  uint16 `msgpack:"host_port" json:"host_port"`
	GuestPort uint16 `msgpack:"guest_port" json:"guest_port"`
}

// PortforwardList is an ordered, set-like sequence of PortforwardSpec.
type PortforwardList []PortforwardSpec

// Contains reports whether s is already present in the list.
func (l PortforwardList) Contains(s PortforwardSpec) bool {
	for _, e := range l {
		if e == s {
			return true
		}
	}
	return false
}

// Merge returns l with every spec from other appended that l does not
// already contain, preserving first-insertion order. Duplicates within
// other are also collapsed.
func (l PortforwardList) Merge(other PortforwardList) PortforwardList {
	out := append(PortforwardList{}, l...)
	for _, s := range other {
		if !out.Contains(s) {
			out = append(out, s)
		}
	}
	return out
}

// Diff returns the specs in other that are not present in l — the "new"
// rules a Heartbeat's forward list adds relative to what was last seen.
func (l PortforwardList) Diff(other PortforwardList) PortforwardList {
	var added PortforwardList
	for _, s := range other {
		if !l.Contains(s) {
			added = append(added, s)
		}
	}
	return added
}

// NSRequest is the NameService request sub-union.
type NSRequest struct {
	Kind      NSRequestKind `msgpack:"kind"`
	Heartbeat *Heartbeat    `msgpack:"heartbeat,omitempty"`
	Hostname  string        `msgpack:"hostname,omitempty"` // QueryIp
}

// Heartbeat is the payload of NSRequest{Kind: NSHeartbeat}.
type Heartbeat struct {
	Machine  MachineInfo     `msgpack:"machine"`
	Forwards PortforwardList `msgpack:"forwards"`
}

// NSResponse is the NameService response sub-union.
type NSResponse struct {
	Kind        NSResponseKind `msgpack:"kind"`
	IP          *MachineInfo   `msgpack:"ip,omitempty"`
	MachineList []MachineInfo  `msgpack:"machine_list,omitempty"`
}

// CBRequest is the ClipBoard request sub-union.
type CBRequest struct {
	Kind  CBRequestKind `msgpack:"kind"`
	Value string        `msgpack:"value,omitempty"` // SetClipboard
}

// CBResponse is the ClipBoard response; the only arm is GetClipboard.
type CBResponse struct {
	Value string `msgpack:"value"`
}

// ExecRequest is the Execute request sub-union.
type ExecRequest struct {
	Kind ExecRequestKind `msgpack:"kind"`
	Argv []string        `msgpack:"argv,omitempty"` // Execute
	Path string          `msgpack:"path,omitempty"` // Open
	Key  string          `msgpack:"key,omitempty"`  // GetEnvVar
}

// ExecResponse carries the only Execute response arm, GetEnvVar.
type ExecResponse struct {
	Value *string `msgpack:"value,omitempty"`
}

// NTFRequest is the Notification request payload.
type NTFRequest struct {
	Title *string `msgpack:"title,omitempty"`
	Body  string  `msgpack:"body"`
}

// DefaultNotificationTitle is substituted when NTFRequest.Title is absent.
const DefaultNotificationTitle = "Notification"

// TitleOrDefault returns Title if set, else DefaultNotificationTitle.
func (n NTFRequest) TitleOrDefault() string {
	if n.Title != nil {
		return *n.Title
	}
	return DefaultNotificationTitle
}

// Request is the top-level envelope for every client→server message.
type Request struct {
	Kind         RequestKind `msgpack:"kind"`
	Negotiation  []byte      `msgpack:"negotiation,omitempty"`
	NameService  *NSRequest  `msgpack:"name_service,omitempty"`
	ClipBoard    *CBRequest  `msgpack:"clip_board,omitempty"`
	Execute      *ExecRequest `msgpack:"execute,omitempty"`
	Notification *NTFRequest `msgpack:"notification,omitempty"`
}

// NegotiationRequest builds the handshake Request carrying digest.
func NegotiationRequest(digest [32]byte) *Request {
	return &Request{Kind: ReqNegotiation, Negotiation: digest[:]}
}

// Response is the top-level envelope for every server→client reply.
type Response struct {
	Kind               ResponseKind  `msgpack:"kind"`
	NegotiationResult  *bool         `msgpack:"negotiation_result,omitempty"`
	NameService        *NSResponse   `msgpack:"name_service,omitempty"`
	ClipBoard          *CBResponse   `msgpack:"clip_board,omitempty"`
	Execute            *ExecResponse `msgpack:"execute,omitempty"`
}

// NegotiationResultResponse builds a Response carrying the handshake verdict.
func NegotiationResultResponse(ok bool) *Response {
	return &Response{Kind: RespNegotiationResult, NegotiationResult: &ok}
}

// schemaText is the canonical textual description of the wire schema: arm
// names, field order and type tags. Its SHA-256 is the negotiation digest.
// Any change to an arm name, a field name, or field order below changes the
// digest — that is the point.
const schemaText = `
Request{kind:RequestKind
  negotiation:bytes32
  name_service:NSRequest{kind:NSRequestKind
    heartbeat:Heartbeat{machine:MachineInfo{hostname:str ipv4_addr:str ipv6_addr:str?} forwards:[]PortforwardSpec{host_port:u16 guest_port:u16}}
    hostname:str}
  clip_board:CBRequest{kind:CBRequestKind value:str}
  execute:ExecRequest{kind:ExecRequestKind argv:[]str path:str key:str}
  notification:NTFRequest{title:str? body:str}}
Response{kind:ResponseKind
  negotiation_result:bool
  name_service:NSResponse{kind:NSResponseKind ip:MachineInfo? machine_list:[]MachineInfo}
  clip_board:CBResponse{value:str}
  execute:ExecResponse{value:str?}}
`

// Digest returns the 32-byte SHA-256 of the canonical schema text. Both
// peers compute it independently from their own copy of the text;
// negotiation compares equal byte strings.
func Digest() [32]byte {
	return sha256.Sum256([]byte(schemaText))
}
