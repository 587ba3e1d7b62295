package protocol_test

import (
	"crypto/sha256"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
	"go.klb.dev/vmc/internal/protocol"
)

func TestDigestStable(t *testing.T) {
	a := protocol.Digest()
	b := protocol.Digest()
	if a != b {
		t.Fatalf("Digest() not stable across calls: %x != %x", a, b)
	}
}

func TestDigestChangesWithSchema(t *testing.T) {
	altered := sha256.Sum256([]byte("Request{kind:RequestKind renamed_field:bytes32}"))
	real := protocol.Digest()

	if altered == real {
		t.Fatalf("digest of an altered schema collided with the real digest")
	}
}

func TestRequestRoundTrip(t *testing.T) {
	ipv6 := "fe80::1%eth0"
	cases := []*protocol.Request{
		protocol.NegotiationRequest(protocol.Digest()),
		{Kind: protocol.ReqNameService, NameService: &protocol.NSRequest{
			Kind: protocol.NSHeartbeat,
			Heartbeat: &protocol.Heartbeat{
				Machine:  protocol.MachineInfo{Hostname: "alpha", IPv4Addr: "10.0.0.7", IPv6Addr: &ipv6},
				Forwards: protocol.PortforwardList{{HostPort: 9000, GuestPort: 22}},
			},
		}},
		{Kind: protocol.ReqNameService, NameService: &protocol.NSRequest{Kind: protocol.NSQueryIP, Hostname: "alpha"}},
		{Kind: protocol.ReqNameService, NameService: &protocol.NSRequest{Kind: protocol.NSGetMachineList}},
		{Kind: protocol.ReqClipBoard, ClipBoard: &protocol.CBRequest{Kind: protocol.CBSetClipboard, Value: "hi"}},
		{Kind: protocol.ReqClipBoard, ClipBoard: &protocol.CBRequest{Kind: protocol.CBGetClipboard}},
		{Kind: protocol.ReqExecute, Execute: &protocol.ExecRequest{Kind: protocol.ExecRun, Argv: []string{"ls", "-l"}}},
		{Kind: protocol.ReqExecute, Execute: &protocol.ExecRequest{Kind: protocol.ExecOpen, Path: "/tmp/x"}},
		{Kind: protocol.ReqExecute, Execute: &protocol.ExecRequest{Kind: protocol.ExecGetEnvVar, Key: "HOME"}},
		{Kind: protocol.ReqNotification, Notification: &protocol.NTFRequest{Body: "hello"}},
	}

	for i, want := range cases {
		raw, err := msgpack.Marshal(want)
		if err != nil {
			t.Fatalf("case %d: marshal: %v", i, err)
		}
		var got protocol.Request
		if err := msgpack.Unmarshal(raw, &got); err != nil {
			t.Fatalf("case %d: unmarshal: %v", i, err)
		}
		if got.Kind != want.Kind {
			t.Fatalf("case %d: kind = %q, want %q", i, got.Kind, want.Kind)
		}
	}
}

func TestResponseRoundTrip(t *testing.T) {
	ipv4 := protocol.MachineInfo{Hostname: "alpha", IPv4Addr: "10.0.0.7"}
	cases := []*protocol.Response{
		protocol.NegotiationResultResponse(true),
		protocol.NegotiationResultResponse(false),
		{Kind: protocol.RespNameService, NameService: &protocol.NSResponse{Kind: protocol.NSRIP, IP: &ipv4}},
		{Kind: protocol.RespNameService, NameService: &protocol.NSResponse{Kind: protocol.NSRIP, IP: nil}},
		{Kind: protocol.RespNameService, NameService: &protocol.NSResponse{Kind: protocol.NSRMachineList, MachineList: []protocol.MachineInfo{ipv4}}},
		{Kind: protocol.RespClipBoard, ClipBoard: &protocol.CBResponse{Value: "clip"}},
		{Kind: protocol.RespExecute, Execute: &protocol.ExecResponse{}},
	}

	for i, want := range cases {
		raw, err := msgpack.Marshal(want)
		if err != nil {
			t.Fatalf("case %d: marshal: %v", i, err)
		}
		var got protocol.Response
		if err := msgpack.Unmarshal(raw, &got); err != nil {
			t.Fatalf("case %d: unmarshal: %v", i, err)
		}
		if got.Kind != want.Kind {
			t.Fatalf("case %d: kind = %q, want %q", i, got.Kind, want.Kind)
		}
	}
}

func TestPortforwardListDiffIsAdditiveOnly(t *testing.T) {
	old := protocol.PortforwardList{{HostPort: 9000, GuestPort: 22}}
	next := protocol.PortforwardList{{HostPort: 9001, GuestPort: 80}}

	added := old.Diff(next)
	if len(added) != 1 || added[0] != next[0] {
		t.Fatalf("Diff = %v, want [%v]", added, next[0])
	}

	// A shrunk list relative to old produces no additions; old's entry is
	// never reported as removed because removal is not a concept Diff models.
	shrunk := protocol.PortforwardList{}
	if got := old.Diff(shrunk); len(got) != 0 {
		t.Fatalf("Diff against shrunk list = %v, want empty", got)
	}
}

func TestMachineInfoEqual(t *testing.T) {
	a := protocol.MachineInfo{Hostname: "alpha", IPv4Addr: "10.0.0.7"}
	b := protocol.MachineInfo{Hostname: "alpha", IPv4Addr: "10.0.0.7"}
	if !a.Equal(b) {
		t.Fatalf("expected equal")
	}
	v6 := "fe80::1"
	b.IPv6Addr = &v6
	if a.Equal(b) {
		t.Fatalf("expected unequal once one side gains an IPv6 address")
	}
}
