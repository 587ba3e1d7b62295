package wire_test

import (
	"io"
	"net"
	"testing"

	"go.klb.dev/vmc/internal/protocol"
	"go.klb.dev/vmc/internal/wire"
)

func TestConnRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sc := wire.New(server)
	cc := wire.New(client)

	digest := protocol.Digest()
	want := protocol.NegotiationRequest(digest)

	done := make(chan error, 1)
	go func() { done <- cc.WriteRequest(want) }()

	got, err := sc.ReadRequest()
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}

	if got.Kind != want.Kind {
		t.Fatalf("kind = %q, want %q", got.Kind, want.Kind)
	}
	if string(got.Negotiation) != string(want.Negotiation) {
		t.Fatalf("negotiation payload mismatch")
	}
}

func TestConnTwoFramesInOrder(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sc := wire.New(server)
	cc := wire.New(client)

	first := &protocol.Request{Kind: protocol.ReqNameService, NameService: &protocol.NSRequest{
		Kind: protocol.NSGetMachineList,
	}}
	second := &protocol.Request{Kind: protocol.ReqClipBoard, ClipBoard: &protocol.CBRequest{
		Kind: protocol.CBGetClipboard,
	}}

	go func() {
		_ = cc.WriteRequest(first)
		_ = cc.WriteRequest(second)
	}()

	got1, err := sc.ReadRequest()
	if err != nil {
		t.Fatalf("ReadRequest 1: %v", err)
	}
	got2, err := sc.ReadRequest()
	if err != nil {
		t.Fatalf("ReadRequest 2: %v", err)
	}

	if got1.Kind != protocol.ReqNameService {
		t.Fatalf("first frame kind = %q, want name_service", got1.Kind)
	}
	if got2.Kind != protocol.ReqClipBoard {
		t.Fatalf("second frame kind = %q, want clip_board", got2.Kind)
	}
}

func TestEncodeDecode(t *testing.T) {
	resp := protocol.NegotiationResultResponse(true)

	frame, err := wire.Encode(resp)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	r := newByteReader(frame)
	var got protocol.Response
	if err := wire.Decode(r, &got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Kind != resp.Kind {
		t.Fatalf("kind = %q, want %q", got.Kind, resp.Kind)
	}
	if got.NegotiationResult == nil || !*got.NegotiationResult {
		t.Fatalf("negotiation_result = %v, want true", got.NegotiationResult)
	}
}

type byteReader struct {
	b []byte
}

func newByteReader(b []byte) *byteReader { return &byteReader{b: b} }

func (r *byteReader) Read(p []byte) (int, error) {
	if len(r.b) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.b)
	r.b = r.b[n:]
	return n, nil
}
