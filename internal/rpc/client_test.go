package rpc

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/heimdallr-client/internal/testutil/testlog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protowire"
)

type recordingServer struct {
	mu     sync.Mutex
	method string
	req    GoToRequest
	err    error
}

func (s *recordingServer) record(method string, req *GoToRequest) (*ResponseCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.method = method
	s.req = *req
	if s.err != nil {
		return nil, s.err
	}
	return &ResponseCode{Response: "OK " + method}, nil
}

func (s *recordingServer) DisasmGoTo(_ context.Context, req *GoToRequest) (*ResponseCode, error) {
	return s.record(MethodDisasmGoTo, req)
}

func (s *recordingServer) PseudoGoTo(_ context.Context, req *GoToRequest) (*ResponseCode, error) {
	return s.record(MethodPseudoGoTo, req)
}

func (s *recordingServer) GenericGoTo(_ context.Context, req *GoToRequest) (*ResponseCode, error) {
	return s.record(MethodGenericGoTo, req)
}

func startServer(t *testing.T, srv GoToServer) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := grpc.NewServer(ServerCodec())
	RegisterGoToServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)
	return lis.Addr().String()
}

func closedAddress(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := lis.Addr().String()
	_ = lis.Close()
	return addr
}

func TestGoToSelectsMethodByView(t *testing.T) {
	testlog.Start(t)
	srv := &recordingServer{}
	addr := startServer(t, srv)
	client := NewClient(5 * time.Second)

	cases := map[string]string{
		"disasm": MethodDisasmGoTo,
		"pseudo": MethodPseudoGoTo,
		"":       MethodGenericGoTo,
		"hex":    MethodGenericGoTo,
	}
	for view, want := range cases {
		resp, err := client.GoTo(context.Background(), addr, Target{View: view, Offset: "0x401000"})
		if err != nil {
			t.Fatalf("goto view=%q: %v", view, err)
		}
		if resp != "OK "+want {
			t.Fatalf("view=%q unexpected response %q", view, resp)
		}
		srv.mu.Lock()
		got, req := srv.method, srv.req
		srv.mu.Unlock()
		if got != want {
			t.Fatalf("view=%q routed to %s, want %s", view, got, want)
		}
		if req.Address != "0x401000" || req.Size != DefaultSize {
			t.Fatalf("unexpected request: %+v", req)
		}
	}
}

func TestGoToUnavailableEndpoint(t *testing.T) {
	testlog.Start(t)
	_, err := NewClient(2*time.Second).GoTo(context.Background(), closedAddress(t), Target{Offset: "0x0"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if !IsUnavailable(err) {
		t.Fatalf("IsUnavailable should classify %v", err)
	}
}

func TestGoToOtherErrorsAreFatal(t *testing.T) {
	testlog.Start(t)
	addr := startServer(t, &recordingServer{err: status.Error(codes.Internal, "view missing")})
	_, err := NewClient(2*time.Second).GoTo(context.Background(), addr, Target{View: "pseudo", Offset: "0x10"})
	if !errors.Is(err, ErrCall) {
		t.Fatalf("expected ErrCall, got %v", err)
	}
	if IsUnavailable(err) {
		t.Fatalf("internal error must not be classified as unavailable")
	}
}

func TestResponseDecodesVarintAndSkipsUnknown(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 7, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 99)
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, 2)

	var resp ResponseCode
	if err := (codec{}).Unmarshal(b, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Response != "2" {
		t.Fatalf("unexpected response: %q", resp.Response)
	}
	if _, err := (codec{}).Marshal("not a message"); err == nil {
		t.Fatalf("expected marshal error for foreign type")
	}
}
