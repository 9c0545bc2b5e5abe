package rpc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

var (
	// ErrUnavailable marks an endpoint that no longer accepts calls.
	ErrUnavailable = errors.New("rpc: endpoint unavailable")
	ErrCall        = errors.New("rpc: call failed")
)

const DefaultSize = "0x00"

// Target is what the caller wants shown.
type Target struct {
	View   string
	Offset string
	Size   string
}

// Method maps a view kind to its RPC; unknown views use the generic jump.
func Method(view string) string {
	switch strings.ToLower(strings.TrimSpace(view)) {
	case "disasm":
		return MethodDisasmGoTo
	case "pseudo":
		return MethodPseudoGoTo
	default:
		return MethodGenericGoTo
	}
}

// Client issues one go-to call per connection.
type Client struct {
	timeout time.Duration
	opts    []grpc.DialOption
}

func NewClient(timeout time.Duration, opts ...grpc.DialOption) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(codec{})),
	}
	return &Client{timeout: timeout, opts: append(base, opts...)}
}

// GoTo dials address and performs the jump for target. Failures caused by
// an unreachable endpoint wrap ErrUnavailable.
func (c *Client) GoTo(ctx context.Context, address string, target Target) (string, error) {
	conn, err := grpc.NewClient(address, c.opts...)
	if err != nil {
		return "", fmt.Errorf("%w: dial %s: %v", ErrCall, address, err)
	}
	defer conn.Close()

	size := target.Size
	if strings.TrimSpace(size) == "" {
		size = DefaultSize
	}
	method := Method(target.View)
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	log.Info().Str("address", address).Str("method", method).Str("offset", target.Offset).Msg("rpc.goto")
	resp := new(ResponseCode)
	err = conn.Invoke(callCtx, fullMethod(method), &GoToRequest{Address: target.Offset, Size: size}, resp)
	if err != nil {
		if status.Code(err) == codes.Unavailable {
			return "", fmt.Errorf("%w: %s: %v", ErrUnavailable, address, err)
		}
		return "", fmt.Errorf("%w: %s %s: %v", ErrCall, address, method, err)
	}
	log.Debug().Str("response", resp.Response).Msg("rpc.goto response")
	return resp.Response, nil
}

// IsUnavailable reports whether err means the endpoint is gone.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable) || status.Code(err) == codes.Unavailable
}
