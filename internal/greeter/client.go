package greeter

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"gitlab.com/ucmsv2/ctxprop/pkg/errorx"
	"gitlab.com/ucmsv2/ctxprop/pkg/grpcx"
)

var ErrNilConn = errors.New("greeter: nil client connection")

// Client calls the greeter service. It does not own the connection.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Dial opens a plaintext connection to addr whose calls carry the metadata
// produced by chain. Extra options are applied after the chain's.
func Dial(addr string, chain *grpcx.Chain, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if chain != nil {
		dialOpts = append(dialOpts, chain.DialOptions()...)
	}
	dialOpts = append(dialOpts, opts...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("greeter: dial %s: %w", addr, err)
	}
	return conn, nil
}

// SayHello returns the greeting rendered by the server for username.
// Failures come back as *errorx.I18nError wrapping the gRPC status.
func (c *Client) SayHello(ctx context.Context, username string, opts ...grpc.CallOption) (string, error) {
	const op = "greeter.Client.SayHello"
	if c == nil || c.conn == nil {
		return "", ErrNilConn
	}

	out := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(ctx, SayHelloFullName, wrapperspb.String(username), out, opts...); err != nil {
		return "", errorx.Wrap(fromStatus(err), op)
	}
	return out.GetValue(), nil
}

func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return errorx.NewUpstreamServiceError().WithCause(err)
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return errorx.NewInvalidRequest().WithCause(err)
	case codes.NotFound:
		return errorx.NewNotFound().WithCause(err)
	case codes.Unavailable:
		return errorx.NewServiceUnavailable().WithCause(err)
	case codes.DeadlineExceeded:
		return errorx.NewUpstreamTimeout().WithCause(err)
	default:
		return errorx.NewUpstreamServiceError().WithCause(err)
	}
}
