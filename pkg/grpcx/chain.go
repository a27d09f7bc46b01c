// Package grpcx attaches ambient request values to outgoing gRPC calls and
// activates them again on the server side.
//
// A Chain holds an ordered list of Contributors. For every call made through
// a channel dialed with Chain.DialOptions, each contributor adds its metadata
// entries in registration order after whatever metadata the call already had.
// A contributor that fails is logged and skipped; the call itself is never
// failed or altered by the chain.
package grpcx

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

var logger = otelslog.NewLogger("ctxprop/pkg/grpcx")

func loggerOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return logger
	}
	return l
}

// Entry is a single metadata key/value pair.
type Entry struct {
	Key   string
	Value string
}

// Metadata is an ordered list of entries. Keys may repeat.
type Metadata []Entry

// Pairs flattens m into the alternating key/value form metadata.Pairs takes.
func (m Metadata) Pairs() []string {
	kv := make([]string, 0, len(m)*2)
	for _, e := range m {
		kv = append(kv, e.Key, e.Value)
	}
	return kv
}

// Get returns the values of key in order.
func (m Metadata) Get(key string) []string {
	var values []string
	for _, e := range m {
		if e.Key == key {
			values = append(values, e.Value)
		}
	}
	return values
}

// Contributor produces the metadata entries for one outgoing call.
// Implementations hold no per-call state.
type Contributor interface {
	Contribute(ctx context.Context) ([]Entry, error)
}

type ContributorFunc func(ctx context.Context) ([]Entry, error)

func (f ContributorFunc) Contribute(ctx context.Context) ([]Entry, error) {
	return f(ctx)
}

type Chain struct {
	contributors []Contributor
	logger       *slog.Logger
}

type ChainArgs struct {
	Contributors []Contributor
	Logger       *slog.Logger
}

func NewChain(args ChainArgs) *Chain {
	args.Logger = loggerOr(args.Logger)
	for i, c := range args.Contributors {
		if c == nil {
			panic(fmt.Sprintf("grpcx: contributor %d is nil", i))
		}
	}

	return &Chain{
		contributors: append([]Contributor(nil), args.Contributors...),
		logger:       args.Logger,
	}
}

// Intercept returns a copy of existing followed by the entries of every
// contributor, in registration order.
func (c *Chain) Intercept(ctx context.Context, existing Metadata) Metadata {
	out := make(Metadata, len(existing), len(existing)+2*len(c.contributors))
	copy(out, existing)

	for i, contributor := range c.contributors {
		entries, err := safeContribute(ctx, contributor)
		if err != nil {
			c.logger.WarnContext(ctx, "metadata contributor failed, entries omitted",
				slog.Int("contributor.index", i),
				slog.String("contributor.type", fmt.Sprintf("%T", contributor)),
				slog.Any("error", err),
			)
			continue
		}
		out = append(out, entries...)
	}

	return out
}

func safeContribute(ctx context.Context, contributor Contributor) (entries []Entry, err error) {
	defer func() {
		if r := recover(); r != nil {
			entries, err = nil, fmt.Errorf("contributor panicked: %v", r)
		}
	}()
	return contributor.Contribute(ctx)
}

func (c *Chain) outgoing(ctx context.Context) context.Context {
	entries := c.Intercept(ctx, nil)
	if len(entries) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, entries.Pairs()...)
}

// UnaryClientInterceptor appends the chain's metadata to unary calls. The
// method, call options and deadline reach the invoker untouched, and its
// error is returned as is.
func (c *Chain) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req any,
		reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		return invoker(c.outgoing(ctx), method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor appends the chain's metadata to streaming calls.
func (c *Chain) StreamClientInterceptor() grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		return streamer(c.outgoing(ctx), desc, cc, method, opts...)
	}
}

// DialOptions installs the chain on every call of a channel.
func (c *Chain) DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithChainUnaryInterceptor(c.UnaryClientInterceptor()),
		grpc.WithChainStreamInterceptor(c.StreamClientInterceptor()),
	}
}
