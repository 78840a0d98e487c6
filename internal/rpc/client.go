package rpc

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region client-struct
// Client calls a remote PotentialService.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor
// NewClient connects to a potential server at addr. Extra dial options are
// appended after the insecure transport and otel stats handler.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn wraps an existing connection. Close is a no-op for it.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region evaluate
// Evaluate evaluates a stored potential remotely.
func (c *Client) Evaluate(ctx context.Context, req EvaluateRequest) (EvaluateResult, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, EvaluateMethod, encodeEvaluateRequest(req), out); err != nil {
		return EvaluateResult{}, fmt.Errorf("evaluate rpc: %w", err)
	}
	res, err := decodeEvaluateResult(out)
	if err != nil {
		return EvaluateResult{}, fmt.Errorf("evaluate rpc: %w", err)
	}
	return res, nil
}

// #endregion evaluate

// #region describe
// Describe fetches the parameters and regions of a stored potential. An
// empty versionID selects the active version of name.
func (c *Client) Describe(ctx context.Context, name, versionID string) (Description, error) {
	fields := map[string]*structpb.Value{}
	setString(fields, "name", name)
	setString(fields, "version_id", versionID)
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, DescribeMethod, &structpb.Struct{Fields: fields}, out); err != nil {
		return Description{}, fmt.Errorf("describe rpc: %w", err)
	}
	return decodeDescription(out), nil
}

// #endregion describe

// #region health
// Ready reports whether the server's potential service is serving.
func (c *Client) Ready(ctx context.Context) error {
	resp, err := grpc_health_v1.NewHealthClient(c.cc).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return fmt.Errorf("health rpc: %w", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("potential service is %s", resp.GetStatus())
	}
	return nil
}

// #endregion health
