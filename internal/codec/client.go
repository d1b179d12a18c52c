package codec

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/neuroadapt/internal/cycleerr"
	"github.com/danielpatrickdp/neuroadapt/internal/signal"
)

// #region client-struct
// Client reads signal windows from a remote acquisition service.
// It implements signal.Source.
type Client struct {
	conn      *grpc.ClientConn
	client    AcquisitionClient
	sessionID string
	length    int
}

// #endregion client-struct

// #region constructor
// NewClient connects to the acquisition gRPC server at addr.
func NewClient(addr, sessionID string, length int, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{
		conn:      conn,
		client:    NewAcquisitionClient(conn),
		sessionID: sessionID,
		length:    length,
	}, nil
}

// NewClientWithService creates a Client with an injected service implementation.
// Used for testing without a real gRPC connection.
func NewClientWithService(svc AcquisitionClient, sessionID string, length int) *Client {
	return &Client{client: svc, sessionID: sessionID, length: length}
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

// #region next
// Next fetches one window. An exhausted remote source surfaces as io.EOF.
func (c *Client) Next(ctx context.Context) (signal.Buffer, error) {
	req, err := structpb.NewStruct(map[string]interface{}{
		"session_id": c.sessionID,
		"length":     c.length,
	})
	if err != nil {
		return signal.Buffer{}, fmt.Errorf("build read window request: %w", err)
	}

	resp, err := c.client.ReadWindow(ctx, req)
	if err != nil {
		if status.Code(err) == codes.OutOfRange {
			return signal.Buffer{}, io.EOF
		}
		return signal.Buffer{}, fmt.Errorf("read window rpc: %w", err)
	}

	samples, err := decodeSamples(resp)
	if err != nil {
		return signal.Buffer{}, err
	}
	buf := signal.NewBuffer(samples)
	if err := buf.Validate(c.length); err != nil {
		return signal.Buffer{}, fmt.Errorf("read window: %w", err)
	}
	return buf, nil
}

// #endregion next

// #region wire
func decodeSamples(resp *structpb.Struct) ([]float64, error) {
	field, ok := resp.GetFields()["samples"]
	if !ok {
		return nil, fmt.Errorf("read window: missing samples: %w", cycleerr.ErrInvalidInput)
	}
	list := field.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("read window: samples is not a list: %w", cycleerr.ErrInvalidInput)
	}
	out := make([]float64, len(list.GetValues()))
	for i, v := range list.GetValues() {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("read window: sample %d is not a number: %w", i, cycleerr.ErrInvalidInput)
		}
		out[i] = n.NumberValue
	}
	return out, nil
}

func encodeSamples(samples []float64, sequence uint64) *structpb.Struct {
	values := make([]*structpb.Value, len(samples))
	for i, s := range samples {
		values[i] = structpb.NewNumberValue(s)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"samples":  structpb.NewListValue(&structpb.ListValue{Values: values}),
		"sequence": structpb.NewNumberValue(float64(sequence)),
	}}
}

// isEOF reports whether a source has no more windows.
func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}

// #endregion wire
