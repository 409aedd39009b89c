package server

import (
	"context"
	"fmt"
	"strconv"

	"github.com/golang/protobuf/ptypes/empty"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"twopc/checker"
)

// A client of the gRPC Explorer service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Connect to the explorer at addr without transport security.
//
// The connection is closed with the returned function.
func Dial(addr string, opts ...grpc.DialOption) (*Client, func() error, error) {
	opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	conn, err := grpc.Dial(addr, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("server: dial %v: %w", addr, err)
	}
	return NewClient(conn), conn.Close, nil
}

func (c *Client) Init(ctx context.Context) ([]StateView, error) {
	out := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Init", &empty.Empty{}, out); err != nil {
		return nil, err
	}
	resp := struct {
		States []StateView `json:"states"`
	}{}
	if err := fromStruct(out, &resp); err != nil {
		return nil, err
	}
	return resp.States, nil
}

// Returns ErrUnknownState if the explorer does not know the state.
func (c *Client) Successors(ctx context.Context, fp uint64) (StateView, error) {
	out := &structpb.Struct{}
	in := wrapperspb.String(strconv.FormatUint(fp, 10))
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Successors", in, out); err != nil {
		if status.Code(err) == codes.NotFound {
			return StateView{}, fmt.Errorf("%w: %v", ErrUnknownState, fp)
		}
		return StateView{}, err
	}
	view := StateView{}
	err := fromStruct(out, &view)
	return view, err
}

func (c *Client) Status(ctx context.Context) (checker.Status, error) {
	out := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Status", &empty.Empty{}, out); err != nil {
		return checker.Status{}, err
	}
	s := checker.Status{}
	err := fromStruct(out, &s)
	return s, err
}
