// Package client is a typed Go client for catalogattr.v1.AttributeService.
package client

import (
	"context"
	"strconv"

	"github.com/asakaida/catalogattr/pkg/wire"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Attribute is a product attribute as returned by the server
type Attribute = wire.Attribute

// Client calls the attribute service over a gRPC connection
type Client struct {
	cc grpc.ClientConnInterface
}

// New wraps an existing connection
func New(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Dial opens an insecure connection to addr. Close the returned connection when done.
func Dial(addr string, opts ...grpc.DialOption) (*Client, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, nil, err
	}
	return New(conn), conn, nil
}

// WithEntity returns a context whose calls act on behalf of entity
func WithEntity(ctx context.Context, entity int64) context.Context {
	return metadata.AppendToOutgoingContext(ctx, wire.EntityMetadataKey, strconv.FormatInt(entity, 10))
}

// Fetch returns one attribute
func (c *Client) Fetch(ctx context.Context, id int64) (*Attribute, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, wire.MethodFetch, wrapperspb.Int64(id), out); err != nil {
		return nil, err
	}
	return wire.AttributeFromStruct(out)
}

// List returns the visible attributes in display order. filter is an optional CEL expression.
func (c *Client) List(ctx context.Context, filter string) ([]*Attribute, error) {
	out := new(structpb.ListValue)
	if err := c.invoke(ctx, wire.MethodList, wrapperspb.String(filter), out); err != nil {
		return nil, err
	}
	return wire.AttributesFromList(out)
}

// Create stores a new attribute and returns its id
func (c *Client) Create(ctx context.Context, ref, label string, rank int) (int64, error) {
	in := &Attribute{Ref: ref, Label: label, Rank: rank}
	out := new(wrapperspb.Int64Value)
	if err := c.invoke(ctx, wire.MethodCreate, in.ToStruct(), out); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}

// Update overwrites ref, label and rank of attr.ID
func (c *Client) Update(ctx context.Context, attr *Attribute) error {
	in := &Attribute{ID: attr.ID, Ref: attr.Ref, Label: attr.Label, Rank: attr.Rank}
	return c.invoke(ctx, wire.MethodUpdate, in.ToStruct(), new(emptypb.Empty))
}

// Delete removes an attribute
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.invoke(ctx, wire.MethodDelete, wrapperspb.Int64(id), new(emptypb.Empty))
}

// CountChildProducts counts combination values using the attribute
func (c *Client) CountChildProducts(ctx context.Context, id int64) (int64, error) {
	out := new(wrapperspb.Int64Value)
	if err := c.invoke(ctx, wire.MethodCountChildProducts, wrapperspb.Int64(id), out); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}

// MoveUp swaps the attribute with its predecessor
func (c *Client) MoveUp(ctx context.Context, id int64) error {
	return c.invoke(ctx, wire.MethodMoveUp, wrapperspb.Int64(id), new(emptypb.Empty))
}

// MoveDown swaps the attribute with its successor
func (c *Client) MoveDown(ctx context.Context, id int64) error {
	return c.invoke(ctx, wire.MethodMoveDown, wrapperspb.Int64(id), new(emptypb.Empty))
}

// Normalize renumbers the caller's attributes to 1..N
func (c *Client) Normalize(ctx context.Context) error {
	return c.invoke(ctx, wire.MethodNormalize, &emptypb.Empty{}, new(emptypb.Empty))
}

// UpdateOrder ranks ids by their position, starting at 0
func (c *Client) UpdateOrder(ctx context.Context, ids []int64) error {
	return c.invoke(ctx, wire.MethodUpdateOrder, wire.IDsToList(ids), new(emptypb.Empty))
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	return c.cc.Invoke(ctx, wire.FullMethod(method), in, out)
}
