package handlers

import (
	"context"
	"fmt"
	"strconv"

	"github.com/asakaida/catalogattr/internal/entities"
	"github.com/asakaida/catalogattr/internal/services"
	"github.com/asakaida/catalogattr/pkg/wire"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// AttributeHandler serves catalogattr.v1.AttributeService
type AttributeHandler struct {
	service       services.AttributeServiceInterface
	defaultEntity int64
}

var _ AttributeServiceServer = (*AttributeHandler)(nil)

// NewAttributeHandler creates a handler. Requests without entity metadata act as defaultEntity.
func NewAttributeHandler(service services.AttributeServiceInterface, defaultEntity int64) *AttributeHandler {
	return &AttributeHandler{
		service:       service,
		defaultEntity: defaultEntity,
	}
}

// Fetch handles the Fetch RPC
func (h *AttributeHandler) Fetch(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	entity, err := h.entity(ctx)
	if err != nil {
		return nil, err
	}

	attr, err := h.service.Fetch(ctx, entity, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	return attributeToWire(attr).ToStruct(), nil
}

// List handles the List RPC. The request carries an optional CEL filter.
func (h *AttributeHandler) List(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error) {
	entity, err := h.entity(ctx)
	if err != nil {
		return nil, err
	}

	attrs, err := h.service.FetchAll(ctx, entity, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	out := make([]*wire.Attribute, len(attrs))
	for i, attr := range attrs {
		out[i] = attributeToWire(attr)
	}
	return wire.AttributesToList(out), nil
}

// Create handles the Create RPC
func (h *AttributeHandler) Create(ctx context.Context, req *structpb.Struct) (*wrapperspb.Int64Value, error) {
	entity, err := h.entity(ctx)
	if err != nil {
		return nil, err
	}

	in, err := wire.AttributeFromStruct(req)
	if err != nil {
		return nil, toStatus(err)
	}

	id, err := h.service.Create(ctx, entity, &entities.Attribute{
		Ref:   in.Ref,
		Label: in.Label,
		Rank:  in.Rank,
	})
	if err != nil {
		return nil, toStatus(err)
	}

	return wrapperspb.Int64(id), nil
}

// Update handles the Update RPC
func (h *AttributeHandler) Update(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	entity, err := h.entity(ctx)
	if err != nil {
		return nil, err
	}

	in, err := wire.AttributeFromStruct(req)
	if err != nil {
		return nil, toStatus(err)
	}

	err = h.service.Update(ctx, entity, &entities.Attribute{
		ID:    in.ID,
		Ref:   in.Ref,
		Label: in.Label,
		Rank:  in.Rank,
	})
	if err != nil {
		return nil, toStatus(err)
	}

	return &emptypb.Empty{}, nil
}

// Delete handles the Delete RPC
func (h *AttributeHandler) Delete(ctx context.Context, req *wrapperspb.Int64Value) (*emptypb.Empty, error) {
	entity, err := h.entity(ctx)
	if err != nil {
		return nil, err
	}

	if err := h.service.Delete(ctx, entity, req.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// CountChildProducts handles the CountChildProducts RPC
func (h *AttributeHandler) CountChildProducts(ctx context.Context, req *wrapperspb.Int64Value) (*wrapperspb.Int64Value, error) {
	entity, err := h.entity(ctx)
	if err != nil {
		return nil, err
	}

	count, err := h.service.CountChildProducts(ctx, entity, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Int64(count), nil
}

// MoveUp handles the MoveUp RPC
func (h *AttributeHandler) MoveUp(ctx context.Context, req *wrapperspb.Int64Value) (*emptypb.Empty, error) {
	entity, err := h.entity(ctx)
	if err != nil {
		return nil, err
	}

	if err := h.service.MoveUp(ctx, entity, req.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// MoveDown handles the MoveDown RPC
func (h *AttributeHandler) MoveDown(ctx context.Context, req *wrapperspb.Int64Value) (*emptypb.Empty, error) {
	entity, err := h.entity(ctx)
	if err != nil {
		return nil, err
	}

	if err := h.service.MoveDown(ctx, entity, req.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// Normalize handles the Normalize RPC
func (h *AttributeHandler) Normalize(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	entity, err := h.entity(ctx)
	if err != nil {
		return nil, err
	}

	if err := h.service.Normalize(ctx, entity); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// UpdateOrder handles the UpdateOrder RPC
func (h *AttributeHandler) UpdateOrder(ctx context.Context, req *structpb.ListValue) (*emptypb.Empty, error) {
	entity, err := h.entity(ctx)
	if err != nil {
		return nil, err
	}

	ids, err := wire.IDsFromList(req)
	if err != nil {
		return nil, toStatus(err)
	}

	if err := h.service.UpdateOrder(ctx, entity, ids); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// entity reads the caller entity from request metadata
func (h *AttributeHandler) entity(ctx context.Context) (int64, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return h.defaultEntity, nil
	}

	values := md.Get(wire.EntityMetadataKey)
	if len(values) == 0 {
		return h.defaultEntity, nil
	}

	entity, err := strconv.ParseInt(values[0], 10, 64)
	if err != nil || entity <= 0 {
		return 0, status.Error(codes.InvalidArgument, fmt.Sprintf("invalid %s metadata: %q", wire.EntityMetadataKey, values[0]))
	}
	return entity, nil
}

func attributeToWire(attr *entities.Attribute) *wire.Attribute {
	return &wire.Attribute{
		ID:        attr.ID,
		Ref:       attr.Ref,
		Label:     attr.Label,
		Rank:      attr.Rank,
		Entity:    attr.Entity,
		CreatedAt: attr.CreatedAt,
		UpdatedAt: attr.UpdatedAt,
	}
}
