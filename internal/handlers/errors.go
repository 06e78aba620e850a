package handlers

import (
	"context"
	"errors"

	"github.com/asakaida/catalogattr/internal/entities"
	"github.com/asakaida/catalogattr/pkg/wire"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps service errors to gRPC status errors
func toStatus(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, entities.ErrDuplicateRef):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, entities.ErrInvalidArgument), errors.Is(err, wire.ErrMalformed):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, entities.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
