package mapapi

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/libya-atlas/internal/view/state"
	"github.com/signalsfoundry/libya-atlas/kb"
)

// ErrInvalidRequest is used for malformed request messages.
var ErrInvalidRequest = errors.New("invalid request")

// ToStatusError maps store and view errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, state.ErrSessionNotFound),
		errors.Is(err, kb.ErrMunicipalityNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, state.ErrInvalidEvent):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, state.ErrSessionClosed):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, kb.ErrMunicipalityExists):
		return status.Error(codes.AlreadyExists, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
