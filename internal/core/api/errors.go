package api

import (
	"context"
	"errors"

	"github.com/solatis/firewrite/internal/apply"
	"github.com/solatis/firewrite/internal/core/db"
	"github.com/solatis/firewrite/internal/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Auth errors are mapped in the auth package interceptor.
// statusError maps everything a handler can return:
//   - caller input errors     -> INVALID_ARGUMENT
//   - create on existing doc  -> ALREADY_EXISTS
//   - precondition failures   -> FAILED_PRECONDITION
//   - missing documents       -> NOT_FOUND
//   - database errors         -> UNAVAILABLE
//   - context timeouts        -> DEADLINE_EXCEEDED
func statusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var code codes.Code
	switch {
	case errors.Is(err, types.ErrInvalidArgument),
		errors.Is(err, types.ErrInvalidDocumentPath),
		errors.Is(err, types.ErrInvalidFieldPath),
		errors.Is(err, types.ErrEmptyWrite),
		errors.Is(err, types.ErrNonNumericOperand),
		errors.Is(err, types.ErrUnsupportedValue):
		code = codes.InvalidArgument
	case errors.Is(err, types.ErrDocumentExists):
		code = codes.AlreadyExists
	case errors.Is(err, apply.ErrUpdateTimeMismatch):
		code = codes.FailedPrecondition
	case errors.Is(err, types.ErrDocumentNotFound):
		code = codes.NotFound
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, db.ErrStore):
		code = codes.Unavailable
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}
