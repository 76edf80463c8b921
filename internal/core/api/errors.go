package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/waypoint/internal/rules"
	"github.com/solatis/waypoint/internal/types"
)

// statusFromError maps domain errors to gRPC status codes:
//   - bad parameters, documents, parse and type errors: INVALID_ARGUMENT
//   - error rules modeled by the rule set: FAILED_PRECONDITION
//   - unknown service or rule set: NOT_FOUND
//   - falling off the rule tree or a failed terminal: INTERNAL
//   - context timeouts: DEADLINE_EXCEEDED
//   - anything else (database): UNAVAILABLE
//
// Auth errors are mapped in the auth interceptor.
func statusFromError(err error) error {
	if err == nil {
		return nil
	}
	var ruleErr *rules.RuleError
	switch {
	case errors.As(err, &ruleErr):
		return status.Error(codes.FailedPrecondition, ruleErr.Message)
	case errors.Is(err, types.ErrRuleSetNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, types.ErrMissingParameter),
		errors.Is(err, types.ErrInvalidParameter),
		errors.Is(err, types.ErrUnknownParameter),
		errors.Is(err, types.ErrInvalidDocument),
		errors.Is(err, types.ErrDocumentTooLarge),
		errors.Is(err, types.ErrRuleTooDeep),
		errors.Is(err, types.ErrParse),
		errors.Is(err, types.ErrTypeCheck),
		errors.Is(err, types.ErrSymbolConflict),
		errors.Is(err, types.ErrLocalTypeConflict):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, types.ErrUnresolved), errors.Is(err, types.ErrEvaluation):
		return status.Error(codes.Internal, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}
