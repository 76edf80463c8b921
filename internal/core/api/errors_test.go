package api

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/multierr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/waypoint/internal/core/registry"
	"github.com/solatis/waypoint/internal/rules"
	"github.com/solatis/waypoint/internal/types"
)

func TestStatusFromError(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{&rules.RuleError{RuleID: 3, Message: "nope"}, codes.FailedPrecondition},
		{fmt.Errorf("%w: service x", types.ErrRuleSetNotFound), codes.NotFound},
		{fmt.Errorf("parameter A: %w", types.ErrInvalidParameter), codes.InvalidArgument},
		{multierr.Combine(fmt.Errorf("%w: a", types.ErrTypeCheck), fmt.Errorf("%w: b", types.ErrTypeCheck)), codes.InvalidArgument},
		{types.ErrUnresolved, codes.Internal},
		{fmt.Errorf("%w: rule 4", types.ErrEvaluation), codes.Internal},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("database is locked"), codes.Unavailable},
	}
	for _, tt := range tests {
		if got := status.Code(statusFromError(tt.err)); got != tt.code {
			t.Errorf("statusFromError(%v) = %v, want %v", tt.err, got, tt.code)
		}
	}
	if statusFromError(nil) != nil {
		t.Errorf("statusFromError(nil) != nil")
	}
}

func TestComputeETAG_OrderIndependent(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	x := registry.Summary{ID: "0190a0c4-0000-7000-8000-000000000001", Service: "a", CreatedAt: ts}
	y := registry.Summary{ID: "0190a0c4-0000-7000-8000-000000000002", Service: "b", CreatedAt: ts.Add(time.Second)}

	if computeETAG([]registry.Summary{x, y}) != computeETAG([]registry.Summary{y, x}) {
		t.Errorf("etag depends on order")
	}
	if computeETAG([]registry.Summary{x}) == computeETAG([]registry.Summary{x, y}) {
		t.Errorf("etag ignores an added revision")
	}
	if len(computeETAG(nil)) != 64 {
		t.Errorf("etag is not a hex sha256")
	}
}
