// Package api implements the waypoint.v1.EndpointResolver gRPC service.
package api

import (
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/waypoint/internal/core/registry"
)

// ResolverService implements EndpointResolverServer.
// Thin orchestration layer over the registry and its engine.
type ResolverService struct {
	registry *registry.Registry
	logger   *zap.Logger
}

var _ EndpointResolverServer = (*ResolverService)(nil)

// NewResolverService creates a service over reg. A nil logger disables logging.
func NewResolverService(reg *registry.Registry, logger *zap.Logger) (*ResolverService, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResolverService{registry: reg, logger: logger}, nil
}

// stringField returns a string field of req. A missing field is "" unless required.
func stringField(req *structpb.Struct, name string, required bool) (string, error) {
	v, ok := req.GetFields()[name]
	if !ok || isNull(v) {
		if required {
			return "", fmt.Errorf("field %s is required", name)
		}
		return "", nil
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("field %s must be a string", name)
	}
	if required && s.StringValue == "" {
		return "", fmt.Errorf("field %s must not be empty", name)
	}
	return s.StringValue, nil
}

// boolField returns a boolean field of req, false when absent.
func boolField(req *structpb.Struct, name string) (bool, error) {
	v, ok := req.GetFields()[name]
	if !ok || isNull(v) {
		return false, nil
	}
	b, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, fmt.Errorf("field %s must be a boolean", name)
	}
	return b.BoolValue, nil
}

func isNull(v *structpb.Value) bool {
	_, null := v.GetKind().(*structpb.Value_NullValue)
	return null
}
