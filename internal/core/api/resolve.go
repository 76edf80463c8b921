package api

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/waypoint/internal/core/registry"
	"github.com/solatis/waypoint/internal/rules"
)

// Resolve evaluates the active rule set of a service.
//
// Request:  {service: string, params: {Name: value, ...}, lenient: bool}
// Response: {ruleSetId, url, headers: {name: [value]}, properties: {...},
//
//	authSchemes: [{name, ...properties}], cached}
//
// params are keyed by the document's parameter names. With lenient set,
// booleans and string arrays may be given as strings.
func (s *ResolverService) Resolve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	service, err := stringField(req, "service", true)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	lenient, err := boolField(req, "lenient")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	var params map[string]any
	if v, ok := req.GetFields()["params"]; ok && !isNull(v) {
		sv := v.GetStructValue()
		if sv == nil {
			return nil, status.Error(codes.InvalidArgument, "field params must be an object")
		}
		params = sv.AsMap()
	}

	mode := rules.CoerceStrict
	if lenient {
		mode = rules.CoerceLenient
	}

	start := time.Now()
	res, err := s.registry.Resolve(ctx, service, params, mode)
	if err != nil {
		s.logger.Warn("resolve failed",
			zap.String("service", service),
			zap.String("outcome", registry.Outcome(err)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, statusFromError(err)
	}

	out, err := structpb.NewStruct(endpointFields(res))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode endpoint: %v", err)
	}
	return out, nil
}

// endpointFields converts a resolution into structpb-compatible values.
func endpointFields(res *registry.Resolution) map[string]any {
	ep := res.Endpoint

	headers := make(map[string]any, len(ep.Headers))
	for name, values := range ep.Headers {
		list := make([]any, len(values))
		for i, v := range values {
			list[i] = v
		}
		headers[name] = list
	}

	schemes := make([]any, len(ep.AuthSchemes))
	for i, scheme := range ep.AuthSchemes {
		entry := make(map[string]any, len(scheme.Properties)+1)
		for k, v := range scheme.Properties {
			entry[k] = v
		}
		entry["name"] = scheme.Name
		schemes[i] = entry
	}

	properties := make(map[string]any, len(ep.Properties))
	for k, v := range ep.Properties {
		properties[k] = v
	}

	return map[string]any{
		"ruleSetId":   string(res.RuleSetID),
		"url":         ep.URL,
		"headers":     headers,
		"properties":  properties,
		"authSchemes": schemes,
		"cached":      res.Cached,
	}
}
