package api

import (
	"context"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/waypoint/internal/rules"
	"github.com/solatis/waypoint/internal/types"
)

// Check validates a rule document without storing it.
//
// Request:  {document: string | object}
// Response: {ok, errors: [string], parameters: [{name, type, required}],
//
//	stats: {rules, trees, endpoints, errors, maxDepth}}
//
// A string document may be JSON or YAML. An object document loses its key
// order. Every problem is reported in errors; only a missing document is a
// gRPC error.
func (s *ResolverService) Check(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	v, ok := req.GetFields()["document"]
	if !ok || isNull(v) {
		return nil, status.Error(codes.InvalidArgument, "field document is required")
	}

	var (
		doc *types.Document
		err error
	)
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		doc, err = types.LoadDocument([]byte(kind.StringValue))
	case *structpb.Value_StructValue:
		var root *types.Node
		root, err = types.NodeFromValue(kind.StructValue.AsMap())
		if err == nil {
			doc, err = types.DocumentFromNode(root)
		}
	default:
		return nil, status.Error(codes.InvalidArgument, "field document must be a string or an object")
	}
	if err != nil {
		return checkResponse(nil, nil, []string{err.Error()})
	}

	p, err := s.registry.Engine().Compile(doc)
	if err != nil {
		var msgs []string
		for _, e := range multierr.Errors(err) {
			msgs = append(msgs, e.Error())
		}
		s.logger.Debug("document rejected", zap.Int("errors", len(msgs)))
		return checkResponse(doc, nil, msgs)
	}
	return checkResponse(doc, &p.Stats, nil)
}

func checkResponse(doc *types.Document, stats *rules.Stats, msgs []string) (*structpb.Struct, error) {
	errs := make([]any, len(msgs))
	for i, m := range msgs {
		errs[i] = m
	}
	fields := map[string]any{
		"ok":     len(msgs) == 0,
		"errors": errs,
	}
	if doc != nil {
		params := make([]any, len(doc.Parameters))
		for i, p := range doc.Parameters {
			params[i] = map[string]any{
				"name":     p.Name,
				"type":     string(p.Type),
				"required": p.Required,
			}
		}
		fields["parameters"] = params
	}
	if stats != nil {
		fields["stats"] = map[string]any{
			"rules":     stats.Rules,
			"trees":     stats.Trees,
			"endpoints": stats.Endpoints,
			"errors":    stats.Errors,
			"maxDepth":  stats.MaxDepth,
		}
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode check result: %v", err)
	}
	return out, nil
}
