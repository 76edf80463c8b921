package api

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/waypoint/internal/core/auth"
)

// ImportRuleSet validates and stores a document as the active revision of a
// service. The call must be authenticated with a publisher API key.
//
// Request:  {service: string, document: string}
// Response: {id, service, checksum, createdAt}
func (s *ResolverService) ImportRuleSet(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	principal := auth.PrincipalFromContext(ctx)
	if principal == "" {
		return nil, status.Error(codes.PermissionDenied, "importing rule sets requires a publisher API key")
	}

	service, err := stringField(req, "service", true)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	document, err := stringField(req, "document", true)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	rs, err := s.registry.Import(ctx, service, []byte(document))
	if err != nil {
		s.logger.Warn("import rejected", zap.String("service", service), zap.String("principal", principal), zap.Error(err))
		return nil, statusFromError(err)
	}
	s.logger.Info("import accepted",
		zap.String("service", service),
		zap.String("principal", principal),
		zap.String("rule_set_id", string(rs.ID)),
	)

	return structpb.NewStruct(map[string]any{
		"id":        string(rs.ID),
		"service":   rs.Service,
		"checksum":  rs.Checksum,
		"createdAt": rs.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
}
