package api

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/waypoint/internal/core/registry"
)

// ListRuleSets returns stored rule set revisions.
//
// Request:  {service: string, ifNoneMatch: string}
// Response: {ruleSets: [{id, service, checksum, createdAt, active}], etag, notModified}
//
// service optionally filters by service. When ifNoneMatch equals the current
// etag the list is omitted and notModified is true.
func (s *ResolverService) ListRuleSets(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	service, err := stringField(req, "service", false)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	ifNoneMatch, err := stringField(req, "ifNoneMatch", false)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	all, err := s.registry.List(ctx)
	if err != nil {
		return nil, statusFromError(err)
	}
	var summaries []registry.Summary
	for _, rs := range all {
		if service == "" || rs.Service == service {
			summaries = append(summaries, rs)
		}
	}

	etag := computeETAG(summaries)
	if ifNoneMatch != "" && ifNoneMatch == etag {
		return structpb.NewStruct(map[string]any{"etag": etag, "notModified": true})
	}

	// The list is ordered by service then id; the last entry of a service is active.
	items := make([]any, len(summaries))
	for i, rs := range summaries {
		active := i == len(summaries)-1 || summaries[i+1].Service != rs.Service
		items[i] = map[string]any{
			"id":        string(rs.ID),
			"service":   rs.Service,
			"checksum":  rs.Checksum,
			"createdAt": rs.CreatedAt.UTC().Format(time.RFC3339Nano),
			"active":    active,
		}
	}
	out, err := structpb.NewStruct(map[string]any{
		"ruleSets":    items,
		"etag":        etag,
		"notModified": false,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode rule sets: %v", err)
	}
	return out, nil
}

// computeETAG hashes the sorted id:created_at pairs, so the same set of
// revisions always produces the same etag.
func computeETAG(summaries []registry.Summary) string {
	ids := make([]string, len(summaries))
	for i, rs := range summaries {
		ids[i] = string(rs.ID) + ":" + rs.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	sort.Strings(ids)
	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
