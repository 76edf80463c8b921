package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "waypoint.v1.EndpointResolver"

// Full method names, as seen by interceptors.
const (
	MethodResolve       = "/" + ServiceName + "/Resolve"
	MethodCheck         = "/" + ServiceName + "/Check"
	MethodListRuleSets  = "/" + ServiceName + "/ListRuleSets"
	MethodImportRuleSet = "/" + ServiceName + "/ImportRuleSet"
)

// EndpointResolverServer is the server API of the resolver service. Every
// message is a google.protobuf.Struct; field names are documented on the
// implementing methods.
type EndpointResolverServer interface {
	Resolve(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Check(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRuleSets(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ImportRuleSet(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(EndpointResolverServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// handler adapts a server method to grpc.MethodHandler, running the chained
// interceptors the same way generated code does.
func handler(fullMethod string, call unaryMethod) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(EndpointResolverServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(EndpointResolverServer), ctx, req.(*structpb.Struct))
		})
	}
}

// ServiceDesc describes the resolver service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EndpointResolverServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Resolve", Handler: handler(MethodResolve, EndpointResolverServer.Resolve)},
		{MethodName: "Check", Handler: handler(MethodCheck, EndpointResolverServer.Check)},
		{MethodName: "ListRuleSets", Handler: handler(MethodListRuleSets, EndpointResolverServer.ListRuleSets)},
		{MethodName: "ImportRuleSet", Handler: handler(MethodImportRuleSet, EndpointResolverServer.ImportRuleSet)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "waypoint/v1/resolver.proto",
}

// RegisterEndpointResolverServer registers srv on s.
func RegisterEndpointResolverServer(s grpc.ServiceRegistrar, srv EndpointResolverServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls the resolver service over a client connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a client over cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Resolve calls EndpointResolver.Resolve.
func (c *Client) Resolve(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodResolve, in, opts...)
}

// Check calls EndpointResolver.Check.
func (c *Client) Check(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodCheck, in, opts...)
}

// ListRuleSets calls EndpointResolver.ListRuleSets.
func (c *Client) ListRuleSets(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodListRuleSets, in, opts...)
}

// ImportRuleSet calls EndpointResolver.ImportRuleSet.
func (c *Client) ImportRuleSet(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodImportRuleSet, in, opts...)
}
