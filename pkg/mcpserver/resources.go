package mcpserver

import (
	"context"
	"sort"

	jsonrpc "github.com/mutablelogic/go-mcp/pkg/jsonrpc"
	mcptype "github.com/mutablelogic/go-mcp/pkg/mcptype"
)

///////////////////////////////////////////////////////////////////////////////
// HANDLERS

func (server *Server) handleResourcesList(_ context.Context, req *jsonrpc.Request) (any, error) {
	server.mu.RLock()
	defer server.mu.RUnlock()

	uris := make([]string, 0, len(server.resources))
	for uri := range server.resources {
		uris = append(uris, uri)
	}
	sort.Strings(uris)

	resources := make([]mcptype.Resource, 0, len(uris))
	for _, uri := range uris {
		r := server.resources[uri]
		resources = append(resources, mcptype.Resource{
			URI:         r.URI(),
			Name:        r.Name(),
			Description: r.Description(),
			MimeType:    r.MimeType(),
		})
	}

	return mcptype.ListResourcesResult{Resources: resources}, nil
}

func (server *Server) handleResourcesRead(ctx context.Context, req *jsonrpc.Request) (any, error) {
	var params mcptype.ReadResourceParams
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, mcptype.ErrInvalidParams(err.Error())
	}
	if params.URI == "" {
		return nil, mcptype.ErrInvalidParams("resource uri is required")
	}

	server.mu.RLock()
	resource, ok := server.resources[params.URI]
	server.mu.RUnlock()
	if !ok {
		return nil, &mcptype.NotFoundError{Message: "resource not found: " + params.URI}
	}

	contents, err := resource.Read(ctx)
	if err != nil {
		return nil, err
	}
	return mcptype.ReadResourceResult{Contents: contents}, nil
}
