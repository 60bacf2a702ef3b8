package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/adrianliechti/bookman/pkg/agent"
	"github.com/adrianliechti/bookman/pkg/catalog"
	"github.com/adrianliechti/bookman/pkg/erpnext"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/cors"
)

// Server exposes the catalog actions as MCP tools over streamable HTTP,
// so external agents can drive the same ERPNext operations the chat
// assistant uses.
type Server struct {
	handler http.Handler
}

func New(client *erpnext.Client) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "bookman",
		Version: "1.0.0",
	}, nil)

	for _, t := range catalog.Tools {
		addTool(mcpServer, t, client)
	}

	handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return mcpServer
	}, &mcp.StreamableHTTPOptions{
		Stateless: true,
	})

	corsHandler := cors.AllowAll().Handler(handler)

	return &Server{
		handler: corsHandler,
	}
}

func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s.handler)
}

func addTool(s *mcp.Server, t catalog.Tool, client *erpnext.Client) {
	mcpTool := &mcp.Tool{
		Name:        t.Name,
		Description: t.Description,

		InputSchema: toSchema(t.Parameters),
	}

	s.AddTool(mcpTool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := make(map[string]any)

		if req.Params.Arguments != nil {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return &mcp.CallToolResult{
					Content: []mcp.Content{&mcp.TextContent{Text: "invalid arguments: " + err.Error()}},
					IsError: true,
				}, nil
			}
		}

		result := agent.Execute(ctx, client, t.Name, args)

		data, err := json.Marshal(result)

		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
				IsError: true,
			}, nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
			IsError: isFailure(result),
		}, nil
	})
}

func isFailure(result any) bool {
	env, ok := result.(erpnext.Envelope)

	if !ok {
		return false
	}

	return !env.Success
}

// toSchema converts a catalog parameter map into the SDK's schema type.
// The maps are hand-written and well-formed, so a decode failure would be
// a programming error; fall back to an open object schema rather than
// refuse to serve the tool.
func toSchema(parameters map[string]any) *jsonschema.Schema {
	data, err := json.Marshal(parameters)

	if err != nil {
		return &jsonschema.Schema{Type: "object"}
	}

	var schema jsonschema.Schema

	if err := json.Unmarshal(data, &schema); err != nil {
		return &jsonschema.Schema{Type: "object"}
	}

	return &schema
}
