// Package mcp exposes the agent's tools to external MCP clients over
// streamable HTTP. Every call goes through the same validator and executors
// the conversational agent uses.
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/procura/procura/server/agent"
	"github.com/procura/procura/server/auth"
)

const serverName = "procura"

type callerKey struct{}

type caller struct {
	userID string
	err    error
}

type MCPService struct {
	agent  *agent.Agent
	auth   *auth.Authenticator
	server *server.MCPServer
}

func NewMCPService(ag *agent.Agent, authenticator *auth.Authenticator, version string) *MCPService {
	s := &MCPService{
		agent:  ag,
		auth:   authenticator,
		server: server.NewMCPServer(serverName, version, server.WithToolCapabilities(false)),
	}
	for _, name := range agent.ToolNames() {
		schema, err := json.Marshal(agent.ToolSchema(name))
		if err != nil {
			slog.Error("failed to encode tool schema", "tool", name, "error", err)
			continue
		}
		s.server.AddTool(mcp.NewToolWithRawSchema(name, agent.ToolDescription(name), schema), s.handle(name))
	}
	return s
}

// Handler returns the streamable HTTP endpoint. The caller is identified by
// the same bearer token the JSON API accepts.
func (s *MCPService) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.server,
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			userID, err := s.auth.Authenticate(r)
			return context.WithValue(ctx, callerKey{}, caller{userID: userID, err: err})
		}),
	)
}

func (s *MCPService) handle(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		c, _ := ctx.Value(callerKey{}).(caller)
		if c.err != nil {
			return mcp.NewToolResultError("unauthenticated"), nil
		}
		owner := agent.CartOwner(c.userID, sessionID(ctx))
		slog.Info("[MCP TOOL CALL]", "tool", name, "user", c.userID)

		tool := agent.NewTools(s.agent.Commerce(), owner)[name]
		result, err := tool.Execute(ctx, req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(agent.SynthesizeError(name, err).Text), nil
		}
		out, err := json.Marshal(result.View())
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResultText(string(out)), nil
	}
}

// sessionID scopes anonymous carts to the MCP session.
func sessionID(ctx context.Context) string {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		return session.SessionID()
	}
	return "mcp"
}
