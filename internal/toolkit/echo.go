package toolkit

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// EchoTool returns its arguments unchanged. Useful for checking the
// gateway end to end.
type EchoTool struct{}

// NewEchoTool creates an EchoTool.
func NewEchoTool() *EchoTool { return &EchoTool{} }

// Definition returns the MCP tool definition for registration.
func (t *EchoTool) Definition() mcp.Tool {
	return mcp.NewTool("echo",
		mcp.WithDescription("Return the call arguments unchanged."),
	)
}

// Handle processes the echo tool call.
func (t *EchoTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	if args == nil {
		args = map[string]any{}
	}
	return jsonResult(args)
}
