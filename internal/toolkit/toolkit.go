// Package toolkit builds the VentAI capability runtime: an MCP server
// that exposes the tools the gateway forwards calls to.
//
// Each tool is a struct with a Definition (the MCP tool schema) and a
// Handle method compatible with mcp-go's tool handler signature. The
// runtime is served over stdio by cmd/ventai-tools and is started by the
// gateway as a child process.
package toolkit

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Name is the MCP server name reported during the handshake.
const Name = "ventai-tools"

// Options controls optional runtime behavior.
type Options struct {
	// Getenv resolves provider credentials. Defaults to os.Getenv.
	Getenv func(string) string
	// Now is the clock used by runtime_info. Defaults to time.Now.
	Now func() time.Time
}

// New creates the MCP server with every tool registered.
func New(opts Options) *server.MCPServer {
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := server.NewMCPServer(
		Name,
		Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	providers := NewProvidersTool(opts.Getenv)
	s.AddTool(providers.Definition(), providers.Handle)

	echo := NewEchoTool()
	s.AddTool(echo.Definition(), echo.Handle)

	info := NewInfoTool(opts.Now().UTC(), opts.Now)
	s.AddTool(info.Definition(), info.Handle)

	return s
}

// jsonResult encodes v as a single JSON text block, the shape the gateway
// forwards verbatim.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
