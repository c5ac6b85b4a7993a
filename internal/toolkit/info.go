package toolkit

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// InfoTool reports facts about the runtime process itself.
type InfoTool struct {
	started time.Time
	now     func() time.Time
}

// NewInfoTool creates an InfoTool for a runtime started at started.
func NewInfoTool(started time.Time, now func() time.Time) *InfoTool {
	return &InfoTool{started: started, now: now}
}

// Definition returns the MCP tool definition for registration.
func (t *InfoTool) Definition() mcp.Tool {
	return mcp.NewTool("runtime_info",
		mcp.WithDescription("Report the capability runtime's version, process id and uptime."),
	)
}

// Handle processes the runtime_info tool call.
func (t *InfoTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	now := t.now().UTC()
	return jsonResult(map[string]any{
		"name":       Name,
		"version":    Version,
		"pid":        os.Getpid(),
		"go_version": runtime.Version(),
		"started_at": t.started.Format(time.RFC3339),
		"uptime_sec": int64(now.Sub(t.started).Seconds()),
	})
}
