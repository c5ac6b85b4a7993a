package toolkit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// getResultText extracts the text content from a CallToolResult.
func getResultText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func fakeEnv(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestProvidersTool_Handle_ListsCatalog(t *testing.T) {
	tool := NewProvidersTool(fakeEnv(map[string]string{"OPENAI_API_KEY": "sk-test"}))

	result, err := tool.Handle(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %s", getResultText(result))
	}

	var body struct {
		Providers []Provider `json:"providers"`
	}
	if err := json.Unmarshal([]byte(getResultText(result)), &body); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if len(body.Providers) != len(providerCatalog) {
		t.Fatalf("expected %d providers, got %d", len(providerCatalog), len(body.Providers))
	}

	available := map[string]bool{}
	for _, p := range body.Providers {
		available[p.ID] = p.Available
	}
	if !available["openai"] {
		t.Error("openai should be available when OPENAI_API_KEY is set")
	}
	if available["anthropic"] {
		t.Error("anthropic should not be available without credentials")
	}
	if !available["ollama"] {
		t.Error("local providers are always available")
	}
}

func TestProvidersTool_Handle_AvailableOnly(t *testing.T) {
	tool := NewProvidersTool(fakeEnv(nil))

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{"available_only": true}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	var body struct {
		Providers []Provider `json:"providers"`
	}
	if err := json.Unmarshal([]byte(getResultText(result)), &body); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if len(body.Providers) != 1 || body.Providers[0].ID != "ollama" {
		t.Fatalf("expected only the local provider, got %+v", body.Providers)
	}
}

func TestEchoTool_Handle_ReturnsArguments(t *testing.T) {
	tool := NewEchoTool()

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{"n": float64(7), "tag": "x"}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if got := getResultText(result); got != `{"n":7,"tag":"x"}` {
		t.Fatalf("unexpected echo: %s", got)
	}
}

func TestEchoTool_Handle_NoArguments(t *testing.T) {
	result, err := NewEchoTool().Handle(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if got := getResultText(result); got != `{}` {
		t.Fatalf("expected empty object, got %s", got)
	}
}

func TestInfoTool_Handle_ReportsUptime(t *testing.T) {
	started := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tool := NewInfoTool(started, func() time.Time { return started.Add(90 * time.Second) })

	result, err := tool.Handle(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(getResultText(result)), &body); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if body["uptime_sec"] != float64(90) {
		t.Errorf("uptime_sec = %v, want 90", body["uptime_sec"])
	}
	if body["name"] != Name {
		t.Errorf("name = %v, want %s", body["name"], Name)
	}
}

func TestNew_RegistersTools(t *testing.T) {
	ctx := context.Background()
	c, err := client.NewInProcessClient(New(Options{Getenv: fakeEnv(nil)}))
	if err != nil {
		t.Fatalf("in-process client: %v", err)
	}
	defer c.Close()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "toolkit-test", Version: "test"}
	res, err := c.Initialize(ctx, initReq)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if res.ServerInfo.Name != Name {
		t.Errorf("server name = %q, want %q", res.ServerInfo.Name, Name)
	}

	tools, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	registered := map[string]bool{}
	for _, tool := range tools.Tools {
		registered[tool.Name] = true
	}
	for _, name := range []string{"list_ai_providers", "echo", "runtime_info"} {
		if !registered[name] {
			t.Errorf("tool %s is not registered", name)
		}
	}
}
