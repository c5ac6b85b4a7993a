package toolkit

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Provider describes one AI backend the VentAI assistant can route to.
type Provider struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Models    []string `json:"models"`
	Available bool     `json:"available"`
	// Local providers need no credentials.
	Local bool `json:"local"`

	credentialEnv string
}

var providerCatalog = []Provider{
	{ID: "openai", Name: "OpenAI", Models: []string{"gpt-4o", "gpt-4o-mini"}, credentialEnv: "OPENAI_API_KEY"},
	{ID: "anthropic", Name: "Anthropic", Models: []string{"claude-3-5-sonnet", "claude-3-5-haiku"}, credentialEnv: "ANTHROPIC_API_KEY"},
	{ID: "gemini", Name: "Google Gemini", Models: []string{"gemini-1.5-pro", "gemini-1.5-flash"}, credentialEnv: "GEMINI_API_KEY"},
	{ID: "ollama", Name: "Ollama", Models: []string{"llama3.1", "mistral"}, Local: true},
}

// ProvidersTool handles the list_ai_providers tool.
type ProvidersTool struct {
	getenv func(string) string
}

// NewProvidersTool creates a ProvidersTool that resolves credentials with getenv.
func NewProvidersTool(getenv func(string) string) *ProvidersTool {
	return &ProvidersTool{getenv: getenv}
}

// Definition returns the MCP tool definition for registration.
func (t *ProvidersTool) Definition() mcp.Tool {
	return mcp.NewTool("list_ai_providers",
		mcp.WithDescription(
			"List the AI providers available to the VentAI assistant. "+
				"A provider is available when its credentials are configured; local providers are always available.",
		),
		mcp.WithBoolean("available_only",
			mcp.Description("Return only providers that are currently available."),
		),
	)
}

// Handle processes the list_ai_providers tool call.
func (t *ProvidersTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	availableOnly := req.GetBool("available_only", false)

	providers := make([]Provider, 0, len(providerCatalog))
	for _, p := range providerCatalog {
		p.Available = p.Local || strings.TrimSpace(t.getenv(p.credentialEnv)) != ""
		if availableOnly && !p.Available {
			continue
		}
		providers = append(providers, p)
	}

	return jsonResult(map[string]any{"providers": providers})
}
