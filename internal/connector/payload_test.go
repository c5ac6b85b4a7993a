package connector

import (
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func TestNormalizePayloadStructuredContent(t *testing.T) {
	res := &mcp.CallToolResult{
		StructuredContent: map[string]any{"providers": []string{"ollama"}},
		Content:           []mcp.Content{mcp.NewTextContent("ignored")},
	}
	got, err := normalizePayload(res)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if string(got) != `{"providers":["ollama"]}` {
		t.Fatalf("unexpected payload: %s", got)
	}
}

func TestNormalizePayloadJSONText(t *testing.T) {
	res := mcp.NewToolResultText("  {\"duct_diameter_in\": 12.5}\n")
	got, err := normalizePayload(res)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if string(got) != `{"duct_diameter_in": 12.5}` {
		t.Fatalf("unexpected payload: %s", got)
	}
}

func TestNormalizePayloadPlainText(t *testing.T) {
	res := mcp.NewToolResultText("all good")
	got, err := normalizePayload(res)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	var body struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(got, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Content) != 1 || body.Content[0].Type != "text" || body.Content[0].Text != "all good" {
		t.Fatalf("unexpected payload: %s", got)
	}
}

func TestNormalizePayloadScalarTextIsWrapped(t *testing.T) {
	got, err := normalizePayload(mcp.NewToolResultText("42"))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if string(got) == "42" {
		t.Fatalf("scalar text must stay inside content blocks")
	}
}

func TestNormalizePayloadEmpty(t *testing.T) {
	got, err := normalizePayload(&mcp.CallToolResult{})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if string(got) != `{"content":[]}` {
		t.Fatalf("unexpected payload: %s", got)
	}
}

func TestToolErrorMessage(t *testing.T) {
	res := &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{mcp.NewTextContent("first"), mcp.NewTextContent("  "), mcp.NewTextContent("second")},
	}
	if got := toolErrorMessage(res); got != "first\nsecond" {
		t.Fatalf("unexpected message: %q", got)
	}
	if got := toolErrorMessage(&mcp.CallToolResult{IsError: true}); got == "" {
		t.Fatalf("expected fallback message")
	}
}
