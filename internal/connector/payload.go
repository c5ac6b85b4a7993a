package connector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// normalizePayload выбирает форму ответа провайдера:
// structuredContent, затем единственный текстовый блок с JSON-объектом
// или массивом, иначе {"content": [...]} с исходными блоками.
func normalizePayload(res *mcp.CallToolResult) (json.RawMessage, error) {
	if res.StructuredContent != nil {
		data, err := json.Marshal(res.StructuredContent)
		if err != nil {
			return nil, fmt.Errorf("encode structured content: %w", err)
		}
		return data, nil
	}
	if len(res.Content) == 1 {
		if text, ok := textOf(res.Content[0]); ok {
			trimmed := bytes.TrimSpace([]byte(text))
			if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid(trimmed) {
				return json.RawMessage(trimmed), nil
			}
		}
	}
	content := res.Content
	if content == nil {
		content = []mcp.Content{}
	}
	data, err := json.Marshal(map[string]any{"content": content})
	if err != nil {
		return nil, fmt.Errorf("encode content: %w", err)
	}
	return data, nil
}

// toolErrorMessage собирает текст ошибки из результата с isError.
func toolErrorMessage(res *mcp.CallToolResult) string {
	parts := make([]string, 0, len(res.Content))
	for _, c := range res.Content {
		if text, ok := textOf(c); ok && strings.TrimSpace(text) != "" {
			parts = append(parts, strings.TrimSpace(text))
		}
	}
	if len(parts) == 0 {
		return "capability reported an error"
	}
	return strings.Join(parts, "\n")
}

func textOf(c mcp.Content) (string, bool) {
	switch v := c.(type) {
	case mcp.TextContent:
		return v.Text, true
	case *mcp.TextContent:
		return v.Text, true
	default:
		return "", false
	}
}
