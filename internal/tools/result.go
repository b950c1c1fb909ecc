package tools

import (
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nerrad567/toio-bridge/internal/cube"
)

// object is a tool result body.
type object = map[string]any

// success wraps body as both structured content and a JSON text block.
func success(body object) *mcp.CallToolResult {
	b, err := json.Marshal(body)
	if err != nil {
		return failure(&cube.Error{Kind: cube.KindInternal, Message: "encoding result: " + err.Error(), Err: err})
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: string(b)}},
		StructuredContent: body,
	}
}

// failure builds the error envelope for err.
func failure(err error) *mcp.CallToolResult {
	body := object{
		"error": errorMessage(err),
		"kind":  string(cube.KindOf(err)),
	}
	b, _ := json.Marshal(body) //nolint:errcheck // two strings always marshal
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: string(b)}},
		StructuredContent: body,
		IsError:           true,
	}
}

func errorMessage(err error) string {
	var e *cube.Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return err.Error()
}
