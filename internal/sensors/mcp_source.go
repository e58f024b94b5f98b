package sensors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/burnout-twin/burnout-twin/internal/proposal"
)

// #region source
// MCPSource calls one tool on an MCP server and decodes the result as a
// list of JSON objects. Each Fetch opens and closes its own session.
type MCPSource struct {
	Tool      string
	Arguments map[string]any

	// transport returns a fresh transport per session.
	transport func() sdkmcp.Transport
}

// NewCommandSource runs command (split on whitespace) as a stdio MCP server.
func NewCommandSource(command, tool string, args map[string]any) (*MCPSource, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, errors.New("mcp source: empty command")
	}
	return &MCPSource{
		Tool:      tool,
		Arguments: args,
		transport: func() sdkmcp.Transport {
			return &sdkmcp.CommandTransport{Command: exec.Command(fields[0], fields[1:]...)}
		},
	}, nil
}

// NewTransportSource uses the given transport factory. Tests pass
// in-memory transports.
func NewTransportSource(transport func() sdkmcp.Transport, tool string, args map[string]any) *MCPSource {
	return &MCPSource{Tool: tool, Arguments: args, transport: transport}
}

// Fetch calls the tool and returns the decoded items.
func (s *MCPSource) Fetch(ctx context.Context) ([]map[string]any, error) {
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "burnout-twin", Version: "v0.1.0"}, nil)
	session, err := client.Connect(ctx, s.transport(), nil)
	if err != nil {
		return nil, fmt.Errorf("mcp connect: %w", err)
	}
	defer session.Close()

	args := s.Arguments
	if args == nil {
		args = map[string]any{}
	}
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: s.Tool, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("mcp call %s: %w", s.Tool, err)
	}

	var text strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			text.WriteString(tc.Text)
		}
	}
	if res.IsError {
		return nil, fmt.Errorf("mcp call %s: tool error: %s", s.Tool, text.String())
	}
	return decodeItems(text.String())
}

// #endregion source

// #region decode
// decodeItems pulls the first JSON value out of text. A top-level array is
// returned as-is; an object holding a list under a common key yields that
// list; any other object is a single item.
func decodeItems(text string) ([]map[string]any, error) {
	raw, ok := proposal.Extract(text)
	if !ok {
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		return nil, fmt.Errorf("decode mcp result: no JSON in %q", truncate(text, 80))
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("decode mcp result: %w", err)
	}
	switch t := v.(type) {
	case []any:
		return objects(t), nil
	case map[string]any:
		for _, key := range []string{"events", "items", "tracks", "results"} {
			if list, ok := t[key].([]any); ok {
				return objects(list), nil
			}
		}
		return []map[string]any{t}, nil
	}
	return nil, fmt.Errorf("decode mcp result: unexpected %T", v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func objects(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// #endregion decode
