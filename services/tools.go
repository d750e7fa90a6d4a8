package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go_audit_backend/models"
	"go_audit_backend/pkg/logging"
)

const searchToolName = "search_audit_db"

// ToolResult is what a tool hands back to the agent loop: the text returned
// to the model plus citation items surfaced to the caller as metadata.
type ToolResult struct {
	Content   string
	Citations []models.SearchResult
}

// ToolFunc executes one tool call. scopeKey identifies the vectorized file
// the call is allowed to search.
type ToolFunc func(ctx context.Context, scopeKey string, arguments interface{}) (*ToolResult, error)

// ToolRegistry maps tool names to implementations. Names are validated at
// construction; resolving an unknown name is an error, never code execution.
type ToolRegistry struct {
	tools       map[string]ToolFunc
	definitions []models.ToolDefinition
}

func NewToolRegistry(searcher Searcher, enabled []string) (*ToolRegistry, error) {
	available := map[string]ToolFunc{
		searchToolName: searchAuditDB(searcher),
	}
	definitions := map[string]models.ToolDefinition{
		searchToolName: {
			Type: "function",
			Function: models.ToolFunction{
				Name:        searchToolName,
				Description: "Search the vectorized audit document for passages matching the given keywords.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"keywords": {"type": "array", "items": {"type": "string"}, "description": "search keywords"}
					},
					"required": ["keywords"]
				}`),
			},
		},
	}

	r := &ToolRegistry{tools: make(map[string]ToolFunc)}
	for _, name := range enabled {
		fn, ok := available[name]
		if !ok {
			return nil, fmt.Errorf("unknown tool %q", name)
		}
		r.tools[name] = fn
		r.definitions = append(r.definitions, definitions[name])
	}
	return r, nil
}

// Definitions returns the tool declarations advertised to the model.
func (r *ToolRegistry) Definitions() []models.ToolDefinition {
	return r.definitions
}

// Dispatch resolves and runs one merged tool call.
func (r *ToolRegistry) Dispatch(ctx context.Context, scopeKey string, call models.MergedToolCall) (*ToolResult, error) {
	fn, ok := r.tools[call.Name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", call.Name)
	}
	return fn(ctx, scopeKey, call.Arguments)
}

// searchAuditDB queries the knowledge store once per keyword, skipping
// keywords whose search fails so one bad keyword cannot sink the tool round.
func searchAuditDB(searcher Searcher) ToolFunc {
	return func(ctx context.Context, scopeKey string, arguments interface{}) (*ToolResult, error) {
		if scopeKey == "" {
			return &ToolResult{Content: "no vectorized file is associated with this audit; nothing to search"}, nil
		}
		keywords := parseKeywords(arguments)
		if len(keywords) == 0 {
			return &ToolResult{Content: "no keywords given"}, nil
		}

		var contents strings.Builder
		var citations []models.SearchResult
		for _, kw := range keywords {
			results, err := searcher.Search(ctx, scopeKey, kw)
			if err != nil {
				logging.Logger.Error("fail search_audit_db", "keyword", kw, "error", err)
				continue
			}
			for _, item := range results {
				contents.WriteString(item.Content)
				contents.WriteString("\n")
				citations = append(citations, item)
			}
		}
		if contents.Len() == 0 {
			return &ToolResult{Content: "no matching passages found"}, nil
		}
		return &ToolResult{Content: contents.String(), Citations: citations}, nil
	}
}

// parseKeywords accepts either {"keywords": [...]} or a bare string of
// space-separated terms, the two shapes models actually produce.
func parseKeywords(arguments interface{}) []string {
	switch v := arguments.(type) {
	case map[string]interface{}:
		raw, ok := v["keywords"]
		if !ok {
			return nil
		}
		list, ok := raw.([]interface{})
		if !ok {
			if s, ok := raw.(string); ok {
				return strings.Fields(s)
			}
			return nil
		}
		keywords := make([]string, 0, len(list))
		for _, item := range list {
			if s := strings.TrimSpace(fmt.Sprintf("%v", item)); s != "" {
				keywords = append(keywords, s)
			}
		}
		return keywords
	case string:
		return strings.Fields(v)
	default:
		return nil
	}
}
