package usecase

import (
	"encoding/json"
	"fmt"
	"regexp"

	"mindhub/internal/domain"
)

var (
	fencedJSONRe = regexp.MustCompile("```(?:json)?\\s*\\n?([\\s\\S]*?)\\n?```")
	bareObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)
)

// InterpretToolCalls turns raw tool calls into structured map mutations
// for the frontend. When no tools were called, it falls back to mining
// JSON out of the text content.
func InterpretToolCalls(toolCalls []domain.ToolCall, content string) domain.Interpretation {
	var out domain.Interpretation

	if len(toolCalls) == 0 {
		parsed := TryParseJSON(content)
		if parsed == nil {
			return out
		}
		if nodes := anySlice(parsed["nodes"]); nodes != nil {
			out.GeneratedNodes = nodes
		}
		if edges := anySlice(parsed["edges"]); edges != nil {
			out.GeneratedEdges = edges
		}
		if tasks := anySlice(parsed["tasks"]); tasks != nil {
			out.GeneratedTasks = tasks
		}
		if analysis, ok := parsed["analysis"].(map[string]any); ok {
			out.Analysis = analysis
		}
		return out
	}

	for _, call := range toolCalls {
		input := decodeInput(call.Input)

		switch call.Name {
		case "create_nodes":
			out.GeneratedNodes = append(out.GeneratedNodes, itemsOrSelf(input, "nodes")...)

		case "create_edges":
			out.GeneratedEdges = append(out.GeneratedEdges, itemsOrSelf(input, "edges")...)

		case "create_tasks":
			out.GeneratedTasks = append(out.GeneratedTasks, itemsOrSelf(input, "tasks")...)

		case "analyze_map", "find_patterns":
			if out.Analysis == nil {
				out.Analysis = make(map[string]any)
			}
			for k, v := range input {
				out.Analysis[k] = v
			}

		case "update_node", "reorganize_map", "create_clusters", "update_layout":
			// Surface as action items the frontend can apply.
			node := map[string]any{"action": call.Name}
			for k, v := range input {
				node[k] = v
			}
			out.GeneratedNodes = append(out.GeneratedNodes, node)

		case "search_web":
			// Web search results become research nodes.
			query, _ := input["query"].(string)
			node := map[string]any{
				"type":  "reference",
				"label": fmt.Sprintf("Pesquisa: %s", query),
			}
			for k, v := range input {
				node[k] = v
			}
			out.GeneratedNodes = append(out.GeneratedNodes, node)

		case "add_citations":
			// Citations become edge metadata.
			edge := map[string]any{"type": "citation"}
			for k, v := range input {
				edge[k] = v
			}
			out.GeneratedEdges = append(out.GeneratedEdges, edge)

		case "generate_report":
			// Report text is already in the content.
		}
	}

	return out
}

// TryParseJSON extracts a JSON object from free text: direct parse
// first, then fenced code blocks, then the first bare object literal.
func TryParseJSON(text string) map[string]any {
	if text == "" {
		return nil
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		return parsed
	}

	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		if err := json.Unmarshal([]byte(m[1]), &parsed); err == nil {
			return parsed
		}
		return nil
	}

	if m := bareObjectRe.FindString(text); m != "" {
		if err := json.Unmarshal([]byte(m), &parsed); err == nil {
			return parsed
		}
	}

	return nil
}

func decodeInput(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var input map[string]any
	if err := json.Unmarshal(raw, &input); err != nil {
		return map[string]any{}
	}
	return input
}

// itemsOrSelf returns input[key] as a slice of objects, or the whole
// input wrapped in a slice when the key is absent.
func itemsOrSelf(input map[string]any, key string) []map[string]any {
	if items := anySlice(input[key]); items != nil {
		return items
	}
	return []map[string]any{input}
}

func anySlice(v any) []map[string]any {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
