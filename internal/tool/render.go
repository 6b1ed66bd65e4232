package tool

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Render turns a result into the textual form fed back to the model. The
// payload shape decides the rendering: file content, directory items,
// command output, todos, or search results.
func (r Result) Render() string {
	if !r.OK() {
		return fmt.Sprintf("Error from %s: %s", r.Request.Name, r.Err)
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(r.Payload, &payload); err != nil {
		return string(r.Payload)
	}

	args := map[string]string{}
	var rawArgs map[string]interface{}
	if err := json.Unmarshal(r.Request.Arguments, &rawArgs); err == nil {
		for k, v := range rawArgs {
			if s, ok := v.(string); ok {
				args[k] = s
			}
		}
	}

	switch {
	case hasKey(payload, "content"):
		var content string
		json.Unmarshal(payload["content"], &content)
		return fmt.Sprintf("File content from %s:\n%s", argOr(args, "path", "unknown"), content)

	case hasKey(payload, "items"):
		return renderItems(payload["items"], argOr(args, "path", "."))

	case hasKey(payload, "return_code"):
		return renderCommand(payload)

	case hasKey(payload, "todos"):
		return renderTodos(payload["todos"])

	case hasKey(payload, "answer") || hasKey(payload, "results"):
		return renderSearch(payload)

	case hasKey(payload, "message"):
		var message string
		json.Unmarshal(payload["message"], &message)
		return message

	default:
		return string(r.Payload)
	}
}

// RenderAll concatenates each result into the single synthetic message
// appended after a dispatch round.
func RenderAll(results []Result) string {
	parts := make([]string, 0, len(results))
	for _, res := range results {
		parts = append(parts, res.Render())
	}
	return strings.Join(parts, "\n\n")
}

func hasKey(payload map[string]json.RawMessage, key string) bool {
	_, ok := payload[key]
	return ok
}

func argOr(args map[string]string, key, fallback string) string {
	if v, ok := args[key]; ok && v != "" {
		return v
	}
	return fallback
}

func renderItems(raw json.RawMessage, path string) string {
	var items []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return string(raw)
	}

	lines := make([]string, 0, len(items))
	for _, item := range items {
		marker := "[file]"
		if item.Type == "directory" {
			marker = "[dir] "
		}
		lines = append(lines, fmt.Sprintf("%s %s", marker, item.Name))
	}
	return fmt.Sprintf("Directory listing for %s:\n%s", path, strings.Join(lines, "\n"))
}

func renderCommand(payload map[string]json.RawMessage) string {
	var stdout, stderr string
	var returnCode int
	json.Unmarshal(payload["stdout"], &stdout)
	json.Unmarshal(payload["stderr"], &stderr)
	json.Unmarshal(payload["return_code"], &returnCode)

	var b strings.Builder
	fmt.Fprintf(&b, "Command exited with code %d.", returnCode)
	if strings.TrimSpace(stdout) != "" {
		fmt.Fprintf(&b, "\nstdout:\n%s", strings.TrimRight(stdout, "\n"))
	}
	if strings.TrimSpace(stderr) != "" {
		fmt.Fprintf(&b, "\nstderr:\n%s", strings.TrimRight(stderr, "\n"))
	}
	return b.String()
}

func renderTodos(raw json.RawMessage) string {
	var todos []struct {
		ID          string `json:"id"`
		Description string `json:"description"`
		Priority    string `json:"priority"`
		Status      string `json:"status"`
	}
	if err := json.Unmarshal(raw, &todos); err != nil {
		return string(raw)
	}
	if len(todos) == 0 {
		return "No todos found."
	}

	lines := make([]string, 0, len(todos))
	for _, t := range todos {
		lines = append(lines, fmt.Sprintf("- [%s] (%s, %s) %s", t.ID, t.Status, t.Priority, t.Description))
	}
	return "Todos:\n" + strings.Join(lines, "\n")
}

func renderSearch(payload map[string]json.RawMessage) string {
	if raw, ok := payload["answer"]; ok {
		var answer string
		if err := json.Unmarshal(raw, &answer); err == nil && answer != "" {
			return "Search answer: " + answer
		}
	}

	var results []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		URL     string `json:"url"`
	}
	if raw, ok := payload["results"]; ok {
		if err := json.Unmarshal(raw, &results); err != nil {
			return string(raw)
		}
	}
	if len(results) == 0 {
		return "No search results."
	}

	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("- %s (%s)\n  %s", r.Title, r.URL, r.Snippet))
	}
	return "Search results:\n" + strings.Join(lines, "\n")
}
