// Package extract turns a finished model turn into normalized tool
// requests. Three tiers are tried in order and the first non-empty
// result wins: structured calls from the wire, inline directives in the
// assistant text, then conservative intent matching on the user input.
package extract

import (
	"log/slog"

	"github.com/harunnryd/kuroko/internal/model/contract"
	"github.com/harunnryd/kuroko/internal/tool"
)

// Extractor resolves tool calls for one completed turn. It only ever
// produces names present in the registry; everything else is noise.
type Extractor struct {
	registry *tool.Registry
	rules    []intentRule
}

func New(registry *tool.Registry) *Extractor {
	return &Extractor{
		registry: registry,
		rules:    defaultIntentRules(),
	}
}

// Extract applies the tier order. Structured calls are model-native and
// always win; directive text is the usual path for local models without
// native tool support; the heuristic tier is a degraded-mode fallback.
func (e *Extractor) Extract(structured []contract.ToolCall, assistantText, userInput string) []tool.Request {
	if reqs := e.fromStructured(structured); len(reqs) > 0 {
		slog.Debug("Extracted structured tool calls", "count", len(reqs))
		return reqs
	}

	if reqs := e.fromDirectives(assistantText); len(reqs) > 0 {
		slog.Debug("Extracted directive tool calls", "count", len(reqs))
		return reqs
	}

	if reqs := e.fromIntent(userInput); len(reqs) > 0 {
		slog.Debug("Inferred tool calls from user input", "count", len(reqs))
		return reqs
	}

	return nil
}

func (e *Extractor) fromStructured(calls []contract.ToolCall) []tool.Request {
	reqs := make([]tool.Request, 0, len(calls))
	for _, call := range calls {
		name := tool.NormalizeToolName(call.Function.Name)
		if name == "" {
			continue
		}
		reqs = append(reqs, tool.Request{
			Name:      name,
			Arguments: call.Function.Arguments,
		})
	}
	return reqs
}
