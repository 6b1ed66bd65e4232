package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/harunnryd/kuroko/internal/logger"
)

// Request is one normalized tool invocation produced by the extractor.
type Request struct {
	Name      string
	Arguments json.RawMessage
}

// Result is the uniform outcome of a dispatch. Exactly one of Payload or
// Err is meaningful; Err empty means success.
type Result struct {
	Request Request
	Payload json.RawMessage
	Err     string
}

func (r Result) OK() bool {
	return r.Err == ""
}

func failure(req Request, format string, args ...interface{}) Result {
	return Result{Request: req, Err: fmt.Sprintf(format, args...)}
}

// Runner dispatches tool requests against a registry. It is the single
// boundary where collaborator failures become values: Dispatch never
// returns a Go error and never panics across it, and it performs no
// retries of its own.
type Runner struct {
	registry *Registry
}

func NewRunner(registry *Registry) *Runner {
	return &Runner{registry: registry}
}

func (r *Runner) Registry() *Registry {
	return r.registry
}

func (r *Runner) Dispatch(ctx context.Context, req Request) Result {
	t, ok := r.registry.Get(req.Name)
	if !ok {
		return failure(req, "unknown tool: %s", NormalizeToolName(req.Name))
	}

	input, err := NormalizeArguments(req.Arguments)
	if err != nil {
		slog.Warn("Tool arguments could not be decoded", "tool", req.Name, "error", err)
		return failure(req, "invalid arguments")
	}
	req.Arguments = input

	if err := ValidateInput(t.Parameters(), input); err != nil {
		slog.Warn("Tool input validation failed", "tool", req.Name, "error", err)
		return failure(req, "invalid arguments: %v", err)
	}

	start := time.Now()
	slog.Info("Dispatching tool", "tool", req.Name, "session_id", logger.GetSessionID(ctx))

	payload, err := t.Execute(ctx, input)

	duration := time.Since(start)
	if err != nil {
		slog.Error("Tool execution failed", "tool", req.Name, "error", err, "duration", duration)
		return failure(req, "%v", err)
	}

	slog.Info("Tool execution success", "tool", req.Name, "duration", duration)
	return Result{Request: req, Payload: payload}
}

// DispatchAll executes requests sequentially in order. Later calls may
// depend on earlier side effects, so there is no concurrency here.
func (r *Runner) DispatchAll(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, 0, len(reqs))
	for _, req := range reqs {
		results = append(results, r.Dispatch(ctx, req))
	}
	return results
}

// NormalizeArguments accepts either a JSON object or a JSON-encoded
// string wrapping one, which is how some models serialize call arguments.
func NormalizeArguments(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return json.RawMessage(`{}`), nil
	}

	var blob string
	if err := json.Unmarshal(raw, &blob); err == nil {
		raw = json.RawMessage(blob)
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	return raw, nil
}
