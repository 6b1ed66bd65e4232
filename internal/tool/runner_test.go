package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	name    string
	params  map[string]interface{}
	execute func(ctx context.Context, input json.RawMessage) (json.RawMessage, error)
}

func (s *stubTool) Name() string                       { return s.name }
func (s *stubTool) Description() string                { return "stub tool" }
func (s *stubTool) Parameters() map[string]interface{} { return s.params }

func (s *stubTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	return s.execute(ctx, input)
}

func echoTool(name string) *stubTool {
	return &stubTool{
		name: name,
		params: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{"type": "string"},
			},
			"required": []string{"path"},
		},
		execute: func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			return input, nil
		},
	}
}

func newTestRunner(tools ...Tool) *Runner {
	registry := NewRegistry()
	for _, t := range tools {
		registry.Register(t)
	}
	return NewRunner(registry)
}

func TestRunnerDispatch_Success(t *testing.T) {
	runner := newTestRunner(echoTool("read_file"))

	res := runner.Dispatch(context.Background(), Request{
		Name:      "read_file",
		Arguments: json.RawMessage(`{"path":"notes.txt"}`),
	})

	require.True(t, res.OK())
	assert.JSONEq(t, `{"path":"notes.txt"}`, string(res.Payload))
}

func TestRunnerDispatch_UnknownTool(t *testing.T) {
	runner := newTestRunner()

	res := runner.Dispatch(context.Background(), Request{Name: "nope"})

	assert.False(t, res.OK())
	assert.Equal(t, "unknown tool: nope", res.Err)
}

func TestRunnerDispatch_StringBlobArguments(t *testing.T) {
	runner := newTestRunner(echoTool("read_file"))

	// Some models double-encode arguments as a JSON string.
	res := runner.Dispatch(context.Background(), Request{
		Name:      "read_file",
		Arguments: json.RawMessage(`"{\"path\":\"notes.txt\"}"`),
	})

	require.True(t, res.OK())
	assert.JSONEq(t, `{"path":"notes.txt"}`, string(res.Payload))
}

func TestRunnerDispatch_NonObjectArguments(t *testing.T) {
	runner := newTestRunner(echoTool("read_file"))

	res := runner.Dispatch(context.Background(), Request{
		Name:      "read_file",
		Arguments: json.RawMessage(`[1,2,3]`),
	})

	assert.False(t, res.OK())
	assert.Equal(t, "invalid arguments", res.Err)
}

func TestRunnerDispatch_ValidationFailure(t *testing.T) {
	runner := newTestRunner(echoTool("read_file"))

	res := runner.Dispatch(context.Background(), Request{
		Name:      "read_file",
		Arguments: json.RawMessage(`{}`),
	})

	assert.False(t, res.OK())
	assert.Contains(t, res.Err, "invalid arguments")
	assert.Contains(t, res.Err, "missing required field: path")
}

func TestRunnerDispatch_ExecutionError(t *testing.T) {
	boom := &stubTool{
		name:   "boom",
		params: map[string]interface{}{"type": "object"},
		execute: func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			return nil, fmt.Errorf("disk on fire")
		},
	}
	runner := newTestRunner(boom)

	res := runner.Dispatch(context.Background(), Request{Name: "boom"})

	assert.False(t, res.OK())
	assert.Equal(t, "disk on fire", res.Err)
}

func TestRunnerDispatch_EmptyArgumentsBecomeObject(t *testing.T) {
	var seen json.RawMessage
	capture := &stubTool{
		name:   "capture",
		params: map[string]interface{}{"type": "object"},
		execute: func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			seen = input
			return json.RawMessage(`{"message":"ok"}`), nil
		},
	}
	runner := newTestRunner(capture)

	res := runner.Dispatch(context.Background(), Request{Name: "capture"})

	require.True(t, res.OK())
	assert.JSONEq(t, `{}`, string(seen))
}

func TestRunnerDispatchAll_SequentialAndIsolated(t *testing.T) {
	var order []string
	record := func(name string) *stubTool {
		return &stubTool{
			name:   name,
			params: map[string]interface{}{"type": "object"},
			execute: func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
				order = append(order, name)
				if name == "second" {
					return nil, fmt.Errorf("second failed")
				}
				return json.RawMessage(`{"message":"ok"}`), nil
			},
		}
	}
	runner := newTestRunner(record("first"), record("second"), record("third"))

	results := runner.DispatchAll(context.Background(), []Request{
		{Name: "first"},
		{Name: "second"},
		{Name: "third"},
	})

	// One failure never aborts the round.
	require.Len(t, results, 3)
	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.True(t, results[2].OK())
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestRegistryDescriptors(t *testing.T) {
	runner := newTestRunner(echoTool("b_tool"), echoTool("a_tool"))

	defs := runner.Registry().Descriptors()
	require.Len(t, defs, 2)
	assert.Equal(t, "a_tool", defs[0].Function.Name)
	assert.Equal(t, "b_tool", defs[1].Function.Name)
	assert.Equal(t, "function", defs[0].Type)
}
