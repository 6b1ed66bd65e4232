package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/harunnryd/kuroko/internal/errors"
	"github.com/harunnryd/kuroko/internal/extract"
	"github.com/harunnryd/kuroko/internal/model/contract"
	"github.com/harunnryd/kuroko/internal/orchestrator/memory"
	"github.com/harunnryd/kuroko/internal/tool"
	_ "github.com/harunnryd/kuroko/internal/tool/builtin"
)

// scriptedTransport replays canned turns; each turn is a list of
// fragments. err entries abort the matching Stream call instead.
type scriptedTransport struct {
	turns    [][]contract.Fragment
	errs     []error
	requests []contract.ChatRequest
}

type scriptedStream struct {
	fragments []contract.Fragment
	pos       int
}

func (s *scriptedStream) Next() (contract.Fragment, error) {
	if s.pos >= len(s.fragments) {
		return contract.Fragment{}, io.EOF
	}
	f := s.fragments[s.pos]
	s.pos++
	return f, nil
}

func (s *scriptedStream) Close() {}

func (t *scriptedTransport) Stream(ctx context.Context, req contract.ChatRequest) (FragmentStream, error) {
	idx := len(t.requests)
	t.requests = append(t.requests, req)

	if idx < len(t.errs) && t.errs[idx] != nil {
		return nil, t.errs[idx]
	}
	if idx >= len(t.turns) {
		return &scriptedStream{fragments: textTurn("nothing more to say")}, nil
	}
	return &scriptedStream{fragments: t.turns[idx]}, nil
}

func textTurn(text string) []contract.Fragment {
	return []contract.Fragment{
		{Message: contract.FragmentMessage{Content: text}},
		{Done: true},
	}
}

type recordingEmitter struct {
	deltas  []string
	calls   []string
	results []tool.Result
	notices []string
}

func (e *recordingEmitter) Delta(text string)            { e.deltas = append(e.deltas, text) }
func (e *recordingEmitter) ToolCall(name string)         { e.calls = append(e.calls, name) }
func (e *recordingEmitter) ToolResult(res tool.Result)   { e.results = append(e.results, res) }
func (e *recordingEmitter) Notice(text string)           { e.notices = append(e.notices, text) }

func newTestKernel(t *testing.T, transport Transport, maxRounds int) *Kernel {
	t.Helper()

	registry := tool.NewRegistry()
	builtins, err := tool.InstantiateBuiltins(tool.BuiltinOptions{})
	require.NoError(t, err)
	for _, bt := range builtins {
		registry.Register(bt)
	}

	return NewKernel(Options{
		Transport: transport,
		Memory:    memory.NewManager(1_000_000, nil),
		Extractor: extract.New(registry),
		Runner:    tool.NewRunner(registry),
		Model:     "test-model",
		MaxRounds: maxRounds,
	})
}

func TestHandleTurn_PlainReply(t *testing.T) {
	transport := &scriptedTransport{turns: [][]contract.Fragment{
		textTurn("Hello! How can I help?"),
	}}
	k := newTestKernel(t, transport, 25)
	emitter := &recordingEmitter{}

	outcome, err := k.HandleTurn(context.Background(), "hi there", emitter)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIdle, outcome)
	assert.Equal(t, []string{"Hello! How can I help?"}, emitter.deltas)
	assert.Empty(t, emitter.calls)

	msgs := k.memory.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, contract.RoleUser, msgs[0].Role)
	assert.Equal(t, contract.RoleAssistant, msgs[1].Role)
}

func TestHandleTurn_HeuristicListFilesScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("x"), 0o644))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	transport := &scriptedTransport{turns: [][]contract.Fragment{
		textTurn("Sure, let me check."),
		textTurn("The directory contains hello.txt."),
	}}
	k := newTestKernel(t, transport, 25)
	emitter := &recordingEmitter{}

	outcome, err := k.HandleTurn(context.Background(), "list files in .", emitter)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIdle, outcome)

	require.Equal(t, []string{"list_directory"}, emitter.calls)
	require.Len(t, emitter.results, 1)
	assert.True(t, emitter.results[0].OK())

	// the result round was fed back and a follow-up reply streamed
	require.Len(t, transport.requests, 2)
	fedBack := transport.requests[1].Messages
	assert.Contains(t, fedBack[len(fedBack)-1].Content, "Directory listing for .")
	assert.Contains(t, fedBack[len(fedBack)-1].Content, "hello.txt")
}

func TestHandleTurn_DirectiveWriteFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.txt")

	directive := fmt.Sprintf(`TOOL_CALL: write_file(path='%s', content='line1\nline2')`, target)
	transport := &scriptedTransport{turns: [][]contract.Fragment{
		textTurn(directive),
		textTurn("Written."),
	}}
	k := newTestKernel(t, transport, 25)

	outcome, err := k.HandleTurn(context.Background(), "please write the file", &recordingEmitter{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIdle, outcome)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2", string(data))
}

func TestHandleTurn_StructuredCallsWin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.txt")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	args, _ := json.Marshal(map[string]string{"path": path})
	turn := []contract.Fragment{
		{Message: contract.FragmentMessage{Content: "reading now"}},
		{Message: contract.FragmentMessage{ToolCalls: []contract.ToolCall{{
			Function: contract.ToolCallFunction{Name: "read_file", Arguments: args},
		}}}},
		{Done: true},
	}
	transport := &scriptedTransport{turns: [][]contract.Fragment{
		turn,
		textTurn("The file says: content"),
	}}
	k := newTestKernel(t, transport, 25)
	emitter := &recordingEmitter{}

	outcome, err := k.HandleTurn(context.Background(), "read it", emitter)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIdle, outcome)
	assert.Equal(t, []string{"read_file"}, emitter.calls)
}

func TestHandleTurn_ToolsUnsupportedRetriesOnce(t *testing.T) {
	transport := &scriptedTransport{
		errs:  []error{kerrors.ErrToolsUnsupported},
		turns: [][]contract.Fragment{nil, textTurn("answered without tools")},
	}
	k := newTestKernel(t, transport, 25)
	emitter := &recordingEmitter{}

	outcome, err := k.HandleTurn(context.Background(), "hello", emitter)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIdle, outcome)

	require.Len(t, transport.requests, 2)
	assert.NotEmpty(t, transport.requests[0].Tools)
	assert.Empty(t, transport.requests[1].Tools)
	assert.NotEmpty(t, emitter.notices)
}

func TestHandleTurn_ConnectivityErrorSurfaces(t *testing.T) {
	transport := &scriptedTransport{
		errs: []error{kerrors.ErrConnectivity},
	}
	k := newTestKernel(t, transport, 25)

	outcome, err := k.HandleTurn(context.Background(), "hello", &recordingEmitter{})
	require.Error(t, err)
	assert.Equal(t, OutcomeIdleByError, outcome)
	assert.ErrorIs(t, err, kerrors.ErrConnectivity)

	// the user message stays committed
	msgs := k.memory.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)
}

func TestHandleTurn_RoundCapTerminates(t *testing.T) {
	dir := t.TempDir()
	turns := make([][]contract.Fragment, 0, 10)
	for i := 0; i < 10; i++ {
		// a different file each round so duplicate detection never fires
		path := filepath.Join(dir, fmt.Sprintf("f%d.txt", i))
		os.WriteFile(path, []byte(fmt.Sprintf("v%d", i)), 0o644)
		turns = append(turns, textTurn(fmt.Sprintf("read_file(path='%s')", path)))
	}
	transport := &scriptedTransport{turns: turns}
	k := newTestKernel(t, transport, 3)
	emitter := &recordingEmitter{}

	outcome, err := k.HandleTurn(context.Background(), "keep reading", emitter)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIdleByCap, outcome)
	assert.Len(t, emitter.calls, 3)
	assert.NotEmpty(t, emitter.notices)
}

type stubSummarizer struct{}

func (stubSummarizer) Summarize(ctx context.Context, messages []contract.Message) (string, error) {
	return "earlier rounds read several files", nil
}

func TestHandleTurn_CompactsBetweenToolRounds(t *testing.T) {
	dir := t.TempDir()
	turns := make([][]contract.Fragment, 0, 4)
	for i := 0; i < 3; i++ {
		path := filepath.Join(dir, fmt.Sprintf("big%d.txt", i))
		content := fmt.Sprintf("file %d %s", i, strings.Repeat("padding words here ", 30))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		turns = append(turns, textTurn(fmt.Sprintf("read_file(path='%s')", path)))
	}
	turns = append(turns, textTurn("done reading."))
	transport := &scriptedTransport{turns: turns}

	registry := tool.NewRegistry()
	builtins, err := tool.InstantiateBuiltins(tool.BuiltinOptions{})
	require.NoError(t, err)
	for _, bt := range builtins {
		registry.Register(bt)
	}

	// A small budget so the large tool results trip compaction inside
	// the turn, not just at turn start.
	k := NewKernel(Options{
		Transport: transport,
		Memory:    memory.NewManager(300, stubSummarizer{}),
		Extractor: extract.New(registry),
		Runner:    tool.NewRunner(registry),
		Model:     "test-model",
		MaxRounds: 25,
	})
	emitter := &recordingEmitter{}

	outcome, err := k.HandleTurn(context.Background(), "inspect the project files", emitter)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIdle, outcome)
	assert.Len(t, emitter.calls, 3)

	msgs := k.memory.Messages()
	require.NotEmpty(t, msgs)
	assert.True(t, strings.HasPrefix(msgs[0].Content, "Summary of earlier conversation: "))
	assert.Less(t, len(msgs), 8)
}

func TestHandleTurn_IdenticalRoundIsTerminal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "same.txt")
	require.NoError(t, os.WriteFile(path, []byte("same"), 0o644))

	directive := fmt.Sprintf("read_file(path='%s')", path)
	turns := make([][]contract.Fragment, 0, 10)
	for i := 0; i < 10; i++ {
		turns = append(turns, textTurn(directive))
	}
	transport := &scriptedTransport{turns: turns}
	k := newTestKernel(t, transport, 25)
	emitter := &recordingEmitter{}

	outcome, err := k.HandleTurn(context.Background(), "read it", emitter)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIdle, outcome)
	// first round dispatched, second identical round detected and stopped
	assert.Len(t, emitter.calls, 2)
}

func TestHandleTurn_NoToolsDisablesExtraction(t *testing.T) {
	transport := &scriptedTransport{turns: [][]contract.Fragment{
		textTurn("read_file(path='whatever.txt')"),
	}}

	registry := tool.NewRegistry()
	builtins, err := tool.InstantiateBuiltins(tool.BuiltinOptions{})
	require.NoError(t, err)
	for _, bt := range builtins {
		registry.Register(bt)
	}

	k := NewKernel(Options{
		Transport: transport,
		Memory:    memory.NewManager(1_000_000, nil),
		Extractor: extract.New(registry),
		Runner:    tool.NewRunner(registry),
		Model:     "test-model",
		MaxRounds: 25,
		NoTools:   true,
	})
	emitter := &recordingEmitter{}

	outcome, err := k.HandleTurn(context.Background(), "read it", emitter)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIdle, outcome)
	assert.Empty(t, emitter.calls)
	assert.Empty(t, transport.requests[0].Tools)
}

func TestHandleTurn_ForcedCompletionWritesSingleCodeBlock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "code.txt")
	require.NoError(t, os.WriteFile(path, []byte("old content"), 0o644))

	readDirective := fmt.Sprintf("read_file(path='%s')", path)
	finalReply := "Here is the improved version:\n```\nnew content\n```\nDone."
	transport := &scriptedTransport{turns: [][]contract.Fragment{
		textTurn(readDirective),
		textTurn(finalReply),
	}}
	k := newTestKernel(t, transport, 25)
	emitter := &recordingEmitter{}

	outcome, err := k.HandleTurn(context.Background(), "improve the file "+path, emitter)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIdle, outcome)

	// read round, then the forced corrective write
	assert.Equal(t, []string{"read_file", "write_file"}, emitter.calls)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new content\n", string(data))
}

func TestHandleTurn_ForcedCompletionInsufficientContext(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "code.txt")
	require.NoError(t, os.WriteFile(path, []byte("old content"), 0o644))

	readDirective := fmt.Sprintf("read_file(path='%s')", path)
	transport := &scriptedTransport{turns: [][]contract.Fragment{
		textTurn(readDirective),
		textTurn("I would suggest several changes but here they are in prose."),
	}}
	k := newTestKernel(t, transport, 25)
	emitter := &recordingEmitter{}

	outcome, err := k.HandleTurn(context.Background(), "improve the file "+path, emitter)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIdle, outcome)

	// no write forced; explicit failure surfaced instead
	assert.Equal(t, []string{"read_file"}, emitter.calls)
	require.NotEmpty(t, emitter.notices)
	assert.Contains(t, emitter.notices[0], "insufficient context")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old content", string(data))
}
