// Package orchestrator runs the conversation loop: send a turn, stream
// the reply, extract tool calls, dispatch them, feed results back, and
// repeat until the model settles or the round cap is reached.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"

	kerrors "github.com/harunnryd/kuroko/internal/errors"
	"github.com/harunnryd/kuroko/internal/extract"
	"github.com/harunnryd/kuroko/internal/model/contract"
	"github.com/harunnryd/kuroko/internal/orchestrator/memory"
	"github.com/harunnryd/kuroko/internal/orchestrator/session"
	"github.com/harunnryd/kuroko/internal/tool"
)

// FragmentStream yields decoded fragments until io.EOF.
type FragmentStream interface {
	Next() (contract.Fragment, error)
	Close()
}

// Transport opens one streaming completion. Satisfied by the model client
// through a thin adapter.
type Transport interface {
	Stream(ctx context.Context, req contract.ChatRequest) (FragmentStream, error)
}

// Emitter receives user-visible events as the turn progresses.
type Emitter interface {
	Delta(text string)
	ToolCall(name string)
	ToolResult(result tool.Result)
	Notice(text string)
}

// Outcome is the terminal state of one user turn.
type Outcome int

const (
	// OutcomeIdle - the model produced a final reply with no further calls.
	OutcomeIdle Outcome = iota
	// OutcomeIdleByCap - the round cap was reached; partial results stand.
	OutcomeIdleByCap
	// OutcomeIdleByError - unrecoverable transport failure after the
	// tools-disabled retry.
	OutcomeIdleByError
)

// Kernel owns one conversation. Not safe for concurrent turns; the loop
// is strictly sequential with one stream or one dispatch in flight.
type Kernel struct {
	transport Transport
	memory    *memory.Manager
	extractor *extract.Extractor
	runner    *tool.Runner
	session   *session.Manager

	model     string
	maxRounds int
	noTools   bool
}

type Options struct {
	Transport Transport
	Memory    *memory.Manager
	Extractor *extract.Extractor
	Runner    *tool.Runner
	Session   *session.Manager
	Model     string
	MaxRounds int
	NoTools   bool
}

func NewKernel(opts Options) *Kernel {
	return &Kernel{
		transport: opts.Transport,
		memory:    opts.Memory,
		extractor: opts.Extractor,
		runner:    opts.Runner,
		session:   opts.Session,
		model:     opts.Model,
		maxRounds: opts.MaxRounds,
		noTools:   opts.NoTools,
	}
}

// turnState carries what the forced-completion valve needs to decide.
type turnState struct {
	lastReadPath    string
	lastReadContent string
	wroteFile       bool
	prevCallsKey    string
	prevResultsKey  string
}

// HandleTurn drives one user turn to a terminal state. Appended messages
// stay committed even when the turn ends in an error.
func (k *Kernel) HandleTurn(ctx context.Context, userInput string, emitter Emitter) (Outcome, error) {
	k.append(contract.Message{Role: contract.RoleUser, Content: userInput})

	if _, err := k.memory.MaybeCompact(ctx); err != nil {
		slog.Warn("Compaction failed, continuing with full history", "error", err)
	}

	toolsEnabled := !k.noTools && len(k.runner.Registry().Names()) > 0
	retriedWithoutTools := false
	state := &turnState{}

	for round := 1; round <= k.maxRounds; round++ {
		content, structured, err := k.streamOnce(ctx, toolsEnabled, emitter)
		if err != nil {
			if errors.Is(err, kerrors.ErrToolsUnsupported) && toolsEnabled && !retriedWithoutTools {
				slog.Info("Model rejected tools, retrying turn without them")
				emitter.Notice("Model does not support tools; continuing without them.")
				toolsEnabled = false
				retriedWithoutTools = true
				round--
				continue
			}
			return OutcomeIdleByError, err
		}

		if content != "" {
			k.append(contract.Message{Role: contract.RoleAssistant, Content: content})
		}

		// The heuristic tier only sees the user's utterance on the first
		// round; once tool results have been fed back, re-inferring the
		// same intent would loop.
		intentInput := ""
		if round == 1 {
			intentInput = userInput
		}

		var reqs []tool.Request
		if toolsEnabled {
			reqs = k.extractor.Extract(structured, content, intentInput)
		}

		if len(reqs) == 0 {
			k.forcedCompletion(ctx, userInput, content, state, emitter)
			return OutcomeIdle, nil
		}

		callsKey := callsFingerprint(reqs)
		results := k.dispatchRound(ctx, reqs, state, emitter)
		resultsKey := resultsFingerprint(results)

		// A round identical to the previous one means the model is
		// looping; feed nothing new and stop.
		if callsKey == state.prevCallsKey && resultsKey == state.prevResultsKey {
			slog.Info("Identical tool round repeated, terminating turn")
			return OutcomeIdle, nil
		}
		state.prevCallsKey = callsKey
		state.prevResultsKey = resultsKey

		k.append(contract.Message{Role: contract.RoleUser, Content: tool.RenderAll(results)})

		// Large tool results can outgrow the budget mid-turn; this runs
		// between rounds, never inside a dispatch.
		if _, err := k.memory.MaybeCompact(ctx); err != nil {
			slog.Warn("Compaction failed, continuing with full history", "error", err)
		}
	}

	slog.Warn("Round cap reached, surfacing partial result", "cap", k.maxRounds)
	emitter.Notice("Stopped after reaching the tool-round limit; the result above may be partial.")
	return OutcomeIdleByCap, nil
}

// streamOnce consumes a full model turn: accumulated text plus any
// structured calls.
func (k *Kernel) streamOnce(ctx context.Context, withTools bool, emitter Emitter) (string, []contract.ToolCall, error) {
	req := contract.ChatRequest{
		Model:    k.model,
		Messages: k.memory.Messages(),
		Stream:   true,
	}
	if withTools {
		req.Tools = k.runner.Registry().Descriptors()
	}

	stream, err := k.transport.Stream(ctx, req)
	if err != nil {
		return "", nil, err
	}
	defer stream.Close()

	var content strings.Builder
	var structured []contract.ToolCall

	for {
		fragment, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", nil, err
		}

		if fragment.Message.Content != "" {
			content.WriteString(fragment.Message.Content)
			emitter.Delta(fragment.Message.Content)
		}
		structured = append(structured, fragment.Message.ToolCalls...)

		if fragment.Done {
			break
		}
	}

	return content.String(), structured, nil
}

func (k *Kernel) dispatchRound(ctx context.Context, reqs []tool.Request, state *turnState, emitter Emitter) []tool.Result {
	results := make([]tool.Result, 0, len(reqs))
	for _, req := range reqs {
		emitter.ToolCall(req.Name)
		res := k.runner.Dispatch(ctx, req)
		emitter.ToolResult(res)
		k.observe(req, res, state)
		results = append(results, res)
	}
	return results
}

// observe tracks reads and writes for the forced-completion valve.
func (k *Kernel) observe(req tool.Request, res tool.Result, state *turnState) {
	if !res.OK() {
		return
	}
	switch req.Name {
	case "read_file":
		var payload struct {
			Path    string `json:"path"`
			Content string `json:"content"`
		}
		if json.Unmarshal(res.Payload, &payload) == nil && payload.Path != "" {
			state.lastReadPath = payload.Path
			state.lastReadContent = payload.Content
		}
	case "write_file":
		state.wroteFile = true
	}
}

// forcedCompletion is the escape valve for turns that asked for a file
// modification but ended read-only. When the final reply contains
// exactly one fenced code block and a file was read this turn, that
// block is written back once; anything less certain surfaces an
// explicit failure instead of guessing at content.
func (k *Kernel) forcedCompletion(ctx context.Context, userInput, finalReply string, state *turnState, emitter Emitter) {
	if state.wroteFile || state.lastReadPath == "" || !requestsMutation(userInput) {
		return
	}

	rewritten, ok := singleCodeBlock(finalReply)
	if !ok {
		emitter.Notice("A file change was requested for " + state.lastReadPath +
			" but there was insufficient context to safely rewrite it; no changes were written.")
		return
	}

	slog.Info("Forcing corrective write", "path", state.lastReadPath)
	args, _ := json.Marshal(map[string]string{
		"path":    state.lastReadPath,
		"content": rewritten,
	})
	req := tool.Request{Name: "write_file", Arguments: args}

	emitter.ToolCall(req.Name)
	res := k.runner.Dispatch(ctx, req)
	emitter.ToolResult(res)
	k.append(contract.Message{Role: contract.RoleUser, Content: res.Render()})
}

// requestsMutation is deliberately narrow: an explicit modification verb
// together with a file mention.
func requestsMutation(input string) bool {
	lower := strings.ToLower(input)
	if !strings.Contains(lower, "file") && !strings.Contains(lower, ".") {
		return false
	}
	for _, verb := range []string{"fix", "improve", "update", "modify", "rewrite", "refactor", "change", "edit"} {
		if strings.Contains(lower, verb) {
			return true
		}
	}
	return false
}

// singleCodeBlock returns the body of the reply's fenced code block when
// there is exactly one.
func singleCodeBlock(text string) (string, bool) {
	parts := strings.Split(text, "```")
	if len(parts) != 3 {
		return "", false
	}
	block := parts[1]
	// drop the language tag line, if any
	if idx := strings.IndexByte(block, '\n'); idx >= 0 {
		block = block[idx+1:]
	} else {
		return "", false
	}
	if strings.TrimSpace(block) == "" {
		return "", false
	}
	return block, true
}

func (k *Kernel) append(msg contract.Message) {
	k.memory.Append(msg)
	k.session.Record(msg.Role, msg.Content)
}

func callsFingerprint(reqs []tool.Request) string {
	var b strings.Builder
	for _, req := range reqs {
		b.WriteString(req.Name)
		b.WriteByte('(')
		b.Write(req.Arguments)
		b.WriteString(");")
	}
	return b.String()
}

func resultsFingerprint(results []tool.Result) string {
	var b strings.Builder
	for _, res := range results {
		b.Write(res.Payload)
		b.WriteString(res.Err)
		b.WriteByte(';')
	}
	return b.String()
}
