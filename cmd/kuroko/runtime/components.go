// Package runtime assembles the pieces of a running agent: store,
// tools, model client, context manager and the orchestration kernel.
package runtime

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harunnryd/kuroko/internal/config"
	"github.com/harunnryd/kuroko/internal/extract"
	"github.com/harunnryd/kuroko/internal/model/ollama"
	"github.com/harunnryd/kuroko/internal/orchestrator"
	"github.com/harunnryd/kuroko/internal/orchestrator/memory"
	"github.com/harunnryd/kuroko/internal/orchestrator/session"
	"github.com/harunnryd/kuroko/internal/render"
	"github.com/harunnryd/kuroko/internal/store"
	"github.com/harunnryd/kuroko/internal/todo"
	"github.com/harunnryd/kuroko/internal/tool"
	_ "github.com/harunnryd/kuroko/internal/tool/builtin"
)

// DefaultSessionID is the session used when --session is not given.
const DefaultSessionID = "default"

const systemPrompt ="You are Kuroko, a helpful assistant with access to tools for file " +
	"operations, shell commands, a todo list and web search. Use a tool only when the user " +
	"explicitly asks for its effect; for normal conversation, or questions about content " +
	"you have already read, respond directly. When you cannot call tools natively, emit a " +
	"single line of the form TOOL_CALL: tool_name(key='value')."

type Components struct {
	Ctx    context.Context
	Cancel context.CancelFunc

	Config      *config.Config
	WorkspaceID string
	SessionID   string

	StoreWorker  *store.Worker
	Todos        *todo.Store
	ToolRegistry *tool.Registry
	ToolRunner   *tool.Runner
	Client       *ollama.Client
	Memory       *memory.Manager
	Session      *session.Manager
	Kernel       *orchestrator.Kernel
	Renderer     *render.Renderer
}

// ResolveWorkspaceID picks the workspace from the flag or the config.
func ResolveWorkspaceID(cmd *cobra.Command, cfg *config.Config) string {
	if cmd != nil {
		if v, err := cmd.Flags().GetString("workspace"); err == nil && v != "" {
			return v
		}
	}
	if cfg != nil && cfg.Session.Workspace != "" {
		return cfg.Session.Workspace
	}
	return config.DefaultWorkspaceID
}

// Build wires everything together. Stateless mode skips the store, the
// session transcript and the todo tools.
func Build(ctx context.Context, cfg *config.Config, workspaceID, sessionID string) (*Components, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)

	c := &Components{
		Ctx:         ctx,
		Cancel:      cancel,
		Config:      cfg,
		WorkspaceID: workspaceID,
		Renderer:    render.New(),
	}

	if cfg.Session.Save {
		lockTimeout, err := config.DurationOrDefault(cfg.Store.LockTimeout, config.DefaultStoreLockTimeout)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("parse store lock timeout: %w", err)
		}
		lockRetry, err := config.DurationOrDefault(cfg.Store.LockRetry, config.DefaultStoreLockRetry)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("parse store lock retry: %w", err)
		}

		worker, err := store.NewWorker(workspaceID, cfg.Session.Root, store.RuntimeConfig{
			LockTimeout:              lockTimeout,
			LockRetry:                lockRetry,
			LockMaxRetry:             cfg.Store.LockMaxRetry,
			TranscriptRotateMaxBytes: cfg.Store.TranscriptRotateMaxBytes,
		})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("init store worker: %w", err)
		}
		worker.Start()
		c.StoreWorker = worker

		todos, err := todo.NewStore(worker.TodoPath())
		if err != nil {
			c.Stop()
			return nil, fmt.Errorf("init todo store: %w", err)
		}
		c.Todos = todos
	}

	execTimeout, err := config.DurationOrDefault(cfg.Tools.Exec.Timeout, config.DefaultExecToolTimeout)
	if err != nil {
		c.Stop()
		return nil, fmt.Errorf("parse exec tool timeout: %w", err)
	}
	searchTimeout, err := config.DurationOrDefault(cfg.Tools.Search.Timeout, config.DefaultSearchToolTimeout)
	if err != nil {
		c.Stop()
		return nil, fmt.Errorf("parse search tool timeout: %w", err)
	}

	registry := tool.NewRegistry()
	builtins, err := tool.InstantiateBuiltins(tool.BuiltinOptions{
		ExecTimeout:      execTimeout,
		SearchBaseURL:    cfg.Tools.Search.BaseURL,
		SearchTimeout:    searchTimeout,
		SearchMaxResults: cfg.Tools.Search.MaxResults,
		Todos:            c.Todos,
	})
	if err != nil {
		c.Stop()
		return nil, fmt.Errorf("init builtin tools: %w", err)
	}
	for _, t := range builtins {
		registry.Register(t)
	}
	c.ToolRegistry = registry
	c.ToolRunner = tool.NewRunner(registry)

	connectTimeout, err := config.DurationOrDefault(cfg.Model.ConnectTimeout, config.DefaultModelConnectTimeout)
	if err != nil {
		c.Stop()
		return nil, fmt.Errorf("parse model connect timeout: %w", err)
	}
	idleTimeout, err := config.DurationOrDefault(cfg.Model.IdleTimeout, config.DefaultModelIdleTimeout)
	if err != nil {
		c.Stop()
		return nil, fmt.Errorf("parse model idle timeout: %w", err)
	}
	c.Client = ollama.New(cfg.Model.Host, connectTimeout, idleTimeout)

	summarizer := &memory.ModelSummarizer{Client: c.Client, Model: cfg.Model.Name}
	c.Memory = memory.NewManager(cfg.Context.TokenBudget, summarizer)
	c.Memory.SetSystem(systemPrompt)

	if c.StoreWorker != nil {
		// Without an explicit --session, reuse one stable session so
		// history carries across runs.
		if sessionID == "" {
			sessionID = DefaultSessionID
		}
		c.SessionID = sessionID
		c.Session = session.NewManager(c.StoreWorker, sessionID, cfg.Model.Name, cfg.Session.MaxHistory)

		history, err := c.Session.Load()
		if err != nil {
			c.Stop()
			return nil, fmt.Errorf("load session history: %w", err)
		}
		for _, msg := range history {
			c.Memory.Append(msg)
		}
	}

	c.Kernel = orchestrator.NewKernel(orchestrator.Options{
		Transport: orchestrator.ModelTransport{Client: c.Client},
		Memory:    c.Memory,
		Extractor: extract.New(registry),
		Runner:    c.ToolRunner,
		Session:   c.Session,
		Model:     cfg.Model.Name,
		MaxRounds: cfg.Orchestrator.MaxRounds,
		NoTools:   cfg.Orchestrator.NoTools,
	})

	return c, nil
}

func (c *Components) Stop() {
	if c.Cancel != nil {
		c.Cancel()
	}
	if c.StoreWorker != nil {
		c.StoreWorker.Stop()
		c.StoreWorker = nil
	}
}
