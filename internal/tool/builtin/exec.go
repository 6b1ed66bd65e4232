package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	toolcore "github.com/harunnryd/kuroko/internal/tool"
)

const (
	maxCommandOutputBytes = 256 << 10

	// Bounds for the per-call timeout override.
	minCommandTimeout = 1 * time.Second
	maxCommandTimeout = 5 * time.Minute
)

func init() {
	toolcore.RegisterBuiltin("run_command", func(options toolcore.BuiltinOptions) (toolcore.Tool, error) {
		timeout := options.ExecTimeout
		if timeout <= 0 {
			timeout = toolcore.DefaultBuiltinExecTimeout
		}
		return &RunCommandTool{Timeout: timeout}, nil
	})
}

// RunCommandTool executes a one-shot shell command with a hard timeout.
type RunCommandTool struct {
	Timeout time.Duration
}

func (t *RunCommandTool) Name() string { return "run_command" }

func (t *RunCommandTool) Description() string {
	return "Execute a shell command and return stdout, stderr and the exit code."
}

func (t *RunCommandTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "Shell command line to execute",
			},
			"cwd": map[string]interface{}{
				"type":        "string",
				"description": "Optional working directory",
			},
			"timeout": map[string]interface{}{
				"type":        "number",
				"description": "Optional timeout in seconds for this command",
			},
		},
		"required": []string{"command"},
	}
}

func (t *RunCommandTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Command string  `json:"command"`
		Cwd     string  `json:"cwd"`
		Timeout float64 `json:"timeout"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	command := strings.TrimSpace(args.Command)
	if command == "" {
		return nil, fmt.Errorf("command is required")
	}

	timeout := t.Timeout
	if args.Timeout > 0 {
		timeout = clampTimeout(time.Duration(args.Timeout * float64(time.Second)))
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	if cwd := strings.TrimSpace(args.Cwd); cwd != "" {
		cmd.Dir = cwd
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	returnCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			returnCode = exitErr.ExitCode()
		case runCtx.Err() == context.DeadlineExceeded:
			return nil, fmt.Errorf("command timed out after %s", timeout)
		default:
			return nil, err
		}
	}

	return json.Marshal(map[string]interface{}{
		"command":     command,
		"stdout":      truncateOutput(stdout.String()),
		"stderr":      truncateOutput(stderr.String()),
		"return_code": returnCode,
	})
}

func clampTimeout(d time.Duration) time.Duration {
	if d < minCommandTimeout {
		return minCommandTimeout
	}
	if d > maxCommandTimeout {
		return maxCommandTimeout
	}
	return d
}

func truncateOutput(s string) string {
	if len(s) <= maxCommandOutputBytes {
		return s
	}
	return s[:maxCommandOutputBytes] + "\n... (output truncated)"
}
