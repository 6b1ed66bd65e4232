package runtime

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	kerrors "github.com/harunnryd/kuroko/internal/errors"
	"github.com/harunnryd/kuroko/internal/render"
	"github.com/harunnryd/kuroko/internal/tool"
)

type REPL struct {
	components *Components
	reader     *bufio.Reader
	emitter    *consoleEmitter
}

func NewREPL(components *Components) *REPL {
	return &REPL{
		components: components,
		reader:     bufio.NewReader(os.Stdin),
		emitter:    &consoleEmitter{renderer: components.Renderer},
	}
}

func (r *REPL) Start() error {
	fmt.Printf("kuroko  model=%s  session=%s\n", r.components.Config.Model.Name, r.sessionLabel())
	fmt.Println("Type '/exit' to quit.")

	for {
		select {
		case <-r.components.Ctx.Done():
			return nil
		default:
			if err := r.readLine(); err != nil {
				if err == io.EOF {
					return nil
				}
				fmt.Println(r.components.Renderer.Error(err))
			}
		}
	}
}

func (r *REPL) sessionLabel() string {
	if r.components.Session == nil {
		return "stateless"
	}
	return r.components.SessionID
}

func (r *REPL) readLine() error {
	fmt.Print(r.components.Renderer.Prompt())
	text, err := r.reader.ReadString('\n')
	if err != nil {
		return err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if text == "/exit" {
		return io.EOF
	}

	return r.runTurn(text)
}

// RunOnce answers a single prompt and returns.
func (r *REPL) RunOnce(input string) error {
	return r.runTurn(input)
}

// runTurn executes one turn. Ctrl-C cancels the in-flight turn without
// tearing down the REPL.
func (r *REPL) runTurn(input string) error {
	turnCtx, cancel := signal.NotifyContext(r.components.Ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Print(r.components.Renderer.AssistantHeader())
	_, err := r.components.Kernel.HandleTurn(turnCtx, input, r.emitter)
	fmt.Println()

	if err != nil {
		if notice, ok := turnNotice(err); ok {
			fmt.Println(r.components.Renderer.Notice(notice))
			return nil
		}
		return err
	}
	return nil
}

// turnNotice maps recoverable turn errors to a friendly message; the
// REPL keeps running for these.
func turnNotice(err error) (string, bool) {
	switch {
	case errors.Is(err, context.Canceled):
		return "Turn interrupted.", true
	case errors.Is(err, kerrors.ErrConnectivity):
		return "The model server could not be reached. Check that it is running.", true
	}
	return "", false
}

// consoleEmitter renders kernel events to stdout as they arrive.
type consoleEmitter struct {
	renderer *render.Renderer
}

func (e *consoleEmitter) Delta(text string) {
	fmt.Print(text)
}

func (e *consoleEmitter) ToolCall(name string) {
	fmt.Println()
	fmt.Println(e.renderer.ToolCall(name))
}

func (e *consoleEmitter) ToolResult(result tool.Result) {
	if !result.OK() {
		fmt.Println(e.renderer.ToolError(result.Request.Name, result.Err))
	}
}

func (e *consoleEmitter) Notice(text string) {
	fmt.Println()
	fmt.Println(e.renderer.Notice(text))
}
