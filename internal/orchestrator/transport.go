package orchestrator

import (
	"context"

	"github.com/harunnryd/kuroko/internal/model/contract"
	"github.com/harunnryd/kuroko/internal/model/ollama"
)

// ModelTransport adapts the model client to the kernel's stream surface.
type ModelTransport struct {
	Client *ollama.Client
}

func (t ModelTransport) Stream(ctx context.Context, req contract.ChatRequest) (FragmentStream, error) {
	return t.Client.Stream(ctx, req)
}
