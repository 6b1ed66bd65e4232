package memory

import (
	"context"
	"strings"

	"github.com/harunnryd/kuroko/internal/model/contract"
)

// Completer is the non-streaming completion surface used for
// summarization. Satisfied by the model client.
type Completer interface {
	Complete(ctx context.Context, req contract.ChatRequest) (string, []contract.ToolCall, error)
}

// ModelSummarizer asks the model itself to condense dropped history.
// Tools are never attached to summary requests.
type ModelSummarizer struct {
	Client Completer
	Model  string
}

const summaryInstruction = "Summarize the following conversation excerpt in a short paragraph. " +
	"Keep file names, decisions and unresolved questions. Reply with the summary only."

func (s *ModelSummarizer) Summarize(ctx context.Context, messages []contract.Message) (string, error) {
	var b strings.Builder
	b.WriteString(summaryInstruction)
	b.WriteString("\n\n")
	for _, msg := range messages {
		b.WriteString(msg.Role)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}

	content, _, err := s.Client.Complete(ctx, contract.ChatRequest{
		Model: s.Model,
		Messages: []contract.Message{
			{Role: contract.RoleUser, Content: b.String()},
		},
		Stream: true,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}
