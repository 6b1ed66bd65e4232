// Package memory owns the conversation history and the compaction
// policy that keeps it under a token budget.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/harunnryd/kuroko/internal/model/contract"
)

const (
	// compactThresholdNum/Den: compaction fires above 0.8 of the budget.
	compactThresholdNum = 8
	compactThresholdDen = 10

	// minHistoryForCompaction keeps trivially short conversations intact.
	minHistoryForCompaction = 5

	// keepRecentMessages are preserved verbatim at the tail.
	keepRecentMessages = 4
)

// Summarizer condenses older history into prose. It is a separate,
// non-tool completion path; the fallback digest is used when it fails.
type Summarizer interface {
	Summarize(ctx context.Context, messages []contract.Message) (string, error)
}

// Manager holds one conversation's messages. It is owned by a single
// orchestration loop and is not safe for concurrent use.
type Manager struct {
	budget     int
	summarizer Summarizer
	messages   []contract.Message
}

func NewManager(budget int, summarizer Summarizer) *Manager {
	return &Manager{
		budget:     budget,
		summarizer: summarizer,
	}
}

// SetSystem installs the system message, replacing any existing one.
// The system message is always first in the sequence.
func (m *Manager) SetSystem(content string) {
	system := contract.Message{Role: contract.RoleSystem, Content: content}
	if len(m.messages) > 0 && m.messages[0].Role == contract.RoleSystem {
		m.messages[0] = system
		return
	}
	m.messages = append([]contract.Message{system}, m.messages...)
}

func (m *Manager) Append(msg contract.Message) {
	m.messages = append(m.messages, msg)
}

// Load replaces the history wholesale, used when restoring a session.
func (m *Manager) Load(messages []contract.Message) {
	m.messages = append(m.messages[:0], messages...)
}

// Messages returns a copy; callers must not see later appends.
func (m *Manager) Messages() []contract.Message {
	out := make([]contract.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

func (m *Manager) Len() int {
	return len(m.messages)
}

// TokenEstimate is a cheap length proxy, monotone in text length.
// Roughly four bytes per token for English-ish text.
func TokenEstimate(text string) int {
	if text == "" {
		return 0
	}
	return len(text)/4 + 1
}

func (m *Manager) TotalTokens() int {
	return totalTokens(m.messages)
}

func totalTokens(messages []contract.Message) int {
	total := 0
	for _, msg := range messages {
		total += TokenEstimate(msg.Content)
	}
	return total
}

func (m *Manager) threshold() int {
	return m.budget * compactThresholdNum / compactThresholdDen
}

// MaybeCompact replaces older history with a single synthetic summary
// message when the conversation outgrows the budget. The system message
// and the last four messages survive verbatim; everything between them
// is lossy after this point. Must not be called from inside a tool
// dispatch, since summarization is itself a model completion.
func (m *Manager) MaybeCompact(ctx context.Context) (bool, error) {
	if m.TotalTokens() <= m.threshold() || len(m.messages) <= minHistoryForCompaction {
		return false, nil
	}

	head := 0
	var system *contract.Message
	if m.messages[0].Role == contract.RoleSystem {
		system = &m.messages[0]
		head = 1
	}

	tailStart := len(m.messages) - keepRecentMessages
	if tailStart <= head {
		return false, nil
	}

	middle := m.messages[head:tailStart]
	before := m.TotalTokens()

	summary, err := m.summarize(ctx, middle)
	if err != nil {
		return false, err
	}

	compacted := make([]contract.Message, 0, keepRecentMessages+2)
	if system != nil {
		compacted = append(compacted, *system)
	}
	compacted = append(compacted, contract.Message{
		Role:    contract.RoleAssistant,
		Content: "Summary of earlier conversation: " + summary,
	})
	compacted = append(compacted, m.messages[tailStart:]...)

	// The summary message carries a fixed prefix, so a small middle can
	// produce a replacement bigger than what it drops. Compaction must
	// strictly shrink the history or not happen at all.
	after := totalTokens(compacted)
	if after >= before {
		slog.Debug("Skipping compaction, summary would not shrink history",
			"tokens_before", before,
			"tokens_after", after)
		return false, nil
	}
	m.messages = compacted

	slog.Info("Compacted conversation history",
		"dropped_messages", len(middle),
		"tokens_before", before,
		"tokens_after", after)
	return true, nil
}

func (m *Manager) summarize(ctx context.Context, middle []contract.Message) (string, error) {
	budget := contentLength(middle) / 2
	if budget < 200 {
		budget = 200
	}

	if m.summarizer != nil {
		summary, err := m.summarizer.Summarize(ctx, middle)
		if err == nil && strings.TrimSpace(summary) != "" {
			return clamp(summary, budget), nil
		}
		if err != nil {
			slog.Warn("Summarizer failed, using local digest", "error", err)
		}
	}

	return clamp(digest(middle), budget), nil
}

// digest is the no-model fallback: one clipped line per dropped message.
func digest(messages []contract.Message) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		content := strings.Join(strings.Fields(msg.Content), " ")
		lines = append(lines, fmt.Sprintf("%s: %s", msg.Role, clamp(content, 120)))
	}
	return strings.Join(lines, "\n")
}

// clamp truncates to at most n bytes on a rune boundary.
func clamp(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func contentLength(messages []contract.Message) int {
	total := 0
	for _, msg := range messages {
		total += len(msg.Content)
	}
	return total
}
