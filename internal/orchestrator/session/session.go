// Package session maps the persisted transcript onto in-memory
// conversation history and back.
package session

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/harunnryd/kuroko/internal/model/contract"
	"github.com/harunnryd/kuroko/internal/store"
)

// Manager records conversation turns for one session. A nil Manager is
// valid and records nothing, which is how stateless mode works.
type Manager struct {
	worker     *store.Worker
	id         string
	model      string
	maxHistory int
}

func NewManager(worker *store.Worker, id, model string, maxHistory int) *Manager {
	return &Manager{
		worker:     worker,
		id:         id,
		model:      model,
		maxHistory: maxHistory,
	}
}

func (m *Manager) ID() string {
	if m == nil {
		return ""
	}
	return m.id
}

// Load restores prior history, truncated to the configured cap. System
// messages are not replayed; the caller installs the current one.
func (m *Manager) Load() ([]contract.Message, error) {
	if m == nil {
		return nil, nil
	}

	lines, err := m.worker.ReadTranscript(m.id, m.maxHistory)
	if err != nil {
		return nil, err
	}

	messages := make([]contract.Message, 0, len(lines))
	for _, line := range lines {
		var entry store.TranscriptEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			slog.Warn("Skipping malformed transcript line", "session", m.id, "error", err)
			continue
		}
		if entry.Role == contract.RoleSystem {
			continue
		}
		messages = append(messages, contract.Message{
			Role:    entry.Role,
			Content: entry.Content,
		})
	}
	return messages, nil
}

// Record appends one turn to the transcript and refreshes the session
// metadata. Persistence failures are logged, not fatal; losing a
// transcript line never aborts a conversation.
func (m *Manager) Record(role, content string) {
	if m == nil {
		return
	}

	entry := store.TranscriptEntry{
		ID:        ulid.Make().String(),
		Timestamp: time.Now().UTC(),
		Role:      role,
		Content:   content,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		slog.Error("Failed to encode transcript entry", "session", m.id, "error", err)
		return
	}
	if err := m.worker.WriteTranscript(m.id, data); err != nil {
		slog.Error("Failed to persist transcript entry", "session", m.id, "error", err)
		return
	}

	m.touch(role, content)
}

func (m *Manager) touch(role, content string) {
	meta, err := m.worker.GetSession(m.id)
	if err != nil {
		slog.Warn("Failed to load session metadata", "session", m.id, "error", err)
		return
	}

	now := time.Now().UTC()
	if meta == nil {
		meta = &store.SessionMeta{
			ID:        m.id,
			Model:     m.model,
			Status:    "active",
			CreatedAt: now,
		}
	}
	if meta.Title == "" && role == contract.RoleUser {
		meta.Title = titleFrom(content)
	}
	meta.UpdatedAt = now

	if err := m.worker.SaveSession(meta); err != nil {
		slog.Warn("Failed to save session metadata", "session", m.id, "error", err)
	}
}

func (m *Manager) Reset() error {
	if m == nil {
		return nil
	}
	return m.worker.ResetSession(m.id)
}

// titleFrom clips the first user utterance into an index title,
// truncating on a rune boundary.
func titleFrom(content string) string {
	title := strings.Join(strings.Fields(content), " ")
	if len(title) <= 64 {
		return title
	}
	cut := 64
	for cut > 0 && !utf8.RuneStart(title[cut]) {
		cut--
	}
	return title[:cut]
}
