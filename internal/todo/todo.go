package todo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	"github.com/oklog/ulid/v2"
)

const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"

	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Todo is one tracked task.
type Todo struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store persists todos as a JSON file under the workspace. Writes are
// atomic so a crash mid-save never corrupts the list.
type Store struct {
	path  string
	mu    sync.Mutex
	todos []Todo
}

func NewStore(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read todo store: %w", err)
	}

	if err := json.Unmarshal(data, &s.todos); err != nil {
		return nil, fmt.Errorf("parse todo store: %w", err)
	}
	return s, nil
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(s.todos, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	return atomic.WriteFile(s.path, bytes.NewReader(data))
}

func (s *Store) Add(description, priority string) (string, error) {
	priority = strings.TrimSpace(strings.ToLower(priority))
	switch priority {
	case PriorityHigh, PriorityMedium, PriorityLow:
	case "":
		priority = PriorityMedium
	default:
		return "", fmt.Errorf("invalid priority: %s", priority)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	todo := Todo{
		ID:          ulid.Make().String(),
		Description: description,
		Priority:    priority,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.todos = append(s.todos, todo)
	if err := s.save(); err != nil {
		s.todos = s.todos[:len(s.todos)-1]
		return "", fmt.Errorf("save todo store: %w", err)
	}
	return todo.ID, nil
}

// List returns todos, optionally filtered by status. Empty status means all.
func (s *Store) List(status string) ([]Todo, error) {
	status = strings.TrimSpace(status)
	if status != "" && !validStatus(status) {
		return nil, fmt.Errorf("invalid status: %s", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Todo, 0, len(s.todos))
	for _, t := range s.todos {
		if status == "" || t.Status == status {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) UpdateStatus(id, status string) (bool, error) {
	if !validStatus(status) {
		return false, fmt.Errorf("invalid status: %s", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.todos {
		if s.todos[i].ID == id {
			s.todos[i].Status = status
			s.todos[i].UpdatedAt = time.Now()
			if err := s.save(); err != nil {
				return false, fmt.Errorf("save todo store: %w", err)
			}
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) Remove(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.todos {
		if s.todos[i].ID == id {
			s.todos = append(s.todos[:i], s.todos[i+1:]...)
			if err := s.save(); err != nil {
				return false, fmt.Errorf("save todo store: %w", err)
			}
			return true, nil
		}
	}
	return false, nil
}

// ClearCompleted removes all completed todos and returns how many went away.
func (s *Store) ClearCompleted() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.todos[:0]
	removed := 0
	for _, t := range s.todos {
		if t.Status == StatusCompleted {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	s.todos = kept

	if removed > 0 {
		if err := s.save(); err != nil {
			return 0, fmt.Errorf("save todo store: %w", err)
		}
	}
	return removed, nil
}

// Summary returns todo counts per status.
func (s *Store) Summary() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := map[string]int{
		StatusPending:    0,
		StatusInProgress: 0,
		StatusCompleted:  0,
	}
	for _, t := range s.todos {
		if _, ok := summary[t.Status]; ok {
			summary[t.Status]++
		}
	}
	return summary
}

func validStatus(status string) bool {
	switch status {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}
