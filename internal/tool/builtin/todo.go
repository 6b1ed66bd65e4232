package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harunnryd/kuroko/internal/todo"
	toolcore "github.com/harunnryd/kuroko/internal/tool"
)

// The todo tools opt out when no store is wired (stateless mode).
func init() {
	toolcore.RegisterBuiltin("add_todo", func(options toolcore.BuiltinOptions) (toolcore.Tool, error) {
		if options.Todos == nil {
			return nil, nil
		}
		return &AddTodoTool{Store: options.Todos}, nil
	})

	toolcore.RegisterBuiltin("list_todos", func(options toolcore.BuiltinOptions) (toolcore.Tool, error) {
		if options.Todos == nil {
			return nil, nil
		}
		return &ListTodosTool{Store: options.Todos}, nil
	})

	toolcore.RegisterBuiltin("update_todo", func(options toolcore.BuiltinOptions) (toolcore.Tool, error) {
		if options.Todos == nil {
			return nil, nil
		}
		return &UpdateTodoTool{Store: options.Todos}, nil
	})

	toolcore.RegisterBuiltin("remove_todo", func(options toolcore.BuiltinOptions) (toolcore.Tool, error) {
		if options.Todos == nil {
			return nil, nil
		}
		return &RemoveTodoTool{Store: options.Todos}, nil
	})
}

// AddTodoTool appends a new task to the session todo list.
type AddTodoTool struct {
	Store *todo.Store
}

func (t *AddTodoTool) Name() string { return "add_todo" }

func (t *AddTodoTool) Description() string {
	return "Add a task to the todo list with an optional priority (high, medium, low)."
}

func (t *AddTodoTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"description": map[string]interface{}{
				"type":        "string",
				"description": "Task description",
			},
			"priority": map[string]interface{}{
				"type":        "string",
				"description": "Priority: high, medium or low (default medium)",
			},
		},
		"required": []string{"description"},
	}
}

func (t *AddTodoTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Description string `json:"description"`
		Priority    string `json:"priority"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	description := strings.TrimSpace(args.Description)
	if description == "" {
		return nil, fmt.Errorf("description is required")
	}

	id, err := t.Store.Add(description, args.Priority)
	if err != nil {
		return nil, err
	}

	return json.Marshal(map[string]interface{}{
		"id":      id,
		"message": fmt.Sprintf("Added todo %s: %s", id, description),
	})
}

// ListTodosTool returns the todo list, optionally filtered by status.
type ListTodosTool struct {
	Store *todo.Store
}

func (t *ListTodosTool) Name() string { return "list_todos" }

func (t *ListTodosTool) Description() string {
	return "List tasks on the todo list, optionally filtered by status (pending, in_progress, completed)."
}

func (t *ListTodosTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"status": map[string]interface{}{
				"type":        "string",
				"description": "Optional status filter: pending, in_progress or completed",
			},
		},
	}
}

func (t *ListTodosTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	todos, err := t.Store.List(args.Status)
	if err != nil {
		return nil, err
	}

	return json.Marshal(map[string]interface{}{
		"todos":   todos,
		"summary": t.Store.Summary(),
	})
}

// UpdateTodoTool changes the status of an existing task.
type UpdateTodoTool struct {
	Store *todo.Store
}

func (t *UpdateTodoTool) Name() string { return "update_todo" }

func (t *UpdateTodoTool) Description() string {
	return "Update the status of a task on the todo list."
}

func (t *UpdateTodoTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"id": map[string]interface{}{
				"type":        "string",
				"description": "Todo ID",
			},
			"status": map[string]interface{}{
				"type":        "string",
				"description": "New status: pending, in_progress or completed",
			},
		},
		"required": []string{"id", "status"},
	}
}

func (t *UpdateTodoTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	found, err := t.Store.UpdateStatus(args.ID, args.Status)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("no todo with id %s", args.ID)
	}

	return json.Marshal(map[string]interface{}{
		"id":      args.ID,
		"message": fmt.Sprintf("Updated todo %s to %s", args.ID, args.Status),
	})
}

// RemoveTodoTool deletes a task from the todo list.
type RemoveTodoTool struct {
	Store *todo.Store
}

func (t *RemoveTodoTool) Name() string { return "remove_todo" }

func (t *RemoveTodoTool) Description() string {
	return "Remove a task from the todo list by ID, or clear all completed tasks."
}

func (t *RemoveTodoTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"id": map[string]interface{}{
				"type":        "string",
				"description": "Todo ID to remove",
			},
			"clear_completed": map[string]interface{}{
				"type":        "boolean",
				"description": "When true, remove all completed tasks instead",
			},
		},
	}
}

func (t *RemoveTodoTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		ID             string `json:"id"`
		ClearCompleted bool   `json:"clear_completed"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	if args.ClearCompleted {
		removed, err := t.Store.ClearCompleted()
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]interface{}{
			"message": fmt.Sprintf("Removed %d completed todos", removed),
		})
	}

	id := strings.TrimSpace(args.ID)
	if id == "" {
		return nil, fmt.Errorf("id is required")
	}

	found, err := t.Store.Remove(id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("no todo with id %s", id)
	}

	return json.Marshal(map[string]interface{}{
		"id":      id,
		"message": fmt.Sprintf("Removed todo %s", id),
	})
}
