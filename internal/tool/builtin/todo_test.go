package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harunnryd/kuroko/internal/todo"
)

func newTestTodoStore(t *testing.T) *todo.Store {
	t.Helper()
	store, err := todo.NewStore(filepath.Join(t.TempDir(), "todos.json"))
	require.NoError(t, err)
	return store
}

func TestTodoToolsRoundTrip(t *testing.T) {
	store := newTestTodoStore(t)
	add := &AddTodoTool{Store: store}
	list := &ListTodosTool{Store: store}
	update := &UpdateTodoTool{Store: store}
	remove := &RemoveTodoTool{Store: store}

	raw, err := add.Execute(context.Background(), json.RawMessage(`{"description":"write tests","priority":"high"}`))
	require.NoError(t, err)

	var added map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &added))
	id, ok := added["id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, id)

	raw, err = list.Execute(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)

	var listed struct {
		Todos   []todo.Todo    `json:"todos"`
		Summary map[string]int `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(raw, &listed))
	require.Len(t, listed.Todos, 1)
	assert.Equal(t, "write tests", listed.Todos[0].Description)
	assert.Equal(t, "high", listed.Todos[0].Priority)
	assert.Equal(t, 1, listed.Summary["pending"])

	_, err = update.Execute(context.Background(), json.RawMessage(fmt.Sprintf(`{"id":%q,"status":"completed"}`, id)))
	require.NoError(t, err)

	raw, err = list.Execute(context.Background(), json.RawMessage(`{"status":"completed"}`))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &listed))
	require.Len(t, listed.Todos, 1)
	assert.Equal(t, "completed", listed.Todos[0].Status)

	_, err = remove.Execute(context.Background(), json.RawMessage(fmt.Sprintf(`{"id":%q}`, id)))
	require.NoError(t, err)

	raw, err = list.Execute(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &listed))
	assert.Empty(t, listed.Todos)
}

func TestTodoToolsErrors(t *testing.T) {
	store := newTestTodoStore(t)

	add := &AddTodoTool{Store: store}
	_, err := add.Execute(context.Background(), json.RawMessage(`{"description":""}`))
	assert.ErrorContains(t, err, "description is required")

	update := &UpdateTodoTool{Store: store}
	_, err = update.Execute(context.Background(), json.RawMessage(`{"id":"missing","status":"completed"}`))
	assert.ErrorContains(t, err, "no todo with id")

	remove := &RemoveTodoTool{Store: store}
	_, err = remove.Execute(context.Background(), json.RawMessage(`{}`))
	assert.ErrorContains(t, err, "id is required")
}

func TestRemoveTodoTool_ClearCompleted(t *testing.T) {
	store := newTestTodoStore(t)

	idDone, err := store.Add("done task", "low")
	require.NoError(t, err)
	_, err = store.Add("open task", "medium")
	require.NoError(t, err)
	_, err = store.UpdateStatus(idDone, "completed")
	require.NoError(t, err)

	remove := &RemoveTodoTool{Store: store}
	raw, err := remove.Execute(context.Background(), json.RawMessage(`{"clear_completed":true}`))
	require.NoError(t, err)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Contains(t, resp["message"], "Removed 1 completed")

	remaining, err := store.List("")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "open task", remaining[0].Description)
}
