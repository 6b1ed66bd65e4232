package todo

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "todos.json"))
	require.NoError(t, err)
	return s
}

func TestStore_AddAndList(t *testing.T) {
	s := newTestStore(t)

	id, err := s.Add("write the report", PriorityHigh)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	todos, err := s.List("")
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, "write the report", todos[0].Description)
	assert.Equal(t, PriorityHigh, todos[0].Priority)
	assert.Equal(t, StatusPending, todos[0].Status)
}

func TestStore_AddDefaultsPriority(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Add("task", "")
	require.NoError(t, err)

	todos, err := s.List("")
	require.NoError(t, err)
	assert.Equal(t, PriorityMedium, todos[0].Priority)

	_, err = s.Add("task", "urgent")
	require.Error(t, err)
}

func TestStore_UpdateStatusAndFilter(t *testing.T) {
	s := newTestStore(t)

	id, err := s.Add("task one", PriorityLow)
	require.NoError(t, err)
	_, err = s.Add("task two", PriorityLow)
	require.NoError(t, err)

	ok, err := s.UpdateStatus(id, StatusCompleted)
	require.NoError(t, err)
	assert.True(t, ok)

	done, err := s.List(StatusCompleted)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, id, done[0].ID)

	ok, err = s.UpdateStatus("missing", StatusCompleted)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.UpdateStatus(id, "bogus")
	require.Error(t, err)
}

func TestStore_RemoveAndClearCompleted(t *testing.T) {
	s := newTestStore(t)

	first, err := s.Add("one", PriorityMedium)
	require.NoError(t, err)
	second, err := s.Add("two", PriorityMedium)
	require.NoError(t, err)

	ok, err := s.Remove(first)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.UpdateStatus(second, StatusCompleted)
	require.NoError(t, err)

	removed, err := s.ClearCompleted()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	todos, err := s.List("")
	require.NoError(t, err)
	assert.Empty(t, todos)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todos.json")

	s, err := NewStore(path)
	require.NoError(t, err)
	id, err := s.Add("durable task", PriorityMedium)
	require.NoError(t, err)

	reopened, err := NewStore(path)
	require.NoError(t, err)
	todos, err := reopened.List("")
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, id, todos[0].ID)

	summary := reopened.Summary()
	assert.Equal(t, 1, summary[StatusPending])
}
