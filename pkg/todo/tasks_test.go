package todo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weforks/taskbot/pkg/automation"
)

func loginTestUser(t *testing.T, m *Manager, engine *fakeEngine, userID, username string) {
	t.Helper()
	engine.accounts[username] = "pw"
	result, err := m.Login(context.Background(), userID, username, "pw")
	require.NoError(t, err)
	require.True(t, result.Success)
}

func TestTasksTrimsAndDropsEmptyRows(t *testing.T) {
	m, engine := newTestManager(t)
	loginTestUser(t, m, engine, "user-1", "alice")
	engine.tasks["alice"] = []string{"  buy milk ", "", "   ", "call mom"}

	tasks, err := m.Tasks(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"buy milk", "call mom"}, tasks)
}

func TestAddTask(t *testing.T) {
	m, engine := newTestManager(t)
	loginTestUser(t, m, engine, "user-1", "alice")

	require.NoError(t, m.AddTask(context.Background(), "user-1", "buy milk"))
	require.NoError(t, m.AddTask(context.Background(), "user-1", "call mom"))

	assert.Equal(t, []string{"buy milk", "call mom"}, engine.tasks["alice"])
}

func TestDeleteTask(t *testing.T) {
	m, engine := newTestManager(t)
	loginTestUser(t, m, engine, "user-1", "alice")
	engine.tasks["alice"] = []string{"a", "b", "c"}

	require.NoError(t, m.DeleteTask(context.Background(), "user-1", 1))
	assert.Equal(t, []string{"a", "c"}, engine.tasks["alice"])
}

func TestCompleteTask(t *testing.T) {
	m, engine := newTestManager(t)
	loginTestUser(t, m, engine, "user-1", "alice")
	engine.tasks["alice"] = []string{"a", "b"}

	require.NoError(t, m.CompleteTask(context.Background(), "user-1", 0))
	assert.Equal(t, []string{"done:a", "b"}, engine.tasks["alice"])
}

func TestRenameTask(t *testing.T) {
	m, engine := newTestManager(t)
	loginTestUser(t, m, engine, "user-1", "alice")
	engine.tasks["alice"] = []string{"a", "b"}

	require.NoError(t, m.RenameTask(context.Background(), "user-1", 1, "b renamed"))
	assert.Equal(t, []string{"a", "b renamed"}, engine.tasks["alice"])
}

// Row actions re-read the count and silently skip indexes past the end, so a
// list that shrank between display and action never errors out.
func TestRowActionOutOfRangeIsSoftNoop(t *testing.T) {
	m, engine := newTestManager(t)
	loginTestUser(t, m, engine, "user-1", "alice")
	engine.tasks["alice"] = []string{"only"}

	require.NoError(t, m.DeleteTask(context.Background(), "user-1", 5))
	require.NoError(t, m.CompleteTask(context.Background(), "user-1", -1))
	require.NoError(t, m.RenameTask(context.Background(), "user-1", 1, "x"))

	assert.Equal(t, []string{"only"}, engine.tasks["alice"])
}

func TestTasksSessionLost(t *testing.T) {
	m, engine := newTestManager(t)
	loginTestUser(t, m, engine, "user-1", "alice")
	engine.pages[0].lost = true

	_, err := m.Tasks(context.Background(), "user-1")
	require.Error(t, err)
	assert.True(t, automation.IsSessionLost(err))
}

// Per-user isolation: actions only ever touch the acting user's account.
func TestTaskActionsAreIsolatedPerUser(t *testing.T) {
	m, engine := newTestManager(t)
	loginTestUser(t, m, engine, "user-1", "alice")
	loginTestUser(t, m, engine, "user-2", "bob")
	engine.tasks["alice"] = []string{"alice task"}
	engine.tasks["bob"] = []string{"bob task"}

	require.NoError(t, m.DeleteTask(context.Background(), "user-2", 0))

	assert.Equal(t, []string{"alice task"}, engine.tasks["alice"])
	assert.Empty(t, engine.tasks["bob"])
}
