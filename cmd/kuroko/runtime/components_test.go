package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harunnryd/kuroko/internal/config"
	"github.com/harunnryd/kuroko/internal/model/contract"
)

func testConfig(root string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{LogLevel: "error"},
		Model: config.ModelConfig{
			Name: "test-model",
			Host: "localhost:1",
		},
		Context:      config.ContextConfig{TokenBudget: config.DefaultContextTokenBudget},
		Orchestrator: config.OrchestratorConfig{MaxRounds: config.DefaultOrchestratorMaxRounds},
		Session: config.SessionConfig{
			Save:       true,
			MaxHistory: config.DefaultSessionMaxHistory,
			Workspace:  "testspace",
			Root:       root,
		},
	}
}

func TestBuild_DefaultSessionCarriesHistoryAcrossRuns(t *testing.T) {
	cfg := testConfig(t.TempDir())

	first, err := Build(context.Background(), cfg, "testspace", "")
	require.NoError(t, err)
	require.NotNil(t, first.Session)
	assert.Equal(t, DefaultSessionID, first.SessionID)

	first.Session.Record(contract.RoleUser, "remember the blue house")
	first.Session.Record(contract.RoleAssistant, "noted, a blue house")
	first.Stop()

	second, err := Build(context.Background(), cfg, "testspace", "")
	require.NoError(t, err)
	defer second.Stop()

	assert.Equal(t, DefaultSessionID, second.SessionID)

	messages := second.Memory.Messages()
	require.Greater(t, len(messages), 2)
	assert.Equal(t, contract.RoleSystem, messages[0].Role)
	assert.Equal(t, "remember the blue house", messages[1].Content)
	assert.Equal(t, "noted, a blue house", messages[2].Content)
}

func TestBuild_ExplicitSessionIDWins(t *testing.T) {
	cfg := testConfig(t.TempDir())

	c, err := Build(context.Background(), cfg, "testspace", "scratch")
	require.NoError(t, err)
	defer c.Stop()

	assert.Equal(t, "scratch", c.SessionID)
}

func TestBuild_StatelessSkipsStoreAndSession(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Session.Save = false

	c, err := Build(context.Background(), cfg, "testspace", "")
	require.NoError(t, err)
	defer c.Stop()

	assert.Nil(t, c.StoreWorker)
	assert.Nil(t, c.Session)
	assert.Nil(t, c.Todos)
}
