package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10*time.Second, cfg.Heartbeat)
	assert.Equal(t, []string{"energy", "resilience", "social"}, cfg.Channels)
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twin.yaml")
	doc := `
db: /tmp/twin.db
heartbeat: 5s
channels: [energy, focus]
llm:
  provider: gemini
  model: gemini-2.5-flash
mcp:
  enabled: true
  calendar_command: npx calendar-mcp
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/twin.db", cfg.DBPath)
	assert.Equal(t, 5*time.Second, cfg.Heartbeat)
	assert.Equal(t, []string{"energy", "focus"}, cfg.Channels)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.True(t, cfg.MCP.Enabled)
	assert.Equal(t, "npx calendar-mcp", cfg.MCP.CalendarCommand)
	assert.Equal(t, "list_events", cfg.MCP.CalendarTool, "unset keys keep defaults")
	require.NoError(t, cfg.Validate())
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twin.yaml")
	require.NoError(t, os.WriteFile(path, []byte("heartbeat: [nope"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"TWIN_DB":              "env.db",
		"HEARTBEAT_RATE":       "3",
		"TWIN_JUDGE_TIMEOUT":   "1500ms",
		"TWIN_NARRATE_TIMEOUT": "2s",
		"OPENAI_API_KEY":       "sk-test",
		"GEMINI_API_KEY":       "ignored",
		"TARGET_REPO":          "me/repo",
		"GITHUB_TOKEN":         "gh",
		"USE_MCP":              "Yes",
		"PORT":                 "9001",
	}))
	require.NoError(t, err)
	assert.Equal(t, "env.db", cfg.DBPath)
	assert.Equal(t, 3*time.Second, cfg.Heartbeat)
	assert.Equal(t, 1500*time.Millisecond, cfg.JudgeTimeout)
	assert.Equal(t, 2*time.Second, cfg.NarrateTimeout)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "me/repo", cfg.GitHub.Repo)
	assert.Equal(t, "gh", cfg.GitHub.Token)
	assert.True(t, cfg.MCP.Enabled)
	assert.Equal(t, 9001, cfg.Port)
}

func TestApplyEnvPicksKeyForProvider(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{
		"TWIN_PROVIDER":  "gemini",
		"OPENAI_API_KEY": "sk-test",
		"GEMINI_API_KEY": "g-key",
	})))
	assert.Equal(t, "g-key", cfg.LLM.APIKey)
}

func TestApplyEnvReportsBadNumbers(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"HEARTBEAT_RATE": "often",
		"PORT":           "eighty",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HEARTBEAT_RATE")
	assert.Contains(t, err.Error(), "PORT")
	assert.Equal(t, 10*time.Second, cfg.Heartbeat)
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := Default()
	cfg.Channels = []string{"energy", "energy"}
	cfg.Heartbeat = 0
	cfg.LLM.Provider = "dedalus"
	cfg.Chat.Probability = 2

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"duplicated", "heartbeat", "dedalus", "probability"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateRejectsZeroNarrateTimeout(t *testing.T) {
	cfg := Default()
	cfg.NarrateTimeout = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeouts must be positive")
}
