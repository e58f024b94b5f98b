package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/burnout-twin/burnout-twin/internal/llm"
	"github.com/burnout-twin/burnout-twin/internal/state"
)

// #region config
// Config is everything the twin binary needs. Zero values are filled by
// Default; a YAML file and the environment override in that order.
type Config struct {
	DBPath       string `yaml:"db"`
	SnapshotPath string `yaml:"snapshot"`

	PersonaID          string        `yaml:"persona_id"`
	Channels           []string      `yaml:"channels"`
	Heartbeat          time.Duration `yaml:"heartbeat"`
	JudgeTimeout       time.Duration `yaml:"judge_timeout"`
	AssessTimeout      time.Duration `yaml:"assess_timeout"`
	NarrateTimeout     time.Duration `yaml:"narrate_timeout"`
	MaxMemoryAdditions int           `yaml:"max_memory_additions"`

	LLM    LLMConfig    `yaml:"llm"`
	GitHub GitHubConfig `yaml:"github"`
	MCP    MCPConfig    `yaml:"mcp"`
	Chat   ChatConfig   `yaml:"chat"`

	Port     int    `yaml:"port"`
	GRPCAddr string `yaml:"grpc_addr"`
}

// LLMConfig selects the model provider.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
}

// GitHubConfig selects the watched repository.
type GitHubConfig struct {
	Repo    string `yaml:"repo"`
	Token   string `yaml:"token"`
	BaseURL string `yaml:"base_url"`
}

// MCPConfig holds the stdio MCP servers behind the calendar and music sensors.
type MCPConfig struct {
	Enabled         bool   `yaml:"enabled"`
	CalendarCommand string `yaml:"calendar_command"`
	CalendarTool    string `yaml:"calendar_tool"`
	SpotifyCommand  string `yaml:"spotify_command"`
	SpotifyTool     string `yaml:"spotify_tool"`
}

// ChatConfig tunes the simulated chat feed.
type ChatConfig struct {
	Probability float64 `yaml:"probability"`
}

// #endregion config

// #region defaults
// Default returns the configuration the twin runs with out of the box.
func Default() Config {
	return Config{
		DBPath:         "burnout_twin.db",
		SnapshotPath:   "persona_last_push.json",
		PersonaID:      "digital-twin",
		Channels:       append([]string{}, state.DefaultChannels...),
		Heartbeat:      10 * time.Second,
		JudgeTimeout:   30 * time.Second,
		AssessTimeout:  30 * time.Second,
		NarrateTimeout: 30 * time.Second,
		LLM:            LLMConfig{Provider: llm.ProviderOpenAI},
		GitHub:         GitHubConfig{Repo: "nishsm/sample-burnout-repo"},
		MCP: MCPConfig{
			CalendarTool: "list_events",
			SpotifyTool:  "get_recently_played",
		},
		Chat:     ChatConfig{Probability: 0.2},
		Port:     8000,
		GRPCAddr: "localhost:50051",
	}
}

// #endregion defaults

// #region load
// Load reads a YAML file over Default. A missing path returns Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. getenv is usually
// os.Getenv. Malformed numbers are reported, not ignored.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		v := getenv(key)
		if v == "" {
			return
		}
		d, err := parseSeconds(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}

	str("TWIN_DB", &c.DBPath)
	str("TWIN_SNAPSHOT", &c.SnapshotPath)
	str("TWIN_PERSONA_ID", &c.PersonaID)
	dur("HEARTBEAT_RATE", &c.Heartbeat)
	dur("TWIN_JUDGE_TIMEOUT", &c.JudgeTimeout)
	dur("TWIN_NARRATE_TIMEOUT", &c.NarrateTimeout)
	str("TWIN_PROVIDER", &c.LLM.Provider)
	str("TWIN_MODEL", &c.LLM.Model)
	str("TWIN_LLM_BASE_URL", &c.LLM.BaseURL)
	switch c.LLM.Provider {
	case llm.ProviderGemini:
		str("GEMINI_API_KEY", &c.LLM.APIKey)
	default:
		str("OPENAI_API_KEY", &c.LLM.APIKey)
	}
	str("GITHUB_TOKEN", &c.GitHub.Token)
	str("TARGET_REPO", &c.GitHub.Repo)
	if v := getenv("USE_MCP"); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes":
			c.MCP.Enabled = true
		default:
			c.MCP.Enabled = false
		}
	}
	str("CALENDAR_MCP_COMMAND", &c.MCP.CalendarCommand)
	str("SPOTIFY_MCP_COMMAND", &c.MCP.SpotifyCommand)
	if v := getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PORT: %w", err))
		} else {
			c.Port = p
		}
	}
	str("TWIN_GRPC_ADDR", &c.GRPCAddr)
	return errors.Join(errs...)
}

// parseSeconds accepts a Go duration ("10s") or a bare number of seconds.
func parseSeconds(v string) (time.Duration, error) {
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}

// #endregion load

// #region validate
// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("db path is empty"))
	}
	if c.SnapshotPath == "" {
		errs = append(errs, errors.New("snapshot path is empty"))
	}
	if c.PersonaID == "" {
		errs = append(errs, errors.New("persona id is empty"))
	}
	if len(c.Channels) == 0 {
		errs = append(errs, errors.New("no channels configured"))
	}
	seen := make(map[string]bool, len(c.Channels))
	for _, ch := range c.Channels {
		if ch == "" || seen[ch] {
			errs = append(errs, fmt.Errorf("channel %q is empty or duplicated", ch))
		}
		seen[ch] = true
	}
	if c.Heartbeat <= 0 {
		errs = append(errs, fmt.Errorf("heartbeat must be positive, got %s", c.Heartbeat))
	}
	if c.JudgeTimeout <= 0 || c.AssessTimeout <= 0 || c.NarrateTimeout <= 0 {
		errs = append(errs, errors.New("remote timeouts must be positive"))
	}
	if c.MaxMemoryAdditions < 0 {
		errs = append(errs, errors.New("max memory additions must not be negative"))
	}
	switch c.LLM.Provider {
	case llm.ProviderOpenAI, llm.ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("unknown llm provider %q", c.LLM.Provider))
	}
	if c.Chat.Probability < 0 || c.Chat.Probability > 1 {
		errs = append(errs, fmt.Errorf("chat probability %v outside [0, 1]", c.Chat.Probability))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	return errors.Join(errs...)
}

// #endregion validate
