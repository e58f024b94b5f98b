package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/burnout-twin/burnout-twin/internal/config"
	"github.com/burnout-twin/burnout-twin/internal/eval"
	"github.com/burnout-twin/burnout-twin/internal/interior"
	"github.com/burnout-twin/burnout-twin/internal/llm"
	"github.com/burnout-twin/burnout-twin/internal/minds"
	"github.com/burnout-twin/burnout-twin/internal/orchestrator"
	"github.com/burnout-twin/burnout-twin/internal/persona"
	"github.com/burnout-twin/burnout-twin/internal/sensors"
	"github.com/burnout-twin/burnout-twin/internal/snapshot"
	"github.com/burnout-twin/burnout-twin/internal/state"
)

var runOnce bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the heartbeat loop: sense, update, publish, narrate",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runOnce, "once", false, "run a single tick and exit")
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := state.NewStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	completer, err := llm.New(ctx, llm.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Retry:    llm.DefaultRetryPolicy(),
	})
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}

	pcfg := persona.DefaultConfig()
	pcfg.PersonaID = cfg.PersonaID
	pcfg.Channels = cfg.Channels
	pcfg.JudgeTimeout = cfg.JudgeTimeout
	pcfg.AssessTimeout = cfg.AssessTimeout
	pcfg.MaxMemoryAdditions = cfg.MaxMemoryAdditions
	pcfg.Store = store
	pcfg.Logger = logger
	manager, err := persona.NewManager(pcfg, minds.NewJudge(completer), minds.NewAssessor(completer))
	if err != nil {
		return err
	}

	reactions, err := interior.NewReactionStore(store.DB())
	if err != nil {
		return err
	}

	ss, err := buildSensors(cfg)
	if err != nil {
		return err
	}

	orch := orchestrator.New(manager, ss, orchestrator.Options{
		Writer:         snapshot.NewPublisher(cfg.SnapshotPath),
		Narrator:       minds.NewNarrator(completer),
		Reactions:      reactions,
		Harness:        eval.NewEvalHarness(eval.DefaultEvalConfig()),
		NarrateTimeout: cfg.NarrateTimeout,
		Logger:         logger,
	})

	names := make([]string, len(ss))
	for i, s := range ss {
		names[i] = s.Name()
	}
	logger.Info("twin starting",
		zap.String("persona_id", cfg.PersonaID),
		zap.String("provider", cfg.LLM.Provider),
		zap.String("sensors", strings.Join(names, ",")),
		zap.Duration("heartbeat", cfg.Heartbeat),
		zap.Bool("once", runOnce))
	return orch.Run(ctx, cfg.Heartbeat, runOnce)
}

// buildSensors assembles the sensor set. The MCP-backed sources are only
// started when MCP is enabled and a command is configured.
func buildSensors(cfg config.Config) ([]sensors.Sensor, error) {
	var spotify, calendar *sensors.MCPSource
	if cfg.MCP.Enabled {
		var err error
		if cfg.MCP.SpotifyCommand != "" {
			spotify, err = sensors.NewCommandSource(cfg.MCP.SpotifyCommand, cfg.MCP.SpotifyTool, nil)
			if err != nil {
				return nil, fmt.Errorf("spotify source: %w", err)
			}
		}
		if cfg.MCP.CalendarCommand != "" {
			calendar, err = sensors.NewCommandSource(cfg.MCP.CalendarCommand, cfg.MCP.CalendarTool, nil)
			if err != nil {
				return nil, fmt.Errorf("calendar source: %w", err)
			}
		}
	}

	return []sensors.Sensor{
		sensors.NewGitHub(sensors.GitHubConfig{
			Repo:    cfg.GitHub.Repo,
			Token:   cfg.GitHub.Token,
			BaseURL: cfg.GitHub.BaseURL,
			Logger:  logger,
		}),
		sensors.NewMusic(sensors.MusicConfig{Source: spotify, Logger: logger}),
		sensors.NewChat(sensors.ChatConfig{Probability: cfg.Chat.Probability}),
		sensors.NewCalendar(calendar),
	}, nil
}
