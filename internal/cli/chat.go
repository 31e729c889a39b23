package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hmkim/agora/internal/config"
	"github.com/hmkim/agora/internal/logger"
	"github.com/hmkim/agora/pkg/agent"
	"github.com/hmkim/agora/pkg/chat"
	"github.com/hmkim/agora/pkg/mcp"
	"github.com/hmkim/agora/pkg/pipeline"
	"github.com/hmkim/agora/pkg/planner"
	"github.com/spf13/cobra"
)

var multiMode bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat session against the configured MCP servers.
With --multi, requests are classified and delegated across the analyst,
writer, and reviewer specialists under one orchestrator.`,
	RunE: runChat,
	// Startup failures surface through the returned error; cobra prints
	// it and main exits non-zero.
	SilenceUsage: true,
}

func init() {
	chatCmd.Flags().BoolVar(&multiMode, "multi", false, "enable multi-agent mode")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logCfg := logger.Config{
		Level:     logLevel,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	}
	if cfg.Logging.Level != "" && !cmd.Flags().Changed("log-level") {
		logCfg.Level = cfg.Logging.Level
	}
	lg, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer lg.Close()
	zl := lg.GetZerolog()

	envVar, err := agent.APIKeyEnvVar(cfg.AI.Provider)
	if err != nil {
		return err
	}
	apiKey := os.Getenv(envVar)
	if apiKey == "" {
		return fmt.Errorf("%s environment variable is not set", envVar)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	provider, err := (&agent.ProviderFactory{}).NewProvider(ctx, cfg.AI.Provider, apiKey)
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	bridge := mcp.NewBridge(mcp.BridgeConfig{Logger: zl})
	if err := bridge.Connect(ctx, serverSpecs(cfg)); err != nil {
		return fmt.Errorf("failed to connect tool servers: %w", err)
	}

	settings := agent.ModelSettings{
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxTokens,
		MaxRetries:  cfg.AI.MaxRetries,
	}

	controllerCfg := chat.Config{
		Bridge:           bridge,
		Multi:            multiMode,
		ResetSpecialists: cfg.MultiAgent.ResetSpecialistHistory,
		HandleSignals:    true,
		Logger:           zl,
	}

	if multiMode {
		newLoop := func(profile agent.Profile) (*agent.Loop, error) {
			return agent.NewLoop(agent.LoopConfig{
				Provider: provider,
				Bridge:   bridge,
				Profile:  profile,
				Settings: settings,
				Logger:   zl,
			})
		}

		orchestrator, err := newLoop(agent.OrchestratorProfile())
		if err != nil {
			bridge.Close()
			return err
		}
		analyst, err := newLoop(agent.AnalystProfile())
		if err != nil {
			bridge.Close()
			return err
		}
		writer, err := newLoop(agent.WriterProfile())
		if err != nil {
			bridge.Close()
			return err
		}
		reviewer, err := newLoop(agent.ReviewerProfile())
		if err != nil {
			bridge.Close()
			return err
		}

		classifier, err := planner.NewClassifier(planner.ClassifierConfig{
			Provider: provider,
			Settings: settings,
			Logger:   zl,
		})
		if err != nil {
			bridge.Close()
			return err
		}

		executor, err := pipeline.NewExecutor(pipeline.ExecutorConfig{
			Specialists: map[planner.Role]pipeline.Runner{
				planner.RoleAnalyst:  analyst,
				planner.RoleWriter:   writer,
				planner.RoleReviewer: reviewer,
			},
			Orchestrator: orchestrator,
			Logger:       zl,
		})
		if err != nil {
			bridge.Close()
			return err
		}

		controllerCfg.Classifier = classifier
		controllerCfg.Executor = executor
		controllerCfg.Resettable = []chat.Resettable{orchestrator, analyst, writer, reviewer}
	} else {
		single, err := agent.NewLoop(agent.LoopConfig{
			Provider: provider,
			Bridge:   bridge,
			Profile:  agent.SingleProfile(),
			Settings: settings,
			Logger:   zl,
		})
		if err != nil {
			bridge.Close()
			return err
		}
		controllerCfg.Single = single
	}

	controller, err := chat.NewController(controllerCfg)
	if err != nil {
		bridge.Close()
		return err
	}

	// The controller owns the bridge from here and closes it on exit.
	return controller.Run(ctx)
}

func serverSpecs(cfg *config.Config) map[string]mcp.ServerSpec {
	specs := make(map[string]mcp.ServerSpec, len(cfg.MCPServers))
	for name, server := range cfg.MCPServers {
		specs[name] = mcp.ServerSpec{
			Command: server.Command,
			Args:    server.Args,
			Env:     server.Env,
		}
	}
	return specs
}
