package cli

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/voltr/surge/internal/agent"
	"github.com/voltr/surge/internal/analysis"
	"github.com/voltr/surge/internal/config"
	"github.com/voltr/surge/internal/console"
	"github.com/voltr/surge/internal/conversation"
	"github.com/voltr/surge/internal/docs"
	"github.com/voltr/surge/internal/gate"
	"github.com/voltr/surge/internal/lnd"
	"github.com/voltr/surge/internal/mempool"
	"github.com/voltr/surge/internal/model"
	"github.com/voltr/surge/internal/strategy"
	"github.com/voltr/surge/internal/tool"
)

// runtime holds the fully wired agent and the resources that must be
// released when it stops.
type runtime struct {
	cfg          *config.Config
	logger       *zap.Logger
	console      *console.Console
	gate         *gate.Gate
	registry     *tool.Registry
	orchestrator *agent.Orchestrator
	turnLog      *conversation.Log
	replayed     int
}

func (r *runtime) close() {
	if r.turnLog != nil {
		r.turnLog.Close()
	}
	if r.logger != nil {
		r.logger.Sync()
	}
}

// buildRuntime assembles the agent from configuration: turn log,
// conversation state, tool registry with every tool family registered,
// confirmation gate, model backend and orchestrator. override, if
// non-nil, applies CLI flag overrides after the file is loaded.
func buildRuntime(configPath string, override func(*config.Config)) (*runtime, error) {
	// 1. Load configuration.
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(cfg)
	}

	// 2. Create logger.
	logger, err := buildLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	// 3. Open the turn log and replay any previous conversation.
	if err := os.MkdirAll(cfg.Agent.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", cfg.Agent.DataDir, err)
	}
	turnLog, err := conversation.OpenLog(cfg.TurnLogPath())
	if err != nil {
		return nil, fmt.Errorf("opening turn log at %s: %w", cfg.TurnLogPath(), err)
	}
	state := conversation.NewState()
	replayed, err := turnLog.Replay(state)
	if err != nil {
		turnLog.Close()
		return nil, fmt.Errorf("replaying turn log: %w", err)
	}
	state.SetSink(turnLog)

	// 4. Console handles both transcript display and confirmations.
	con := console.New()
	g := gate.New(con, cfg.GateTimeout(), logger)

	// 5. Register every tool family.
	registry := tool.NewRegistry()

	node, err := lnd.NewClient(cfg.LND, logger)
	if err != nil {
		turnLog.Close()
		return nil, fmt.Errorf("creating lnd client: %w", err)
	}
	graph := mempool.NewClient(cfg.Mempool, logger)
	analyzer := analysis.NewAnalyzer(cfg.Analysis.AvailabilityURL, graph, logger)
	library := docs.NewLibrary(cfg.Docs.Dir, logger)
	planner := strategy.NewPlanner(node, graph, analyzer, cfg.Agent.NodeBlacklist, logger)

	for _, register := range []func() error{
		func() error { return lnd.RegisterTools(registry, node) },
		func() error { return mempool.RegisterTools(registry, graph) },
		func() error { return analysis.RegisterTools(registry, analyzer) },
		func() error { return docs.RegisterTools(registry, library) },
		func() error { return strategy.RegisterTools(registry, planner) },
	} {
		if err := register(); err != nil {
			turnLog.Close()
			return nil, fmt.Errorf("registering tools: %w", err)
		}
	}

	// 6. Executor, model backend and orchestrator.
	executor := tool.NewExecutor(registry, cfg.Agent.MaxPayloadBytes, logger)

	collaborator, err := model.NewAnyLLM(cfg.Model.Provider, cfg.Model.Name, agent.SystemPrompt(cfg.Agent.Network), logger)
	if err != nil {
		turnLog.Close()
		return nil, fmt.Errorf("creating model backend: %w", err)
	}

	orch := agent.New(registry, executor, g, collaborator, state, con, agent.Config{
		MaxTurns:     cfg.Agent.MaxTurns,
		ModelRetries: cfg.Agent.ModelRetries,
	}, logger)

	return &runtime{
		cfg:          cfg,
		logger:       logger,
		console:      con,
		gate:         g,
		registry:     registry,
		orchestrator: orch,
		turnLog:      turnLog,
		replayed:     replayed,
	}, nil
}

// buildLogger constructs a zap logger from the configured level and
// format ("console" or "json").
func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}
