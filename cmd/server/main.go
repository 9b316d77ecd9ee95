// Command server runs the mindhub agent gateway: request scoring, model
// selection, upstream dispatch and the downstream SSE API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"mindhub/internal/adapter/catalog"
	"mindhub/internal/adapter/gateway"
	"mindhub/internal/adapter/llm"
	"mindhub/internal/domain"
	"mindhub/internal/infra/config"
	"mindhub/internal/infra/logger"
	"mindhub/internal/infra/middleware"
	"mindhub/internal/infra/tracer"
	"mindhub/internal/usecase"
	"mindhub/internal/usecase/scheduling"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", defaultConfigPath(), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return err
	}
	defer shutdownTracer(context.Background())

	estimator := buildEstimator(cfg.Estimator, log)
	models := catalog.Models()
	agents := catalog.NewAgentRegistry()
	tools, err := catalog.NewToolCatalog()
	if err != nil {
		return err
	}

	memory := usecase.NewConversationMemory(usecase.MemoryOptions{
		TTL:         cfg.Memory.TTL,
		MaxEntries:  cfg.Memory.MaxEntries,
		MaxMessages: cfg.Memory.MaxMessages,
		KeepRecent:  cfg.Memory.KeepRecent,
	}, estimator)

	client := llm.NewAnthropicClient(cfg.Provider, cfg.Retry, models, log)
	var provider domain.StreamProvider = client
	if cfg.Breaker.Enabled {
		provider = llm.NewCircuitBreakerClient(client, cfg.Breaker, log)
	}

	analyzer := usecase.NewComplexityAnalyzer(agents)
	orch := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Agents:     agents,
		Tools:      tools,
		Selector:   usecase.NewModelSelector(models, cfg.Selection.Strategy, analyzer),
		Planner:    usecase.NewBudgetPlanner(estimator),
		Truncator:  usecase.NewHistoryTruncator(estimator),
		Estimator:  estimator,
		Memory:     memory,
		Provider:   provider,
		Translator: llm.NewTranslator(log),

		PinStreamingTier: domain.Tier(cfg.Selection.PinStreamingTier),
		Logger:           log,
	})

	sched := scheduling.NewScheduler(log)
	sched.RegisterAction(scheduling.ActionMemorySweep, func(context.Context) error {
		removed := memory.Sweep()
		if removed > 0 {
			log.Debug("memory sweep", "removed", removed)
		}
		return nil
	})
	sched.RegisterAction(scheduling.ActionStatsReport, func(context.Context) error {
		stats := memory.Stats()
		requests, costUSD := client.SessionStats()
		log.Info("usage report",
			"sessions", stats.Sessions,
			"messages", stats.TotalMessages,
			"requests", requests,
			"cost_usd", costUSD)
		return nil
	})
	if cfg.Memory.SweepSchedule != "" {
		if err := sched.AddTask(scheduling.ScheduledTask{
			Name:     "memory-sweep",
			Schedule: cfg.Memory.SweepSchedule,
			Action:   scheduling.ActionMemorySweep,
		}); err != nil {
			return err
		}
	}
	if err := sched.AddTask(scheduling.ScheduledTask{
		Name:     "stats-report",
		Schedule: "1h",
		Action:   scheduling.ActionStatsReport,
	}); err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	handler := gateway.NewHandler(gateway.HandlerDeps{
		Pipeline:     orch,
		Agents:       agents,
		Limiter:      middleware.NewUserLimiter(cfg.Limits.RequestsPerMinute, cfg.Limits.TokensPerMinute),
		Ledger:       middleware.NewCostLedger(cfg.Limits.DailyCostUSD, cfg.Limits.MonthlyCostUSD),
		Estimator:    estimator,
		Usage:        client,
		Logger:       log,
		PingInterval: cfg.Server.PingInterval,
	})

	srv := gateway.NewServer(cfg.Server, handler, log)
	srv.Use(middleware.RateLimit(ctx, cfg.Limits.RequestsPerMinute, cfg.Limits.RequestsPerMinute))
	return srv.Start(ctx)
}

// buildEstimator falls back to the heuristic estimator when the tiktoken
// encoding cannot be loaded, so a missing BPE cache never blocks startup.
func buildEstimator(cfg config.EstimatorConfig, log *slog.Logger) domain.TokenEstimator {
	if cfg.Kind == "tiktoken" {
		est, err := usecase.NewTiktokenEstimator(cfg.Encoding)
		if err == nil {
			return est
		}
		log.Warn("tiktoken estimator unavailable, using heuristic", "error", err)
	}
	return usecase.NewHeuristicEstimator(cfg.Language)
}

func defaultConfigPath() string {
	if p := os.Getenv("MINDHUB_CONFIG"); p != "" {
		return p
	}
	return "mindhub.yaml"
}
