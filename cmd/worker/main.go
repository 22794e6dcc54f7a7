package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"pivotpath.io/engine/common/id"
	"pivotpath.io/engine/common/llm"
	"pivotpath.io/engine/common/logger"
	"pivotpath.io/engine/common/otel"
	"pivotpath.io/engine/common/search"
	"pivotpath.io/engine/core/config"
	"pivotpath.io/engine/core/db"
	"pivotpath.io/engine/internal/engine"
	"pivotpath.io/engine/internal/queue"
	"pivotpath.io/engine/internal/store"
	"pivotpath.io/engine/internal/worker"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "pivotpath worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Pipeline.RedisGroup,
		"consumer_name", cfg.Pipeline.RedisConsumer)

	if err := id.Init(cfg.NodeID + 1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.RedisStream)

	llmClient, err := llm.NewClient(llm.Config{
		Provider: cfg.StageLLM.Provider,
		APIKey:   cfg.StageLLM.APIKey,
		BaseURL:  cfg.StageLLM.BaseURL,
		Model:    cfg.StageLLM.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create llm client", "error", err)
		os.Exit(1)
	}

	searchClient, err := search.New(search.Config{
		URL:        cfg.Search.URL,
		APIKey:     cfg.Search.APIKey,
		Collection: cfg.Search.Collection,
		Timeout:    cfg.Search.Timeout,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create search client", "error", err)
		os.Exit(1)
	}

	analysisStore := store.New(database)

	orchestrator := engine.NewOrchestrator(engine.Config{
		MaxSteps:         cfg.Engine.MaxSteps,
		AttemptThreshold: cfg.Engine.StageAttemptThreshold,
		Worker: engine.WorkerConfig{
			HistoryWindow:    cfg.Engine.HistoryWindow,
			MaxTokens:        cfg.StageLLM.MaxTokens,
			Temperature:      cfg.StageLLM.Temperature,
			CallTimeout:      cfg.StageLLM.Timeout,
			SearchMaxResults: cfg.Search.MaxResults,
		},
	}, llmClient, searchClient, analysisStore)

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:       cfg.Pipeline.RedisStream,
		Group:        cfg.Pipeline.RedisGroup,
		Consumer:     cfg.Pipeline.RedisConsumer,
		DLQStream:    cfg.Pipeline.RedisDLQStream,
		BatchSize:    1, // Runs are long; process one analysis at a time
		Block:        5 * time.Second,
		MaxAttempts:  3,
		RequeueDelay: time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	processor := worker.NewProcessor(orchestrator, analysisStore)

	w := worker.New(consumer, processor, worker.Config{
		MaxAttempts: 3,
	})

	reclaimer := worker.NewRedisReclaimer(redisClient, worker.RedisReclaimerConfig{
		Stream:    cfg.Pipeline.RedisStream,
		Group:     cfg.Pipeline.RedisGroup,
		Consumer:  cfg.Pipeline.RedisConsumer + "-reclaimer",
		MinIdle:   5 * time.Minute,
		Interval:  1 * time.Minute,
		BatchSize: 10,
	}, consumer, w.ProcessMessage)

	errCh := make(chan error, 2)
	go func() {
		errCh <- w.Run(ctx)
	}()
	go func() {
		reclaimer.Run(ctx)
		errCh <- nil
	}()

	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop reclaimer first (quick), then the worker (may be mid-run)
	reclaimer.Stop()
	w.Stop()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case err := <-errCh:
		if err != nil {
			slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

const banner = `
██████╗ ██╗██╗   ██╗ ██████╗ ████████╗██████╗  █████╗ ████████╗██╗  ██╗
██╔══██╗██║██║   ██║██╔═══██╗╚══██╔══╝██╔══██╗██╔══██╗╚══██╔══╝██║  ██║
██████╔╝██║██║   ██║██║   ██║   ██║   ██████╔╝███████║   ██║   ███████║
██╔═══╝ ██║╚██╗ ██╔╝██║   ██║   ██║   ██╔═══╝ ██╔══██║   ██║   ██╔══██║
██║     ██║ ╚████╔╝ ╚██████╔╝   ██║   ██║     ██║  ██║   ██║   ██║  ██║
╚═╝     ╚═╝  ╚═══╝   ╚═════╝    ╚═╝   ╚═╝     ╚═╝  ╚═╝   ╚═╝   ╚═╝  ╚═╝
                                                        analysis worker
`
