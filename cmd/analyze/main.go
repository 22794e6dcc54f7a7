package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"pivotpath.io/engine/common/id"
	"pivotpath.io/engine/common/llm"
	"pivotpath.io/engine/common/logger"
	"pivotpath.io/engine/common/search"
	"pivotpath.io/engine/core/config"
	"pivotpath.io/engine/core/db"
	"pivotpath.io/engine/internal/engine"
	"pivotpath.io/engine/internal/model"
	"pivotpath.io/engine/internal/store"
)

// analyze runs a single career-transition analysis end to end and
// prints the result as JSON. Useful for prompt iteration without the
// server and queue in the loop.
func main() {
	sourceRole := flag.String("source", "", "current role (required)")
	targetRole := flag.String("target", "", "target role (required)")
	skills := flag.String("skills", "", "comma-separated list of skills already held")
	flag.Parse()

	if *sourceRole == "" || *targetRole == "" {
		fmt.Fprintln(os.Stderr, "usage: analyze -source <role> -target <role> [-skills a,b,c]")
		os.Exit(2)
	}

	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeCLI)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logger.Setup(cfg)

	if err := id.Init(cfg.NodeID); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

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

	var knownSkills []string
	for _, s := range strings.Split(*skills, ",") {
		if s = strings.TrimSpace(s); s != "" {
			knownSkills = append(knownSkills, s)
		}
	}

	analysis := &model.Analysis{
		ID:          id.New(),
		SourceRole:  *sourceRole,
		TargetRole:  *targetRole,
		KnownSkills: knownSkills,
		Status:      model.AnalysisStatusQueued,
	}
	if err := analysisStore.CreateAnalysis(ctx, analysis); err != nil {
		slog.ErrorContext(ctx, "failed to create analysis record", "error", err)
		os.Exit(1)
	}
	if err := analysisStore.MarkRunning(ctx, analysis.ID); err != nil {
		slog.ErrorContext(ctx, "failed to mark analysis running", "error", err)
		os.Exit(1)
	}

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

	result, err := orchestrator.Run(ctx, model.AnalysisRequest{
		AnalysisID:  analysis.ID,
		SourceRole:  analysis.SourceRole,
		TargetRole:  analysis.TargetRole,
		KnownSkills: analysis.KnownSkills,
	})
	if err != nil {
		slog.ErrorContext(ctx, "analysis run failed", "error", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode result", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
