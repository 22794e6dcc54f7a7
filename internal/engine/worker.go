package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pivotpath.io/engine/common/llm"
	"pivotpath.io/engine/common/logger"
	"pivotpath.io/engine/common/search"
	"pivotpath.io/engine/internal/model"
)

// stageFailedOutput is the sentinel returned when an external call
// fails. It carries no extractable data, so the step yields an empty
// delta and the attempt counter routes past it eventually.
const stageFailedOutput = "stage failed: the external call did not produce usable output"

// StageResult is one worker invocation's outcome.
type StageResult struct {
	Raw      string
	ToolCall *llm.ToolCall // pending tool round-trip, handled by the orchestrator
	Delta    Delta         // data the worker produced directly (e.g. fallback evidence)
}

// StageWorker runs one pipeline stage against a read view of shared state.
type StageWorker interface {
	Stage() Stage
	SystemPrompt() string
	Run(ctx context.Context, state SharedState) StageResult
}

// WorkerConfig holds the knobs shared by all stage workers.
type WorkerConfig struct {
	HistoryWindow    int // non-system messages resent per prompt
	MaxTokens        int
	Temperature      *float64      // nil = provider default
	CallTimeout      time.Duration // per model call
	SearchMaxResults int           // fallback search result cap
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 4
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 60 * time.Second
	}
	if c.SearchMaxResults <= 0 {
		c.SearchMaxResults = 5
	}
	return c
}

// stageWorker is the shared implementation: build the stage instruction,
// send the windowed conversation, surface errors as the failure sentinel.
type stageWorker struct {
	stage       Stage
	llm         llm.Client
	cfg         WorkerConfig
	toolEnabled bool
	instruction func(SharedState) string
}

func (w *stageWorker) Stage() Stage { return w.stage }

func (w *stageWorker) SystemPrompt() string { return systemPromptFor(w.stage) }

func (w *stageWorker) Run(ctx context.Context, state SharedState) StageResult {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Stage:     logger.Ptr(string(w.stage)),
		Component: "engine.worker",
	})

	messages := append(state.Window(w.cfg.HistoryWindow), llm.Message{
		Role:    "user",
		Content: w.instruction(state),
	})

	req := llm.Request{
		Messages:    messages,
		MaxTokens:   w.cfg.MaxTokens,
		Temperature: w.cfg.Temperature,
	}
	if w.toolEnabled {
		req.Tools = []llm.Tool{searchEvidenceTool()}
	}

	callCtx, cancel := context.WithTimeout(ctx, w.cfg.CallTimeout)
	defer cancel()

	resp, err := w.llm.Chat(callCtx, req)
	if err != nil {
		// Failures are recovered locally: the sentinel output produces
		// an empty delta, never an aborted run.
		slog.WarnContext(ctx, "stage model call failed",
			"error", err)
		return StageResult{Raw: stageFailedOutput}
	}

	if w.toolEnabled && len(resp.ToolCalls) > 0 {
		tc := resp.ToolCalls[0]
		slog.DebugContext(ctx, "stage requested tool call",
			"tool", tc.Name,
			"arguments", logger.Truncate(tc.Arguments, 200))
		return StageResult{Raw: resp.Content, ToolCall: &tc}
	}

	slog.DebugContext(ctx, "stage completed",
		"output_length", len(resp.Content),
		"finish_reason", resp.FinishReason)

	return StageResult{Raw: resp.Content}
}

// NewSkillAnalysisWorker analyzes evidence for concrete skill gaps.
func NewSkillAnalysisWorker(client llm.Client, cfg WorkerConfig) StageWorker {
	return &stageWorker{
		stage:       StageSkillAnalysis,
		llm:         client,
		cfg:         cfg.withDefaults(),
		toolEnabled: true,
		instruction: skillAnalysisInstruction,
	}
}

// NewInsightWorker distills gaps and evidence into insights. It is the
// one text-only stage: no tools are offered.
func NewInsightWorker(client llm.Client, cfg WorkerConfig) StageWorker {
	return &stageWorker{
		stage:       StageInsight,
		llm:         client,
		cfg:         cfg.withDefaults(),
		instruction: insightInstruction,
	}
}

// NewPlanningWorker turns gaps and insights into a milestone plan.
func NewPlanningWorker(client llm.Client, cfg WorkerConfig) StageWorker {
	return &stageWorker{
		stage:       StagePlanning,
		llm:         client,
		cfg:         cfg.withDefaults(),
		toolEnabled: true,
		instruction: planningInstruction,
	}
}

// researchWorker wraps the shared worker with a deterministic fallback
// search, guaranteeing a best-effort evidence set even when the model
// declines to call the search tool itself.
type researchWorker struct {
	stageWorker
	search search.Client
}

// NewResearchWorker gathers transition evidence.
func NewResearchWorker(client llm.Client, searchClient search.Client, cfg WorkerConfig) StageWorker {
	return &researchWorker{
		stageWorker: stageWorker{
			stage:       StageResearch,
			llm:         client,
			cfg:         cfg.withDefaults(),
			toolEnabled: true,
			instruction: researchInstruction,
		},
		search: searchClient,
	}
}

func (w *researchWorker) Run(ctx context.Context, state SharedState) StageResult {
	var delta Delta

	if len(state.Evidence) == 0 {
		query := fmt.Sprintf("%s to %s transition stories",
			state.Request.SourceRole, state.Request.TargetRole)

		docs, err := w.fallbackSearch(ctx, query)
		if err != nil {
			slog.WarnContext(ctx, "fallback evidence search failed",
				"query", query,
				"error", err)
		} else {
			delta.Evidence = docs
			// Make the fallback evidence visible to the prompt builder
			state.Evidence = append(state.Evidence, docs...)
		}
	}

	result := w.stageWorker.Run(ctx, state)
	result.Delta = delta
	return result
}

func (w *researchWorker) fallbackSearch(ctx context.Context, query string) ([]model.Document, error) {
	hits, err := w.search.Search(ctx, query, w.cfg.SearchMaxResults)
	if err != nil {
		return nil, err
	}
	return toDocuments(hits), nil
}

func toDocuments(hits []search.Document) []model.Document {
	docs := make([]model.Document, len(hits))
	for i, hit := range hits {
		docs[i] = model.Document(hit)
	}
	return docs
}
