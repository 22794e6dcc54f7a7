package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"pivotpath.io/engine/common/llm"
	"pivotpath.io/engine/common/logger"
	"pivotpath.io/engine/common/search"
	"pivotpath.io/engine/internal/extract"
	"pivotpath.io/engine/internal/model"
	"pivotpath.io/engine/internal/store"
)

// maxToolRounds bounds consecutive tool round-trips within one stage
// invocation. Tool calls do not consume stage attempts or steps, so an
// unbounded loop here would escape every other safeguard.
const maxToolRounds = 3

// Config holds the orchestration budgets.
type Config struct {
	MaxSteps         int // hard cap on coordinator steps per run
	AttemptThreshold int // consecutive no-progress invocations before a stage is advanced past
	Worker           WorkerConfig
}

func (c Config) withDefaults() Config {
	if c.MaxSteps <= 0 {
		c.MaxSteps = 50
	}
	if c.AttemptThreshold <= 0 {
		c.AttemptThreshold = 5
	}
	return c
}

// Orchestrator owns the shared state and drives the step loop:
// coordinator decision, stage worker, extraction, write-through
// persistence, and back. Run is strictly sequential per analysis;
// concurrency exists only across independent runs.
type Orchestrator struct {
	cfg         Config
	coordinator *Coordinator
	workers     map[Stage]StageWorker
	search      search.Client
	repo        store.Repository
}

func NewOrchestrator(
	cfg Config,
	client llm.Client,
	searchClient search.Client,
	repo store.Repository,
) *Orchestrator {
	cfg = cfg.withDefaults()

	workers := map[Stage]StageWorker{
		StageResearch:      NewResearchWorker(client, searchClient, cfg.Worker),
		StageSkillAnalysis: NewSkillAnalysisWorker(client, cfg.Worker),
		StageInsight:       NewInsightWorker(client, cfg.Worker),
		StagePlanning:      NewPlanningWorker(client, cfg.Worker),
	}

	return &Orchestrator{
		cfg:         cfg,
		coordinator: NewCoordinator(cfg.AttemptThreshold),
		workers:     workers,
		search:      searchClient,
		repo:        repo,
	}
}

// Run executes one analysis to completion. It always returns a result
// (possibly degraded); the only errors it propagates are persistence
// failures, since proceeding without durable writes would silently
// lose data.
func (o *Orchestrator) Run(ctx context.Context, req model.AnalysisRequest) (*model.AnalysisResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		AnalysisID: &req.AnalysisID,
		Component:  "engine.orchestrator",
	})

	slog.InfoContext(ctx, "analysis run starting",
		"source_role", req.SourceRole,
		"target_role", req.TargetRole)

	// One run at a time per analysis id: drop any prior run's records
	// before new data is written.
	if err := o.repo.ClearAnalysis(ctx, req.AnalysisID); err != nil {
		return nil, fmt.Errorf("clearing prior analysis: %w", err)
	}

	state := NewSharedState(req)
	degraded := false

	for step := 1; ; step++ {
		// Cancellation is checked at the loop top; mid-flight external
		// calls finish best effort rather than being hard-aborted.
		if ctx.Err() != nil {
			slog.WarnContext(ctx, "run cancelled, forcing completion", "step", step)
			degraded = true
			break
		}

		if step > o.cfg.MaxSteps {
			slog.WarnContext(ctx, "step cap reached, forcing completion",
				"max_steps", o.cfg.MaxSteps)
			degraded = true
			break
		}

		stepCtx := logger.WithLogFields(ctx, logger.LogFields{Step: &step})

		decision := o.coordinator.Decide(*state)
		slog.DebugContext(stepCtx, "coordinator decision",
			"action", string(decision.Action),
			"stage", string(decision.Stage),
			"forced", decision.Forced,
			"reason", decision.Reason)

		if decision.Action == ActionComplete {
			break
		}

		if decision.Seed {
			if err := o.applyDelta(stepCtx, state, placeholderEvidence(req)); err != nil {
				return nil, err
			}
		}

		worker := o.workers[decision.Stage]
		if decision.Stage != state.Stage {
			state.SetStage(decision.Stage, worker.SystemPrompt())
		}

		delta, err := o.runStage(stepCtx, worker, state)
		if err != nil {
			return nil, err
		}

		if delta.Empty() {
			state.StageAttempts[state.Stage]++
			slog.InfoContext(stepCtx, "stage produced no data",
				"stage", string(state.Stage),
				"attempts", state.StageAttempts[state.Stage])
			continue
		}

		state.StageAttempts[state.Stage] = 0
		if err := o.applyDelta(stepCtx, state, delta); err != nil {
			return nil, err
		}
	}

	// Completion must be durable even when the run was cancelled.
	finishCtx := context.WithoutCancel(ctx)
	if err := o.repo.MarkComplete(finishCtx, req.AnalysisID, degraded); err != nil {
		return nil, fmt.Errorf("marking analysis complete: %w", err)
	}

	result := &model.AnalysisResult{
		AnalysisID: req.AnalysisID,
		SkillGaps:  state.SkillGaps,
		Insight:    state.Insight,
		Plan:       state.Plan,
		Degraded:   degraded,
	}

	slog.InfoContext(ctx, "analysis run finished",
		"degraded", degraded,
		"evidence", len(state.Evidence),
		"skill_gaps", len(state.SkillGaps),
		"has_insight", state.Insight != nil,
		"has_plan", state.Plan != nil)

	return result, nil
}

// runStage invokes a worker, performs any tool round-trips, appends the
// assistant output to the conversation, and extracts the stage's delta.
// Tool round-trips do not consume stage attempts.
func (o *Orchestrator) runStage(ctx context.Context, worker StageWorker, state *SharedState) (Delta, error) {
	result := worker.Run(ctx, *state)

	for rounds := 0; result.ToolCall != nil && rounds < maxToolRounds; rounds++ {
		// Tool-derived evidence is part of the step's delta and is
		// persisted before the model sees the next prompt.
		if err := o.applyDelta(ctx, state, result.Delta); err != nil {
			return Delta{}, err
		}

		state.Append(llm.Message{
			Role:      "assistant",
			Content:   result.Raw,
			ToolCalls: []llm.ToolCall{*result.ToolCall},
		})

		toolOutput, docs := o.executeSearchTool(ctx, *result.ToolCall)
		state.Append(llm.Message{
			Role:       "tool",
			Content:    toolOutput,
			ToolCallID: result.ToolCall.ID,
		})

		if len(docs) > 0 {
			if err := o.applyDelta(ctx, state, Delta{Evidence: docs}); err != nil {
				return Delta{}, err
			}
		}

		result = worker.Run(ctx, *state)
	}

	if result.ToolCall != nil {
		// Tool budget exhausted with no textual answer
		slog.WarnContext(ctx, "stage still requesting tools after budget, treating as failed",
			"stage", string(worker.Stage()))
		result.Raw = stageFailedOutput
	}

	state.Append(llm.Message{Role: "assistant", Content: result.Raw})

	delta := result.Delta
	extracted := extractDelta(worker.Stage(), result.Raw)
	delta.SkillGaps = append(delta.SkillGaps, extracted.SkillGaps...)
	delta.Evidence = append(delta.Evidence, extracted.Evidence...)
	if extracted.Insight != nil {
		delta.Insight = extracted.Insight
	}
	if extracted.Plan != nil {
		delta.Plan = extracted.Plan
	}

	return delta, nil
}

// executeSearchTool runs a search_evidence invocation against the search
// collaborator. Failures become error text for the model, never run errors.
func (o *Orchestrator) executeSearchTool(ctx context.Context, call llm.ToolCall) (string, []model.Document) {
	if call.Name != "search_evidence" {
		return fmt.Sprintf("Error: unknown tool %q", call.Name), nil
	}

	args, err := llm.ParseToolArguments[searchEvidenceArgs](call.Arguments)
	if err != nil {
		return fmt.Sprintf("Error: %s", err), nil
	}

	hits, err := o.search.Search(ctx, args.Query, args.MaxResults)
	if err != nil {
		slog.WarnContext(ctx, "search tool failed",
			"query", args.Query,
			"error", err)
		return fmt.Sprintf("Error: search failed: %s", err), nil
	}

	docs := toDocuments(hits)
	payload, err := json.Marshal(docs)
	if err != nil {
		return fmt.Sprintf("Error: %s", err), nil
	}

	return string(payload), docs
}

// applyDelta is the single place shared state is mutated and the
// write-through point: every successful extraction reaches the store
// before the next coordinator decision.
func (o *Orchestrator) applyDelta(ctx context.Context, state *SharedState, delta Delta) error {
	if delta.Empty() {
		return nil
	}

	state.merge(delta)
	id := state.Request.AnalysisID

	if len(delta.Evidence) > 0 {
		if err := o.repo.SaveEvidence(ctx, id, state.Evidence); err != nil {
			return fmt.Errorf("saving evidence: %w", err)
		}
	}
	if len(delta.SkillGaps) > 0 {
		if err := o.repo.SaveSkillGaps(ctx, id, state.SkillGaps); err != nil {
			return fmt.Errorf("saving skill gaps: %w", err)
		}
	}
	if delta.Insight != nil {
		if err := o.repo.SaveInsight(ctx, id, *state.Insight); err != nil {
			return fmt.Errorf("saving insight: %w", err)
		}
	}
	if delta.Plan != nil {
		if err := o.repo.SavePlan(ctx, id, *state.Plan); err != nil {
			return fmt.Errorf("saving plan: %w", err)
		}
	}

	return nil
}

// extractDelta applies the layered extractor against raw output with the
// shape the stage is expected to produce. Research output may carry
// early skill-gap observations, so it shares the skill-gap shape.
func extractDelta(stage Stage, raw string) Delta {
	switch stage {
	case StageResearch, StageSkillAnalysis:
		if gaps, ok := extract.SkillGaps(raw); ok {
			return Delta{SkillGaps: gaps}
		}
	case StageInsight:
		if insight, ok := extract.Insight(raw); ok {
			return Delta{Insight: insight}
		}
	case StagePlanning:
		if plan, ok := extract.Plan(raw); ok {
			return Delta{Plan: plan}
		}
	}
	return Delta{}
}

// placeholderEvidence seeds one synthetic document when a starved
// research stage is advanced past, so later stages are not blocked by
// an empty precondition.
func placeholderEvidence(req model.AnalysisRequest) Delta {
	return Delta{Evidence: []model.Document{{
		Title: fmt.Sprintf("No evidence found for %s to %s", req.SourceRole, req.TargetRole),
		Body: "Automated research did not surface transition stories for this pair of roles. " +
			"Subsequent analysis is based on general knowledge of both roles.",
	}}}
}
