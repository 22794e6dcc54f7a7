package worker

import (
	"context"
	"fmt"
	"log/slog"

	"pivotpath.io/engine/common/logger"
	"pivotpath.io/engine/internal/model"
	"pivotpath.io/engine/internal/queue"
	"pivotpath.io/engine/internal/store"
)

// AnalysisRunner is the orchestration engine seen from the worker side.
type AnalysisRunner interface {
	Run(ctx context.Context, req model.AnalysisRequest) (*model.AnalysisResult, error)
}

// Processor turns a queue message into an analysis run. The run itself
// absorbs model and search failures; errors surfacing here are
// persistence-level and worth a redelivery.
type Processor struct {
	runner AnalysisRunner
	store  store.AnalysisStore
}

func NewProcessor(runner AnalysisRunner, analysisStore store.AnalysisStore) *Processor {
	return &Processor{
		runner: runner,
		store:  analysisStore,
	}
}

func (p *Processor) Process(ctx context.Context, msg queue.Message) error {
	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.process_task")
	defer sc.End()
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{
		AnalysisID: &msg.AnalysisID,
		Component:  "engine.worker",
	})

	if err := p.store.MarkRunning(ctx, msg.AnalysisID); err != nil {
		sc.RecordError(err)
		return fmt.Errorf("marking analysis running: %w", err)
	}

	req := model.AnalysisRequest{
		AnalysisID:  msg.AnalysisID,
		SourceRole:  msg.SourceRole,
		TargetRole:  msg.TargetRole,
		KnownSkills: msg.KnownSkills,
	}

	result, err := p.runner.Run(ctx, req)
	if err != nil {
		sc.RecordError(err)
		return fmt.Errorf("analysis run: %w", err)
	}

	slog.InfoContext(ctx, "analysis task processed",
		"degraded", result.Degraded,
		"skill_gaps", len(result.SkillGaps),
		"has_plan", result.Plan != nil)
	return nil
}

// Fail marks the run record failed once redelivery is exhausted.
func (p *Processor) Fail(ctx context.Context, analysisID int64) error {
	return p.store.MarkFailed(ctx, analysisID)
}
