package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pivotpath.io/engine/common/id"
	"pivotpath.io/engine/internal/model"
	"pivotpath.io/engine/internal/queue"
	"pivotpath.io/engine/internal/store"
)

type SubmitAnalysisParams struct {
	SourceRole  string   `json:"source_role"`
	TargetRole  string   `json:"target_role"`
	KnownSkills []string `json:"known_skills,omitempty"`

	TraceID *string `json:"trace_id,omitempty"`
}

var ErrAnalysisNotFound = errors.New("analysis not found")

// ErrResultNotReady is returned when a result is requested before the
// run has finished.
var ErrResultNotReady = errors.New("analysis result not ready")

type AnalysisService interface {
	Submit(ctx context.Context, params SubmitAnalysisParams) (*model.Analysis, error)
	Get(ctx context.Context, analysisID int64) (*model.Analysis, error)
	Result(ctx context.Context, analysisID int64) (*model.AnalysisResult, error)
}

type analysisService struct {
	store  store.AnalysisStore
	queue  queue.Producer
	logger *slog.Logger
}

func NewAnalysisService(analysisStore store.AnalysisStore, producer queue.Producer, logger *slog.Logger) AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &analysisService{
		store:  analysisStore,
		queue:  producer,
		logger: logger,
	}
}

// Submit creates the run record and enqueues the analysis task. The
// record exists before the task so a worker picking it up immediately
// always finds it.
func (s *analysisService) Submit(ctx context.Context, params SubmitAnalysisParams) (*model.Analysis, error) {
	if params.SourceRole == "" || params.TargetRole == "" {
		return nil, fmt.Errorf("source_role and target_role are required")
	}

	analysis := &model.Analysis{
		ID:          id.New(),
		SourceRole:  params.SourceRole,
		TargetRole:  params.TargetRole,
		KnownSkills: params.KnownSkills,
		Status:      model.AnalysisStatusQueued,
	}

	if err := s.store.CreateAnalysis(ctx, analysis); err != nil {
		return nil, fmt.Errorf("creating analysis: %w", err)
	}

	task := queue.Task{
		AnalysisID:  analysis.ID,
		SourceRole:  analysis.SourceRole,
		TargetRole:  analysis.TargetRole,
		KnownSkills: analysis.KnownSkills,
		TraceID:     params.TraceID,
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		// The record stays queued; a manual or scheduled resubmission
		// can pick it up. Surfacing the failure matters more here.
		if failErr := s.store.MarkFailed(ctx, analysis.ID); failErr != nil {
			s.logger.ErrorContext(ctx, "failed to mark unenqueued analysis failed",
				"analysis_id", analysis.ID,
				"error", failErr)
		}
		return nil, fmt.Errorf("enqueuing analysis task: %w", err)
	}

	s.logger.InfoContext(ctx, "analysis submitted",
		"analysis_id", analysis.ID,
		"source_role", analysis.SourceRole,
		"target_role", analysis.TargetRole)

	return analysis, nil
}

func (s *analysisService) Get(ctx context.Context, analysisID int64) (*model.Analysis, error) {
	analysis, err := s.store.GetAnalysis(ctx, analysisID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAnalysisNotFound
		}
		return nil, fmt.Errorf("fetching analysis: %w", err)
	}
	return analysis, nil
}

// Result returns the assembled result for a finished run.
func (s *analysisService) Result(ctx context.Context, analysisID int64) (*model.AnalysisResult, error) {
	analysis, err := s.Get(ctx, analysisID)
	if err != nil {
		return nil, err
	}

	if analysis.Status != model.AnalysisStatusComplete {
		return nil, fmt.Errorf("%w: status is %s", ErrResultNotReady, analysis.Status)
	}

	result, err := s.store.GetResult(ctx, analysisID)
	if err != nil {
		return nil, fmt.Errorf("fetching result: %w", err)
	}
	result.Degraded = analysis.Degraded
	return result, nil
}
