package store

import (
	"context"
	"errors"

	"pivotpath.io/engine/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Repository is the persistence collaborator the orchestration engine
// writes through. At most one active record set exists per analysis id;
// ClearAnalysis enforces that before a run starts.
type Repository interface {
	ClearAnalysis(ctx context.Context, analysisID int64) error
	SaveEvidence(ctx context.Context, analysisID int64, docs []model.Document) error
	SaveSkillGaps(ctx context.Context, analysisID int64, gaps []model.SkillGap) error
	SaveInsight(ctx context.Context, analysisID int64, insight model.Insight) error
	SavePlan(ctx context.Context, analysisID int64, plan model.Plan) error
	MarkComplete(ctx context.Context, analysisID int64, degraded bool) error
}

// AnalysisStore is the API-facing contract for run records and results.
type AnalysisStore interface {
	CreateAnalysis(ctx context.Context, analysis *model.Analysis) error
	GetAnalysis(ctx context.Context, id int64) (*model.Analysis, error)
	MarkRunning(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64) error
	GetResult(ctx context.Context, id int64) (*model.AnalysisResult, error)
}
