package dto

import (
	"time"

	"pivotpath.io/engine/internal/model"
)

type SubmitAnalysisRequest struct {
	SourceRole  string   `json:"source_role" binding:"required"`
	TargetRole  string   `json:"target_role" binding:"required"`
	KnownSkills []string `json:"known_skills,omitempty"`
}

type SubmitAnalysisResponse struct {
	AnalysisID int64  `json:"analysis_id"`
	Status     string `json:"status"`
}

type AnalysisResponse struct {
	AnalysisID  int64      `json:"analysis_id"`
	SourceRole  string     `json:"source_role"`
	TargetRole  string     `json:"target_role"`
	KnownSkills []string   `json:"known_skills,omitempty"`
	Status      string     `json:"status"`
	Degraded    bool       `json:"degraded"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func FromAnalysis(a *model.Analysis) AnalysisResponse {
	return AnalysisResponse{
		AnalysisID:  a.ID,
		SourceRole:  a.SourceRole,
		TargetRole:  a.TargetRole,
		KnownSkills: a.KnownSkills,
		Status:      string(a.Status),
		Degraded:    a.Degraded,
		CreatedAt:   a.CreatedAt,
		StartedAt:   a.StartedAt,
		CompletedAt: a.CompletedAt,
	}
}

type AnalysisResultResponse struct {
	AnalysisID int64            `json:"analysis_id"`
	SkillGaps  []model.SkillGap `json:"skill_gaps"`
	Insight    *model.Insight   `json:"insight,omitempty"`
	Plan       *model.Plan      `json:"plan,omitempty"`
	Degraded   bool             `json:"degraded"`
}

func FromResult(r *model.AnalysisResult) AnalysisResultResponse {
	return AnalysisResultResponse{
		AnalysisID: r.AnalysisID,
		SkillGaps:  r.SkillGaps,
		Insight:    r.Insight,
		Plan:       r.Plan,
		Degraded:   r.Degraded,
	}
}
