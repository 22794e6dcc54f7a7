package model

import "time"

type AnalysisStatus string

const (
	AnalysisStatusQueued   AnalysisStatus = "queued"
	AnalysisStatusRunning  AnalysisStatus = "running"
	AnalysisStatusComplete AnalysisStatus = "complete"
	AnalysisStatusFailed   AnalysisStatus = "failed"
)

// Analysis is the run record for one career-transition analysis.
type Analysis struct {
	ID          int64          `json:"id"`
	SourceRole  string         `json:"source_role"`
	TargetRole  string         `json:"target_role"`
	KnownSkills []string       `json:"known_skills"`
	Status      AnalysisStatus `json:"status"`
	Degraded    bool           `json:"degraded"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// AnalysisRequest is the immutable input to one orchestration run.
type AnalysisRequest struct {
	AnalysisID  int64    `json:"analysis_id"`
	SourceRole  string   `json:"source_role"`
	TargetRole  string   `json:"target_role"`
	KnownSkills []string `json:"known_skills"`
}

// Document is one piece of search evidence (title, body, url).
type Document struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

type GapLevel string

const (
	GapLevelLow    GapLevel = "low"
	GapLevelMedium GapLevel = "medium"
	GapLevelHigh   GapLevel = "high"
)

type SkillGap struct {
	SkillName       string   `json:"skillName"`
	GapLevel        GapLevel `json:"gapLevel"`
	ConfidenceScore int      `json:"confidenceScore"` // 0-100
	MentionCount    int      `json:"mentionCount"`
	ContextSummary  string   `json:"contextSummary"`
}

type Insight struct {
	KeyObservations  []string `json:"keyObservations"`
	CommonChallenges []string `json:"commonChallenges"`
	SuccessRate      *int     `json:"successRate,omitempty"` // 0-100
	Timeframe        *string  `json:"timeframe,omitempty"`
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type Resource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Kind  string `json:"kind"`
}

type Milestone struct {
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Priority      Priority   `json:"priority"`
	DurationWeeks int        `json:"durationWeeks"` // > 0
	Order         int        `json:"order"`         // 1-based, contiguous
	Resources     []Resource `json:"resources"`
}

// Plan milestones are persisted as a unit with their resources.
type Plan struct {
	Milestones []Milestone `json:"milestones"`
}

// AnalysisResult is what a run returns to its caller. Degraded is true
// only when the step cap forced completion before the pipeline finished.
type AnalysisResult struct {
	AnalysisID int64      `json:"analysis_id"`
	SkillGaps  []SkillGap `json:"skill_gaps"`
	Insight    *Insight   `json:"insight,omitempty"`
	Plan       *Plan      `json:"plan,omitempty"`
	Degraded   bool       `json:"degraded"`
}
