package engine

import "strings"

// Stage is one phase of the analysis pipeline.
type Stage string

const (
	StageInit          Stage = "init"
	StageResearch      Stage = "research"
	StageSkillAnalysis Stage = "skill_analysis"
	StageInsight       Stage = "insight"
	StagePlanning      Stage = "planning"
	StageComplete      Stage = "complete"
)

// stageOrder is the default linear progression.
var stageOrder = []Stage{
	StageInit,
	StageResearch,
	StageSkillAnalysis,
	StageInsight,
	StagePlanning,
	StageComplete,
}

// Next returns the stage that follows s in the default order.
// Complete is terminal.
func (s Stage) Next() Stage {
	for i, stage := range stageOrder {
		if stage == s && i+1 < len(stageOrder) {
			return stageOrder[i+1]
		}
	}
	return StageComplete
}

// RoutingHint is an explicit routing signal classified from the latest
// assistant message. Keeping classification separate from the transition
// logic keeps the state machine testable independent of model wording.
type RoutingHint string

const (
	HintNone          RoutingHint = ""
	HintResearch      RoutingHint = "research"
	HintSkillAnalysis RoutingHint = "skill_analysis"
	HintInsight       RoutingHint = "insight"
	HintPlanning      RoutingHint = "planning"
)

// hintKeywords maps case-insensitive substrings to routing hints.
// Later stages are listed first so "ready for planning" in a research
// summary routes forward rather than matching the current stage name.
var hintKeywords = []struct {
	keyword string
	hint    RoutingHint
}{
	{"ready for planning", HintPlanning},
	{"planning", HintPlanning},
	{"milestone", HintPlanning},
	{"roadmap", HintPlanning},
	{"insight", HintInsight},
	{"key observation", HintInsight},
	{"skill gap", HintSkillAnalysis},
	{"skill analysis", HintSkillAnalysis},
	{"gap analysis", HintSkillAnalysis},
	{"research", HintResearch},
	{"more evidence", HintResearch},
}

// ClassifyHint scans assistant output for an explicit routing signal.
func ClassifyHint(content string) RoutingHint {
	lower := strings.ToLower(content)
	for _, entry := range hintKeywords {
		if strings.Contains(lower, entry.keyword) {
			return entry.hint
		}
	}
	return HintNone
}

// hintStage maps a routing hint onto its target stage.
func (h RoutingHint) stage() (Stage, bool) {
	switch h {
	case HintResearch:
		return StageResearch, true
	case HintSkillAnalysis:
		return StageSkillAnalysis, true
	case HintInsight:
		return StageInsight, true
	case HintPlanning:
		return StagePlanning, true
	default:
		return "", false
	}
}
