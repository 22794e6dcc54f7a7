package engine

import (
	"fmt"
	"strings"

	"pivotpath.io/engine/common/llm"
	"pivotpath.io/engine/internal/model"
)

// SharedState is the single mutable object threaded through a run.
// The Orchestrator is its sole mutator; workers and the extractor see a
// value copy and return deltas.
type SharedState struct {
	Request       model.AnalysisRequest
	Conversation  []llm.Message
	Stage         Stage
	Evidence      []model.Document
	SkillGaps     []model.SkillGap
	Insight       *model.Insight
	Plan          *model.Plan
	StageAttempts map[Stage]int
}

// NewSharedState seeds the conversation with the assistant role
// description and the user's transition request.
func NewSharedState(req model.AnalysisRequest) *SharedState {
	return &SharedState{
		Request: req,
		Stage:   StageInit,
		Conversation: []llm.Message{
			{Role: "system", Content: baseSystemPrompt},
			{Role: "user", Content: fmt.Sprintf(
				"I want to transition from %s to %s. My current skills: %s.",
				req.SourceRole, req.TargetRole, joinOr(req.KnownSkills, "none listed"))},
		},
		StageAttempts: make(map[Stage]int),
	}
}

// SetStage moves the stage pointer and replaces the system message with
// the new stage's role description. The conversation always holds exactly
// one system message, at index 0.
func (s *SharedState) SetStage(stage Stage, systemPrompt string) {
	s.Stage = stage
	if len(s.Conversation) > 0 && s.Conversation[0].Role == "system" {
		s.Conversation[0].Content = systemPrompt
		return
	}
	s.Conversation = append([]llm.Message{{Role: "system", Content: systemPrompt}}, s.Conversation...)
}

// Append adds a message to the shared conversation.
func (s *SharedState) Append(msg llm.Message) {
	s.Conversation = append(s.Conversation, msg)
}

// LatestAssistant returns the content of the most recent assistant message.
func (s *SharedState) LatestAssistant() string {
	for i := len(s.Conversation) - 1; i >= 0; i-- {
		if s.Conversation[i].Role == "assistant" {
			return s.Conversation[i].Content
		}
	}
	return ""
}

// Window returns the system message plus the last n non-system messages.
// Full history is not resent every stage; this bounds prompt size at the
// cost of strict continuity.
func (s *SharedState) Window(n int) []llm.Message {
	var system []llm.Message
	var rest []llm.Message
	for _, msg := range s.Conversation {
		if msg.Role == "system" {
			system = append(system, msg)
			continue
		}
		rest = append(rest, msg)
	}
	if len(rest) > n {
		rest = rest[len(rest)-n:]
	}
	return append(system, rest...)
}

// satisfied reports whether the stage's own data is already populated.
func (s *SharedState) satisfied(stage Stage) bool {
	switch stage {
	case StageResearch:
		return len(s.Evidence) > 0
	case StageSkillAnalysis:
		return len(s.SkillGaps) > 0
	case StageInsight:
		return s.Insight != nil
	case StagePlanning:
		return s.Plan != nil
	default:
		return true
	}
}

// prerequisitesMet reports whether a stage may be entered via hint
// routing. Forced advancement bypasses this check.
func (s *SharedState) prerequisitesMet(stage Stage) bool {
	switch stage {
	case StageSkillAnalysis:
		return len(s.Evidence) > 0
	case StageInsight:
		return len(s.SkillGaps) > 0
	case StagePlanning:
		return s.Insight != nil
	default:
		return true
	}
}

// complete is the completion predicate: every pipeline artifact exists.
func (s *SharedState) complete() bool {
	return len(s.Evidence) > 0 &&
		len(s.SkillGaps) > 0 &&
		s.Insight != nil &&
		s.Plan != nil
}

// Delta is a partial update to shared state returned by a step. The
// zero value means "no data extracted", a normal outcome.
type Delta struct {
	Evidence  []model.Document
	SkillGaps []model.SkillGap
	Insight   *model.Insight
	Plan      *model.Plan
}

// Empty reports whether the delta carries no data.
func (d Delta) Empty() bool {
	return len(d.Evidence) == 0 &&
		len(d.SkillGaps) == 0 &&
		d.Insight == nil &&
		d.Plan == nil
}

// merge folds a delta into shared state. Evidence accumulates, skill
// gaps merge by skill name (newer wins), insight and plan are
// overwritten, not appended.
func (s *SharedState) merge(d Delta) {
	s.Evidence = append(s.Evidence, d.Evidence...)
	for _, gap := range d.SkillGaps {
		s.mergeGap(gap)
	}
	if d.Insight != nil {
		s.Insight = d.Insight
	}
	if d.Plan != nil {
		s.Plan = d.Plan
	}
}

func (s *SharedState) mergeGap(gap model.SkillGap) {
	for i, existing := range s.SkillGaps {
		if strings.EqualFold(existing.SkillName, gap.SkillName) {
			s.SkillGaps[i] = gap
			return
		}
	}
	s.SkillGaps = append(s.SkillGaps, gap)
}

func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	out := items[0]
	for _, item := range items[1:] {
		out += ", " + item
	}
	return out
}
