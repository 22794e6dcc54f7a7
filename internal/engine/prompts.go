package engine

import (
	"fmt"
	"strings"

	"pivotpath.io/engine/internal/model"
)

const baseSystemPrompt = `You are a career-transition analyst. You help people move between roles by researching real transition stories, identifying skill gaps, extracting insights, and building actionable plans. Always answer with a single JSON payload matching the requested shape.`

var stageSystemPrompts = map[Stage]string{
	StageResearch:      `You are a career-transition researcher. You gather real-world evidence about role transitions: stories, articles, and firsthand accounts. Use the search_evidence tool when you need source material. Summarize what the evidence says and call out any skill gaps you notice as JSON.`,
	StageSkillAnalysis: `You are a skill-gap analyst. Given evidence about a career transition, identify the concrete skills the candidate is missing. Respond with a JSON array of skill gaps: skillName, gapLevel (low/medium/high), confidenceScore (0-100), mentionCount, contextSummary.`,
	StageInsight:       `You are an insight synthesizer. Distill evidence and skill gaps into the patterns that matter. Respond with a JSON object: keyObservations (array), commonChallenges (array), successRate (0-100, optional), timeframe (optional).`,
	StagePlanning:      `You are a transition planner. Turn skill gaps and insights into an ordered milestone plan. Respond with a JSON object containing milestones: title, description, priority (low/medium/high), durationWeeks (>0), order (1-based), resources (title, url, kind). Use the search_evidence tool if you need resource links.`,
}

// systemPromptFor returns the role description installed as the single
// system message when a stage is entered.
func systemPromptFor(stage Stage) string {
	if prompt, ok := stageSystemPrompts[stage]; ok {
		return prompt
	}
	return baseSystemPrompt
}

// Each instruction block embeds only the state relevant to its stage,
// which bounds prompt size and avoids resending raw evidence once it
// has been summarized.

func researchInstruction(state SharedState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research the transition from %s to %s.\n",
		state.Request.SourceRole, state.Request.TargetRole)
	if len(state.Request.KnownSkills) > 0 {
		fmt.Fprintf(&b, "The candidate already has: %s.\n", strings.Join(state.Request.KnownSkills, ", "))
	}
	if len(state.Evidence) > 0 {
		b.WriteString("\nEvidence gathered so far:\n")
		b.WriteString(formatEvidence(state.Evidence))
		b.WriteString("\nSummarize the evidence and list any skill gaps it suggests as a JSON array.")
	} else {
		b.WriteString("\nFind firsthand transition stories and summarize what they say about required skills. Use search_evidence if needed.")
	}
	return b.String()
}

func skillAnalysisInstruction(state SharedState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Identify skill gaps for a %s moving to %s.\n",
		state.Request.SourceRole, state.Request.TargetRole)
	if len(state.Request.KnownSkills) > 0 {
		fmt.Fprintf(&b, "Skills already held (not gaps): %s.\n", strings.Join(state.Request.KnownSkills, ", "))
	}
	b.WriteString("\nEvidence:\n")
	b.WriteString(formatEvidence(state.Evidence))
	b.WriteString("\nRespond with a JSON array of skill gaps.")
	return b.String()
}

func insightInstruction(state SharedState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Extract insights about transitioning from %s to %s.\n",
		state.Request.SourceRole, state.Request.TargetRole)
	b.WriteString("\nIdentified skill gaps:\n")
	b.WriteString(formatGaps(state.SkillGaps))
	if len(state.Evidence) > 0 {
		fmt.Fprintf(&b, "\nEvidence set: %d documents were reviewed.\n", len(state.Evidence))
	}
	b.WriteString("\nRespond with a JSON insight object (keyObservations, commonChallenges, successRate, timeframe).")
	return b.String()
}

func planningInstruction(state SharedState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Build a milestone plan for moving from %s to %s.\n",
		state.Request.SourceRole, state.Request.TargetRole)
	b.WriteString("\nSkill gaps to close:\n")
	b.WriteString(formatGaps(state.SkillGaps))
	if state.Insight != nil {
		b.WriteString("\nInsights:\n")
		for _, obs := range state.Insight.KeyObservations {
			fmt.Fprintf(&b, "- %s\n", obs)
		}
		for _, ch := range state.Insight.CommonChallenges {
			fmt.Fprintf(&b, "- Challenge: %s\n", ch)
		}
		if state.Insight.Timeframe != nil {
			fmt.Fprintf(&b, "- Typical timeframe: %s\n", *state.Insight.Timeframe)
		}
	}
	b.WriteString("\nRespond with a JSON plan object with ordered milestones and resources.")
	return b.String()
}

func formatEvidence(docs []model.Document) string {
	if len(docs) == 0 {
		return "(none yet)\n"
	}
	var b strings.Builder
	for i, doc := range docs {
		fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n", i+1, doc.Title, doc.Body, doc.URL)
	}
	return b.String()
}

func formatGaps(gaps []model.SkillGap) string {
	if len(gaps) == 0 {
		return "(none identified)\n"
	}
	var b strings.Builder
	for _, gap := range gaps {
		fmt.Fprintf(&b, "- %s (gap: %s, confidence: %d): %s\n",
			gap.SkillName, gap.GapLevel, gap.ConfidenceScore, gap.ContextSummary)
	}
	return b.String()
}
