package extract

import (
	"sort"
	"strconv"
	"strings"

	"pivotpath.io/engine/internal/model"
)

// SkillGaps extracts a list of skill gaps from raw model output.
// The bool result is false when nothing extractable was found.
func SkillGaps(raw string) ([]model.SkillGap, bool) {
	for _, v := range decodeAll(raw) {
		if gaps := skillGapsFrom(v); len(gaps) > 0 {
			return gaps, true
		}
	}
	return nil, false
}

func skillGapsFrom(v any) []model.SkillGap {
	items := asList(v, "skillGaps", "skill_gaps", "gaps", "skills")
	var gaps []model.SkillGap
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}

		gap := model.SkillGap{
			SkillName:       stringField(obj, "skillName", "skill_name", "skill", "name"),
			GapLevel:        gapLevel(stringField(obj, "gapLevel", "gap_level", "level", "severity")),
			ConfidenceScore: clamp(intField(obj, "confidenceScore", "confidence_score", "confidence"), 0, 100),
			MentionCount:    max(0, intField(obj, "mentionCount", "mention_count", "mentions")),
			ContextSummary:  stringField(obj, "contextSummary", "context_summary", "context", "summary"),
		}

		// A gap without a skill name is unusable
		if gap.SkillName == "" {
			continue
		}
		gaps = append(gaps, gap)
	}

	return gaps
}

// Insight extracts an insight object from raw model output.
func Insight(raw string) (*model.Insight, bool) {
	for _, v := range decodeAll(raw) {
		if insight := insightFrom(v); insight != nil {
			return insight, true
		}
	}
	return nil, false
}

func insightFrom(v any) *model.Insight {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	if inner, ok := obj["insight"].(map[string]any); ok {
		obj = inner
	}

	insight := &model.Insight{
		KeyObservations:  stringSliceField(obj, "keyObservations", "key_observations", "observations"),
		CommonChallenges: stringSliceField(obj, "commonChallenges", "common_challenges", "challenges"),
	}

	if n, ok := optionalIntField(obj, "successRate", "success_rate"); ok {
		rate := clamp(n, 0, 100)
		insight.SuccessRate = &rate
	}
	if s := stringField(obj, "timeframe", "time_frame", "timeline"); s != "" {
		insight.Timeframe = &s
	}

	if len(insight.KeyObservations) == 0 && len(insight.CommonChallenges) == 0 {
		return nil
	}
	return insight
}

// Plan extracts a milestone plan from raw model output. Milestone order
// values are renumbered to a contiguous 1..N sequence, preserving the
// relative order the model gave them.
func Plan(raw string) (*model.Plan, bool) {
	for _, v := range decodeAll(raw) {
		if plan := planFrom(v); plan != nil {
			return plan, true
		}
	}
	return nil, false
}

func planFrom(v any) *model.Plan {
	items := asList(v, "milestones", "plan", "steps", "phases")
	var milestones []model.Milestone
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}

		m := model.Milestone{
			Title:         stringField(obj, "title", "name"),
			Description:   stringField(obj, "description", "details", "summary"),
			Priority:      priority(stringField(obj, "priority")),
			DurationWeeks: max(1, intField(obj, "durationWeeks", "duration_weeks", "weeks", "duration")),
			Order:         intField(obj, "order", "position", "step"),
			Resources:     resources(obj),
		}
		if m.Order == 0 {
			m.Order = i + 1
		}

		if m.Title == "" {
			continue
		}
		milestones = append(milestones, m)
	}

	if len(milestones) == 0 {
		return nil
	}

	sort.SliceStable(milestones, func(i, j int) bool {
		return milestones[i].Order < milestones[j].Order
	})
	for i := range milestones {
		milestones[i].Order = i + 1
	}

	return &model.Plan{Milestones: milestones}
}

func resources(obj map[string]any) []model.Resource {
	raw, ok := obj["resources"].([]any)
	if !ok {
		return nil
	}

	var out []model.Resource
	for _, item := range raw {
		r, ok := item.(map[string]any)
		if !ok {
			continue
		}
		res := model.Resource{
			Title: stringField(r, "title", "name"),
			URL:   stringField(r, "url", "link"),
			Kind:  stringField(r, "kind", "type", "category"),
		}
		if res.Title == "" && res.URL == "" {
			continue
		}
		out = append(out, res)
	}
	return out
}

// asList interprets v as a list, unwrapping a single-key envelope object
// (e.g. {"skillGaps": [...]}) via the given synonym keys.
func asList(v any, keys ...string) []any {
	if list, ok := v.([]any); ok {
		return list
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	for _, key := range keys {
		if list, ok := obj[key].([]any); ok {
			return list
		}
	}
	return nil
}

func stringField(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := obj[key].(string); ok {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func intField(obj map[string]any, keys ...string) int {
	n, _ := optionalIntField(obj, keys...)
	return n
}

func optionalIntField(obj map[string]any, keys ...string) (int, bool) {
	for _, key := range keys {
		switch n := obj[key].(type) {
		case float64:
			return int(n), true
		case string:
			if i, err := parseLeadingInt(n); err == nil {
				return i, true
			}
		}
	}
	return 0, false
}

func stringSliceField(obj map[string]any, keys ...string) []string {
	for _, key := range keys {
		list, ok := obj[key].([]any)
		if !ok {
			continue
		}
		var out []string
		for _, item := range list {
			if s, ok := item.(string); ok {
				if trimmed := strings.TrimSpace(s); trimmed != "" {
					out = append(out, trimmed)
				}
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// gapLevel normalizes free-form severity wording onto the three levels.
func gapLevel(s string) model.GapLevel {
	switch strings.ToLower(s) {
	case "low", "minor", "small":
		return model.GapLevelLow
	case "high", "critical", "severe", "major":
		return model.GapLevelHigh
	default:
		return model.GapLevelMedium
	}
}

func priority(s string) model.Priority {
	switch strings.ToLower(s) {
	case "low":
		return model.PriorityLow
	case "high", "critical":
		return model.PriorityHigh
	default:
		return model.PriorityMedium
	}
}

// parseLeadingInt reads the integer prefix of strings like "85%" or "6 weeks".
func parseLeadingInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	return strconv.Atoi(s[:end])
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
