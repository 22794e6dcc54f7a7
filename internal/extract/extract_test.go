package extract

import (
	"reflect"
	"testing"

	"pivotpath.io/engine/internal/model"
)

func TestSkillGaps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		raw    string
		want   []model.SkillGap
		wantOK bool
	}{
		{
			name:   "empty input",
			raw:    "",
			wantOK: false,
		},
		{
			name:   "plain prose",
			raw:    "The transition looks feasible but data is thin.",
			wantOK: false,
		},
		{
			name: "direct JSON array",
			raw:  `[{"skillName":"Stakeholder management","gapLevel":"high","confidenceScore":80,"mentionCount":4,"contextSummary":"Mentioned in most stories"}]`,
			want: []model.SkillGap{{
				SkillName:       "Stakeholder management",
				GapLevel:        model.GapLevelHigh,
				ConfidenceScore: 80,
				MentionCount:    4,
				ContextSummary:  "Mentioned in most stories",
			}},
			wantOK: true,
		},
		{
			name: "fenced block surrounded by prose",
			raw: "Here is my analysis:\n```json\n" +
				`[{"skillName":"Roadmapping","gapLevel":"medium","confidenceScore":70,"mentionCount":2,"contextSummary":"ctx"}]` +
				"\n```\nLet me know if you need more.",
			want: []model.SkillGap{{
				SkillName:       "Roadmapping",
				GapLevel:        model.GapLevelMedium,
				ConfidenceScore: 70,
				MentionCount:    2,
				ContextSummary:  "ctx",
			}},
			wantOK: true,
		},
		{
			name: "envelope object with synonym field names",
			raw:  `{"gaps":[{"skill":"User research","level":"critical","confidence":150,"mentions":-1,"summary":"s"}]}`,
			want: []model.SkillGap{{
				SkillName:       "User research",
				GapLevel:        model.GapLevelHigh,
				ConfidenceScore: 100,
				MentionCount:    0,
				ContextSummary:  "s",
			}},
			wantOK: true,
		},
		{
			name:   "entries without a skill name are dropped",
			raw:    `[{"skillName":"","gapLevel":"low"},{"gapLevel":"high"}]`,
			wantOK: false,
		},
		{
			name: "balanced span inside prose with trailing comma",
			raw:  `I would summarise it as {"skillGaps":[{"skillName":"SQL","gapLevel":"low","confidenceScore":55,"mentionCount":1,"contextSummary":"c",}]} overall.`,
			want: []model.SkillGap{{
				SkillName:       "SQL",
				GapLevel:        model.GapLevelLow,
				ConfidenceScore: 55,
				MentionCount:    1,
				ContextSummary:  "c",
			}},
			wantOK: true,
		},
		{
			name: "empty object in prose does not mask a fenced block",
			raw: "Summary of findings: {} \n```json\n" +
				`[{"skillName":"Roadmapping","gapLevel":"medium","confidenceScore":70,"mentionCount":2,"contextSummary":"ctx"}]` +
				"\n```",
			want: []model.SkillGap{{
				SkillName:       "Roadmapping",
				GapLevel:        model.GapLevelMedium,
				ConfidenceScore: 70,
				MentionCount:    2,
				ContextSummary:  "ctx",
			}},
			wantOK: true,
		},
		{
			name: "quoted brace fragment ahead of the payload",
			raw: `I treated "{gaps}" as a template. ` +
				`{"gaps":[{"skill":"SQL","level":"low","confidence":55,"mentions":1,"summary":"c"}]}`,
			want: []model.SkillGap{{
				SkillName:       "SQL",
				GapLevel:        model.GapLevelLow,
				ConfidenceScore: 55,
				MentionCount:    1,
				ContextSummary:  "c",
			}},
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := SkillGaps(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("SkillGaps() ok = %v, want %v", ok, tt.wantOK)
			}
			if tt.wantOK && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SkillGaps() = %+v, want %+v", got, tt.want)
			}

			// extraction is a pure function
			again, okAgain := SkillGaps(tt.raw)
			if okAgain != ok || !reflect.DeepEqual(again, got) {
				t.Errorf("SkillGaps() is not idempotent")
			}
		})
	}
}

func TestInsight(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		raw    string
		want   *model.Insight
		wantOK bool
	}{
		{
			name:   "prose only",
			raw:    "Most people succeed within a year.",
			wantOK: false,
		},
		{
			name: "canonical fields",
			raw:  `{"keyObservations":["PM roles value communication"],"commonChallenges":["Imposter syndrome"],"successRate":65,"timeframe":"6-12 months"}`,
			want: &model.Insight{
				KeyObservations:  []string{"PM roles value communication"},
				CommonChallenges: []string{"Imposter syndrome"},
				SuccessRate:      intPtr(65),
				Timeframe:        strPtr("6-12 months"),
			},
			wantOK: true,
		},
		{
			name: "synonyms and out-of-range success rate",
			raw:  `{"observations":["a"],"challenges":["b"],"success_rate":120,"timeline":"1 year"}`,
			want: &model.Insight{
				KeyObservations:  []string{"a"},
				CommonChallenges: []string{"b"},
				SuccessRate:      intPtr(100),
				Timeframe:        strPtr("1 year"),
			},
			wantOK: true,
		},
		{
			name: "optional fields may be absent",
			raw:  `{"keyObservations":["a"]}`,
			want: &model.Insight{
				KeyObservations: []string{"a"},
			},
			wantOK: true,
		},
		{
			name:   "object with no usable fields",
			raw:    `{"irrelevant":true}`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := Insight(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("Insight() ok = %v, want %v", ok, tt.wantOK)
			}
			if tt.wantOK && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Insight() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPlan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		raw       string
		wantOrder []int
		wantOK    bool
	}{
		{
			name:   "prose only",
			raw:    "Start with a course, then build a portfolio.",
			wantOK: false,
		},
		{
			name: "gapped order values renumbered to contiguous sequence",
			raw: `{"milestones":[` +
				`{"title":"Learn fundamentals","order":2,"durationWeeks":4},` +
				`{"title":"Build portfolio","order":7,"durationWeeks":6},` +
				`{"title":"Interview prep","order":4,"durationWeeks":2}]}`,
			wantOrder: []int{1, 2, 3},
			wantOK:    true,
		},
		{
			name: "missing order falls back to input position",
			raw: `{"steps":[` +
				`{"name":"First","duration_weeks":1},` +
				`{"name":"Second","duration_weeks":2}]}`,
			wantOrder: []int{1, 2},
			wantOK:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := Plan(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("Plan() ok = %v, want %v", ok, tt.wantOK)
			}
			if !tt.wantOK {
				return
			}

			var orders []int
			for _, m := range got.Milestones {
				orders = append(orders, m.Order)
				if m.DurationWeeks < 1 {
					t.Errorf("milestone %q has non-positive duration", m.Title)
				}
			}
			if !reflect.DeepEqual(orders, tt.wantOrder) {
				t.Errorf("milestone orders = %v, want %v", orders, tt.wantOrder)
			}
		})
	}
}

func TestPlanRenumberPreservesRelativeOrder(t *testing.T) {
	t.Parallel()

	raw := `{"milestones":[` +
		`{"title":"B","order":5},` +
		`{"title":"A","order":1},` +
		`{"title":"C","order":9}]}`

	plan, ok := Plan(raw)
	if !ok {
		t.Fatal("Plan() returned no data")
	}

	titles := []string{plan.Milestones[0].Title, plan.Milestones[1].Title, plan.Milestones[2].Title}
	want := []string{"A", "B", "C"}
	if !reflect.DeepEqual(titles, want) {
		t.Errorf("milestone titles = %v, want %v", titles, want)
	}
}

func TestBalancedSpans(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"object in prose", `before {"a":1} after`, []string{`{"a":1}`}},
		{"array in prose", `before [1,2] after`, []string{`[1,2]`}},
		{"nested braces", `{"a":{"b":2}}`, []string{`{"a":{"b":2}}`}},
		{"brace inside string ignored", `{"a":"}"}`, []string{`{"a":"}"}`}},
		{"successive spans all returned", `{} then {"a":1}`, []string{`{}`, `{"a":1}`}},
		{"unbalanced opener skipped", `{"a":1 ... {"b":2}`, []string{`{"b":2}`}},
		{"unbalanced returns nothing", `{"a":1`, nil},
		{"no json", "just words", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := balancedSpans(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("balancedSpans(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trailing comma in object", `{"a":1,}`, `{"a":1}`},
		{"line comment stripped", "{\"a\":1 // note\n}", "{\"a\":1\n}"},
		{"url in string survives", `{"url":"http://x.com"}`, `{"url":"http://x.com"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := cleanJSON(tt.in); got != tt.want {
				t.Errorf("cleanJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }
