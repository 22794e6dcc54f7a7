package engine_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pivotpath.io/engine/common/llm"
	"pivotpath.io/engine/common/search"
	"pivotpath.io/engine/internal/engine"
	"pivotpath.io/engine/internal/model"
)

type mockLLM struct {
	chatFn     func(ctx context.Context, req llm.Request) (*llm.Response, error)
	stageCalls map[string]int
}

func newMockLLM(chatFn func(ctx context.Context, req llm.Request) (*llm.Response, error)) *mockLLM {
	return &mockLLM{chatFn: chatFn, stageCalls: make(map[string]int)}
}

func (m *mockLLM) Chat(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.stageCalls[stageOf(req)]++
	if m.chatFn != nil {
		return m.chatFn(ctx, req)
	}
	return &llm.Response{Content: "nothing to add"}, nil
}

func (m *mockLLM) Model() string { return "mock-model" }

// stageOf identifies the stage a request belongs to from its system
// message, so a single chat function can script per-stage behavior.
func stageOf(req llm.Request) string {
	if len(req.Messages) == 0 || req.Messages[0].Role != "system" {
		return "unknown"
	}
	system := req.Messages[0].Content
	switch {
	case strings.Contains(system, "researcher"):
		return "research"
	case strings.Contains(system, "skill-gap analyst"):
		return "skill_analysis"
	case strings.Contains(system, "insight synthesizer"):
		return "insight"
	case strings.Contains(system, "transition planner"):
		return "planning"
	default:
		return "unknown"
	}
}

func hasToolMessage(req llm.Request) bool {
	for _, msg := range req.Messages {
		if msg.Role == "tool" {
			return true
		}
	}
	return false
}

type mockSearch struct {
	searchFn func(ctx context.Context, query string, maxResults int) ([]search.Document, error)
	queries  []string
}

func (m *mockSearch) Search(ctx context.Context, query string, maxResults int) ([]search.Document, error) {
	m.queries = append(m.queries, query)
	if m.searchFn != nil {
		return m.searchFn(ctx, query, maxResults)
	}
	return []search.Document{
		{Title: "From code to roadmaps", Body: "A firsthand account.", URL: "https://example.com/1"},
		{Title: "Switching tracks", Body: "What the move takes.", URL: "https://example.com/2"},
		{Title: "One year later", Body: "A retrospective.", URL: "https://example.com/3"},
	}, nil
}

type mockRepo struct {
	calls []string

	evidence  map[int64][]model.Document
	gaps      map[int64][]model.SkillGap
	insights  map[int64]*model.Insight
	plans     map[int64]*model.Plan
	completed map[int64]bool
	degraded  map[int64]bool

	clearFn        func(ctx context.Context, analysisID int64) error
	saveEvidenceFn func(ctx context.Context, analysisID int64, docs []model.Document) error
	saveGapsFn     func(ctx context.Context, analysisID int64, gaps []model.SkillGap) error
	saveInsightFn  func(ctx context.Context, analysisID int64, insight model.Insight) error
	savePlanFn     func(ctx context.Context, analysisID int64, plan model.Plan) error
	markCompleteFn func(ctx context.Context, analysisID int64, degraded bool) error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		evidence:  make(map[int64][]model.Document),
		gaps:      make(map[int64][]model.SkillGap),
		insights:  make(map[int64]*model.Insight),
		plans:     make(map[int64]*model.Plan),
		completed: make(map[int64]bool),
		degraded:  make(map[int64]bool),
	}
}

func (m *mockRepo) ClearAnalysis(ctx context.Context, analysisID int64) error {
	m.calls = append(m.calls, "ClearAnalysis")
	if m.clearFn != nil {
		return m.clearFn(ctx, analysisID)
	}
	delete(m.evidence, analysisID)
	delete(m.gaps, analysisID)
	delete(m.insights, analysisID)
	delete(m.plans, analysisID)
	delete(m.completed, analysisID)
	delete(m.degraded, analysisID)
	return nil
}

func (m *mockRepo) SaveEvidence(ctx context.Context, analysisID int64, docs []model.Document) error {
	m.calls = append(m.calls, "SaveEvidence")
	if m.saveEvidenceFn != nil {
		return m.saveEvidenceFn(ctx, analysisID, docs)
	}
	m.evidence[analysisID] = append([]model.Document(nil), docs...)
	return nil
}

func (m *mockRepo) SaveSkillGaps(ctx context.Context, analysisID int64, gaps []model.SkillGap) error {
	m.calls = append(m.calls, "SaveSkillGaps")
	if m.saveGapsFn != nil {
		return m.saveGapsFn(ctx, analysisID, gaps)
	}
	m.gaps[analysisID] = append([]model.SkillGap(nil), gaps...)
	return nil
}

func (m *mockRepo) SaveInsight(ctx context.Context, analysisID int64, insight model.Insight) error {
	m.calls = append(m.calls, "SaveInsight")
	if m.saveInsightFn != nil {
		return m.saveInsightFn(ctx, analysisID, insight)
	}
	m.insights[analysisID] = &insight
	return nil
}

func (m *mockRepo) SavePlan(ctx context.Context, analysisID int64, plan model.Plan) error {
	m.calls = append(m.calls, "SavePlan")
	if m.savePlanFn != nil {
		return m.savePlanFn(ctx, analysisID, plan)
	}
	m.plans[analysisID] = &plan
	return nil
}

func (m *mockRepo) MarkComplete(ctx context.Context, analysisID int64, degraded bool) error {
	m.calls = append(m.calls, "MarkComplete")
	if m.markCompleteFn != nil {
		return m.markCompleteFn(ctx, analysisID, degraded)
	}
	m.completed[analysisID] = true
	m.degraded[analysisID] = degraded
	return nil
}

const (
	gapsJSON = `[{"skillName":"Roadmapping","gapLevel":"high","confidenceScore":90,` +
		`"mentionCount":3,"contextSummary":"came up in every account"}]`
	insightJSON = `{"keyObservations":["most moves start with an internal transfer"],` +
		`"commonChallenges":["building credibility"],"successRate":70,"timeframe":"12 months"}`
	planJSON = `{"milestones":[{"title":"Ship a product brief","description":"Write and circulate one.",` +
		`"priority":"high","durationWeeks":4,"order":1,` +
		`"resources":[{"title":"Brief templates","url":"https://example.com/t","kind":"article"}]}]}`
)

// wellBehavedChat scripts a model that returns well-formed JSON at
// every stage.
func wellBehavedChat(ctx context.Context, req llm.Request) (*llm.Response, error) {
	switch stageOf(req) {
	case "research":
		return &llm.Response{Content: "Collected firsthand accounts and summarized them."}, nil
	case "skill_analysis":
		return &llm.Response{Content: gapsJSON}, nil
	case "insight":
		return &llm.Response{Content: insightJSON}, nil
	case "planning":
		return &llm.Response{Content: planJSON}, nil
	default:
		return &llm.Response{Content: "unexpected stage"}, nil
	}
}

var _ = Describe("Orchestrator", func() {
	var (
		repo         *mockRepo
		searchClient *mockSearch
		req          model.AnalysisRequest
	)

	BeforeEach(func() {
		repo = newMockRepo()
		searchClient = &mockSearch{}
		req = model.AnalysisRequest{
			AnalysisID: 42,
			SourceRole: "Backend Engineer",
			TargetRole: "Product Manager",
			KnownSkills: []string{
				"Go", "SQL",
			},
		}
	})

	run := func(cfg engine.Config, client llm.Client) (*model.AnalysisResult, error) {
		orch := engine.NewOrchestrator(cfg, client, searchClient, repo)
		return orch.Run(context.Background(), req)
	}

	Describe("a well-behaved model", func() {
		It("walks every stage once and completes non-degraded", func() {
			client := newMockLLM(wellBehavedChat)

			result, err := run(engine.Config{}, client)
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Degraded).To(BeFalse())
			Expect(result.SkillGaps).To(HaveLen(1))
			Expect(result.SkillGaps[0].SkillName).To(Equal("Roadmapping"))
			Expect(result.Insight).NotTo(BeNil())
			Expect(result.Insight.KeyObservations).NotTo(BeEmpty())
			Expect(result.Plan).NotTo(BeNil())
			Expect(len(result.Plan.Milestones)).To(BeNumerically(">=", 1))

			for _, stage := range []string{"research", "skill_analysis", "insight", "planning"} {
				Expect(client.stageCalls[stage]).To(Equal(1), "stage %s", stage)
			}
		})

		It("writes every artifact through to the repository before finishing", func() {
			_, err := run(engine.Config{}, newMockLLM(wellBehavedChat))
			Expect(err).NotTo(HaveOccurred())

			Expect(repo.calls[0]).To(Equal("ClearAnalysis"))
			Expect(repo.calls[len(repo.calls)-1]).To(Equal("MarkComplete"))
			Expect(repo.evidence[req.AnalysisID]).To(HaveLen(3))
			Expect(repo.gaps[req.AnalysisID]).To(HaveLen(1))
			Expect(repo.insights[req.AnalysisID]).NotTo(BeNil())
			Expect(repo.plans[req.AnalysisID]).NotTo(BeNil())
			Expect(repo.completed[req.AnalysisID]).To(BeTrue())
			Expect(repo.degraded[req.AnalysisID]).To(BeFalse())
		})
	})

	Describe("tool round-trips", func() {
		It("executes search_evidence and feeds results back without consuming attempts", func() {
			client := newMockLLM(func(ctx context.Context, req llm.Request) (*llm.Response, error) {
				if stageOf(req) == "skill_analysis" && !hasToolMessage(req) {
					return &llm.Response{ToolCalls: []llm.ToolCall{{
						ID:        "call_1",
						Name:      "search_evidence",
						Arguments: `{"query":"product manager core skills","maxResults":2}`,
					}}}, nil
				}
				return wellBehavedChat(ctx, req)
			})

			result, err := run(engine.Config{AttemptThreshold: 1}, client)
			Expect(err).NotTo(HaveOccurred())

			// The stage still produced data, so a threshold of one
			// no-progress attempt never triggered.
			Expect(result.Degraded).To(BeFalse())
			Expect(result.SkillGaps).To(HaveLen(1))
			Expect(searchClient.queries).To(ContainElement("product manager core skills"))
			Expect(client.stageCalls["skill_analysis"]).To(Equal(2))

			// Fallback research evidence plus the tool round-trip's hits.
			Expect(len(repo.evidence[req.AnalysisID])).To(BeNumerically(">", 3))
		})
	})

	Describe("a stage that never produces parsable output", func() {
		It("is force-advanced after the attempt threshold, still completing non-degraded", func() {
			const threshold = 2

			client := newMockLLM(func(ctx context.Context, req llm.Request) (*llm.Response, error) {
				if stageOf(req) == "skill_analysis" {
					return &llm.Response{Content: "The material is too thin to conclude anything."}, nil
				}
				return wellBehavedChat(ctx, req)
			})

			result, err := run(engine.Config{AttemptThreshold: threshold}, client)
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Degraded).To(BeFalse())
			Expect(result.SkillGaps).To(BeEmpty())
			Expect(result.Insight).NotTo(BeNil())
			Expect(result.Plan).NotTo(BeNil())
			Expect(client.stageCalls["skill_analysis"]).To(Equal(threshold))
		})
	})

	Describe("every collaborator failing", func() {
		It("terminates at the step cap with a degraded, mostly-empty result", func() {
			searchClient.searchFn = func(ctx context.Context, query string, maxResults int) ([]search.Document, error) {
				return nil, errors.New("search unavailable")
			}
			client := newMockLLM(func(ctx context.Context, req llm.Request) (*llm.Response, error) {
				return nil, errors.New("model unavailable")
			})

			result, err := run(engine.Config{MaxSteps: 10}, client)
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Degraded).To(BeTrue())
			Expect(result.SkillGaps).To(BeEmpty())
			Expect(result.Insight).To(BeNil())
			Expect(result.Plan).To(BeNil())
			Expect(repo.completed[req.AnalysisID]).To(BeTrue())
			Expect(repo.degraded[req.AnalysisID]).To(BeTrue())
		})
	})

	Describe("re-running an analysis id", func() {
		It("clears the first run's records before saving anything new", func() {
			client := newMockLLM(wellBehavedChat)

			_, err := run(engine.Config{}, client)
			Expect(err).NotTo(HaveOccurred())

			firstRunCalls := len(repo.calls)

			_, err = run(engine.Config{}, newMockLLM(wellBehavedChat))
			Expect(err).NotTo(HaveOccurred())

			secondRun := repo.calls[firstRunCalls:]
			Expect(secondRun[0]).To(Equal("ClearAnalysis"))

			// No accumulation across runs: the second run's records
			// fully replace the first's.
			Expect(repo.evidence[req.AnalysisID]).To(HaveLen(3))
			Expect(repo.gaps[req.AnalysisID]).To(HaveLen(1))
		})
	})

	Describe("persistence failures", func() {
		It("propagates a clear failure before any stage runs", func() {
			repo.clearFn = func(ctx context.Context, analysisID int64) error {
				return errors.New("db down")
			}
			client := newMockLLM(wellBehavedChat)

			_, err := run(engine.Config{}, client)
			Expect(err).To(MatchError(ContainSubstring("db down")))
			Expect(client.stageCalls).To(BeEmpty())
		})

		It("propagates a save failure mid-run", func() {
			repo.saveGapsFn = func(ctx context.Context, analysisID int64, gaps []model.SkillGap) error {
				return errors.New("db down")
			}

			_, err := run(engine.Config{}, newMockLLM(wellBehavedChat))
			Expect(err).To(MatchError(ContainSubstring("saving skill gaps")))
		})
	})

	Describe("cancellation", func() {
		It("returns a degraded result and still records completion", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			orch := engine.NewOrchestrator(engine.Config{}, newMockLLM(wellBehavedChat), searchClient, repo)
			result, err := orch.Run(ctx, req)
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Degraded).To(BeTrue())
			Expect(repo.completed[req.AnalysisID]).To(BeTrue())
			Expect(repo.degraded[req.AnalysisID]).To(BeTrue())
		})
	})
})
