package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pivotpath.io/engine/internal/model"
	"pivotpath.io/engine/internal/queue"
	"pivotpath.io/engine/internal/service"
	"pivotpath.io/engine/internal/store"
)

var _ = Describe("AnalysisService", func() {
	var (
		analysisStore *mockAnalysisStore
		producer      *mockProducer
		svc           service.AnalysisService
	)

	BeforeEach(func() {
		analysisStore = &mockAnalysisStore{}
		producer = &mockProducer{}
		svc = service.NewAnalysisService(analysisStore, producer, nil)
	})

	Describe("Submit", func() {
		It("creates a queued record and enqueues a task", func() {
			analysis, err := svc.Submit(context.Background(), service.SubmitAnalysisParams{
				SourceRole:  "Backend Engineer",
				TargetRole:  "Product Manager",
				KnownSkills: []string{"Go"},
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(analysis.ID).NotTo(BeZero())
			Expect(analysis.Status).To(Equal(model.AnalysisStatusQueued))
			Expect(producer.enqueued).To(HaveLen(1))
			Expect(producer.enqueued[0].AnalysisID).To(Equal(analysis.ID))
			Expect(producer.enqueued[0].KnownSkills).To(Equal([]string{"Go"}))
		})

		It("rejects a missing role", func() {
			_, err := svc.Submit(context.Background(), service.SubmitAnalysisParams{
				SourceRole: "Backend Engineer",
			})
			Expect(err).To(HaveOccurred())
			Expect(analysisStore.createCalls).To(BeZero())
			Expect(producer.enqueueCalls).To(BeZero())
		})

		It("does not enqueue when the record cannot be created", func() {
			analysisStore.createFn = func(ctx context.Context, analysis *model.Analysis) error {
				return errors.New("db down")
			}

			_, err := svc.Submit(context.Background(), service.SubmitAnalysisParams{
				SourceRole: "Backend Engineer",
				TargetRole: "Product Manager",
			})
			Expect(err).To(MatchError(ContainSubstring("db down")))
			Expect(producer.enqueueCalls).To(BeZero())
		})

		It("marks the record failed when enqueueing fails", func() {
			producer.enqueueFn = func(ctx context.Context, task queue.Task) error {
				return errors.New("redis down")
			}

			_, err := svc.Submit(context.Background(), service.SubmitAnalysisParams{
				SourceRole: "Backend Engineer",
				TargetRole: "Product Manager",
			})
			Expect(err).To(MatchError(ContainSubstring("redis down")))
			Expect(analysisStore.markFailCalls).To(Equal(1))
		})
	})

	Describe("Get", func() {
		It("maps a missing record to ErrAnalysisNotFound", func() {
			analysisStore.getFn = func(ctx context.Context, id int64) (*model.Analysis, error) {
				return nil, store.ErrNotFound
			}

			_, err := svc.Get(context.Background(), 42)
			Expect(err).To(MatchError(service.ErrAnalysisNotFound))
		})
	})

	Describe("Result", func() {
		It("refuses to assemble a result for an unfinished run", func() {
			analysisStore.getFn = func(ctx context.Context, id int64) (*model.Analysis, error) {
				return &model.Analysis{ID: id, Status: model.AnalysisStatusRunning}, nil
			}

			_, err := svc.Result(context.Background(), 42)
			Expect(err).To(MatchError(service.ErrResultNotReady))
		})

		It("carries the run record's degraded flag onto the result", func() {
			analysisStore.getFn = func(ctx context.Context, id int64) (*model.Analysis, error) {
				return &model.Analysis{ID: id, Status: model.AnalysisStatusComplete, Degraded: true}, nil
			}

			result, err := svc.Result(context.Background(), 42)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Degraded).To(BeTrue())
		})
	})
})
