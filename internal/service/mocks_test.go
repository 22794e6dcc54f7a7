package service_test

import (
	"context"

	"pivotpath.io/engine/internal/model"
	"pivotpath.io/engine/internal/queue"
)

type mockAnalysisStore struct {
	createFn      func(ctx context.Context, analysis *model.Analysis) error
	getFn         func(ctx context.Context, id int64) (*model.Analysis, error)
	markRunFn     func(ctx context.Context, id int64) error
	markFailFn    func(ctx context.Context, id int64) error
	getResultFn   func(ctx context.Context, id int64) (*model.AnalysisResult, error)
	createCalls   int
	markFailCalls int
}

func (m *mockAnalysisStore) CreateAnalysis(ctx context.Context, analysis *model.Analysis) error {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, analysis)
	}
	return nil
}

func (m *mockAnalysisStore) GetAnalysis(ctx context.Context, id int64) (*model.Analysis, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return &model.Analysis{ID: id, Status: model.AnalysisStatusQueued}, nil
}

func (m *mockAnalysisStore) MarkRunning(ctx context.Context, id int64) error {
	if m.markRunFn != nil {
		return m.markRunFn(ctx, id)
	}
	return nil
}

func (m *mockAnalysisStore) MarkFailed(ctx context.Context, id int64) error {
	m.markFailCalls++
	if m.markFailFn != nil {
		return m.markFailFn(ctx, id)
	}
	return nil
}

func (m *mockAnalysisStore) GetResult(ctx context.Context, id int64) (*model.AnalysisResult, error) {
	if m.getResultFn != nil {
		return m.getResultFn(ctx, id)
	}
	return &model.AnalysisResult{AnalysisID: id}, nil
}

type mockProducer struct {
	enqueueFn    func(ctx context.Context, task queue.Task) error
	enqueued     []queue.Task
	enqueueCalls int
}

func (m *mockProducer) Enqueue(ctx context.Context, task queue.Task) error {
	m.enqueueCalls++
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, task)
	}
	m.enqueued = append(m.enqueued, task)
	return nil
}

func (m *mockProducer) Close() error { return nil }
