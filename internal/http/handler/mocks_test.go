package handler_test

import (
	"context"

	"pivotpath.io/engine/internal/model"
	"pivotpath.io/engine/internal/service"
)

type mockAnalysisService struct {
	submitFn func(ctx context.Context, params service.SubmitAnalysisParams) (*model.Analysis, error)
	getFn    func(ctx context.Context, analysisID int64) (*model.Analysis, error)
	resultFn func(ctx context.Context, analysisID int64) (*model.AnalysisResult, error)
}

func (m *mockAnalysisService) Submit(ctx context.Context, params service.SubmitAnalysisParams) (*model.Analysis, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, params)
	}
	return &model.Analysis{ID: 1, Status: model.AnalysisStatusQueued}, nil
}

func (m *mockAnalysisService) Get(ctx context.Context, analysisID int64) (*model.Analysis, error) {
	if m.getFn != nil {
		return m.getFn(ctx, analysisID)
	}
	return &model.Analysis{ID: analysisID, Status: model.AnalysisStatusQueued}, nil
}

func (m *mockAnalysisService) Result(ctx context.Context, analysisID int64) (*model.AnalysisResult, error) {
	if m.resultFn != nil {
		return m.resultFn(ctx, analysisID)
	}
	return &model.AnalysisResult{AnalysisID: analysisID}, nil
}
