package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pivotpath.io/engine/internal/http/handler"
	"pivotpath.io/engine/internal/model"
	"pivotpath.io/engine/internal/service"
)

var _ = Describe("AnalysisHandler", func() {
	var (
		router *gin.Engine
		svc    *mockAnalysisService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockAnalysisService{}
		h := handler.NewAnalysisHandler(svc, "X-Trace-Id")
		router.POST("/analyses", h.Submit)
		router.GET("/analyses/:id", h.Get)
		router.GET("/analyses/:id/result", h.Result)
	})

	Describe("Submit", func() {
		It("returns 202 with the new analysis id", func() {
			svc.submitFn = func(_ context.Context, params service.SubmitAnalysisParams) (*model.Analysis, error) {
				Expect(params.SourceRole).To(Equal("Backend Engineer"))
				Expect(params.TargetRole).To(Equal("Product Manager"))
				return &model.Analysis{ID: 42, Status: model.AnalysisStatusQueued}, nil
			}

			body, _ := json.Marshal(map[string]any{
				"source_role":  "Backend Engineer",
				"target_role":  "Product Manager",
				"known_skills": []string{"Go"},
			})
			req := httptest.NewRequest(http.MethodPost, "/analyses", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusAccepted))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["analysis_id"]).To(BeNumerically("==", 42))
			Expect(resp["status"]).To(Equal("queued"))
		})

		It("passes the trace header through to the service", func() {
			svc.submitFn = func(_ context.Context, params service.SubmitAnalysisParams) (*model.Analysis, error) {
				Expect(params.TraceID).NotTo(BeNil())
				Expect(*params.TraceID).To(Equal("abc123"))
				return &model.Analysis{ID: 42, Status: model.AnalysisStatusQueued}, nil
			}

			body, _ := json.Marshal(map[string]string{
				"source_role": "Backend Engineer",
				"target_role": "Product Manager",
			})
			req := httptest.NewRequest(http.MethodPost, "/analyses", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Trace-Id", "abc123")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusAccepted))
		})

		It("returns 400 when a required role is missing", func() {
			body, _ := json.Marshal(map[string]string{"source_role": "Backend Engineer"})
			req := httptest.NewRequest(http.MethodPost, "/analyses", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 500 when the service fails", func() {
			svc.submitFn = func(_ context.Context, _ service.SubmitAnalysisParams) (*model.Analysis, error) {
				return nil, errors.New("boom")
			}

			body, _ := json.Marshal(map[string]string{
				"source_role": "Backend Engineer",
				"target_role": "Product Manager",
			})
			req := httptest.NewRequest(http.MethodPost, "/analyses", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("Get", func() {
		It("returns the run record", func() {
			svc.getFn = func(_ context.Context, analysisID int64) (*model.Analysis, error) {
				return &model.Analysis{
					ID:         analysisID,
					SourceRole: "Backend Engineer",
					TargetRole: "Product Manager",
					Status:     model.AnalysisStatusRunning,
				}, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/analyses/42", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["status"]).To(Equal("running"))
		})

		It("returns 404 for an unknown id", func() {
			svc.getFn = func(_ context.Context, _ int64) (*model.Analysis, error) {
				return nil, service.ErrAnalysisNotFound
			}

			req := httptest.NewRequest(http.MethodGet, "/analyses/42", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("returns 400 for a non-numeric id", func() {
			req := httptest.NewRequest(http.MethodGet, "/analyses/abc", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Result", func() {
		It("returns the assembled result", func() {
			svc.resultFn = func(_ context.Context, analysisID int64) (*model.AnalysisResult, error) {
				return &model.AnalysisResult{
					AnalysisID: analysisID,
					SkillGaps:  []model.SkillGap{{SkillName: "Roadmapping", GapLevel: model.GapLevelHigh}},
					Degraded:   false,
				}, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/analyses/42/result", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["skill_gaps"]).To(HaveLen(1))
		})

		It("returns 409 while the run is still in progress", func() {
			svc.resultFn = func(_ context.Context, _ int64) (*model.AnalysisResult, error) {
				return nil, service.ErrResultNotReady
			}

			req := httptest.NewRequest(http.MethodGet, "/analyses/42/result", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusConflict))
		})
	})
})
