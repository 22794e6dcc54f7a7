package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"pivotpath.io/engine/internal/http/dto"
	"pivotpath.io/engine/internal/service"
)

type AnalysisHandler struct {
	service     service.AnalysisService
	traceHeader string
}

func NewAnalysisHandler(svc service.AnalysisService, traceHeader string) *AnalysisHandler {
	return &AnalysisHandler{
		service:     svc,
		traceHeader: traceHeader,
	}
}

func (h *AnalysisHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SubmitAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid submit request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	traceID := c.GetHeader(h.traceHeader)
	if traceID == "" {
		if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
			traceID = spanCtx.TraceID().String()
		}
	}
	params := service.SubmitAnalysisParams{
		SourceRole:  req.SourceRole,
		TargetRole:  req.TargetRole,
		KnownSkills: req.KnownSkills,
	}
	if traceID != "" {
		params.TraceID = &traceID
	}

	analysis, err := h.service.Submit(ctx, params)
	if err != nil {
		slog.ErrorContext(ctx, "failed to submit analysis", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to submit analysis"})
		return
	}

	c.JSON(http.StatusAccepted, dto.SubmitAnalysisResponse{
		AnalysisID: analysis.ID,
		Status:     string(analysis.Status),
	})
}

func (h *AnalysisHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	analysisID, ok := pathID(c)
	if !ok {
		return
	}

	analysis, err := h.service.Get(ctx, analysisID)
	if err != nil {
		if errors.Is(err, service.ErrAnalysisNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to fetch analysis", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch analysis"})
		return
	}

	c.JSON(http.StatusOK, dto.FromAnalysis(analysis))
}

func (h *AnalysisHandler) Result(c *gin.Context) {
	ctx := c.Request.Context()

	analysisID, ok := pathID(c)
	if !ok {
		return
	}

	result, err := h.service.Result(ctx, analysisID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAnalysisNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
		case errors.Is(err, service.ErrResultNotReady):
			c.JSON(http.StatusConflict, gin.H{"error": "analysis result not ready"})
		default:
			slog.ErrorContext(ctx, "failed to fetch result", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch result"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.FromResult(result))
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid analysis id"})
		return 0, false
	}
	return id, true
}
