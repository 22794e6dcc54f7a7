package router

import (
	"github.com/gin-gonic/gin"

	"pivotpath.io/engine/internal/http/handler"
	"pivotpath.io/engine/internal/service"
)

type RouterConfig struct {
	TraceHeaderName string
}

func SetupRoutes(router *gin.Engine, analysisService service.AnalysisService, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		analysisHandler := handler.NewAnalysisHandler(analysisService, cfg.TraceHeaderName)
		AnalysisRouter(v1.Group("/analyses"), analysisHandler)
	}
}
