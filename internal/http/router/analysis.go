package router

import (
	"github.com/gin-gonic/gin"

	"pivotpath.io/engine/internal/http/handler"
)

func AnalysisRouter(router *gin.RouterGroup, handler *handler.AnalysisHandler) {
	router.POST("", handler.Submit)
	router.GET("/:id", handler.Get)
	router.GET("/:id/result", handler.Result)
}
