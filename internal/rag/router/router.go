// Package router registers the routes of the question answering service.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/rag-ask/internal/rag/handler"
	mwopts "github.com/kart-io/rag-ask/pkg/options/middleware"
)

// Register registers the service routes on engine. metricsHandler is mounted
// at opts.Path when metrics are enabled.
func Register(engine *gin.Engine, ragHandler *handler.RAGHandler, metricsHandler http.Handler, opts *mwopts.MetricsOptions) {
	logger.Info("Registering RAG routes...")

	engine.GET("/", ragHandler.Health)
	engine.POST("/ask", ragHandler.Ask)

	if opts != nil && opts.Enabled && metricsHandler != nil {
		engine.GET(opts.Path, gin.WrapH(metricsHandler))
	}

	logger.Info("HTTP routes registered")
}
