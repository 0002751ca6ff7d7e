package main

import (
	"net/http"

	"call-router/internal/ivr"
	"call-router/internal/metrics"
	"call-router/internal/telnyx"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, router *ivr.Router, mh metrics.Handlers, metricsAuth gin.HandlerFunc) {
	// Provider webhook (public). The provider is not authenticated here;
	// webhook signature validation is out of scope.
	wh := telnyx.WebhookHandler{Router: router}
	r.POST("/webhook", wh.Handle)

	m := r.Group("/metrics")
	if metricsAuth != nil {
		m.Use(metricsAuth)
	}
	{
		m.GET("/kpis", mh.GetKPIs)
		m.GET("/trend", mh.GetTrend)
		m.GET("/recent", mh.GetRecent)
	}

	r.GET("/health", mh.Health)

	r.HandleMethodNotAllowed = true
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})
}
