package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessChecker reports whether the service can take traffic
type ReadinessChecker interface {
	HealthCheck(ctx context.Context) (map[string]interface{}, bool)
}

// HealthController serves liveness, readiness, metrics and the event stream
type HealthController struct {
	checker  ReadinessChecker
	gatherer prometheus.Gatherer
	events   http.Handler
}

// NewHealthController creates a new health controller. events may be nil.
func NewHealthController(checker ReadinessChecker, gatherer prometheus.Gatherer, events http.Handler) *HealthController {
	return &HealthController{
		checker:  checker,
		gatherer: gatherer,
		events:   events,
	}
}

// RegisterRoutes registers the health routes with Gin
func (c *HealthController) RegisterRoutes(router *gin.Engine) {
	router.GET("/health/live", c.HealthLive)
	router.GET("/health/ready", c.HealthReady)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})))
	if c.events != nil {
		router.GET("/ws/events", gin.WrapH(c.events))
	}
}

func (c *HealthController) HealthLive(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func (c *HealthController) HealthReady(ctx *gin.Context) {
	status, ready := c.checker.HealthCheck(ctx.Request.Context())
	if !ready {
		ctx.JSON(http.StatusServiceUnavailable, status)
		return
	}
	ctx.JSON(http.StatusOK, status)
}
