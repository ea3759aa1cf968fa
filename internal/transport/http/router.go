package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richardliu001/pharmacy-credit/internal/config"
	"github.com/richardliu001/pharmacy-credit/internal/session"
	"go.uber.org/zap"
)

// NewRouter wires middleware and routes. Everything under /api/v1 needs a session.
func NewRouter(svc CreditLedger, sessions session.Store, rl config.RateLimitConfig, cookieName string, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(CorrelationID())
	r.Use(LoggingMiddleware(log))
	r.Use(MetricsMiddleware())
	r.Use(Recovery(log))
	r.Use(RateLimitMiddleware(rl.RPS, rl.Burst))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.Use(RequireSession(sessions, cookieName, log))
	RegisterHandlers(v1, svc, log)
	return r
}
