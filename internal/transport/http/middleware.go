package http

import (
	"errors"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richardliu001/pharmacy-credit/internal/metrics"
	"github.com/richardliu001/pharmacy-credit/internal/service"
	"github.com/richardliu001/pharmacy-credit/internal/session"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	CorrelationIDHeader = "X-Correlation-ID"

	correlationIDKey = "correlation_id"
	actorKey         = "actor"
)

// CorrelationID tags every request with an id, reusing the caller's if sent.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(CorrelationIDHeader, id)
		c.Set(correlationIDKey, id)
		c.Next()
	}
}

func correlationID(c *gin.Context) string {
	return c.GetString(correlationIDKey)
}

// LoggingMiddleware prints request/response metrics.
func LoggingMiddleware(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Infow("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"correlation_id", correlationID(c),
		)
	}
}

// Recovery turns a panic into a 500 and logs the stack.
func Recovery(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Errorw("panic recovered",
					"error", r,
					"stack", string(debug.Stack()),
					"path", c.Request.URL.Path,
					"correlation_id", correlationID(c),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":          "internal error",
					"code":           "INTERNAL",
					"correlation_id": correlationID(c),
				})
			}
		}()
		c.Next()
	}
}

// MetricsMiddleware counts requests per route template.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// RateLimitMiddleware simple token bucket per IP. rps <= 0 disables it.
func RateLimitMiddleware(rps, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	var mu sync.Mutex
	buckets := make(map[string]*rate.Limiter)
	newLimiter := func() *rate.Limiter { return rate.NewLimiter(rate.Limit(rps), burst) }
	return func(c *gin.Context) {
		ip := c.ClientIP()
		mu.Lock()
		lim, ok := buckets[ip]
		if !ok {
			lim = newLimiter()
			buckets[ip] = lim
		}
		mu.Unlock()
		if !lim.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded", "code": "RATE_LIMITED"})
			return
		}
		c.Next()
	}
}

// RequireSession rejects callers without a live session and stores the
// session's user id as the acting user.
func RequireSession(store session.Store, cookieName string, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token, _ = c.Cookie(cookieName)
		}
		if token == "" {
			abortWithError(c, service.ErrUnauthenticated)
			return
		}
		sess, err := store.Get(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, session.ErrNoSession) {
				abortWithError(c, service.ErrUnauthenticated)
				return
			}
			log.Errorw("session lookup failed", "error", err, "correlation_id", correlationID(c))
			abortWithError(c, err)
			return
		}
		c.Set(actorKey, sess.UserID)
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func actor(c *gin.Context) string {
	return c.GetString(actorKey)
}
