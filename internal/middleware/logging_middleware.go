package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/voxel-engine/internal/logging"
)

// TraceHeader заголовок ответа с trace-ID запроса
const TraceHeader = "X-Trace-Id"

// RequestLogger присваивает запросу trace-ID и пишет по строке на ответ.
// Опрос служебных маршрутов (health, metrics) уходит в TRACE.
type RequestLogger struct {
	log   *logging.Logger
	quiet map[string]bool
}

// NewRequestLogger создаёт middleware; quiet маршруты, опрашиваемые по таймеру
func NewRequestLogger(log *logging.Logger, quiet ...string) *RequestLogger {
	rl := &RequestLogger{log: log, quiet: make(map[string]bool, len(quiet))}
	for _, route := range quiet {
		rl.quiet[route] = true
	}
	return rl
}

func traceIDOf(c *gin.Context) string {
	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return uuid.NewString()
}

// Handler middleware для router.Use()
func (rl *RequestLogger) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := traceIDOf(c)
		c.Set("trace_id", traceID)
		c.Header(TraceHeader, traceID)

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()
		latency := time.Since(start)

		switch {
		case status >= 500:
			errs := c.Errors.ByType(gin.ErrorTypeAny).String()
			rl.log.Error("[HTTP] %s %s %d %s trace=%s %s", c.Request.Method, route, status, latency, traceID, errs)
		case rl.quiet[route]:
			rl.log.Trace("[HTTP] %s %s %d %s", c.Request.Method, route, status, latency)
		default:
			rl.log.Info("[HTTP] %s %s %d %s ip=%s trace=%s", c.Request.Method, route, status, latency, c.ClientIP(), traceID)
		}
	}
}
