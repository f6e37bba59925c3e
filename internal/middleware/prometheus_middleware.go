package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// unmatchedRoute метка запросов мимо маршрутов. Сырой путь в метку не
// попадает, иначе перебор адресов раздувает число серий.
const unmatchedRoute = "unmatched"

// metricsPath маршрут экспорта; сами запросы к нему не измеряются
const metricsPath = "/metrics"

// PrometheusMiddleware HTTP-метрики отладочного API.
//
//	<service>_http_requests_total{method,route,class}   class: 2xx, 4xx, 5xx
//	<service>_http_request_duration_seconds{method,route}
//	<service>_http_requests_inflight
type PrometheusMiddleware struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	reqInflight prometheus.Gauge
}

// NewPrometheusMiddleware создаёт middleware. При reg == nil метрики не регистрируются.
func NewPrometheusMiddleware(service string, reg prometheus.Registerer) *PrometheusMiddleware {
	pm := &PrometheusMiddleware{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: service,
			Name:      "http_requests_total",
			Help:      "HTTP-запросы по маршруту и классу ответа.",
		}, []string{"method", "route", "class"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: service,
			Name:      "http_request_duration_seconds",
			Help:      "Длительность HTTP-запросов.",
			// правки блоков укладываются в миллисекунды, запись сохранения в секунды
			Buckets: []float64{0.001, 0.005, 0.02, 0.1, 0.5, 2, 10},
		}, []string{"method", "route"}),
		reqInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: service,
			Name:      "http_requests_inflight",
			Help:      "Запросы в обработке.",
		}),
	}

	if reg != nil {
		reg.MustRegister(pm.requests, pm.duration, pm.reqInflight)
	}
	return pm
}

// Handler middleware для router.Use()
func (pm *PrometheusMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == metricsPath {
			c.Next()
			return
		}
		if route == "" {
			route = unmatchedRoute
		}

		pm.reqInflight.Inc()
		start := time.Now()
		defer func() {
			pm.reqInflight.Dec()
			method := c.Request.Method
			pm.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			pm.requests.WithLabelValues(method, route, statusClass(c.Writer.Status())).Inc()
		}()

		c.Next()
	}
}

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}

// RegisterMetricsEndpoint добавляет GET /metrics; g == nil отдаёт глобальный реестр
func (pm *PrometheusMiddleware) RegisterMetricsEndpoint(r gin.IRoutes, g prometheus.Gatherer) {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	r.GET(metricsPath, gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
}
