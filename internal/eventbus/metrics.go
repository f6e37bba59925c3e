package eventbus

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/annel0/voxel-engine/internal/logging"
)

// MetricsExporter считает события мира по типам и раз в секунду переносит
// счётчики шины в Prometheus
type MetricsExporter struct {
	bus      EventBus
	interval time.Duration

	events    *prometheus.CounterVec
	published prometheus.Counter
	consumed  prometheus.Counter
	dropped   prometheus.Counter
	inflight  prometheus.Gauge

	mu     sync.Mutex
	sub    Subscription
	cancel context.CancelFunc
	done   chan struct{}
	server *http.Server
}

// NewMetricsExporter создаёт экспортер и регистрирует метрики в reg (nil: без регистрации)
func NewMetricsExporter(bus EventBus, reg prometheus.Registerer) *MetricsExporter {
	me := &MetricsExporter{
		bus:      bus,
		interval: time.Second,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "events",
			Name:      "total",
			Help:      "События мира, полученные шиной, по типам.",
		}, []string{"type"}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "eventbus",
			Name:      "published_total",
			Help:      "Опубликованные события.",
		}),
		consumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "eventbus",
			Name:      "consumed_total",
			Help:      "Доставки событий подписчикам.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "eventbus",
			Name:      "dropped_total",
			Help:      "События низкого приоритета, потерянные при переполнении или ошибке.",
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxel",
			Subsystem: "eventbus",
			Name:      "inflight",
			Help:      "События в очереди шины.",
		}),
	}

	if reg != nil {
		reg.MustRegister(me.events, me.published, me.consumed, me.dropped, me.inflight)
	}
	return me
}

// Start подписывается на все события и запускает перенос счётчиков шины
func (m *MetricsExporter) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != nil {
		return nil
	}

	sub, err := m.bus.Subscribe(ctx, Filter{}, func(_ context.Context, ev *Event) {
		m.events.WithLabelValues(ev.Type).Inc()
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	m.sub = sub
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(ctx, m.done)
	return nil
}

// StartHTTP запускает экспортер и отдаёт глобальный реестр на addr/metrics
// (например ":2112"). Метод неблокирующий.
func (m *MetricsExporter) StartHTTP(ctx context.Context, addr string) error {
	if err := m.Start(ctx); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	m.mu.Lock()
	m.server = srv
	m.mu.Unlock()

	go func() {
		logging.Info("📈 Prometheus /metrics доступен по адресу %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Ошибка Prometheus HTTP сервера: %v", err)
		}
	}()
	return nil
}

// Stop отписывается от шины, останавливает перенос счётчиков и HTTP-сервер
func (m *MetricsExporter) Stop(ctx context.Context) error {
	m.mu.Lock()
	sub, cancel, done, srv := m.sub, m.cancel, m.done, m.server
	m.sub, m.cancel, m.done, m.server = nil, nil, nil, nil
	m.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	if cancel != nil {
		cancel()
		<-done
	}
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

func (m *MetricsExporter) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	var prev Stats
	for {
		select {
		case <-ticker.C:
			prev = m.collect(prev)
		case <-ctx.Done():
			m.collect(prev)
			return
		}
	}
}

// collect добавляет к счётчикам прирост с прошлого снимка
func (m *MetricsExporter) collect(prev Stats) Stats {
	stats := m.bus.Metrics()
	addDelta(m.published, stats.Published, prev.Published)
	addDelta(m.consumed, stats.Consumed, prev.Consumed)
	addDelta(m.dropped, stats.Dropped, prev.Dropped)
	m.inflight.Set(float64(stats.InFlight))
	return stats
}

func addDelta(c prometheus.Counter, cur, prev uint64) {
	if cur > prev {
		c.Add(float64(cur - prev))
	}
}
