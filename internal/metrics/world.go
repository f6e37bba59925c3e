// Package metrics содержит Prometheus-метрики мира и статистику процесса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Виды задач планировщика
const (
	KindGenerate = "generate"
	KindMesh     = "mesh"
	KindLight    = "light"
)

// World метрики планировщика и правок мира
type World struct {
	TasksDispatched *prometheus.CounterVec
	TasksCompleted  *prometheus.CounterVec
	TaskDuration    *prometheus.HistogramVec
	TasksInFlight   prometheus.Gauge
	QueueLength     prometheus.Gauge
	StacksLoaded    prometheus.Gauge
	StacksEvicted   prometheus.Counter
	StacksFromDisk  prometheus.Counter
	LoadingProgress prometheus.Gauge
	BlockEdits      *prometheus.CounterVec
}

// NewWorld создаёт метрики и регистрирует их в reg. При reg == nil метрики
// не регистрируются (тесты, несколько миров в одном процессе).
func NewWorld(reg prometheus.Registerer) *World {
	m := &World{
		TasksDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "scheduler",
			Name:      "tasks_dispatched_total",
			Help:      "Количество отправленных воркерам задач.",
		}, []string{"kind"}),
		TasksCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "scheduler",
			Name:      "tasks_completed_total",
			Help:      "Количество применённых результатов задач.",
		}, []string{"kind"}),
		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voxel",
			Subsystem: "scheduler",
			Name:      "task_duration_seconds",
			Help:      "Время выполнения этапов задач.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"kind"}),
		TasksInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxel",
			Subsystem: "scheduler",
			Name:      "tasks_inflight",
			Help:      "Задачи, отправленные воркерам и ещё не применённые.",
		}),
		QueueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxel",
			Subsystem: "scheduler",
			Name:      "queue_length",
			Help:      "Длина очереди задач на последнем тике до отправки.",
		}),
		StacksLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxel",
			Subsystem: "world",
			Name:      "stacks_loaded",
			Help:      "Стеки чанков в памяти.",
		}),
		StacksEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "world",
			Name:      "stacks_evicted_total",
			Help:      "Стеки, выгруженные за пределами дальности прогрузки.",
		}),
		StacksFromDisk: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "world",
			Name:      "stacks_from_disk_total",
			Help:      "Стеки, полностью загруженные из сохранения без генерации.",
		}),
		LoadingProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxel",
			Subsystem: "world",
			Name:      "loading_progress",
			Help:      "Прогресс начальной загрузки мира от 0 до 1.",
		}),
		BlockEdits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "world",
			Name:      "block_edits_total",
			Help:      "Правки блоков по виду действия.",
		}, []string{"action"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.TasksDispatched, m.TasksCompleted, m.TaskDuration,
			m.TasksInFlight, m.QueueLength,
			m.StacksLoaded, m.StacksEvicted, m.StacksFromDisk,
			m.LoadingProgress, m.BlockEdits,
		)
	}
	return m
}
