package world

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/voxel-engine/internal/eventbus"
	"github.com/annel0/voxel-engine/internal/mesher"
	"github.com/annel0/voxel-engine/internal/metrics"
	"github.com/annel0/voxel-engine/internal/vec"
)

type taskKind uint8

const (
	taskGenerate taskKind = iota
	taskMesh
)

func (k taskKind) String() string {
	if k == taskGenerate {
		return metrics.KindGenerate
	}
	return metrics.KindMesh
}

// Смещение приоритета по виду задачи: меньшее значение выполняется раньше
const (
	generateBias = 0
	meshBias     = 1
)

// taskPriority bias + (1 - 1/(d+1)), d расстояние от центра прогрузки
func taskPriority(center, pos vec.Vec2, bias float64) float64 {
	return bias + (1 - 1/(center.DistanceTo(pos)+1))
}

type task struct {
	kind     taskKind
	stack    *ChunkStack
	priority float64

	// neighbours окрестность 3x3 для задачи построения меша, индекс (dx+1)+(dy+1)*3
	neighbours [9]*ChunkStack

	index int
}

// taskQueue очередь с приоритетом на container/heap
type taskQueue []*task

func (q taskQueue) Len() int           { return len(q) }
func (q taskQueue) Less(i, j int) bool { return q[i].priority < q[j].priority }
func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x interface{}) {
	t := x.(*task)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *taskQueue) Pop() interface{} {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}

type generateResult struct {
	pos      vec.Vec2
	duration time.Duration
}

type meshResult struct {
	pos      vec.Vec2
	mesh     *mesher.Mesh
	revision uint64
}

// scheduler состояние планировщика; поля защищены мьютексом мира
type scheduler struct {
	limit    int
	queue    taskQueue
	inFlight int

	jobs      chan *task
	generated chan generateResult
	meshed    chan meshResult

	workers sync.WaitGroup
	running bool

	ready    bool
	progress float64
}

func newScheduler(limit int) scheduler {
	// Буферы не меньше потолка задач: воркер никогда не ждёт управляющую горутину
	return scheduler{
		limit:     limit,
		jobs:      make(chan *task, limit),
		generated: make(chan generateResult, limit),
		meshed:    make(chan meshResult, limit),
	}
}

// Start запускает пул воркеров. Повторный вызов ничего не делает.
func (w *World) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.sched.running {
		return
	}
	w.sched.running = true

	for i := 0; i < w.opts.Workers; i++ {
		w.sched.workers.Add(1)
		go w.worker(ctx, w.sched.jobs)
	}
	w.log.Info("⚙️ Запущено %d воркеров (потолок задач %d)", w.opts.Workers, w.opts.TaskCountLimit)
}

// Stop дожидается результатов всех отправленных задач и останавливает воркеры.
// Задачи из очереди, которые ещё не отправлены, отбрасываются.
func (w *World) Stop(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.sched.running {
		return
	}

	for w.sched.inFlight > 0 {
		select {
		case r := <-w.sched.generated:
			w.applyGenerated(r)
		case r := <-w.sched.meshed:
			w.applyMeshed(r)
		case <-ctx.Done():
			w.log.Warn("Остановка прервана, задач в работе: %d", w.sched.inFlight)
			return
		}
	}

	close(w.sched.jobs)
	w.sched.workers.Wait()
	w.sched.running = false
	w.sched.jobs = make(chan *task, w.sched.limit)
}

func (w *World) worker(ctx context.Context, jobs <-chan *task) {
	defer w.sched.workers.Done()

	for t := range jobs {
		switch t.kind {
		case taskGenerate:
			w.sched.generated <- w.runGenerate(ctx, t)
		case taskMesh:
			w.sched.meshed <- w.runMesh(ctx, t)
		}
	}
}

// runGenerate генерирует рельеф и копирует его в чанки, не прочитанные с диска
func (w *World) runGenerate(ctx context.Context, t *task) generateResult {
	s := t.stack
	_, span := w.tracer.Start(ctx, "world.generate", trace.WithAttributes(
		attribute.Int("stack.x", s.Position.X),
		attribute.Int("stack.y", s.Position.Y),
	))
	defer span.End()

	start := time.Now()
	out := w.generator.Generate(s.Position)

	s.mu.Lock()
	s.climate = out.CopyInto(s.chunks[:], s.loaded)
	s.mu.Unlock()

	d := time.Since(start)
	w.metrics.TaskDuration.WithLabelValues(metrics.KindGenerate).Observe(d.Seconds())
	return generateResult{pos: s.Position, duration: d}
}

// runMesh снимает копию окрестности под блокировками чтения и строит меш.
// Ревизия читается до копирования: правка во время копирования даст
// устаревшую ревизию, и результат будет отброшен.
func (w *World) runMesh(ctx context.Context, t *task) meshResult {
	s := t.stack
	_, span := w.tracer.Start(ctx, "world.mesh", trace.WithAttributes(
		attribute.Int("stack.x", s.Position.X),
		attribute.Int("stack.y", s.Position.Y),
	))
	defer span.End()

	revision := s.Revision()

	in := &mesher.Input{Position: s.Position}
	for i, n := range t.neighbours {
		n.copyChunks(in.Chunks[:], i, 9)
	}
	in.Climate = s.Climate()

	mesh := w.mesher.Build(in)
	w.metrics.TaskDuration.WithLabelValues(metrics.KindLight).Observe(mesh.LightingTime.Seconds())
	w.metrics.TaskDuration.WithLabelValues(metrics.KindMesh).Observe(mesh.MeshingTime.Seconds())
	span.SetAttributes(attribute.Int("mesh.vertices", len(mesh.Vertices)))

	return meshResult{pos: s.Position, mesh: mesh, revision: revision}
}

// Update один шаг управляющей горутины: обход окрестности отслеживаемой
// позиции, постановка и отправка задач, выгрузка дальних стеков и
// применение готовых результатов.
func (w *World) Update(ctx context.Context) {
	w.mu.Lock()

	center := vec.StackOf(int(math.Floor(w.tracked[0])), int(math.Floor(w.tracked[1])))
	vd := w.opts.MinimumViewDistance
	if w.sched.ready {
		vd = w.opts.ViewDistance
	}
	vd++

	becameReady := false
	if !w.sched.ready {
		becameReady = w.updateProgress(center, vd)
	}

	w.scan(center, vd)
	w.dispatch()
	w.evict()
	w.drainResults()

	w.metrics.StacksLoaded.Set(float64(len(w.stacks)))
	w.metrics.TasksInFlight.Set(float64(w.sched.inFlight))

	stacks, tick := len(w.stacks), w.currentTick
	w.mu.Unlock()

	if becameReady {
		w.log.Info("✅ Мир %q готов: стеков %d", w.name, stacks)
		w.publish(ctx, eventbus.EventWorldReady, eventbus.ReadyPayload{Stacks: stacks, Tick: tick})
	}
}

// updateProgress считает готовность по стекам вокруг центра: каждый
// сгенерированный и каждый построенный стек дают по единице
func (w *World) updateProgress(center vec.Vec2, vd int) bool {
	target := w.opts.MinimumViewDistance * w.opts.MinimumViewDistance * 4 * 2

	ready := 0
	for y := -vd; y <= vd; y++ {
		for x := -vd; x <= vd; x++ {
			s, ok := w.stacks[center.Add(vec.Vec2{X: x, Y: y})]
			if !ok {
				continue
			}
			if s.IsGenerated {
				ready++
			}
			if s.IsMeshed {
				ready++
			}
		}
	}

	w.sched.progress = math.Min(float64(ready)/float64(target), 1)
	w.metrics.LoadingProgress.Set(w.sched.progress)

	if ready >= target {
		w.sched.ready = true
		return true
	}
	return false
}

func (w *World) scan(center vec.Vec2, vd int) {
	for y := -vd; y <= vd; y++ {
		for x := -vd; x <= vd; x++ {
			pos := center.Add(vec.Vec2{X: x, Y: y})

			s, ok := w.stacks[pos]
			if !ok {
				s = NewChunkStack(pos)
				w.stacks[pos] = s
			}
			s.Visited = true

			if !s.IsGenerated && !s.IsWaitingForTask {
				if w.loadFromDisk(s) {
					s.IsGenerated = true
					w.metrics.StacksFromDisk.Inc()
				} else {
					w.enqueue(&task{kind: taskGenerate, stack: s, priority: taskPriority(center, pos, generateBias)})
				}
			}

			if s.IsGenerated && !s.IsMeshed && !s.IsWaitingForTask {
				if t, ok := w.meshTask(s); ok {
					t.priority = taskPriority(center, pos, meshBias)
					w.enqueue(t)
				}
			}
		}
	}
}

// loadFromDisk читает чанки стека из сохранения один раз за жизнь стека.
// Возвращает true, если на диске нашлись все чанки.
func (w *World) loadFromDisk(s *ChunkStack) bool {
	if w.storage == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.diskChecked {
		return s.loaded.Count() == vec.StackChunkCount
	}
	s.diskChecked = true

	loaded, err := w.storage.LoadStack(s.Position, s.chunks[:])
	if err != nil {
		w.log.Error("Ошибка загрузки стека %v: %v", s.Position, err)
	}
	s.loaded = loaded
	return loaded.Count() == vec.StackChunkCount
}

// meshTask собирает окрестность стека; все 8 соседей должны быть сгенерированы
func (w *World) meshTask(s *ChunkStack) (*task, bool) {
	t := &task{kind: taskMesh, stack: s}
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			n, ok := w.stacks[s.Position.Add(vec.Vec2{X: dx, Y: dy})]
			if !ok || !n.IsGenerated {
				return nil, false
			}
			t.neighbours[vec.NeighbourIndex(dx, dy, 0)] = n
		}
	}
	return t, true
}

func (w *World) enqueue(t *task) {
	t.stack.IsWaitingForTask = true
	heap.Push(&w.sched.queue, t)
}

// dispatch отправляет задачи с наименьшим приоритетом, пока есть место.
// Неотправленные задачи снимаются: очередь строится заново каждый тик.
func (w *World) dispatch() {
	w.metrics.QueueLength.Set(float64(w.sched.queue.Len()))

	for w.sched.queue.Len() > 0 && w.sched.inFlight < w.sched.limit {
		t := heap.Pop(&w.sched.queue).(*task)
		if !w.sched.running {
			// Без воркеров задачи выполняются синхронно
			w.runInline(t)
			continue
		}
		w.sched.jobs <- t
		w.sched.inFlight++
		w.metrics.TasksDispatched.WithLabelValues(t.kind.String()).Inc()
	}

	for _, t := range w.sched.queue {
		t.stack.IsWaitingForTask = false
	}
	w.sched.queue = w.sched.queue[:0]
}

func (w *World) runInline(t *task) {
	w.sched.inFlight++
	w.metrics.TasksDispatched.WithLabelValues(t.kind.String()).Inc()
	switch t.kind {
	case taskGenerate:
		w.applyGenerated(w.runGenerate(context.Background(), t))
	case taskMesh:
		w.applyMeshed(w.runMesh(context.Background(), t))
	}
}

// evict выгружает стеки без задачи, которые не посещались на этом тике, в том
// числе сгенерированные, но так и не построенные стеки внешнего кольца.
// Изменённые чанки перед выгрузкой записываются в регион сохранения.
func (w *World) evict() {
	for pos, s := range w.stacks {
		if !s.Visited && !s.IsWaitingForTask {
			if w.storage == nil {
				delete(w.stacks, pos)
				w.metrics.StacksEvicted.Inc()
				continue
			}
			if _, err := s.storeDirty(w.storage.StoreChunk); err != nil {
				// Стек остаётся в памяти до следующей попытки
				w.log.Error("Ошибка записи стека %v: %v", pos, err)
			} else {
				delete(w.stacks, pos)
				w.metrics.StacksEvicted.Inc()
				continue
			}
		}
		s.Visited = false
	}
}

// drainResults применяет готовые результаты, не дожидаясь выполняющихся задач
func (w *World) drainResults() {
	for drained := false; !drained; {
		select {
		case r := <-w.sched.generated:
			w.applyGenerated(r)
		default:
			drained = true
		}
	}
	for drained := false; !drained; {
		select {
		case r := <-w.sched.meshed:
			w.applyMeshed(r)
		default:
			drained = true
		}
	}
}

func (w *World) waitingStack(pos vec.Vec2) *ChunkStack {
	s, ok := w.stacks[pos]
	if !ok || !s.IsWaitingForTask {
		panic(fmt.Sprintf("результат задачи для стека %v, который не ждёт задачу", pos))
	}
	return s
}

func (w *World) applyGenerated(r generateResult) {
	s := w.waitingStack(r.pos)
	s.IsGenerated = true
	s.IsWaitingForTask = false
	w.sched.inFlight--
	w.metrics.TasksCompleted.WithLabelValues(metrics.KindGenerate).Inc()
	w.log.Trace("Стек %v сгенерирован за %v", r.pos, r.duration)
}

func (w *World) applyMeshed(r meshResult) {
	s := w.waitingStack(r.pos)
	s.IsWaitingForTask = false
	w.sched.inFlight--
	w.metrics.TasksCompleted.WithLabelValues(metrics.KindMesh).Inc()

	if r.revision != s.Revision() {
		// Правка во время построения: стек будет поставлен в очередь снова
		s.IsMeshed = false
		return
	}
	s.setMesh(r.mesh)
	s.IsMeshed = true
}
