// Package world хранит загруженные стеки чанков вокруг отслеживаемой позиции,
// планирует их генерацию и построение мешей и предоставляет игровые операции
// над блоками.
package world

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/voxel-engine/assets"
	"github.com/annel0/voxel-engine/internal/config"
	"github.com/annel0/voxel-engine/internal/eventbus"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/mesher"
	"github.com/annel0/voxel-engine/internal/metrics"
	"github.com/annel0/voxel-engine/internal/physics"
	"github.com/annel0/voxel-engine/internal/storage"
	"github.com/annel0/voxel-engine/internal/terrain"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/biome"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// SpawnHeight высота, с которой начинается поиск поверхности для новой позиции
const SpawnHeight = 160

// autoSaveInterval период автосохранения в Run
const autoSaveInterval = 5 * time.Minute

// Options параметры мира
type Options struct {
	ViewDistance        int
	MinimumViewDistance int
	TaskCountLimit      int
	Workers             int

	// Файлы контента; пустой путь означает встроенные данные
	BlocksPath string
	BiomesPath string

	// Compression режим сжатия новых записей регионов
	Compression storage.Mode

	// Metrics метрики мира (nil: незарегистрированные)
	Metrics *metrics.World
	// Events шина событий (nil: глобальная шина eventbus)
	Events eventbus.EventBus
}

// OptionsFromConfig собирает параметры мира из конфигурации
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	mode, err := storage.ParseMode(cfg.Storage.Compression)
	if err != nil {
		return Options{}, err
	}
	return Options{
		ViewDistance:        cfg.World.GetViewDistance(),
		MinimumViewDistance: cfg.World.GetMinimumViewDistance(),
		TaskCountLimit:      cfg.World.GetTaskCountLimit(),
		Workers:             cfg.World.GetWorkers(),
		BlocksPath:          cfg.Content.Blocks,
		BiomesPath:          cfg.Content.Biomes,
		Compression:         mode,
	}, nil
}

func (o *Options) normalize() {
	if o.ViewDistance <= 0 {
		o.ViewDistance = config.DefaultViewDistance
	}
	if o.MinimumViewDistance <= 0 {
		o.MinimumViewDistance = config.DefaultMinimumViewDistance
	}
	if o.MinimumViewDistance > o.ViewDistance {
		o.MinimumViewDistance = o.ViewDistance
	}
	if o.TaskCountLimit <= 0 {
		o.TaskCountLimit = config.DefaultTaskCountLimit
	}
	if o.Workers <= 0 {
		o.Workers = o.TaskCountLimit
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NewWorld(nil)
	}
}

// World загруженная часть мира.
//
// Карта стеков, флаги состояния стеков, очередь задач, счётчики тиков и
// выпавшие предметы защищены mu. Воркеры mu не берут: они работают только
// с блокировками отдельных стеков.
type World struct {
	mu     sync.RWMutex
	stacks map[vec.Vec2]*ChunkStack

	Blocks *block.Registry
	Biomes *biome.Set
	Seed   int32

	generator *terrain.Generator
	mesher    *mesher.Mesher
	storage   *storage.DiskStorage // nil для мира без сохранения
	name      string

	currentTick  int64
	dayCycleTick int64

	tracked       mgl64.Vec3
	settlePending bool
	drops         []*ItemDrop

	sched scheduler

	opts    Options
	metrics *metrics.World
	events  eventbus.EventBus
	tracer  trace.Tracer
	log     *logging.Logger
}

// New создаёт мир без сохранения: изменения живут только в памяти
func New(seed int32, blocks *block.Registry, biomes *biome.Set, opts Options) *World {
	opts.normalize()

	w := &World{
		stacks:        make(map[vec.Vec2]*ChunkStack),
		Blocks:        blocks,
		Biomes:        biomes,
		Seed:          seed,
		generator:     terrain.NewGenerator(seed, blocks, biomes),
		mesher:        mesher.New(blocks),
		name:          "memory",
		tracked:       mgl64.Vec3{0.5, 0.5, SpawnHeight},
		settlePending: true,
		opts:          opts,
		metrics:       opts.Metrics,
		events:        opts.Events,
		tracer:        otel.Tracer("github.com/annel0/voxel-engine/internal/world"),
		log:           logging.GetWorldLogger(),
	}
	w.sched = newScheduler(opts.TaskCountLimit)
	return w
}

// LoadSave открывает сохранение и создаёт мир поверх него. При ошибке
// (нет метаданных, другая версия формата, ошибка контента) мир не создаётся.
func LoadSave(ctx context.Context, dir string, opts Options) (*World, error) {
	st, err := storage.LoadSave(dir, storage.Options{Mode: opts.Compression})
	if err != nil {
		return nil, err
	}

	blocks, biomes, err := assets.Load(opts.BlocksPath, opts.BiomesPath, st.IDMap())
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("ошибка загрузки контента: %w", err)
	}

	meta := st.Metadata()
	w := New(meta.Seed, blocks, biomes, opts)
	w.storage = st
	w.name = meta.DisplayName
	w.currentTick = meta.ElapsedTicks
	w.dayCycleTick = meta.ElapsedDayCycleTicks

	records, err := st.Entities().LoadDrops(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	for _, r := range records {
		w.drops = append(w.drops, dropFromRecord(r))
	}

	pos, ok, err := st.Entities().LoadPosition(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if ok {
		w.tracked = pos
		w.settlePending = false
	}

	w.log.Info("🌍 Мир %q загружен: сид %d, тик %d, предметов %d", w.name, w.Seed, w.currentTick, len(w.drops))
	return w, nil
}

// Name отображаемое имя сохранения
func (w *World) Name() string {
	return w.name
}

// Storage хранилище сохранения (nil для мира без сохранения)
func (w *World) Storage() *storage.DiskStorage {
	return w.storage
}

// Stack возвращает загруженный стек или nil
func (w *World) Stack(pos vec.Vec2) *ChunkStack {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stacks[pos]
}

// TrackedPosition позиция, вокруг которой прогружается мир
func (w *World) TrackedPosition() mgl64.Vec3 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.tracked
}

// SetTrackedPosition перемещает центр прогрузки
func (w *World) SetTrackedPosition(p mgl64.Vec3) {
	w.mu.Lock()
	w.tracked = p
	w.settlePending = false
	w.mu.Unlock()
}

// CurrentTick номер текущего тика и тика суточного цикла
func (w *World) CurrentTick() (tick, dayCycle int64) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.currentTick, w.dayCycleTick
}

// Tick продвигает симуляцию на один тик. До готовности мира ничего не делает.
func (w *World) Tick() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.sched.ready {
		return
	}

	if w.settlePending {
		w.tracked = w.settleTop(int(math.Floor(w.tracked[0])), int(math.Floor(w.tracked[1])))
		w.settlePending = false
		w.log.Debug("Позиция опущена на поверхность: %v", w.tracked)
	}

	w.currentTick++
	w.dayCycleTick++
}

// Drops копия списка выпавших предметов
func (w *World) Drops() []ItemDrop {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]ItemDrop, len(w.drops))
	for i, d := range w.drops {
		out[i] = *d
	}
	return out
}

// GetBlock возвращает блок в мировых координатах. Вне мира по высоте и в
// незагруженных стеках возвращается воздух.
func (w *World) GetBlock(p vec.Vec3) block.BlockID {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.blockAt(p)
}

func (w *World) blockAt(p vec.Vec3) block.BlockID {
	if p.Z < 0 || p.Z >= vec.StackSizeZ {
		return block.AirBlockID
	}
	s, ok := w.stacks[vec.StackOf(p.X, p.Y)]
	if !ok {
		return block.AirBlockID
	}
	return s.Block(p.X, p.Y, p.Z)
}

// SetBlock ставит блок. Изменённый чанк помечается для записи, меш стека и
// соседей в пределах радиуса света сбрасывается. При разрушении появляется
// выпавший предмет. Возвращает false, если стек не загружен или ещё не
// сгенерирован.
func (w *World) SetBlock(p vec.Vec3, id block.BlockID, audio mgl64.Vec3) bool {
	if p.Z < 0 || p.Z >= vec.StackSizeZ {
		return false
	}

	stackPos := vec.StackOf(p.X, p.Y)

	w.mu.Lock()
	s, ok := w.stacks[stackPos]
	if !ok || !s.IsGenerated {
		w.mu.Unlock()
		return false
	}

	prev := s.setBlock(p.X, p.Y, p.Z, id)

	_, lx := vec.Wrap(p.X)
	_, ly := vec.Wrap(p.Y)
	for dy := neighbourLow(ly); dy <= neighbourHigh(ly); dy++ {
		for dx := neighbourLow(lx); dx <= neighbourHigh(lx); dx++ {
			if n, ok := w.stacks[stackPos.Add(vec.Vec2{X: dx, Y: dy})]; ok {
				n.invalidate()
			}
		}
	}

	var drop *ItemDrop
	if prev != id && id == block.AirBlockID {
		drop = NewItemDrop(w.Blocks.Get(prev).ItemDrop, p, w.currentTick)
		w.drops = append(w.drops, drop)
	}
	tick := w.currentTick
	w.mu.Unlock()

	if prev == id {
		return true
	}

	payload := eventbus.BlockPayload{
		Position:      [3]int{p.X, p.Y, p.Z},
		Previous:      uint8(prev),
		Block:         uint8(id),
		AudioPosition: audio,
		Tick:          tick,
	}

	ctx := context.Background()
	if id == block.AirBlockID {
		payload.Audio = w.Blocks.Get(prev).AudioOnDestroy
		w.metrics.BlockEdits.WithLabelValues("destroy").Inc()
		w.publish(ctx, eventbus.EventBlockDestroyed, payload)
		w.publish(ctx, eventbus.EventDropSpawned, eventbus.DropPayload{
			ID:       drop.ID.String(),
			Item:     uint16(drop.Item),
			Position: drop.Position,
			Velocity: drop.Velocity,
		})
	} else {
		payload.Audio = w.Blocks.Get(id).AudioOnPlace
		w.metrics.BlockEdits.WithLabelValues("place").Inc()
		w.publish(ctx, eventbus.EventBlockPlaced, payload)
	}
	return true
}

// neighbourLow и neighbourHigh задают соседние стеки, до которых может дойти
// свет от правки в локальной координате l
func neighbourLow(l int) int {
	if l <= mesher.MaxLightRadius {
		return -1
	}
	return 0
}

func neighbourHigh(l int) int {
	if l >= vec.ChunkSize-mesher.MaxLightRadius {
		return 1
	}
	return 0
}

// TrySetBlock ставит блок, если он не пересекается с коробкой сущности
func (w *World) TrySetBlock(entity physics.AABB, p vec.Vec3, id block.BlockID, audio mgl64.Vec3) bool {
	if entity.Intersects(physics.FromBlock(p)) {
		return false
	}
	return w.SetBlock(p, id, audio)
}

// SettleTop возвращает позицию над самым верхним непустым блоком колонны
func (w *World) SettleTop(x, y int) mgl64.Vec3 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.settleTop(x, y)
}

func (w *World) settleTop(x, y int) mgl64.Vec3 {
	p := vec.Vec3{X: x, Y: y}
	for p.Z = vec.StackSizeZ - 1; p.Z > 0; p.Z-- {
		if w.blockAt(p) != block.AirBlockID {
			p.Z++
			return p.Float().Add(mgl64.Vec3{0.5, 0.5, 0})
		}
	}
	return p.Float()
}

// Stats сводка состояния мира
type Stats struct {
	Name         string     `json:"name"`
	Stacks       int        `json:"stacks"`
	Generated    int        `json:"generated"`
	Meshed       int        `json:"meshed"`
	Waiting      int        `json:"waiting"`
	InFlight     int        `json:"in_flight"`
	Ready        bool       `json:"ready"`
	Progress     float64    `json:"progress"`
	Tick         int64      `json:"tick"`
	DayCycleTick int64      `json:"day_cycle_tick"`
	Drops        int        `json:"drops"`
	Tracked      [3]float64 `json:"tracked"`
}

// Stats возвращает сводку состояния мира
func (w *World) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()

	st := Stats{
		Name:         w.name,
		Stacks:       len(w.stacks),
		InFlight:     w.sched.inFlight,
		Ready:        w.sched.ready,
		Progress:     w.sched.progress,
		Tick:         w.currentTick,
		DayCycleTick: w.dayCycleTick,
		Drops:        len(w.drops),
		Tracked:      w.tracked,
	}
	for _, s := range w.stacks {
		if s.IsGenerated {
			st.Generated++
		}
		if s.IsMeshed {
			st.Meshed++
		}
		if s.IsWaitingForTask {
			st.Waiting++
		}
	}
	return st
}

// Ready мир прогружен до минимальной дальности
func (w *World) Ready() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.sched.ready
}

// Progress прогресс начальной загрузки от 0 до 1
func (w *World) Progress() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.sched.progress
}

// Run запускает воркеры и цикл тиков до отмены ctx. Раз в autoSaveInterval
// мир записывается на диск.
func (w *World) Run(ctx context.Context, tickRate int) error {
	if tickRate <= 0 {
		tickRate = config.DefaultTickRate
	}

	w.Start(ctx)

	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()

	autoSave := time.NewTicker(autoSaveInterval)
	defer autoSave.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Update(ctx)
			w.Tick()
		case <-autoSave.C:
			if w.storage == nil {
				continue
			}
			if err := w.WriteSave(ctx); err != nil {
				w.log.Error("Ошибка автосохранения: %v", err)
			}
		}
	}
}

// Close дожидается выполняющихся задач, останавливает воркеры, записывает
// сохранение и закрывает хранилище
func (w *World) Close(ctx context.Context) error {
	w.Stop(ctx)

	if w.storage == nil {
		return nil
	}

	saveErr := w.WriteSave(ctx)
	if err := w.storage.Close(); err != nil && saveErr == nil {
		saveErr = err
	}
	return saveErr
}

func (w *World) publish(ctx context.Context, eventType string, payload interface{}) {
	if err := eventbus.Emit(ctx, w.events, w.name, eventType, payload); err != nil {
		w.log.Warn("Событие %s не опубликовано: %v", eventType, err)
	}
}
