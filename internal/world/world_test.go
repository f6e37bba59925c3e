package world

import (
	"container/heap"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-engine/assets"
	"github.com/annel0/voxel-engine/internal/eventbus"
	"github.com/annel0/voxel-engine/internal/physics"
	"github.com/annel0/voxel-engine/internal/storage"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

const testSeed = 1337

func testOptions() Options {
	return Options{
		ViewDistance:        1,
		MinimumViewDistance: 1,
		TaskCountLimit:      4,
		Workers:             2,
	}
}

func newTestWorld(t *testing.T, opts Options) *World {
	t.Helper()
	reg, biomes, err := assets.LoadDefault()
	require.NoError(t, err, "встроенный контент должен загружаться")
	return New(testSeed, reg, biomes, opts)
}

// runUntil вызывает Update, пока не выполнится условие
func runUntil(t *testing.T, w *World, cond func() bool) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		w.Update(context.Background())
		if cond() {
			return
		}
		if w.sched.running {
			time.Sleep(2 * time.Millisecond)
		}
	}
	t.Fatalf("мир не дошёл до нужного состояния: %+v", w.Stats())
}

// loadAround прогружает окрестность 3x3 вокруг начала координат
func loadAround(t *testing.T, w *World) {
	t.Helper()
	runUntil(t, w, func() bool { return w.Stats().Meshed >= 9 })
}

// surface возвращает верхний непустой блок колонны
func surface(t *testing.T, w *World, x, y int) vec.Vec3 {
	t.Helper()
	top := vec.FloorVec3(w.SettleTop(x, y))
	top.Z--
	require.NotEqual(t, block.AirBlockID, w.GetBlock(top), "в колонне должен быть блок")
	return top
}

func TestTaskPriorityOrder(t *testing.T) {
	center := vec.Vec2{}
	var q taskQueue

	heap.Push(&q, &task{kind: taskMesh, priority: taskPriority(center, vec.Vec2{}, meshBias)})
	heap.Push(&q, &task{kind: taskGenerate, priority: taskPriority(center, vec.Vec2{X: 5, Y: 5}, generateBias)})
	heap.Push(&q, &task{kind: taskGenerate, priority: taskPriority(center, vec.Vec2{X: 1}, generateBias)})

	first := heap.Pop(&q).(*task)
	second := heap.Pop(&q).(*task)
	third := heap.Pop(&q).(*task)

	assert.Equal(t, taskGenerate, first.kind)
	assert.InDelta(t, 0.5, first.priority, 1e-9, "ближняя генерация идёт первой")
	assert.Equal(t, taskGenerate, second.kind, "генерация важнее построения меша")
	assert.Equal(t, taskMesh, third.kind)
	assert.InDelta(t, 1.0, third.priority, 1e-9)
}

func TestSchedulerInvariants(t *testing.T) {
	opts := testOptions()
	opts.TaskCountLimit = 3
	w := newTestWorld(t, opts)
	w.Start(context.Background())
	defer w.Stop(context.Background())

	generated := make(map[vec.Vec2]bool)

	for i := 0; i < 2000; i++ {
		w.Update(context.Background())

		w.mu.RLock()
		waiting := 0
		for pos, s := range w.stacks {
			if s.IsWaitingForTask {
				waiting++
			}
			if generated[pos] {
				assert.True(t, s.IsGenerated, "стек %v перестал быть сгенерированным", pos)
			}
			if s.IsGenerated {
				generated[pos] = true
			}
			if s.IsMeshed {
				assert.True(t, s.IsGenerated, "меш без генерации в стеке %v", pos)
			}
		}
		inFlight := w.sched.inFlight
		w.mu.RUnlock()

		require.LessOrEqual(t, inFlight, opts.TaskCountLimit, "превышен потолок задач")
		require.Equal(t, inFlight, waiting, "у каждого ждущего стека ровно одна задача в работе")

		if w.Stats().Meshed >= 9 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	st := w.Stats()
	assert.True(t, st.Ready, "мир должен стать готовым")
	assert.Equal(t, 1.0, st.Progress)
	assert.Equal(t, 25, st.Stacks, "радиус прогрузки 2 вокруг центра")
	assert.Equal(t, 9, st.Meshed, "меш строится только при всех сгенерированных соседях")
}

func TestLoadingProgressTarget(t *testing.T) {
	w := newTestWorld(t, testOptions())

	w.Update(context.Background())
	assert.False(t, w.Ready())
	// Первый тик: 4 задачи генерации выполнены, цель 1*1*4*2 = 8
	runUntil(t, w, func() bool { return w.Ready() })
	assert.Equal(t, 1.0, w.Progress())
}

func TestGetBlockOutOfRange(t *testing.T) {
	w := newTestWorld(t, testOptions())
	loadAround(t, w)

	assert.Equal(t, block.AirBlockID, w.GetBlock(vec.Vec3{X: 0, Y: 0, Z: -1}))
	assert.Equal(t, block.AirBlockID, w.GetBlock(vec.Vec3{X: 0, Y: 0, Z: vec.StackSizeZ}))
	assert.Equal(t, block.AirBlockID, w.GetBlock(vec.Vec3{X: 10000, Y: 0, Z: 10}), "незагруженный стек читается как воздух")

	assert.False(t, w.SetBlock(vec.Vec3{X: 10000, Y: 0, Z: 10}, block.StoneBlockID, mgl64.Vec3{}))
	assert.False(t, w.SetBlock(vec.Vec3{X: 0, Y: 0, Z: -1}, block.StoneBlockID, mgl64.Vec3{}))
}

func TestSetBlockUnmeshesNeighbours(t *testing.T) {
	w := newTestWorld(t, testOptions())
	loadAround(t, w)

	edit := vec.Vec3{X: 3, Y: 20, Z: 200}
	require.True(t, w.SetBlock(edit, block.StoneBlockID, mgl64.Vec3{}))
	assert.Equal(t, block.StoneBlockID, w.GetBlock(edit))

	// x=3 задевает левого соседа, y=20 задевает верхнего
	unmeshed := map[vec.Vec2]bool{
		{X: -1, Y: 0}: true, {X: 0, Y: 0}: true,
		{X: -1, Y: 1}: true, {X: 0, Y: 1}: true,
	}
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			pos := vec.Vec2{X: dx, Y: dy}
			s := w.Stack(pos)
			require.NotNil(t, s)
			assert.Equal(t, !unmeshed[pos], s.IsMeshed, "стек %v", pos)
		}
	}

	assert.Equal(t, []int{200 >> vec.ChunkShift}, w.Stack(vec.Vec2{}).Dirty(), "изменённый чанк помечен")

	// После перестройки меши снова готовы
	loadAround(t, w)
}

func TestSetBlockInCentreTouchesOnlyOwnStack(t *testing.T) {
	w := newTestWorld(t, testOptions())
	loadAround(t, w)

	require.True(t, w.SetBlock(vec.Vec3{X: 16, Y: 16, Z: 200}, block.StoneBlockID, mgl64.Vec3{}))
	assert.Equal(t, 8, w.Stats().Meshed)
	assert.False(t, w.Stack(vec.Vec2{}).IsMeshed)
}

func TestDestroySpawnsDropAndPublishes(t *testing.T) {
	bus := eventbus.NewMemoryBus(16)
	events := make(chan *eventbus.Event, 8)
	_, err := bus.Subscribe(context.Background(), eventbus.Filter{}, func(ctx context.Context, ev *eventbus.Event) {
		events <- ev
	})
	require.NoError(t, err)

	opts := testOptions()
	opts.Events = bus
	w := newTestWorld(t, opts)
	loadAround(t, w)

	top := surface(t, w, 5, 5)
	prev := w.GetBlock(top)
	audio := mgl64.Vec3{1, 2, 3}

	require.True(t, w.SetBlock(top, block.AirBlockID, audio))

	drops := w.Drops()
	require.Len(t, drops, 1, "разрушение создаёт предмет")
	assert.Equal(t, w.Blocks.Get(prev).ItemDrop, drops[0].Item)
	assert.Equal(t, top.Float().Add(mgl64.Vec3{0.5, 0.5, 0}), drops[0].Position)
	assert.InDelta(t, -0.0075, drops[0].Velocity[0], 1e-12)
	assert.InDelta(t, -0.0075, drops[0].Velocity[1], 1e-12)
	assert.InDelta(t, 0.05, drops[0].Velocity[2], 1e-12)

	// Повторная установка того же блока ничего не создаёт
	require.True(t, w.SetBlock(top, block.AirBlockID, audio))
	assert.Len(t, w.Drops(), 1)

	// Установка блока не создаёт предмет
	require.True(t, w.SetBlock(top, prev, audio))
	assert.Len(t, w.Drops(), 1)

	got := make(map[string]*eventbus.Event)
	deadline := time.After(2 * time.Second)
	want := []string{eventbus.EventBlockDestroyed, eventbus.EventBlockPlaced, eventbus.EventDropSpawned}
	complete := func() bool {
		for _, typ := range want {
			if got[typ] == nil {
				return false
			}
		}
		return true
	}
	for !complete() {
		select {
		case ev := <-events:
			got[ev.Type] = ev
		case <-deadline:
			t.Fatalf("получены не все события: %v", got)
		}
	}

	var destroyed eventbus.BlockPayload
	require.NoError(t, got[eventbus.EventBlockDestroyed].Decode(&destroyed))
	assert.Equal(t, [3]int{top.X, top.Y, top.Z}, destroyed.Position)
	assert.Equal(t, uint8(prev), destroyed.Previous)
	assert.Equal(t, [3]float64{1, 2, 3}, destroyed.AudioPosition)
	assert.Equal(t, w.Blocks.Get(prev).AudioOnDestroy, destroyed.Audio)

	var placed eventbus.BlockPayload
	require.NoError(t, got[eventbus.EventBlockPlaced].Decode(&placed))
	assert.Equal(t, uint8(prev), placed.Block)

	var drop eventbus.DropPayload
	require.NoError(t, got[eventbus.EventDropSpawned].Decode(&drop))
	assert.Equal(t, drops[0].ID.String(), drop.ID)
}

func TestNewItemDropVelocity(t *testing.T) {
	d := NewItemDrop(7, vec.Vec3{X: 1, Y: 2, Z: 3}, 46)

	assert.Equal(t, block.ItemID(7), d.Item)
	assert.Equal(t, mgl64.Vec3{1.5, 2.5, 3}, d.Position)
	assert.InDelta(t, -0.0075, d.Velocity[0], 1e-12, "46 mod 23 = 0")
	assert.InDelta(t, (12.0/17-0.5)*0.015, d.Velocity[1], 1e-12, "46 mod 17 = 12")
	assert.Equal(t, int64(46), d.SpawnTick)
	assert.True(t, d.BoundingBox().Contains(d.Position.Add(mgl64.Vec3{0, 0, 0.1})))
}

func TestTrySetBlockRespectsEntity(t *testing.T) {
	w := newTestWorld(t, testOptions())
	loadAround(t, w)

	target := vec.Vec3{X: 8, Y: 8, Z: 220}
	before := w.GetBlock(target)
	player := physics.FromEntity(mgl64.Vec3{8.5, 8.5, 220}, mgl64.Vec3{0.6, 0.6, 1.8})

	assert.False(t, w.TrySetBlock(player, target, block.StoneBlockID, mgl64.Vec3{}), "блок внутри сущности не ставится")
	assert.Equal(t, before, w.GetBlock(target))

	assert.True(t, w.TrySetBlock(player, target.Add(vec.Vec3{X: 3}), block.StoneBlockID, mgl64.Vec3{}))
}

func TestCastRay(t *testing.T) {
	solidAt := func(blocks ...vec.Vec3) func(vec.Vec3) (block.BlockID, bool) {
		return func(p vec.Vec3) (block.BlockID, bool) {
			for _, b := range blocks {
				if b == p {
					return block.StoneBlockID, true
				}
			}
			return block.AirBlockID, false
		}
	}

	hit := castRay(mgl64.Vec3{0.5, 0.5, 10.5}, mgl64.Vec3{0, 0, -1}, RayRadius, solidAt(vec.Vec3{Z: 5}))
	assert.True(t, hit.Hit)
	assert.Equal(t, vec.Vec3{Z: 5}, hit.Position)
	assert.Equal(t, vec.Vec3{Z: 1}, hit.Normal, "луч вошёл через верхнюю грань")

	hit = castRay(mgl64.Vec3{0.5, 0.5, 0.5}, mgl64.Vec3{1, 0, 0}, RayRadius, solidAt(vec.Vec3{X: 8}))
	assert.True(t, hit.Hit, "граница x=8 на расстоянии 7.5")
	assert.Equal(t, vec.Vec3{X: -1}, hit.Normal)

	hit = castRay(mgl64.Vec3{0.5, 0.5, 0.5}, mgl64.Vec3{1, 0, 0}, RayRadius, solidAt(vec.Vec3{X: 9}))
	assert.False(t, hit.Hit, "граница x=9 дальше радиуса")

	hit = castRay(mgl64.Vec3{-0.5, 0.5, 0.5}, mgl64.Vec3{-1, 0, 0}, RayRadius, solidAt(vec.Vec3{X: -3}))
	assert.True(t, hit.Hit)
	assert.Equal(t, vec.Vec3{X: -3}, hit.Position)
	assert.Equal(t, vec.Vec3{X: 1}, hit.Normal)

	hit = castRay(mgl64.Vec3{0.5, 0.5, 0.5}, mgl64.Vec3{}, RayRadius, solidAt(vec.Vec3{X: 1}))
	assert.False(t, hit.Hit, "нулевое направление")

	hit = castRay(mgl64.Vec3{2.5, 0.5, 0.5}, mgl64.Vec3{1, 1, 0}, RayRadius, solidAt(vec.Vec3{X: 2}))
	assert.True(t, hit.Hit, "луч, начатый внутри блока")
	assert.Equal(t, vec.Vec3{}, hit.Normal)
}

func TestRaySolidSkipsLiquids(t *testing.T) {
	w := newTestWorld(t, testOptions())
	loadAround(t, w)

	water := w.Blocks.MustLookup("Water")
	require.True(t, w.SetBlock(vec.Vec3{X: 5, Y: 5, Z: 200}, block.StoneBlockID, mgl64.Vec3{}))
	require.True(t, w.SetBlock(vec.Vec3{X: 5, Y: 5, Z: 203}, water, mgl64.Vec3{}))

	hit := w.RaySolid(mgl64.Vec3{5.5, 5.5, 205.5}, mgl64.Vec3{0, 0, -1})
	require.True(t, hit.Hit)
	assert.Equal(t, vec.Vec3{X: 5, Y: 5, Z: 200}, hit.Position)
	assert.Equal(t, block.StoneBlockID, hit.Block)
	assert.Equal(t, vec.Vec3{Z: 1}, hit.Normal)
}

func TestTickSettlesTrackedPosition(t *testing.T) {
	w := newTestWorld(t, testOptions())

	w.Tick()
	tick, _ := w.CurrentTick()
	assert.Equal(t, int64(0), tick, "до готовности тики не идут")

	loadAround(t, w)
	w.Tick()

	tick, day := w.CurrentTick()
	assert.Equal(t, int64(1), tick)
	assert.Equal(t, int64(1), day)
	assert.Equal(t, w.SettleTop(0, 0), w.TrackedPosition(), "позиция опущена на поверхность")
}

func TestEvictionOutsideRange(t *testing.T) {
	w := newTestWorld(t, testOptions())
	loadAround(t, w)
	require.NotNil(t, w.Stack(vec.Vec2{}))

	w.SetTrackedPosition(mgl64.Vec3{100 * vec.ChunkSize, 0, 100})
	w.Update(context.Background())

	assert.Nil(t, w.Stack(vec.Vec2{}), "построенный стек вне дальности выгружается")
	assert.Nil(t, w.Stack(vec.Vec2{X: 1, Y: 1}))
	assert.NotNil(t, w.Stack(vec.Vec2{X: 100}), "новый центр создан")
}

func TestEvictionWhileMoving(t *testing.T) {
	opts := testOptions()
	w := newTestWorld(t, opts)
	loadAround(t, w)

	// внешнее кольцо радиуса vd+1 тоже держится в памяти
	side := 2*opts.ViewDistance + 3
	limit := side * side

	for step := 1; step <= 12; step++ {
		x := float64(3 * step * vec.ChunkSize)
		w.SetTrackedPosition(mgl64.Vec3{x, 0, 100})
		for i := 0; i < 3; i++ {
			w.Update(context.Background())
			require.LessOrEqual(t, len(w.stacks), limit, "шаг %d: стеки за пределами дальности не выгружаются", step)
		}
	}

	center := vec.Vec2{X: 36}
	for pos := range w.stacks {
		d := pos.Sub(center)
		assert.LessOrEqual(t, max(abs(d.X), abs(d.Y)), opts.ViewDistance+1, "стек %v вне окрестности", pos)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func createTestSave(t *testing.T) string {
	t.Helper()
	dir, err := storage.CreateSaveWithSeed(t.TempDir(), "Test World", testSeed)
	require.NoError(t, err)
	return dir
}

func TestLoadSaveVersionMismatch(t *testing.T) {
	dir := createTestSave(t)

	meta := storage.NewMetadata("Old", 1)
	meta.Version = storage.Version + 1
	require.NoError(t, meta.WriteFile(filepath.Join(dir, storage.MetadataFileName)))

	w, err := LoadSave(context.Background(), dir, testOptions())
	assert.Nil(t, w, "мир не создаётся")
	assert.ErrorIs(t, err, storage.ErrVersionMismatch)

	_, statErr := os.Stat(filepath.Join(dir, storage.EntitiesDirName))
	assert.True(t, os.IsNotExist(statErr), "хранилище сущностей не открывается")
}

func TestWriteSaveAndReload(t *testing.T) {
	dir := createTestSave(t)
	ctx := context.Background()

	opts := testOptions()
	opts.Compression = storage.ModePaletteZstd
	w, err := LoadSave(ctx, dir, opts)
	require.NoError(t, err)
	assert.Equal(t, "Test World", w.Name())
	assert.Equal(t, int32(testSeed), w.Seed)

	loadAround(t, w)
	for i := 0; i < 5; i++ {
		w.Tick()
	}

	top := surface(t, w, 12, 7)
	require.True(t, w.SetBlock(top, block.AirBlockID, mgl64.Vec3{}))
	placed := vec.Vec3{X: 40, Y: -3, Z: 230}
	require.True(t, w.SetBlock(placed, block.StoneBlockID, mgl64.Vec3{}))

	tracked := w.TrackedPosition()
	require.NoError(t, w.Close(ctx))

	st, err := storage.LoadSave(dir, storage.Options{})
	require.NoError(t, err)
	meta := st.Metadata()
	require.NoError(t, st.Close())
	assert.Equal(t, int64(5), meta.ElapsedTicks)

	w, err = LoadSave(ctx, dir, opts)
	require.NoError(t, err)
	defer w.Close(ctx)

	assert.Equal(t, tracked, w.TrackedPosition(), "позиция восстановлена")
	require.Len(t, w.Drops(), 1, "предмет восстановлен")
	tick, _ := w.CurrentTick()
	assert.Equal(t, int64(5), tick)

	loadAround(t, w)
	assert.Equal(t, block.AirBlockID, w.GetBlock(top), "разрушенный блок прочитан с диска")
	assert.Equal(t, block.StoneBlockID, w.GetBlock(placed), "поставленный блок прочитан с диска")
	assert.Equal(t, 1, w.Stack(vec.Vec2{}).LoadedFromDisk(), "с диска прочитан только изменённый чанк")
}

func TestEvictionStoresDirtyChunks(t *testing.T) {
	dir := createTestSave(t)
	ctx := context.Background()

	w, err := LoadSave(ctx, dir, testOptions())
	require.NoError(t, err)
	defer w.Close(ctx)

	loadAround(t, w)
	edit := vec.Vec3{X: 4, Y: 4, Z: 240}
	require.True(t, w.SetBlock(edit, block.StoneBlockID, mgl64.Vec3{}))
	runUntil(t, w, func() bool { return w.Stack(vec.Vec2{}).IsMeshed })

	w.SetTrackedPosition(mgl64.Vec3{50 * vec.ChunkSize, 0, 100})
	w.Update(ctx)
	require.Nil(t, w.Stack(vec.Vec2{}))

	// Возврат: стек читается из региона в памяти
	w.SetTrackedPosition(mgl64.Vec3{0.5, 0.5, 100})
	runUntil(t, w, func() bool {
		s := w.Stack(vec.Vec2{})
		return s != nil && s.IsGenerated
	})
	assert.Equal(t, block.StoneBlockID, w.GetBlock(edit), "правка пережила выгрузку")
}

func TestWriteSaveWithoutStorage(t *testing.T) {
	w := newTestWorld(t, testOptions())
	assert.ErrorIs(t, w.WriteSave(context.Background()), storage.ErrNoSaveLoaded)
	assert.NoError(t, w.Close(context.Background()))
}
