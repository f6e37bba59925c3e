package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

func setupTestSave(t *testing.T, mode Mode) (*DiskStorage, string) {
	t.Helper()

	savesDir, err := os.MkdirTemp("", "voxel-saves-test")
	if err != nil {
		t.Fatalf("Не удалось создать временную директорию: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(savesDir) })

	path, err := CreateSaveWithSeed(savesDir, "Test World", 1234)
	if err != nil {
		t.Fatalf("Не удалось создать сохранение: %v", err)
	}

	s, err := LoadSave(path, Options{Mode: mode})
	if err != nil {
		t.Fatalf("Не удалось загрузить сохранение: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s, savesDir
}

func testChunk(seed int) []block.BlockID {
	chunk := make([]block.BlockID, vec.ChunkVolume)
	for i := range chunk {
		if (i/vec.ChunkArea)+seed%7 < 12 {
			chunk[i] = block.BlockID(1 + (i+seed)%3)
		}
	}
	return chunk
}

func TestSaveDirName(t *testing.T) {
	assert.Equal(t, "my-world-2", SaveDirName("My World 2"))
	assert.Equal(t, "-mir", SaveDirName("Мир mir!"))
	assert.Equal(t, "", SaveDirName("Мир"))
}

func TestCreateSaveFailsWhenExists(t *testing.T) {
	dir := t.TempDir()
	_, err := CreateSaveWithSeed(dir, "World", 1)
	require.NoError(t, err)

	_, err = CreateSaveWithSeed(dir, "world", 2)
	assert.ErrorIs(t, err, ErrSaveExists)

	_, err = CreateSave(dir, "!!!")
	assert.Error(t, err)
}

func TestLoadSaveVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSaveWithSeed(dir, "Old World", 5)
	require.NoError(t, err)

	meta := NewMetadata("Old World", 5)
	meta.Version = Version + 1
	require.NoError(t, meta.WriteFile(filepath.Join(path, MetadataFileName)))

	s, err := LoadSave(path, Options{})
	assert.Nil(t, s)
	assert.True(t, errors.Is(err, ErrVersionMismatch), "ожидалась ошибка версии, получено %v", err)

	// Хранилище сущностей не должно было создаться
	_, statErr := os.Stat(filepath.Join(path, EntitiesDirName))
	assert.True(t, os.IsNotExist(statErr))
}

func TestLoadSaveMissingMetadata(t *testing.T) {
	s, err := LoadSave(t.TempDir(), Options{})
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrInvalidSave)
}

func TestScanForSavesSkipsInvalid(t *testing.T) {
	dir := t.TempDir()
	_, err := CreateSaveWithSeed(dir, "Good", 1)
	require.NoError(t, err)

	bad := filepath.Join(dir, "bad")
	require.NoError(t, os.MkdirAll(bad, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(bad, MetadataFileName), []byte("{не json"), 0644))

	future := filepath.Join(dir, "future")
	require.NoError(t, os.MkdirAll(future, 0755))
	data, _ := json.Marshal(Metadata{Version: 99, DisplayName: "Future"})
	require.NoError(t, os.WriteFile(filepath.Join(future, MetadataFileName), data, 0644))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "empty"), 0755))

	saves := ScanForSaves(dir)
	require.Len(t, saves, 1)
	assert.Equal(t, "Good", saves[0].Metadata.DisplayName)
	assert.Equal(t, int32(1), saves[0].Metadata.Seed)
}

func TestStoreFlushLoadStack(t *testing.T) {
	for _, mode := range []Mode{ModePalette, ModePaletteZstd} {
		t.Run(mode.String(), func(t *testing.T) {
			s, _ := setupTestSave(t, mode)
			stack := vec.Vec2{X: 17, Y: -3}

			chunks := map[int][]block.BlockID{0: testChunk(0), 3: testChunk(3), 7: testChunk(7)}
			for z, c := range chunks {
				require.NoError(t, s.StoreChunk(vec.Vec3{X: stack.X, Y: stack.Y, Z: z}, c))
			}
			s.SetElapsed(500, 12000)
			require.NoError(t, s.Flush(context.Background()))
			path := s.Dir()
			require.NoError(t, s.Close())

			reopened, err := LoadSave(path, Options{Mode: mode})
			require.NoError(t, err)
			defer reopened.Close()

			assert.Equal(t, int64(500), reopened.Metadata().ElapsedTicks)
			assert.Equal(t, 1, reopened.RegionCount())

			dst := make([][]block.BlockID, vec.StackChunkCount)
			for i := range dst {
				dst[i] = make([]block.BlockID, vec.ChunkVolume)
			}
			loaded, err := reopened.LoadStack(stack, dst)
			require.NoError(t, err)
			assert.Equal(t, uint(3), loaded.Count())

			for z, c := range chunks {
				assert.True(t, loaded.Test(uint(z)))
				assert.Equal(t, c, dst[z], "чанк %d", z)
			}
			assert.False(t, loaded.Test(1))

			// Стек в другом регионе
			empty, err := reopened.LoadStack(vec.Vec2{X: 100, Y: 100}, dst)
			require.NoError(t, err)
			assert.Equal(t, uint(0), empty.Count())
		})
	}
}

func TestEntityStoreDropsAndPosition(t *testing.T) {
	s, _ := setupTestSave(t, ModePalette)
	ctx := context.Background()
	es := s.Entities()

	_, found, err := es.LoadPosition(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, es.SavePosition(ctx, [3]float64{1.5, -2, 80}))
	pos, found, err := es.LoadPosition(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, [3]float64{1.5, -2, 80}, pos)

	first := []DropRecord{
		{ID: uuid.New(), Item: 3, Position: [3]float64{1, 2, 3}},
		{ID: uuid.New(), Item: 4, Position: [3]float64{4, 5, 6}, SpawnTick: 10},
	}
	require.NoError(t, es.ReplaceDrops(ctx, first))

	drops, err := es.LoadDrops(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, first, drops)

	second := []DropRecord{{ID: uuid.New(), Item: 9}}
	require.NoError(t, es.ReplaceDrops(ctx, second))
	drops, err = es.LoadDrops(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, drops)
}
