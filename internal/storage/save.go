package storage

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/willf/bitset"
	"golang.org/x/sync/errgroup"

	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/palette"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// ErrNoSaveLoaded операция требует загруженного сохранения
var ErrNoSaveLoaded = errors.New("сохранение не загружено")

// regionWriteParallelism ограничение одновременной записи файлов регионов
const regionWriteParallelism = 4

// SaveInfo найденное сохранение
type SaveInfo struct {
	Metadata *Metadata
	Path     string
}

// ScanForSaves перечисляет сохранения в каталоге; недействительные пропускаются
func ScanForSaves(savesDir string) []SaveInfo {
	log := logging.GetStorageLogger()

	dirs, err := os.ReadDir(savesDir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Error("Не удалось прочитать каталог сохранений %s: %v", savesDir, err)
		}
		return nil
	}

	var saves []SaveInfo
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		path := filepath.Join(savesDir, d.Name())
		metaPath := filepath.Join(path, MetadataFileName)
		if _, err := os.Stat(metaPath); err != nil {
			continue
		}

		meta, err := ReadMetadata(metaPath)
		if err != nil {
			log.Error("Недействительный файл метаданных %s: %v", metaPath, err)
			continue
		}
		saves = append(saves, SaveInfo{Metadata: meta, Path: path})
	}

	sort.Slice(saves, func(i, j int) bool {
		return saves[i].Metadata.CreationDate.Before(saves[j].Metadata.CreationDate)
	})
	return saves
}

// SaveDirName строит имя каталога из отображаемого имени:
// нижний регистр, пробелы заменяются на '-', остаются только ASCII буквы, цифры и '-'
func SaveDirName(displayName string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(displayName) {
		switch {
		case r == ' ':
			sb.WriteByte('-')
		case r == '-', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// CreateSave создаёт каталог сохранения со случайным сидом
func CreateSave(savesDir, displayName string) (string, error) {
	return CreateSaveWithSeed(savesDir, displayName, rand.Int31())
}

// CreateSaveWithSeed создаёт каталог сохранения и файл метаданных
func CreateSaveWithSeed(savesDir, displayName string, seed int32) (string, error) {
	name := SaveDirName(displayName)
	if name == "" {
		return "", fmt.Errorf("недопустимое имя сохранения %q", displayName)
	}

	path := filepath.Join(savesDir, name)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%w: %s", ErrSaveExists, path)
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return "", fmt.Errorf("ошибка создания сохранения: %w", err)
	}

	meta := NewMetadata(displayName, seed)
	if err := meta.WriteFile(filepath.Join(path, MetadataFileName)); err != nil {
		return "", err
	}

	logging.GetStorageLogger().Info("Создано сохранение %q в %s (сид %d)", displayName, path, seed)
	return path, nil
}

// Options параметры открытия сохранения
type Options struct {
	// Mode режим сжатия для новых записей; чтение поддерживает все режимы
	Mode Mode
}

// DiskStorage открытое сохранение: метаданные, индекс регионов и кэш
// загруженных регионов. Регионы загружаются при первом обращении и
// остаются в памяти до закрытия сохранения.
type DiskStorage struct {
	mu sync.Mutex

	dir      string
	meta     *Metadata
	index    *RegionIndex
	regions  map[vec.Vec2]*Region
	ids      *block.IDMap
	entities *EntityStore
	mode     Mode

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	log *logging.Logger
}

// LoadSave открывает сохранение. При ошибке состояние не создаётся.
func LoadSave(dir string, opts Options) (*DiskStorage, error) {
	log := logging.GetStorageLogger()

	metaPath := filepath.Join(dir, MetadataFileName)
	meta, err := ReadMetadata(metaPath)
	if err != nil {
		log.Error("Не удалось загрузить метаданные %s: %v", metaPath, err)
		return nil, err
	}

	index, err := ReadRegionIndex(filepath.Join(dir, RegionIndexFileName))
	if errors.Is(err, os.ErrNotExist) {
		log.Warn("Индекс регионов не найден, создаётся новый")
		index = NewRegionIndex()
	} else if err != nil {
		return nil, err
	}

	ids, err := block.LoadIDMap(filepath.Join(dir, BlockMapFileName), filepath.Join(dir, ItemMapFileName))
	if err != nil {
		return nil, err
	}

	mode := opts.Mode
	if mode == 0 {
		mode = ModePalette
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("ошибка создания zstd decoder: %w", err)
	}

	entities, err := OpenEntityStore(filepath.Join(dir, EntitiesDirName))
	if err != nil {
		encoder.Close()
		decoder.Close()
		return nil, err
	}

	s := &DiskStorage{
		dir:      dir,
		meta:     meta,
		index:    index,
		regions:  make(map[vec.Vec2]*Region),
		ids:      ids,
		entities: entities,
		mode:     mode,
		encoder:  encoder,
		decoder:  decoder,
		log:      log,
	}

	log.Info("Загружено сохранение %q", meta.DisplayName)
	log.Debug("Каталог: %s, регионов: %d, режим: %v", dir, index.Len(), mode)
	return s, nil
}

// Dir каталог сохранения
func (s *DiskStorage) Dir() string {
	return s.dir
}

// Metadata возвращает копию метаданных
func (s *DiskStorage) Metadata() Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.meta
}

// IDMap карта идентификаторов блоков и предметов сохранения
func (s *DiskStorage) IDMap() *block.IDMap {
	return s.ids
}

// Entities хранилище сущностей сохранения
func (s *DiskStorage) Entities() *EntityStore {
	return s.entities
}

// SetElapsed обновляет счётчики тиков для следующей записи метаданных
func (s *DiskStorage) SetElapsed(ticks, dayCycleTicks int64) {
	s.mu.Lock()
	s.meta.ElapsedTicks = ticks
	s.meta.ElapsedDayCycleTicks = dayCycleTicks
	s.mu.Unlock()
}

// RegionCount количество регионов в индексе
func (s *DiskStorage) RegionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Len()
}

// region возвращает регион ячейки, загружая его при первом обращении. nil: региона нет.
func (s *DiskStorage) region(cell vec.Vec2) (*Region, error) {
	if r, ok := s.regions[cell]; ok {
		return r, nil
	}

	n, ok := s.index.Lookup(cell)
	if !ok {
		return nil, nil
	}

	r, err := ReadRegionFile(filepath.Join(s.dir, RegionFileName(n)))
	if err != nil {
		return nil, err
	}
	s.regions[cell] = r
	return r, nil
}

// regionOrCreate возвращает регион ячейки, создавая новый при отсутствии
func (s *DiskStorage) regionOrCreate(cell vec.Vec2) (*Region, error) {
	r, err := s.region(cell)
	if err != nil || r != nil {
		return r, err
	}

	s.index.Assign(cell)
	r = NewRegion()
	s.regions[cell] = r
	return r, nil
}

// LoadStack распаковывает найденные на диске чанки стека в dst.
// Возвращает набор номеров загруженных чанков.
func (s *DiskStorage) LoadStack(pos vec.Vec2, dst [][]block.BlockID) (*bitset.BitSet, error) {
	loaded := bitset.New(vec.StackChunkCount)

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.region(pos.ToRegionCoords())
	if err != nil {
		return loaded, err
	}
	if r == nil || !r.ContainsStack(pos) {
		return loaded, nil
	}

	for z := 0; z < vec.StackChunkCount && z < len(dst); z++ {
		chunkPos := vec.Vec3{X: pos.X, Y: pos.Y, Z: z}
		payload, e, ok := r.GetChunkSafe(chunkPos)
		if !ok {
			continue
		}
		if err := s.decode(payload, e, dst[z]); err != nil {
			return loaded, fmt.Errorf("чанк %v: %w", chunkPos, err)
		}
		loaded.Set(uint(z))
	}
	return loaded, nil
}

func (s *DiskStorage) decode(payload []byte, e Entry, dst []block.BlockID) error {
	switch e.Mode {
	case ModePalette:
		return palette.DecodePayload(payload, int(e.PaletteLen), dst)
	case ModePaletteZstd:
		raw, err := s.decoder.DecodeAll(payload, nil)
		if err != nil {
			return fmt.Errorf("ошибка распаковки zstd: %w", err)
		}
		return palette.DecodePayload(raw, int(e.PaletteLen), dst)
	default:
		return fmt.Errorf("неизвестный режим сжатия %v", e.Mode)
	}
}

// StoreChunk сжимает чанк и записывает его в регион в памяти.
// На диск регион попадает при Flush.
func (s *DiskStorage) StoreChunk(pos vec.Vec3, chunk []block.BlockID) error {
	payload, paletteLen := palette.EncodePayload(chunk)
	if s.mode == ModePaletteZstd {
		payload = s.encoder.EncodeAll(payload, make([]byte, 0, len(payload)/4))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.regionOrCreate(pos.ToVec2().ToRegionCoords())
	if err != nil {
		return err
	}
	r.Insert(pos, s.mode, paletteLen, payload)
	return nil
}

// Flush записывает метаданные, изменённые регионы, индекс регионов и карты идентификаторов
func (s *DiskStorage) Flush(ctx context.Context) error {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("ошибка создания каталога сохранения: %w", err)
	}

	if err := s.meta.WriteFile(filepath.Join(s.dir, MetadataFileName)); err != nil {
		return err
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(regionWriteParallelism)

	written := 0
	for cell, r := range s.regions {
		if !r.Dirty() {
			continue
		}
		n, _ := s.index.Lookup(cell)
		path := filepath.Join(s.dir, RegionFileName(n))
		region := r
		g.Go(func() error {
			return region.WriteFile(path)
		})
		written++
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := s.index.WriteFile(filepath.Join(s.dir, RegionIndexFileName)); err != nil {
		return err
	}

	if err := s.ids.Write(filepath.Join(s.dir, BlockMapFileName), filepath.Join(s.dir, ItemMapFileName)); err != nil {
		return err
	}

	s.log.Info("Сохранение %q записано на диск за %.2fмс (регионов: %d)",
		s.meta.DisplayName, float64(time.Since(start).Microseconds())/1000, written)
	return nil
}

// Close закрывает хранилище сущностей и кодеки. Незаписанные изменения теряются.
func (s *DiskStorage) Close() error {
	s.encoder.Close()
	s.decoder.Close()
	return s.entities.Close()
}
