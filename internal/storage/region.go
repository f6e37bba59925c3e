package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"github.com/annel0/voxel-engine/internal/vec"
)

// Mode режим сжатия полезной нагрузки чанка
type Mode int32

const (
	// ModePalette палитра + упакованные индексы
	ModePalette Mode = 1
	// ModePaletteZstd то же, сжатое кадром zstd
	ModePaletteZstd Mode = 2
)

// String возвращает название режима
func (m Mode) String() string {
	switch m {
	case ModePalette:
		return "palette"
	case ModePaletteZstd:
		return "palette+zstd"
	default:
		return fmt.Sprintf("Mode(%d)", int32(m))
	}
}

// ParseMode разбирает название режима из конфигурации
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "palette":
		return ModePalette, nil
	case "zstd", "palette+zstd":
		return ModePaletteZstd, nil
	default:
		return 0, fmt.Errorf("неизвестный режим сжатия %q", s)
	}
}

// Entry запись индекса региона
type Entry struct {
	Offset     int32
	Size       int32
	Mode       Mode
	PaletteLen int32
}

// End возвращает смещение байта сразу после записи
func (e Entry) End() int32 {
	return e.Offset + e.Size
}

const (
	int32Size = 4
	entryInts = 7
	entrySize = entryInts * int32Size
)

// Region блоб со сжатыми чанками и индексом позиция чанка -> (смещение, размер).
// Позиции глобальные: (x, y) стека и номер чанка в стеке по z.
type Region struct {
	index map[vec.Vec3]Entry
	data  []byte
	dirty bool
}

// NewRegion создаёт пустой регион
func NewRegion() *Region {
	return &Region{index: make(map[vec.Vec3]Entry)}
}

// Len количество чанков в регионе
func (r *Region) Len() int {
	return len(r.index)
}

// Size размер блоба в байтах
func (r *Region) Size() int {
	return len(r.data)
}

// Dirty сообщает, менялся ли регион после последней записи на диск
func (r *Region) Dirty() bool {
	return r.dirty
}

// ContainsChunk проверяет наличие чанка
func (r *Region) ContainsChunk(pos vec.Vec3) bool {
	_, ok := r.index[pos]
	return ok
}

// ContainsStack проверяет, есть ли в регионе хотя бы один чанк стека
func (r *Region) ContainsStack(pos vec.Vec2) bool {
	for z := 0; z < vec.StackChunkCount; z++ {
		if r.ContainsChunk(vec.Vec3{X: pos.X, Y: pos.Y, Z: z}) {
			return true
		}
	}
	return false
}

// GetChunkSafe возвращает полезную нагрузку чанка. Срез ссылается на блоб
// региона и действителен до следующего Insert.
func (r *Region) GetChunkSafe(pos vec.Vec3) ([]byte, Entry, bool) {
	e, ok := r.index[pos]
	if !ok {
		return nil, Entry{}, false
	}
	return r.data[e.Offset:e.End():e.End()], e, true
}

// Insert записывает полезную нагрузку чанка. Запись того же размера
// перезаписывается на месте; иначе блоб перевыделяется, хвост сдвигается
// на разницу размеров, смещения последующих записей корректируются.
func (r *Region) Insert(pos vec.Vec3, mode Mode, paletteLen int, payload []byte) {
	r.dirty = true

	e, exists := r.index[pos]
	newSize := int32(len(payload))

	if !exists {
		e = Entry{Offset: int32(len(r.data)), Size: newSize, Mode: mode, PaletteLen: int32(paletteLen)}
		r.data = append(r.data, payload...)
		r.index[pos] = e
		return
	}

	delta := newSize - e.Size
	if delta != 0 {
		oldEnd := e.End()
		newData := make([]byte, int32(len(r.data))+delta)
		copy(newData, r.data[:e.Offset])
		copy(newData[e.Offset+newSize:], r.data[oldEnd:])
		r.data = newData

		for p, other := range r.index {
			if other.Offset > e.Offset {
				other.Offset += delta
				r.index[p] = other
			}
		}
	}

	e.Size = newSize
	e.Mode = mode
	e.PaletteLen = int32(paletteLen)
	r.index[pos] = e
	copy(r.data[e.Offset:e.End()], payload)
}

// Chunks позиции чанков в порядке расположения в блобе
func (r *Region) Chunks() []vec.Vec3 {
	return r.sortedPositions()
}

// sortedPositions возвращает позиции чанков, упорядоченные по смещению
func (r *Region) sortedPositions() []vec.Vec3 {
	positions := make([]vec.Vec3, 0, len(r.index))
	for p := range r.index {
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool {
		return r.index[positions[i]].Offset < r.index[positions[j]].Offset
	})
	return positions
}

// Validate проверяет, что записи покрывают блоб подряд и не пересекаются
func (r *Region) Validate() error {
	var next int32
	for _, p := range r.sortedPositions() {
		e := r.index[p]
		if e.Offset != next {
			return fmt.Errorf("чанк %v: смещение %d, ожидалось %d", p, e.Offset, next)
		}
		if e.Size < 0 || e.End() > int32(len(r.data)) {
			return fmt.Errorf("чанк %v: запись [%d,%d) выходит за блоб %d", p, e.Offset, e.End(), len(r.data))
		}
		next = e.End()
	}
	if next != int32(len(r.data)) {
		return fmt.Errorf("блоб %d байт, записи покрывают %d", len(r.data), next)
	}
	return nil
}

// MarshalBinary сериализует регион:
// [int32 count][count x (x, y, z, offset, size, mode, paletteLen)][blob]
func (r *Region) MarshalBinary() ([]byte, error) {
	out := make([]byte, int32Size+len(r.index)*entrySize+len(r.data))
	binary.LittleEndian.PutUint32(out, uint32(len(r.index)))

	p := int32Size
	for _, pos := range r.sortedPositions() {
		e := r.index[pos]
		fields := [entryInts]int32{int32(pos.X), int32(pos.Y), int32(pos.Z), e.Offset, e.Size, int32(e.Mode), e.PaletteLen}
		for _, f := range fields {
			binary.LittleEndian.PutUint32(out[p:], uint32(f))
			p += int32Size
		}
	}
	copy(out[p:], r.data)
	return out, nil
}

// UnmarshalBinary разбирает регион, записанный MarshalBinary
func (r *Region) UnmarshalBinary(data []byte) error {
	if len(data) < int32Size {
		return fmt.Errorf("файл региона короче заголовка: %d байт", len(data))
	}

	count := int(int32(binary.LittleEndian.Uint32(data)))
	if count < 0 || int32Size+count*entrySize > len(data) {
		return fmt.Errorf("повреждённый заголовок региона: %d записей", count)
	}

	index := make(map[vec.Vec3]Entry, count)
	p := int32Size
	for i := 0; i < count; i++ {
		var f [entryInts]int32
		for j := range f {
			f[j] = int32(binary.LittleEndian.Uint32(data[p:]))
			p += int32Size
		}
		index[vec.Vec3{X: int(f[0]), Y: int(f[1]), Z: int(f[2])}] = Entry{
			Offset:     f[3],
			Size:       f[4],
			Mode:       Mode(f[5]),
			PaletteLen: f[6],
		}
	}

	blob := make([]byte, len(data)-p)
	copy(blob, data[p:])

	r.index = index
	r.data = blob
	r.dirty = false
	return r.Validate()
}

// ReadRegionFile читает регион с диска
func ReadRegionFile(path string) (*Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения региона %s: %w", path, err)
	}

	r := NewRegion()
	if err := r.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("регион %s: %w", path, err)
	}
	return r, nil
}

// WriteFile записывает регион на диск и снимает флаг изменений
func (r *Region) WriteFile(path string) error {
	data, err := r.MarshalBinary()
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("ошибка записи региона %s: %w", path, err)
	}
	r.dirty = false
	return nil
}

// writeFileAtomic пишет во временный файл и переименовывает его
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
