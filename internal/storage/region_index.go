package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"github.com/annel0/voxel-engine/internal/vec"
)

// RegionIndex сопоставляет ячейку сетки регионов порядковому номеру файла региона
type RegionIndex struct {
	entries map[vec.Vec2]int32
	counter int32
}

// NewRegionIndex создаёт пустой индекс
func NewRegionIndex() *RegionIndex {
	return &RegionIndex{entries: make(map[vec.Vec2]int32)}
}

// Lookup возвращает номер региона для ячейки
func (ri *RegionIndex) Lookup(cell vec.Vec2) (int32, bool) {
	n, ok := ri.entries[cell]
	return n, ok
}

// Assign выделяет ячейке следующий номер региона
func (ri *RegionIndex) Assign(cell vec.Vec2) int32 {
	if n, ok := ri.entries[cell]; ok {
		return n
	}
	n := ri.counter
	ri.entries[cell] = n
	ri.counter++
	return n
}

// Len количество регионов
func (ri *RegionIndex) Len() int {
	return len(ri.entries)
}

// Cells возвращает ячейки в порядке номеров регионов
func (ri *RegionIndex) Cells() []vec.Vec2 {
	cells := make([]vec.Vec2, 0, len(ri.entries))
	for c := range ri.entries {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool { return ri.entries[cells[i]] < ri.entries[cells[j]] })
	return cells
}

// MarshalBinary сериализует индекс: [int32 counter][(x, y, ordinal) int32 ...]
func (ri *RegionIndex) MarshalBinary() ([]byte, error) {
	out := make([]byte, int32Size+len(ri.entries)*3*int32Size)
	binary.LittleEndian.PutUint32(out, uint32(ri.counter))

	p := int32Size
	for _, c := range ri.Cells() {
		for _, v := range [3]int32{int32(c.X), int32(c.Y), ri.entries[c]} {
			binary.LittleEndian.PutUint32(out[p:], uint32(v))
			p += int32Size
		}
	}
	return out, nil
}

// UnmarshalBinary разбирает индекс
func (ri *RegionIndex) UnmarshalBinary(data []byte) error {
	if len(data) < int32Size || (len(data)-int32Size)%(3*int32Size) != 0 {
		return fmt.Errorf("повреждённый индекс регионов: %d байт", len(data))
	}

	entries := make(map[vec.Vec2]int32)
	counter := int32(binary.LittleEndian.Uint32(data))
	for p := int32Size; p < len(data); p += 3 * int32Size {
		x := int32(binary.LittleEndian.Uint32(data[p:]))
		y := int32(binary.LittleEndian.Uint32(data[p+int32Size:]))
		n := int32(binary.LittleEndian.Uint32(data[p+2*int32Size:]))
		entries[vec.Vec2{X: int(x), Y: int(y)}] = n
		if n >= counter {
			counter = n + 1
		}
	}

	ri.entries = entries
	ri.counter = counter
	return nil
}

// ReadRegionIndex читает индекс с диска
func ReadRegionIndex(path string) (*RegionIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения индекса регионов: %w", err)
	}
	ri := NewRegionIndex()
	if err := ri.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return ri, nil
}

// WriteFile записывает индекс на диск
func (ri *RegionIndex) WriteFile(path string) error {
	data, err := ri.MarshalBinary()
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("ошибка записи индекса регионов: %w", err)
	}
	return nil
}
