package block

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

// IDMap хранит соответствие имён и идентификаторов, чтобы идентификаторы
// оставались стабильными между сессиями при добавлении нового контента
type IDMap struct {
	Blocks map[string]BlockID
	Items  map[string]ItemID
}

// NewIDMap создаёт карту с обязательными блоками Air и Stone
func NewIDMap() *IDMap {
	return &IDMap{
		Blocks: map[string]BlockID{AirName: AirBlockID, StoneName: StoneBlockID},
		Items:  map[string]ItemID{},
	}
}

// LoadIDMap читает карты блоков и предметов. Отсутствующий файл не является ошибкой.
func LoadIDMap(blockMapPath, itemMapPath string) (*IDMap, error) {
	m := NewIDMap()

	blocks, err := readMap(blockMapPath)
	if err != nil {
		return nil, err
	}
	for name, id := range blocks {
		if name == AirName || name == StoneName {
			continue
		}
		if id < 2 || id > 255 {
			return nil, fmt.Errorf("недопустимый идентификатор блока %s=%d в %s", name, id, blockMapPath)
		}
		m.Blocks[name] = BlockID(id)
	}

	items, err := readMap(itemMapPath)
	if err != nil {
		return nil, err
	}
	for name, id := range items {
		if id < 0 || id > 0xFFFF {
			return nil, fmt.Errorf("недопустимый идентификатор предмета %s=%d в %s", name, id, itemMapPath)
		}
		m.Items[name] = ItemID(id)
	}

	return m, nil
}

func readMap(path string) (map[string]int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения карты %s: %w", path, err)
	}

	var entries map[string]int
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("ошибка разбора карты %s: %w", path, err)
	}
	return entries, nil
}

// Write сохраняет обе карты; Air и Stone не записываются
func (m *IDMap) Write(blockMapPath, itemMapPath string) error {
	blocks := make(map[string]int, len(m.Blocks))
	for name, id := range m.Blocks {
		if name == AirName || name == StoneName {
			continue
		}
		blocks[name] = int(id)
	}
	if err := writeMap(blockMapPath, blocks); err != nil {
		return err
	}

	items := make(map[string]int, len(m.Items))
	for name, id := range m.Items {
		items[name] = int(id)
	}
	return writeMap(itemMapPath, items)
}

func writeMap(path string, entries map[string]int) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации карты: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("ошибка записи карты %s: %w", path, err)
	}
	return nil
}

// nextBlockID возвращает следующий свободный идентификатор блока
func (m *IDMap) nextBlockID() (BlockID, error) {
	next := 0
	for _, id := range m.Blocks {
		if int(id) >= next {
			next = int(id) + 1
		}
	}
	if next > 255 {
		return 0, ErrTooManyBlocks
	}
	return BlockID(next), nil
}

func (m *IDMap) nextItemID() ItemID {
	next := 0
	for _, id := range m.Items {
		if int(id) >= next {
			next = int(id) + 1
		}
	}
	return ItemID(next)
}

// BlockNames возвращает имена блоков, упорядоченные по идентификатору
func (m *IDMap) BlockNames() []string {
	names := make([]string, 0, len(m.Blocks))
	for name := range m.Blocks {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return m.Blocks[names[i]] < m.Blocks[names[j]] })
	return names
}
