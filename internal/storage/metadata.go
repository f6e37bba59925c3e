package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// Version текущая версия формата сохранения
const Version uint32 = 1

// Имена файлов в каталоге сохранения
const (
	MetadataFileName    = "Metadata"
	RegionIndexFileName = "Index"
	BlockMapFileName    = "BlockMap"
	ItemMapFileName     = "ItemMap"
	EntitiesDirName     = "entities"
)

// RegionFileName имя файла региона с порядковым номером n
func RegionFileName(n int32) string {
	return fmt.Sprintf("Region-%d", n)
}

// SunOrbitPeriod длина суточного цикла в тиках
const SunOrbitPeriod = 144000

var (
	// ErrInvalidSave метаданные отсутствуют или не разбираются
	ErrInvalidSave = errors.New("недействительное сохранение")
	// ErrVersionMismatch версия формата сохранения не совпадает с текущей
	ErrVersionMismatch = errors.New("несовпадение версии сохранения")
	// ErrSaveExists каталог сохранения уже существует
	ErrSaveExists = errors.New("сохранение уже существует")
)

// Metadata описание сохранения (JSON)
type Metadata struct {
	Version              uint32    `json:"Version"`
	DisplayName          string    `json:"DisplayName"`
	CreationDate         time.Time `json:"CreationDate"`
	Seed                 int32     `json:"Seed"`
	ElapsedTicks         int64     `json:"ElapsedTicks"`
	ElapsedDayCycleTicks int64     `json:"ElapsedDayCycleTicks"`
}

// NewMetadata создаёт метаданные нового сохранения
func NewMetadata(displayName string, seed int32) *Metadata {
	return &Metadata{
		Version:              Version,
		DisplayName:          displayName,
		CreationDate:         time.Now(),
		Seed:                 seed,
		ElapsedDayCycleTicks: SunOrbitPeriod / 24 * 2,
	}
}

// Validate проверяет версию формата
func (m *Metadata) Validate() error {
	if m.Version != Version {
		return fmt.Errorf("%w: %d, ожидалась %d", ErrVersionMismatch, m.Version, Version)
	}
	return nil
}

// ReadMetadata читает и проверяет файл метаданных
func ReadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSave, err)
	}

	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSave, path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// WriteFile записывает метаданные
func (m *Metadata) WriteFile(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("ошибка записи метаданных: %w", err)
	}
	return nil
}
