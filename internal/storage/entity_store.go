package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
)

const (
	dropKeyPrefix = "drop:"
	positionKey   = "meta:position"
)

// DropRecord сохраняемое состояние выпавшего предмета
type DropRecord struct {
	ID        uuid.UUID  `json:"id"`
	Item      uint16     `json:"item"`
	Position  [3]float64 `json:"position"`
	Velocity  [3]float64 `json:"velocity"`
	SpawnTick int64      `json:"spawn_tick"`
}

// PositionRecord последняя отслеживаемая позиция (позиция игрока)
type PositionRecord struct {
	Position [3]float64 `json:"position"`
}

// EntityStore хранилище сущностей сохранения на BadgerDB
type EntityStore struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// OpenEntityStore открывает (или создаёт) хранилище в каталоге dbPath
func OpenEntityStore(dbPath string) (*EntityStore, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &EntityStore{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
	}, nil
}

// Close закрывает хранилище
func (es *EntityStore) Close() error {
	es.mutex.Lock()
	defer es.mutex.Unlock()

	if !es.isReady {
		return nil
	}

	es.isReady = false
	return es.db.Close()
}

// ReplaceDrops заменяет все сохранённые предметы на переданный набор
func (es *EntityStore) ReplaceDrops(ctx context.Context, drops []DropRecord) error {
	es.mutex.RLock()
	defer es.mutex.RUnlock()

	if !es.isReady {
		return fmt.Errorf("хранилище не готово")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := es.db.DropPrefix([]byte(dropKeyPrefix)); err != nil {
		return fmt.Errorf("ошибка очистки предметов: %w", err)
	}

	wb := es.db.NewWriteBatch()
	defer wb.Cancel()

	for _, d := range drops {
		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("ошибка сериализации предмета %s: %w", d.ID, err)
		}
		if err := wb.Set([]byte(dropKeyPrefix+d.ID.String()), data); err != nil {
			return fmt.Errorf("ошибка записи предмета %s: %w", d.ID, err)
		}
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

// LoadDrops возвращает все сохранённые предметы
func (es *EntityStore) LoadDrops(ctx context.Context) ([]DropRecord, error) {
	es.mutex.RLock()
	defer es.mutex.RUnlock()

	if !es.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}

	var drops []DropRecord
	prefix := []byte(dropKeyPrefix)

	err := es.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var d DropRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &d)
			})
			if err != nil {
				return fmt.Errorf("ошибка десериализации предмета %s: %w", it.Item().Key(), err)
			}
			drops = append(drops, d)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	return drops, nil
}

// SavePosition сохраняет отслеживаемую позицию
func (es *EntityStore) SavePosition(ctx context.Context, pos [3]float64) error {
	es.mutex.RLock()
	defer es.mutex.RUnlock()

	if !es.isReady {
		return fmt.Errorf("хранилище не готово")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(PositionRecord{Position: pos})
	if err != nil {
		return fmt.Errorf("ошибка сериализации позиции: %w", err)
	}

	err = es.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(positionKey), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

// LoadPosition загружает отслеживаемую позицию; false, если её нет (первый запуск)
func (es *EntityStore) LoadPosition(ctx context.Context) ([3]float64, bool, error) {
	es.mutex.RLock()
	defer es.mutex.RUnlock()

	if !es.isReady {
		return [3]float64{}, false, fmt.Errorf("хранилище не готово")
	}
	if err := ctx.Err(); err != nil {
		return [3]float64{}, false, err
	}

	var rec PositionRecord
	err := es.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(positionKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})

	if err == badger.ErrKeyNotFound {
		return [3]float64{}, false, nil
	}
	if err != nil {
		return [3]float64{}, false, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}
	return rec.Position, true, nil
}
