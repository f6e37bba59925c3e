package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Типы событий мира. Тип входит в subject JetStream, поэтому без точек.
const (
	EventBlockPlaced    = "block_placed"
	EventBlockDestroyed = "block_destroyed"
	EventDropSpawned    = "drop_spawned"
	EventSaveWritten    = "save_written"
	EventWorldReady     = "world_ready"
)

// PayloadVersion версия схемы полезной нагрузки
const PayloadVersion = 1

// priorities приоритет по типу события. Выпавшие предметы восстанавливаются из
// сохранения, поэтому их потеря при переполнении допустима.
var priorities = map[string]Priority{
	EventBlockPlaced:    PriorityNormal,
	EventBlockDestroyed: PriorityNormal,
	EventDropSpawned:    PriorityLow,
	EventWorldReady:     PriorityNormal,
	EventSaveWritten:    PriorityCritical,
}

// PriorityOf приоритет события данного типа; неизвестные типы получают PriorityLow
func PriorityOf(eventType string) Priority {
	if p, ok := priorities[eventType]; ok {
		return p
	}
	return PriorityLow
}

// BlockPayload правка блока. Audio имя звука из описания блока, AudioPosition
// точка, где его нужно проиграть.
type BlockPayload struct {
	Position      [3]int     `json:"position"`
	Previous      uint8      `json:"previous"`
	Block         uint8      `json:"block"`
	Audio         string     `json:"audio,omitempty"`
	AudioPosition [3]float64 `json:"audio_position"`
	Tick          int64      `json:"tick"`
}

// DropPayload появление выпавшего предмета
type DropPayload struct {
	ID       string     `json:"id"`
	Item     uint16     `json:"item"`
	Position [3]float64 `json:"position"`
	Velocity [3]float64 `json:"velocity"`
}

// SavePayload запись сохранения на диск
type SavePayload struct {
	Dir          string `json:"dir"`
	Chunks       int    `json:"chunks"`
	Drops        int    `json:"drops"`
	ElapsedTicks int64  `json:"elapsed_ticks"`
	DurationMs   int64  `json:"duration_ms"`
}

// ReadyPayload мир прогружен до минимальной дальности
type ReadyPayload struct {
	Stacks int   `json:"stacks"`
	Tick   int64 `json:"tick"`
}

// NewEvent сериализует полезную нагрузку в JSON и заворачивает её в событие мира world
func NewEvent(world, eventType string, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации события %s: %w", eventType, err)
	}
	return &Event{
		ID:       uuid.NewString(),
		Time:     time.Now().UTC(),
		World:    world,
		Type:     eventType,
		Version:  PayloadVersion,
		Priority: PriorityOf(eventType),
		Payload:  data,
	}, nil
}

// Decode разбирает полезную нагрузку события
func (ev *Event) Decode(out interface{}) error {
	if err := json.Unmarshal(ev.Payload, out); err != nil {
		return fmt.Errorf("ошибка разбора события %s (%s): %w", ev.Type, ev.ID, err)
	}
	return nil
}
