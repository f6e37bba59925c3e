package world

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/annel0/voxel-engine/internal/physics"
	"github.com/annel0/voxel-engine/internal/storage"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// ItemDropSize размер коробки выпавшего предмета
var ItemDropSize = mgl64.Vec3{0.25, 0.25, 0.25}

// ItemDrop предмет, выпавший из разрушенного блока
type ItemDrop struct {
	ID        uuid.UUID
	Item      block.ItemID
	Position  mgl64.Vec3
	Velocity  mgl64.Vec3
	SpawnTick int64
}

// NewItemDrop создаёт предмет в центре нижней грани блока. Начальная скорость
// выводится из номера тика, чтобы соседние предметы разлетались по-разному.
func NewItemDrop(item block.ItemID, blockPos vec.Vec3, tick int64) *ItemDrop {
	return &ItemDrop{
		ID:       uuid.New(),
		Item:     item,
		Position: blockPos.Float().Add(mgl64.Vec3{0.5, 0.5, 0}),
		Velocity: mgl64.Vec3{
			(float64(tick%23)/23 - 0.5) * 0.015,
			(float64(tick%17)/17 - 0.5) * 0.015,
			0.05,
		},
		SpawnTick: tick,
	}
}

// BoundingBox коробка предмета
func (d *ItemDrop) BoundingBox() physics.AABB {
	return physics.FromEntity(d.Position, ItemDropSize)
}

func (d *ItemDrop) record() storage.DropRecord {
	return storage.DropRecord{
		ID:        d.ID,
		Item:      uint16(d.Item),
		Position:  d.Position,
		Velocity:  d.Velocity,
		SpawnTick: d.SpawnTick,
	}
}

func dropFromRecord(r storage.DropRecord) *ItemDrop {
	return &ItemDrop{
		ID:        r.ID,
		Item:      block.ItemID(r.Item),
		Position:  r.Position,
		Velocity:  r.Velocity,
		SpawnTick: r.SpawnTick,
	}
}
