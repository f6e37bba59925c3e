// Package physics ограничивающие объёмы сущностей и блоков.
package physics

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/annel0/voxel-engine/internal/vec"
)

// AABB ограничивающий параллелепипед: угол с наименьшими координатами и размер
type AABB struct {
	Position mgl64.Vec3
	Size     mgl64.Vec3
}

// FromBlock возвращает объём единичного блока
func FromBlock(p vec.Vec3) AABB {
	return AABB{Position: p.Float(), Size: mgl64.Vec3{1, 1, 1}}
}

// FromEntity строит объём сущности: позиция это центр основания
func FromEntity(position, size mgl64.Vec3) AABB {
	return AABB{
		Position: position.Sub(mgl64.Vec3{size.X() / 2, size.Y() / 2, 0}),
		Size:     size,
	}
}

// FromStack возвращает объём стека чанков
func FromStack(p vec.Vec2) AABB {
	return AABB{
		Position: mgl64.Vec3{float64(p.X * vec.ChunkSize), float64(p.Y * vec.ChunkSize), 0},
		Size:     mgl64.Vec3{vec.ChunkSize, vec.ChunkSize, vec.StackSizeZ},
	}
}

// Max противоположный угол
func (a AABB) Max() mgl64.Vec3 {
	return a.Position.Add(a.Size)
}

// Center центр объёма
func (a AABB) Center() mgl64.Vec3 {
	return a.Position.Add(a.Size.Mul(0.5))
}

// Intersects проверяет пересечение; касание гранями пересечением не считается
func (a AABB) Intersects(b AABB) bool {
	amax, bmax := a.Max(), b.Max()
	for i := 0; i < 3; i++ {
		if a.Position[i] >= bmax[i] || amax[i] <= b.Position[i] {
			return false
		}
	}
	return true
}

// IntersectsAny возвращает первый пересекающийся объём из списка
func (a AABB) IntersectsAny(list []AABB) (AABB, bool) {
	for _, b := range list {
		if a.Intersects(b) {
			return b, true
		}
	}
	return AABB{}, false
}

// Contains проверяет, лежит ли точка внутри объёма
func (a AABB) Contains(p mgl64.Vec3) bool {
	m := a.Max()
	for i := 0; i < 3; i++ {
		if p[i] < a.Position[i] || p[i] >= m[i] {
			return false
		}
	}
	return true
}

// Translate сдвигает объём
func (a AABB) Translate(d mgl64.Vec3) AABB {
	return AABB{Position: a.Position.Add(d), Size: a.Size}
}
