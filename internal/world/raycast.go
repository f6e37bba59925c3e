package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// RayRadius дальность луча в блоках
const RayRadius = 8.0

// RayHit результат трассировки. Normal указывает на грань, через которую
// луч вошёл в блок (нулевой вектор, если луч начался внутри блока).
type RayHit struct {
	Hit      bool
	Block    block.BlockID
	Position vec.Vec3
	Normal   vec.Vec3
}

// RaySolid ищет первый твёрдый блок на луче. Воздух и жидкости пропускаются.
func (w *World) RaySolid(origin, direction mgl64.Vec3) RayHit {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return castRay(origin, direction, RayRadius, func(p vec.Vec3) (block.BlockID, bool) {
		b := w.blockAt(p)
		return b, b != block.AirBlockID && !w.Blocks.IsLiquid(b)
	})
}

// castRay обход сетки блоков вдоль луча (DDA). solid сообщает, останавливает
// ли блок луч.
func castRay(origin, direction mgl64.Vec3, radius float64, solid func(vec.Vec3) (block.BlockID, bool)) RayHit {
	p := vec.FloorVec3(origin)
	cell := [3]int{p.X, p.Y, p.Z}

	if b, ok := solid(p); ok {
		return RayHit{Hit: true, Block: b, Position: p}
	}
	if direction.Len() == 0 {
		return RayHit{}
	}
	d := direction.Normalize()

	var step [3]int
	var tMax, tDelta [3]float64
	for i := 0; i < 3; i++ {
		switch {
		case d[i] > 0:
			step[i] = 1
			tMax[i] = (math.Floor(origin[i]) + 1 - origin[i]) / d[i]
			tDelta[i] = 1 / d[i]
		case d[i] < 0:
			step[i] = -1
			tMax[i] = (origin[i] - math.Floor(origin[i])) / -d[i]
			tDelta[i] = -1 / d[i]
		default:
			tMax[i] = math.Inf(1)
			tDelta[i] = math.Inf(1)
		}
	}

	for {
		axis := 0
		if tMax[1] < tMax[axis] {
			axis = 1
		}
		if tMax[2] < tMax[axis] {
			axis = 2
		}
		if tMax[axis] > radius {
			return RayHit{}
		}

		cell[axis] += step[axis]
		tMax[axis] += tDelta[axis]

		var normal [3]int
		normal[axis] = -step[axis]

		p = vec.Vec3{X: cell[0], Y: cell[1], Z: cell[2]}
		if b, ok := solid(p); ok {
			return RayHit{
				Hit:      true,
				Block:    b,
				Position: p,
				Normal:   vec.Vec3{X: normal[0], Y: normal[1], Z: normal[2]},
			}
		}
	}
}
