package terrain

import (
	"math"

	"github.com/annel0/voxel-engine/internal/util"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// Рабочая область генерации: 2x2 стека с центром в генерируемом стеке
const (
	bufSizeXY = vec.ChunkSize * 2
	bufSizeZ  = vec.StackSizeZ
	bufArea   = bufSizeXY * bufSizeXY
	bufVolume = bufArea * bufSizeZ

	// bufOffset сдвиг генерируемого стека внутри буфера
	bufOffset = vec.ChunkSize / 2
)

// buffer блоки рабочей области, индекс x + y*64 + z*4096
type buffer []block.BlockID

func newBuffer() buffer {
	return make(buffer, bufVolume)
}

func bufIndex(x, y, z int) int {
	return x + y*bufSizeXY + z*bufArea
}

func (b buffer) get(x, y, z int) block.BlockID {
	return b[bufIndex(x, y, z)]
}

func (b buffer) set(x, y, z int, id block.BlockID) {
	b[bufIndex(x, y, z)] = id
}

// setSafe игнорирует запись за пределами буфера
func (b buffer) setSafe(x, y, z int, id block.BlockID) {
	if x < 0 || x >= bufSizeXY || y < 0 || y >= bufSizeXY || z < 0 || z >= bufSizeZ {
		return
	}
	b.set(x, y, z, id)
}

// setIfSolid заменяет твёрдый блок, воздух остаётся воздухом
func (b buffer) setIfSolid(x, y, z int, id block.BlockID) {
	i := bufIndex(x, y, z)
	if b[i] != block.AirBlockID {
		b[i] = id
	}
}

// Column реализует biome.Stamper
func (b buffer) Column(pos vec.Vec3, height int, id block.BlockID) {
	if pos.X < 0 || pos.X >= bufSizeXY || pos.Y < 0 || pos.Y >= bufSizeXY {
		return
	}

	top := pos.Z + height
	if top > bufSizeZ-1 {
		top = bufSizeZ - 1
	}
	for z := pos.Z; z <= top; z++ {
		if z >= 0 {
			b.set(pos.X, pos.Y, z, id)
		}
	}
}

// Crown реализует biome.Stamper: круги с радиусом, уменьшающимся каждые два слоя
func (b buffer) Crown(pos vec.Vec3, radius int, id block.BlockID) {
	r := radius
	for z := -radius + 1; z <= radius; z++ {
		if pos.Z+z >= bufSizeZ {
			break
		}
		b.circle(pos.X, pos.Y, pos.Z+z, r, id)
		if z != -radius && z%2 == 0 {
			r--
		}
	}
}

func (b buffer) circle(cx, cy, z, radius int, id block.BlockID) {
	for j := -radius; j <= radius; j++ {
		for i := -radius; i <= radius; i++ {
			if util.Abs(i) == radius && util.Abs(j) == radius {
				continue
			}
			if int(math.Sqrt(float64(i*i+j*j))) > radius {
				continue
			}
			b.setSafe(cx+i, cy+j, z, id)
		}
	}
}
