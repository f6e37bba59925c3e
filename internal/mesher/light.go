package mesher

import (
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// MaxLightRadius максимальный уровень света и радиус его распространения
const MaxLightRadius = 15

// Буфер освещения покрывает окрестность 3x3 стеков
const (
	lightSizeXY = vec.ChunkSize * 3
	lightArea   = lightSizeXY * lightSizeXY
	lightVolume = lightArea * vec.StackSizeZ

	// Свет считается только в полосе [lightLo, lightHi): дальше свет
	// до центрального стека не доходит
	lightLo = vec.ChunkSize - MaxLightRadius
	lightHi = vec.ChunkSize*3 - MaxLightRadius
)

// Neighbourhood чанки 3x3 стеков вокруг центрального, индекс vec.NeighbourIndex
type Neighbourhood [vec.NeighbourhoodChunks][]block.BlockID

// Get возвращает блок в координатах относительно центрального стека
// (x, y в [-32, 64)). Ниже стека считается камень, выше воздух.
func (n *Neighbourhood) Get(x, y, z int) block.BlockID {
	if z < 0 {
		return block.StoneBlockID
	}
	if z >= vec.StackSizeZ {
		return block.AirBlockID
	}
	cx, lx := vec.Wrap(x)
	cy, ly := vec.Wrap(y)
	return n[vec.NeighbourIndex(cx, cy, z>>vec.ChunkShift)][vec.LocalIndex(lx, ly, z)]
}

// LightMap освещённость окрестности: младшие 4 бита небесный свет, старшие свет блоков
type LightMap []byte

func lightIndex(x, y, z int) int {
	return x + y*lightSizeXY + z*lightArea
}

// Sky небесный свет в координатах относительно центрального стека
func (l LightMap) Sky(x, y, z int) byte {
	return l[lightIndex(x+vec.ChunkSize, y+vec.ChunkSize, z)] & 0xF
}

// Block свет блоков в координатах относительно центрального стека
func (l LightMap) Block(x, y, z int) byte {
	return l[lightIndex(x+vec.ChunkSize, y+vec.ChunkSize, z)] >> 4
}

// at возвращает (небесный, блочный) свет; за пределами по высоте полный свет
func (l LightMap) at(x, y, z int) (byte, byte) {
	if z < 0 || z >= vec.StackSizeZ {
		return MaxLightRadius, MaxLightRadius
	}
	v := l[lightIndex(x+vec.ChunkSize, y+vec.ChunkSize, z)]
	return v & 0xF, v >> 4
}

type lightNode struct {
	x, y, z int
}

// lightQueue FIFO на срезе с головой
type lightQueue struct {
	items []lightNode
	head  int
}

func (q *lightQueue) push(n lightNode) {
	q.items = append(q.items, n)
}

func (q *lightQueue) pop() (lightNode, bool) {
	if q.head >= len(q.items) {
		return lightNode{}, false
	}
	n := q.items[q.head]
	q.head++
	return n, true
}

// zRange границы по высоте, в которых есть что строить
type zRange struct {
	minAir   int
	maxBlock int
}

// ComputeLight считает небесный свет и свет блоков для окрестности
func ComputeLight(n *Neighbourhood, reg *block.Registry) LightMap {
	light, _ := computeLight(n, reg)
	return light
}

func computeLight(n *Neighbourhood, reg *block.Registry) (LightMap, zRange) {
	light := make(LightMap, lightVolume)
	var mask [lightSizeXY][lightSizeXY]byte
	var sky, blk lightQueue
	var zr zRange

	opaque := func(b block.BlockID) bool {
		return b != block.AirBlockID && !reg.IsTranslucent(b)
	}

	for y := lightLo; y < lightHi; y++ {
		for x := lightLo; x < lightHi; x++ {
			mask[x][y] = MaxLightRadius
		}
	}

	for z := vec.StackSizeZ - 1; z >= 0; z-- {
		// Маски колонн на этом уровне
		for y := lightLo; y < lightHi; y++ {
			for x := lightLo; x < lightHi; x++ {
				b := n.Get(x-vec.ChunkSize, y-vec.ChunkSize, z)
				if b == block.AirBlockID {
					zr.minAir = z
					continue
				}
				if z > zr.maxBlock {
					zr.maxBlock = z
				}

				if reg.IsLight(b) {
					seedBlockLight(light, &blk, n, reg, x, y, z)
				}

				if reg.IsTranslucent(b) {
					if mask[x][y] > 0 {
						mask[x][y]--
					}
					zr.minAir = z
				} else {
					mask[x][y] = 0
				}
			}
		}

		// Затравка: своя маска или соседняя минус один
		for y := lightLo; y < lightHi; y++ {
			for x := lightLo; x < lightHi; x++ {
				m := mask[x][y]
				i := lightIndex(x, y, z)
				if m == MaxLightRadius {
					light[i] = light[i]&0xF0 | m
					continue
				}
				if opaque(n.Get(x-vec.ChunkSize, y-vec.ChunkSize, z)) {
					continue
				}

				seed := max(mask[x+1][y], mask[x][y+1], mask[x-1][y], mask[x][y-1])
				if seed > 0 {
					seed--
				}
				seed = max(seed, m)
				if seed > 0 {
					light[i] = light[i]&0xF0 | seed
					sky.push(lightNode{x, y, z})
				}
			}
		}
	}

	propagate(light, &sky, n, opaque, 0xF, 0)
	propagate(light, &blk, n, opaque, 0xF0, 4)

	return light, zr
}

// seedBlockLight ставит полный свет блоков в прозрачных соседей источника
func seedBlockLight(light LightMap, q *lightQueue, n *Neighbourhood, reg *block.Registry, x, y, z int) {
	for _, d := range faceNormals {
		px, py, pz := x+d[0], y+d[1], z+d[2]
		if px < lightLo || px >= lightHi || py < lightLo || py >= lightHi || pz < 0 || pz >= vec.StackSizeZ {
			continue
		}
		b := n.Get(px-vec.ChunkSize, py-vec.ChunkSize, pz)
		if b != block.AirBlockID && !reg.IsTranslucent(b) {
			continue
		}
		i := lightIndex(px, py, pz)
		light[i] = light[i]&0xF | MaxLightRadius<<4
		q.push(lightNode{px, py, pz})
	}
}

// propagate BFS по шести соседям, уровень падает на единицу за шаг.
// mask и shift выбирают полубайт света.
func propagate(light LightMap, q *lightQueue, n *Neighbourhood, opaque func(block.BlockID) bool, mask byte, shift uint) {
	for {
		p, ok := q.pop()
		if !ok {
			return
		}

		l := (light[lightIndex(p.x, p.y, p.z)] & mask) >> shift
		if l <= 1 {
			continue
		}
		next := l - 1

		for _, d := range faceNormals {
			px, py, pz := p.x+d[0], p.y+d[1], p.z+d[2]
			if px < lightLo || px >= lightHi || py < lightLo || py >= lightHi || pz < 0 || pz >= vec.StackSizeZ {
				continue
			}

			i := lightIndex(px, py, pz)
			if (light[i]&mask)>>shift >= next {
				continue
			}
			if opaque(n.Get(px-vec.ChunkSize, py-vec.ChunkSize, pz)) {
				continue
			}
			light[i] = light[i]&^mask | next<<shift
			q.push(lightNode{px, py, pz})
		}
	}
}
