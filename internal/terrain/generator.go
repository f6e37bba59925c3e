// Package terrain процедурная генерация стеков чанков: климат, форма рельефа,
// вода, верхние слои и декораторы.
package terrain

import (
	"time"

	"github.com/willf/bitset"

	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/util"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/biome"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// Параметры климата
const (
	climateLowFrequency  = 0.002
	climateHighFrequency = 0.1
)

// Параметры формы рельефа
const (
	kernelSizeXY = 4
	kernelSizeZ  = 8

	kernelCountXY = bufSizeXY / kernelSizeXY
	kernelCountZ  = bufSizeZ / kernelSizeZ

	kernelPaddedXY = kernelCountXY + 1
	kernelPaddedZ  = kernelCountZ + 1

	densityBase = 80

	shapeFrequency2D = 0.01
	shapeFrequencyLo = 0.02
	shapeFrequencyHi = 0.06

	shapeAmplitude2D = 48.0
	shapeAmplitudeLo = 24.0
	shapeAmplitudeHi = 16.0

	// HeightLimit максимальная высота поверхности
	HeightLimit = vec.StackSizeZ - 4
)

// Параметры воды, верхних слоёв и декораторов
const (
	waterLevelLow  = 30
	waterLevelHigh = 70

	topLayerMargin    = 2
	topLayerMinHeight = 16
	beachMaxZ         = 72

	decoratorStride    = 4
	decoratorMinHeight = 70
)

// Generator генерирует стеки. После создания только читается и может
// использоваться из нескольких горутин одновременно.
type Generator struct {
	Seed   int32
	Blocks *block.Registry
	Biomes *biome.Set

	noise *util.Noise
}

// NewGenerator создаёт генератор для сида и набора данных
func NewGenerator(seed int32, blocks *block.Registry, biomes *biome.Set) *Generator {
	return &Generator{
		Seed:   seed,
		Blocks: blocks,
		Biomes: biomes,
		noise:  util.NewNoise(int64(seed)),
	}
}

// Output результат генерации стека: рабочий буфер 64x64x256 с центром в стеке
type Output struct {
	Position vec.Vec2
	Duration time.Duration

	blocks    buffer
	climate   [bufSizeXY][bufSizeXY]biome.Climate
	heightmap [bufSizeXY][bufSizeXY]int
}

// Height возвращает высоту поверхности колонны стека (локальные координаты 0..31)
func (o *Output) Height(x, y int) int {
	return o.heightmap[x+bufOffset][y+bufOffset]
}

// Block возвращает блок стека в локальных координатах (z 0..255)
func (o *Output) Block(x, y, z int) block.BlockID {
	return o.blocks.get(x+bufOffset, y+bufOffset, z)
}

// CopyInto копирует центральную часть буфера в чанки стека, пропуская
// загруженные с диска. Возвращает климат стека. Вызывается под блокировкой записи стека.
func (o *Output) CopyInto(chunks [][]block.BlockID, loaded *bitset.BitSet) biome.ClimateMap {
	for c := 0; c < vec.StackChunkCount && c < len(chunks); c++ {
		if loaded != nil && loaded.Test(uint(c)) {
			continue
		}

		dst := chunks[c]
		i := 0
		for z := 0; z < vec.ChunkSize; z++ {
			src := bufIndex(bufOffset, bufOffset, z+c*vec.ChunkSize)
			for y := 0; y < vec.ChunkSize; y++ {
				copy(dst[i:i+vec.ChunkSize], o.blocks[src:src+vec.ChunkSize])
				i += vec.ChunkSize
				src += bufSizeXY
			}
		}
	}

	var climate biome.ClimateMap
	for x := 0; x < vec.ChunkSize; x++ {
		for y := 0; y < vec.ChunkSize; y++ {
			climate[x][y] = o.climate[x+bufOffset][y+bufOffset]
		}
	}
	return climate
}

// Generate строит стек в позиции pos. Чистая функция от сида, позиции и данных.
func (g *Generator) Generate(pos vec.Vec2) *Output {
	start := time.Now()

	out := &Output{
		Position: pos,
		blocks:   newBuffer(),
	}

	g.climatePass(out)
	g.shapePass(out)

	for x := 0; x < bufSizeXY; x++ {
		for y := 0; y < bufSizeXY; y++ {
			if out.heightmap[x][y] > HeightLimit {
				out.heightmap[x][y] = HeightLimit
			}
		}
	}

	var wet [bufSizeXY][bufSizeXY]bool
	g.waterPass(out, &wet)
	g.topLayerPass(out, &wet, g.Biomes.NearestTopLayer)
	g.decoratorPass(out)

	out.Duration = time.Since(start)
	logging.GetTerrainLogger().Trace("Стек %v сгенерирован за %v", pos, out.Duration)
	return out
}

// columnWorld мировая координата колонны буфера
func columnWorld(local, stack int) int {
	return local - bufOffset + stack*vec.ChunkSize
}

func (g *Generator) climatePass(out *Output) {
	for y := 0; y < bufSizeXY; y++ {
		for x := 0; x < bufSizeXY; x++ {
			px := float64(columnWorld(x, out.Position.X))
			py := float64(columnWorld(y, out.Position.Y))

			hs, ts := g.noise.NoiseVec2(px*climateLowFrequency, py*climateLowFrequency)
			hv, tv := g.noise.NoiseVec2(px*climateHighFrequency, py*climateHighFrequency)

			humidity := util.Clamp(hs*3+hv*0.1, -1, 1)*0.5 + 0.5
			temperature := util.Clamp(ts*3+tv*0.1, -1, 1)*0.5 + 0.5
			humidity *= temperature

			out.climate[x][y] = biome.Climate{
				Temperature: byte(temperature * 255),
				Humidity:    byte(humidity * 255),
			}
		}
	}
}

func (g *Generator) sampleDensity(x, y, z float64) float64 {
	v := densityBase - z
	v += g.noise.Noise2D(x*shapeFrequency2D, y*shapeFrequency2D) * shapeAmplitude2D
	v += g.noise.Noise3D(x*shapeFrequencyLo, y*shapeFrequencyLo, z*shapeFrequencyLo) * shapeAmplitudeLo
	v += g.noise.Noise3D(x*shapeFrequencyHi, y*shapeFrequencyHi, z*shapeFrequencyHi) * shapeAmplitudeHi
	return v
}

// shapePass заполняет камнем ячейки с положительной плотностью. Плотность
// считается в узлах сетки 4x4x8 и интерполируется внутри ячеек.
func (g *Generator) shapePass(out *Output) {
	kernels := make([]float64, kernelPaddedXY*kernelPaddedXY*kernelPaddedZ)
	kernelAt := func(x, y, z int) float64 {
		return kernels[x+y*kernelPaddedXY+z*kernelPaddedXY*kernelPaddedXY]
	}

	for y := 0; y < kernelPaddedXY; y++ {
		for x := 0; x < kernelPaddedXY; x++ {
			px := float64(x*kernelSizeXY + out.Position.X*vec.ChunkSize - bufOffset - kernelSizeXY)
			py := float64(y*kernelSizeXY + out.Position.Y*vec.ChunkSize - bufOffset - kernelSizeXY)
			for z := 0; z < kernelPaddedZ; z++ {
				kernels[x+y*kernelPaddedXY+z*kernelPaddedXY*kernelPaddedXY] = g.sampleDensity(px, py, float64(z*kernelSizeZ))
			}
		}
	}

	var corners [8]float64
	for kz := 0; kz < kernelCountZ; kz++ {
		for ky := 1; ky < kernelCountXY; ky++ {
			for kx := 1; kx < kernelCountXY; kx++ {
				positive := 0
				for i := range corners {
					corners[i] = kernelAt(kx+i&1, ky+(i>>1)&1, kz+(i>>2)&1)
					if corners[i] > 0 {
						positive++
					}
				}

				switch positive {
				case 0:
					continue
				case len(corners):
					g.fillKernel(out, kx, ky, kz)
				default:
					g.interpolateKernel(out, kx, ky, kz, &corners)
				}
			}
		}
	}
}

func (g *Generator) fillKernel(out *Output, kx, ky, kz int) {
	for z := 0; z < kernelSizeZ; z++ {
		bz := z + kz*kernelSizeZ
		for y := 0; y < kernelSizeXY; y++ {
			by := y + ky*kernelSizeXY
			for x := 0; x < kernelSizeXY; x++ {
				bx := x + kx*kernelSizeXY
				out.blocks.set(bx, by, bz, block.StoneBlockID)
				out.heightmap[bx][by] = bz
			}
		}
	}
}

// interpolateKernel углы в порядке v000, v100, v010, v110, v001, v101, v011, v111
func (g *Generator) interpolateKernel(out *Output, kx, ky, kz int, c *[8]float64) {
	for z := 0; z < kernelSizeZ; z++ {
		bz := z + kz*kernelSizeZ
		w := float64(z) / kernelSizeZ
		for y := 0; y < kernelSizeXY; y++ {
			by := y + ky*kernelSizeXY
			v := float64(y) / kernelSizeXY
			for x := 0; x < kernelSizeXY; x++ {
				bx := x + kx*kernelSizeXY
				u := float64(x) / kernelSizeXY

				if util.Lerp3D(c[0], c[1], c[2], c[3], c[4], c[5], c[6], c[7], u, v, w) > 0 {
					out.blocks.set(bx, by, bz, block.StoneBlockID)
					out.heightmap[bx][by] = bz
				}
			}
		}
	}
}

func (g *Generator) waterPass(out *Output, wet *[bufSizeXY][bufSizeXY]bool) {
	water := g.Biomes.Generation.WaterBlock

	for y := 0; y < bufSizeXY; y++ {
		for x := 0; x < bufSizeXY; x++ {
			h := out.heightmap[x][y]
			for z := waterLevelLow; z < waterLevelHigh; z++ {
				if z <= h && out.blocks.get(x, y, z) != block.AirBlockID {
					continue
				}
				wet[x][y] = true
				out.blocks.set(x, y, z, water)
			}
		}
	}
}

func nearWater(wet *[bufSizeXY][bufSizeXY]bool, x, y int) bool {
	for dy := -topLayerMargin; dy <= topLayerMargin; dy++ {
		for dx := -topLayerMargin; dx <= topLayerMargin; dx++ {
			if wet[x+dx][y+dy] {
				return true
			}
		}
	}
	return false
}

// topLayerPass кладёт верхний слой биома на каждую колонну. Колонна, для
// климата которой слоя нет, остаётся камнем.
func (g *Generator) topLayerPass(out *Output, wet *[bufSizeXY][bufSizeXY]bool, layerFor func(temperature, humidity byte) *biome.TopLayer) {
	water := g.Biomes.Generation.WaterBlock
	beach := g.Biomes.Generation.BeachBlock

	for y := topLayerMargin; y < bufSizeXY-topLayerMargin; y++ {
		for x := topLayerMargin; x < bufSizeXY-topLayerMargin; x++ {
			h := out.heightmap[x][y]
			if h < topLayerMinHeight {
				continue
			}

			climate := out.climate[x][y]
			tl := layerFor(climate.Temperature, climate.Humidity)
			if tl == nil {
				continue
			}
			w := nearWater(wet, x, y)

			for z := waterLevelLow; z <= h; z++ {
				b := out.blocks.get(x, y, z)
				if b == block.AirBlockID || b == water {
					continue
				}
				above := out.blocks.get(x, y, z+1)
				if above != block.AirBlockID && above != water {
					continue
				}

				top, sub := tl.Surface, tl.Subsurface
				if z < h {
					top = tl.Subsurface
				}
				if w && z < beachMaxZ {
					top, sub = beach, beach
				}

				out.blocks.set(x, y, z, top)
				for i := 1; i <= tl.Depth && z-i >= 0; i++ {
					out.blocks.setIfSolid(x, y, z-i, sub)
				}
			}
		}
	}
}

type placement struct {
	x, y      int
	decorator *biome.Decorator
	hash      uint32
}

func (g *Generator) decoratorPass(out *Output) {
	var occupied [bufSizeXY / decoratorStride][bufSizeXY / decoratorStride]bool
	var placements []placement
	var decorators []*biome.Decorator

	hm := &out.heightmap

	for y := decoratorStride; y < bufSizeXY-decoratorStride; y += decoratorStride {
		for x := decoratorStride; x < bufSizeXY-decoratorStride; x += decoratorStride {
			climate := out.climate[x][y]
			decorators = g.Biomes.DecoratorsFor(climate.Temperature, climate.Humidity, decorators[:0])

			rx := columnWorld(x, out.Position.X)
			ry := columnWorld(y, out.Position.Y)

			for i, d := range decorators {
				hash := util.HashTriple32(uint32(rx)+uint32(ry)*13) + uint32(i)*23

				px := x + int(hash%6)
				py := y + int(hash%6)

				if float64(hash%100) < d.Frequency*100 {
					continue
				}

				h := hm[x][y]
				if hm[x-1][y] > h || hm[x+1][y] > h || hm[x][y-1] > h || hm[x][y+1] > h {
					continue
				}

				if occupied[px/decoratorStride][py/decoratorStride] {
					continue
				}
				occupied[px/decoratorStride][py/decoratorStride] = true

				placements = append(placements, placement{x: px, y: py, decorator: d, hash: hash})
			}
		}
	}

	for _, p := range placements {
		h := hm[p.x][p.y]
		if h < decoratorMinHeight {
			continue
		}
		p.decorator.Generate(out.blocks, vec.Vec3{X: p.x, Y: p.y, Z: h}, p.hash)
	}
}
