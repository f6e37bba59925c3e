// Package mesher строит меш поверхности стека чанков: освещение заливкой,
// затенение углов (AO) и упаковку вершин.
package mesher

import (
	"fmt"
	"time"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/biome"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// Input снимок окрестности стека. Чанки копируются под блокировками чтения
// и после этого принадлежат задаче.
type Input struct {
	Position vec.Vec2
	Chunks   Neighbourhood
	Climate  biome.ClimateMap
}

// Range диапазон индексов
type Range struct {
	Start int
	Count int
}

// Mesh результат построения: сначала непрозрачные грани, затем жидкости
type Mesh struct {
	Position vec.Vec2
	Vertices []Vertex
	Indices  []uint32
	Opaque   Range
	Liquid   Range

	// LowZ и HighZ границы по высоте, в которых есть грани
	LowZ  int
	HighZ int

	LightingTime time.Duration
	MeshingTime  time.Duration
}

// Empty true, если в меше нет граней
func (m *Mesh) Empty() bool {
	return len(m.Indices) == 0
}

// Mesher строит меши. Хранит только неизменяемый реестр и безопасен для
// одновременного использования.
type Mesher struct {
	Blocks *block.Registry
}

// New создаёт мешер
func New(blocks *block.Registry) *Mesher {
	return &Mesher{Blocks: blocks}
}

// faceBuilder вершины и индексы одного прохода
type faceBuilder struct {
	vertices []Vertex
	indices  []uint32
	base     int
}

// cell окружение 3x3x3 вокруг блока
type cell struct {
	solid [27]bool
	sky   [27]byte
	blk   [27]byte
}

// Build строит меш центрального стека окрестности
func (m *Mesher) Build(in *Input) *Mesh {
	start := time.Now()

	light, zr := computeLight(&in.Chunks, m.Blocks)
	lightingTime := time.Since(start)

	maxZ := min(zr.maxBlock+1, vec.StackSizeZ-1)
	minZ := max(zr.minAir-1, 0)

	mesh := &Mesh{
		Position:     in.Position,
		LowZ:         vec.StackSizeZ,
		LightingTime: lightingTime,
	}

	var opaque, liquid faceBuilder
	var faces [6]bool
	var c cell

	hasLiquid := false

	// Непрозрачный проход
	for z := minZ; z < maxZ; z++ {
		for y := 0; y < vec.ChunkSize; y++ {
			for x := 0; x < vec.ChunkSize; x++ {
				b := in.Chunks.Get(x, y, z)
				if b == block.AirBlockID {
					continue
				}
				if m.Blocks.IsTranslucent(b) {
					hasLiquid = true
					continue
				}

				visible := false
				for f, d := range faceNormals {
					nb := in.Chunks.Get(x+d[0], y+d[1], z+d[2])
					faces[f] = nb == block.AirBlockID || m.Blocks.IsTranslucent(nb)
					visible = visible || faces[f]
				}
				if !visible {
					continue
				}

				mesh.LowZ = min(mesh.LowZ, z)
				mesh.HighZ = max(mesh.HighZ, z)

				m.sampleCell(in, light, x, y, z, &c)
				climate := in.Climate[x][y]
				data := m.Blocks.Get(b)
				for f := range faces {
					if faces[f] {
						opaque.emit(&c, f, x, y, z, data, climate, true)
					}
				}
			}
		}
	}

	// Жидкости и прозрачные блоки; индексы продолжают нумерацию вершин
	liquid.base = len(opaque.vertices)
	for z := minZ; z < maxZ && hasLiquid; z++ {
		for y := 0; y < vec.ChunkSize; y++ {
			for x := 0; x < vec.ChunkSize; x++ {
				b := in.Chunks.Get(x, y, z)
				if b == block.AirBlockID || !m.Blocks.IsTranslucent(b) {
					continue
				}

				visible := false
				for f, d := range faceNormals {
					nb := in.Chunks.Get(x+d[0], y+d[1], z+d[2])
					faces[f] = nb == block.AirBlockID || (m.Blocks.IsTranslucent(nb) && nb != b)
					visible = visible || faces[f]
				}
				if !visible {
					continue
				}

				mesh.LowZ = min(mesh.LowZ, z)
				mesh.HighZ = max(mesh.HighZ, z)

				m.sampleCell(in, light, x, y, z, &c)
				climate := in.Climate[x][y]
				data := m.Blocks.Get(b)
				for f := range faces {
					if faces[f] {
						liquid.emit(&c, f, x, y, z, data, climate, false)
					}
				}
			}
		}
	}

	vertexCount := len(opaque.vertices) + len(liquid.vertices)
	indexCount := len(opaque.indices) + len(liquid.indices)
	if vertexCount/4*6 != indexCount || vertexCount%4 != 0 {
		panic(fmt.Sprintf("меш стека %v: %d вершин и %d индексов", in.Position, vertexCount, indexCount))
	}

	mesh.Vertices = append(opaque.vertices, liquid.vertices...)
	mesh.Indices = append(opaque.indices, liquid.indices...)
	mesh.Opaque = Range{Start: 0, Count: len(opaque.indices)}
	mesh.Liquid = Range{Start: len(opaque.indices), Count: len(liquid.indices)}
	mesh.MeshingTime = time.Since(start) - lightingTime
	return mesh
}

func (m *Mesher) sampleCell(in *Input, light LightMap, x, y, z int, c *cell) {
	j := 0
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nb := in.Chunks.Get(x+dx, y+dy, z+dz)
				c.solid[j] = nb != block.AirBlockID && !m.Blocks.IsTranslucent(nb)
				c.sky[j], c.blk[j] = light.at(x+dx, y+dy, z+dz)
				j++
			}
		}
	}
}

// ambientOcclusion 0 самый тёмный угол, 3 открытый
func ambientOcclusion(side1, side2, corner bool) uint8 {
	if side1 && side2 {
		return 0
	}
	return uint8(3 - (b2i(side1) + b2i(side2) + b2i(corner)))
}

// cornerLight свет угла: закрытые соседи не учитываются
func cornerLight(s1, s2, c bool, l1, l2, lc, centre byte) byte {
	if s1 {
		l1 = 0
	}
	if s2 {
		l2 = 0
	}
	if (s1 && s2) || c {
		lc = 0
	}
	return max(l1, l2, lc, centre)
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (fb *faceBuilder) emit(c *cell, f, x, y, z int, data *block.Data, climate biome.Climate, allowFlip bool) {
	var occ, sky, blk [4]byte

	front := faceFront[f]
	for k, n := range aoNeighbours[f] {
		s1, s2, cr := c.solid[n[0]], c.solid[n[1]], c.solid[n[2]]
		occ[k] = ambientOcclusion(s1, s2, cr)
		sky[k] = cornerLight(s1, s2, cr, c.sky[n[0]], c.sky[n[1]], c.sky[n[2]], c.sky[front])
		blk[k] = cornerLight(s1, s2, cr, c.blk[n[0]], c.blk[n[1]], c.blk[n[2]], c.blk[front])
	}

	corners := &faceCorners
	if allowFlip && int(occ[0])+int(occ[3]) > int(occ[1])+int(occ[2]) {
		corners = &faceCornersFlipped
	}

	offset := uint32(fb.base + len(fb.vertices))
	normal := faceNormals[f]

	for v := 0; v < 4; v++ {
		p := cornerPositions[corners[f][v]]
		// Порядок углов грани Y- совпадает с порядком UV и значений AO
		k := corners[block.FaceYNeg][v]
		uv := cornerUVs[k]

		fb.vertices = append(fb.vertices, Vertex{
			X:           uint8(x + p[0]),
			Y:           uint8(y + p[1]),
			Z:           int16(z + p[2]),
			Face:        PackFace(uv[0], uv[1], normal),
			Texture:     data.TexturesPacked[f],
			Light:       sky[k]<<4 | blk[k],
			Occlusion:   occ[k],
			Temperature: climate.Temperature,
			Humidity:    climate.Humidity,
			Overlay:     data.ClimateOverlayPacked[f],
		})
	}

	for _, i := range quadIndices {
		fb.indices = append(fb.indices, offset+i)
	}
}
