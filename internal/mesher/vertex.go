package mesher

import (
	"encoding/binary"
	"fmt"
)

// VertexSize размер упакованной вершины в байтах
const VertexSize = 16

// Vertex вершина меша чанка
type Vertex struct {
	X, Y uint8
	Z    int16

	// Face (u<<7)|(v<<6)|((nx+1)<<4)|((ny+1)<<2)|(nz+1)
	Face uint8
	// Texture упакованный тайл атласа
	Texture uint8
	// Light (sky<<4)|block
	Light     uint8
	Occlusion uint8

	Temperature uint8
	Humidity    uint8
	Overlay     uint8
}

// PackFace упаковывает текстурные координаты и нормаль
func PackFace(u, v int, normal [3]int) uint8 {
	return uint8(u<<7 | v<<6 | (normal[0]+1)<<4 | (normal[1]+1)<<2 | (normal[2] + 1))
}

// UV текстурные координаты вершины
func (v Vertex) UV() (int, int) {
	return int(v.Face >> 7 & 1), int(v.Face >> 6 & 1)
}

// Normal нормаль грани
func (v Vertex) Normal() [3]int {
	return [3]int{
		int(v.Face>>4&3) - 1,
		int(v.Face>>2&3) - 1,
		int(v.Face&3) - 1,
	}
}

// SkyLight небесная освещённость вершины
func (v Vertex) SkyLight() uint8 { return v.Light >> 4 }

// BlockLight освещённость от блоков
func (v Vertex) BlockLight() uint8 { return v.Light & 0xF }

// Pack записывает вершину в 16 байт, многобайтовые поля в little-endian
func (v Vertex) Pack(dst []byte) {
	_ = dst[VertexSize-1]
	dst[0] = v.X
	dst[1] = v.Y
	binary.LittleEndian.PutUint16(dst[2:], uint16(v.Z))
	dst[4] = v.Face
	dst[5] = v.Texture
	dst[6] = v.Light
	dst[7] = v.Occlusion
	dst[8] = v.Temperature
	dst[9] = v.Humidity
	dst[10] = v.Overlay
	for i := 11; i < VertexSize; i++ {
		dst[i] = 0
	}
}

// UnpackVertex обратная операция к Pack
func UnpackVertex(src []byte) (Vertex, error) {
	if len(src) < VertexSize {
		return Vertex{}, fmt.Errorf("вершина: %d байт, ожидалось %d", len(src), VertexSize)
	}
	return Vertex{
		X:           src[0],
		Y:           src[1],
		Z:           int16(binary.LittleEndian.Uint16(src[2:])),
		Face:        src[4],
		Texture:     src[5],
		Light:       src[6],
		Occlusion:   src[7],
		Temperature: src[8],
		Humidity:    src[9],
		Overlay:     src[10],
	}, nil
}

// PackVertices упаковывает вершины подряд для загрузки в буфер GPU
func PackVertices(vertices []Vertex) []byte {
	out := make([]byte, len(vertices)*VertexSize)
	for i, v := range vertices {
		v.Pack(out[i*VertexSize:])
	}
	return out
}
