package world

import (
	"sync"
	"sync/atomic"

	"github.com/willf/bitset"

	"github.com/annel0/voxel-engine/internal/mesher"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/biome"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// Chunks чанки стека снизу вверх, каждый длиной vec.ChunkVolume
type Chunks [vec.StackChunkCount][]block.BlockID

// ChunkStack колонна из 8 чанков.
//
// Блоки, биты изменений, климат и меш защищены mu: один писатель, много
// читателей. Флаги состояния планировщика защищены мьютексом мира.
type ChunkStack struct {
	Position vec.Vec2

	mu          sync.RWMutex
	chunks      Chunks
	dirty       *bitset.BitSet // чанки, изменённые после последней записи на диск
	loaded      *bitset.BitSet // чанки, прочитанные из сохранения
	diskChecked bool
	climate     biome.ClimateMap
	mesh        *mesher.Mesh

	IsGenerated      bool
	IsMeshed         bool
	IsWaitingForTask bool
	Visited          bool

	// revision растёт при каждой правке, задевающей меш стека
	revision atomic.Uint64
}

// NewChunkStack создаёт стек, заполненный воздухом
func NewChunkStack(pos vec.Vec2) *ChunkStack {
	s := &ChunkStack{
		Position: pos,
		dirty:    bitset.New(vec.StackChunkCount),
		loaded:   bitset.New(vec.StackChunkCount),
	}
	for i := range s.chunks {
		s.chunks[i] = make([]block.BlockID, vec.ChunkVolume)
	}
	return s
}

// Read вызывает fn под блокировкой чтения. fn не должна сохранять ссылки на чанки.
func (s *ChunkStack) Read(fn func(c *Chunks)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.chunks)
}

// Write вызывает fn под блокировкой записи
func (s *ChunkStack) Write(fn func(c *Chunks)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.chunks)
}

// Block возвращает блок по локальным координатам стека (z в [0,256))
func (s *ChunkStack) Block(x, y, z int) block.BlockID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chunks[z>>vec.ChunkShift][vec.LocalIndex(x, y, z)]
}

// setBlock меняет блок и помечает чанк изменённым. Возвращает прежний блок.
func (s *ChunkStack) setBlock(x, y, z int, id block.BlockID) block.BlockID {
	cz := z >> vec.ChunkShift
	i := vec.LocalIndex(x, y, z)

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.chunks[cz][i]
	s.chunks[cz][i] = id
	if prev != id {
		s.dirty.Set(uint(cz))
	}
	return prev
}

// copyChunks копирует чанки стека в dst[base:base+8] с шагом stride
func (s *ChunkStack) copyChunks(dst [][]block.BlockID, base, stride int) {
	s.Read(func(c *Chunks) {
		for z := range c {
			buf := make([]block.BlockID, vec.ChunkVolume)
			copy(buf, c[z])
			dst[base+z*stride] = buf
		}
	})
}

// Climate климат колонн стека
func (s *ChunkStack) Climate() biome.ClimateMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.climate
}

// Mesh последний построенный меш (nil, если стек ещё не строился)
func (s *ChunkStack) Mesh() *mesher.Mesh {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mesh
}

func (s *ChunkStack) setMesh(m *mesher.Mesh) {
	s.mu.Lock()
	s.mesh = m
	s.mu.Unlock()
}

// Dirty номера изменённых чанков
func (s *ChunkStack) Dirty() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []int
	for i, ok := s.dirty.NextSet(0); ok; i, ok = s.dirty.NextSet(i + 1) {
		out = append(out, int(i))
	}
	return out
}

// LoadedFromDisk количество чанков, прочитанных из сохранения
func (s *ChunkStack) LoadedFromDisk() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int(s.loaded.Count())
}

// storeDirty передаёт изменённые чанки в store и снимает с них отметку.
// Чанк, который не удалось сохранить, остаётся изменённым.
func (s *ChunkStack) storeDirty(store func(pos vec.Vec3, chunk []block.BlockID) error) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := 0
	for i, ok := s.dirty.NextSet(0); ok; i, ok = s.dirty.NextSet(i + 1) {
		pos := vec.Vec3{X: s.Position.X, Y: s.Position.Y, Z: int(i)}
		if err := store(pos, s.chunks[i]); err != nil {
			return stored, err
		}
		s.dirty.Clear(i)
		stored++
	}
	return stored, nil
}

// Revision текущая ревизия правок
func (s *ChunkStack) Revision() uint64 {
	return s.revision.Load()
}

func (s *ChunkStack) invalidate() {
	s.revision.Add(1)
	s.IsMeshed = false
}
