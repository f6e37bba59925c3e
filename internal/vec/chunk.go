package vec

// Геометрия мира
const (
	ChunkShift  = 5
	ChunkSize   = 1 << ChunkShift // 32
	ChunkMask   = ChunkSize - 1
	ChunkArea   = ChunkSize * ChunkSize
	ChunkVolume = ChunkArea * ChunkSize

	StackChunkCount = 8
	StackSizeZ      = ChunkSize * StackChunkCount // 256

	// RegionShift задаёт сетку регионов 16x16 стеков
	RegionShift = 4

	// NeighbourhoodChunks количество чанков в окрестности 3x3 стеков
	NeighbourhoodChunks = 9 * StackChunkCount
)

// Wrap делит мировую координату на номер чанка и локальную координату
func Wrap(coord int) (chunk, local int) {
	local = coord & ChunkMask
	chunk = (coord - local) >> ChunkShift
	return chunk, local
}

// StackOf возвращает позицию стека, содержащего мировую колонну
func StackOf(x, y int) Vec2 {
	cx, _ := Wrap(x)
	cy, _ := Wrap(y)
	return Vec2{X: cx, Y: cy}
}

// ChunkOf возвращает позицию чанка (x,y стека и номер по z) для мирового блока
func ChunkOf(p Vec3) Vec3 {
	cx, _ := Wrap(p.X)
	cy, _ := Wrap(p.Y)
	cz, _ := Wrap(p.Z)
	return Vec3{X: cx, Y: cy, Z: cz}
}

// LocalIndex возвращает индекс блока внутри чанка, координаты берутся по модулю 32
func LocalIndex(x, y, z int) int {
	return (x & ChunkMask) + (y&ChunkMask)*ChunkSize + (z&ChunkMask)*ChunkArea
}

// NeighbourIndex возвращает индекс чанка в окрестности 3x3 стеков,
// dx и dy в диапазоне [-1,1], cz номер чанка в стеке
func NeighbourIndex(dx, dy, cz int) int {
	return (dx + 1) + (dy+1)*3 + cz*9
}
