package vec

import "math"

// Vec2 представляет 2D координаты (позиция стека чанков или колонны блоков)
type Vec2 struct {
	X, Y int
}

// Add складывает два вектора
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// Sub вычитает вектор
func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{X: v.X - other.X, Y: v.Y - other.Y}
}

// ToRegionCoords возвращает ячейку сетки регионов (16x16 стеков)
func (v Vec2) ToRegionCoords() Vec2 {
	return Vec2{X: v.X >> RegionShift, Y: v.Y >> RegionShift}
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec2) DistanceTo(other Vec2) float64 {
	dx := float64(v.X - other.X)
	dy := float64(v.Y - other.Y)
	return math.Sqrt(dx*dx + dy*dy)
}
