// Package biome описывает климатические данные генерации: верхние слои
// поверхности и декораторы (деревья и т.п.).
package biome

import (
	"math"

	"github.com/annel0/voxel-engine/internal/world/block"
)

// Climate климат колонны: температура и влажность в диапазоне [0,255]
type Climate struct {
	Temperature byte
	Humidity    byte
}

// ClimateMap климат колонн стека, индекс [x][y]
type ClimateMap [32][32]Climate

// GenerationData блоки, которые генератор использует независимо от климата
type GenerationData struct {
	BeachBlock block.BlockID
	WaterBlock block.BlockID
}

// TopLayer поверхность для точки климатического пространства
type TopLayer struct {
	Surface     block.BlockID
	Subsurface  block.BlockID
	Depth       int
	Temperature float64
	Humidity    float64
}

// Set неизменяемый набор климатических данных
type Set struct {
	Generation GenerationData
	TopLayers  []TopLayer
	Decorators []Decorator
}

// ClimateToUnit переводит байт климата [0,255] в диапазон [-1,1]
func ClimateToUnit(v byte) float64 {
	return float64(v)/255*2 - 1
}

// NearestTopLayer линейный поиск ближайшего верхнего слоя по евклидову расстоянию
func (s *Set) NearestTopLayer(temperature, humidity byte) *TopLayer {
	if len(s.TopLayers) == 0 {
		return nil
	}

	t := ClimateToUnit(temperature)
	h := ClimateToUnit(humidity)

	closest := 0
	closestDistance := math.MaxFloat64
	for i := range s.TopLayers {
		d := math.Hypot(t-s.TopLayers[i].Temperature, h-s.TopLayers[i].Humidity)
		if d < closestDistance {
			closest = i
			closestDistance = d
		}
	}
	return &s.TopLayers[closest]
}

// DecoratorsFor добавляет в dst декораторы, чей климатический радиус содержит точку
func (s *Set) DecoratorsFor(temperature, humidity byte, dst []*Decorator) []*Decorator {
	t := ClimateToUnit(temperature)
	h := ClimateToUnit(humidity)

	for i := range s.Decorators {
		d := &s.Decorators[i]
		if math.Hypot(t-d.Temperature, h-d.Humidity) < d.ClimateRange {
			dst = append(dst, d)
		}
	}
	return dst
}
