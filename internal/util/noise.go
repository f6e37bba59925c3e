package util

import (
	"github.com/aquilax/go-perlin"
)

// Параметры генератора шума: одна октава градиентного шума
const (
	noiseAlpha   = 2.0
	noiseBeta    = 2.0
	noiseOctaves = int32(1)

	// secondarySeedSalt отделяет второй канал векторного шума от первого
	secondarySeedSalt = 0x5bd1e995
)

// Noise градиентный шум, детерминированный по сиду. После создания только читается,
// поэтому один экземпляр можно использовать из нескольких горутин.
type Noise struct {
	primary   *perlin.Perlin
	secondary *perlin.Perlin
}

// NewNoise создаёт генератор шума с указанным сидом
func NewNoise(seed int64) *Noise {
	return &Noise{
		primary:   perlin.NewPerlin(noiseAlpha, noiseBeta, noiseOctaves, seed),
		secondary: perlin.NewPerlin(noiseAlpha, noiseBeta, noiseOctaves, seed^secondarySeedSalt),
	}
}

// Noise2D возвращает значение шума в точке (x, y), примерно в диапазоне [-1, 1]
func (n *Noise) Noise2D(x, y float64) float64 {
	return n.primary.Noise2D(x, y)
}

// Noise3D возвращает значение трёхмерного шума
func (n *Noise) Noise3D(x, y, z float64) float64 {
	return n.primary.Noise3D(x, y, z)
}

// NoiseVec2 возвращает два независимых канала шума в одной точке
func (n *Noise) NoiseVec2(x, y float64) (float64, float64) {
	return n.primary.Noise2D(x, y), n.secondary.Noise2D(x, y)
}
