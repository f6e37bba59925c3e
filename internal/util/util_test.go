package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntLog2(t *testing.T) {
	cases := map[int]int{0: 0, 1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 16: 4, 17: 5, 255: 8, 256: 8}
	for in, want := range cases {
		assert.Equal(t, want, IntLog2(in), "IntLog2(%d)", in)
	}
}

func TestHashTriple32Deterministic(t *testing.T) {
	assert.Equal(t, uint32(0), HashTriple32(0))
	assert.Equal(t, HashTriple32(12345), HashTriple32(12345))
	assert.NotEqual(t, HashTriple32(1), HashTriple32(2))
}

func TestLerp3DCorners(t *testing.T) {
	assert.Equal(t, 1.0, Lerp3D(1, 2, 3, 4, 5, 6, 7, 8, 0, 0, 0))
	assert.Equal(t, 8.0, Lerp3D(1, 2, 3, 4, 5, 6, 7, 8, 1, 1, 1))
	assert.InDelta(t, 4.5, Lerp3D(1, 2, 3, 4, 5, 6, 7, 8, 0.5, 0.5, 0.5), 1e-9)
}

func TestNoiseSameSeedSameValues(t *testing.T) {
	a := NewNoise(42)
	b := NewNoise(42)

	for i := 0; i < 16; i++ {
		x, y, z := float64(i)*0.37, float64(i)*1.13, float64(i)*0.71
		assert.Equal(t, a.Noise2D(x, y), b.Noise2D(x, y))
		assert.Equal(t, a.Noise3D(x, y, z), b.Noise3D(x, y, z))

		a0, a1 := a.NoiseVec2(x, y)
		b0, b1 := b.NoiseVec2(x, y)
		assert.Equal(t, a0, b0)
		assert.Equal(t, a1, b1)
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, -1.0, Clamp(-3, -1, 1))
	assert.Equal(t, 1.0, Clamp(3, -1, 1))
	assert.Equal(t, 0.25, Clamp(0.25, -1, 1))
}
