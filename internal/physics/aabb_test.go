package physics

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"

	"github.com/annel0/voxel-engine/internal/vec"
)

func TestAABBIntersects(t *testing.T) {
	b := FromBlock(vec.Vec3{X: 1, Y: 2, Z: 3})

	player := FromEntity(mgl64.Vec3{1.5, 2.5, 3}, mgl64.Vec3{0.6, 0.6, 1.8})
	assert.True(t, player.Intersects(b))

	// Касание гранью
	above := FromEntity(mgl64.Vec3{1.5, 2.5, 4}, mgl64.Vec3{0.6, 0.6, 1.8})
	assert.False(t, above.Intersects(b))

	neighbour := FromBlock(vec.Vec3{X: 2, Y: 2, Z: 3})
	assert.False(t, neighbour.Intersects(b))
	assert.True(t, neighbour.Translate(mgl64.Vec3{-0.5, 0, 0}).Intersects(b))

	hit, ok := player.IntersectsAny([]AABB{neighbour, b})
	assert.True(t, ok)
	assert.Equal(t, b, hit)
}

func TestAABBGeometry(t *testing.T) {
	s := FromStack(vec.Vec2{X: -1, Y: 2})
	assert.Equal(t, mgl64.Vec3{-32, 64, 0}, s.Position)
	assert.Equal(t, mgl64.Vec3{0, 96, 256}, s.Max())
	assert.True(t, s.Contains(mgl64.Vec3{-0.5, 64, 255.9}))
	assert.False(t, s.Contains(mgl64.Vec3{0, 64, 10}))

	e := FromEntity(mgl64.Vec3{0, 0, 10}, mgl64.Vec3{2, 4, 2})
	assert.Equal(t, mgl64.Vec3{-1, -2, 10}, e.Position)
	assert.Equal(t, mgl64.Vec3{0, 0, 11}, e.Center())
}
