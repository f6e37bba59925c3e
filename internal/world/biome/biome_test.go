package biome

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

const testBlocks = `
blocks:
  - name: Grass
  - name: Dirt
  - name: Sand
  - name: Water
    translucent: true
    liquid: true
  - name: Log
  - name: Leaves
`

const testBiomes = `
generation: {beach: Sand, water: Water}
top_layers:
  - {surface: Grass, subsurface: Dirt, depth: 3, temperature: 0.0, humidity: 0.0}
  - {surface: Sand, subsurface: Sand, depth: 5, temperature: 1.0, humidity: -1.0}
decorators:
  - {name: Tree, type: small_tree, temperature: 0.0, humidity: 0.0, climate_range: 0.5, frequency: 0.5, log: Log, leaves: Leaves, height: 4, height_variation: 3}
`

func loadTestSet(t *testing.T) (*block.Registry, *Set) {
	t.Helper()
	b := block.NewBuilder(nil)
	require.NoError(t, b.LoadContent([]byte(testBlocks)))
	reg := b.Build()

	set, err := Load([]byte(testBiomes), reg)
	require.NoError(t, err)
	return reg, set
}

func TestNearestTopLayer(t *testing.T) {
	reg, set := loadTestSet(t)

	// 128 ~ 0.0 в единичном пространстве
	tl := set.NearestTopLayer(128, 128)
	require.NotNil(t, tl)
	assert.Equal(t, reg.MustLookup("Grass"), tl.Surface)

	tl = set.NearestTopLayer(255, 0)
	assert.Equal(t, reg.MustLookup("Sand"), tl.Surface)
	assert.Equal(t, 5, tl.Depth)
}

func TestDecoratorsFilteredByClimate(t *testing.T) {
	_, set := loadTestSet(t)

	assert.Len(t, set.DecoratorsFor(128, 128, nil), 1)
	assert.Empty(t, set.DecoratorsFor(255, 0, nil))
}

func TestLoadUnknownBlock(t *testing.T) {
	reg := block.NewBuilder(nil).Build()
	_, err := Load([]byte(testBiomes), reg)
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("small_tree")
	require.NoError(t, err)
	assert.Equal(t, KindSmallTree, k)
	assert.Equal(t, "small_tree", k.String())

	_, err = ParseKind("cactus")
	assert.Error(t, err)
}

type recordingStamper struct {
	columns []vec.Vec3
	heights []int
	crowns  []vec.Vec3
}

func (r *recordingStamper) Column(pos vec.Vec3, height int, b block.BlockID) {
	r.columns = append(r.columns, pos)
	r.heights = append(r.heights, height)
}

func (r *recordingStamper) Crown(pos vec.Vec3, radius int, b block.BlockID) {
	r.crowns = append(r.crowns, pos)
}

func TestSmallTreeHeightFromHash(t *testing.T) {
	_, set := loadTestSet(t)
	d := &set.Decorators[0]

	rec := &recordingStamper{}
	d.Generate(rec, vec.Vec3{X: 10, Y: 12, Z: 80}, 7)

	// 4 + 7%3
	require.Len(t, rec.heights, 1)
	assert.Equal(t, 5, rec.heights[0])
	assert.Equal(t, vec.Vec3{X: 10, Y: 12, Z: 85}, rec.crowns[0])
}
