package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-engine/internal/storage"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

func TestPrintSaves(t *testing.T) {
	dir := t.TempDir()
	_, err := storage.CreateSaveWithSeed(dir, "Alpha", 11)
	require.NoError(t, err)

	var out bytes.Buffer
	printSaves(&out, storage.ScanForSaves(dir))

	assert.Contains(t, out.String(), "Alpha")
	assert.Contains(t, out.String(), "11")
}

func TestInspectRegions(t *testing.T) {
	dir, err := storage.CreateSaveWithSeed(t.TempDir(), "Beta", 3)
	require.NoError(t, err)

	st, err := storage.LoadSave(dir, storage.Options{})
	require.NoError(t, err)
	chunk := make([]block.BlockID, vec.ChunkVolume)
	chunk[0] = block.StoneBlockID
	require.NoError(t, st.StoreChunk(vec.Vec3{X: 1, Y: 2, Z: 3}, chunk))
	require.NoError(t, st.Flush(context.Background()))
	require.NoError(t, st.Close())

	var out bytes.Buffer
	require.NoError(t, inspect(&out, dir))

	assert.Contains(t, out.String(), `Сохранение "Beta"`)
	assert.Contains(t, out.String(), "регионов 1")
	assert.Contains(t, out.String(), "чанк (1,2,3)")
	assert.Contains(t, out.String(), "palette")
}
