package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-engine/assets"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
	"github.com/annel0/voxel-engine/internal/world/block"
)

func newTestServer(t *testing.T) (*RestServer, *world.World) {
	t.Helper()

	reg, biomes, err := assets.LoadDefault()
	require.NoError(t, err)

	w := world.New(7, reg, biomes, world.Options{
		ViewDistance:        1,
		MinimumViewDistance: 1,
		TaskCountLimit:      4,
	})
	for i := 0; i < 500 && !w.Ready(); i++ {
		w.Update(context.Background())
	}
	require.True(t, w.Ready(), "мир должен прогрузиться")

	promReg := prometheus.NewRegistry()
	rs := NewRestServer(Config{
		World:      w,
		Blocks:     reg,
		Registerer: promReg,
		Gatherer:   promReg,
	})
	return rs, w
}

func doJSON(t *testing.T, rs *RestServer, method, path string, body interface{}) (*httptest.ResponseRecorder, GenericResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	rs.Handler().ServeHTTP(rec, req)

	var resp GenericResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestHealthReportsReady(t *testing.T) {
	rs, _ := newTestServer(t)

	rec, _ := doJSON(t, rs, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestSetAndGetBlock(t *testing.T) {
	rs, w := newTestServer(t)

	rec, resp := doJSON(t, rs, http.MethodPut, "/api/blocks", SetBlockRequest{
		Position: [3]int{2, 3, 250},
		Block:    "Glass",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, resp.Success)

	glass, ok := w.Blocks.Lookup("Glass")
	require.True(t, ok)
	assert.Equal(t, glass, w.GetBlock(vec.Vec3{X: 2, Y: 3, Z: 250}))

	rec, resp = doJSON(t, rs, http.MethodGet, "/api/blocks?x=2&y=3&z=250", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "Glass", data["name"])
	assert.Equal(t, float64(glass), data["id"])
}

func TestSetBlockErrors(t *testing.T) {
	rs, _ := newTestServer(t)

	rec, resp := doJSON(t, rs, http.MethodPut, "/api/blocks", SetBlockRequest{
		Position: [3]int{0, 0, 100},
		Block:    "Unobtainium",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)

	rec, _ = doJSON(t, rs, http.MethodPut, "/api/blocks", SetBlockRequest{
		Position: [3]int{100000, 0, 100},
		Block:    block.StoneName,
	})
	assert.Equal(t, http.StatusConflict, rec.Code, "стек не загружен")

	rec, _ = doJSON(t, rs, http.MethodGet, "/api/blocks?x=a&y=0&z=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRaycastEndpoint(t *testing.T) {
	rs, w := newTestServer(t)

	require.True(t, w.SetBlock(vec.Vec3{X: 1, Y: 1, Z: 240}, block.StoneBlockID, [3]float64{}))

	rec, resp := doJSON(t, rs, http.MethodPost, "/api/raycast", RaycastRequest{
		Origin:    [3]float64{1.5, 1.5, 244.5},
		Direction: [3]float64{0, 0, -1},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, true, data["hit"])
	assert.Equal(t, block.StoneName, data["block"])
	assert.Equal(t, []interface{}{float64(0), float64(0), float64(1)}, data["normal"])
}

func TestPositionEndpoints(t *testing.T) {
	rs, w := newTestServer(t)

	rec, _ := doJSON(t, rs, http.MethodPut, "/api/position", PositionRequest{Position: [3]float64{10, 20, 30}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, [3]float64{10, 20, 30}, [3]float64(w.TrackedPosition()))

	rec, resp := doJSON(t, rs, http.MethodGet, "/api/position", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, []interface{}{float64(10), float64(20), float64(30)}, data["position"])
}

func TestSaveWithoutStorage(t *testing.T) {
	rs, _ := newTestServer(t)

	rec, resp := doJSON(t, rs, http.MethodPost, "/api/save", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, resp.Success)
}

func TestStatsAndMetrics(t *testing.T) {
	rs, _ := newTestServer(t)

	rec, resp := doJSON(t, rs, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]interface{})
	worldStats := data["world"].(map[string]interface{})
	assert.Equal(t, true, worldStats["ready"])
	assert.Contains(t, data, "server")

	rec, _ = doJSON(t, rs, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "voxel_debug_http_request_duration_seconds", "запрос к /api/stats учтён")
}
