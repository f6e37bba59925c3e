// Package api отладочный REST API движка: состояние мира, чтение и правка
// блоков, трассировка лучей и запись сохранения.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/metrics"
	"github.com/annel0/voxel-engine/internal/middleware"
	"github.com/annel0/voxel-engine/internal/storage"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// WorldService операции мира, доступные через API
type WorldService interface {
	Stats() world.Stats
	GetBlock(p vec.Vec3) block.BlockID
	SetBlock(p vec.Vec3, id block.BlockID, audio mgl64.Vec3) bool
	RaySolid(origin, direction mgl64.Vec3) world.RayHit
	TrackedPosition() mgl64.Vec3
	SetTrackedPosition(p mgl64.Vec3)
	WriteSave(ctx context.Context) error
}

// RestServer представляет REST API сервер
type RestServer struct {
	router  *gin.Engine
	server  *http.Server
	world   WorldService
	blocks  *block.Registry
	port    string
	process *metrics.Process
	log     *logging.Logger
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port   string          // порт для запуска сервера
	World  WorldService    // мир, которым управляет API
	Blocks *block.Registry // реестр для имён блоков

	// Registerer и Gatherer для HTTP-метрик и /metrics; nil означает
	// глобальный реестр prometheus
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.Registerer == nil {
		config.Registerer = prometheus.DefaultRegisterer
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	router.Use(otelgin.Middleware("voxel_debug"))

	log := logging.GetAPILogger()
	router.Use(middleware.NewRequestLogger(log, "/health", "/metrics").Handler())

	promMw := middleware.NewPrometheusMiddleware("voxel_debug", config.Registerer)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Gatherer)

	rs := &RestServer{
		router:  router,
		world:   config.World,
		blocks:  config.Blocks,
		port:    config.Port,
		process: metrics.NewProcess(),
		log:     log,
	}
	rs.server = &http.Server{
		Addr:              config.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	rs.setupRoutes()
	return rs
}

// Handler HTTP-обработчик сервера
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")
	{
		api.GET("/stats", rs.handleStats)
		api.GET("/blocks", rs.handleGetBlock)
		api.PUT("/blocks", rs.handleSetBlock)
		api.POST("/raycast", rs.handleRaycast)
		api.GET("/position", rs.handleGetPosition)
		api.PUT("/position", rs.handleSetPosition)
		api.POST("/save", rs.handleSave)
	}
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// BlockResponse блок в мировой позиции
type BlockResponse struct {
	Position [3]int `json:"position"`
	ID       uint8  `json:"id"`
	Name     string `json:"name"`
}

// SetBlockRequest запрос на установку блока. Block имя блока, "Air" разрушает.
type SetBlockRequest struct {
	Position [3]int     `json:"position"`
	Block    string     `json:"block" binding:"required"`
	Audio    [3]float64 `json:"audio"`
}

// RaycastRequest запрос трассировки луча
type RaycastRequest struct {
	Origin    [3]float64 `json:"origin"`
	Direction [3]float64 `json:"direction"`
}

// RaycastResponse результат трассировки
type RaycastResponse struct {
	Hit      bool   `json:"hit"`
	Block    string `json:"block,omitempty"`
	Position [3]int `json:"position"`
	Normal   [3]int `json:"normal"`
}

// PositionRequest новая отслеживаемая позиция
type PositionRequest struct {
	Position [3]float64 `json:"position"`
}

func (rs *RestServer) handleHealth(c *gin.Context) {
	st := rs.world.Stats()
	status := "loading"
	if st.Ready {
		status = "ok"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"progress": st.Progress,
		"time":     time.Now().Unix(),
	})
}

func (rs *RestServer) handleStats(c *gin.Context) {
	cpuPercent, err := rs.process.CPUPercent()
	if err != nil {
		rs.log.Debug("CPU недоступен: %v", err)
	}

	stats := map[string]interface{}{
		"world": rs.world.Stats(),
		"server": map[string]interface{}{
			"uptime":      rs.process.Uptime(),
			"memory_mb":   fmt.Sprintf("%.2f", rs.process.MemoryMB()),
			"cpu_percent": fmt.Sprintf("%.2f", cpuPercent),
			"server_time": time.Now().Unix(),
		},
		"memory_details": rs.process.MemoryDetails(),
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика получена",
		Data:    stats,
	})
}

func (rs *RestServer) handleGetBlock(c *gin.Context) {
	var p [3]int
	for i, key := range []string{"x", "y", "z"} {
		v, err := strconv.Atoi(c.Query(key))
		if err != nil {
			c.JSON(http.StatusBadRequest, GenericResponse{
				Success: false,
				Message: fmt.Sprintf("Неверная координата %s", key),
			})
			return
		}
		p[i] = v
	}

	id := rs.world.GetBlock(vec.Vec3{X: p[0], Y: p[1], Z: p[2]})
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Блок получен",
		Data:    BlockResponse{Position: p, ID: uint8(id), Name: rs.blockName(id)},
	})
}

func (rs *RestServer) handleSetBlock(c *gin.Context) {
	var req SetBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса",
		})
		return
	}

	id, ok := rs.blocks.Lookup(req.Block)
	if !ok {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: fmt.Sprintf("Неизвестный блок %q", req.Block),
		})
		return
	}

	p := vec.Vec3{X: req.Position[0], Y: req.Position[1], Z: req.Position[2]}
	if !rs.world.SetBlock(p, id, mgl64.Vec3(req.Audio)) {
		c.JSON(http.StatusConflict, GenericResponse{
			Success: false,
			Message: "Стек не загружен или позиция вне мира",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Блок установлен",
		Data:    BlockResponse{Position: req.Position, ID: uint8(id), Name: rs.blockName(id)},
	})
}

func (rs *RestServer) handleRaycast(c *gin.Context) {
	var req RaycastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса",
		})
		return
	}

	hit := rs.world.RaySolid(mgl64.Vec3(req.Origin), mgl64.Vec3(req.Direction))
	resp := RaycastResponse{
		Hit:      hit.Hit,
		Position: [3]int{hit.Position.X, hit.Position.Y, hit.Position.Z},
		Normal:   [3]int{hit.Normal.X, hit.Normal.Y, hit.Normal.Z},
	}
	if hit.Hit {
		resp.Block = rs.blockName(hit.Block)
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Трассировка выполнена",
		Data:    resp,
	})
}

func (rs *RestServer) handleGetPosition(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Позиция получена",
		Data:    PositionRequest{Position: rs.world.TrackedPosition()},
	})
}

func (rs *RestServer) handleSetPosition(c *gin.Context) {
	var req PositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса",
		})
		return
	}

	rs.world.SetTrackedPosition(mgl64.Vec3(req.Position))
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Позиция обновлена",
		Data:    req,
	})
}

func (rs *RestServer) handleSave(c *gin.Context) {
	err := rs.world.WriteSave(c.Request.Context())
	switch {
	case errors.Is(err, storage.ErrNoSaveLoaded):
		c.JSON(http.StatusConflict, GenericResponse{
			Success: false,
			Message: "Мир запущен без сохранения",
		})
	case err != nil:
		rs.log.Error("Ошибка записи сохранения: %v", err)
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Внутренняя ошибка сервера",
		})
	default:
		c.JSON(http.StatusOK, GenericResponse{
			Success: true,
			Message: "Мир сохранён",
		})
	}
}

func (rs *RestServer) blockName(id block.BlockID) string {
	if !rs.blocks.Has(id) {
		return ""
	}
	return rs.blocks.Get(id).Name
}

// Start запускает REST сервер и блокируется до остановки
func (rs *RestServer) Start() error {
	rs.log.Info("🌐 Отладочный API слушает %s", rs.port)
	if err := rs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop останавливает сервер, дожидаясь завершения запросов
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.server.Shutdown(ctx)
}
