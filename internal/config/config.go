package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации движка.
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Storage   StorageConfig   `yaml:"storage"`
	Content   ContentConfig   `yaml:"content"`
	Server    ServerConfig    `yaml:"server"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type WorldConfig struct {
	ViewDistance        int `yaml:"view_distance"`
	MinimumViewDistance int `yaml:"minimum_view_distance"`
	TaskCountLimit      int `yaml:"task_count_limit"`
	Workers             int `yaml:"workers"`
	TickRate            int `yaml:"tick_rate"`
}

// StorageConfig описывает каталог сохранений и режим сжатия регионов
type StorageConfig struct {
	SavesDir    string `yaml:"saves_dir"`
	Save        string `yaml:"save"`
	Compression string `yaml:"compression"` // palette | zstd
}

type ContentConfig struct {
	Blocks string `yaml:"blocks"`
	Biomes string `yaml:"biomes"`
}

type ServerConfig struct {
	RESTPort    int `yaml:"rest_port"`
	MetricsPort int `yaml:"metrics_port"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

// TelemetryConfig экспорт трасс по OTLP HTTP. Пустой Endpoint берётся из
// OTEL_EXPORTER_OTLP_ENDPOINT.
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type LoggingConfig struct {
	Level      string            `yaml:"level"`
	Dir        string            `yaml:"dir"`
	Components map[string]string `yaml:"components"` // уровни отдельных компонентов
}

// Значения по умолчанию
const (
	DefaultViewDistance        = 8
	DefaultMinimumViewDistance = 4
	DefaultTaskCountLimit      = 10
	DefaultTickRate            = 60
)

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		World: WorldConfig{
			ViewDistance:        DefaultViewDistance,
			MinimumViewDistance: DefaultMinimumViewDistance,
			TaskCountLimit:      DefaultTaskCountLimit,
			TickRate:            DefaultTickRate,
		},
		Storage: StorageConfig{
			SavesDir:    "saves",
			Compression: "palette",
		},
		Content: ContentConfig{
			Blocks: "assets/blocks.yaml",
			Biomes: "assets/biomes.yaml",
		},
		EventBus: EventBusConfig{
			Stream:    "VOXEL_EVENTS",
			Retention: 24,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "voxel-engine",
			SampleRatio: 1,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "logs",
		},
	}
}

// GetViewDistance возвращает дальность прогрузки с поддержкой fallback значений
func (w *WorldConfig) GetViewDistance() int {
	return getIntWithEnvFallback(w.ViewDistance, "VOXEL_VIEW_DISTANCE", DefaultViewDistance)
}

// GetMinimumViewDistance возвращает минимальную дальность, после которой мир считается готовым
func (w *WorldConfig) GetMinimumViewDistance() int {
	if w.MinimumViewDistance > 0 {
		return w.MinimumViewDistance
	}
	return DefaultMinimumViewDistance
}

// GetTaskCountLimit возвращает потолок одновременно выполняемых задач
func (w *WorldConfig) GetTaskCountLimit() int {
	return getIntWithEnvFallback(w.TaskCountLimit, "VOXEL_TASK_LIMIT", DefaultTaskCountLimit)
}

// GetWorkers возвращает размер пула воркеров; по умолчанию равен потолку задач
func (w *WorldConfig) GetWorkers() int {
	if w.Workers > 0 {
		return w.Workers
	}
	return w.GetTaskCountLimit()
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getIntWithEnvFallback(s.RESTPort, "VOXEL_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getIntWithEnvFallback(s.MetricsPort, "VOXEL_METRICS_PORT", 2112)
}

// getIntWithEnvFallback возвращает значение с приоритетом: config -> env -> default
func getIntWithEnvFallback(configValue int, envVar string, defaultValue int) int {
	// Если значение задано в конфиге и больше 0, используем его
	if configValue > 0 {
		return configValue
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.Atoi(envVal); err == nil && v > 0 {
			return v
		}
	}

	return defaultValue
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV VOXEL_CONFIG или возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("VOXEL_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения конфигурации %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность значений
func (c *Config) Validate() error {
	if c.World.ViewDistance < 0 || c.World.MinimumViewDistance < 0 {
		return fmt.Errorf("дальность прогрузки не может быть отрицательной")
	}
	if c.World.ViewDistance > 0 && c.World.MinimumViewDistance > c.World.ViewDistance {
		return fmt.Errorf("minimum_view_distance (%d) больше view_distance (%d)",
			c.World.MinimumViewDistance, c.World.ViewDistance)
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("sample_ratio должен быть в [0, 1], получено %v", c.Telemetry.SampleRatio)
	}
	switch c.Storage.Compression {
	case "", "palette", "zstd":
	default:
		return fmt.Errorf("неизвестный режим сжатия %q", c.Storage.Compression)
	}
	return nil
}
