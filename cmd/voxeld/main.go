package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/annel0/voxel-engine/assets"
	"github.com/annel0/voxel-engine/internal/api"
	"github.com/annel0/voxel-engine/internal/config"
	"github.com/annel0/voxel-engine/internal/eventbus"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/metrics"
	"github.com/annel0/voxel-engine/internal/observability"
	"github.com/annel0/voxel-engine/internal/storage"
	"github.com/annel0/voxel-engine/internal/world"
)

const shutdownTimeout = 30 * time.Second

func main() {
	app := &cli.App{
		Name:  "voxeld",
		Usage: "потоковый воксельный мир с отладочным API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "путь к YAML конфигурации"},
			&cli.StringFlag{Name: "save", Usage: "имя сохранения (создаётся, если не существует)"},
			&cli.BoolFlag{Name: "memory", Usage: "мир без сохранения"},
			&cli.IntFlag{Name: "seed", Usage: "сид для мира без сохранения"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	if err := logging.InitDefaultLoggerIn(cfg.Logging.Dir, "voxeld"); err != nil {
		return fmt.Errorf("ошибка инициализации логирования: %w", err)
	}
	defer logging.CloseDefaultLogger()
	logging.SetDefaultLevel(logging.ParseLevel(cfg.Logging.Level))
	logging.GetLoggerManager().ApplyLevels(cfg.Logging.Components)

	logging.Info("🧱 Запуск voxeld")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var td teardown
	defer func() {
		logging.Info("📡 Завершение работы...")
		_ = td.run(shutdownTimeout)
		logging.Info("👋 voxeld остановлен")
	}()

	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("ошибка инициализации OpenTelemetry: %w", err)
	}
	td.add("telemetry", shutdownTelemetry)

	bus, err := openEventBus(cfg.EventBus)
	if err != nil {
		return err
	}
	eventbus.Init(bus)
	td.add("eventbus", func(context.Context) error {
		eventbus.Init(nil)
		return bus.Close()
	})

	listener, err := eventbus.StartLoggingListener(bus)
	if err != nil {
		return err
	}
	td.add("event log", func(context.Context) error {
		listener.Unsubscribe()
		return nil
	})

	exporter := eventbus.NewMetricsExporter(bus, prometheus.DefaultRegisterer)
	if err := exporter.StartHTTP(ctx, fmt.Sprintf(":%d", cfg.Server.GetMetricsPort())); err != nil {
		return err
	}
	td.add("metrics", exporter.Stop)

	opts, err := world.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	opts.Metrics = metrics.NewWorld(prometheus.DefaultRegisterer)
	opts.Events = bus

	w, err := openWorld(ctx, c, cfg, opts)
	if err != nil {
		return err
	}
	td.add("world", w.Close)

	rest := api.NewRestServer(api.Config{
		Port:   fmt.Sprintf(":%d", cfg.Server.GetRESTPort()),
		World:  w,
		Blocks: w.Blocks,
	})
	go func() {
		if err := rest.Start(); err != nil {
			logging.Error("❌ Ошибка REST API: %v", err)
		}
	}()
	td.add("rest", rest.Stop)

	logging.Info("✅ Мир %q запущен: дальность %d, задач %d", w.Name(), opts.ViewDistance, opts.TaskCountLimit)

	if err := w.Run(ctx, cfg.World.TickRate); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error("❌ Цикл мира остановлен: %v", err)
	}
	return nil
}

// openEventBus подключает JetStream, если задан URL, иначе шину в памяти
func openEventBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		logging.Info("🚌 Шина событий в памяти")
		return eventbus.NewMemoryBus(1024), nil
	}

	bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к JetStream: %w", err)
	}
	logging.Info("🚌 JetStream %s, стрим %s", cfg.URL, cfg.Stream)
	return bus, nil
}

// openWorld открывает сохранение из конфигурации или флагов. Отсутствующее
// сохранение создаётся.
func openWorld(ctx context.Context, c *cli.Context, cfg *config.Config, opts world.Options) (*world.World, error) {
	if c.Bool("memory") {
		blocks, biomes, err := assets.Load(opts.BlocksPath, opts.BiomesPath, nil)
		if err != nil {
			return nil, err
		}
		return world.New(int32(c.Int("seed")), blocks, biomes, opts), nil
	}

	name := cfg.Storage.Save
	if c.IsSet("save") {
		name = c.String("save")
	}
	if name == "" {
		name = "World"
	}

	dir := filepath.Join(cfg.Storage.SavesDir, storage.SaveDirName(name))
	if _, err := os.Stat(filepath.Join(dir, storage.MetadataFileName)); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(cfg.Storage.SavesDir, 0755); err != nil {
			return nil, err
		}
		if dir, err = storage.CreateSave(cfg.Storage.SavesDir, name); err != nil {
			return nil, err
		}
	}

	return world.LoadSave(ctx, dir, opts)
}
