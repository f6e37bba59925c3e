package logging

import (
	"fmt"
	"sort"
	"sync"
)

// Компоненты движка, у которых есть собственный логгер
const (
	ComponentWorld    = "world"
	ComponentStorage  = "storage"
	ComponentTerrain  = "terrain"
	ComponentAPI      = "api"
	ComponentEventBus = "eventbus"
)

// componentLevels консольный и файловый уровни компонента
type componentLevels struct {
	console LogLevel
	file    LogLevel
}

// LoggerManager хранит логгеры компонентов и переопределения их уровней.
// Переопределение, заданное до первого обращения к компоненту, применяется
// при создании логгера.
type LoggerManager struct {
	mu        sync.RWMutex
	loggers   map[string]*Logger
	overrides map[string]componentLevels
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

// GetLoggerManager возвращает глобальный менеджер логгеров
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = newLoggerManager()
	})
	return globalManager
}

func newLoggerManager() *LoggerManager {
	return &LoggerManager{
		loggers:   make(map[string]*Logger),
		overrides: make(map[string]componentLevels),
	}
}

// GetLogger возвращает логгер компонента, создавая его при первом обращении
func (lm *LoggerManager) GetLogger(component string) (*Logger, error) {
	lm.mu.RLock()
	logger, ok := lm.loggers[component]
	lm.mu.RUnlock()
	if ok {
		return logger, nil
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()

	if logger, ok := lm.loggers[component]; ok {
		return logger, nil
	}

	logger, err := NewLogger(component)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать логгер %s: %w", component, err)
	}
	if lv, ok := lm.overrides[component]; ok {
		logger.minConsoleLevel = lv.console
		logger.minFileLevel = lv.file
	}

	lm.loggers[component] = logger
	return logger, nil
}

// MustGetLogger то же, что GetLogger, но при ошибке файла пишет только в консоль
func (lm *LoggerManager) MustGetLogger(component string) *Logger {
	logger, err := lm.GetLogger(component)
	if err == nil {
		return logger
	}

	fallback := newConsoleLogger(component)
	fallback.Warn("Файл логов недоступен, вывод только в консоль: %v", err)
	return fallback
}

// ApplyLevels задаёт консольные уровни компонентов из конфигурации, например
// {"storage": "debug", "terrain": "warn"}. Файловый уровень: DEBUG или
// консольный, если тот ниже.
func (lm *LoggerManager) ApplyLevels(levels map[string]string) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	for component, raw := range levels {
		console := ParseLevel(raw)
		file := DEBUG
		if console < file {
			file = console
		}
		lm.overrides[component] = componentLevels{console: console, file: file}

		if logger, ok := lm.loggers[component]; ok {
			logger.mu.Lock()
			logger.minConsoleLevel = console
			logger.minFileLevel = file
			logger.mu.Unlock()
		}
	}
}

// SetLogLevel меняет уровни уже созданного логгера компонента
func (lm *LoggerManager) SetLogLevel(component string, consoleLevel, fileLevel LogLevel) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	logger, ok := lm.loggers[component]
	if !ok {
		return fmt.Errorf("логгер компонента %s не найден", component)
	}
	lm.overrides[component] = componentLevels{console: consoleLevel, file: fileLevel}

	logger.mu.Lock()
	logger.minConsoleLevel = consoleLevel
	logger.minFileLevel = fileLevel
	logger.mu.Unlock()
	return nil
}

// ListComponents возвращает отсортированные имена созданных логгеров
func (lm *LoggerManager) ListComponents() []string {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	components := make([]string, 0, len(lm.loggers))
	for component := range lm.loggers {
		components = append(components, component)
	}
	sort.Strings(components)
	return components
}

// CloseAll закрывает файлы всех логгеров. Переопределения уровней сохраняются.
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var firstErr error
	for component, logger := range lm.loggers {
		if err := logger.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("не удалось закрыть логгер %s: %w", component, err)
		}
	}
	lm.loggers = make(map[string]*Logger)
	return firstErr
}

// GetComponentLogger логгер компонента из глобального менеджера
func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().MustGetLogger(component)
}

func GetWorldLogger() *Logger    { return GetComponentLogger(ComponentWorld) }
func GetStorageLogger() *Logger  { return GetComponentLogger(ComponentStorage) }
func GetTerrainLogger() *Logger  { return GetComponentLogger(ComponentTerrain) }
func GetAPILogger() *Logger      { return GetComponentLogger(ComponentAPI) }
func GetEventBusLogger() *Logger { return GetComponentLogger(ComponentEventBus) }
