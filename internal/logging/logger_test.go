package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel(" warning "))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel("что-то"))
}

func TestLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()

	logDirMu.Lock()
	prev := logDir
	logDir = dir
	logDirMu.Unlock()
	defer func() {
		logDirMu.Lock()
		logDir = prev
		logDirMu.Unlock()
	}()

	logger, err := NewLogger("storage")
	require.NoError(t, err)

	logger.Debug("регион %d записан", 3)
	logger.Trace("не должно попасть в файл")
	require.NoError(t, logger.Close())

	files, err := filepath.Glob(filepath.Join(dir, "storage_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	content := string(data)
	assert.True(t, strings.Contains(content, "[DEBUG] [storage] регион 3 записан"))
	assert.False(t, strings.Contains(content, "не должно"))
}

func TestManagerReturnsSameLogger(t *testing.T) {
	m := GetLoggerManager()
	a := m.MustGetLogger("test-component")
	b := m.MustGetLogger("test-component")
	assert.Same(t, a, b)
	assert.Contains(t, m.ListComponents(), "test-component")

	require.NoError(t, m.SetLogLevel("test-component", ERROR, ERROR))
	assert.Error(t, m.SetLogLevel("нет-такого", INFO, INFO))
}

func TestApplyLevelsBeforeAndAfterCreation(t *testing.T) {
	m := newLoggerManager()

	existing := m.MustGetLogger("storage")
	m.ApplyLevels(map[string]string{"storage": "error", "terrain": "trace"})

	assert.Equal(t, ERROR, existing.minConsoleLevel)
	assert.Equal(t, DEBUG, existing.minFileLevel)

	terrain := m.MustGetLogger("terrain")
	assert.Equal(t, TRACE, terrain.minConsoleLevel)
	assert.Equal(t, TRACE, terrain.minFileLevel, "файловый уровень не выше консольного")

	assert.Equal(t, []string{"storage", "terrain"}, m.ListComponents())
}
