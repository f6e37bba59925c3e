package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeardownRunsInReverseOrder(t *testing.T) {
	var td teardown
	var order []string
	record := func(name string, err error) func(context.Context) error {
		return func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			require.True(t, ok, "шаг получает контекст с дедлайном")
			order = append(order, name)
			return err
		}
	}

	busErr := errors.New("nats недоступен")
	td.add("telemetry", record("telemetry", nil))
	td.add("eventbus", record("eventbus", busErr))
	td.add("exporter", record("exporter", nil))

	err := td.run(time.Second)
	assert.Equal(t, []string{"exporter", "eventbus", "telemetry"}, order, "ошибка шага не прерывает остальные")
	assert.ErrorIs(t, err, busErr)

	// Повторный вызов ничего не останавливает дважды
	order = nil
	require.NoError(t, td.run(time.Second))
	assert.Empty(t, order)
}

func TestTeardownAfterPartialStart(t *testing.T) {
	var td teardown
	stopped := map[string]bool{}
	start := func(name string, fail bool) error {
		if fail {
			return errors.New("ошибка запуска " + name)
		}
		td.add(name, func(context.Context) error {
			stopped[name] = true
			return nil
		})
		return nil
	}

	require.NoError(t, start("telemetry", false))
	require.NoError(t, start("eventbus", false))
	require.Error(t, start("world", true))

	require.NoError(t, td.run(time.Second))
	assert.Equal(t, map[string]bool{"telemetry": true, "eventbus": true}, stopped)
}
