package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/voxel-engine/internal/logging"
)

type teardownStep struct {
	name string
	stop func(context.Context) error
}

// teardown останавливает запущенные части процесса в обратном порядке.
// Шаг добавляется сразу после успешного запуска, поэтому ошибка на середине
// старта останавливает только уже поднятое.
type teardown struct {
	steps []teardownStep
}

func (t *teardown) add(name string, stop func(context.Context) error) {
	t.steps = append(t.steps, teardownStep{name: name, stop: stop})
}

// run выполняет все шаги с общим дедлайном timeout; ошибка шага не прерывает остальные
func (t *teardown) run(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for i := len(t.steps) - 1; i >= 0; i-- {
		step := t.steps[i]
		if err := step.stop(ctx); err != nil {
			logging.Error("❌ Ошибка остановки (%s): %v", step.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
		}
	}
	t.steps = nil
	return errors.Join(errs...)
}
