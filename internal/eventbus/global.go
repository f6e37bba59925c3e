package eventbus

import (
	"context"
	"sync"
)

var (
	defaultMu  sync.RWMutex
	defaultBus EventBus
)

// Init делает bus шиной процесса по умолчанию; nil отключает публикацию
func Init(bus EventBus) {
	defaultMu.Lock()
	defaultBus = bus
	defaultMu.Unlock()
}

// Default шина процесса или nil
func Default() EventBus {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultBus
}

// Publish отправляет событие в шину по умолчанию. Без шины событие теряется молча.
func Publish(ctx context.Context, ev *Event) error {
	bus := Default()
	if bus == nil {
		return nil
	}
	return bus.Publish(ctx, ev)
}

// Emit собирает событие мира и публикует его в bus, а если bus == nil, в шину
// по умолчанию
func Emit(ctx context.Context, bus EventBus, world, eventType string, payload interface{}) error {
	ev, err := NewEvent(world, eventType, payload)
	if err != nil {
		return err
	}
	if bus == nil {
		return Publish(ctx, ev)
	}
	return bus.Publish(ctx, ev)
}
