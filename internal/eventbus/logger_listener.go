package eventbus

import (
	"context"
	"fmt"

	"github.com/annel0/voxel-engine/internal/logging"
)

// StartLoggingListener пишет все события шины в лог компонента eventbus.
// Функция неблокирующая.
func StartLoggingListener(bus EventBus) (Subscription, error) {
	log := logging.GetEventBusLogger()
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Event) {
		if ev.Type == EventSaveWritten || ev.Type == EventWorldReady {
			log.Info("[%s] %s", ev.World, describe(ev))
			return
		}
		log.Debug("[%s] %s", ev.World, describe(ev))
	})
	if err != nil {
		return nil, err
	}
	log.Info("🪵 Журнал событий мира включён")
	return sub, nil
}

// describe краткая строка о событии для журнала
func describe(ev *Event) string {
	switch ev.Type {
	case EventBlockPlaced, EventBlockDestroyed:
		var p BlockPayload
		if err := ev.Decode(&p); err != nil {
			break
		}
		s := fmt.Sprintf("%s %v: %d -> %d (тик %d)", ev.Type, p.Position, p.Previous, p.Block, p.Tick)
		if p.Audio != "" {
			s += " звук " + p.Audio
		}
		return s
	case EventDropSpawned:
		var p DropPayload
		if err := ev.Decode(&p); err != nil {
			break
		}
		return fmt.Sprintf("%s предмет %d в %.1f", ev.Type, p.Item, p.Position)
	case EventSaveWritten:
		var p SavePayload
		if err := ev.Decode(&p); err != nil {
			break
		}
		return fmt.Sprintf("💾 сохранение %s: чанков %d, предметов %d за %d мс", p.Dir, p.Chunks, p.Drops, p.DurationMs)
	case EventWorldReady:
		var p ReadyPayload
		if err := ev.Decode(&p); err != nil {
			break
		}
		return fmt.Sprintf("✅ мир готов: стеков %d на тике %d", p.Stacks, p.Tick)
	}
	return fmt.Sprintf("%s id=%s %dB", ev.Type, ev.ID, len(ev.Payload))
}
