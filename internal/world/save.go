package world

import (
	"context"
	"fmt"
	"time"

	"github.com/annel0/voxel-engine/internal/eventbus"
	"github.com/annel0/voxel-engine/internal/storage"
)

// WriteSave записывает изменённые чанки, выпавшие предметы, отслеживаемую
// позицию и счётчики тиков, затем сбрасывает сохранение на диск
func (w *World) WriteSave(ctx context.Context) error {
	if w.storage == nil {
		return storage.ErrNoSaveLoaded
	}
	start := time.Now()

	w.mu.RLock()
	chunks := 0
	for pos, s := range w.stacks {
		n, err := s.storeDirty(w.storage.StoreChunk)
		chunks += n
		if err != nil {
			w.mu.RUnlock()
			return fmt.Errorf("ошибка записи стека %v: %w", pos, err)
		}
	}

	records := make([]storage.DropRecord, 0, len(w.drops))
	for _, d := range w.drops {
		records = append(records, d.record())
	}
	tracked := w.tracked
	tick, dayCycle := w.currentTick, w.dayCycleTick
	w.mu.RUnlock()

	w.storage.SetElapsed(tick, dayCycle)

	if err := w.storage.Entities().ReplaceDrops(ctx, records); err != nil {
		return err
	}
	if err := w.storage.Entities().SavePosition(ctx, tracked); err != nil {
		return err
	}
	if err := w.storage.Flush(ctx); err != nil {
		return err
	}

	d := time.Since(start)
	w.log.Info("💾 Мир %q сохранён: чанков %d, предметов %d", w.name, chunks, len(records))
	w.publish(ctx, eventbus.EventSaveWritten, eventbus.SavePayload{
		Dir:          w.storage.Dir(),
		Chunks:       chunks,
		Drops:        len(records),
		ElapsedTicks: tick,
		DurationMs:   d.Milliseconds(),
	})
	return nil
}
