// Package eventbus доставляет события мира (правки блоков, выпавшие предметы,
// записи сохранения) подписчикам: в памяти процесса или через NATS JetStream.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Priority важность события при переполнении очередей
type Priority int

const (
	PriorityLow      Priority = 1 // отбрасывается при переполнении
	PriorityNormal   Priority = 5 // и выше: публикация ждёт места
	PriorityCritical Priority = 9
)

// Event событие мира в том виде, в каком оно уходит подписчикам и в JetStream
type Event struct {
	ID       string          `json:"id"`
	Time     time.Time       `json:"time"`  // UTC
	World    string          `json:"world"` // имя сохранения
	Type     string          `json:"type"`
	Version  int             `json:"version"`
	Priority Priority        `json:"priority"`
	Payload  json.RawMessage `json:"payload"`
}

// Filter отбирает события по типу и миру. Пустой список пропускает всё.
type Filter struct {
	Types  []string
	Worlds []string
}

// Match проверяет, проходит ли событие фильтр
func (f Filter) Match(ev *Event) bool {
	return contains(f.Types, ev.Type) && contains(f.Worlds, ev.World)
}

func contains(list []string, v string) bool {
	if len(list) == 0 {
		return true
	}
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Subscription отписка от шины
type Subscription interface {
	Unsubscribe()
}

// Handler обрабатывает событие. Для одного подписчика вызовы идут по порядку публикации.
type Handler func(ctx context.Context, ev *Event)

// Stats счётчики шины
type Stats struct {
	Published uint64
	Consumed  uint64
	Dropped   uint64
	InFlight  int
}

// EventBus шина событий: в памяти (NewMemoryBus) или JetStream (NewJetStreamBus)
type EventBus interface {
	Publish(ctx context.Context, ev *Event) error
	Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error)
	Metrics() Stats
	Close() error
}

// ErrBusClosed публикация в закрытую шину
var ErrBusClosed = errors.New("шина событий закрыта")

// inboxSize очередь одного подписчика в памяти
const inboxSize = 64

// memoryBus общая очередь публикаций и по очереди на подписчика
type memoryBus struct {
	// closeMu защищает queue от закрытия во время публикации
	closeMu sync.RWMutex
	queue   chan *Event
	closed  bool

	mu     sync.RWMutex
	subs   map[uint64]*memSub
	nextID uint64

	published atomic.Uint64
	consumed  atomic.Uint64
	dropped   atomic.Uint64

	done chan struct{}
}

// NewMemoryBus создаёт шину в памяти с очередью на capacity событий
func NewMemoryBus(capacity int) EventBus {
	mb := newMemoryBus(capacity)
	go mb.dispatch()
	return mb
}

func newMemoryBus(capacity int) *memoryBus {
	return &memoryBus{
		queue: make(chan *Event, capacity),
		subs:  make(map[uint64]*memSub),
		done:  make(chan struct{}),
	}
}

func (mb *memoryBus) Publish(ctx context.Context, ev *Event) error {
	mb.closeMu.RLock()
	defer mb.closeMu.RUnlock()
	if mb.closed {
		return ErrBusClosed
	}

	select {
	case mb.queue <- ev:
		mb.published.Add(1)
		return nil
	default:
	}

	if ev.Priority < PriorityNormal {
		mb.dropped.Add(1)
		return nil
	}

	select {
	case mb.queue <- ev:
		mb.published.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (mb *memoryBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	mb.closeMu.RLock()
	closed := mb.closed
	mb.closeMu.RUnlock()
	if closed {
		return nil, ErrBusClosed
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	sctx, cancel := context.WithCancel(ctx)
	sub := &memSub{
		bus:     mb,
		id:      mb.nextID,
		filter:  f,
		handler: h,
		inbox:   make(chan *Event, inboxSize),
		ctx:     sctx,
		cancel:  cancel,
	}
	mb.nextID++
	mb.subs[sub.id] = sub

	go sub.run()
	return sub, nil
}

func (mb *memoryBus) Metrics() Stats {
	return Stats{
		Published: mb.published.Load(),
		Consumed:  mb.consumed.Load(),
		Dropped:   mb.dropped.Load(),
		InFlight:  len(mb.queue),
	}
}

// Close прекращает приём событий и дожидается раздачи уже принятых
func (mb *memoryBus) Close() error {
	mb.closeMu.Lock()
	if mb.closed {
		mb.closeMu.Unlock()
		return nil
	}
	mb.closed = true
	close(mb.queue)
	mb.closeMu.Unlock()

	<-mb.done

	mb.mu.Lock()
	for id, sub := range mb.subs {
		sub.cancel()
		delete(mb.subs, id)
	}
	mb.mu.Unlock()
	return nil
}

func (mb *memoryBus) dispatch() {
	defer close(mb.done)

	for ev := range mb.queue {
		mb.mu.RLock()
		targets := make([]*memSub, 0, len(mb.subs))
		for _, sub := range mb.subs {
			if sub.filter.Match(ev) {
				targets = append(targets, sub)
			}
		}
		mb.mu.RUnlock()

		for _, sub := range targets {
			sub.deliver(ev)
		}
	}
}

type memSub struct {
	bus     *memoryBus
	id      uint64
	filter  Filter
	handler Handler
	inbox   chan *Event
	ctx     context.Context
	cancel  context.CancelFunc
}

// deliver кладёт событие в очередь подписчика. Медленный подписчик теряет
// события низкого приоритета, остальные ждут места.
func (s *memSub) deliver(ev *Event) {
	select {
	case s.inbox <- ev:
		return
	default:
	}

	if ev.Priority < PriorityNormal {
		s.bus.dropped.Add(1)
		return
	}

	select {
	case s.inbox <- ev:
	case <-s.ctx.Done():
	}
}

func (s *memSub) run() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.inbox:
			s.handler(s.ctx, ev)
			s.bus.consumed.Add(1)
		}
	}
}

func (s *memSub) Unsubscribe() {
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()
	s.cancel()
}
