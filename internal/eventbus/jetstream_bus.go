package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	nats "github.com/nats-io/nats.go"
)

// subjectRoot корень subject'ов: voxel.<мир>.<тип>
const subjectRoot = "voxel"

// dedupWindow окно, в котором JetStream отбрасывает повторы по ID события
const dedupWindow = 2 * time.Minute

// JetStreamBus EventBus поверх NATS JetStream. События одного мира лежат в
// отдельной ветке subject'ов, поэтому подписка на один мир не читает чужие.
type JetStreamBus struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	stream string

	published atomic.Uint64
	consumed  atomic.Uint64
	dropped   atomic.Uint64
}

// NewJetStreamBus подключается к NATS (nats://127.0.0.1:4222) и создаёт стрим,
// если его ещё нет. Стрим хранит события не дольше retention.
func NewJetStreamBus(url, stream string, retention time.Duration) (*JetStreamBus, error) {
	if stream == "" {
		stream = "VOXEL_EVENTS"
	}

	nc, err := nats.Connect(url, nats.Name("voxeld"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if _, err := js.StreamInfo(stream); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:       stream,
			Subjects:   []string{subjectRoot + ".>"},
			Retention:  nats.LimitsPolicy,
			MaxAge:     retention,
			Storage:    nats.FileStorage,
			Duplicates: dedupWindow,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("add stream %s: %w", stream, err)
		}
	}

	return &JetStreamBus{nc: nc, js: js, stream: stream}, nil
}

// subjectToken делает имя мира пригодным для одного токена subject'а
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, s)
}

func eventSubject(world, eventType string) string {
	return subjectRoot + "." + subjectToken(world) + "." + eventType
}

// filterSubject самый узкий subject, покрывающий фильтр. Остальное
// отсекает Filter.Match на стороне подписчика.
func filterSubject(f Filter) string {
	world, typ := "*", "*"
	if len(f.Worlds) == 1 {
		world = subjectToken(f.Worlds[0])
	}
	if len(f.Types) == 1 {
		typ = f.Types[0]
	}
	return subjectRoot + "." + world + "." + typ
}

// Publish пишет событие в voxel.<мир>.<тип>. ID события служит ключом
// дедупликации.
func (jb *JetStreamBus) Publish(ctx context.Context, ev *Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		jb.dropped.Add(1)
		return fmt.Errorf("ошибка сериализации события %s: %w", ev.ID, err)
	}

	_, err = jb.js.Publish(eventSubject(ev.World, ev.Type), data, nats.Context(ctx), nats.MsgId(ev.ID))
	if err != nil {
		if ev.Priority < PriorityNormal {
			jb.dropped.Add(1)
			return nil
		}
		return err
	}
	jb.published.Add(1)
	return nil
}

// Subscribe создаёт эфемерного потребителя, читающего только новые события
func (jb *JetStreamBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	sub, err := jb.js.Subscribe(filterSubject(f), func(msg *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			jb.dropped.Add(1)
			_ = msg.Term()
			return
		}
		if f.Match(&ev) {
			h(ctx, &ev)
			jb.consumed.Add(1)
		}
		_ = msg.Ack()
	}, nats.BindStream(jb.stream), nats.DeliverNew(), nats.ManualAck(), nats.AckWait(30*time.Second))
	if err != nil {
		return nil, err
	}
	return &jetSub{sub: sub}, nil
}

type jetSub struct {
	sub *nats.Subscription
}

func (j *jetSub) Unsubscribe() {
	_ = j.sub.Unsubscribe()
}

// Metrics счётчики этого процесса; очередь хранит сервер, поэтому InFlight 0
func (jb *JetStreamBus) Metrics() Stats {
	return Stats{
		Published: jb.published.Load(),
		Consumed:  jb.consumed.Load(),
		Dropped:   jb.dropped.Load(),
	}
}

// Close дожидается отправки буферизованных сообщений и закрывает соединение
func (jb *JetStreamBus) Close() error {
	return jb.nc.Drain()
}
