package broker

import (
	"sync"
	"time"

	"collabd/pkg/logger"
	"collabd/pkg/models"
	"collabd/pkg/telemetry"
)

// Memory is the single-instance broker: channel registry and room sets
// under one lock, synchronous delivery in producer order.
type Memory struct {
	mu      sync.RWMutex
	subs    map[string]Subscriber
	rooms   map[string]map[string]struct{}
	timeout time.Duration
}

func NewMemory(timeout time.Duration) *Memory {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &Memory{
		subs:    make(map[string]Subscriber),
		rooms:   make(map[string]map[string]struct{}),
		timeout: timeout,
	}
}

func (b *Memory) Register(channel string, s Subscriber) {
	b.mu.Lock()
	b.subs[channel] = s
	b.mu.Unlock()
}

func (b *Memory) Unregister(channel string) {
	b.mu.Lock()
	delete(b.subs, channel)
	for room, members := range b.rooms {
		delete(members, channel)
		if len(members) == 0 {
			delete(b.rooms, room)
		}
	}
	b.mu.Unlock()
}

func (b *Memory) GroupAdd(room, channel string) {
	b.mu.Lock()
	members, ok := b.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		b.rooms[room] = members
	}
	members[channel] = struct{}{}
	b.mu.Unlock()
}

func (b *Memory) GroupDiscard(room, channel string) {
	b.mu.Lock()
	if members, ok := b.rooms[room]; ok {
		delete(members, channel)
		if len(members) == 0 {
			delete(b.rooms, room)
		}
	}
	b.mu.Unlock()
}

func (b *Memory) GroupSend(room string, f models.Frame) {
	b.mu.RLock()
	channels := make([]string, 0, len(b.rooms[room]))
	for ch := range b.rooms[room] {
		channels = append(channels, ch)
	}
	b.mu.RUnlock()
	for _, ch := range channels {
		b.Send(ch, f)
	}
}

func (b *Memory) Send(channel string, f models.Frame) {
	b.mu.RLock()
	sub, ok := b.subs[channel]
	b.mu.RUnlock()
	if !ok {
		return
	}
	b.deliver(channel, sub, f)
}

// deliver bounds one delivery by the publish timeout; on timeout the event
// is dropped for that channel and counted, with no user-visible error.
func (b *Memory) deliver(channel string, sub Subscriber, f models.Frame) {
	done := make(chan error, 1)
	go func() { done <- sub.Deliver(f) }()
	select {
	case err := <-done:
		if err != nil {
			telemetry.BrokerDropped.Inc()
			logger.Warn("broker_delivery_failed", "channel", channel, "type", f.Type, "error", err)
		}
	case <-time.After(b.timeout):
		telemetry.BrokerDropped.Inc()
		logger.Warn("broker_publish_dropped", "channel", channel, "type", f.Type)
	}
}

// Members returns a snapshot of the channels in room, for tests and
// introspection.
func (b *Memory) Members(room string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.rooms[room]))
	for ch := range b.rooms[room] {
		out = append(out, ch)
	}
	return out
}
