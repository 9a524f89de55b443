package broker

import (
	"fmt"
	"strings"
	"time"

	"collabd/pkg/cache"
	"collabd/pkg/logger"
)

// membershipTTL matches the channel binding TTL: a crashed instance's
// subscriptions age out of the shared registry on their own.
const membershipTTL = 7 * 24 * time.Hour

// Shared is a Memory broker that additionally mirrors room membership into
// the shared cache under "room:<room>:<channel>" keys, so every server
// instance can see which channels are subscribed where. Delivery to
// channels hosted on other instances is best-effort: this instance only
// writes the registry; remote instances deliver to their own channels.
type Shared struct {
	*Memory
	cache *cache.Cache
}

func NewShared(c *cache.Cache, timeout time.Duration) *Shared {
	return &Shared{Memory: NewMemory(timeout), cache: c}
}

func memberKey(room, channel string) string {
	return fmt.Sprintf("room:%s:%s", room, channel)
}

func (b *Shared) GroupAdd(room, channel string) {
	b.Memory.GroupAdd(room, channel)
	if err := b.cache.Set(memberKey(room, channel), "1", membershipTTL); err != nil {
		logger.Warn("room_mirror_write_failed", "room", room, "channel", channel, "error", err)
	}
}

func (b *Shared) GroupDiscard(room, channel string) {
	b.Memory.GroupDiscard(room, channel)
	if err := b.cache.Delete(memberKey(room, channel)); err != nil {
		logger.Warn("room_mirror_delete_failed", "room", room, "channel", channel, "error", err)
	}
}

func (b *Shared) Unregister(channel string) {
	// discard the shared mirror entries before dropping local state
	b.Memory.mu.RLock()
	var rooms []string
	for room, members := range b.Memory.rooms {
		if _, ok := members[channel]; ok {
			rooms = append(rooms, room)
		}
	}
	b.Memory.mu.RUnlock()
	for _, room := range rooms {
		if err := b.cache.Delete(memberKey(room, channel)); err != nil {
			logger.Warn("room_mirror_delete_failed", "room", room, "channel", channel, "error", err)
		}
	}
	b.Memory.Unregister(channel)
}

// RoomMembers lists every channel subscribed to room across all instances,
// read from the shared registry.
func (b *Shared) RoomMembers(room string) ([]string, error) {
	prefix := fmt.Sprintf("room:%s:", room)
	keys, err := b.cache.Keys(prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, prefix))
	}
	return out, nil
}

var _ Broker = (*Shared)(nil)
var _ Broker = (*Memory)(nil)
