// Package presence tracks the volatile user -> channel binding and the
// online flag, both cache-backed with TTLs so they survive short disconnects
// and are shared between server instances. The registry is the single writer
// for channel:* and online:* keys.
package presence

import (
	"fmt"
	"time"

	"collabd/pkg/cache"
	"collabd/pkg/logger"
)

const (
	// ChannelTTL bounds how long a user -> channel binding outlives its
	// last refresh.
	ChannelTTL = 7 * 24 * time.Hour
	// OnlineTTL bounds the online flag.
	OnlineTTL = 24 * time.Hour
)

type Registry struct {
	cache *cache.Cache
}

func New(c *cache.Cache) *Registry {
	return &Registry{cache: c}
}

func channelKey(userID int64) string { return fmt.Sprintf("channel:%d", userID) }
func onlineKey(userID int64) string  { return fmt.Sprintf("online:%d", userID) }

// Bind records userID -> channel, overwriting any prior binding, and
// returns the previous channel name if one was live. Concurrent binds are
// last-writer-wins with the TTL refreshed.
func (r *Registry) Bind(userID int64, channel string) (string, error) {
	prev, _, err := r.cache.Get(channelKey(userID))
	if err != nil {
		return "", err
	}
	if err := r.cache.Set(channelKey(userID), channel, ChannelTTL); err != nil {
		return "", err
	}
	logger.Info("channel_bound", "user", userID, "channel", channel, "prev", prev)
	return prev, nil
}

// Lookup returns the live channel bound to userID, if any.
func (r *Registry) Lookup(userID int64) (string, bool, error) {
	return r.cache.Get(channelKey(userID))
}

// Unbind removes the binding only if it still points at channel, so a
// superseding connection's binding is never torn down by the stale one.
func (r *Registry) Unbind(userID int64, channel string) error {
	cur, ok, err := r.cache.Get(channelKey(userID))
	if err != nil {
		return err
	}
	if !ok || cur != channel {
		return nil
	}
	return r.cache.Delete(channelKey(userID))
}

func (r *Registry) SetOnline(userID int64) error {
	return r.cache.Set(onlineKey(userID), "1", OnlineTTL)
}

func (r *Registry) SetOffline(userID int64) error {
	return r.cache.Delete(onlineKey(userID))
}

// IsOnline reports whether userID is online from viewerID's perspective.
// A user always sees themselves online; the cache is not consulted then.
func (r *Registry) IsOnline(userID, viewerID int64) (bool, error) {
	if userID == viewerID {
		return true, nil
	}
	_, ok, err := r.cache.Get(onlineKey(userID))
	return ok, err
}
