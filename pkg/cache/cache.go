// Package cache is a small TTL key-value layer over pebble, shared by the
// presence registry and the broker's room-membership mirror. Expiration is
// checked on read and expired keys are deleted lazily; no background sweep
// runs.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"collabd/pkg/logger"
)

type Cache struct {
	db *pebble.DB

	// now is swappable in tests to exercise expiry.
	now func() time.Time
}

type entry struct {
	V string `json:"v"`
	// Exp is a unix-nano deadline; zero means no expiry.
	Exp int64 `json:"exp,omitempty"`
}

// Open opens (or creates) the cache database at the given path.
func Open(path string) (*Cache, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("cache_open_failed", "path", path, "error", err)
		return nil, err
	}
	logger.Info("cache_opened", "path", path)
	return &Cache{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// Set writes key -> val with the given TTL, overwriting any prior value.
// A non-positive TTL stores the value without expiry.
func (c *Cache) Set(key, val string, ttl time.Duration) error {
	e := entry{V: val}
	if ttl > 0 {
		e.Exp = c.now().Add(ttl).UnixNano()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	return c.db.Set([]byte(key), b, pebble.Sync)
}

// Get returns the live value for key. Expired entries are deleted and
// reported as absent; expiry is authoritative.
func (c *Cache) Get(key string) (string, bool, error) {
	v, closer, err := c.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	var e entry
	uerr := json.Unmarshal(v, &e)
	_ = closer.Close()
	if uerr != nil {
		return "", false, fmt.Errorf("corrupt cache entry %q: %w", key, uerr)
	}
	if e.Exp != 0 && c.now().UnixNano() > e.Exp {
		_ = c.db.Delete([]byte(key), pebble.NoSync)
		return "", false, nil
	}
	return e.V, true, nil
}

// Delete removes key if present.
func (c *Cache) Delete(key string) error {
	return c.db.Delete([]byte(key), pebble.Sync)
}

// Keys returns all live keys with the given prefix. Used by the shared
// broker registry to enumerate room membership.
func (c *Cache) Keys(prefix string) ([]string, error) {
	iter, err := c.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	nowNS := c.now().UnixNano()
	for iter.First(); iter.Valid(); iter.Next() {
		var e entry
		if json.Unmarshal(iter.Value(), &e) != nil {
			continue
		}
		if e.Exp != 0 && nowNS > e.Exp {
			continue
		}
		out = append(out, string(iter.Key()))
	}
	return out, iter.Error()
}

func upperBound(prefix string) []byte {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return b[:i+1]
		}
	}
	return nil
}
