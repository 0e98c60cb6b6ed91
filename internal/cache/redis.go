package cache

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"localbiz-extractor/internal/common/database"
	"localbiz-extractor/internal/common/errors"
)

// RedisTier is the durable cache tier. Entries are stored as JSON under
// prefixed keys and expire through Redis's own TTL machinery, so an active
// sweep is only needed for the memory tier.
type RedisTier struct {
	client *database.RedisClient
	prefix string
}

func NewRedisTier(client *database.RedisClient, keyPrefix string) *RedisTier {
	if keyPrefix == "" {
		keyPrefix = "business_cache"
	}
	return &RedisTier{client: client, prefix: keyPrefix}
}

func (t *RedisTier) key(fingerprint string) string {
	return t.prefix + ":" + fingerprint
}

// Get loads the entry for fingerprint. The bool is false on a clean miss;
// a non-nil error means the tier itself misbehaved.
func (t *RedisTier) Get(ctx context.Context, fingerprint string) (Entry, bool, error) {
	raw, err := t.client.Get(ctx, t.key(fingerprint))
	if err == goredis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, errors.Wrap(errors.ErrCodeCacheTierUnavailable, "redis get", err)
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		// A corrupt entry is treated as a miss and dropped.
		_ = t.client.Del(ctx, t.key(fingerprint))
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// Put stores the entry with a TTL matching its remaining lifetime.
func (t *RedisTier) Put(ctx context.Context, fingerprint string, entry Entry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(errors.ErrCodeCacheTierUnavailable, "encoding cache entry", err)
	}

	if err := t.client.Set(ctx, t.key(fingerprint), data, ttl); err != nil {
		return errors.Wrap(errors.ErrCodeCacheTierUnavailable, "redis set", err)
	}
	return nil
}

func (t *RedisTier) Delete(ctx context.Context, fingerprint string) error {
	if err := t.client.Del(ctx, t.key(fingerprint)); err != nil {
		return errors.Wrap(errors.ErrCodeCacheTierUnavailable, "redis del", err)
	}
	return nil
}

// ClearAll deletes every entry under the tier's prefix and returns the count.
func (t *RedisTier) ClearAll(ctx context.Context) (int, error) {
	keys, err := t.scanKeys(ctx)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := t.client.Del(ctx, keys...); err != nil {
		return 0, errors.Wrap(errors.ErrCodeCacheTierUnavailable, "redis del", err)
	}
	return len(keys), nil
}

// Len counts the entries currently stored under the tier's prefix.
func (t *RedisTier) Len(ctx context.Context) (int, error) {
	keys, err := t.scanKeys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Ping reports whether the tier is reachable.
func (t *RedisTier) Ping(ctx context.Context) error {
	return t.client.Ping(ctx)
}

func (t *RedisTier) scanKeys(ctx context.Context) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := t.client.Client.Scan(ctx, cursor, t.prefix+":*", 100).Result()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeCacheTierUnavailable, "redis scan", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}
