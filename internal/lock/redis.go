package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yanun0323/errors"
)

// unlockScript releases a key only when the caller still holds it.
const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// Redis is the multi-instance guard backed by SET NX tokens.
type Redis struct {
	client *redis.Client
	prefix string

	mu     sync.Mutex
	tokens map[string]string
}

// NewRedis creates a redis-backed guard with the given key prefix.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{
		client: client,
		prefix: prefix,
		tokens: make(map[string]string),
	}
}

// Lock blocks until the key is acquired or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string, ttl time.Duration) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		ok, err := r.TryLock(ctx, key, ttl)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// TryLock attempts to acquire the key without blocking.
func (r *Redis) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := newToken()
	ok, err := r.client.SetNX(ctx, r.prefix+key, token, ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis setnx")
	}
	if ok {
		r.mu.Lock()
		r.tokens[key] = token
		r.mu.Unlock()
	}
	return ok, nil
}

// Unlock releases the key when this instance still holds it.
func (r *Redis) Unlock(ctx context.Context, key string) error {
	r.mu.Lock()
	token, held := r.tokens[key]
	delete(r.tokens, key)
	r.mu.Unlock()
	if !held {
		return errors.Errorf("lock not held: %s", key)
	}

	result, err := r.client.Eval(ctx, unlockScript, []string{r.prefix + key}, token).Result()
	if err != nil {
		return errors.Wrap(err, "redis eval unlock")
	}
	if n, _ := result.(int64); n == 0 {
		return errors.Errorf("lock expired before unlock: %s", key)
	}
	return nil
}

// Close closes the redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

func newToken() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
