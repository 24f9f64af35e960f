// Package presence tracks which users are currently reachable for calls.
// A user is online while they keep making authenticated requests.
package presence

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"listenlink/internal/auth"
	"listenlink/pkg/logger"
)

type Tracker interface {
	Touch(ctx context.Context, userID int64) error
	Online(ctx context.Context, userID int64) (bool, error)
}

const keyPrefix = "presence:"

func key(userID int64) string { return keyPrefix + strconv.FormatInt(userID, 10) }

// RedisTracker stores one expiring key per user.
type RedisTracker struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisTracker(rdb redis.Cmdable, ttl time.Duration) *RedisTracker {
	return &RedisTracker{rdb: rdb, ttl: ttl}
}

func (t *RedisTracker) Touch(ctx context.Context, userID int64) error {
	return t.rdb.Set(ctx, key(userID), time.Now().Unix(), t.ttl).Err()
}

func (t *RedisTracker) Online(ctx context.Context, userID int64) (bool, error) {
	n, err := t.rdb.Exists(ctx, key(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemoryTracker is the single-process tracker used in tests and local runs.
type MemoryTracker struct {
	mu    sync.Mutex
	ttl   time.Duration
	clock func() time.Time
	seen  map[int64]time.Time
}

func NewMemoryTracker(ttl time.Duration) *MemoryTracker {
	return &MemoryTracker{ttl: ttl, clock: time.Now, seen: map[int64]time.Time{}}
}

func (t *MemoryTracker) Touch(_ context.Context, userID int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen[userID] = t.clock()
	return nil
}

func (t *MemoryTracker) Online(_ context.Context, userID int64) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.seen[userID]
	if !ok {
		return false, nil
	}
	if t.clock().Sub(at) >= t.ttl {
		delete(t.seen, userID)
		return false, nil
	}
	return true, nil
}

// Middleware marks the authenticated caller online. Failures are logged and
// never block the request.
func Middleware(t Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if uid, err := auth.UserID(ctx); err == nil {
			if err := t.Touch(ctx, uid); err != nil {
				logger.From(ctx).Warn("presence touch failed", "user_id", uid, "err", err)
			}
		}
		c.Next()
	}
}
