package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"listenlink/internal/auth"
)

type userLimitEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// UserRateLimiter hands out one token bucket per authenticated user.
type UserRateLimiter struct {
	mu      sync.Mutex
	entries map[int64]*userLimitEntry
	limit   rate.Limit
	burst   int
	maxAge  time.Duration
	now     func() time.Time
}

// NewUserRateLimiter allows perMinute events per user with a burst of the same size.
func NewUserRateLimiter(perMinute int) *UserRateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &UserRateLimiter{
		entries: map[int64]*userLimitEntry{},
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		maxAge:  10 * time.Minute,
		now:     time.Now,
	}
}

func (rl *UserRateLimiter) Allow(userID int64) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	e, ok := rl.entries[userID]
	if !ok {
		e = &userLimitEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.entries[userID] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Sweep drops limiters idle longer than maxAge.
func (rl *UserRateLimiter) Sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-rl.maxAge)
	for id, e := range rl.entries {
		if e.lastSeen.Before(cutoff) {
			delete(rl.entries, id)
		}
	}
}

// Run sweeps idle limiters until stop is closed.
func (rl *UserRateLimiter) Run(stop <-chan struct{}) {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			rl.Sweep()
		}
	}
}

// Middleware rejects the request with 429 once the caller's bucket is empty.
func (rl *UserRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, err := auth.UserID(c.Request.Context())
		if err != nil {
			fail(c, http.StatusUnauthorized, "identity required")
			return
		}
		if !rl.Allow(uid) {
			c.Header("Retry-After", "60")
			fail(c, http.StatusTooManyRequests, "too many call attempts")
			return
		}
		c.Next()
	}
}
