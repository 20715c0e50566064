package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter holds per-IP token buckets. Idle entries are swept by Sweep.
type Limiter struct {
	r   rate.Limit
	b   int
	now func() time.Time

	mu       sync.Mutex
	limiters map[string]*ipLimiter
}

// NewLimiter creates a per-IP limiter; r = requests per second, b = burst size.
func NewLimiter(r rate.Limit, b int) *Limiter {
	return &Limiter{r: r, b: b, now: time.Now, limiters: make(map[string]*ipLimiter)}
}

// Allow reports whether a request from ip may proceed.
func (l *Limiter) Allow(ip string) bool {
	l.mu.Lock()
	il, ok := l.limiters[ip]
	if !ok {
		il = &ipLimiter{limiter: rate.NewLimiter(l.r, l.b)}
		l.limiters[ip] = il
	}
	il.lastSeen = l.now()
	lim := il.limiter
	l.mu.Unlock()
	return lim.Allow()
}

// Sweep drops entries not seen within idle and returns how many were removed.
func (l *Limiter) Sweep(idle time.Duration) int {
	cutoff := l.now().Add(-idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for ip, il := range l.limiters {
		if il.lastSeen.Before(cutoff) {
			delete(l.limiters, ip)
			n++
		}
	}
	return n
}

// Len returns the number of tracked IPs.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// Middleware returns the Gin handler backed by l.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// RateLimit provides per-IP token-bucket rate limiting without sweeping.
// Callers that run long-lived servers should use NewLimiter and schedule Sweep.
func RateLimit(r rate.Limit, b int) gin.HandlerFunc {
	return NewLimiter(r, b).Middleware()
}
