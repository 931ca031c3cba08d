package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// IPLimiter throttles requests per client IP with a refilling token
// bucket. State is in-process only; behind multiple replicas each one
// enforces its own budget.
type IPLimiter struct {
	perMinute int
	burst     int

	mu      sync.Mutex
	clients map[string]*tokenBucket
}

type tokenBucket struct {
	tokens   float64
	lastSeen time.Time
}

func NewIPLimiter(perMinute int) *IPLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &IPLimiter{
		perMinute: perMinute,
		burst:     perMinute,
		clients:   make(map[string]*tokenBucket),
	}
}

// Handler rejects over-budget clients with 429.
func (l *IPLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.take(ip, time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

func (l *IPLimiter) take(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.clients[ip]
	if !ok {
		l.evictStale(now)
		b = &tokenBucket{tokens: float64(l.burst), lastSeen: now}
		l.clients[ip] = b
	}

	b.tokens += now.Sub(b.lastSeen).Minutes() * float64(l.perMinute)
	if b.tokens > float64(l.burst) {
		b.tokens = float64(l.burst)
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// evictStale drops buckets idle long enough to have fully refilled.
// Called with the lock held, only when a new client shows up.
func (l *IPLimiter) evictStale(now time.Time) {
	for ip, b := range l.clients {
		if now.Sub(b.lastSeen) > 10*time.Minute {
			delete(l.clients, ip)
		}
	}
}
