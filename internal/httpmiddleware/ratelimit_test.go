package httpmiddleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIPLimiterBurstThenReject(t *testing.T) {
	l := NewIPLimiter(5)
	now := time.Now()

	for i := 0; i < 5; i++ {
		assert.True(t, l.take("10.0.0.1", now), "request %d inside the burst", i)
	}
	assert.False(t, l.take("10.0.0.1", now), "burst exhausted")
}

func TestIPLimiterRefills(t *testing.T) {
	l := NewIPLimiter(60)
	now := time.Now()

	for i := 0; i < 60; i++ {
		l.take("10.0.0.1", now)
	}
	assert.False(t, l.take("10.0.0.1", now))
	assert.True(t, l.take("10.0.0.1", now.Add(2*time.Second)), "tokens refill with time")
}

func TestIPLimiterIsolatesClients(t *testing.T) {
	l := NewIPLimiter(1)
	now := time.Now()

	assert.True(t, l.take("10.0.0.1", now))
	assert.False(t, l.take("10.0.0.1", now))
	assert.True(t, l.take("10.0.0.2", now), "a second client has its own bucket")
}

func TestIPLimiterEvictsStale(t *testing.T) {
	l := NewIPLimiter(10)
	now := time.Now()

	l.take("10.0.0.1", now)
	// A new client arriving much later triggers eviction of idle buckets.
	l.take("10.0.0.2", now.Add(time.Hour))

	l.mu.Lock()
	_, ok := l.clients["10.0.0.1"]
	l.mu.Unlock()
	assert.False(t, ok, "idle bucket evicted")
}
