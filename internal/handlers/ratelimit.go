package handlers

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdle     = 30 * time.Minute
	limiterSweepLen = 1024
)

type ipEntry struct {
	limiter *rate.Limiter
	last    time.Time
}

// ipLimiter hands out one token bucket per client IP.
type ipLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*ipEntry
	nowFunc func() time.Time
}

// newIPLimiter allows perMinute requests per IP per minute. perMinute <= 0
// disables limiting.
func newIPLimiter(perMinute int) *ipLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &ipLimiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		clients: map[string]*ipEntry{},
		nowFunc: time.Now,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	if len(l.clients) >= limiterSweepLen {
		for k, e := range l.clients {
			if now.Sub(e.last) > limiterIdle {
				delete(l.clients, k)
			}
		}
	}
	e, ok := l.clients[ip]
	if !ok {
		e = &ipEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = e
	}
	e.last = now
	return e.limiter.AllowN(now, 1)
}
