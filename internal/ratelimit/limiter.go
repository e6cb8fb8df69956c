package ratelimit

import (
	"context"
	"os"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// API names an upstream whose request rate is budgeted.
type API string

const (
	// APIYahoo is the Yahoo Finance chart API.
	APIYahoo API = "yahoo"
	// APIWikipedia serves the index membership tables.
	APIWikipedia API = "wikipedia"
)

// Limiter holds one token bucket per upstream. All workers in the process
// share it, so the budget is global rather than per worker.
type Limiter struct {
	limiters map[API]*rate.Limiter
	mu       sync.RWMutex
}

var (
	instance *Limiter
	once     sync.Once
)

// GetLimiter returns the process-wide limiter.
func GetLimiter() *Limiter {
	once.Do(func() {
		instance = newLimiter(isTestMode())
	})
	return instance
}

func newLimiter(unlimited bool) *Limiter {
	l := &Limiter{limiters: make(map[API]*rate.Limiter)}
	if unlimited {
		l.limiters[APIYahoo] = rate.NewLimiter(rate.Inf, 1)
		l.limiters[APIWikipedia] = rate.NewLimiter(rate.Inf, 1)
		return l
	}

	// Yahoo throttles bursts from one address with 429s; stay around
	// five chart requests per second across all workers.
	l.limiters[APIYahoo] = rate.NewLimiter(rate.Limit(5), 5)

	// One membership page per run; a single token is plenty.
	l.limiters[APIWikipedia] = rate.NewLimiter(rate.Limit(1), 1)
	return l
}

// SetLimit replaces the budget for api.
func (l *Limiter) SetLimit(api API, limit rate.Limit, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiters[api] = rate.NewLimiter(limit, burst)
}

func isTestMode() bool {
	if os.Getenv("GO_TESTING") == "1" {
		return true
	}
	for _, arg := range os.Args {
		if strings.HasPrefix(arg, "-test.") {
			return true
		}
	}
	return false
}

// Wait blocks until the limiter permits one request to api, or ctx is done.
func (l *Limiter) Wait(ctx context.Context, api API) error {
	l.mu.RLock()
	limiter, exists := l.limiters[api]
	l.mu.RUnlock()

	if !exists {
		return nil
	}
	return limiter.Wait(ctx)
}
