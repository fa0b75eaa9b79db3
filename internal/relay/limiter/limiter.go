// Package limiter keeps one token bucket per user.
package limiter

import (
	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// PerUser hands out golang.org/x/time/rate limiters keyed by user id. The
// pool is bounded: the least recently seen user loses its bucket first and
// starts over with a full one.
type PerUser struct {
	limit rate.Limit
	burst int
	pool  *lru.Cache[string, *rate.Limiter]
}

// New builds a pool allowing rps events per second with the given burst.
// A non-positive rps disables limiting.
func New(rps float64, burst, size int) (*PerUser, error) {
	pool, err := lru.New[string, *rate.Limiter](size)
	if err != nil {
		return nil, errors.Wrap(err, "limiter pool")
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &PerUser{limit: limit, burst: burst, pool: pool}, nil
}

// Allow reports whether userID may perform one more event now.
func (p *PerUser) Allow(userID string) bool {
	l, ok := p.pool.Get(userID)
	if !ok {
		l = rate.NewLimiter(p.limit, p.burst)
		if prev, found, _ := p.pool.PeekOrAdd(userID, l); found {
			l = prev
		}
	}
	return l.Allow()
}

// Len reports the number of tracked users.
func (p *PerUser) Len() int {
	return p.pool.Len()
}
