package infra

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrEnCurso is returned when the same flow is already running elsewhere.
var ErrEnCurso = errors.New("operación en curso")

// Guard serializes sensitive flows (order submission, shift open/close) across
// every API instance. A nil Guard, or one without Redis, runs fn directly.
type Guard struct {
	locker *redislock.Client
	ttl    time.Duration
}

func NewGuard(rdb *redis.Client, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	g := &Guard{ttl: ttl}
	if rdb != nil {
		g.locker = redislock.New(rdb)
	}
	return g
}

// Do runs fn while holding the lock for key. A key already held returns ErrEnCurso
// without waiting.
func (g *Guard) Do(ctx context.Context, key string, fn func() error) error {
	if g == nil || g.locker == nil {
		return fn()
	}
	lock, err := g.locker.Obtain(ctx, "lock:"+key, g.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return ErrEnCurso
	} else if err != nil {
		return err
	}
	defer func() {
		_ = lock.Release(context.WithoutCancel(ctx))
	}()
	return fn()
}
