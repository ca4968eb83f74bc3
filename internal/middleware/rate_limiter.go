package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"oishi/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// window tracks hits for one client IP within a fixed window.
type window struct {
	count int
	end   time.Time
}

// Limiter is a per-IP fixed-window counter. Each route group that needs its
// own budget gets its own Limiter.
type Limiter struct {
	name    string
	limit   int
	period  time.Duration
	message string

	mu      sync.Mutex
	entries map[string]*window
	now     func() time.Time
}

func NewLimiter(name string, limit int, period time.Duration, message string) *Limiter {
	return &Limiter{
		name:    name,
		limit:   limit,
		period:  period,
		message: message,
		entries: make(map[string]*window),
		now:     time.Now,
	}
}

// LoginLimiter allows 20 login attempts per minute per IP.
func LoginLimiter() *Limiter {
	return NewLimiter("login", 20, time.Minute, "Demasiados intentos de login. Intente en 1 minuto.")
}

// CheckoutLimiter allows 10 public orders per 10 minutes per IP.
func CheckoutLimiter() *Limiter {
	return NewLimiter("checkout", 10, 10*time.Minute, "Demasiados pedidos desde esta conexión. Intente más tarde.")
}

// APILimiter is the general budget for staff routes.
func APILimiter() *Limiter {
	return NewLimiter("api", 300, time.Minute, "Demasiadas solicitudes. Intente nuevamente en un momento.")
}

// Allow records a hit for key and reports whether it is within budget.
func (l *Limiter) Allow(key string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok || now.After(e.end) {
		e = &window{end: now.Add(l.period)}
		l.entries[key] = e
	}
	e.count++
	return e.count <= l.limit, e.end
}

// Middleware rejects requests over budget with 429.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, end := l.Allow(c.ClientIP())
		if !ok {
			c.Header("Retry-After", end.UTC().Format(http.TimeFormat))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New(l.message))
			return
		}
		c.Next()
	}
}

// Purge drops expired windows and returns how many were removed.
func (l *Limiter) Purge() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	purged := 0
	for k, e := range l.entries {
		if now.After(e.end) {
			delete(l.entries, k)
			purged++
		}
	}
	return purged
}

const purgeInterval = 5 * time.Minute

// StartPurge removes expired entries every five minutes until ctx ends, so
// IPs that never return do not accumulate.
func StartPurge(ctx context.Context, limiters ...*Limiter) {
	go func() {
		ticker := time.NewTicker(purgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, l := range limiters {
					if n := l.Purge(); n > 0 {
						log.Debug().Str("limiter", l.name).Int("purged", n).Msg("rate limiter entries purged")
					}
				}
			}
		}
	}()
}
