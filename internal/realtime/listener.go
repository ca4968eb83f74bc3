package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrSinSesion is returned when subscribing without a valid session.
var ErrSinSesion = errors.New("realtime: sesión no válida o expirada")

// SessionCheck reports whether the caller still holds a valid session.
type SessionCheck func(ctx context.Context) error

type Listener struct {
	rdb     *redis.Client
	session SessionCheck
}

func NewListener(rdb *redis.Client, session SessionCheck) *Listener {
	return &Listener{rdb: rdb, session: session}
}

// Subscription is a live feed. Close stops delivery and releases the Redis
// connection; it is safe to call more than once.
type Subscription struct {
	cancel context.CancelFunc
	ps     *redis.PubSub
	done   chan struct{}
	once   sync.Once
}

func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.ps.Close()
		<-s.done
	})
	return err
}

// Done is closed once the subscription stopped delivering.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Subscribe delivers every change on table matching filter to onChange, one at
// a time, until the subscription is closed or ctx ends. It refuses to
// subscribe when the session check fails.
func (l *Listener) Subscribe(ctx context.Context, table string, filter Filter, onChange func(Event)) (*Subscription, error) {
	if l.session == nil {
		return nil, ErrSinSesion
	}
	if err := l.session(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSinSesion, err)
	}

	ps := l.rdb.Subscribe(ctx, Channel(table))
	// Wait for the subscription confirmation so no event published after
	// Subscribe returns is lost.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("realtime: subscribe %s: %w", table, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, ps: ps, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		ch := ps.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				dispatch(msg.Payload, table, filter, onChange)
			}
		}
	}()

	log.Debug().Str("table", table).Str("shift_id", filter.ShiftID).Msg("realtime: subscribed")
	return sub, nil
}

// SubscribeWhenAuthenticated retries the session check every interval until it
// passes, then subscribes. It returns early only when ctx ends.
func (l *Listener) SubscribeWhenAuthenticated(ctx context.Context, interval time.Duration, table string, filter Filter, onChange func(Event)) (*Subscription, error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	for {
		sub, err := l.Subscribe(ctx, table, filter, onChange)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, ErrSinSesion) {
			return nil, err
		}
		log.Info().Err(err).Msg("realtime: waiting for session")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// dispatch decodes one payload and hands it to onChange when it matches.
// Malformed payloads are logged and dropped.
func dispatch(payload, table string, filter Filter, onChange func(Event)) bool {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		log.Warn().Err(err).Str("table", table).Msg("realtime: malformed event")
		return false
	}
	if ev.Table != table || !filter.match(ev) {
		return false
	}
	onChange(ev)
	return true
}
