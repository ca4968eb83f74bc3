package realtime

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Publisher fans change events out on Redis. Publishing is best effort: a
// failure is logged and never fails the write that produced the change.
type Publisher struct {
	rdb *redis.Client
}

func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

func (p *Publisher) Publish(ctx context.Context, ev Event) {
	if p == nil || p.rdb == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("table", ev.Table).Msg("realtime: marshal event")
		return
	}
	if err := p.rdb.Publish(ctx, Channel(ev.Table), data).Err(); err != nil {
		log.Warn().Err(err).Str("table", ev.Table).Str("id", ev.ID).Msg("realtime: publish failed")
	}
}
