package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueTicket = "jobs:ticket"
	QueueEmail  = "jobs:email"

	maxAttempts = 3
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// PedidoPayload is the payload of every order job.
type PedidoPayload struct {
	PedidoID uuid.UUID `json:"pedido_id"`
}

// Handler processes one job payload. A returned error is retried with backoff
// and the job goes to the dead letter queue after the last attempt.
type Handler interface {
	Process(ctx context.Context, raw json.RawMessage) error
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueTicket asks for the kitchen ticket PDF of an order.
func (d *Dispatcher) EnqueueTicket(ctx context.Context, pedidoID uuid.UUID) error {
	return d.enqueue(ctx, QueueTicket, "ticket", PedidoPayload{PedidoID: pedidoID})
}

// EnqueueEmail asks for the new-order notification e-mail.
func (d *Dispatcher) EnqueueEmail(ctx context.Context, pedidoID uuid.UUID) error {
	return d.enqueue(ctx, QueueEmail, "email", PedidoPayload{PedidoID: pedidoID})
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	if d == nil || d.rdb == nil {
		return fmt.Errorf("worker: no redis, %s job dropped", jobType)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job := Job{Type: jobType, Payload: data}
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// Pool consumes the job queues with a fixed number of goroutines.
type Pool struct {
	rdb      *redis.Client
	dlq      *DeadLetters
	handlers map[string]Handler
	backoff  time.Duration

	// popBackoff is the pause after a failed dequeue, e.g. Redis unreachable
	popBackoff time.Duration
	pop        func(ctx context.Context, timeout time.Duration, queues ...string) ([]string, error)
}

func NewPool(rdb *redis.Client) *Pool {
	p := &Pool{
		rdb:        rdb,
		dlq:        NewDeadLetters(rdb),
		handlers:   map[string]Handler{},
		backoff:    time.Second,
		popBackoff: 2 * time.Second,
	}
	p.pop = func(ctx context.Context, timeout time.Duration, queues ...string) ([]string, error) {
		return p.rdb.BRPop(ctx, timeout, queues...).Result()
	}
	return p
}

// Register binds a handler to a queue. Call before Start.
func (p *Pool) Register(queue string, h Handler) {
	p.handlers[queue] = h
}

// Start launches numWorkers goroutines consuming every registered queue.
// Each goroutine blocks on BRPOP, zero CPU when idle.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	if len(p.handlers) == 0 {
		log.Warn().Msg("worker pool: no handlers registered")
		return
	}
	for i := 0; i < numWorkers; i++ {
		go p.run(ctx, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func (p *Pool) queues() []string {
	out := make([]string, 0, len(p.handlers))
	for q := range p.handlers {
		out = append(out, q)
	}
	return out
}

func (p *Pool) run(ctx context.Context, id int) {
	queues := p.queues()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
		}

		// Blocking pop, waits up to 5s then loops to check ctx
		result, err := p.pop(ctx, 5*time.Second, queues...)
		switch {
		case err == nil:
		case errors.Is(err, redis.Nil), ctx.Err() != nil:
			continue
		default:
			log.Warn().Err(err).Int("worker", id).Dur("retry_in", p.popBackoff).Msg("worker: dequeue failed")
			select {
			case <-ctx.Done():
			case <-time.After(p.popBackoff):
			}
			continue
		}
		if len(result) < 2 {
			continue
		}
		p.process(ctx, result[0], result[1])
	}
}

// process decodes and runs one job. It returns false when the job ended in
// the dead letter queue.
func (p *Pool) process(ctx context.Context, queue, raw string) bool {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		p.dlq.Push(ctx, queue, Job{Type: "unknown", Payload: json.RawMessage(`null`)}, "payload inválido: "+err.Error(), 0)
		return false
	}
	h, ok := p.handlers[queue]
	if !ok {
		log.Error().Str("queue", queue).Msg("no handler for queue")
		return false
	}

	err := withRetry(ctx, maxAttempts, p.backoff, func(attempt int) error {
		err := h.Process(ctx, job.Payload)
		if err != nil {
			log.Warn().Err(err).Str("type", job.Type).Int("attempt", attempt+1).Msg("job attempt failed")
		}
		return err
	})
	if err != nil {
		p.dlq.Push(ctx, queue, job, err.Error(), maxAttempts)
		return false
	}
	log.Debug().Str("type", job.Type).Str("queue", queue).Msg("job processed")
	return true
}

// withRetry calls fn up to maxAttempts times with exponential backoff.
// Backoff schedule: attempt 1 = immediate, 2 = base, 3 = 2×base.
// Returns nil if any attempt succeeds; last error otherwise.
func withRetry(ctx context.Context, maxAttempts int, base time.Duration, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := base * time.Duration(1<<uint(i-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := fn(i); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

func decodePedido(raw json.RawMessage) (uuid.UUID, error) {
	var payload PedidoPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return uuid.Nil, fmt.Errorf("payload inválido: %w", err)
	}
	if payload.PedidoID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("payload sin pedido_id")
	}
	return payload.PedidoID, nil
}
