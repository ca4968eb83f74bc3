package service

import (
	"context"
	"errors"
	"time"

	"oishi/internal/infra"
	"oishi/internal/realtime"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// Notificador publishes row changes to realtime listeners.
type Notificador interface {
	Publish(ctx context.Context, ev realtime.Event)
}

func publicar(ctx context.Context, n Notificador, ev realtime.Event) {
	if n == nil {
		return
	}
	n.Publish(context.WithoutCancel(ctx), ev)
}

// InFlightGuard rejects a flow while the same key is still running.
type InFlightGuard interface {
	Do(ctx context.Context, key string, fn func() error) error
}

func guarded(ctx context.Context, g InFlightGuard, key string, fn func() error) error {
	if g == nil {
		return fn()
	}
	err := g.Do(ctx, key, fn)
	if errors.Is(err, infra.ErrEnCurso) {
		return &ConflictError{Msg: "operación en curso, intente nuevamente"}
	}
	return err
}

// JobQueue enqueues background work for an order.
type JobQueue interface {
	EnqueueTicket(ctx context.Context, pedidoID uuid.UUID) error
	EnqueueEmail(ctx context.Context, pedidoID uuid.UUID) error
}

// rangoFechas turns inclusive YYYY-MM-DD bounds into [desde, hasta) instants
// in the server's local zone. Empty strings give nil.
func rangoFechas(desde, hasta string) (*time.Time, *time.Time, error) {
	var d, h *time.Time
	if desde != "" {
		t, err := time.ParseInLocation("2006-01-02", desde, time.Local)
		if err != nil {
			return nil, nil, newValidation("Fecha inválida", map[string]string{"desde": "formato YYYY-MM-DD"})
		}
		d = &t
	}
	if hasta != "" {
		t, err := time.ParseInLocation("2006-01-02", hasta, time.Local)
		if err != nil {
			return nil, nil, newValidation("Fecha inválida", map[string]string{"hasta": "formato YYYY-MM-DD"})
		}
		t = t.AddDate(0, 0, 1)
		h = &t
	}
	if d != nil && h != nil && !d.Before(*h) {
		return nil, nil, newValidation("Rango de fechas inválido", map[string]string{"hasta": "debe ser posterior a desde"})
	}
	return d, h, nil
}

func paginar(page, limit, defLimit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defLimit
	}
	return page, limit, (page - 1) * limit
}
