package main

import (
	"context"
	"errors"
	"io"

	"oishi/internal/dto"
	"oishi/internal/realtime"
	"oishi/internal/service"

	"github.com/rs/zerolog/log"
)

type subscribeFunc func(ctx context.Context, table string, filter realtime.Filter, onChange func(realtime.Event)) (io.Closer, error)

// cajaFeed follows the cash movements of whichever shift is open. sync
// re-reads the open shift and moves the subscription when it changed, so a
// shift opened after startup is picked up on the next refresh.
type cajaFeed struct {
	feed      *realtime.MovementFeed
	activa    func(ctx context.Context) (*dto.ReporteCajaResponse, error)
	subscribe subscribeFunc

	shiftID string
	sub     io.Closer
}

func newCajaFeed(activa func(ctx context.Context) (*dto.ReporteCajaResponse, error), subscribe subscribeFunc) *cajaFeed {
	return &cajaFeed{feed: realtime.NewMovementFeed("", nil), activa: activa, subscribe: subscribe}
}

func (c *cajaFeed) sync(ctx context.Context) {
	rep, err := c.activa(ctx)
	var nf *service.NotFoundError
	switch {
	case err == nil:
	case errors.As(err, &nf):
		rep = nil
	default:
		log.Warn().Err(err).Msg("no se pudo consultar la caja abierta")
		return
	}

	shift := ""
	if rep != nil {
		shift = rep.Sesion.ID
	}
	if shift == c.shiftID && (shift == "" || c.sub != nil) {
		return
	}

	c.close()
	c.shiftID = shift
	if rep == nil {
		c.feed.Reset("", nil)
		return
	}
	c.feed.Reset(shift, rep.Movimientos)
	sub, err := c.subscribe(ctx, realtime.TablaMovimientos, realtime.Filter{ShiftID: shift}, func(ev realtime.Event) {
		c.feed.Apply(ev)
	})
	if err != nil {
		log.Warn().Err(err).Msg("cash movement feed unavailable")
		return
	}
	c.sub = sub
}

func (c *cajaFeed) close() {
	if c.sub != nil {
		_ = c.sub.Close()
		c.sub = nil
	}
}

func (c *cajaFeed) items() []dto.MovimientoResponse { return c.feed.Items() }
