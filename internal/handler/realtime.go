package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"oishi/internal/apierror"
	"oishi/internal/middleware"
	"oishi/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const sseHeartbeat = 25 * time.Second

type RealtimeHandler struct{ rdb *redis.Client }

func NewRealtimeHandler(rdb *redis.Client) *RealtimeHandler { return &RealtimeHandler{rdb: rdb} }

// Stream godoc
// @Summary Cambios en vivo de pedidos o movimientos de caja (SSE)
// @Tags realtime
// @Produce text/event-stream
// @Security BearerAuth
// @Param table query string true "orders | cash_movements"
// @Param shift_id query string false "Turno, solo para cash_movements"
// @Router /v1/realtime/stream [get]
func (h *RealtimeHandler) Stream(c *gin.Context) {
	table := c.Query("table")
	if table != realtime.TablaPedidos && table != realtime.TablaMovimientos {
		c.JSON(http.StatusBadRequest, apierror.New("table debe ser orders o cash_movements"))
		return
	}
	if h.rdb == nil {
		c.JSON(http.StatusServiceUnavailable, apierror.New("Tiempo real no disponible"))
		return
	}

	listener := realtime.NewListener(h.rdb, sessionFromClaims(c))
	events := make(chan realtime.Event, 32)
	ctx := c.Request.Context()

	sub, err := listener.Subscribe(ctx, table, realtime.Filter{ShiftID: c.Query("shift_id")}, func(ev realtime.Event) {
		select {
		case events <- ev:
		default:
			log.Warn().Str("table", table).Msg("realtime: slow client, event dropped")
		}
	})
	if err != nil {
		if errors.Is(err, realtime.ErrSinSesion) {
			c.JSON(http.StatusUnauthorized, apierror.New("Sesion expirada"))
			return
		}
		respondError(c, err)
		return
	}
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	c.SSEvent("ready", gin.H{"table": table})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-sub.Done():
			return false
		case ev := <-events:
			c.SSEvent("change", ev)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().UTC().Unix())
			return true
		}
	})
}

// sessionFromClaims accepts the JWT the auth middleware already verified and
// rejects it once expired.
func sessionFromClaims(c *gin.Context) realtime.SessionCheck {
	return func(context.Context) error {
		claims := middleware.GetClaims(c)
		if claims == nil {
			return errors.New("sin token")
		}
		if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
			return errors.New("token expirado")
		}
		return nil
	}
}
