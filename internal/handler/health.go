package handler

import (
	"context"
	"net/http"
	"time"

	"oishi/internal/infra"
	"oishi/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// BreakerState is implemented by the blob store wrapper.
type BreakerState interface {
	State() infra.CBState
}

// Health returns a JSON health check response.
// Checks DB and Redis connectivity; never exposes credentials or internals.
// Storage and dead letter counts are informational and do not fail the check.
func Health(db *gorm.DB, rdb *redis.Client, store BreakerState) gin.HandlerFunc {
	dlq := worker.NewDeadLetters(rdb)
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		if db == nil {
			dbStatus = "error"
		} else if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "connected"
		if rdb == nil || rdb.Ping(ctx).Err() != nil {
			redisStatus = "error"
		}

		status := http.StatusOK
		if dbStatus != "connected" || redisStatus != "connected" {
			status = http.StatusServiceUnavailable
		}

		body := gin.H{
			"ok":    status == http.StatusOK,
			"db":    dbStatus,
			"redis": redisStatus,
		}
		if store != nil {
			body["storage"] = store.State().String()
		}
		if redisStatus == "connected" {
			if lens, err := dlq.Lengths(ctx, worker.QueueTicket, worker.QueueEmail); err == nil {
				body["dead_letters"] = lens
			}
		}
		c.JSON(status, body)
	}
}
