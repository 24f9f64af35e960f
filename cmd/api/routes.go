package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"listenlink/pkg/utils"
)

// registerOpsRoutes adds health checks that touch the backing stores. /healthz from
// the API package stays dependency free for liveness checks.
func registerOpsRoutes(r gin.IRouter, db utils.Pinger, rdb redis.Cmdable) {
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		checks := gin.H{"postgres": "ok", "redis": "ok"}
		ready := true
		if err := utils.HealthCheck(ctx, db, 2*time.Second); err != nil {
			checks["postgres"] = err.Error()
			ready = false
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			ready = false
		}

		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"data": checks, "error": nil})
	})
}
