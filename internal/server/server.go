// Package server exposes the job as an HTTP-triggered function.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	interfaces "github.com/sheikh-saqib/payments-reconciler/internal/interfaces"
	"github.com/sheikh-saqib/payments-reconciler/internal/reconcile"
)

const defaultRunsLimit = 20

// Runner executes one reconciliation run.
type Runner interface {
	Execute(ctx context.Context) (*reconcile.Outcome, error)
}

// NewRouter wires the trigger, health and run history endpoints.
func NewRouter(runner Runner, runs interfaces.RunStore, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/runs", func(c *gin.Context) {
		limit := defaultRunsLimit
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}
		reports, err := runs.ListRuns(c.Request.Context(), limit)
		if err != nil {
			logger.Error("failed to list runs", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
			return
		}
		c.JSON(http.StatusOK, reports)
	})

	// The run must finish even if the caller goes away, since payments may be in flight.
	r.Any("/", func(c *gin.Context) {
		if _, err := runner.Execute(context.WithoutCancel(c.Request.Context())); err != nil {
			logger.Error("function error", "error", err)
			c.String(http.StatusInternalServerError, "Internal Server Error")
			return
		}
		c.Status(http.StatusOK)
	})

	return r
}
