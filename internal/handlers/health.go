package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/accounts/pkg/http"
	"golang.org/x/sync/errgroup"
)

// Pinger is a dependency whose liveness the health check reports.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

// HealthHandler reports database and redis reachability
type HealthHandler struct {
	database Pinger
	redis    Pinger
	timeout  time.Duration
	logger   *slog.Logger
}

func NewHealthHandler(database, redis Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		database: database,
		redis:    redis,
		timeout:  2 * time.Second,
		logger:   logger,
	}
}

// Check handles GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{Status: "healthy", Database: "up", Redis: "up"}

	// Both probes always run to completion so the body reports each one.
	var g errgroup.Group
	g.Go(func() error {
		if err := h.database.Ping(ctx); err != nil {
			h.logger.Warn("database health check failed", slog.Any("error", err))
			resp.Database = "down"
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := h.redis.Ping(ctx); err != nil {
			h.logger.Warn("redis health check failed", slog.Any("error", err))
			resp.Redis = "down"
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		resp.Status = "unhealthy"
		pkghttp.WriteJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}
