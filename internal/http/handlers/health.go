package handlers

import (
	"context"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/rentfolio/propsync/pkg/logging"
)

type dbPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports process liveness plus backing-store reachability.
type HealthHandler struct {
	db     dbPinger
	redis  *redis.Client
	logger *logging.Logger
}

func NewHealthHandler(db dbPinger, redisClient *redis.Client, logger *logging.Logger) *HealthHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &HealthHandler{db: db, redis: redisClient, logger: logger}
}

// Check handles GET /health.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := map[string]string{}

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			checks["database"] = "unreachable"
			status = http.StatusServiceUnavailable
			h.logger.Warn("health check: database unreachable", "error", err)
		} else {
			checks["database"] = "ok"
		}
	}
	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unreachable"
			// Redis is a cache here, not a dependency worth failing over.
		} else {
			checks["redis"] = "ok"
		}
	}

	body := map[string]any{"status": "ok", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	writeJSON(w, status, body)
}
