package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/uw-ssec/ca-biositing-sub000/internal/http/response"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping() error
}

type HealthHandler struct {
	checks map[string]Pinger
}

func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// GET /healthcheck
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// GET /readyz
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := gin.H{}
	for name, p := range h.checks {
		errc := make(chan error, 1)
		go func(p Pinger) { errc <- p.Ping() }(p)
		select {
		case err := <-errc:
			if err != nil {
				response.RespondError(c, http.StatusServiceUnavailable, name+"_unavailable", err)
				return
			}
		case <-ctx.Done():
			response.RespondError(c, http.StatusServiceUnavailable, name+"_unavailable", ctx.Err())
			return
		}
		status[name] = "ok"
	}
	response.RespondOK(c, gin.H{"status": "ready", "checks": status})
}
