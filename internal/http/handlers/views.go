package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/uw-ssec/ca-biositing-sub000/internal/http/response"
	"github.com/uw-ssec/ca-biositing-sub000/internal/views"
)

// ViewRefresher is the part of views.Refresher the handler needs.
type ViewRefresher interface {
	State(ctx context.Context) ([]views.RefreshState, error)
	RefreshAll(ctx context.Context) ([]views.RefreshResult, error)
	RefreshOrder(ctx context.Context, names []string) ([]views.RefreshResult, error)
}

type ViewHandler struct {
	refresher ViewRefresher
}

func NewViewHandler(r ViewRefresher) *ViewHandler {
	return &ViewHandler{refresher: r}
}

// GET /api/views
func (h *ViewHandler) ListState(c *gin.Context) {
	states, err := h.refresher.State(c.Request.Context())
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "view_state_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"views": states})
}

type refreshRequest struct {
	Views []string `json:"views"`
}

// POST /api/views/refresh
// An empty body refreshes every view in dependency order.
func (h *ViewHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}
	names := make([]string, 0, len(req.Views))
	for _, n := range req.Views {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}

	var (
		out []views.RefreshResult
		err error
	)
	if len(names) == 0 {
		out, err = h.refresher.RefreshAll(c.Request.Context())
	} else {
		out, err = h.refresher.RefreshOrder(c.Request.Context(), names)
	}
	switch {
	case errors.Is(err, views.ErrUnknownView):
		response.RespondError(c, http.StatusNotFound, "unknown_view", err)
	case errors.Is(err, views.ErrViewDependency):
		response.RespondError(c, http.StatusConflict, "view_dependency", err)
	case err != nil:
		response.RespondError(c, http.StatusInternalServerError, "refresh_failed", err)
	default:
		response.RespondOK(c, gin.H{"refreshed": out})
	}
}
