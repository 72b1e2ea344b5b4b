package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/uw-ssec/ca-biositing-sub000/internal/data/repos"
	types "github.com/uw-ssec/ca-biositing-sub000/internal/domain/records"
	"github.com/uw-ssec/ca-biositing-sub000/internal/http/response"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/dbctx"
)

type RecordHandler struct {
	resolver types.Resolver
	parents  repos.ParentRecordRepo
	runs     repos.IngestionRunRepo
}

func NewRecordHandler(resolver types.Resolver, parents repos.ParentRecordRepo, runs repos.IngestionRunRepo) *RecordHandler {
	return &RecordHandler{resolver: resolver, parents: parents, runs: runs}
}

// GET /api/records/:type/:ref
func (h *RecordHandler) Resolve(c *gin.Context) {
	t, err := types.ParseParentType(c.Param("type"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unknown_parent_type", err)
		return
	}
	handle, err := h.resolver.Resolve(c.Request.Context(), t, c.Param("ref"))
	if err != nil {
		respondLookupError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"record": handle})
}

// GET /api/records/:type/latest?geography_id=..&commodity_code=..
func (h *RecordHandler) Latest(c *gin.Context) {
	t, err := types.ParseParentType(c.Param("type"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unknown_parent_type", err)
		return
	}
	geo := strings.TrimSpace(c.Query("geography_id"))
	code, err := strconv.ParseInt(strings.TrimSpace(c.Query("commodity_code")), 10, 64)
	if geo == "" || err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_query", errors.New("geography_id and integer commodity_code are required"))
		return
	}
	handle, err := h.parents.Latest(dbctx.New(c.Request.Context()), t, geo, code)
	if err != nil {
		respondLookupError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"record": handle})
}

// GET /api/runs/:id
func (h *RecordHandler) GetRun(c *gin.Context) {
	run, err := h.runs.GetByRunID(dbctx.New(c.Request.Context()), c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "run_lookup_failed", err)
		return
	}
	if run == nil {
		response.RespondError(c, http.StatusNotFound, "run_not_found", errors.New("no ingestion run with that id"))
		return
	}
	response.RespondOK(c, gin.H{"run": run})
}

func respondLookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, types.ErrParentNotFound):
		response.RespondError(c, http.StatusNotFound, "record_not_found", err)
	case errors.Is(err, types.ErrUnknownParentType), errors.Is(err, types.ErrKeyKind):
		response.RespondError(c, http.StatusBadRequest, "unsupported_parent_type", err)
	default:
		response.RespondError(c, http.StatusInternalServerError, "lookup_failed", err)
	}
}
