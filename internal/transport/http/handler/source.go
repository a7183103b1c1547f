package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"contaixt-gateway/internal/app"
	"contaixt-gateway/internal/platform/logger"
	"contaixt-gateway/internal/transport/http/response"
)

type SourceHandler struct {
	sources *app.SourceService
	log     *logger.Logger
}

type RegisterConnectionRequest struct {
	SourceType        string  `json:"source_type" binding:"required"`
	NangoConnectionID string  `json:"nango_connection_id" binding:"required"`
	ExternalAccountID *string `json:"external_account_id"`
}

func NewSourceHandler(sources *app.SourceService, log *logger.Logger) *SourceHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &SourceHandler{sources: sources, log: log}
}

func (h *SourceHandler) List(c *gin.Context) {
	workspaceID, ok := workspaceOrAbort(c)
	if !ok {
		return
	}
	sources, err := h.sources.List(c.Request.Context(), workspaceID)
	if err != nil {
		writeServiceError(c, h.log, err, "list sources failed")
		return
	}
	response.OK(c, sources)
}

// Register is called once the OAuth connect flow for a source has finished.
func (h *SourceHandler) Register(c *gin.Context) {
	workspaceID, ok := workspaceOrAbort(c)
	if !ok {
		return
	}
	var req RegisterConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	resp, err := h.sources.Register(c.Request.Context(), app.RegisterConnectionInput{
		WorkspaceID:       workspaceID,
		SourceType:        req.SourceType,
		NangoConnectionID: req.NangoConnectionID,
		ExternalAccountID: req.ExternalAccountID,
	})
	if err != nil {
		writeServiceError(c, h.log, err, "register connection failed")
		return
	}
	response.OK(c, resp)
}

func (h *SourceHandler) Backfill(c *gin.Context) {
	workspaceID, ok := workspaceOrAbort(c)
	if !ok {
		return
	}
	result, err := h.sources.Backfill(c.Request.Context(), workspaceID, c.Param("type"))
	if err != nil {
		writeServiceError(c, h.log, err, "backfill failed")
		return
	}
	response.OK(c, result)
}
