package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"contaixt-gateway/internal/app"
	"contaixt-gateway/internal/knowledge"
	"contaixt-gateway/internal/platform/logger"
	"contaixt-gateway/internal/transport/http/middleware"
	"contaixt-gateway/internal/transport/http/response"
)

// writeServiceError maps service and backend errors onto the response envelope.
// Backend 4xx answers keep their status and detail; anything else is a 502.
func writeServiceError(c *gin.Context, log *logger.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	case errors.Is(err, app.ErrUnknownSourceType):
		response.Error(c, http.StatusBadRequest, response.CodeUnknownSourceType, err.Error())
		return
	case errors.Is(err, app.ErrAlreadyRegistered):
		response.Error(c, http.StatusConflict, response.CodeAlreadyRegistered, "already_registered")
		return
	}

	if apiErr, ok := knowledge.AsAPIError(err); ok {
		switch {
		case apiErr.Status == http.StatusNotFound:
			response.Error(c, http.StatusNotFound, response.CodeNotFound, apiErr.Detail)
		case apiErr.Status >= 400 && apiErr.Status < 500:
			response.Error(c, apiErr.Status, response.CodeBadRequest, apiErr.Detail)
		default:
			log.Error(fallback, "error", err)
			response.Error(c, http.StatusBadGateway, response.CodeBackendError, fallback)
		}
		return
	}

	log.Error(fallback, "error", err)
	response.Error(c, http.StatusBadGateway, response.CodeBackendError, fallback)
}

func workspaceOrAbort(c *gin.Context) (string, bool) {
	ws, ok := middleware.WorkspaceID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "workspace could not be resolved")
	}
	return ws, ok
}
