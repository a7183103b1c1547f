package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"contaixt-gateway/internal/app"
	"contaixt-gateway/internal/platform/logger"
	"contaixt-gateway/internal/transport/http/middleware"
	"contaixt-gateway/internal/transport/http/uistream"
)

const (
	completionFailedText = "Failed to process request"
	streamFailedText     = "An error occurred while generating the response."
)

type ChatHandler struct {
	relay       *app.ChatRelay
	maxDuration time.Duration
	log         *logger.Logger
}

type ChatRequest struct {
	Messages []app.ChatTurn `json:"messages"`
	VaultIDs []string       `json:"vaultIds"`
}

func NewChatHandler(relay *app.ChatRelay, maxDuration time.Duration, log *logger.Logger) *ChatHandler {
	if maxDuration <= 0 {
		maxDuration = 60 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ChatHandler{relay: relay, maxDuration: maxDuration, log: log}
}

// Stream answers POST /api/chat with a UI message stream. Errors detected
// before the first byte go out as {"error": "..."} JSON.
func (h *ChatHandler) Stream(c *gin.Context) {
	workspaceID, ok := middleware.WorkspaceID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "workspace could not be resolved"})
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.maxDuration)
	defer cancel()

	stream, err := h.relay.Open(ctx, app.RelayInput{
		WorkspaceID: workspaceID,
		Turns:       req.Messages,
		VaultIDs:    req.VaultIDs,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrNoMessages),
			errors.Is(err, app.ErrLastTurnNotUser),
			errors.Is(err, app.ErrMessageEmpty),
			errors.Is(err, app.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, app.ErrCompletionFailed):
			c.JSON(http.StatusBadGateway, gin.H{"error": completionFailedText})
		default:
			h.log.Error("chat relay failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": completionFailedText})
		}
		return
	}
	defer stream.Close()

	out, err := uistream.NewWriter(c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stream not supported"})
		return
	}

	if err := out.Start(stream.ID()); err != nil {
		return
	}
	for {
		delta, err := stream.Next()
		if errors.Is(err, io.EOF) {
			_ = out.Finish()
			return
		}
		if err != nil {
			if c.Request.Context().Err() != nil {
				// client went away
				return
			}
			_ = out.Error(streamFailedText)
			return
		}
		if err := out.Delta(delta); err != nil {
			h.log.Debug("client write failed, aborting stream", "error", err, "request_id", stream.ID())
			return
		}
	}
}
