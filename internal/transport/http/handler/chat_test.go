package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contaixt-gateway/internal/ai"
	"contaixt-gateway/internal/app"
	"contaixt-gateway/internal/knowledge"
	"contaixt-gateway/internal/transport/http/middleware"
)

type stubRetriever struct {
	ctx *knowledge.Context
	err error
}

func (s stubRetriever) FetchContext(context.Context, knowledge.ContextQuery) (*knowledge.Context, error) {
	return s.ctx, s.err
}

type stubDeltas struct {
	deltas []string
	err    error
}

func (s *stubDeltas) Recv() (string, error) {
	if len(s.deltas) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	d := s.deltas[0]
	s.deltas = s.deltas[1:]
	return d, nil
}

func (s *stubDeltas) Close() error { return nil }

type stubProvider struct {
	stream *stubDeltas
	err    error
	calls  int
}

func (s *stubProvider) OpenStream(context.Context, []ai.ChatMessage) (ai.DeltaStream, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.stream, nil
}

func newChatRouter(retriever app.ContextRetriever, provider app.CompletionProvider) *gin.Engine {
	gin.SetMode(gin.TestMode)
	relay := app.NewChatRelay(retriever, provider, nil, 10)
	h := NewChatHandler(relay, 5*time.Second, nil)

	r := gin.New()
	r.POST("/api/chat", middleware.ResolveTenant(middleware.TenantOptions{DefaultWorkspaceID: "ws-1"}), h.Stream)
	return r
}

func postChat(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func frameTypes(t *testing.T, body string) []string {
	t.Helper()
	var types []string
	for _, block := range strings.Split(strings.TrimSpace(body), "\n\n") {
		line := strings.TrimPrefix(block, "data: ")
		if line == "[DONE]" {
			types = append(types, "[DONE]")
			continue
		}
		var f struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal([]byte(line), &f))
		types = append(types, f.Type)
	}
	return types
}

func TestChatStreamHappyPath(t *testing.T) {
	provider := &stubProvider{stream: &stubDeltas{deltas: []string{"Hi", " there"}}}
	r := newChatRouter(stubRetriever{ctx: &knowledge.Context{}}, provider)

	w := postChat(r, `{"messages": [{"role": "user", "parts": [{"type": "text", "text": "hello"}]}]}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "v1", w.Header().Get("x-vercel-ai-ui-message-stream"))
	assert.Equal(t, []string{
		"start", "start-step", "text-start", "text-delta", "text-delta",
		"text-end", "finish-step", "finish", "[DONE]",
	}, frameTypes(t, w.Body.String()))
	assert.Contains(t, w.Body.String(), `"delta":" there"`)
}

func TestChatStreamRetrievalFailureStillAnswers(t *testing.T) {
	provider := &stubProvider{stream: &stubDeltas{deltas: []string{"ok"}}}
	r := newChatRouter(stubRetriever{err: errors.New("backend down")}, provider)

	w := postChat(r, `{"messages": [{"role": "user", "content": "hello"}]}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, provider.calls)
}

func TestChatStreamCompletionFailure(t *testing.T) {
	provider := &stubProvider{err: errors.New("status 500")}
	r := newChatRouter(stubRetriever{ctx: &knowledge.Context{}}, provider)

	w := postChat(r, `{"messages": [{"role": "user", "content": "hello"}]}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error": "Failed to process request"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "data:")
	assert.Empty(t, w.Header().Get("x-vercel-ai-ui-message-stream"))
}

func TestChatStreamMidStreamFailure(t *testing.T) {
	provider := &stubProvider{stream: &stubDeltas{deltas: []string{"par"}, err: errors.New("reset")}}
	r := newChatRouter(stubRetriever{ctx: &knowledge.Context{}}, provider)

	w := postChat(r, `{"messages": [{"role": "user", "content": "hello"}]}`)
	assert.Equal(t, http.StatusOK, w.Code)
	types := frameTypes(t, w.Body.String())
	assert.Equal(t, []string{"start", "start-step", "text-start", "text-delta", "error", "[DONE]"}, types)
	assert.Contains(t, w.Body.String(), `"errorText":"An error occurred while generating the response."`)
}

func TestChatStreamRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"messages": `},
		{"missing messages", `{}`},
		{"empty messages", `{"messages": []}`},
		{"assistant last", `{"messages": [{"role": "user", "content": "q"}, {"role": "assistant", "content": "a"}]}`},
		{"blank text", `{"messages": [{"role": "user", "content": "  "}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &stubProvider{stream: &stubDeltas{}}
			r := newChatRouter(stubRetriever{}, provider)

			w := postChat(r, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
			assert.Zero(t, provider.calls)
		})
	}
}
