package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// DeltaStream yields text deltas until io.EOF. Close must always be called.
type DeltaStream interface {
	Recv() (string, error)
	Close() error
}

type OpenAICompatibleClient struct {
	client *openai.Client
	model  string
}

// NewOpenAICompatibleClient builds a client for any /chat/completions endpoint.
// httpClient may be nil; the stream lifetime is bounded by the caller's context.
func NewOpenAICompatibleClient(cfg ChatConfig, httpClient *http.Client) *OpenAICompatibleClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		clientCfg.BaseURL = base
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}
	return &OpenAICompatibleClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

func (c *OpenAICompatibleClient) Model() string {
	return c.model
}

// OpenStream starts a streaming completion. A returned error means the provider
// rejected the request before any delta was produced.
func (c *OpenAICompatibleClient) OpenStream(ctx context.Context, messages []ChatMessage) (DeltaStream, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("llm stream request has no messages")
	}
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toOpenAIMessages(messages),
		Stream:   true,
	}
	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("llm stream request failed: %w", err)
	}
	return &completionStream{stream: stream}, nil
}

type completionStream struct {
	stream *openai.ChatCompletionStream
}

func (s *completionStream) Recv() (string, error) {
	for {
		chunk, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("receive llm stream failed: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if text := chunk.Choices[0].Delta.Content; text != "" {
			return text, nil
		}
	}
}

func (s *completionStream) Close() error {
	return s.stream.Close()
}

func toOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return out
}
