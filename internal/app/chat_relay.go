package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"contaixt-gateway/internal/ai"
	"contaixt-gateway/internal/knowledge"
	"contaixt-gateway/internal/model"
	"contaixt-gateway/internal/observability"
	"contaixt-gateway/internal/platform/logger"
)

const defaultTopK = 10

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNoMessages       = errors.New("messages must not be empty")
	ErrLastTurnNotUser  = errors.New("last message must come from the user")
	ErrMessageEmpty     = errors.New("message content is empty")
	ErrCompletionFailed = errors.New("completion request failed")
)

type ContextRetriever interface {
	FetchContext(ctx context.Context, query knowledge.ContextQuery) (*knowledge.Context, error)
}

type CompletionProvider interface {
	OpenStream(ctx context.Context, messages []ai.ChatMessage) (ai.DeltaStream, error)
}

// ExchangeRecorder receives one record per relayed request. Implementations must not block for long.
type ExchangeRecorder interface {
	Record(ctx context.Context, exchange model.ChatExchange) error
}

type RelayInput struct {
	WorkspaceID string
	Turns       []ChatTurn
	VaultIDs    []string
}

type ChatRelay struct {
	retriever ContextRetriever
	provider  CompletionProvider
	recorder  ExchangeRecorder
	metrics   observability.Recorder
	log       *logger.Logger
	topK      int
	model     string
}

type ChatRelayOption func(*ChatRelay)

func WithExchangeRecorder(r ExchangeRecorder) ChatRelayOption {
	return func(cr *ChatRelay) { cr.recorder = r }
}

func WithMetrics(m observability.Recorder) ChatRelayOption {
	return func(cr *ChatRelay) {
		if m != nil {
			cr.metrics = m
		}
	}
}

func WithModelName(name string) ChatRelayOption {
	return func(cr *ChatRelay) { cr.model = name }
}

func NewChatRelay(
	retriever ContextRetriever,
	provider CompletionProvider,
	log *logger.Logger,
	topK int,
	opts ...ChatRelayOption,
) *ChatRelay {
	if topK <= 0 {
		topK = defaultTopK
	}
	if log == nil {
		log = logger.Nop()
	}
	r := &ChatRelay{
		retriever: retriever,
		provider:  provider,
		metrics:   observability.Noop(),
		log:       log,
		topK:      topK,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open validates the conversation, retrieves context for the last user turn and
// opens the completion stream. Nothing has been sent to the caller when Open
// returns an error, so the caller can still answer with a plain error status.
func (r *ChatRelay) Open(ctx context.Context, input RelayInput) (*RelayStream, error) {
	question, err := validateTurns(input.Turns)
	if err != nil {
		return nil, err
	}
	workspaceID := strings.TrimSpace(input.WorkspaceID)
	if workspaceID == "" {
		return nil, ErrInvalidInput
	}

	requestID := uuid.NewString()
	log := r.log.With("request_id", requestID, "workspace_id", workspaceID)
	startedAt := time.Now()

	retrieved := r.retrieve(ctx, log, knowledge.ContextQuery{
		WorkspaceID: workspaceID,
		Prompt:      question,
		VaultIDs:    normalizeVaultIDs(input.VaultIDs),
		TopK:        r.topK,
	})
	grounding := BuildContextPrompt(retrieved)
	messages := BuildPromptMessages(grounding, question)

	exchange := model.ChatExchange{
		RequestID:   requestID,
		WorkspaceID: workspaceID,
		Question:    question,
		ContextUsed: !retrieved.Empty(),
		Model:       r.model,
		StartedAt:   startedAt,
	}
	if retrieved != nil {
		exchange.SetChunkIDs(retrieved.ChunkIDs())
		exchange.FactCount = len(retrieved.Facts)
	} else {
		exchange.SetChunkIDs(nil)
	}

	deltas, err := r.provider.OpenStream(ctx, messages)
	if err != nil {
		log.Error("completion stream rejected", "error", err)
		r.metrics.IncCompletion("rejected")
		exchange.Status = model.ExchangeRejected
		exchange.FinishedAt = time.Now()
		r.record(ctx, log, exchange)
		return nil, fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}
	r.metrics.IncCompletion("opened")

	return &RelayStream{
		relay:    r,
		log:      log,
		ctx:      ctx,
		deltas:   deltas,
		exchange: exchange,
	}, nil
}

// retrieve never fails: any retrieval problem degrades to an empty context.
func (r *ChatRelay) retrieve(ctx context.Context, log *logger.Logger, query knowledge.ContextQuery) *knowledge.Context {
	start := time.Now()
	retrieved, err := r.retriever.FetchContext(ctx, query)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		log.Warn("context retrieval failed, continuing without context", "error", err)
		r.metrics.ObserveRetrieval("failed", elapsed)
		return nil
	}
	if retrieved.Empty() {
		r.metrics.ObserveRetrieval("empty", elapsed)
		return retrieved
	}
	r.metrics.ObserveRetrieval("found", elapsed)
	log.Debug("context retrieved",
		"chunks", len(retrieved.Chunks),
		"facts", len(retrieved.Facts),
		"seed_entities", len(retrieved.SeedEntities),
	)
	return retrieved
}

func (r *ChatRelay) record(ctx context.Context, log *logger.Logger, exchange model.ChatExchange) {
	if r.recorder == nil {
		return
	}
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := r.recorder.Record(recordCtx, exchange); err != nil {
		log.Warn("record chat exchange failed", "error", err)
	}
}

// RelayStream hands provider deltas to the caller one at a time.
type RelayStream struct {
	relay    *ChatRelay
	log      *logger.Logger
	ctx      context.Context
	deltas   ai.DeltaStream
	exchange model.ChatExchange

	answer    strings.Builder
	status    string
	closeOnce sync.Once
	closeErr  error
}

// ID identifies this relay; it is also used as the UI message id.
func (s *RelayStream) ID() string {
	return s.exchange.RequestID
}

// Next returns the next text delta, io.EOF once the provider is done.
func (s *RelayStream) Next() (string, error) {
	text, err := s.deltas.Recv()
	if errors.Is(err, io.EOF) {
		s.status = model.ExchangeCompleted
		return "", io.EOF
	}
	if err != nil {
		s.status = model.ExchangeFailed
		s.log.Error("completion stream broke", "error", err)
		return "", err
	}
	s.answer.WriteString(text)
	return text, nil
}

// Close releases the provider connection and records the exchange. Safe to call more than once.
func (s *RelayStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.deltas.Close()
		status := s.status
		if status == "" {
			status = model.ExchangeAborted
		}
		s.exchange.Status = status
		s.exchange.Answer = s.answer.String()
		s.exchange.FinishedAt = time.Now()
		s.relay.metrics.ObserveStream(status, s.exchange.FinishedAt.Sub(s.exchange.StartedAt).Seconds())
		s.relay.record(s.ctx, s.log, s.exchange)
	})
	return s.closeErr
}

func validateTurns(turns []ChatTurn) (string, error) {
	if len(turns) == 0 {
		return "", ErrNoMessages
	}
	last := turns[len(turns)-1]
	if last.Role != "user" {
		return "", ErrLastTurnNotUser
	}
	question := ExtractMessageText(last)
	if strings.TrimSpace(question) == "" {
		return "", ErrMessageEmpty
	}
	return question, nil
}

// normalizeVaultIDs drops blanks; no ids at all means "no filter" and is sent as null.
func normalizeVaultIDs(ids []string) []string {
	var out []string
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
