package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"contaixt-gateway/internal/knowledge"
	"contaixt-gateway/internal/platform/logger"
)

var (
	ErrUnknownSourceType = errors.New("unknown source type")
	ErrAlreadyRegistered = errors.New("connection registration already in progress")
)

var allowedSourceTypes = map[string]struct{}{
	"gmail":        {},
	"notion":       {},
	"google_drive": {},
	"slack":        {},
}

type SourceBackend interface {
	ListSources(ctx context.Context, workspaceID string) ([]knowledge.SourceConnection, error)
	RegisterConnection(ctx context.Context, req knowledge.RegisterConnectionRequest) (*knowledge.RegisterConnectionResponse, error)
	Backfill(ctx context.Context, workspaceID, sourceType string) (*knowledge.BackfillResult, error)
}

// RegistrationGuard keeps a connection from being registered twice in a short window.
type RegistrationGuard interface {
	Claim(ctx context.Context, sourceType, connectionID string) (bool, error)
	Release(ctx context.Context, sourceType, connectionID string) error
}

type SourceService struct {
	backend SourceBackend
	guard   RegistrationGuard
	log     *logger.Logger
}

// NewSourceService accepts a nil guard; registrations are then forwarded unguarded.
func NewSourceService(backend SourceBackend, guard RegistrationGuard, log *logger.Logger) *SourceService {
	if log == nil {
		log = logger.Nop()
	}
	return &SourceService{backend: backend, guard: guard, log: log}
}

type RegisterConnectionInput struct {
	WorkspaceID       string
	SourceType        string
	NangoConnectionID string
	ExternalAccountID *string
}

func (s *SourceService) List(ctx context.Context, workspaceID string) ([]knowledge.SourceConnection, error) {
	if strings.TrimSpace(workspaceID) == "" {
		return nil, ErrInvalidInput
	}
	sources, err := s.backend.ListSources(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	if sources == nil {
		sources = []knowledge.SourceConnection{}
	}
	return sources, nil
}

func (s *SourceService) Register(ctx context.Context, input RegisterConnectionInput) (*knowledge.RegisterConnectionResponse, error) {
	sourceType, err := normalizeSourceType(input.SourceType)
	if err != nil {
		return nil, err
	}
	connectionID := strings.TrimSpace(input.NangoConnectionID)
	if connectionID == "" || strings.TrimSpace(input.WorkspaceID) == "" {
		return nil, ErrInvalidInput
	}

	if s.guard != nil {
		claimed, err := s.guard.Claim(ctx, sourceType, connectionID)
		if err != nil {
			// a broken cache must not block onboarding
			s.log.Warn("registration guard unavailable, forwarding unguarded", "error", err)
		} else if !claimed {
			return nil, ErrAlreadyRegistered
		}
	}

	resp, err := s.backend.RegisterConnection(ctx, knowledge.RegisterConnectionRequest{
		WorkspaceID:       input.WorkspaceID,
		SourceType:        sourceType,
		NangoConnectionID: connectionID,
		ExternalAccountID: input.ExternalAccountID,
	})
	if err != nil {
		if s.guard != nil {
			if relErr := s.guard.Release(context.WithoutCancel(ctx), sourceType, connectionID); relErr != nil {
				s.log.Warn("release registration claim failed", "error", relErr, "source_type", sourceType)
			}
		}
		return nil, fmt.Errorf("register connection: %w", err)
	}
	s.log.Info("connection registered",
		"workspace_id", input.WorkspaceID,
		"source_type", sourceType,
		"connection_id", resp.ID,
	)
	return resp, nil
}

func (s *SourceService) Backfill(ctx context.Context, workspaceID, sourceType string) (*knowledge.BackfillResult, error) {
	st, err := normalizeSourceType(sourceType)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(workspaceID) == "" {
		return nil, ErrInvalidInput
	}
	result, err := s.backend.Backfill(ctx, workspaceID, st)
	if err != nil {
		return nil, fmt.Errorf("backfill %s: %w", st, err)
	}
	return result, nil
}

func normalizeSourceType(sourceType string) (string, error) {
	st := strings.ToLower(strings.TrimSpace(sourceType))
	if _, ok := allowedSourceTypes[st]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSourceType, sourceType)
	}
	return st, nil
}
