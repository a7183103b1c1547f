package app

import (
	"context"
	"fmt"
	"strings"

	"contaixt-gateway/internal/knowledge"
)

// VaultBackend is the subset of the knowledge client used for vault management.
type VaultBackend interface {
	ListVaults(ctx context.Context, workspaceID string) ([]knowledge.Vault, error)
	CreateVault(ctx context.Context, req knowledge.CreateVaultRequest) (*knowledge.Vault, error)
	UpdateVault(ctx context.Context, vaultID string, req knowledge.UpdateVaultRequest) (*knowledge.Vault, error)
	DeleteVault(ctx context.Context, vaultID string) error
	ListVaultConnections(ctx context.Context, vaultID string) ([]knowledge.SourceConnection, error)
	SetVaultConnections(ctx context.Context, vaultID string, connectionIDs []string) (*knowledge.VaultConnections, error)
}

type VaultService struct {
	backend VaultBackend
}

func NewVaultService(backend VaultBackend) *VaultService {
	return &VaultService{backend: backend}
}

type CreateVaultInput struct {
	WorkspaceID string
	Name        string
	Description *string
}

type UpdateVaultInput struct {
	Name        *string
	Description *string
}

func (s *VaultService) List(ctx context.Context, workspaceID string) ([]knowledge.Vault, error) {
	if strings.TrimSpace(workspaceID) == "" {
		return nil, ErrInvalidInput
	}
	vaults, err := s.backend.ListVaults(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list vaults: %w", err)
	}
	if vaults == nil {
		vaults = []knowledge.Vault{}
	}
	return vaults, nil
}

func (s *VaultService) Create(ctx context.Context, input CreateVaultInput) (*knowledge.Vault, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || strings.TrimSpace(input.WorkspaceID) == "" {
		return nil, ErrInvalidInput
	}
	vault, err := s.backend.CreateVault(ctx, knowledge.CreateVaultRequest{
		WorkspaceID: input.WorkspaceID,
		Name:        name,
		Description: trimOptional(input.Description),
	})
	if err != nil {
		return nil, fmt.Errorf("create vault: %w", err)
	}
	return vault, nil
}

func (s *VaultService) Update(ctx context.Context, vaultID string, input UpdateVaultInput) (*knowledge.Vault, error) {
	if strings.TrimSpace(vaultID) == "" {
		return nil, ErrInvalidInput
	}
	req := knowledge.UpdateVaultRequest{Description: trimOptional(input.Description)}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrInvalidInput
		}
		req.Name = &name
	}
	if req.Name == nil && req.Description == nil {
		return nil, ErrInvalidInput
	}
	vault, err := s.backend.UpdateVault(ctx, vaultID, req)
	if err != nil {
		return nil, fmt.Errorf("update vault: %w", err)
	}
	return vault, nil
}

func (s *VaultService) Delete(ctx context.Context, vaultID string) error {
	if strings.TrimSpace(vaultID) == "" {
		return ErrInvalidInput
	}
	if err := s.backend.DeleteVault(ctx, vaultID); err != nil {
		return fmt.Errorf("delete vault: %w", err)
	}
	return nil
}

func (s *VaultService) Connections(ctx context.Context, vaultID string) ([]knowledge.SourceConnection, error) {
	if strings.TrimSpace(vaultID) == "" {
		return nil, ErrInvalidInput
	}
	conns, err := s.backend.ListVaultConnections(ctx, vaultID)
	if err != nil {
		return nil, fmt.Errorf("list vault connections: %w", err)
	}
	if conns == nil {
		conns = []knowledge.SourceConnection{}
	}
	return conns, nil
}

// SetConnections replaces the vault's connection set. Duplicates and blanks are dropped.
func (s *VaultService) SetConnections(ctx context.Context, vaultID string, connectionIDs []string) (*knowledge.VaultConnections, error) {
	if strings.TrimSpace(vaultID) == "" {
		return nil, ErrInvalidInput
	}
	seen := make(map[string]struct{}, len(connectionIDs))
	ids := make([]string, 0, len(connectionIDs))
	for _, id := range connectionIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	out, err := s.backend.SetVaultConnections(ctx, vaultID, ids)
	if err != nil {
		return nil, fmt.Errorf("set vault connections: %w", err)
	}
	return out, nil
}

// trimOptional keeps an explicitly empty description so it can be cleared.
func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
