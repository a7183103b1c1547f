package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"contaixt-gateway/internal/model"
)

type ChatExchangeRepository struct {
	db *gorm.DB
}

func NewChatExchangeRepository(db *gorm.DB) *ChatExchangeRepository {
	return &ChatExchangeRepository{db: db}
}

// Create stores the exchange; a redelivered record with a known request id is ignored.
func (r *ChatExchangeRepository) Create(ctx context.Context, exchange *model.ChatExchange) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "request_id"}}, DoNothing: true}).
		Create(exchange).Error
	if err != nil {
		return fmt.Errorf("create chat exchange failed: %w", err)
	}
	return nil
}

func (r *ChatExchangeRepository) GetByRequestID(ctx context.Context, requestID string) (*model.ChatExchange, error) {
	var exchange model.ChatExchange
	if err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&exchange).Error; err != nil {
		return nil, fmt.Errorf("get chat exchange failed: %w", err)
	}
	return &exchange, nil
}

func (r *ChatExchangeRepository) ListByWorkspace(ctx context.Context, workspaceID string, limit int) ([]model.ChatExchange, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var exchanges []model.ChatExchange
	if err := r.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("started_at DESC").
		Limit(limit).
		Find(&exchanges).Error; err != nil {
		return nil, fmt.Errorf("list chat exchanges failed: %w", err)
	}
	return exchanges, nil
}
