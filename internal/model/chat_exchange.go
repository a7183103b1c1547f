package model

import (
	"encoding/json"
	"time"
)

// ChatExchange is the audit record of one relayed question and its streamed answer.
// ChunkIDs is stored as a JSON array for portability.
type ChatExchange struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RequestID   string    `gorm:"size:36;not null;uniqueIndex" json:"request_id"`
	WorkspaceID string    `gorm:"size:64;not null;index" json:"workspace_id"`
	Question    string    `gorm:"type:text;not null" json:"question"`
	ChunkIDs    string    `gorm:"type:text" json:"chunk_ids"`
	FactCount   int       `gorm:"not null" json:"fact_count"`
	ContextUsed bool      `gorm:"not null" json:"context_used"`
	Answer      string    `gorm:"type:mediumtext" json:"answer"`
	Status      string    `gorm:"size:16;not null;index" json:"status"`
	Model       string    `gorm:"size:64" json:"model"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	ExchangeCompleted = "completed"
	ExchangeFailed    = "failed"
	ExchangeAborted   = "aborted"
	ExchangeRejected  = "rejected"
)

func (e *ChatExchange) SetChunkIDs(ids []string) {
	if len(ids) == 0 {
		e.ChunkIDs = "[]"
		return
	}
	b, _ := json.Marshal(ids)
	e.ChunkIDs = string(b)
}

// ChunkIDList returns the parsed chunk ids; empty on parse error.
func (e *ChatExchange) ChunkIDList() []string {
	if e.ChunkIDs == "" {
		return nil
	}
	var ids []string
	_ = json.Unmarshal([]byte(e.ChunkIDs), &ids)
	return ids
}
