package knowledge

import "time"

// Chunk is a retrieval-sized excerpt of a source document. ChunkID is the citation anchor.
type Chunk struct {
	ChunkID       string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	Text          string  `json:"text"`
	DocTitle      *string `json:"doc_title"`
	DocURL        *string `json:"doc_url"`
	DocSourceType *string `json:"doc_source_type"`
}

// Fact is a directed, labelled edge between two named entities.
type Fact struct {
	FromName string  `json:"from_name"`
	Relation string  `json:"relation"`
	ToName   string  `json:"to_name"`
	Evidence *string `json:"evidence"`
}

type SeedEntity struct {
	Key  string `json:"key"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// Context is what the backend retrieved for one prompt.
type Context struct {
	Chunks       []Chunk      `json:"chunks"`
	Facts        []Fact       `json:"facts"`
	SeedEntities []SeedEntity `json:"seed_entities"`
}

func (c *Context) Empty() bool {
	return c == nil || (len(c.Chunks) == 0 && len(c.Facts) == 0)
}

func (c *Context) ChunkIDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, 0, len(c.Chunks))
	for _, chunk := range c.Chunks {
		ids = append(ids, chunk.ChunkID)
	}
	return ids
}

// ContextQuery is the body of POST /v1/context. A nil VaultIDs is sent as null,
// which the backend reads as "all vaults".
type ContextQuery struct {
	WorkspaceID string   `json:"workspace_id"`
	Prompt      string   `json:"prompt"`
	VaultIDs    []string `json:"vault_ids"`
	TopK        int      `json:"top_k"`
}

type Vault struct {
	ID            string    `json:"id"`
	WorkspaceID   string    `json:"workspace_id"`
	Name          string    `json:"name"`
	Description   *string   `json:"description"`
	IsDefault     bool      `json:"is_default"`
	CreatedAt     time.Time `json:"created_at"`
	DocumentCount *int      `json:"document_count,omitempty"`
}

type CreateVaultRequest struct {
	WorkspaceID string  `json:"workspace_id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type UpdateVaultRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type SourceConnection struct {
	ID                string   `json:"id"`
	WorkspaceID       string   `json:"workspace_id"`
	SourceType        string   `json:"source_type"`
	NangoConnectionID string   `json:"nango_connection_id"`
	ExternalAccountID *string  `json:"external_account_id"`
	Status            *string  `json:"status"`
	VaultIDs          []string `json:"vault_ids,omitempty"`
	CreatedAt         *string  `json:"created_at,omitempty"`
	UpdatedAt         *string  `json:"updated_at,omitempty"`
}

type VaultConnections struct {
	VaultID       string   `json:"vault_id"`
	ConnectionIDs []string `json:"connection_ids"`
}

type RegisterConnectionRequest struct {
	WorkspaceID       string  `json:"workspace_id"`
	SourceType        string  `json:"source_type"`
	NangoConnectionID string  `json:"nango_connection_id"`
	ExternalAccountID *string `json:"external_account_id,omitempty"`
}

type RegisterConnectionResponse struct {
	ID                string   `json:"id"`
	WorkspaceID       string   `json:"workspace_id"`
	SourceType        string   `json:"source_type"`
	NangoConnectionID string   `json:"nango_connection_id"`
	VaultIDs          []string `json:"vault_ids"`
}

type BackfillResult struct {
	Fetched  int `json:"fetched"`
	Ingested int `json:"ingested"`
}
