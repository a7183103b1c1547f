package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"contaixt-gateway/internal/platform/logger"
)

// APIError is a non-2xx answer from the knowledge backend.
type APIError struct {
	Op     string
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("knowledge %s status %d: %s", e.Op, e.Status, e.Detail)
}

// AsAPIError unwraps err into an *APIError when the backend answered with an error status.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

type Client struct {
	http *resty.Client
}

func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetLogger(log.SugaredLogger)
	return &Client{http: httpClient}
}

// WithTransport swaps the underlying round tripper, e.g. for tracing.
func (c *Client) WithTransport(rt http.RoundTripper) *Client {
	if rt != nil {
		c.http.SetTransport(rt)
	}
	return c
}

// FetchContext asks the backend for chunks and graph facts relevant to the prompt.
func (c *Client) FetchContext(ctx context.Context, query ContextQuery) (*Context, error) {
	var out Context
	if err := c.do(ctx, "fetch context", http.MethodPost, "/v1/context", nil, query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListVaults(ctx context.Context, workspaceID string) ([]Vault, error) {
	var out []Vault
	params := url.Values{"workspace_id": {workspaceID}}
	if err := c.do(ctx, "list vaults", http.MethodGet, "/v1/vaults", params, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateVault(ctx context.Context, req CreateVaultRequest) (*Vault, error) {
	var out Vault
	if err := c.do(ctx, "create vault", http.MethodPost, "/v1/vaults", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateVault(ctx context.Context, vaultID string, req UpdateVaultRequest) (*Vault, error) {
	var out Vault
	path := "/v1/vaults/" + url.PathEscape(vaultID)
	if err := c.do(ctx, "update vault", http.MethodPatch, path, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteVault(ctx context.Context, vaultID string) error {
	path := "/v1/vaults/" + url.PathEscape(vaultID)
	return c.do(ctx, "delete vault", http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) ListVaultConnections(ctx context.Context, vaultID string) ([]SourceConnection, error) {
	var out []SourceConnection
	path := "/v1/vaults/" + url.PathEscape(vaultID) + "/connections"
	if err := c.do(ctx, "list vault connections", http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SetVaultConnections(ctx context.Context, vaultID string, connectionIDs []string) (*VaultConnections, error) {
	if connectionIDs == nil {
		connectionIDs = []string{}
	}
	var out VaultConnections
	path := "/v1/vaults/" + url.PathEscape(vaultID) + "/connections"
	body := map[string]interface{}{"connection_ids": connectionIDs}
	if err := c.do(ctx, "set vault connections", http.MethodPut, path, nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListSources(ctx context.Context, workspaceID string) ([]SourceConnection, error) {
	var out []SourceConnection
	params := url.Values{"workspace_id": {workspaceID}}
	if err := c.do(ctx, "list sources", http.MethodGet, "/v1/sources", params, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RegisterConnection(ctx context.Context, req RegisterConnectionRequest) (*RegisterConnectionResponse, error) {
	var out RegisterConnectionResponse
	if err := c.do(ctx, "register connection", http.MethodPost, "/v1/sources/nango/register", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Backfill(ctx context.Context, workspaceID, sourceType string) (*BackfillResult, error) {
	var out BackfillResult
	params := url.Values{"workspace_id": {workspaceID}}
	path := "/v1/sources/" + url.PathEscape(sourceType) + "/backfill"
	if err := c.do(ctx, "backfill", http.MethodPost, path, params, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "health", http.MethodGet, "/v1/health", nil, nil, nil)
}

func (c *Client) do(
	ctx context.Context,
	op string,
	method string,
	path string,
	params url.Values,
	body interface{},
	out interface{},
) error {
	req := c.http.R().SetContext(ctx)
	if params != nil {
		req.SetQueryParamsFromValues(params)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("knowledge %s request failed: %w", op, err)
	}
	if resp.IsError() || resp.StatusCode() >= 300 {
		return &APIError{Op: op, Status: resp.StatusCode(), Detail: errorDetail(resp.Body())}
	}
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("parse knowledge %s response failed: %w", op, err)
	}
	return nil
}

// errorDetail pulls the backend's "detail" out of an error body, falling back to the raw text.
func errorDetail(raw []byte) string {
	var parsed struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && len(parsed.Detail) > 0 {
		var text string
		if err := json.Unmarshal(parsed.Detail, &text); err == nil {
			return text
		}
		return string(parsed.Detail)
	}
	text := strings.TrimSpace(string(raw))
	if len(text) > 256 {
		text = text[:256]
	}
	return text
}
