package knowledge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 5*time.Second, nil)
}

func TestFetchContextSendsQuery(t *testing.T) {
	var got map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/context", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"chunks": [{"chunk_id": "c1", "document_id": "d1", "text": "Paris is the capital.", "doc_title": "Geo", "doc_url": null, "doc_source_type": "notion"}],
			"facts": [{"from_name": "Alice", "relation": "works_at", "to_name": "Acme", "evidence": null}],
			"seed_entities": [{"key": "person:alice", "type": "Person", "name": "Alice"}]
		}`))
	})

	out, err := client.FetchContext(context.Background(), ContextQuery{
		WorkspaceID: "ws-1",
		Prompt:      "Where is Paris?",
		TopK:        10,
	})
	require.NoError(t, err)

	assert.Equal(t, "ws-1", got["workspace_id"])
	assert.Equal(t, "Where is Paris?", got["prompt"])
	assert.Nil(t, got["vault_ids"])
	assert.Contains(t, got, "vault_ids")
	assert.EqualValues(t, 10, got["top_k"])

	require.Len(t, out.Chunks, 1)
	assert.Equal(t, "c1", out.Chunks[0].ChunkID)
	require.NotNil(t, out.Chunks[0].DocTitle)
	assert.Equal(t, "Geo", *out.Chunks[0].DocTitle)
	assert.Nil(t, out.Chunks[0].DocURL)
	require.Len(t, out.Facts, 1)
	assert.Nil(t, out.Facts[0].Evidence)
	assert.Equal(t, []string{"c1"}, out.ChunkIDs())
	assert.False(t, out.Empty())
}

func TestFetchContextVaultFilter(t *testing.T) {
	var got ContextQuery
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"chunks": [], "facts": [], "seed_entities": []}`))
	})

	out, err := client.FetchContext(context.Background(), ContextQuery{
		WorkspaceID: "ws-1",
		Prompt:      "q",
		VaultIDs:    []string{"v1", "v2"},
		TopK:        10,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v2"}, got.VaultIDs)
	assert.True(t, out.Empty())
}

func TestNonSuccessBecomesAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail": "Cannot delete the default vault"}`))
	})

	err := client.DeleteVault(context.Background(), "v1")
	require.Error(t, err)
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Cannot delete the default vault", apiErr.Detail)
	assert.Equal(t, "delete vault", apiErr.Op)
}

func TestMalformedBodyIsError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"chunks": [`))
	})

	_, err := client.FetchContext(context.Background(), ContextQuery{WorkspaceID: "ws", Prompt: "q", TopK: 10})
	require.Error(t, err)
	_, isAPI := AsAPIError(err)
	assert.False(t, isAPI)
}

func TestBackfillUsesQueryParam(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sources/gmail/backfill", r.URL.Path)
		assert.Equal(t, "ws-1", r.URL.Query().Get("workspace_id"))
		_, _ = w.Write([]byte(`{"fetched": 12, "ingested": 9}`))
	})

	out, err := client.Backfill(context.Background(), "ws-1", "gmail")
	require.NoError(t, err)
	assert.Equal(t, 12, out.Fetched)
	assert.Equal(t, 9, out.Ingested)
}

func TestSetVaultConnectionsSendsEmptyList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		raw, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"connection_ids": []}`, string(raw))
		_, _ = w.Write([]byte(`{"vault_id": "v1", "connection_ids": []}`))
	})

	out, err := client.SetVaultConnections(context.Background(), "v1", nil)
	require.NoError(t, err)
	assert.Equal(t, "v1", out.VaultID)
	assert.Empty(t, out.ConnectionIDs)
}

func TestErrorDetailFallsBackToRawText(t *testing.T) {
	assert.Equal(t, "upstream exploded", errorDetail([]byte(" upstream exploded ")))
	assert.Equal(t, `[{"msg":"field required"}]`, errorDetail([]byte(`{"detail":[{"msg":"field required"}]}`)))
}
