package app

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contaixt-gateway/internal/knowledge"
)

func strPtr(s string) *string { return &s }

func TestExtractMessageText(t *testing.T) {
	tests := []struct {
		name string
		turn ChatTurn
		want string
	}{
		{
			name: "plain string content",
			turn: ChatTurn{Role: "user", Content: "hello"},
			want: "hello",
		},
		{
			name: "text parts concatenated in order",
			turn: ChatTurn{Role: "user", Parts: []ContentPart{
				{Type: "text", Text: "a"},
				{Type: "text", Text: "b"},
				{Type: "text", Text: "c"},
			}},
			want: "abc",
		},
		{
			name: "non-text parts contribute nothing",
			turn: ChatTurn{Role: "user", Parts: []ContentPart{
				{Type: "text", Text: "see "},
				{Type: "file"},
				{Type: "step-start"},
				{Type: "text", Text: "this"},
			}},
			want: "see this",
		},
		{
			name: "no content at all",
			turn: ChatTurn{Role: "user"},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractMessageText(tt.turn))
		})
	}
}

func TestChatTurnDecodesWireShapes(t *testing.T) {
	var turns []ChatTurn
	raw := `[
		{"role": "user", "content": "hello"},
		{"role": "user", "content": [{"type": "text", "text": "a"}, {"type": "image"}, {"type": "text", "text": "b"}]},
		{"role": "user", "parts": [{"type": "text", "text": "x"}, {"type": "text", "text": "y"}]},
		{"role": "assistant", "content": null, "parts": [{"type": "text", "text": "z"}]}
	]`
	require.NoError(t, json.Unmarshal([]byte(raw), &turns))
	require.Len(t, turns, 4)

	assert.Equal(t, "hello", ExtractMessageText(turns[0]))
	assert.Equal(t, "ab", ExtractMessageText(turns[1]))
	assert.Equal(t, "xy", ExtractMessageText(turns[2]))
	assert.Equal(t, "assistant", turns[3].Role)
	assert.Equal(t, "z", ExtractMessageText(turns[3]))
}

func TestChatTurnRejectsNumericContent(t *testing.T) {
	var turn ChatTurn
	assert.Error(t, json.Unmarshal([]byte(`{"role": "user", "content": 42}`), &turn))
}

func TestBuildContextPromptEmpty(t *testing.T) {
	assert.Equal(t, NoContextText, BuildContextPrompt(nil))
	assert.Equal(t, NoContextText, BuildContextPrompt(&knowledge.Context{}))
	assert.Equal(t, "No relevant documents found in the knowledge base.", BuildContextPrompt(&knowledge.Context{
		SeedEntities: []knowledge.SeedEntity{{Key: "k", Type: "Person", Name: "n"}},
	}))
}

func TestBuildContextPromptSingleChunk(t *testing.T) {
	got := BuildContextPrompt(&knowledge.Context{
		Chunks: []knowledge.Chunk{{
			ChunkID:       "c1",
			DocumentID:    "d1",
			Text:          "Paris is the capital.",
			DocTitle:      strPtr("Geo"),
			DocSourceType: strPtr("notion"),
		}},
	})

	want := "=== DOCUMENT EXCERPTS ===\n" +
		"[c1] (source: notion, doc: Geo)\n" +
		"Paris is the capital.\n"
	assert.Equal(t, want, got)
	assert.NotContains(t, got, "KNOWLEDGE GRAPH FACTS")
}

func TestBuildContextPromptDefaultsMissingMetadata(t *testing.T) {
	got := BuildContextPrompt(&knowledge.Context{
		Chunks: []knowledge.Chunk{
			{ChunkID: "c1", Text: "one"},
			{ChunkID: "c2", Text: "two", DocTitle: strPtr(""), DocSourceType: strPtr("")},
		},
	})

	assert.Contains(t, got, "[c1] (source: unknown, doc: untitled)\none\n")
	assert.Contains(t, got, "[c2] (source: unknown, doc: untitled)\ntwo\n")
	assert.Less(t, strings.Index(got, "[c1]"), strings.Index(got, "[c2]"))
}

func TestBuildContextPromptTruncatesEvidence(t *testing.T) {
	evidence := strings.Repeat("e", 150)
	got := BuildContextPrompt(&knowledge.Context{
		Facts: []knowledge.Fact{{FromName: "Alice", Relation: "works_at", ToName: "Acme", Evidence: &evidence}},
	})

	want := "=== KNOWLEDGE GRAPH FACTS ===\n" +
		"- Alice --[works_at]--> Acme (evidence: " + strings.Repeat("e", 100) + ")\n"
	assert.Equal(t, want, got)
	assert.NotContains(t, got, "DOCUMENT EXCERPTS")
}

func TestBuildContextPromptTruncatesOnRunes(t *testing.T) {
	evidence := strings.Repeat("é", 120)
	got := BuildContextPrompt(&knowledge.Context{
		Facts: []knowledge.Fact{{FromName: "A", Relation: "r", ToName: "B", Evidence: &evidence}},
	})

	start := strings.Index(got, "(evidence: ") + len("(evidence: ")
	end := strings.LastIndex(got, ")")
	excerpt := got[start:end]
	assert.True(t, utf8.ValidString(excerpt))
	assert.Equal(t, 100, utf8.RuneCountInString(excerpt))
}

func TestBuildContextPromptFactWithoutEvidence(t *testing.T) {
	got := BuildContextPrompt(&knowledge.Context{
		Facts: []knowledge.Fact{
			{FromName: "Alice", Relation: "knows", ToName: "Bob"},
			{FromName: "Bob", Relation: "knows", ToName: "Carol", Evidence: strPtr("")},
		},
	})

	assert.Contains(t, got, "- Alice --[knows]--> Bob\n")
	assert.Contains(t, got, "- Bob --[knows]--> Carol\n")
	assert.NotContains(t, got, "evidence")
}

func TestBuildContextPromptKeepsDuplicatesAndOrder(t *testing.T) {
	got := BuildContextPrompt(&knowledge.Context{
		Chunks: []knowledge.Chunk{
			{ChunkID: "c2", Text: "second"},
			{ChunkID: "c1", Text: "first"},
			{ChunkID: "c2", Text: "second"},
		},
		Facts: []knowledge.Fact{
			{FromName: "B", Relation: "r", ToName: "C"},
			{FromName: "A", Relation: "r", ToName: "B"},
		},
	})

	assert.Equal(t, 2, strings.Count(got, "[c2]"))
	assert.Less(t, strings.Index(got, "[c2]"), strings.Index(got, "[c1]"))
	assert.Less(t, strings.Index(got, "- B --[r]--> C"), strings.Index(got, "- A --[r]--> B"))
	assert.Less(t, strings.Index(got, "DOCUMENT EXCERPTS"), strings.Index(got, "KNOWLEDGE GRAPH FACTS"))
}

func TestBuildPromptMessages(t *testing.T) {
	msgs := BuildPromptMessages("GROUNDING", "What is X?")
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, SystemPrompt, msgs[0].Content)
	assert.Equal(t, "user", msgs[1].Role)
	assert.Equal(t, "Context:\nGROUNDING\n\nQuestion: What is X?", msgs[1].Content)
}
