package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"contaixt-gateway/internal/ai"
	"contaixt-gateway/internal/knowledge"
)

const (
	NoContextText       = "No relevant documents found in the knowledge base."
	maxEvidenceRunes    = 100
	documentSectionHead = "=== DOCUMENT EXCERPTS ==="
	factSectionHead     = "=== KNOWLEDGE GRAPH FACTS ==="
)

const SystemPrompt = `You are a knowledge assistant for Contaixt. Answer the user's question using ONLY the provided context.

Context consists of:
1. CHUNKS: Relevant text excerpts from documents (each has a chunk_id)
2. FACTS: Knowledge graph relationships between entities

Rules:
- Only use information present in the context. Do not use prior knowledge.
- If the context doesn't contain enough information, say so honestly.
- When you use information from a chunk, cite it naturally in your response.
- Be concise and direct.
- Answer in the same language as the user's question.
- Format your response in markdown for readability.`

// ContentPart is one typed piece of a turn's content. Only "text" parts carry text.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ChatTurn is one message of the client's conversation. On the wire "content"
// is either a string or a list of parts; a separate "parts" list is also accepted.
type ChatTurn struct {
	Role    string        `json:"role"`
	Content string        `json:"content,omitempty"`
	Parts   []ContentPart `json:"parts,omitempty"`
}

func (t *ChatTurn) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
		Parts   []ContentPart   `json:"parts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	t.Role = raw.Role
	t.Content = ""
	t.Parts = raw.Parts

	content := bytes.TrimSpace(raw.Content)
	switch {
	case len(content) == 0 || bytes.Equal(content, []byte("null")):
	case content[0] == '"':
		if err := json.Unmarshal(content, &t.Content); err != nil {
			return fmt.Errorf("decode turn content failed: %w", err)
		}
	case content[0] == '[':
		var parts []ContentPart
		if err := json.Unmarshal(content, &parts); err != nil {
			return fmt.Errorf("decode turn content parts failed: %w", err)
		}
		t.Parts = parts
	default:
		return fmt.Errorf("turn content must be a string or a list of parts")
	}
	return nil
}

// ExtractMessageText recovers the plain text of a turn: string content as is,
// otherwise the text parts concatenated in order.
func ExtractMessageText(turn ChatTurn) string {
	if turn.Content != "" {
		return turn.Content
	}
	var b strings.Builder
	for _, part := range turn.Parts {
		if part.Type == "text" {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// BuildContextPrompt serializes retrieved chunks and facts, in received order,
// into the grounding block. An empty context yields NoContextText.
func BuildContextPrompt(ctx *knowledge.Context) string {
	if ctx.Empty() {
		return NoContextText
	}

	var lines []string
	if len(ctx.Chunks) > 0 {
		lines = append(lines, documentSectionHead)
		for _, c := range ctx.Chunks {
			title := valueOr(c.DocTitle, "untitled")
			source := valueOr(c.DocSourceType, "unknown")
			lines = append(lines, fmt.Sprintf("[%s] (source: %s, doc: %s)", c.ChunkID, source, title))
			lines = append(lines, c.Text)
			lines = append(lines, "")
		}
	}

	if len(ctx.Facts) > 0 {
		lines = append(lines, factSectionHead)
		for _, f := range ctx.Facts {
			evidence := ""
			if f.Evidence != nil && *f.Evidence != "" {
				evidence = " (evidence: " + truncateRunes(*f.Evidence, maxEvidenceRunes) + ")"
			}
			lines = append(lines, fmt.Sprintf("- %s --[%s]--> %s%s", f.FromName, f.Relation, f.ToName, evidence))
		}
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}

// BuildPromptMessages pairs the fixed instructions with one synthesized user turn.
// Earlier conversation turns are deliberately not forwarded.
func BuildPromptMessages(grounding, question string) []ai.ChatMessage {
	return []ai.ChatMessage{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: "Context:\n" + grounding + "\n\nQuestion: " + question},
	}
}

func valueOr(v *string, fallback string) string {
	if v == nil || *v == "" {
		return fallback
	}
	return *v
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
