package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{"api_key", "sk-123", "workspace_id", "ws-1", "dangling"})
	assert.Equal(t, []interface{}{"api_key", "[REDACTED]", "workspace_id", "ws-1", "dangling"}, out)
}

func TestLoggerWritesStructuredFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("request_id", "r-1").Warn("retrieval failed", "status", 503, "authorization", "Bearer abc")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "retrieval failed", entries[0].Message)
		assert.Equal(t, "r-1", fields["request_id"])
		assert.EqualValues(t, 503, fields["status"])
		assert.Equal(t, "[REDACTED]", fields["authorization"])
	}
}
