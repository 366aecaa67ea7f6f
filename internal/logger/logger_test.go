package logger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestScrub(t *testing.T) {
	in := []interface{}{
		"entry_id", "e-1",
		"api_key", "sk-123",
		"user_id", "u-42",
		"dangling",
	}
	out := scrub(in)

	assert.Equal(t, "entry_id", out[0])
	assert.Equal(t, "e-1", out[1])
	assert.Equal(t, "[REDACTED]", out[3])
	hashed, ok := out[5].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(hashed, "hash:"))
	assert.NotContains(t, hashed, "u-42")
	assert.Equal(t, "dangling", out[6])

	assert.Equal(t, "sk-123", in[3], "input must not be modified")
}

func TestPseudonym_Stable(t *testing.T) {
	assert.Equal(t, pseudonym("u-1"), pseudonym("u-1"))
	assert.NotEqual(t, pseudonym("u-1"), pseudonym("u-2"))
	assert.Equal(t, pseudonym("42"), pseudonym(42))
	assert.Equal(t, "", pseudonym(""))
	assert.Equal(t, "", pseudonym(nil))
}

func TestNewWithCore_ScrubsFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewWithCore(core).With("component", "test", "Authorization", "Bearer abc")

	l.Warn("lookup failed", "user_id", "alice", "entry_id", "e-1")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "test", fields["component"])
	assert.Equal(t, "[REDACTED]", fields["Authorization"])
	assert.Equal(t, pseudonym("alice"), fields["user_id"])
	assert.Equal(t, "e-1", fields["entry_id"])
}

func TestNop(t *testing.T) {
	l := Nop().With("component", "test")
	l.Info("ignored", "k", "v")
	l.Warn("ignored")
}
