package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", DEBUG},
		{"info", INFO},
		{"warn", WARN},
		{"warning", WARN},
		{"error", ERROR},
		{" Error ", ERROR},
		{"", INFO},
		{"bogus", INFO},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "level %q", tt.in)
	}
}

func TestSetLevelFiltersMessages(t *testing.T) {
	l := NewLogger(INFO)
	assert.False(t, l.shouldLog(DEBUG))

	l.SetLevel(DEBUG)
	assert.True(t, l.shouldLog(DEBUG))

	l.SetLevel(ERROR)
	assert.False(t, l.shouldLog(WARN))
	assert.True(t, l.shouldLog(ERROR))
}

func TestWithFieldAnnotatesMessages(t *testing.T) {
	l := NewLogger(INFO).WithField("account", "user@example.org")

	msg := l.formatMessage(INFO, "connected to %s", "imap.example.org:993")
	assert.Contains(t, msg, "connected to imap.example.org:993")
	assert.Contains(t, msg, "account=user@example.org")

	// The parent logger keeps its own field set.
	parent := NewLogger(INFO)
	child := parent.WithField("k", "v")
	assert.Empty(t, parent.fields)
	assert.Len(t, child.fields, 1)
}
