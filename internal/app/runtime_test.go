package app

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTestModeFollowsEnvironment(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	assert.False(t, InTestMode())
}

func TestNewLoggerHonorsFormat(t *testing.T) {
	logger := NewLogger(&Config{LogFormat: "json"})
	_, ok := logger.Handler().(*slog.JSONHandler)
	assert.True(t, ok)

	logger = NewLogger(&Config{LogFormat: "pretty"})
	_, ok = logger.Handler().(*slog.TextHandler)
	assert.True(t, ok)
}
