package logging_test

import (
	"log/slog"
	"testing"

	"github.com/ddt-tool/ddt/internal/logging"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logging.ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, logging.ParseLevel(" WARN "))
	assert.Equal(t, slog.LevelError, logging.ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, logging.ParseLevel("loud"))
	assert.Equal(t, slog.LevelInfo, logging.ParseLevel(""))
}

func TestNewNop(t *testing.T) {
	l := logging.NewNop()
	assert.NotNil(t, l)
	l.Info("discarded")
}
