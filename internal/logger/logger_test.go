package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tempmail/client/internal/config"
)

func TestNewLogger(t *testing.T) {
	t.Run("invalid level falls back to info", func(t *testing.T) {
		log, err := NewLogger(Config{Level: "verbose"})
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(zap.InfoLevel))
		assert.False(t, log.Core().Enabled(zap.DebugLevel))
	})

	t.Run("log file is created", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "logs", "client.log")
		log, err := NewLogger(FromConfig(config.LogConfig{Level: "debug", File: file}))
		require.NoError(t, err)

		log.Info("hello")
		_ = log.Sync()

		_, err = os.Stat(file)
		assert.NoError(t, err)
	})
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	log := NewDevelopmentLogger()
	assert.Same(t, log, OrNop(log))
}
