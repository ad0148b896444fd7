package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	t.Run("nil config falls back to defaults", func(t *testing.T) {
		l, err := New(nil)
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("debug level", func(t *testing.T) {
		l, err := New(&Config{Level: "debug", Format: "json", Output: "stderr"})
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("unwritable file output", func(t *testing.T) {
		_, err := New(&Config{Output: filepath.Join(t.TempDir(), "missing", "out.log")})
		assert.Error(t, err)
	})
}

func TestMaskEmail(t *testing.T) {
	tests := map[string]string{
		"alpha@acme.de":    "a***@acme.de",
		"x@y.org":          "x***@y.org",
		"no-at-sign":       "***",
		"@leading.example": "***",
		"":                 "***",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, MaskEmail(in))
		})
	}
}

func TestRedactingCore(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := zap.New(NewRedactingCore(core, "email"))

	l.With(zap.String("email", "bound@acme.de")).Info("created",
		zap.String("email", "alpha@acme.de"),
		zap.String("username", "alpha"),
		zap.Int("email_count", 1))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "b***@acme.de", entry.Context[0].String)
	fields := entry.ContextMap()
	assert.Equal(t, "a***@acme.de", fields["email"])
	assert.Equal(t, "alpha", fields["username"])
	assert.Equal(t, int64(1), fields["email_count"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		" fatal ": zapcore.FatalLevel,
		"bogus":   zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, parseLevel(in))
		})
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "customer.log")
	l, err := New(&Config{Level: "info", Format: "json", Output: path, Service: "customer-service", Redact: []string{"email"}})
	require.NoError(t, err)

	l.Info("customer created", zap.String("email", "alpha@acme.de"))
	require.NoError(t, Sync(l))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"customer created"`)
	assert.Contains(t, string(data), `"service":"customer-service"`)
	assert.Contains(t, string(data), `"email":"a***@acme.de"`)
	assert.NotContains(t, string(data), "alpha@acme.de")
}
