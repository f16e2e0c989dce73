package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsoleHandlerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newConsoleHandler(&buf, true))

	log.Info("verification sent", "email", "a@b.com", "code", "482913", "token", "eyJhbGciOi")

	out := buf.String()
	assert.Contains(t, out, "a@b.com")
	assert.NotContains(t, out, "482913")
	assert.NotContains(t, out, "eyJhbGciOi")
	assert.Contains(t, out, "[redacted]")
}

func TestMultiHandlerFansOut(t *testing.T) {
	var a, b bytes.Buffer
	h := NewMultiHandler(
		slog.NewJSONHandler(&a, nil),
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	log := slog.New(h).With("request_id", "r-1")

	log.Info("only first")
	log.Error("both")

	assert.Contains(t, a.String(), "only first")
	assert.Contains(t, a.String(), "both")
	assert.NotContains(t, b.String(), "only first")
	assert.Contains(t, b.String(), `"request_id":"r-1"`)
}

func TestWithCtxFallsBackToGlobal(t *testing.T) {
	assert.Equal(t, L, WithCtx(context.Background()))

	custom := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := InjectLogger(context.Background(), custom)
	assert.Equal(t, custom, WithCtx(ctx))
}
