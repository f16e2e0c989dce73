// Package logger provides the application's structured logger built on log/slog.
//
// Handlers built here redact attributes whose keys name secrets (codes,
// tokens, payment nonces) before they reach any sink:
//
//	log := logger.WithCtx(r.Context())
//	log.Info("payment completed", "order_id", order.ID, "amount_cents", cents)
//	// → time=... level=INFO msg="payment completed" request_id=a1b2c3d4 order_id=7 amount_cents=1299
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/config"
)

var L *slog.Logger

// base is the console handler; sinks added with Tee wrap it.
var base slog.Handler

func init() {
	base = newConsoleHandler(os.Stdout, config.IsProduction())
	L = slog.New(base)
	slog.SetDefault(L)
}

func newConsoleHandler(w io.Writer, production bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug, ReplaceAttr: redact}
	if production {
		opts.Level = slog.LevelInfo
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Tee adds extra handlers next to the console handler and replaces L.
func Tee(extra ...slog.Handler) {
	hs := append([]slog.Handler{base}, extra...)
	L = slog.New(NewMultiHandler(hs...))
	slog.SetDefault(L)
}

// Discard silences the global logger. Used by tests.
func Discard() {
	L = slog.New(slog.NewTextHandler(io.Discard, nil))
	slog.SetDefault(L)
}

// sensitiveKeys never leave the process, whatever the sink.
var sensitiveKeys = map[string]bool{
	"code":               true,
	"token":              true,
	"authorization":      true,
	"nonce":              true,
	"source_id":          true,
	"verification_token": true,
	"password":           true,
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, "[redacted]")
	}
	return a
}

// ─────────────────────────────────────────────
// Context-aware logger
// ─────────────────────────────────────────────

type ctxKey struct{}

// WithCtx returns the request logger stored by the Logger middleware, or L.
func WithCtx(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return L
	}
	if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return L
}

// InjectLogger stores a *slog.Logger (pre-tagged with request_id) into ctx.
func InjectLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// ─────────────────────────────────────────────
// Short-hand helpers (use base logger)
// ─────────────────────────────────────────────

func Debug(msg string, args ...any) { L.Debug(msg, args...) }
func Info(msg string, args ...any)  { L.Info(msg, args...) }
func Warn(msg string, args ...any)  { L.Warn(msg, args...) }
func Error(msg string, args ...any) { L.Error(msg, args...) }

// LevelFor picks the access-log level for an HTTP status.
func LevelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
