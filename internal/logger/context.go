package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var callContextKey = contextKey{}

// CallContext holds request-scoped logging fields for a single RPC,
// carried in a context.Context by WithCall and read by the *Ctx functions.
type CallContext struct {
	TraceID   string // correlation id, one per invocation
	Operation string // operation name being dispatched
	Peer      string // remote address
	Channel   string // "tcp" or "udp"
	StartTime time.Time
}

// WithCall returns a new context carrying cc.
func WithCall(ctx context.Context, cc *CallContext) context.Context {
	return context.WithValue(ctx, callContextKey, cc)
}

// CallFromContext retrieves the CallContext, or nil if absent.
func CallFromContext(ctx context.Context) *CallContext {
	if ctx == nil {
		return nil
	}
	cc, _ := ctx.Value(callContextKey).(*CallContext)
	return cc
}

// DurationMs returns the time elapsed since StartTime, in milliseconds.
func (cc *CallContext) DurationMs() float64 {
	if cc == nil || cc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(cc.StartTime).Microseconds()) / 1000.0
}

func appendContextFields(ctx context.Context, args []any) []any {
	cc := CallFromContext(ctx)
	if cc == nil {
		return args
	}
	extra := []any{}
	if cc.TraceID != "" {
		extra = append(extra, "trace_id", cc.TraceID)
	}
	if cc.Operation != "" {
		extra = append(extra, "operation", cc.Operation)
	}
	if cc.Peer != "" {
		extra = append(extra, "peer", cc.Peer)
	}
	if cc.Channel != "" {
		extra = append(extra, "channel", cc.Channel)
	}
	return append(args, extra...)
}

// DebugCtx logs at debug level, auto-injecting CallContext fields.
func DebugCtx(ctx context.Context, msg string, args ...any) {
	if LevelDebug < Level(currentLevel.Load()) {
		return
	}
	getLogger().Debug(msg, appendContextFields(ctx, args)...)
}

// InfoCtx logs at info level, auto-injecting CallContext fields.
func InfoCtx(ctx context.Context, msg string, args ...any) {
	if LevelInfo < Level(currentLevel.Load()) {
		return
	}
	getLogger().Info(msg, appendContextFields(ctx, args)...)
}

// WarnCtx logs at warn level, auto-injecting CallContext fields.
func WarnCtx(ctx context.Context, msg string, args ...any) {
	if LevelWarn < Level(currentLevel.Load()) {
		return
	}
	getLogger().Warn(msg, appendContextFields(ctx, args)...)
}

// ErrorCtx logs at error level, auto-injecting CallContext fields.
func ErrorCtx(ctx context.Context, msg string, args ...any) {
	getLogger().Error(msg, appendContextFields(ctx, args)...)
}
