package log

import (
	"context"

	"github.com/looplj/authcore/internal/contexts"
)

// Hook derives extra fields from the context for every log entry.
type Hook interface {
	Apply(ctx context.Context, msg string) []Field
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(ctx context.Context, msg string) []Field

func (f HookFunc) Apply(ctx context.Context, msg string) []Field {
	return f(ctx, msg)
}

var hooks = []Hook{HookFunc(requestFields)}

// RegisterHook appends a hook applied to every log entry.
// Not safe for concurrent use with logging; register during init.
func RegisterHook(h Hook) {
	hooks = append(hooks, h)
}

func applyHooks(ctx context.Context, msg string, fields []Field) []Field {
	for _, h := range hooks {
		fields = append(fields, h.Apply(ctx, msg)...)
	}

	return fields
}

// requestFields annotates entries with the request id and organization id when present.
func requestFields(ctx context.Context, _ string) []Field {
	if ctx == nil {
		return nil
	}

	var fields []Field

	if requestID, ok := contexts.GetRequestID(ctx); ok {
		fields = append(fields, String("request_id", requestID))
	}

	if orgID, ok := contexts.GetOrganizationID(ctx); ok {
		fields = append(fields, Int("organization_id", orgID))
	}

	return fields
}
