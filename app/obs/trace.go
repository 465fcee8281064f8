package obs

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// TraceHeader carries the correlation id across process boundaries.
const TraceHeader = "X-Trace-Id"

type ctxKey struct{}

var idPattern = regexp.MustCompile(`[^a-zA-Z0-9_\-]`)

// NormalizeID strips characters that are unsafe in filenames, URLs and log
// queries, and caps the length.
func NormalizeID(value string) string {
	cleaned := idPattern.ReplaceAllString(strings.TrimSpace(value), "")
	if len(cleaned) > 64 {
		cleaned = cleaned[:64]
	}
	return cleaned
}

// NewTraceID generates a fresh correlation id for a unit of work that has no
// inherited identity.
func NewTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// TopicTraceID derives the topic correlation id from a content fingerprint,
// so the same discovery always maps to the same trace.
func TopicTraceID(fingerprint string) string {
	cleaned := NormalizeID(fingerprint)
	if cleaned == "" {
		return NewTraceID()
	}
	if len(cleaned) > 8 {
		return cleaned[:8]
	}
	return cleaned
}

// DraftTraceID addresses a draft by its (topic, platform) pair. Re-delivery
// of the same confirmation yields the same draft identity.
func DraftTraceID(topicTraceID, platform string) string {
	if topicTraceID == "" {
		return platform
	}
	return topicTraceID + "-" + platform
}

// WithTraceID binds a correlation id to the context. Downstream calls and
// log records pick it up from there.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, NormalizeID(traceID))
}

// TraceID returns the correlation id bound to the context, or "".
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}
