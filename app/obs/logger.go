package obs

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"
)

// LogEntry is one persisted log record. Every record carries the correlation
// id of the unit of work that emitted it, regardless of component.
type LogEntry struct {
	CreatedAt time.Time
	Component string
	Level     string
	Message   string
	TraceID   string
	Attrs     string // JSON object of remaining attributes
}

// LogSink receives every log record emitted through the fabric. Implemented
// by database.LogRepository; failures are swallowed so logging can never
// take the pipeline down.
type LogSink interface {
	WriteLog(entry LogEntry) error
}

// fanoutHandler sends records to a human-readable text handler and mirrors
// them into the sink for trace queries.
type fanoutHandler struct {
	text  slog.Handler
	sink  LogSink
	attrs []slog.Attr
}

// Setup installs the process-wide logger. sink may be nil (stdout only,
// used before the database is available and in tests).
func Setup(sink LogSink, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	text := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(&fanoutHandler{text: text, sink: sink}))
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.text.Enabled(ctx, level)
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	traceID := TraceID(ctx)
	component := ""
	extra := make(map[string]any)

	collect := func(attr slog.Attr) bool {
		switch attr.Key {
		case "component":
			component = attr.Value.String()
		case "trace_id":
			if traceID == "" {
				traceID = attr.Value.String()
			}
		default:
			extra[attr.Key] = attr.Value.Any()
		}
		return true
	}
	for _, attr := range h.attrs {
		collect(attr)
	}
	record.Attrs(collect)

	if traceID != "" {
		record.AddAttrs(slog.String("trace_id", traceID))
	}

	if h.sink != nil {
		attrsJSON := "{}"
		if len(extra) > 0 {
			if data, err := json.Marshal(extra); err == nil {
				attrsJSON = string(data)
			}
		}
		// Sink errors are ignored; the text handler still gets the record.
		_ = h.sink.WriteLog(LogEntry{
			CreatedAt: record.Time.UTC(),
			Component: component,
			Level:     record.Level.String(),
			Message:   record.Message,
			TraceID:   traceID,
			Attrs:     attrsJSON,
		})
	}

	return h.text.Handle(ctx, record)
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &fanoutHandler{text: h.text.WithAttrs(attrs), sink: h.sink, attrs: merged}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	return &fanoutHandler{text: h.text.WithGroup(name), sink: h.sink, attrs: h.attrs}
}
