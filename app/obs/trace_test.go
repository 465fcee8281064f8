package obs

import (
	"context"
	"strings"
	"testing"
)

func TestTopicTraceID(t *testing.T) {
	fingerprint := "a3f9c2d8e1b4a7f6deadbeef"
	got := TopicTraceID(fingerprint)
	if got != "a3f9c2d8" {
		t.Errorf("Expected a3f9c2d8, got %s", got)
	}

	// Same fingerprint always maps to the same trace
	if TopicTraceID(fingerprint) != got {
		t.Error("TopicTraceID must be deterministic")
	}

	// Empty fingerprint falls back to a generated id
	if TopicTraceID("") == "" {
		t.Error("TopicTraceID of empty input should generate an id")
	}
}

func TestDraftTraceID(t *testing.T) {
	if got := DraftTraceID("t1", "twitter"); got != "t1-twitter" {
		t.Errorf("Expected t1-twitter, got %s", got)
	}
	if got := DraftTraceID("", "zhihu"); got != "zhihu" {
		t.Errorf("Expected zhihu, got %s", got)
	}
}

func TestNormalizeID(t *testing.T) {
	if got := NormalizeID("  abc!@# def_-9  "); got != "abcdef_-9" {
		t.Errorf("Unexpected normalization: %s", got)
	}
	long := strings.Repeat("x", 100)
	if got := NormalizeID(long); len(got) != 64 {
		t.Errorf("Expected 64-char cap, got %d chars", len(got))
	}
}

func TestNewTraceID(t *testing.T) {
	a := NewTraceID()
	b := NewTraceID()
	if len(a) != 16 {
		t.Errorf("Expected 16-char id, got %d chars", len(a))
	}
	if a == b {
		t.Error("Consecutive ids should differ")
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := WithTraceID(context.Background(), "t1-twitter")
	if got := TraceID(ctx); got != "t1-twitter" {
		t.Errorf("Expected t1-twitter, got %s", got)
	}

	if got := TraceID(context.Background()); got != "" {
		t.Errorf("Expected empty trace id on bare context, got %s", got)
	}
}
