package archive

import (
	"strings"
	"testing"
	"time"

	"github.com/alg-bug-engineer/Neural-Flow/app/database"
)

func TestBuildDocMarkdownDraft(t *testing.T) {
	pack := database.ContentPackage{
		RecordType: database.RecordTypeDraft,
		TraceID:    "t1-twitter",
		Platform:   "twitter",
		SourceInfo: "twitter-karpathy",
		SourceURL:  "https://example.com/p",
		Title:      "Draft Title",
		AISummary:  "generated summary",
		ShortCopy:  "the short copy",
		Article:    "# Article body",
		ImageURLs:  []string{"https://img.test/1.png", "https://img.test/2.png"},
	}

	body := buildDocMarkdown(pack)

	for _, want := range []string{
		"# Draft Title",
		"Trace ID: t1-twitter",
		"Platform: twitter",
		"## Twitter Draft",
		"the short copy",
		"## Article",
		"- https://img.test/1.png",
		"- https://img.test/2.png",
		"Source: https://example.com/p",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("draft document missing %q:\n%s", want, body)
		}
	}
}

func TestBuildDocMarkdownDraftWithoutImages(t *testing.T) {
	body := buildDocMarkdown(database.ContentPackage{
		RecordType: database.RecordTypeDraft,
		Title:      "T",
	})
	if !strings.Contains(body, "- (none)") {
		t.Errorf("empty image list should render a placeholder:\n%s", body)
	}
	if strings.Contains(body, "## Twitter Draft") {
		t.Error("empty short copy should omit the section")
	}
}

func TestBuildDocMarkdownTopic(t *testing.T) {
	body := buildDocMarkdown(database.ContentPackage{
		RecordType:   database.RecordTypeTopic,
		TraceID:      "abcd1234",
		SourceInfo:   "wechat-ai_daily",
		SourceURL:    "https://example.com/t",
		Title:        "Topic Title",
		TopicSummary: "discovery summary",
		Channels:     []string{"twitter", "zhihu"},
	})

	for _, want := range []string{
		"# Topic Title",
		"Trace ID: abcd1234",
		"discovery summary",
		"Suggested Platforms: twitter, zhihu",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("topic document missing %q:\n%s", want, body)
		}
	}
}

func TestDocTitle(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	topic := docTitle(database.ContentPackage{
		RecordType: database.RecordTypeTopic,
		TraceID:    "abcd1234",
		SourceInfo: "twitter-karpathy",
		Title:      "Some Topic",
	}, now)
	if topic != "[2025-06-02] 选题 | twitter-karpathy | Some Topic [#abcd1234]" {
		t.Errorf("unexpected topic doc title: %q", topic)
	}

	draft := docTitle(database.ContentPackage{
		RecordType: database.RecordTypeDraft,
		TraceID:    "abcd1234-zhihu",
		Platform:   "zhihu",
		Title:      "Some Draft",
	}, now)
	if draft != "[2025-06-02] 草稿 | zhihu | Some Draft [#abcd1234-zhihu]" {
		t.Errorf("unexpected draft doc title: %q", draft)
	}
}

func TestShortDocTitle(t *testing.T) {
	long := strings.Repeat("字", 60)
	short := shortDocTitle(long)
	if !strings.HasSuffix(short, "...") {
		t.Errorf("long titles should be elided: %q", short)
	}
	if got := shortDocTitle("  spaced   out  "); got != "spaced out" {
		t.Errorf("whitespace should collapse, got %q", got)
	}
}

func TestSafeFileName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"t1-twitter-Some Title", "t1-twitter-Some-Title"},
		{"a/b\\c:d", "a-b-c-d"},
		{"///", "record"},
		{"中文标题-ok", "中文标题-ok"},
	}

	for _, tt := range tests {
		if got := safeFileName(tt.input); got != tt.expected {
			t.Errorf("safeFileName(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}
