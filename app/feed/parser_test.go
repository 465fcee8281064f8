package feed

import (
	"strings"
	"testing"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel>
<title>Test Feed</title>
<item>
<title>New agent framework released</title>
<link>https://example.com/posts/1</link>
<description>Short teaser</description>
<content:encoded><![CDATA[<p>A new open source agent framework was released today.</p><img src="https://example.com/hero.png"/><p>It ships with benchmark results.</p>]]></content:encoded>
<pubDate>Mon, 02 Jun 2025 09:00:00 GMT</pubDate>
</item>
<item>
<title>招聘工程师</title>
<link>https://example.com/posts/2</link>
<description>我们正在招聘，欢迎关注公众号。</description>
</item>
<item>
<title>Bare link post</title>
<link>https://example.com/posts/3</link>
<description>https://example.com/elsewhere</description>
</item>
<item>
<title>Fourth post kept</title>
<link>https://example.com/posts/4</link>
<description>Plain text body with enough words to count as content.</description>
</item>
</channel>
</rss>`

func TestParserRun(t *testing.T) {
	parser := NewParser()

	items, err := parser.Run([]byte(sampleFeed), "twitter_tester_live", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 items after noise filtering, got %d", len(items))
	}

	first := items[0]
	if first.Title != "New agent framework released" {
		t.Errorf("unexpected title: %q", first.Title)
	}
	if first.SourceID != "twitter_tester_live" {
		t.Errorf("unexpected source id: %q", first.SourceID)
	}
	if len(first.Fingerprint) != 64 {
		t.Errorf("expected sha256 hex fingerprint, got %q", first.Fingerprint)
	}
	if len(first.Images) != 1 || first.Images[0] != "https://example.com/hero.png" {
		t.Errorf("unexpected images: %v", first.Images)
	}
	if strings.Contains(first.RawText, "<p>") {
		t.Errorf("raw text should be stripped of markup: %q", first.RawText)
	}
	if first.PublishedAt == nil {
		t.Error("expected published timestamp to be parsed")
	}
	if len(first.Keywords) == 0 {
		t.Error("expected keywords to be extracted")
	}

	if items[1].Title != "Fourth post kept" {
		t.Errorf("unexpected second item: %q", items[1].Title)
	}
}

func TestParserRunMaxItems(t *testing.T) {
	parser := NewParser()

	items, err := parser.Run([]byte(sampleFeed), "src", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected max_items to cap results, got %d", len(items))
	}
}

func TestParserRunInvalidData(t *testing.T) {
	parser := NewParser()

	if _, err := parser.Run([]byte("not a feed"), "src", 5); err == nil {
		t.Error("expected error for unparsable data")
	}
}

func TestFingerprintStability(t *testing.T) {
	a := generateFingerprint("https://example.com/posts/1")
	b := generateFingerprint("https://example.com/posts/1")
	c := generateFingerprint("https://example.com/posts/2")

	if a != b {
		t.Error("fingerprint should be deterministic for the same link")
	}
	if a == c {
		t.Error("different links should map to different fingerprints")
	}
}

func TestSourceInfo(t *testing.T) {
	tests := []struct {
		sourceID string
		expected string
	}{
		{"twitter_karpathy_live", "twitter-karpathy"},
		{"wechat_ai_daily", "wechat-ai_daily"},
		{"xhs_trends_live", "xiaohongshu-xhs_trends"},
		{"hackernews", "hackernews"},
		{"", "unknown-unknown"},
	}

	for _, tt := range tests {
		if got := SourceInfo(tt.sourceID); got != tt.expected {
			t.Errorf("SourceInfo(%q) = %q, expected %q", tt.sourceID, got, tt.expected)
		}
	}
}
