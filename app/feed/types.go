package feed

import (
	"strings"
	"time"
)

// Item is a normalized entry extracted from a source feed. Fingerprint is
// the stable identity used for deduplication across scan cycles.
type Item struct {
	SourceID    string
	Fingerprint string
	Title       string
	URL         string
	Summary     string
	RawText     string
	PublishedAt *time.Time
	Images      []string
	Keywords    []string
}

// SourceInfo derives a "platform-account" label from a source identifier,
// e.g. "twitter_karpathy_live" becomes "twitter-karpathy".
func SourceInfo(sourceID string) string {
	raw := strings.ToLower(strings.TrimSpace(sourceID))
	if raw == "" {
		return "unknown-unknown"
	}

	switch {
	case strings.HasPrefix(raw, "twitter_"):
		suffix := strings.ReplaceAll(strings.TrimPrefix(raw, "twitter_"), "_live", "")
		return "twitter-" + suffix
	case strings.HasPrefix(raw, "wechat_"):
		suffix := strings.ReplaceAll(strings.TrimPrefix(raw, "wechat_"), "_live", "")
		return "wechat-" + suffix
	case strings.HasPrefix(raw, "xhs_") || strings.Contains(raw, "xiaohongshu"):
		return "xiaohongshu-" + strings.ReplaceAll(raw, "_live", "")
	}

	return raw
}
